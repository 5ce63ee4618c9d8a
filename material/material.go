package material

import (
	"math"
	"sort"
	"strings"

	"laserdamage/model"
)

// 材料库中的预设名称
const (
	Aluminum6061 = "aluminum-6061-t6"
	Aluminum2024 = "aluminum-2024-t3"
	TitaniumTC4  = "titanium-ti-6al-4v"
	SteelQ235    = "steel-q235"
	Stainless304 = "stainless-304"
)

var presets = []model.MaterialProperties{
	{
		// 阳极氧化表面，1064nm 吸收率
		Name:                Aluminum6061,
		ThermalConductivity: 167.0,
		SpecificHeat:        896.0,
		Density:             2700.0,
		MeltingPoint:        933.0,
		VaporizationPoint:   2792.0,
		Absorptivity:        0.25,
		YieldStrength:       276e6,
		UltimateStrength:    310e6,
		ThermalExpansion:    23.6e-6,
		YoungsModulus:       68.9e9,
		PoissonRatio:        0.33,
		Emissivity:          0.8,
	},
	{
		Name:                Aluminum2024,
		ThermalConductivity: 121.0,
		SpecificHeat:        875.0,
		Density:             2780.0,
		MeltingPoint:        916.0,
		VaporizationPoint:   2740.0,
		Absorptivity:        0.15,
		YieldStrength:       324e6,
		UltimateStrength:    469e6,
		ThermalExpansion:    22.3e-6,
		YoungsModulus:       73.1e9,
		PoissonRatio:        0.33,
		Emissivity:          0.2,
	},
	{
		Name:                TitaniumTC4,
		ThermalConductivity: 7.0,
		SpecificHeat:        520.0,
		Density:             4430.0,
		MeltingPoint:        1933.0,
		VaporizationPoint:   3560.0,
		Absorptivity:        0.4,
		YieldStrength:       880e6,
		UltimateStrength:    950e6,
		ThermalExpansion:    8.6e-6,
		YoungsModulus:       114e9,
		PoissonRatio:        0.34,
		Emissivity:          0.3,
	},
	{
		Name:                SteelQ235,
		ThermalConductivity: 50.0,
		SpecificHeat:        460.0,
		Density:             7850.0,
		MeltingPoint:        1811.0,
		VaporizationPoint:   3134.0,
		Absorptivity:        0.8,
		YieldStrength:       235e6,
		UltimateStrength:    375e6,
		ThermalExpansion:    12e-6,
		YoungsModulus:       200e9,
		PoissonRatio:        0.30,
		Emissivity:          0.6,
	},
	{
		Name:                Stainless304,
		ThermalConductivity: 16.2,
		SpecificHeat:        500.0,
		Density:             8000.0,
		MeltingPoint:        1673.0,
		VaporizationPoint:   3023.0,
		Absorptivity:        0.3,
		YieldStrength:       215e6,
		UltimateStrength:    505e6,
		ThermalExpansion:    17.3e-6,
		YoungsModulus:       193e9,
		PoissonRatio:        0.29,
		Emissivity:          0.4,
	},
}

// Catalog is an immutable set of material property records. Lookups return
// copies, so a catalog can be shared by concurrent runs.
type Catalog struct {
	items map[string]model.MaterialProperties
}

// Default returns the built-in catalog.
func Default() Catalog {
	c := Catalog{items: make(map[string]model.MaterialProperties, len(presets))}
	for _, m := range presets {
		c.items[m.Name] = m
	}
	return c
}

// With returns a new catalog that also holds m. The receiver is unchanged.
func (c Catalog) With(m model.MaterialProperties) (Catalog, error) {
	if err := Validate(m); err != nil {
		return c, err
	}
	next := Catalog{items: make(map[string]model.MaterialProperties, len(c.items)+1)}
	for k, v := range c.items {
		next.items[k] = v
	}
	next.items[normalize(m.Name)] = m
	return next, nil
}

func (c Catalog) Lookup(name string) (model.MaterialProperties, error) {
	m, ok := c.items[normalize(name)]
	if !ok {
		return model.MaterialProperties{}, model.Configf("unknown material %q", name)
	}
	return m, nil
}

func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.items))
	for k := range c.items {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Validate checks that every property is finite and physically ordered.
func Validate(m model.MaterialProperties) error {
	positive := map[string]float64{
		"thermal conductivity": m.ThermalConductivity,
		"specific heat":        m.SpecificHeat,
		"density":              m.Density,
		"melting point":        m.MeltingPoint,
		"vaporization point":   m.VaporizationPoint,
		"absorptivity":         m.Absorptivity,
		"yield strength":       m.YieldStrength,
		"ultimate strength":    m.UltimateStrength,
		"thermal expansion":    m.ThermalExpansion,
		"youngs modulus":       m.YoungsModulus,
	}
	for name, v := range positive {
		if !(v > 0) || math.IsInf(v, 0) {
			return model.Configf("material %q: %s must be positive, got %v", m.Name, name, v)
		}
	}
	switch {
	case m.Name == "":
		return model.Configf("material has no name")
	case m.Absorptivity > 1:
		return model.Configf("material %q: absorptivity %v above 1", m.Name, m.Absorptivity)
	case m.Emissivity < 0 || m.Emissivity > 1:
		return model.Configf("material %q: emissivity %v outside [0,1]", m.Name, m.Emissivity)
	case m.PoissonRatio <= 0 || m.PoissonRatio >= 0.5:
		return model.Configf("material %q: poisson ratio %v outside (0,0.5)", m.Name, m.PoissonRatio)
	case m.VaporizationPoint <= m.MeltingPoint:
		return model.Configf("material %q: vaporization point below melting point", m.Name)
	case m.UltimateStrength < m.YieldStrength:
		return model.Configf("material %q: ultimate strength below yield strength", m.Name)
	}
	return nil
}
