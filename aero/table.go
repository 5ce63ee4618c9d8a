package aero

import (
	"math"
	"sort"

	"laserdamage/model"
)

// Table is a read-only aerodynamic coefficient grid over Mach number, angle of
// attack (rad) and damage level [0,1]. Queries outside the grid are clamped to
// the nearest grid point on each axis.
type Table struct {
	Mach   []float64
	Alpha  []float64
	Damage []float64
	// 下标 (i*len(Alpha)+j)*len(Damage)+k
	Coefficients []model.AeroCoefficients
}

func NewTable(mach, alpha, damage []float64, coeffs []model.AeroCoefficients) (*Table, error) {
	for name, axis := range map[string][]float64{"mach": mach, "alpha": alpha, "damage": damage} {
		if len(axis) == 0 {
			return nil, model.Configf("aero table %s axis is empty", name)
		}
		for i, v := range axis {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, model.Configf("aero table %s axis has non-finite value", name)
			}
			if i > 0 && !(v > axis[i-1]) {
				return nil, model.Configf("aero table %s axis must be strictly increasing", name)
			}
		}
	}
	if want := len(mach) * len(alpha) * len(damage); len(coeffs) != want {
		return nil, model.Configf("aero table has %d entries, axes need %d", len(coeffs), want)
	}
	return &Table{
		Mach:         append([]float64(nil), mach...),
		Alpha:        append([]float64(nil), alpha...),
		Damage:       append([]float64(nil), damage...),
		Coefficients: append([]model.AeroCoefficients(nil), coeffs...),
	}, nil
}

func (t *Table) at(i, j, k int) model.AeroCoefficients {
	return t.Coefficients[(i*len(t.Alpha)+j)*len(t.Damage)+k]
}

// locate 返回 x 所在区间下标及区间内插值系数，越界时钳位，NaN 取下界
func locate(axis []float64, x float64) (int, int, float64) {
	n := len(axis)
	if n == 1 || !(x > axis[0]) {
		return 0, 0, 0
	}
	if x >= axis[n-1] {
		return n - 1, n - 1, 0
	}
	i := sort.SearchFloat64s(axis, x)
	if axis[i] == x {
		return i, i, 0
	}
	return i - 1, i, (x - axis[i-1]) / (axis[i] - axis[i-1])
}

func lerp(a, b model.AeroCoefficients, f float64) model.AeroCoefficients {
	return model.AeroCoefficients{
		CL: a.CL + (b.CL-a.CL)*f,
		CD: a.CD + (b.CD-a.CD)*f,
		CM: a.CM + (b.CM-a.CM)*f,
	}
}

// Lookup interpolates the coefficients trilinearly.
func (t *Table) Lookup(mach, alpha, damage float64) model.AeroCoefficients {
	i0, i1, fi := locate(t.Mach, mach)
	j0, j1, fj := locate(t.Alpha, alpha)
	k0, k1, fk := locate(t.Damage, damage)

	plane := func(i int) model.AeroCoefficients {
		lo := lerp(t.at(i, j0, k0), t.at(i, j0, k1), fk)
		hi := lerp(t.at(i, j1, k0), t.at(i, j1, k1), fk)
		return lerp(lo, hi, fj)
	}
	return lerp(plane(i0), plane(i1), fi)
}

// Slopes returns ∂CL/∂α and ∂CM/∂α over the alpha cell containing alpha.
func (t *Table) Slopes(mach, alpha, damage float64) (float64, float64) {
	if len(t.Alpha) < 2 {
		return 0, 0
	}
	j := sort.SearchFloat64s(t.Alpha, alpha) - 1
	if j < 0 {
		j = 0
	}
	if j > len(t.Alpha)-2 {
		j = len(t.Alpha) - 2
	}
	lo := t.Lookup(mach, t.Alpha[j], damage)
	hi := t.Lookup(mach, t.Alpha[j+1], damage)
	da := t.Alpha[j+1] - t.Alpha[j]
	return (hi.CL - lo.CL) / da, (hi.CM - lo.CM) / da
}

// StaticMargin is -CMα/CLα, in chords. Zero when the lift slope vanishes.
func (t *Table) StaticMargin(mach, alpha, damage float64) float64 {
	clAlpha, cmAlpha := t.Slopes(mach, alpha, damage)
	if clAlpha == 0 {
		return 0
	}
	return -cmAlpha / clAlpha
}
