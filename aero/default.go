package aero

import (
	"math"

	"laserdamage/model"
)

// Linear is a linear aerodynamic model used to fill a surrogate table.
type Linear struct {
	CL0, CLAlpha float64
	CD0, K       float64 // 极曲线 CD = CD0 + K·CL²
	CM0, CMAlpha float64
}

// 毁伤对气动系数的修正
const (
	liftLoss      = 0.3
	dragGrowth    = 0.5
	stabilityLoss = 0.4
)

// DefaultLinear is a small subsonic airframe.
var DefaultLinear = Linear{CL0: 0, CLAlpha: 5, CD0: 0.02, K: 0.05, CM0: 0.01, CMAlpha: -1}

// Coefficients evaluates the model with Prandtl-Glauert compressibility and
// the damage modifiers applied.
func (l Linear) Coefficients(mach, alpha, damage float64) model.AeroCoefficients {
	pg := 1 / math.Sqrt(1-math.Min(mach, 0.95)*math.Min(mach, 0.95))
	cl := (l.CL0 + l.CLAlpha*pg*alpha) * (1 - liftLoss*damage)
	return model.AeroCoefficients{
		CL: cl,
		CD: l.CD0*(1+dragGrowth*damage) + l.K*cl*cl,
		CM: l.CM0 + l.CMAlpha*pg*(1-stabilityLoss*damage)*alpha,
	}
}

// Table samples the model on the given axes.
func (l Linear) Table(mach, alpha, damage []float64) (*Table, error) {
	coeffs := make([]model.AeroCoefficients, 0, len(mach)*len(alpha)*len(damage))
	for _, m := range mach {
		for _, a := range alpha {
			for _, d := range damage {
				coeffs = append(coeffs, l.Coefficients(m, a, d))
			}
		}
	}
	return NewTable(mach, alpha, damage, coeffs)
}

func deg(d float64) float64 { return d * math.Pi / 180 }

// DefaultTable covers Mach 0.1–0.9, alpha -10°–20° and the full damage range.
func DefaultTable() *Table {
	mach := []float64{0.1, 0.3, 0.5, 0.7, 0.9}
	alpha := []float64{deg(-10), deg(-5), 0, deg(2.5), deg(5), deg(10), deg(15), deg(20)}
	damage := []float64{0, 0.25, 0.5, 0.75, 1}
	t, err := DefaultLinear.Table(mach, alpha, damage)
	if err != nil {
		panic(err)
	}
	return t
}
