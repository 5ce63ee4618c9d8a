package aero

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"laserdamage/model"
)

// Translation maps a damage summary onto flight-model inputs.
type Translation struct {
	// 毁伤体积分数达到该值时毁伤等级为 1
	VolumeAtFull float64
	// 毁伤等级量化步长
	LevelStep float64
	// 命中点，机体坐标系，相对质心 (m)
	HitPoint model.Vec3
}

var DefaultTranslation = Translation{VolumeAtFull: 0.05, LevelStep: 0.05, HitPoint: model.Vec3{X: 1.5, Y: 2.5}}

func (tr Translation) Validate() error {
	if !(tr.VolumeAtFull > 0 && tr.VolumeAtFull <= 1) {
		return model.Configf("volume at full damage must be in (0,1], got %v", tr.VolumeAtFull)
	}
	if !(tr.LevelStep > 0 && tr.LevelStep <= 1) {
		return model.Configf("damage level step must be in (0,1], got %v", tr.LevelStep)
	}
	if !tr.HitPoint.IsFinite() {
		return model.Configf("hit point must be finite")
	}
	return nil
}

// Level quantizes the damage severity into [0,1] in LevelStep increments,
// rounding up so any damage yields a non-zero level.
func (tr Translation) Level(s model.DamageSummary) float64 {
	raw := math.Max(s.VolumeFraction()/tr.VolumeAtFull, s.DepthFraction())
	raw = math.Min(math.Max(raw, 0), 1)
	if raw == 0 {
		return 0
	}
	return math.Min(1, math.Ceil(raw/tr.LevelStep-1e-9)*tr.LevelStep)
}

// Translate computes the damage level, the ablated mass and the inertia change
// from removing that mass at the hit point.
func (tr Translation) Translate(s model.DamageSummary, m model.MaterialProperties) model.DamageEffect {
	loss := s.VaporizedVolume * m.Density
	return model.DamageEffect{
		Level:        tr.Level(s),
		MassLoss:     loss,
		InertiaDelta: pointMassInertia(-loss, tr.HitPoint),
	}
}

// pointMassInertia is the inertia of mass m at r about the origin,
// m(|r|²E − r rᵀ).
func pointMassInertia(m float64, r model.Vec3) model.Matrix3 {
	var out model.Matrix3
	if m == 0 {
		return out
	}
	v := mat.NewVecDense(3, []float64{r.X, r.Y, r.Z})
	var outer mat.Dense
	outer.Outer(1, v, v)

	sq := mat.Dot(v, v)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d := -outer.At(i, j)
			if i == j {
				d += sq
			}
			out[i][j] = m * d
		}
	}
	return out
}
