package laser

import (
	"math"

	"laserdamage/model"
)

// 单次运行允许的最大脉冲数
const MaxWindows = 100000

// Source evaluates the incident flux of a laser on the target surface.
type Source struct {
	params model.LaserParameters
	radius float64 // 1/e² 半径，m
}

func New(p model.LaserParameters) (*Source, error) {
	if p.Profile == "" {
		p.Profile = model.ProfileGaussian
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return &Source{params: p, radius: p.BeamDiameter * 1e-3 / 2}, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Validate rejects parameter sets that cannot describe a physical irradiation.
func Validate(p model.LaserParameters) error {
	for name, v := range map[string]float64{
		"power": p.Power, "wavelength": p.Wavelength, "beam diameter": p.BeamDiameter,
	} {
		if !(v > 0) || !finite(v) {
			return model.Configf("laser %s must be positive, got %v", name, v)
		}
	}
	if p.PulseDuration < 0 || !finite(p.PulseDuration) {
		return model.Configf("pulse duration must be non-negative, got %v", p.PulseDuration)
	}
	if p.PulseFrequency < 0 || !finite(p.PulseFrequency) {
		return model.Configf("pulse frequency must be non-negative, got %v", p.PulseFrequency)
	}
	if _, err := model.ParseBeamProfile(string(p.Profile)); err != nil {
		return err
	}
	switch p.Mode {
	case model.ModeContinuous:
	case model.ModePulsed:
		if p.PulseDuration <= 0 {
			return model.Configf("pulsed mode needs a pulse duration")
		}
	case model.ModeQuasiContinuous:
		if p.PulseDuration <= 0 || p.PulseFrequency <= 0 {
			return model.Configf("quasi-continuous mode needs pulse duration and frequency")
		}
	default:
		return model.Configf("unknown laser mode %q", p.Mode)
	}
	if p.Mode != model.ModeContinuous && p.PulseFrequency > 0 && p.PulseDuration > 1/p.PulseFrequency {
		return model.Configf("pulse duration %v s exceeds period %v s", p.PulseDuration, 1/p.PulseFrequency)
	}
	return nil
}

func (s *Source) Parameters() model.LaserParameters { return s.params }

// Radius is the 1/e² beam radius in metres.
func (s *Source) Radius() float64 { return s.radius }

// PeakIntensity is the on-axis irradiance in W/m².
func (s *Source) PeakIntensity() float64 {
	w2 := s.radius * s.radius
	if s.params.Profile == model.ProfileTopHat {
		return s.params.Power / (math.Pi * w2)
	}
	return 2 * s.params.Power / (math.Pi * w2)
}

// Intensity is the irradiance in W/m² at radial distance r (m) while the laser is on.
func (s *Source) Intensity(r float64) float64 {
	if s.params.Profile == model.ProfileTopHat {
		if r > s.radius {
			return 0
		}
		return s.PeakIntensity()
	}
	return s.PeakIntensity() * math.Exp(-2*r*r/(s.radius*s.radius))
}

// RayleighRange of an ideal beam focused to the configured spot, in metres.
func (s *Source) RayleighRange() float64 {
	return math.Pi * s.radius * s.radius / (s.params.Wavelength * 1e-9)
}

// Windows lists the [on, off) intervals within [0, duration].
func (s *Source) Windows(duration float64) ([][2]float64, error) {
	p := s.params
	switch {
	case p.Mode == model.ModeContinuous:
		return [][2]float64{{0, duration}}, nil
	case p.PulseFrequency == 0:
		return [][2]float64{{0, math.Min(p.PulseDuration, duration)}}, nil
	}
	period := 1 / p.PulseFrequency
	n := int(math.Ceil(duration / period))
	if n > MaxWindows {
		return nil, model.Configf("%d pulses in %v s exceeds limit %d", n, duration, MaxWindows)
	}
	windows := make([][2]float64, 0, n)
	for k := 0; k < n; k++ {
		on := float64(k) * period
		if on >= duration {
			break
		}
		windows = append(windows, [2]float64{on, math.Min(on+p.PulseDuration, duration)})
	}
	return windows, nil
}

// On reports whether the laser emits at time t.
func On(windows [][2]float64, t float64) bool {
	for _, w := range windows {
		if t >= w[0] && t < w[1] {
			return true
		}
	}
	return false
}

// Energy is the laser energy (J) emitted within [0, duration].
func (s *Source) Energy(duration float64) (float64, error) {
	windows, err := s.Windows(duration)
	if err != nil {
		return 0, err
	}
	on := 0.0
	for _, w := range windows {
		on += w[1] - w[0]
	}
	return s.params.Power * on, nil
}
