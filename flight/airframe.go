package flight

import (
	"math"

	"laserdamage/model"
)

// Airframe holds the mass properties, reference geometry and the stability
// derivatives not covered by the aero table.
type Airframe struct {
	Mass     float64       `json:"mass"`
	Inertia  model.Matrix3 `json:"inertia"`
	WingArea float64       `json:"wing_area"`
	Chord    float64       `json:"chord"`
	Span     float64       `json:"span"`
	Thrust   float64       `json:"thrust"`

	CLq    float64 `json:"cl_q"`
	CMq    float64 `json:"cm_q"`
	CYBeta float64 `json:"cy_beta"`
	ClBeta float64 `json:"cl_beta"`
	ClP    float64 `json:"cl_p"`
	CnBeta float64 `json:"cn_beta"`
	CnR    float64 `json:"cn_r"`
}

var DefaultAirframe = Airframe{
	Mass:     1000,
	Inertia:  model.Diag3(1000, 2000, 3000),
	WingArea: 20,
	Chord:    2,
	Span:     10,
	Thrust:   4100,
	CLq:      8,
	CMq:      -20,
	CYBeta:   -0.5,
	ClBeta:   -0.1,
	ClP:      -0.5,
	CnBeta:   0.1,
	CnR:      -0.3,
}

func (a Airframe) Validate() error {
	if !(a.Mass > 0) {
		return model.Configf("airframe mass must be positive, got %v", a.Mass)
	}
	if !(a.WingArea > 0 && a.Chord > 0 && a.Span > 0) {
		return model.Configf("airframe reference geometry must be positive")
	}
	if a.Thrust < 0 || math.IsNaN(a.Thrust) {
		return model.Configf("thrust must be non-negative, got %v", a.Thrust)
	}
	for i := 0; i < 3; i++ {
		if !(a.Inertia[i][i] > 0) {
			return model.Configf("inertia diagonal must be positive")
		}
	}
	return nil
}

// Config controls one integration.
type Config struct {
	TimeStep float64 `json:"time_step"`
	Horizon  float64 `json:"horizon"`
	// 相对初始姿态的最大转角 (rad) 与最大角速度 (rad/s)，超过即判定失控
	MaxAttitudeDeviation float64 `json:"max_attitude_deviation"`
	MaxAngularRate       float64 `json:"max_angular_rate"`

	Altitude float64 `json:"altitude"`
	Airspeed float64 `json:"airspeed"`
}

var DefaultConfig = Config{
	TimeStep:             0.01,
	Horizon:              20,
	MaxAttitudeDeviation: math.Pi / 3,
	MaxAngularRate:       2,
	Altitude:             3000,
	Airspeed:             150,
}

func (c Config) Validate() error {
	if !(c.TimeStep > 0) || !(c.Horizon >= c.TimeStep) {
		return model.Configf("flight time step %v and horizon %v are inconsistent", c.TimeStep, c.Horizon)
	}
	if !(c.MaxAttitudeDeviation > 0 && c.MaxAngularRate > 0) {
		return model.Configf("loss-of-control limits must be positive")
	}
	if !(c.Altitude > 0 && c.Airspeed > 0) {
		return model.Configf("initial altitude and airspeed must be positive")
	}
	return nil
}
