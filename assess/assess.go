package assess

import (
	"math"

	"laserdamage/flight"
	"laserdamage/model"
)

// Cuts are the four ascending values at which a metric reaches minor,
// moderate, severe and catastrophic.
type Cuts [4]float64

// Grade maps v onto a severity level.
func (c Cuts) Grade(v float64) model.Severity {
	s := model.SeverityNone
	for i, cut := range c {
		if v >= cut {
			s = model.Severity(i + 1)
		}
	}
	return s
}

type Thresholds struct {
	TemperatureRatio    Cuts `json:"temperature_ratio"`
	StressRatio         Cuts `json:"stress_ratio"`
	VolumeFraction      Cuts `json:"volume_fraction"`
	DepthFraction       Cuts `json:"depth_fraction"`
	TrajectoryDeviation Cuts `json:"trajectory_deviation"`
	MarginDegradation   Cuts `json:"margin_degradation"`
}

var DefaultThresholds = Thresholds{
	TemperatureRatio:    Cuts{0.4, 0.6, 0.8, 0.95},
	StressRatio:         Cuts{0.3, 0.6, 0.9, 1.2},
	VolumeFraction:      Cuts{0.05, 0.15, 0.35, 0.60},
	DepthFraction:       Cuts{0.10, 0.25, 0.50, 0.80},
	TrajectoryDeviation: Cuts{0.01, 0.05, 0.15, 0.30},
	MarginDegradation:   Cuts{0.10, 0.30, 0.60, 0.85},
}

func (t Thresholds) each() map[string]Cuts {
	return map[string]Cuts{
		"temperature_ratio":    t.TemperatureRatio,
		"stress_ratio":         t.StressRatio,
		"volume_fraction":      t.VolumeFraction,
		"depth_fraction":       t.DepthFraction,
		"trajectory_deviation": t.TrajectoryDeviation,
		"margin_degradation":   t.MarginDegradation,
	}
}

func (t Thresholds) Validate() error {
	for name, c := range t.each() {
		for i, v := range c {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return model.Configf("%s threshold %d is invalid: %v", name, i, v)
			}
			if i > 0 && !(v > c[i-1]) {
				return model.Configf("%s thresholds must be strictly ascending", name)
			}
		}
	}
	return nil
}

// Input gathers what one run produced for assessment.
type Input struct {
	Damage              model.DamageSummary
	Material            model.MaterialProperties
	Trajectory          []model.FlightState
	Baseline            []model.FlightState
	Termination         model.TerminationReason
	BaselineTermination model.TerminationReason
	// 初始飞行状态下的静稳定裕度
	Margin         float64
	BaselineMargin float64

	// 激光投入
	Energy        float64 // J
	PeakIntensity float64 // W/m²
	Ambient       float64 // K
}

// 致命性评估中功率密度的归一化基准
const LethalIntensity = 1e8 // W/m²

// Measure normalizes a run into the metrics the thresholds apply to.
func Measure(in Input) model.Metrics {
	m := model.Metrics{
		VolumeFraction:      in.Damage.VolumeFraction(),
		DepthFraction:       in.Damage.DepthFraction(),
		Termination:         in.Termination,
		BaselineTermination: in.BaselineTermination,
	}
	if in.Material.MeltingPoint > 0 {
		m.TemperatureRatio = in.Damage.PeakTemperature / in.Material.MeltingPoint
	}
	if in.Material.YieldStrength > 0 {
		m.StressRatio = in.Damage.PeakStress / in.Material.YieldStrength
	}
	if path := flight.PathLength(in.Baseline); path > 0 {
		m.TrajectoryDeviation = flight.Deviation(in.Trajectory, in.Baseline) / path
	}
	if in.BaselineMargin > 0 {
		m.MarginDegradation = math.Max(0, (in.BaselineMargin-in.Margin)/in.BaselineMargin)
	}
	m.Trajectory = flight.Summarize(in.Trajectory)
	m.BaselineTrajectory = flight.Summarize(in.Baseline)
	if base := m.BaselineTrajectory.Range; base > 0 {
		m.RangeLoss = math.Max(0, (base-m.Trajectory.Range)/base)
	}
	return m
}

// Effectiveness relates the damage to the laser energy that caused it.
func Effectiveness(in Input) model.Effectiveness {
	e := model.Effectiveness{DeliveredEnergy: in.Energy}
	if in.Energy > 0 {
		e.DamageEfficiency = in.Damage.DamageVolume / in.Energy
	}
	if span := in.Material.VaporizationPoint - in.Ambient; span > 0 {
		heat := math.Min(math.Max((in.Damage.PeakTemperature-in.Ambient)/span, 0), 1)
		e.EnergyUtilization = in.Material.Absorptivity * heat
	}
	power := math.Min(in.PeakIntensity/LethalIntensity, 1)
	structural := 0.0
	if in.Material.UltimateStrength > 0 {
		structural = math.Min(in.Damage.PeakStress/in.Material.UltimateStrength, 1)
	}
	e.Lethality = (math.Max(power, 0) + structural) / 2
	return e
}

// Assessor grades runs against fixed thresholds. It holds no other state.
type Assessor struct {
	thresholds Thresholds
}

func New(t Thresholds) (*Assessor, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Assessor{thresholds: t}, nil
}

func (a *Assessor) Assess(in Input) *model.Assessment {
	res := a.Grade(Measure(in))
	res.Effectiveness = Effectiveness(in)
	return res
}

type graded struct {
	name  string
	level model.Severity
}

// domain 取各指标等级的最大值，并返回达到该等级的指标
func domain(items []graded) (model.Severity, []string) {
	top := model.SeverityNone
	for _, it := range items {
		top = model.MaxSeverity(top, it.level)
	}
	if top == model.SeverityNone {
		return top, nil
	}
	var drivers []string
	for _, it := range items {
		if it.level == top {
			drivers = append(drivers, it.name)
		}
	}
	return top, drivers
}

// Grade thresholds each domain independently; the overall severity is the
// worse of the two.
func (a *Assessor) Grade(m model.Metrics) *model.Assessment {
	t := a.thresholds
	thermal, thermalDrivers := domain([]graded{
		{"temperature_ratio", t.TemperatureRatio.Grade(m.TemperatureRatio)},
		{"stress_ratio", t.StressRatio.Grade(m.StressRatio)},
		{"volume_fraction", t.VolumeFraction.Grade(m.VolumeFraction)},
		{"depth_fraction", t.DepthFraction.Grade(m.DepthFraction)},
	})

	flightItems := []graded{
		{"trajectory_deviation", t.TrajectoryDeviation.Grade(m.TrajectoryDeviation)},
		{"margin_degradation", t.MarginDegradation.Grade(m.MarginDegradation)},
	}
	if m.Termination != m.BaselineTermination {
		switch m.Termination {
		case model.TerminationLossOfControl, model.TerminationDiverged:
			flightItems = append(flightItems, graded{string(m.Termination), model.SeverityCatastrophic})
		case model.TerminationGroundImpact:
			flightItems = append(flightItems, graded{string(m.Termination), model.SeveritySevere})
		}
	}
	flightLevel, flightDrivers := domain(flightItems)

	overall := model.MaxSeverity(thermal, flightLevel)
	var drivers []string
	if thermal == overall {
		drivers = append(drivers, thermalDrivers...)
	}
	if flightLevel == overall {
		drivers = append(drivers, flightDrivers...)
	}
	return &model.Assessment{
		Severity:          overall,
		ThermalStructural: thermal,
		FlightPerformance: flightLevel,
		Metrics:           m,
		Drivers:           drivers,
	}
}
