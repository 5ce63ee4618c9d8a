package assess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laserdamage/model"
)

func TestCutsGrade(t *testing.T) {
	c := Cuts{0.1, 0.2, 0.3, 0.4}
	assert.Equal(t, model.SeverityNone, c.Grade(0.05))
	assert.Equal(t, model.SeverityMinor, c.Grade(0.1))
	assert.Equal(t, model.SeverityModerate, c.Grade(0.25))
	assert.Equal(t, model.SeveritySevere, c.Grade(0.3))
	assert.Equal(t, model.SeverityCatastrophic, c.Grade(5))
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, DefaultThresholds.Validate())
	bad := DefaultThresholds
	bad.StressRatio = Cuts{0.3, 0.3, 0.9, 1.2}
	_, err := New(bad)
	assert.ErrorIs(t, err, model.ErrConfiguration)
	bad = DefaultThresholds
	bad.DepthFraction[0] = -1
	assert.ErrorIs(t, bad.Validate(), model.ErrConfiguration)
}

func assessor(t *testing.T) *Assessor {
	a, err := New(DefaultThresholds)
	require.NoError(t, err)
	return a
}

func TestOverallIsWorstDomain(t *testing.T) {
	got := assessor(t).Grade(model.Metrics{
		TemperatureRatio:    0.5,
		StressRatio:         1.3,
		TrajectoryDeviation: 0.02,
		Termination:         model.TerminationHorizon,
		BaselineTermination: model.TerminationHorizon,
	})
	assert.Equal(t, model.SeverityCatastrophic, got.ThermalStructural)
	assert.Equal(t, model.SeverityMinor, got.FlightPerformance)
	assert.Equal(t, model.SeverityCatastrophic, got.Severity)
	assert.Equal(t, []string{"stress_ratio"}, got.Drivers)
}

func TestTerminationOverrides(t *testing.T) {
	a := assessor(t)
	got := a.Grade(model.Metrics{Termination: model.TerminationLossOfControl, BaselineTermination: model.TerminationHorizon})
	assert.Equal(t, model.SeverityCatastrophic, got.FlightPerformance)
	assert.Equal(t, []string{"loss-of-control"}, got.Drivers)

	got = a.Grade(model.Metrics{Termination: model.TerminationGroundImpact, BaselineTermination: model.TerminationHorizon})
	assert.Equal(t, model.SeveritySevere, got.Severity)

	// 基线同样失控时不计入
	got = a.Grade(model.Metrics{Termination: model.TerminationLossOfControl, BaselineTermination: model.TerminationLossOfControl})
	assert.Equal(t, model.SeverityNone, got.Severity)
	assert.Empty(t, got.Drivers)
}

func TestMeasure(t *testing.T) {
	at := func(x, z float64) model.FlightState { return model.FlightState{Position: model.Vec3{X: x, Z: z}} }
	in := Input{
		Damage: model.DamageSummary{
			PeakTemperature: 466.5,
			PeakStress:      138e6,
			DamageVolume:    1,
			TotalVolume:     10,
			MaxDepth:        0.2,
			ReferenceDepth:  1,
		},
		Material:            model.MaterialProperties{MeltingPoint: 933, YieldStrength: 276e6},
		Baseline:            []model.FlightState{at(0, 0), at(50, 0), at(100, 0)},
		Trajectory:          []model.FlightState{at(0, 0), at(50, 2), at(100, 3)},
		Termination:         model.TerminationHorizon,
		BaselineTermination: model.TerminationHorizon,
		Margin:              0.15,
		BaselineMargin:      0.2,
	}
	m := Measure(in)
	assert.InDelta(t, 0.5, m.TemperatureRatio, 1e-12)
	assert.InDelta(t, 0.5, m.StressRatio, 1e-12)
	assert.InDelta(t, 0.1, m.VolumeFraction, 1e-12)
	assert.InDelta(t, 0.2, m.DepthFraction, 1e-12)
	assert.InDelta(t, 0.03, m.TrajectoryDeviation, 1e-12)
	assert.InDelta(t, 0.25, m.MarginDegradation, 1e-12)
	assert.InDelta(t, 100, m.BaselineTrajectory.Range, 1e-12)
	assert.InDelta(t, 100, m.Trajectory.Range, 1e-12)
	assert.Zero(t, m.RangeLoss)

	got := assessor(t).Assess(in)
	assert.Equal(t, model.SeverityMinor, got.ThermalStructural)
	assert.Equal(t, model.SeverityMinor, got.FlightPerformance)
	assert.ElementsMatch(t, []string{"temperature_ratio", "stress_ratio", "volume_fraction", "depth_fraction",
		"trajectory_deviation", "margin_degradation"}, got.Drivers)
}

func TestUndamagedIsNone(t *testing.T) {
	got := assessor(t).Assess(Input{
		Damage:              model.DamageSummary{PeakTemperature: 300, TotalVolume: 1, ReferenceDepth: 1},
		Material:            model.MaterialProperties{MeltingPoint: 933, YieldStrength: 276e6},
		Termination:         model.TerminationHorizon,
		BaselineTermination: model.TerminationHorizon,
		Margin:              0.2,
		BaselineMargin:      0.2,
	})
	assert.Equal(t, model.SeverityNone, got.Severity)
	assert.Nil(t, got.Drivers)
}

func TestRangeLoss(t *testing.T) {
	at := func(x float64) model.FlightState { return model.FlightState{Position: model.Vec3{X: x}} }
	m := Measure(Input{
		Baseline:   []model.FlightState{at(0), at(200), at(400)},
		Trajectory: []model.FlightState{at(0), at(100)},
	})
	assert.InDelta(t, 0.75, m.RangeLoss, 1e-12)
}

func TestEffectiveness(t *testing.T) {
	in := Input{
		Damage: model.DamageSummary{DamageVolume: 2e-9, PeakTemperature: 1000, PeakStress: 155e6},
		Material: model.MaterialProperties{
			VaporizationPoint: 2793.15,
			Absorptivity:      0.25,
			UltimateStrength:  310e6,
		},
		Energy:        5,
		PeakIntensity: 5e7,
		Ambient:       293.15,
	}
	e := Effectiveness(in)
	assert.Equal(t, 5.0, e.DeliveredEnergy)
	assert.InDelta(t, 4e-10, e.DamageEfficiency, 1e-22)
	assert.InDelta(t, 0.25*(1000-293.15)/2500, e.EnergyUtilization, 1e-12)
	assert.InDelta(t, 0.5, e.Lethality, 1e-12)
	assert.Equal(t, e, assessor(t).Assess(in).Effectiveness)

	// 未照射时各项为零
	assert.Equal(t, model.Effectiveness{}, Effectiveness(Input{Ambient: 293.15, Damage: model.DamageSummary{PeakTemperature: 293.15}}))
}
