package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// 激光工作模式
type LaserMode string

const (
	ModeContinuous      LaserMode = "continuous"
	ModePulsed          LaserMode = "pulsed"
	ModeQuasiContinuous LaserMode = "quasi-continuous"
)

func ParseLaserMode(s string) (LaserMode, error) {
	switch m := LaserMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeContinuous, ModePulsed, ModeQuasiContinuous:
		return m, nil
	}
	return "", Configf("unknown laser mode %q", s)
}

// 光束横向分布
type BeamProfile string

const (
	ProfileGaussian BeamProfile = "gaussian"
	ProfileTopHat   BeamProfile = "top-hat"
)

func ParseBeamProfile(s string) (BeamProfile, error) {
	switch p := BeamProfile(strings.ToLower(strings.TrimSpace(s))); p {
	case ProfileGaussian, ProfileTopHat:
		return p, nil
	case "":
		return ProfileGaussian, nil
	}
	return "", Configf("unknown beam profile %q", s)
}

// LaserParameters describes one irradiation. Power in W, wavelength in nm,
// beam diameter (1/e²) in mm, pulse duration in s, pulse frequency in Hz.
type LaserParameters struct {
	Power          float64     `json:"power"`
	Wavelength     float64     `json:"wavelength"`
	BeamDiameter   float64     `json:"beam_diameter"`
	PulseDuration  float64     `json:"pulse_duration"`
	PulseFrequency float64     `json:"pulse_frequency"`
	Mode           LaserMode   `json:"mode"`
	Profile        BeamProfile `json:"profile"`
}

// 材料物性参数，国际单位制
type MaterialProperties struct {
	Name                string  `json:"name"`
	ThermalConductivity float64 `json:"thermal_conductivity"` // W/(m·K)
	SpecificHeat        float64 `json:"specific_heat"`        // J/(kg·K)
	Density             float64 `json:"density"`              // kg/m³
	MeltingPoint        float64 `json:"melting_point"`        // K
	VaporizationPoint   float64 `json:"vaporization_point"`   // K
	Absorptivity        float64 `json:"absorptivity"`
	YieldStrength       float64 `json:"yield_strength"`    // Pa
	UltimateStrength    float64 `json:"ultimate_strength"` // Pa
	ThermalExpansion    float64 `json:"thermal_expansion"` // 1/K
	YoungsModulus       float64 `json:"youngs_modulus"`    // Pa
	PoissonRatio        float64 `json:"poisson_ratio"`
	Emissivity          float64 `json:"emissivity"`
}

// Diffusivity returns k/(ρc) in m²/s.
func (m MaterialProperties) Diffusivity() float64 {
	return m.ThermalConductivity / (m.Density * m.SpecificHeat)
}

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(f float64) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }
func (v Vec3) Dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Norm() float64        { return math.Sqrt(v.Dot(v)) }
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{v.Y*o.Z - v.Z*o.Y, v.Z*o.X - v.X*o.Z, v.X*o.Y - v.Y*o.X}
}

// Unit returns v normalized, or the zero vector when v has no length.
func (v Vec3) Unit() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

func (v Vec3) IsFinite() bool {
	return !math.IsNaN(v.X+v.Y+v.Z) && !math.IsInf(v.X+v.Y+v.Z, 0)
}

// Quaternion is a rotation from body to the NED frame.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Matrix3 [3][3]float64

func Diag3(a, b, c float64) Matrix3 {
	return Matrix3{{a, 0, 0}, {0, b, 0}, {0, 0, c}}
}

func (m Matrix3) Add(o Matrix3) Matrix3 {
	var r Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][j] + o[i][j]
		}
	}
	return r
}

// Element is an 8-node hexahedron. IrradiatedFace is -1 when the element has
// no face on the irradiated surface, otherwise an index into HexFaces.
type Element struct {
	Nodes          [8]int `json:"nodes"`
	IrradiatedFace int    `json:"irradiated_face"`
}

type GeometryMesh struct {
	Nodes    []Vec3    `json:"nodes"`
	Elements []Element `json:"elements"`
}

// ThermalField holds node temperatures (K) per time step.
type ThermalField struct {
	Times        []float64   `json:"times"`
	Temperatures [][]float64 `json:"temperatures"`
	Ambient      float64     `json:"ambient"`
}

// Peak returns the highest temperature in the field.
func (f *ThermalField) Peak() float64 {
	peak := f.Ambient
	for _, step := range f.Temperatures {
		for _, t := range step {
			if t > peak {
				peak = t
			}
		}
	}
	return peak
}

// Check verifies the field holds steps+1 samples of nodes temperatures at the
// given ambient, all finite and none below ambient. Non-finite values are
// reported as ErrNumericalInstability, every other mismatch as
// ErrDataInconsistency.
func (f *ThermalField) Check(nodes, steps int, ambient float64) error {
	if f.Ambient != ambient {
		return errors.Wrapf(ErrDataInconsistency, "field ambient %.3f K, expected %.3f K", f.Ambient, ambient)
	}
	if len(f.Temperatures) != steps+1 || len(f.Times) != steps+1 {
		return errors.Wrapf(ErrDataInconsistency, "%d times and %d samples, expected %d", len(f.Times), len(f.Temperatures), steps+1)
	}
	for s, step := range f.Temperatures {
		if len(step) != nodes {
			return errors.Wrapf(ErrDataInconsistency, "step %d has %d nodes, mesh has %d", s, len(step), nodes)
		}
		for n, t := range step {
			if math.IsNaN(t) || math.IsInf(t, 0) {
				return errors.Wrapf(ErrNumericalInstability, "non-finite temperature at step %d node %d", s, n)
			}
			if t < ambient {
				return errors.Wrapf(ErrDataInconsistency, "temperature %.3f K below ambient %.3f K at step %d node %d", t, ambient, s, n)
			}
		}
	}
	return nil
}

// StressField holds the per-element von Mises stress (Pa) per time step.
type StressField struct {
	Times    []float64   `json:"times"`
	VonMises [][]float64 `json:"von_mises"`
}

func (f *StressField) Peak() float64 {
	peak := 0.0
	for _, step := range f.VonMises {
		for _, s := range step {
			if s > peak {
				peak = s
			}
		}
	}
	return peak
}

type DamageState uint8

const (
	Intact DamageState = iota
	Melted
	Vaporized
	Fractured
)

var damageStateNames = [...]string{"intact", "melted", "vaporized", "fractured"}

func (s DamageState) String() string {
	if int(s) < len(damageStateNames) {
		return damageStateNames[s]
	}
	return fmt.Sprintf("DamageState(%d)", uint8(s))
}

// Rank orders states for escalation. Vaporized and fractured share the top rank.
func (s DamageState) Rank() int {
	switch s {
	case Intact:
		return 0
	case Melted:
		return 1
	default:
		return 2
	}
}

func (s DamageState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *DamageState) UnmarshalText(b []byte) error {
	for i, n := range damageStateNames {
		if n == string(b) {
			*s = DamageState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown damage state %q", b)
}

type DamageSummary struct {
	DamageVolume    float64 `json:"damage_volume"`    // m³
	MaxDepth        float64 `json:"max_depth"`        // m
	PeakTemperature float64 `json:"peak_temperature"` // K
	PeakStress      float64 `json:"peak_stress"`      // Pa
	VaporizedVolume float64 `json:"vaporized_volume"`
	TotalVolume     float64 `json:"total_volume"`
	ReferenceDepth  float64 `json:"reference_depth"`
	Melted          int     `json:"melted"`
	Vaporized       int     `json:"vaporized"`
	Fractured       int     `json:"fractured"`
}

func (s DamageSummary) VolumeFraction() float64 {
	if s.TotalVolume <= 0 {
		return 0
	}
	return s.DamageVolume / s.TotalVolume
}

func (s DamageSummary) DepthFraction() float64 {
	if s.ReferenceDepth <= 0 {
		return 0
	}
	return s.MaxDepth / s.ReferenceDepth
}

// FlightState: position in NED (m), velocity and angular velocity in body axes.
type FlightState struct {
	Time            float64    `json:"time"`
	Position        Vec3       `json:"position"`
	Velocity        Vec3       `json:"velocity"`
	Orientation     Quaternion `json:"orientation"`
	AngularVelocity Vec3       `json:"angular_velocity"`
	Mass            float64    `json:"mass"`
	Inertia         Matrix3    `json:"inertia"`
}

func (s FlightState) Altitude() float64 { return -s.Position.Z }

func (s FlightState) Airspeed() float64 { return s.Velocity.Norm() }

type AeroCoefficients struct {
	CL float64 `json:"cl"`
	CD float64 `json:"cd"`
	CM float64 `json:"cm"`
}

type TerminationReason string

const (
	TerminationGroundImpact  TerminationReason = "ground-impact"
	TerminationLossOfControl TerminationReason = "loss-of-control"
	TerminationDiverged      TerminationReason = "diverged"
	TerminationHorizon       TerminationReason = "horizon"
)

type SolverMode string

const (
	SolverEngine     SolverMode = "engine-backed"
	SolverAnalytical SolverMode = "analytical-fallback"
)

type Severity uint8

const (
	SeverityNone Severity = iota
	SeverityMinor
	SeverityModerate
	SeveritySevere
	SeverityCatastrophic
)

var severityNames = [...]string{"none", "minor", "moderate", "severe", "catastrophic"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("Severity(%d)", uint8(s))
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	for i, n := range severityNames {
		if n == string(b) {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", b)
}

func MaxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

// TrajectorySummary condenses one trajectory.
type TrajectorySummary struct {
	FlightTime      float64 `json:"flight_time"`       // s
	MaxAltitude     float64 `json:"max_altitude"`      // m
	Range           float64 `json:"range"`             // m, 水平距离
	FinalSpeed      float64 `json:"final_speed"`       // m/s
	FlightPathAngle float64 `json:"flight_path_angle"` // rad, 终点
	AngularRateRMS  float64 `json:"angular_rate_rms"`  // rad/s
}

// Metrics are the normalized quantities the assessor thresholds, plus the
// trajectory summaries they were derived from.
type Metrics struct {
	TemperatureRatio    float64           `json:"temperature_ratio"`
	StressRatio         float64           `json:"stress_ratio"`
	VolumeFraction      float64           `json:"volume_fraction"`
	DepthFraction       float64           `json:"depth_fraction"`
	TrajectoryDeviation float64           `json:"trajectory_deviation"`
	MarginDegradation   float64           `json:"margin_degradation"`
	RangeLoss           float64           `json:"range_loss"`
	Termination         TerminationReason `json:"termination"`
	BaselineTermination TerminationReason `json:"baseline_termination"`
	Trajectory          TrajectorySummary `json:"trajectory"`
	BaselineTrajectory  TrajectorySummary `json:"baseline_trajectory"`
}

// Effectiveness relates the damage to the laser energy spent on it.
// Utilization and lethality are fractions in [0,1].
type Effectiveness struct {
	DeliveredEnergy   float64 `json:"delivered_energy"`  // J
	DamageEfficiency  float64 `json:"damage_efficiency"` // m³/J
	EnergyUtilization float64 `json:"energy_utilization"`
	Lethality         float64 `json:"lethality"`
}

type Assessment struct {
	Severity          Severity      `json:"severity"`
	ThermalStructural Severity      `json:"thermal_structural"`
	FlightPerformance Severity      `json:"flight_performance"`
	Metrics           Metrics       `json:"metrics"`
	Effectiveness     Effectiveness `json:"effectiveness"`
	Drivers           []string      `json:"drivers,omitempty"`
}

// Convergence records how the thermal stage reached its field.
type Convergence struct {
	Attempts        int     `json:"attempts"`
	InitialTimeStep float64 `json:"initial_time_step"`
	TimeStep        float64 `json:"time_step"`
	StableTimeStep  float64 `json:"stable_time_step"`
	EngineRetries   int     `json:"engine_retries"`
}

type Failure struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ScenarioInfo struct {
	Name     string             `json:"name"`
	Laser    LaserParameters    `json:"laser"`
	Material MaterialProperties `json:"material"`
	Nodes    int                `json:"nodes"`
	Elements int                `json:"elements"`
	Duration float64            `json:"duration"`
	TimeStep float64            `json:"time_step"`
}

// DamageEffect is the damage translated into flight-model inputs.
type DamageEffect struct {
	Level        float64 `json:"level"`
	MassLoss     float64 `json:"mass_loss"`
	InertiaDelta Matrix3 `json:"inertia_delta"`
}

type SimulationResult struct {
	RunID        string            `json:"run_id"`
	Scenario     ScenarioInfo      `json:"scenario"`
	SolverMode   SolverMode        `json:"solver_mode,omitempty"`
	Convergence  Convergence       `json:"convergence"`
	Thermal      *ThermalField     `json:"thermal,omitempty"`
	Stress       *StressField      `json:"stress,omitempty"`
	Damage       *DamageSummary    `json:"damage,omitempty"`
	DamageStates []DamageState     `json:"damage_states,omitempty"`
	Effect       *DamageEffect     `json:"effect,omitempty"`
	Trajectory   []FlightState     `json:"trajectory,omitempty"`
	Baseline     []FlightState     `json:"baseline,omitempty"`
	Termination  TerminationReason `json:"termination,omitempty"`
	Assessment   *Assessment       `json:"assessment,omitempty"`
	Failure      *Failure          `json:"failure,omitempty"`
}

// Msg is the websocket envelope exchanged with the solver engine.
type Msg struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// ElementMean is the mean temperature of el's nodes at step s.
func (f *ThermalField) ElementMean(s int, el Element) float64 {
	sum := 0.0
	for _, n := range el.Nodes {
		sum += f.Temperatures[s][n]
	}
	return sum / float64(len(el.Nodes))
}
