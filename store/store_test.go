package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laserdamage/model"
)

func result(scenario string) *model.SimulationResult {
	return &model.SimulationResult{
		RunID: uuid.NewString(),
		Scenario: model.ScenarioInfo{
			Name:     scenario,
			Laser:    model.LaserParameters{Power: 1000, Wavelength: 1064, BeamDiameter: 5, PulseDuration: 1e-3, Mode: model.ModePulsed, Profile: model.ProfileGaussian},
			Material: model.MaterialProperties{Name: "aluminum-6061-t6", Density: 2700},
			Nodes:    8,
			Elements: 1,
			Duration: 2e-3,
			TimeStep: 1.0 / 3,
		},
		SolverMode:  model.SolverAnalytical,
		Convergence: model.Convergence{Attempts: 2, InitialTimeStep: 1e-4, TimeStep: 5e-5, StableTimeStep: 6.7e-5},
		Thermal: &model.ThermalField{
			Times:        []float64{0, 0.1},
			Temperatures: [][]float64{{293.15, 293.15}, {300.123456789012, 0.1 + 0.2}},
			Ambient:      293.15,
		},
		Stress:       &model.StressField{Times: []float64{0, 0.1}, VonMises: [][]float64{{0}, {1.5e8}}},
		Damage:       &model.DamageSummary{DamageVolume: 1e-9, PeakTemperature: 300.123456789012, Fractured: 1},
		DamageStates: []model.DamageState{model.Fractured},
		Effect:       &model.DamageEffect{Level: 0.1, InertiaDelta: model.Diag3(-1e-6, 0, -1e-6)},
		Trajectory: []model.FlightState{{
			Position:    model.Vec3{Z: -3000},
			Velocity:    model.Vec3{X: 150},
			Orientation: model.Quaternion{W: 1},
			Mass:        1000,
			Inertia:     model.Diag3(1000, 2000, 3000),
		}},
		Termination: model.TerminationHorizon,
		Assessment: &model.Assessment{
			Severity:          model.SeverityCatastrophic,
			ThermalStructural: model.SeverityCatastrophic,
			Metrics:           model.Metrics{StressRatio: 1.4, Termination: model.TerminationHorizon},
			Drivers:           []string{"stress_ratio"},
		},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	r := result("a")
	b, err := Encode(r)
	require.NoError(t, err)
	back, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, r, back)

	_, err = Decode([]byte("{"))
	assert.ErrorIs(t, err, model.ErrDataInconsistency)
}

func TestMemoryStore(t *testing.T) {
	s, err := Open(Config{Type: StorageMemory})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	a, b := result("a"), result("b")
	partial := result("a")
	partial.Assessment = nil
	partial.Failure = &model.Failure{Stage: "thermal", Kind: "canceled", Message: "canceled"}
	for _, r := range []*model.SimulationResult{a, b, partial} {
		require.NoError(t, s.Save(ctx, r))
	}

	got, err := s.Load(ctx, a.RunID)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	list, err := s.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, partial.RunID, list[0].RunID)
	assert.Equal(t, "canceled", list[0].FailureKind)
	assert.Equal(t, "catastrophic", list[1].Severity)
	assert.Empty(t, list[1].Payload)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// run id 唯一
	assert.Error(t, s.Save(ctx, a))

	_, err = s.Load(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoresAreIsolated(t *testing.T) {
	s1, err := Open(Config{Type: StorageMemory})
	require.NoError(t, err)
	defer s1.Close()
	s2, err := Open(Config{Type: StorageMemory})
	require.NoError(t, err)
	defer s2.Close()

	require.NoError(t, s1.Save(context.Background(), result("a")))
	list, err := s2.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLiteFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(Config{Type: StorageSQLite, Path: path})
	require.NoError(t, err)
	r := result("file")
	require.NoError(t, s.Save(context.Background(), r))
	require.NoError(t, s.Close())

	s, err = Open(Config{Type: StorageSQLite, Path: path})
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(context.Background(), r.RunID)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestOpenValidates(t *testing.T) {
	for _, cfg := range []Config{{Type: StorageNone}, {Type: StorageSQLite}, {Type: StoragePostgres}, {Type: "redis"}} {
		_, err := Open(cfg)
		assert.ErrorIs(t, err, model.ErrConfiguration, cfg.Type)
	}
}

func TestParseStorageType(t *testing.T) {
	st, err := ParseStorageType(" SQLite ")
	require.NoError(t, err)
	assert.Equal(t, StorageSQLite, st)
	st, err = ParseStorageType("")
	require.NoError(t, err)
	assert.Equal(t, StorageNone, st)
	_, err = ParseStorageType("mongo")
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestSaveNeedsRunID(t *testing.T) {
	s, err := Open(Config{Type: StorageMemory})
	require.NoError(t, err)
	defer s.Close()
	r := result("a")
	r.RunID = ""
	assert.ErrorIs(t, s.Save(context.Background(), r), model.ErrDataInconsistency)
}
