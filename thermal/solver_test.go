package thermal

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laserdamage/engine"
	"laserdamage/geometry"
	"laserdamage/laser"
	"laserdamage/material"
	"laserdamage/model"
	"laserdamage/server"
)

const ambient = 293.15

func problem(t *testing.T, power float64) *Problem {
	mesh, err := geometry.Plate{Length: 10e-3, Width: 10e-3, Thickness: 1e-3, NX: 20, NY: 20, NZ: 10}.Mesh()
	require.NoError(t, err)
	topo, err := geometry.Analyze(mesh)
	require.NoError(t, err)
	m, err := material.Default().Lookup(material.Aluminum6061)
	require.NoError(t, err)
	src, err := laser.New(model.LaserParameters{
		Power:         power,
		Wavelength:    1064,
		BeamDiameter:  5,
		PulseDuration: 1e-3,
		Mode:          model.ModePulsed,
	})
	require.NoError(t, err)
	return &Problem{
		Topology:   topo,
		Material:   m,
		Source:     src,
		Ambient:    ambient,
		Convection: 10,
		Duration:   2e-3,
		TimeStep:   5e-5,
	}
}

func centerNode(p *Problem) int {
	for i, n := range p.Topology.Mesh.Nodes {
		if p.Topology.NodeDepth[i] == 0 && p.Topology.RadialDistance(n) < 1e-9 {
			return i
		}
	}
	return -1
}

func TestAnalyticalSurfaceTemperature(t *testing.T) {
	p := problem(t, 1000)
	out, err := NewSolver(NewAnalyticalStrategy(nil), nil, 0).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, model.SolverAnalytical, out.Mode)
	assert.Equal(t, 1, out.Convergence.Attempts)

	center := centerNode(p)
	require.GreaterOrEqual(t, center, 0)
	step := 20
	require.InDelta(t, 1e-3, out.Field.Times[step], 1e-12)

	m := p.Material
	q := m.Absorptivity * p.Source.PeakIntensity()
	want := ambient + 2*q/m.ThermalConductivity*math.Sqrt(m.Diffusivity()*out.Field.Times[step]/math.Pi)
	assert.InDelta(t, want, out.Field.Temperatures[step][center], 1e-6)

	// 脉冲结束后表面开始冷却
	assert.Less(t, out.Field.Temperatures[40][center], out.Field.Temperatures[step][center])
	assert.NoError(t, out.Field.Check(len(p.Topology.Mesh.Nodes), 40, ambient))
	assert.Equal(t, out.Field.Temperatures[step][center], out.Field.Peak())
}

func TestPeakTemperatureMonotoneInPower(t *testing.T) {
	solver := NewSolver(NewAnalyticalStrategy(nil), nil, 0)
	last := 0.0
	for _, power := range []float64{500, 1000, 2000, 5000} {
		out, err := solver.Solve(context.Background(), problem(t, power))
		require.NoError(t, err)
		assert.Greater(t, out.Field.Peak(), last)
		last = out.Field.Peak()
	}
}

func TestOversizedStepIsHalved(t *testing.T) {
	p := problem(t, 1000)
	p.TimeStep = 1e-3
	out, err := NewSolver(NewAnalyticalStrategy(nil), nil, 8).Solve(context.Background(), p)
	require.NoError(t, err)

	c := out.Convergence
	assert.Greater(t, c.Attempts, 1)
	assert.LessOrEqual(t, c.TimeStep, c.StableTimeStep)
	assert.Equal(t, 1e-3/math.Pow(2, float64(c.Attempts-1)), c.TimeStep)
	assert.Equal(t, 1e-3, c.InitialTimeStep)
	assert.NoError(t, out.Field.Check(len(p.Topology.Mesh.Nodes), int(math.Round(p.Duration/c.TimeStep)), ambient))
}

func TestOversizedStepExhaustsAttempts(t *testing.T) {
	p := problem(t, 1000)
	p.TimeStep = 1e-3
	out, err := NewSolver(NewAnalyticalStrategy(nil), nil, 2).Solve(context.Background(), p)
	assert.ErrorIs(t, err, model.ErrNumericalInstability)
	require.NotNil(t, out)
	assert.Nil(t, out.Field)
	assert.Equal(t, 2, out.Convergence.Attempts)
}

func TestInvalidProblem(t *testing.T) {
	p := problem(t, 1000)
	p.Duration = 0
	_, err := NewSolver(NewAnalyticalStrategy(nil), nil, 0).Solve(context.Background(), p)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

type fakeSession struct {
	calls int
	solve func(call int, req *engine.SolveRequest) (*engine.SolveResponse, error)
}

func (f *fakeSession) Solve(ctx context.Context, req *engine.SolveRequest) (*engine.SolveResponse, error) {
	f.calls++
	return f.solve(f.calls, req)
}

func (f *fakeSession) Close() error { return nil }

func realEngine(req *engine.SolveRequest) (*engine.SolveResponse, error) {
	field, err := server.Solve(context.Background(), req, nil)
	if err != nil {
		return nil, err
	}
	return &engine.SolveResponse{Field: field}, nil
}

func TestEngineBacked(t *testing.T) {
	session := &fakeSession{solve: func(_ int, req *engine.SolveRequest) (*engine.SolveResponse, error) {
		return realEngine(req)
	}}
	p := problem(t, 1000)
	out, err := Select(session, 0, 0, 0, nil).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, model.SolverEngine, out.Mode)
	assert.Equal(t, 1, session.calls)
	assert.Greater(t, out.Field.Peak(), ambient)

	// 与解析解同量级
	analytical, err := NewSolver(NewAnalyticalStrategy(nil), nil, 0).Solve(context.Background(), problem(t, 1000))
	require.NoError(t, err)
	assert.InEpsilon(t, analytical.Field.Peak()-ambient, out.Field.Peak()-ambient, 0.5)
}

func TestEngineLostFallsBack(t *testing.T) {
	session := &fakeSession{solve: func(int, *engine.SolveRequest) (*engine.SolveResponse, error) {
		return nil, errors.Wrap(model.ErrEngineUnavailable, "connection reset")
	}}
	out, err := Select(session, 0, 0, 0, nil).Solve(context.Background(), problem(t, 1000))
	require.NoError(t, err)
	assert.Equal(t, model.SolverAnalytical, out.Mode)
}

func TestEngineTimeoutSurfaces(t *testing.T) {
	session := &fakeSession{solve: func(int, *engine.SolveRequest) (*engine.SolveResponse, error) {
		return nil, errors.Wrap(model.ErrEngineTimeout, "request x")
	}}
	out, err := Select(session, 0, 0, 0, nil).Solve(context.Background(), problem(t, 1000))
	assert.ErrorIs(t, err, model.ErrEngineTimeout)
	assert.Equal(t, 1, session.calls)
	assert.Equal(t, model.SolverEngine, out.Mode)
}

func TestEngineTimeoutRetryBudget(t *testing.T) {
	session := &fakeSession{solve: func(call int, req *engine.SolveRequest) (*engine.SolveResponse, error) {
		if call < 3 {
			return nil, errors.Wrap(model.ErrEngineTimeout, "request x")
		}
		return realEngine(req)
	}}
	out, err := Select(session, 0, 2, 0, nil).Solve(context.Background(), problem(t, 1000))
	require.NoError(t, err)
	assert.Equal(t, 3, session.calls)
	assert.Equal(t, 2, out.Convergence.EngineRetries)
}

func TestEngineInstabilityHalvesStep(t *testing.T) {
	session := &fakeSession{solve: func(call int, req *engine.SolveRequest) (*engine.SolveResponse, error) {
		if call == 1 {
			return nil, engine.Failure{Code: engine.CodeInstability, Message: "diverged"}.Err()
		}
		return realEngine(req)
	}}
	out, err := Select(session, 0, 0, 0, nil).Solve(context.Background(), problem(t, 1000))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Convergence.Attempts)
	assert.Equal(t, 2.5e-5, out.Convergence.TimeStep)
	assert.Len(t, out.Field.Times, 81)
}

// 形状正确、处处等于环境温度的温度场
func flatField(req *engine.SolveRequest) *model.ThermalField {
	f := &model.ThermalField{Ambient: req.Ambient}
	for s := 0; s <= req.Steps; s++ {
		f.Times = append(f.Times, float64(s)*req.TimeStep)
		row := make([]float64, len(req.Mesh.Nodes))
		for i := range row {
			row[i] = req.Ambient
		}
		f.Temperatures = append(f.Temperatures, row)
	}
	return f
}

func TestEngineFieldRejected(t *testing.T) {
	cases := map[string]func(req *engine.SolveRequest) *model.ThermalField{
		"no field": func(*engine.SolveRequest) *model.ThermalField { return nil },
		"wrong ambient": func(req *engine.SolveRequest) *model.ThermalField {
			f := flatField(req)
			f.Ambient = 0
			return f
		},
		"single step": func(req *engine.SolveRequest) *model.ThermalField {
			f := flatField(req)
			f.Times, f.Temperatures = f.Times[:1], f.Temperatures[:1]
			return f
		},
		"below ambient": func(req *engine.SolveRequest) *model.ThermalField {
			f := flatField(req)
			f.Temperatures[3][7] = 100
			return f
		},
		"missing node": func(req *engine.SolveRequest) *model.ThermalField {
			f := flatField(req)
			f.Temperatures[2] = f.Temperatures[2][1:]
			return f
		},
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			session := &fakeSession{solve: func(_ int, req *engine.SolveRequest) (*engine.SolveResponse, error) {
				return &engine.SolveResponse{Field: build(req)}, nil
			}}
			out, err := Select(session, 0, 0, 0, nil).Solve(context.Background(), problem(t, 1000))
			assert.ErrorIs(t, err, model.ErrDataInconsistency)
			assert.Equal(t, 1, session.calls)
			require.NotNil(t, out)
			assert.Nil(t, out.Field)
			assert.Equal(t, model.SolverEngine, out.Mode)
		})
	}
}

func TestEngineNonFiniteFieldHalvesStep(t *testing.T) {
	session := &fakeSession{solve: func(call int, req *engine.SolveRequest) (*engine.SolveResponse, error) {
		if call == 1 {
			f := flatField(req)
			f.Temperatures[5][0] = math.NaN()
			return &engine.SolveResponse{Field: f}, nil
		}
		return realEngine(req)
	}}
	out, err := Select(session, 0, 0, 0, nil).Solve(context.Background(), problem(t, 1000))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Convergence.Attempts)
	assert.Len(t, out.Field.Times, 81)
}
