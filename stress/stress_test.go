package stress

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laserdamage/geometry"
	"laserdamage/material"
	"laserdamage/model"
)

const ambient = 293.15

func setup(t *testing.T) (*geometry.Topology, model.MaterialProperties) {
	mesh, err := geometry.Plate{Length: 4e-3, Width: 4e-3, Thickness: 1e-3, NX: 4, NY: 4, NZ: 2}.Mesh()
	require.NoError(t, err)
	topo, err := geometry.Analyze(mesh)
	require.NoError(t, err)
	m, err := material.Default().Lookup(material.Aluminum6061)
	require.NoError(t, err)
	return topo, m
}

func field(topo *geometry.Topology, temp func(p model.Vec3) float64) *model.ThermalField {
	f := &model.ThermalField{Times: []float64{0, 1e-3}, Ambient: ambient}
	base := make([]float64, len(topo.Mesh.Nodes))
	step := make([]float64, len(topo.Mesh.Nodes))
	for i, p := range topo.Mesh.Nodes {
		base[i] = ambient
		step[i] = temp(p)
	}
	f.Temperatures = [][]float64{base, step}
	return f
}

func TestAmbientFieldIsStressFree(t *testing.T) {
	topo, m := setup(t)
	out, err := NewSolver(nil).Solve(context.Background(), topo, m, field(topo, func(model.Vec3) float64 { return ambient }))
	require.NoError(t, err)
	require.Len(t, out.VonMises, 2)
	assert.InDelta(t, 0, out.Peak(), 1e-6)
}

func TestUniformRiseIsRestrainedExpansion(t *testing.T) {
	topo, m := setup(t)
	dT := 50.0
	out, err := NewSolver(nil).Solve(context.Background(), topo, m, field(topo, func(model.Vec3) float64 { return ambient + dT }))
	require.NoError(t, err)

	want := m.YoungsModulus * m.ThermalExpansion * dT / (1 - m.PoissonRatio)
	for e := range topo.Mesh.Elements {
		assert.InDelta(t, 0, out.VonMises[0][e], 1e-6)
		assert.InEpsilon(t, want, out.VonMises[1][e], 1e-9)
	}
}

func TestInPlaneGradientAddsShear(t *testing.T) {
	topo, m := setup(t)
	g := 1e4 // K/m
	f := field(topo, func(p model.Vec3) float64 { return ambient + g*p.X })
	out, err := NewSolver(nil).Solve(context.Background(), topo, m, f)
	require.NoError(t, err)

	for e, el := range topo.Mesh.Elements {
		s := m.YoungsModulus * m.ThermalExpansion * (f.ElementMean(1, el) - ambient) / (1 - m.PoissonRatio)
		tau := m.YoungsModulus * m.ThermalExpansion / (2 * (1 + m.PoissonRatio)) * g * topo.Extents[e]
		assert.InEpsilon(t, math.Sqrt(s*s+3*tau*tau), out.VonMises[1][e], 1e-9)
	}
}

func TestStressGrowsWithTemperature(t *testing.T) {
	topo, m := setup(t)
	prev := 0.0
	for _, dT := range []float64{10, 100, 400} {
		out, err := NewSolver(nil).Solve(context.Background(), topo, m, field(topo, func(p model.Vec3) float64 {
			return ambient + dT*p.Z/1e-3
		}))
		require.NoError(t, err)
		assert.Greater(t, out.Peak(), prev)
		prev = out.Peak()
	}
}

func TestMismatchedField(t *testing.T) {
	topo, m := setup(t)
	f := field(topo, func(model.Vec3) float64 { return ambient })
	f.Temperatures[1] = f.Temperatures[1][:3]
	_, err := NewSolver(nil).Solve(context.Background(), topo, m, f)
	assert.ErrorIs(t, err, model.ErrDataInconsistency)

	_, err = NewSolver(nil).Solve(context.Background(), topo, m, &model.ThermalField{Ambient: ambient})
	assert.ErrorIs(t, err, model.ErrDataInconsistency)
}

func TestSolveCanceled(t *testing.T) {
	topo, m := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSolver(nil).Solve(ctx, topo, m, field(topo, func(model.Vec3) float64 { return ambient }))
	assert.ErrorIs(t, err, model.ErrCanceled)
}

func TestExceeds(t *testing.T) {
	m := model.MaterialProperties{UltimateStrength: 100}
	f := &model.StressField{
		Times:    []float64{0, 1},
		VonMises: [][]float64{{0, 0, 0}, {50, 100, 150}},
	}
	assert.Equal(t, []int{1, 2}, Exceeds(f, m))
	assert.Nil(t, Exceeds(&model.StressField{}, m))
}
