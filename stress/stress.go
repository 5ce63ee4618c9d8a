package stress

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"laserdamage/executor"
	"laserdamage/geometry"
	"laserdamage/model"
)

// Solver computes thermo-elastic von Mises stress per element from a
// temperature field. In-plane expansion is taken as fully restrained by the
// surrounding cooler material; in-plane temperature gradients add transverse
// shear across the element.
type Solver struct {
	e *executor.Executor
}

func NewSolver(e *executor.Executor) *Solver {
	if e == nil {
		e = executor.New(0)
	}
	return &Solver{e: e}
}

// 单元梯度的最小二乘算子 (AᵀA)⁻¹Aᵀ，A 的行为节点相对形心的坐标
type gradientOperator [3][8]float64

func gradientOperators(topo *geometry.Topology) ([]gradientOperator, error) {
	mesh := topo.Mesh
	ops := make([]gradientOperator, len(mesh.Elements))
	for e, el := range mesh.Elements {
		a := mat.NewDense(8, 3, nil)
		for r, n := range el.Nodes {
			d := mesh.Nodes[n].Sub(topo.Centroids[e])
			a.SetRow(r, []float64{d.X, d.Y, d.Z})
		}
		var ata, inv, op mat.Dense
		ata.Mul(a.T(), a)
		if err := inv.Inverse(&ata); err != nil {
			return nil, errors.Wrapf(model.ErrConfiguration, "element %d: %v", e, err)
		}
		op.Mul(&inv, a.T())
		for i := 0; i < 3; i++ {
			for j := 0; j < 8; j++ {
				ops[e][i][j] = op.At(i, j)
			}
		}
	}
	return ops, nil
}

func (s *Solver) Solve(ctx context.Context, topo *geometry.Topology, m model.MaterialProperties, field *model.ThermalField) (*model.StressField, error) {
	if field == nil || len(field.Temperatures) == 0 {
		return nil, errors.Wrap(model.ErrDataInconsistency, "empty temperature field")
	}
	nodes := len(topo.Mesh.Nodes)
	for step, temps := range field.Temperatures {
		if len(temps) != nodes {
			return nil, errors.Wrapf(model.ErrDataInconsistency, "step %d has %d nodes, mesh has %d", step, len(temps), nodes)
		}
	}
	ops, err := gradientOperators(topo)
	if err != nil {
		return nil, err
	}

	elements := topo.Mesh.Elements
	normal := topo.Normal
	restrained := m.YoungsModulus * m.ThermalExpansion / (1 - m.PoissonRatio)
	shear := m.YoungsModulus * m.ThermalExpansion / (2 * (1 + m.PoissonRatio))

	out := &model.StressField{
		Times:    append([]float64(nil), field.Times...),
		VonMises: make([][]float64, len(field.Temperatures)),
	}
	for step := range out.VonMises {
		out.VonMises[step] = make([]float64, len(elements))
	}

	s.e.Dispatch(len(elements), func(start, end int) {
		for e := start; e < end; e++ {
			if ctx.Err() != nil {
				return
			}
			el, op := elements[e], &ops[e]
			for step := range field.Temperatures {
				mean := field.ElementMean(step, el)
				var g model.Vec3
				for j, n := range el.Nodes {
					dt := field.Temperatures[step][n] - mean
					g.X += op[0][j] * dt
					g.Y += op[1][j] * dt
					g.Z += op[2][j] * dt
				}
				tangential := g.Sub(normal.Scale(g.Dot(normal))).Norm()

				sigma := restrained * (mean - field.Ambient)
				tau := shear * tangential * topo.Extents[e]
				out.VonMises[step][e] = math.Sqrt(sigma*sigma + 3*tau*tau)
			}
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(model.ErrCanceled, err.Error())
	}
	return out, nil
}

// Exceeds lists the elements whose stress reaches the ultimate strength of m
// at any step.
func Exceeds(field *model.StressField, m model.MaterialProperties) []int {
	threshold := m.UltimateStrength
	if len(field.VonMises) == 0 {
		return nil
	}
	var out []int
	for e := range field.VonMises[0] {
		for _, step := range field.VonMises {
			if step[e] >= threshold {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
