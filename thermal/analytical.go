package thermal

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"laserdamage/executor"
	"laserdamage/model"
)

// AnalyticalStrategy treats every surface point as a semi-infinite solid under
// the local absorbed flux. Pulses are superposed as on/off step inputs. Surface
// losses are neglected.
type AnalyticalStrategy struct {
	e *executor.Executor
}

func NewAnalyticalStrategy(e *executor.Executor) *AnalyticalStrategy {
	if e == nil {
		e = executor.New(0)
	}
	return &AnalyticalStrategy{e: e}
}

func (*AnalyticalStrategy) Mode() model.SolverMode { return model.SolverAnalytical }

// ierfc is the first integral of the complementary error function.
func ierfc(x float64) float64 {
	return math.Exp(-x*x)/math.SqrtPi - x*math.Erfc(x)
}

// rise is the temperature rise at depth z after tau seconds of constant flux q.
func rise(q, k, alpha, z, tau float64) float64 {
	if tau <= 0 || q == 0 {
		return 0
	}
	d := math.Sqrt(alpha * tau)
	return 2 * q / k * d * ierfc(z/(2*d))
}

func (s *AnalyticalStrategy) Solve(ctx context.Context, p *Problem) (*model.ThermalField, error) {
	if err := p.checkSize(); err != nil {
		return nil, err
	}
	windows, err := p.Source.Windows(p.Duration)
	if err != nil {
		return nil, err
	}
	topo, m := p.Topology, p.Material
	steps := p.Steps()
	n := len(topo.Mesh.Nodes)
	k, alpha := m.ThermalConductivity, m.Diffusivity()

	field := &model.ThermalField{
		Times:        make([]float64, steps+1),
		Temperatures: make([][]float64, steps+1),
		Ambient:      p.Ambient,
	}
	for s := range field.Times {
		field.Times[s] = float64(s) * p.TimeStep
		field.Temperatures[s] = make([]float64, n)
	}

	s.e.Dispatch(n, func(start, end int) {
		for i := start; i < end; i++ {
			if ctx.Err() != nil {
				return
			}
			q := m.Absorptivity * p.Source.Intensity(topo.RadialDistance(topo.Mesh.Nodes[i]))
			z := topo.NodeDepth[i]
			for step, t := range field.Times {
				dT := 0.0
				for _, w := range windows {
					if w[0] >= t {
						break
					}
					dT += rise(q, k, alpha, z, t-w[0]) - rise(q, k, alpha, z, t-w[1])
				}
				// 叠加的舍入误差不能让温度低于环境温度
				field.Temperatures[step][i] = p.Ambient + math.Max(0, dT)
			}
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(model.ErrCanceled, err.Error())
	}
	return field, nil
}
