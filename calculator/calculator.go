package calculator

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"laserdamage/executor"
	"laserdamage/geometry"
	"laserdamage/laser"
	"laserdamage/model"
)

// 低于环境温度的舍入误差容限
const floorTolerance = 1e-9

// Problem is one transient conduction solve on a hex mesh.
type Problem struct {
	Topology   *geometry.Topology
	Material   model.MaterialProperties
	Ambient    float64 // K
	Convection float64 // W/(m²·K)

	// 每个节点吸收的峰值热流密度 W/m²，仅照射面节点非零
	Flux    []float64
	Windows [][2]float64

	TimeStep float64
	Steps    int
}

func (p *Problem) validate() error {
	n := len(p.Topology.Mesh.Nodes)
	switch {
	case len(p.Flux) != n:
		return errors.Wrapf(model.ErrDataInconsistency, "flux has %d nodes, mesh has %d", len(p.Flux), n)
	case !(p.TimeStep > 0):
		return model.Configf("time step must be positive, got %v", p.TimeStep)
	case p.Steps < 1:
		return model.Configf("need at least one step, got %d", p.Steps)
	case !(p.Ambient > 0):
		return model.Configf("ambient temperature must be positive, got %v", p.Ambient)
	case p.Convection < 0:
		return model.Configf("convection coefficient must be non-negative, got %v", p.Convection)
	}
	return nil
}

// Calculator integrates the heat equation with an explicit scheme.
type Calculator struct {
	p *Problem
	d *discretization

	thermalField  []float64 // 温度场容器
	thermalField1 []float64

	// 每计算一个 ▲t 进行一次交换
	alternating bool

	e *executor.Executor
}

func NewCalculator(p *Problem, e *executor.Executor) (*Calculator, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if e == nil {
		e = executor.New(0)
	}
	n := len(p.Topology.Mesh.Nodes)
	c := &Calculator{
		p:             p,
		d:             discretize(p.Topology, p.Material),
		thermalField:  make([]float64, n),
		thermalField1: make([]float64, n),
		alternating:   true,
		e:             e,
	}
	for i := range c.thermalField {
		c.thermalField[i] = p.Ambient
		c.thermalField1[i] = p.Ambient
	}
	return c, nil
}

func (c *Calculator) StableTimeStep() float64 {
	return c.d.calculateTimeStep(c.p.Topology, c.p.Convection, c.p.Material.Emissivity, c.p.Ambient)
}

// 当前温度场与下一时刻温度场
func (c *Calculator) fields() (cur, next []float64) {
	if c.alternating {
		return c.thermalField, c.thermalField1
	}
	return c.thermalField1, c.thermalField
}

// Run integrates Steps steps and returns the field at every step including t=0.
func (c *Calculator) Run(ctx context.Context) (*model.ThermalField, error) {
	p := c.p
	if p.TimeStep > c.StableTimeStep() {
		return nil, errors.Wrapf(model.ErrNumericalInstability,
			"time step %.3g s above stability bound %.3g s", p.TimeStep, c.StableTimeStep())
	}

	start := time.Now()
	field := &model.ThermalField{
		Times:        make([]float64, 0, p.Steps+1),
		Temperatures: make([][]float64, 0, p.Steps+1),
		Ambient:      p.Ambient,
	}
	cur, _ := c.fields()
	field.Times = append(field.Times, 0)
	field.Temperatures = append(field.Temperatures, append([]float64(nil), cur...))

	for s := 1; s <= p.Steps; s++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(model.ErrCanceled, err.Error())
		}
		on := laser.On(p.Windows, float64(s-1)*p.TimeStep)
		if err := c.step(on); err != nil {
			return nil, errors.Wrapf(err, "step %d", s)
		}
		c.alternating = !c.alternating // 仅在这里修改
		cur, _ = c.fields()
		field.Times = append(field.Times, float64(s)*p.TimeStep)
		field.Temperatures = append(field.Temperatures, append([]float64(nil), cur...))
	}

	log.WithFields(log.Fields{
		"nodes":    len(cur),
		"steps":    p.Steps,
		"deltaT":   p.TimeStep,
		"duration": time.Since(start),
	}).Debug("temperature field calculated")
	return field, nil
}

func (c *Calculator) step(on bool) error {
	p, d, topo := c.p, c.d, c.p.Topology
	cur, next := c.fields()
	dt, ta, h, eps := p.TimeStep, p.Ambient, p.Convection, p.Material.Emissivity

	var unstable, belowFloor int32
	c.e.Dispatch(len(cur), func(start, end int) {
		for i := start; i < end; i++ {
			ti := cur[i]
			q := 0.0
			for k := d.offsets[i]; k < d.offsets[i+1]; k++ {
				q += d.g[k] * (cur[d.adj[k]] - ti)
			}
			if on {
				q += p.Flux[i] * topo.IrradiatedArea[i]
			}
			loss := (h + radiationCoefficient(eps, ti, ta)) * topo.ExposedArea[i]
			q -= loss * (ti - ta)
			if dt*(d.conductance[i]+loss) > d.capacity[i] {
				atomic.StoreInt32(&unstable, 1)
			}

			t := ti + dt*q/d.capacity[i]
			if t < ta {
				if ta-t > floorTolerance*ta {
					atomic.StoreInt32(&belowFloor, 1)
				}
				t = ta
			}
			next[i] = t
		}
	})

	if unstable == 1 {
		return errors.Wrap(model.ErrNumericalInstability, "radiative loss exceeds explicit stability bound")
	}
	if belowFloor == 1 {
		return errors.Wrap(model.ErrNumericalInstability, "temperature fell below ambient")
	}
	for _, t := range next {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return errors.Wrap(model.ErrNumericalInstability, "non-finite temperature")
		}
	}
	return nil
}
