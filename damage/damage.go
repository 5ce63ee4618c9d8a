package damage

import (
	"context"
	"math"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"laserdamage/executor"
	"laserdamage/geometry"
	"laserdamage/model"
)

// State is the damage implied by a single temperature and stress sample.
// Fracture outranks vaporization, which outranks melting.
func State(m model.MaterialProperties, temperature, stress float64) model.DamageState {
	switch {
	case stress >= m.UltimateStrength:
		return model.Fractured
	case temperature >= m.VaporizationPoint:
		return model.Vaporized
	case temperature >= m.MeltingPoint:
		return model.Melted
	default:
		return model.Intact
	}
}

// Escalate moves cur to next only when next ranks strictly higher, so states
// never revert and the first terminal state is kept.
func Escalate(cur, next model.DamageState) model.DamageState {
	if next.Rank() > cur.Rank() {
		return next
	}
	return cur
}

// Evolve returns the element state after each step of its temperature and
// stress history.
func Evolve(m model.MaterialProperties, temperatures, stresses []float64) ([]model.DamageState, error) {
	if len(temperatures) != len(stresses) {
		return nil, errors.Wrapf(model.ErrDataInconsistency, "%d temperature samples, %d stress samples", len(temperatures), len(stresses))
	}
	states := make([]model.DamageState, len(temperatures))
	cur := model.Intact
	for i := range temperatures {
		cur = Escalate(cur, State(m, temperatures[i], stresses[i]))
		states[i] = cur
	}
	return states, nil
}

// Classify returns the final state of an element history.
func Classify(m model.MaterialProperties, temperatures, stresses []float64) (model.DamageState, error) {
	states, err := Evolve(m, temperatures, stresses)
	if err != nil {
		return model.Intact, err
	}
	if len(states) == 0 {
		return model.Intact, nil
	}
	return states[len(states)-1], nil
}

type Quantifier struct {
	e *executor.Executor
}

func NewQuantifier(e *executor.Executor) *Quantifier {
	if e == nil {
		e = executor.New(0)
	}
	return &Quantifier{e: e}
}

func checkFields(topo *geometry.Topology, thermal *model.ThermalField, stress *model.StressField) error {
	if thermal == nil || stress == nil {
		return errors.Wrap(model.ErrDataInconsistency, "missing field")
	}
	if len(thermal.Temperatures) != len(stress.VonMises) {
		return errors.Wrapf(model.ErrDataInconsistency, "thermal field has %d steps, stress field %d", len(thermal.Temperatures), len(stress.VonMises))
	}
	nodes, elements := len(topo.Mesh.Nodes), len(topo.Mesh.Elements)
	for s := range thermal.Temperatures {
		if len(thermal.Temperatures[s]) != nodes {
			return errors.Wrapf(model.ErrDataInconsistency, "step %d has %d node temperatures, mesh has %d nodes", s, len(thermal.Temperatures[s]), nodes)
		}
		if len(stress.VonMises[s]) != elements {
			return errors.Wrapf(model.ErrDataInconsistency, "step %d has %d element stresses, mesh has %d elements", s, len(stress.VonMises[s]), elements)
		}
	}
	return nil
}

// Quantify classifies every element and aggregates the damaged volume and depth.
func (q *Quantifier) Quantify(ctx context.Context, topo *geometry.Topology, m model.MaterialProperties,
	thermal *model.ThermalField, stress *model.StressField) (*model.DamageSummary, []model.DamageState, error) {
	if err := checkFields(topo, thermal, stress); err != nil {
		return nil, nil, err
	}

	elements := topo.Mesh.Elements
	steps := len(thermal.Temperatures)
	states := make([]model.DamageState, len(elements))
	q.e.Dispatch(len(elements), func(start, end int) {
		temps := make([]float64, steps)
		sigma := make([]float64, steps)
		for e := start; e < end; e++ {
			if ctx.Err() != nil {
				return
			}
			for s := 0; s < steps; s++ {
				temps[s] = thermal.ElementMean(s, elements[e])
				sigma[s] = stress.VonMises[s][e]
			}
			// 长度已校验
			states[e], _ = Classify(m, temps, sigma)
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, nil, errors.Wrap(model.ErrCanceled, err.Error())
	}

	summary := &model.DamageSummary{
		PeakTemperature: thermal.Peak(),
		PeakStress:      stress.Peak(),
		TotalVolume:     topo.TotalVolume,
		ReferenceDepth:  topo.ReferenceDepth,
	}
	for e, st := range states {
		switch st {
		case model.Intact:
			continue
		case model.Melted:
			summary.Melted++
		case model.Vaporized:
			summary.Vaporized++
			summary.VaporizedVolume += topo.Volumes[e]
		case model.Fractured:
			summary.Fractured++
		}
		summary.DamageVolume += topo.Volumes[e]
		summary.MaxDepth = math.Max(summary.MaxDepth, topo.ElementDepth[e])
	}

	log.WithFields(log.Fields{
		"volume":    summary.DamageVolume,
		"depth":     summary.MaxDepth,
		"melted":    summary.Melted,
		"vaporized": summary.Vaporized,
		"fractured": summary.Fractured,
	}).Debug("damage quantified")
	return summary, states, nil
}
