package thermal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"laserdamage/calculator"
	"laserdamage/engine"
	"laserdamage/executor"
	"laserdamage/model"
)

const DefaultMaxAttempts = 6

// Strategy is one way of producing a temperature field.
type Strategy interface {
	Mode() model.SolverMode
	Solve(ctx context.Context, p *Problem) (*model.ThermalField, error)
}

type Outcome struct {
	Field       *model.ThermalField
	Mode        model.SolverMode
	Convergence model.Convergence
}

// Solver applies the stability check and step-halving retry around a
// strategy, and falls back to the analytical strategy when the engine is lost.
type Solver struct {
	primary     Strategy
	fallback    Strategy
	maxAttempts int
}

func NewSolver(primary, fallback Strategy, maxAttempts int) *Solver {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Solver{primary: primary, fallback: fallback, maxAttempts: maxAttempts}
}

// Select builds a solver for the session, or an analytical-only solver when
// there is no engine.
func Select(session engine.Session, timeout time.Duration, retries, maxAttempts int, e *executor.Executor) *Solver {
	analytical := NewAnalyticalStrategy(e)
	if session == nil {
		return NewSolver(analytical, nil, maxAttempts)
	}
	return NewSolver(&EngineStrategy{Session: session, Timeout: timeout, Retries: retries}, analytical, maxAttempts)
}

func (s *Solver) Mode() model.SolverMode { return s.primary.Mode() }

func (s *Solver) Solve(ctx context.Context, p *Problem) (*Outcome, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	bound := calculator.StableTimeStep(p.Topology, p.Material, p.Convection, p.Ambient)
	out := &Outcome{
		Mode: s.primary.Mode(),
		Convergence: model.Convergence{
			InitialTimeStep: p.TimeStep,
			StableTimeStep:  bound,
		},
	}
	strategy := s.primary
	attempt := *p

	var err error
	for n := 1; n <= s.maxAttempts; n++ {
		out.Convergence.Attempts = n
		out.Convergence.TimeStep = attempt.TimeStep
		if ctx.Err() != nil {
			return out, errors.Wrap(model.ErrCanceled, ctx.Err().Error())
		}

		if attempt.TimeStep > bound {
			err = errors.Wrapf(model.ErrNumericalInstability, "time step %.3g s above stability bound %.3g s", attempt.TimeStep, bound)
		} else {
			var field *model.ThermalField
			field, err = strategy.Solve(ctx, &attempt)
			if errors.Is(err, model.ErrEngineUnavailable) && s.fallback != nil && strategy != s.fallback {
				log.WithError(err).Warn("engine lost, switching to analytical fallback")
				strategy = s.fallback
				out.Mode = strategy.Mode()
				field, err = strategy.Solve(ctx, &attempt)
			}
			out.Convergence.EngineRetries = attempt.EngineRetries
			if err == nil {
				// 引擎返回的温度场按本次求解的参数校验
				if field == nil {
					err = errors.Wrapf(model.ErrDataInconsistency, "%s strategy returned no field", strategy.Mode())
				} else if err = field.Check(len(p.Topology.Mesh.Nodes), attempt.Steps(), p.Ambient); err == nil {
					out.Field = field
					return out, nil
				}
			}
		}

		if !errors.Is(err, model.ErrNumericalInstability) {
			return out, err
		}
		log.WithFields(log.Fields{
			"attempt": n,
			"deltaT":  attempt.TimeStep,
			"bound":   bound,
		}).Warn("unstable thermal step, halving")
		attempt.TimeStep /= 2
	}
	return out, errors.Wrapf(err, "no stable solution after %d attempts", s.maxAttempts)
}
