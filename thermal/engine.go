package thermal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"laserdamage/engine"
	"laserdamage/model"
)

// EngineStrategy delegates the solve to an external engine session.
type EngineStrategy struct {
	Session engine.Session
	// 单次求解的超时时间，0 表示只受调用方 ctx 约束
	Timeout time.Duration
	// 超时后的重试次数，默认不重试
	Retries int
}

func (*EngineStrategy) Mode() model.SolverMode { return model.SolverEngine }

func (s *EngineStrategy) Solve(ctx context.Context, p *Problem) (*model.ThermalField, error) {
	if err := p.checkSize(); err != nil {
		return nil, err
	}
	windows, err := p.Source.Windows(p.Duration)
	if err != nil {
		return nil, err
	}
	req := &engine.SolveRequest{
		Mesh:       p.Topology.Mesh,
		Material:   p.Material,
		Ambient:    p.Ambient,
		Convection: p.Convection,
		Flux:       p.Flux(),
		Windows:    windows,
		TimeStep:   p.TimeStep,
		Steps:      p.Steps(),
	}

	for attempt := 0; ; attempt++ {
		resp, err := s.solveOnce(ctx, req)
		if err == nil {
			return resp.Field, nil
		}
		if !errors.Is(err, model.ErrEngineTimeout) || attempt >= s.Retries || ctx.Err() != nil {
			return nil, err
		}
		p.EngineRetries++
		log.WithError(err).WithField("attempt", attempt+1).Warn("engine solve timed out, retrying")
	}
}

func (s *EngineStrategy) solveOnce(ctx context.Context, req *engine.SolveRequest) (*engine.SolveResponse, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	return s.Session.Solve(ctx, req)
}
