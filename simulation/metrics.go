package simulation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"laserdamage/model"
)

const instrumentationName = "laserdamage/simulation"

type instruments struct {
	runs      metric.Int64Counter
	fallbacks metric.Int64Counter
	retries   metric.Int64Counter
	duration  metric.Float64Histogram
}

// 全局 provider 未配置时为 no-op
func newInstruments() (*instruments, error) {
	m := otel.Meter(instrumentationName)
	var (
		ins instruments
		err error
	)
	if ins.runs, err = m.Int64Counter("simulation.runs",
		metric.WithDescription("Scenario runs by outcome")); err != nil {
		return nil, err
	}
	if ins.fallbacks, err = m.Int64Counter("simulation.fallbacks",
		metric.WithDescription("Runs that lost the engine and used the analytical solver")); err != nil {
		return nil, err
	}
	if ins.retries, err = m.Int64Counter("simulation.engine.retries",
		metric.WithDescription("Engine requests retried after a timeout")); err != nil {
		return nil, err
	}
	if ins.duration, err = m.Float64Histogram("simulation.run.duration",
		metric.WithDescription("Scenario wall time"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &ins, nil
}

func (ins *instruments) record(ctx context.Context, r *model.SimulationResult, seconds float64, engineSession bool) {
	outcome := "ok"
	if r.Failure != nil {
		outcome = r.Failure.Kind
	}
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("solver_mode", string(r.SolverMode)),
	)
	ins.runs.Add(ctx, 1, attrs)
	ins.duration.Record(ctx, seconds, attrs)
	if engineSession && r.SolverMode == model.SolverAnalytical {
		ins.fallbacks.Add(ctx, 1)
	}
	if r.Convergence.EngineRetries > 0 {
		ins.retries.Add(ctx, int64(r.Convergence.EngineRetries))
	}
}
