package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"laserdamage/aero"
	"laserdamage/assess"
	"laserdamage/damage"
	"laserdamage/engine"
	"laserdamage/executor"
	"laserdamage/flight"
	"laserdamage/geometry"
	"laserdamage/laser"
	"laserdamage/material"
	"laserdamage/model"
	"laserdamage/store"
	"laserdamage/stress"
	"laserdamage/thermal"
)

// 流水线阶段
const (
	StageSetup      = "setup"
	StageThermal    = "thermal"
	StageStress     = "stress"
	StageDamage     = "damage"
	StageFlight     = "flight"
	StageAssessment = "assessment"
	StagePersist    = "persist"
)

// StageError marks the pipeline stage an error came from.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Deps are the collaborators of a Runner. Session and Store are optional.
type Deps struct {
	Catalog     material.Catalog
	Session     engine.Session
	Integrator  *flight.Integrator
	Translation aero.Translation
	Assessor    *assess.Assessor
	Store       *store.Store
	Options     Options
}

type baseline struct {
	trajectory  []model.FlightState
	termination model.TerminationReason
	margin      float64
	err         error
}

// Runner executes scenarios through the thermal, stress, damage, flight and
// assessment stages. It is safe for concurrent use.
type Runner struct {
	deps Deps
	exec *executor.Executor
	ins  *instruments

	once sync.Once
	base baseline
}

func NewRunner(deps Deps) (*Runner, error) {
	if deps.Integrator == nil || deps.Assessor == nil {
		return nil, model.Configf("runner needs a flight integrator and an assessor")
	}
	if err := deps.Options.Validate(); err != nil {
		return nil, err
	}
	if err := deps.Translation.Validate(); err != nil {
		return nil, err
	}
	ins, err := newInstruments()
	if err != nil {
		return nil, errors.Wrap(err, "create instruments")
	}
	return &Runner{deps: deps, exec: executor.New(deps.Options.Workers), ins: ins}, nil
}

// Baseline integrates the undamaged airframe once and shares the result.
func (r *Runner) Baseline(ctx context.Context) ([]model.FlightState, model.TerminationReason, error) {
	r.once.Do(func() {
		in := r.deps.Integrator
		// 基线与具体运行的取消无关
		r.base.trajectory, r.base.termination, r.base.err = in.Baseline(context.WithoutCancel(ctx))
		r.base.margin = in.StaticMargin(0)
	})
	return r.base.trajectory, r.base.termination, r.base.err
}

type prepared struct {
	material model.MaterialProperties
	topology *geometry.Topology
	source   *laser.Source
}

func (r *Runner) prepare(sc Scenario) (*prepared, error) {
	if sc.Name == "" {
		return nil, model.Configf("scenario has no name")
	}
	m, err := r.deps.Catalog.Lookup(sc.Material)
	if err != nil {
		return nil, err
	}
	src, err := laser.New(sc.Laser)
	if err != nil {
		return nil, err
	}
	mesh, err := sc.Plate.Mesh()
	if err != nil {
		return nil, err
	}
	topo, err := geometry.Analyze(mesh)
	if err != nil {
		return nil, err
	}
	if !(sc.Duration > 0) || !(sc.TimeStep > 0) {
		return nil, model.Configf("scenario %s needs a positive duration and time step", sc.Name)
	}
	return &prepared{material: m, topology: topo, source: src}, nil
}

// Run executes one scenario. On failure the result holds every stage that
// completed, its Failure names the failed stage, and the error is a
// *StageError.
func (r *Runner) Run(ctx context.Context, sc Scenario) (*model.SimulationResult, error) {
	start := time.Now()
	res := &model.SimulationResult{
		RunID: uuid.NewString(),
		Scenario: model.ScenarioInfo{
			Name:     sc.Name,
			Laser:    sc.Laser,
			Duration: sc.Duration,
			TimeStep: sc.TimeStep,
		},
	}
	logger := log.WithFields(log.Fields{"run": res.RunID, "scenario": sc.Name})

	err := r.pipeline(ctx, sc, res, logger)
	if err != nil {
		var se *StageError
		if !errors.As(err, &se) {
			se = &StageError{Stage: StageSetup, Err: err}
		}
		res.Failure = &model.Failure{Stage: se.Stage, Kind: model.KindOf(se.Err), Message: se.Err.Error()}
		logger.WithError(err).WithField("kind", res.Failure.Kind).Error("scenario failed")
		err = se
	}

	if r.deps.Store != nil {
		if serr := r.deps.Store.Save(context.WithoutCancel(ctx), res); serr != nil {
			logger.WithError(serr).Error("result not persisted")
			if err == nil {
				err = &StageError{Stage: StagePersist, Err: serr}
			}
		}
	}
	r.ins.record(ctx, res, time.Since(start).Seconds(), r.deps.Session != nil)

	if err == nil {
		logger.WithFields(log.Fields{
			"severity": res.Assessment.Severity,
			"mode":     res.SolverMode,
			"elapsed":  time.Since(start),
		}).Info("scenario assessed")
	}
	return res, err
}

func checkpoint(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: stage, Err: errors.Wrap(model.ErrCanceled, err.Error())}
	}
	return nil
}

func (r *Runner) pipeline(ctx context.Context, sc Scenario, res *model.SimulationResult, logger *log.Entry) error {
	opts := r.deps.Options
	if err := checkpoint(ctx, StageSetup); err != nil {
		return err
	}
	p, err := r.prepare(sc)
	if err != nil {
		return &StageError{Stage: StageSetup, Err: err}
	}
	res.Scenario.Material = p.material
	res.Scenario.Nodes = len(p.topology.Mesh.Nodes)
	res.Scenario.Elements = len(p.topology.Mesh.Elements)

	// 热分析
	if err := checkpoint(ctx, StageThermal); err != nil {
		return err
	}
	solver := thermal.Select(r.deps.Session, opts.EngineTimeout, opts.EngineRetries, opts.MaxAttempts, r.exec)
	res.SolverMode = solver.Mode()
	outcome, err := solver.Solve(ctx, &thermal.Problem{
		Topology:   p.topology,
		Material:   p.material,
		Source:     p.source,
		Ambient:    opts.Ambient,
		Convection: opts.Convection,
		Duration:   sc.Duration,
		TimeStep:   sc.TimeStep,
	})
	if outcome != nil {
		res.SolverMode = outcome.Mode
		res.Convergence = outcome.Convergence
	}
	if err != nil {
		return &StageError{Stage: StageThermal, Err: err}
	}
	res.Thermal = outcome.Field
	logger.WithFields(log.Fields{
		"mode":     outcome.Mode,
		"attempts": outcome.Convergence.Attempts,
		"peak":     outcome.Field.Peak(),
	}).Info("thermal field solved")

	// 热应力
	if err := checkpoint(ctx, StageStress); err != nil {
		return err
	}
	sf, err := stress.NewSolver(r.exec).Solve(ctx, p.topology, p.material, res.Thermal)
	if err != nil {
		return &StageError{Stage: StageStress, Err: err}
	}
	res.Stress = sf
	logger.WithFields(log.Fields{
		"peak":          sf.Peak(),
		"over_ultimate": len(stress.Exceeds(sf, p.material)),
	}).Info("thermal stress solved")

	// 毁伤
	if err := checkpoint(ctx, StageDamage); err != nil {
		return err
	}
	summary, states, err := damage.NewQuantifier(r.exec).Quantify(ctx, p.topology, p.material, res.Thermal, res.Stress)
	if err != nil {
		return &StageError{Stage: StageDamage, Err: err}
	}
	res.Damage, res.DamageStates = summary, states
	effect := r.deps.Translation.Translate(*summary, p.material)
	res.Effect = &effect

	// 毁伤后飞行
	if err := checkpoint(ctx, StageFlight); err != nil {
		return err
	}
	base, baseReason, err := r.Baseline(ctx)
	if err != nil {
		return &StageError{Stage: StageFlight, Err: err}
	}
	res.Baseline = base
	in := r.deps.Integrator
	traj, reason, err := in.Run(ctx, in.Initial(), effect)
	res.Trajectory, res.Termination = traj, reason
	if err != nil {
		return &StageError{Stage: StageFlight, Err: err}
	}

	if err := checkpoint(ctx, StageAssessment); err != nil {
		return err
	}
	energy, err := p.source.Energy(sc.Duration)
	if err != nil {
		return &StageError{Stage: StageAssessment, Err: err}
	}
	res.Assessment = r.deps.Assessor.Assess(assess.Input{
		Damage:              *summary,
		Material:            p.material,
		Trajectory:          traj,
		Baseline:            base,
		Termination:         reason,
		BaselineTermination: baseReason,
		Margin:              in.StaticMargin(effect.Level),
		BaselineMargin:      r.base.margin,
		Energy:              energy,
		PeakIntensity:       p.source.PeakIntensity(),
		Ambient:             opts.Ambient,
	})
	return nil
}
