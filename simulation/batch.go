package simulation

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"laserdamage/model"
)

// Outcome is the result of one scenario in a batch.
type Outcome struct {
	Scenario string
	Result   *model.SimulationResult
	Err      error
}

// RunBatch runs scenarios on a pool of workers. A failing scenario never stops
// the others; outcomes are returned in scenario order.
func (r *Runner) RunBatch(ctx context.Context, scenarios []Scenario, workers int) []Outcome {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(scenarios) {
		workers = len(scenarios)
	}
	out := make([]Outcome, len(scenarios))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = r.runIsolated(ctx, scenarios[i])
			}
		}()
	}
	for i := range scenarios {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
		}
	}
	log.WithFields(log.Fields{"scenarios": len(scenarios), "failed": failed, "workers": workers}).Info("batch finished")
	return out
}

func (r *Runner) runIsolated(ctx context.Context, sc Scenario) (o Outcome) {
	o.Scenario = sc.Name
	defer func() {
		if p := recover(); p != nil {
			o.Err = &StageError{Stage: StageSetup, Err: errors.New(fmt.Sprint("panic: ", p))}
			log.WithField("scenario", sc.Name).Errorf("scenario panicked: %v", p)
		}
	}()
	o.Result, o.Err = r.Run(ctx, sc)
	return o
}
