package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i474232898/solar-radiation-ingestion/internal/pipeline"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// Executor runs the pipeline for a prepared report.
type Executor interface {
	Execute(ctx context.Context, report pipeline.RunReport) (pipeline.RunReport, error)
}

// History records run reports.
type History interface {
	Save(report pipeline.RunReport)
}

// Runner allows at most one active run and saves every report to history,
// once when the run starts and again when it finishes.
type Runner struct {
	exec    Executor
	history History
	timeout time.Duration

	// base bounds background runs started by Trigger.
	base context.Context

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewRunner creates a Runner. A timeout <= 0 leaves runs unbounded.
func NewRunner(base context.Context, exec Executor, history History, timeout time.Duration) *Runner {
	return &Runner{
		exec:    exec,
		history: history,
		timeout: timeout,
		base:    base,
	}
}

// Run executes a run synchronously.
func (r *Runner) Run(ctx context.Context, trigger pipeline.Trigger) (pipeline.RunReport, error) {
	report, err := r.begin(trigger)
	if err != nil {
		return pipeline.RunReport{}, err
	}
	return r.execute(ctx, report)
}

// Trigger starts a run in the background and returns its ID.
func (r *Runner) Trigger(trigger pipeline.Trigger) (string, error) {
	report, err := r.begin(trigger)
	if err != nil {
		return "", err
	}

	go func() {
		_, _ = r.execute(r.base, report)
	}()
	return report.ID, nil
}

// Running reports whether a run is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Wait blocks until every active run, started by Run or Trigger, has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) begin(trigger pipeline.Trigger) (pipeline.RunReport, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return pipeline.RunReport{}, ErrRunInProgress
	}
	r.running = true
	r.wg.Add(1)
	r.mu.Unlock()

	report := pipeline.NewReport(trigger)
	r.history.Save(report)
	return report, nil
}

func (r *Runner) execute(ctx context.Context, report pipeline.RunReport) (pipeline.RunReport, error) {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		r.wg.Done()
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	out, err := r.exec.Execute(ctx, report)
	r.history.Save(out)
	return out, err
}
