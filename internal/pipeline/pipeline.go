// Package pipeline chains the ingestion stages: ensure the destination table,
// fetch the ensemble forecast, flatten it into records and insert them.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/i474232898/solar-radiation-ingestion/internal/logger"
	"github.com/i474232898/solar-radiation-ingestion/internal/solar"
)

// SchemaInitializer creates the destination table when it is missing.
type SchemaInitializer interface {
	EnsureSchema(ctx context.Context) error
}

// Fetcher retrieves one forecast response.
type Fetcher interface {
	Fetch(ctx context.Context) (solar.ForecastResponse, error)
}

// Loader persists records and returns how many were written.
type Loader interface {
	Load(ctx context.Context, records []solar.Record) (int, error)
}

// StageError wraps the error of the stage that stopped a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline runs the four stages strictly in sequence. It keeps no state
// between runs.
type Pipeline struct {
	schema  SchemaInitializer
	fetcher Fetcher
	loader  Loader
	metrics *Metrics
}

// New creates a Pipeline. metrics may be nil.
func New(schema SchemaInitializer, fetcher Fetcher, loader Loader, metrics *Metrics) *Pipeline {
	return &Pipeline{
		schema:  schema,
		fetcher: fetcher,
		loader:  loader,
		metrics: metrics,
	}
}

// Run executes a standalone run.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	return p.Execute(ctx, NewReport(TriggerOnce))
}

// Execute runs the stages for report and returns it in a terminal state. The
// first failing stage stops the run; its error is returned as *StageError.
func (p *Pipeline) Execute(ctx context.Context, report RunReport) (RunReport, error) {
	logger.Infof("pipeline: run %s (%s) started", report.ID, report.Trigger)

	err := p.execute(ctx, &report)
	report.finish(err)
	p.metrics.observeRun(report)

	if err != nil {
		logger.Errorf("pipeline: run %s failed: %v", report.ID, err)
		return report, err
	}
	logger.Infof("pipeline: run %s succeeded, %d records loaded in %s",
		report.ID, report.Loaded, report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

func (p *Pipeline) execute(ctx context.Context, report *RunReport) error {
	if err := p.stage(report, StageCreateTable, func() error {
		return p.schema.EnsureSchema(ctx)
	}); err != nil {
		return err
	}

	var resp solar.ForecastResponse
	if err := p.stage(report, StageExtract, func() error {
		var err error
		resp, err = p.fetcher.Fetch(ctx)
		return err
	}); err != nil {
		return err
	}

	var records []solar.Record
	if err := p.stage(report, StageTransform, func() error {
		var err error
		records, err = solar.Transform(resp)
		report.Fetched = len(records)
		return err
	}); err != nil {
		return err
	}

	return p.stage(report, StageLoad, func() error {
		n, err := p.loader.Load(ctx, records)
		report.Loaded = n
		p.metrics.recordLoaded(n)
		return err
	})
}

// stage times fn, appends its outcome to report and wraps any error.
func (p *Pipeline) stage(report *RunReport, name string, fn func() error) error {
	logger.Debugf("pipeline: run %s stage %s started", report.ID, name)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	sr := StageReport{Name: name, Duration: elapsed}
	if err != nil {
		sr.Err = err.Error()
	}
	report.Stages = append(report.Stages, sr)
	p.metrics.observeStage(name, elapsed, err)

	if err != nil {
		return &StageError{Stage: name, Err: err}
	}
	logger.Infof("pipeline: run %s stage %s done in %s", report.ID, name, elapsed)
	return nil
}
