package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/solar-radiation-ingestion/internal/logger"
	"github.com/i474232898/solar-radiation-ingestion/internal/pipeline"
)

// Scheduler runs the pipeline once a day at a fixed wall-clock time. Missed
// days are not caught up.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	runner     *Runner
	at         string
	runOnStart bool
}

// New creates a Scheduler firing daily at at (HH:MM) in loc.
func New(runner *Runner, at string, loc *time.Location, runOnStart bool) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:  s,
		runner:     runner,
		at:         at,
		runOnStart: runOnStart,
	}
}

// Start schedules the daily job and starts the underlying scheduler. With
// runOnStart, one run is also triggered immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(1).Day().At(s.at).Do(func() {
		logger.Infof("scheduler: running daily ingestion")
		if _, err := s.runner.Run(ctx, pipeline.TriggerScheduled); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				logger.Warnf("scheduler: skipped, %v", err)
				return
			}
			logger.Warnf("scheduler: daily ingestion failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	logger.Infof("scheduler: daily ingestion at %s %s", s.at, s.scheduler.Location())

	if s.runOnStart {
		id, err := s.runner.Trigger(pipeline.TriggerScheduled)
		if err != nil {
			logger.Warnf("scheduler: startup run not started: %v", err)
		} else {
			logger.Infof("scheduler: startup run %s triggered", id)
		}
	}
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
