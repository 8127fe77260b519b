package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/solar-radiation-ingestion/internal/pipeline"
	"github.com/i474232898/solar-radiation-ingestion/internal/store"
)

// blockingExecutor holds each run until release is closed.
type blockingExecutor struct {
	started chan struct{}
	release chan struct{}
	err     error

	mu    sync.Mutex
	calls int
	ctxs  []context.Context
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{
		started: make(chan struct{}, 10),
		release: make(chan struct{}),
	}
}

func (e *blockingExecutor) Execute(ctx context.Context, report pipeline.RunReport) (pipeline.RunReport, error) {
	e.mu.Lock()
	e.calls++
	e.ctxs = append(e.ctxs, ctx)
	e.mu.Unlock()

	e.started <- struct{}{}
	<-e.release

	report.FinishedAt = time.Now().UTC()
	if e.err != nil {
		report.Status = pipeline.StatusFailed
		report.Error = e.err.Error()
		return report, e.err
	}
	report.Status = pipeline.StatusSucceeded
	return report, nil
}

func (e *blockingExecutor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func TestRunnerRunRecordsReport(t *testing.T) {
	exec := newBlockingExecutor()
	close(exec.release)
	history := store.NewMemoryHistory(10, 0)
	r := NewRunner(context.Background(), exec, history, time.Minute)

	report, err := r.Run(context.Background(), pipeline.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSucceeded, report.Status)
	assert.False(t, r.Running())

	saved, err := history.Get(report.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSucceeded, saved.Status)
	assert.Equal(t, pipeline.TriggerManual, saved.Trigger)

	_, hasDeadline := exec.ctxs[0].Deadline()
	assert.True(t, hasDeadline)
}

func TestRunnerRecordsFailedRun(t *testing.T) {
	exec := newBlockingExecutor()
	exec.err = errors.New("stage extract_data: connection refused")
	close(exec.release)
	history := store.NewMemoryHistory(10, 0)
	r := NewRunner(context.Background(), exec, history, 0)

	report, err := r.Run(context.Background(), pipeline.TriggerScheduled)
	require.Error(t, err)

	saved, err := history.Get(report.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailed, saved.Status)
	assert.Contains(t, saved.Error, "connection refused")
	assert.False(t, r.Running())
}

func TestRunnerRejectsOverlappingRuns(t *testing.T) {
	exec := newBlockingExecutor()
	history := store.NewMemoryHistory(10, 0)
	r := NewRunner(context.Background(), exec, history, 0)

	id, err := r.Trigger(pipeline.TriggerManual)
	require.NoError(t, err)
	<-exec.started

	running, err := history.Get(id)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusRunning, running.Status)
	assert.True(t, r.Running())

	_, err = r.Trigger(pipeline.TriggerManual)
	assert.ErrorIs(t, err, ErrRunInProgress)
	_, err = r.Run(context.Background(), pipeline.TriggerScheduled)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(exec.release)
	r.Wait()

	done, err := history.Get(id)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSucceeded, done.Status)
	assert.Equal(t, 1, exec.Calls())
	assert.Len(t, history.List(0), 1)

	// the guard is released once the run finishes
	_, err = r.Run(context.Background(), pipeline.TriggerManual)
	assert.NoError(t, err)
	assert.Equal(t, 2, exec.Calls())
}

func TestRunnerWaitCoversSynchronousRun(t *testing.T) {
	exec := newBlockingExecutor()
	r := NewRunner(context.Background(), exec, store.NewMemoryHistory(10, 0), 0)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_, _ = r.Run(context.Background(), pipeline.TriggerScheduled)
	}()
	<-exec.started

	waited := make(chan struct{})
	go func() {
		r.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned while a scheduled run was still active")
	case <-time.After(50 * time.Millisecond):
	}

	close(exec.release)
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after the run finished")
	}
	<-runDone
}

func TestSchedulerRunOnStart(t *testing.T) {
	exec := newBlockingExecutor()
	close(exec.release)
	history := store.NewMemoryHistory(10, 0)
	r := NewRunner(context.Background(), exec, history, 0)

	// far from now so the daily job does not fire during the test
	at := time.Now().UTC().Add(12 * time.Hour).Format("15:04")
	s := New(r, at, time.UTC, true)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-exec.started:
	case <-time.After(2 * time.Second):
		t.Fatal("startup run was not triggered")
	}
	r.Wait()

	latest, err := history.Latest()
	require.NoError(t, err)
	assert.Equal(t, pipeline.TriggerScheduled, latest.Trigger)
	assert.Equal(t, pipeline.StatusSucceeded, latest.Status)
}

func TestSchedulerWithoutRunOnStart(t *testing.T) {
	exec := newBlockingExecutor()
	close(exec.release)
	history := store.NewMemoryHistory(10, 0)
	r := NewRunner(context.Background(), exec, history, 0)

	at := time.Now().UTC().Add(12 * time.Hour).Format("15:04")
	s := New(r, at, nil, false)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()

	assert.Zero(t, exec.Calls())
	_, err := history.Latest()
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSchedulerRejectsBadTime(t *testing.T) {
	r := NewRunner(context.Background(), newBlockingExecutor(), store.NewMemoryHistory(1, 0), 0)
	s := New(r, "25:99", time.UTC, false)
	assert.Error(t, s.Start(context.Background()))
}
