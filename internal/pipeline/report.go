package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerOnce      Trigger = "once"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Stage names, in execution order.
const (
	StageCreateTable = "create_table"
	StageExtract     = "extract_data"
	StageTransform   = "transform_data"
	StageLoad        = "load_data"
)

// StageReport is the outcome of one stage.
type StageReport struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"durationNs"`
	Err      string        `json:"error,omitempty"`
}

// RunReport summarizes one run. Stages lists only the stages that were started.
type RunReport struct {
	ID         string        `json:"id"`
	Trigger    Trigger       `json:"trigger"`
	Status     Status        `json:"status"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt,omitempty"`
	Fetched    int           `json:"fetched"`
	Loaded     int           `json:"loaded"`
	Stages     []StageReport `json:"stages"`
	Error      string        `json:"error,omitempty"`
}

// NewReport returns a running report with a fresh ID.
func NewReport(trigger Trigger) RunReport {
	return RunReport{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
		Stages:    []StageReport{},
	}
}

// Finished reports whether the run has reached a terminal status.
func (r RunReport) Finished() bool {
	return r.Status == StatusSucceeded || r.Status == StatusFailed
}

func (r *RunReport) finish(err error) {
	r.FinishedAt = time.Now().UTC()
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = StatusSucceeded
}
