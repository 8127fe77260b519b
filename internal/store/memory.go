package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/solar-radiation-ingestion/internal/pipeline"
)

var (
	// ErrNotFound is returned when no run matches a lookup.
	ErrNotFound = errors.New("run not found")
)

// MemoryHistory is a concurrency-safe in-memory log of run reports, oldest first.
type MemoryHistory struct {
	mu sync.RWMutex

	reports []pipeline.RunReport

	// retention configuration
	maxRuns int           // max number of reports kept
	maxAge  time.Duration // max age of finished reports, by StartedAt

	now func() time.Time
}

// NewMemoryHistory creates a new MemoryHistory with optional limits.
// If maxRuns or maxAge is <= 0, that limit is unlimited.
func NewMemoryHistory(maxRuns int, maxAge time.Duration) *MemoryHistory {
	return &MemoryHistory{
		maxRuns: maxRuns,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Save stores report, replacing an earlier report with the same ID, and
// enforces retention.
func (s *MemoryHistory) Save(report pipeline.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i := range s.reports {
		if s.reports[i].ID == report.ID {
			s.reports[i] = report
			replaced = true
			break
		}
	}
	if !replaced {
		s.reports = append(s.reports, report)
	}

	// Enforce retention by count.
	if s.maxRuns > 0 && len(s.reports) > s.maxRuns {
		over := len(s.reports) - s.maxRuns
		s.reports = append([]pipeline.RunReport(nil), s.reports[over:]...)
	}

	// Enforce retention by age. Running reports are kept regardless.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		kept := s.reports[:0]
		for _, r := range s.reports {
			if !r.Finished() || !r.StartedAt.Before(cutoff) {
				kept = append(kept, r)
			}
		}
		s.reports = kept
	}
}

// Latest returns the most recently started run.
func (s *MemoryHistory) Latest() (pipeline.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.reports) == 0 {
		return pipeline.RunReport{}, ErrNotFound
	}
	return s.reports[len(s.reports)-1], nil
}

// List returns up to limit reports, newest first. limit <= 0 returns all.
func (s *MemoryHistory) List(limit int) []pipeline.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.reports)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]pipeline.RunReport, 0, n)
	for i := len(s.reports) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.reports[i])
	}
	return out
}

// Get returns the report with the given ID.
func (s *MemoryHistory) Get(id string) (pipeline.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.reports {
		if r.ID == id {
			return r, nil
		}
	}
	return pipeline.RunReport{}, ErrNotFound
}
