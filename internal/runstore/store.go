// Package runstore keeps recent orchestration runs for the HTTP surface.
package runstore

import (
	"sort"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/cexll/issuebot/internal/orchestrator"
)

type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

type Run struct {
	ID         string               `json:"id"`
	Trigger    string               `json:"trigger"`
	Status     RunStatus            `json:"status"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at,omitempty"`
	Summary    orchestrator.Summary `json:"summary"`
	Report     *orchestrator.Report `json:"report,omitempty"`
}

// Store holds runs in memory and forgets them after retention.
type Store struct {
	runs *cache.Cache
	now  func() time.Time
}

func NewStore(retention time.Duration) *Store {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Store{
		runs: cache.New(retention, retention/2),
		now:  time.Now,
	}
}

// Start records a new running run.
func (s *Store) Start(id, trigger string) *Run {
	run := &Run{ID: id, Trigger: trigger, Status: StatusRunning, StartedAt: s.now()}
	s.runs.SetDefault(id, *run)
	return run
}

// Finish attaches the report. A run whose backlog could not be fetched is marked failed.
func (s *Store) Finish(id string, report *orchestrator.Report) {
	cur, ok := s.Get(id)
	if !ok {
		cur = &Run{ID: id, StartedAt: report.StartedAt}
	}
	cur.Status = StatusCompleted
	if report.FetchError != "" {
		cur.Status = StatusFailed
	}
	cur.FinishedAt = s.now()
	cur.Summary = report.Summary()
	cur.Report = report
	s.runs.SetDefault(id, *cur)
}

// Get returns a copy of the run.
func (s *Store) Get(id string) (*Run, bool) {
	v, ok := s.runs.Get(id)
	if !ok {
		return nil, false
	}
	run := v.(Run)
	return &run, true
}

// List returns runs newest first.
func (s *Store) List() []*Run {
	items := s.runs.Items()
	runs := make([]*Run, 0, len(items))
	for _, item := range items {
		run := item.Object.(Run)
		runs = append(runs, &run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs
}
