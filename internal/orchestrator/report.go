package orchestrator

import (
	"time"

	"github.com/cexll/issuebot/internal/worktree"
)

// Status is the terminal state of one issue's pipeline.
type Status string

const (
	StatusPublished Status = "published"
	StatusPushed    Status = "pushed"
	StatusNoOp      Status = "noop"
	StatusFailed    Status = "failed"
)

// Outcome records what happened to one issue.
type Outcome struct {
	Issue       int      `yaml:"issue" json:"issue"`
	Title       string   `yaml:"title" json:"title"`
	Branch      string   `yaml:"branch,omitempty" json:"branch,omitempty"`
	Status      Status   `yaml:"status" json:"status"`
	Pushed      bool     `yaml:"pushed" json:"pushed"`
	URL         string   `yaml:"url,omitempty" json:"url,omitempty"`
	Files       []string `yaml:"files,omitempty" json:"files,omitempty"`
	Placeholder bool     `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Kind        Kind     `yaml:"kind,omitempty" json:"kind,omitempty"`
	Error       string   `yaml:"error,omitempty" json:"error,omitempty"`
	Err         error    `yaml:"-" json:"-"`
}

// Report is the result of one Run.
type Report struct {
	ID         string    `yaml:"id" json:"id"`
	StartedAt  time.Time `yaml:"started_at" json:"started_at"`
	FinishedAt time.Time `yaml:"finished_at" json:"finished_at"`
	FetchError string    `yaml:"fetch_error,omitempty" json:"fetch_error,omitempty"`
	Outcomes   []Outcome `yaml:"outcomes" json:"outcomes"`
}

// Summary counts outcomes by status.
type Summary struct {
	Total     int `yaml:"total" json:"total"`
	Published int `yaml:"published" json:"published"`
	Pushed    int `yaml:"pushed" json:"pushed"`
	NoOp      int `yaml:"noop" json:"noop"`
	Failed    int `yaml:"failed" json:"failed"`
}

// Summary tallies the report.
func (r *Report) Summary() Summary {
	s := Summary{Total: len(r.Outcomes)}
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusPublished:
			s.Published++
		case StatusPushed:
			s.Pushed++
		case StatusNoOp:
			s.NoOp++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// PlanEntry is the dry-run view of one issue.
type PlanEntry struct {
	Issue         int                    `yaml:"issue" json:"issue"`
	Title         string                 `yaml:"title" json:"title"`
	Branch        string                 `yaml:"branch,omitempty" json:"branch,omitempty"`
	ProposalTitle string                 `yaml:"proposal_title,omitempty" json:"proposal_title,omitempty"`
	Files         []worktree.FilePreview `yaml:"files,omitempty" json:"files,omitempty"`
	Error         string                 `yaml:"error,omitempty" json:"error,omitempty"`
}
