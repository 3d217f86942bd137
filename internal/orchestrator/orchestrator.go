// Package orchestrator walks the open-issue backlog and drives each issue
// through generate, write, commit/push, publish and notify, isolating
// failures so one issue never aborts the run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cexll/issuebot/internal/changeset"
	"github.com/cexll/issuebot/internal/github"
	"github.com/cexll/issuebot/internal/notify"
	"github.com/cexll/issuebot/internal/repostate"
	"github.com/cexll/issuebot/internal/worktree"
)

const tracerName = "github.com/cexll/issuebot/internal/orchestrator"

// IssueSource fetches the backlog.
type IssueSource interface {
	ListOpenIssues(ctx context.Context) ([]github.Issue, error)
}

// Generator produces the change for one issue.
type Generator interface {
	Generate(ctx context.Context, issue github.Issue) (*changeset.ProposedChange, error)
}

// Writer applies a change to the working tree and stages it.
type Writer interface {
	Apply(ctx context.Context, change *changeset.ProposedChange) (*worktree.Result, error)
	Preview(change *changeset.ProposedChange) ([]worktree.FilePreview, error)
	RemoveCreated(paths []string) error
}

// Repository is the state machine over the local checkout.
type Repository interface {
	SyncDefault(ctx context.Context) error
	SelectWorkBranch(ctx context.Context, name string) (bool, error)
	CommitAndPush(ctx context.Context, message string) (bool, error)
	Rollback(ctx context.Context, staged, created []string) error
	State() repostate.State
}

// Publisher opens proposals. It reports failure as an empty URL.
type Publisher interface {
	Publish(ctx context.Context, head, title, body string) string
}

// Deps wires the collaborators of an Orchestrator.
type Deps struct {
	Issues    IssueSource
	Generator Generator
	Writer    Writer
	Repo      Repository
	Publisher Publisher
	Notifier  notify.Notifier
}

// Orchestrator runs the per-issue pipeline sequentially. It shares one
// checkout and must not run concurrently with another Orchestrator on it.
type Orchestrator struct {
	deps   Deps
	tracer trace.Tracer
	now    func() time.Time
	newID  func() string
}

// New returns an Orchestrator. A nil Notifier disables notifications.
func New(deps Deps) *Orchestrator {
	if deps.Notifier == nil {
		deps.Notifier = &notify.Disabled{}
	}
	return &Orchestrator{
		deps:   deps,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Run processes every open issue once, in tracker order, and reports what happened.
// Only a cancelled context stops the batch early.
func (o *Orchestrator) Run(ctx context.Context) *Report {
	return o.RunWithID(ctx, o.newID())
}

// RunWithID is Run with a caller-chosen report ID.
func (o *Orchestrator) RunWithID(ctx context.Context, id string) *Report {
	report := &Report{ID: id, StartedAt: o.now()}
	ctx, span := o.tracer.Start(ctx, "run", trace.WithAttributes(attribute.String("run.id", report.ID)))
	defer span.End()

	defer func() {
		report.FinishedAt = o.now()
		s := report.Summary()
		log.Printf("[Orchestrator] Run %s finished: %d issues, %d published, %d pushed without proposal, %d no-op, %d failed",
			report.ID, s.Total, s.Published, s.Pushed, s.NoOp, s.Failed)
	}()

	issues, err := o.deps.Issues.ListOpenIssues(ctx)
	if err != nil {
		fetchErr := &StageError{Kind: KindFetch, Op: "list open issues", Err: err}
		log.Printf("[Orchestrator] Error fetching issues, treating backlog as empty: %v", fetchErr)
		report.FetchError = fetchErr.Error()
		span.RecordError(fetchErr)
		return report
	}
	if len(issues) == 0 {
		log.Printf("[Orchestrator] No open issues found")
		return report
	}

	for _, issue := range issues {
		if ctx.Err() != nil {
			log.Printf("[Orchestrator] Run %s cancelled before #%d: %v", report.ID, issue.Number, ctx.Err())
			break
		}
		report.Outcomes = append(report.Outcomes, o.processIssue(ctx, issue))
	}
	return report
}

// processIssue runs one issue's pipeline. Stages are ordered so the work branch
// is selected from a freshly synced default branch before anything is written.
func (o *Orchestrator) processIssue(ctx context.Context, issue github.Issue) Outcome {
	ctx, span := o.tracer.Start(ctx, "issue", trace.WithAttributes(
		attribute.Int("issue.number", issue.Number),
	))
	defer span.End()

	out := Outcome{Issue: issue.Number, Title: issue.Title}
	fail := func(kind Kind, op string, err error) Outcome {
		stageErr := &StageError{Kind: kind, Op: op, Err: err}
		out.Status = StatusFailed
		out.Kind = kind
		out.Err = stageErr
		out.Error = stageErr.Error()
		span.RecordError(stageErr)
		span.SetStatus(codes.Error, string(kind))
		log.Printf("[Orchestrator] #%d failed: %v", issue.Number, stageErr)
		return out
	}

	log.Printf("[Orchestrator] Processing issue #%d: %s", issue.Number, github.SanitizeContent(issue.Title))

	change, err := o.deps.Generator.Generate(ctx, issue)
	if err != nil {
		return fail(KindGeneration, "generate", err)
	}
	out.Branch = change.BranchName
	out.Placeholder = change.Placeholder
	span.SetAttributes(attribute.String("issue.branch", change.BranchName))

	if err := o.deps.Repo.SyncDefault(ctx); err != nil {
		return fail(KindSync, "sync default branch", err)
	}
	if _, err := o.deps.Repo.SelectWorkBranch(ctx, change.BranchName); err != nil {
		return fail(KindGit, "select work branch", err)
	}

	applied, err := o.deps.Writer.Apply(ctx, change)
	if err != nil {
		o.rollback(ctx, issue.Number, applied)
		return fail(KindIO, "write working tree", err)
	}
	out.Files = applied.Staged

	pushed, err := o.deps.Repo.CommitAndPush(ctx, change.CommitMessage)
	if err != nil {
		if o.deps.Repo.State() != repostate.Committed {
			o.rollback(ctx, issue.Number, applied)
		}
		return fail(Classify(err), "commit and push", err)
	}
	out.Pushed = pushed
	if !pushed {
		out.Status = StatusNoOp
		log.Printf("[Orchestrator] #%d unchanged on %s, nothing to publish", issue.Number, change.BranchName)
		return out
	}

	url := o.deps.Publisher.Publish(ctx, change.BranchName, change.ProposalTitle, change.ProposalBody)
	if url == "" {
		pubErr := &StageError{Kind: KindPublish, Op: "open proposal", Err: ErrProposalNotOpened}
		out.Status = StatusPushed
		out.Kind = KindPublish
		out.Err = pubErr
		out.Error = pubErr.Error()
		span.RecordError(pubErr)
		return out
	}
	out.URL = url
	out.Status = StatusPublished
	log.Printf("[Orchestrator] #%d proposal: %s", issue.Number, url)

	o.deps.Notifier.Notify(ctx, issue.Number, issue.Title, url)
	return out
}

// rollback leaves the checkout clean after a failure between write and commit.
func (o *Orchestrator) rollback(ctx context.Context, number int, applied *worktree.Result) {
	if applied == nil {
		return
	}
	err := errors.Join(
		o.deps.Repo.Rollback(ctx, applied.Staged, applied.Created),
		o.deps.Writer.RemoveCreated(applied.Created),
	)
	if err != nil {
		log.Printf("[Orchestrator] Warning: #%d rollback incomplete: %v", number, err)
	}
}

// Plan generates every change and previews it against the current working tree
// without touching git or the tracker. Nothing is checked out, so an existing
// work branch's content is not what the diff is taken against unless it is the
// current checkout.
func (o *Orchestrator) Plan(ctx context.Context) ([]PlanEntry, error) {
	issues, err := o.deps.Issues.ListOpenIssues(ctx)
	if err != nil {
		return nil, &StageError{Kind: KindFetch, Op: "list open issues", Err: err}
	}

	entries := make([]PlanEntry, 0, len(issues))
	for _, issue := range issues {
		entry := PlanEntry{Issue: issue.Number, Title: issue.Title}

		change, err := o.deps.Generator.Generate(ctx, issue)
		if err != nil {
			entry.Error = (&StageError{Kind: KindGeneration, Op: "generate", Err: err}).Error()
			entries = append(entries, entry)
			continue
		}
		entry.Branch = change.BranchName
		entry.ProposalTitle = change.ProposalTitle

		previews, err := o.deps.Writer.Preview(change)
		if err != nil {
			entry.Error = (&StageError{Kind: KindIO, Op: "preview", Err: err}).Error()
		}
		entry.Files = previews
		entries = append(entries, entry)
	}
	return entries, nil
}

// String renders an entry for terminal output.
func (e PlanEntry) String() string {
	if e.Error != "" {
		return fmt.Sprintf("#%d %s\n  error: %s\n", e.Issue, e.Title, e.Error)
	}
	s := fmt.Sprintf("#%d %s\n  branch: %s\n  title:  %s\n", e.Issue, e.Title, e.Branch, e.ProposalTitle)
	for _, f := range e.Files {
		if f.NoOp {
			s += fmt.Sprintf("  %s: unchanged\n", f.Path)
			continue
		}
		s += f.Diff
	}
	return s
}
