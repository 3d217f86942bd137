// Package repostate drives the local checkout through one issue's lifecycle:
// sync the default branch, select the work branch, and commit/push only when
// the index carries a real change.
package repostate

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// RepositoryPort is the set of version-control primitives the controller needs.
// *git.Repository satisfies it.
type RepositoryPort interface {
	Checkout(ctx context.Context, branch string) error
	Pull(ctx context.Context) error
	BranchExists(ctx context.Context, name string) (bool, error)
	CreateBranch(ctx context.Context, name string) error
	Stage(ctx context.Context, paths ...string) error
	HasStagedChanges(ctx context.Context) (bool, error)
	Commit(ctx context.Context, message string) error
	HasUpstream(ctx context.Context, branch string) (bool, error)
	Push(ctx context.Context, branch string, setUpstream bool) error
	CommitsAhead(ctx context.Context, branch, base string) (int, error)
	Unstage(ctx context.Context, paths ...string) error
	Restore(ctx context.Context, paths ...string) error
}

// State is the controller's view of the checkout.
type State int

const (
	Unsynced State = iota
	OnDefaultBranch
	OnWorkBranch
	Committed
	NoOpClean
)

func (s State) String() string {
	switch s {
	case Unsynced:
		return "unsynced"
	case OnDefaultBranch:
		return "on-default-branch"
	case OnWorkBranch:
		return "on-work-branch"
	case Committed:
		return "committed"
	case NoOpClean:
		return "noop-clean"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrOutOfOrder is returned when a transition is requested from the wrong state.
var ErrOutOfOrder = errors.New("repository transition out of order")

// Controller owns the checkout for the duration of a run. It is not safe for
// concurrent use, and at most one controller may drive a given checkout.
type Controller struct {
	port          RepositoryPort
	defaultBranch string

	state  State
	branch string
}

// NewController returns a controller that syncs against defaultBranch.
func NewController(port RepositoryPort, defaultBranch string) *Controller {
	return &Controller{port: port, defaultBranch: defaultBranch}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// SyncDefault checks out the default branch and fast-forwards it. It may be
// called from any state and always restarts the per-issue lifecycle.
func (c *Controller) SyncDefault(ctx context.Context) error {
	c.state = Unsynced
	c.branch = ""

	if err := c.port.Checkout(ctx, c.defaultBranch); err != nil {
		return &SyncError{Branch: c.defaultBranch, Op: "checkout", Err: err}
	}
	if err := c.port.Pull(ctx); err != nil {
		return &SyncError{Branch: c.defaultBranch, Op: "pull", Err: err}
	}

	c.state = OnDefaultBranch
	log.Printf("[Git] Synced %s", c.defaultBranch)
	return nil
}

// SelectWorkBranch switches to name, creating it from the freshly synced default
// branch when it does not exist yet. It must follow SyncDefault.
func (c *Controller) SelectWorkBranch(ctx context.Context, name string) (bool, error) {
	if c.state != OnDefaultBranch {
		return false, &GitOperationError{Op: "select branch", Branch: name,
			Err: fmt.Errorf("%w: state is %s, want %s", ErrOutOfOrder, c.state, OnDefaultBranch)}
	}

	exists, err := c.port.BranchExists(ctx, name)
	if err != nil {
		return false, &GitOperationError{Op: "branch lookup", Branch: name, Err: err}
	}

	if exists {
		if err := c.port.Checkout(ctx, name); err != nil {
			return false, &GitOperationError{Op: "checkout", Branch: name, Err: err}
		}
		log.Printf("[Git] Switched to existing branch %s", name)
	} else {
		if err := c.port.CreateBranch(ctx, name); err != nil {
			return false, &GitOperationError{Op: "create branch", Branch: name, Err: err}
		}
		log.Printf("[Git] Created branch %s from %s", name, c.defaultBranch)
	}

	c.state = OnWorkBranch
	c.branch = name
	return !exists, nil
}

// HasStagedChanges reports whether the index differs from HEAD. Re-staged
// identical bytes do not count.
func (c *Controller) HasStagedChanges(ctx context.Context) (bool, error) {
	has, err := c.port.HasStagedChanges(ctx)
	if err != nil {
		return false, &GitOperationError{Op: "diff --cached", Branch: c.branch, Err: err}
	}
	return has, nil
}

// CommitAndPush commits the index when it carries a change and pushes the work
// branch, setting upstream tracking on its first push. It returns whether a push
// happened. A branch holding local commits that never reached the remote (an
// earlier push failed) is pushed even when nothing new is staged.
func (c *Controller) CommitAndPush(ctx context.Context, message string) (bool, error) {
	if c.state != OnWorkBranch {
		return false, &GitOperationError{Op: "commit", Branch: c.branch,
			Err: fmt.Errorf("%w: state is %s, want %s", ErrOutOfOrder, c.state, OnWorkBranch)}
	}

	staged, err := c.HasStagedChanges(ctx)
	if err != nil {
		return false, err
	}

	upstream, err := c.port.HasUpstream(ctx, c.branch)
	if err != nil {
		return false, &GitOperationError{Op: "upstream lookup", Branch: c.branch, Err: err}
	}

	if !staged {
		pending, err := c.unpushedCommits(ctx, upstream)
		if err != nil {
			return false, err
		}
		if pending == 0 {
			c.state = NoOpClean
			log.Printf("[Git] No changes on %s, skipping commit and push", c.branch)
			return false, nil
		}
		log.Printf("[Git] %s has %d unpushed commit(s) from an earlier run", c.branch, pending)
	} else {
		if err := c.port.Commit(ctx, message); err != nil {
			return false, &GitOperationError{Op: "commit", Branch: c.branch, Err: err}
		}
		log.Printf("[Git] Committed on %s: %s", c.branch, message)
	}
	c.state = Committed

	if err := c.port.Push(ctx, c.branch, !upstream); err != nil {
		return false, &GitOperationError{Op: "push", Branch: c.branch, Err: err}
	}
	log.Printf("[Git] Pushed %s (set upstream: %t)", c.branch, !upstream)
	return true, nil
}

func (c *Controller) unpushedCommits(ctx context.Context, upstream bool) (int, error) {
	base := c.defaultBranch
	if upstream {
		base = c.branch + "@{upstream}"
	}
	n, err := c.port.CommitsAhead(ctx, c.branch, base)
	if err != nil {
		return 0, &GitOperationError{Op: "rev-list", Branch: c.branch, Err: err}
	}
	return n, nil
}

// Rollback discards an uncommitted change: staged paths are unstaged and paths
// that existed before are restored from HEAD. Newly created files are left for
// the writer to remove.
func (c *Controller) Rollback(ctx context.Context, staged, created []string) error {
	if len(staged) == 0 {
		return nil
	}

	isNew := make(map[string]bool, len(created))
	for _, p := range created {
		isNew[p] = true
	}
	var tracked []string
	for _, p := range staged {
		if !isNew[p] {
			tracked = append(tracked, p)
		}
	}

	var errs []error
	if err := c.port.Unstage(ctx, staged...); err != nil {
		errs = append(errs, &GitOperationError{Op: "unstage", Branch: c.branch, Err: err})
	}
	if err := c.port.Restore(ctx, tracked...); err != nil {
		errs = append(errs, &GitOperationError{Op: "restore", Branch: c.branch, Err: err})
	}
	if len(errs) == 0 {
		log.Printf("[Git] Rolled back %d staged path(s) on %s", len(staged), c.branch)
	}
	return errors.Join(errs...)
}
