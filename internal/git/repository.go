package git

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 2 * time.Minute

// CommandError is a failed git invocation with its combined output.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("git %s failed: %v\nOutput: %s", strings.Join(e.Args, " "), e.Err, e.Output)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Repository drives the git executable inside one local checkout.
// A checkout must not be shared by concurrent callers.
type Repository struct {
	runner  CommandRunner
	dir     string
	remote  string
	timeout time.Duration
}

// Option customises a Repository.
type Option func(*Repository)

// WithRunner replaces the command runner (tests).
func WithRunner(r CommandRunner) Option {
	return func(repo *Repository) { repo.runner = r }
}

// WithRemote sets the remote pushed to; defaults to "origin".
func WithRemote(remote string) Option {
	return func(repo *Repository) {
		if remote != "" {
			repo.remote = remote
		}
	}
}

// WithTimeout bounds every git subprocess.
func WithTimeout(d time.Duration) Option {
	return func(repo *Repository) {
		if d > 0 {
			repo.timeout = d
		}
	}
}

// NewRepository returns a Repository rooted at dir.
func NewRepository(dir string, opts ...Option) *Repository {
	r := &Repository{
		runner:  &RealCommandRunner{},
		dir:     dir,
		remote:  "origin",
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) git(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.runner.RunInDir(ctx, r.dir, "git", args...)
	if err != nil {
		return out, &CommandError{Args: args, Output: strings.TrimSpace(string(out)), Err: err}
	}
	return out, nil
}

// Checkout switches to an existing branch.
func (r *Repository) Checkout(ctx context.Context, branch string) error {
	_, err := r.git(ctx, "checkout", branch)
	return err
}

// Pull fast-forwards the current branch from its upstream.
func (r *Repository) Pull(ctx context.Context) error {
	_, err := r.git(ctx, "pull", "--ff-only")
	return err
}

// BranchExists reports whether a local branch with exactly this name exists.
func (r *Repository) BranchExists(ctx context.Context, name string) (bool, error) {
	_, err := r.git(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	if err == nil {
		return true, nil
	}
	if ExitCode(err) == 1 {
		return false, nil
	}
	return false, err
}

// CreateBranch creates name from HEAD and switches to it.
func (r *Repository) CreateBranch(ctx context.Context, name string) error {
	_, err := r.git(ctx, "checkout", "-b", name)
	return err
}

// Stage adds paths to the index.
func (r *Repository) Stage(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	_, err := r.git(ctx, args...)
	return err
}

// HasStagedChanges compares the index against HEAD.
// Re-staged content identical to HEAD reports false.
func (r *Repository) HasStagedChanges(ctx context.Context) (bool, error) {
	_, err := r.git(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	if ExitCode(err) == 1 {
		return true, nil
	}
	return false, err
}

// Commit records the index.
func (r *Repository) Commit(ctx context.Context, message string) error {
	_, err := r.git(ctx, "commit", "-m", message)
	return err
}

// HasUpstream reports whether branch already tracks a remote branch.
func (r *Repository) HasUpstream(ctx context.Context, branch string) (bool, error) {
	_, err := r.git(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", branch+"@{upstream}")
	if err == nil {
		return true, nil
	}
	if ExitCode(err) == 128 {
		return false, nil
	}
	return false, err
}

// Push publishes branch to the remote, setting upstream tracking when asked.
func (r *Repository) Push(ctx context.Context, branch string, setUpstream bool) error {
	args := []string{"push"}
	if setUpstream {
		args = append(args, "-u")
	}
	args = append(args, r.remote, branch)
	_, err := r.git(ctx, args...)
	return err
}

// CommitsAhead counts commits reachable from branch but not from base.
func (r *Repository) CommitsAhead(ctx context.Context, branch, base string) (int, error) {
	out, err := r.git(ctx, "rev-list", "--count", base+".."+branch)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("unexpected rev-list output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return n, nil
}

// Unstage removes paths from the index without touching the working tree.
func (r *Repository) Unstage(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"reset", "-q", "HEAD", "--"}, paths...)
	_, err := r.git(ctx, args...)
	return err
}

// Restore rewrites paths from HEAD.
func (r *Repository) Restore(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"checkout", "HEAD", "--"}, paths...)
	_, err := r.git(ctx, args...)
	return err
}

// ConfigureIdentity sets a repository-local committer identity.
// Empty values leave the existing configuration alone.
func (r *Repository) ConfigureIdentity(ctx context.Context, name, email string) error {
	if name != "" {
		if _, err := r.git(ctx, "config", "user.name", name); err != nil {
			return fmt.Errorf("failed to set git user.name: %w", err)
		}
	}
	if email != "" {
		if _, err := r.git(ctx, "config", "user.email", email); err != nil {
			return fmt.Errorf("failed to set git user.email: %w", err)
		}
	}
	if name != "" || email != "" {
		log.Printf("[Git] Configured committer identity %q <%s>", name, email)
	}
	return nil
}
