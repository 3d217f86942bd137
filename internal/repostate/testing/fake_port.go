// Package testing provides an in-memory repository double that records every
// primitive invoked on it.
package testing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FakePort models branches, commits and the index without a real checkout.
// When Root is set, Stage reads files under Root and only records paths whose
// bytes differ from the current branch's committed snapshot, mirroring
// `git diff --cached`. The working tree itself is not switched on checkout.
type FakePort struct {
	mu sync.Mutex

	Root string

	Current  string
	Branches map[string]bool
	// Head is the committed snapshot per branch: path -> content.
	Head map[string]map[string]string
	// Commits counts local commits per branch; Pushed counts those on the remote.
	Commits  map[string]int
	Pushed   map[string]int
	Upstream map[string]bool

	staged map[string]string

	// Fail injects an error for the named operation ("checkout", "pull", "push", ...).
	Fail map[string]error

	Calls []string
}

// NewFakePort returns a port whose only branch is defaultBranch, already pushed.
func NewFakePort(root, defaultBranch string) *FakePort {
	return &FakePort{
		Root:     root,
		Current:  defaultBranch,
		Branches: map[string]bool{defaultBranch: true},
		Head:     map[string]map[string]string{defaultBranch: {}},
		Commits:  map[string]int{defaultBranch: 1},
		Pushed:   map[string]int{defaultBranch: 1},
		Upstream: map[string]bool{defaultBranch: true},
		staged:   map[string]string{},
		Fail:     map[string]error{},
	}
}

func (f *FakePort) record(op string, args ...string) error {
	f.Calls = append(f.Calls, strings.TrimSpace(op+" "+strings.Join(args, " ")))
	return f.Fail[op]
}

// CallsFor returns recorded calls whose operation is op.
func (f *FakePort) CallsFor(op string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.Calls {
		if c == op || strings.HasPrefix(c, op+" ") {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakePort) Checkout(_ context.Context, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("checkout", branch); err != nil {
		return err
	}
	if !f.Branches[branch] {
		return fmt.Errorf("pathspec '%s' did not match any file(s) known to git", branch)
	}
	if len(f.staged) > 0 {
		return fmt.Errorf("your local changes would be overwritten by checkout")
	}
	f.Current = branch
	return nil
}

func (f *FakePort) Pull(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("pull")
}

func (f *FakePort) BranchExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("branch-exists", name); err != nil {
		return false, err
	}
	return f.Branches[name], nil
}

func (f *FakePort) CreateBranch(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("create-branch", name); err != nil {
		return err
	}
	if f.Branches[name] {
		return fmt.Errorf("a branch named '%s' already exists", name)
	}
	f.Branches[name] = true
	f.Head[name] = copySnapshot(f.Head[f.Current])
	f.Commits[name] = f.Commits[f.Current]
	f.Pushed[name] = 0
	f.Current = name
	return nil
}

func (f *FakePort) Stage(_ context.Context, paths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("add", paths...); err != nil {
		return err
	}
	for _, p := range paths {
		content := "\x00staged"
		if f.Root != "" {
			data, err := os.ReadFile(filepath.Join(f.Root, filepath.FromSlash(p)))
			if err != nil {
				return err
			}
			content = string(data)
			if committed, ok := f.Head[f.Current][p]; ok && committed == content {
				delete(f.staged, p)
				continue
			}
		}
		f.staged[p] = content
	}
	return nil
}

func (f *FakePort) HasStagedChanges(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("diff-cached"); err != nil {
		return false, err
	}
	return len(f.staged) > 0, nil
}

func (f *FakePort) Commit(_ context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("commit", message); err != nil {
		return err
	}
	if len(f.staged) == 0 {
		return fmt.Errorf("nothing to commit, working tree clean")
	}
	snap := copySnapshot(f.Head[f.Current])
	for p, c := range f.staged {
		snap[p] = c
	}
	f.Head[f.Current] = snap
	f.Commits[f.Current]++
	f.staged = map[string]string{}
	return nil
}

func (f *FakePort) HasUpstream(_ context.Context, branch string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("has-upstream", branch); err != nil {
		return false, err
	}
	return f.Upstream[branch], nil
}

func (f *FakePort) Push(_ context.Context, branch string, setUpstream bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	args := []string{branch}
	if setUpstream {
		args = []string{"-u", branch}
	}
	if err := f.record("push", args...); err != nil {
		return err
	}
	if setUpstream {
		f.Upstream[branch] = true
	}
	f.Pushed[branch] = f.Commits[branch]
	return nil
}

func (f *FakePort) CommitsAhead(_ context.Context, branch, base string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("rev-list", base+".."+branch); err != nil {
		return 0, err
	}
	if strings.HasSuffix(base, "@{upstream}") {
		return f.Commits[branch] - f.Pushed[branch], nil
	}
	n := f.Commits[branch] - f.Commits[base]
	if n < 0 {
		n = 0
	}
	return n, nil
}

func (f *FakePort) Unstage(_ context.Context, paths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("reset", paths...); err != nil {
		return err
	}
	for _, p := range paths {
		delete(f.staged, p)
	}
	return nil
}

func (f *FakePort) Restore(_ context.Context, paths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(paths) == 0 {
		return nil
	}
	if err := f.record("restore", paths...); err != nil {
		return err
	}
	if f.Root == "" {
		return nil
	}
	for _, p := range paths {
		content, ok := f.Head[f.Current][p]
		if !ok {
			return fmt.Errorf("pathspec '%s' did not match any file(s) known to git", p)
		}
		if err := os.WriteFile(filepath.Join(f.Root, filepath.FromSlash(p)), []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

// StagedPaths returns the paths currently in the index delta.
func (f *FakePort) StagedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.staged))
	for p := range f.staged {
		out = append(out, p)
	}
	return out
}

func copySnapshot(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
