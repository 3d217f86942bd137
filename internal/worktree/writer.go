// Package worktree applies proposed file content to the local checkout.
package worktree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cexll/issuebot/internal/changeset"
)

// Separator joins prior content and appended content.
const Separator = "\n\n"

// Stager stages paths relative to the checkout root.
type Stager interface {
	Stage(ctx context.Context, paths ...string) error
}

// IOError reports a filesystem or staging failure for one path.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Result describes what Apply did.
type Result struct {
	// Staged lists every path handed to the stager, in change order.
	Staged []string
	// Created lists paths that did not exist before Apply.
	Created []string
	// Unchanged lists paths whose on-disk content already ended with the proposed block.
	Unchanged []string
}

// Merge returns the bytes the writer places on disk. A new file receives content
// verbatim; an existing one gets content appended after Separator.
func Merge(existing string, exists bool, content string) string {
	if !exists {
		return content
	}
	return existing + Separator + content
}

// alreadyApplied reports whether existing already ends with content as its trailing block.
func alreadyApplied(existing, content string) bool {
	return existing == content || strings.HasSuffix(existing, Separator+content)
}

// Writer writes ProposedChanges under a checkout root.
type Writer struct {
	root   string
	stager Stager
}

// NewWriter returns a Writer rooted at root.
func NewWriter(root string, stager Stager) *Writer {
	return &Writer{root: root, stager: stager}
}

// Apply writes every file of change and stages it. Parent directories are created
// as needed. A file whose trailing block already equals the proposed content is
// left untouched so re-runs stay no-ops.
func (w *Writer) Apply(ctx context.Context, change *changeset.ProposedChange) (*Result, error) {
	res := &Result{}

	for _, f := range change.Files {
		abs, err := w.resolve(f.Path)
		if err != nil {
			return res, err
		}

		existing, exists, err := readIfExists(abs)
		if err != nil {
			return res, &IOError{Path: f.Path, Op: "read", Err: err}
		}

		switch {
		case exists && alreadyApplied(existing, f.Content):
			log.Printf("[Writer] %s already carries the proposed content, skipping write", f.Path)
			res.Unchanged = append(res.Unchanged, f.Path)
		default:
			if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
				return res, &IOError{Path: f.Path, Op: "mkdir", Err: err}
			}
			if err := os.WriteFile(abs, []byte(Merge(existing, exists, f.Content)), 0644); err != nil {
				return res, &IOError{Path: f.Path, Op: "write", Err: err}
			}
			if !exists {
				res.Created = append(res.Created, f.Path)
			}
			log.Printf("[Writer] Wrote %s (appended: %t)", f.Path, exists)
		}
		res.Staged = append(res.Staged, f.Path)
	}

	if len(res.Staged) > 0 {
		if err := w.stager.Stage(ctx, res.Staged...); err != nil {
			return res, &IOError{Path: strings.Join(res.Staged, ","), Op: "stage", Err: err}
		}
	}
	return res, nil
}

// RemoveCreated deletes files that Apply created. Missing files are ignored.
func (w *Writer) RemoveCreated(paths []string) error {
	var errs []error
	for _, p := range paths {
		abs, err := w.resolve(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, &IOError{Path: p, Op: "remove", Err: err})
		}
	}
	return errors.Join(errs...)
}

func (w *Writer) resolve(rel string) (string, error) {
	root, err := filepath.Abs(w.root)
	if err != nil {
		return "", &IOError{Path: rel, Op: "resolve", Err: err}
	}
	abs := filepath.Join(root, filepath.FromSlash(rel))
	within, err := filepath.Rel(root, abs)
	if err != nil || within == "." || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", &IOError{Path: rel, Op: "resolve", Err: fmt.Errorf("path escapes %s", root)}
	}
	return abs, nil
}

func readIfExists(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}
