package orchestrator

import (
	"errors"
	"fmt"

	"github.com/cexll/issuebot/internal/changeset"
	"github.com/cexll/issuebot/internal/repostate"
	"github.com/cexll/issuebot/internal/worktree"
)

// Kind classifies where a pipeline failed.
type Kind string

const (
	KindConfig     Kind = "config"
	KindFetch      Kind = "fetch"
	KindGeneration Kind = "generation"
	KindIO         Kind = "io"
	KindSync       Kind = "sync"
	KindGit        Kind = "git"
	KindPublish    Kind = "publish"
	KindNotify     Kind = "notify"
	KindUnknown    Kind = "unknown"
)

// StageError is a failure tagged with the stage that produced it.
type StageError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ErrProposalNotOpened marks a pushed branch whose proposal could not be opened.
var ErrProposalNotOpened = errors.New("proposal not opened")

// Classify maps an error from any pipeline component to its Kind.
func Classify(err error) Kind {
	var (
		stageErr *StageError
		genErr   *changeset.GenerationError
		ioErr    *worktree.IOError
		syncErr  *repostate.SyncError
		gitErr   *repostate.GitOperationError
	)
	switch {
	case errors.As(err, &stageErr):
		return stageErr.Kind
	case errors.As(err, &genErr):
		return KindGeneration
	case errors.As(err, &ioErr):
		return KindIO
	case errors.As(err, &syncErr):
		return KindSync
	case errors.As(err, &gitErr):
		return KindGit
	default:
		return KindUnknown
	}
}
