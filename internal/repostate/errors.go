package repostate

import "fmt"

// SyncError means the checkout could not be brought to the tip of the default branch.
type SyncError struct {
	Branch string
	Op     string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: %s: %v", e.Branch, e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// GitOperationError wraps any other failed repository primitive.
type GitOperationError struct {
	Op     string
	Branch string
	Err    error
}

func (e *GitOperationError) Error() string {
	if e.Branch == "" {
		return fmt.Sprintf("git %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("git %s on %s: %v", e.Op, e.Branch, e.Err)
}

func (e *GitOperationError) Unwrap() error {
	return e.Err
}
