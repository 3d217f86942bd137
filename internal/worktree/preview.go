package worktree

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/cexll/issuebot/internal/changeset"
)

// FilePreview is the dry-run view of one file.
type FilePreview struct {
	Path    string `yaml:"path" json:"path"`
	Exists  bool   `yaml:"exists" json:"exists"`
	NoOp    bool   `yaml:"noop" json:"noop"`
	Diff    string `yaml:"diff" json:"diff"`
	Content string `yaml:"-" json:"-"`
}

// Preview computes what Apply would write, without touching the checkout.
func (w *Writer) Preview(change *changeset.ProposedChange) ([]FilePreview, error) {
	out := make([]FilePreview, 0, len(change.Files))
	for _, f := range change.Files {
		abs, err := w.resolve(f.Path)
		if err != nil {
			return nil, err
		}
		existing, exists, err := readIfExists(abs)
		if err != nil {
			return nil, &IOError{Path: f.Path, Op: "read", Err: err}
		}

		p := FilePreview{Path: f.Path, Exists: exists}
		if exists && alreadyApplied(existing, f.Content) {
			p.NoOp = true
			p.Content = existing
		} else {
			p.Content = Merge(existing, exists, f.Content)
		}
		p.Diff = LineDiff(f.Path, existing, p.Content)
		out = append(out, p)
	}
	return out, nil
}

// LineDiff renders a line-oriented diff between before and after, prefixing
// removed lines with "-", added lines with "+" and context with " ".
func LineDiff(name, before, after string) string {
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", name, name)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range splitLines(d.Text) {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{""}
	}
	return strings.Split(s, "\n")
}
