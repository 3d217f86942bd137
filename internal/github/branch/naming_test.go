package branch

import (
	"regexp"
	"testing"

	"pgregory.net/rapid"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Fix login bug", "fix-login-bug"},
		{"Add new feature!", "add-new-feature"},
		{"Update README.md", "update-readmemd"},
		{"Fix  multiple   spaces", "fix-multiple-spaces"},
		{"Test_underscore_naming", "test-underscore-naming"},
		{"Special chars: @#$%", "special-chars"},
		{"Trailing-", "trailing"},
		{"-Leading", "leading"},
		{"Tabs\tand\nnewlines", "tabs-and-newlines"},
		{"中文标题", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := slugify(tt.input)
			if got != tt.want {
				t.Errorf("slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestGenerateBranchName(t *testing.T) {
	tests := []struct {
		issueNumber int
		issueTitle  string
		want        string
	}{
		{7, "Fix bug", "issue-7-fix-bug"},
		{123, "Fix login bug", "issue-123-fix-login-bug"},
		{1, "Add feature", "issue-1-add-feature"},
		{456, "Very long title that exceeds the maximum length limit", "issue-456-very-long-title-that-exceeds-t"},
		{9, "abcdefghijklmnopqrstuvwxyzabc def", "issue-9-abcdefghijklmnopqrstuvwxyzabc"},
		{42, "!!!", "issue-42"},
		{43, "", "issue-43"},
	}

	for _, tt := range tests {
		t.Run(tt.issueTitle, func(t *testing.T) {
			got := GenerateBranchName(tt.issueNumber, tt.issueTitle)
			if got != tt.want {
				t.Errorf("GenerateBranchName(%d, %q) = %q, want %q", tt.issueNumber, tt.issueTitle, got, tt.want)
			}
		})
	}
}

// branchShape is the ref-safe form every generated name must take.
var branchShape = regexp.MustCompile(`^issue-[0-9]+(-[a-z0-9]+(-[a-z0-9]+)*)?$`)

func TestGenerateBranchName_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		number := rapid.IntRange(1, 1_000_000).Draw(t, "number")
		title := rapid.String().Draw(t, "title")

		first := GenerateBranchName(number, title)
		second := GenerateBranchName(number, title)
		if first != second {
			t.Fatalf("not deterministic: %q vs %q", first, second)
		}
		if !branchShape.MatchString(first) {
			t.Fatalf("generated invalid branch name %q for %q", first, title)
		}
		if other := GenerateBranchName(number+1, title); other == first {
			t.Fatalf("distinct issues share branch %q", first)
		}
	})
}
