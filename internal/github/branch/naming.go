package branch

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxSlugLength caps the title fragment of a work branch name.
const MaxSlugLength = 30

var (
	reSeparators = regexp.MustCompile(`[\s_]+`)
	reUnsafe     = regexp.MustCompile(`[^a-z0-9-]+`)
	reDashes     = regexp.MustCompile(`-+`)
)

// GenerateBranchName derives the work branch for an issue: issue-{number}-{slug}.
// The result is a pure function of (number, title), so repeated runs target the same branch.
// "Fix login bug!" with number 123 yields "issue-123-fix-login-bug".
func GenerateBranchName(issueNumber int, issueTitle string) string {
	prefix := fmt.Sprintf("issue-%d", issueNumber)

	slug := slugify(issueTitle)
	if len(slug) > MaxSlugLength {
		slug = slug[:MaxSlugLength]
	}
	slug = strings.TrimRight(slug, "-")

	if slug == "" {
		return prefix
	}
	return prefix + "-" + slug
}

// slugify lowercases s and keeps only ref-safe characters.
// "Fix login bug!" -> "fix-login-bug"
func slugify(s string) string {
	s = strings.ToLower(s)
	s = reSeparators.ReplaceAllString(s, "-")
	s = reUnsafe.ReplaceAllString(s, "")
	s = reDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
