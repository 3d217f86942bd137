// Package changeset turns an issue into the change proposed for it: the file
// content produced by the completion provider plus deterministic naming metadata.
package changeset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cexll/issuebot/internal/github"
	"github.com/cexll/issuebot/internal/github/branch"
)

const (
	// SystemPrompt is the role guidance sent with every completion.
	SystemPrompt = "You are a senior Python developer."

	// DefaultPathTemplate addresses one file per issue; {id} is the issue number.
	DefaultPathTemplate = "src/example_issue{id}.py"

	maxTitleInProposal = 50
)

// ErrEmptyCompletion is wrapped by GenerationError when the provider answered with nothing usable.
var ErrEmptyCompletion = errors.New("completion returned empty content")

// Completer is the text-completion collaborator.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// File is one path/content pair of a proposed change. Path is relative to the checkout root.
type File struct {
	Path    string `yaml:"path" json:"path"`
	Content string `yaml:"content" json:"content"`
}

// ProposedChange is everything downstream stages need for one issue. It is not mutated after Generate returns.
type ProposedChange struct {
	IssueNumber   int    `yaml:"issue" json:"issue"`
	BranchName    string `yaml:"branch" json:"branch"`
	CommitMessage string `yaml:"commit_message" json:"commit_message"`
	ProposalTitle string `yaml:"proposal_title" json:"proposal_title"`
	ProposalBody  string `yaml:"proposal_body" json:"proposal_body"`
	Files         []File `yaml:"files" json:"files"`
	// Placeholder is set when Files carries placeholder content instead of a completion.
	Placeholder bool `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
}

// GenerationError reports that no content could be produced for an issue.
type GenerationError struct {
	IssueNumber int
	Err         error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for issue #%d: %v", e.IssueNumber, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Generator builds ProposedChanges.
type Generator struct {
	completer          Completer
	pathTemplate       string
	placeholderOnEmpty bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithPathTemplate overrides DefaultPathTemplate.
func WithPathTemplate(tmpl string) Option {
	return func(g *Generator) {
		if tmpl != "" {
			g.pathTemplate = tmpl
		}
	}
}

// WithPlaceholderOnEmpty substitutes deterministic placeholder content when the
// completion fails or comes back empty, instead of returning a GenerationError.
func WithPlaceholderOnEmpty(enabled bool) Option {
	return func(g *Generator) {
		g.placeholderOnEmpty = enabled
	}
}

// NewGenerator returns a Generator backed by completer.
func NewGenerator(completer Completer, opts ...Option) *Generator {
	g := &Generator{
		completer:    completer,
		pathTemplate: DefaultPathTemplate,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces the proposed change for issue. The naming metadata is a pure
// function of the issue; only the file content comes from the completer.
func (g *Generator) Generate(ctx context.Context, issue github.Issue) (*ProposedChange, error) {
	target, err := g.TargetPath(issue.Number)
	if err != nil {
		return nil, &GenerationError{IssueNumber: issue.Number, Err: err}
	}

	change := Describe(issue)

	content, err := g.complete(ctx, issue)
	if err != nil {
		if !g.placeholderOnEmpty {
			return nil, &GenerationError{IssueNumber: issue.Number, Err: err}
		}
		log.Printf("[Generator] Warning: #%d completion unusable (%v), using placeholder content", issue.Number, err)
		content = Placeholder(issue)
		change.Placeholder = true
	}

	change.Files = []File{{Path: target, Content: content}}
	return change, nil
}

func (g *Generator) complete(ctx context.Context, issue github.Issue) (string, error) {
	reply, err := g.completer.Complete(ctx, SystemPrompt, BuildPrompt(issue))
	if err != nil {
		return "", err
	}
	content := StripCodeFence(reply)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

// TargetPath expands the path template for an issue number. The result must stay inside the checkout.
func (g *Generator) TargetPath(number int) (string, error) {
	p := strings.ReplaceAll(g.pathTemplate, "{id}", strconv.Itoa(number))
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if p == "." || path.IsAbs(p) || p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("target path %q escapes the repository", p)
	}
	return p, nil
}

// Describe derives the branch, commit and proposal metadata for issue.
func Describe(issue github.Issue) *ProposedChange {
	title := strings.TrimSpace(issue.Title)
	proposalTitle := fmt.Sprintf("Update for issue #%d: %s", issue.Number, truncateRunes(title, maxTitleInProposal))

	var body strings.Builder
	fmt.Fprintf(&body, "Auto-generated PR for issue #%d:\n%s", issue.Number, title)
	if desc := github.SanitizeContent(issue.Body); desc != "" {
		body.WriteString("\n\n")
		body.WriteString(desc)
	}
	fmt.Fprintf(&body, "\n\nCloses #%d", issue.Number)

	return &ProposedChange{
		IssueNumber:   issue.Number,
		BranchName:    branch.GenerateBranchName(issue.Number, title),
		CommitMessage: proposalTitle,
		ProposalTitle: proposalTitle,
		ProposalBody:  body.String(),
	}
}

// BuildPrompt renders the task prompt. Issue text is sanitized before it reaches the provider.
func BuildPrompt(issue github.Issue) string {
	var b strings.Builder
	b.WriteString("Write a Python code snippet for the following task:\n\n")
	b.WriteString(github.SanitizeContent(issue.Title))
	if desc := github.SanitizeContent(issue.Body); desc != "" {
		b.WriteString("\n\n")
		b.WriteString(desc)
	}
	b.WriteString("\n\nRules:\n- Only valid Python code\n- No explanations\n- No markdown\n")
	return b.String()
}

// Placeholder is the deterministic content written when no completion is available.
func Placeholder(issue github.Issue) string {
	return fmt.Sprintf("# Placeholder for issue #%d: %s\npass", issue.Number, github.SanitizeContent(issue.Title))
}

// StripCodeFence removes one markdown fence wrapping the whole reply and trims surrounding space.
func StripCodeFence(reply string) string {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return s
	}
	inner := s[nl+1 : len(s)-3]
	return strings.TrimSpace(inner)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
