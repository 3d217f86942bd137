package github

import (
	"context"
	"fmt"
	"log"

	gh "github.com/google/go-github/v66/github"
)

// Publisher opens pull requests for pushed work branches.
type Publisher struct {
	client *gh.Client
	owner  string
	repo   string
	base   string
}

// NewPublisher returns a Publisher targeting base.
func NewPublisher(client *gh.Client, owner, repo, base string) *Publisher {
	return &Publisher{client: client, owner: owner, repo: repo, base: base}
}

// Publish opens a pull request from head into the base branch and returns its URL.
// An already-open pull request for head counts as success. Failures are logged
// and reported as an empty URL; they never propagate.
func (p *Publisher) Publish(ctx context.Context, head, title, body string) string {
	if existing, err := p.findOpen(ctx, head); err != nil {
		log.Printf("[Publisher] Warning: failed to look up open pull requests for %s: %v", head, err)
	} else if existing != "" {
		log.Printf("[Publisher] Pull request for %s already open: %s", head, existing)
		return existing
	}

	pr, _, err := p.client.PullRequests.Create(ctx, p.owner, p.repo, &gh.NewPullRequest{
		Title: gh.String(title),
		Head:  gh.String(head),
		Base:  gh.String(p.base),
		Body:  gh.String(body),
	})
	if err != nil {
		log.Printf("[Publisher] Warning: pull request creation failed for %s: %v", head, err)
		return ""
	}

	log.Printf("[Publisher] Created pull request #%d: %s", pr.GetNumber(), pr.GetHTMLURL())
	return pr.GetHTMLURL()
}

func (p *Publisher) findOpen(ctx context.Context, head string) (string, error) {
	prs, _, err := p.client.PullRequests.List(ctx, p.owner, p.repo, &gh.PullRequestListOptions{
		State:       "open",
		Head:        fmt.Sprintf("%s:%s", p.owner, head),
		Base:        p.base,
		ListOptions: gh.ListOptions{PerPage: 1},
	})
	if err != nil {
		return "", err
	}
	if len(prs) == 0 {
		return "", nil
	}
	return prs[0].GetHTMLURL(), nil
}
