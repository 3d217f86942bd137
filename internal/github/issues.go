package github

import (
	"context"
	"fmt"
	"log"

	gh "github.com/google/go-github/v66/github"
)

// Issue is a tracked unit of requested work. It is never mutated after fetch.
type Issue struct {
	Number int
	Title  string
	Body   string
}

// IssueSource lists the open backlog of one repository.
type IssueSource struct {
	client *gh.Client
	owner  string
	repo   string
}

// NewIssueSource binds a go-github client to owner/repo.
func NewIssueSource(client *gh.Client, owner, repo string) *IssueSource {
	return &IssueSource{client: client, owner: owner, repo: repo}
}

// ListOpenIssues returns open issues in tracker order, excluding pull requests.
func (s *IssueSource) ListOpenIssues(ctx context.Context) ([]Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "open",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var issues []Issue
	for {
		page, resp, err := s.client.Issues.ListByRepo(ctx, s.owner, s.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list issues for %s/%s: %w", s.owner, s.repo, err)
		}

		for _, item := range page {
			if item.IsPullRequest() {
				continue
			}
			issues = append(issues, Issue{
				Number: item.GetNumber(),
				Title:  item.GetTitle(),
				Body:   item.GetBody(),
			})
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	log.Printf("[GitHub] Fetched %d open issues from %s/%s", len(issues), s.owner, s.repo)
	return issues, nil
}

// DefaultBranch asks the tracker which branch proposals should target.
func (s *IssueSource) DefaultBranch(ctx context.Context) (string, error) {
	repo, _, err := s.client.Repositories.Get(ctx, s.owner, s.repo)
	if err != nil {
		return "", fmt.Errorf("get repository %s/%s: %w", s.owner, s.repo, err)
	}
	if repo.GetDefaultBranch() == "" {
		return "", fmt.Errorf("repository %s/%s reports no default branch", s.owner, s.repo)
	}
	return repo.GetDefaultBranch(), nil
}
