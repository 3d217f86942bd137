package github

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghtesting "github.com/cexll/issuebot/internal/github/testing"
)

func TestPublisher_Publish(t *testing.T) {
	mock := &ghtesting.MockGitHub{}
	client, cleanup := ghtesting.NewMockGitHubClient(mock)
	defer cleanup()

	p := NewPublisher(client, "owner", "repo", "main")
	url := p.Publish(context.Background(), "issue-7-fix-bug", "Update for issue #7: Fix bug", "Closes #7")

	assert.Equal(t, "https://github.com/owner/repo/pull/1", url)
	created := mock.CreatedPRs()
	require.Len(t, created, 1)
	assert.Equal(t, ghtesting.CreatedPR{
		Title: "Update for issue #7: Fix bug",
		Head:  "issue-7-fix-bug",
		Base:  "main",
		Body:  "Closes #7",
	}, created[0])
}

func TestPublisher_ExistingOpenPullRequest(t *testing.T) {
	mock := &ghtesting.MockGitHub{
		OpenPulls: map[string]string{"issue-7-fix-bug": "https://github.com/owner/repo/pull/42"},
	}
	client, cleanup := ghtesting.NewMockGitHubClient(mock)
	defer cleanup()

	p := NewPublisher(client, "owner", "repo", "main")
	url := p.Publish(context.Background(), "issue-7-fix-bug", "t", "b")

	assert.Equal(t, "https://github.com/owner/repo/pull/42", url)
	assert.Empty(t, mock.CreatedPRs())
}

func TestPublisher_FailureReturnsEmpty(t *testing.T) {
	mock := &ghtesting.MockGitHub{FailCreate: true}
	client, cleanup := ghtesting.NewMockGitHubClient(mock)
	defer cleanup()

	p := NewPublisher(client, "owner", "repo", "main")
	url := p.Publish(context.Background(), "issue-7-fix-bug", "t", "b")

	assert.Equal(t, "", url)
	assert.Empty(t, mock.CreatedPRs())
}
