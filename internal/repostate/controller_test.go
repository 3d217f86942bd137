package repostate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rstesting "github.com/cexll/issuebot/internal/repostate/testing"
)

func writeAndStage(t *testing.T, port *rstesting.FakePort, path, content string) {
	t.Helper()
	abs := filepath.Join(port.Root, filepath.FromSlash(path))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0644))
	require.NoError(t, port.Stage(context.Background(), path))
}

func TestController_FirstRunCommitsAndPushesWithUpstream(t *testing.T) {
	ctx := context.Background()
	port := rstesting.NewFakePort(t.TempDir(), "main")
	c := NewController(port, "main")

	require.NoError(t, c.SyncDefault(ctx))
	assert.Equal(t, OnDefaultBranch, c.State())

	created, err := c.SelectWorkBranch(ctx, "issue-7-fix-bug")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, OnWorkBranch, c.State())

	writeAndStage(t, port, "src/example_issue7.py", "print('x')")

	pushed, err := c.CommitAndPush(ctx, "Update for issue #7: Fix bug")
	require.NoError(t, err)
	assert.True(t, pushed)
	assert.Equal(t, Committed, c.State())

	assert.Equal(t, []string{
		"checkout main",
		"pull",
		"branch-exists issue-7-fix-bug",
		"create-branch issue-7-fix-bug",
		"add src/example_issue7.py",
		"diff-cached",
		"has-upstream issue-7-fix-bug",
		"commit Update for issue #7: Fix bug",
		"push -u issue-7-fix-bug",
	}, port.Calls)
}

func TestController_SecondRunIsNoOp(t *testing.T) {
	ctx := context.Background()
	port := rstesting.NewFakePort(t.TempDir(), "main")
	c := NewController(port, "main")

	run := func() bool {
		require.NoError(t, c.SyncDefault(ctx))
		_, err := c.SelectWorkBranch(ctx, "issue-1-a")
		require.NoError(t, err)
		writeAndStage(t, port, "a.py", "B")
		pushed, err := c.CommitAndPush(ctx, "msg")
		require.NoError(t, err)
		return pushed
	}

	assert.True(t, run())
	assert.False(t, run())
	assert.Equal(t, NoOpClean, c.State())
	assert.Len(t, port.CallsFor("commit"), 1)
	assert.Len(t, port.CallsFor("push"), 1)
	assert.Equal(t, []string{"checkout issue-1-a"}, port.CallsFor("checkout issue-1-a"))
}

func TestController_ChangedContentAddsOneCommitAndPlainPush(t *testing.T) {
	ctx := context.Background()
	port := rstesting.NewFakePort(t.TempDir(), "main")
	c := NewController(port, "main")

	for _, content := range []string{"B", "B\n\nC"} {
		require.NoError(t, c.SyncDefault(ctx))
		_, err := c.SelectWorkBranch(ctx, "issue-1-a")
		require.NoError(t, err)
		writeAndStage(t, port, "a.py", content)
		pushed, err := c.CommitAndPush(ctx, "msg")
		require.NoError(t, err)
		assert.True(t, pushed)
	}

	assert.Equal(t, []string{"push -u issue-1-a", "push issue-1-a"}, port.CallsFor("push"))
	assert.Equal(t, 3, port.Commits["issue-1-a"])
}

func TestController_UnpushedCommitIsPushedOnRerun(t *testing.T) {
	ctx := context.Background()
	port := rstesting.NewFakePort(t.TempDir(), "main")
	c := NewController(port, "main")

	port.Fail["push"] = errors.New("remote hung up")
	require.NoError(t, c.SyncDefault(ctx))
	_, err := c.SelectWorkBranch(ctx, "issue-2-b")
	require.NoError(t, err)
	writeAndStage(t, port, "b.py", "B")
	pushed, err := c.CommitAndPush(ctx, "msg")
	assert.False(t, pushed)
	var gitErr *GitOperationError
	require.True(t, errors.As(err, &gitErr))
	assert.Equal(t, "push", gitErr.Op)

	delete(port.Fail, "push")
	require.NoError(t, c.SyncDefault(ctx))
	_, err = c.SelectWorkBranch(ctx, "issue-2-b")
	require.NoError(t, err)
	writeAndStage(t, port, "b.py", "B")
	pushed, err = c.CommitAndPush(ctx, "msg")
	require.NoError(t, err)
	assert.True(t, pushed)
	assert.Len(t, port.CallsFor("commit"), 1)
}

func TestController_SyncFailures(t *testing.T) {
	for _, op := range []string{"checkout", "pull"} {
		t.Run(op, func(t *testing.T) {
			port := rstesting.NewFakePort("", "main")
			port.Fail[op] = errors.New("boom")
			c := NewController(port, "main")

			err := c.SyncDefault(context.Background())
			var syncErr *SyncError
			require.True(t, errors.As(err, &syncErr))
			assert.Equal(t, op, syncErr.Op)
			assert.Equal(t, "main", syncErr.Branch)
			assert.Equal(t, Unsynced, c.State())
		})
	}
}

func TestController_SelectRequiresSync(t *testing.T) {
	port := rstesting.NewFakePort("", "main")
	c := NewController(port, "main")

	_, err := c.SelectWorkBranch(context.Background(), "issue-1")
	require.ErrorIs(t, err, ErrOutOfOrder)
	assert.Empty(t, port.CallsFor("create-branch"))

	_, err = c.CommitAndPush(context.Background(), "msg")
	require.ErrorIs(t, err, ErrOutOfOrder)
}

func TestController_CommitFailure(t *testing.T) {
	ctx := context.Background()
	port := rstesting.NewFakePort(t.TempDir(), "main")
	port.Fail["commit"] = errors.New("hook rejected")
	c := NewController(port, "main")

	require.NoError(t, c.SyncDefault(ctx))
	_, err := c.SelectWorkBranch(ctx, "issue-3")
	require.NoError(t, err)
	writeAndStage(t, port, "c.py", "C")

	pushed, err := c.CommitAndPush(ctx, "msg")
	assert.False(t, pushed)
	assert.ErrorContains(t, err, "hook rejected")
	assert.Empty(t, port.CallsFor("push"))
}

func TestController_Rollback(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	port := rstesting.NewFakePort(root, "main")
	port.Head["main"]["old.py"] = "A"
	require.NoError(t, os.WriteFile(filepath.Join(root, "old.py"), []byte("A"), 0644))
	c := NewController(port, "main")

	require.NoError(t, c.SyncDefault(ctx))
	_, err := c.SelectWorkBranch(ctx, "issue-4")
	require.NoError(t, err)
	writeAndStage(t, port, "old.py", "A\n\nB")
	writeAndStage(t, port, "new.py", "N")

	require.NoError(t, c.Rollback(ctx, []string{"old.py", "new.py"}, []string{"new.py"}))

	assert.Empty(t, port.StagedPaths())
	assert.Equal(t, []string{"restore old.py"}, port.CallsFor("restore"))
	data, err := os.ReadFile(filepath.Join(root, "old.py"))
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))
}

func TestController_RollbackNothing(t *testing.T) {
	port := rstesting.NewFakePort("", "main")
	require.NoError(t, NewController(port, "main").Rollback(context.Background(), nil, nil))
	assert.Empty(t, port.Calls)
}
