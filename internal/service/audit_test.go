package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arasuji/arasuji-server/internal/domain"
	"github.com/arasuji/arasuji-server/internal/store"
)

func TestCounterAuditor_CleanStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.store, "a", "a")
	seedUser(t, env.store, "b", "b")
	seedPost(t, env.store, &domain.Post{ID: "p1", AuthorID: "a"})
	seedComment(t, env.store, &domain.Comment{ID: "c1", PostID: "p1", Body: "x", AuthorID: "b"})

	_, err := env.ledger.ToggleLike(ctx, "b", "p1")
	require.NoError(t, err)
	_, err = env.ledger.ToggleBookmark(ctx, "b", "p1")
	require.NoError(t, err)
	_, err = env.ledger.ToggleFollow(ctx, "b", "a")
	require.NoError(t, err)
	_, err = env.ledger.ToggleCommentLike(ctx, "a", "p1", "c1")
	require.NoError(t, err)
	env.notifier.Wait()

	report, err := env.auditor.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Posts)
	assert.Equal(t, 2, report.Users)
	assert.Equal(t, 1, report.Comments)
	assert.Empty(t, report.Drifts)
}

func TestCounterAuditor_FindsAndReconcilesDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.store, "a", "a")
	seedUser(t, env.store, "b", "b")
	seedPost(t, env.store, &domain.Post{ID: "p1", AuthorID: "a", LikeCount: 7})
	seedComment(t, env.store, &domain.Comment{ID: "c1", PostID: "p1", Body: "x", AuthorID: "b", LikeUIDs: []string{"a", "a", "b"}, LikeCount: 5})

	_, err := env.ledger.ToggleBookmark(ctx, "b", "p1")
	require.NoError(t, err)
	_, err = env.ledger.ToggleFollow(ctx, "b", "a")
	require.NoError(t, err)
	env.notifier.Wait()

	// Break the follower counter behind the ledger's back.
	require.NoError(t, env.store.RunTransaction(ctx, func(tx store.Tx) error {
		return store.PatchTx(tx, store.UserPath("a"), map[string]any{"followerCount": 0})
	}))

	report, err := env.auditor.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Drift{
		{Path: store.PostPath("p1"), Field: "likeCount", Stored: 7, Actual: 0},
		{Path: store.CommentPath("p1", "c1"), Field: "likeCount", Stored: 5, Actual: 2},
		{Path: store.UserPath("a"), Field: "followerCount", Stored: 0, Actual: 1},
	}, report.Drifts)

	fixed, err := env.auditor.Reconcile(ctx)
	require.NoError(t, err)
	assert.Len(t, fixed.Drifts, 3)

	assert.EqualValues(t, 0, getPost(t, env.store, "p1").LikeCount)
	assert.EqualValues(t, 1, getPost(t, env.store, "p1").BookmarkCount)
	assert.EqualValues(t, 1, getUser(t, env.store, "a").FollowerCount)

	report, err = env.auditor.Audit(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Drifts)
}

func TestCounterAuditor_ReconcileSkipsCountersChangedSinceAudit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.store, "a", "a")
	seedUser(t, env.store, "b", "b")
	seedPost(t, env.store, &domain.Post{ID: "p1", AuthorID: "a", LikeCount: 7})

	report, err := env.auditor.Audit(ctx)
	require.NoError(t, err)
	require.Equal(t, []Drift{{Path: store.PostPath("p1"), Field: "likeCount", Stored: 7, Actual: 0}}, report.Drifts)

	// A like lands between the audit and the repair.
	_, err = env.ledger.ToggleLike(ctx, "b", "p1")
	require.NoError(t, err)
	env.notifier.Wait()

	fixed, err := env.auditor.apply(ctx, report.Drifts)
	require.NoError(t, err)
	assert.Empty(t, fixed)
	assert.EqualValues(t, 8, getPost(t, env.store, "p1").LikeCount, "stale value must not be written")

	reconciled, err := env.auditor.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Drift{{Path: store.PostPath("p1"), Field: "likeCount", Stored: 8, Actual: 1}}, reconciled.Drifts)
	assert.EqualValues(t, 1, getPost(t, env.store, "p1").LikeCount)
}
