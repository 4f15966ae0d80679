package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arasuji/arasuji-server/internal/domain"
	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
	"github.com/arasuji/arasuji-server/internal/sse"
	"github.com/arasuji/arasuji-server/internal/store"
)

func TestLedger_LikeScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.store, "u1", "actor")
	seedUser(t, env.store, "u2", "author")
	seedPost(t, env.store, &domain.Post{ID: "P1", AuthorID: "u2"})

	res, err := env.ledger.ToggleLike(ctx, "u1", "P1")
	require.NoError(t, err)
	env.notifier.Wait()

	assert.True(t, res.Active)
	assert.Equal(t, int64(1), res.Count)
	assert.Equal(t, domain.Count(1), getPost(t, env.store, "P1").LikeCount)

	liked, err := store.NewCollection[domain.LikedPost](env.store, store.LikedPostsPath("u1")).Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "P1", liked.PostID)
	assert.NotNil(t, liked.LikedAt)
	assert.Equal(t, domain.Count(1), liked.LikeCountSnapshot)

	notes := listNotifications(t, env.store, "u2")
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationLike, notes[0].Type)
	assert.Equal(t, "u1", notes[0].FromUID)
	require.NotNil(t, notes[0].FromName)
	assert.Equal(t, "actor", *notes[0].FromName)
	require.NotNil(t, notes[0].PostID)
	assert.Equal(t, "P1", *notes[0].PostID)
	assert.False(t, notes[0].Read)

	// Toggling again undoes the like and sends nothing new.
	res, err = env.ledger.ToggleLike(ctx, "u1", "P1")
	require.NoError(t, err)
	env.notifier.Wait()

	assert.False(t, res.Active)
	assert.Equal(t, int64(0), res.Count)
	assert.Equal(t, domain.Count(0), getPost(t, env.store, "P1").LikeCount)
	exists, err := store.NewCollection[domain.LikedPost](env.store, store.LikedPostsPath("u1")).Exists(ctx, "P1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Len(t, listNotifications(t, env.store, "u2"), 1)
}

func TestLedger_CounterMatchesMemberships(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPost(t, env.store, &domain.Post{ID: "P1", AuthorID: "author"})

	// u1 toggles three times, u2 once, u3 twice: u1 and u2 end up liking.
	toggles := []string{"u1", "u2", "u1", "u3", "u1", "u3"}
	for _, uid := range toggles {
		_, err := env.ledger.ToggleLike(ctx, uid, "P1")
		require.NoError(t, err)
	}
	env.notifier.Wait()

	n, err := env.auditor.countByDocID(ctx, store.LikedPostsGroup)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n["P1"])
	assert.Equal(t, domain.Count(2), getPost(t, env.store, "P1").LikeCount)
}

func TestLedger_ToggleIsItsOwnInverse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPost(t, env.store, &domain.Post{ID: "P1", AuthorID: "author", LikeCount: 4, BookmarkCount: 2})

	for _, kind := range []domain.RelationKind{domain.RelationLike, domain.RelationBookmark} {
		before := getPost(t, env.store, "P1")
		_, err := env.ledger.Toggle(ctx, "u1", Target{ID: "P1"}, kind)
		require.NoError(t, err)
		_, err = env.ledger.Toggle(ctx, "u1", Target{ID: "P1"}, kind)
		require.NoError(t, err)
		after := getPost(t, env.store, "P1")

		assert.Equal(t, before.LikeCount, after.LikeCount, kind)
		assert.Equal(t, before.BookmarkCount, after.BookmarkCount, kind)
	}
	env.notifier.Wait()
}

func TestLedger_CounterFloorsAtZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPost(t, env.store, &domain.Post{ID: "P1", AuthorID: "author"})

	// A membership record exists but the counter drifted to zero.
	require.NoError(t, store.NewCollection[domain.LikedPost](env.store, store.LikedPostsPath("u1")).
		Set(ctx, "P1", &domain.LikedPost{PostID: "P1"}))

	res, err := env.ledger.ToggleLike(ctx, "u1", "P1")
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Equal(t, int64(0), res.Count)
	assert.Equal(t, domain.Count(0), getPost(t, env.store, "P1").LikeCount)
}

func TestLedger_MissingTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.store, "u1", "actor")

	_, err := env.ledger.ToggleLike(ctx, "u1", "nope")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	_, err = env.ledger.ToggleFollow(ctx, "u1", "ghost")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	exists, err := store.NewCollection[domain.LikedPost](env.store, store.LikedPostsPath("u1")).Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists, "nothing is written for a missing target")
}

func TestLedger_RequiresActorAndKind(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.ToggleLike(ctx, "", "P1")
	assert.Equal(t, domainerrors.CodeUnauthorized, domainerrors.CodeOf(err))

	_, err = env.ledger.Toggle(ctx, "u1", Target{ID: "P1"}, domain.RelationKind("poke"))
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	_, err = env.ledger.Toggle(ctx, "u1", Target{ID: "c1"}, domain.RelationCommentLike)
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
}

func TestLedger_NoSelfNotification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.store, "u1", "author")
	seedPost(t, env.store, &domain.Post{ID: "P1", AuthorID: "u1"})

	res, err := env.ledger.ToggleBookmark(ctx, "u1", "P1")
	require.NoError(t, err)
	env.notifier.Wait()

	assert.True(t, res.Active)
	assert.Empty(t, listNotifications(t, env.store, "u1"))
}

func TestLedger_FollowScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.store, "actor", "a")
	target := seedUser(t, env.store, "target", "t")
	target.FollowerCount = 5
	require.NoError(t, store.NewCollection[domain.User](env.store, store.UsersCollection).Set(ctx, "target", target))

	res, err := env.ledger.ToggleFollow(ctx, "actor", "target")
	require.NoError(t, err)
	env.notifier.Wait()

	assert.True(t, res.Active)
	assert.Equal(t, int64(6), res.Count)
	assert.Equal(t, domain.Count(1), getUser(t, env.store, "actor").FollowingCount)
	assert.Equal(t, domain.Count(6), getUser(t, env.store, "target").FollowerCount)

	back, err := store.NewCollection[domain.FollowerRecord](env.store, store.FollowersPath("target")).Get(ctx, "actor")
	require.NoError(t, err)
	assert.Equal(t, "actor", back.FollowerUID)

	notes := listNotifications(t, env.store, "target")
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationFollow, notes[0].Type)
	assert.Nil(t, notes[0].PostID)

	counters := env.events.ofType(sse.EventUserCounters)
	assert.Len(t, counters, 2)

	res, err = env.ledger.ToggleFollow(ctx, "actor", "target")
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Equal(t, domain.Count(0), getUser(t, env.store, "actor").FollowingCount)
	assert.Equal(t, domain.Count(5), getUser(t, env.store, "target").FollowerCount)

	exists, err := store.NewCollection[domain.FollowerRecord](env.store, store.FollowersPath("target")).Exists(ctx, "actor")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLedger_SelfFollowRejected(t *testing.T) {
	env := newTestEnv(t)
	seedUser(t, env.store, "u1", "me")

	_, err := env.ledger.ToggleFollow(context.Background(), "u1", "u1")
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
	assert.Equal(t, domain.Count(0), getUser(t, env.store, "u1").FollowerCount)
}

func TestLedger_CommentLike(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPost(t, env.store, &domain.Post{ID: "P1", AuthorID: "u2"})
	seedComment(t, env.store, &domain.Comment{ID: "c1", PostID: "P1", AuthorID: "u3", Body: "hi"})

	res, err := env.ledger.ToggleCommentLike(ctx, "u1", "P1", "c1")
	require.NoError(t, err)
	env.notifier.Wait()
	assert.True(t, res.Active)

	c, err := store.NewCollection[domain.Comment](env.store, store.CommentsPath("P1")).Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.Count(1), c.LikeCount)
	assert.Equal(t, []string{"u1"}, c.LikeUIDs)

	notes := listNotifications(t, env.store, "u3")
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationCommentLike, notes[0].Type)
	require.NotNil(t, notes[0].CommentID)
	assert.Equal(t, "c1", *notes[0].CommentID)
	assert.Empty(t, listNotifications(t, env.store, "u2"))

	res, err = env.ledger.ToggleCommentLike(ctx, "u1", "P1", "c1")
	require.NoError(t, err)
	assert.False(t, res.Active)
	c, err = store.NewCollection[domain.Comment](env.store, store.CommentsPath("P1")).Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.Count(0), c.LikeCount)
	assert.Empty(t, c.LikeUIDs)
}

func TestLedger_EmitsPostCounters(t *testing.T) {
	env := newTestEnv(t)
	seedPost(t, env.store, &domain.Post{ID: "P1", AuthorID: "u2"})

	_, err := env.ledger.ToggleLike(context.Background(), "u1", "P1")
	require.NoError(t, err)
	env.notifier.Wait()

	events := env.events.ofType(sse.EventPostCounters)
	require.Len(t, events, 1)
	data, ok := events[0].Data.(sse.PostCountersEventData)
	require.True(t, ok)
	assert.Equal(t, "P1", data.PostID)
	require.NotNil(t, data.LikeCount)
	assert.Equal(t, int64(1), *data.LikeCount)
	assert.Nil(t, data.BookmarkCount)
}

func TestLedger_ConcurrentTogglesStayConsistent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPost(t, env.store, &domain.Post{ID: "P1", AuthorID: "author"})

	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}
	var wg sync.WaitGroup
	for _, uid := range users {
		wg.Go(func() {
			// Conflicts abort; retry until this user's toggle commits.
			for {
				_, err := env.ledger.ToggleLike(ctx, uid, "P1")
				if err == nil || !domainerrors.IsTransient(err) {
					return
				}
			}
		})
	}
	wg.Wait()
	env.notifier.Wait()

	counts, err := env.auditor.countByDocID(ctx, store.LikedPostsGroup)
	require.NoError(t, err)
	assert.Equal(t, int64(len(users)), counts["P1"])
	assert.Equal(t, domain.Count(len(users)), getPost(t, env.store, "P1").LikeCount)
}

func TestLedger_FollowWithoutActorProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.store, "target", "t")

	_, err := env.ledger.ToggleFollow(ctx, "nobody", "target")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	_, err = env.store.Get(ctx, store.UserPath("nobody"))
	assert.ErrorIs(t, err, store.ErrNotFound, "no partial profile is created")
	assert.Equal(t, domain.Count(0), getUser(t, env.store, "target").FollowerCount)

	exists, err := store.NewCollection[domain.FollowRecord](env.store, store.FollowingPath("nobody")).Exists(ctx, "target")
	require.NoError(t, err)
	assert.False(t, exists)
}
