package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arasuji/arasuji-server/internal/store"
	"github.com/arasuji/arasuji-server/internal/store/storetest"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBadgerContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		s, err := store.NewInMemory(nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBadger_ConflictAborts(t *testing.T) {
	s := setupTestStore(t)
	ctx := t.Context()
	require.NoError(t, s.Set(ctx, "posts/p1", []byte(`{"likeCount":0}`)))

	err := s.RunTransaction(ctx, func(tx store.Tx) error {
		if _, err := tx.Get("posts/p1"); err != nil {
			return err
		}
		// A concurrent writer commits between our read and our commit.
		if err := s.Set(ctx, "posts/p1", []byte(`{"likeCount":5}`)); err != nil {
			return err
		}
		return tx.Set("posts/p1", []byte(`{"likeCount":1}`))
	})

	require.ErrorIs(t, err, store.ErrAborted)
	assert.True(t, store.IsTransient(err))

	data, err := s.Get(ctx, "posts/p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"likeCount":5}`, string(data), "aborted transaction writes nothing")
}

func TestBadger_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := store.New(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(t.Context(), "users/u1", []byte(`{"username":"yuki"}`)))
	require.NoError(t, s.Close())

	s, err = store.New(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	data, err := s.Get(t.Context(), "users/u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"yuki"}`, string(data))
}

func TestBadger_ClosedIsUnavailable(t *testing.T) {
	s, err := store.NewInMemory(nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Set(t.Context(), "users/u1", []byte(`{}`))
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "posts/p1/comments/c1", store.CommentPath("p1", "c1"))
	assert.Equal(t, "users/u1/likedPosts", store.LikedPostsPath("u1"))
	assert.Equal(t, "users/u1", store.ParentDoc(store.BookmarksPath("u1")))
	assert.Equal(t, "", store.ParentDoc("posts"))
	assert.Equal(t, "notifications", store.GroupOf(store.NotificationsPath("u1")))

	collection, docID, err := store.SplitDoc("users/u1/following/u2")
	require.NoError(t, err)
	assert.Equal(t, "users/u1/following", collection)
	assert.Equal(t, "u2", docID)

	_, _, err = store.SplitDoc("users")
	assert.ErrorIs(t, err, store.ErrInvalidPath)

	assert.True(t, store.ValidCollectionPath("posts/p1/comments"))
	assert.False(t, store.ValidCollectionPath("posts/p1"))
	assert.True(t, store.ValidDocPath(store.AccountEmailPath("a@example.com")))
}

func TestPatch_PreservesOtherFields(t *testing.T) {
	in := []byte(`{"title":"竜","likeCount":"broken","tags":["a","b"],"createdAt":"2026-01-02T03:04:05.123456789Z"}`)

	out, err := store.Patch(in, map[string]any{"likeCount": 1})
	require.NoError(t, err)

	assert.JSONEq(t, `{"title":"竜","likeCount":1,"tags":["a","b"],"createdAt":"2026-01-02T03:04:05.123456789Z"}`, string(out))
}

func TestPatch_EmptyDocument(t *testing.T) {
	out, err := store.Patch(nil, map[string]any{"followerCount": 0})
	require.NoError(t, err)
	assert.JSONEq(t, `{"followerCount":0}`, string(out))
}

func TestErrors_WithCauseKeepsIdentity(t *testing.T) {
	err := store.ErrAborted.WithCause(assert.AnError)

	assert.ErrorIs(t, err, store.ErrAborted)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, store.ErrAlreadyExists)
	assert.Equal(t, 409, err.HTTPCode())
}
