// Package storetest holds the behavioral contract every store.Backend must satisfy.
package storetest

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arasuji/arasuji-server/internal/store"
)

// Opener returns a fresh, empty backend. Implementations register their own cleanup.
type Opener func(t *testing.T) store.Backend

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func put(t *testing.T, b store.Backend, path string, v doc) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, b.Set(t.Context(), path, data))
}

// Run executes the full contract against backends produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, open(t)) })
	t.Run("SetGetDelete", func(t *testing.T) { testSetGetDelete(t, open(t)) })
	t.Run("InvalidPaths", func(t *testing.T) { testInvalidPaths(t, open(t)) })
	t.Run("GetAll", func(t *testing.T) { testGetAll(t, open(t)) })
	t.Run("ListDirectChildren", func(t *testing.T) { testListDirectChildren(t, open(t)) })
	t.Run("ListGroup", func(t *testing.T) { testListGroup(t, open(t)) })
	t.Run("Count", func(t *testing.T) { testCount(t, open(t)) })
	t.Run("TransactionCommit", func(t *testing.T) { testTransactionCommit(t, open(t)) })
	t.Run("TransactionRollback", func(t *testing.T) { testTransactionRollback(t, open(t)) })
	t.Run("TransactionNoLostUpdates", func(t *testing.T) { testNoLostUpdates(t, open(t)) })
	t.Run("BatchLimit", func(t *testing.T) { testBatchLimit(t, open(t)) })
	t.Run("DeleteCollection", func(t *testing.T) { testDeleteCollection(t, open(t)) })
	t.Run("TypedCollection", func(t *testing.T) { testTypedCollection(t, open(t)) })
	t.Run("CancelledContext", func(t *testing.T) { testCancelledContext(t, open(t)) })
}

func testGetMissing(t *testing.T, b store.Backend) {
	_, err := b.Get(t.Context(), "posts/nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testSetGetDelete(t *testing.T, b store.Backend) {
	ctx := t.Context()
	put(t, b, "posts/p1", doc{Name: "first", Count: 1})

	data, err := b.Get(ctx, "posts/p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"first","count":1}`, string(data))

	put(t, b, "posts/p1", doc{Name: "second", Count: 2})
	data, err = b.Get(ctx, "posts/p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"second","count":2}`, string(data))

	require.NoError(t, b.Delete(ctx, "posts/p1"))
	_, err = b.Get(ctx, "posts/p1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.NoError(t, b.Delete(ctx, "posts/p1"), "deleting a missing document is not an error")
}

func testInvalidPaths(t *testing.T, b store.Backend) {
	ctx := t.Context()
	for _, p := range []string{"", "posts", "posts/p1/comments", "posts//x", "posts/a|b"} {
		_, err := b.Get(ctx, p)
		assert.ErrorIs(t, err, store.ErrInvalidPath, "path %q", p)
	}
	for _, err := range b.List(ctx, "posts/p1") {
		assert.ErrorIs(t, err, store.ErrInvalidPath)
	}
}

func testGetAll(t *testing.T, b store.Backend) {
	ctx := t.Context()
	put(t, b, "users/u1", doc{Name: "one"})
	put(t, b, "users/u2", doc{Name: "two"})

	got, err := b.GetAll(ctx, []string{"users/u1", "users/u2", "users/u3"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "users/u1")
	assert.NotContains(t, got, "users/u3")

	paths := make([]string, store.InQueryLimit+1)
	for i := range paths {
		paths[i] = fmt.Sprintf("users/u%d", i)
	}
	_, err = b.GetAll(ctx, paths)
	assert.ErrorIs(t, err, store.ErrTooManyKeys)
}

func testListDirectChildren(t *testing.T, b store.Backend) {
	ctx := t.Context()
	put(t, b, "posts/b", doc{Name: "b"})
	put(t, b, "posts/a", doc{Name: "a"})
	put(t, b, "posts/a/comments/c1", doc{Name: "comment"})
	put(t, b, "postsx/z", doc{Name: "other collection"})

	var ids []string
	for d, err := range b.List(ctx, "posts") {
		require.NoError(t, err)
		assert.Equal(t, "posts", d.Collection)
		assert.Equal(t, "posts/"+d.ID, d.Path)
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)

	var comments []string
	for d, err := range b.List(ctx, "posts/a/comments") {
		require.NoError(t, err)
		comments = append(comments, d.ID)
	}
	assert.Equal(t, []string{"c1"}, comments)
}

func testListGroup(t *testing.T, b store.Backend) {
	ctx := t.Context()
	put(t, b, "users/u1/likedPosts/p1", doc{Name: "l1"})
	put(t, b, "users/u2/likedPosts/p1", doc{Name: "l2"})
	put(t, b, "users/u2/likedPosts/p2", doc{Name: "l3"})
	put(t, b, "users/u2/bookmarks/p1", doc{Name: "b1"})

	parents := map[string]int{}
	for d, err := range b.ListGroup(ctx, "likedPosts") {
		require.NoError(t, err)
		parents[store.ParentDoc(d.Collection)]++
	}
	assert.Equal(t, map[string]int{"users/u1": 1, "users/u2": 2}, parents)

	// Early termination must not leak errors.
	for _, err := range b.ListGroup(ctx, "likedPosts") {
		require.NoError(t, err)
		break
	}
}

func testCount(t *testing.T, b store.Backend) {
	ctx := t.Context()
	n, err := b.Count(ctx, "posts/p1/comments")
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := range 3 {
		put(t, b, fmt.Sprintf("posts/p1/comments/c%d", i), doc{})
	}
	put(t, b, "posts/p2/comments/c1", doc{})

	n, err = b.Count(ctx, "posts/p1/comments")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func testTransactionCommit(t *testing.T, b store.Backend) {
	ctx := t.Context()
	put(t, b, "posts/p1", doc{Count: 1})

	err := b.RunTransaction(ctx, func(tx store.Tx) error {
		cur, err := store.GetTx[doc](tx, "posts/p1")
		if err != nil {
			return err
		}
		exists, err := store.ExistsTx(tx, "users/u1/likedPosts/p1")
		if err != nil {
			return err
		}
		if exists {
			return errors.New("unexpected membership")
		}
		if err := store.SetTx(tx, "users/u1/likedPosts/p1", doc{Name: "like"}); err != nil {
			return err
		}
		return store.PatchTx(tx, "posts/p1", map[string]any{"count": cur.Count + 1})
	})
	require.NoError(t, err)

	data, err := b.Get(ctx, "posts/p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"","count":2}`, string(data))

	_, err = b.Get(ctx, "users/u1/likedPosts/p1")
	assert.NoError(t, err)
}

func testTransactionRollback(t *testing.T, b store.Backend) {
	ctx := t.Context()
	boom := errors.New("boom")

	err := b.RunTransaction(ctx, func(tx store.Tx) error {
		if err := store.SetTx(tx, "posts/p1", doc{Name: "never"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = b.Get(ctx, "posts/p1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testNoLostUpdates(t *testing.T, b store.Backend) {
	ctx := t.Context()
	put(t, b, "posts/p1", doc{})

	const workers = 16
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for {
				err := b.RunTransaction(ctx, func(tx store.Tx) error {
					cur, err := store.GetTx[doc](tx, "posts/p1")
					if err != nil {
						return err
					}
					cur.Count++
					return store.SetTx(tx, "posts/p1", cur)
				})
				if store.IsTransient(err) {
					continue
				}
				assert.NoError(t, err)
				return
			}
		})
	}
	wg.Wait()

	data, err := b.Get(ctx, "posts/p1")
	require.NoError(t, err)
	var got doc
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, workers, got.Count)
}

func testBatchLimit(t *testing.T, b store.Backend) {
	ctx := t.Context()
	batch := b.NewBatch()
	for i := range store.BatchLimit {
		require.NoError(t, batch.Set(fmt.Sprintf("posts/p%d", i), []byte(`{}`)))
	}
	assert.ErrorIs(t, batch.Set("posts/overflow", []byte(`{}`)), store.ErrBatchTooLarge)
	assert.Equal(t, store.BatchLimit, batch.Len())

	require.NoError(t, batch.Commit(ctx))
	assert.Zero(t, batch.Len())

	n, err := b.Count(ctx, "posts")
	require.NoError(t, err)
	assert.Equal(t, store.BatchLimit, n)

	require.NoError(t, batch.Delete("posts/p0"))
	require.NoError(t, batch.Commit(ctx))
	n, err = b.Count(ctx, "posts")
	require.NoError(t, err)
	assert.Equal(t, store.BatchLimit-1, n)
}

func testDeleteCollection(t *testing.T, b store.Backend) {
	ctx := t.Context()
	w := store.NewBatchWriter(b, nil)
	const total = 1000
	for i := range total {
		require.NoError(t, w.Set(ctx, fmt.Sprintf("posts/p1/comments/c%04d", i), doc{Count: i}))
	}
	require.NoError(t, w.Flush(ctx))
	assert.Equal(t, total, w.Committed())
	put(t, b, "posts/p2/comments/keep", doc{})

	removed, err := store.DeleteCollection(ctx, b, "posts/p1/comments", nil)
	require.NoError(t, err)
	assert.Equal(t, total, removed)

	n, err := b.Count(ctx, "posts/p1/comments")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = b.Count(ctx, "posts/p2/comments")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testTypedCollection(t *testing.T, b store.Backend) {
	ctx := t.Context()
	users := store.NewCollection[doc](b, "users")

	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("u%02d", i)
		require.NoError(t, users.Set(ctx, ids[i], &doc{Name: ids[i], Count: i % 5}))
	}

	got, err := users.GetMany(ctx, append(ids, "missing", "u00", ""))
	require.NoError(t, err)
	assert.Len(t, got, 25)
	assert.Equal(t, "u07", got["u07"].Name)

	top, err := users.Query().
		Where(func(d *doc) bool { return d.Count >= 3 }).
		OrderBy(func(a, b *doc) int { return b.Count - a.Count }).
		Limit(3).
		Run(ctx)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"u04", "u09", "u14"}, []string{top[0].Name, top[1].Name, top[2].Name})

	first, err := users.Query().Where(func(d *doc) bool { return d.Name == "u24" }).First(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Count)

	_, err = users.Query().Where(func(*doc) bool { return false }).First(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	ok, err := users.Exists(ctx, "u01")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = users.Exists(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, n)
}

func testCancelledContext(t *testing.T, b store.Backend) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := b.Get(ctx, "posts/p1")
	assert.ErrorIs(t, err, context.Canceled)

	err = b.RunTransaction(ctx, func(store.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
