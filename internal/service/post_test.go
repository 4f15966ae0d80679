package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arasuji/arasuji-server/internal/domain"
	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
	"github.com/arasuji/arasuji-server/internal/logger"
	"github.com/arasuji/arasuji-server/internal/store"
	"github.com/arasuji/arasuji-server/internal/validation"
)

// fakeIndexer records index writes.
type fakeIndexer struct {
	mu      sync.Mutex
	indexed map[string]*domain.Post
	deleted []string
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{indexed: map[string]*domain.Post{}}
}

func (f *fakeIndexer) IndexPost(_ context.Context, p *domain.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.indexed[p.ID] = &cp
	return nil
}

func (f *fakeIndexer) DeletePost(_ context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.indexed, postID)
	f.deleted = append(f.deleted, postID)
	return nil
}

func validPostRequest() CreatePostRequest {
	return CreatePostRequest{
		Title:     "  竜の夜  ",
		Catchcopy: "",
		Body:      "魔王を倒した勇者が、竜と暮らし始める。",
		URL:       "https://example.com/novel/1",
		Genre:     "ファンタジー",
		Tags:      []string{"#竜", " 竜 ", "", "日常"},
	}
}

func TestPostService_Create(t *testing.T) {
	env := newTestEnv(t)
	idx := newFakeIndexer()
	env.posts = NewPostService(env.store, idx, validation.New(), logger.Discard())
	seedUser(t, env.store, "u1", "ゆき")

	view, err := env.posts.Create(context.Background(), "u1", validPostRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "u1", view.AuthorID)
	assert.Equal(t, "ゆき", view.AuthorName)
	require.NotNil(t, view.Title)
	assert.Equal(t, "竜の夜", *view.Title)
	assert.Nil(t, view.Catchcopy)
	assert.Equal(t, []string{"竜", "日常"}, view.Tags)
	assert.NotNil(t, view.CreatedAt)

	stored := getPost(t, env.store, view.ID)
	assert.Equal(t, view.Body, stored.Body)
	assert.EqualValues(t, 0, stored.LikeCount)
	assert.Contains(t, idx.indexed, view.ID)
}

func TestPostService_CreateWithoutProfile(t *testing.T) {
	env := newTestEnv(t)
	view, err := env.posts.Create(context.Background(), "ghost", validPostRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.AnonymousName, view.AuthorName)
}

func TestPostService_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreatePostRequest)
		field  string
	}{
		{"blank body", func(r *CreatePostRequest) { r.Body = "　 " }, "body"},
		{"long body", func(r *CreatePostRequest) { r.Body = strings.Repeat("あ", 501) }, "body"},
		{"long title", func(r *CreatePostRequest) { r.Title = strings.Repeat("字", 64) }, "title"},
		{"long catchcopy", func(r *CreatePostRequest) { r.Catchcopy = strings.Repeat("字", 38) }, "catchcopy"},
		{"bad url", func(r *CreatePostRequest) { r.URL = "ftp://example.com" }, "url"},
		{"unknown genre", func(r *CreatePostRequest) { r.Genre = "料理" }, "genre"},
		{"missing genre", func(r *CreatePostRequest) { r.Genre = "" }, "genre"},
		{"too many tags", func(r *CreatePostRequest) {
			r.Tags = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
		}, "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			req := validPostRequest()
			tt.mutate(&req)

			_, err := env.posts.Create(context.Background(), "u1", req)
			require.Error(t, err)

			var de *domainerrors.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, domainerrors.CodeValidation, de.Code)
			details, ok := de.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tt.field)
		})
	}
}

func TestPostService_CreateRequiresSignIn(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.posts.Create(context.Background(), "", validPostRequest())
	assert.Equal(t, domainerrors.CodeUnauthorized, domainerrors.CodeOf(err))
}

func TestPostService_Get(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.store, "u1", "ゆき")
	seedPost(t, env.store, &domain.Post{ID: "p1", AuthorID: "u1", AuthorName: "古い名前"})
	seedComment(t, env.store, &domain.Comment{ID: "c1", PostID: "p1", Body: "a", AuthorID: "u2"})
	seedComment(t, env.store, &domain.Comment{ID: "c2", PostID: "p1", Body: "b", AuthorID: "u2"})
	_, err := env.ledger.ToggleBookmark(ctx, "u2", "p1")
	require.NoError(t, err)
	env.notifier.Wait()

	view, err := env.posts.Get(ctx, "u2", "p1")
	require.NoError(t, err)
	assert.Equal(t, "ゆき", view.AuthorName)
	require.NotNil(t, view.CommentCount)
	assert.Equal(t, 2, *view.CommentCount)
	assert.True(t, view.Bookmarked)
	assert.False(t, view.Liked)

	_, err = env.posts.Get(ctx, "", "missing")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func TestPostService_Update(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	idx := newFakeIndexer()
	env.posts = NewPostService(env.store, idx, validation.New(), logger.Discard())
	updatedAt := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	env.posts.clock = fixedClock(updatedAt)

	seedPost(t, env.store, &domain.Post{
		ID:       "p1",
		AuthorID: "u1",
		Title:    ptr("旧題"),
		URL:      ptr("https://example.com"),
		Genre:    "SF",
		Tags:     []string{"宇宙"},
	})

	view, err := env.posts.Update(ctx, "u1", "p1", UpdatePostRequest{
		Title: ptr(" 新題 "),
		URL:   ptr(""),
		Tags:  &[]string{"#宇宙", "船"},
	})
	require.NoError(t, err)
	require.NotNil(t, view.Title)
	assert.Equal(t, "新題", *view.Title)
	assert.Nil(t, view.URL)
	assert.Equal(t, []string{"宇宙", "船"}, view.Tags)
	assert.Equal(t, "SF", view.Genre)
	require.NotNil(t, view.UpdatedAt)
	assert.True(t, view.UpdatedAt.Equal(updatedAt))

	require.Contains(t, idx.indexed, "p1")
	assert.Equal(t, "新題", *idx.indexed["p1"].Title)
}

func TestPostService_UpdateRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPost(t, env.store, &domain.Post{ID: "p1", AuthorID: "u1", Body: "元の本文"})

	_, err := env.posts.Update(ctx, "u2", "p1", UpdatePostRequest{Body: ptr("乗っ取り")})
	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domainerrors.CodeForbidden, de.Code)
	assert.Equal(t, "only the author can edit this post", de.Message)

	_, err = env.posts.Update(ctx, "u1", "p1", UpdatePostRequest{URL: ptr("javascript:alert(1)")})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	_, err = env.posts.Update(ctx, "u1", "p1", UpdatePostRequest{Body: ptr("   ")})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	_, err = env.posts.Update(ctx, "u1", "nope", UpdatePostRequest{Body: ptr("x")})
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	assert.Equal(t, "元の本文", getPost(t, env.store, "p1").Body)
}

func TestPostService_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	idx := newFakeIndexer()
	env.posts = NewPostService(env.store, idx, validation.New(), logger.Discard())

	seedPost(t, env.store, &domain.Post{ID: "p1", AuthorID: "u1"})
	for i := range 3 {
		seedComment(t, env.store, &domain.Comment{ID: "c" + string(rune('a'+i)), PostID: "p1", Body: "x", AuthorID: "u2"})
	}

	err := env.posts.Delete(ctx, "u2", "p1")
	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domainerrors.CodeForbidden, de.Code)
	assert.Equal(t, "only the author can delete this post", de.Message)

	require.NoError(t, env.posts.Delete(ctx, "u1", "p1"))

	exists, err := store.NewCollection[domain.Post](env.store, store.PostsCollection).Exists(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, exists)

	n, err := env.comments.Count(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{"p1"}, idx.deleted)

	err = env.posts.Delete(ctx, "u1", "p1")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func TestPostService_ListByAuthor(t *testing.T) {
	env := newTestEnv(t)
	seedPost(t, env.store, &domain.Post{ID: "a1", AuthorID: "u1", CreatedAt: at(1, 0)})
	seedPost(t, env.store, &domain.Post{ID: "a2", AuthorID: "u1", CreatedAt: at(2, 0)})
	seedPost(t, env.store, &domain.Post{ID: "b1", AuthorID: "u2", CreatedAt: at(3, 0)})

	views, err := env.posts.ListByAuthor(context.Background(), "", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "a1"}, postIDs(views))
}

func TestPostService_ListLikedDropsDeletedPosts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, pid := range []string{"p1", "p2", "p3"} {
		seedPost(t, env.store, &domain.Post{ID: pid, AuthorID: "author"})
	}

	times := []time.Time{
		time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC),
	}
	for i, pid := range []string{"p2", "p1", "p3"} {
		env.ledger.clock = fixedClock(times[i])
		_, err := env.ledger.ToggleLike(ctx, "me", pid)
		require.NoError(t, err)
	}
	env.notifier.Wait()
	require.NoError(t, store.NewCollection[domain.Post](env.store, store.PostsCollection).Delete(ctx, "p3"))

	views, err := env.posts.ListLiked(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, postIDs(views))
	for _, v := range views {
		assert.True(t, v.Liked)
	}

	bookmarks, err := env.posts.ListBookmarked(ctx, "me")
	require.NoError(t, err)
	assert.Empty(t, bookmarks)
	assert.NotNil(t, bookmarks)
}

func TestPostService_Reindex(t *testing.T) {
	env := newTestEnv(t)
	idx := newFakeIndexer()
	env.posts = NewPostService(env.store, idx, validation.New(), logger.Discard())
	seedPost(t, env.store, &domain.Post{ID: "p1"})
	seedPost(t, env.store, &domain.Post{ID: "p2"})

	n, err := env.posts.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, idx.indexed, 2)
}
