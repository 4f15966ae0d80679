package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arasuji/arasuji-server/internal/color"
)

func (ts *testServer) createPost(t *testing.T, token string, body map[string]any) PostResponse {
	t.Helper()
	resp := ts.api.Post("/api/v1/posts", bearer(token), body)
	require.Equal(t, http.StatusCreated, resp.Code, "create post failed: %s", resp.Body.String())
	return decode[PostResponse](t, resp.Body.Bytes()).Data
}

func TestCreateAndGetPost(t *testing.T) {
	ts := setupTestServer(t, nil)
	token, userID := ts.signUp(t, "yuki@example.com", "ゆき")

	post := ts.createPost(t, token, map[string]any{
		"title":     "  竜の娘  ",
		"catchcopy": "   ",
		"body":      "辺境の村で竜の卵を拾った少女の話。",
		"genre":     "ファンタジー",
		"tags":      []string{"竜", " 竜 ", "日常"},
	})
	assert.Equal(t, userID, post.AuthorID)
	assert.Equal(t, "ゆき", post.AuthorName)
	assert.Equal(t, color.ForUser(userID), post.AuthorColor)
	require.NotNil(t, post.Title)
	assert.Equal(t, "竜の娘", *post.Title)
	assert.Nil(t, post.Catchcopy)
	assert.Nil(t, post.URL)
	assert.Equal(t, []string{"竜", "日常"}, post.Tags)
	assert.NotNil(t, post.CreatedAt)

	// Anonymous readers see the post without viewer state.
	resp := ts.api.Get("/api/v1/posts/" + post.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	got := decode[PostResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, post.ID, got.ID)
	require.NotNil(t, got.CommentCount)
	assert.Equal(t, 0, *got.CommentCount)
	assert.False(t, got.Liked)

	resp = ts.api.Get("/api/v1/posts/missing")
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decode[any](t, resp.Body.Bytes()).Code)
}

func TestCreatePost_Validation(t *testing.T) {
	ts := setupTestServer(t, nil)
	token, _ := ts.signUp(t, "yuki@example.com", "ゆき")

	resp := ts.api.Post("/api/v1/posts", bearer(token), map[string]any{
		"body":  "   ",
		"genre": "存在しない",
		"url":   "ftp://example.com",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

	env := decode[any](t, resp.Body.Bytes())
	assert.Equal(t, "VALIDATION", env.Code)
	assert.Contains(t, env.Details, "body")
	assert.Contains(t, env.Details, "genre")
	assert.Contains(t, env.Details, "url")
}

func TestUpdateAndDeletePost(t *testing.T) {
	ts := setupTestServer(t, nil)
	owner, _ := ts.signUp(t, "owner@example.com", "作者")
	other, _ := ts.signUp(t, "other@example.com", "他人")

	post := ts.createPost(t, owner, map[string]any{
		"body":  "本文",
		"genre": "SF",
		"url":   "https://example.com/work",
	})

	resp := ts.api.Patch("/api/v1/posts/"+post.ID, bearer(other), map[string]any{"body": "乗っ取り"})
	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "only the author can edit this post", decode[any](t, resp.Body.Bytes()).Message)

	resp = ts.api.Patch("/api/v1/posts/"+post.ID, bearer(owner), map[string]any{
		"body": "書き直した本文",
		"url":  "",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	updated := decode[PostResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "書き直した本文", updated.Body)
	assert.Nil(t, updated.URL)
	assert.Equal(t, "SF", updated.Genre)
	assert.NotNil(t, updated.UpdatedAt)

	resp = ts.api.Delete("/api/v1/posts/"+post.ID, bearer(other))
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.api.Delete("/api/v1/posts/"+post.ID, bearer(owner))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/posts/" + post.ID)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestTogglePostLikeAndBookmark(t *testing.T) {
	ts := setupTestServer(t, nil)
	author, authorID := ts.signUp(t, "author@example.com", "作者")
	reader, _ := ts.signUp(t, "reader@example.com", "読者")

	post := ts.createPost(t, author, map[string]any{"body": "本文", "genre": "青春"})

	resp := ts.api.Post("/api/v1/posts/"+post.ID+"/like", bearer(reader))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, ToggleResponse{Active: true, Count: 1}, decode[ToggleResponse](t, resp.Body.Bytes()).Data)

	resp = ts.api.Post("/api/v1/posts/"+post.ID+"/bookmark", bearer(reader))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, ToggleResponse{Active: true, Count: 1}, decode[ToggleResponse](t, resp.Body.Bytes()).Data)

	resp = ts.api.Get("/api/v1/posts/"+post.ID, bearer(reader))
	require.Equal(t, http.StatusOK, resp.Code)
	got := decode[PostResponse](t, resp.Body.Bytes()).Data
	assert.True(t, got.Liked)
	assert.True(t, got.Bookmarked)
	assert.Equal(t, int64(1), got.LikeCount)

	resp = ts.api.Get("/api/v1/me/likes", bearer(reader))
	require.Equal(t, http.StatusOK, resp.Code)
	likes := decode[PostsResponse](t, resp.Body.Bytes()).Data.Posts
	require.Len(t, likes, 1)
	assert.Equal(t, post.ID, likes[0].ID)

	resp = ts.api.Get("/api/v1/me/bookmarks", bearer(reader))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[PostsResponse](t, resp.Body.Bytes()).Data.Posts, 1)

	// Unlike.
	resp = ts.api.Post("/api/v1/posts/"+post.ID+"/like", bearer(reader))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, ToggleResponse{Active: false, Count: 0}, decode[ToggleResponse](t, resp.Body.Bytes()).Data)

	// The author was told about the like and the bookmark.
	ts.notifier.Wait()
	resp = ts.api.Get("/api/v1/notifications", bearer(author))
	require.Equal(t, http.StatusOK, resp.Code)
	notifications := decode[NotificationsResponse](t, resp.Body.Bytes()).Data.Notifications
	require.Len(t, notifications, 2)
	types := []string{notifications[0].Type, notifications[1].Type}
	assert.ElementsMatch(t, []string{"like", "bookmark"}, types)
	assert.Equal(t, "読者", notifications[0].FromName)
	assert.NotEqual(t, authorID, notifications[0].FromUID)

	resp = ts.api.Post("/api/v1/posts/missing/like", bearer(reader))
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestFeed(t *testing.T) {
	ts := setupTestServer(t, nil)
	token, _ := ts.signUp(t, "yuki@example.com", "ゆき")

	first := ts.createPost(t, token, map[string]any{"body": "ドラゴンの話", "genre": "ファンタジー"})
	second := ts.createPost(t, token, map[string]any{"body": "宇宙の話", "genre": "SF"})

	resp := ts.api.Get("/api/v1/feed")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	posts := decode[PostsResponse](t, resp.Body.Bytes()).Data.Posts
	require.Len(t, posts, 2)
	assert.Equal(t, second.ID, posts[0].ID, "new tab is newest first")
	assert.Equal(t, first.ID, posts[1].ID)
	for _, p := range posts {
		assert.Nil(t, p.CommentCount)
	}

	resp = ts.api.Get("/api/v1/feed?genre=SF")
	require.Equal(t, http.StatusOK, resp.Code)
	posts = decode[PostsResponse](t, resp.Body.Bytes()).Data.Posts
	require.Len(t, posts, 1)
	assert.Equal(t, second.ID, posts[0].ID)

	resp = ts.api.Get("/api/v1/feed?q=%E3%83%89%E3%83%A9%E3%82%B4%E3%83%B3")
	require.Equal(t, http.StatusOK, resp.Code)
	posts = decode[PostsResponse](t, resp.Body.Bytes()).Data.Posts
	require.Len(t, posts, 1)
	assert.Equal(t, first.ID, posts[0].ID)

	resp = ts.api.Get("/api/v1/feed?tab=following")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[PostsResponse](t, resp.Body.Bytes()).Data.Posts, "signed-out viewers follow nobody")

	resp = ts.api.Get("/api/v1/feed?tab=sideways")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
