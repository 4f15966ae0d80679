package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arasuji/arasuji-server/internal/domain"
	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
)

func TestCommentService_AddNotifiesPostAuthor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.store, "author", "作者")
	seedUser(t, env.store, "reader", "読者")
	seedPost(t, env.store, &domain.Post{ID: "p1", AuthorID: "author"})

	view, err := env.comments.Add(ctx, "reader", "p1", "  面白そう！  ", "")
	require.NoError(t, err)
	env.notifier.Wait()

	assert.Equal(t, "面白そう！", view.Body)
	assert.Equal(t, "読者", view.AuthorName)
	assert.True(t, view.IsRoot())
	assert.EqualValues(t, 0, view.LikeCount)
	assert.NotNil(t, view.LikeUIDs)

	notes := listNotifications(t, env.store, "author")
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationComment, notes[0].Type)
	assert.Equal(t, "reader", notes[0].FromUID)
	require.NotNil(t, notes[0].CommentID)
	assert.Equal(t, view.ID, *notes[0].CommentID)
}

func TestCommentService_ReplyNotifiesParentAuthor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPost(t, env.store, &domain.Post{ID: "p1", AuthorID: "author"})
	seedComment(t, env.store, &domain.Comment{ID: "c1", PostID: "p1", Body: "最初", AuthorID: "first"})

	reply, err := env.comments.Add(ctx, "second", "p1", "返信", "c1")
	require.NoError(t, err)
	env.notifier.Wait()

	assert.Equal(t, "c1", reply.ParentID)
	assert.Len(t, listNotifications(t, env.store, "first"), 1)
	assert.Empty(t, listNotifications(t, env.store, "author"))
}

func TestCommentService_OwnPostNoNotification(t *testing.T) {
	env := newTestEnv(t)
	seedPost(t, env.store, &domain.Post{ID: "p1", AuthorID: "author"})

	_, err := env.comments.Add(context.Background(), "author", "p1", "補足です", "")
	require.NoError(t, err)
	env.notifier.Wait()
	assert.Empty(t, listNotifications(t, env.store, "author"))
}

func TestCommentService_AddRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPost(t, env.store, &domain.Post{ID: "p1", AuthorID: "author"})
	seedPost(t, env.store, &domain.Post{ID: "p2", AuthorID: "author"})
	seedComment(t, env.store, &domain.Comment{ID: "other", PostID: "p2", Body: "x", AuthorID: "u"})

	_, err := env.comments.Add(ctx, "", "p1", "本文", "")
	assert.Equal(t, domainerrors.CodeUnauthorized, domainerrors.CodeOf(err))

	_, err = env.comments.Add(ctx, "u", "p1", "　", "")
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	_, err = env.comments.Add(ctx, "u", "p1", strings.Repeat("字", 501), "")
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	_, err = env.comments.Add(ctx, "u", "missing", "本文", "")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	// The parent must live under the same post.
	_, err = env.comments.Add(ctx, "u", "p1", "本文", "other")
	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domainerrors.CodeNotFound, de.Code)
	assert.Equal(t, "parent comment not found", de.Message)

	n, err := env.comments.Count(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCommentService_Thread(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.store, "u1", "ゆき")
	seedPost(t, env.store, &domain.Post{ID: "p1", AuthorID: "author"})
	seedComment(t, env.store, &domain.Comment{ID: "root", PostID: "p1", Body: "a", AuthorID: "u1", CreatedAt: at(1, 0), LikeUIDs: []string{"viewer"}, LikeCount: 1})
	seedComment(t, env.store, &domain.Comment{ID: "reply", PostID: "p1", Body: "b", AuthorID: "gone", ParentID: "root", CreatedAt: at(2, 0)})
	seedComment(t, env.store, &domain.Comment{ID: "second", PostID: "p1", Body: "c", AuthorID: "u1", CreatedAt: at(3, 0)})

	views, err := env.comments.Thread(ctx, "viewer", "p1")
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.Equal(t, "root", views[0].ID)
	assert.Equal(t, 0, views[0].Depth)
	assert.Equal(t, "ゆき", views[0].AuthorName)
	assert.True(t, views[0].LikedByViewer)

	assert.Equal(t, "reply", views[1].ID)
	assert.Equal(t, 1, views[1].Depth)
	assert.Equal(t, domain.AnonymousName, views[1].AuthorName)
	assert.False(t, views[1].LikedByViewer)

	assert.Equal(t, "second", views[2].ID)
	assert.Equal(t, 0, views[2].Depth)

	empty, err := env.comments.Thread(ctx, "", "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCommentService_ToggleLike(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPost(t, env.store, &domain.Post{ID: "p1", AuthorID: "author"})
	seedComment(t, env.store, &domain.Comment{ID: "c1", PostID: "p1", Body: "a", AuthorID: "commenter", CreatedAt: at(1, 0)})

	res, err := env.comments.ToggleLike(ctx, "fan", "p1", "c1")
	require.NoError(t, err)
	assert.True(t, res.Active)
	env.notifier.Wait()

	views, err := env.comments.Thread(ctx, "fan", "p1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.EqualValues(t, 1, views[0].LikeCount)
	assert.True(t, views[0].LikedByViewer)

	notes := listNotifications(t, env.store, "commenter")
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationCommentLike, notes[0].Type)
}
