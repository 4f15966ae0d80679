package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/arasuji/arasuji-server/internal/domain"
	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
	"github.com/arasuji/arasuji-server/internal/id"
	"github.com/arasuji/arasuji-server/internal/normalize"
	"github.com/arasuji/arasuji-server/internal/store"
	"github.com/arasuji/arasuji-server/internal/validation"
)

// AddCommentRequest is the input for a comment or reply.
type AddCommentRequest struct {
	Body     string `json:"body" validate:"notblank,max=500"`
	ParentID string `json:"parentId,omitempty"`
}

// CommentView is a comment in thread order as shown to a viewer.
type CommentView struct {
	domain.Comment
	AuthorName    string `json:"authorName"`
	LikedByViewer bool   `json:"likedByViewer"`
	Depth         int    `json:"depth"`
}

// CommentService manages comment threads.
type CommentService struct {
	store     store.Backend
	ledger    *Ledger
	notifier  *Notifier
	validator *validation.Validator
	logger    *slog.Logger
	clock     Clock
}

// NewCommentService creates a comment service.
func NewCommentService(b store.Backend, ledger *Ledger, notifier *Notifier, v *validation.Validator, logger *slog.Logger) *CommentService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CommentService{store: b, ledger: ledger, notifier: notifier, validator: v, logger: logger}
}

// Add posts a comment on postID, or a reply when parentID is set. The parent
// must belong to the same post.
func (s *CommentService) Add(ctx context.Context, actorID, postID, body, parentID string) (*CommentView, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if !id.Valid(postID) {
		return nil, domainerrors.NotFound("post not found")
	}
	req := AddCommentRequest{Body: normalize.Trim(body), ParentID: normalize.Trim(parentID)}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.ParentID != "" && !id.Valid(req.ParentID) {
		return nil, domainerrors.NotFound("parent comment not found")
	}

	commentID, err := id.Generate(id.PrefixComment)
	if err != nil {
		return nil, err
	}
	now := s.clock.now()
	comment := &domain.Comment{
		ID:        commentID,
		PostID:    postID,
		Body:      req.Body,
		AuthorID:  actorID,
		ParentID:  req.ParentID,
		LikeCount: 0,
		LikeUIDs:  []string{},
		CreatedAt: &now,
	}

	var postAuthor, parentAuthor string
	err = s.store.RunTransaction(ctx, func(tx store.Tx) error {
		post, err := store.GetTx[domain.Post](tx, store.PostPath(postID))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domainerrors.NotFound("post not found")
			}
			return err
		}
		postAuthor = post.AuthorID

		if req.ParentID != "" {
			parent, err := store.GetTx[domain.Comment](tx, store.CommentPath(postID, req.ParentID))
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return domainerrors.NotFound("parent comment not found")
				}
				return err
			}
			parentAuthor = parent.AuthorID
		}
		return store.SetTx(tx, store.CommentPath(postID, commentID), comment)
	})
	if err != nil {
		return nil, storeError(err, "add comment")
	}

	if s.notifier != nil {
		recipient := postAuthor
		if req.ParentID != "" {
			recipient = parentAuthor
		}
		s.notifier.Notify(ctx, NotifyRequest{
			Type:        domain.NotificationComment,
			ActorID:     actorID,
			RecipientID: recipient,
			PostID:      postID,
			CommentID:   commentID,
			ParentID:    req.ParentID,
		})
	}

	names, err := displayNames(ctx, s.store, []string{actorID})
	if err != nil {
		s.logger.Warn("failed to resolve comment author name", "user_id", actorID, "error", err)
		names = map[string]string{}
	}

	s.logger.Info("comment added", "post_id", postID, "comment_id", commentID, "user_id", actorID)
	return &CommentView{Comment: *comment, AuthorName: domain.DisplayNameOf(names[actorID])}, nil
}

// Thread returns the comments on postID in display order. A missing post has
// an empty thread.
func (s *CommentService) Thread(ctx context.Context, viewerID, postID string) ([]CommentView, error) {
	if !id.Valid(postID) {
		return []CommentView{}, nil
	}

	var comments []*domain.Comment
	for c, err := range store.NewCollection[domain.Comment](s.store, store.CommentsPath(postID)).All(ctx) {
		if err != nil {
			return nil, storeError(err, "list comments")
		}
		comments = append(comments, c)
	}

	entries := FlattenThread(comments)
	uids := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if uid := e.Comment.AuthorID; uid != "" && !seen[uid] {
			seen[uid] = true
			uids = append(uids, uid)
		}
	}
	names, err := displayNames(ctx, s.store, uids)
	if err != nil {
		s.logger.Warn("failed to resolve comment author names", "post_id", postID, "error", err)
		names = map[string]string{}
	}

	views := make([]CommentView, len(entries))
	for i, e := range entries {
		views[i] = CommentView{
			Comment:       *e.Comment,
			AuthorName:    domain.DisplayNameOf(names[e.Comment.AuthorID]),
			LikedByViewer: e.Comment.LikedBy(viewerID),
			Depth:         e.Depth,
		}
	}
	return views, nil
}

// Count returns the number of comments on postID.
func (s *CommentService) Count(ctx context.Context, postID string) (int, error) {
	if !id.Valid(postID) {
		return 0, nil
	}
	n, err := s.store.Count(ctx, store.CommentsPath(postID))
	if err != nil {
		return 0, storeError(err, "count comments")
	}
	return n, nil
}

// ToggleLike flips the actor's like on a comment.
func (s *CommentService) ToggleLike(ctx context.Context, actorID, postID, commentID string) (ToggleResult, error) {
	return s.ledger.ToggleCommentLike(ctx, actorID, postID, commentID)
}
