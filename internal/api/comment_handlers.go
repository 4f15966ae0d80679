package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/arasuji/arasuji-server/internal/color"
	"github.com/arasuji/arasuji-server/internal/service"
)

func (s *Server) registerCommentRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listComments",
		Method:      http.MethodGet,
		Path:        "/api/v1/posts/{id}/comments",
		Summary:     "List comments",
		Description: "Returns the comment thread of a post in display order with nesting depth",
		Tags:        []string{"Comments"},
	}, s.handleListComments)

	huma.Register(s.api, huma.Operation{
		OperationID:   "addComment",
		Method:        http.MethodPost,
		Path:          "/api/v1/posts/{id}/comments",
		Summary:       "Add comment",
		Description:   "Comments on a post, or replies to a comment when parentId is set",
		Tags:          []string{"Comments"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddComment)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleCommentLike",
		Method:      http.MethodPost,
		Path:        "/api/v1/posts/{id}/comments/{commentId}/like",
		Summary:     "Toggle comment like",
		Description: "Likes the comment, or removes the like when already liked",
		Tags:        []string{"Comments"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleToggleCommentLike)
}

// === DTOs ===

// CommentResponse is a comment in thread order.
type CommentResponse struct {
	ID            string     `json:"id" doc:"Comment ID"`
	PostID        string     `json:"postId" doc:"Post ID"`
	ParentID      string     `json:"parentId,omitempty" doc:"Parent comment ID for replies"`
	AuthorID      string     `json:"authorId" doc:"Author user ID"`
	AuthorName    string     `json:"authorName" doc:"Author display name"`
	AuthorColor   string     `json:"authorAvatarColor" doc:"Author avatar background color"`
	Body          string     `json:"body" doc:"Comment text"`
	LikeCount     int64      `json:"likeCount" doc:"Number of likes"`
	LikedByViewer bool       `json:"likedByViewer" doc:"Whether the viewer liked the comment"`
	Depth         int        `json:"depth" doc:"Nesting depth, 0 for thread roots"`
	CreatedAt     *time.Time `json:"createdAt" doc:"Creation time"`
}

// CommentOutput wraps a comment for Huma.
type CommentOutput struct {
	Body CommentResponse
}

// CommentsResponse is a comment thread.
type CommentsResponse struct {
	Comments []CommentResponse `json:"comments" doc:"Comments in display order"`
}

// CommentsOutput wraps a thread for Huma.
type CommentsOutput struct {
	Body CommentsResponse
}

// AddCommentRequest is the request body for a comment.
type AddCommentRequest struct {
	Body     string `json:"body,omitempty" doc:"Comment text, up to 500 characters"`
	ParentID string `json:"parentId,omitempty" doc:"Comment being replied to"`
}

// AddCommentInput wraps the request for Huma.
type AddCommentInput struct {
	ID   string `path:"id" doc:"Post ID"`
	Body AddCommentRequest
}

// CommentIDInput identifies a comment.
type CommentIDInput struct {
	ID        string `path:"id" doc:"Post ID"`
	CommentID string `path:"commentId" doc:"Comment ID"`
}

// === Handlers ===

func (s *Server) handleListComments(ctx context.Context, input *PostIDInput) (*CommentsOutput, error) {
	thread, err := s.services.Comments.Thread(ctx, viewerID(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	comments := make([]CommentResponse, len(thread))
	for i := range thread {
		comments[i] = mapComment(&thread[i])
	}
	return &CommentsOutput{Body: CommentsResponse{Comments: comments}}, nil
}

func (s *Server) handleAddComment(ctx context.Context, input *AddCommentInput) (*CommentOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	comment, err := s.services.Comments.Add(ctx, userID, input.ID, input.Body.Body, input.Body.ParentID)
	if err != nil {
		return nil, err
	}
	return &CommentOutput{Body: mapComment(comment)}, nil
}

func (s *Server) handleToggleCommentLike(ctx context.Context, input *CommentIDInput) (*ToggleOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.services.Comments.ToggleLike(ctx, userID, input.ID, input.CommentID)
	if err != nil {
		return nil, err
	}
	return &ToggleOutput{Body: ToggleResponse(result)}, nil
}

func mapComment(c *service.CommentView) CommentResponse {
	return CommentResponse{
		ID:            c.ID,
		PostID:        c.PostID,
		ParentID:      c.ParentID,
		AuthorID:      c.AuthorID,
		AuthorName:    c.AuthorName,
		AuthorColor:   color.ForUser(c.AuthorID),
		Body:          c.Body,
		LikeCount:     int64(c.LikeCount),
		LikedByViewer: c.LikedByViewer,
		Depth:         c.Depth,
		CreatedAt:     c.CreatedAt,
	}
}
