package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/arasuji/arasuji-server/internal/color"
	"github.com/arasuji/arasuji-server/internal/service"
)

func (s *Server) registerPostRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createPost",
		Method:        http.MethodPost,
		Path:          "/api/v1/posts",
		Summary:       "Create post",
		Description:   "Publishes a synopsis by the signed-in user",
		Tags:          []string{"Posts"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreatePost)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPost",
		Method:      http.MethodGet,
		Path:        "/api/v1/posts/{id}",
		Summary:     "Get post",
		Description: "Returns a post with its comment count and the viewer's like and bookmark state",
		Tags:        []string{"Posts"},
	}, s.handleGetPost)

	huma.Register(s.api, huma.Operation{
		OperationID: "updatePost",
		Method:      http.MethodPatch,
		Path:        "/api/v1/posts/{id}",
		Summary:     "Update post",
		Description: "Edits a post. Only the author may edit",
		Tags:        []string{"Posts"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdatePost)

	huma.Register(s.api, huma.Operation{
		OperationID: "deletePost",
		Method:      http.MethodDelete,
		Path:        "/api/v1/posts/{id}",
		Summary:     "Delete post",
		Description: "Deletes a post and its comments. Only the author may delete",
		Tags:        []string{"Posts"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeletePost)

	huma.Register(s.api, huma.Operation{
		OperationID: "togglePostLike",
		Method:      http.MethodPost,
		Path:        "/api/v1/posts/{id}/like",
		Summary:     "Toggle like",
		Description: "Likes the post, or removes the like when already liked",
		Tags:        []string{"Posts"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleTogglePostLike)

	huma.Register(s.api, huma.Operation{
		OperationID: "togglePostBookmark",
		Method:      http.MethodPost,
		Path:        "/api/v1/posts/{id}/bookmark",
		Summary:     "Toggle bookmark",
		Description: "Bookmarks the post, or removes the bookmark when already bookmarked",
		Tags:        []string{"Posts"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleTogglePostBookmark)
}

// === DTOs ===

// PostResponse is a post as shown to the requesting viewer.
type PostResponse struct {
	ID            string     `json:"id" doc:"Post ID"`
	AuthorID      string     `json:"authorId" doc:"Author user ID"`
	AuthorName    string     `json:"authorName" doc:"Author display name"`
	AuthorColor   string     `json:"authorAvatarColor" doc:"Author avatar background color"`
	Title         *string    `json:"title" doc:"Title, null when blank"`
	Catchcopy     *string    `json:"catchcopy" doc:"Catch copy, null when blank"`
	Body          string     `json:"body" doc:"Synopsis"`
	URL           *string    `json:"url" doc:"Link to the work, null when blank"`
	Genre         string     `json:"genre" doc:"Genre"`
	Tags          []string   `json:"tags" doc:"Tags"`
	LikeCount     int64      `json:"likeCount" doc:"Number of likes"`
	BookmarkCount int64      `json:"bookmarkCount" doc:"Number of bookmarks"`
	CommentCount  *int       `json:"commentCount,omitempty" doc:"Number of comments, only on single-post reads"`
	Liked         bool       `json:"liked" doc:"Whether the viewer liked the post"`
	Bookmarked    bool       `json:"bookmarked" doc:"Whether the viewer bookmarked the post"`
	CreatedAt     *time.Time `json:"createdAt" doc:"Creation time, null for legacy posts"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty" doc:"Last edit time"`
}

// PostOutput wraps a single post for Huma.
type PostOutput struct {
	Body PostResponse
}

// PostsResponse is a list of posts.
type PostsResponse struct {
	Posts []PostResponse `json:"posts" doc:"Posts"`
}

// PostsOutput wraps a post list for Huma.
type PostsOutput struct {
	Body PostsResponse
}

// CreatePostRequest is the request body for a new post.
type CreatePostRequest struct {
	Title     string   `json:"title,omitempty" doc:"Title, up to 63 characters"`
	Catchcopy string   `json:"catchcopy,omitempty" doc:"Catch copy, up to 37 characters"`
	Body      string   `json:"body,omitempty" doc:"Synopsis, up to 500 characters"`
	URL       string   `json:"url,omitempty" doc:"http or https link to the work"`
	Genre     string   `json:"genre,omitempty" doc:"One of the fixed genres"`
	Tags      []string `json:"tags,omitempty" doc:"Up to 8 tags"`
}

// CreatePostInput wraps the create request for Huma.
type CreatePostInput struct {
	Body CreatePostRequest
}

// UpdatePostRequest is the request body for editing a post. Omitted fields
// are left unchanged; an empty string clears an optional field.
type UpdatePostRequest struct {
	Title     *string   `json:"title,omitempty" doc:"Title"`
	Catchcopy *string   `json:"catchcopy,omitempty" doc:"Catch copy"`
	Body      *string   `json:"body,omitempty" doc:"Synopsis"`
	URL       *string   `json:"url,omitempty" doc:"Link to the work"`
	Genre     *string   `json:"genre,omitempty" doc:"Genre"`
	Tags      *[]string `json:"tags,omitempty" doc:"Tags"`
}

// UpdatePostInput wraps the update request for Huma.
type UpdatePostInput struct {
	ID   string `path:"id" doc:"Post ID"`
	Body UpdatePostRequest
}

// PostIDInput identifies a post.
type PostIDInput struct {
	ID string `path:"id" doc:"Post ID"`
}

// ToggleResponse is the relation state after a toggle.
type ToggleResponse struct {
	Active bool  `json:"active" doc:"Whether the relation now exists"`
	Count  int64 `json:"count" doc:"Counter value after the toggle"`
}

// ToggleOutput wraps a toggle response for Huma.
type ToggleOutput struct {
	Body ToggleResponse
}

// === Handlers ===

func (s *Server) handleCreatePost(ctx context.Context, input *CreatePostInput) (*PostOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	post, err := s.services.Posts.Create(ctx, userID, service.CreatePostRequest{
		Title:     input.Body.Title,
		Catchcopy: input.Body.Catchcopy,
		Body:      input.Body.Body,
		URL:       input.Body.URL,
		Genre:     input.Body.Genre,
		Tags:      input.Body.Tags,
	})
	if err != nil {
		return nil, err
	}
	return &PostOutput{Body: mapPost(post)}, nil
}

func (s *Server) handleGetPost(ctx context.Context, input *PostIDInput) (*PostOutput, error) {
	post, err := s.services.Posts.Get(ctx, viewerID(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &PostOutput{Body: mapPost(post)}, nil
}

func (s *Server) handleUpdatePost(ctx context.Context, input *UpdatePostInput) (*PostOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	post, err := s.services.Posts.Update(ctx, userID, input.ID, service.UpdatePostRequest{
		Title:     input.Body.Title,
		Catchcopy: input.Body.Catchcopy,
		Body:      input.Body.Body,
		URL:       input.Body.URL,
		Genre:     input.Body.Genre,
		Tags:      input.Body.Tags,
	})
	if err != nil {
		return nil, err
	}
	return &PostOutput{Body: mapPost(post)}, nil
}

func (s *Server) handleDeletePost(ctx context.Context, input *PostIDInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Posts.Delete(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Post deleted"}}, nil
}

func (s *Server) handleTogglePostLike(ctx context.Context, input *PostIDInput) (*ToggleOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.services.Ledger.ToggleLike(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &ToggleOutput{Body: ToggleResponse(result)}, nil
}

func (s *Server) handleTogglePostBookmark(ctx context.Context, input *PostIDInput) (*ToggleOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.services.Ledger.ToggleBookmark(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &ToggleOutput{Body: ToggleResponse(result)}, nil
}

// === Helpers ===

func mapPost(v *service.PostView) PostResponse {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	return PostResponse{
		ID:            v.ID,
		AuthorID:      v.AuthorID,
		AuthorName:    v.AuthorName,
		AuthorColor:   color.ForUser(v.AuthorID),
		Title:         v.Title,
		Catchcopy:     v.Catchcopy,
		Body:          v.Body,
		URL:           v.URL,
		Genre:         v.Genre,
		Tags:          tags,
		LikeCount:     int64(v.LikeCount),
		BookmarkCount: int64(v.BookmarkCount),
		CommentCount:  v.CommentCount,
		Liked:         v.Liked,
		Bookmarked:    v.Bookmarked,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func mapPosts(views []*service.PostView) PostsResponse {
	posts := make([]PostResponse, len(views))
	for i, v := range views {
		posts[i] = mapPost(v)
	}
	return PostsResponse{Posts: posts}
}
