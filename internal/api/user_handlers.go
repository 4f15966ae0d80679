package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/arasuji/arasuji-server/internal/domain"
	"github.com/arasuji/arasuji-server/internal/service"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}",
		Summary:     "Get profile",
		Description: "Returns a user's public profile and whether the viewer follows them",
		Tags:        []string{"Users"},
	}, s.handleGetUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateMyProfile",
		Method:      http.MethodPatch,
		Path:        "/api/v1/users/me",
		Summary:     "Update profile",
		Description: "Changes the signed-in user's username and bio",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateMyProfile)

	huma.Register(s.api, huma.Operation{
		OperationID: "listUserPosts",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}/posts",
		Summary:     "List user posts",
		Description: "Returns the user's posts, newest first",
		Tags:        []string{"Users"},
	}, s.handleListUserPosts)

	huma.Register(s.api, huma.Operation{
		OperationID: "listFollowing",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}/following",
		Summary:     "List following",
		Description: "Returns the profiles the user follows, most recent first",
		Tags:        []string{"Users"},
	}, s.handleListFollowing)

	huma.Register(s.api, huma.Operation{
		OperationID: "listFollowers",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}/followers",
		Summary:     "List followers",
		Description: "Returns the profiles following the user, most recent first",
		Tags:        []string{"Users"},
	}, s.handleListFollowers)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleFollow",
		Method:      http.MethodPost,
		Path:        "/api/v1/users/{id}/follow",
		Summary:     "Toggle follow",
		Description: "Follows the user, or unfollows when already following",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleToggleFollow)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMyLikes",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/likes",
		Summary:     "Liked posts",
		Description: "Returns the posts the signed-in user liked, most recent like first",
		Tags:        []string{"Me"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListMyLikes)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMyBookmarks",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/bookmarks",
		Summary:     "Bookmarked posts",
		Description: "Returns the posts the signed-in user bookmarked, most recent first",
		Tags:        []string{"Me"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListMyBookmarks)
}

// === DTOs ===

// UserSummary is a public profile in lists and auth responses.
type UserSummary struct {
	ID             string `json:"id" doc:"User ID"`
	Username       string `json:"username" doc:"Display name"`
	Bio            string `json:"bio" doc:"Bio"`
	AvatarColor    string `json:"avatarColor" doc:"Avatar background color"`
	FollowerCount  int64  `json:"followerCount" doc:"Number of followers"`
	FollowingCount int64  `json:"followingCount" doc:"Number of users followed"`
}

// ProfileResponse is a profile page.
type ProfileResponse struct {
	UserSummary
	IsFollowing bool      `json:"isFollowing" doc:"Whether the viewer follows this user"`
	CreatedAt   time.Time `json:"createdAt" doc:"Sign-up time"`
}

// ProfileOutput wraps a profile for Huma.
type ProfileOutput struct {
	Body ProfileResponse
}

// UsersResponse is a list of profiles.
type UsersResponse struct {
	Users []UserSummary `json:"users" doc:"Profiles"`
}

// UsersOutput wraps a profile list for Huma.
type UsersOutput struct {
	Body UsersResponse
}

// UserIDInput identifies a user.
type UserIDInput struct {
	ID string `path:"id" doc:"User ID"`
}

// UpdateProfileRequest is the request body for profile edits.
type UpdateProfileRequest struct {
	Username string `json:"username,omitempty" doc:"Display name, up to 20 characters"`
	Bio      string `json:"bio,omitempty" doc:"Bio, up to 160 characters"`
}

// UpdateProfileInput wraps the request for Huma.
type UpdateProfileInput struct {
	Body UpdateProfileRequest
}

// === Handlers ===

func (s *Server) handleGetUser(ctx context.Context, input *UserIDInput) (*ProfileOutput, error) {
	profile, err := s.services.Profiles.Get(ctx, viewerID(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: mapProfile(profile)}, nil
}

func (s *Server) handleUpdateMyProfile(ctx context.Context, input *UpdateProfileInput) (*ProfileOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := s.services.Profiles.Update(ctx, userID, input.Body.Username, input.Body.Bio)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: mapProfile(profile)}, nil
}

func (s *Server) handleListUserPosts(ctx context.Context, input *UserIDInput) (*PostsOutput, error) {
	posts, err := s.services.Posts.ListByAuthor(ctx, viewerID(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &PostsOutput{Body: mapPosts(posts)}, nil
}

func (s *Server) handleListFollowing(ctx context.Context, input *UserIDInput) (*UsersOutput, error) {
	users, err := s.services.Profiles.Following(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &UsersOutput{Body: mapUsers(users)}, nil
}

func (s *Server) handleListFollowers(ctx context.Context, input *UserIDInput) (*UsersOutput, error) {
	users, err := s.services.Profiles.Followers(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &UsersOutput{Body: mapUsers(users)}, nil
}

func (s *Server) handleToggleFollow(ctx context.Context, input *UserIDInput) (*ToggleOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.services.Profiles.ToggleFollow(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &ToggleOutput{Body: ToggleResponse(result)}, nil
}

func (s *Server) handleListMyLikes(ctx context.Context, _ *struct{}) (*PostsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := s.services.Posts.ListLiked(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &PostsOutput{Body: mapPosts(posts)}, nil
}

func (s *Server) handleListMyBookmarks(ctx context.Context, _ *struct{}) (*PostsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := s.services.Posts.ListBookmarked(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &PostsOutput{Body: mapPosts(posts)}, nil
}

func mapProfile(p *service.ProfileView) ProfileResponse {
	return ProfileResponse{
		UserSummary: mapUserSummary(&p.User),
		IsFollowing: p.IsFollowing,
		CreatedAt:   p.CreatedAt,
	}
}

func mapUsers(users []*domain.User) UsersResponse {
	out := make([]UserSummary, len(users))
	for i, u := range users {
		out[i] = mapUserSummary(u)
	}
	return UsersResponse{Users: out}
}
