package api

import "github.com/arasuji/arasuji-server/internal/service"

// Services groups the business logic services used by the API server.
type Services struct {
	Auth          *service.AuthService
	Posts         *service.PostService
	Comments      *service.CommentService
	Profiles      *service.ProfileService
	Ledger        *service.Ledger
	Notifications *service.NotificationService
	Feed          *service.FeedService
	Search        *service.SearchService // nil when full-text search is disabled
}
