package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/arasuji/arasuji-server/internal/service"
)

func (s *Server) registerFeedRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getFeed",
		Method:      http.MethodGet,
		Path:        "/api/v1/feed",
		Summary:     "Home feed",
		Description: "Returns the home feed for a tab, narrowed by search text and genre",
		Tags:        []string{"Feed"},
	}, s.handleGetFeed)
}

// GetFeedInput contains feed query parameters.
type GetFeedInput struct {
	Tab    string `query:"tab" doc:"new (default), recommended, popular, or following"`
	Window string `query:"window" doc:"Recommended tab window: day (default) or all"`
	Query  string `query:"q" doc:"Search text matched against title, catch copy, body, tags, and author name"`
	Genre  string `query:"genre" doc:"Genre filter; すべて or empty means all"`
	Limit  int    `query:"limit" minimum:"0" maximum:"200" doc:"Maximum posts to return, 0 for all"`
}

func (s *Server) handleGetFeed(ctx context.Context, input *GetFeedInput) (*PostsOutput, error) {
	posts, err := s.services.Feed.Feed(ctx, viewerID(ctx), service.FeedQuery{
		Tab:    service.FeedTab(input.Tab),
		Window: service.FeedWindow(input.Window),
		Search: input.Query,
		Genre:  input.Genre,
		Limit:  input.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &PostsOutput{Body: mapPosts(posts)}, nil
}
