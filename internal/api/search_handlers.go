package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
	"github.com/arasuji/arasuji-server/internal/service"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchPosts",
		Method:      http.MethodGet,
		Path:        "/api/v1/search/posts",
		Summary:     "Search posts",
		Description: "Ranked full-text search over posts",
		Tags:        []string{"Search"},
	}, s.handleSearchPosts)
}

// SearchPostsInput contains search parameters.
type SearchPostsInput struct {
	Query  string `query:"q" doc:"Search text"`
	Genre  string `query:"genre" doc:"Genre filter"`
	Tag    string `query:"tag" doc:"Exact tag filter"`
	Sort   string `query:"sort" doc:"relevance (default), recent, or likes"`
	Limit  int    `query:"limit" minimum:"0" maximum:"100" doc:"Maximum results (default 20)"`
	Offset int    `query:"offset" minimum:"0" doc:"Results to skip"`
}

// SearchPostsResponse is a page of search results.
type SearchPostsResponse struct {
	Query string         `json:"query" doc:"Normalized query"`
	Total uint64         `json:"total" doc:"Total matching posts"`
	Posts []PostResponse `json:"posts" doc:"Posts in rank order"`
}

// SearchPostsOutput wraps the results for Huma.
type SearchPostsOutput struct {
	Body SearchPostsResponse
}

func (s *Server) handleSearchPosts(ctx context.Context, input *SearchPostsInput) (*SearchPostsOutput, error) {
	if s.services.Search == nil {
		return nil, domainerrors.Unavailable("search is disabled")
	}
	result, err := s.services.Search.Search(ctx, viewerID(ctx), service.SearchQuery{
		Query:  input.Query,
		Genre:  input.Genre,
		Tag:    input.Tag,
		SortBy: input.Sort,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, err
	}
	return &SearchPostsOutput{Body: SearchPostsResponse{
		Query: result.Query,
		Total: result.Total,
		Posts: mapPosts(result.Posts).Posts,
	}}, nil
}
