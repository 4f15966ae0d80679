package service

import (
	"context"
	"log/slog"

	"github.com/arasuji/arasuji-server/internal/domain"
	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
	"github.com/arasuji/arasuji-server/internal/normalize"
	"github.com/arasuji/arasuji-server/internal/search"
)

// PostSearcher runs ranked full-text queries. *search.SearchIndex implements it.
type PostSearcher interface {
	Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error)
}

// SearchQuery is a full-text search request.
type SearchQuery struct {
	Query  string
	Genre  string
	Tag    string
	SortBy string
	Limit  int
	Offset int
}

// SearchResponse holds ranked posts and the total hit count.
type SearchResponse struct {
	Query string      `json:"query"`
	Total uint64      `json:"total"`
	Posts []*PostView `json:"posts"`
}

// SearchService answers full-text post searches from the index and hydrates
// the hits from the store.
type SearchService struct {
	index  PostSearcher
	posts  *PostService
	logger *slog.Logger
}

// NewSearchService creates a search service. A nil index disables search.
func NewSearchService(index PostSearcher, posts *PostService, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SearchService{index: index, posts: posts, logger: logger}
}

// Search returns posts matching q in rank order. Hits whose post no longer
// exists are dropped.
func (s *SearchService) Search(ctx context.Context, viewerID string, q SearchQuery) (*SearchResponse, error) {
	if s.index == nil {
		return nil, domainerrors.Unavailable("search is disabled")
	}

	params := search.DefaultSearchParams()
	params.Query = normalize.Trim(q.Query)
	params.Genre = normalize.Trim(q.Genre)
	params.Tag = normalize.Trim(q.Tag)
	if params.Genre == domain.GenreAll {
		params.Genre = ""
	}
	if q.SortBy != "" {
		switch q.SortBy {
		case search.SortRelevance, search.SortRecent, search.SortLikes:
			params.SortBy = q.SortBy
		default:
			return nil, domainerrors.Validationf("unknown sort %q", q.SortBy)
		}
	}
	if q.Limit > 0 {
		params.Limit = min(q.Limit, 100)
	}
	if q.Offset > 0 {
		params.Offset = q.Offset
	}

	result, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search failed")
	}

	posts, err := s.posts.hydrate(ctx, viewerID, result.IDs())
	if err != nil {
		return nil, err
	}

	s.logger.Debug("search executed", "query", params.Query, "hits", len(result.Hits), "took_ms", result.TookMs)
	return &SearchResponse{Query: params.Query, Total: result.Total, Posts: posts}, nil
}
