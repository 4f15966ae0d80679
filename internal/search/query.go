package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Sort orders for SearchParams.SortBy.
const (
	SortRelevance = "relevance"
	SortRecent    = "recent"
	SortLikes     = "likes"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string // User's search text

	// Filters
	Genre string // Exact genre
	Tag   string // Exact tag

	// Pagination
	Limit  int
	Offset int

	SortBy    string // SortRelevance, SortRecent, or SortLikes
	Highlight bool
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:     20,
		SortBy:    SortRelevance,
		Highlight: true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"tookMs"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit is one matching post.
type SearchHit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Title      string            `json:"title,omitempty"`
	Genre      string            `json:"genre,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// IDs returns the hit ids in rank order.
func (r *SearchResult) IDs() []string {
	ids := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.ID
	}
	return ids
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.Limit <= 0 {
		params.Limit = DefaultSearchParams().Limit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	addSorting(searchRequest, params)

	if params.Highlight && params.Query != "" {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("title")
		searchRequest.Highlight.AddField("catchcopy")
		searchRequest.Highlight.AddField("body")
	}
	searchRequest.Fields = []string{"title", "genre"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}
	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{ID: hit.ID, Score: hit.Score}
		if t, ok := hit.Fields["title"].(string); ok {
			searchHit.Title = t
		}
		if g, ok := hit.Fields["genre"].(string); ok {
			searchHit.Genre = g
		}
		if len(hit.Fragments) > 0 {
			searchHit.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					searchHit.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, searchHit)
	}
	return result, nil
}

// buildSearchQuery matches the text against title, catchcopy, body, and
// author, with title weighted highest. A text equal to a tag also matches
// that tag exactly.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if text := strings.TrimSpace(params.Query); text != "" {
		fields := []struct {
			name  string
			boost float64
		}{
			{"title", 3.0},
			{"catchcopy", 2.0},
			{"author", 1.5},
			{"body", 1.0},
		}
		textQueries := make([]query.Query, 0, len(fields)+1)
		for _, f := range fields {
			mq := bleve.NewMatchQuery(text)
			mq.SetField(f.name)
			mq.SetBoost(f.boost)
			textQueries = append(textQueries, mq)
		}
		tagMatch := bleve.NewTermQuery(text)
		tagMatch.SetField("tags")
		tagMatch.SetBoost(2.0)
		textQueries = append(textQueries, tagMatch)

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.Genre != "" {
		gq := bleve.NewTermQuery(params.Genre)
		gq.SetField("genre")
		queries = append(queries, gq)
	}
	if params.Tag != "" {
		tq := bleve.NewTermQuery(params.Tag)
		tq.SetField("tags")
		queries = append(queries, tq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

func addSorting(req *bleve.SearchRequest, params SearchParams) {
	switch params.SortBy {
	case SortRecent:
		req.SortBy([]string{"-created_at"})
	case SortLikes:
		req.SortBy([]string{"-like_count", "-created_at"})
	default:
		if params.Query == "" {
			req.SortBy([]string{"-created_at"})
			return
		}
		req.SortBy([]string{"-_score", "-created_at"})
	}
}
