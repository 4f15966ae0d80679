package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/arasuji/arasuji-server/internal/domain"
	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
	"github.com/arasuji/arasuji-server/internal/normalize"
	"github.com/arasuji/arasuji-server/internal/store"
)

// FeedTab selects the base ordering and filter of the feed.
type FeedTab string

const (
	TabNew         FeedTab = "new"
	TabRecommended FeedTab = "recommended"
	// TabPopular is accepted as another name for TabRecommended.
	TabPopular   FeedTab = "popular"
	TabFollowing FeedTab = "following"
)

// FeedWindow limits the recommended tab in time.
type FeedWindow string

const (
	// WindowDay keeps posts created during the current local calendar day.
	WindowDay FeedWindow = "day"
	WindowAll FeedWindow = "all"
)

// FeedQuery is a feed request. Empty fields take defaults: tab new, window
// day, no search, all genres.
type FeedQuery struct {
	Tab    FeedTab
	Window FeedWindow
	Search string
	Genre  string
	Limit  int
}

// PostView is a post as shown to a particular viewer.
type PostView struct {
	domain.Post
	Liked        bool `json:"liked"`
	Bookmarked   bool `json:"bookmarked"`
	CommentCount *int `json:"commentCount,omitempty"`
}

// FeedService assembles the home feed.
type FeedService struct {
	store    store.Backend
	location *time.Location
	clock    Clock
	logger   *slog.Logger
}

// NewFeedService creates a feed service. loc defines the calendar day of the
// recommended tab's day window; nil means UTC.
func NewFeedService(b store.Backend, loc *time.Location, logger *slog.Logger) *FeedService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FeedService{store: b, location: loc, logger: logger}
}

func (q *FeedQuery) normalize() error {
	switch q.Tab {
	case "":
		q.Tab = TabNew
	case TabPopular:
		q.Tab = TabRecommended
	case TabNew, TabRecommended, TabFollowing:
	default:
		return domainerrors.Validationf("unknown tab %q", q.Tab)
	}

	switch q.Window {
	case "":
		q.Window = WindowDay
	case WindowDay, WindowAll:
	default:
		return domainerrors.Validationf("unknown window %q", q.Window)
	}

	q.Search = normalize.Trim(q.Search)
	q.Genre = normalize.Trim(q.Genre)
	if q.Limit < 0 {
		q.Limit = 0
	}
	return nil
}

// Feed returns the posts for viewerID (empty when signed out). The tab is
// applied first, then the search text, then the genre.
func (s *FeedService) Feed(ctx context.Context, viewerID string, q FeedQuery) ([]*PostView, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}

	posts, err := s.loadPosts(ctx)
	if err != nil {
		return nil, err
	}

	posts, err = s.applyTab(ctx, viewerID, q, posts)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return []*PostView{}, nil
	}

	names, err := displayNames(ctx, s.store, authorIDs(posts))
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		p.AuthorName = authorName(p, names)
	}

	posts = slices.DeleteFunc(posts, func(p *domain.Post) bool {
		return !normalize.Contains(searchText(p), q.Search)
	})
	if q.Genre != "" && q.Genre != domain.GenreAll {
		posts = slices.DeleteFunc(posts, func(p *domain.Post) bool {
			return domain.GenreOrOther(p.Genre) != q.Genre
		})
	}
	if q.Limit > 0 && len(posts) > q.Limit {
		posts = posts[:q.Limit]
	}

	return viewsFor(ctx, s.store, viewerID, posts)
}

// loadPosts returns every post, newest first. Posts without a creation time
// come last.
func (s *FeedService) loadPosts(ctx context.Context) ([]*domain.Post, error) {
	posts, err := store.NewCollection[domain.Post](s.store, store.PostsCollection).Query().
		OrderBy(byCreatedDesc).
		Run(ctx)
	if err != nil {
		return nil, storeError(err, "list posts")
	}
	return posts, nil
}

func byCreatedDesc(a, b *domain.Post) int {
	switch {
	case a.CreatedAt == nil && b.CreatedAt == nil:
		return 0
	case a.CreatedAt == nil:
		return 1
	case b.CreatedAt == nil:
		return -1
	}
	return b.CreatedAt.Compare(*a.CreatedAt)
}

func (s *FeedService) applyTab(ctx context.Context, viewerID string, q FeedQuery, posts []*domain.Post) ([]*domain.Post, error) {
	switch q.Tab {
	case TabFollowing:
		if viewerID == "" {
			return nil, nil
		}
		following, err := store.NewCollection[domain.FollowRecord](s.store, store.FollowingPath(viewerID)).IDs(ctx)
		if err != nil {
			return nil, storeError(err, "list following")
		}
		if len(following) == 0 {
			return nil, nil
		}
		return slices.DeleteFunc(posts, func(p *domain.Post) bool {
			return p.AuthorID == "" || !slices.Contains(following, p.AuthorID)
		}), nil

	case TabRecommended:
		if q.Window == WindowDay {
			start, end := s.dayBounds()
			posts = slices.DeleteFunc(posts, func(p *domain.Post) bool {
				return p.CreatedAt == nil || p.CreatedAt.Before(start) || !p.CreatedAt.Before(end)
			})
		}
		slices.SortStableFunc(posts, func(a, b *domain.Post) int {
			return cmp.Compare(b.LikeCount, a.LikeCount)
		})
		return posts, nil

	default:
		return posts, nil
	}
}

// dayBounds returns [local midnight, next local midnight) for the current day.
func (s *FeedService) dayBounds() (time.Time, time.Time) {
	now := s.clock.now().In(s.location)
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.location)
	end := time.Date(y, m, d+1, 0, 0, 0, 0, s.location)
	return start, end
}

// searchText is the text a feed search matches against.
func searchText(p *domain.Post) string {
	var title string
	if p.Title != nil {
		title = *p.Title
	}
	var catchcopy string
	if p.Catchcopy != nil {
		catchcopy = *p.Catchcopy
	}
	return strings.Join([]string{
		title,
		catchcopy,
		p.Body,
		p.AuthorName,
		domain.GenreOrOther(p.Genre),
		strings.Join(p.Tags, " "),
	}, " ")
}

func authorIDs(posts []*domain.Post) []string {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		if p.AuthorID != "" {
			ids = append(ids, p.AuthorID)
		}
	}
	return ids
}

// viewsFor wraps posts with the viewer's like and bookmark state.
func viewsFor(ctx context.Context, b store.Backend, viewerID string, posts []*domain.Post) ([]*PostView, error) {
	views := make([]*PostView, len(posts))
	for i, p := range posts {
		views[i] = &PostView{Post: *p}
	}
	if viewerID == "" || len(posts) == 0 {
		return views, nil
	}

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	liked, err := memberships(ctx, b, store.LikedPostsPath(viewerID), ids)
	if err != nil {
		return nil, err
	}
	bookmarked, err := memberships(ctx, b, store.BookmarksPath(viewerID), ids)
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		v.Liked = liked[v.ID]
		v.Bookmarked = bookmarked[v.ID]
	}
	return views, nil
}
