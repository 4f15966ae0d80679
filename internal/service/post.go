package service

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/arasuji/arasuji-server/internal/domain"
	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
	"github.com/arasuji/arasuji-server/internal/id"
	"github.com/arasuji/arasuji-server/internal/normalize"
	"github.com/arasuji/arasuji-server/internal/store"
	"github.com/arasuji/arasuji-server/internal/validation"
)

// PostIndexer keeps a secondary index of posts in sync with the store.
type PostIndexer interface {
	IndexPost(ctx context.Context, post *domain.Post) error
	DeletePost(ctx context.Context, postID string) error
}

// CreatePostRequest is the input for a new post. Text fields are trimmed
// before validation; blank optional fields are stored as null.
type CreatePostRequest struct {
	Title     string   `json:"title" validate:"max=63"`
	Catchcopy string   `json:"catchcopy" validate:"max=37"`
	Body      string   `json:"body" validate:"notblank,max=500"`
	URL       string   `json:"url" validate:"omitempty,httpurl"`
	Genre     string   `json:"genre" validate:"notblank,genre"`
	Tags      []string `json:"tags" validate:"max=8,dive,max=30"`
}

// UpdatePostRequest changes post content. Nil fields are left unchanged.
type UpdatePostRequest struct {
	Title     *string   `json:"title,omitempty" validate:"omitempty,max=63"`
	Catchcopy *string   `json:"catchcopy,omitempty" validate:"omitempty,max=37"`
	Body      *string   `json:"body,omitempty" validate:"omitempty,notblank,max=500"`
	URL       *string   `json:"url,omitempty"`
	Genre     *string   `json:"genre,omitempty" validate:"omitempty,genre"`
	Tags      *[]string `json:"tags,omitempty" validate:"omitempty,max=8,dive,max=30"`
}

// PostService manages posts and the post lists on user pages.
type PostService struct {
	store     store.Backend
	indexer   PostIndexer
	validator *validation.Validator
	logger    *slog.Logger
	clock     Clock
}

// NewPostService creates a post service. indexer may be nil.
func NewPostService(b store.Backend, indexer PostIndexer, v *validation.Validator, logger *slog.Logger) *PostService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PostService{store: b, indexer: indexer, validator: v, logger: logger}
}

func (s *PostService) posts() *store.Collection[domain.Post] {
	return store.NewCollection[domain.Post](s.store, store.PostsCollection)
}

// Create publishes a new post by actorID.
func (s *PostService) Create(ctx context.Context, actorID string, req CreatePostRequest) (*PostView, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}

	req.Title = normalize.Trim(req.Title)
	req.Catchcopy = normalize.Trim(req.Catchcopy)
	req.Body = normalize.Trim(req.Body)
	req.URL = normalize.Trim(req.URL)
	req.Genre = normalize.Trim(req.Genre)
	req.Tags = normalize.Tags(req.Tags)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	author, err := store.NewCollection[domain.User](s.store, store.UsersCollection).Get(ctx, actorID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, storeError(err, "load author")
	}

	postID, err := id.Generate(id.PrefixPost)
	if err != nil {
		return nil, err
	}
	now := s.clock.now()
	post := &domain.Post{
		ID:         postID,
		AuthorID:   actorID,
		AuthorName: author.DisplayName(),
		Title:      normalize.OptionalString(req.Title),
		Catchcopy:  normalize.OptionalString(req.Catchcopy),
		Body:       req.Body,
		URL:        normalize.OptionalString(req.URL),
		Genre:      req.Genre,
		Tags:       req.Tags,
		CreatedAt:  &now,
	}

	if err := s.posts().Set(ctx, postID, post); err != nil {
		return nil, storeError(err, "create post")
	}
	s.index(ctx, post)

	s.logger.Info("post created", "post_id", postID, "user_id", actorID)
	return &PostView{Post: *post}, nil
}

// Get returns a post with its comment count and the viewer's flags.
func (s *PostService) Get(ctx context.Context, viewerID, postID string) (*PostView, error) {
	if !id.Valid(postID) {
		return nil, domainerrors.NotFound("post not found")
	}
	post, err := s.posts().Get(ctx, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("post not found")
		}
		return nil, storeError(err, "get post")
	}

	views, err := s.present(ctx, viewerID, []*domain.Post{post})
	if err != nil {
		return nil, err
	}
	count, err := s.store.Count(ctx, store.CommentsPath(postID))
	if err != nil {
		return nil, storeError(err, "count comments")
	}
	views[0].CommentCount = &count
	return views[0], nil
}

// Update edits the content of a post. Only the author may update it.
func (s *PostService) Update(ctx context.Context, actorID, postID string, req UpdatePostRequest) (*PostView, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if !id.Valid(postID) {
		return nil, domainerrors.NotFound("post not found")
	}

	fields := map[string]any{}
	if req.Title != nil {
		req.Title = ptr(normalize.Trim(*req.Title))
		fields["title"] = normalize.OptionalString(*req.Title)
	}
	if req.Catchcopy != nil {
		req.Catchcopy = ptr(normalize.Trim(*req.Catchcopy))
		fields["catchcopy"] = normalize.OptionalString(*req.Catchcopy)
	}
	if req.Body != nil {
		req.Body = ptr(normalize.Trim(*req.Body))
		fields["body"] = *req.Body
	}
	if req.URL != nil {
		u := normalize.Trim(*req.URL)
		if u != "" && !validation.IsHTTPURL(u) {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"url": "must be a valid http or https URL"})
		}
		fields["url"] = normalize.OptionalString(u)
	}
	if req.Genre != nil {
		req.Genre = ptr(normalize.Trim(*req.Genre))
		fields["genre"] = *req.Genre
	}
	if req.Tags != nil {
		tags := normalize.Tags(*req.Tags)
		req.Tags = &tags
		fields["tags"] = tags
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return s.Get(ctx, actorID, postID)
	}
	fields["updatedAt"] = s.clock.now()

	var updated *domain.Post
	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		path := store.PostPath(postID)
		post, err := store.GetTx[domain.Post](tx, path)
		if err != nil {
			return err
		}
		if !post.IsOwnedBy(actorID) {
			return domainerrors.Forbidden("only the author can edit this post")
		}
		if err := store.PatchTx(tx, path, fields); err != nil {
			return err
		}
		updated, err = store.GetTx[domain.Post](tx, path)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("post not found")
		}
		return nil, storeError(err, "update post")
	}
	s.index(ctx, updated)

	s.logger.Info("post updated", "post_id", postID, "user_id", actorID)
	return s.Get(ctx, actorID, postID)
}

// Delete removes a post and its comments. Only the author may delete it.
// Comments go first, in batches; like and bookmark records held by other
// users are left behind and skipped when their lists are read.
func (s *PostService) Delete(ctx context.Context, actorID, postID string) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	if !id.Valid(postID) {
		return domainerrors.NotFound("post not found")
	}

	post, err := s.posts().Get(ctx, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("post not found")
		}
		return storeError(err, "get post")
	}
	if !post.IsOwnedBy(actorID) {
		return domainerrors.Forbidden("only the author can delete this post")
	}

	removed, err := store.DeleteCollection(ctx, s.store, store.CommentsPath(postID), s.logger)
	if err != nil {
		return storeError(err, "delete comments")
	}
	if err := s.posts().Delete(ctx, postID); err != nil {
		return storeError(err, "delete post")
	}

	if s.indexer != nil {
		if err := s.indexer.DeletePost(ctx, postID); err != nil {
			s.logger.Warn("failed to remove post from search index", "post_id", postID, "error", err)
		}
	}

	s.logger.Info("post deleted", "post_id", postID, "user_id", actorID, "comments_removed", removed)
	return nil
}

// ListByAuthor returns authorID's posts, newest first.
func (s *PostService) ListByAuthor(ctx context.Context, viewerID, authorID string) ([]*PostView, error) {
	if !id.Valid(authorID) {
		return []*PostView{}, nil
	}
	posts, err := s.posts().Query().
		Where(func(p *domain.Post) bool { return p.AuthorID == authorID }).
		OrderBy(byCreatedDesc).
		Run(ctx)
	if err != nil {
		return nil, storeError(err, "list posts")
	}
	return s.present(ctx, viewerID, posts)
}

// ListLiked returns the posts uid liked, most recently liked first. Posts
// deleted since are dropped.
func (s *PostService) ListLiked(ctx context.Context, uid string) ([]*PostView, error) {
	if err := requireActor(uid); err != nil {
		return nil, err
	}
	records, err := store.NewCollection[domain.LikedPost](s.store, store.LikedPostsPath(uid)).Query().
		OrderBy(func(a, b *domain.LikedPost) int { return compareTimeDesc(a.LikedAt, b.LikedAt) }).
		Run(ctx)
	if err != nil {
		return nil, storeError(err, "list liked posts")
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.PostID
	}
	return s.hydrate(ctx, uid, ids)
}

// ListBookmarked returns the posts uid bookmarked, most recent first.
func (s *PostService) ListBookmarked(ctx context.Context, uid string) ([]*PostView, error) {
	if err := requireActor(uid); err != nil {
		return nil, err
	}
	records, err := store.NewCollection[domain.Bookmark](s.store, store.BookmarksPath(uid)).Query().
		OrderBy(func(a, b *domain.Bookmark) int { return compareTimeDesc(a.BookmarkedAt, b.BookmarkedAt) }).
		Run(ctx)
	if err != nil {
		return nil, storeError(err, "list bookmarks")
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.PostID
	}
	return s.hydrate(ctx, uid, ids)
}

// hydrate loads posts by id in the given order, dropping missing ones.
func (s *PostService) hydrate(ctx context.Context, viewerID string, ids []string) ([]*PostView, error) {
	valid := make([]string, 0, len(ids))
	for _, pid := range ids {
		if id.Valid(pid) {
			valid = append(valid, pid)
		}
	}
	found, err := s.posts().GetMany(ctx, valid)
	if err != nil {
		return nil, storeError(err, "load posts")
	}
	posts := make([]*domain.Post, 0, len(found))
	seen := make(map[string]bool, len(found))
	for _, pid := range valid {
		if p, ok := found[pid]; ok && !seen[pid] {
			seen[pid] = true
			posts = append(posts, p)
		}
	}
	return s.present(ctx, viewerID, posts)
}

// present joins author names and the viewer's flags.
func (s *PostService) present(ctx context.Context, viewerID string, posts []*domain.Post) ([]*PostView, error) {
	names, err := displayNames(ctx, s.store, authorIDs(posts))
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		p.AuthorName = authorName(p, names)
	}
	return viewsFor(ctx, s.store, viewerID, posts)
}

// Reindex writes every stored post to the indexer.
func (s *PostService) Reindex(ctx context.Context) (int, error) {
	if s.indexer == nil {
		return 0, nil
	}
	var n int
	for post, err := range s.posts().All(ctx) {
		if err != nil {
			return n, storeError(err, "list posts")
		}
		if err := s.indexer.IndexPost(ctx, post); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *PostService) index(ctx context.Context, post *domain.Post) {
	if s.indexer == nil || post == nil {
		return
	}
	if err := s.indexer.IndexPost(ctx, post); err != nil {
		s.logger.Warn("failed to index post", "post_id", post.ID, "error", err)
	}
}

// compareTimeDesc orders newest first with nil times last.
func compareTimeDesc(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return cmp.Compare(b.UnixNano(), a.UnixNano())
}
