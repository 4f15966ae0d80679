// Package search provides full-text search over posts using Bleve.
package search

import (
	"github.com/arasuji/arasuji-server/internal/domain"
)

// PostDocument is the indexed form of a post.
//
// The author name is the snapshot stored on the post, so a rename only
// reaches the index when the post is next written or the index is rebuilt.
type PostDocument struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Catchcopy string   `json:"catchcopy,omitempty"`
	Body      string   `json:"body"`
	Author    string   `json:"author,omitempty"`
	AuthorID  string   `json:"author_id,omitempty"`
	Genre     string   `json:"genre"`
	Tags      []string `json:"tags,omitempty"`
	LikeCount int64    `json:"like_count"`
	CreatedAt int64    `json:"created_at"` // Unix millis
}

// ToMap converts the document to a map keyed by the mapping's field names.
func (d *PostDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"body":       d.Body,
		"genre":      d.Genre,
		"like_count": d.LikeCount,
		"created_at": d.CreatedAt,
	}
	if d.Catchcopy != "" {
		m["catchcopy"] = d.Catchcopy
	}
	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.AuthorID != "" {
		m["author_id"] = d.AuthorID
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	return m
}

// PostToDocument converts a post to its index document.
func PostToDocument(p *domain.Post) *PostDocument {
	doc := &PostDocument{
		ID:        p.ID,
		Body:      p.Body,
		Author:    p.AuthorName,
		AuthorID:  p.AuthorID,
		Genre:     domain.GenreOrOther(p.Genre),
		Tags:      p.Tags,
		LikeCount: int64(p.LikeCount),
	}
	if p.Title != nil {
		doc.Title = *p.Title
	}
	if p.Catchcopy != nil {
		doc.Catchcopy = *p.Catchcopy
	}
	if p.CreatedAt != nil {
		doc.CreatedAt = p.CreatedAt.UnixMilli()
	}
	return doc
}
