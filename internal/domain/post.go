package domain

import "time"

// Post field limits, counted in characters.
const (
	TitleMaxLen     = 63
	CatchcopyMaxLen = 37
	BodyMaxLen      = 500
	MaxTags         = 8
	TagMaxLen       = 30
)

// Post is a synopsis shared by a user.
//
// LikeCount and BookmarkCount are denormalized from membership records and are
// only mutated through the counter ledger. Title, Catchcopy, and URL are nil
// when the author left them blank.
type Post struct {
	ID            string     `json:"id"`
	AuthorID      string     `json:"authorId"`
	AuthorName    string     `json:"authorName"`
	Title         *string    `json:"title"`
	Catchcopy     *string    `json:"catchcopy"`
	Body          string     `json:"body"`
	URL           *string    `json:"url"`
	Genre         string     `json:"genre"`
	Tags          []string   `json:"tags"`
	LikeCount     Count      `json:"likeCount"`
	BookmarkCount Count      `json:"bookmarkCount"`
	CreatedAt     *time.Time `json:"createdAt"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// IsOwnedBy reports whether uid authored the post.
func (p *Post) IsOwnedBy(uid string) bool {
	return uid != "" && p.AuthorID == uid
}

// CreatedAtOrZero returns the creation time, or the zero time for legacy posts without one.
func (p *Post) CreatedAtOrZero() time.Time {
	if p.CreatedAt == nil {
		return time.Time{}
	}
	return *p.CreatedAt
}

// Snapshot captures the display fields copied into like and bookmark records.
func (p *Post) Snapshot(authorName string) PostSnapshot {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return PostSnapshot{
		Title:     p.Title,
		Catchcopy: deref(p.Catchcopy),
		Body:      p.Body,
		Author:    authorName,
		AuthorID:  p.AuthorID,
		Genre:     GenreOrOther(p.Genre),
		URL:       deref(p.URL),
		Tags:      tags,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SetDocID fills ID from the document key when the stored body lacks it.
func (p *Post) SetDocID(id string) {
	if p.ID == "" {
		p.ID = id
	}
}
