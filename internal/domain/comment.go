package domain

import (
	"slices"
	"time"
)

// CommentBodyMaxLen is the comment length limit in characters.
const CommentBodyMaxLen = 500

// Comment is a reply on a post. ParentID is empty for top-level comments.
// Comments are immutable after creation apart from their like state.
type Comment struct {
	ID        string     `json:"id"`
	PostID    string     `json:"postId"`
	Body      string     `json:"body"`
	AuthorID  string     `json:"authorId"`
	ParentID  string     `json:"parentId,omitempty"`
	LikeCount Count      `json:"likeCount"`
	LikeUIDs  []string   `json:"likeUids"`
	CreatedAt *time.Time `json:"createdAt"`
}

// IsRoot reports whether the comment starts a thread.
func (c *Comment) IsRoot() bool {
	return c.ParentID == ""
}

// LikedBy reports whether uid is in the comment's like set.
func (c *Comment) LikedBy(uid string) bool {
	return uid != "" && slices.Contains(c.LikeUIDs, uid)
}

// CreatedAtOrZero returns the creation time, or the zero time when unset.
func (c *Comment) CreatedAtOrZero() time.Time {
	if c.CreatedAt == nil {
		return time.Time{}
	}
	return *c.CreatedAt
}

// SetDocID fills ID from the document key when the stored body lacks it.
func (c *Comment) SetDocID(id string) {
	if c.ID == "" {
		c.ID = id
	}
}
