package domain

import "time"

// RelationKind identifies a toggleable relation between a user and a target.
type RelationKind string

const (
	// RelationLike links a user to a post they liked.
	RelationLike RelationKind = "like"
	// RelationBookmark links a user to a post they saved.
	RelationBookmark RelationKind = "bookmark"
	// RelationFollow links a user to another user.
	RelationFollow RelationKind = "follow"
	// RelationCommentLike links a user to a comment they liked.
	RelationCommentLike RelationKind = "comment_like"
)

// Valid reports whether k is a known relation kind.
func (k RelationKind) Valid() bool {
	switch k {
	case RelationLike, RelationBookmark, RelationFollow, RelationCommentLike:
		return true
	default:
		return false
	}
}

// PostSnapshot is the copy of a post's display fields kept on membership
// records so my-page lists render without joining every post.
type PostSnapshot struct {
	Title     *string  `json:"title"`
	Catchcopy string   `json:"catchcopy"`
	Body      string   `json:"body"`
	Author    string   `json:"author"`
	AuthorID  string   `json:"authorId"`
	Genre     string   `json:"genre"`
	URL       string   `json:"url"`
	Tags      []string `json:"tags"`
}

// LikedPost is stored at users/{uid}/likedPosts/{postId}.
type LikedPost struct {
	PostSnapshot
	PostID            string     `json:"postId"`
	LikedAt           *time.Time `json:"likedAt"`
	LikeCountSnapshot Count      `json:"likeCountSnapshot"`
}

// Bookmark is stored at users/{uid}/bookmarks/{postId}.
type Bookmark struct {
	PostSnapshot
	PostID       string     `json:"postId"`
	BookmarkedAt *time.Time `json:"bookmarkedAt"`
}

// FollowRecord is stored at users/{uid}/following/{targetUid}.
type FollowRecord struct {
	TargetUID string    `json:"targetUid"`
	CreatedAt time.Time `json:"createdAt"`
}

// FollowerRecord is the back-reference stored at users/{targetUid}/followers/{uid}.
type FollowerRecord struct {
	FollowerUID string    `json:"followerUid"`
	CreatedAt   time.Time `json:"createdAt"`
}
