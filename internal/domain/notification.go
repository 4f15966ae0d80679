package domain

import "time"

// NotificationType describes what happened to the recipient.
type NotificationType string

const (
	// NotificationFollow is sent to the followed user.
	NotificationFollow NotificationType = "follow"
	// NotificationLike is sent to a post's author.
	NotificationLike NotificationType = "like"
	// NotificationBookmark is sent to a post's author.
	NotificationBookmark NotificationType = "bookmark"
	// NotificationComment is sent to a post's author, or to the parent comment's author for replies.
	NotificationComment NotificationType = "comment"
	// NotificationCommentLike is sent to a comment's author.
	NotificationCommentLike NotificationType = "comment_like"
)

// Notification is stored at users/{recipient}/notifications/{id}.
// FromName is a snapshot taken at send time and may be nil.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	FromUID   string           `json:"fromUid"`
	FromName  *string          `json:"fromName"`
	PostID    *string          `json:"postId"`
	CommentID *string          `json:"commentId"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// SetDocID fills ID from the document key when the stored body lacks it.
func (n *Notification) SetDocID(id string) {
	if n.ID == "" {
		n.ID = id
	}
}
