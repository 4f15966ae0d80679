// Package sse implements Server-Sent Events for notification badges, counter
// reconciliation, and auth state changes.
package sse

import (
	"time"

	"github.com/arasuji/arasuji-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventConnected is the first event on every stream.
	EventConnected EventType = "connected"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"

	// EventNotificationCreated is sent to the recipient of a new notification.
	EventNotificationCreated EventType = "notification.created"
	// EventNotificationRead is sent after the recipient marks everything read.
	EventNotificationRead EventType = "notification.read"

	// Counter reconciliation events carry the value just written by the ledger.
	EventPostCounters    EventType = "post.counters"
	EventCommentCounters EventType = "comment.counters"
	EventUserCounters    EventType = "user.counters"

	// EventAuthStateChanged is sent to a user's streams on sign-in and sign-out.
	EventAuthStateChanged EventType = "auth.state_changed"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// UserID restricts delivery to one user's streams. Empty means everyone.
	UserID string `json:"-"`
}

// ConnectedEventData is the payload of the connected event.
type ConnectedEventData struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"serverTime"`
}

// NotificationEventData carries a new notification and the resulting badge state.
type NotificationEventData struct {
	Notification *domain.Notification `json:"notification"`
	Unread       bool                 `json:"unread"`
}

// UnreadEventData carries the badge state.
type UnreadEventData struct {
	Unread bool `json:"unread"`
}

// PostCountersEventData reconciles a post's displayed counts.
// A nil field was not touched by the mutation.
type PostCountersEventData struct {
	PostID        string `json:"postId"`
	LikeCount     *int64 `json:"likeCount,omitempty"`
	BookmarkCount *int64 `json:"bookmarkCount,omitempty"`
}

// CommentCountersEventData reconciles a comment's like count.
type CommentCountersEventData struct {
	PostID    string `json:"postId"`
	CommentID string `json:"commentId"`
	LikeCount int64  `json:"likeCount"`
}

// UserCountersEventData reconciles a profile's follow counts.
type UserCountersEventData struct {
	UserID         string `json:"userId"`
	FollowerCount  *int64 `json:"followerCount,omitempty"`
	FollowingCount *int64 `json:"followingCount,omitempty"`
}

// AuthStateEventData reports the signed-in state of a user.
type AuthStateEventData struct {
	UserID   string `json:"userId"`
	SignedIn bool   `json:"signedIn"`
}

func newEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now()}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{Type: EventHeartbeat, Data: HeartbeatEventData{ServerTime: now}, Timestamp: now}
}

// NewNotificationCreatedEvent creates the event delivered to a notification's recipient.
func NewNotificationCreatedEvent(recipientID string, n *domain.Notification) Event {
	e := newEvent(EventNotificationCreated, NotificationEventData{Notification: n, Unread: true})
	e.UserID = recipientID
	return e
}

// NewNotificationReadEvent creates the event sent after all notifications are marked read.
func NewNotificationReadEvent(userID string) Event {
	e := newEvent(EventNotificationRead, UnreadEventData{Unread: false})
	e.UserID = userID
	return e
}

// NewPostLikeCountEvent reconciles a post's like count.
func NewPostLikeCountEvent(postID string, likeCount int64) Event {
	return newEvent(EventPostCounters, PostCountersEventData{PostID: postID, LikeCount: &likeCount})
}

// NewPostBookmarkCountEvent reconciles a post's bookmark count.
func NewPostBookmarkCountEvent(postID string, bookmarkCount int64) Event {
	return newEvent(EventPostCounters, PostCountersEventData{PostID: postID, BookmarkCount: &bookmarkCount})
}

// NewCommentCountersEvent reconciles a comment's like count.
func NewCommentCountersEvent(postID, commentID string, likeCount int64) Event {
	return newEvent(EventCommentCounters, CommentCountersEventData{PostID: postID, CommentID: commentID, LikeCount: likeCount})
}

// NewFollowerCountEvent reconciles the followee side of a follow toggle.
func NewFollowerCountEvent(userID string, followerCount int64) Event {
	return newEvent(EventUserCounters, UserCountersEventData{UserID: userID, FollowerCount: &followerCount})
}

// NewFollowingCountEvent reconciles the follower side of a follow toggle.
func NewFollowingCountEvent(userID string, followingCount int64) Event {
	return newEvent(EventUserCounters, UserCountersEventData{UserID: userID, FollowingCount: &followingCount})
}

// NewAuthStateEvent creates an auth state change event for userID's streams.
func NewAuthStateEvent(userID string, signedIn bool) Event {
	e := newEvent(EventAuthStateChanged, AuthStateEventData{UserID: userID, SignedIn: signedIn})
	e.UserID = userID
	return e
}
