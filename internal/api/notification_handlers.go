package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/arasuji/arasuji-server/internal/domain"
)

func (s *Server) registerNotificationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listNotifications",
		Method:      http.MethodGet,
		Path:        "/api/v1/notifications",
		Summary:     "List notifications",
		Description: "Returns the signed-in user's newest notifications",
		Tags:        []string{"Notifications"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListNotifications)

	huma.Register(s.api, huma.Operation{
		OperationID: "hasUnreadNotifications",
		Method:      http.MethodGet,
		Path:        "/api/v1/notifications/unread",
		Summary:     "Unread indicator",
		Description: "Reports whether any notification is unread",
		Tags:        []string{"Notifications"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleHasUnread)

	huma.Register(s.api, huma.Operation{
		OperationID: "markNotificationsRead",
		Method:      http.MethodPost,
		Path:        "/api/v1/notifications/read",
		Summary:     "Mark all read",
		Description: "Marks every unread notification as read",
		Tags:        []string{"Notifications"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleMarkAllRead)
}

// NotificationResponse is a notification in the inbox.
type NotificationResponse struct {
	ID        string    `json:"id" doc:"Notification ID"`
	Type      string    `json:"type" doc:"follow, like, bookmark, comment, or comment_like"`
	FromUID   string    `json:"fromUid" doc:"User who acted"`
	FromName  string    `json:"fromName" doc:"Display name of the user who acted"`
	PostID    *string   `json:"postId" doc:"Related post"`
	CommentID *string   `json:"commentId" doc:"Related comment"`
	Read      bool      `json:"read" doc:"Whether it has been read"`
	CreatedAt time.Time `json:"createdAt" doc:"When it was sent"`
}

// NotificationsResponse is an inbox page.
type NotificationsResponse struct {
	Notifications []NotificationResponse `json:"notifications" doc:"Newest first"`
}

// NotificationsOutput wraps the inbox for Huma.
type NotificationsOutput struct {
	Body NotificationsResponse
}

// ListNotificationsInput contains list parameters.
type ListNotificationsInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"100" doc:"Maximum notifications to return (default 50)"`
}

// UnreadResponse is the unread indicator.
type UnreadResponse struct {
	HasUnread bool `json:"hasUnread" doc:"Whether any notification is unread"`
}

// UnreadOutput wraps the indicator for Huma.
type UnreadOutput struct {
	Body UnreadResponse
}

// MarkReadResponse reports how many notifications changed.
type MarkReadResponse struct {
	Updated int `json:"updated" doc:"Number of notifications marked read"`
}

// MarkReadOutput wraps the result for Huma.
type MarkReadOutput struct {
	Body MarkReadResponse
}

func (s *Server) handleListNotifications(ctx context.Context, input *ListNotificationsInput) (*NotificationsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.services.Notifications.List(ctx, userID, input.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]NotificationResponse, len(items))
	for i, n := range items {
		out[i] = mapNotification(n)
	}
	return &NotificationsOutput{Body: NotificationsResponse{Notifications: out}}, nil
}

func (s *Server) handleHasUnread(ctx context.Context, _ *struct{}) (*UnreadOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	unread, err := s.services.Notifications.HasUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UnreadOutput{Body: UnreadResponse{HasUnread: unread}}, nil
}

func (s *Server) handleMarkAllRead(ctx context.Context, _ *struct{}) (*MarkReadOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.services.Notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &MarkReadOutput{Body: MarkReadResponse{Updated: n}}, nil
}

func mapNotification(n *domain.Notification) NotificationResponse {
	name := domain.AnonymousName
	if n.FromName != nil {
		name = domain.DisplayNameOf(*n.FromName)
	}
	return NotificationResponse{
		ID:        n.ID,
		Type:      string(n.Type),
		FromUID:   n.FromUID,
		FromName:  name,
		PostID:    n.PostID,
		CommentID: n.CommentID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}
