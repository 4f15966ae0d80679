package service

import (
	"context"
	"log/slog"

	"github.com/arasuji/arasuji-server/internal/domain"
	"github.com/arasuji/arasuji-server/internal/sse"
	"github.com/arasuji/arasuji-server/internal/store"
)

// DefaultNotificationLimit caps List when no limit is given.
const DefaultNotificationLimit = 50

// NotificationService reads and acknowledges a user's notifications.
type NotificationService struct {
	store  store.Backend
	events EventEmitter
	logger *slog.Logger
}

// NewNotificationService creates a notification service.
func NewNotificationService(b store.Backend, events EventEmitter, logger *slog.Logger) *NotificationService {
	if events == nil {
		events = NoopEmitter{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &NotificationService{store: b, events: events, logger: logger}
}

func (s *NotificationService) notifications(uid string) *store.Collection[domain.Notification] {
	return store.NewCollection[domain.Notification](s.store, store.NotificationsPath(uid))
}

// List returns uid's newest notifications. A missing sender name is filled
// from the sender's current profile.
func (s *NotificationService) List(ctx context.Context, uid string, limit int) ([]*domain.Notification, error) {
	if err := requireActor(uid); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}

	items, err := s.notifications(uid).Query().
		OrderBy(func(a, b *domain.Notification) int { return b.CreatedAt.Compare(a.CreatedAt) }).
		Limit(limit).
		Run(ctx)
	if err != nil {
		return nil, storeError(err, "list notifications")
	}
	if items == nil {
		items = []*domain.Notification{}
	}

	var missing []string
	for _, n := range items {
		if n.FromName == nil && n.FromUID != "" {
			missing = append(missing, n.FromUID)
		}
	}
	if len(missing) == 0 {
		return items, nil
	}

	names, err := displayNames(ctx, s.store, missing)
	if err != nil {
		s.logger.Warn("failed to resolve notification sender names", "user_id", uid, "error", err)
		return items, nil
	}
	for _, n := range items {
		if n.FromName == nil && n.FromUID != "" {
			n.FromName = ptr(names[n.FromUID])
		}
	}
	return items, nil
}

// MarkAllRead flags every unread notification of uid as read and returns how
// many were updated.
func (s *NotificationService) MarkAllRead(ctx context.Context, uid string) (int, error) {
	if err := requireActor(uid); err != nil {
		return 0, err
	}

	unread, err := s.notifications(uid).Query().
		Where(func(n *domain.Notification) bool { return !n.Read }).
		Run(ctx)
	if err != nil {
		return 0, storeError(err, "list unread notifications")
	}
	if len(unread) == 0 {
		return 0, nil
	}

	w := store.NewBatchWriter(s.store, s.logger)
	collection := s.notifications(uid)
	for _, n := range unread {
		n.Read = true
		if err := w.Set(ctx, collection.DocPath(n.ID), n); err != nil {
			return w.Committed(), storeError(err, "mark notifications read")
		}
	}
	if err := w.Flush(ctx); err != nil {
		return w.Committed(), storeError(err, "mark notifications read")
	}

	s.events.EmitToUser(uid, sse.NewNotificationReadEvent(uid))
	s.logger.Debug("notifications marked read", "user_id", uid, "count", w.Committed())
	return w.Committed(), nil
}

// HasUnread reports whether uid has any unread notification.
func (s *NotificationService) HasUnread(ctx context.Context, uid string) (bool, error) {
	if err := requireActor(uid); err != nil {
		return false, err
	}
	_, err := s.notifications(uid).Query().
		Where(func(n *domain.Notification) bool { return !n.Read }).
		First(ctx)
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, storeError(err, "check unread notifications")
	}
}
