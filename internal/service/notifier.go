package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arasuji/arasuji-server/internal/domain"
	"github.com/arasuji/arasuji-server/internal/id"
	"github.com/arasuji/arasuji-server/internal/sse"
	"github.com/arasuji/arasuji-server/internal/store"
)

// DefaultNotifyTimeout bounds a single notification delivery.
const DefaultNotifyTimeout = 10 * time.Second

// NotifyRequest describes an event that may notify someone.
//
// RecipientID may be left empty; it is then resolved from the target:
// the post author for likes, bookmarks, and root comments, the parent
// comment's author for replies, and the comment author for comment likes.
type NotifyRequest struct {
	Type        domain.NotificationType
	ActorID     string
	RecipientID string
	PostID      string
	CommentID   string
	ParentID    string
}

// Notifier writes notifications in the background. Delivery failures are
// logged and never reach the caller.
type Notifier struct {
	store   store.Backend
	events  EventEmitter
	logger  *slog.Logger
	clock   Clock
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewNotifier creates a notifier.
func NewNotifier(b store.Backend, events EventEmitter, logger *slog.Logger) *Notifier {
	if events == nil {
		events = NoopEmitter{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{store: b, events: events, logger: logger, timeout: DefaultNotifyTimeout}
}

// Notify queues a delivery. It returns immediately; cancelling ctx does not
// abort the delivery.
func (n *Notifier) Notify(ctx context.Context, req NotifyRequest) {
	if req.ActorID == "" || (req.RecipientID != "" && req.RecipientID == req.ActorID) {
		return
	}

	detached := context.WithoutCancel(ctx)
	n.wg.Go(func() {
		ctx, cancel := context.WithTimeout(detached, n.timeout)
		defer cancel()

		if err := n.deliver(ctx, req); err != nil {
			n.logger.Warn("notification delivery failed",
				"type", string(req.Type),
				"actor_id", req.ActorID,
				"recipient_id", req.RecipientID,
				"post_id", req.PostID,
				"error", err,
			)
		}
	})
}

// Wait blocks until every queued delivery has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Shutdown waits for in-flight deliveries or until ctx is done.
func (n *Notifier) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		n.logger.Warn("notification drain timeout, some deliveries may be lost")
		return ctx.Err()
	}
}

func (n *Notifier) deliver(ctx context.Context, req NotifyRequest) error {
	recipient, err := n.resolveRecipient(ctx, req)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}
	if recipient == "" || recipient == req.ActorID {
		return nil
	}

	// A missing or blank profile leaves the name unset; readers fill it in later.
	var fromName *string
	actor, err := store.NewCollection[domain.User](n.store, store.UsersCollection).Get(ctx, req.ActorID)
	if err == nil && actor.Username != "" {
		fromName = &actor.Username
	}

	notificationID, err := id.Generate(id.PrefixNotification)
	if err != nil {
		return err
	}
	notification := &domain.Notification{
		ID:        notificationID,
		Type:      req.Type,
		FromUID:   req.ActorID,
		FromName:  fromName,
		Read:      false,
		CreatedAt: n.clock.now(),
	}
	if req.PostID != "" {
		notification.PostID = ptr(req.PostID)
	}
	if req.CommentID != "" {
		notification.CommentID = ptr(req.CommentID)
	}

	notifications := store.NewCollection[domain.Notification](n.store, store.NotificationsPath(recipient))
	if err := notifications.Set(ctx, notificationID, notification); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}

	n.events.EmitToUser(recipient, sse.NewNotificationCreatedEvent(recipient, notification))
	n.logger.Debug("notification delivered",
		"type", string(req.Type),
		"recipient_id", recipient,
		"notification_id", notificationID,
	)
	return nil
}

func (n *Notifier) resolveRecipient(ctx context.Context, req NotifyRequest) (string, error) {
	if req.RecipientID != "" {
		return req.RecipientID, nil
	}

	switch {
	case req.Type == domain.NotificationComment && req.ParentID != "":
		parent, err := store.NewCollection[domain.Comment](n.store, store.CommentsPath(req.PostID)).Get(ctx, req.ParentID)
		if err != nil {
			return "", err
		}
		return parent.AuthorID, nil
	case req.Type == domain.NotificationCommentLike:
		comment, err := store.NewCollection[domain.Comment](n.store, store.CommentsPath(req.PostID)).Get(ctx, req.CommentID)
		if err != nil {
			return "", err
		}
		return comment.AuthorID, nil
	case req.PostID != "":
		post, err := store.NewCollection[domain.Post](n.store, store.PostsCollection).Get(ctx, req.PostID)
		if err != nil {
			return "", err
		}
		return post.AuthorID, nil
	default:
		return "", nil
	}
}
