package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arasuji/arasuji-server/internal/domain"
	"github.com/arasuji/arasuji-server/internal/logger"
	"github.com/arasuji/arasuji-server/internal/sse"
	"github.com/arasuji/arasuji-server/internal/store"
	"github.com/arasuji/arasuji-server/internal/validation"
)

// testEnv wires the services over an in-memory store.
type testEnv struct {
	store    *store.Store
	events   *recordingEmitter
	notifier *Notifier
	ledger   *Ledger
	posts    *PostService
	comments *CommentService
	profiles *ProfileService
	notifs   *NotificationService
	feed     *FeedService
	auditor  *CounterAuditor
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewInMemory(logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := newTestStore(t)
	log := logger.Discard()
	v := validation.New()
	events := &recordingEmitter{}

	notifier := NewNotifier(s, events, log)
	ledger := NewLedger(s, notifier, events, log)
	return &testEnv{
		store:    s,
		events:   events,
		notifier: notifier,
		ledger:   ledger,
		posts:    NewPostService(s, nil, v, log),
		comments: NewCommentService(s, ledger, notifier, v, log),
		profiles: NewProfileService(s, ledger, v, log),
		notifs:   NewNotificationService(s, events, log),
		feed:     NewFeedService(s, time.UTC, log),
		auditor:  NewCounterAuditor(s, log),
	}
}

// recordingEmitter captures emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) EmitToUser(userID string, e sse.Event) {
	e.UserID = userID
	r.Emit(e)
}

func (r *recordingEmitter) ofType(t sse.EventType) []sse.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sse.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func seedUser(t *testing.T, s store.Backend, uid, username string) *domain.User {
	t.Helper()
	u := &domain.User{ID: uid, Username: username, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, store.NewCollection[domain.User](s, store.UsersCollection).Set(context.Background(), uid, u))
	return u
}

func seedPost(t *testing.T, s store.Backend, p *domain.Post) *domain.Post {
	t.Helper()
	if p.Body == "" {
		p.Body = "本文"
	}
	if p.CreatedAt == nil {
		now := time.Now()
		p.CreatedAt = &now
	}
	require.NoError(t, store.NewCollection[domain.Post](s, store.PostsCollection).Set(context.Background(), p.ID, p))
	return p
}

func seedComment(t *testing.T, s store.Backend, c *domain.Comment) *domain.Comment {
	t.Helper()
	if c.LikeUIDs == nil {
		c.LikeUIDs = []string{}
	}
	require.NoError(t, store.NewCollection[domain.Comment](s, store.CommentsPath(c.PostID)).Set(context.Background(), c.ID, c))
	return c
}

func getPost(t *testing.T, s store.Backend, postID string) *domain.Post {
	t.Helper()
	p, err := store.NewCollection[domain.Post](s, store.PostsCollection).Get(context.Background(), postID)
	require.NoError(t, err)
	return p
}

func getUser(t *testing.T, s store.Backend, uid string) *domain.User {
	t.Helper()
	u, err := store.NewCollection[domain.User](s, store.UsersCollection).Get(context.Background(), uid)
	require.NoError(t, err)
	return u
}

func listNotifications(t *testing.T, s store.Backend, uid string) []*domain.Notification {
	t.Helper()
	var out []*domain.Notification
	for n, err := range store.NewCollection[domain.Notification](s, store.NotificationsPath(uid)).All(context.Background()) {
		require.NoError(t, err)
		out = append(out, n)
	}
	return out
}

func at(hour, minute int) *time.Time {
	ts := time.Date(2024, 6, 1, hour, minute, 0, 0, time.UTC)
	return &ts
}

// seedUndatedPost stores p without a creation time, as legacy posts are.
func seedUndatedPost(t *testing.T, s store.Backend, p *domain.Post) *domain.Post {
	t.Helper()
	if p.Body == "" {
		p.Body = "本文"
	}
	p.CreatedAt = nil
	require.NoError(t, store.NewCollection[domain.Post](s, store.PostsCollection).Set(context.Background(), p.ID, p))
	return p
}
