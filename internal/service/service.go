// Package service implements the application's use cases on top of the
// document store: the counter ledger, threads, notifications, the feed, and
// the account lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainerrors "github.com/arasuji/arasuji-server/internal/errors"
	"github.com/arasuji/arasuji-server/internal/sse"
	"github.com/arasuji/arasuji-server/internal/store"
)

// EventEmitter publishes real-time events. *sse.Manager implements it.
type EventEmitter interface {
	Emit(event sse.Event)
	EmitToUser(userID string, event sse.Event)
}

// NoopEmitter discards events.
type NoopEmitter struct{}

func (NoopEmitter) Emit(sse.Event) {}

func (NoopEmitter) EmitToUser(string, sse.Event) {}

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// storeError translates store failures into domain errors. Domain errors and
// context errors pass through untouched.
func storeError(err error, op string) error {
	if err == nil {
		return nil
	}

	var de *domainerrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFound(op + ": not found").WithCause(err)
	case errors.Is(err, store.ErrAborted):
		return domainerrors.Aborted("concurrent update, please try again").WithCause(err)
	case errors.Is(err, store.ErrUnavailable):
		return domainerrors.Unavailable("storage is temporarily unavailable").WithCause(err)
	case errors.Is(err, store.ErrInvalidPath):
		return domainerrors.Validation("invalid identifier").WithCause(err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func requireActor(actorID string) error {
	if actorID == "" {
		return domainerrors.Unauthorized("sign-in required")
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
