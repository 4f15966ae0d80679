package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/arasuji/arasuji-server/internal/logger"
	"github.com/arasuji/arasuji-server/internal/service"
	"github.com/arasuji/arasuji-server/internal/sse"
)

// SessionCleanupJob runs periodic session cleanup.
type SessionCleanupJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *SessionCleanupJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideSessionCleanupJob provides the periodic session cleanup job.
func ProvideSessionCleanupJob(i do.Injector) (*SessionCleanupJob, error) {
	sessionService := do.MustInvoke[*service.SessionService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		// Initial cleanup on startup
		if _, err := sessionService.DeleteExpiredSessions(ctx); err != nil {
			log.Warn("Initial session cleanup failed", "error", err)
		}
		sessionService.RunCleanup(ctx, service.DefaultSessionCleanupInterval)
	}()

	return &SessionCleanupJob{cancel: cancel}, nil
}

// AuthStateBridge forwards sign-in and sign-out transitions to the user's event streams.
type AuthStateBridge struct {
	unsubscribe func()
}

// Shutdown implements do.Shutdownable.
func (b *AuthStateBridge) Shutdown() error {
	b.unsubscribe()
	return nil
}

// ProvideAuthStateBridge subscribes the SSE manager to auth-state changes.
func ProvideAuthStateBridge(i do.Injector) (*AuthStateBridge, error) {
	authService := do.MustInvoke[*service.AuthService](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	unsubscribe := authService.OnAuthStateChanged(func(c service.AuthStateChange) {
		sseHandle.EmitToUser(c.UserID, sse.NewAuthStateEvent(c.UserID, c.SignedIn))
	})

	return &AuthStateBridge{unsubscribe: unsubscribe}, nil
}
