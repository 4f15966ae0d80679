package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/arasuji/arasuji-server/internal/auth"
	"github.com/arasuji/arasuji-server/internal/config"
	"github.com/arasuji/arasuji-server/internal/logger"
	"github.com/arasuji/arasuji-server/internal/service"
	"github.com/arasuji/arasuji-server/internal/validation"
)

// NotifierHandle wraps the notifier so pending deliveries drain on shutdown.
type NotifierHandle struct {
	*service.Notifier
}

// Shutdown implements do.Shutdownable.
func (h *NotifierHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Notifier.Shutdown(ctx)
}

// ProvideNotifier provides the asynchronous notification writer.
func ProvideNotifier(i do.Injector) (*NotifierHandle, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return &NotifierHandle{Notifier: service.NewNotifier(storeHandle.Backend, sseHandle.Manager, log.Logger)}, nil
}

// ProvideLedger provides the relation toggle ledger.
func ProvideLedger(i do.Injector) (*service.Ledger, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	notifier := do.MustInvoke[*NotifierHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLedger(storeHandle.Backend, notifier.Notifier, sseHandle.Manager, log.Logger), nil
}

// ProvideSessionService provides the session management service.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSessionService(storeHandle.Backend, tokenService, log.Logger), nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	sessionService := do.MustInvoke[*service.SessionService](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(
		storeHandle.Backend,
		tokenService,
		sessionService,
		service.NewLogMailer(log.Logger),
		v,
		service.AuthOptions{
			PublicURL:       cfg.App.PublicURL,
			VerificationTTL: cfg.Auth.VerificationTTL,
		},
		log.Logger,
	), nil
}

// ProvidePostService provides the post service.
func ProvidePostService(i do.Injector) (*service.PostService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewPostService(storeHandle.Backend, indexHandle.indexer(), v, log.Logger), nil
}

// ProvideCommentService provides the comment service.
func ProvideCommentService(i do.Injector) (*service.CommentService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	ledger := do.MustInvoke[*service.Ledger](i)
	notifier := do.MustInvoke[*NotifierHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCommentService(storeHandle.Backend, ledger, notifier.Notifier, v, log.Logger), nil
}

// ProvideProfileService provides the profile service.
func ProvideProfileService(i do.Injector) (*service.ProfileService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	ledger := do.MustInvoke[*service.Ledger](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewProfileService(storeHandle.Backend, ledger, v, log.Logger), nil
}

// ProvideNotificationService provides the notification inbox service.
func ProvideNotificationService(i do.Injector) (*service.NotificationService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewNotificationService(storeHandle.Backend, sseHandle.Manager, log.Logger), nil
}

// ProvideFeedService provides the feed service.
func ProvideFeedService(i do.Injector) (*service.FeedService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewFeedService(storeHandle.Backend, cfg.Feed.Location, log.Logger), nil
}
