// Package di provides dependency injection configuration for the Arasuji server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/arasuji/arasuji-server/internal/auth"
	"github.com/arasuji/arasuji-server/internal/config"
	"github.com/arasuji/arasuji-server/internal/di/providers"
	"github.com/arasuji/arasuji-server/internal/logger"
	"github.com/arasuji/arasuji-server/internal/service"
	"github.com/arasuji/arasuji-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideAuthKey)

	// Database layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideNotifier)
	do.Provide(injector, providers.ProvideLedger)
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvidePostService)
	do.Provide(injector, providers.ProvideCommentService)
	do.Provide(injector, providers.ProvideProfileService)
	do.Provide(injector, providers.ProvideNotificationService)
	do.Provide(injector, providers.ProvideFeedService)

	// Workers
	do.Provide(injector, providers.ProvideSessionCleanupJob)
	do.Provide(injector, providers.ProvideAuthStateBridge)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	// Business services
	_ = do.MustInvoke[*providers.NotifierHandle](injector)
	_ = do.MustInvoke[*service.Ledger](injector)
	_ = do.MustInvoke[*service.SessionService](injector)
	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.PostService](injector)
	_ = do.MustInvoke[*service.CommentService](injector)
	_ = do.MustInvoke[*service.ProfileService](injector)
	_ = do.MustInvoke[*service.NotificationService](injector)
	_ = do.MustInvoke[*service.FeedService](injector)
	_ = do.MustInvoke[*service.SearchService](injector)

	// Workers
	_ = do.MustInvoke[*providers.SessionCleanupJob](injector)
	_ = do.MustInvoke[*providers.AuthStateBridge](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Trigger search reindex if needed
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
