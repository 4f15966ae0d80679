package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/arasuji/arasuji-server/internal/api"
	"github.com/arasuji/arasuji-server/internal/auth"
	"github.com/arasuji/arasuji-server/internal/config"
	"github.com/arasuji/arasuji-server/internal/logger"
	"github.com/arasuji/arasuji-server/internal/service"
	"github.com/arasuji/arasuji-server/internal/sse"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Auth:          do.MustInvoke[*service.AuthService](i),
		Posts:         do.MustInvoke[*service.PostService](i),
		Comments:      do.MustInvoke[*service.CommentService](i),
		Profiles:      do.MustInvoke[*service.ProfileService](i),
		Ledger:        do.MustInvoke[*service.Ledger](i),
		Notifications: do.MustInvoke[*service.NotificationService](i),
		Feed:          do.MustInvoke[*service.FeedService](i),
	}

	opts := api.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		SSEManager:  sseHandle.Manager,
		SSEHandler:  sse.NewHandler(sseHandle.Manager, tokenService, log.Logger),
	}
	if indexHandle.Index != nil {
		services.Search = do.MustInvoke[*service.SearchService](i)
		opts.SearchIndex = indexHandle.Index
	}

	handler := api.NewServer(storeHandle.Backend, services, opts, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
