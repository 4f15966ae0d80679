package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/arasuji/arasuji-server/internal/config"
	"github.com/arasuji/arasuji-server/internal/logger"
	"github.com/arasuji/arasuji-server/internal/sse"
	"github.com/arasuji/arasuji-server/internal/store"
	"github.com/arasuji/arasuji-server/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the document store backend with shutdown capability.
type StoreHandle struct {
	store.Backend
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured document store backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := cfg.DatabasePath()

	var (
		backend store.Backend
		err     error
	)
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		backend, err = sqlite.Open(dbPath, log.Logger)
	case config.BackendBadger:
		backend, err = store.New(dbPath, log.Logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "backend", cfg.Store.Backend, "path", dbPath)

	return &StoreHandle{Backend: backend}, nil
}
