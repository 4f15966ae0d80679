// Package api provides the HTTP API server and handlers for the Arasuji board.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/arasuji/arasuji-server/internal/sse"
	"github.com/arasuji/arasuji-server/internal/store"
)

// APIVersion is reported in the OpenAPI document.
const APIVersion = "1.0.0"

// DocumentCounter reports the size of the search index.
type DocumentCounter interface {
	DocumentCount() (uint64, error)
}

// Options holds the optional collaborators of a Server.
type Options struct {
	// CORSOrigins lists allowed browser origins. Empty disables CORS headers.
	CORSOrigins []string
	// SSEManager and SSEHandler serve the event stream; both may be nil.
	SSEManager *sse.Manager
	SSEHandler http.Handler
	// SearchIndex is only used by the health check.
	SearchIndex DocumentCounter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store       store.Backend
	services    *Services
	sseManager  *sse.Manager
	searchIndex DocumentCounter
	router      *chi.Mux
	api         huma.API
	logger      *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(b store.Backend, services *Services, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	router.Use(authMiddleware(services.Auth))

	s := &Server{
		store:       b,
		services:    services,
		sseManager:  opts.SSEManager,
		searchIndex: opts.SearchIndex,
		router:      router,
		api:         humachi.New(router, newHumaConfig("Arasuji API")),
		logger:      logger,
	}
	RegisterErrorHandler()

	s.registerRoutes()
	if opts.SSEHandler != nil {
		router.Get("/api/v1/events", opts.SSEHandler.ServeHTTP)
	}

	return s
}

// newHumaConfig builds the OpenAPI configuration shared by the server and tests.
func newHumaConfig(title string) huma.Config {
	config := huma.DefaultConfig(title, APIVersion)
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	config.Transformers = append(config.Transformers, EnvelopeTransformer)
	return config
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerFeedRoutes()
	s.registerPostRoutes()
	s.registerCommentRoutes()
	s.registerUserRoutes()
	s.registerNotificationRoutes()
	s.registerSearchRoutes()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the chi router.
func (s *Server) Router() chi.Router {
	return s.router
}

// API returns the huma API, mainly for OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}
