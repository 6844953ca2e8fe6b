package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/signbridge/internal/channel"
	"github.com/mattjoyce/signbridge/internal/events"
	"github.com/mattjoyce/signbridge/internal/overlay"
	"github.com/mattjoyce/signbridge/internal/rpc"
)

// DefaultMaxOverlayBytes caps overlay image uploads.
const DefaultMaxOverlayBytes = 100 << 20

// SlotCounter reports busy video decode slots.
type SlotCounter interface {
	Busy() int
}

// RestartCounter reports watchdog restarts.
type RestartCounter interface {
	Restarts() int
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey, when set, is required as a bearer token on every route
	// except /healthz.
	APIKey          string
	MaxOverlayBytes int64
	// EventsKeepAlive defaults to DefaultKeepAlive.
	EventsKeepAlive time.Duration
}

// Deps are the bridge components the routes front.
type Deps struct {
	Dispatcher *rpc.Dispatcher
	Renderer   overlay.Renderer
	Bridge     *channel.Server
	Events     *events.Hub
	Slots      SlotCounter
	Restarts   RestartCounter
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance
func New(config Config, deps Deps, logger *slog.Logger) *Server {
	if config.MaxOverlayBytes <= 0 {
		config.MaxOverlayBytes = DefaultMaxOverlayBytes
	}
	if deps.Events == nil {
		deps.Events = events.NewHub(256)
	}
	return &Server{
		config:    config,
		deps:      deps,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.config.Listen,
		Handler: s.setupRoutes(),
		// /bridge and /events are long-lived, so only the header read is bounded.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		if s.deps.Bridge != nil {
			s.deps.Bridge.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/openapi.json", s.handleOpenAPI)

	r.Group(func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(s.authMiddleware)
		}
		r.Post("/message", s.handleMessage)
		r.Post("/overlay", s.handleOverlay)
		if s.deps.Bridge != nil {
			r.Get("/bridge", s.deps.Bridge.ServeHTTP)
		}
		r.Get("/events", s.handleEvents)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
