package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/liqguard/internal/domain"
	"github.com/alanyoungcy/liqguard/internal/metrics"
	"github.com/alanyoungcy/liqguard/internal/server/handler"
	"github.com/alanyoungcy/liqguard/internal/server/middleware"
	"github.com/alanyoungcy/liqguard/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // guards operator routes; empty disables auth

	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health        *handler.HealthHandler
	Wizards       *handler.WizardHandler
	Catalog       *handler.CatalogHandler
	Verifications *handler.VerificationHandler
}

// Server is the HTTP + WebSocket front of the verification wizard.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
// limiter may be nil to disable per-IP rate limiting.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	registerRoutes(mux, handlers, hub)

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/verifications", "/metrics")(h)
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow, logger)(h)
	h = metrics.Middleware(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       90 * time.Second,
		},
		logger: logger,
	}
}

func registerRoutes(mux *http.ServeMux, h Handlers, hub *ws.Hub) {
	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)

	mux.HandleFunc("GET /api/catalog/markets", h.Catalog.Markets)
	mux.HandleFunc("GET /api/catalog/skus", h.Catalog.SKUs)

	mux.HandleFunc("POST /api/wizards", h.Wizards.Create)
	mux.HandleFunc("GET /api/wizards/{id}", h.Wizards.Get)
	mux.HandleFunc("DELETE /api/wizards/{id}", h.Wizards.Delete)
	mux.HandleFunc("POST /api/wizards/{id}/resume", h.Wizards.Resume)
	mux.HandleFunc("POST /api/wizards/{id}/actions", h.Wizards.Action)
	mux.HandleFunc("PUT /api/wizards/{id}/evidence", h.Wizards.UploadEvidence)
	mux.HandleFunc("DELETE /api/wizards/{id}/evidence", h.Wizards.ClearEvidence)
	mux.HandleFunc("POST /api/wizards/{id}/submit", h.Wizards.Submit)
	mux.HandleFunc("POST /api/wizards/{id}/challenge", h.Wizards.Challenge)
	mux.HandleFunc("POST /api/wizards/{id}/signin", h.Wizards.SignIn)
	mux.HandleFunc("POST /api/wizards/{id}/wallet", h.Wizards.WalletChanged)

	if h.Verifications != nil {
		mux.HandleFunc("GET /api/verifications", h.Verifications.List)
	}

	mux.Handle("GET /metrics", metrics.Handler())

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}
}

// Handler exposes the fully wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
