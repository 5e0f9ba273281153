package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/0xBased-lang/kektech-backend/internal/domain"
	"github.com/0xBased-lang/kektech-backend/internal/server/handler"
	"github.com/0xBased-lang/kektech-backend/internal/server/middleware"
	"github.com/0xBased-lang/kektech-backend/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port          int
	CORSOrigins   []string
	APIKey        string // if empty, authentication is disabled
	RatePerMinute int    // if zero or no limiter, rate limiting is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Markets    *handler.MarketHandler
	Bets       *handler.BetHandler
	Resolution *handler.ResolutionHandler
	Claims     *handler.ClaimHandler
	Audit      *handler.AuditHandler
	Archive    *handler.ArchiveHandler // nil when object storage is not wired
}

// Server is the headless HTTP + WebSocket API for the settlement engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting) and attaches
// the WebSocket hub. The limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market lifecycle.
	mux.HandleFunc("POST /api/markets", handlers.Markets.Create)
	mux.HandleFunc("GET /api/markets", handlers.Markets.List)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.Get)
	mux.HandleFunc("GET /api/markets/{id}/odds", handlers.Markets.Odds)
	mux.HandleFunc("POST /api/markets/{id}/approve", handlers.Markets.Approve)
	mux.HandleFunc("POST /api/markets/{id}/reject", handlers.Markets.Reject)
	mux.HandleFunc("POST /api/markets/{id}/activate", handlers.Markets.Activate)
	mux.HandleFunc("POST /api/markets/{id}/cancel", handlers.Markets.Cancel)
	mux.HandleFunc("POST /api/markets/{id}/bond/refund", handlers.Markets.RefundBond)

	// Stake pool.
	mux.HandleFunc("POST /api/markets/{id}/bets", handlers.Bets.Place)
	mux.HandleFunc("GET /api/markets/{id}/bets/{account}", handlers.Bets.Get)

	// Resolution and disputes.
	mux.HandleFunc("POST /api/markets/{id}/resolution/propose", handlers.Resolution.Propose)
	mux.HandleFunc("POST /api/markets/{id}/resolution/dispute", handlers.Resolution.Dispute)
	mux.HandleFunc("POST /api/markets/{id}/resolution/finalize", handlers.Resolution.Finalize)
	mux.HandleFunc("POST /api/markets/{id}/resolution/admin-resolve", handlers.Resolution.AdminResolve)
	mux.HandleFunc("POST /api/markets/{id}/resolution/override", handlers.Resolution.Override)
	mux.HandleFunc("POST /api/markets/{id}/resolution/dispute/resolve", handlers.Resolution.ResolveDispute)
	mux.HandleFunc("GET /api/markets/{id}/dispute", handlers.Resolution.GetDispute)

	// Claims, fee sweeps, balances.
	mux.HandleFunc("POST /api/markets/{id}/claim", handlers.Claims.Claim)
	mux.HandleFunc("POST /api/markets/{id}/claim/retry", handlers.Claims.Retry)
	mux.HandleFunc("GET /api/markets/{id}/payout/{account}", handlers.Claims.Payout)
	mux.HandleFunc("POST /api/markets/{id}/fees/withdraw", handlers.Claims.WithdrawFees)
	mux.HandleFunc("POST /api/markets/{id}/emergency-withdraw", handlers.Claims.Emergency)
	mux.HandleFunc("GET /api/accounts/{account}/balance", handlers.Claims.Balance)

	// Audit trail.
	mux.HandleFunc("GET /api/markets/{id}/audit", handlers.Audit.List)

	// Cold-storage readback (requires S3).
	if handlers.Archive != nil {
		mux.HandleFunc("GET /api/archive/markets", handlers.Archive.List)
		mux.HandleFunc("GET /api/archive/markets/{month}", handlers.Archive.Get)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply per-client-IP rate limiting when a limiter is configured.
	if limiter != nil && cfg.RatePerMinute > 0 {
		h = middleware.RateLimit(limiter, cfg.RatePerMinute, time.Minute)(h)
	}

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
