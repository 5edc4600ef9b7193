package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nvoloshin/swapbot/internal/domain"
	"github.com/nvoloshin/swapbot/internal/server/handler"
	"github.com/nvoloshin/swapbot/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIToken    string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Wallets *handler.WalletHandler
	Trades  *handler.TradeHandler
	Prices  *handler.PriceHandler
}

// Server is the headless HTTP API in front of the wallet and trade services.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting). limiter may be
// nil to disable API rate limiting.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (the auth middleware exempts it by path).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Wallet endpoints.
	mux.HandleFunc("POST /api/wallets", handlers.Wallets.CreateWallet)
	mux.HandleFunc("POST /api/wallets/import", handlers.Wallets.ImportWallet)
	mux.HandleFunc("GET /api/wallets", handlers.Wallets.ListWallets)
	mux.HandleFunc("GET /api/wallets/{id}", handlers.Wallets.GetWallet)
	mux.HandleFunc("DELETE /api/wallets/{id}", handlers.Wallets.DeleteWallet)
	mux.HandleFunc("GET /api/wallets/{id}/balance", handlers.Wallets.GetBalance)

	// Trade and transfer endpoints.
	mux.HandleFunc("POST /api/trades/buy", handlers.Trades.Buy)
	mux.HandleFunc("POST /api/trades/sell", handlers.Trades.Sell)
	mux.HandleFunc("POST /api/transfers", handlers.Trades.Transfer)

	// Ledger endpoints.
	mux.HandleFunc("GET /api/transactions", handlers.Trades.ListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", handlers.Trades.GetTransaction)

	// Price endpoints.
	mux.HandleFunc("GET /api/prices", handlers.Prices.ListPrices)
	mux.HandleFunc("GET /api/prices/{mint}", handlers.Prices.GetPrice)

	// Build the middleware chain.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIToken)(h)

	if limiter != nil {
		h = middleware.RateLimit(limiter, 60, time.Minute)(h)
	}

	h = middleware.Logging(logger)(h)

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
