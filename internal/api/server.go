// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/blocke-ledger/internal/errors"
	"github.com/blocke-ledger/internal/logging"
	"github.com/blocke-ledger/internal/models"
	"github.com/blocke-ledger/internal/service"
)

// Service interfaces for dependency injection and testing

// BalanceServiceInterface defines AI credit balance operations
type BalanceServiceInterface interface {
	GetBalance(ctx context.Context, address string) (string, int64, error)
	SetBalance(ctx context.Context, address string, balance int64) (int64, error)
	Deduct(ctx context.Context, address string) (int64, error)
	Credit(ctx context.Context, address string, amount int64) (int64, error)
}

// LedgerServiceInterface defines transaction ledger operations
type LedgerServiceInterface interface {
	Append(ctx context.Context, input service.AppendTransactionInput) (*models.Transaction, error)
	List(ctx context.Context, address string, page, limit int) (*models.TransactionPage, error)
}

// StakingServiceInterface defines staking ledger operations
type StakingServiceInterface interface {
	GetStaking(ctx context.Context, address string) (*models.StakingAccount, error)
	RecordStake(ctx context.Context, input service.StakeInput) (bool, error)
	Claim(ctx context.Context, address, txHash string) error
	Unstake(ctx context.Context, address, txHash string) error
}

// AggregatorServiceInterface defines the on-chain totals
type AggregatorServiceInterface interface {
	TotalMinted(ctx context.Context) (string, error)
	TotalStaked(ctx context.Context) (string, error)
	TotalClaimed(ctx context.Context) (string, error)
}

// BEUIDServiceInterface defines user identifier operations
type BEUIDServiceInterface interface {
	Register(ctx context.Context, address string) (*models.BEUID, error)
	Lookup(ctx context.Context, address string) (*models.BEUID, error)
	Resolve(ctx context.Context, uid string) (*models.BEUID, error)
}

// PreferenceServiceInterface defines preference operations
type PreferenceServiceInterface interface {
	Get(ctx context.Context, address string) (*models.Preference, error)
	Update(ctx context.Context, address string, prefs map[string]interface{}, theme string) (*models.Preference, error)
}

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Services bundles the handlers' dependencies.
// Aggregator may be nil when no chain is configured.
type Services struct {
	Balance     BalanceServiceInterface
	Ledger      LedgerServiceInterface
	Staking     StakingServiceInterface
	Aggregator  AggregatorServiceInterface
	BEUID       BEUIDServiceInterface
	Preferences PreferenceServiceInterface

	// HealthChecks are pinged by /health, keyed by component name
	HealthChecks map[string]HealthChecker
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
	services   Services
	metrics    *Metrics
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
}

// NewServer creates a new API server instance.
// A nil metrics gets a fresh registry.
func NewServer(config *ServerConfig, services Services, metrics *Metrics) *Server {
	if metrics == nil {
		metrics = NewMetrics()
	}

	s := &Server{
		router:   mux.NewRouter(),
		services: services,
		metrics:  metrics,
		config:   config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)

	// Order matters: logging and recovery see everything below them.
	middlewares := []mux.MiddlewareFunc{
		LoggingMiddleware,
		RecoveryMiddleware,
		s.metrics.Middleware,
		RateLimitMiddleware(rateLimiter),
		CompressionMiddleware,
	}
	s.router.Use(middlewares...)

	// mux only runs Use middleware on matched routes, so the fallback
	// handlers get the same chain explicitly.
	s.router.NotFoundHandler = chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, apperrors.NewNotFoundError("route", r.URL.Path))
	}), middlewares...)
	s.router.MethodNotAllowedHandler = chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
			Success: false,
			Error:   "method not allowed",
			Code:    "METHOD_NOT_ALLOWED",
		})
	}), middlewares...)

	s.setupRoutes()

	// CORS and request ids wrap the router so preflights and unmatched
	// routes get them too.
	s.handler = RequestIDMiddleware(CORSMiddleware(s.router))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// chain wraps h so that the first middleware is the outermost
func chain(h http.Handler, middlewares ...mux.MiddlewareFunc) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()

	// AI credit balance
	api.HandleFunc("/ai-balance", s.handleGetAIBalance).Methods(http.MethodGet)
	api.HandleFunc("/ai-balance", s.handleSetAIBalance).Methods(http.MethodPost)
	api.HandleFunc("/ai-balance/deduct", s.handleDeductAIBalance).Methods(http.MethodPost)
	api.HandleFunc("/ai-balance/credit", s.handleCreditAIBalance).Methods(http.MethodPost)

	// Transaction ledger
	api.HandleFunc("/transactions", s.handleAppendTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)

	// Staking ledger
	api.HandleFunc("/staking", s.handleGetStaking).Methods(http.MethodGet)
	api.HandleFunc("/staking/stake", s.handleRecordStake).Methods(http.MethodPost)
	api.HandleFunc("/staking/claim", s.handleClaim).Methods(http.MethodPost)
	api.HandleFunc("/staking/unstake", s.handleUnstake).Methods(http.MethodPost)

	// On-chain totals
	api.HandleFunc("/total-minted", s.handleTotalMinted).Methods(http.MethodGet)
	api.HandleFunc("/total-staked", s.handleTotalStaked).Methods(http.MethodGet)
	api.HandleFunc("/total-claimed", s.handleTotalClaimed).Methods(http.MethodGet)

	// User identifiers
	api.HandleFunc("/beuid", s.handleRegisterBEUID).Methods(http.MethodPost)
	api.HandleFunc("/beuid", s.handleLookupBEUID).Methods(http.MethodGet)
	api.HandleFunc("/beuid/resolve", s.handleResolveBEUID).Methods(http.MethodGet)

	// Preferences
	api.HandleFunc("/preferences", s.handleGetPreferences).Methods(http.MethodGet)
	api.HandleFunc("/preferences", s.handleUpdatePreferences).Methods(http.MethodPost)
}

// healthCheckTimeout bounds each dependency ping made by /health
const healthCheckTimeout = 2 * time.Second

// handleHealth pings every registered dependency. Any failure reports
// status "degraded" with 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(s.services.HealthChecks))
		g      errgroup.Group
	)
	for name, checker := range s.services.HealthChecks {
		g.Go(func() error {
			state := "ok"
			if err := checker.Ping(ctx); err != nil {
				logging.FromContext(r.Context()).WithError(err).WithField("component", name).Warn("health check failed")
				state = "unavailable"
			}
			mu.Lock()
			checks[name] = state
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status, code := "healthy", http.StatusOK
	for _, state := range checks {
		if state != "ok" {
			status, code = "degraded", http.StatusServiceUnavailable
			break
		}
	}

	respondJSON(w, code, map[string]interface{}{
		"status":  status,
		"service": "blocke-ledger",
		"checks":  checks,
	})
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
