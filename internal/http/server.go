// Package http serves the BudgetWise JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"budgetwise/internal/advisor"
	"budgetwise/internal/auth"
	"budgetwise/internal/log"
	"budgetwise/internal/middleware/ratelimit"
	"budgetwise/internal/middleware/security"
	"budgetwise/internal/middleware/trace"
	"budgetwise/internal/services"
	"budgetwise/internal/stream"
)

// Deps are the collaborators the API needs. Advisor and Limiter may be nil:
// the advisor route then answers 503 and no rate limit is applied.
type Deps struct {
	Transactions  *services.TransactionService
	Preferences   *services.PreferencesService
	Dashboard     *services.DashboardService
	Advisor       *advisor.Service
	Auth          *auth.Authenticator
	Hub           *stream.Hub
	Limiter       ratelimit.Limiter
	RateWindow    time.Duration
	Detector      *security.Detector
	Ready         func(ctx context.Context) error // store ping for /readyz
	AllowedOrigin string
	Logger        *log.Logger
}

type Server struct {
	http.Server

	txs       *services.TransactionService
	prefs     *services.PreferencesService
	dashboard *services.DashboardService
	advisor   *advisor.Service
	auth      *auth.Authenticator
	hub       *stream.Hub
	ready     func(ctx context.Context) error
	upgrader  websocket.Upgrader
	logger    *log.Logger
	now       func() time.Time
	loc       *time.Location

	shutdownOnce sync.Once
}

func NewServer(addr string, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = log.Discard()
	}
	detector := d.Detector
	if detector == nil {
		detector = security.NewDetector(false, logger)
	}

	s := &Server{
		txs:       d.Transactions,
		prefs:     d.Preferences,
		dashboard: d.Dashboard,
		advisor:   d.Advisor,
		auth:      d.Auth,
		hub:       d.Hub,
		ready:     d.Ready,
		logger:    logger.WithComponent(log.ComponentHTTP),
		now:       time.Now,
		loc:       time.Local,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin(d.AllowedOrigin),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.route(mux, "GET /api/v1/me", s.handleMe)
	s.route(mux, "GET /api/v1/categories", s.handleCategories)
	s.route(mux, "GET /api/v1/currencies", s.handleCurrencies)

	s.route(mux, "GET /api/v1/transactions", s.handleListTransactions)
	s.route(mux, "POST /api/v1/transactions", s.handleCreateTransaction)
	s.route(mux, "GET /api/v1/transactions/{id}", s.handleGetTransaction)
	s.route(mux, "PUT /api/v1/transactions/{id}", s.handleUpdateTransaction)
	s.route(mux, "DELETE /api/v1/transactions/{id}", s.handleDeleteTransaction)

	s.route(mux, "GET /api/v1/preferences", s.handleGetPreferences)
	s.route(mux, "PATCH /api/v1/preferences", s.handlePatchPreferences)
	s.route(mux, "PUT /api/v1/preferences/avatar", s.handlePutAvatar)

	s.route(mux, "GET /api/v1/dashboard", s.handleDashboard)
	s.route(mux, "GET /api/v1/analytics/{kind}", s.handleAnalytics)
	s.route(mux, "POST /api/v1/advisor", s.handleAdvisor)
	s.route(mux, "GET /api/v1/export", s.handleExport)
	s.route(mux, "GET /api/v1/stream", s.handleStream)

	// Outermost first: trace sees the final status of every request.
	var h http.Handler = mux
	if d.Limiter != nil {
		window := d.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		h = ratelimit.Middleware(d.Limiter, window, detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded, try again later")
		}, logger)(h)
	}
	h = detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = trace.NewMiddleware(detector.ClientIP, logger).Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second, // advisor calls can be slow
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

// route registers an authenticated API handler.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.auth.Middleware(s.logger, func(w http.ResponseWriter, r *http.Request, err error) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="budgetwise"`)
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated, "authentication required")
	})(h))
}

// Shutdown gracefully stops the server. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeError(w, r, http.StatusServiceUnavailable, codeUnavailable, "store unavailable")
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func checkOrigin(allowed string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		if allowed == "" {
			return true
		}
		return r.Header.Get("Origin") == allowed
	}
}
