// Package http exposes the ledger over a JSON API: transaction writes,
// per-window summaries and series, CSV export and the dashboard view.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"lojista/internal/cache"
	"lojista/internal/core"
	applog "lojista/internal/log"
	"lojista/internal/services"
)

type Server struct {
	http.Server
	ledger      *services.LedgerService
	rateLimiter *rateLimiter
	structured  *applog.StructuredLogger

	// Read caches for aggregated views, invalidated per store on writes.
	summaryCache *cache.LRUCache[core.WindowSummary]
	seriesCache  *cache.LRUCache[[]core.DailyBucket]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and caches, returning a ready-to-run server.
func NewServer(addr string, ledger *services.LedgerService) *Server {
	mux := http.NewServeMux()
	httpLogger := applog.New(applog.Config{
		Component: applog.ComponentHTTP,
		Handler:   slog.Default().Handler(),
	})

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: applog.Middleware(httpLogger)(mux),
		},
		ledger:       ledger,
		rateLimiter:  newRateLimiter(),
		structured:   applog.NewStructuredLogger(httpLogger),
		summaryCache: cache.NewLRUCache[core.WindowSummary](200, 5*time.Minute),
		seriesCache:  cache.NewLRUCache[[]core.DailyBucket](100, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.Register(s.seriesCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/stores", s.withSecurityHeaders(s.handleCreateStore))
	mux.HandleFunc("POST /api/stores/{store}/transactions", s.withSecurityHeaders(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/stores/{store}/transactions", s.withSecurityHeaders(s.handleListTransactions))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withSecurityHeaders(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/stores/{store}/summary/day", s.withSecurityHeaders(s.handleDailySummary))
	mux.HandleFunc("GET /api/stores/{store}/summary/month", s.withSecurityHeaders(s.handleMonthSummary))
	mux.HandleFunc("GET /api/stores/{store}/series", s.withSecurityHeaders(s.handleSeries))
	mux.HandleFunc("GET /api/stores/{store}/export", s.withSecurityHeaders(s.handleExport))
	mux.HandleFunc("GET /api/stores/{store}/dashboard", s.withSecurityHeaders(s.handleDashboard))

	return s
}

// invalidateStore drops every cached view of a store after a write.
func (s *Server) invalidateStore(storeID string) {
	dropped := s.summaryCache.DeletePrefix("summary:"+storeID+":") +
		s.seriesCache.DeletePrefix("series:"+storeID+":")
	if dropped > 0 {
		slog.Debug("Invalidated cached views", "store_id", storeID, "entries", dropped)
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := clientIPFromRequest(r)
		requestID := generateRequestID()
		ctx := r.Context()

		s.structured.LogHTTPStart(ctx, r, clientIP, requestID)

		// Rate limit writes only; reads are cheap and cached.
		if (r.Method == http.MethodPost || r.Method == http.MethodDelete) && !s.rateLimiter.allow(clientIP) {
			applog.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP, requestID)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
