// Package http exposes the application's JSON API. The UI is expected
// to live elsewhere; this surface is what it talks to.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"kakeibo/internal/log"
	"kakeibo/internal/services"
)

// mutationRateLimit is the per-IP budget for mutating requests.
const mutationRateLimit = 60

type Server struct {
	http.Server

	expenses   *services.ExpenseService
	categories *services.CategoryService
	syncs      *services.SyncService

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a
// ready-to-run http.Server.
func NewServer(addr string, expenses *services.ExpenseService, categories *services.CategoryService, syncs *services.SyncService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           log.Middleware(slog.Default())(mux),
			ReadHeaderTimeout: 5 * time.Second,
		},
		expenses:    expenses,
		categories:  categories,
		syncs:       syncs,
		rateLimiter: newRateLimiter(mutationRateLimit),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/records", s.withMiddleware(s.handleListRecords))
	mux.HandleFunc("POST /api/records", s.withMiddleware(s.handleCreateRecord))
	mux.HandleFunc("PUT /api/records/{id}", s.withMiddleware(s.handleUpdateRecord))
	mux.HandleFunc("DELETE /api/records/{id}", s.withMiddleware(s.handleDeleteRecord))

	mux.HandleFunc("GET /api/categories", s.withMiddleware(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.withMiddleware(s.handleAddCategory))
	mux.HandleFunc("DELETE /api/categories/{name}", s.withMiddleware(s.handleRemoveCategory))

	mux.HandleFunc("GET /api/filter", s.withMiddleware(s.handleGetFilter))
	mux.HandleFunc("PUT /api/filter", s.withMiddleware(s.handleSetFilter))

	mux.HandleFunc("GET /api/summary", s.withMiddleware(s.handleSummary))

	mux.HandleFunc("GET /api/sync/config", s.withMiddleware(s.handleGetSyncConfig))
	mux.HandleFunc("PUT /api/sync/config", s.withMiddleware(s.handleSetSyncConfig))
	mux.HandleFunc("POST /api/sync/push", s.withMiddleware(s.handleSyncPush))
	mux.HandleFunc("POST /api/sync/pull", s.withMiddleware(s.handleSyncPull))

	mux.HandleFunc("POST /api/reset", s.withMiddleware(s.handleReset))

	return s
}

// withMiddleware adds security headers, rate limiting, request IDs,
// and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		logger := log.FromContext(r.Context()).With(
			log.FieldRequestID, requestID,
			log.FieldComponent, log.ComponentHTTP,
		)
		ctx := log.WithContext(r.Context(), logger)
		r = r.WithContext(ctx)

		if isMutation(r.Method) && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		logger.InfoContext(ctx, "Request completed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
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

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.categories.List(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	if shutdownErr != nil {
		slog.Error("Server shutdown failed", log.FieldError, shutdownErr)
	}
	return shutdownErr
}
