package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/surveyprogress/internal/api/handlers"
	"github.com/wonny/surveyprogress/pkg/logger"
)

// HealthCheck checks one dependency; a non-nil error marks it down
type HealthCheck func(ctx context.Context) error

// RouterOption configures NewRouter
type RouterOption func(*routerOptions)

type routerOptions struct {
	checks map[string]HealthCheck
}

// WithHealthCheck reports a dependency under /health
func WithHealthCheck(name string, check HealthCheck) RouterOption {
	return func(o *routerOptions) {
		o.checks[name] = check
	}
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(estimateHandler *handlers.EstimateHandler, streamHandler *handlers.StreamHandler, log *logger.Logger, opts ...RouterOption) http.Handler {
	o := &routerOptions{checks: make(map[string]HealthCheck)}
	for _, opt := range opts {
		opt(o)
	}

	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(o.checks)).Methods("GET")

	// Real-time stream
	r.HandleFunc("/ws/estimate", streamHandler.Serve).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Estimate endpoints
	api.HandleFunc("/estimate", estimateHandler.Estimate).Methods("POST")
	api.HandleFunc("/estimate/quick", estimateHandler.Quick).Methods("GET")
	api.HandleFunc("/estimate/batch", estimateHandler.Batch).Methods("POST")
	api.HandleFunc("/items/{item}/estimate", estimateHandler.Item).Methods("GET")

	// Cache endpoints
	api.HandleFunc("/cache/stats", estimateHandler.CacheStats).Methods("GET")
	api.HandleFunc("/cache", estimateHandler.ClearCache).Methods("DELETE")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status; any failing
// dependency turns the response into 503 "degraded"
func healthCheckHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		body := map[string]interface{}{
			"status":  status,
			"service": "surveyprogress-api",
		}
		if len(deps) > 0 {
			body["dependencies"] = deps
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(body)
	}
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			// Call next handler
			next.ServeHTTP(rec, r)

			// Log request
			zl := log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			}).Zerolog()
			zl.Debug().Msg("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
