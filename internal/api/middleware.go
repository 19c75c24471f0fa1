package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFromContext returns the request ID set by RequestIDMiddleware, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware reuses a well-formed inbound X-Request-ID or assigns a
// new UUID, and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// AccessLogMiddleware records request metrics and logs one line per request.
func AccessLogMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	accessLogger := logger.With("component", "api_access")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := routeLabel(r)
		elapsed := time.Since(start)
		metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(sw.statusCode)).Inc()
		metrics.APIRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		accessLogger.Info("api request",
			"request_id", RequestIDFromContext(r.Context()),
			"remote_addr", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"response_status", sw.statusCode,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

// routeLabel keeps metric cardinality bounded to known routes.
func routeLabel(r *http.Request) string {
	switch r.URL.Path {
	case historyPath:
		return historyPath
	default:
		return "other"
	}
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.written {
		sw.statusCode = code
		sw.written = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.written {
		sw.written = true
	}
	return sw.ResponseWriter.Write(b)
}

// Chain wraps h with request IDs, access logging and, when rl is non-nil,
// per-client rate limiting. Request IDs are assigned first so every later
// layer can log them.
func Chain(h http.Handler, logger *slog.Logger, rl *RateLimitMiddleware) http.Handler {
	if rl != nil {
		h = rl.Wrap(h)
	}
	return RequestIDMiddleware(AccessLogMiddleware(logger, h))
}
