package server

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	cerrors "github.com/edgeops/opsctl/pkg/errors"
	"github.com/google/uuid"
)

type contextKey string

const (
	contextKeyRequestID contextKey = "requestID"

	requestIDHeader = "X-Request-Id"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withMiddleware wraps an API handler with request id, panic recovery,
// rate and concurrency limiting, version negotiation and access logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		r = r.WithContext(ctx)
		w.Header().Set(requestIDHeader, requestID)
		w.Header().Set(apiVersionHeader, negotiateAPIVersion(r))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				slog.Error("panic in handler",
					slog.Any("panic", p),
					slog.String("stack", string(debug.Stack())),
					slog.String("request_id", requestID))
				WriteError(rec, r, http.StatusInternalServerError, cerrors.ErrCodeInternal,
					"Internal server error", true, nil)
			}
			slog.Debug("request served",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", requestID))
		}()

		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			WriteError(rec, r, http.StatusTooManyRequests, cerrors.ErrCodeRateLimitExceeded,
				"Rate limit exceeded", true, nil)
			return
		}

		if !s.inflight.TryAcquire(1) {
			w.Header().Set("Retry-After", "30")
			WriteError(rec, r, http.StatusTooManyRequests, cerrors.ErrCodeRateLimitExceeded,
				"Too many requests in flight", true, map[string]interface{}{
					"max_concurrent": s.config.MaxConcurrentRequests,
				})
			return
		}
		defer s.inflight.Release(1)

		next(rec, r)
	}
}
