package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Port = 0
	cfg.RateLimit = 1000
	cfg.RateLimitBurst = 1000
	return cfg
}

func route(pattern string, h http.HandlerFunc) Option {
	return WithHandler(map[string]http.HandlerFunc{pattern: h})
}

func TestHealth(t *testing.T) {
	s := New(WithConfig(testConfig()))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Version)
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	s := New(WithConfig(testConfig()))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, HEAD", w.Header().Get("Allow"))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "METHOD_NOT_ALLOWED", resp.Code)
}

func TestReady(t *testing.T) {
	s := New(WithConfig(testConfig()))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.SetReady(true)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.NotEmpty(t, resp.Uptime)
}

func TestDefaultRoute(t *testing.T) {
	s := New(
		WithConfig(testConfig()),
		WithName("opsctl-agent"),
		route("/v1/bundle", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Name   string   `json:"name"`
		Routes []string `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "opsctl-agent", resp.Name)
	assert.Contains(t, resp.Routes, "/v1/bundle")

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	s := New(WithConfig(testConfig()))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestMiddleware_RequestIDAndVersion(t *testing.T) {
	var seen string
	s := New(WithConfig(testConfig()), route("/v1/echo", func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(contextKeyRequestID).(string)
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/echo", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(requestIDHeader))
	assert.Equal(t, DefaultAPIVersion, w.Header().Get(apiVersionHeader))

	// A caller supplied uuid is propagated.
	const id = "6f1c9d3e-8a52-4c1b-9f0e-2d7a5b4c3e21"
	req := httptest.NewRequest(http.MethodGet, "/v1/echo", nil)
	req.Header.Set(requestIDHeader, id)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, id, seen)
}

func TestMiddleware_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 0.001
	cfg.RateLimitBurst = 1
	s := New(WithConfig(cfg), route("/v1/echo", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/echo", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/echo", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", resp.Code)
	assert.True(t, resp.Retryable)
}

func TestMiddleware_ConcurrencyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentRequests = 1

	entered := make(chan struct{})
	release := make(chan struct{})
	s := New(WithConfig(cfg), route("/v1/slow", func(w http.ResponseWriter, _ *http.Request) {
		entered <- struct{}{}
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	var wg sync.WaitGroup
	first := httptest.NewRecorder()
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Handler().ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v1/slow", nil))
	}()
	<-entered

	second := httptest.NewRecorder()
	s.Handler().ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/v1/slow", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	close(release)
	wg.Wait()
	assert.Equal(t, http.StatusOK, first.Code)
}

func TestMiddleware_RecoversPanics(t *testing.T) {
	s := New(WithConfig(testConfig()), route("/v1/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Address = "127.0.0.1"
	s := New(WithConfig(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.ready
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
