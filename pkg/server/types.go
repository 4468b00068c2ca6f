package server

import (
	"time"

	"golang.org/x/time/rate"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Code      string                 `json:"code" yaml:"code"`
	Message   string                 `json:"message" yaml:"message"`
	Details   map[string]interface{} `json:"details,omitempty" yaml:"details,omitempty"`
	RequestID string                 `json:"requestId" yaml:"requestId"`
	Timestamp time.Time              `json:"timestamp" yaml:"timestamp"`
	Retryable bool                   `json:"retryable" yaml:"retryable"`
}

// HealthResponse is the body of /health and /ready.
type HealthResponse struct {
	Status    string    `json:"status" yaml:"status"`
	Name      string    `json:"name" yaml:"name"`
	Version   string    `json:"version" yaml:"version"`
	Uptime    string    `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Reason    string    `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Config is the agent's HTTP configuration.
type Config struct {
	// Address is the bind address; empty binds every interface.
	Address string
	Port    int

	// RateLimit is the steady request rate across all clients.
	RateLimit      rate.Limit
	RateLimitBurst int

	// MaxConcurrentRequests bounds API requests in flight. Bundle collection
	// is heavy on the API server, so this is kept small.
	MaxConcurrentRequests int64

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// LogLevel is parsed by logging.ParseLevel.
	LogLevel string
}
