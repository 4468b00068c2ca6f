package server

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/edgeops/opsctl/pkg/defaults"
)

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{
		Address:               "",
		Port:                  8080,
		RateLimit:             10, // 10 req/s
		RateLimitBurst:        20,
		MaxConcurrentRequests: 2,
		ReadTimeout:           defaults.ServerReadTimeout,
		WriteTimeout:          defaults.ServerWriteTimeout,
		IdleTimeout:           defaults.ServerIdleTimeout,
		ShutdownTimeout:       defaults.ServerShutdownTimeout,
		LogLevel:              slog.LevelInfo.String(),
	}

	// Override with environment variables if set
	if portStr := os.Getenv("PORT"); portStr != "" {
		var port int
		if _, err := fmt.Sscanf(portStr, "%d", &port); err == nil {
			cfg.Port = port
		}
	}

	if logLevelStr := os.Getenv("LOG_LEVEL"); logLevelStr != "" {
		cfg.LogLevel = logLevelStr
	}

	return cfg
}
