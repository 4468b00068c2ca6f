// Package api wires the support bundle handler into the HTTP agent.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/edgeops/opsctl/pkg/bundler"
	"github.com/edgeops/opsctl/pkg/logging"
	"github.com/edgeops/opsctl/pkg/server"
)

const (
	name           = "opsctl-agent"
	versionDefault = "dev"

	// BundleRoute is the endpoint that streams a support bundle.
	BundleRoute = "/v1/bundle"
)

var (
	// overridden during build with ldflags to reflect actual version info
	// e.g., -X "github.com/edgeops/opsctl/pkg/api.version=1.0.0"
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Routes returns the API routes served by the agent.
func Routes(b *bundler.DefaultBundler) map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		BundleRoute: b.HandleBundles,
	}
}

// NewServer builds the agent without starting it.
func NewServer(cfg *server.Config, opts ...bundler.Option) *server.Server {
	b := bundler.New(opts...)
	return server.New(
		server.WithConfig(cfg),
		server.WithName(name),
		server.WithVersion(version),
		server.WithHandler(Routes(b)),
	)
}

// Serve starts the agent and blocks until ctx is cancelled.
// A nil cfg uses server.DefaultConfig.
func Serve(ctx context.Context, cfg *server.Config, opts ...bundler.Option) error {
	logging.SetDefaultStructuredLogger(name, version)
	slog.Info("starting",
		"name", name,
		"version", version,
		"commit", commit,
		"date", date,
	)

	s := NewServer(cfg, opts...)
	if err := s.Run(ctx); err != nil {
		slog.Error("server exited with error", "error", err)
		return err
	}

	return nil
}
