package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/edgeops/opsctl/pkg/api"
	"github.com/edgeops/opsctl/pkg/bundler"
	"github.com/edgeops/opsctl/pkg/bundler/config"
	"github.com/edgeops/opsctl/pkg/discovery"
	"github.com/edgeops/opsctl/pkg/k8s/client"
	"github.com/edgeops/opsctl/pkg/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the support bundle agent",
		Description: `Serves POST /v1/bundle, which collects a support bundle from the cluster and
streams the zip archive back, together with /health, /ready and /metrics.

The agent is meant to run in-cluster under a service account with read access
to the platform namespace; --kubeconfig and --context select another cluster.

  curl -X POST -d '{"opsService":"broker"}' -o bundle.zip http://localhost:8080/v1/bundle`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "Port to listen on",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:  "address",
				Usage: "Address to bind (default: all interfaces)",
			},
			&cli.Float64Flag{
				Name:  "rate-limit",
				Value: 10,
				Usage: "API requests per second",
			},
			&cli.IntFlag{
				Name:  "max-concurrent",
				Value: 2,
				Usage: "Bundle requests served concurrently",
			},
			&cli.IntFlag{
				Name:  "workers",
				Value: config.DefaultWorkers,
				Usage: "Services collected concurrently per bundle",
			},
			contextFlag(),
			kubeconfigFlag(),
			catalogFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := server.DefaultConfig()
			cfg.Port = cmd.Int("port")
			cfg.Address = cmd.String("address")
			cfg.RateLimit = rate.Limit(cmd.Float64("rate-limit"))
			cfg.MaxConcurrentRequests = int64(cmd.Int("max-concurrent"))

			bundleCfg := config.NewConfig(
				config.WithTool(name, version),
				config.WithCatalogPath(cmd.String("catalog")),
				config.WithWorkers(cmd.Int("workers")),
				config.WithAPIRateLimit(discovery.DefaultQPS, discovery.DefaultBurst),
			)
			if err := bundleCfg.Validate(); err != nil {
				return fmt.Errorf("invalid agent configuration: %w", err)
			}

			opts := []bundler.Option{bundler.WithConfig(bundleCfg)}
			if kc, kctx := cmd.String("kubeconfig"), cmd.String("context"); kc != "" || kctx != "" {
				clients, err := client.Build(kc, kctx)
				if err != nil {
					return fmt.Errorf("failed to build kubernetes clients: %w", err)
				}
				opts = append(opts, bundler.WithClients(clients))
			}

			return api.Serve(ctx, cfg, opts...)
		},
	}
}
