package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/edgeops/opsctl/pkg/bundler"
	"github.com/edgeops/opsctl/pkg/bundler/config"
	"github.com/edgeops/opsctl/pkg/bundler/result"
	"github.com/edgeops/opsctl/pkg/discovery"
	cerrors "github.com/edgeops/opsctl/pkg/errors"
	"github.com/edgeops/opsctl/pkg/oci"
	"github.com/edgeops/opsctl/pkg/opsservice"
)

func supportCmd() *cli.Command {
	return &cli.Command{
		Name:  "support",
		Usage: "Support and diagnostics operations",
		Commands: []*cli.Command{
			createBundleCmd(),
		},
	}
}

// pushRequest holds the OCI push flags of create-bundle.
type pushRequest struct {
	enabled bool
	opts    oci.PushOptions
}

func pushRequestFromCmd(cmd *cli.Command) (*pushRequest, error) {
	req := &pushRequest{
		enabled: cmd.Bool("push"),
		opts: oci.PushOptions{
			Registry:    cmd.String("registry"),
			Repository:  cmd.String("repository"),
			Tag:         cmd.String("tag"),
			PlainHTTP:   cmd.Bool("plain-http"),
			InsecureTLS: cmd.Bool("insecure-tls"),
		},
	}
	if !req.enabled {
		return req, nil
	}
	if req.opts.Registry == "" {
		return nil, cerrors.New(cerrors.ErrCodeInvalidRequest, "--registry is required when --push is enabled")
	}
	if req.opts.Repository == "" {
		return nil, cerrors.New(cerrors.ErrCodeInvalidRequest, "--repository is required when --push is enabled")
	}
	if err := req.opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid OCI reference: %w", err)
	}
	return req, nil
}

// bundleConfigFromCmd maps create-bundle flags onto a bundle request.
func bundleConfigFromCmd(cmd *cli.Command) (*config.Config, error) {
	format, err := parseOutputFormat(cmd)
	if err != nil {
		return nil, err
	}

	svc, err := opsservice.ParseType(cmd.String("ops-service"))
	if err != nil {
		return nil, err
	}

	cfg := config.NewConfig(
		config.WithOpsService(svc),
		config.WithLogAgeSeconds(cmd.Int("log-age")),
		config.WithIncludeTraces(cmd.Bool("broker-traces")),
		config.WithBundleDir(cmd.String("bundle-dir")),
		config.WithKubeconfig(cmd.String("kubeconfig")),
		config.WithKubeContext(cmd.String("context")),
		config.WithNamespace(cmd.String("namespace")),
		config.WithCatalogPath(cmd.String("catalog")),
		config.WithWorkers(cmd.Int("workers")),
		config.WithAPIRateLimit(cmd.Float64("qps"), cmd.Int("burst")),
		config.WithTool(name, version),
		config.WithOutputFormat(format),
	)
	if err := cfg.Validate(); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeInvalidRequest, "invalid bundle request", err)
	}
	return cfg, nil
}

func createBundleCmd() *cli.Command {
	return &cli.Command{
		Name:                  "create-bundle",
		EnableShellCompletion: true,
		Usage:                 "Collect a diagnostic support bundle from the cluster",
		Description: `Collects custom resources, workload manifests, container logs and, optionally,
broker traces for the selected ops service and packages them into a zip archive
named support_bundle_<timestamp>_aio.zip.

# Archive Layout

  <namespace>/<service>/<kind>.<name>.yaml       Resource manifests
  <namespace>/<service>/pod.<pod>.<container>.log Container logs
  <namespace>/broker/traces/<trace id>.otlp.pb   Broker traces (--broker-traces)
  <namespace>/meta/bundle.yaml                   Run metadata and per-service summary
  <namespace>/meta/images.yaml                   Container image inventory

Services that are not deployed produce no folder. With --ops-service auto every
deployed service is collected together with the observability pipeline.

A summary of the run is written to --output in --format.

# Examples

Collect everything that is deployed:
  opsctl support create-bundle

Collect the broker with traces from the last hour:
  opsctl support create-bundle --ops-service broker --broker-traces --log-age 3600

Write the bundle elsewhere and push it to a registry:
  opsctl support create-bundle --bundle-dir /tmp/bundles \
    --push --registry ghcr.io --repository edgeops/bundles --tag incident-42`,
		Flags: []cli.Flag{
			opsServiceFlag(opsservice.TypeAuto),
			&cli.BoolFlag{
				Name:    "broker-traces",
				Aliases: []string{"mq-traces"},
				Usage:   "Include broker traces in the bundle",
			},
			&cli.StringFlag{
				Name:    "bundle-dir",
				Aliases: []string{"d"},
				Usage:   "Directory the archive is written to (default: current directory)",
			},
			&cli.IntFlag{
				Name:  "log-age",
				Value: int(config.DefaultLogAge.Seconds()),
				Usage: "Container log and trace age in seconds",
			},
			&cli.IntFlag{
				Name:  "workers",
				Value: config.DefaultWorkers,
				Usage: "Services collected concurrently",
			},
			&cli.Float64Flag{
				Name:  "qps",
				Value: discovery.DefaultQPS,
				Usage: "Kubernetes API requests per second",
			},
			&cli.IntFlag{
				Name:  "burst",
				Value: discovery.DefaultBurst,
				Usage: "Kubernetes API request burst",
			},
			contextFlag(),
			kubeconfigFlag(),
			namespaceFlag(),
			catalogFlag(),
			outputFlag(),
			formatFlag(),
			// OCI push flags
			&cli.BoolFlag{
				Name:  "push",
				Usage: "Push the archive as an OCI artifact to a registry",
			},
			&cli.StringFlag{
				Name:  "registry",
				Usage: "OCI registry host (e.g., ghcr.io, localhost:5000)",
			},
			&cli.StringFlag{
				Name:  "repository",
				Usage: "OCI repository path (e.g., edgeops/bundles)",
			},
			&cli.StringFlag{
				Name:  "tag",
				Usage: "OCI tag (default: latest)",
			},
			&cli.BoolFlag{
				Name:  "insecure-tls",
				Usage: "Skip TLS certificate verification for the OCI registry",
			},
			&cli.BoolFlag{
				Name:  "plain-http",
				Usage: "Use HTTP instead of HTTPS for the OCI registry (for local development)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			// Reject bad flag combinations before touching the cluster.
			push, err := pushRequestFromCmd(cmd)
			if err != nil {
				return err
			}
			cfg, err := bundleConfigFromCmd(cmd)
			if err != nil {
				return err
			}

			slog.Info("collecting support bundle",
				slog.String("opsService", cfg.OpsService().String()),
				slog.Int64("logAgeSeconds", cfg.LogAgeSeconds()),
				slog.Bool("brokerTraces", cfg.IncludeTraces()))

			out, makeErr := bundler.New(bundler.WithConfig(cfg)).Make(ctx)
			if out == nil || out.ArchivePath == "" {
				return makeErr
			}

			printBundleSummary(cmd, out)

			if err := writeOutput(ctx, cmd, cfg.OutputFormat(), cmd.String("output"), out); err != nil {
				return fmt.Errorf("failed to write bundle summary: %w", err)
			}

			if makeErr != nil {
				return makeErr
			}

			if push.enabled {
				return pushBundle(ctx, cmd, push.opts, out)
			}
			return nil
		},
	}
}

func pushBundle(ctx context.Context, cmd *cli.Command, opts oci.PushOptions, out *result.Output) error {
	opts.Annotations = map[string]string{
		oci.AnnotationRunID:     out.RunID,
		oci.AnnotationNamespace: out.Namespace,
	}
	res, err := oci.Push(ctx, out.ArchivePath, opts)
	if err != nil {
		return fmt.Errorf("failed to push OCI artifact to registry: %w", err)
	}

	slog.Info("OCI artifact pushed successfully",
		"reference", res.Reference,
		"digest", res.Digest,
	)
	fmt.Fprintf(cmd.Root().ErrWriter, "Pushed %s@%s\n", res.Reference, res.Digest)
	return nil
}

// printBundleSummary prints a human readable line to stderr so stdout stays
// parseable.
func printBundleSummary(cmd *cli.Command, out *result.Output) {
	w := cmd.Root().ErrWriter
	fmt.Fprintf(w, "%s\n", out.Summary())
	fmt.Fprintf(w, "Archive: %s\n", out.ArchivePath)
	for _, f := range out.FailedServices() {
		fmt.Fprintf(w, "  failed: %s\n", f)
	}
}
