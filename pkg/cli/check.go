package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/edgeops/opsctl/pkg/checks"
	"github.com/edgeops/opsctl/pkg/discovery"
	cerrors "github.com/edgeops/opsctl/pkg/errors"
	"github.com/edgeops/opsctl/pkg/k8s/client"
	"github.com/edgeops/opsctl/pkg/opsservice"
	"github.com/edgeops/opsctl/pkg/serializer"
)

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:                  "check",
		EnableShellCompletion: true,
		Usage:                 "Evaluate cluster readiness and ops service health",
		Description: `Runs pre-deployment checks (Kubernetes version, node readiness) and
post-deployment checks (APIs served, custom resources present, pods running)
for an ops service.

Without --pre or --post, post-deployment checks always run and pre-deployment
checks run only when the orchestration controller API is not yet deployed.
Passing only one of the flags runs only that phase.

# Examples

  opsctl check
  opsctl check --pre
  opsctl check --post --ops-service auto --format json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "pre",
				Usage: "Run pre-deployment checks",
			},
			&cli.BoolFlag{
				Name:  "post",
				Usage: "Run post-deployment checks",
			},
			opsServiceFlag(opsservice.TypeBroker),
			&cli.StringFlag{
				Name:  "min-k8s-version",
				Value: checks.DefaultMinKubernetesVersion,
				Usage: "Minimum supported Kubernetes server version",
			},
			&cli.BoolFlag{
				Name:  "fail-on-error",
				Usage: "Exit non-zero when any check fails",
			},
			contextFlag(),
			kubeconfigFlag(),
			namespaceFlag(),
			catalogFlag(),
			outputFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"t"},
				Value:   string(serializer.FormatTable),
				Usage:   "Output format (json, yaml, table)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}
			svc, err := opsservice.ParseType(cmd.String("ops-service"))
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cmd.String("catalog"))
			if err != nil {
				return cerrors.Wrap(cerrors.ErrCodeInvalidRequest, "failed to load service catalog", err)
			}

			clients, err := client.Build(cmd.String("kubeconfig"), cmd.String("context"))
			if err != nil {
				return cerrors.Wrap(cerrors.ErrCodeNoClusterContext, "failed to connect to the cluster", err)
			}

			runPre, runPost, err := checks.ResolvePhases(ctx, flagPtr(cmd, "pre"), flagPtr(cmd, "post"),
				func(ctx context.Context) (bool, error) {
					api, ok := cat.ControllerAPI()
					if !ok {
						return false, nil
					}
					return discovery.IsDeployed(ctx, clients.Discovery, api.GroupVersion())
				})
			if err != nil {
				return cerrors.Wrap(cerrors.ErrCodeNoClusterContext, "failed to probe deployment state", err)
			}

			slog.Debug("running checks",
				slog.Bool("pre", runPre),
				slog.Bool("post", runPost),
				slog.String("opsService", svc.String()))

			checker := checks.New(
				checks.WithVersion(version),
				checks.WithClients(clients),
				checks.WithCatalog(cat),
				checks.WithMinKubernetesVersion(cmd.String("min-k8s-version")),
			)
			res, err := checker.Run(ctx, checks.Request{
				OpsService:     svc,
				Namespace:      cmd.String("namespace"),
				PreDeployment:  runPre,
				PostDeployment: runPost,
			})
			if err != nil {
				return fmt.Errorf("failed to run checks: %w", err)
			}

			if err := writeCheckResult(ctx, cmd, format, res); err != nil {
				return err
			}

			if cmd.Bool("fail-on-error") && res.HasFailures() {
				return fmt.Errorf("%d of %d checks failed", res.Summary.Failed, res.Summary.Total)
			}
			return nil
		},
	}
}

// flagPtr returns nil when a bool flag was not given on the command line.
func flagPtr(cmd *cli.Command, name string) *bool {
	if !cmd.IsSet(name) {
		return nil
	}
	v := cmd.Bool(name)
	return &v
}

func writeCheckResult(ctx context.Context, cmd *cli.Command, format serializer.Format, res *checks.Result) error {
	path := cmd.String("output")
	if format != serializer.FormatTable {
		return writeOutput(ctx, cmd, format, path, res)
	}
	if path == "" || path == serializer.StdoutURI {
		return checks.WriteTable(cmd.Root().Writer, res)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	if err := checks.WriteTable(f, res); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
