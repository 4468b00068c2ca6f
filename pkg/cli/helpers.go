package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/edgeops/opsctl/pkg/k8s/client"
	"github.com/edgeops/opsctl/pkg/opsservice"
	"github.com/edgeops/opsctl/pkg/serializer"
)

// Shared flags are built per command; urfave flags keep parse state.
func outputFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output file path, '-' for stdout, or a ConfigMap URI (cm://namespace/name)",
	}
}

func formatFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Value:   string(serializer.FormatYAML),
		Usage:   fmt.Sprintf("Output format (%s)", strings.Join(serializer.SupportedFormats(), ", ")),
	}
}

func kubeconfigFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "kubeconfig",
		Usage:   "Path to the kubeconfig file (default: $KUBECONFIG, ~/.kube/config, then in-cluster)",
		Sources: cli.EnvVars("KUBECONFIG"),
	}
}

func contextFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "context",
		Usage:   "Kubeconfig context to use (default: current context)",
		Sources: cli.EnvVars("OPSCTL_CONTEXT"),
	}
}

func namespaceFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "namespace",
		Aliases: []string{"n"},
		Usage:   "Platform namespace (default: detected from the cluster)",
	}
}

func catalogFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "catalog",
		Usage:   "Service catalog file overriding the built-in catalog",
		Sources: cli.EnvVars("OPSCTL_CATALOG"),
	}
}

func opsServiceFlag(def opsservice.Type) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "ops-service",
		Aliases: []string{"svc"},
		Value:   def.String(),
		Usage:   fmt.Sprintf("Ops service to target (%s)", strings.Join(opsservice.SupportedAsStrings(), ", ")),
	}
}

// parseOutputFormat extracts and validates the output format from CLI flags.
// Returns the validated format or an error if the format is unknown.
func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	outFormat := serializer.Format(cmd.String("format"))
	if outFormat.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q, valid formats are: %s",
			outFormat, strings.Join(serializer.SupportedFormats(), ", "))
	}
	return outFormat, nil
}

// loadCatalog returns the catalog from path, or the built-in one.
func loadCatalog(path string) (*opsservice.Catalog, error) {
	if path == "" {
		return opsservice.Default()
	}
	return opsservice.Load(path)
}

// writeOutput serializes data to the --output destination. ConfigMap
// destinations use the cluster selected by --kubeconfig and --context when
// the command defines them.
func writeOutput(ctx context.Context, cmd *cli.Command, format serializer.Format, path string, data any) error {
	ser, err := serializer.NewFileWriterOrStdout(format, path)
	if err != nil {
		return err
	}
	if c, ok := ser.(serializer.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				slog.Warn("failed to close serializer", "error", err)
			}
		}()
	}

	if cm, ok := ser.(*serializer.ConfigMapWriter); ok {
		clients, err := client.Build(cmd.String("kubeconfig"), cmd.String("context"))
		if err != nil {
			return fmt.Errorf("failed to build kubernetes clients: %w", err)
		}
		cm.WithClient(clients.Kube)
	}

	return ser.Serialize(ctx, data)
}
