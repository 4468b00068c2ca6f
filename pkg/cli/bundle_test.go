package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	cerrors "github.com/edgeops/opsctl/pkg/errors"
	"github.com/edgeops/opsctl/pkg/opsservice"
	"github.com/edgeops/opsctl/pkg/serializer"
)

// runCreateBundle parses args with the create-bundle flags and hands the
// parsed command to fn instead of collecting.
func runCreateBundle(t *testing.T, args []string, fn func(cmd *cli.Command) error) error {
	t.Helper()
	cmd := createBundleCmd()
	cmd.Action = func(_ context.Context, cmd *cli.Command) error {
		return fn(cmd)
	}
	return cmd.Run(context.Background(), append([]string{"create-bundle"}, args...))
}

func TestPushRequestFromCmd(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		enabled bool
		wantErr string
	}{
		{
			name: "push disabled ignores registry flags",
			args: []string{"--registry", "ghcr.io"},
		},
		{
			name:    "push requires registry",
			args:    []string{"--push", "--repository", "edgeops/bundles"},
			wantErr: "--registry is required",
		},
		{
			name:    "push requires repository",
			args:    []string{"--push", "--registry", "ghcr.io"},
			wantErr: "--repository is required",
		},
		{
			name:    "invalid repository",
			args:    []string{"--push", "--registry", "ghcr.io", "--repository", "Bad Repo"},
			wantErr: "invalid OCI reference",
		},
		{
			name:    "valid push",
			args:    []string{"--push", "--registry", "localhost:5000", "--repository", "bundles", "--tag", "incident-42", "--plain-http"},
			enabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *pushRequest
			err := runCreateBundle(t, tt.args, func(cmd *cli.Command) error {
				var err error
				got, err = pushRequestFromCmd(cmd)
				return err
			})

			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("expected error but got nil")
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want error containing %q", err, tt.wantErr)
				}
				if !cerrors.IsCode(err, cerrors.ErrCodeInvalidRequest) {
					t.Errorf("error code = %q, want %q", cerrors.CodeOf(err), cerrors.ErrCodeInvalidRequest)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.enabled != tt.enabled {
				t.Errorf("enabled = %v, want %v", got.enabled, tt.enabled)
			}
			if tt.enabled && !got.opts.PlainHTTP {
				t.Error("PlainHTTP should be true")
			}
		})
	}
}

func TestBundleConfigFromCmd_Defaults(t *testing.T) {
	err := runCreateBundle(t, nil, func(cmd *cli.Command) error {
		cfg, err := bundleConfigFromCmd(cmd)
		if err != nil {
			return err
		}
		if cfg.OpsService() != opsservice.TypeAuto {
			t.Errorf("OpsService = %v, want auto", cfg.OpsService())
		}
		if cfg.LogAge() != 24*time.Hour {
			t.Errorf("LogAge = %v, want 24h", cfg.LogAge())
		}
		if cfg.IncludeTraces() {
			t.Error("IncludeTraces should default to false")
		}
		if cfg.OutputFormat() != serializer.FormatYAML {
			t.Errorf("OutputFormat = %v, want yaml", cfg.OutputFormat())
		}
		if cfg.ToolName() != name {
			t.Errorf("ToolName = %v, want %v", cfg.ToolName(), name)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBundleConfigFromCmd_Flags(t *testing.T) {
	args := []string{
		"--ops-service", "broker",
		"--mq-traces",
		"--log-age", "600",
		"--bundle-dir", "/tmp/bundles",
		"--context", "edge",
		"-n", "edge-ops",
		"--workers", "2",
		"--format", "json",
	}
	err := runCreateBundle(t, args, func(cmd *cli.Command) error {
		cfg, err := bundleConfigFromCmd(cmd)
		if err != nil {
			return err
		}
		if cfg.OpsService() != opsservice.TypeBroker {
			t.Errorf("OpsService = %v, want broker", cfg.OpsService())
		}
		if !cfg.IncludeTraces() {
			t.Error("IncludeTraces should be true")
		}
		if cfg.LogAgeSeconds() != 600 {
			t.Errorf("LogAgeSeconds = %d, want 600", cfg.LogAgeSeconds())
		}
		if cfg.BundleDir() != "/tmp/bundles" {
			t.Errorf("BundleDir = %q", cfg.BundleDir())
		}
		if cfg.KubeContext() != "edge" {
			t.Errorf("KubeContext = %q", cfg.KubeContext())
		}
		if cfg.Namespace() != "edge-ops" {
			t.Errorf("Namespace = %q", cfg.Namespace())
		}
		if cfg.Workers() != 2 {
			t.Errorf("Workers = %d", cfg.Workers())
		}
		if cfg.OutputFormat() != serializer.FormatJSON {
			t.Errorf("OutputFormat = %v", cfg.OutputFormat())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBundleConfigFromCmd_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown service suggests", []string{"--ops-service", "brokr"}, `did you mean "broker"`},
		{"unknown format", []string{"--format", "xml"}, "unknown output format"},
		{"zero workers", []string{"--workers", "0"}, "invalid bundle request"},
		{"zero log age", []string{"--log-age", "0"}, "invalid bundle request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runCreateBundle(t, tt.args, func(cmd *cli.Command) error {
				_, err := bundleConfigFromCmd(cmd)
				return err
			})
			if err == nil {
				t.Fatal("expected error but got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
