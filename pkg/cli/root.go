package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/edgeops/opsctl/pkg/logging"
)

const (
	name           = "opsctl"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags to reflect actual version info
	// e.g., -X "github.com/edgeops/opsctl/pkg/cli.version=1.0.0"
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitCanceled = 2
)

// Execute runs the root command with os.Args and exits the process.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().Run(ctx, os.Args)
	stop()

	code := exitCode(err)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return exitCanceled
	default:
		return exitError
	}
}

func newRootCmd() *cli.Command {
	return &cli.Command{
		Name:                  name,
		Usage:                 "Edge operations platform tooling: support bundles, health checks and the bundle agent",
		Version:               fmt.Sprintf("%s (commit: %s, date: %s)", version, commit, date),
		EnableShellCompletion: true,
		ShellComplete:         commandLister,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("OPSCTL_DEBUG"),
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "Output logs in JSON format",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("log-json") {
				level := logging.ParseLevel(os.Getenv(logging.EnvLogLevel))
				if cmd.Bool("debug") {
					level = slog.LevelDebug
				}
				slog.SetDefault(logging.NewLogger(os.Stderr, name, version, level, true))
				return ctx, nil
			}
			logging.SetDefaultCLILogger(name, version, cmd.Bool("debug"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			supportCmd(),
			checkCmd(),
			serveCmd(),
			versionCmd(),
		},
	}
}

// commandLister prints the visible subcommands for shell completion.
func commandLister(_ context.Context, cmd *cli.Command) {
	if cmd == nil {
		return
	}
	w := cmd.Root().Writer
	if w == nil {
		w = os.Stdout
	}
	for _, c := range cmd.Commands {
		if c.Hidden {
			continue
		}
		fmt.Fprintln(w, c.Name)
	}
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Flags: []cli.Flag{formatFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}
			info := struct {
				Name    string `json:"name" yaml:"name"`
				Version string `json:"version" yaml:"version"`
				Commit  string `json:"commit" yaml:"commit"`
				Date    string `json:"date" yaml:"date"`
			}{name, version, commit, date}
			return writeOutput(ctx, cmd, format, "", info)
		},
	}
}
