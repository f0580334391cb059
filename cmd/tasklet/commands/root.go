package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/tasklet/internal/app"
	"github.com/florianilch/tasklet/internal/exitcode"
	"github.com/florianilch/tasklet/internal/observability"
)

// Streams holds the standard streams a command reads from and writes to.
type Streams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer

	// Environ supplies the environment for config loading. Defaults to os.Environ.
	Environ func() []string
}

// Execute runs the root command and returns the process exit code.
// Errors are printed to s.ErrOut.
func Execute(ctx context.Context, args []string, s Streams) int {
	if s.Environ == nil {
		s.Environ = os.Environ
	}
	r := &runner{Streams: s}

	cmd := &cli.Command{
		Name:      "tasklet",
		Usage:     "Command-line client and local gateway for a remote task list",
		Writer:    s.Out,
		ErrWriter: s.ErrOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "api--base-url",
				Usage: "task service base URL, e.g. https://todo.example.com",
			},
			&cli.StringFlag{
				Name:  "api--username",
				Usage: "account username",
			},
		},
		Commands: []*cli.Command{
			r.listCommand(),
			r.showCommand(),
			r.addCommand(),
			r.editCommand(),
			r.toggleCommand(),
			r.rmCommand(),
			r.gatewayCommand(),
			r.loginCommand(),
		},
		// Exit codes are decided below, never by the cli package
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}

	err := cmd.Run(ctx, args)
	if err == nil {
		return exitcode.Success
	}

	fmt.Fprintf(s.ErrOut, "error: %v\n", err)
	return exitcode.For(err)
}

// runner carries the streams into command actions.
type runner struct {
	Streams
}

// setup loads configuration, installs logging and builds the application.
// The returned function flushes log exporters.
func (r *runner) setup(ctx context.Context, cmd *cli.Command) (*app.App, func(), error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, r.Environ)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	shutdown, err := observability.Instrument(ctx, observability.Options{
		Level:    cfg.LogLevel,
		Format:   string(cfg.LogFormat),
		Exporter: cfg.Log.Exporter,
		Endpoint: cfg.Log.Endpoint,
		Writer:   r.ErrOut,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}
	flush := func() {
		// Flushing must outlive a cancelled command context
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			fmt.Fprintf(r.ErrOut, "warning: flushing logs: %v\n", err)
		}
	}

	application, err := app.New(cfg)
	if err != nil {
		flush()
		return nil, nil, fmt.Errorf("failed to create app: %w", err)
	}

	return application, flush, nil
}

// usageError reports invalid arguments; it maps to exitcode.UserError.
func usageError(cmd *cli.Command, format string, args ...any) error {
	return fmt.Errorf("%s: %s (usage: %s %s)", cmd.Name, fmt.Sprintf(format, args...), cmd.FullName(), cmd.ArgsUsage)
}

var errNoContent = errors.New("service returned no task")
