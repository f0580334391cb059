package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/tasklet/internal/app"
)

func (r *runner) gatewayCommand() *cli.Command {
	return &cli.Command{
		Name:  "gateway",
		Usage: "serve the task collection locally with the credential attached",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gateway--host",
				Usage: "gateway listen host",
				Value: app.DefaultConfigGatewayHost,
			},
			&cli.IntFlag{
				Name:  "gateway--port",
				Usage: "gateway listen port",
				Value: int(app.DefaultConfigGatewayPort),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, flush, err := r.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer flush()

			slog.InfoContext(ctx, "starting")

			if err := a.Serve(ctx); err != nil {
				return fmt.Errorf("gateway failed: %w", err)
			}

			slog.InfoContext(ctx, "stopped gracefully")
			return nil
		},
	}
}
