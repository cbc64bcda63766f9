package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/harborworks/dockhand/pkg/engine"
	"github.com/harborworks/dockhand/pkg/interact"
)

// Start returns the CLI command for starting a stopped sandbox.
func Start() *cli.Command {
	return lifecycleCommand("start", "Start a stopped sandbox", "Starting", "started", func(ctx context.Context, client *engine.Client, id string, _ time.Duration) error {
		return client.Start(ctx, id)
	})
}

// Stop returns the CLI command for stopping a running sandbox.
func Stop() *cli.Command {
	return lifecycleCommand("stop", "Stop a running sandbox", "Stopping", "stopped", func(ctx context.Context, client *engine.Client, id string, timeout time.Duration) error {
		return client.Stop(ctx, id, timeout)
	})
}

// Restart returns the CLI command for restarting a sandbox.
func Restart() *cli.Command {
	return lifecycleCommand("restart", "Restart a sandbox", "Restarting", "restarted", func(ctx context.Context, client *engine.Client, id string, timeout time.Duration) error {
		return client.Restart(ctx, id, timeout)
	})
}

// Pause returns the CLI command for freezing a running sandbox.
func Pause() *cli.Command {
	return lifecycleCommand("pause", "Freeze all processes in a running sandbox", "Pausing", "paused", func(ctx context.Context, client *engine.Client, id string, _ time.Duration) error {
		return client.Pause(ctx, id)
	})
}

// Unpause returns the CLI command for thawing a paused sandbox.
func Unpause() *cli.Command {
	return lifecycleCommand("unpause", "Resume a paused sandbox", "Resuming", "resumed", func(ctx context.Context, client *engine.Client, id string, _ time.Duration) error {
		return client.Unpause(ctx, id)
	})
}

// lifecycleCommand builds one state-change verb. Every verb carries a
// --timeout flag; ops that have no grace period ignore it.
func lifecycleCommand(name, usage, doing, done string, op func(ctx context.Context, client *engine.Client, id string, timeout time.Duration) error) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: append(runtimeFlags(),
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "Grace period before the runtime kills the process",
			},
		),
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "id",
				UsageText: "Sandbox id",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			id := c.StringArg("id")
			if id == "" {
				return fmt.Errorf("sandbox id is required")
			}

			client, err := newClient(c)
			if err != nil {
				return err
			}
			defer client.Close()

			sp := interact.NewSpinner(fmt.Sprintf("%s %s...", doing, id))
			go sp.Start(ctx)
			err = op(ctx, client, id, c.Duration("timeout"))
			sp.Stop()
			if err != nil {
				return fmt.Errorf("failed to %s sandbox: %w", name, err)
			}

			p := interact.NewPrinter(c.Root().Writer)
			p.Success(fmt.Sprintf("Sandbox %s %s", id, done))
			return nil
		},
	}
}
