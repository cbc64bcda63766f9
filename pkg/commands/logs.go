package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/harborworks/dockhand/pkg/demux"
	"github.com/harborworks/dockhand/pkg/sandbox"
)

// Logs returns the CLI command for fetching or following sandbox logs.
func Logs() *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "Fetch sandbox logs",
		Flags: append(runtimeFlags(),
			&cli.BoolFlag{
				Name:    "follow",
				Aliases: []string{"f"},
				Usage:   "Stream new log lines until interrupted",
			},
			&cli.IntFlag{
				Name:    "tail",
				Aliases: []string{"n"},
				Usage:   "Only show the last N lines",
			},
			&cli.DurationFlag{
				Name:  "since",
				Usage: `Only show lines newer than the given age (e.g. "10m", "1h")`,
			},
			&cli.BoolFlag{
				Name:    "timestamps",
				Aliases: []string{"t"},
				Usage:   "Prefix every line with its timestamp",
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
		Action: runLogs,
	}
}

func runLogs(ctx context.Context, c *cli.Command) error {
	id := c.StringArg("id")
	if id == "" {
		return fmt.Errorf("sandbox id is required")
	}

	client, err := newClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	opts := sandbox.LogOptions{
		Tail:       c.Int("tail"),
		Timestamps: c.Bool("timestamps"),
	}
	if since := c.Duration("since"); since > 0 {
		opts.Since = time.Now().Add(-since)
	}

	if !c.Bool("follow") {
		out, err := client.Logs(ctx, id, opts)
		if err != nil {
			return fmt.Errorf("failed to fetch logs: %w", err)
		}
		fmt.Fprint(c.Root().Writer, out)
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = client.StreamLogs(ctx, id, opts, func(kind demux.Kind, text string) {
		w := io.Writer(os.Stdout)
		if kind == demux.Stderr {
			w = os.Stderr
		}
		io.WriteString(w, text)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to stream logs: %w", err)
	}
	return nil
}
