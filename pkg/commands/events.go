package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
)

// Events returns the CLI command for streaming sandbox lifecycle events.
func Events() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Stream sandbox lifecycle events until interrupted",
		Flags: append(runtimeFlags(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print events as JSON",
			},
		),
		Action: runEvents,
	}
}

func runEvents(ctx context.Context, c *cli.Command) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events, err := client.WatchEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch events: %w", err)
	}

	w := c.Root().Writer
	asJSON := c.Bool("json")
	for ev := range events {
		if asJSON {
			if err := json.NewEncoder(w).Encode(ev); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(w, "%s %-28s %-10s %s\n",
			ev.Time.Format(time.RFC3339), ev.SandboxID, ev.Status, ev.Action)
	}
	return nil
}
