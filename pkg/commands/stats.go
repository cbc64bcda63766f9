package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/docker/go-units"
	"github.com/urfave/cli/v3"

	"github.com/harborworks/dockhand/pkg/sandbox"
)

// Stats returns the CLI command for sampling sandbox resource usage.
func Stats() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show a sandbox's resource usage",
		Flags: append(runtimeFlags(),
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Keep sampling until interrupted",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Sampling interval in watch mode",
				Value: 2 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print samples as JSON",
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
		Action: runStats,
	}
}

func runStats(ctx context.Context, c *cli.Command) error {
	id := c.StringArg("id")
	if id == "" {
		return fmt.Errorf("sandbox id is required")
	}

	client, err := newClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	w := c.Root().Writer
	asJSON := c.Bool("json")

	sample := func() error {
		stats, err := client.Stats(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to read stats: %w", err)
		}
		if asJSON {
			return json.NewEncoder(w).Encode(stats)
		}
		printStatsRow(w, stats)
		return nil
	}

	if !c.Bool("watch") {
		printStatsHeader(w, asJSON)
		return sample()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printStatsHeader(w, asJSON)
	if err := sample(); err != nil {
		return err
	}

	ticker := time.NewTicker(c.Duration("interval"))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := sample(); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}

func printStatsHeader(w io.Writer, asJSON bool) {
	if asJSON {
		return
	}
	fmt.Fprintf(w, "%-8s %-20s %-8s %-22s %-22s %s\n",
		"CPU %", "MEM USAGE / LIMIT", "MEM %", "NET I/O", "BLOCK I/O", "PIDS")
}

func printStatsRow(w io.Writer, s *sandbox.Stats) {
	memory := units.BytesSize(float64(s.MemoryUsage))
	if s.MemoryLimit > 0 {
		memory += " / " + units.BytesSize(float64(s.MemoryLimit))
	} else {
		memory += " / unlimited"
	}
	fmt.Fprintf(w, "%-8s %-20s %-8s %-22s %-22s %d\n",
		fmt.Sprintf("%.2f%%", s.CPUPercent),
		memory,
		fmt.Sprintf("%.2f%%", s.MemoryPercent),
		units.HumanSize(float64(s.NetworkRx))+" / "+units.HumanSize(float64(s.NetworkTx)),
		units.HumanSize(float64(s.BlockRead))+" / "+units.HumanSize(float64(s.BlockWrite)),
		s.PIDs,
	)
}
