package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docker/go-units"
	"github.com/urfave/cli/v3"

	"github.com/harborworks/dockhand/pkg/interact"
	"github.com/harborworks/dockhand/pkg/sandbox"
)

// Get returns the CLI command for inspecting a single sandbox.
func Get() *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "Show details of a sandbox",
		Flags: append(runtimeFlags(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the sandbox as JSON",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Include a live resource usage snapshot",
			},
		),
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "id",
				UsageText: "Sandbox id to inspect",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Action: runGet,
	}
}

func runGet(ctx context.Context, c *cli.Command) error {
	id := c.StringArg("id")
	if id == "" {
		return fmt.Errorf("sandbox id is required")
	}

	client, err := newClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	sb, err := client.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to inspect sandbox: %w", err)
	}
	if sb == nil {
		return fmt.Errorf("no sandbox %q found", id)
	}

	if c.Bool("stats") && sb.Status == sandbox.StatusRunning {
		st, err := client.Stats(ctx, sb.ID)
		if err != nil {
			return fmt.Errorf("failed to read sandbox stats: %w", err)
		}
		sb.Stats = st
	}

	w := c.Root().Writer
	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sb)
	}

	p := interact.NewPrinter(w)
	p.Newline()
	p.KeyValue("ID", sb.ID)
	p.KeyValue("Name", sb.Name)
	p.KeyValue("Slug", sb.Slug)
	p.KeyValue("Container", shortID(sb.ContainerID))
	p.KeyValue("Image", sb.Image)
	p.KeyValue("Tier", sb.Tier)
	p.KeyValue("Status", string(sb.Status))
	if sb.Health != "" {
		p.KeyValue("Health", sb.Health)
	}
	p.KeyValue("Age", humanAge(sb.CreatedAt))
	if !sb.StartedAt.IsZero() {
		p.KeyValue("Started", humanAge(sb.StartedAt)+" ago")
	}
	if sb.Status == sandbox.StatusStopped && sb.ExitCode != 0 {
		p.KeyValue("Exit code", fmt.Sprintf("%d", sb.ExitCode))
	}
	for _, svc := range sortedKeys(sb.URLs) {
		p.KeyValue("URL", fmt.Sprintf("%s (%s)", sb.URLs[svc], svc))
	}
	for _, key := range sortedKeys(sb.Labels) {
		p.KeyValue("Label", key+"="+sb.Labels[key])
	}
	if sb.Stats != nil {
		memory := units.BytesSize(float64(sb.Stats.MemoryUsage))
		if sb.Stats.MemoryLimit > 0 {
			memory += " / " + units.BytesSize(float64(sb.Stats.MemoryLimit))
		} else {
			memory += " / unlimited"
		}
		p.KeyValue("CPU", fmt.Sprintf("%.2f%%", sb.Stats.CPUPercent))
		p.KeyValue("Memory", memory)
		p.KeyValue("PIDs", fmt.Sprintf("%d", sb.Stats.PIDs))
	}
	p.Newline()
	return nil
}
