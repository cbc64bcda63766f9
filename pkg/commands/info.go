package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/docker/go-units"
	"github.com/urfave/cli/v3"

	"github.com/harborworks/dockhand/pkg/interact"
)

// Info returns the CLI command for showing runtime and orchestrator info.
func Info() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show container runtime information",
		Flags: append(runtimeFlags(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the info as JSON",
			},
		),
		Action: runInfo,
	}
}

func runInfo(ctx context.Context, c *cli.Command) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("runtime is not reachable: %w", err)
	}

	info, err := client.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to read runtime info: %w", err)
	}

	w := c.Root().Writer
	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	p := interact.NewPrinter(w)
	p.Newline()
	p.KeyValue("Version", Version)
	p.KeyValue("Go", runtime.Version())
	p.KeyValue("Runtime", info.Name)
	p.KeyValue("Server", info.ServerVersion)
	p.KeyValue("API", info.APIVersion)
	p.KeyValue("OS/Arch", info.OS+"/"+info.Architecture)
	p.KeyValue("CPUs", fmt.Sprintf("%d", info.CPUs))
	p.KeyValue("Memory", units.BytesSize(float64(info.Memory)))
	p.KeyValue("Containers", fmt.Sprintf("%d (%d running)", info.Containers, info.ContainersRunning))
	p.KeyValue("Images", fmt.Sprintf("%d", info.Images))
	p.Newline()
	return nil
}
