package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/harborworks/dockhand/pkg/interact"
	"github.com/harborworks/dockhand/pkg/limits"
	"github.com/harborworks/dockhand/pkg/sandbox"
)

// Create returns the CLI command for creating a sandbox.
func Create() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create and start a sandbox",
		Flags: append(sandboxFlags(),
			&cli.StringFlag{
				Name:  "name",
				Usage: "Display name for the sandbox (defaults to the slug)",
			},
			&cli.StringFlag{
				Name:  "slug",
				Usage: "URL-friendly name routes are published under (generated if omitted)",
			},
			&cli.StringFlag{
				Name:    "tier",
				Usage:   fmt.Sprintf("Resource tier (%s)", strings.Join(limits.Tiers(), ", ")),
				Value:   limits.DefaultTier,
				Sources: cli.EnvVars("DOCKHAND_TIER"),
			},
			&cli.StringSliceFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   `Environment variables ("KEY=value", repeatable)`,
			},
			&cli.StringSliceFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   `Ports to publish on the host ("[host:]container[/protocol]", repeatable)`,
			},
			&cli.StringSliceFlag{
				Name:    "mount",
				Aliases: []string{"m"},
				Usage:   `Mounts ("source:target[:ro|rw]", repeatable; relative sources become named volumes)`,
			},
			&cli.StringSliceFlag{
				Name:    "label",
				Aliases: []string{"l"},
				Usage:   `Extra labels ("key=value", repeatable)`,
			},
			&cli.StringFlag{
				Name:    "workdir",
				Aliases: []string{"w"},
				Usage:   "Working directory inside the sandbox",
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "User the sandbox process runs as",
			},
			&cli.IntFlag{
				Name:  "app-port",
				Usage: "Container port of the app service for route generation",
			},
			&cli.IntFlag{
				Name:  "api-port",
				Usage: "Container port of the api service for route generation",
			},
			&cli.IntFlag{
				Name:  "editor-port",
				Usage: "Container port of the editor service for route generation",
			},
			&cli.IntFlag{
				Name:  "desktop-port",
				Usage: "Container port of the desktop service for route generation",
			},
			&cli.StringFlag{
				Name:  "cpus",
				Usage: `CPU limit override (e.g. "1.5")`,
			},
			&cli.StringFlag{
				Name:  "memory",
				Usage: `Memory limit override (e.g. "512m", "4g")`,
			},
			&cli.StringFlag{
				Name:  "memory-swap",
				Usage: "Memory+swap limit override",
			},
			&cli.StringFlag{
				Name:  "pids",
				Usage: "Process count limit override",
			},
			&cli.BoolFlag{
				Name:  "pull",
				Usage: "Pull the image before creating",
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "Wait until the sandbox reports running",
			},
		),
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "image",
				UsageText: "Container image to run",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Action: runCreate,
	}
}

func runCreate(ctx context.Context, c *cli.Command) error {
	image := c.StringArg("image")
	if image == "" {
		return fmt.Errorf("image is required")
	}

	p := interact.NewPrinter(c.Root().Writer)

	env, err := parseKeyValues(c.StringSlice("env"), "env")
	if err != nil {
		return err
	}
	labels, err := parseKeyValues(c.StringSlice("label"), "label")
	if err != nil {
		return err
	}

	var ports []sandbox.Port
	for _, s := range c.StringSlice("port") {
		port, err := sandbox.ParsePort(s)
		if err != nil {
			return err
		}
		ports = append(ports, port)
	}

	var mounts []sandbox.Mount
	for _, s := range c.StringSlice("mount") {
		mount, err := sandbox.ParseMount(s)
		if err != nil {
			return err
		}
		mounts = append(mounts, mount)
	}

	client, err := newClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	if c.Bool("pull") {
		if err := pullWithProgress(ctx, client, image); err != nil {
			return err
		}
	}

	cfg := sandbox.Config{
		Slug:    c.String("slug"),
		Name:    c.String("name"),
		Image:   image,
		Env:     env,
		Command: c.Args().Slice(),
		WorkDir: c.String("workdir"),
		User:    c.String("user"),
		Mounts:  mounts,
		Ports:   ports,
		Labels:  labels,
		Tier:    c.String("tier"),
		Resources: limits.Resources{
			CPUs:       c.String("cpus"),
			Memory:     c.String("memory"),
			MemorySwap: c.String("memory-swap"),
			PIDs:       c.String("pids"),
		},
		Services: sandbox.Services{
			App:     c.Int("app-port"),
			API:     c.Int("api-port"),
			Editor:  c.Int("editor-port"),
			Desktop: c.Int("desktop-port"),
		},
	}

	sp := interact.NewSpinner("Creating sandbox...")
	go sp.Start(ctx)

	sb, err := client.Create(ctx, cfg)
	sp.Stop()
	if err != nil {
		return fmt.Errorf("failed to create sandbox: %w", err)
	}

	if c.Bool("wait") {
		sp = interact.NewSpinner("Waiting for sandbox to come up...")
		go sp.Start(ctx)
		waitCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		err = sandbox.WaitForStatus(waitCtx, client, sb.ID, sandbox.StatusRunning, time.Second)
		cancel()
		sp.Stop()
		if err != nil {
			return fmt.Errorf("sandbox %s did not reach running: %w", sb.ID, err)
		}
		if sb, err = client.Get(ctx, sb.ID); err != nil || sb == nil {
			return fmt.Errorf("failed to read back sandbox: %w", err)
		}
	}

	p.Newline()
	p.Success(fmt.Sprintf("Sandbox %q created", sb.Name))
	p.Newline()
	p.KeyValue("ID", sb.ID)
	p.KeyValue("Name", sb.Name)
	p.KeyValue("Slug", sb.Slug)
	p.KeyValue("Image", sb.Image)
	p.KeyValue("Tier", sb.Tier)
	p.KeyValue("Status", string(sb.Status))
	for _, svc := range sortedKeys(sb.URLs) {
		p.KeyValue("URL", fmt.Sprintf("%s (%s)", sb.URLs[svc], svc))
	}
	p.Newline()
	return nil
}

// pullWithProgress pulls an image while feeding layer progress into the
// spinner message.
func pullWithProgress(ctx context.Context, puller sandbox.Orchestrator, ref string) error {
	sp := interact.NewSpinner(fmt.Sprintf("Pulling %s...", ref))
	go sp.Start(ctx)
	defer sp.Stop()

	err := puller.PullImage(ctx, ref, func(status string, current, total int64) {
		if total > 0 {
			sp.SetMessage(fmt.Sprintf("Pulling %s: %s (%d%%)", ref, status, current*100/total))
			return
		}
		sp.SetMessage(fmt.Sprintf("Pulling %s: %s", ref, status))
	})
	if err != nil {
		return err
	}
	return nil
}

func parseKeyValues(pairs []string, what string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid %s %q, want key=value", what, pair)
		}
		out[key] = value
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
