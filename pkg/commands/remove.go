package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/harborworks/dockhand/pkg/interact"
)

// Remove returns the CLI command for removing a sandbox.
func Remove() *cli.Command {
	return &cli.Command{
		Name:    "remove",
		Aliases: []string{"rm"},
		Usage:   "Remove a sandbox",
		Flags: append(runtimeFlags(),
			&cli.BoolFlag{
				Name:    "volumes",
				Aliases: []string{"v"},
				Usage:   "Also remove the sandbox's anonymous volumes",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Auto-accept all confirmation prompts",
			},
		),
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "id",
				UsageText: "Sandbox id to remove",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Action: runRemove,
	}
}

func runRemove(ctx context.Context, c *cli.Command) error {
	id := c.StringArg("id")
	if id == "" {
		return fmt.Errorf("sandbox id is required")
	}

	r := c.Root().Reader
	p := interact.NewPrinter(c.Root().Writer)

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

	if !c.Bool("yes") {
		p.Warn(fmt.Sprintf("This removes sandbox %q (%s) and its container.", sb.Name, sb.ID))
		p.Prompt("Continue? [y/N] ")
		answer := promptYN(r)
		if answer != "y" && answer != "yes" {
			p.Println("Aborted.")
			return nil
		}
	}

	sp := interact.NewSpinner("Removing sandbox...")
	go sp.Start(ctx)
	err = client.Delete(ctx, sb.ID, c.Bool("volumes"))
	sp.Stop()
	if err != nil {
		return fmt.Errorf("failed to remove sandbox: %w", err)
	}

	p.Newline()
	p.Success(fmt.Sprintf("Sandbox %q removed", sb.Name))
	return nil
}
