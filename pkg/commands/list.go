package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/harborworks/dockhand/pkg/interact"
	"github.com/harborworks/dockhand/pkg/sandbox"
)

// List returns the CLI command for listing sandboxes.
func List() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List sandboxes",
		Flags: append(runtimeFlags(),
			&cli.StringFlag{
				Name:    "status",
				Aliases: []string{"s"},
				Usage:   "Keep only sandboxes in the given status",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Keep only sandboxes whose name or slug contains the given text",
			},
			&cli.StringSliceFlag{
				Name:    "label",
				Aliases: []string{"l"},
				Usage:   `Keep only sandboxes carrying the label ("key" or "key=value", repeatable)`,
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Print sandbox ids only",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the raw listing as JSON",
			},
		),
		Action: runList,
	}
}

func runList(ctx context.Context, c *cli.Command) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	filter := sandbox.Filter{
		Status: sandbox.Status(c.String("status")),
		Name:   c.String("name"),
	}
	if labels := c.StringSlice("label"); len(labels) > 0 {
		filter.Labels = make(map[string]string, len(labels))
		for _, l := range labels {
			key, value, _ := cutKeyValue(l)
			filter.Labels[key] = value
		}
	}

	sandboxes, err := client.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list sandboxes: %w", err)
	}

	w := c.Root().Writer
	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sandboxes)
	}

	if c.Bool("quiet") {
		for _, sb := range sandboxes {
			fmt.Fprintln(w, sb.ID)
		}
		return nil
	}

	p := interact.NewPrinter(w)
	if len(sandboxes) == 0 {
		p.Muted("No sandboxes")
		return nil
	}

	p.Println(fmt.Sprintf("%-28s %-20s %-10s %-8s %-5s %s", "ID", "NAME", "STATUS", "TIER", "AGE", "IMAGE"))
	for _, sb := range sandboxes {
		p.Println(fmt.Sprintf("%-28s %-20s %-10s %-8s %-5s %s",
			sb.ID, truncate(sb.Name, 20), sb.Status, sb.Tier, humanAge(sb.CreatedAt), sb.Image))
	}
	return nil
}

func cutKeyValue(s string) (key, value string, hasValue bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
