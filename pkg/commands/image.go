package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docker/go-units"
	"github.com/urfave/cli/v3"

	"github.com/harborworks/dockhand/pkg/interact"
)

// Images returns the CLI command group for managing sandbox images.
func Images() *cli.Command {
	return &cli.Command{
		Name:  "images",
		Usage: "Manage sandbox images",
		Commands: []*cli.Command{
			imagesPull(),
			imagesList(),
			imagesRemove(),
		},
	}
}

func imagesPull() *cli.Command {
	return &cli.Command{
		Name:  "pull",
		Usage: "Pull an image from its registry",
		Flags: runtimeFlags(),
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "ref",
				UsageText: "Image reference to pull",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ref := c.StringArg("ref")
			if ref == "" {
				return fmt.Errorf("image reference is required")
			}

			client, err := newClient(c)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := pullWithProgress(ctx, client, ref); err != nil {
				return fmt.Errorf("failed to pull image: %w", err)
			}

			p := interact.NewPrinter(c.Root().Writer)
			p.Success(fmt.Sprintf("Image %s pulled", ref))
			return nil
		},
	}
}

func imagesList() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List local images",
		Flags: append(runtimeFlags(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the raw listing as JSON",
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			client, err := newClient(c)
			if err != nil {
				return err
			}
			defer client.Close()

			images, err := client.ListImages(ctx)
			if err != nil {
				return fmt.Errorf("failed to list images: %w", err)
			}

			w := c.Root().Writer
			if c.Bool("json") {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(images)
			}

			p := interact.NewPrinter(w)
			if len(images) == 0 {
				p.Muted("No images")
				return nil
			}

			p.Println(fmt.Sprintf("%-50s %-10s %-5s %s", "TAG", "SIZE", "AGE", "ID"))
			for _, img := range images {
				tags := img.Tags
				if len(tags) == 0 {
					tags = []string{"<none>"}
				}
				for _, tag := range tags {
					p.Println(fmt.Sprintf("%-50s %-10s %-5s %s",
						truncate(tag, 50),
						units.HumanSize(float64(img.Size)),
						humanAge(img.CreatedAt),
						shortImageID(img.ID)))
				}
			}
			return nil
		},
	}
}

func imagesRemove() *cli.Command {
	return &cli.Command{
		Name:    "remove",
		Aliases: []string{"rm"},
		Usage:   "Remove a local image",
		Flags: append(runtimeFlags(),
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Remove even when containers still reference the image",
			},
		),
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "ref",
				UsageText: "Image reference to remove",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ref := c.StringArg("ref")
			if ref == "" {
				return fmt.Errorf("image reference is required")
			}

			client, err := newClient(c)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.RemoveImage(ctx, ref, c.Bool("force")); err != nil {
				return fmt.Errorf("failed to remove image: %w", err)
			}

			p := interact.NewPrinter(c.Root().Writer)
			p.Success(fmt.Sprintf("Image %s removed", ref))
			return nil
		},
	}
}

// shortImageID strips the digest algorithm prefix and truncates like the
// runtime's own CLI does.
func shortImageID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	return shortID(id)
}
