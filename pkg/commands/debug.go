package commands

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/harborworks/dockhand/pkg/engine"
	"github.com/harborworks/dockhand/pkg/interact"
	"github.com/harborworks/dockhand/pkg/sandbox"
)

// Debug returns the CLI command for collecting diagnostic information.
func Debug() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Collect diagnostic information into a single file",
		Flags: append(runtimeFlags(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (default: dockhand-debug-<timestamp>.txt in current dir)",
			},
		),
		Action: runDebug,
	}
}

func runDebug(ctx context.Context, c *cli.Command) error {
	p := interact.NewPrinter(c.Root().Writer)

	outputPath := c.String("output")
	if outputPath == "" {
		outputPath = fmt.Sprintf("dockhand-debug-%s.txt", time.Now().Format("20060102-150405"))
	}

	client, err := newClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	var b strings.Builder

	collectHeader(&b)
	collectRuntime(ctx, &b, client)
	sandboxes := collectSandboxes(ctx, &b, client)
	collectSandboxDiagnostics(ctx, &b, client, sandboxes)

	if err := os.WriteFile(outputPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write debug output: %w", err)
	}

	p.Success(fmt.Sprintf("Debug info written to %s", outputPath))
	return nil
}

func writeSection(b *strings.Builder, name string, content string) {
	fmt.Fprintf(b, "=== %s ===\n", name)
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
}

func collectHeader(b *strings.Builder) {
	content := fmt.Sprintf("Timestamp: %s\nVersion:   %s\nOS/Arch:   %s/%s\n",
		time.Now().Format(time.RFC3339),
		Version,
		runtime.GOOS,
		runtime.GOARCH,
	)
	writeSection(b, "HEADER", content)
}

func collectRuntime(ctx context.Context, b *strings.Builder, client *engine.Client) {
	info, err := client.Info(ctx)
	if err != nil {
		writeSection(b, "RUNTIME", fmt.Sprintf("error: %v", err))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Name:       %s\n", info.Name)
	fmt.Fprintf(&sb, "Server:     %s\n", info.ServerVersion)
	fmt.Fprintf(&sb, "API:        %s\n", info.APIVersion)
	fmt.Fprintf(&sb, "OS/Arch:    %s/%s\n", info.OS, info.Architecture)
	fmt.Fprintf(&sb, "Containers: %d (%d running)\n", info.Containers, info.ContainersRunning)
	writeSection(b, "RUNTIME", sb.String())
}

// collectSandboxes lists managed sandboxes and returns them for the
// per-sandbox sections.
func collectSandboxes(ctx context.Context, b *strings.Builder, client *engine.Client) []*sandbox.Sandbox {
	sandboxes, err := client.List(ctx, sandbox.Filter{})
	if err != nil {
		writeSection(b, "SANDBOXES", fmt.Sprintf("error: %v", err))
		return nil
	}
	if len(sandboxes) == 0 {
		writeSection(b, "SANDBOXES", "(none)")
		return nil
	}

	var sb strings.Builder
	for _, s := range sandboxes {
		fmt.Fprintf(&sb, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Status, s.Image)
	}
	writeSection(b, "SANDBOXES", sb.String())
	return sandboxes
}

func collectSandboxDiagnostics(ctx context.Context, b *strings.Builder, client *engine.Client, sandboxes []*sandbox.Sandbox) {
	for _, s := range sandboxes {
		sectionPrefix := fmt.Sprintf("SANDBOX %s", s.ID)

		// Recent logs
		logs, err := client.Logs(ctx, s.ID, sandbox.LogOptions{Tail: 100, Timestamps: true})
		if err != nil {
			logs = fmt.Sprintf("error: %v", err)
		} else if strings.TrimSpace(logs) == "" {
			logs = "(empty)"
		}
		writeSection(b, sectionPrefix+" LOGS", logs)

		if s.Status != sandbox.StatusRunning {
			continue
		}

		// Process table
		writeSection(b, sectionPrefix+" PROCESSES", sandboxExec(ctx, client, s.ID, "ps", "aux"))

		// Port listeners
		writeSection(b, sectionPrefix+" PORT LISTENERS", sandboxExec(ctx, client, s.ID, "sh", "-c", "ss -tlnp 2>/dev/null || netstat -tlnp 2>/dev/null"))
	}
}

func sandboxExec(ctx context.Context, client *engine.Client, id string, args ...string) string {
	res, err := client.Exec(ctx, id, args, sandbox.ExecOptions{})
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	out := strings.TrimSpace(res.Output)
	if out == "" {
		return "(empty)"
	}
	return out
}
