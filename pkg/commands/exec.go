package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/harborworks/dockhand/pkg/engine"
	"github.com/harborworks/dockhand/pkg/sandbox"
)

// Exec returns the CLI command for running a command or shell inside a
// sandbox.
func Exec() *cli.Command {
	return &cli.Command{
		Name:  "exec",
		Usage: "Run a command in a sandbox (no command opens a shell)",
		Flags: append(runtimeFlags(),
			&cli.BoolFlag{
				Name:    "tty",
				Aliases: []string{"t"},
				Usage:   "Allocate a pseudo-terminal",
			},
			&cli.StringFlag{
				Name:    "workdir",
				Aliases: []string{"w"},
				Usage:   "Working directory for the command",
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "User to run the command as",
			},
			&cli.StringSliceFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   `Environment variables ("KEY=value", repeatable)`,
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
		Action: runExec,
	}
}

func runExec(ctx context.Context, c *cli.Command) error {
	id := c.StringArg("id")
	if id == "" {
		return fmt.Errorf("sandbox id is required")
	}
	cmd := c.Args().Slice()

	env, err := parseKeyValues(c.StringSlice("env"), "env")
	if err != nil {
		return err
	}

	client, err := newClient(c)
	if err != nil {
		return err
	}
	defer client.Close()

	// A bare `exec <id>` or an explicit --tty goes interactive.
	if len(cmd) == 0 || c.Bool("tty") {
		return runExecInteractive(ctx, client, id, cmd, c, env)
	}

	res, err := client.Exec(ctx, id, cmd, sandbox.ExecOptions{
		WorkDir: c.String("workdir"),
		User:    c.String("user"),
		Env:     env,
	})
	if err != nil {
		return fmt.Errorf("failed to exec in sandbox: %w", err)
	}

	fmt.Fprint(c.Root().Writer, res.Output)
	if res.ExitCode != 0 {
		client.Close()
		os.Exit(res.ExitCode)
	}
	return nil
}

func runExecInteractive(ctx context.Context, client *engine.Client, id string, cmd []string, c *cli.Command, env map[string]string) error {
	if len(cmd) > 1 {
		return fmt.Errorf("interactive exec takes at most one binary, got %d args", len(cmd))
	}

	opts := sandbox.TerminalOptions{
		WorkDir: c.String("workdir"),
		User:    c.String("user"),
		Env:     env,
	}
	if len(cmd) == 1 {
		opts.Shell = cmd[0]
	}

	stdinFd := int(os.Stdin.Fd())
	isTerminal := term.IsTerminal(stdinFd)
	if isTerminal {
		if w, h, err := term.GetSize(stdinFd); err == nil && w > 0 && h > 0 {
			opts.Width, opts.Height = uint(w), uint(h)
		}
	}

	session, err := client.ExecInteractive(ctx, id, opts)
	if err != nil {
		return fmt.Errorf("failed to open sandbox terminal: %w", err)
	}

	restore := func() {}
	if isTerminal {
		state, rawErr := term.MakeRaw(stdinFd)
		if rawErr != nil {
			session.Close()
			return fmt.Errorf("failed to put terminal in raw mode: %w", rawErr)
		}
		restore = func() { term.Restore(stdinFd, state) }
		defer restore()

		stopResize := watchResize(os.Stdin, func(width, height uint) {
			session.Resize(ctx, width, height)
		})
		defer stopResize()
	}

	go func() {
		io.Copy(session, os.Stdin)
		session.CloseWrite()
	}()
	io.Copy(os.Stdout, session)

	exitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	code, exitErr := session.ExitCode(exitCtx)
	cancel()
	session.Close()

	if exitErr != nil {
		return fmt.Errorf("failed to read exit code: %w", exitErr)
	}
	if code > 0 {
		restore()
		client.Close()
		os.Exit(code)
	}
	return nil
}
