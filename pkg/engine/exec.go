package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/harborworks/dockhand/pkg/demux"
	"github.com/harborworks/dockhand/pkg/hijack"
	"github.com/harborworks/dockhand/pkg/sandbox"
)

// Exec runs a command in the sandbox and captures its output.
func (c *Client) Exec(ctx context.Context, id string, cmd []string, opts sandbox.ExecOptions) (*sandbox.ExecResult, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("failed to exec in sandbox %s: %w: empty command", id, sandbox.ErrInvalidConfig)
	}
	insp, err := c.resolve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to exec in sandbox %s: %w", id, err)
	}
	res, err := c.execCapture(ctx, insp.ID, cmd, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to exec in sandbox %s: %w", id, err)
	}
	return res, nil
}

// execCapture runs one non-interactive exec against a resolved container and
// collects its demultiplexed output and exit code.
func (c *Client) execCapture(ctx context.Context, containerID string, cmd []string, opts sandbox.ExecOptions) (*sandbox.ExecResult, error) {
	created, err := c.docker.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   opts.WorkDir,
		User:         opts.User,
		Env:          flattenEnv(opts.Env),
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, classify(err)
	}

	attach, err := c.docker.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, classify(err)
	}
	defer attach.Close()

	raw, err := io.ReadAll(attach.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read exec output: %w", err)
	}

	code, err := waitExecExit(ctx, c.docker, created.ID)
	if err != nil {
		return nil, err
	}
	return &sandbox.ExecResult{ExitCode: code, Output: demux.Decode(raw)}, nil
}

// waitExecExit polls the exec until its process has ended and returns the
// exit code. Output EOF usually means it already has; the poll covers the
// short window where the runtime has not recorded the code yet.
func waitExecExit(ctx context.Context, docker *client.Client, execID string) (int, error) {
	for {
		insp, err := docker.ContainerExecInspect(ctx, execID)
		if err != nil {
			return -1, fmt.Errorf("failed to inspect exec: %w", classify(err))
		}
		if !insp.Running {
			return insp.ExitCode, nil
		}
		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// detectShell probes the configured shell candidates inside the container
// and returns the first one present and executable. A sandbox with none of
// them still gets /bin/sh, which every supported image ships.
func (c *Client) detectShell(ctx context.Context, containerID string) string {
	for _, candidate := range c.cfg.ShellCandidates {
		res, err := c.execCapture(ctx, containerID, []string{"test", "-x", candidate}, sandbox.ExecOptions{})
		if err == nil && res.ExitCode == 0 {
			return candidate
		}
	}
	return "/bin/sh"
}

// ExecInteractive opens a TTY shell session inside the sandbox. The returned
// session is a duplex byte stream carrying raw terminal traffic.
func (c *Client) ExecInteractive(ctx context.Context, id string, opts sandbox.TerminalOptions) (sandbox.ExecSession, error) {
	insp, err := c.resolve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to open terminal in sandbox %s: %w", id, err)
	}

	shell := opts.Shell
	if shell == "" {
		shell = c.detectShell(ctx, insp.ID)
	}

	env := make(map[string]string, len(opts.Env)+1)
	env["TERM"] = "xterm-256color"
	for k, v := range opts.Env {
		env[k] = v
	}

	execOpts := container.ExecOptions{
		Cmd:          []string{shell},
		WorkingDir:   opts.WorkDir,
		User:         opts.User,
		Env:          flattenEnv(env),
		Tty:          true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	}
	if opts.Width > 0 && opts.Height > 0 {
		execOpts.ConsoleSize = &[2]uint{opts.Height, opts.Width}
	}

	created, err := c.docker.ContainerExecCreate(ctx, insp.ID, execOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open terminal in sandbox %s: %w", id, classify(err))
	}

	// ClientVersion reports "1.47"; the versioned path wants "v1.47".
	dialer := hijack.Dialer{Host: c.docker.DaemonHost(), APIVersion: "v" + c.docker.ClientVersion()}
	stream, err := dialer.StartExec(ctx, created.ID, true)
	if err != nil {
		var ue *hijack.UpgradeError
		if errors.As(err, &ue) {
			return nil, &sandbox.ExecStartError{ExecID: created.ID, StatusLine: ue.Status}
		}
		return nil, fmt.Errorf("failed to open terminal in sandbox %s: %w", id, err)
	}

	return &execSession{stream: stream, id: created.ID, docker: c.docker}, nil
}

type execSession struct {
	stream *hijack.Stream
	id     string
	docker *client.Client
}

var _ sandbox.ExecSession = (*execSession)(nil)

func (s *execSession) ID() string                  { return s.id }
func (s *execSession) Read(p []byte) (int, error)  { return s.stream.Read(p) }
func (s *execSession) Write(p []byte) (int, error) { return s.stream.Write(p) }
func (s *execSession) Close() error                { return s.stream.Close() }
func (s *execSession) CloseWrite() error           { return s.stream.CloseWrite() }

func (s *execSession) Resize(ctx context.Context, width, height uint) error {
	err := s.docker.ContainerExecResize(ctx, s.id, container.ResizeOptions{Width: width, Height: height})
	if err != nil {
		return fmt.Errorf("failed to resize terminal: %w", err)
	}
	return nil
}

func (s *execSession) ExitCode(ctx context.Context) (int, error) {
	return waitExecExit(ctx, s.docker, s.id)
}
