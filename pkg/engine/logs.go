package engine

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"

	"github.com/harborworks/dockhand/pkg/demux"
	"github.com/harborworks/dockhand/pkg/sandbox"
)

func logsOptions(opts sandbox.LogOptions, follow bool) container.LogsOptions {
	o := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: opts.Timestamps,
		Follow:     follow,
		Tail:       "all",
	}
	if opts.Tail > 0 {
		o.Tail = strconv.Itoa(opts.Tail)
	}
	if !opts.Since.IsZero() {
		o.Since = opts.Since.UTC().Format(time.RFC3339)
	}
	return o
}

// Logs returns the sandbox's collected output as plain text. Output from
// TTY-less containers arrives multiplexed and is decoded; TTY output passes
// through as-is.
func (c *Client) Logs(ctx context.Context, id string, opts sandbox.LogOptions) (string, error) {
	insp, err := c.resolve(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to read logs of sandbox %s: %w", id, err)
	}

	rc, err := c.docker.ContainerLogs(ctx, insp.ID, logsOptions(opts, false))
	if err != nil {
		return "", fmt.Errorf("failed to read logs of sandbox %s: %w", id, classify(err))
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read logs of sandbox %s: %w", id, err)
	}
	return demux.Decode(raw), nil
}

// StreamLogs follows the sandbox's output, delivering decoded chunks to fn
// until the stream ends or ctx is canceled.
func (c *Client) StreamLogs(ctx context.Context, id string, opts sandbox.LogOptions, fn sandbox.LogFunc) error {
	insp, err := c.resolve(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to stream logs of sandbox %s: %w", id, err)
	}

	rc, err := c.docker.ContainerLogs(ctx, insp.ID, logsOptions(opts, true))
	if err != nil {
		return fmt.Errorf("failed to stream logs of sandbox %s: %w", id, classify(err))
	}
	defer rc.Close()

	// Unblock the read when the caller gives up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			rc.Close()
		case <-done:
		}
	}()

	stream := demux.NewStream(fn)
	buf := make([]byte, 32*1024)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			stream.Write(buf[:n])
		}
		if err != nil {
			stream.Flush()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to stream logs of sandbox %s: %w", id, err)
		}
	}
}
