package sandbox

import (
	"context"
	"io"
	"time"

	"github.com/harborworks/dockhand/pkg/demux"
)

// LogFunc receives decoded log text as it streams in.
type LogFunc func(kind demux.Kind, text string)

// PullProgress receives image pull progress updates. current and total are
// zero when the runtime does not report byte counts for a step.
type PullProgress func(status string, current, total int64)

// ExecSession is a live interactive terminal inside a sandbox. Reads and
// writes go straight to the process; the caller owns the session and must
// Close it.
type ExecSession interface {
	io.ReadWriteCloser

	// ID is the runtime's exec instance id.
	ID() string
	// Resize sets the remote terminal size.
	Resize(ctx context.Context, width, height uint) error
	// CloseWrite half-closes the stream so the process sees EOF on stdin
	// while output keeps flowing.
	CloseWrite() error
	// ExitCode returns the process exit code once the session has ended.
	ExitCode(ctx context.Context) (int, error)
}

// Orchestrator is the sandbox lifecycle facade. The runtime is the single
// source of truth: every read projects fresh state, nothing is cached, and
// read operations report absence through zero values (StatusUnknown, nil,
// false) instead of errors.
type Orchestrator interface {
	// Create provisions and starts a sandbox.
	Create(ctx context.Context, cfg Config) (*Sandbox, error)
	Start(ctx context.Context, id string) error
	// Stop sends the stop signal and waits up to timeout before the
	// runtime kills the process. timeout<=0 uses the default grace period.
	Stop(ctx context.Context, id string, timeout time.Duration) error
	Restart(ctx context.Context, id string, timeout time.Duration) error
	// Delete stops best-effort, then force-removes the container.
	// Anonymous volumes are removed only when removeVolumes is set.
	Delete(ctx context.Context, id string, removeVolumes bool) error

	Status(ctx context.Context, id string) (Status, error)
	Get(ctx context.Context, id string) (*Sandbox, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter Filter) ([]*Sandbox, error)
	Stats(ctx context.Context, id string) (*Stats, error)

	Logs(ctx context.Context, id string, opts LogOptions) (string, error)
	// StreamLogs follows the log stream until ctx is done or the
	// container stops.
	StreamLogs(ctx context.Context, id string, opts LogOptions, fn LogFunc) error

	// Exec runs a command to completion and returns its combined output.
	Exec(ctx context.Context, id string, cmd []string, opts ExecOptions) (*ExecResult, error)
	// ExecInteractive opens a TTY-backed shell session.
	ExecInteractive(ctx context.Context, id string, opts TerminalOptions) (ExecSession, error)

	PullImage(ctx context.Context, ref string, progress PullProgress) error
	ImageExists(ctx context.Context, ref string) (bool, error)
	GetImage(ctx context.Context, ref string) (*Image, error)
	ListImages(ctx context.Context) ([]Image, error)

	// EnsureNetwork creates the named network if it does not exist yet.
	EnsureNetwork(ctx context.Context, name string) (*Network, error)
	GetNetwork(ctx context.Context, name string) (*Network, error)

	// Health checks that the runtime answers at all.
	Health(ctx context.Context) error
	Info(ctx context.Context) (*RuntimeInfo, error)
}

// Advanced holds operations not every runtime backend can offer. Probe
// with AdvancedOf; there are no silent no-op fallbacks.
type Advanced interface {
	Pause(ctx context.Context, id string) error
	Unpause(ctx context.Context, id string) error
	RemoveImage(ctx context.Context, ref string, force bool) error
	// WatchEvents streams lifecycle events for managed sandboxes until
	// ctx is done. The channel closes when the watch ends.
	WatchEvents(ctx context.Context) (<-chan Event, error)
}

// AdvancedOf reports whether the orchestrator supports the advanced
// operations.
func AdvancedOf(o Orchestrator) (Advanced, bool) {
	a, ok := o.(Advanced)
	return a, ok
}

// WaitForStatus polls until the sandbox reaches the wanted status, ctx
// expires, or the sandbox disappears while waiting for anything else.
func WaitForStatus(ctx context.Context, o Orchestrator, id string, want Status, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := o.Status(ctx, id)
		if err != nil {
			return err
		}
		if status == want {
			return nil
		}
		if status == StatusUnknown && want != StatusUnknown {
			return ErrNotFound
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
