package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"

	"github.com/harborworks/dockhand/pkg/sandbox"
)

// WatchEvents streams lifecycle events for managed sandboxes. The returned
// channel closes when ctx is done or the runtime ends the stream; the watch
// does not reconnect.
func (c *Client) WatchEvents(ctx context.Context) (<-chan sandbox.Event, error) {
	if err := c.Health(ctx); err != nil {
		return nil, fmt.Errorf("failed to watch events: %w", err)
	}

	args := filters.NewArgs(
		filters.Arg("type", "container"),
		filters.Arg("label", sandbox.LabelManaged+"=true"),
	)
	msgs, errs := c.docker.Events(ctx, events.ListOptions{Filters: args})

	out := make(chan sandbox.Event, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errs:
				if err != nil && ctx.Err() == nil {
					slog.Warn("event stream ended", "error", err)
				}
				return
			case m := <-msgs:
				select {
				case out <- eventFromMessage(m):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// eventFromMessage reduces a raw runtime event to the sandbox view. Exec
// actions arrive as "exec_create: <cmd>"; the detail after the colon is
// dropped.
func eventFromMessage(m events.Message) sandbox.Event {
	action := string(m.Action)
	if i := strings.IndexByte(action, ':'); i >= 0 {
		action = strings.TrimSpace(action[:i])
	}

	ev := sandbox.Event{
		SandboxID:   m.Actor.Attributes[sandbox.LabelID],
		ContainerID: m.Actor.ID,
		Action:      action,
		Status:      actionStatus(action),
	}
	if ev.SandboxID == "" {
		ev.SandboxID = m.Actor.Attributes["name"]
	}
	if m.TimeNano > 0 {
		ev.Time = time.Unix(0, m.TimeNano)
	} else {
		ev.Time = time.Unix(m.Time, 0)
	}
	return ev
}

// actionStatus maps a runtime action to the sandbox status it implies.
// Actions without a lifecycle meaning (exec, attach, health) map to unknown.
func actionStatus(action string) sandbox.Status {
	switch action {
	case "create":
		return sandbox.StatusCreating
	case "start", "restart", "unpause":
		return sandbox.StatusRunning
	case "pause":
		return sandbox.StatusPaused
	case "die":
		return sandbox.StatusExited
	case "stop", "kill":
		return sandbox.StatusStopped
	case "destroy":
		return sandbox.StatusRemoving
	case "oom":
		return sandbox.StatusError
	}
	return sandbox.StatusUnknown
}
