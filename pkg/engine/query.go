package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/harborworks/dockhand/pkg/sandbox"
)

// Status projects the sandbox's current status. An unknown sandbox is
// StatusUnknown, not an error; transport failures still surface.
func (c *Client) Status(ctx context.Context, id string) (sandbox.Status, error) {
	insp, err := c.resolve(ctx, id)
	if errors.Is(err, sandbox.ErrNotFound) {
		return sandbox.StatusUnknown, nil
	}
	if err != nil {
		return sandbox.StatusUnknown, fmt.Errorf("failed to read status of sandbox %s: %w", id, err)
	}
	return sandbox.ProjectStatus(stateFromInspect(insp)), nil
}

// Get returns the full sandbox projection, or nil when it does not exist.
func (c *Client) Get(ctx context.Context, id string) (*sandbox.Sandbox, error) {
	insp, err := c.resolve(ctx, id)
	if errors.Is(err, sandbox.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sandbox %s: %w", id, err)
	}
	return c.project(insp), nil
}

// Exists reports whether the sandbox's container exists in any state.
func (c *Client) Exists(ctx context.Context, id string) (bool, error) {
	_, err := c.resolve(ctx, id)
	if errors.Is(err, sandbox.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check sandbox %s: %w", id, err)
	}
	return true, nil
}

// List returns managed sandboxes matching the filter, newest first. Status
// and label constraints are pushed down to the runtime; names and the date
// range are matched after projection, where those fields exist.
func (c *Client) List(ctx context.Context, f sandbox.Filter) ([]*sandbox.Sandbox, error) {
	args := filters.NewArgs(filters.Arg("label", sandbox.LabelManaged+"=true"))
	for k, v := range f.Labels {
		if v == "" {
			args.Add("label", k)
		} else {
			args.Add("label", k+"="+v)
		}
	}
	if phase, ok := runtimePhaseFor(f.Status); ok {
		args.Add("status", phase)
	}

	list, err := c.docker.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("failed to list sandboxes: %w", classify(err))
	}

	out := make([]*sandbox.Sandbox, 0, len(list))
	for _, s := range list {
		sb := projectSummary(s)
		if !matchFilter(sb, f) {
			continue
		}
		out = append(out, sb)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// runtimePhaseFor maps a projected status onto the runtime's status filter
// vocabulary where one phrase covers it exactly. Statuses spanning several
// phases (stopped) or none (error, unknown) stay client-side.
func runtimePhaseFor(s sandbox.Status) (string, bool) {
	switch s {
	case sandbox.StatusCreating:
		return "created", true
	case sandbox.StatusRunning:
		return "running", true
	case sandbox.StatusPaused:
		return "paused", true
	case sandbox.StatusRestarting:
		return "restarting", true
	case sandbox.StatusRemoving:
		return "removing", true
	case sandbox.StatusExited:
		return "exited", true
	case sandbox.StatusDead:
		return "dead", true
	}
	return "", false
}

// matchFilter applies the client-side filter parts to a projected sandbox.
func matchFilter(sb *sandbox.Sandbox, f sandbox.Filter) bool {
	if f.Status != "" && sb.Status != f.Status {
		return false
	}
	if f.Name != "" {
		needle := strings.ToLower(f.Name)
		if !strings.Contains(strings.ToLower(sb.Name), needle) &&
			!strings.Contains(strings.ToLower(sb.Slug), needle) &&
			!strings.Contains(strings.ToLower(sb.ID), needle) {
			return false
		}
	}
	if !f.CreatedAfter.IsZero() && sb.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && sb.CreatedAt.After(f.CreatedBefore) {
		return false
	}
	return true
}

// project builds the sandbox view from a full inspect.
func (c *Client) project(insp container.InspectResponse) *sandbox.Sandbox {
	return projectInspect(insp)
}

func projectInspect(insp container.InspectResponse) *sandbox.Sandbox {
	var labels map[string]string
	var image string
	if insp.Config != nil {
		labels = insp.Config.Labels
		image = insp.Config.Image
	}

	containerName := ""
	containerID := ""
	created := time.Time{}
	if insp.ContainerJSONBase != nil {
		containerName = strings.TrimPrefix(insp.Name, "/")
		containerID = insp.ID
		if t, err := time.Parse(time.RFC3339Nano, insp.Created); err == nil {
			created = t
		}
	}

	sb := &sandbox.Sandbox{
		ID:          labels[sandbox.LabelID],
		ContainerID: containerID,
		Name:        labels[sandbox.LabelName],
		Slug:        labels[sandbox.LabelSlug],
		Tier:        labels[sandbox.LabelTier],
		Image:       image,
		URLs:        sandbox.URLsFromLabels(labels),
		Labels:      visibleLabels(labels),
		CreatedAt:   created,
	}
	if sb.ID == "" {
		sb.ID = containerName
	}
	if sb.Name == "" {
		sb.Name = containerName
	}

	state := stateFromInspect(insp)
	sb.Status = sandbox.ProjectStatus(state)
	if state != nil {
		sb.ExitCode = state.ExitCode
	}
	if insp.ContainerJSONBase != nil && insp.State != nil {
		if t, err := time.Parse(time.RFC3339Nano, insp.State.StartedAt); err == nil && t.Year() > 1 {
			sb.StartedAt = t
		}
		if insp.State.Health != nil {
			sb.Health = string(insp.State.Health.Status)
		}
	}
	return sb
}

// projectSummary builds the sandbox view from a list entry. Summaries only
// carry the lifecycle phase, so the state flags are reconstructed from it.
func projectSummary(s container.Summary) *sandbox.Sandbox {
	containerName := ""
	if len(s.Names) > 0 {
		containerName = strings.TrimPrefix(s.Names[0], "/")
	}
	sb := &sandbox.Sandbox{
		ID:          s.Labels[sandbox.LabelID],
		ContainerID: s.ID,
		Name:        s.Labels[sandbox.LabelName],
		Slug:        s.Labels[sandbox.LabelSlug],
		Tier:        s.Labels[sandbox.LabelTier],
		Image:       s.Image,
		URLs:        sandbox.URLsFromLabels(s.Labels),
		Labels:      visibleLabels(s.Labels),
		CreatedAt:   time.Unix(s.Created, 0).UTC(),
		Status:      sandbox.ProjectStatus(stateFromPhase(string(s.State))),
	}
	if sb.ID == "" {
		sb.ID = containerName
	}
	if sb.Name == "" {
		sb.Name = containerName
	}
	return sb
}

func stateFromInspect(insp container.InspectResponse) *sandbox.State {
	if insp.ContainerJSONBase == nil || insp.State == nil {
		return nil
	}
	st := insp.State
	return &sandbox.State{
		Phase:      string(st.Status),
		Running:    st.Running,
		Paused:     st.Paused,
		Restarting: st.Restarting,
		Dead:       st.Dead,
		ExitCode:   st.ExitCode,
		Error:      st.Error,
	}
}

// stateFromPhase reconstructs the runtime's state flags from a bare phase
// word, mirroring how the runtime sets them.
func stateFromPhase(phase string) *sandbox.State {
	return &sandbox.State{
		Phase:      phase,
		Running:    phase == "running" || phase == "paused" || phase == "restarting",
		Paused:     phase == "paused",
		Restarting: phase == "restarting",
		Dead:       phase == "dead",
	}
}

// visibleLabels drops the proxy wiring labels from the projected view;
// they are runtime plumbing, not sandbox metadata.
func visibleLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		if strings.HasPrefix(k, "traefik.") {
			continue
		}
		out[k] = v
	}
	return out
}
