package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/errdefs"

	"github.com/harborworks/dockhand/pkg/sandbox"
)

// Create provisions and starts a sandbox. The container is created with
// restart policy unless-stopped so the runtime brings it back after daemon
// restarts, but an explicit Stop sticks.
func (c *Client) Create(ctx context.Context, cfg sandbox.Config) (*sandbox.Sandbox, error) {
	if cfg.ID == "" {
		cfg.ID = sandbox.NewID()
	}

	req, err := buildCreateRequest(c.cfg, cfg)
	if err != nil {
		return nil, err
	}

	netName := cfg.Network
	if netName == "" {
		netName = c.cfg.Network
	}
	if _, err := c.EnsureNetwork(ctx, netName); err != nil {
		return nil, fmt.Errorf("failed to prepare network for sandbox %s: %w", cfg.ID, err)
	}

	if bind := c.ensureWorkspaceVolume(ctx, cfg.ID, req); bind != "" {
		req.Host.Binds = append(req.Host.Binds, bind)
	}

	slog.Info("creating sandbox",
		"id", cfg.ID,
		"image", cfg.Image,
		"tier", cfg.Tier,
		"memory", req.Resolved.MemoryBytes,
		"nanoCPUs", req.Resolved.NanoCPUs,
	)

	resp, err := c.docker.ContainerCreate(ctx, req.Container, req.Host, req.Networking, nil, req.Name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("failed to create sandbox %s: %w: %w", cfg.ID, sandbox.ErrImageNotFound, err)
		}
		return nil, fmt.Errorf("failed to create sandbox %s: %w", cfg.ID, classify(err))
	}
	for _, w := range resp.Warnings {
		slog.Warn("runtime warning on create", "id", cfg.ID, "warning", w)
	}

	if err := c.docker.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start sandbox %s: %w", cfg.ID, classify(err))
	}

	insp, err := c.docker.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect sandbox %s after create: %w", cfg.ID, classify(err))
	}
	return c.project(insp), nil
}

// ensureWorkspaceVolume provisions the per-sandbox workspace volume,
// size-constrained when the driver allows it. Quota failures degrade to an
// unconstrained volume; a sandbox must never fail to start over a quota.
func (c *Client) ensureWorkspaceVolume(ctx context.Context, id string, req createRequest) string {
	if !c.cfg.QuotaVolumes || req.Resolved.DiskBytes <= 0 {
		return ""
	}
	for _, bind := range req.Host.Binds {
		if strings.Contains(bind, ":"+c.cfg.WorkspaceDir+":") {
			return "" // caller mounts the workspace explicitly
		}
	}

	name := req.Name + "-workspace"
	labels := map[string]string{
		sandbox.LabelManaged: "true",
		sandbox.LabelID:      id,
	}
	_, err := c.docker.VolumeCreate(ctx, volume.CreateOptions{
		Name:       name,
		Labels:     labels,
		DriverOpts: map[string]string{"size": strconv.FormatInt(req.Resolved.DiskBytes, 10)},
	})
	if err != nil {
		slog.Warn("quota volume rejected, falling back to unconstrained workspace",
			"id", id, "error", err)
		if _, err := c.docker.VolumeCreate(ctx, volume.CreateOptions{Name: name, Labels: labels}); err != nil {
			slog.Warn("workspace volume creation failed, skipping mount", "id", id, "error", err)
			return ""
		}
	}
	return name + ":" + c.cfg.WorkspaceDir + ":rw"
}

// Start starts a stopped sandbox.
func (c *Client) Start(ctx context.Context, id string) error {
	insp, err := c.resolve(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to start sandbox %s: %w", id, err)
	}
	if err := c.docker.ContainerStart(ctx, insp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start sandbox %s: %w", id, classify(err))
	}
	return nil
}

// Stop signals the sandbox and waits up to timeout before the runtime
// kills it. A non-positive timeout uses the configured grace period.
func (c *Client) Stop(ctx context.Context, id string, timeout time.Duration) error {
	insp, err := c.resolve(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to stop sandbox %s: %w", id, err)
	}
	secs := c.stopSeconds(timeout)
	if err := c.docker.ContainerStop(ctx, insp.ID, container.StopOptions{Timeout: &secs}); err != nil {
		return fmt.Errorf("failed to stop sandbox %s: %w", id, classify(err))
	}
	return nil
}

// Restart stops and restarts the sandbox with the same grace semantics as
// Stop.
func (c *Client) Restart(ctx context.Context, id string, timeout time.Duration) error {
	insp, err := c.resolve(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to restart sandbox %s: %w", id, err)
	}
	secs := c.stopSeconds(timeout)
	if err := c.docker.ContainerRestart(ctx, insp.ID, container.StopOptions{Timeout: &secs}); err != nil {
		return fmt.Errorf("failed to restart sandbox %s: %w", id, classify(err))
	}
	return nil
}

func (c *Client) stopSeconds(timeout time.Duration) int {
	if timeout <= 0 {
		timeout = c.cfg.StopTimeout
	}
	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Pause freezes all processes in the sandbox.
func (c *Client) Pause(ctx context.Context, id string) error {
	insp, err := c.resolve(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to pause sandbox %s: %w", id, err)
	}
	if err := c.docker.ContainerPause(ctx, insp.ID); err != nil {
		return fmt.Errorf("failed to pause sandbox %s: %w", id, classify(err))
	}
	return nil
}

// Unpause resumes a paused sandbox.
func (c *Client) Unpause(ctx context.Context, id string) error {
	insp, err := c.resolve(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to unpause sandbox %s: %w", id, err)
	}
	if err := c.docker.ContainerUnpause(ctx, insp.ID); err != nil {
		return fmt.Errorf("failed to unpause sandbox %s: %w", id, classify(err))
	}
	return nil
}

// Delete tears a sandbox down: a best-effort stop with the default grace
// period, then a forced remove. Anonymous volumes go only when
// removeVolumes is set. A sandbox that vanishes mid-delete counts as
// deleted.
func (c *Client) Delete(ctx context.Context, id string, removeVolumes bool) error {
	insp, err := c.resolve(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete sandbox %s: %w", id, err)
	}

	secs := c.stopSeconds(0)
	if err := c.docker.ContainerStop(ctx, insp.ID, container.StopOptions{Timeout: &secs}); err != nil && !isIgnorableStopError(err) {
		slog.Debug("pre-delete stop failed, removing anyway", "id", id, "error", err)
	}

	err = c.docker.ContainerRemove(ctx, insp.ID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: removeVolumes,
	})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove sandbox %s: %w", id, classify(err))
	}
	if removeVolumes {
		c.removeWorkspaceVolumes(ctx, insp.Config.Labels[sandbox.LabelID])
	}
	slog.Info("deleted sandbox", "id", id, "removeVolumes", removeVolumes)
	return nil
}

// removeWorkspaceVolumes drops the named volumes provisioned for the
// sandbox. ContainerRemove only reclaims anonymous volumes, so the
// workspace volume needs its own pass.
func (c *Client) removeWorkspaceVolumes(ctx context.Context, id string) {
	if id == "" {
		return
	}
	list, err := c.docker.VolumeList(ctx, volume.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", sandbox.LabelID+"="+id)),
	})
	if err != nil {
		slog.Warn("failed to list workspace volumes", "id", id, "error", err)
		return
	}
	for _, v := range list.Volumes {
		if err := c.docker.VolumeRemove(ctx, v.Name, true); err != nil && !errdefs.IsNotFound(err) {
			slog.Warn("failed to remove workspace volume", "id", id, "volume", v.Name, "error", err)
		}
	}
}

// isIgnorableStopError reports whether a stop failure means the container
// is already where Delete wants it: gone or not running.
func isIgnorableStopError(err error) bool {
	if err == nil {
		return true
	}
	if errdefs.IsNotFound(err) || errdefs.IsConflict(err) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return strings.Contains(err.Error(), "is not running") ||
		strings.Contains(err.Error(), "is already stopped")
}
