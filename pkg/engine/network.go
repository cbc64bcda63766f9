package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"

	"github.com/harborworks/dockhand/pkg/sandbox"
)

// EnsureNetwork makes sure the named bridge network exists and returns it.
// An empty name means the engine's default network. Creation is
// inspect-then-create; losing the create race to another orchestrator
// surfaces ErrNetworkConflict.
func (c *Client) EnsureNetwork(ctx context.Context, name string) (*sandbox.Network, error) {
	if name == "" {
		name = c.cfg.Network
	}

	insp, err := c.docker.NetworkInspect(ctx, name, network.InspectOptions{})
	if err == nil {
		return projectNetwork(insp), nil
	}
	if !errdefs.IsNotFound(err) {
		return nil, fmt.Errorf("failed to inspect network %s: %w", name, classify(err))
	}

	created, err := c.docker.NetworkCreate(ctx, name, network.CreateOptions{
		Driver: "bridge",
		Labels: map[string]string{sandbox.LabelManaged: "true"},
	})
	if err != nil {
		if errdefs.IsConflict(err) {
			return nil, fmt.Errorf("failed to create network %s: %w: %w", name, sandbox.ErrNetworkConflict, err)
		}
		return nil, fmt.Errorf("failed to create network %s: %w", name, classify(err))
	}
	slog.Info("created network", "name", name, "id", created.ID)

	insp, err = c.docker.NetworkInspect(ctx, name, network.InspectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to inspect network %s: %w", name, classify(err))
	}
	return projectNetwork(insp), nil
}

// GetNetwork returns the named network, or nil when it does not exist.
func (c *Client) GetNetwork(ctx context.Context, name string) (*sandbox.Network, error) {
	insp, err := c.docker.NetworkInspect(ctx, name, network.InspectOptions{})
	if errdefs.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to inspect network %s: %w", name, classify(err))
	}
	return projectNetwork(insp), nil
}

func projectNetwork(insp network.Inspect) *sandbox.Network {
	return &sandbox.Network{
		ID:     insp.ID,
		Name:   insp.Name,
		Driver: insp.Driver,
		Labels: insp.Labels,
	}
}
