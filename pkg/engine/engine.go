// Package engine implements the sandbox orchestrator on the Docker Engine
// API. Containers are the single source of truth: every sandbox is
// projected fresh from the runtime, identified by a deterministic container
// name and self-describing labels, with no state kept on this side.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"

	"github.com/harborworks/dockhand/pkg/sandbox"
	"github.com/harborworks/dockhand/pkg/traefik"
)

// Config carries the engine-wide settings every sandbox shares.
type Config struct {
	// Host is the runtime socket ("unix:///var/run/docker.sock",
	// "tcp://host:2375"). Empty falls back to the environment.
	Host string
	// APIVersion pins the Engine API version. Empty negotiates.
	APIVersion string

	// NamePrefix prefixes every managed container name; a sandbox with id
	// X lives in container "<prefix>-X". Default "dockhand".
	NamePrefix string
	// Network is the default network sandboxes attach to. Default
	// "dockhand".
	Network string
	// StopTimeout is the grace period between stop signal and kill when
	// the caller does not pass one. Default 10s.
	StopTimeout time.Duration

	// DataRoot and HostPathPrefix translate bind-mount sources when the
	// orchestrator itself runs in a container: a source under DataRoot is
	// prefixed with HostPathPrefix so the daemon sees the real host path.
	DataRoot       string
	HostPathPrefix string

	// WorkspaceDir is where the quota-constrained workspace volume is
	// mounted. Default "/workspace".
	WorkspaceDir string
	// QuotaVolumes provisions a size-limited workspace volume per sandbox
	// when the tier defines a disk quota. Depends on volume driver
	// support; failures degrade to an unlimited volume.
	QuotaVolumes bool

	// Proxy configures route and URL label generation.
	Proxy traefik.Config

	// ShellCandidates is the ordered list of shells probed for
	// interactive sessions. Defaults to bash, ash, sh.
	ShellCandidates []string
}

func (c Config) withDefaults() Config {
	if c.NamePrefix == "" {
		c.NamePrefix = "dockhand"
	}
	if c.Network == "" {
		c.Network = "dockhand"
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 10 * time.Second
	}
	if c.WorkspaceDir == "" {
		c.WorkspaceDir = "/workspace"
	}
	if len(c.ShellCandidates) == 0 {
		c.ShellCandidates = []string{"/bin/bash", "/usr/bin/bash", "/bin/ash", "/bin/sh"}
	}
	return c
}

// Client is the Docker-backed orchestrator.
type Client struct {
	docker *client.Client
	cfg    Config
}

var (
	_ sandbox.Orchestrator = (*Client)(nil)
	_ sandbox.Advanced     = (*Client)(nil)
)

// New connects to the runtime. The connection is lazy; use Health to probe
// reachability.
func New(cfg Config) (*Client, error) {
	opts := []client.Opt{client.FromEnv}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	if cfg.APIVersion != "" {
		opts = append(opts, client.WithVersion(cfg.APIVersion))
	} else {
		opts = append(opts, client.WithAPIVersionNegotiation())
	}

	docker, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime client: %w", err)
	}
	return &Client{docker: docker, cfg: cfg.withDefaults()}, nil
}

// Close releases the underlying runtime connection.
func (c *Client) Close() error {
	return c.docker.Close()
}

// Health pings the runtime.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.docker.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping runtime: %w", classify(err))
	}
	return nil
}

// Info returns a summary of the runtime behind the orchestrator.
func (c *Client) Info(ctx context.Context) (*sandbox.RuntimeInfo, error) {
	info, err := c.docker.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read runtime info: %w", classify(err))
	}
	return &sandbox.RuntimeInfo{
		Name:              info.Name,
		ServerVersion:     info.ServerVersion,
		APIVersion:        c.docker.ClientVersion(),
		Containers:        info.Containers,
		ContainersRunning: info.ContainersRunning,
		Images:            info.Images,
		OS:                info.OperatingSystem,
		Architecture:      info.Architecture,
		CPUs:              info.NCPU,
		Memory:            info.MemTotal,
	}, nil
}

// containerName is the deterministic name a sandbox's container gets.
func (c *Client) containerName(id string) string {
	return c.cfg.NamePrefix + "-" + id
}

// classify folds transport-level failures into the error taxonomy while
// keeping the original error in the chain.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case client.IsErrConnectionFailed(err):
		return fmt.Errorf("%w: %w", sandbox.ErrRuntimeUnavailable, err)
	case errdefs.IsNotFound(err):
		return fmt.Errorf("%w: %w", sandbox.ErrNotFound, err)
	default:
		return err
	}
}

// resolve finds the container backing a sandbox: by deterministic name
// first, then by id label, then by slug label for callers holding a slug.
// Returns sandbox.ErrNotFound when nothing matches.
func (c *Client) resolve(ctx context.Context, id string) (container.InspectResponse, error) {
	insp, err := c.docker.ContainerInspect(ctx, c.containerName(id))
	if err == nil {
		return insp, nil
	}
	if !errdefs.IsNotFound(err) {
		return container.InspectResponse{}, classify(err)
	}

	for _, label := range []string{sandbox.LabelID, sandbox.LabelSlug} {
		list, lerr := c.docker.ContainerList(ctx, container.ListOptions{
			All:     true,
			Filters: filters.NewArgs(filters.Arg("label", label+"="+id)),
		})
		if lerr != nil {
			return container.InspectResponse{}, classify(lerr)
		}
		if len(list) > 0 {
			insp, err = c.docker.ContainerInspect(ctx, list[0].ID)
			if err != nil {
				return container.InspectResponse{}, classify(err)
			}
			return insp, nil
		}
	}
	return container.InspectResponse{}, sandbox.ErrNotFound
}
