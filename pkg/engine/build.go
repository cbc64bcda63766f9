package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/go-connections/nat"

	"github.com/harborworks/dockhand/pkg/limits"
	"github.com/harborworks/dockhand/pkg/sandbox"
	"github.com/harborworks/dockhand/pkg/traefik"
)

// createRequest bundles everything ContainerCreate needs. Built purely
// from configuration so the translation is testable without a runtime.
type createRequest struct {
	Name       string
	Container  *container.Config
	Host       *container.HostConfig
	Networking *network.NetworkingConfig
	Resolved   limits.Resolved
}

// buildCreateRequest translates a sandbox config into the runtime create
// request. The output is deterministic for a given input: env vars and
// label-derived content are emitted in sorted order.
func buildCreateRequest(ec Config, cfg sandbox.Config) (createRequest, error) {
	if cfg.Image == "" {
		return createRequest{}, fmt.Errorf("%w: image is required", sandbox.ErrInvalidConfig)
	}
	if cfg.ID == "" {
		return createRequest{}, fmt.Errorf("%w: id is required", sandbox.ErrInvalidConfig)
	}
	if cfg.Slug != "" {
		if err := sandbox.ValidateSlug(cfg.Slug); err != nil {
			return createRequest{}, fmt.Errorf("%w: %v", sandbox.ErrInvalidConfig, err)
		}
	}

	res := limits.Resolve(cfg.Tier, cfg.Resources)

	netName := cfg.Network
	if netName == "" {
		netName = ec.Network
	}

	routes := traefik.SandboxRoutes(cfg.ID, cfg.Slug, ec.Proxy, traefik.Services(cfg.Services))
	urls := traefik.URLMap(ec.Proxy, routes)

	labels := make(map[string]string, len(cfg.Labels)+len(urls)+8)
	for k, v := range cfg.Labels {
		labels[k] = v
	}
	for k, v := range traefik.Labels(ec.Proxy, routes) {
		labels[k] = v
	}
	for k, v := range sandbox.URLLabels(urls) {
		labels[k] = v
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Slug
	}
	if name == "" {
		name = cfg.ID
	}
	labels[sandbox.LabelManaged] = "true"
	labels[sandbox.LabelID] = cfg.ID
	labels[sandbox.LabelName] = name
	if cfg.Slug != "" {
		labels[sandbox.LabelSlug] = cfg.Slug
	}
	if cfg.Tier != "" {
		labels[sandbox.LabelTier] = cfg.Tier
	}

	exposed, bindings, err := buildPorts(cfg.Ports, cfg.Services)
	if err != nil {
		return createRequest{}, fmt.Errorf("%w: %v", sandbox.ErrInvalidConfig, err)
	}

	binds := make([]string, 0, len(cfg.Mounts))
	for _, m := range cfg.Mounts {
		if m.Kind == sandbox.MountBind || m.Kind == "" {
			m.Source = rewriteHostPath(ec, m.Source)
		}
		binds = append(binds, m.String())
	}

	hostname := cfg.Slug
	if hostname == "" {
		hostname = cfg.ID
	}

	var pids *int64
	if res.PIDs > 0 {
		v := res.PIDs
		pids = &v
	}

	ccfg := &container.Config{
		Hostname:     hostname,
		Image:        cfg.Image,
		Env:          flattenEnv(cfg.Env),
		Cmd:          strslice.StrSlice(cfg.Command),
		WorkingDir:   cfg.WorkDir,
		User:         cfg.User,
		Labels:       labels,
		ExposedPorts: exposed,
	}
	hcfg := &container.HostConfig{
		Binds:        binds,
		PortBindings: bindings,
		NetworkMode:  container.NetworkMode(netName),
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyUnlessStopped,
		},
		Resources: container.Resources{
			Memory:     res.MemoryBytes,
			MemorySwap: res.MemorySwapBytes,
			NanoCPUs:   res.NanoCPUs,
			PidsLimit:  pids,
		},
	}
	endpoint := &network.EndpointSettings{}
	if cfg.Slug != "" {
		endpoint.Aliases = []string{cfg.Slug}
	}
	ncfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{netName: endpoint},
	}

	return createRequest{
		Name:       ec.NamePrefix + "-" + cfg.ID,
		Container:  ccfg,
		Host:       hcfg,
		Networking: ncfg,
		Resolved:   res,
	}, nil
}

// rewriteHostPath maps a bind source under the internal data root onto the
// real host filesystem by prepending the configured prefix. Needed when
// the orchestrator runs inside a container itself: the daemon resolves
// bind sources on the host, not in our mount namespace.
func rewriteHostPath(ec Config, source string) string {
	if ec.HostPathPrefix == "" || ec.DataRoot == "" {
		return source
	}
	if !strings.HasPrefix(source, ec.DataRoot) {
		return source
	}
	return ec.HostPathPrefix + source
}

// flattenEnv renders an env map as sorted KEY=value pairs.
func flattenEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// buildPorts renders published ports plus the exposed (but unpublished)
// service ports reached through the proxy network.
func buildPorts(ports []sandbox.Port, svc sandbox.Services) (nat.PortSet, nat.PortMap, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		port, err := nat.NewPort(proto, strconv.Itoa(p.Container))
		if err != nil {
			return nil, nil, err
		}
		exposed[port] = struct{}{}
		hostPort := ""
		if p.Host > 0 {
			hostPort = strconv.Itoa(p.Host)
		}
		bindings[port] = append(bindings[port], nat.PortBinding{HostPort: hostPort})
	}
	for _, sp := range []int{svc.App, svc.API, svc.Editor, svc.Desktop} {
		if sp <= 0 {
			continue
		}
		port, err := nat.NewPort("tcp", strconv.Itoa(sp))
		if err != nil {
			return nil, nil, err
		}
		exposed[port] = struct{}{}
	}
	return exposed, bindings, nil
}
