// Package sandbox defines the data model and the orchestration contract for
// container-backed development sandboxes. Implementations live elsewhere
// (pkg/engine provides the Docker one); consumers program against the
// Orchestrator interface and the plain types here.
package sandbox

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harborworks/dockhand/pkg/limits"
)

// Config describes a sandbox to create. It is read once during creation
// and never mutated by the orchestrator.
type Config struct {
	// ID is the stable sandbox identifier. Generated with NewID when empty.
	ID string
	// Slug is the URL-friendly name routes are published under. Must pass
	// ValidateSlug when set.
	Slug string
	// Name is the human-facing display name. Defaults to the slug.
	Name string
	// Image is the container image reference to run.
	Image string

	Env     map[string]string
	Command []string
	WorkDir string
	User    string

	Mounts []Mount
	Ports  []Port
	// Labels are merged under the orchestrator's own label namespace.
	// Managed keys win on collision.
	Labels map[string]string

	// Network overrides the orchestrator's default sandbox network.
	Network string

	// Tier selects the resource tier; Resources overrides individual
	// limits on top of it.
	Tier      string
	Resources limits.Resources

	// Services lists the container ports of the well-known sandbox
	// services used for route and URL generation.
	Services Services
}

// Services holds the container ports of the well-known sandbox services.
// A zero port means the service is not exposed.
type Services struct {
	App     int
	API     int
	Editor  int
	Desktop int
}

// MountKind distinguishes bind mounts from named volumes.
type MountKind string

const (
	MountBind   MountKind = "bind"
	MountVolume MountKind = "volume"
)

// Mount attaches a host path or named volume into the sandbox.
type Mount struct {
	// Source is the host path (bind) or volume name (volume).
	Source string
	// Target is the absolute path inside the sandbox.
	Target   string
	ReadOnly bool
	Kind     MountKind
}

// String renders the runtime bind string "source:target:mode".
func (m Mount) String() string {
	mode := "rw"
	if m.ReadOnly {
		mode = "ro"
	}
	return m.Source + ":" + m.Target + ":" + mode
}

// ParseMount parses "source:target[:ro|rw]". Sources that are not absolute
// paths are treated as named volumes.
func ParseMount(s string) (Mount, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Mount{}, fmt.Errorf("invalid mount %q, want source:target[:ro|rw]", s)
	}
	m := Mount{Source: parts[0], Target: parts[1], Kind: MountBind}
	if m.Source == "" || m.Target == "" {
		return Mount{}, fmt.Errorf("invalid mount %q, empty source or target", s)
	}
	if !strings.HasPrefix(m.Source, "/") {
		m.Kind = MountVolume
	}
	if len(parts) == 3 {
		switch parts[2] {
		case "ro":
			m.ReadOnly = true
		case "rw":
		default:
			return Mount{}, fmt.Errorf("invalid mount mode %q, want ro or rw", parts[2])
		}
	}
	return m, nil
}

// Port publishes a container port on the host.
type Port struct {
	// Container is the port inside the sandbox.
	Container int
	// Host is the host port; zero lets the runtime pick one.
	Host int
	// Protocol is "tcp" or "udp"; empty means tcp.
	Protocol string
}

// String renders "host:container/protocol", omitting an unset host port.
func (p Port) String() string {
	proto := p.Protocol
	if proto == "" {
		proto = "tcp"
	}
	if p.Host > 0 {
		return fmt.Sprintf("%d:%d/%s", p.Host, p.Container, proto)
	}
	return fmt.Sprintf("%d/%s", p.Container, proto)
}

// ParsePort parses "[host:]container[/protocol]".
func ParsePort(s string) (Port, error) {
	p := Port{Protocol: "tcp"}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		proto := s[i+1:]
		if proto != "tcp" && proto != "udp" {
			return Port{}, fmt.Errorf("invalid port protocol %q, want tcp or udp", proto)
		}
		p.Protocol = proto
		s = s[:i]
	}
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		c, err := parsePortNumber(parts[0], false)
		if err != nil {
			return Port{}, err
		}
		p.Container = c
	case 2:
		h, err := parsePortNumber(parts[0], true)
		if err != nil {
			return Port{}, err
		}
		c, err := parsePortNumber(parts[1], false)
		if err != nil {
			return Port{}, err
		}
		p.Host, p.Container = h, c
	default:
		return Port{}, fmt.Errorf("invalid port %q, want [host:]container[/protocol]", s)
	}
	return p, nil
}

func parsePortNumber(s string, allowZero bool) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 65535 || (n == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid port number %q", s)
	}
	return n, nil
}

// Sandbox is the projected view of one sandbox, derived from the runtime
// on every read. Nothing here is cached.
type Sandbox struct {
	ID          string            `json:"id"`
	ContainerID string            `json:"containerId"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Image       string            `json:"image"`
	Status      Status            `json:"status"`
	Health      string            `json:"health,omitempty"`
	Tier        string            `json:"tier,omitempty"`
	URLs        map[string]string `json:"urls,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	StartedAt   time.Time         `json:"startedAt,omitzero"`
	ExitCode    int               `json:"exitCode,omitempty"`

	// Stats carries a live usage snapshot when the caller asked for one
	// alongside the projection. Plain reads leave it nil.
	Stats *Stats `json:"stats,omitempty"`
}

// Stats is a point-in-time resource usage snapshot.
type Stats struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryUsage   uint64  `json:"memoryUsage"`
	MemoryLimit   uint64  `json:"memoryLimit"`
	MemoryPercent float64 `json:"memoryPercent"`
	NetworkRx     uint64  `json:"networkRx"`
	NetworkTx     uint64  `json:"networkTx"`
	BlockRead     uint64  `json:"blockRead"`
	BlockWrite    uint64  `json:"blockWrite"`
	PIDs          uint64  `json:"pids"`
}

// Image is the projected view of a local image.
type Image struct {
	ID        string    `json:"id"`
	Tags      []string  `json:"tags,omitempty"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// Network is the projected view of a sandbox network.
type Network struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Driver string            `json:"driver"`
	Labels map[string]string `json:"labels,omitempty"`
}

// RuntimeInfo summarizes the container runtime behind the orchestrator.
type RuntimeInfo struct {
	Name              string `json:"name"`
	ServerVersion     string `json:"serverVersion"`
	APIVersion        string `json:"apiVersion"`
	Containers        int    `json:"containers"`
	ContainersRunning int    `json:"containersRunning"`
	Images            int    `json:"images"`
	OS                string `json:"os"`
	Architecture      string `json:"architecture"`
	CPUs              int    `json:"cpus"`
	Memory            int64  `json:"memory"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	// Status keeps only sandboxes whose projected status matches.
	Status Status
	// Name matches the sandbox name or slug (substring).
	Name string
	// Labels requires every given key (and value, when non-empty).
	Labels map[string]string
	// CreatedAfter/CreatedBefore bound the creation time.
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// LogOptions selects which log lines to fetch.
type LogOptions struct {
	// Tail limits output to the last N lines; zero means everything.
	Tail int
	// Since drops lines older than the given time.
	Since time.Time
	// Timestamps prefixes every line with its timestamp.
	Timestamps bool
}

// ExecOptions adjusts a request/response command execution.
type ExecOptions struct {
	WorkDir string
	User    string
	Env     map[string]string
}

// ExecResult is the outcome of a request/response command execution.
type ExecResult struct {
	ExitCode int    `json:"exitCode"`
	Output   string `json:"output"`
}

// TerminalOptions adjusts an interactive terminal session.
type TerminalOptions struct {
	// Shell overrides shell detection with an explicit binary path.
	Shell   string
	WorkDir string
	User    string
	Env     map[string]string
	// Width and Height set the initial terminal size; zero skips the
	// initial resize.
	Width  uint
	Height uint
}

// Event is one sandbox lifecycle change observed on the runtime.
type Event struct {
	SandboxID   string    `json:"sandboxId"`
	ContainerID string    `json:"containerId"`
	// Action is the raw runtime action ("start", "die", "oom", ...).
	Action string `json:"action"`
	// Status is the sandbox status implied by the action, or unknown when
	// the action does not map to one.
	Status Status    `json:"status"`
	Time   time.Time `json:"time"`
}
