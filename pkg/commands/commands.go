// Package commands defines the dockhand CLI verbs. Each constructor
// returns one self-contained *cli.Command; shared runtime wiring lives
// here.
package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/harborworks/dockhand/pkg/engine"
	"github.com/harborworks/dockhand/pkg/traefik"
)

// Version is stamped by the build; main overwrites it.
var Version = "dev"

// runtimeFlags is the minimal flag set every verb that talks to the
// container runtime carries.
func runtimeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "docker-host",
			Usage:   "Container runtime socket (defaults to the environment)",
			Sources: cli.EnvVars("DOCKHAND_DOCKER_HOST"),
		},
	}
}

// sandboxFlags extends runtimeFlags with the settings that shape new
// sandboxes. Only verbs that create containers or serve traffic need
// these.
func sandboxFlags() []cli.Flag {
	return append(runtimeFlags(),
		&cli.StringFlag{
			Name:    "network",
			Usage:   "Network sandboxes attach to",
			Sources: cli.EnvVars("DOCKHAND_NETWORK"),
		},
		&cli.StringFlag{
			Name:    "name-prefix",
			Usage:   "Container name prefix for managed sandboxes",
			Sources: cli.EnvVars("DOCKHAND_NAME_PREFIX"),
		},
		&cli.StringFlag{
			Name:    "data-root",
			Usage:   "Directory sandbox bind mounts live under",
			Sources: cli.EnvVars("DOCKHAND_DATA_ROOT"),
		},
		&cli.StringFlag{
			Name:    "host-path-prefix",
			Usage:   "Host path prefix substituted for data-root when the orchestrator runs containerized",
			Sources: cli.EnvVars("DOCKHAND_HOST_PATH_PREFIX"),
		},
		&cli.StringFlag{
			Name:    "proxy-domain",
			Usage:   "Base domain sandbox routes are published under",
			Sources: cli.EnvVars("DOCKHAND_PROXY_DOMAIN"),
		},
		&cli.StringFlag{
			Name:    "proxy-network",
			Usage:   "Network the edge proxy reaches sandboxes on",
			Sources: cli.EnvVars("DOCKHAND_PROXY_NETWORK"),
		},
		&cli.BoolFlag{
			Name:    "proxy-tls",
			Usage:   "Publish https routes instead of http",
			Sources: cli.EnvVars("DOCKHAND_PROXY_TLS"),
		},
		&cli.StringFlag{
			Name:    "proxy-cert-resolver",
			Usage:   "Certificate resolver for TLS routes",
			Sources: cli.EnvVars("DOCKHAND_PROXY_CERT_RESOLVER"),
		},
		&cli.BoolFlag{
			Name:    "no-proxy",
			Usage:   "Disable edge proxy route generation",
			Sources: cli.EnvVars("DOCKHAND_NO_PROXY"),
		},
		&cli.BoolFlag{
			Name:    "quota-volumes",
			Usage:   "Provision size-limited workspace volumes from the tier disk quota (needs volume driver support)",
			Sources: cli.EnvVars("DOCKHAND_QUOTA_VOLUMES"),
		},
	)
}

// newClient builds the Docker-backed orchestrator from the command's
// flags. Flags a verb does not declare read as zero values and fall back
// to engine defaults.
func newClient(c *cli.Command) (*engine.Client, error) {
	cfg := engine.Config{
		Host:           c.String("docker-host"),
		NamePrefix:     c.String("name-prefix"),
		Network:        c.String("network"),
		DataRoot:       c.String("data-root"),
		HostPathPrefix: c.String("host-path-prefix"),
		QuotaVolumes:   c.Bool("quota-volumes"),
		Proxy: traefik.Config{
			Enabled:      !c.Bool("no-proxy") && c.String("proxy-domain") != "",
			Domain:       c.String("proxy-domain"),
			Network:      c.String("proxy-network"),
			TLS:          c.Bool("proxy-tls"),
			CertResolver: c.String("proxy-cert-resolver"),
		},
	}

	client, err := engine.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to runtime: %w", err)
	}
	return client, nil
}

// humanAge returns a duration since t using the shortest unit: "30s",
// "5m", "2h", "3d".
func humanAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// promptYN reads one line and normalizes it for yes/no matching.
func promptYN(r io.Reader) string {
	answer, _ := bufio.NewReader(r).ReadString('\n')
	return strings.TrimSpace(strings.ToLower(answer))
}

// shortID trims a runtime container id down to the familiar 12 chars.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
