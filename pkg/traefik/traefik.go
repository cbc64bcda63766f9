// Package traefik generates the container labels a Traefik reverse proxy
// reads to route public traffic into sandboxes. Nothing here talks to
// Traefik; the label map is the whole contract.
package traefik

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Config is the proxy-wide routing configuration shared by every sandbox.
type Config struct {
	// Enabled gates label generation. When false, sandboxes carry a single
	// opt-out label so an attached Traefik ignores them entirely.
	Enabled bool
	// Network names the docker network Traefik reaches containers on.
	Network string
	// Domain is the base domain routes are published under.
	Domain string
	// HTTPEntrypoint and HTTPSEntrypoint name the Traefik entrypoints.
	// Empty values fall back to "web" and "websecure".
	HTTPEntrypoint  string
	HTTPSEntrypoint string
	// TLS selects the HTTPS entrypoint and certificate wiring for routes
	// built by SandboxRoutes.
	TLS bool
	// CertResolver is the Traefik certificate resolver for TLS routes.
	CertResolver string
}

func (c Config) withDefaults() Config {
	if c.HTTPEntrypoint == "" {
		c.HTTPEntrypoint = "web"
	}
	if c.HTTPSEntrypoint == "" {
		c.HTTPSEntrypoint = "websecure"
	}
	return c
}

// Route describes one published route into a sandbox.
type Route struct {
	// Name is the Traefik router/service name. Sanitized before use; must
	// be unique across all containers Traefik watches.
	Name string
	// Service is the logical service this route exposes ("app", "api",
	// "editor", "desktop"). Used to key URL metadata; empty is fine for
	// ad-hoc routes.
	Service string
	// Port is the container port the route forwards to.
	Port int
	// Subdomain is joined with the domain to form the Host rule. Empty
	// publishes on the bare domain.
	Subdomain string
	// Domain overrides Config.Domain for this route.
	Domain string
	// TLS selects the HTTPS entrypoint and certificate wiring.
	TLS bool
	// CertResolver overrides Config.CertResolver.
	CertResolver string
	// PathPrefix narrows the rule to a path below the host.
	PathPrefix string
	// StripPrefix installs a middleware removing PathPrefix before the
	// request reaches the sandbox.
	StripPrefix bool
	// Middlewares lists additional middleware names to attach.
	Middlewares []string
	// Priority orders this router relative to others; zero lets Traefik
	// decide.
	Priority int
}

// Host returns the fully qualified hostname the route answers on.
func (r Route) Host(cfg Config) string {
	domain := r.Domain
	if domain == "" {
		domain = cfg.Domain
	}
	if r.Subdomain == "" {
		return domain
	}
	return r.Subdomain + "." + domain
}

// Labels renders the complete label map for a set of routes. The same
// inputs always produce the same map. With the proxy disabled the map is
// exactly the single opt-out label, regardless of routes.
func Labels(cfg Config, routes []Route) map[string]string {
	if !cfg.Enabled {
		return map[string]string{"traefik.enable": "false"}
	}
	cfg = cfg.withDefaults()

	labels := map[string]string{"traefik.enable": "true"}
	if cfg.Network != "" {
		labels["traefik.docker.network"] = cfg.Network
	}
	for _, r := range routes {
		name := Sanitize(r.Name)
		router := "traefik.http.routers." + name

		rule := fmt.Sprintf("Host(`%s`)", r.Host(cfg))
		if r.PathPrefix != "" {
			rule += fmt.Sprintf(" && PathPrefix(`%s`)", r.PathPrefix)
		}
		labels[router+".rule"] = rule
		labels[router+".service"] = name
		labels["traefik.http.services."+name+".loadbalancer.server.port"] = strconv.Itoa(r.Port)

		if r.TLS {
			labels[router+".entrypoints"] = cfg.HTTPSEntrypoint
			labels[router+".tls"] = "true"
			resolver := r.CertResolver
			if resolver == "" {
				resolver = cfg.CertResolver
			}
			if resolver != "" {
				labels[router+".tls.certresolver"] = resolver
			}
		} else {
			labels[router+".entrypoints"] = cfg.HTTPEntrypoint
		}

		if r.Priority > 0 {
			labels[router+".priority"] = strconv.Itoa(r.Priority)
		}

		middlewares := append([]string(nil), r.Middlewares...)
		if r.StripPrefix && r.PathPrefix != "" {
			strip := name + "-strip"
			labels["traefik.http.middlewares."+strip+".stripprefix.prefixes"] = r.PathPrefix
			middlewares = append([]string{strip}, middlewares...)
		}
		if len(middlewares) > 0 {
			labels[router+".middlewares"] = strings.Join(middlewares, ",")
		}
	}
	return labels
}

// URL returns the public URL for a route.
func (r Route) URL(cfg Config) string {
	scheme := "http"
	if r.TLS {
		scheme = "https"
	}
	u := scheme + "://" + r.Host(cfg)
	if r.PathPrefix != "" {
		u += r.PathPrefix
	}
	return u
}

// URLMap returns the public URL per logical service for a route set.
// Routes without a Service name are skipped.
func URLMap(cfg Config, routes []Route) map[string]string {
	urls := make(map[string]string, len(routes))
	for _, r := range routes {
		if r.Service == "" {
			continue
		}
		urls[r.Service] = r.URL(cfg)
	}
	return urls
}

// Services holds the container ports of the well-known sandbox services.
// A zero port means the service is not exposed.
type Services struct {
	App     int
	API     int
	Editor  int
	Desktop int
}

// SandboxRoutes composes the fixed route set for one sandbox: the main app
// on the sandbox's own subdomain, the API on "api-<slug>", and the optional
// code editor and remote desktop on "editor-"/"desktop-" subdomains. Router
// names embed the sandbox id so they stay unique across sandboxes. A
// disabled proxy yields no routes: without it there are no public URLs.
func SandboxRoutes(id, slug string, cfg Config, svc Services) []Route {
	if !cfg.Enabled {
		return nil
	}
	sub := slug
	if sub == "" {
		sub = id
	}
	var routes []Route
	add := func(service, subdomain string, port int) {
		if port <= 0 {
			return
		}
		routes = append(routes, Route{
			Name:      service + "-" + id,
			Service:   service,
			Port:      port,
			Subdomain: subdomain,
			TLS:       cfg.TLS,
		})
	}
	add("app", sub, svc.App)
	add("api", "api-"+sub, svc.API)
	add("editor", "editor-"+sub, svc.Editor)
	add("desktop", "desktop-"+sub, svc.Desktop)
	return routes
}

// Sanitize maps an arbitrary route name onto the character set Traefik
// accepts for router names: lowercase alphanumerics, dash and underscore.
// Runs of other characters collapse into a single dash.
func Sanitize(name string) string {
	var b strings.Builder
	lastDash := true // swallow leading dashes
	for _, c := range strings.ToLower(name) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
			b.WriteRune(c)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if s == "" {
		return "route"
	}
	return s
}

// SortedKeys returns the label keys in stable order, for logging and tests.
func SortedKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
