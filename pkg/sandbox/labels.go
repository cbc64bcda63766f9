package sandbox

import "strings"

// Label keys the orchestrator stamps on every container it manages. The
// managed label is the ownership marker list and event queries filter on;
// the rest make a container self-describing so sandboxes can be projected
// from the runtime alone, without any stored state.
const (
	LabelManaged = "dockhand.managed"
	LabelID      = "dockhand.sandbox.id"
	LabelName    = "dockhand.sandbox.name"
	LabelSlug    = "dockhand.sandbox.slug"
	LabelTier    = "dockhand.sandbox.tier"

	// LabelURLPrefix prefixes one label per published service URL,
	// e.g. "dockhand.url.app".
	LabelURLPrefix = "dockhand.url."
)

// URLLabels renders a service→URL map into container labels.
func URLLabels(urls map[string]string) map[string]string {
	labels := make(map[string]string, len(urls))
	for service, url := range urls {
		labels[LabelURLPrefix+service] = url
	}
	return labels
}

// URLsFromLabels recovers the service→URL map from container labels.
func URLsFromLabels(labels map[string]string) map[string]string {
	urls := make(map[string]string)
	for k, v := range labels {
		if service, ok := strings.CutPrefix(k, LabelURLPrefix); ok && service != "" {
			urls[service] = v
		}
	}
	return urls
}
