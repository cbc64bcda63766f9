package engine

import (
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"

	"github.com/harborworks/dockhand/pkg/sandbox"
)

func TestProjectInspect(t *testing.T) {
	insp := container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:      "cid123",
			Name:    "/dockhand-k2abc",
			Created: "2026-08-01T10:00:00.123456789Z",
			State: &container.State{
				Status:    "running",
				Running:   true,
				StartedAt: "2026-08-01T10:00:01.5Z",
				Health:    &container.Health{Status: "healthy"},
			},
		},
		Config: &container.Config{
			Image: "ghcr.io/acme/devbox:latest",
			Labels: map[string]string{
				sandbox.LabelManaged:          "true",
				sandbox.LabelID:               "k2abc",
				sandbox.LabelName:             "misty-harbor-a1b2",
				sandbox.LabelSlug:             "misty-harbor-a1b2",
				sandbox.LabelTier:             "builder",
				"dockhand.url.app":            "http://misty-harbor-a1b2.sand.example.dev",
				"traefik.enable":              "true",
				"traefik.http.routers.x.rule": "Host(`x`)",
				"team":                        "platform",
			},
		},
	}

	sb := projectInspect(insp)
	if sb.ID != "k2abc" {
		t.Errorf("id = %q, want k2abc", sb.ID)
	}
	if sb.ContainerID != "cid123" {
		t.Errorf("container id = %q, want cid123", sb.ContainerID)
	}
	if sb.Status != sandbox.StatusRunning {
		t.Errorf("status = %q, want running", sb.Status)
	}
	if sb.Health != "healthy" {
		t.Errorf("health = %q, want healthy", sb.Health)
	}
	if sb.Image != "ghcr.io/acme/devbox:latest" {
		t.Errorf("image = %q", sb.Image)
	}
	if sb.Tier != "builder" || sb.Slug != "misty-harbor-a1b2" {
		t.Errorf("tier/slug = %q/%q", sb.Tier, sb.Slug)
	}
	wantCreated := time.Date(2026, 8, 1, 10, 0, 0, 123456789, time.UTC)
	if !sb.CreatedAt.Equal(wantCreated) {
		t.Errorf("created = %v, want %v", sb.CreatedAt, wantCreated)
	}
	if sb.StartedAt.IsZero() || sb.StartedAt.Before(wantCreated) {
		t.Errorf("started = %v, want after created", sb.StartedAt)
	}
	if sb.URLs["app"] != "http://misty-harbor-a1b2.sand.example.dev" {
		t.Errorf("urls = %v", sb.URLs)
	}
	if sb.Labels["team"] != "platform" {
		t.Errorf("user label missing: %v", sb.Labels)
	}
	for k := range sb.Labels {
		if k == "traefik.enable" || k == "traefik.http.routers.x.rule" {
			t.Errorf("proxy label %s leaked into projection", k)
		}
	}
}

func TestProjectInspectZeroStartedAt(t *testing.T) {
	insp := container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:      "cid9",
			Name:    "/dockhand-z9",
			Created: "2026-08-01T10:00:00Z",
			State: &container.State{
				Status:    "created",
				StartedAt: "0001-01-01T00:00:00Z",
			},
		},
		Config: &container.Config{Labels: map[string]string{sandbox.LabelID: "z9"}},
	}
	sb := projectInspect(insp)
	if !sb.StartedAt.IsZero() {
		t.Errorf("started = %v, want zero for never-started", sb.StartedAt)
	}
	if sb.Status != sandbox.StatusCreating {
		t.Errorf("status = %q, want creating", sb.Status)
	}
}

func TestProjectInspectLabelFallbacks(t *testing.T) {
	insp := container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:    "cid7",
			Name:  "/dockhand-legacy",
			State: &container.State{Status: "exited", ExitCode: 137},
		},
		Config: &container.Config{Image: "alpine"},
	}
	sb := projectInspect(insp)
	if sb.ID != "dockhand-legacy" {
		t.Errorf("id = %q, want container name fallback", sb.ID)
	}
	if sb.Name != "dockhand-legacy" {
		t.Errorf("name = %q, want container name fallback", sb.Name)
	}
	if sb.Status != sandbox.StatusExited || sb.ExitCode != 137 {
		t.Errorf("status/exit = %q/%d, want exited/137", sb.Status, sb.ExitCode)
	}
}

func TestProjectSummary(t *testing.T) {
	created := time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC)
	s := container.Summary{
		ID:      "cid55",
		Names:   []string{"/dockhand-p5"},
		Image:   "alpine",
		State:   "paused",
		Created: created.Unix(),
		Labels: map[string]string{
			sandbox.LabelID:   "p5",
			sandbox.LabelSlug: "calm-cove-9f9f",
		},
	}
	sb := projectSummary(s)
	if sb.ID != "p5" || sb.ContainerID != "cid55" {
		t.Errorf("ids = %q/%q", sb.ID, sb.ContainerID)
	}
	// Summaries carry only the phase word; paused must still project as
	// paused, not stopped.
	if sb.Status != sandbox.StatusPaused {
		t.Errorf("status = %q, want paused", sb.Status)
	}
	if !sb.CreatedAt.Equal(created) {
		t.Errorf("created = %v, want %v", sb.CreatedAt, created)
	}
}

func TestStateFromPhase(t *testing.T) {
	tests := []struct {
		phase string
		want  sandbox.Status
	}{
		{"created", sandbox.StatusCreating},
		{"running", sandbox.StatusRunning},
		{"paused", sandbox.StatusPaused},
		{"restarting", sandbox.StatusRestarting},
		{"removing", sandbox.StatusRemoving},
		{"exited", sandbox.StatusExited},
		{"dead", sandbox.StatusDead},
		{"", sandbox.StatusStopped},
	}
	for _, tt := range tests {
		t.Run("phase "+tt.phase, func(t *testing.T) {
			if got := sandbox.ProjectStatus(stateFromPhase(tt.phase)); got != tt.want {
				t.Errorf("phase %q projects %q, want %q", tt.phase, got, tt.want)
			}
		})
	}
}

func TestRuntimePhaseFor(t *testing.T) {
	tests := []struct {
		status sandbox.Status
		phase  string
		ok     bool
	}{
		{sandbox.StatusRunning, "running", true},
		{sandbox.StatusPaused, "paused", true},
		{sandbox.StatusCreating, "created", true},
		{sandbox.StatusExited, "exited", true},
		{sandbox.StatusDead, "dead", true},
		{sandbox.StatusRestarting, "restarting", true},
		{sandbox.StatusRemoving, "removing", true},
		{sandbox.StatusStopped, "", false},
		{sandbox.StatusError, "", false},
		{sandbox.StatusUnknown, "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		phase, ok := runtimePhaseFor(tt.status)
		if phase != tt.phase || ok != tt.ok {
			t.Errorf("runtimePhaseFor(%q) = %q/%v, want %q/%v", tt.status, phase, ok, tt.phase, tt.ok)
		}
	}
}

func TestMatchFilter(t *testing.T) {
	base := &sandbox.Sandbox{
		ID:        "k2abc",
		Name:      "Review Box",
		Slug:      "misty-harbor-a1b2",
		Status:    sandbox.StatusRunning,
		CreatedAt: time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC),
	}
	tests := []struct {
		name   string
		filter sandbox.Filter
		want   bool
	}{
		{"empty matches", sandbox.Filter{}, true},
		{"status match", sandbox.Filter{Status: sandbox.StatusRunning}, true},
		{"status mismatch", sandbox.Filter{Status: sandbox.StatusExited}, false},
		{"name substring", sandbox.Filter{Name: "review"}, true},
		{"slug substring", sandbox.Filter{Name: "harbor"}, true},
		{"id substring", sandbox.Filter{Name: "k2ab"}, true},
		{"name miss", sandbox.Filter{Name: "zebra"}, false},
		{"created after ok", sandbox.Filter{CreatedAfter: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}, true},
		{"created after miss", sandbox.Filter{CreatedAfter: time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)}, false},
		{"created before ok", sandbox.Filter{CreatedBefore: time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)}, true},
		{"created before miss", sandbox.Filter{CreatedBefore: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchFilter(base, tt.filter); got != tt.want {
				t.Errorf("matchFilter = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.NamePrefix != "dockhand" || cfg.Network != "dockhand" {
		t.Errorf("prefix/network = %q/%q", cfg.NamePrefix, cfg.Network)
	}
	if cfg.StopTimeout != 10*time.Second {
		t.Errorf("stop timeout = %v, want 10s", cfg.StopTimeout)
	}
	if cfg.WorkspaceDir != "/workspace" {
		t.Errorf("workspace dir = %q", cfg.WorkspaceDir)
	}
	if len(cfg.ShellCandidates) == 0 || cfg.ShellCandidates[len(cfg.ShellCandidates)-1] != "/bin/sh" {
		t.Errorf("shell candidates = %v, want /bin/sh last", cfg.ShellCandidates)
	}

	set := Config{NamePrefix: "sbx", Network: "edge", StopTimeout: time.Minute}.withDefaults()
	if set.NamePrefix != "sbx" || set.Network != "edge" || set.StopTimeout != time.Minute {
		t.Errorf("explicit values overridden: %+v", set)
	}
}
