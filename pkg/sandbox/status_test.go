package sandbox

import "testing"

func TestProjectStatus(t *testing.T) {
	tests := []struct {
		name  string
		state *State
		want  Status
	}{
		{
			name:  "nil state",
			state: nil,
			want:  StatusUnknown,
		},
		{
			name:  "dead wins over running",
			state: &State{Phase: "dead", Running: true, Dead: true},
			want:  StatusDead,
		},
		{
			name:  "dead wins over paused",
			state: &State{Phase: "dead", Running: true, Paused: true, Dead: true},
			want:  StatusDead,
		},
		{
			name:  "paused beats restarting",
			state: &State{Phase: "running", Running: true, Paused: true, Restarting: true},
			want:  StatusPaused,
		},
		{
			name:  "restarting",
			state: &State{Phase: "running", Running: true, Restarting: true},
			want:  StatusRestarting,
		},
		{
			name:  "plain running",
			state: &State{Phase: "running", Running: true},
			want:  StatusRunning,
		},
		{
			name:  "created",
			state: &State{Phase: "created"},
			want:  StatusCreating,
		},
		{
			name:  "exited",
			state: &State{Phase: "exited", ExitCode: 1},
			want:  StatusExited,
		},
		{
			name:  "removing",
			state: &State{Phase: "removing"},
			want:  StatusRemoving,
		},
		{
			name:  "unrecognized phase falls back to stopped",
			state: &State{Phase: "sleeping"},
			want:  StatusStopped,
		},
		{
			name:  "empty phase falls back to stopped",
			state: &State{},
			want:  StatusStopped,
		},
		{
			name:  "paused flag without running still projects from phase",
			state: &State{Phase: "exited", Paused: true},
			want:  StatusExited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProjectStatus(tt.state); got != tt.want {
				t.Errorf("ProjectStatus(%+v) = %q, want %q", tt.state, got, tt.want)
			}
		})
	}
}

// Projection is total: any combination of the boolean flags with any phase
// yields exactly one of the ten statuses.
func TestProjectStatusTotal(t *testing.T) {
	known := map[Status]bool{
		StatusCreating: true, StatusRunning: true, StatusPaused: true,
		StatusRestarting: true, StatusStopped: true, StatusExited: true,
		StatusRemoving: true, StatusDead: true, StatusError: true,
		StatusUnknown: true,
	}
	phases := []string{"created", "running", "paused", "restarting", "removing", "exited", "dead", "", "bogus"}
	for _, phase := range phases {
		for mask := 0; mask < 16; mask++ {
			s := &State{
				Phase:      phase,
				Running:    mask&1 != 0,
				Paused:     mask&2 != 0,
				Restarting: mask&4 != 0,
				Dead:       mask&8 != 0,
			}
			got := ProjectStatus(s)
			if !known[got] {
				t.Fatalf("ProjectStatus(%+v) = %q, not a known status", s, got)
			}
			if again := ProjectStatus(s); again != got {
				t.Fatalf("ProjectStatus(%+v) not deterministic: %q then %q", s, got, again)
			}
		}
	}
}
