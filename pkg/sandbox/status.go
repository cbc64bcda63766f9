package sandbox

// Status is the sandbox-level lifecycle state projected from the runtime.
type Status string

const (
	StatusCreating   Status = "creating"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusRestarting Status = "restarting"
	StatusStopped    Status = "stopped"
	StatusExited     Status = "exited"
	StatusRemoving   Status = "removing"
	StatusDead       Status = "dead"
	// StatusError is reported for runtime events that signal failure
	// (out-of-memory kills and the like) rather than a normal transition.
	StatusError Status = "error"
	// StatusUnknown is reported when the sandbox cannot be found or its
	// state cannot be determined. Read operations return it instead of
	// failing.
	StatusUnknown Status = "unknown"
)

// State carries the raw runtime state flags a status is projected from.
type State struct {
	// Phase is the runtime's own lifecycle word: created, running, paused,
	// restarting, removing, exited or dead.
	Phase      string
	Running    bool
	Paused     bool
	Restarting bool
	Dead       bool
	ExitCode   int
	Error      string
}

// ProjectStatus maps raw runtime state onto a Status. The precedence is
// fixed: dead wins over everything, a running container may be refined to
// paused or restarting, and only then the lifecycle phase is consulted.
// Every input maps to exactly one status; a nil state is unknown.
func ProjectStatus(s *State) Status {
	if s == nil {
		return StatusUnknown
	}
	if s.Dead {
		return StatusDead
	}
	if s.Running {
		switch {
		case s.Paused:
			return StatusPaused
		case s.Restarting:
			return StatusRestarting
		default:
			return StatusRunning
		}
	}
	switch s.Phase {
	case "created":
		return StatusCreating
	case "exited":
		return StatusExited
	case "removing":
		return StatusRemoving
	}
	return StatusStopped
}
