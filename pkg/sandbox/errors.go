package sandbox

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped) by orchestrator implementations.
// Callers classify failures with errors.Is; the wrapped message carries the
// operation and sandbox id.
var (
	// ErrRuntimeUnavailable means the container runtime socket could not
	// be reached at all.
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")
	// ErrNotFound means the sandbox does not exist. Only returned by
	// mutating operations; read operations report absence through their
	// zero values instead.
	ErrNotFound = errors.New("sandbox not found")
	// ErrImageNotFound means an image reference could not be resolved.
	ErrImageNotFound = errors.New("image not found")
	// ErrNetworkConflict means a network with the same name appeared
	// between the existence check and the create call.
	ErrNetworkConflict = errors.New("network already exists")
	// ErrInvalidConfig means the sandbox configuration cannot be realized.
	ErrInvalidConfig = errors.New("invalid sandbox config")
)

// ExecStartError is returned when the runtime refuses the stream upgrade
// for an interactive session. It keeps the raw HTTP status line for
// diagnosis.
type ExecStartError struct {
	ExecID     string
	StatusLine string
}

func (e *ExecStartError) Error() string {
	return fmt.Sprintf("exec %s start refused: %s", e.ExecID, e.StatusLine)
}

// IsNotFound reports whether err is the sandbox-absence error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
