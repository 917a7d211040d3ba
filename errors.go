package botkeeper

import "github.com/pkg/errors"

var (
	// ErrAlreadyRunning is returned by Start while a worker is running,
	// starting, or still unwinding after a timed-out stop.
	ErrAlreadyRunning = errors.New("bot worker is already running")
	// ErrNotRunning is returned by Stop when there is no worker to stop.
	ErrNotRunning = errors.New("bot worker is not running")
	// ErrStopTimeout is returned by Restart when the previous worker did not
	// terminate within the grace period, so a new one cannot be started yet.
	ErrStopTimeout = errors.New("previous bot worker did not terminate within the grace period")
)

// SetupError reports that the session factory could not initialize the
// messaging backend. The supervisor records its message as the last error
// and returns to idle.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return "bot setup failed: " + e.Err.Error()
}

func (e *SetupError) Unwrap() error { return e.Err }

// StopResult is the outcome of a stop request. A timed-out stop is a
// degraded success, not a failure: the shutdown signal stays set and the
// worker will exit on its own, the caller just gave up waiting.
type StopResult struct {
	// Clean is true when the worker terminated within the grace period.
	Clean bool
	// TimedOut is true when the grace period elapsed before termination.
	TimedOut bool
}
