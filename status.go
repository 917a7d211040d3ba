package botkeeper

import (
	"fmt"
	"time"
)

// Status is a read-only projection of the supervisor state. All fields are
// taken under one lock, so a snapshot can never pair running=true with a
// missing start time or a stale context id.
type Status struct {
	Running           bool   `json:"running"`
	State             string `json:"state"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	LastError         string `json:"last_error,omitempty"`
	ShutdownRequested bool   `json:"shutdown_requested"`
	// WorkerAlive reports whether the worker's execution context has not
	// terminated yet. It may stay true for a short while after a stop
	// request, until the worker actually unwinds.
	WorkerAlive bool   `json:"worker_alive"`
	ContextID   string `json:"context_id,omitempty"`
	Generation  uint64 `json:"generation"`
}

// UptimeFormatted renders the uptime as "1h 2m 3s".
func (st Status) UptimeFormatted() string {
	u := st.UptimeSeconds
	return fmt.Sprintf("%dh %dm %ds", u/3600, (u%3600)/60, u%60)
}

// Status returns a consistent snapshot of the supervisor state. Safe to call
// from any number of concurrent readers while a transition is in flight.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.lifecycle.State()
	st := Status{
		Running:           state == StateRunning,
		State:             string(state),
		LastError:         s.lastError,
		ShutdownRequested: s.shutdownRequested,
		Generation:        s.generation,
	}
	if s.handle != nil {
		st.ContextID = s.handle.id
		st.WorkerAlive = s.handle.alive()
	}
	if st.Running && !s.startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(s.startedAt).Seconds())
	}
	return st
}
