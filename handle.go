package botkeeper

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// Handle identifies one run of the polling worker. Every start mints a new
// Handle with a strictly increasing generation, so a completion callback
// from a superseded worker can be detected and ignored.
type Handle struct {
	id         string
	generation uint64
	cancel     context.CancelFunc

	// ready is closed by the worker goroutine once it has entered its
	// execution context and is about to serve.
	ready chan struct{}
	// done is closed after the session loop has returned and the session
	// is disposed. Liveness checks and stop-joins key off this channel.
	done chan struct{}

	stopFlag int32
}

func newHandle(generation uint64, cancel context.CancelFunc) *Handle {
	return &Handle{
		id:         uuid.New().String(),
		generation: generation,
		cancel:     cancel,
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// ContextID returns the unique id of the worker's execution context.
func (h *Handle) ContextID() string { return h.id }

// Generation returns the lifecycle generation this handle belongs to.
func (h *Handle) Generation() uint64 { return h.generation }

// requestStop marks this generation as intentionally stopped and cancels
// the worker's context. The flag must be set before the cancellation so the
// termination handler can tell a requested stop from a fault.
func (h *Handle) requestStop() {
	atomic.StoreInt32(&h.stopFlag, 1)
	h.cancel()
}

func (h *Handle) stopRequested() bool {
	return atomic.LoadInt32(&h.stopFlag) == 1
}

// alive reports whether the worker's execution context has not yet
// terminated.
func (h *Handle) alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
