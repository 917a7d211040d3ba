package botkeeper

import (
	"context"
	"sync"
	"time"

	"github.com/lancer-kit/sam"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Lifecycle states of the supervised bot worker.
const (
	StateIdle          sam.State = "Idle"
	StateStarting      sam.State = "Starting"
	StateRunning       sam.State = "Running"
	StateStopRequested sam.State = "StopRequested"
)

// newLifecycleSM returns the filled state machine of the worker lifecycle.
//
// (*) -> [Idle] -> [Starting] -> [Running] -> [StopRequested]
//          ↑ ↑________|  ↑__________|  |            |
//          |____________________________|____________|
func newLifecycleSM() (sam.StateMachine, error) {
	machine := sam.NewStateMachine()
	machine.
		AddTransitions(StateIdle, StateStarting).
		AddTransitions(StateStarting, StateRunning, StateIdle).
		AddTransitions(StateRunning, StateStopRequested, StateIdle).
		AddTransitions(StateStopRequested, StateIdle)
	if err := machine.Error(); err != nil {
		return machine, err
	}
	if err := machine.SetState(StateIdle); err != nil {
		return machine, err
	}
	return machine, nil
}

const (
	// DefaultStopGracePeriod bounds how long Stop waits for the worker's
	// execution context to join before reporting a timed-out stop.
	DefaultStopGracePeriod = 10 * time.Second
	// DefaultStartTimeout bounds how long Start waits for the worker to
	// confirm it entered its serve loop.
	DefaultStartTimeout = 5 * time.Second
)

// Opts are the tunables of the Supervisor.
type Opts struct {
	StopGracePeriod time.Duration
	StartTimeout    time.Duration
}

func (o Opts) withDefaults() Opts {
	if o.StopGracePeriod <= 0 {
		o.StopGracePeriod = DefaultStopGracePeriod
	}
	if o.StartTimeout <= 0 {
		o.StartTimeout = DefaultStartTimeout
	}
	return o
}

// Supervisor owns one slot for "the current bot worker". It launches the
// polling loop on a dedicated goroutine, observes its liveness, records its
// terminal error, and exposes start/stop/restart/status operations that are
// safe to call concurrently with the worker and with each other.
//
// Two locks split the concerns: opMu serializes whole start/stop/restart
// transitions (only one in flight at a time), mu guards the shared state
// record so Status always reads a consistent snapshot.
type Supervisor struct {
	logger  *logrus.Entry
	factory SessionFactory
	opts    Opts
	events  EventHandler

	// confirmGate, when non-nil, runs on the worker goroutine before it
	// confirms startup. Stubbed in tests to simulate a worker that stalls
	// before entering its serve loop.
	confirmGate func()

	opMu sync.Mutex

	mu                sync.Mutex
	lifecycle         sam.StateMachine
	generation        uint64
	handle            *Handle
	startedAt         time.Time
	lastError         string
	shutdownRequested bool
}

// NewSupervisor builds a Supervisor over the passed session factory.
func NewSupervisor(factory SessionFactory, logger *logrus.Entry, opts Opts) (*Supervisor, error) {
	lifecycle, err := newLifecycleSM()
	if err != nil {
		return nil, errors.Wrap(err, "lifecycle state machine")
	}

	s := &Supervisor{
		logger:    logger.WithField("service", "bot-supervisor"),
		factory:   factory,
		opts:      opts.withDefaults(),
		lifecycle: lifecycle,
	}
	s.events = LogrusEventHandler(s.logger)
	return s, nil
}

// SetEventHandler replaces the default logrus event sink. Must be called
// before the first Start.
func (s *Supervisor) SetEventHandler(handler EventHandler) {
	if handler != nil {
		s.events = handler
	}
}

// SetFactory sets the session factory. NewSupervisor accepts a nil factory
// so that collaborators needing a reference back to the supervisor (the
// bot-side status command does) can be wired in two phases; it must be set
// before the first Start.
func (s *Supervisor) SetFactory(factory SessionFactory) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.factory = factory
}

// Start initializes a fresh session and launches the polling worker on a new
// execution context. It returns the context id of the launched worker once
// the worker has confirmed it entered its serve loop, or an error:
// ErrAlreadyRunning when a worker is live (or still unwinding), *SetupError
// when the messaging backend could not initialize.
func (s *Supervisor) Start() (string, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.start()
}

// Stop sets the shutdown signal of the current worker and waits for its
// execution context to join, bounded by the grace period. ErrNotRunning is
// returned when there is nothing to stop; a timed-out wait is reported
// through StopResult, not as an error.
func (s *Supervisor) Stop() (StopResult, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.stop()
}

// Restart composes stop and start under a single transition lock, so it can
// not interleave with a concurrent Start or Stop. A stop that is ignored
// because the worker is already idle is not an error.
func (s *Supervisor) Restart() (string, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	res, err := s.stop()
	if err != nil && !errors.Is(err, ErrNotRunning) {
		return "", err
	}
	if res.TimedOut {
		return "", ErrStopTimeout
	}
	return s.start()
}

func (s *Supervisor) start() (string, error) {
	if s.factory == nil {
		return "", &SetupError{Err: errors.New("no session factory configured")}
	}

	s.mu.Lock()
	// A non-nil handle covers Running, Starting, and the zombie window
	// after a timed-out stop: never double-start over a live context.
	if s.handle != nil {
		s.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	if err := s.lifecycle.GoTo(StateStarting); err != nil {
		s.mu.Unlock()
		return "", errors.Wrap(err, "start transition")
	}
	s.mu.Unlock()

	session, err := s.factory.NewSession()
	if err != nil {
		setupErr := &SetupError{Err: err}
		s.mu.Lock()
		s.lastError = setupErr.Error()
		_ = s.lifecycle.GoTo(StateIdle)
		s.mu.Unlock()

		s.events(ErrorEvent("bot setup failed").SetField("error", err.Error()))
		return "", setupErr
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.generation++
	handle := newHandle(s.generation, cancel)
	s.handle = handle
	s.shutdownRequested = false
	s.mu.Unlock()

	go s.runSession(ctx, handle, session)

	select {
	case <-handle.ready:
	case <-time.After(s.opts.StartTimeout):
		handle.requestStop()
		s.mu.Lock()
		s.lastError = "worker did not confirm startup in time"
		s.mu.Unlock()

		s.events(ErrorEvent("bot startup confirmation timed out").
			SetField("context_id", handle.id))
		return "", &SetupError{Err: errors.New("startup confirmation timeout")}
	}

	s.mu.Lock()
	if s.handle != handle {
		// Died right after confirming: finish already reconciled the state,
		// so surface the recorded error as a failed start.
		lastErr := s.lastError
		s.mu.Unlock()
		if lastErr == "" {
			lastErr = "worker exited before entering its serve loop"
		}
		return "", &SetupError{Err: errors.New(lastErr)}
	}
	s.startedAt = time.Now()
	s.lastError = ""
	_ = s.lifecycle.GoTo(StateRunning)
	s.mu.Unlock()

	s.events(InfoEvent("bot worker started").
		SetField("context_id", handle.id).
		SetField("generation", handle.generation))
	return handle.id, nil
}

func (s *Supervisor) stop() (StopResult, error) {
	s.mu.Lock()
	handle := s.handle
	if handle == nil {
		s.mu.Unlock()
		return StopResult{}, ErrNotRunning
	}
	if s.lifecycle.State() == StateRunning {
		_ = s.lifecycle.GoTo(StateStopRequested)
	}
	s.shutdownRequested = true
	s.mu.Unlock()

	handle.requestStop()

	select {
	case <-handle.done:
		s.events(InfoEvent("bot worker stopped").
			SetField("context_id", handle.id))
		return StopResult{Clean: true}, nil
	case <-time.After(s.opts.StopGracePeriod):
		// The shutdown signal stays set: the worker will still exit on its
		// next poll, the caller just stops waiting for the join.
		s.events(WarnEvent("bot worker did not stop within the grace period").
			SetField("context_id", handle.id))
		return StopResult{TimedOut: true}, nil
	}
}

// runSession hosts one worker generation: it confirms entry into the serve
// loop, runs the session until shutdown or fault, disposes the session, and
// reconciles the shared state.
func (s *Supervisor) runSession(ctx context.Context, handle *Handle, session Session) {
	defer close(handle.done)
	defer handle.cancel()

	if s.confirmGate != nil {
		s.confirmGate()
	}
	close(handle.ready)
	runErr := session.Run(ctx)

	if err := session.Close(); err != nil {
		s.logger.WithError(err).
			WithField("context_id", handle.id).
			Warn("session dispose failed")
	}

	s.finish(handle, runErr)
}

// finish is the termination handler of a worker generation. It mutates the
// shared state only when its handle is still the current one: a stale
// (superseded) worker's completion must not clobber a newer generation.
func (s *Supervisor) finish(handle *Handle, runErr error) {
	s.mu.Lock()
	if s.handle != handle {
		s.mu.Unlock()
		s.events(InfoEvent("ignored completion of a superseded bot worker").
			SetField("context_id", handle.id).
			SetField("generation", handle.generation))
		return
	}

	s.handle = nil
	s.startedAt = time.Time{}

	faulted := runErr != nil && !handle.stopRequested() && !errors.Is(runErr, context.Canceled)
	if faulted {
		s.lastError = runErr.Error()
	}
	_ = s.lifecycle.GoTo(StateIdle)
	s.mu.Unlock()

	if faulted {
		s.events(ErrorEvent("bot worker faulted").
			SetField("context_id", handle.id).
			SetField("error", runErr.Error()))
		return
	}
	s.events(InfoEvent("bot worker finished").SetField("context_id", handle.id))
}
