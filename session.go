package botkeeper

import "context"

// Session is a single live connection to the messaging backend. It is owned
// by exactly one worker generation: the Supervisor builds a fresh Session
// through a SessionFactory on every start and never reuses one across
// generations.
type Session interface {
	// Run blocks inside the polling loop until ctx is canceled or the loop
	// dies with a fatal error. A nil return means the loop exited cleanly.
	Run(ctx context.Context) error
	// Close releases network resources held by the session.
	Close() error
}

// SessionFactory initializes new sessions. An error from NewSession is a
// setup failure: the Supervisor reports it to the caller of Start and
// returns to idle without launching a worker.
type SessionFactory interface {
	NewSession() (Session, error)
}

// SessionFactoryFunc allows using a plain function as a SessionFactory.
type SessionFactoryFunc func() (Session, error)

func (f SessionFactoryFunc) NewSession() (Session, error) { return f() }
