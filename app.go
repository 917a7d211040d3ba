package botkeeper

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// ForceStopTimeout bounds the wait for the control server to drain after
// the shutdown signal.
var ForceStopTimeout = 45 * time.Second

// Runner is a long-running service bound to a context: it serves until the
// context is canceled and then shuts down gracefully.
type Runner interface {
	Run(ctx context.Context) error
}

// App ties the supervisor and the control server into one process lifetime.
// It keeps the process alive until SIGTERM/SIGINT, then asks the supervisor
// for a graceful stop and drains the server.
type App struct {
	logger     *logrus.Entry
	supervisor *Supervisor
	server     Runner
}

func NewApp(supervisor *Supervisor, server Runner, logger *logrus.Entry) *App {
	return &App{
		logger:     logger.WithField("service", "app"),
		supervisor: supervisor,
		server:     server,
	}
}

// Run blocks until an exit signal arrives or the control server fails.
// NOTE: Use this method ONLY as a top-level action.
func (a *App) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	return a.RunWithContext(ctx)
}

// RunWithContext is Run bound to an external context instead of OS signals.
func (a *App) RunWithContext(ctx context.Context) error {
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- a.server.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("received shutdown signal, terminating service")
		a.stopBot()

		select {
		case <-serverDone:
		case <-time.NewTimer(ForceStopTimeout).C:
			a.logger.Warn("graceful exit timeout exceeded, force exit")
			return nil
		}
		a.logger.Info("graceful exit")
		return nil

	case serverErr := <-serverDone:
		if serverErr != nil {
			a.logger.WithError(serverErr).Error("control server failed")
		}
		a.stopBot()
		return serverErr
	}
}

func (a *App) stopBot() {
	res, err := a.supervisor.Stop()
	switch {
	case err == ErrNotRunning:
		return
	case err != nil:
		a.logger.WithError(err).Error("bot stop failed")
	case res.TimedOut:
		a.logger.Warn("bot worker did not stop within the grace period")
	}
}
