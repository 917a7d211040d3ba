// Package api is the control surface: an HTTP server exposing the bot
// supervisor's start/stop/restart/status operations.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const forceStopTimeout = 5 * time.Second

// Server serves the control router and shuts down gracefully when its
// context is canceled.
type Server struct {
	config Config
	router http.Handler
}

// NewServer returns a new instance of Server with the passed configuration
// and HTTP router.
func NewServer(config Config, router http.Handler) *Server {
	return &Server{
		config: config,
		router: router,
	}
}

// Run starts serving and blocks until ctx is canceled or the listener
// fails. On cancellation the server drains within forceStopTimeout.
func (s *Server) Run(ctx context.Context) error {
	readHeaderTimeout := time.Minute
	if s.config.ReadHeaderTimeout > 0 {
		readHeaderTimeout = time.Duration(s.config.ReadHeaderTimeout) * time.Second
	}

	server := &http.Server{
		Addr:              s.config.TCPAddr(),
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serverFailed := make(chan error)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverFailed <- err
			close(serverFailed)
		}
	}()

	select {
	case <-ctx.Done():
		serverCtx, cancel := context.WithTimeout(context.Background(), forceStopTimeout)
		defer cancel()

		if err := server.Shutdown(serverCtx); err != nil {
			return errors.Wrap(err, "server shutdown failed")
		}
		return nil
	case err := <-serverFailed:
		return errors.Wrap(err, "server failed")
	}
}
