package telegram

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/skyhook-labs/botkeeper"
	"github.com/skyhook-labs/botkeeper/llm"
)

const (
	// DefaultPollTimeout is the getUpdates long-poll window. It also bounds
	// shutdown latency when the Bot API endpoint ignores context
	// cancellation mid-request.
	DefaultPollTimeout = 30 * time.Second

	// maxPollFailures is how many consecutive non-timeout poll errors the
	// loop tolerates before it declares the session dead.
	maxPollFailures = 5
)

// pollFailureBackoff spaces out retries after a failed poll.
var pollFailureBackoff = 2 * time.Second

// SessionConfig carries everything a session generation needs. The Status
// callback feeds the bot-side /status command; the Completer is optional
// and the bot degrades to echo replies without it.
type SessionConfig struct {
	Token       string
	BaseURL     string
	PollTimeout time.Duration
	HTTPClient  *http.Client
	Completer   llm.Completer
	Status      func() botkeeper.Status
	Logger      *logrus.Entry
}

// Factory builds one fresh session per worker generation; the underlying
// client and its connections are never shared across generations.
type Factory struct {
	cfg SessionConfig
}

func NewFactory(cfg SessionConfig) *Factory {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.New())
	}
	return &Factory{cfg: cfg}
}

// NewSession builds a client and validates the bot token with getMe. Any
// failure here is a setup error: no worker is launched.
func (f *Factory) NewSession() (botkeeper.Session, error) {
	if f.cfg.Token == "" {
		return nil, errors.New("bot token is required")
	}

	client := NewClient(f.cfg.HTTPClient, f.cfg.BaseURL, f.cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	me, err := client.GetMe(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "bot token validation")
	}

	return &session{
		client: client,
		cfg:    f.cfg,
		logger: f.cfg.Logger.WithFields(logrus.Fields{
			"service": "telegram-session",
			"bot":     me.Username,
		}),
	}, nil
}

type session struct {
	client *Client
	cfg    SessionConfig
	logger *logrus.Entry

	offset   int64
	failures int
}

// Run is the cooperative polling loop: it long-polls for updates and
// dispatches them until ctx is canceled or polling dies for good. Dispatch
// errors are contained here and never escalate to a worker fault.
func (s *session) Run(ctx context.Context) error {
	s.logger.Info("polling loop started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutdown signal observed, leaving polling loop")
			return nil
		default:
		}

		updates, next, err := s.client.GetUpdates(ctx, s.offset, s.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("shutdown signal observed, leaving polling loop")
				return nil
			}
			if isPollTimeout(err) {
				continue
			}

			s.failures++
			s.logger.WithError(err).
				WithField("consecutive", s.failures).
				Warn("poll failed")
			if s.failures >= maxPollFailures {
				return errors.Wrap(err, "polling loop died")
			}

			select {
			case <-time.After(pollFailureBackoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		s.failures = 0
		s.offset = next
		for _, update := range updates {
			s.dispatch(ctx, update)
		}
	}
}

// Close releases the network resources held by this generation's client.
func (s *session) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
