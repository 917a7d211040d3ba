package telegram

import (
	"context"
	"io/ioutil"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/skyhook-labs/botkeeper"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(ioutil.Discard)
	return logrus.NewEntry(log)
}

func newTestFactory(t *testing.T, fake *fakeBotAPI, completer *fakeCompleter) *Factory {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	cfg := SessionConfig{
		Token:       testToken,
		BaseURL:     srv.URL,
		PollTimeout: time.Second,
		HTTPClient:  srv.Client(),
		Logger:      testLogger(),
		Status: func() botkeeper.Status {
			return botkeeper.Status{Running: true, UptimeSeconds: 75}
		},
	}
	if completer != nil {
		cfg.Completer = completer
	}
	return NewFactory(cfg)
}

// runSession drives one session on a goroutine and returns a stop func that
// cancels it and yields the loop error.
func runSession(t *testing.T, session botkeeper.Session) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- session.Run(ctx)
	}()
	return func() error {
		cancel()
		select {
		case err := <-done:
			_ = session.Close()
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("session did not stop after cancellation")
			return nil
		}
	}
}

func TestFactory_SetupValidatesToken(t *testing.T) {
	fake := newFakeBotAPI(t)
	fake.getMeFail = true

	factory := newTestFactory(t, fake, nil)
	_, err := factory.NewSession()
	require.Error(t, err)
	require.Contains(t, err.Error(), "token validation")
}

func TestFactory_RequiresToken(t *testing.T) {
	factory := NewFactory(SessionConfig{Logger: testLogger()})
	_, err := factory.NewSession()
	require.Error(t, err)
}

func TestSession_PingCommand(t *testing.T) {
	fake := newFakeBotAPI(t)
	factory := newTestFactory(t, fake, nil)

	session, err := factory.NewSession()
	require.NoError(t, err)
	stop := runSession(t, session)

	fake.updates <- []Update{textUpdate(1, 100, "/ping")}

	sent := <-fake.sent
	require.Equal(t, int64(100), sent.ChatID)
	require.Contains(t, sent.Text, "Pong")

	require.NoError(t, stop())
}

func TestSession_StatusCommandReportsUptime(t *testing.T) {
	fake := newFakeBotAPI(t)
	factory := newTestFactory(t, fake, nil)

	session, err := factory.NewSession()
	require.NoError(t, err)
	stop := runSession(t, session)

	fake.updates <- []Update{textUpdate(1, 100, "/status")}

	sent := <-fake.sent
	require.Contains(t, sent.Text, "0h 1m 15s")

	require.NoError(t, stop())
}

func TestSession_StartCommandGreetsByName(t *testing.T) {
	fake := newFakeBotAPI(t)
	factory := newTestFactory(t, fake, nil)

	session, err := factory.NewSession()
	require.NoError(t, err)
	stop := runSession(t, session)

	fake.updates <- []Update{textUpdate(1, 100, "/start")}

	sent := <-fake.sent
	require.Contains(t, sent.Text, "Hello Ada")

	require.NoError(t, stop())
}

func TestSession_EchoWithoutCompleter(t *testing.T) {
	fake := newFakeBotAPI(t)
	factory := newTestFactory(t, fake, nil)

	session, err := factory.NewSession()
	require.NoError(t, err)
	stop := runSession(t, session)

	fake.updates <- []Update{textUpdate(1, 100, "anyone home?")}

	sent := <-fake.sent
	require.Equal(t, "You said: anyone home?", sent.Text)

	require.NoError(t, stop())
}

func TestSession_CompleterReply(t *testing.T) {
	fake := newFakeBotAPI(t)
	factory := newTestFactory(t, fake, &fakeCompleter{reply: "42."})

	session, err := factory.NewSession()
	require.NoError(t, err)
	stop := runSession(t, session)

	fake.updates <- []Update{textUpdate(1, 100, "meaning of life?")}

	sent := <-fake.sent
	require.Equal(t, "42.", sent.Text)

	require.NoError(t, stop())
}

func TestSession_CompleterFailureDegradesToFallback(t *testing.T) {
	fake := newFakeBotAPI(t)
	factory := newTestFactory(t, fake, &fakeCompleter{err: errors.New("rate limited")})

	session, err := factory.NewSession()
	require.NoError(t, err)
	stop := runSession(t, session)

	fake.updates <- []Update{textUpdate(1, 100, "hello")}

	sent := <-fake.sent
	require.Equal(t, fallbackReply, sent.Text)

	// a completion failure is contained, the loop must still be alive
	fake.updates <- []Update{textUpdate(2, 100, "/ping")}
	sent = <-fake.sent
	require.Contains(t, sent.Text, "Pong")

	require.NoError(t, stop())
}

func TestSession_PersistentPollFailureIsFatal(t *testing.T) {
	fake := newFakeBotAPI(t)
	factory := newTestFactory(t, fake, nil)

	session, err := factory.NewSession()
	require.NoError(t, err)

	fake.updatesFail = true

	backoff := pollFailureBackoff
	pollFailureBackoff = 10 * time.Millisecond
	defer func() { pollFailureBackoff = backoff }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- session.Run(ctx)
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		require.Contains(t, err.Error(), "polling loop died")
	case <-time.After(30 * time.Second):
		t.Fatal("session did not fail on persistent poll errors")
	}
	_ = session.Close()
}

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		in   string
		cmd  string
		args string
	}{
		{"/ping", "/ping", ""},
		{"/echo hello world", "/echo", "hello world"},
		{"/PING", "/ping", ""},
		{"/status@keeper_bot", "/status", ""},
	}
	for _, tc := range cases {
		cmd, args := splitCommand(tc.in)
		require.Equal(t, tc.cmd, cmd, tc.in)
		require.Equal(t, tc.args, args, tc.in)
	}
}
