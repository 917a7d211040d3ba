package api

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/skyhook-labs/botkeeper"
)

// stubControl scripts the supervisor surface for handler tests.
type stubControl struct {
	startID    string
	startErr   error
	stopRes    botkeeper.StopResult
	stopErr    error
	restartID  string
	restartErr error
	status     botkeeper.Status
}

func (s *stubControl) Start() (string, error)              { return s.startID, s.startErr }
func (s *stubControl) Stop() (botkeeper.StopResult, error) { return s.stopRes, s.stopErr }
func (s *stubControl) Restart() (string, error)            { return s.restartID, s.restartErr }
func (s *stubControl) Status() botkeeper.Status            { return s.status }

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(ioutil.Discard)
	return logrus.NewEntry(log)
}

func doRequest(t *testing.T, router http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var body map[string]interface{}
	if strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestRouter_Start(t *testing.T) {
	ctrl := &stubControl{startID: "ctx-42"}
	router := NewRouter(ctrl, RouterConfig{}, testLogger())

	rec, body := doRequest(t, router, http.MethodPost, "/bot/start")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "started", body["status"])
	require.Equal(t, "ctx-42", body["context_id"])
}

func TestRouter_StartAlreadyRunning(t *testing.T) {
	ctrl := &stubControl{startErr: botkeeper.ErrAlreadyRunning}
	router := NewRouter(ctrl, RouterConfig{}, testLogger())

	rec, body := doRequest(t, router, http.MethodPost, "/bot/start")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "already_running", body["error"])
}

func TestRouter_StartSetupFailed(t *testing.T) {
	ctrl := &stubControl{startErr: &botkeeper.SetupError{Err: errNope}}
	router := NewRouter(ctrl, RouterConfig{}, testLogger())

	rec, body := doRequest(t, router, http.MethodPost, "/bot/start")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "setup_failed", body["error"])
}

func TestRouter_Stop(t *testing.T) {
	ctrl := &stubControl{stopRes: botkeeper.StopResult{Clean: true}}
	router := NewRouter(ctrl, RouterConfig{}, testLogger())

	rec, body := doRequest(t, router, http.MethodPost, "/bot/stop")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "stopped", body["status"])
}

func TestRouter_StopTimeoutIsDegradedSuccess(t *testing.T) {
	ctrl := &stubControl{stopRes: botkeeper.StopResult{TimedOut: true}}
	router := NewRouter(ctrl, RouterConfig{}, testLogger())

	rec, body := doRequest(t, router, http.MethodPost, "/bot/stop")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "stop_timeout", body["status"])
}

func TestRouter_StopNotRunning(t *testing.T) {
	ctrl := &stubControl{stopErr: botkeeper.ErrNotRunning}
	router := NewRouter(ctrl, RouterConfig{}, testLogger())

	rec, body := doRequest(t, router, http.MethodPost, "/bot/stop")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "not_running", body["error"])
}

func TestRouter_RestartStopTimeout(t *testing.T) {
	ctrl := &stubControl{restartErr: botkeeper.ErrStopTimeout}
	router := NewRouter(ctrl, RouterConfig{}, testLogger())

	rec, body := doRequest(t, router, http.MethodPost, "/bot/restart")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "stop_timeout", body["error"])
}

func TestRouter_Status(t *testing.T) {
	ctrl := &stubControl{status: botkeeper.Status{
		Running:       true,
		State:         "Running",
		UptimeSeconds: 12,
		ContextID:     "ctx-7",
	}}
	router := NewRouter(ctrl, RouterConfig{TokenConfigured: true}, testLogger())

	rec, body := doRequest(t, router, http.MethodGet, "/bot/status")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["running"])
	require.Equal(t, float64(12), body["uptime_seconds"])
	require.Equal(t, "ctx-7", body["context_id"])
	require.Equal(t, true, body["token_configured"])
}

func TestRouter_Health(t *testing.T) {
	ctrl := &stubControl{status: botkeeper.Status{Running: true, UptimeSeconds: 3}}
	router := NewRouter(ctrl, RouterConfig{}, testLogger())

	rec, body := doRequest(t, router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, "running", body["bot_status"])
	require.Equal(t, float64(3), body["uptime"])
}

func TestRouter_Ping(t *testing.T) {
	router := NewRouter(&stubControl{}, RouterConfig{}, testLogger())

	rec, body := doRequest(t, router, http.MethodGet, "/ping")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "pong", body["message"])
	require.Equal(t, true, body["healthy"])
}

func TestRouter_Dashboard(t *testing.T) {
	ctrl := &stubControl{status: botkeeper.Status{
		Running: true, State: "Running", ContextID: "ctx-9",
	}}
	router := NewRouter(ctrl, RouterConfig{}, testLogger())

	rec, _ := doRequest(t, router, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Running")
	require.Contains(t, rec.Body.String(), "ctx-9")
}

var errNope = errors.New("nope")
