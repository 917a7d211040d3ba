package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/skyhook-labs/botkeeper"
)

// BotControl is the slice of the supervisor the control surface needs.
type BotControl interface {
	Start() (string, error)
	Stop() (botkeeper.StopResult, error)
	Restart() (string, error)
	Status() botkeeper.Status
}

// RouterConfig carries deployment facts the handlers report but do not own.
type RouterConfig struct {
	// TokenConfigured tells whether a bot token was present at boot.
	TokenConfigured bool
}

// NewRouter declares the control API scheme over the passed supervisor.
func NewRouter(ctrl BotControl, cfg RouterConfig, logger *logrus.Entry) http.Handler {
	h := &handlers{
		ctrl:   ctrl,
		cfg:    cfg,
		logger: logger.WithField("service", "control-api"),
	}

	r := chi.NewRouter()
	r.Get("/", h.dashboard)
	r.Get("/health", h.health)
	r.Get("/ping", h.ping)
	r.Route("/bot", func(r chi.Router) {
		r.Post("/start", h.start)
		r.Post("/stop", h.stop)
		r.Post("/restart", h.restart)
		r.Get("/status", h.status)
	})
	return r
}

type handlers struct {
	ctrl   BotControl
	cfg    RouterConfig
	logger *logrus.Entry
}

type statusResp struct {
	botkeeper.Status
	TokenConfigured bool `json:"token_configured"`
}

type errorResp struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	contextID, err := h.ctrl.Start()
	if err != nil {
		h.writeControlError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "started",
		"context_id": contextID,
	})
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	res, err := h.ctrl.Stop()
	if err != nil {
		h.writeControlError(w, err)
		return
	}
	status := "stopped"
	if res.TimedOut {
		status = "stop_timeout"
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"status": status})
}

func (h *handlers) restart(w http.ResponseWriter, r *http.Request) {
	contextID, err := h.ctrl.Restart()
	if err != nil {
		h.writeControlError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "restarted",
		"context_id": contextID,
	})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, statusResp{
		Status:          h.ctrl.Status(),
		TokenConfigured: h.cfg.TokenConfigured,
	})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	st := h.ctrl.Status()
	botStatus := "stopped"
	if st.Running {
		botStatus = "running"
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"service":    "telegram-bot",
		"bot_status": botStatus,
		"uptime":     st.UptimeSeconds,
		"last_error": st.LastError,
	})
}

func (h *handlers) ping(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "pong",
		"timestamp": time.Now().Unix(),
		"service":   "telegram-bot",
		"healthy":   true,
	})
}

// writeControlError maps the supervisor's error taxonomy onto HTTP codes:
// user errors are conflicts, setup failures are server-side.
func (h *handlers) writeControlError(w http.ResponseWriter, err error) {
	var setupErr *botkeeper.SetupError
	switch {
	case errors.Is(err, botkeeper.ErrAlreadyRunning):
		h.writeJSON(w, http.StatusConflict, errorResp{
			Error: "already_running", Message: err.Error()})
	case errors.Is(err, botkeeper.ErrNotRunning):
		h.writeJSON(w, http.StatusConflict, errorResp{
			Error: "not_running", Message: err.Error()})
	case errors.Is(err, botkeeper.ErrStopTimeout):
		h.writeJSON(w, http.StatusServiceUnavailable, errorResp{
			Error: "stop_timeout", Message: err.Error()})
	case errors.As(err, &setupErr):
		h.writeJSON(w, http.StatusInternalServerError, errorResp{
			Error: "setup_failed", Message: err.Error()})
	default:
		h.writeJSON(w, http.StatusInternalServerError, errorResp{
			Error: "internal", Message: err.Error()})
	}
}

func (h *handlers) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Warn("response write failed")
	}
}
