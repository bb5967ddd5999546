package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/viewfinder/internal/camera"
	"github.com/onnwee/viewfinder/internal/events"
	"github.com/onnwee/viewfinder/internal/galleria"
	"github.com/onnwee/viewfinder/internal/session"
)

// SessionManager is the subset of session.Manager used by the handlers.
type SessionManager interface {
	Create() (*session.Controller, error)
	Get(id string) (*session.Controller, error)
	Close(id string) error
}

// EventStreamer upgrades a request to a session event stream.
type EventStreamer interface {
	Serve(w http.ResponseWriter, r *http.Request, sessionID string, src events.Source) error
}

// SessionHandlers serves the page session endpoints under /api/sessions.
type SessionHandlers struct {
	manager SessionManager
	stream  EventStreamer
	metrics *session.Metrics
	logger  *slog.Logger
}

// NewSessionHandlers creates SessionHandlers. stream and metrics may be nil.
func NewSessionHandlers(manager SessionManager, stream EventStreamer, metrics *session.Metrics, logger *slog.Logger) *SessionHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandlers{manager: manager, stream: stream, metrics: metrics, logger: logger}
}

// CommandResponse is returned by every command endpoint.
type CommandResponse struct {
	Changed  bool             `json:"changed"`
	Snapshot session.Snapshot `json:"snapshot"`
}

// CaptureResponse is returned by the capture endpoint.
type CaptureResponse struct {
	Frame    camera.Frame     `json:"frame"`
	Snapshot session.Snapshot `json:"snapshot"`
}

// DialRequest sets or steps one control of the dial surface. Exactly one of
// Dial, Assist or HUDVisible is used; a Dial with Step turns it by detents,
// otherwise Value is applied.
type DialRequest struct {
	Dial       camera.Dial   `json:"dial,omitempty"`
	Value      any           `json:"value,omitempty"`
	Step       *int          `json:"step,omitempty"`
	Assist     camera.Assist `json:"assist,omitempty"`
	On         bool          `json:"on,omitempty"`
	HUDVisible *bool         `json:"hud_visible,omitempty"`
}

// PowerRequest carries a power event.
type PowerRequest struct {
	Event camera.PowerEvent `json:"event"`
}

// Create handles POST /api/sessions.
func (h *SessionHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.manager.Create()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := ctrl.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+ctrl.ID())
	writeJSON(w, r, http.StatusCreated, snap)
}

// Get handles GET /api/sessions/{id}.
func (h *SessionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	snap, err := ctrl.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, r, http.StatusOK, snap)
}

// Delete handles DELETE /api/sessions/{id}.
func (h *SessionHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Close(r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Action handles POST /api/sessions/{id}/camera/actions. The body is a
// reducer action such as {"type":"CHANGE_LENS","lens":"telephoto"}.
func (h *SessionHandlers) Action(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	action, err := camera.DecodeAction(body)
	if err != nil {
		writeError(w, r, ErrCodeBadRequest, err.Error())
		return
	}
	h.command(w, r, "action", func(ctx context.Context) (session.Result, error) {
		return ctrl.Dispatch(ctx, action)
	})
}

// Dials handles POST /api/sessions/{id}/camera/dials.
func (h *SessionHandlers) Dials(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req DialRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var run func(ctx context.Context) (session.Result, error)
	switch {
	case req.Dial != "" && req.Step != nil:
		run = func(ctx context.Context) (session.Result, error) { return ctrl.StepDial(ctx, req.Dial, *req.Step) }
	case req.Dial != "":
		if req.Value == nil {
			writeError(w, r, ErrCodeValidation, "value or step is required")
			return
		}
		run = func(ctx context.Context) (session.Result, error) { return ctrl.SetDial(ctx, req.Dial, req.Value) }
	case req.Assist != "":
		run = func(ctx context.Context) (session.Result, error) { return ctrl.ToggleAssist(ctx, req.Assist, req.On) }
	case req.HUDVisible != nil:
		run = func(ctx context.Context) (session.Result, error) { return ctrl.SetHUDVisible(ctx, *req.HUDVisible) }
	default:
		writeError(w, r, ErrCodeValidation, "one of dial, assist or hud_visible is required")
		return
	}
	h.command(w, r, "dial", run)
}

// Power handles POST /api/sessions/{id}/camera/power.
func (h *SessionHandlers) Power(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req PowerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.command(w, r, "power", func(ctx context.Context) (session.Result, error) {
		return ctrl.Power(ctx, req.Event)
	})
}

// Capture handles POST /api/sessions/{id}/camera/capture.
func (h *SessionHandlers) Capture(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	frame, res, err := ctrl.Capture(r.Context())
	h.observe("capture", res.Changed, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, CaptureResponse{Frame: frame, Snapshot: res.Snapshot})
}

// Galleria handles POST /api/sessions/{id}/galleria with a navigation
// command such as {"op":"enter_album","id":"night-walks"}.
func (h *SessionHandlers) Galleria(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	cmd, err := galleria.DecodeCommand(body)
	if err != nil {
		writeError(w, r, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	h.command(w, r, "galleria", func(ctx context.Context) (session.Result, error) {
		return ctrl.Navigate(ctx, cmd)
	})
}

// Events handles GET /api/sessions/{id}/events, upgrading to a WebSocket
// stream that starts with the current snapshot.
func (h *SessionHandlers) Events(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		writeError(w, r, ErrCodeUnavailable, "Event streaming is not enabled")
		return
	}
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	select {
	case <-ctrl.Done():
		h.fail(w, r, session.ErrClosed)
		return
	default:
	}
	// A failed upgrade has already answered the request.
	if err := h.stream.Serve(w, r, ctrl.ID(), ctrl); err != nil {
		h.logger.WarnContext(r.Context(), "event stream failed",
			slog.String("session_id", ctrl.ID()),
			slog.String("error", err.Error()),
		)
	}
}

func (h *SessionHandlers) lookup(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	ctrl, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return ctrl, true
}

func (h *SessionHandlers) command(w http.ResponseWriter, r *http.Request, kind string, run func(ctx context.Context) (session.Result, error)) {
	res, err := run(r.Context())
	h.observe(kind, res.Changed, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, CommandResponse{Changed: res.Changed, Snapshot: res.Snapshot})
}

func (h *SessionHandlers) observe(kind string, changed bool, err error) {
	if h.metrics != nil {
		h.metrics.ObserveCommand(kind, changed, err)
	}
}

func (h *SessionHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, r, ErrCodeNotFound, "Session not found")
	case errors.Is(err, session.ErrClosed):
		writeError(w, r, ErrCodeSessionClosed, "Session has ended")
	case errors.Is(err, session.ErrTooManySessions):
		writeError(w, r, ErrCodeTooManySessions, "Too many open sessions, try again later")
	case errors.Is(err, session.ErrNotReady):
		writeError(w, r, ErrCodeCameraNotReady, "Camera is not powered on")
	case errors.Is(err, session.ErrInvalidPowerEvent),
		errors.Is(err, camera.ErrUnknownDial),
		errors.Is(err, camera.ErrUnknownAssist),
		errors.Is(err, camera.ErrInvalidValue):
		writeError(w, r, ErrCodeValidation, err.Error())
	case errors.Is(err, galleria.ErrNotFound):
		writeError(w, r, ErrCodeNotFound, err.Error())
	case errors.Is(err, galleria.ErrInvalidTransition):
		writeError(w, r, ErrCodeConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "session command failed", slog.String("error", err.Error()))
		writeError(w, r, ErrCodeInternal, "Something went wrong")
	}
}
