package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/intake-engine/internal/booking"
	"github.com/wolfman30/intake-engine/internal/intake"
	"github.com/wolfman30/intake-engine/internal/session"
	"github.com/wolfman30/intake-engine/internal/widget"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

// Handler exposes mounted widgets over HTTP and WebSocket.
type Handler struct {
	manager  *Manager
	commands *intake.CommandBus
	logger   *logging.Logger
}

// MountRequest is what the page sends when the widget is constructed.
type MountRequest struct {
	VisitorID string `json:"visitor_id"`
	TabID     string `json:"tab_id"`
	PageID    string `json:"page_id"`
	Timezone  string `json:"timezone"`
	// Limited overrides the server's reply-limit default for this page.
	Limited    *bool `json:"limited"`
	ReplyLimit int   `json:"reply_limit"`
}

// InboundMessage is what the widget sends over the socket.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we push to the widget.
type OutboundMessage struct {
	Type     string           `json:"type"` // "snapshot", "error", "pong"
	Text     string           `json:"text,omitempty"`
	Snapshot *widget.Snapshot `json:"snapshot,omitempty"`
}

type errorResponse struct {
	Error      string            `json:"error"`
	Kind       string            `json:"kind,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	ValidHours []string          `json:"valid_hours,omitempty"`
	Snapshot   *widget.Snapshot  `json:"snapshot,omitempty"`
}

// NewHandler creates the widget handler.
func NewHandler(manager *Manager, commands *intake.CommandBus, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{manager: manager, commands: commands, logger: logger}
}

// generateSessionID creates a random identifier for pages and visitors that
// arrive without one.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// pageID reads the page from the query string or the X-Page-ID header.
func pageID(r *http.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get("page")); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get("X-Page-ID"))
}

func (h *Handler) widgetFor(w http.ResponseWriter, r *http.Request) (*widget.Widget, bool) {
	id := pageID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "page parameter required"})
		return nil, false
	}
	wg, err := h.manager.Get(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "widget not mounted"})
		return nil, false
	}
	return wg, true
}

// HandleMount constructs or resumes the widget for a page load.
func (h *Handler) HandleMount(w http.ResponseWriter, r *http.Request) {
	var req MountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.VisitorID) == "" {
		req.VisitorID = generateSessionID()
	}
	if strings.TrimSpace(req.TabID) == "" {
		req.TabID = generateSessionID()
	}

	scope := session.Scope{VisitorID: req.VisitorID, TabID: req.TabID, PageID: req.PageID}
	opts := widget.Options{Limited: h.manager.defaults.Limited, ReplyLimit: req.ReplyLimit, VisitorTimezone: req.Timezone}
	if req.Limited != nil {
		opts.Limited = *req.Limited
	}
	_, snap, err := h.manager.Mount(r.Context(), scope, opts)
	if err != nil {
		h.logger.Error("webchat: mount failed", "error", err, "visitor_id", req.VisitorID)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "widget unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleUnload closes the widget. The body may carry {"reason": "reload"}.
func (h *Handler) HandleUnload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Reason == "" {
		req.Reason = r.URL.Query().Get("reason")
	}

	err := h.manager.Unload(r.Context(), pageID(r), session.ParseUnloadReason(req.Reason))
	switch {
	case errors.Is(err, ErrUnknownPage):
		w.WriteHeader(http.StatusNoContent)
	case err != nil:
		h.logger.Warn("webchat: unload failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "unload failed"})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleState returns the current snapshot.
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	wg, ok := h.widgetFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wg.Snapshot())
}

// HandleMessage sends a visitor message and returns once the reply is in.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	wg, ok := h.widgetFor(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	snap, err := wg.SendMessage(r.Context(), req.Text)
	h.respond(w, snap, err)
}

// HandleContact submits the contact form.
func (h *Handler) HandleContact(w http.ResponseWriter, r *http.Request) {
	wg, ok := h.widgetFor(w, r)
	if !ok {
		return
	}
	var form intake.ContactForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	snap, err := wg.SubmitContact(r.Context(), form)
	h.respond(w, snap, err)
}

// HandleOpenAppointment opens the appointment form.
func (h *Handler) HandleOpenAppointment(w http.ResponseWriter, r *http.Request) {
	wg, ok := h.widgetFor(w, r)
	if !ok {
		return
	}
	snap, err := wg.OpenAppointment()
	h.respond(w, snap, err)
}

// HandleCancelAppointment closes the appointment form.
func (h *Handler) HandleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	wg, ok := h.widgetFor(w, r)
	if !ok {
		return
	}
	snap, err := wg.CancelAppointment()
	h.respond(w, snap, err)
}

// HandleSubmitAppointment submits the appointment form.
func (h *Handler) HandleSubmitAppointment(w http.ResponseWriter, r *http.Request) {
	wg, ok := h.widgetFor(w, r)
	if !ok {
		return
	}
	var form intake.AppointmentForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	snap, err := wg.SubmitAppointment(r.Context(), form)
	h.respond(w, snap, err)
}

// HandleDismissConfirmation closes the thank-you view.
func (h *Handler) HandleDismissConfirmation(w http.ResponseWriter, r *http.Request) {
	wg, ok := h.widgetFor(w, r)
	if !ok {
		return
	}
	snap, err := wg.DismissConfirmation()
	h.respond(w, snap, err)
}

// HandleSlots lists the slots for ?date= in the visitor's zone.
func (h *Handler) HandleSlots(w http.ResponseWriter, r *http.Request) {
	wg, ok := h.widgetFor(w, r)
	if !ok {
		return
	}
	day, err := wg.SelectDate(r.URL.Query().Get("date"))
	if err != nil {
		h.respond(w, wg.Snapshot(), err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// HandleCommand delivers an open-intake command to the page's widget.
func (h *Handler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	id := pageID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "page parameter required"})
		return
	}
	var cmd intake.OpenIntakeCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if h.commands == nil || h.commands.Publish(id, cmd) == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "widget not mounted"})
		return
	}
	wg, err := h.manager.Get(id)
	if err != nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, wg.Snapshot())
}

// HandleClearHistory resets the transcript.
func (h *Handler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	wg, ok := h.widgetFor(w, r)
	if !ok {
		return
	}
	snap, err := wg.ClearHistory(r.Context())
	h.respond(w, snap, err)
}

// respond maps widget errors onto status codes. Failed submissions still
// carry the snapshot so the page can render the transcript message.
func (h *Handler) respond(w http.ResponseWriter, snap widget.Snapshot, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, snap)
		return
	}

	resp := errorResponse{Error: err.Error()}
	if snap.State != intake.Idle || len(snap.Transcript) > 0 {
		resp.Snapshot = &snap
	}

	var fields intake.FieldErrors
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &fields):
		status = http.StatusUnprocessableEntity
		resp.Error = "validation failed"
		resp.Kind = string(booking.FailureValidation)
		resp.Fields = fields
	case errors.Is(err, widget.ErrClosed):
		status = http.StatusGone
	case errors.Is(err, widget.ErrNotMounted):
		status = http.StatusNotFound
	case errors.Is(err, widget.ErrEmptyMessage):
		status = http.StatusBadRequest
	case errors.Is(err, widget.ErrReplyInFlight),
		errors.Is(err, widget.ErrSubmissionInFlight),
		errors.Is(err, widget.ErrChatDisabled),
		errors.Is(err, intake.ErrInvalidTransition):
		status = http.StatusConflict
	default:
		kind := booking.Classify(err)
		resp.Kind = string(kind)
		switch kind {
		case booking.FailureBusinessRule:
			status = http.StatusConflict
			resp.ValidHours = booking.ValidHours(err)
		case booking.FailureValidation:
			status = http.StatusUnprocessableEntity
		case booking.FailureConnectivity:
			status = http.StatusServiceUnavailable
		default:
			h.logger.Error("webchat: request failed", "error", err)
		}
	}
	writeJSON(w, status, resp)
}

// HandleWebSocket upgrades to WebSocket and pushes a snapshot after every
// change to the page's widget.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	wg, ok := h.widgetFor(w, r)
	if !ok {
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(r.Context(), conn, wg)
	}).ServeHTTP(w, r)
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.JSON.Send(c.conn, msg)
}

func (h *Handler) serveWS(ctx context.Context, conn *websocket.Conn, wg *widget.Widget) {
	wsc := &wsConn{conn: conn}
	pageID := wg.Scope().PageID

	snap := wg.Snapshot()
	_ = wsc.send(OutboundMessage{Type: "snapshot", Snapshot: &snap})

	stop := wg.Watch(func(s widget.Snapshot) {
		_ = wsc.send(OutboundMessage{Type: "snapshot", Snapshot: &s})
	})
	defer stop()

	h.logger.Info("webchat: connection opened", "page_id", pageID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "page_id", pageID, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = wsc.send(OutboundMessage{Type: "pong"})
		case "message":
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			if _, err := wg.SendMessage(ctx, msg.Text); err != nil {
				_ = wsc.send(OutboundMessage{Type: "error", Text: err.Error()})
				if errors.Is(err, widget.ErrClosed) {
					return
				}
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
