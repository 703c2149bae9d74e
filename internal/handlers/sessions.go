package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/modforge/pkg/chat"
	"github.com/jwebster45206/modforge/pkg/export"
	"github.com/jwebster45206/modforge/pkg/mod"
	"github.com/jwebster45206/modforge/pkg/queue"
	"github.com/jwebster45206/modforge/pkg/rules"
	"github.com/jwebster45206/modforge/pkg/state"
	"github.com/jwebster45206/modforge/pkg/storage"
)

// RequestQueue is the part of the request queue the api writes to.
type RequestQueue interface {
	EnqueueRequest(ctx context.Context, req *queue.Request) error
	SetStatus(ctx context.Context, st *queue.RequestStatus) error
	GetStatus(ctx context.Context, requestID string) (*queue.RequestStatus, error)
}

type EventPublisher interface {
	PublishRequestQueued(ctx context.Context, sessionID uuid.UUID, requestID string, requestType string) error
}

type CreateSessionRequest struct {
	AutoFix *bool `json:"auto_fix,omitempty"`
}

type EnqueueResponse struct {
	RequestID string       `json:"request_id"`
	Status    queue.Status `json:"status"`
}

type SessionHandler struct {
	storage        storage.Storage
	queue          RequestQueue
	events         EventPublisher
	rules          *rules.RuleSet
	autoFixDefault bool
	logger         *slog.Logger
}

func NewSessionHandler(storage storage.Storage, q RequestQueue, events EventPublisher, rs *rules.RuleSet, autoFixDefault bool, logger *slog.Logger) *SessionHandler {
	if rs == nil {
		rs = rules.Default()
	}
	return &SessionHandler{
		storage:        storage,
		queue:          q,
		events:         events,
		rules:          rs,
		autoFixDefault: autoFixDefault,
		logger:         logger,
	}
}

// ServeHTTP routes session requests:
// POST   /v1/sessions               - create a session
// GET    /v1/sessions/{id}          - read a session
// DELETE /v1/sessions/{id}          - delete a session
// POST   /v1/sessions/{id}/requests - queue a generate, edit or rename request
// GET    /v1/sessions/{id}/export   - download the mod archive
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/sessions")

	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
			return
		}
		h.handleCreate(w, r)
		return
	}

	id, ok := parseID(parts[0])
	if !ok || len(parts) > 2 {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	if len(parts) == 2 {
		switch {
		case parts[1] == "requests" && r.Method == http.MethodPost:
			h.handleEnqueue(w, r, id)
		case parts[1] == "export" && r.Method == http.MethodGet:
			h.handleExport(w, r, id)
		case parts[1] == "requests" || parts[1] == "export":
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
		default:
			writeError(w, h.logger, http.StatusNotFound, "Not found")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleRead(w, r, id)
	case http.MethodDelete:
		h.handleDelete(w, r, id)
	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	autoFix := h.autoFixDefault
	if req.AutoFix != nil {
		autoFix = *req.AutoFix
	}

	s := state.NewSession(autoFix)
	if err := h.storage.SaveSession(r.Context(), s); err != nil {
		h.logger.Error("Failed to save session", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to create session")
		return
	}
	h.logger.Info("Session created", "session_id", s.ID, "auto_fix", autoFix)
	writeJSON(w, h.logger, http.StatusCreated, s)
}

// load writes the error response itself and returns nil when the session
// cannot be served.
func (h *SessionHandler) load(w http.ResponseWriter, r *http.Request, id uuid.UUID) *state.Session {
	s, err := h.storage.LoadSession(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load session", "session_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load session")
		return nil
	}
	if s == nil {
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
		return nil
	}
	return s
}

func (h *SessionHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if s := h.load(w, r, id); s != nil {
		writeJSON(w, h.logger, http.StatusOK, s)
	}
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.storage.DeleteSession(r.Context(), id); err != nil {
		h.logger.Error("Failed to delete session", "session_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	h.logger.Info("Session deleted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleEnqueue(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var body chat.ChatRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'type' and 'message' fields.")
		return
	}
	if err := body.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	for _, u := range []string{body.ImageURL, body.AudioURL} {
		if u == "" {
			continue
		}
		if _, err := mod.ParseDataURL(u); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, fmt.Sprintf("Invalid attachment: %v", err))
			return
		}
	}

	s := h.load(w, r, id)
	if s == nil {
		return
	}
	autoFix := s.AutoFix
	if body.AutoFix != nil {
		autoFix = *body.AutoFix
	}

	req := &queue.Request{
		RequestID:  uuid.NewString(),
		Type:       body.Type,
		SessionID:  id,
		Message:    body.Message,
		ImageURL:   body.ImageURL,
		AudioURL:   body.AudioURL,
		AutoFix:    autoFix,
		EnqueuedAt: time.Now(),
	}
	// The status record exists before a worker can pick the request up.
	if err := h.queue.SetStatus(r.Context(), queue.NewRequestStatus(req)); err != nil {
		h.logger.Error("Failed to record request status", "request_id", req.RequestID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to queue request")
		return
	}
	if err := h.queue.EnqueueRequest(r.Context(), req); err != nil {
		h.logger.Error("Failed to enqueue request", "request_id", req.RequestID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to queue request")
		return
	}
	if h.events != nil {
		if err := h.events.PublishRequestQueued(r.Context(), id, req.RequestID, string(req.Type)); err != nil {
			h.logger.Error("Failed to publish queued event", "error", err)
		}
	}

	h.logger.Info("Request queued", "request_id", req.RequestID, "session_id", id, "type", req.Type)
	writeJSON(w, h.logger, http.StatusAccepted, EnqueueResponse{RequestID: req.RequestID, Status: queue.StatusQueued})
}

func (h *SessionHandler) handleExport(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s := h.load(w, r, id)
	if s == nil {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteArchive(&buf, s.Mod, h.rules); err != nil {
		if errors.Is(err, export.ErrInvalidUnit) || errors.Is(err, mod.ErrNoUnits) || errors.Is(err, mod.ErrInvalidName) {
			writeError(w, h.logger, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error("Failed to build archive", "session_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to build archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, s.Mod.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("Failed to write archive", "session_id", id, "error", err)
	}
}
