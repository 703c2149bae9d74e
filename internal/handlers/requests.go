package handlers

import (
	"log/slog"
	"net/http"
)

type RequestHandler struct {
	queue  RequestQueue
	logger *slog.Logger
}

func NewRequestHandler(q RequestQueue, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{queue: q, logger: logger}
}

// ServeHTTP handles GET /v1/requests/{id}
func (h *RequestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}
	parts := pathParts(r.URL.Path, "/v1/requests")
	if len(parts) != 1 {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid path. Expected /v1/requests/{requestID}")
		return
	}

	st, err := h.queue.GetStatus(r.Context(), parts[0])
	if err != nil {
		h.logger.Error("Failed to load request status", "request_id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load request status")
		return
	}
	if st == nil {
		writeError(w, h.logger, http.StatusNotFound, "Request not found")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, st)
}
