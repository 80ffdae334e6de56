// Package handlers exposes the HTTP surface of the event chat service:
// the streaming chat endpoint, out-of-band cancellation, model listing
// and health.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/tjfontaine/eventchat/internal/api/ollama"
	"github.com/tjfontaine/eventchat/internal/domain"
	"github.com/tjfontaine/eventchat/internal/registry"
	"github.com/tjfontaine/eventchat/internal/relay"
	"github.com/tjfontaine/eventchat/internal/server"
)

// ModelLister is the subset of the upstream client used by HandleModels.
type ModelLister interface {
	ListModels(ctx context.Context) (*ollama.ModelList, error)
}

type Handler struct {
	relay    *relay.Relay
	registry *registry.Registry
	models   ModelLister
	logger   *slog.Logger
}

func New(rel *relay.Relay, reg *registry.Registry, models ModelLister, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{relay: rel, registry: reg, models: models, logger: logger}
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string           `json:"message"`
	Model     string           `json:"model"`
	History   []domain.Message `json:"history,omitempty"`
	SessionID string           `json:"sessionId,omitempty"`
}

// HandleChat runs one conversational turn, streaming the reply as SSE.
// The turn ID is the request ID, so the X-Request-ID response header
// doubles as the cancellation handle.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, domain.ErrInvalidRequest("invalid request body: "+err.Error()))
		return
	}
	if req.Message == "" {
		writeAPIError(w, domain.ErrInvalidRequest("message is required"))
		return
	}
	if req.Model == "" {
		writeAPIError(w, domain.ErrInvalidRequest("model is required"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIError(w, domain.ErrServer("streaming not supported"))
		return
	}

	turnID := server.GetRequestID(r.Context())
	if turnID == "" {
		turnID = uuid.New().String()
		w.Header().Set("X-Request-ID", turnID)
	}
	server.AddLogField(r.Context(), "turn_id", turnID)
	server.AddLogField(r.Context(), "model", req.Model)
	server.AddLogField(r.Context(), "session_id", req.SessionID)

	turn := &domain.Turn{
		ID:        turnID,
		SessionID: req.SessionID,
		Model:     req.Model,
		Message:   req.Message,
		History:   req.History,
	}

	sink := newSSESink(w, flusher)
	if apiErr := h.relay.Run(r.Context(), turn, sink); apiErr != nil {
		// The relay only returns an error before the stream is
		// committed, so a plain JSON error response is still possible.
		server.AddError(r.Context(), apiErr)
		writeAPIError(w, apiErr)
	}
}

// CancelRequest is the body of POST /api/cancel.
type CancelRequest struct {
	RequestID string `json:"requestId"`
}

// HandleCancel revokes a live turn. The stream itself ends at the next
// chunk boundary; this endpoint only flips the liveness bit.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, domain.ErrInvalidRequest("invalid request body: "+err.Error()))
		return
	}
	if req.RequestID == "" {
		writeAPIError(w, domain.ErrInvalidRequest("requestId is required"))
		return
	}

	if !h.registry.Revoke(req.RequestID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "request not found"})
		return
	}

	h.logger.Info("turn cancelled", slog.String("turn_id", req.RequestID))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleModels lists the models available upstream.
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	list, err := h.models.ListModels(r.Context())
	if err != nil {
		server.AddError(r.Context(), err)
		writeAPIError(w, toAPIError(err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleHealth reports process liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, apiErr *domain.APIError) {
	writeJSON(w, apiErr.HTTPStatusCode(), map[string]string{"error": apiErr.Message})
}

func toAPIError(err error) *domain.APIError {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return domain.ErrServer(err.Error())
}
