package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/voxscribe/voxscribe/internal/session"
	"github.com/voxscribe/voxscribe/pkg/logger"
)

// sessionResponse is the JSON shape for a realtime session
type sessionResponse struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Language   string    `json:"language"`
	StartedAt  time.Time `json:"started_at"`
	Final      string    `json:"final"`
	Partial    string    `json:"partial"`
	Composed   string    `json:"composed"`
	LastError  string    `json:"last_error,omitempty"`
}

func toSessionResponse(orch *session.Orchestrator) sessionResponse {
	snapshot := orch.Snapshot()
	resp := sessionResponse{
		ID:        orch.ID(),
		Status:    orch.Status(),
		Language:  orch.Language(),
		StartedAt: orch.StartedAt(),
		Final:     snapshot.Final,
		Partial:   snapshot.Partial,
		Composed:  snapshot.Composed,
	}
	if err := orch.Err(); err != nil {
		resp.LastError = err.Error()
	}
	return resp
}

// StartRealtimeSession starts a new live transcription session
func (h *Handler) StartRealtimeSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
	}
	if r.Body != nil {
		// Body is optional; ignore decode errors from an empty body
		json.NewDecoder(r.Body).Decode(&req)
	}

	orch, err := h.sessionManager.StartSession(r.Context(), req.Language)
	if err != nil {
		h.logger.Error("Failed to start realtime session", logger.Error(err))
		http.Error(w, "Failed to start session: "+err.Error(), http.StatusBadGateway)
		return
	}

	WriteJSON(w, http.StatusCreated, toSessionResponse(orch))
}

// GetRealtimeSession returns the state of a live session
func (h *Handler) GetRealtimeSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	orch := h.sessionManager.GetSession(id)
	if orch == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	WriteJSON(w, http.StatusOK, toSessionResponse(orch))
}

// ListRealtimeSessions returns all tracked sessions
func (h *Handler) ListRealtimeSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionManager.ListSessions()

	responses := make([]sessionResponse, 0, len(sessions))
	for _, orch := range sessions {
		responses = append(responses, toSessionResponse(orch))
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"timestamp": time.Now(),
		"count":     len(responses),
		"sessions":  responses,
	})
}

// StopRealtimeSession stops a session but keeps its transcript available
func (h *Handler) StopRealtimeSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	orch, err := h.sessionManager.StopSession(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	WriteJSON(w, http.StatusOK, toSessionResponse(orch))
}

// SaveRealtimeSession stops a session and persists its transcript
func (h *Handler) SaveRealtimeSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.sessionManager.SaveSession(id)
	if err != nil {
		h.logger.Error("Failed to save session", logger.String("session_id", id), logger.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	WriteJSON(w, http.StatusOK, record)
}
