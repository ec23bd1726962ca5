package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/voxscribe/voxscribe/internal/batch"
	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/media"
	"github.com/voxscribe/voxscribe/internal/session"
	"github.com/voxscribe/voxscribe/internal/storage/sqlite"
	"github.com/voxscribe/voxscribe/internal/websocket"
	"github.com/voxscribe/voxscribe/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	config               *config.Config
	logger               *logger.Logger
	wsServer             *websocket.Server
	transcriptionStorage *sqlite.TranscriptionStorage
	mediaStore           *media.FileStore
	batchService         *batch.Service
	sessionManager       *session.Manager
}

// NewHandler creates a new API handler
func NewHandler(config *config.Config, logger *logger.Logger, wsServer *websocket.Server, transcriptionStorage *sqlite.TranscriptionStorage, mediaStore *media.FileStore, batchService *batch.Service, sessionManager *session.Manager) *Handler {
	return &Handler{
		config:               config,
		logger:               logger.Named("api-handler"),
		wsServer:             wsServer,
		transcriptionStorage: transcriptionStorage,
		mediaStore:           mediaStore,
		batchService:         batchService,
		sessionManager:       sessionManager,
	}
}

// CreateTranscription accepts an audio upload and starts a batch
// transcription job for it. The job runs in the background; the record is
// returned immediately in pending state.
func (h *Handler) CreateTranscription(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(h.config.Server.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		http.Error(w, "Failed to parse upload", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "Missing audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read upload", logger.Error(err))
		http.Error(w, "Failed to read upload", http.StatusInternalServerError)
		return
	}

	language := r.FormValue("language")
	if language == "" {
		language = h.config.Batch.Language
	}

	ref, err := h.mediaStore.Save(header.Filename, data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	record := &sqlite.TranscriptionRecord{
		Source:        sqlite.SourceBatch,
		Filename:      header.Filename,
		AudioRef:      ref,
		Language:      language,
		Status:        sqlite.StatusPending,
		FileSizeBytes: int64(len(data)),
	}
	id, err := h.transcriptionStorage.CreateTranscription(record)
	if err != nil {
		h.logger.Error("Failed to create transcription record", logger.Error(err))
		http.Error(w, "Failed to create transcription", http.StatusInternalServerError)
		return
	}

	// Run the pipeline in the background. The record tracks progress.
	go func() {
		ctx := context.Background()
		if _, err := h.batchService.Transcribe(ctx, id, ref, language); err != nil {
			h.logger.Error("Background transcription failed",
				logger.String("record_id", id), logger.Error(err))
		}
	}()

	WriteJSON(w, http.StatusAccepted, record)
}

// GetTranscription returns a single transcription record
func (h *Handler) GetTranscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.transcriptionStorage.GetTranscription(id)
	if err != nil {
		h.logger.Error("Failed to retrieve transcription", logger.Error(err))
		http.Error(w, "Failed to retrieve transcription", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "Transcription not found", http.StatusNotFound)
		return
	}

	WriteJSON(w, http.StatusOK, record)
}

// GetAllTranscriptions returns all transcriptions with pagination
func (h *Handler) GetAllTranscriptions(w http.ResponseWriter, r *http.Request) {
	// Parse pagination parameters
	limit, offset := parsePaginationParams(r)

	// Get transcriptions from storage
	transcriptions, err := h.transcriptionStorage.GetTranscriptions(limit, offset)
	if err != nil {
		h.logger.Error("Failed to retrieve transcriptions", logger.Error(err))
		http.Error(w, "Failed to retrieve transcriptions", http.StatusInternalServerError)
		return
	}
	if transcriptions == nil {
		transcriptions = []*sqlite.TranscriptionRecord{}
	}

	// Create response
	response := map[string]any{
		"timestamp":      time.Now(),
		"count":          len(transcriptions),
		"transcriptions": transcriptions,
	}

	// Write response
	WriteJSON(w, http.StatusOK, response)
}

// DeleteTranscription removes a transcription record and its stored audio
func (h *Handler) DeleteTranscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.transcriptionStorage.DeleteTranscription(id)
	if err != nil {
		h.logger.Error("Failed to delete transcription", logger.Error(err))
		http.Error(w, "Failed to delete transcription", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "Transcription not found", http.StatusNotFound)
		return
	}

	if record.AudioRef != "" {
		if err := h.mediaStore.Delete(record.AudioRef); err != nil {
			h.logger.Warn("Failed to delete stored audio",
				logger.String("ref", record.AudioRef), logger.Error(err))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleWebSocket handles WebSocket connections
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("WebSocket connection request received")

	// Handle the WebSocket connection
	h.wsServer.HandleConnection(w, r)
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":          "ok",
		"timestamp":       time.Now(),
		"active_sessions": len(h.sessionManager.ListSessions()),
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	// Create a sanitized config with only public values
	publicConfig := map[string]any{
		"batch": map[string]any{
			"language":          h.config.Batch.Language,
			"poll_interval_sec": h.config.Batch.PollIntervalSec,
			"max_poll_attempts": h.config.Batch.MaxPollAttempts,
		},
		"realtime": map[string]any{
			"language":      h.config.Realtime.Language,
			"max_delay_sec": h.config.Realtime.MaxDelaySec,
		},
		"capture": map[string]any{
			"sample_rate":   h.config.Capture.SampleRate,
			"frame_samples": h.config.Capture.FrameSamples,
		},
	}

	WriteJSON(w, http.StatusOK, publicConfig)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func parsePaginationParams(r *http.Request) (int, int) {
	limit := 100 // Default limit
	offset := 0  // Default offset

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}
