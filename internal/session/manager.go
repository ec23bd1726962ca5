package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxscribe/voxscribe/internal/audio"
	"github.com/voxscribe/voxscribe/internal/metrics"
	"github.com/voxscribe/voxscribe/internal/speechmatics"
	"github.com/voxscribe/voxscribe/internal/storage/sqlite"
	"github.com/voxscribe/voxscribe/internal/websocket"
	"github.com/voxscribe/voxscribe/pkg/logger"
)

// Import logger functions
var (
	String = logger.String
	Int    = logger.Int
	Error  = logger.Error
)

// Config holds the realtime and capture settings shared by all sessions
type Config struct {
	RealtimeURL              string
	Language                 string
	OperatingPoint           string
	MaxDelay                 float64
	RemoveDisfluencies       bool
	EndOfUtteranceSilenceSec float64
	Capture                  audio.CaptureConfig
}

// Manager tracks live transcription sessions by ID
type Manager struct {
	baseCtx context.Context
	config  Config
	issuer  CredentialIssuer
	hub     *websocket.Server
	storage *sqlite.TranscriptionStorage
	metrics *metrics.Metrics
	logger  *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Orchestrator

	// How long a finished session stays queryable before eviction
	retention time.Duration

	// Overridable for tests
	newStream  func() Stream
	newCapture func() CaptureSource
}

// defaultRetention keeps stopped sessions queryable long enough for clients
// to read or save the transcript, while bounding the session map on a
// long-lived server.
const defaultRetention = 30 * time.Minute

// NewManager creates a session manager. Captures run under baseCtx so they
// outlive the HTTP request that started them; cancelling baseCtx tears down
// every capture process. metrics may be nil.
func NewManager(
	baseCtx context.Context,
	config Config,
	issuer CredentialIssuer,
	hub *websocket.Server,
	storage *sqlite.TranscriptionStorage,
	mtr *metrics.Metrics,
	log *logger.Logger,
) *Manager {
	m := &Manager{
		baseCtx:   baseCtx,
		config:    config,
		issuer:    issuer,
		hub:       hub,
		storage:   storage,
		metrics:   mtr,
		logger:    log.Named("session-manager"),
		sessions:  make(map[string]*Orchestrator),
		retention: defaultRetention,
	}

	m.newStream = func() Stream {
		return speechmatics.NewRealtimeSession(config.RealtimeURL, log)
	}
	m.newCapture = func() CaptureSource {
		return audio.NewFFmpegSource(m.baseCtx, config.Capture, log)
	}

	return m
}

// StartSession starts a new live transcription session. language overrides
// the configured default when non-empty.
func (m *Manager) StartSession(ctx context.Context, language string) (*Orchestrator, error) {
	if language == "" {
		language = m.config.Language
	}

	rtConfig := speechmatics.RealtimeConfig{
		Language:                 language,
		OperatingPoint:           m.config.OperatingPoint,
		EnablePartials:           true,
		MaxDelay:                 m.config.MaxDelay,
		RemoveDisfluencies:       m.config.RemoveDisfluencies,
		EndOfUtteranceSilenceSec: m.config.EndOfUtteranceSilenceSec,
		SampleRate:               m.config.Capture.SampleRate,
	}

	id := uuid.NewString()
	orch := NewOrchestrator(
		id,
		m.newStream(),
		m.newCapture(),
		m.issuer,
		m.hub,
		rtConfig,
		m.metrics,
		m.logger,
	)

	if err := orch.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = orch
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordSessionStarted()
	}
	go m.watchSession(orch)

	if m.hub != nil {
		m.hub.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeSessionStarted,
			Data: map[string]any{
				"session_id": id,
				"language":   language,
			},
		})
	}

	m.logger.Info("Started session",
		String("session_id", id),
		String("language", language))

	return orch, nil
}

// watchSession waits for the session to finish, records its duration, and
// evicts it from the map after the retention window so finished sessions
// do not accumulate for the lifetime of the server.
func (m *Manager) watchSession(orch *Orchestrator) {
	select {
	case <-orch.Done():
	case <-m.baseCtx.Done():
		return
	}

	if m.metrics != nil {
		m.metrics.RecordSessionStopped(time.Since(orch.StartedAt()).Seconds())
	}

	timer := time.NewTimer(m.retention)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-m.baseCtx.Done():
		return
	}

	m.mu.Lock()
	if m.sessions[orch.ID()] == orch {
		delete(m.sessions, orch.ID())
	}
	m.mu.Unlock()

	m.logger.Debug("Evicted finished session", String("session_id", orch.ID()))
}

// GetSession returns a session by ID, or nil if unknown
func (m *Manager) GetSession(id string) *Orchestrator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// ListSessions returns all tracked sessions
func (m *Manager) ListSessions() []*Orchestrator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Orchestrator, 0, len(m.sessions))
	for _, orch := range m.sessions {
		sessions = append(sessions, orch)
	}
	return sessions
}

// StopSession stops a session but keeps its transcript available. The
// stopped session is returned so callers can report its final state without
// a second lookup, which could miss a concurrently saved session.
func (m *Manager) StopSession(id string) (*Orchestrator, error) {
	orch := m.GetSession(id)
	if orch == nil {
		return nil, fmt.Errorf("session not found: %s", id)
	}

	orch.Stop()
	return orch, nil
}

// SaveSession persists the session's composed transcript as a record and
// removes the session from the manager. The session must have some
// transcript text.
func (m *Manager) SaveSession(id string) (*sqlite.TranscriptionRecord, error) {
	orch := m.GetSession(id)
	if orch == nil {
		return nil, fmt.Errorf("session not found: %s", id)
	}

	orch.Stop()

	composed := strings.TrimSpace(orch.Snapshot().Composed)
	if composed == "" {
		return nil, fmt.Errorf("session %s has no transcript to save", id)
	}

	record := &sqlite.TranscriptionRecord{
		Source:         sqlite.SourceRealtime,
		Language:       orch.Language(),
		Status:         sqlite.StatusCompleted,
		TranscriptText: composed,
		DurationSecs:   time.Since(orch.StartedAt()).Seconds(),
	}
	if _, err := m.storage.CreateTranscription(record); err != nil {
		return nil, fmt.Errorf("failed to save session transcript: %w", err)
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	m.logger.Info("Saved session transcript",
		String("session_id", id),
		String("record_id", record.ID),
		Int("transcript_chars", len(composed)))

	return record, nil
}

// StopAll stops every tracked session. Used during shutdown.
func (m *Manager) StopAll() {
	m.mu.RLock()
	sessions := make([]*Orchestrator, 0, len(m.sessions))
	for _, orch := range m.sessions {
		sessions = append(sessions, orch)
	}
	m.mu.RUnlock()

	for _, orch := range sessions {
		orch.Stop()
	}

	if len(sessions) > 0 {
		m.logger.Info("Stopped all sessions", Int("count", len(sessions)))
	}
}
