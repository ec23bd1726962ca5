package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voxscribe/voxscribe/internal/audio"
	"github.com/voxscribe/voxscribe/internal/metrics"
	"github.com/voxscribe/voxscribe/internal/speechmatics"
	"github.com/voxscribe/voxscribe/internal/transcript"
	"github.com/voxscribe/voxscribe/internal/websocket"
	"github.com/voxscribe/voxscribe/pkg/logger"
)

// Session statuses
const (
	StatusRunning    = "running"
	StatusTerminated = "terminated"
	StatusFailed     = "failed"
)

// Stream is the provider-side realtime transcription connection
type Stream interface {
	Start(ctx context.Context, authToken string, config speechmatics.RealtimeConfig) error
	SendAudio(data []byte) error
	Events() <-chan speechmatics.Event
	Stop() error
}

// CaptureSource produces mono float32 audio frames from a local source
type CaptureSource interface {
	Start() error
	Frames() <-chan []float32
	Stop() error
}

// CredentialIssuer obtains short-lived realtime credentials
type CredentialIssuer interface {
	IssueRealtimeToken(ctx context.Context) (string, error)
}

// Orchestrator owns one live transcription session: it pumps captured audio
// into the stream and folds stream events into the running transcript.
type Orchestrator struct {
	id         string
	stream     Stream
	capture    CaptureSource
	issuer     CredentialIssuer
	reconciler *transcript.Reconciler
	hub        *websocket.Server
	config     speechmatics.RealtimeConfig
	metrics    *metrics.Metrics
	logger     *logger.Logger

	mu        sync.Mutex
	status    string
	err       error
	startedAt time.Time

	stopOnce sync.Once
	done     chan struct{}
}

// NewOrchestrator creates a session orchestrator. hub and m may be nil when
// no fan-out or instrumentation is wanted.
func NewOrchestrator(
	id string,
	stream Stream,
	capture CaptureSource,
	issuer CredentialIssuer,
	hub *websocket.Server,
	config speechmatics.RealtimeConfig,
	m *metrics.Metrics,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		id:         id,
		stream:     stream,
		capture:    capture,
		issuer:     issuer,
		reconciler: transcript.NewReconciler(),
		hub:        hub,
		config:     config,
		metrics:    m,
		logger:     log.Named("session").With(logger.String("session_id", id)),
		status:     StatusRunning,
		done:       make(chan struct{}),
	}
}

// Start issues credentials, opens the stream, starts capture, and spawns the
// audio and event pumps. It returns once the session is live.
func (o *Orchestrator) Start(ctx context.Context) error {
	token, err := o.issuer.IssueRealtimeToken(ctx)
	if err != nil {
		o.setFailed(err)
		return fmt.Errorf("failed to issue realtime token: %w", err)
	}

	if err := o.stream.Start(ctx, token, o.config); err != nil {
		o.setFailed(err)
		return fmt.Errorf("failed to start stream: %w", err)
	}

	if err := o.capture.Start(); err != nil {
		o.stream.Stop()
		o.setFailed(err)
		return fmt.Errorf("failed to start audio capture: %w", err)
	}

	o.mu.Lock()
	o.startedAt = time.Now().UTC()
	o.mu.Unlock()

	go o.sendLoop()
	go o.eventLoop()

	o.logger.Info("Session started",
		logger.String("language", o.config.Language))
	return nil
}

// sendLoop encodes captured frames and pushes them to the stream. It never
// touches the receive path, so a slow provider cannot stall capture.
func (o *Orchestrator) sendLoop() {
	for frame := range o.capture.Frames() {
		if err := o.stream.SendAudio(audio.EncodeFrame(frame)); err != nil {
			o.logger.Warn("Failed to send audio frame", logger.Error(err))
			return
		}
		if o.metrics != nil {
			o.metrics.RecordAudioFrame()
		}
	}
}

// eventLoop folds stream events into the transcript and fans them out
func (o *Orchestrator) eventLoop() {
	for event := range o.stream.Events() {
		if o.metrics != nil {
			o.metrics.RecordTranscriptEvent(event.Kind.String())
		}

		switch event.Kind {
		case speechmatics.EventPartial:
			o.reconciler.ApplyPartial(event.Text)
			o.broadcast(websocket.MessageTypePartialTranscript)

		case speechmatics.EventFinal:
			o.reconciler.ApplyFinal(event.Text)
			o.broadcast(websocket.MessageTypeFinalTranscript)

		case speechmatics.EventEndOfUtterance:
			o.reconciler.ApplyEndOfUtterance()
			o.broadcast(websocket.MessageTypeEndOfUtterance)

		case speechmatics.EventError:
			o.logger.Error("Stream reported fatal error",
				logger.String("reason", event.Reason))
			o.setFailed(fmt.Errorf("stream error: %s", event.Reason))
			if o.hub != nil {
				o.hub.Broadcast(&websocket.Message{
					Type: websocket.MessageTypeSessionError,
					Data: map[string]any{
						"session_id": o.id,
						"reason":     event.Reason,
					},
				})
			}
			o.Stop()
			return

		case speechmatics.EventClosed:
			o.logger.Info("Stream closed by provider")
			o.Stop()
			return
		}
	}
}

func (o *Orchestrator) broadcast(messageType string) {
	if o.hub == nil {
		return
	}
	snapshot := o.reconciler.Snapshot()
	o.hub.Broadcast(&websocket.Message{
		Type: messageType,
		Data: map[string]any{
			"session_id": o.id,
			"final":      snapshot.Final,
			"partial":    snapshot.Partial,
			"composed":   snapshot.Composed,
		},
	})
}

// Stop tears the session down. Safe to call multiple times and from
// multiple goroutines; audio intake stops before the stream closes so the
// provider sees a clean end of stream.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		o.logger.Info("Stopping session")

		if err := o.capture.Stop(); err != nil {
			o.logger.Warn("Error stopping capture", logger.Error(err))
		}
		if err := o.stream.Stop(); err != nil {
			o.logger.Warn("Error stopping stream", logger.Error(err))
		}

		o.mu.Lock()
		if o.status == StatusRunning {
			o.status = StatusTerminated
		}
		o.mu.Unlock()

		close(o.done)

		if o.hub != nil {
			o.hub.Broadcast(&websocket.Message{
				Type: websocket.MessageTypeSessionStopped,
				Data: map[string]any{"session_id": o.id},
			})
		}
	})
}

// Done is closed when the session has fully stopped
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// ID returns the session identifier
func (o *Orchestrator) ID() string {
	return o.id
}

// Language returns the language the session transcribes
func (o *Orchestrator) Language() string {
	return o.config.Language
}

// Snapshot returns the current transcript state
func (o *Orchestrator) Snapshot() transcript.Snapshot {
	return o.reconciler.Snapshot()
}

// Status returns the session lifecycle state
func (o *Orchestrator) Status() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Err returns the fatal error that terminated the session, if any
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// StartedAt returns when the session went live
func (o *Orchestrator) StartedAt() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.startedAt
}

func (o *Orchestrator) setFailed(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = StatusFailed
	if o.err == nil {
		o.err = err
	}
}
