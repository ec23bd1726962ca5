package speechmatics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voxscribe/voxscribe/pkg/logger"
)

// DefaultRealtimeBaseURL is the streaming transcription endpoint
var DefaultRealtimeBaseURL = "wss://eu2.rt.speechmatics.com"

// RealtimeConfig contains the transcription parameters for a streaming session
type RealtimeConfig struct {
	Language                 string
	OperatingPoint           string
	EnablePartials           bool
	MaxDelay                 float64
	RemoveDisfluencies       bool
	EndOfUtteranceSilenceSec float64
	SampleRate               int
}

// RealtimeSession owns one persistent connection to the streaming provider.
// It is not restartable: a new session requires a new connection.
type RealtimeSession struct {
	baseURL string
	conn    *websocket.Conn
	mu      sync.Mutex
	closed  bool
	started bool
	seqNo   int
	events  chan Event
	done    chan struct{}
	logger  *logger.Logger
}

// NewRealtimeSession creates an unconnected realtime session
func NewRealtimeSession(baseURL string, logger *logger.Logger) *RealtimeSession {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultRealtimeBaseURL
	}

	return &RealtimeSession{
		baseURL: toWebSocketBase(base),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		logger:  logger.Named("realtime"),
	}
}

// newStartRecognition builds the session-configuration message for a
// streaming session. The optional config sections are only present when
// their features are enabled.
func newStartRecognition(cfg RealtimeConfig) startRecognition {
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	start := startRecognition{
		Message: "StartRecognition",
		AudioFormat: audioFormat{
			Type:       "raw",
			Encoding:   "pcm_s16le",
			SampleRate: sampleRate,
		},
		TranscriptionConfig: rtTranscriptionConfig{
			Language:       cfg.Language,
			OperatingPoint: cfg.OperatingPoint,
			EnablePartials: cfg.EnablePartials,
			MaxDelay:       cfg.MaxDelay,
		},
	}
	if cfg.RemoveDisfluencies {
		start.TranscriptionConfig.TranscriptFilteringConfig = &filteringConfig{RemoveDisfluencies: true}
	}
	if cfg.EndOfUtteranceSilenceSec > 0 {
		start.TranscriptionConfig.ConversationConfig = &conversationConfig{
			EndOfUtteranceSilenceTrigger: cfg.EndOfUtteranceSilenceSec,
		}
	}

	return start
}

// toWebSocketBase converts an http(s) base URL to the corresponding ws(s) URL.
// e.g. https://api.example -> wss://api.example
func toWebSocketBase(httpBase string) string {
	b := strings.TrimRight(httpBase, "/")
	if strings.HasPrefix(b, "https://") {
		return "wss://" + strings.TrimPrefix(b, "https://")
	} else if strings.HasPrefix(b, "http://") {
		return "ws://" + strings.TrimPrefix(b, "http://")
	}
	// Already ws:// or wss://
	return b
}

// Start opens the connection and sends the session-configuration message.
// After a successful Start the event channel carries decoded transcript
// events until the connection closes.
func (s *RealtimeSession) Start(ctx context.Context, authToken string, cfg RealtimeConfig) error {
	if authToken == "" {
		return &ConnectionError{Err: fmt.Errorf("no realtime credential provided")}
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return &ConnectionError{Err: fmt.Errorf("session already started")}
	}
	s.started = true
	s.mu.Unlock()

	wsURL := s.baseURL + "/v2"
	s.logger.Debug("Connecting to realtime endpoint", logger.String("url", wsURL))

	dialer := websocket.Dialer{
		HandshakeTimeout: 45 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Authorization", fmt.Sprintf("Bearer %s", authToken))

	// Connect with retry
	var conn *websocket.Conn
	var err error

	maxRetries := 3
	retryInterval := 2 * time.Second

	for attempt := 0; attempt < maxRetries; attempt++ {
		conn, _, err = dialer.DialContext(ctx, wsURL, headers)
		if err == nil {
			break
		}

		s.logger.Warn("Failed to connect to realtime endpoint",
			logger.Int("attempt", attempt+1),
			logger.Error(err))

		if attempt == maxRetries-1 {
			return &ConnectionError{Err: fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, err)}
		}

		select {
		case <-ctx.Done():
			return &ConnectionError{Err: ctx.Err()}
		case <-time.After(retryInterval):
		}
	}

	// Send the session configuration
	start := newStartRecognition(cfg)

	data, err := json.Marshal(start)
	if err != nil {
		conn.Close()
		return &ConnectionError{Err: fmt.Errorf("failed to marshal session config: %w", err)}
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		conn.Close()
		return &ConnectionError{Err: fmt.Errorf("failed to send session config: %w", err)}
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("Realtime session connected",
		logger.String("language", cfg.Language),
		logger.Int("sample_rate", start.AudioFormat.SampleRate))

	go s.readLoop()

	return nil
}

// SendAudio transmits one encoded audio frame. Frames are sent in call order;
// the session never reorders them.
func (s *RealtimeSession) SendAudio(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.conn == nil {
		return fmt.Errorf("realtime session is closed")
	}

	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	s.seqNo++

	// Avoid excessive logging on the hot path
	if s.seqNo%100 == 0 {
		s.logger.Debug("Sent audio frame", logger.Int("seq_no", s.seqNo))
	}

	return nil
}

// Events returns the channel of decoded transcript events. The channel is
// closed when the connection terminates.
func (s *RealtimeSession) Events() <-chan Event {
	return s.events
}

// Stop requests graceful termination. No further SendAudio calls are accepted
// afterwards. Stopping an already-stopped session is a no-op.
func (s *RealtimeSession) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	seqNo := s.seqNo
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	// Tell the provider no more audio is coming, then let the read loop drain
	// trailing transcript events until the provider acknowledges the end of
	// the transcript or closes the connection. Only then tear down the
	// transport, so finals emitted in response to EndOfStream are delivered.
	eos := endOfStream{Message: "EndOfStream", LastSeqNo: seqNo}
	if data, err := json.Marshal(eos); err == nil {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Debug("Failed to send end-of-stream message", logger.Error(err))
		}
	}

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		s.logger.Warn("Timed out waiting for end of transcript")
	}

	deadline := time.Now().Add(5 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	return conn.Close()
}

// readLoop consumes provider messages, decodes them into events, and delivers
// them in arrival order until the connection closes.
func (s *RealtimeSession) readLoop() {
	defer close(s.events)
	defer close(s.done)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			stopped := s.closed
			s.mu.Unlock()

			if stopped || isExpectedClose(err) {
				s.logger.Debug("Realtime connection closed", logger.Error(err))
			} else {
				s.logger.Error("Realtime read error", logger.Error(err))
				s.events <- Event{Kind: EventError, Reason: err.Error()}
			}
			s.events <- Event{Kind: EventClosed}
			return
		}

		event, ok, err := decodeEvent(data)
		if err != nil {
			s.logger.Error("Failed to decode realtime message", logger.Error(err))
			continue
		}
		if !ok {
			continue
		}

		s.events <- event

		if event.Kind == EventClosed {
			return
		}
	}
}

// isExpectedClose reports whether a read error corresponds to a normal
// connection shutdown rather than a transport failure.
func isExpectedClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection")
}

// decodeEvent maps one raw provider message onto the closed event set.
// Messages outside the set (audio acknowledgements, informational notices)
// are reported as not-ok and skipped by the caller.
func decodeEvent(data []byte) (Event, bool, error) {
	var msg realtimeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, false, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Message == "" {
		return Event{}, false, fmt.Errorf("message missing discriminator: %s", string(data))
	}

	transcript := ""
	if msg.Metadata != nil {
		transcript = strings.TrimSpace(msg.Metadata.Transcript)
	}

	switch msg.Message {
	case "RecognitionStarted":
		return Event{Kind: EventStarted}, true, nil
	case "AddPartialTranscript":
		return Event{Kind: EventPartial, Text: transcript}, true, nil
	case "AddTranscript":
		return Event{Kind: EventFinal, Text: transcript}, true, nil
	case "EndOfUtterance":
		return Event{Kind: EventEndOfUtterance}, true, nil
	case "EndOfTranscript":
		return Event{Kind: EventClosed}, true, nil
	case "Error":
		return Event{Kind: EventError, Reason: msg.Reason}, true, nil
	default:
		// AudioAdded, Info, Warning and friends carry no transcript state
		return Event{}, false, nil
	}
}
