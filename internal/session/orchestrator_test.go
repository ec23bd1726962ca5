package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxscribe/voxscribe/internal/speechmatics"
	"github.com/voxscribe/voxscribe/pkg/logger"
)

type fakeStream struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	token    string
	config   speechmatics.RealtimeConfig
	sent     [][]byte
	events   chan speechmatics.Event
	stopOnce sync.Once
	startErr error
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan speechmatics.Event, 16)}
}

func (f *fakeStream) Start(ctx context.Context, token string, config speechmatics.RealtimeConfig) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	f.token = token
	f.config = config
	return nil
}

func (f *fakeStream) SendAudio(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeStream) Events() <-chan speechmatics.Event {
	return f.events
}

func (f *fakeStream) Stop() error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.events) })
	return nil
}

func (f *fakeStream) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *fakeStream) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeCapture struct {
	mu      sync.Mutex
	started bool
	stopped bool
	frames  chan []float32
	once    sync.Once
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{frames: make(chan []float32, 16)}
}

func (f *fakeCapture) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeCapture) Frames() <-chan []float32 {
	return f.frames
}

func (f *fakeCapture) Stop() error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	f.once.Do(func() { close(f.frames) })
	return nil
}

type fakeIssuer struct {
	token string
	err   error
}

func (f *fakeIssuer) IssueRealtimeToken(ctx context.Context) (string, error) {
	return f.token, f.err
}

func newTestOrchestrator(stream *fakeStream, capture *fakeCapture, issuer *fakeIssuer) *Orchestrator {
	return NewOrchestrator(
		"test-session",
		stream,
		capture,
		issuer,
		nil,
		speechmatics.RealtimeConfig{Language: "en", EnablePartials: true, SampleRate: 16000},
		nil,
		logger.NewNop(),
	)
}

func waitFor(t *testing.T, check func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if check() {
			return
		}
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTranscriptFlowsFromStreamEvents(t *testing.T) {
	stream := newFakeStream()
	capture := newFakeCapture()
	orch := newTestOrchestrator(stream, capture, &fakeIssuer{token: "tok"})

	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if stream.token != "tok" {
		t.Errorf("Expected token passed through, got %q", stream.token)
	}

	stream.events <- speechmatics.Event{Kind: speechmatics.EventStarted}
	stream.events <- speechmatics.Event{Kind: speechmatics.EventFinal, Text: "hola"}
	stream.events <- speechmatics.Event{Kind: speechmatics.EventPartial, Text: "mun"}
	stream.events <- speechmatics.Event{Kind: speechmatics.EventPartial, Text: "mundo"}

	waitFor(t, func() bool {
		return orch.Snapshot().Composed == "hola mundo"
	}, "Expected composed transcript to reach 'hola mundo'")

	snapshot := orch.Snapshot()
	if snapshot.Final != "hola" {
		t.Errorf("Expected final %q, got %q", "hola", snapshot.Final)
	}
	if snapshot.Partial != "mundo" {
		t.Errorf("Expected partial %q, got %q", "mundo", snapshot.Partial)
	}

	orch.Stop()
}

func TestAudioFramesEncodedAndSent(t *testing.T) {
	stream := newFakeStream()
	capture := newFakeCapture()
	orch := newTestOrchestrator(stream, capture, &fakeIssuer{token: "tok"})

	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	capture.frames <- []float32{0.5, -0.5}
	capture.frames <- []float32{1.0}

	waitFor(t, func() bool { return stream.sentCount() == 2 }, "Expected 2 audio frames sent")

	stream.mu.Lock()
	first := stream.sent[0]
	stream.mu.Unlock()
	if len(first) != 4 {
		t.Errorf("Expected 4 bytes for 2 samples, got %d", len(first))
	}

	orch.Stop()
}

func TestStopIsIdempotent(t *testing.T) {
	stream := newFakeStream()
	capture := newFakeCapture()
	orch := newTestOrchestrator(stream, capture, &fakeIssuer{token: "tok"})

	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	orch.Stop()
	orch.Stop()
	orch.Stop()

	if orch.Status() != StatusTerminated {
		t.Errorf("Expected status %q, got %q", StatusTerminated, orch.Status())
	}
	if !stream.wasStopped() {
		t.Error("Expected stream stopped")
	}

	select {
	case <-orch.Done():
	default:
		t.Error("Expected Done channel closed after Stop")
	}
}

func TestFatalStreamErrorStopsSession(t *testing.T) {
	stream := newFakeStream()
	capture := newFakeCapture()
	orch := newTestOrchestrator(stream, capture, &fakeIssuer{token: "tok"})

	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stream.events <- speechmatics.Event{Kind: speechmatics.EventError, Reason: "quota exceeded"}

	select {
	case <-orch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Session did not stop after fatal error")
	}

	if orch.Status() != StatusFailed {
		t.Errorf("Expected status %q, got %q", StatusFailed, orch.Status())
	}
	if orch.Err() == nil {
		t.Error("Expected terminal error recorded")
	}
}

func TestProviderCloseStopsSession(t *testing.T) {
	stream := newFakeStream()
	capture := newFakeCapture()
	orch := newTestOrchestrator(stream, capture, &fakeIssuer{token: "tok"})

	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stream.events <- speechmatics.Event{Kind: speechmatics.EventFinal, Text: "goodbye"}
	stream.events <- speechmatics.Event{Kind: speechmatics.EventClosed}

	select {
	case <-orch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Session did not stop after provider close")
	}

	if got := orch.Snapshot().Composed; got != "goodbye" {
		t.Errorf("Expected transcript preserved after close, got %q", got)
	}
	if orch.Status() != StatusTerminated {
		t.Errorf("Expected status %q, got %q", StatusTerminated, orch.Status())
	}
}

func TestTokenIssueFailureFailsStart(t *testing.T) {
	stream := newFakeStream()
	capture := newFakeCapture()
	orch := newTestOrchestrator(stream, capture, &fakeIssuer{err: errors.New("mp unavailable")})

	if err := orch.Start(context.Background()); err == nil {
		t.Fatal("Expected Start to fail when token issuance fails")
	}
	if orch.Status() != StatusFailed {
		t.Errorf("Expected status %q, got %q", StatusFailed, orch.Status())
	}
	if stream.started {
		t.Error("Stream should not start without a credential")
	}
}

func TestEndOfUtterancePromotesPartialText(t *testing.T) {
	stream := newFakeStream()
	capture := newFakeCapture()
	orch := newTestOrchestrator(stream, capture, &fakeIssuer{token: "tok"})

	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stream.events <- speechmatics.Event{Kind: speechmatics.EventPartial, Text: "trailing words"}
	stream.events <- speechmatics.Event{Kind: speechmatics.EventEndOfUtterance}

	waitFor(t, func() bool {
		return orch.Snapshot().Final == "trailing words"
	}, "Expected partial promoted to final on end of utterance")

	orch.Stop()
}
