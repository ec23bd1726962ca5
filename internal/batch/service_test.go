package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxscribe/voxscribe/internal/speechmatics"
	"github.com/voxscribe/voxscribe/pkg/logger"
)

type fakeResolver struct {
	data []byte
	err  error
}

func (f *fakeResolver) Resolve(ref string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, "audio/mpeg", nil
}

type fakeJobClient struct {
	jobID     string
	submitErr error
	language  string
}

func (f *fakeJobClient) Submit(ctx context.Context, audio []byte, contentType, filename, language string) (string, error) {
	f.language = language
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.jobID, nil
}

// fakeRecordStore captures the order of lifecycle transitions
type fakeRecordStore struct {
	transitions []string
	transcript  string
	duration    float64
	failMessage string
}

func (f *fakeRecordStore) SetProcessing(id string) error {
	f.transitions = append(f.transitions, "processing")
	return nil
}

func (f *fakeRecordStore) SetCompleted(id string, transcript string, durationSeconds float64) error {
	f.transitions = append(f.transitions, "completed")
	f.transcript = transcript
	f.duration = durationSeconds
	return nil
}

func (f *fakeRecordStore) SetFailed(id string, message string) error {
	f.transitions = append(f.transitions, "failed")
	f.failMessage = message
	return nil
}

func newServiceUnderTest(client JobClient, store Store, resolver *fakeResolver, statuses []speechmatics.JobStatus, transcript string) *Service {
	poller := NewPoller(&fakeStatusClient{statuses: statuses, transcript: transcript, duration: 4.2}, time.Millisecond, 10, nil, logger.NewNop())
	return NewService(client, poller, store, resolver, nil, logger.NewNop())
}

func TestTranscribeHappyPath(t *testing.T) {
	store := &fakeRecordStore{}
	client := &fakeJobClient{jobID: "job-1"}
	svc := newServiceUnderTest(client, store,
		&fakeResolver{data: []byte("audio")},
		[]speechmatics.JobStatus{speechmatics.JobStatusRunning, speechmatics.JobStatusDone},
		"hola mundo")

	transcript, err := svc.Transcribe(context.Background(), "rec-1", "a.mp3", "es")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript != "hola mundo" {
		t.Errorf("Expected transcript %q, got %q", "hola mundo", transcript)
	}
	if client.language != "es" {
		t.Errorf("Expected language passed through, got %q", client.language)
	}

	want := []string{"processing", "completed"}
	if len(store.transitions) != len(want) {
		t.Fatalf("Expected transitions %v, got %v", want, store.transitions)
	}
	for i := range want {
		if store.transitions[i] != want[i] {
			t.Errorf("Transition %d: expected %q, got %q", i, want[i], store.transitions[i])
		}
	}
	if store.transcript != "hola mundo" {
		t.Errorf("Expected stored transcript %q, got %q", "hola mundo", store.transcript)
	}
	if store.duration != 4.2 {
		t.Errorf("Expected stored duration 4.2, got %v", store.duration)
	}
}

func TestRecordMarkedFailedBeforeErrorReturns(t *testing.T) {
	store := &fakeRecordStore{}
	client := &fakeJobClient{submitErr: errors.New("boom")}
	svc := newServiceUnderTest(client, store, &fakeResolver{data: []byte("audio")}, nil, "")

	_, err := svc.Transcribe(context.Background(), "rec-1", "a.mp3", "en")
	if err == nil {
		t.Fatal("Expected an error")
	}

	// The record must already be in failed state by the time the caller
	// observes the error.
	found := false
	for _, tr := range store.transitions {
		if tr == "failed" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a failed transition, got %v", store.transitions)
	}
	if store.failMessage == "" {
		t.Error("Expected a failure message recorded")
	}
}

func TestResolveFailureFailsRecord(t *testing.T) {
	store := &fakeRecordStore{}
	svc := newServiceUnderTest(&fakeJobClient{jobID: "job-1"}, store,
		&fakeResolver{err: errors.New("no such file")}, nil, "")

	_, err := svc.Transcribe(context.Background(), "rec-1", "missing.mp3", "en")
	if err == nil {
		t.Fatal("Expected an error")
	}
	if len(store.transitions) != 1 || store.transitions[0] != "failed" {
		t.Errorf("Expected single failed transition, got %v", store.transitions)
	}
}

func TestJobFailureStatusFailsRecord(t *testing.T) {
	store := &fakeRecordStore{}
	svc := newServiceUnderTest(&fakeJobClient{jobID: "job-1"}, store,
		&fakeResolver{data: []byte("audio")},
		[]speechmatics.JobStatus{speechmatics.JobStatusRejected}, "")

	_, err := svc.Transcribe(context.Background(), "rec-1", "a.mp3", "en")

	var failed *TranscriptionFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("Expected TranscriptionFailedError, got %v", err)
	}
	last := store.transitions[len(store.transitions)-1]
	if last != "failed" {
		t.Errorf("Expected final transition failed, got %v", store.transitions)
	}
}
