package speechmatics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxscribe/voxscribe/pkg/logger"
)

func newTestClient(baseURL string) *Client {
	return NewClient("test-key", baseURL, "enhanced", 5, logger.NewNop())
}

func TestSubmitJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/jobs" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Unexpected auth header: %q", auth)
		}

		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("Failed to parse multipart form: %v", err)
		}

		var config jobConfig
		if err := json.Unmarshal([]byte(r.FormValue("config")), &config); err != nil {
			t.Fatalf("Failed to parse config part: %v", err)
		}
		if config.Type != "transcription" {
			t.Errorf("Expected config type %q, got %q", "transcription", config.Type)
		}
		if config.TranscriptionConfig.Language != "es" {
			t.Errorf("Expected language %q, got %q", "es", config.TranscriptionConfig.Language)
		}
		if config.TranscriptionConfig.OperatingPoint != "enhanced" {
			t.Errorf("Expected operating point %q, got %q", "enhanced", config.TranscriptionConfig.OperatingPoint)
		}

		file, header, err := r.FormFile("data_file")
		if err != nil {
			t.Fatalf("Missing data_file part: %v", err)
		}
		defer file.Close()
		if header.Filename != "test.mp3" {
			t.Errorf("Expected filename %q, got %q", "test.mp3", header.Filename)
		}

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "job-123"}`))
	}))
	defer server.Close()

	jobID, err := newTestClient(server.URL).Submit(context.Background(), []byte("audio-bytes"), "audio/mpeg", "test.mp3", "es")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if jobID != "job-123" {
		t.Errorf("Expected job ID %q, got %q", "job-123", jobID)
	}
}

func TestSubmitWithoutAPIKey(t *testing.T) {
	client := NewClient("", "http://unused", "enhanced", 5, logger.NewNop())

	_, err := client.Submit(context.Background(), []byte("audio"), "audio/mpeg", "a.mp3", "en")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSubmitRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("invalid key"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Submit(context.Background(), []byte("audio"), "audio/mpeg", "a.mp3", "en")

	var rejected *ProviderRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Expected ProviderRejectedError, got %v", err)
	}
	if rejected.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", rejected.StatusCode)
	}
	if !strings.Contains(rejected.Body, "invalid key") {
		t.Errorf("Expected body to contain response text, got %q", rejected.Body)
	}
}

func TestSubmitProviderUnreachable(t *testing.T) {
	// Point at a server that is already closed
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := newTestClient(server.URL).Submit(context.Background(), []byte("audio"), "audio/mpeg", "a.mp3", "en")

	var unavailable *ProviderUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Expected ProviderUnavailableError, got %v", err)
	}
}

func TestFetchStatusTopLevelShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/jobs/job-123" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"id": "job-123", "status": "running"}`))
	}))
	defer server.Close()

	state, err := newTestClient(server.URL).FetchStatus(context.Background(), "job-123")
	if err != nil {
		t.Fatalf("FetchStatus failed: %v", err)
	}
	if state.Status != JobStatusRunning {
		t.Errorf("Expected status %q, got %q", JobStatusRunning, state.Status)
	}
}

func TestFetchStatusWrappedShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"job": {"id": "job-123", "status": "done", "duration": 31.0}}`))
	}))
	defer server.Close()

	state, err := newTestClient(server.URL).FetchStatus(context.Background(), "job-123")
	if err != nil {
		t.Fatalf("FetchStatus failed: %v", err)
	}
	if state.Status != JobStatusDone {
		t.Errorf("Expected status %q, got %q", JobStatusDone, state.Status)
	}
	if state.DurationSeconds != 31.0 {
		t.Errorf("Expected duration 31.0, got %v", state.DurationSeconds)
	}
}

func TestFetchTranscriptJoinsWords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/jobs/job-123/transcript" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"results": [
				{"type": "word", "alternatives": [{"content": "hola"}]},
				{"type": "punctuation", "alternatives": [{"content": ","}]},
				{"type": "word", "alternatives": [{"content": "mundo"}]},
				{"type": "punctuation", "alternatives": [{"content": "."}]}
			]
		}`))
	}))
	defer server.Close()

	transcript, err := newTestClient(server.URL).FetchTranscript(context.Background(), "job-123")
	if err != nil {
		t.Fatalf("FetchTranscript failed: %v", err)
	}
	if transcript != "hola mundo" {
		t.Errorf("Expected transcript %q, got %q", "hola mundo", transcript)
	}
}

func TestFetchTranscriptEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchTranscript(context.Background(), "job-123")

	var missing *TranscriptUnavailableError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected TranscriptUnavailableError, got %v", err)
	}
}

func TestFetchTranscriptSkipsTokensWithoutAlternatives(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"results": [
				{"type": "word", "alternatives": [{"content": "hello"}]},
				{"type": "word", "alternatives": []},
				{"type": "word", "alternatives": [{"content": "there"}]}
			]
		}`))
	}))
	defer server.Close()

	transcript, err := newTestClient(server.URL).FetchTranscript(context.Background(), "job-123")
	if err != nil {
		t.Fatalf("FetchTranscript failed: %v", err)
	}
	if transcript != "hello there" {
		t.Errorf("Expected transcript %q, got %q", "hello there", transcript)
	}
}
