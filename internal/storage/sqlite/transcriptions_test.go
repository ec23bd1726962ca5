package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/voxscribe/voxscribe/pkg/logger"
)

func newTestStorage(t *testing.T) *TranscriptionStorage {
	t.Helper()

	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewTranscriptionStorage(db.GetDB(), logger.NewNop())
}

func TestCreateAndGetTranscription(t *testing.T) {
	storage := newTestStorage(t)

	record := &TranscriptionRecord{
		Source:        SourceBatch,
		Filename:      "meeting.mp3",
		AudioRef:      "abc123.mp3",
		Language:      "en",
		FileSizeBytes: 1024,
	}
	id, err := storage.CreateTranscription(record)
	if err != nil {
		t.Fatalf("CreateTranscription failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a generated ID")
	}

	got, err := storage.GetTranscription(id)
	if err != nil {
		t.Fatalf("GetTranscription failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected record, got nil")
	}
	if got.Status != StatusPending {
		t.Errorf("Expected default status pending, got %q", got.Status)
	}
	if got.Filename != "meeting.mp3" {
		t.Errorf("Expected filename preserved, got %q", got.Filename)
	}
	if got.FileSizeBytes != 1024 {
		t.Errorf("Expected file size 1024, got %d", got.FileSizeBytes)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("Expected timestamps set")
	}
}

func TestGetUnknownTranscription(t *testing.T) {
	storage := newTestStorage(t)

	got, err := storage.GetTranscription("does-not-exist")
	if err != nil {
		t.Fatalf("GetTranscription failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for unknown ID, got %+v", got)
	}
}

func TestStatusLifecycle(t *testing.T) {
	storage := newTestStorage(t)

	id, err := storage.CreateTranscription(&TranscriptionRecord{
		Source:   SourceBatch,
		Language: "en",
	})
	if err != nil {
		t.Fatalf("CreateTranscription failed: %v", err)
	}

	if err := storage.SetProcessing(id); err != nil {
		t.Fatalf("SetProcessing failed: %v", err)
	}
	got, _ := storage.GetTranscription(id)
	if got.Status != StatusProcessing {
		t.Errorf("Expected status processing, got %q", got.Status)
	}

	if err := storage.SetCompleted(id, "hello world", 42.5); err != nil {
		t.Fatalf("SetCompleted failed: %v", err)
	}
	got, _ = storage.GetTranscription(id)
	if got.Status != StatusCompleted {
		t.Errorf("Expected status completed, got %q", got.Status)
	}
	if got.DurationSecs != 42.5 {
		t.Errorf("Expected duration 42.5, got %v", got.DurationSecs)
	}
	if got.TranscriptText != "hello world" {
		t.Errorf("Expected transcript stored, got %q", got.TranscriptText)
	}
}

func TestSetFailedStoresMessage(t *testing.T) {
	storage := newTestStorage(t)

	id, err := storage.CreateTranscription(&TranscriptionRecord{
		Source:   SourceBatch,
		Language: "en",
	})
	if err != nil {
		t.Fatalf("CreateTranscription failed: %v", err)
	}

	if err := storage.SetFailed(id, "provider rejected request"); err != nil {
		t.Fatalf("SetFailed failed: %v", err)
	}

	got, _ := storage.GetTranscription(id)
	if got.Status != StatusFailed {
		t.Errorf("Expected status failed, got %q", got.Status)
	}
	if got.ErrorMessage != "provider rejected request" {
		t.Errorf("Expected error message stored, got %q", got.ErrorMessage)
	}
}

func TestSetStatusUnknownRecord(t *testing.T) {
	storage := newTestStorage(t)

	if err := storage.SetCompleted("does-not-exist", "text", 0); err == nil {
		t.Error("Expected error updating unknown record")
	}
}

func TestListAndDelete(t *testing.T) {
	storage := newTestStorage(t)

	for i := 0; i < 3; i++ {
		if _, err := storage.CreateTranscription(&TranscriptionRecord{
			Source:   SourceBatch,
			Language: "en",
		}); err != nil {
			t.Fatalf("CreateTranscription failed: %v", err)
		}
	}

	records, err := storage.GetTranscriptions(10, 0)
	if err != nil {
		t.Fatalf("GetTranscriptions failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	deleted, err := storage.DeleteTranscription(records[0].ID)
	if err != nil {
		t.Fatalf("DeleteTranscription failed: %v", err)
	}
	if deleted == nil {
		t.Fatal("Expected deleted record returned")
	}

	records, _ = storage.GetTranscriptions(10, 0)
	if len(records) != 2 {
		t.Errorf("Expected 2 records after delete, got %d", len(records))
	}
}

func TestDeleteUnknownRecord(t *testing.T) {
	storage := newTestStorage(t)

	deleted, err := storage.DeleteTranscription("does-not-exist")
	if err != nil {
		t.Fatalf("DeleteTranscription failed: %v", err)
	}
	if deleted != nil {
		t.Errorf("Expected nil for unknown ID, got %+v", deleted)
	}
}
