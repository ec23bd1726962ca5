package media

import (
	"bytes"
	"testing"

	"github.com/voxscribe/voxscribe/pkg/logger"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), logger.NewNop())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return store
}

func TestSaveAndResolve(t *testing.T) {
	store := newTestStore(t)
	audio := []byte("fake mp3 bytes")

	ref, err := store.Save("recording.mp3", audio)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ref == "recording.mp3" {
		t.Error("Reference should not expose the original filename")
	}

	data, contentType, err := store.Resolve(ref)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !bytes.Equal(data, audio) {
		t.Error("Resolved bytes do not match saved bytes")
	}
	if contentType != "audio/mpeg" {
		t.Errorf("Expected content type audio/mpeg, got %q", contentType)
	}
}

func TestSaveRejectsUnknownExtension(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Save("malware.exe", []byte("x")); err == nil {
		t.Error("Expected error for unsupported extension")
	}
}

func TestResolveRejectsPathTraversal(t *testing.T) {
	store := newTestStore(t)

	for _, ref := range []string{"../secret.mp3", "a/b.mp3", "", "."} {
		if _, _, err := store.Resolve(ref); err == nil {
			t.Errorf("Expected error for reference %q", ref)
		}
	}
}

func TestDeleteRemovesFile(t *testing.T) {
	store := newTestStore(t)

	ref, err := store.Save("a.wav", []byte("wav data"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Delete(ref); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, _, err := store.Resolve(ref); err == nil {
		t.Error("Expected resolve to fail after delete")
	}

	// Deleting again is not an error
	if err := store.Delete(ref); err != nil {
		t.Errorf("Second delete should be a no-op, got %v", err)
	}
}
