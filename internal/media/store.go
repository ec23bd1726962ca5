package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/voxscribe/voxscribe/pkg/logger"
)

// Resolver resolves an opaque audio reference to raw bytes and a content type
type Resolver interface {
	Resolve(ref string) ([]byte, string, error)
}

// contentTypes maps audio file extensions to MIME types
var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".webm": "audio/webm",
}

// FileStore stores uploaded audio on the local filesystem and resolves the
// opaque references it issues back to bytes.
type FileStore struct {
	baseDir string
	logger  *logger.Logger
}

// NewFileStore creates a file-backed media store rooted at baseDir
func NewFileStore(baseDir string, logger *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	return &FileStore{
		baseDir: baseDir,
		logger:  logger.Named("media-store"),
	}, nil
}

// Save stores an uploaded file and returns an opaque reference for it. The
// original filename only contributes its extension; the reference itself is
// a generated identifier.
func (s *FileStore) Save(originalName string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if _, ok := contentTypes[ext]; !ok {
		return "", fmt.Errorf("unsupported audio format: %q", ext)
	}

	ref := uuid.NewString() + ext
	path := filepath.Join(s.baseDir, ref)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to store audio file: %w", err)
	}

	s.logger.Debug("Stored audio file",
		logger.String("ref", ref),
		logger.Int("bytes", len(data)))

	return ref, nil
}

// Resolve returns the bytes and content type for a stored reference
func (s *FileStore) Resolve(ref string) ([]byte, string, error) {
	// Reject anything that could escape the media directory
	if ref != filepath.Base(ref) || ref == "" || ref == "." {
		return nil, "", fmt.Errorf("invalid audio reference: %q", ref)
	}

	path := filepath.Join(s.baseDir, ref)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve audio reference %q: %w", ref, err)
	}

	contentType := contentTypes[strings.ToLower(filepath.Ext(ref))]
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return data, contentType, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *FileStore) Delete(ref string) error {
	if ref != filepath.Base(ref) || ref == "" || ref == "." {
		return fmt.Errorf("invalid audio reference: %q", ref)
	}

	err := os.Remove(filepath.Join(s.baseDir, ref))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete audio file %q: %w", ref, err)
	}
	return nil
}
