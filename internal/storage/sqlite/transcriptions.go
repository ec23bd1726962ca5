package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voxscribe/voxscribe/pkg/logger"
)

// Transcription record statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Transcription record sources
const (
	SourceBatch    = "batch"
	SourceRealtime = "realtime"
)

// TranscriptionRecord represents a transcription record in the database
type TranscriptionRecord struct {
	ID             string    `json:"id"`
	Source         string    `json:"source"`
	Filename       string    `json:"filename,omitempty"`
	AudioRef       string    `json:"-"`
	Language       string    `json:"language"`
	Status         string    `json:"status"`
	TranscriptText string    `json:"transcript_text,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	FileSizeBytes  int64     `json:"file_size_bytes,omitempty"`
	DurationSecs   float64   `json:"duration_seconds,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TranscriptionStorage handles storage of transcription records
type TranscriptionStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewTranscriptionStorage creates a new SQLite transcription storage
func NewTranscriptionStorage(db *sql.DB, logger *logger.Logger) *TranscriptionStorage {
	storage := &TranscriptionStorage{
		db:     db,
		logger: logger.Named("sqlite-tx"),
	}

	// Initialize database
	if err := storage.initDB(); err != nil {
		logger.Error("Failed to initialize transcription storage", Error(err))
	}

	return storage
}

// initDB initializes the database tables
func (s *TranscriptionStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcriptions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			filename TEXT,
			audio_ref TEXT,
			language TEXT NOT NULL,
			status TEXT NOT NULL,
			transcript_text TEXT,
			error_message TEXT,
			file_size_bytes INTEGER NOT NULL DEFAULT 0,
			duration_seconds REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create transcriptions table: %w", err)
	}

	// Create indexes
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_status ON transcriptions(status)`)
	if err != nil {
		return fmt.Errorf("failed to create status index: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_created_at ON transcriptions(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_source ON transcriptions(source)`)
	if err != nil {
		return fmt.Errorf("failed to create source index: %w", err)
	}

	return nil
}

// CreateTranscription inserts a new record and returns its generated ID
func (s *TranscriptionStorage) CreateTranscription(record *TranscriptionRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Status == "" {
		record.Status = StatusPending
	}

	_, err := s.db.Exec(
		`INSERT INTO transcriptions
		(id, source, filename, audio_ref, language, status, transcript_text, error_message, file_size_bytes, duration_seconds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Source,
		record.Filename,
		record.AudioRef,
		record.Language,
		record.Status,
		record.TranscriptText,
		record.ErrorMessage,
		record.FileSizeBytes,
		record.DurationSecs,
		record.CreatedAt.Format(time.RFC3339),
		record.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert transcription: %w", err)
	}

	return record.ID, nil
}

// GetTranscription returns a single record by ID
func (s *TranscriptionStorage) GetTranscription(id string) (*TranscriptionRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, source, filename, audio_ref, language, status, transcript_text, error_message, file_size_bytes, duration_seconds, created_at, updated_at
		FROM transcriptions
		WHERE id = ?`,
		id,
	)

	record, err := scanTranscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transcription: %w", err)
	}

	return record, nil
}

// GetTranscriptions returns all transcriptions with pagination
func (s *TranscriptionStorage) GetTranscriptions(limit, offset int) ([]*TranscriptionRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, source, filename, audio_ref, language, status, transcript_text, error_message, file_size_bytes, duration_seconds, created_at, updated_at
		FROM transcriptions
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcriptions: %w", err)
	}
	defer rows.Close()

	var records []*TranscriptionRecord
	for rows.Next() {
		record, err := scanTranscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcription: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// SetProcessing marks a record as submitted to the provider
func (s *TranscriptionStorage) SetProcessing(id string) error {
	return s.setStatus(id, StatusProcessing, "", "")
}

// SetCompleted stores the final transcript plus the measured audio duration
// and marks the record completed
func (s *TranscriptionStorage) SetCompleted(id string, transcript string, durationSeconds float64) error {
	result, err := s.db.Exec(
		`UPDATE transcriptions
		SET status = ?, transcript_text = ?, error_message = '', duration_seconds = ?, updated_at = ?
		WHERE id = ?`,
		StatusCompleted,
		transcript,
		durationSeconds,
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update transcription status: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("transcription not found: %s", id)
	}

	s.logger.Debug("Updated transcription status",
		String("id", id),
		String("status", StatusCompleted))

	return nil
}

// SetFailed marks a record failed with the given message
func (s *TranscriptionStorage) SetFailed(id string, message string) error {
	return s.setStatus(id, StatusFailed, "", message)
}

func (s *TranscriptionStorage) setStatus(id, status, transcript, errMsg string) error {
	result, err := s.db.Exec(
		`UPDATE transcriptions
		SET status = ?, transcript_text = ?, error_message = ?, updated_at = ?
		WHERE id = ?`,
		status,
		transcript,
		errMsg,
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update transcription status: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("transcription not found: %s", id)
	}

	s.logger.Debug("Updated transcription status",
		String("id", id),
		String("status", status))

	return nil
}

// DeleteTranscription removes a record. Returns the deleted record so the
// caller can clean up its stored audio.
func (s *TranscriptionStorage) DeleteTranscription(id string) (*TranscriptionRecord, error) {
	record, err := s.GetTranscription(id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	if _, err := s.db.Exec(`DELETE FROM transcriptions WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete transcription: %w", err)
	}

	return record, nil
}

// scanner matches both sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTranscription(row scanner) (*TranscriptionRecord, error) {
	var record TranscriptionRecord
	var createdAt, updatedAt string
	var filename, audioRef, transcriptText, errorMessage sql.NullString

	if err := row.Scan(
		&record.ID,
		&record.Source,
		&filename,
		&audioRef,
		&record.Language,
		&record.Status,
		&transcriptText,
		&errorMessage,
		&record.FileSizeBytes,
		&record.DurationSecs,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	record.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	record.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	// Handle nullable fields
	if filename.Valid {
		record.Filename = filename.String
	}
	if audioRef.Valid {
		record.AudioRef = audioRef.String
	}
	if transcriptText.Valid {
		record.TranscriptText = transcriptText.String
	}
	if errorMessage.Valid {
		record.ErrorMessage = errorMessage.String
	}

	return &record, nil
}
