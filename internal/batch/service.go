package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/voxscribe/voxscribe/internal/media"
	"github.com/voxscribe/voxscribe/internal/metrics"
	"github.com/voxscribe/voxscribe/pkg/logger"
)

// JobClient submits audio to the transcription provider
type JobClient interface {
	Submit(ctx context.Context, audio []byte, contentType, filename, language string) (string, error)
}

// Store records the lifecycle of a transcription job
type Store interface {
	SetProcessing(id string) error
	SetCompleted(id string, transcript string, durationSeconds float64) error
	SetFailed(id string, message string) error
}

// Service drives a stored audio reference through the full batch pipeline:
// resolve, submit, poll, fetch, persist.
type Service struct {
	client   JobClient
	poller   *Poller
	store    Store
	resolver media.Resolver
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewService creates a batch transcription service. metrics may be nil.
func NewService(client JobClient, poller *Poller, store Store, resolver media.Resolver, m *metrics.Metrics, logger *logger.Logger) *Service {
	return &Service{
		client:   client,
		poller:   poller,
		store:    store,
		resolver: resolver,
		metrics:  m,
		logger:   logger.Named("batch"),
	}
}

// Transcribe runs the batch pipeline for one record. The record is marked
// failed before any error is returned, so stored state never lags behind
// what the caller observes.
func (s *Service) Transcribe(ctx context.Context, recordID, audioRef, language string) (string, error) {
	started := time.Now()

	audio, contentType, err := s.resolver.Resolve(audioRef)
	if err != nil {
		return "", s.fail(recordID, started, fmt.Errorf("failed to resolve audio: %w", err))
	}

	if err := s.store.SetProcessing(recordID); err != nil {
		s.logger.Warn("Failed to mark record processing",
			String("record_id", recordID), Error(err))
	}

	jobID, err := s.client.Submit(ctx, audio, contentType, filepath.Base(audioRef), language)
	if err != nil {
		return "", s.fail(recordID, started, fmt.Errorf("failed to submit job: %w", err))
	}

	if s.metrics != nil {
		s.metrics.RecordJobSubmitted()
	}

	s.logger.Info("Submitted transcription job",
		String("record_id", recordID),
		String("job_id", jobID))

	result, err := s.poller.Run(ctx, jobID)
	if err != nil {
		return "", s.fail(recordID, started, err)
	}

	if err := s.store.SetCompleted(recordID, result.Transcript, result.DurationSeconds); err != nil {
		return "", s.fail(recordID, started, fmt.Errorf("failed to persist transcript: %w", err))
	}

	if s.metrics != nil {
		s.metrics.RecordJobCompleted(time.Since(started).Seconds())
	}

	s.logger.Info("Transcription completed",
		String("record_id", recordID),
		Int("transcript_chars", len(result.Transcript)))

	return result.Transcript, nil
}

// fail records the failure on the stored record, then returns the original
// error for the caller.
func (s *Service) fail(recordID string, started time.Time, cause error) error {
	if err := s.store.SetFailed(recordID, cause.Error()); err != nil {
		s.logger.Error("Failed to mark record failed",
			String("record_id", recordID), Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordJobFailed(time.Since(started).Seconds())
	}
	s.logger.Error("Transcription failed",
		String("record_id", recordID), Error(cause))
	return cause
}
