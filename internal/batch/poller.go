package batch

import (
	"context"
	"errors"
	"time"

	"github.com/voxscribe/voxscribe/internal/metrics"
	"github.com/voxscribe/voxscribe/internal/speechmatics"
	"github.com/voxscribe/voxscribe/pkg/logger"
)

// Import logger functions
var (
	String = logger.String
	Int    = logger.Int
	Error  = logger.Error
)

const (
	// DefaultPollInterval is the fixed delay between status polls
	DefaultPollInterval = 3 * time.Second
	// DefaultMaxAttempts bounds the poll loop (~5 minute ceiling)
	DefaultMaxAttempts = 100
)

// StatusClient is the provider surface the poller drives
type StatusClient interface {
	FetchStatus(ctx context.Context, jobID string) (speechmatics.JobState, error)
	FetchTranscript(ctx context.Context, jobID string) (string, error)
}

// Result is the outcome of a successful poll run
type Result struct {
	Transcript      string
	DurationSeconds float64
}

// Poller drives a submitted job to completion through a bounded poll loop.
// This loop is the sole retry policy for batch acquisition.
type Poller struct {
	client      StatusClient
	interval    time.Duration
	maxAttempts int
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

// NewPoller creates a new batch poller. metrics may be nil.
func NewPoller(client StatusClient, interval time.Duration, maxAttempts int, m *metrics.Metrics, logger *logger.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Poller{
		client:      client,
		interval:    interval,
		maxAttempts: maxAttempts,
		metrics:     m,
		logger:      logger.Named("batch-poller"),
	}
}

// Run polls the job status at a fixed interval until a terminal state or the
// attempt budget is exhausted. A transient transport failure on a status poll
// consumes that attempt and polling continues; the budget is never reset. A
// provider rejection or a failure terminal state ends the loop immediately.
func (p *Poller) Run(ctx context.Context, jobID string) (Result, error) {
	log := p.logger.With(String("job_id", jobID))

	attempts := 0
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordPollAttempts(attempts)
		}
	}()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		attempts = attempt
		state, err := p.client.FetchStatus(ctx, jobID)
		if err != nil {
			var unavailable *speechmatics.ProviderUnavailableError
			if errors.As(err, &unavailable) {
				log.Warn("Transient failure polling job status",
					Int("attempt", attempt),
					Error(err))
			} else {
				return Result{}, err
			}
		} else {
			switch state.Status {
			case speechmatics.JobStatusDone:
				log.Info("Job completed", Int("attempts", attempt))
				transcript, err := p.client.FetchTranscript(ctx, jobID)
				if err != nil {
					return Result{}, err
				}
				return Result{Transcript: transcript, DurationSeconds: state.DurationSeconds}, nil

			case speechmatics.JobStatusError, speechmatics.JobStatusRejected:
				log.Warn("Job reached failure state",
					String("status", string(state.Status)),
					Int("attempts", attempt))
				return Result{}, &TranscriptionFailedError{JobID: jobID, Status: state.Status}

			default:
				// Still running; wait for the next poll
				log.Debug("Job still in progress",
					String("status", string(state.Status)),
					Int("attempt", attempt))
			}
		}

		if attempt == p.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(p.interval):
		}
	}

	return Result{}, ErrTranscriptionTimeout
}
