package batch

import (
	"errors"
	"fmt"

	"github.com/voxscribe/voxscribe/internal/speechmatics"
)

// ErrTranscriptionTimeout indicates the poll attempt budget was exhausted
// without the job reaching a terminal state. The job may still complete on the
// provider side; callers may resubmit as a brand-new job.
var ErrTranscriptionTimeout = errors.New("transcription timed out waiting for job completion")

// TranscriptionFailedError indicates the job reached a failure terminal state
type TranscriptionFailedError struct {
	JobID  string
	Status speechmatics.JobStatus
}

func (e *TranscriptionFailedError) Error() string {
	return fmt.Sprintf("transcription job %s failed with status: %s", e.JobID, e.Status)
}
