package speechmatics

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey indicates the provider API key was not configured. Checked
// before any network activity so misconfiguration fails fast.
var ErrMissingAPIKey = errors.New("speechmatics API key is not configured")

// ProviderUnavailableError indicates a network or transport failure reaching
// the provider. The underlying error is preserved for inspection.
type ProviderUnavailableError struct {
	Op  string
	Err error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("speechmatics %s: provider unavailable: %v", e.Op, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// ProviderRejectedError indicates the provider answered with a non-2xx status.
// The status code and response body are surfaced to the caller.
type ProviderRejectedError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ProviderRejectedError) Error() string {
	return fmt.Sprintf("speechmatics %s: provider rejected request: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// TranscriptUnavailableError indicates the finished-transcript result set was
// missing or malformed for a job the provider reported as done.
type TranscriptUnavailableError struct {
	JobID  string
	Reason string
}

func (e *TranscriptUnavailableError) Error() string {
	return fmt.Sprintf("transcript unavailable for job %s: %s", e.JobID, e.Reason)
}

// ConnectionError indicates the realtime handshake or transport failed. Fatal
// for the session; a new session requires a new connection.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("realtime connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
