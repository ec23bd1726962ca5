package speechmatics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/voxscribe/voxscribe/pkg/logger"
)

// DefaultBaseURL is the batch transcription API endpoint
var DefaultBaseURL = "https://asr.api.speechmatics.com"

// Client handles communication with the batch transcription job API
type Client struct {
	apiKey         string
	operatingPoint string
	httpClient     *http.Client
	logger         *logger.Logger
	// baseURL allows overriding the default API endpoint (e.g. for proxies).
	// Stored without a trailing slash.
	baseURL string
}

// NewClient creates a new batch job client
func NewClient(apiKey, baseURL, operatingPoint string, timeoutSeconds int, logger *logger.Logger) *Client {
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second // Default to 2 minutes if not specified
	}

	if apiKey == "" {
		logger.Warn("Speechmatics API key is empty - batch transcription will not work")
	}

	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	if operatingPoint == "" {
		operatingPoint = "enhanced"
	}

	return &Client{
		apiKey:         apiKey,
		operatingPoint: operatingPoint,
		baseURL:        base,
		logger:         logger.Named("speechmatics"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Submit sends audio bytes plus a transcription configuration to the provider
// and returns the provider-assigned job ID.
func (c *Client) Submit(ctx context.Context, audio []byte, contentType, filename, language string) (string, error) {
	// Fail fast if no API key is configured
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	c.logger.Info("Submitting batch transcription job",
		logger.String("filename", filename),
		logger.String("language", language),
		logger.Int("audio_bytes", len(audio)))

	// Build the multipart request body: a config JSON part and the audio data
	config := jobConfig{
		Type: "transcription",
		TranscriptionConfig: transcriptionConfig{
			Language:       language,
			OperatingPoint: c.operatingPoint,
		},
	}
	configJSON, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job config: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("config", string(configJSON)); err != nil {
		return "", fmt.Errorf("failed to write config part: %w", err)
	}

	part, err := writer.CreateFormFile("data_file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create data_file part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	// Create request
	apiURL := c.baseURL + "/v2/jobs"
	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	// Execute request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ProviderUnavailableError{Op: "submit", Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderRejectedError{Op: "submit", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var result jobResponse
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return "", fmt.Errorf("failed to parse submit response: %w", err)
	}

	jobID := result.ID
	if jobID == "" && result.Job != nil {
		jobID = result.Job.ID
	}
	if jobID == "" {
		return "", fmt.Errorf("submit response missing job id: %s", string(bodyBytes))
	}

	c.logger.Info("Batch job submitted", logger.String("job_id", jobID))
	return jobID, nil
}

// FetchStatus reads the current state of a batch job
func (c *Client) FetchStatus(ctx context.Context, jobID string) (JobState, error) {
	if c.apiKey == "" {
		return JobState{}, ErrMissingAPIKey
	}

	apiURL := fmt.Sprintf("%s/v2/jobs/%s", c.baseURL, jobID)
	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return JobState{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return JobState{}, &ProviderUnavailableError{Op: "fetch status", Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return JobState{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return JobState{}, &ProviderRejectedError{Op: "fetch status", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var result jobResponse
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return JobState{}, fmt.Errorf("failed to parse status response: %w", err)
	}

	// Some responses wrap the job object, others are flat
	state := JobState{Status: result.Status, DurationSeconds: result.Duration}
	if result.Job != nil && result.Job.Status != "" {
		state.Status = result.Job.Status
		state.DurationSeconds = result.Job.Duration
	}
	if state.Status == "" {
		return JobState{}, fmt.Errorf("status response missing job status: %s", string(bodyBytes))
	}

	c.logger.Debug("Fetched job status",
		logger.String("job_id", jobID),
		logger.String("status", string(state.Status)))

	return state, nil
}

// FetchTranscript retrieves the finished transcript for a done job. Word-typed
// result tokens are joined by single spaces in provider order, using the first
// alternative of each token; punctuation and other token kinds are ignored.
func (c *Client) FetchTranscript(ctx context.Context, jobID string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	apiURL := fmt.Sprintf("%s/v2/jobs/%s/transcript", c.baseURL, jobID)
	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ProviderUnavailableError{Op: "fetch transcript", Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderRejectedError{Op: "fetch transcript", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var result transcriptResponse
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return "", &TranscriptUnavailableError{JobID: jobID, Reason: fmt.Sprintf("malformed result set: %v", err)}
	}
	if result.Results == nil {
		return "", &TranscriptUnavailableError{JobID: jobID, Reason: "no transcript results found"}
	}

	var words []string
	for _, token := range result.Results {
		if token.Type != "word" {
			continue
		}
		if len(token.Alternatives) == 0 {
			continue
		}
		words = append(words, token.Alternatives[0].Content)
	}

	transcript := strings.TrimSpace(strings.Join(words, " "))

	c.logger.Info("Fetched transcript",
		logger.String("job_id", jobID),
		logger.Int("word_count", len(words)))

	return transcript, nil
}
