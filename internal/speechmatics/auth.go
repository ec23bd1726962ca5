package speechmatics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxscribe/voxscribe/pkg/logger"
)

// DefaultManagementBaseURL is the management API endpoint used to exchange the
// long-lived API key for short-lived realtime credentials.
var DefaultManagementBaseURL = "https://mp.speechmatics.com"

// TemporaryKeyIssuer issues short-lived bearer credentials for realtime
// sessions so the long-lived API key never reaches the streaming connection.
type TemporaryKeyIssuer struct {
	apiKey     string
	baseURL    string
	ttlSeconds int
	httpClient *http.Client
	logger     *logger.Logger
}

// NewTemporaryKeyIssuer creates a new credential issuer
func NewTemporaryKeyIssuer(apiKey, baseURL string, ttlSeconds int, logger *logger.Logger) *TemporaryKeyIssuer {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultManagementBaseURL
	}
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}

	return &TemporaryKeyIssuer{
		apiKey:     apiKey,
		baseURL:    base,
		ttlSeconds: ttlSeconds,
		logger:     logger.Named("credential-issuer"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IssueRealtimeToken returns a short-lived bearer credential scoped to
// realtime transcription.
func (i *TemporaryKeyIssuer) IssueRealtimeToken(ctx context.Context) (string, error) {
	if i.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	reqBody, err := json.Marshal(map[string]int{"ttl": i.ttlSeconds})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	apiURL := i.baseURL + "/v1/api_keys?type=rt"
	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", i.apiKey))

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", &ProviderUnavailableError{Op: "issue credential", Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderRejectedError{Op: "issue credential", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var result struct {
		KeyValue string `json:"key_value"`
	}
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return "", fmt.Errorf("failed to parse credential response: %w", err)
	}
	if result.KeyValue == "" {
		return "", fmt.Errorf("credential response missing key value")
	}

	i.logger.Debug("Issued realtime credential", logger.Int("ttl_seconds", i.ttlSeconds))
	return result.KeyValue, nil
}
