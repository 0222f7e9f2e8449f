// Package telraam talks to the Telraam-style traffic reports API. It is a
// thin transport layer: authentication, request shaping and retries live
// here, while all merge and persistence semantics stay with the caller.
package telraam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/maxliesegang/telraam-data-collector/internal/model"
	"github.com/maxliesegang/telraam-data-collector/internal/retry"
)

// DefaultBaseURL is the production reports API endpoint.
const DefaultBaseURL = "https://telraam-api.net/v1"

// timeLayout is the instant format the reports API expects.
const timeLayout = "2006-01-02 15:04:05Z"

// APIError is a failed API call, carrying the HTTP status when one was
// received.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("telraam api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("telraam api error: %s", e.Message)
}

// isRetryable reports whether a failure is worth retrying. Client-side
// errors (auth, validation) will fail the same way every time; everything
// else, including network errors and 5xx responses, is assumed transient.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < 400 || apiErr.StatusCode >= 500
	}
	return true
}

// Client fetches hourly traffic readings for a device over the reports API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	strategy   *retry.Strategy
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryStrategy substitutes the retry strategy.
func WithRetryStrategy(s *retry.Strategy) Option {
	return func(c *Client) { c.strategy = s }
}

// NewClient creates a reports API client authenticating with apiKey.
// An empty baseURL selects the production endpoint.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		strategy:   retry.New(retry.WithRetryable(isRetryable)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type reportRequest struct {
	ID        string `json:"id"`
	Level     string `json:"level"`
	Format    string `json:"format"`
	TimeStart string `json:"time_start"`
	TimeEnd   string `json:"time_end"`
}

type reportResponse struct {
	Message string                 `json:"message"`
	Report  []model.TrafficReading `json:"report"`
}

// FetchReadings retrieves the per-hour traffic report for deviceID between
// start and end. Transient failures are retried; after the retries are
// exhausted the last failure is returned as-is.
func (c *Client) FetchReadings(ctx context.Context, deviceID string, start, end time.Time) ([]model.TrafficReading, error) {
	var readings []model.TrafficReading

	op := fmt.Sprintf("fetch device %s", deviceID)
	err := c.strategy.Do(ctx, op, func() error {
		var err error
		readings, err = c.fetchOnce(ctx, deviceID, start, end)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Device %s: fetched %d readings (%s to %s)",
		deviceID, len(readings), start.UTC().Format(timeLayout), end.UTC().Format(timeLayout))
	return readings, nil
}

func (c *Client) fetchOnce(ctx context.Context, deviceID string, start, end time.Time) ([]model.TrafficReading, error) {
	payload := reportRequest{
		ID:        deviceID,
		Level:     "instances",
		Format:    "per-hour",
		TimeStart: start.UTC().Format(timeLayout),
		TimeEnd:   end.UTC().Format(timeLayout),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reports/traffic", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: summarize(raw)}
	}

	var report reportResponse
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to parse response: %v", err)}
	}

	return report.Report, nil
}

// summarize trims an error body down to something that fits in a log line.
func summarize(body []byte) string {
	const max = 200
	s := string(bytes.TrimSpace(body))
	if len(s) > max {
		s = s[:max] + "..."
	}
	if s == "" {
		s = "empty response body"
	}
	return s
}
