// Package client is a Go SDK for the quest-engine leaderboard API. The
// reconciler uses it for best-effort delta pushes and the periodic
// leaderboard pull.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quest-forge/quest-engine/internal/models"
)

// Client talks to one quest-engine instance.
type Client struct {
	baseURL    string
	pin        string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a client for the given base URL and shared workshop PIN.
func New(baseURL, pin string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		pin:     pin,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// StartLabRequest reports that a participant opened a lab.
type StartLabRequest struct {
	ParticipantID string `json:"participantId"`
	LabID         string `json:"labId"`
	Timestamp     int64  `json:"timestamp"` // unix ms
}

// CompleteLabRequest reports a lab completion with the participant's
// current score high-water mark.
type CompleteLabRequest struct {
	ParticipantID string `json:"participantId"`
	LabID         string `json:"labId"`
	Score         int    `json:"score"`
	ElapsedMs     int64  `json:"elapsedMs"`
	Timestamp     int64  `json:"timestamp"`
}

// AddPointsRequest reports one score delta.
type AddPointsRequest struct {
	ParticipantID string `json:"participantId"`
	StepID        string `json:"stepId"`
	LabID         string `json:"labId"`
	Points        int    `json:"points"`
	Assisted      bool   `json:"assisted"`
	Hint          bool   `json:"hint,omitempty"`
	Solution      bool   `json:"solution,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// HeartbeatRequest keeps a participant's last-active timestamp fresh.
type HeartbeatRequest struct {
	ParticipantID string `json:"participantId"`
	LabID         string `json:"labId,omitempty"`
}

// ResetRequest zeroes exactly one participant's server-side entry.
type ResetRequest struct {
	ParticipantID string `json:"participantId"`
}

// Entries fetches the full leaderboard entry set.
func (c *Client) Entries(ctx context.Context) ([]models.LeaderboardEntry, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/v1/leaderboard", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Entries []models.LeaderboardEntry `json:"entries"`
		} `json:"data"`
		Error *apiError `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !result.Success {
		return nil, result.Error.err()
	}
	return result.Data.Entries, nil
}

// StartLab records a lab start.
func (c *Client) StartLab(ctx context.Context, req StartLabRequest) error {
	return c.post(ctx, "/api/v1/leaderboard/start-lab", req)
}

// CompleteLab records a lab completion.
func (c *Client) CompleteLab(ctx context.Context, req CompleteLabRequest) error {
	return c.post(ctx, "/api/v1/leaderboard/complete-lab", req)
}

// AddPoints applies a score delta to a participant's entry.
func (c *Client) AddPoints(ctx context.Context, req AddPointsRequest) error {
	return c.post(ctx, "/api/v1/leaderboard/add-points", req)
}

// Heartbeat touches a participant's last-active timestamp.
func (c *Client) Heartbeat(ctx context.Context, req HeartbeatRequest) error {
	return c.post(ctx, "/api/v1/leaderboard/heartbeat", req)
}

// Reset zeroes one participant's entry. Other entries are untouched.
func (c *Client) Reset(ctx context.Context, participantID string) error {
	return c.post(ctx, "/api/v1/leaderboard/reset", ResetRequest{ParticipantID: participantID})
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}

	var result struct {
		Success bool      `json:"success"`
		Error   *apiError `json:"error"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !result.Success {
		return result.Error.err()
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.pin != "" {
		req.Header.Set("X-Workshop-Pin", c.pin)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) err() error {
	if e == nil {
		return fmt.Errorf("API error: unknown")
	}
	return fmt.Errorf("API error: %s - %s", e.Code, e.Message)
}
