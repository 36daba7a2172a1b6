// Package sdk is a small HTTP client for the recall chat API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/recall-labs/recall/internal/domain"
)

const defaultTimeout = 60 * time.Second

// Sentinel errors surfaced from API error envelopes.
// Use errors.Is() to check.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrServer       = errors.New("server error")
)

// Client talks to a recall server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ChatRequest is the payload for Chat.
type ChatRequest struct {
	Message string                    `json:"message"`
	History []domain.ConversationTurn `json:"conversation_history,omitempty"`
	UserID  string                    `json:"user_id"`
}

// Chat asks a question against the user's saved content.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (domain.ChatResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.ChatResult{}, fmt.Errorf("sdk: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(body),
	)
	if err != nil {
		return domain.ChatResult{}, fmt.Errorf("sdk: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.ChatResult{}, fmt.Errorf("sdk: chat request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.ChatResult{}, decodeError(resp)
	}

	var result domain.ChatResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.ChatResult{}, fmt.Errorf("sdk: decode response: %w", err)
	}
	return result, nil
}

// HealthReport is the decoded /health response.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health fetches the server health report. A degraded or unhealthy
// server still returns a report; only transport failures error.
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return HealthReport{}, fmt.Errorf("sdk: build request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return HealthReport{}, fmt.Errorf("sdk: health request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var report HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return HealthReport{}, fmt.Errorf("sdk: decode response: %w", err)
	}
	return report, nil
}

// apiError mirrors the server's error envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeError(resp *http.Response) error {
	sentinel := ErrServer
	switch resp.StatusCode {
	case http.StatusBadRequest:
		sentinel = ErrBadRequest
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusNotFound:
		sentinel = ErrNotFound
	}

	var apiErr apiError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
		return fmt.Errorf("sdk: %w (status %d)", sentinel, resp.StatusCode)
	}
	return fmt.Errorf("sdk: %w: %s", sentinel, apiErr.Message)
}
