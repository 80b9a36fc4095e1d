package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"

	"newswire/internal/config"
	"newswire/internal/observability"
)

// GenerateRequest is the payload for the single-endpoint generate API.
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// GenerateResponse is the subset of the response this system consumes.
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Client calls an Ollama-compatible generate endpoint. A circuit breaker
// keeps a dead endpoint from being hammered by every continuous-service tick;
// an open breaker surfaces as a transient error, not a parse failure.
type Client struct {
	cfg     config.LLMConfig
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient builds the generate client.
func NewClient(cfg config.LLMConfig) *Client {
	return &Client{
		cfg:   cfg,
		httpc: observability.NewHTTPClient(cfg.Timeout),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "llm-generate",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// Generate issues one prompt and returns the raw response string. Transient
// HTTP failures are retried with exponential back-off; 4xx responses are not.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(GenerateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": 0.0,
		},
	})
	if err != nil {
		return "", err
	}

	out, err := c.breaker.Execute(func() (any, error) {
		return backoff.Retry(ctx, func() (string, error) {
			return c.post(ctx, body)
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 4 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", backoff.Permanent(fmt.Errorf("llm status %d: %s", resp.StatusCode, b))
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("llm status %d", resp.StatusCode)
	}

	var gr GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	return gr.Response, nil
}
