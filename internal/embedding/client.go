package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v5"

	"newswire/internal/config"
	"newswire/internal/observability"
)

// EmbedRequest is the payload for the embedding API.
type EmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbedResponse is the embedding API response.
type EmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Client calls the embedding endpoint, slicing inputs into sub-batches of the
// model's batch limit.
type Client struct {
	cfg   config.EmbeddingConfig
	httpc *http.Client
}

// NewClient builds the embedding client.
func NewClient(cfg config.EmbeddingConfig) *Client {
	return &Client{cfg: cfg, httpc: observability.NewHTTPClient(cfg.Timeout)}
}

func (c *Client) Dimension() int { return c.cfg.Dimension }

// EmbedBatch embeds texts in API-sized sub-batches and returns one vector per
// input, in order. The vectors are returned as the API produced them; length
// validation is the writer's concern (a wrong-length vector must be observed
// per chunk, not per batch).
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	all := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := c.embedOnce(ctx, texts[start:end])
		if err != nil {
			return all, err
		}
		all = append(all, vecs...)
	}
	return all, nil
}

func (c *Client) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(EmbedRequest{Model: c.cfg.Model, Input: texts})
	if err != nil {
		return nil, err
	}
	return backoff.Retry(ctx, func() ([][]float32, error) {
		return c.post(ctx, body, len(texts))
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
}

func (c *Client) post(ctx context.Context, body []byte, want int) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 4 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, backoff.Permanent(fmt.Errorf("embedding status %d: %s", resp.StatusCode, b))
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("embedding status %d", resp.StatusCode)
	}

	var er EmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(er.Embeddings) != want {
		return nil, backoff.Permanent(fmt.Errorf("embedding count mismatch: got %d for %d inputs",
			len(er.Embeddings), want))
	}
	return er.Embeddings, nil
}
