package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jetgogoing/sage/pkg/httpclient"
	"github.com/jetgogoing/sage/pkg/sageerr"
)

// Client is the siliconflow-compatible embedding provider (spec §6):
// POST /v1/embeddings with {model, input, encoding_format: "float"}.
// Grounded on kadirpekel/hector's pkg/embedders/openai.go, with the
// hand-rolled retry loop replaced by pkg/httpclient so the Embedding
// and Reranker Clients share one backoff implementation.
type Client struct {
	http      *httpclient.Client
	baseURL   string
	apiKey    string
	model     string
	dimension int
	timeout   time.Duration
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration // default 30s, per spec §4.6
}

// New builds a Client with 3 retries and 1s exponential backoff,
// matching the Embedding Client contract.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:      httpclient.New(httpclient.WithMaxRetries(3), httpclient.WithBaseDelay(1*time.Second)),
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		timeout:   timeout,
	}
}

var _ Embedder = (*Client)(nil)

type embedRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	EncodingFormat string `json:"encoding_format"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed requests the embedding for text. The text hash is attached as
// a correlation id for logging/tracing only; it plays no role in
// request semantics (spec §4.6's "idempotency" note).
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	correlationID := correlationHash(text)

	body, err := json.Marshal(embedRequest{Model: c.model, Input: text, EncodingFormat: "float"})
	if err != nil {
		return nil, sageerr.New(sageerr.ProviderSchema, "embedder", err).WithCorrelation(correlationID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, sageerr.New(sageerr.ProviderSchema, "embedder", err).WithCorrelation(correlationID)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, sageerr.New(sageerr.ProviderTimeout, "embedder", ctx.Err()).WithCorrelation(correlationID)
		}
		if resp != nil && resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, sageerr.New(sageerr.ProviderServerError, "embedder", err).WithCorrelation(correlationID)
		}
		return nil, sageerr.New(sageerr.ProviderUnavailable, "embedder", err).WithCorrelation(correlationID)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sageerr.New(sageerr.ProviderServerError, "embedder", err).WithCorrelation(correlationID)
	}

	if resp.StatusCode >= 500 {
		return nil, sageerr.New(sageerr.ProviderServerError, "embedder",
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))).WithCorrelation(correlationID)
	}
	if resp.StatusCode >= 400 {
		return nil, sageerr.New(sageerr.ProviderClientError, "embedder",
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))).WithCorrelation(correlationID)
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, sageerr.New(sageerr.ProviderSchema, "embedder", err).WithCorrelation(correlationID)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, sageerr.New(sageerr.ProviderSchema, "embedder",
			fmt.Errorf("provider returned no embedding data")).WithCorrelation(correlationID)
	}

	vec := parsed.Data[0].Embedding
	if c.dimension > 0 && len(vec) != c.dimension {
		return nil, sageerr.New(sageerr.ProviderSchema, "embedder",
			fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), c.dimension)).WithCorrelation(correlationID)
	}

	return vec, nil
}

// Probe embeds a short fixed string to confirm the configured
// dimension matches what the provider actually returns; sage refuses
// to start if it does not (spec §6).
func (c *Client) Probe(ctx context.Context) (int, error) {
	vec, err := c.Embed(ctx, "sage-dimension-probe")
	if err != nil {
		return 0, err
	}
	return len(vec), nil
}

// Dimension returns the configured embedding dimension.
func (c *Client) Dimension() int { return c.dimension }

// Model returns the configured embedding model name.
func (c *Client) Model() string { return c.model }

func correlationHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}
