// Package reranker is the Reranker Client (spec §4.7): scores
// (query, document) pairs via a remote cross-encoder provider, batched
// by quality mode, degrading gracefully on partial batch failure.
// Adapted from kadirpekel/hector's pkg/embedders provider pattern
// (same HTTP shape, different endpoint), sharing pkg/httpclient with
// the Embedding Client.
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/jetgogoing/sage/pkg/httpclient"
	"github.com/jetgogoing/sage/pkg/model"
)

// Mode controls batch size and, by convention, provider-side effort.
type Mode string

const (
	ModeFast    Mode = "fast"
	ModeBalanced Mode = "balanced"
	ModeQuality Mode = "quality"
)

func batchSizeFor(mode Mode) int {
	switch mode {
	case ModeFast:
		return 5
	case ModeQuality:
		return 20
	default:
		return 10
	}
}

// neutralScore is assigned to every document in a batch that failed
// outright, so a partial provider failure degrades precision rather
// than breaking the response (spec §4.7).
const neutralScore = 0.5

// Scored is one reranked document result.
type Scored struct {
	OriginalIndex  int     `json:"original_index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Client calls the remote reranker provider.
type Client struct {
	http    *httpclient.Client
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// New builds a reranker Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:    httpclient.New(httpclient.WithMaxRetries(3), httpclient.WithBaseDelay(1*time.Second)),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: timeout,
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores documents against query, batching by mode, and returns
// results sorted descending by relevance_score. If topK > 0, only the
// top topK are returned.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, mode Mode, topK int) ([]Scored, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	batchSize := batchSizeFor(mode)
	all := make([]Scored, 0, len(documents))

	for start := 0; start < len(documents); start += batchSize {
		end := start + batchSize
		if end > len(documents) {
			end = len(documents)
		}
		batch := documents[start:end]

		scores, err := c.rerankBatch(ctx, query, batch)
		if err != nil {
			for i := range batch {
				all = append(all, Scored{OriginalIndex: start + i, RelevanceScore: neutralScore})
			}
			continue
		}
		for i, s := range scores {
			all = append(all, Scored{OriginalIndex: start + i, RelevanceScore: s})
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].RelevanceScore > all[j].RelevanceScore })

	if topK > 0 && topK < len(all) {
		all = all[:topK]
	}
	return all, nil
}

func (c *Client) rerankBatch(ctx context.Context, query string, documents []string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Documents: documents})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("reranker HTTP %d: %s", resp.StatusCode, string(data))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	scores := make([]float64, len(documents))
	for _, r := range parsed.Results {
		if r.Index >= 0 && r.Index < len(scores) {
			scores[r.Index] = r.RelevanceScore
		}
	}
	return scores, nil
}

// FusionWeight returns the neural-score weight used to combine a
// reranker score with a pre-existing score, by query type (spec §4.7):
// final = w*neural + (1-w)*original.
func FusionWeight(queryType model.QueryType) float64 {
	switch queryType {
	case model.QueryTechnical:
		return 0.6
	case model.QueryDiagnostic:
		return 0.7
	case model.QueryConversational:
		return 0.5
	case model.QueryConceptual:
		return 0.65
	default:
		return 0.6
	}
}
