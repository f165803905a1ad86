package reranker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jetgogoing/sage/pkg/model"
)

func TestRerankSortsDescending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		json.NewDecoder(r.Body).Decode(&req)
		results := make([]struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		}, len(req.Documents))
		for i := range req.Documents {
			results[i].Index = i
			results[i].RelevanceScore = float64(len(req.Documents)-i) / 10.0
		}
		json.NewEncoder(w).Encode(rerankResponse{Results: results})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "bge-reranker"})
	scored, err := c.Rerank(context.Background(), "query", []string{"doc-a", "doc-b", "doc-c"}, ModeFast, 0)
	require.NoError(t, err)
	require.Len(t, scored, 3)
	for i := 1; i < len(scored); i++ {
		require.GreaterOrEqual(t, scored[i-1].RelevanceScore, scored[i].RelevanceScore)
	}
}

func TestRerankTopK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		json.NewDecoder(r.Body).Decode(&req)
		results := make([]struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		}, len(req.Documents))
		for i := range req.Documents {
			results[i].Index = i
			results[i].RelevanceScore = float64(i)
		}
		json.NewEncoder(w).Encode(rerankResponse{Results: results})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	scored, err := c.Rerank(context.Background(), "q", []string{"a", "b", "c", "d"}, ModeFast, 2)
	require.NoError(t, err)
	require.Len(t, scored, 2)
}

func TestRerankBatchFailureDegradesToNeutral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	scored, err := c.Rerank(context.Background(), "q", []string{"a", "b"}, ModeFast, 0)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	for _, s := range scored {
		require.Equal(t, neutralScore, s.RelevanceScore)
	}
}

func TestRerankEmptyDocuments(t *testing.T) {
	c := New(Config{BaseURL: "http://unused"})
	scored, err := c.Rerank(context.Background(), "q", nil, ModeFast, 0)
	require.NoError(t, err)
	require.Nil(t, scored)
}

func TestFusionWeightByQueryType(t *testing.T) {
	require.Equal(t, 0.6, FusionWeight(model.QueryTechnical))
	require.Equal(t, 0.7, FusionWeight(model.QueryDiagnostic))
	require.Equal(t, 0.5, FusionWeight(model.QueryConversational))
	require.Equal(t, 0.65, FusionWeight(model.QueryConceptual))
	require.Equal(t, 0.6, FusionWeight(model.QueryProcedural))
}
