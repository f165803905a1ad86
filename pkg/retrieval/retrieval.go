// Package retrieval is the Retrieval Engine (spec §4.11): the
// seven-step pipeline from a raw query to a ranked, diversity-filtered
// list of RetrievalResults, with an LRU query cache in front of it.
package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jetgogoing/sage/pkg/embedder"
	"github.com/jetgogoing/sage/pkg/model"
	"github.com/jetgogoing/sage/pkg/reranker"
	"github.com/jetgogoing/sage/pkg/scoring"
	"github.com/jetgogoing/sage/pkg/semantic"
	"github.com/jetgogoing/sage/pkg/storage"
	"github.com/jetgogoing/sage/pkg/temporal"
)

// defaultDiversityLambda is the λ in spec §4.11 step 6's selection
// objective (1-λ)*final_score + λ*diversity.
const defaultDiversityLambda = 0.7

// scoringConcurrency bounds how many candidate rows step 4 scores in
// parallel. Scoring a row is pure CPU (no shared mutable state beyond
// the row itself), so this is plain fan-out, not I/O overlap.
const scoringConcurrency = 8

// Options controls one Retrieve call (spec §4.11).
type Options struct {
	EnableNeuralRerank bool
	Strategy           string
	SessionID          string
	SessionHistory     []model.SessionHistoryEntry
}

// Engine is the Retrieval Engine.
type Engine struct {
	store    storage.Store
	embedder embedder.Embedder
	reranker *reranker.Client
	cache    *lruCache
}

// New builds an Engine. reranker may be nil; neural rerank is then
// silently skipped even if Options.EnableNeuralRerank is set, matching
// spec §7's "reranker path degrades to hybrid scoring alone" policy.
func New(store storage.Store, emb embedder.Embedder, rr *reranker.Client, cacheCapacity int, cacheTTL time.Duration) *Engine {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}
	return &Engine{
		store:    store,
		embedder: emb,
		reranker: rr,
		cache:    newLRUCache(cacheCapacity, cacheTTL),
	}
}

// Retrieve runs the seven-step pipeline documented in spec §4.11.
func (e *Engine) Retrieve(ctx context.Context, query string, maxResults int, opts Options) ([]model.RetrievalResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	// Step 1: query analysis.
	qc := semantic.Analyze(query, opts.SessionHistory)

	// Step 2: cache lookup.
	cacheKey := cacheKeyFor(query, opts.Strategy, maxResults, opts.EnableNeuralRerank)
	if cached, ok := e.cache.get(cacheKey); ok {
		return cached, nil
	}

	// Step 3: base retrieval.
	candidateMultiplier := 2
	if opts.EnableNeuralRerank {
		candidateMultiplier = 3
	}
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	rows, err := e.store.SearchVector(ctx, queryVec, maxResults*candidateMultiplier)
	if err != nil {
		return nil, fmt.Errorf("search_vector: %w", err)
	}

	// Step 4: per-candidate scoring, fanned out across scoringConcurrency
	// workers since each row's score is independent of every other's.
	scored := make([]model.RetrievalResult, len(rows))
	g := new(errgroup.Group)
	g.SetLimit(scoringConcurrency)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			sim := cosineSimilarity(queryVec, row.Embedding)
			ageHours := time.Since(row.CreatedAt).Hours()
			sessionBonus := temporal.SessionBonus(row.SessionID, extractRowKeywords(row), opts.SessionHistory)
			temporalScore := temporal.Score(ageHours, qc.Urgency, sessionBonus)
			contextScore := scoring.ContextScore(qc, scoring.Candidate{
				Similarity:        sim,
				CandidateSession:  row.SessionID,
				CandidateRole:     row.Role,
				CandidateKeywords: extractRowKeywords(row),
			}, opts.SessionID)
			keywordScore := scoring.KeywordScore(qc.Keywords, row.Content)
			final, reasoning := scoring.Combine(qc.Type, sim, temporalScore, contextScore, keywordScore)

			scored[i] = model.RetrievalResult{
				Content:       row.Content,
				Role:          row.Role,
				RawSimilarity: sim,
				TemporalScore: temporalScore,
				ContextScore:  contextScore,
				KeywordScore:  keywordScore,
				FinalScore:    final,
				Metadata:      rowMetadata(row),
				Reasoning:     reasoning,
			}
			return nil
		})
	}
	_ = g.Wait()
	results := scored
	sortByFinalScoreDesc(results)

	// Step 5: optional neural rerank fusion.
	if opts.EnableNeuralRerank && e.reranker != nil && len(results) > 3 {
		results = e.fuseRerank(ctx, query, qc.Type, results)
	}

	// Step 6: diversity filter down to maxResults.
	results = diversityFilter(results, maxResults, defaultDiversityLambda)

	// Step 7: cache and return.
	sessions := make(map[string]bool, len(results))
	for _, r := range results {
		if sid, _ := r.Metadata["session_id"].(string); sid != "" {
			sessions[sid] = true
		}
	}
	e.cache.set(cacheKey, results, sessions)
	return results, nil
}

// InvalidateSession drops cached entries touching sessionID, called
// after a new turn is saved for that session (spec §4.11).
func (e *Engine) InvalidateSession(sessionID string) {
	e.cache.invalidateSession(sessionID)
}

func (e *Engine) fuseRerank(ctx context.Context, query string, queryType model.QueryType, results []model.RetrievalResult) []model.RetrievalResult {
	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Content
	}
	scored, err := e.reranker.Rerank(ctx, query, docs, reranker.ModeBalanced, 0)
	if err != nil {
		// Reranker failure degrades to hybrid scoring alone (spec §7);
		// the already-sorted results stand as-is.
		return results
	}

	weight := reranker.FusionWeight(queryType)
	for _, s := range scored {
		if s.OriginalIndex < 0 || s.OriginalIndex >= len(results) {
			continue
		}
		r := &results[s.OriginalIndex]
		r.FinalScore = weight*s.RelevanceScore + (1-weight)*r.FinalScore
	}
	sortByFinalScoreDesc(results)
	return results
}

func sortByFinalScoreDesc(results []model.RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].FinalScore > results[j].FinalScore })
}

// diversityFilter selects up to target results greedily: the top
// scorer first, then at each step whichever remaining candidate
// maximises (1-λ)*final_score + λ*diversity, diversity being 1 minus
// the candidate's max Jaccard word-overlap with any already-selected
// result (spec §4.11 step 6).
func diversityFilter(results []model.RetrievalResult, target int, lambda float64) []model.RetrievalResult {
	if len(results) <= target {
		return results
	}

	selected := make([]model.RetrievalResult, 0, target)
	remaining := append([]model.RetrievalResult(nil), results...)

	selected = append(selected, remaining[0])
	remaining = remaining[1:]

	for len(selected) < target && len(remaining) > 0 {
		bestIdx := -1
		bestObjective := -1.0
		for i, cand := range remaining {
			diversity := 1 - maxJaccardOverlap(cand.Content, selected)
			objective := (1-lambda)*cand.FinalScore + lambda*diversity
			if objective > bestObjective {
				bestObjective = objective
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func maxJaccardOverlap(content string, selected []model.RetrievalResult) float64 {
	wordsA := wordSet(content)
	var max float64
	for _, s := range selected {
		overlap := jaccard(wordsA, wordSet(s.Content))
		if overlap > max {
			max = overlap
		}
	}
	return max
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func cacheKeyFor(query, strategy string, maxResults int, enableRerank bool) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%v", query, strategy, maxResults, enableRerank)))
	return hex.EncodeToString(sum[:])
}

func extractRowKeywords(row model.StoredMemory) []string {
	kws, _ := row.Metadata["keywords"].([]string)
	return kws
}

func rowMetadata(row model.StoredMemory) map[string]any {
	md := make(map[string]any, len(row.Metadata)+1)
	for k, v := range row.Metadata {
		md[k] = v
	}
	md["session_id"] = row.SessionID
	return md
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return clampSimilarity(sim)
}

func clampSimilarity(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
