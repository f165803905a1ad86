package model

// QueryType classifies the intent shape of a retrieval query (spec §4.8).
type QueryType string

const (
	QueryTechnical     QueryType = "technical"
	QueryConceptual    QueryType = "conceptual"
	QueryProcedural    QueryType = "procedural"
	QueryDiagnostic    QueryType = "diagnostic"
	QueryCreative      QueryType = "creative"
	QueryConversational QueryType = "conversational"
)

// EmotionalTone is the detected affect of a query.
type EmotionalTone string

const (
	ToneUrgent     EmotionalTone = "urgent"
	ToneConfused   EmotionalTone = "confused"
	ToneFrustrated EmotionalTone = "frustrated"
	ToneCurious    EmotionalTone = "curious"
	ToneNeutral    EmotionalTone = "neutral"
)

// SessionHistoryEntry is one prior session referenced for contextual scoring.
type SessionHistoryEntry struct {
	SessionID string
	Keywords  []string
}

// QueryContext is the ephemeral analysis of one retrieval query (spec §3).
type QueryContext struct {
	RawQuery        string
	Type            QueryType
	Keywords        []string
	Intent          []string
	Tone            EmotionalTone
	Urgency         int // 1..5
	RecentSessions  []SessionHistoryEntry
}

// RetrievalResult is one ranked candidate returned to a caller (spec §3).
type RetrievalResult struct {
	Content       string
	Role          Role
	RawSimilarity float64
	TemporalScore float64
	ContextScore  float64
	KeywordScore  float64
	FinalScore    float64
	Metadata      map[string]any
	Reasoning     string
}
