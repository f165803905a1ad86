package model

import "time"

// Role identifies which side of a turn a StoredMemory represents.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// StoredMemory is a persisted row in the vector store (spec §3).
type StoredMemory struct {
	MemoryID       string         `json:"memory_id"`
	SessionID      string         `json:"session_id"`
	TurnIndex      int            `json:"turn_index"`
	Role           Role           `json:"role"`
	Content        string         `json:"content"`
	Embedding      []float32      `json:"embedding,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IsAgentReport  bool           `json:"is_agent_report,omitempty"`
	AgentMetadata  map[string]any `json:"agent_metadata,omitempty"`
}

// Stats summarises the storage layer's contents (spec §4.5 get_stats).
type Stats struct {
	Total          int       `json:"total"`
	Sessions       int       `json:"sessions"`
	WithEmbeddings int       `json:"with_embeddings"`
	Earliest       time.Time `json:"earliest"`
	Latest         time.Time `json:"latest"`
	RangeSeconds   float64   `json:"range_seconds"`
}
