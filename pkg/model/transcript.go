package model

import "time"

// ContentItemType enumerates the shapes a transcript content item can take.
type ContentItemType string

const (
	ContentText     ContentItemType = "text"
	ContentThinking ContentItemType = "thinking"
	ContentToolUse  ContentItemType = "tool_use"
	ContentToolResult ContentItemType = "tool_result"
)

// ContentItem is one element of a transcript message's content array.
type ContentItem struct {
	Type      ContentItemType `json:"type"`
	Text      string          `json:"text,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolName  string          `json:"name,omitempty"`
	Input     any             `json:"input,omitempty"`
	Content   any             `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// Message is one parsed transcript event (spec §4.3).
type Message struct {
	Role         string         `json:"role"`
	Content      string         `json:"content"`
	Timestamp    time.Time      `json:"timestamp"`
	UUID         string         `json:"uuid,omitempty"`
	ContentItems []ContentItem  `json:"content_items,omitempty"`
	AgentMetadata *AgentMetadata `json:"agent_metadata,omitempty"`
}

// ToolUseRef is a tool invocation observed directly in the transcript,
// as opposed to one reconciled from the Hook State Store.
type ToolUseRef struct {
	ToolName  string
	ToolInput any
	ToolUseID string
	Timestamp time.Time
}

// ToolResultRef is the transcript-side result counterpart to a ToolUseRef.
type ToolResultRef struct {
	ToolUseID string
	Content   any
	IsError   bool
}

// AgentReportFormat classifies how a structured agent report was written.
type AgentReportFormat string

const (
	AgentReportStandard AgentReportFormat = "standard"
	AgentReportSimple   AgentReportFormat = "simple"
	AgentReportMention  AgentReportFormat = "mention"
	AgentReportGeneric  AgentReportFormat = "generic"
)

// ContentFeatures flags which structural signals a report body exhibits.
type ContentFeatures struct {
	HasExecutionID    bool `json:"has_execution_id"`
	HasMetrics        bool `json:"has_metrics"`
	HasErrors         bool `json:"has_errors"`
	HasWarnings       bool `json:"has_warnings"`
	HasSuccess        bool `json:"has_success"`
	HasRecommendations bool `json:"has_recommendations"`
}

// Count returns how many of the six features are set.
func (f ContentFeatures) Count() int {
	n := 0
	for _, b := range []bool{f.HasExecutionID, f.HasMetrics, f.HasErrors, f.HasWarnings, f.HasSuccess, f.HasRecommendations} {
		if b {
			n++
		}
	}
	return n
}

// AgentMetadata is attached to an assistant message that matches one of
// the documented agent-report patterns (spec §4.3).
type AgentMetadata struct {
	AgentName       string            `json:"agent_name"`
	ReportType      string            `json:"report_type,omitempty"`
	Format          AgentReportFormat `json:"format"`
	TaskID          string            `json:"task_id,omitempty"`
	ExecutionTime   string            `json:"execution_time,omitempty"`
	Embedded        map[string]any    `json:"embedded,omitempty"`
	ContentFeatures ContentFeatures   `json:"content_features"`
	Completeness    float64           `json:"completeness"`
}
