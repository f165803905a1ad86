// Package model defines the data types shared across the memory service:
// Turn, ToolCall, HookRecord, StoredMemory, QueryContext and RetrievalResult.
package model

import "time"

// ToolCallStatus is the lifecycle state of a ToolCall.
type ToolCallStatus string

const (
	ToolCallPending ToolCallStatus = "pending"
	ToolCallSuccess ToolCallStatus = "success"
	ToolCallError   ToolCallStatus = "error"
)

// ToolCall is one invocation of a tool inside a turn.
type ToolCall struct {
	CallID          string         `json:"call_id"`
	ToolName        string         `json:"tool_name"`
	Input           any            `json:"input"`
	Output          any            `json:"output"`
	Status          ToolCallStatus `json:"status"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	ExecutionTimeMs int64          `json:"execution_time_ms,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Turn is one round of interaction: a canonical user prompt, a canonical
// assistant response and the tool calls made while producing it.
type Turn struct {
	TurnID             string         `json:"turn_id"`
	SessionID          string         `json:"session_id"`
	TurnIndex          int            `json:"turn_index"`
	Timestamp          time.Time      `json:"timestamp"`
	UserPrompt         string         `json:"user_prompt"`
	AssistantResponse  string         `json:"assistant_response"`
	ToolCalls          []ToolCall     `json:"tool_calls"`
	Metadata           map[string]any `json:"metadata"`
}

// HasContent reports whether at least one side of the turn is non-empty,
// the minimum bar for persistence (spec §3 Turn invariants).
func (t *Turn) HasContent() bool {
	return t.UserPrompt != "" || t.AssistantResponse != ""
}

// IsAssistantOnly reports whether the turn has no user-side content.
func (t *Turn) IsAssistantOnly() bool {
	return t.UserPrompt == "" && t.AssistantResponse != ""
}

// IsUserOnly reports whether the turn has no assistant-side content.
func (t *Turn) IsUserOnly() bool {
	return t.AssistantResponse == "" && t.UserPrompt != ""
}
