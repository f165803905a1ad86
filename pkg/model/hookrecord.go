package model

import "time"

// PreCallEvent is the pre-tool hook's contribution to a HookRecord.
type PreCallEvent struct {
	SessionID   string    `json:"session_id"`
	ToolName    string    `json:"tool_name"`
	ToolInput   any       `json:"tool_input"`
	Timestamp   time.Time `json:"timestamp"`
	ProjectID   string    `json:"project_id,omitempty"`
	ProjectName string    `json:"project_name,omitempty"`
}

// PostCallEvent is the post-tool hook's contribution to a HookRecord.
type PostCallEvent struct {
	ToolOutput      any       `json:"tool_output"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	IsError         bool      `json:"is_error"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// HookRecord is the on-disk merge target for one tool invocation,
// reconciled by the pre-tool and post-tool hook processes sharing a
// call id (spec §3, §4.1).
type HookRecord struct {
	CallID   string         `json:"call_id"`
	PreCall  *PreCallEvent  `json:"pre_call,omitempty"`
	PostCall *PostCallEvent `json:"post_call,omitempty"`
}

// Complete reports whether both halves of the record have arrived.
func (r *HookRecord) Complete() bool {
	return r.PreCall != nil && r.PostCall != nil
}

// ToToolCall converts a HookRecord into a ToolCall, modelling a record
// with no post_call as status=pending per spec §3's HookRecord invariants.
func (r *HookRecord) ToToolCall() ToolCall {
	tc := ToolCall{CallID: r.CallID}
	if r.PreCall != nil {
		tc.ToolName = r.PreCall.ToolName
		tc.Input = r.PreCall.ToolInput
		tc.Timestamp = r.PreCall.Timestamp
	}
	if r.PostCall == nil {
		tc.Status = ToolCallPending
		return tc
	}
	tc.Output = r.PostCall.ToolOutput
	tc.ExecutionTimeMs = r.PostCall.ExecutionTimeMs
	if r.PostCall.IsError {
		tc.Status = ToolCallError
		tc.ErrorMessage = r.PostCall.ErrorMessage
	} else {
		tc.Status = ToolCallSuccess
	}
	return tc
}
