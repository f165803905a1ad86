// Package assembler implements the Turn Assembler (spec §4.4): it
// joins the Transcript Parser's Messages/ToolUseRefs with the
// Aggregator's reconciled ToolCalls into one canonical Turn ready for
// persistence.
package assembler

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jetgogoing/sage/pkg/model"
	"github.com/jetgogoing/sage/pkg/sageerr"
	"github.com/jetgogoing/sage/pkg/transcript"
)

// Input bundles everything the assembler needs to build one Turn.
type Input struct {
	Messages       []model.Message
	ToolUses       []model.ToolUseRef
	ToolResults    []model.ToolResultRef
	HookToolCalls  []model.ToolCall
	SessionID      string
	TurnIndex      int
	ProjectID      string
	ProjectName    string
	SourceFormat   string // e.g. "claude_cli_jsonl" or "human_assistant_text", for metadata provenance
}

// archiveUserPrompt is the synthetic user prompt used when a Turn must
// be built from messages that contain neither a trailing user nor
// assistant message (spec §4.4 step 4).
const archiveUserPrompt = "Conversation Archive"

// Assembler builds canonical Turns. ZenSplit gates an optional
// presentation pass carried over from the original Python source's
// stop-hook post-processing; it does not affect persisted content
// unless enabled.
type Assembler struct {
	ZenSplit bool
}

// New builds an Assembler.
func New(zenSplit bool) *Assembler {
	return &Assembler{ZenSplit: zenSplit}
}

// Assemble runs the seven-step algorithm from spec §4.4 and returns
// one canonical Turn. Fails fast (sageerr.InputInvalid) when in.Messages
// is empty, matching the stop hook's "exit non-zero" contract.
func (a *Assembler) Assemble(in Input) (*model.Turn, error) {
	if len(in.Messages) == 0 {
		return nil, sageerr.New(sageerr.InputInvalid, "assembler", fmt.Errorf("no parsed messages to assemble"))
	}

	lastUser, lastAssistant := findTailMessages(in.Messages)

	turn := &model.Turn{
		TurnID:    uuid.NewString(),
		SessionID: in.SessionID,
		TurnIndex: in.TurnIndex,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]any{},
	}

	var agentMeta *model.AgentMetadata

	switch {
	case lastUser != nil && lastAssistant != nil:
		turn.UserPrompt = lastUser.Content
		turn.AssistantResponse = lastAssistant.Content
		agentMeta = lastAssistant.AgentMetadata
	case lastUser != nil:
		turn.UserPrompt = lastUser.Content
	case lastAssistant != nil:
		turn.AssistantResponse = lastAssistant.Content
		agentMeta = lastAssistant.AgentMetadata
	default:
		turn.UserPrompt = archiveUserPrompt
		turn.AssistantResponse = archiveTranscript(in.Messages)
	}

	if a.ZenSplit {
		turn.AssistantResponse = applyZenSplit(turn.AssistantResponse)
	}

	turn.ToolCalls = mergeToolCalls(in.HookToolCalls, in.ToolUses, in.ToolResults)

	enrichMetadata(turn, in, agentMeta)

	return turn, nil
}

// findTailMessages scans from the end of messages for the last user
// message (skipping any carrying the host-injected hook tag) and the
// last assistant message.
func findTailMessages(messages []model.Message) (*model.Message, *model.Message) {
	var lastUser, lastAssistant *model.Message
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if lastUser == nil && m.Role == "user" {
			if transcript.HasHookInjectedTag(m.Content) {
				continue
			}
			mm := m
			lastUser = &mm
		}
		if lastAssistant == nil && m.Role == "assistant" {
			mm := m
			lastAssistant = &mm
		}
		if lastUser != nil && lastAssistant != nil {
			break
		}
	}
	return lastUser, lastAssistant
}

// archiveTranscript concatenates all messages with role tags, used
// when a turn consists entirely of system/tool events (spec §4.4 step 4).
func archiveTranscript(messages []model.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s] %s", m.Role, m.Content)
	}
	return b.String()
}

// zenMarker is the source system's section-break sentinel; ZenSplit
// rewrites it into a markdown-friendly divider for hosts that render
// assistant responses as markdown.
const zenMarker = "=========="

func applyZenSplit(content string) string {
	if !strings.Contains(content, zenMarker) {
		return content
	}
	return strings.ReplaceAll(content, zenMarker, "\n---\n")
}

// mergeToolCalls prefers HookRecord-derived ToolCalls (richer: status,
// timing, error detail) and falls back to transcript ToolUseRefs for
// any call id the hook store never saw, deduplicating by call id.
func mergeToolCalls(hookCalls []model.ToolCall, uses []model.ToolUseRef, results []model.ToolResultRef) []model.ToolCall {
	seen := make(map[string]bool, len(hookCalls))
	merged := make([]model.ToolCall, 0, len(hookCalls)+len(uses))
	merged = append(merged, hookCalls...)
	for _, c := range hookCalls {
		seen[c.CallID] = true
	}

	resultByID := make(map[string]model.ToolResultRef, len(results))
	for _, r := range results {
		resultByID[r.ToolUseID] = r
	}

	for _, u := range uses {
		if seen[u.ToolUseID] {
			continue
		}
		seen[u.ToolUseID] = true
		tc := model.ToolCall{
			CallID:    u.ToolUseID,
			ToolName:  u.ToolName,
			Input:     u.ToolInput,
			Timestamp: u.Timestamp,
			Status:    model.ToolCallPending,
		}
		if r, ok := resultByID[u.ToolUseID]; ok {
			tc.Output = r.Content
			if r.IsError {
				tc.Status = model.ToolCallError
			} else {
				tc.Status = model.ToolCallSuccess
			}
		}
		merged = append(merged, tc)
	}

	return merged
}

func enrichMetadata(turn *model.Turn, in Input, agentMeta *model.AgentMetadata) {
	turn.Metadata["session_id"] = in.SessionID
	turn.Metadata["project_id"] = in.ProjectID
	turn.Metadata["project_name"] = in.ProjectName
	turn.Metadata["assembled_at"] = time.Now().UTC().Format(time.RFC3339)
	turn.Metadata["source"] = in.SourceFormat
	turn.Metadata["has_tool_interactions"] = len(turn.ToolCalls) > 0
	turn.Metadata["user_prompt_length"] = len(turn.UserPrompt)
	turn.Metadata["assistant_response_length"] = len(turn.AssistantResponse)
	turn.Metadata["looks_like_code"] = looksLikeCode(turn.AssistantResponse)
	if agentMeta != nil {
		turn.Metadata["agent_metadata"] = agentMeta
	}
}

func looksLikeCode(s string) bool {
	return strings.Contains(s, "```") || strings.Contains(s, "func ") || strings.Contains(s, "def ")
}
