package assembler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jetgogoing/sage/pkg/model"
)

func TestAssembleBothSidesPresent(t *testing.T) {
	a := New(false)
	in := Input{
		Messages: []model.Message{
			{Role: "user", Content: "how do I sort a slice", Timestamp: time.Now()},
			{Role: "assistant", Content: "use sort.Slice", Timestamp: time.Now()},
		},
		SessionID: "s1",
		TurnIndex: 0,
	}
	turn, err := a.Assemble(in)
	require.NoError(t, err)
	require.Equal(t, "how do I sort a slice", turn.UserPrompt)
	require.Equal(t, "use sort.Slice", turn.AssistantResponse)
	require.True(t, turn.HasContent())
}

func TestAssembleDropsHookInjectedUserMessage(t *testing.T) {
	a := New(false)
	in := Input{
		Messages: []model.Message{
			{Role: "user", Content: "<user-prompt-submit-hook>injected</user-prompt-submit-hook>", Timestamp: time.Now()},
			{Role: "assistant", Content: "a response", Timestamp: time.Now()},
		},
		SessionID: "s1",
	}
	turn, err := a.Assemble(in)
	require.NoError(t, err)
	require.Empty(t, turn.UserPrompt)
	require.Equal(t, "a response", turn.AssistantResponse)
}

func TestAssembleAssistantOnly(t *testing.T) {
	a := New(false)
	in := Input{
		Messages: []model.Message{
			{Role: "assistant", Content: "a standalone note", Timestamp: time.Now()},
		},
	}
	turn, err := a.Assemble(in)
	require.NoError(t, err)
	require.True(t, turn.IsAssistantOnly())
}

func TestAssembleSynthesizesArchiveWhenNeitherSidePresent(t *testing.T) {
	a := New(false)
	in := Input{
		Messages: []model.Message{
			{Role: "tool", Content: "ran a command", Timestamp: time.Now()},
			{Role: "system", Content: "session started", Timestamp: time.Now()},
		},
	}
	turn, err := a.Assemble(in)
	require.NoError(t, err)
	require.Equal(t, archiveUserPrompt, turn.UserPrompt)
	require.Contains(t, turn.AssistantResponse, "[tool] ran a command")
	require.Contains(t, turn.AssistantResponse, "[system] session started")
}

func TestAssembleFailsFastOnEmptyMessages(t *testing.T) {
	a := New(false)
	_, err := a.Assemble(Input{})
	require.Error(t, err)
}

func TestAssembleMergesToolCallsPreferringHookRecords(t *testing.T) {
	a := New(false)
	in := Input{
		Messages: []model.Message{
			{Role: "user", Content: "run ls", Timestamp: time.Now()},
			{Role: "assistant", Content: "done", Timestamp: time.Now()},
		},
		HookToolCalls: []model.ToolCall{
			{CallID: "c1", ToolName: "Bash", Status: model.ToolCallSuccess, Output: "file1"},
		},
		ToolUses: []model.ToolUseRef{
			{ToolUseID: "c1", ToolName: "Bash", Timestamp: time.Now()},
			{ToolUseID: "c2", ToolName: "Read", Timestamp: time.Now()},
		},
	}
	turn, err := a.Assemble(in)
	require.NoError(t, err)
	require.Len(t, turn.ToolCalls, 2)

	var byID = map[string]model.ToolCall{}
	for _, tc := range turn.ToolCalls {
		byID[tc.CallID] = tc
	}
	require.Equal(t, model.ToolCallSuccess, byID["c1"].Status)
	require.Equal(t, "file1", byID["c1"].Output)
	require.Equal(t, model.ToolCallPending, byID["c2"].Status)
}

func TestZenSplitRewritesMarker(t *testing.T) {
	a := New(true)
	in := Input{
		Messages: []model.Message{
			{Role: "assistant", Content: "part one==========part two", Timestamp: time.Now()},
		},
	}
	turn, err := a.Assemble(in)
	require.NoError(t, err)
	require.Contains(t, turn.AssistantResponse, "\n---\n")
	require.NotContains(t, turn.AssistantResponse, "==========")
}
