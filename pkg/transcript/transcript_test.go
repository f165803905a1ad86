package transcript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseJSONLStringContent(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"user","uuid":"u1","message":{"role":"user","content":"hello"}}`,
		`{"type":"assistant","uuid":"a1","message":{"role":"assistant","content":"hi there"}}`,
	)

	result, err := ParseJSONL(path, 50)
	require.NoError(t, err)
	require.Len(t, result.Messages, 2)
	require.Equal(t, "hello", result.Messages[0].Content)
	require.Equal(t, "hi there", result.Messages[1].Content)
}

func TestParseJSONLContentItemsAndToolUse(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"thinking about it"},{"type":"tool_use","name":"Bash","input":{"command":"ls"},"tool_use_id":"tu1"}]}}`,
		`{"type":"tool_result","message":{"role":"tool","content":[{"type":"tool_result","tool_use_id":"tu1","content":"file1","is_error":false}]}}`,
	)

	result, err := ParseJSONL(path, 50)
	require.NoError(t, err)
	require.Len(t, result.ToolUses, 1)
	require.Equal(t, "Bash", result.ToolUses[0].ToolName)
	require.Len(t, result.ToolResults, 1)
	require.Equal(t, "tu1", result.ToolResults[0].ToolUseID)
}

func TestParseJSONLSkipsMalformedLines(t *testing.T) {
	path := writeTranscript(t,
		`not json at all`,
		`{"type":"user","message":{"role":"user","content":"valid"}}`,
	)

	result, err := ParseJSONL(path, 50)
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	require.Equal(t, "valid", result.Messages[0].Content)
}

func TestParseJSONLRespectsMaxLines(t *testing.T) {
	lines := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		lines = append(lines, `{"type":"user","message":{"role":"user","content":"msg"}}`)
	}
	path := writeTranscript(t, lines...)

	result, err := ParseJSONL(path, 3)
	require.NoError(t, err)
	require.Len(t, result.Messages, 3)
}

func TestParseTextSplitsOnAnchors(t *testing.T) {
	content := "Human: what is go\nmore context\nAssistant: it is a language\nmore detail"
	result := ParseText(content)
	require.Len(t, result.Messages, 2)
	require.Equal(t, "user", result.Messages[0].Role)
	require.Contains(t, result.Messages[0].Content, "what is go")
	require.Contains(t, result.Messages[0].Content, "more context")
	require.Equal(t, "assistant", result.Messages[1].Role)
	require.Contains(t, result.Messages[1].Content, "it is a language")
}

func TestHasHookInjectedTag(t *testing.T) {
	require.True(t, HasHookInjectedTag("hello <user-prompt-submit-hook>stuff</user-prompt-submit-hook>"))
	require.False(t, HasHookInjectedTag("plain message"))
}

func TestDetectAgentReportStandardHeader(t *testing.T) {
	content := "=== Deployment Report by @deploy-bot ===\nstatus: success\nmetrics: latency 20ms"
	meta := DetectAgentReport(content)
	require.NotNil(t, meta)
	require.Equal(t, "deploy-bot", meta.AgentName)
	require.Equal(t, "Deployment", meta.ReportType)
	require.True(t, meta.ContentFeatures.HasMetrics)
	require.True(t, meta.ContentFeatures.HasSuccess)
}

func TestDetectAgentReportSimpleLine(t *testing.T) {
	content := "Agent Report: build-agent\nfailed with error: timeout"
	meta := DetectAgentReport(content)
	require.NotNil(t, meta)
	require.Equal(t, "build-agent", meta.AgentName)
	require.True(t, meta.ContentFeatures.HasErrors)
}

func TestDetectAgentReportMetadataComment(t *testing.T) {
	content := `Some text <!-- AGENT_METADATA {"agent_name":"reviewer","task_id":"t-1"} --> more text`
	meta := DetectAgentReport(content)
	require.NotNil(t, meta)
	require.Equal(t, "reviewer", meta.AgentName)
	require.Equal(t, "t-1", meta.TaskID)
}

func TestDetectAgentReportNoMatch(t *testing.T) {
	require.Nil(t, DetectAgentReport("just a normal assistant reply"))
}
