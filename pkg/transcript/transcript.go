// Package transcript extracts messages and tool references from the
// assistant CLI's conversation transcript (spec §4.3): either a
// newline-delimited JSON event log or a plain-text "Human:/Assistant:"
// stream. Grounded on kadirpekel/hector's JSONL-tailing patterns in
// pkg/memory (bounded recent-window reads) adapted to this transcript
// shape.
package transcript

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jetgogoing/sage/pkg/model"
)

// DefaultMaxLines is the default window of trailing transcript events
// parsed by ParseJSONL: the system cares about the current turn, not
// the full history.
const DefaultMaxLines = 50

// rawEvent mirrors one line of the transcript's JSONL shape.
type rawEvent struct {
	Type      string          `json:"type"`
	UUID      string          `json:"uuid"`
	Timestamp *time.Time      `json:"timestamp"`
	Message   rawMessage      `json:"message"`
}

type rawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type rawContentItem struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	ToolUseID string `json:"tool_use_id"`
	Name      string `json:"name"`
	Input     any    `json:"input"`
	Content   any    `json:"content"`
	IsError   bool   `json:"is_error"`
}

// ParseResult is ParseJSONL's/ParseText's output.
type ParseResult struct {
	Messages    []model.Message
	ToolUses    []model.ToolUseRef
	ToolResults []model.ToolResultRef
}

// ParseJSONL reads the trailing maxLines (or DefaultMaxLines, if <=0)
// lines of the transcript at path. Malformed lines are skipped and
// counted, never fatal.
func ParseJSONL(path string, maxLines int) (ParseResult, error) {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}

	f, err := os.Open(path)
	if err != nil {
		return ParseResult{}, err
	}
	defer f.Close()

	lines, err := tailLines(f, maxLines)
	if err != nil {
		return ParseResult{}, err
	}

	var result ParseResult
	var skipped int
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var ev rawEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			skipped++
			continue
		}
		msg, uses, results, ok := parseEvent(ev)
		if !ok {
			skipped++
			continue
		}
		if msg != nil {
			result.Messages = append(result.Messages, *msg)
		}
		result.ToolUses = append(result.ToolUses, uses...)
		result.ToolResults = append(result.ToolResults, results...)
	}

	if skipped > 0 {
		slog.Info("transcript: skipped malformed lines", "count", skipped, "path", path)
	}
	return result, nil
}

// tailLines returns at most n trailing lines from r (empty lines
// included and counted toward n), read in
// one streaming pass so the whole transcript need not fit in memory
// twice.
func tailLines(r io.Reader, n int) ([]string, error) {
	buf := make([]string, 0, n)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		buf = append(buf, scanner.Text())
		if len(buf) > n {
			buf = buf[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return buf, nil
}

func parseEvent(ev rawEvent) (*model.Message, []model.ToolUseRef, []model.ToolResultRef, bool) {
	if ev.Type != "user" && ev.Type != "assistant" && ev.Type != "tool_result" {
		return nil, nil, nil, false
	}

	ts := time.Now().UTC()
	if ev.Timestamp != nil {
		ts = ev.Timestamp.UTC()
	}

	var text strings.Builder
	var items []model.ContentItem
	var uses []model.ToolUseRef
	var results []model.ToolResultRef

	if len(ev.Message.Content) == 0 {
		return nil, nil, nil, false
	}

	var asString string
	if err := json.Unmarshal(ev.Message.Content, &asString); err == nil {
		text.WriteString(asString)
	} else {
		var rawItems []rawContentItem
		if err := json.Unmarshal(ev.Message.Content, &rawItems); err != nil {
			return nil, nil, nil, false
		}
		for _, ri := range rawItems {
			item := model.ContentItem{
				Type:      model.ContentItemType(ri.Type),
				Text:      ri.Text,
				ToolUseID: ri.ToolUseID,
				ToolName:  ri.Name,
				Input:     ri.Input,
				Content:   ri.Content,
				IsError:   ri.IsError,
			}
			items = append(items, item)

			switch item.Type {
			case model.ContentText, model.ContentThinking:
				if text.Len() > 0 {
					text.WriteString("\n")
				}
				text.WriteString(item.Text)
			case model.ContentToolUse:
				uses = append(uses, model.ToolUseRef{
					ToolName:  ri.Name,
					ToolInput: ri.Input,
					ToolUseID: ri.ToolUseID,
					Timestamp: ts,
				})
			case model.ContentToolResult:
				results = append(results, model.ToolResultRef{
					ToolUseID: ri.ToolUseID,
					Content:   ri.Content,
					IsError:   ri.IsError,
				})
			}
		}
	}

	role := ev.Message.Role
	if role == "" {
		role = ev.Type
	}

	msg := &model.Message{
		Role:         role,
		Content:      text.String(),
		Timestamp:    ts,
		UUID:         ev.UUID,
		ContentItems: items,
	}

	if role == "assistant" {
		if meta := DetectAgentReport(msg.Content); meta != nil {
			msg.AgentMetadata = meta
		}
	}

	return msg, uses, results, true
}

const hookInjectedTag = "<user-prompt-submit-hook>"

// ParseText splits a plain-text "Human:/Assistant:" interleaved stream
// into Messages. Anchors are matched at line start, case-sensitive;
// lines without a new anchor accumulate into the current role.
func ParseText(content string) ParseResult {
	lines := strings.Split(content, "\n")

	var result ParseResult
	var role string
	var buf strings.Builder
	now := time.Now().UTC()

	flush := func() {
		if role == "" {
			return
		}
		text := strings.TrimSpace(buf.String())
		if text == "" {
			buf.Reset()
			return
		}
		msg := model.Message{Role: role, Content: text, Timestamp: now}
		if role == "assistant" {
			if meta := DetectAgentReport(text); meta != nil {
				msg.AgentMetadata = meta
			}
		}
		result.Messages = append(result.Messages, msg)
		buf.Reset()
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "Human:"):
			flush()
			role = "user"
			buf.WriteString(strings.TrimPrefix(line, "Human:"))
		case strings.HasPrefix(line, "Assistant:"):
			flush()
			role = "assistant"
			buf.WriteString(strings.TrimPrefix(line, "Assistant:"))
		default:
			if role != "" {
				buf.WriteString("\n")
				buf.WriteString(line)
			}
		}
	}
	flush()

	return result
}

// HasHookInjectedTag reports whether content carries the host-injected
// hook tag that disqualifies a user message from canonical selection
// (spec §4.4 step 1).
func HasHookInjectedTag(content string) bool {
	return strings.Contains(content, hookInjectedTag)
}
