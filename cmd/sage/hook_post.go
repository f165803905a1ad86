package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jetgogoing/sage/pkg/model"
)

// hookResultInput is the stdin JSON shape hook-post reads: the call id
// paired by hook-pre plus the tool's outcome.
type hookResultInput struct {
	CallID          string    `json:"call_id"`
	ToolOutput      any       `json:"tool_output"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	IsError         bool      `json:"is_error"`
	ErrorMessage    string    `json:"error_message"`
	Timestamp       time.Time `json:"timestamp"`
}

// HookPostCmd records a PostToolUse event, completing the HookRecord
// hook-pre started. Always exits 0 (spec §6).
type HookPostCmd struct{}

func (c *HookPostCmd) Run(cli *CLI) error {
	in, err := readHookResultInput(os.Stdin)
	if err != nil {
		slog.Error("hook-post: failed to parse stdin", "error", err)
		return nil
	}
	if in.CallID == "" {
		slog.Error("hook-post: missing call_id, cannot pair with its PreToolUse event")
		return nil
	}
	store, err := openHookStore(cli)
	if err != nil {
		slog.Error("hook-post: failed to open hook store", "error", err)
		return nil
	}

	post := model.PostCallEvent{
		ToolOutput:      in.ToolOutput,
		ExecutionTimeMs: in.ExecutionTimeMs,
		IsError:         in.IsError,
		ErrorMessage:    in.ErrorMessage,
		Timestamp:       nonZeroOr(in.Timestamp, time.Now()),
	}
	if err := store.RecordPost(in.CallID, post); err != nil {
		slog.Error("hook-post: failed to record event", "call_id", in.CallID, "error", err)
	}
	return nil
}

func readHookResultInput(r io.Reader) (hookResultInput, error) {
	var in hookResultInput
	data, err := io.ReadAll(r)
	if err != nil {
		return in, fmt.Errorf("read stdin: %w", err)
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("parse hook result JSON: %w", err)
	}
	return in, nil
}
