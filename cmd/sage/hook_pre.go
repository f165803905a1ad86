package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jetgogoing/sage/pkg/config"
	"github.com/jetgogoing/sage/pkg/hookstore"
	"github.com/jetgogoing/sage/pkg/model"
)

// hookEventInput is the stdin JSON shape hook-pre reads: a call id
// plus the pre-call half of the HookRecord (hook-post reads
// hookResultInput for the other half). Grounded on original_source's hook_data_aggregator.py,
// which pairs PreToolUse/PostToolUse events by call id into one
// on-disk record (spec §3, §4.1).
type hookEventInput struct {
	CallID      string    `json:"call_id"`
	SessionID   string    `json:"session_id"`
	ToolName    string    `json:"tool_name"`
	ToolInput   any       `json:"tool_input"`
	ProjectID   string    `json:"project_id"`
	ProjectName string    `json:"project_name"`
	Timestamp   time.Time `json:"timestamp"`
}

// HookPreCmd records a PreToolUse event. Per spec §6, pre-/post-hook
// subcommands always exit 0: a recording failure is logged but must
// never block the assistant mid-tool-call.
type HookPreCmd struct{}

func (c *HookPreCmd) Run(cli *CLI) error {
	in, err := readHookEventInput(os.Stdin)
	if err != nil {
		slog.Error("hook-pre: failed to parse stdin", "error", err)
		return nil
	}
	store, err := openHookStore(cli)
	if err != nil {
		slog.Error("hook-pre: failed to open hook store", "error", err)
		return nil
	}

	callID := in.CallID
	if callID == "" {
		callID = uuid.NewString()
	}
	pre := model.PreCallEvent{
		SessionID:   in.SessionID,
		ToolName:    in.ToolName,
		ToolInput:   in.ToolInput,
		Timestamp:   nonZeroOr(in.Timestamp, time.Now()),
		ProjectID:   orProjectID(in.ProjectID),
		ProjectName: orProjectName(in.ProjectName),
	}
	if err := store.RecordPre(callID, pre); err != nil {
		slog.Error("hook-pre: failed to record event", "call_id", callID, "error", err)
	}
	return nil
}

func readHookEventInput(r io.Reader) (hookEventInput, error) {
	var in hookEventInput
	data, err := io.ReadAll(r)
	if err != nil {
		return in, fmt.Errorf("read stdin: %w", err)
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("parse hook event JSON: %w", err)
	}
	return in, nil
}

func openHookStore(cli *CLI) (*hookstore.Store, error) {
	dir, err := config.DefaultHookDir()
	if err != nil {
		return nil, err
	}
	return hookstore.New(dir)
}

func nonZeroOr(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}
