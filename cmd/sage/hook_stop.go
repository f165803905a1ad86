package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jetgogoing/sage/pkg/aggregator"
	"github.com/jetgogoing/sage/pkg/assembler"
	"github.com/jetgogoing/sage/pkg/config"
	"github.com/jetgogoing/sage/pkg/hookstore"
	"github.com/jetgogoing/sage/pkg/sageerr"
	"github.com/jetgogoing/sage/pkg/service"
	"github.com/jetgogoing/sage/pkg/transcript"
)

// Stop-hook exit codes (spec §6): 0 success, 1 fail-fast (input
// couldn't even be parsed/assembled), 2 partial (a local backup was
// written but the database write failed).
const (
	exitSuccess = 0
	exitFailFast = 1
	exitPartial  = 2
)

// stopHookInput is the stdin JSON shape, grounded on
// sage_stop_hook.py's parse_input: either a Claude-CLI JSONL
// transcript reference (session_id + transcript_path) or a plain
// Human:/Assistant: text blob (format="text" + content).
type stopHookInput struct {
	SessionID     string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Format        string `json:"format"`
	Content       string `json:"content"`
	ZenSplit      bool   `json:"zen_split"`
}

// HookStopCmd assembles the conversation turn that just ended — from a
// transcript file or raw text, enriched with the session's recorded
// tool calls — and saves it through the Storage Layer, falling back to
// a local JSON backup on failure (spec §7, §8).
type HookStopCmd struct{}

func (c *HookStopCmd) Run(cli *CLI) error {
	ctx := context.Background()

	in, err := readStopHookInput(os.Stdin)
	if err != nil {
		slog.Error("hook-stop: failed to parse stdin", "error", err)
		fmt.Println("ERROR: input parsing failed")
		os.Exit(exitFailFast)
	}
	if in.SessionID == "" && in.Format != "text" {
		slog.Error("hook-stop: missing session_id")
		fmt.Println("ERROR: missing session_id")
		os.Exit(exitFailFast)
	}

	var parsed transcript.ParseResult
	sourceFormat := "claude_cli_jsonl"
	if in.TranscriptPath != "" {
		parsed, err = transcript.ParseJSONL(in.TranscriptPath, transcript.DefaultMaxLines)
		if err != nil {
			slog.Error("hook-stop: failed to parse transcript", "path", in.TranscriptPath, "error", err)
			fmt.Println("ERROR: transcript parsing failed")
			os.Exit(exitFailFast)
		}
	} else if in.Format == "text" {
		parsed = transcript.ParseText(in.Content)
		sourceFormat = "human_assistant_text"
		if in.SessionID == "" {
			in.SessionID = fmt.Sprintf("text-session-%d", time.Now().Unix())
		}
	} else {
		slog.Error("hook-stop: neither transcript_path nor text content provided")
		fmt.Println("ERROR: no transcript_path or content")
		os.Exit(exitFailFast)
	}

	hookDir, err := config.DefaultHookDir()
	if err != nil {
		slog.Error("hook-stop: failed to resolve hook dir", "error", err)
		fmt.Println("ERROR: hook directory unavailable")
		os.Exit(exitFailFast)
	}
	hookStore, err := hookstore.New(hookDir)
	if err != nil {
		slog.Error("hook-stop: failed to open hook store", "error", err)
		fmt.Println("ERROR: hook store unavailable")
		os.Exit(exitFailFast)
	}

	agg := aggregator.New(hookStore)
	hookCalls, _, _, err := agg.EnhanceStopHookData(in.SessionID, projectID(), len(parsed.ToolUses))
	if err != nil {
		slog.Warn("hook-stop: tool-call aggregation failed, continuing without it", "error", err)
	}

	turn, err := assembler.New(in.ZenSplit).Assemble(assembler.Input{
		Messages:      parsed.Messages,
		ToolUses:      parsed.ToolUses,
		ToolResults:   parsed.ToolResults,
		HookToolCalls: hookCalls,
		SessionID:     in.SessionID,
		TurnIndex:     0,
		ProjectID:     projectID(),
		ProjectName:   projectName(),
		SourceFormat:  sourceFormat,
	})
	if err != nil {
		slog.Error("hook-stop: failed to assemble turn", "error", err)
		fmt.Println("ERROR: turn assembly failed")
		os.Exit(exitFailFast)
	}
	if !turn.HasContent() {
		slog.Info("hook-stop: turn has no content, nothing to save")
		fmt.Println("SUCCESS: nothing to archive")
		return nil
	}

	path, err := cli.configPath()
	if err != nil {
		slog.Error("hook-stop: failed to resolve config path", "error", err)
		fmt.Println("ERROR: config unavailable")
		os.Exit(exitFailFast)
	}
	loader, err := config.NewLoader(path)
	if err != nil {
		slog.Error("hook-stop: failed to create config loader", "error", err)
		fmt.Println("ERROR: config unavailable")
		os.Exit(exitFailFast)
	}
	defer loader.Close()
	cfg, err := loader.Load(ctx)
	if err != nil {
		slog.Error("hook-stop: failed to load config", "error", err)
		fmt.Println("ERROR: config invalid")
		os.Exit(exitFailFast)
	}

	container := service.New(0)
	defer container.Shutdown()
	bundle, err := container.Get(ctx, cfg)
	if err != nil {
		slog.Error("hook-stop: failed to build service container", "error", err)
		fmt.Println("ERROR: service unavailable")
		os.Exit(exitFailFast)
	}

	if _, err := bundle.Store.Save(ctx, turn); err != nil {
		if se, ok := sageerr.As(err); ok && (se.Kind == sageerr.StorageTransient || se.Kind == sageerr.StorageFatal || sageerr.Retryable(se.Kind)) {
			slog.Error("hook-stop: database save failed, local backup was attempted", "error", err)
			fmt.Println("PARTIAL: Backup saved, database failed")
			os.Exit(exitPartial)
		}
		slog.Error("hook-stop: save failed", "error", err)
		fmt.Println("ERROR: save failed")
		os.Exit(exitFailFast)
	}

	agg.CleanupProcessed(hookCalls)
	fmt.Println("SUCCESS: Conversation archived")
	return nil
}

func readStopHookInput(r io.Reader) (stopHookInput, error) {
	var in stopHookInput
	data, err := io.ReadAll(r)
	if err != nil {
		return in, fmt.Errorf("read stdin: %w", err)
	}
	trimmed := data
	if len(trimmed) == 0 {
		return in, fmt.Errorf("no input provided")
	}
	if err := json.Unmarshal(trimmed, &in); err == nil {
		return in, nil
	}
	// Not JSON: treat the whole body as Human:/Assistant: text, per
	// sage_stop_hook.py's plain-text fallback.
	return stopHookInput{Format: "text", Content: string(trimmed)}, nil
}
