// Command sage is the CLI entry point for the conversational-memory
// service: a tool server for save_conversation/get_context/
// search_memory/get_memory_stats/clear_session, plus the three hook
// subcommands an interactive assistant shells out to on every tool
// call and at the end of every turn (spec §4.12, §6). Grounded on
// kadirpekel/hector's cmd/hector/main.go: one kong CLI struct of
// subcommands, parsed once, with the logger initialised from CLI flags
// before any subcommand runs.
//
// Usage:
//
//	sage serve --config config.json
//	sage hook-pre
//	sage hook-post
//	sage hook-stop
//	sage validate config.json
//	sage schema
//	sage version
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/jetgogoing/sage/pkg/config"
	"github.com/jetgogoing/sage/pkg/logger"
)

// CLI defines sage's command-line interface.
type CLI struct {
	Serve    ServeCmd    `cmd:"" help:"Start the tool server (JSON-RPC over stdio, plus HTTP on server.port, default 17800)."`
	HookPre  HookPreCmd  `cmd:"hook-pre" help:"Record a PreToolUse hook event from stdin JSON."`
	HookPost HookPostCmd `cmd:"hook-post" help:"Record a PostToolUse hook event from stdin JSON."`
	HookStop HookStopCmd `cmd:"hook-stop" help:"Assemble the ended turn from stdin JSON and save it."`
	Validate ValidateCmd `cmd:"" help:"Validate a config.json file."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for config.json."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config.json (default: per-user config dir)." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

// Run executes the version command.
func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("sage version %s\n", version)
	return nil
}

// configPath resolves cli.Config to a concrete file path, defaulting
// to config.json under the per-user config directory (spec §6).
func (cli *CLI) configPath() (string, error) {
	if cli.Config != "" {
		return cli.Config, nil
	}
	dir, err := config.DefaultConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve default config dir: %w", err)
	}
	return dir + "/config.json", nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("sage"),
		kong.Description("sage - conversational memory service"),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --log-level: %v\n", err)
		os.Exit(1)
	}
	out := os.Stderr
	var cleanup func()
	if cli.LogFile != "" {
		f, err := os.OpenFile(cli.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		cleanup = func() { f.Close() }
		logger.Init(level, f, cli.LogFormat)
	} else {
		logger.Init(level, out, cli.LogFormat)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	if err != nil {
		slog.Error("sage command failed", "error", err)
	}
	ctx.FatalIfErrorf(err)
}
