// agentchat TUI - a terminal chat front-end for local agent runtimes.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentchat-tui/internal/agent"
	"github.com/jeranaias/agentchat-tui/internal/catalog"
	"github.com/jeranaias/agentchat-tui/internal/cli"
	"github.com/jeranaias/agentchat-tui/internal/config"
	"github.com/jeranaias/agentchat-tui/internal/index"
	"github.com/jeranaias/agentchat-tui/internal/mcp"
	"github.com/jeranaias/agentchat-tui/internal/session"
	"github.com/jeranaias/agentchat-tui/internal/storage"
	"github.com/jeranaias/agentchat-tui/internal/ui/chat"
	"github.com/jeranaias/agentchat-tui/internal/ui/styles"
	"github.com/jeranaias/agentchat-tui/internal/util"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// FLAGS
// =============================================================================

type runFlags struct {
	plain       bool
	configPath  string
	dataDir     string
	model       string
	showVersion bool
	showHelp    bool
}

// parseFlags handles the small flag surface by hand; there are no
// subcommands.
func parseFlags(args []string) (runFlags, error) {
	var f runFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--plain", "-p":
			f.plain = true
		case "--version", "-V":
			f.showVersion = true
		case "--help", "-h":
			f.showHelp = true
		case "--config":
			i++
			if i >= len(args) {
				return f, fmt.Errorf("--config requires a path")
			}
			f.configPath = args[i]
		case "--data-dir":
			i++
			if i >= len(args) {
				return f, fmt.Errorf("--data-dir requires a path")
			}
			f.dataDir = args[i]
		case "--model", "-m":
			i++
			if i >= len(args) {
				return f, fmt.Errorf("--model requires a model id")
			}
			f.model = args[i]
		default:
			return f, fmt.Errorf("unknown flag: %s", arg)
		}
	}
	return f, nil
}

func printUsage() {
	fmt.Print(`agentchat - terminal chat for local agent runtimes

Usage:
  agentchat [flags]

Flags:
  -p, --plain          Plain REPL mode (no full-screen interface)
  -m, --model ID       Start with a specific catalog model
      --config PATH    Load configuration from PATH
      --data-dir PATH  Override the data directory
  -V, --version        Print version and exit
  -h, --help           Show this help

Configuration and data live under ~/.agentchat by default.
`)
}

// =============================================================================
// MAIN
// =============================================================================

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage()
		os.Exit(2)
	}
	if flags.showHelp {
		printUsage()
		return
	}
	if flags.showVersion {
		fmt.Printf("agentchat %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		fatalConfig(err)
	}
	config.SetGlobal(cfg)

	if err := run(cfg, flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration with flag overrides applied.
func loadConfig(flags runFlags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flags.configPath != "" {
		cfg, err = config.LoadFromPath(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flags.dataDir != "" {
		cfg.Paths = config.PathsConfig{DataDir: flags.dataDir}
		if err := cfg.ResolvePaths(); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// fatalConfig prints configuration errors in full and exits. A broken
// config is not recoverable at runtime.
func fatalConfig(err error) {
	fmt.Fprintln(os.Stderr, "Configuration error:")
	var verrs config.ValidateErrors
	if errors.As(err, &verrs) {
		for _, ve := range verrs {
			fmt.Fprintf(os.Stderr, "  - %v\n", ve)
		}
	} else {
		fmt.Fprintf(os.Stderr, "  %v\n", err)
	}
	os.Exit(1)
}

// =============================================================================
// STARTUP
// =============================================================================

func run(cfg *config.Config, flags runFlags) error {
	// The TUI owns the terminal; diagnostics go to a file, and only when
	// AGENTCHAT_DEBUG is set.
	if err := util.InitDebugLog(filepath.Join(cfg.Paths.DataDir, "debug.log")); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	defer util.CloseDebugLog()
	util.Debugf("starting agentchat %s", Version)

	// First run: write the default catalog files so there is something to
	// edit.
	if _, err := os.Stat(cfg.Paths.ModelsFile); os.IsNotExist(err) {
		if err := catalog.WriteDefaultModels(cfg.Paths.ModelsFile); err != nil {
			return fmt.Errorf("writing default model catalog: %w", err)
		}
	}
	if _, err := os.Stat(cfg.Paths.ToolsFile); os.IsNotExist(err) {
		if err := catalog.WriteDefaultTools(cfg.Paths.ToolsFile); err != nil {
			return fmt.Errorf("writing default tool catalog: %w", err)
		}
	}

	// Catalog validation failures are fatal: a half-loaded catalog would
	// silently hide models or tools the user configured.
	models, err := catalog.LoadModels(cfg.Paths.ModelsFile)
	if err != nil {
		fatalConfig(err)
	}
	toolCat, err := catalog.LoadTools(cfg.Paths.ToolsFile)
	if err != nil {
		fatalConfig(err)
	}

	store, err := storage.NewStoreWithDir(cfg.Paths.ThreadsDir)
	if err != nil {
		return fmt.Errorf("opening thread store: %w", err)
	}
	store.MaxThreads = cfg.Limits.MaxThreads

	// The search index is derived state; losing it degrades search, not
	// chat, so index failures only warn.
	idx := openIndex(cfg)
	if idx != nil {
		defer idx.Close()
	}

	// Connect enabled tool servers. Individual server failures are
	// reported and skipped; chat works without them.
	mgr := mcp.NewManager("agentchat", Version)
	defer mgr.Close()
	connectTools(mgr, toolCat)

	clientCfg := agent.DefaultClientConfig()
	clientCfg.BaseURL = cfg.Runtime.URL
	if cfg.Runtime.TimeoutSeconds > 0 {
		clientCfg.Timeout = time.Duration(cfg.Runtime.TimeoutSeconds) * time.Second
	}
	if cfg.Runtime.ConnectTimeoutSeconds > 0 {
		clientCfg.ConnectTimeout = time.Duration(cfg.Runtime.ConnectTimeoutSeconds) * time.Second
	}
	client := agent.NewClientWithConfig(clientCfg)
	runner := agent.NewRunner(client, mgr, cfg.Limits.MaxToolRounds)

	sess := session.New(store, models, toolCat, runner)
	if flags.model != "" {
		if err := sess.SelectModel(flags.model); err != nil {
			return fmt.Errorf("--model: %w", err)
		}
	}

	if flags.plain || cfg.UI.PlainMode || !cli.IsStdoutTTY() {
		return runREPL(sess, idx, cfg)
	}
	return runTUI(sess, idx, cfg)
}

// openIndex opens (and backfills) the SQLite search index. Returns nil
// when the index is unavailable.
func openIndex(cfg *config.Config) *index.ThreadIndex {
	idx, err := index.New(index.DefaultConfig(cfg.Paths.DataDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: search index unavailable: %v\n", err)
		return nil
	}

	// Rebuild in the background; search reports ErrRebuilding until the
	// first pass completes, and the rebuild starts the file watcher.
	go func() {
		if err := idx.Rebuild(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: index rebuild failed: %v\n", err)
			util.Debugf("index rebuild failed: %v", err)
		}
	}()
	return idx
}

// connectTools connects every non-disabled tool server, reporting
// failures without aborting startup.
func connectTools(mgr *mcp.Manager, toolCat *catalog.ToolCatalog) {
	descs := toolCat.Descriptors()
	if len(descs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	for _, status := range mgr.Connect(ctx, descs) {
		if status.Err != nil {
			fmt.Fprintf(os.Stderr, "Warning: tool server %q: %v\n", status.ID, status.Err)
			util.Debugf("tool server %q failed to connect: %v", status.ID, status.Err)
			continue
		}
		util.Debugf("tool server %q connected with %d tools", status.ID, status.ToolCount)
	}
}

// =============================================================================
// FRONT-ENDS
// =============================================================================

// runTUI starts the full-screen interface.
func runTUI(sess *session.Session, idx *index.ThreadIndex, cfg *config.Config) error {
	theme := styles.NewTheme()
	m := chat.New(sess, idx, cfg, theme, Version)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.UI.MouseEnabled {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(m, opts...)

	// The runner sends stream events from its own goroutine; it needs the
	// program reference before the first turn starts.
	m.Runner().SetProgram(p)

	_, err := p.Run()
	return err
}

// runREPL starts the plain line-oriented interface.
func runREPL(sess *session.Session, idx *index.ThreadIndex, cfg *config.Config) error {
	repl := cli.NewREPL(sess, idx, cfg, Version)
	defer repl.Close()
	return repl.Run()
}
