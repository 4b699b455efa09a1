// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/agentchat-tui/internal/agent"
	"github.com/jeranaias/agentchat-tui/internal/catalog"
	"github.com/jeranaias/agentchat-tui/internal/config"
	"github.com/jeranaias/agentchat-tui/internal/index"
	"github.com/jeranaias/agentchat-tui/internal/model"
	"github.com/jeranaias/agentchat-tui/internal/session"
	"github.com/jeranaias/agentchat-tui/internal/storage"
	"github.com/jeranaias/agentchat-tui/internal/ui/components"
)

// =============================================================================
// REPL
// =============================================================================

// REPL is the plain-terminal chat loop. It drives the same session layer
// as the TUI but prints line-oriented output, so it works over ssh, in
// dumb terminals, and under scripting.
type REPL struct {
	sess    *session.Session
	idx     *index.ThreadIndex
	cfg     *config.Config
	version string

	line        *liner.State
	historyFile string

	markdown *components.Markdown

	// threadsCache maps the numbers printed by /threads to thread IDs so
	// /switch can take either.
	threadsCache []model.ThreadMeta

	// mu guards cancelFunc, written by the signal goroutine.
	mu         sync.Mutex
	cancelFunc context.CancelFunc

	startTime  time.Time
	turnCount  int
	tokenCount int
}

// NewREPL creates the REPL with input history loaded from the configured
// history file.
func NewREPL(sess *session.Session, idx *index.ThreadIndex, cfg *config.Config, version string) *REPL {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &REPL{
		sess:        sess,
		idx:         idx,
		cfg:         cfg,
		version:     version,
		line:        line,
		historyFile: cfg.Paths.HistoryFile,
		markdown:    components.NewMarkdown(true),
		startTime:   time.Now(),
	}
	r.loadHistory()
	return r
}

func (r *REPL) loadHistory() {
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
}

func (r *REPL) saveHistory() {
	if r.historyFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	r.line.WriteHistory(f)
}

// Close saves history and releases the terminal.
func (r *REPL) Close() {
	r.saveHistory()
	r.line.Close()
}

// =============================================================================
// MAIN LOOP
// =============================================================================

// Run executes the REPL until /quit, EOF, or Ctrl+C at the prompt.
func (r *REPL) Run() error {
	r.printWelcome()

	// Ctrl+C during streaming cancels the turn instead of killing the
	// process.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			r.mu.Lock()
			cancel := r.cancelFunc
			r.cancelFunc = nil
			r.mu.Unlock()
			if cancel != nil {
				cancel()
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[cancelled]"))
			}
		}
	}()

	for {
		input, err := r.line.Prompt(promptStyle.Render("agentchat> "))
		if err != nil {
			// Ctrl+C at the prompt or EOF both exit cleanly.
			fmt.Println()
			r.printExitSummary()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			keepGoing, err := r.dispatch(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[error]"), err)
			}
			if !keepGoing {
				r.printExitSummary()
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			r.printExitSummary()
			return nil
		}

		if err := r.sendMessage(input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[error]"), err)
		}
	}
}

// =============================================================================
// TURN EXECUTION
// =============================================================================

// sendMessage runs one turn, streaming tokens as they arrive. On a TTY
// the assistant reply is re-rendered as markdown once complete.
func (r *REPL) sendMessage(text string) error {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancelFunc = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancelFunc = nil
		r.mu.Unlock()
		cancel()
	}()

	useMarkdown := IsStdoutTTY()
	start := time.Now()
	var lastAssistant *model.Message

	fmt.Println()
	err := r.sess.SubmitUserMessage(ctx, text, func(ev agent.Event) {
		switch ev.Kind {
		case agent.EventTextDelta:
			// On a TTY the reply renders as markdown once complete; raw
			// token streaming is for pipes and dumb terminals.
			if !useMarkdown {
				fmt.Print(ev.Delta)
			}
		case agent.EventToolCall:
			if ev.ToolCall != nil {
				fmt.Printf("\n%s %s\n", toolStyle.Render("[tool]"), ev.ToolCall.Name)
			}
		case agent.EventToolResult:
			if ev.ToolResult != nil && ev.ToolResult.IsError {
				fmt.Printf("%s %s failed\n", warningStyle.Render("[tool]"), ev.ToolResult.Name)
			}
		case agent.EventMessage:
			if ev.Message != nil && ev.Message.Role == model.RoleAssistant {
				msg := *ev.Message
				lastAssistant = &msg
			}
		}
	})
	if err != nil {
		return err
	}

	fmt.Println()
	if useMarkdown && lastAssistant != nil && lastAssistant.Content != "" {
		fmt.Println()
		fmt.Println(r.markdown.Render(lastAssistant.Content, GetTerminalWidth()))
	}

	r.turnCount++
	if lastAssistant != nil && lastAssistant.Stats != nil {
		r.tokenCount += lastAssistant.Stats.PromptTokens + lastAssistant.Stats.CompletionTokens
	}
	fmt.Fprintf(os.Stderr, "%s %s | %s\n",
		infoStyle.Render("[turn]"),
		commandStyle.Render(r.sess.CurrentModelID()),
		time.Since(start).Round(time.Millisecond))
	fmt.Println()
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// dispatch processes a slash command. Returns false to exit the loop.
func (r *REPL) dispatch(input string) (bool, error) {
	parts := strings.Fields(input)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		r.printHelp()
		return true, nil

	case "/new", "/n":
		_, err := r.sess.StartNewThread()
		if err != nil {
			return true, err
		}
		fmt.Println(commandStyle.Render("[new thread]"))
		return true, nil

	case "/threads", "/t":
		return true, r.printThreads()

	case "/switch":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /switch <number|id>")
		}
		return true, r.switchThread(args[0])

	case "/model", "/m":
		return true, r.handleModel(args)

	case "/tools":
		return true, r.handleTools(args)

	case "/search":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /search <query>")
		}
		return true, r.search(strings.Join(args, " "))

	case "/export":
		format := "md"
		if len(args) > 0 {
			format = strings.ToLower(args[0])
		}
		return true, r.export(format)

	case "/delete":
		return true, r.deleteCurrent()

	case "/history":
		return true, r.printHistory()

	case "/quit", "/q", "/exit":
		return false, nil
	}

	return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
}

// printThreads lists stored threads, numbering them for /switch.
func (r *REPL) printThreads() error {
	threads, err := r.sess.Store().List()
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		fmt.Println(infoStyle.Render("[no threads yet]"))
		return nil
	}
	r.threadsCache = threads

	currentID := r.sess.CurrentThreadID()
	fmt.Println()
	fmt.Println(headerStyle.Render("Threads"))
	for i, t := range threads {
		marker := "  "
		if t.ID == currentID {
			marker = commandStyle.Render("* ")
		}
		fmt.Printf("%s%2d. %s  %s\n", marker, i+1,
			t.Title,
			infoStyle.Render(fmt.Sprintf("(%d messages, %s)", t.MessageCount, model.FormatRelativeTime(t.UpdatedAt))))
	}
	fmt.Println()
	fmt.Println(infoStyle.Render("Switch with: /switch <number>"))
	fmt.Println()
	return nil
}

// switchThread accepts a /threads row number or a raw thread ID.
func (r *REPL) switchThread(arg string) error {
	id := arg
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(r.threadsCache) {
			return fmt.Errorf("no thread %d listed; run /threads first", n)
		}
		id = r.threadsCache[n-1].ID
	}

	thread, err := r.sess.SelectThread(id)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", commandStyle.Render("[switched]"), thread.GetTitle())
	return nil
}

// handleModel shows or switches the active model.
func (r *REPL) handleModel(args []string) error {
	if len(args) == 0 {
		fmt.Printf("%s %s\n", infoStyle.Render("[model]"), commandStyle.Render(r.sess.CurrentModelID()))
		for _, d := range r.sess.Models().Descriptors() {
			marker := "  "
			if d.ID == r.sess.CurrentModelID() {
				marker = commandStyle.Render("* ")
			}
			note := ""
			if !d.Enabled {
				note = infoStyle.Render(" (disabled)")
			}
			fmt.Printf("%s%s  %s%s\n", marker, d.ID, infoStyle.Render(d.Model), note)
		}
		return nil
	}

	id := args[0]
	if err := r.sess.SelectModel(id); err != nil {
		return err
	}
	if err := catalog.SaveModelSelection(r.cfg.Paths.ModelsFile, id); err != nil {
		fmt.Fprintf(os.Stderr, "%s selection not persisted: %v\n", warningStyle.Render("[warn]"), err)
	}
	fmt.Printf("%s %s\n", commandStyle.Render("[model]"), id)
	return nil
}

// handleTools lists tool servers, or toggles one by ID.
func (r *REPL) handleTools(args []string) error {
	if len(args) == 0 {
		fmt.Println()
		fmt.Println(headerStyle.Render("Tool Servers"))
		for _, d := range r.sess.Tools().Descriptors() {
			box := "[ ]"
			if r.sess.ToolEnabled(d.ID) {
				box = commandStyle.Render("[x]")
			}
			fmt.Printf("  %s %s\n", box, d.ID)
		}
		fmt.Println()
		fmt.Println(infoStyle.Render("Toggle with: /tools <id>"))
		fmt.Println()
		return nil
	}

	id := args[0]
	enabled := !r.sess.ToolEnabled(id)
	if err := r.sess.SetToolEnabled(id, enabled); err != nil {
		return err
	}
	if err := catalog.SaveToolDisabled(r.cfg.Paths.ToolsFile, id, !enabled); err != nil {
		fmt.Fprintf(os.Stderr, "%s toggle not persisted: %v\n", warningStyle.Render("[warn]"), err)
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("%s %s %s\n", commandStyle.Render("[tools]"), id, state)
	return nil
}

// search queries the thread index and numbers hits for /switch.
func (r *REPL) search(query string) error {
	if r.idx == nil {
		return index.ErrNotIndexed
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results, err := r.idx.Search(ctx, query, index.DefaultSearchOptions())
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println(infoStyle.Render("[no matches]"))
		return nil
	}

	r.threadsCache = r.threadsCache[:0]
	fmt.Println()
	fmt.Println(headerStyle.Render("Results for \"" + query + "\""))
	for i, res := range results {
		r.threadsCache = append(r.threadsCache, res.ThreadMeta)
		fmt.Printf("  %2d. %s\n", i+1, res.Title)
		if res.Snippet != "" {
			fmt.Printf("      %s\n", infoStyle.Render(res.Snippet))
		}
	}
	fmt.Println()
	fmt.Println(infoStyle.Render("Open with: /switch <number>"))
	fmt.Println()
	return nil
}

// export writes the current thread to a file in the working directory.
func (r *REPL) export(format string) error {
	if format != "md" && format != "json" {
		return fmt.Errorf("usage: /export [md|json]")
	}
	thread, err := r.sess.CurrentThread()
	if err != nil {
		return err
	}
	if thread == nil {
		return fmt.Errorf("no thread to export")
	}

	var data []byte
	if format == "json" {
		data, err = storage.ExportJSON(thread)
		if err != nil {
			return err
		}
	} else {
		data = []byte(storage.ExportMarkdown(thread))
	}

	path := "thread-" + thread.ID + "." + format
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("%s %s\n", commandStyle.Render("[exported]"), path)
	return nil
}

// deleteCurrent removes the current thread and starts a fresh one.
func (r *REPL) deleteCurrent() error {
	id := r.sess.CurrentThreadID()
	if id == "" {
		return fmt.Errorf("no thread to delete")
	}
	if err := r.sess.Store().Delete(id); err != nil {
		return err
	}
	if _, err := r.sess.StartNewThread(); err != nil {
		return err
	}
	fmt.Println(commandStyle.Render("[thread deleted]"))
	return nil
}

// printHistory prints the current thread, one line per message.
func (r *REPL) printHistory() error {
	thread, err := r.sess.CurrentThread()
	if err != nil {
		return err
	}
	if thread == nil || len(thread.Messages) == 0 {
		fmt.Println(infoStyle.Render("[no messages yet]"))
		return nil
	}

	fmt.Println()
	fmt.Println(headerStyle.Render(thread.GetTitle()))
	for i, msg := range thread.Messages {
		fmt.Printf("  %d. %s: %s\n", i+1, renderRole(msg.Role), msg.Preview(100))
	}
	fmt.Println()
	return nil
}

// renderRole colors a role label for history output.
func renderRole(role model.Role) string {
	switch role {
	case model.RoleUser:
		return promptStyle.Render("You")
	case model.RoleAssistant:
		return welcomeStyle.Render("AI")
	case model.RoleTool:
		return toolStyle.Render("Tool")
	default:
		return warningStyle.Render(role.DisplayName())
	}
}

// =============================================================================
// BANNERS
// =============================================================================

func (r *REPL) printWelcome() {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("agentchat " + r.version + " (plain mode)"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n", infoStyle.Render("Model:"), commandStyle.Render(r.sess.CurrentModelID()))
	fmt.Printf("%s %d enabled\n", infoStyle.Render("Tools:"), len(r.sess.EnabledToolIDs()))
	fmt.Println()
	fmt.Println(infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

func (r *REPL) printHelp() {
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/new, /n", "Start a new thread"},
		{"/threads, /t", "List threads"},
		{"/switch <n|id>", "Switch to a thread"},
		{"/model [id]", "Show or switch model"},
		{"/tools [id]", "List or toggle tool servers"},
		{"/search <query>", "Search threads"},
		{"/export [md|json]", "Export the current thread"},
		{"/delete", "Delete the current thread"},
		{"/history", "Show the current thread"},
		{"/quit, /q", "Exit"},
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Commands"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-18s", c.cmd)),
			infoStyle.Render(c.desc))
	}
	fmt.Println()
	fmt.Println(infoStyle.Render("Tip: Ctrl+C cancels the current response, Ctrl+D exits"))
	fmt.Println()
}

func (r *REPL) printExitSummary() {
	if r.turnCount == 0 {
		fmt.Println(infoStyle.Render("Goodbye!"))
		return
	}
	elapsed := time.Since(r.startTime).Round(time.Second)
	fmt.Println()
	fmt.Println(headerStyle.Render("Session Summary"))
	fmt.Printf("  %s %d\n", infoStyle.Render("Turns:"), r.turnCount)
	if r.tokenCount > 0 {
		fmt.Printf("  %s %d\n", infoStyle.Render("Tokens:"), r.tokenCount)
	}
	fmt.Printf("  %s %s\n", infoStyle.Render("Duration:"), elapsed.String())
	fmt.Println()
	fmt.Println(infoStyle.Render("Goodbye!"))
}
