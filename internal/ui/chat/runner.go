// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// This file bridges the session layer onto the Bubble Tea message loop:
// the TurnRunner executes a turn on a goroutine and feeds its events back
// through Program.Send, and the tea.Cmd constructors wrap the slower
// store/index operations.

package chat

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentchat-tui/internal/agent"
	"github.com/jeranaias/agentchat-tui/internal/catalog"
	"github.com/jeranaias/agentchat-tui/internal/index"
	"github.com/jeranaias/agentchat-tui/internal/session"
	"github.com/jeranaias/agentchat-tui/internal/storage"
)

// =============================================================================
// TURN RUNNER
// =============================================================================

// TurnRunner executes turns against the session on a goroutine and
// delivers progress via Program.Send. The program reference is set after
// tea.NewProgram, so access is mutex-guarded.
type TurnRunner struct {
	mu      sync.Mutex
	program *tea.Program

	session *session.Session
	buffer  *StreamingBuffer
}

// NewTurnRunner creates a runner that writes deltas into buffer.
func NewTurnRunner(sess *session.Session, buffer *StreamingBuffer) *TurnRunner {
	return &TurnRunner{session: sess, buffer: buffer}
}

// SetProgram installs the program used for async sends.
func (r *TurnRunner) SetProgram(p *tea.Program) {
	r.mu.Lock()
	r.program = p
	r.mu.Unlock()
}

func (r *TurnRunner) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Run executes one turn. Text deltas go straight into the streaming
// buffer (the tick loop renders them); everything else becomes a message
// send. The final StreamCompleteMsg always arrives, carrying the turn's
// terminal error if any.
func (r *TurnRunner) Run(ctx context.Context, text string) {
	go func() {
		r.send(StreamStartMsg{
			ThreadID:  r.session.CurrentThreadID(),
			StartTime: time.Now(),
		})

		err := r.session.SubmitUserMessage(ctx, text, func(ev agent.Event) {
			switch ev.Kind {
			case agent.EventTextDelta:
				r.buffer.Write(ev.Delta)
			case agent.EventMessage:
				if ev.Message != nil {
					r.send(StreamMessageMsg{Message: *ev.Message})
				}
			case agent.EventToolCall:
				if ev.ToolCall != nil {
					r.send(StreamToolCallMsg{Call: *ev.ToolCall})
				}
			case agent.EventToolResult:
				if ev.ToolResult != nil {
					r.send(StreamToolResultMsg{Result: *ev.ToolResult})
				}
			}
			// EventDone and EventError resolve through the returned err.
		})

		r.send(StreamCompleteMsg{Err: err})
	}()
}

// =============================================================================
// ASYNC COMMANDS
// =============================================================================

// loadThreadsCmd lists threads for the picker.
func loadThreadsCmd(store *storage.Store) tea.Cmd {
	return func() tea.Msg {
		threads, err := store.List()
		return ThreadsLoadedMsg{Threads: threads, Err: err}
	}
}

// switchThreadCmd selects a thread in the session.
func switchThreadCmd(sess *session.Session, id string) tea.Cmd {
	return func() tea.Msg {
		thread, err := sess.SelectThread(id)
		return ThreadSwitchedMsg{Thread: thread, Err: err}
	}
}

// newThreadCmd starts a fresh thread.
func newThreadCmd(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		thread, err := sess.StartNewThread()
		return ThreadSwitchedMsg{Thread: thread, Err: err}
	}
}

// reloadThreadCmd re-reads the current thread after an external change.
func reloadThreadCmd(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		thread, err := sess.CurrentThread()
		return ThreadSwitchedMsg{Thread: thread, Err: err}
	}
}

// deleteThreadCmd removes a thread from the store.
func deleteThreadCmd(store *storage.Store, id string) tea.Cmd {
	return func() tea.Msg {
		err := store.Delete(id)
		return ThreadDeletedMsg{ID: id, Err: err}
	}
}

// selectModelCmd switches the session model and persists the selection as
// the catalog default.
func selectModelCmd(sess *session.Session, modelsPath, id string) tea.Cmd {
	return func() tea.Msg {
		if err := sess.SelectModel(id); err != nil {
			return ModelSelectedMsg{ID: id, Err: err}
		}
		// Write-back failure keeps the in-session selection; the catalog
		// file just won't remember it next start.
		err := catalog.SaveModelSelection(modelsPath, id)
		return ModelSelectedMsg{ID: id, Err: err}
	}
}

// toggleToolCmd flips a tool server for the session and persists the
// disabled flag to the catalog file.
func toggleToolCmd(sess *session.Session, toolsPath, id string, enabled bool) tea.Cmd {
	return func() tea.Msg {
		if err := sess.SetToolEnabled(id, enabled); err != nil {
			return ToolToggledMsg{ID: id, Enabled: enabled, Err: err}
		}
		err := catalog.SaveToolDisabled(toolsPath, id, !enabled)
		return ToolToggledMsg{ID: id, Enabled: enabled, Err: err}
	}
}

// searchCmd runs a ranked index search.
func searchCmd(idx *index.ThreadIndex, query string) tea.Cmd {
	return func() tea.Msg {
		if idx == nil {
			return SearchResultsMsg{Query: query, Err: index.ErrNotIndexed}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		results, err := idx.Search(ctx, query, index.DefaultSearchOptions())
		return SearchResultsMsg{Query: query, Results: results, Err: err}
	}
}

// watchIndexCmd blocks on the next watcher notification. The handler
// re-issues it, forming the notification loop.
func watchIndexCmd(idx *index.ThreadIndex) tea.Cmd {
	if idx == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-idx.Changes(); !ok {
			return nil
		}
		return IndexChangedMsg{}
	}
}

// statusExpireCmd clears a transient status line after a delay.
func statusExpireCmd() tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return StatusExpireMsg{}
	})
}
