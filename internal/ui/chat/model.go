// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentchat-tui/internal/config"
	"github.com/jeranaias/agentchat-tui/internal/index"
	"github.com/jeranaias/agentchat-tui/internal/model"
	"github.com/jeranaias/agentchat-tui/internal/session"
	"github.com/jeranaias/agentchat-tui/internal/ui/components"
	"github.com/jeranaias/agentchat-tui/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady     State = iota // Ready for input
	StateStreaming              // Receiving a response
)

// overlayKind identifies which modal overlay is open.
type overlayKind int

const (
	overlayNone overlayKind = iota
	overlayThreads
	overlayModels
	overlayTools
	overlaySearch
	overlayHelp
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// State
	state   State
	overlay overlayKind

	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int

	// Wiring
	sess *session.Session
	idx  *index.ThreadIndex
	cfg  *config.Config

	// Display copy of the current thread. The store owns the durable
	// version; this copy only feeds the viewport.
	thread *model.Thread

	// Open assistant message being streamed (display only, never persisted
	// from here).
	streamText  string
	activeTool  string
	turnStarted time.Time

	// Streaming plumbing (pointers: Bubble Tea copies the model)
	runner    *TurnRunner
	streamBuf *StreamingBuffer
	cancelMgr *cancelManager

	// UI components
	viewport    viewport.Model
	input       textinput.Model
	searchInput textinput.Model
	spin        components.Spinner
	statusBar   *components.StatusBar
	banner      *components.ErrorBanner
	markdown    *components.Markdown
	welcome     components.Welcome
	picker      *components.Picker

	// Key bindings
	keyMap KeyMap

	// Transient status line
	statusLine string

	version string
}

// New creates the chat model. The index may be nil; search and external
// change notifications degrade gracefully without it.
func New(sess *session.Session, idx *index.ThreadIndex, cfg *config.Config, theme *styles.Theme, version string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message, /help for commands..."
	ti.CharLimit = 8192
	ti.Focus()

	si := textinput.New()
	si.Prompt = "Search: "
	si.CharLimit = 256

	vp := viewport.New(80, 20)

	streamBuf := NewStreamingBuffer()

	markdown := components.NewMarkdown(theme.IsDark)

	statusBar := components.NewStatusBar(theme)
	modelID := sess.CurrentModelID()
	enabled := true
	if desc, ok := sess.Models().Lookup(modelID); ok {
		enabled = desc.Enabled
	}
	statusBar.SetModel(modelID, enabled)
	statusBar.SetToolCount(len(sess.EnabledToolIDs()))

	welcome := components.NewWelcome(theme)
	welcome.SetVersion(version)
	welcome.SetModel(modelID)
	welcome.SetToolCount(len(sess.EnabledToolIDs()))

	return Model{
		state:       StateReady,
		overlay:     overlayNone,
		theme:       theme,
		sess:        sess,
		idx:         idx,
		cfg:         cfg,
		width:       80,
		height:      24,
		runner:      NewTurnRunner(sess, streamBuf),
		streamBuf:   streamBuf,
		cancelMgr:   newCancelManager(),
		viewport:    vp,
		input:       ti,
		searchInput: si,
		spin:        components.NewSpinner(theme),
		statusBar:   statusBar,
		banner:      components.NewErrorBanner(theme),
		markdown:    markdown,
		welcome:     welcome,
		keyMap:      DefaultKeyMap(),
		version:     version,
	}
}

// Runner exposes the turn runner so main can install the program
// reference after tea.NewProgram.
func (m Model) Runner() *TurnRunner {
	return m.runner
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the input cursor and the index notification loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, watchIndexCmd(m.idx))
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamStartMsg:
		return m.handleStreamStart(msg)

	case StreamTickMsg:
		return m.handleStreamTick(msg)

	case StreamMessageMsg:
		return m.handleStreamMessage(msg)

	case StreamToolCallMsg:
		m.activeTool = msg.Call.Name
		m.spin.SetDetail(msg.Call.Name)
		return m, nil

	case StreamToolResultMsg:
		m.activeTool = ""
		m.spin.SetDetail("")
		return m, nil

	case StreamCompleteMsg:
		return m.handleStreamComplete(msg)

	case ThreadsLoadedMsg:
		return m.handleThreadsLoaded(msg)

	case ThreadSwitchedMsg:
		return m.handleThreadSwitched(msg)

	case ThreadDeletedMsg:
		return m.handleThreadDeleted(msg)

	case SearchResultsMsg:
		return m.handleSearchResults(msg)

	case ModelSelectedMsg:
		return m.handleModelSelected(msg)

	case ToolToggledMsg:
		return m.handleToolToggled(msg)

	case IndexChangedMsg:
		return m.handleIndexChanged()

	case ExportDoneMsg:
		if msg.Err != nil {
			m.banner.SetError(msg.Err)
			return m, nil
		}
		m.statusLine = "exported to " + msg.Path
		return m, statusExpireCmd()

	case ErrorMsg:
		m.banner.SetError(msg.Err)
		return m, nil

	case ErrorDismissMsg:
		m.banner.Clear()
		return m, nil

	case StatusMsg:
		m.statusLine = msg.Text
		return m, statusExpireCmd()

	case StatusExpireMsg:
		m.statusLine = ""
		return m, nil

	case QuitMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	// Everything else (mouse wheel and the like) goes to the viewport.
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleResize recomputes the layout for a new terminal size.
func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	m.viewport.Width = msg.Width
	m.viewport.Height = m.viewportHeight()
	m.input.Width = msg.Width - 6
	m.statusBar.SetWidth(msg.Width)
	m.banner.SetWidth(msg.Width)
	m.welcome.SetSize(msg.Width, m.viewportHeight())
	if m.picker != nil {
		m.picker.SetSize(msg.Width, msg.Height)
	}

	m.updateViewport(false)
	return m, nil
}

// viewportHeight is the terminal height minus header, input, and status
// rows.
func (m Model) viewportHeight() int {
	h := m.height - 5
	if h < 3 {
		h = 3
	}
	return h
}
