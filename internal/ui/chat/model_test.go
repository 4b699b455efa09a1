// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentchat-tui/internal/agent"
	"github.com/jeranaias/agentchat-tui/internal/catalog"
	"github.com/jeranaias/agentchat-tui/internal/config"
	"github.com/jeranaias/agentchat-tui/internal/model"
	"github.com/jeranaias/agentchat-tui/internal/session"
	"github.com/jeranaias/agentchat-tui/internal/storage"
	"github.com/jeranaias/agentchat-tui/internal/ui/styles"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// nullInvoker fails every invocation; model tests never reach the adapter.
type nullInvoker struct{}

func (nullInvoker) Invoke(ctx context.Context, req agent.Request) (*agent.Stream, error) {
	return nil, errors.New("nullInvoker: not implemented")
}

func testModels() *catalog.ModelCatalog {
	return catalog.NewModelCatalog("alpha", []catalog.ModelDescriptor{
		{ID: "alpha", DisplayName: "Alpha", Model: "alpha:8b", Enabled: true, SupportsTools: true},
		{ID: "beta", DisplayName: "Beta", Model: "beta:70b", Enabled: false},
	})
}

func testTools() *catalog.ToolCatalog {
	return catalog.NewToolCatalog([]catalog.ToolServerDescriptor{
		{ID: "files", Command: "mcp-files"},
		{ID: "web", URL: "http://localhost:9900/mcp", Disabled: true},
	})
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	store, err := storage.NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewStoreWithDir: %v", err)
	}
	sess := session.New(store, testModels(), testTools(), nullInvoker{})
	cfg := &config.Config{}
	m := New(sess, nil, cfg, styles.NewTheme(), "test")
	res, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return res.(Model)
}

// =============================================================================
// STREAM LIFECYCLE
// =============================================================================

func TestStreamLifecycle(t *testing.T) {
	m := newTestModel(t)

	res, _ := m.Update(StreamStartMsg{ThreadID: "t1", StartTime: time.Now()})
	m = res.(Model)
	if m.state != StateStreaming {
		t.Fatalf("state = %v, want StateStreaming", m.state)
	}
	if !m.spin.IsActive() {
		t.Error("spinner should be active while waiting for tokens")
	}

	// Exceed the batch size so the next tick flushes.
	for i := 0; i < defaultBatchSize+1; i++ {
		m.streamBuf.Write("x")
	}
	res, _ = m.Update(StreamTickMsg{Time: time.Now()})
	m = res.(Model)
	if !strings.Contains(m.streamText, "x") {
		t.Errorf("streamText = %q, want buffered tokens", m.streamText)
	}
	if m.spin.IsActive() {
		t.Error("spinner should stop once text arrives")
	}

	res, _ = m.Update(StreamCompleteMsg{})
	m = res.(Model)
	if m.state != StateReady {
		t.Errorf("state = %v, want StateReady", m.state)
	}
	if m.streamText != "" {
		t.Errorf("streamText = %q, want empty after completion", m.streamText)
	}
}

func TestStreamCompleteSurfacesError(t *testing.T) {
	m := newTestModel(t)
	res, _ := m.Update(StreamStartMsg{StartTime: time.Now()})
	m = res.(Model)

	res, _ = m.Update(StreamCompleteMsg{Err: errors.New("runtime unreachable")})
	m = res.(Model)
	if !m.banner.Active() {
		t.Error("error banner should be active after a failed turn")
	}

	// Cancellation is not an error worth a banner.
	m = newTestModel(t)
	res, _ = m.Update(StreamStartMsg{StartTime: time.Now()})
	m = res.(Model)
	res, _ = m.Update(StreamCompleteMsg{Err: context.Canceled})
	m = res.(Model)
	if m.banner.Active() {
		t.Error("cancellation should not raise the error banner")
	}
}

func TestStreamMessageAppends(t *testing.T) {
	m := newTestModel(t)
	m.thread = model.NewThread("alpha")

	res, _ := m.Update(StreamStartMsg{ThreadID: m.thread.ID, StartTime: time.Now()})
	m = res.(Model)

	msg := model.NewAssistantMessage("done thinking")
	res, _ = m.Update(StreamMessageMsg{Message: msg})
	m = res.(Model)

	if got := len(m.thread.Messages); got != 1 {
		t.Fatalf("thread has %d messages, want 1", got)
	}
	if m.streamText != "" {
		t.Error("accumulator should reset when a message completes")
	}
	if !m.spin.IsActive() {
		t.Error("spinner should restart between rounds")
	}
}

// =============================================================================
// OVERLAYS
// =============================================================================

func TestThreadsLoadedOpensPicker(t *testing.T) {
	m := newTestModel(t)
	res, _ := m.Update(ThreadsLoadedMsg{Threads: []model.ThreadMeta{
		{ID: "t1", Title: "First", MessageCount: 2, UpdatedAt: time.Now()},
	}})
	m = res.(Model)
	if m.overlay != overlayThreads {
		t.Errorf("overlay = %v, want overlayThreads", m.overlay)
	}
	if m.picker == nil || m.picker.Len() != 1 {
		t.Error("picker should hold the loaded threads")
	}
}

func TestEscClosesOverlay(t *testing.T) {
	m := newTestModel(t)
	m.openModelPicker()
	res, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = res.(Model)
	if m.overlay != overlayNone {
		t.Errorf("overlay = %v, want overlayNone after esc", m.overlay)
	}
}

func TestModelSelectedUpdatesStatus(t *testing.T) {
	m := newTestModel(t)
	m.openModelPicker()
	res, _ := m.Update(ModelSelectedMsg{ID: "alpha"})
	m = res.(Model)
	if m.overlay != overlayNone {
		t.Error("model selection should close the picker")
	}
	if !strings.Contains(m.statusLine, "alpha") {
		t.Errorf("statusLine = %q, want model id", m.statusLine)
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func TestDispatchSlashUnknown(t *testing.T) {
	m := newTestModel(t)
	res, _ := m.dispatchSlash("/bogus")
	m = res.(Model)
	if !strings.Contains(m.statusLine, "/bogus") {
		t.Errorf("statusLine = %q, want unknown-command notice", m.statusLine)
	}
}

func TestDispatchSlashHelp(t *testing.T) {
	m := newTestModel(t)
	res, _ := m.dispatchSlash("/help")
	m = res.(Model)
	if m.overlay != overlayHelp {
		t.Errorf("overlay = %v, want overlayHelp", m.overlay)
	}
}

func TestDispatchSlashExportWithoutThread(t *testing.T) {
	m := newTestModel(t)
	res, _ := m.dispatchSlash("/export")
	m = res.(Model)
	if !strings.Contains(m.statusLine, "no thread") {
		t.Errorf("statusLine = %q, want no-thread notice", m.statusLine)
	}
}
