// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the per-session view of the conversation state.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jeranaias/agentchat-tui/internal/agent"
	"github.com/jeranaias/agentchat-tui/internal/catalog"
	"github.com/jeranaias/agentchat-tui/internal/model"
	"github.com/jeranaias/agentchat-tui/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

// Sentinel errors for session operations. All are recoverable: the UI
// renders them and the session stays usable.
var (
	ErrUnknownModel = errors.New("unknown model")
	ErrUnknownTool  = errors.New("unknown tool server")
	ErrEmptyMessage = errors.New("message is empty")
	ErrTurnActive   = errors.New("a turn is already streaming")
)

// =============================================================================
// SESSION
// =============================================================================

// Options adjusts session behavior.
type Options struct {
	// HistoryWindow caps how many stored messages are sent to the runtime
	// per turn. 0 sends the full thread.
	HistoryWindow int
}

// Session mediates between UI events and the thread store, catalogs, and
// invocation adapter. It tracks what is "current" for this interactive
// session: thread, model, and the enabled tool servers.
//
// The Session is thread-safe, but turns are serialized: a second
// SubmitUserMessage while one is streaming fails with ErrTurnActive.
type Session struct {
	store   *storage.Store
	models  *catalog.ModelCatalog
	tools   *catalog.ToolCatalog
	invoker agent.Invoker
	opts    Options

	mu              sync.RWMutex
	currentThreadID string
	currentModelID  string
	enabledTools    map[string]bool
	turnActive      bool
}

// New creates a session seeded from the catalogs: the current model is the
// catalog default, and the enabled tool set starts as every server the tool
// catalog has not marked disabled.
func New(store *storage.Store, models *catalog.ModelCatalog, tools *catalog.ToolCatalog, invoker agent.Invoker) *Session {
	return NewWithOptions(store, models, tools, invoker, Options{})
}

// NewWithOptions creates a session with explicit options.
func NewWithOptions(store *storage.Store, models *catalog.ModelCatalog, tools *catalog.ToolCatalog, invoker agent.Invoker, opts Options) *Session {
	enabled := make(map[string]bool)
	for _, id := range tools.EnabledIDs() {
		enabled[id] = true
	}
	return &Session{
		store:          store,
		models:         models,
		tools:          tools,
		invoker:        invoker,
		opts:           opts,
		currentModelID: models.Default(),
		enabledTools:   enabled,
	}
}

// Models returns the model catalog backing this session.
func (s *Session) Models() *catalog.ModelCatalog {
	return s.models
}

// Tools returns the tool catalog backing this session.
func (s *Session) Tools() *catalog.ToolCatalog {
	return s.tools
}

// Store returns the thread store backing this session.
func (s *Session) Store() *storage.Store {
	return s.store
}

// =============================================================================
// THREAD SELECTION
// =============================================================================

// SelectThread loads a thread and makes it current. On any failure,
// including ErrThreadNotFound, the previously current thread is kept.
func (s *Session) SelectThread(id string) (*model.Thread, error) {
	thread, err := s.store.Load(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.currentThreadID = thread.ID
	s.mu.Unlock()
	return thread, nil
}

// StartNewThread creates an empty thread and makes it current.
func (s *Session) StartNewThread() (*model.Thread, error) {
	thread, err := s.store.Create(s.CurrentModelID())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.currentThreadID = thread.ID
	s.mu.Unlock()
	return thread, nil
}

// CurrentThread loads the current thread from the store. Returns nil with
// no error when the session has no thread yet.
func (s *Session) CurrentThread() (*model.Thread, error) {
	id := s.CurrentThreadID()
	if id == "" {
		return nil, nil
	}
	return s.store.Load(id)
}

// CurrentThreadID returns the current thread ID, or "" before the first
// thread is selected or created.
func (s *Session) CurrentThreadID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentThreadID
}

// =============================================================================
// MODEL AND TOOL SELECTION
// =============================================================================

// SelectModel makes a catalog model current. The model does not have to be
// enabled, only present. State is untouched on failure.
func (s *Session) SelectModel(id string) error {
	if _, ok := s.models.Lookup(id); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}

	s.mu.Lock()
	s.currentModelID = id
	s.mu.Unlock()
	return nil
}

// CurrentModelID returns the current model's catalog ID.
func (s *Session) CurrentModelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentModelID
}

// CurrentModel returns the current model's descriptor.
func (s *Session) CurrentModel() (catalog.ModelDescriptor, error) {
	id := s.CurrentModelID()
	desc, ok := s.models.Lookup(id)
	if !ok {
		return catalog.ModelDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	return desc, nil
}

// SetToolEnabled turns a tool server on or off for this session. The
// catalog file is not touched; persistence of the toggle is the caller's
// decision.
func (s *Session) SetToolEnabled(id string, enabled bool) error {
	if _, ok := s.tools.Lookup(id); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTool, id)
	}

	s.mu.Lock()
	if enabled {
		s.enabledTools[id] = true
	} else {
		delete(s.enabledTools, id)
	}
	s.mu.Unlock()
	return nil
}

// ToolEnabled reports whether a tool server is enabled for this session.
func (s *Session) ToolEnabled(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabledTools[id]
}

// EnabledToolIDs returns the enabled servers in catalog declaration order.
func (s *Session) EnabledToolIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, id := range s.tools.Order() {
		if s.enabledTools[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// enabledToolServers returns descriptors for the enabled servers, in
// catalog declaration order.
func (s *Session) enabledToolServers() []catalog.ToolServerDescriptor {
	var servers []catalog.ToolServerDescriptor
	for _, id := range s.EnabledToolIDs() {
		if desc, ok := s.tools.Lookup(id); ok {
			servers = append(servers, desc)
		}
	}
	return servers
}

// =============================================================================
// MESSAGE SUBMISSION
// =============================================================================

// SubmitUserMessage runs one full turn:
//
//  1. The user message is appended durably, creating a thread first if the
//     session has none. From here the turn is retryable: whatever fails
//     later, history already holds the user's words.
//  2. The adapter is invoked with the current model, the enabled tool
//     servers, and the (windowed) history.
//  3. Every stream event is forwarded to sink. Completed messages are
//     appended durably before they are forwarded, so the sink only ever
//     sees messages that survive a restart.
//
// The returned error is the turn's terminal failure: a store error, the
// adapter's EventError payload, or ctx's error after cancellation. Deltas
// already forwarded to sink are display-only and are never persisted for
// an unfinished message.
func (s *Session) SubmitUserMessage(ctx context.Context, text string, sink func(agent.Event)) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	if err := s.beginTurn(); err != nil {
		return err
	}
	defer s.endTurn()

	threadID, err := s.ensureThread()
	if err != nil {
		return err
	}

	thread, err := s.store.Append(threadID, model.NewUserMessage(text))
	if err != nil {
		return err
	}

	descriptor, err := s.CurrentModel()
	if err != nil {
		return err
	}

	req := agent.Request{
		Model:   descriptor,
		Tools:   s.enabledToolServers(),
		History: windowHistory(thread.Messages, s.opts.HistoryWindow),
	}

	stream, err := s.invoker.Invoke(ctx, req)
	if err != nil {
		return err
	}

	var turnErr error
	for ev := range stream.Events() {
		if ev.Kind == agent.EventMessage && ev.Message != nil {
			if _, err := s.store.Append(threadID, *ev.Message); err != nil {
				stream.Cancel()
				for range stream.Events() {
				}
				return err
			}
		}
		if ev.Kind == agent.EventError {
			turnErr = ev.Err
		}
		if sink != nil {
			sink(ev)
		}
	}

	if turnErr == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return turnErr
}

// beginTurn claims the single streaming slot.
func (s *Session) beginTurn() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turnActive {
		return ErrTurnActive
	}
	s.turnActive = true
	return nil
}

func (s *Session) endTurn() {
	s.mu.Lock()
	s.turnActive = false
	s.mu.Unlock()
}

// ensureThread returns the current thread ID, creating and selecting a new
// thread when the session has none yet.
func (s *Session) ensureThread() (string, error) {
	if id := s.CurrentThreadID(); id != "" {
		return id, nil
	}
	thread, err := s.StartNewThread()
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

// windowHistory trims history to the most recent window messages. A window
// never starts on a tool result whose requesting call was trimmed away,
// because runtimes reject orphaned tool messages.
func windowHistory(msgs []model.Message, window int) []model.Message {
	if window <= 0 || len(msgs) <= window {
		return msgs
	}
	trimmed := msgs[len(msgs)-window:]
	for len(trimmed) > 0 && trimmed[0].Role == model.RoleTool {
		trimmed = trimmed[1:]
	}
	return trimmed
}
