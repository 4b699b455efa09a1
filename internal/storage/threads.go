// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides thread persistence for agentchat.
package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jeranaias/agentchat-tui/internal/model"
	"github.com/jeranaias/agentchat-tui/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrThreadNotFound is returned when a thread doesn't exist.
// Use errors.Is(err, ErrThreadNotFound) to check for this error.
var ErrThreadNotFound = errors.New("thread not found")

// StoreError wraps a storage failure with the operation and thread that
// caused it. It unwraps to the underlying error, so errors.Is works for
// sentinel checks.
type StoreError struct {
	Op  string // "create", "save", "append", "load", "list", "delete"
	ID  string // thread ID when applicable
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.ID != "" {
		return e.Op + " " + e.ID + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// =============================================================================
// THREAD STORE
// =============================================================================

// Store persists threads as one JSON file per thread.
//
// All writes go through an atomic write-then-rename, so a crash mid-write
// leaves either the previous file or the new complete file, never a torn
// one. Writes to the same thread are serialized with a per-thread lock;
// writes to different threads may proceed concurrently.
type Store struct {
	// BaseDir is the directory for storing threads
	// Default: ~/.agentchat/threads/
	BaseDir string

	// MaxThreads limits stored threads (0 = unlimited)
	MaxThreads int

	// Per-thread write locks
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a thread store rooted in the user's home directory.
func NewStore() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewStoreWithDir(filepath.Join(homeDir, ".agentchat", "threads"))
}

// NewStoreWithDir creates a store with a custom directory.
func NewStoreWithDir(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &Store{
		BaseDir:    baseDir,
		MaxThreads: 100,
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

// threadLock returns the write lock for a thread, creating it on demand.
func (s *Store) threadLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// dropLock removes the write lock entry for a deleted thread.
func (s *Store) dropLock(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, id)
}

// =============================================================================
// CREATE AND SAVE OPERATIONS
// =============================================================================

// Create makes a new empty thread for the given model and persists it.
// The thread is durable once Create returns.
func (s *Store) Create(modelID string) (*model.Thread, error) {
	thread := model.NewThread(modelID)
	if err := s.Save(thread); err != nil {
		return nil, &StoreError{Op: "create", ID: thread.ID, Err: err}
	}
	return thread, nil
}

// Save persists a thread, replacing any previous version of its file.
func (s *Store) Save(thread *model.Thread) error {
	if thread.ID == "" {
		return &StoreError{Op: "save", Err: errors.New("thread has no ID")}
	}

	lock := s.threadLock(thread.ID)
	lock.Lock()
	err := s.writeLocked(thread)
	lock.Unlock()
	if err != nil {
		return &StoreError{Op: "save", ID: thread.ID, Err: err}
	}

	// Enforce max threads limit outside the thread lock, since it may
	// delete other threads (which take their own locks).
	if s.MaxThreads > 0 {
		s.enforceLimit()
	}

	return nil
}

// writeLocked marshals and atomically writes a thread file.
// Caller must hold the thread lock.
func (s *Store) writeLocked(thread *model.Thread) error {
	data, err := json.MarshalIndent(thread, "", "  ")
	if err != nil {
		return err
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	return util.AtomicWriteFile(s.filePath(thread.ID), data, 0644)
}

// Append adds messages to an existing thread and persists the result.
// Returns the updated thread.
//
// Appending to a thread that does not exist (including one deleted by
// another tab) fails with ErrThreadNotFound; the thread is never
// silently recreated.
func (s *Store) Append(id string, msgs ...model.Message) (*model.Thread, error) {
	lock := s.threadLock(id)
	lock.Lock()
	defer lock.Unlock()

	thread, err := s.loadFile(id)
	if err != nil {
		return nil, &StoreError{Op: "append", ID: id, Err: err}
	}

	thread.AppendAll(msgs...)

	if err := s.writeLocked(thread); err != nil {
		return nil, &StoreError{Op: "append", ID: id, Err: err}
	}

	return thread, nil
}

// enforceLimit removes the oldest threads if over limit.
func (s *Store) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxThreads {
		return
	}

	// Sort by updated time (oldest first)
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.Before(metas[j].UpdatedAt)
	})

	// Delete excess
	excess := len(metas) - s.MaxThreads
	for i := 0; i < excess; i++ {
		s.Delete(metas[i].ID)
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a thread by ID.
func (s *Store) Load(id string) (*model.Thread, error) {
	thread, err := s.loadFile(id)
	if err != nil {
		if errors.Is(err, ErrThreadNotFound) {
			return nil, err
		}
		return nil, &StoreError{Op: "load", ID: id, Err: err}
	}
	return thread, nil
}

// loadFile reads and decodes a thread file without wrapping errors.
func (s *Store) loadFile(id string) (*model.Thread, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}

	var thread model.Thread
	if err := json.Unmarshal(data, &thread); err != nil {
		return nil, err
	}

	return &thread, nil
}

// LoadByIndex loads a thread by its index in the list (0 = most recent).
func (s *Store) LoadByIndex(index int) (*model.Thread, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(metas) {
		return nil, ErrThreadNotFound
	}

	return s.Load(metas[index].ID)
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns metadata for all saved threads (most recent first).
func (s *Store) List() ([]model.ThreadMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.ThreadMeta{}, nil
		}
		return nil, &StoreError{Op: "list", Err: err}
	}

	var metas []model.ThreadMeta

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")

		thread, err := s.loadFile(id)
		if err != nil {
			continue // Skip corrupted files
		}

		metas = append(metas, thread.Meta())
	}

	// Sort by updated time (most recent first)
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})

	return metas, nil
}

// Search finds threads whose title or preview matches a query string.
func (s *Store) Search(query string) ([]model.ThreadMeta, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var results []model.ThreadMeta

	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Title), query) ||
			strings.Contains(strings.ToLower(meta.Preview), query) {
			results = append(results, meta)
		}
	}

	return results, nil
}

// SearchMessages searches threads by message content.
// Returns threads where any message contains the query string (case-insensitive).
func (s *Store) SearchMessages(query string) ([]model.ThreadMeta, error) {
	if query == "" {
		return s.List()
	}

	query = strings.ToLower(query)
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	var results []model.ThreadMeta

	for _, meta := range all {
		thread, err := s.loadFile(meta.ID)
		if err != nil {
			continue
		}

		for _, msg := range thread.Messages {
			if strings.Contains(strings.ToLower(msg.Content), query) {
				results = append(results, meta)
				break // Found a match, move to next thread
			}
		}
	}

	return results, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a thread by ID.
// Deleting a thread that does not exist returns ErrThreadNotFound.
func (s *Store) Delete(id string) error {
	lock := s.threadLock(id)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrThreadNotFound
		}
		return &StoreError{Op: "delete", ID: id, Err: err}
	}

	s.dropLock(id)
	return nil
}

// Clear removes all saved threads.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &StoreError{Op: "clear", Err: err}
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			os.Remove(filepath.Join(s.BaseDir, entry.Name()))
		}
	}

	s.mu.Lock()
	s.locks = make(map[string]*sync.Mutex)
	s.mu.Unlock()

	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// filePath returns the file path for a thread ID.
func (s *Store) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}
