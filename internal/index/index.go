// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides a searchable mirror of the thread store.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/agentchat-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotIndexed    = errors.New("threads not indexed")
	ErrRebuilding    = errors.New("rebuild in progress")
	ErrDatabaseError = errors.New("database error")
	ErrInvalidPath   = errors.New("invalid path")
)

// =============================================================================
// THREAD INDEX
// =============================================================================

// ThreadIndex mirrors the thread store into SQLite for fast search. The
// JSON files under the threads directory remain the source of truth; the
// index is derived state and is rebuildable at any time.
type ThreadIndex struct {
	db      *sql.DB
	watcher fileWatcher // fsnotify or polling fallback
	mu      sync.RWMutex

	// Rebuild state
	rebuilding   bool
	rebuildingMu sync.Mutex
	lastRebuilt  time.Time
	threadCount  int
	messageCount int

	config *Config

	// changes is a coalesced change signal for UI consumers.
	changes chan struct{}
}

// Config holds index configuration
type Config struct {
	// ThreadsDir is the directory holding the thread JSON files
	ThreadsDir string

	// DatabasePath is where to store the SQLite database. It must live
	// outside ThreadsDir or the watcher would see its own writes.
	DatabasePath string

	// EnableWatch enables file watching for incremental updates
	EnableWatch bool

	// WatchDebounce is the debounce duration for file change events
	WatchDebounce time.Duration

	// PollInterval is the scan interval for the polling fallback watcher
	PollInterval time.Duration
}

// DefaultConfig returns default configuration for a data directory laid
// out as dataDir/threads plus dataDir/index.db.
func DefaultConfig(dataDir string) *Config {
	return &Config{
		ThreadsDir:    filepath.Join(dataDir, "threads"),
		DatabasePath:  filepath.Join(dataDir, "index.db"),
		EnableWatch:   true,
		WatchDebounce: 500 * time.Millisecond,
		PollInterval:  5 * time.Second,
	}
}

// New creates a thread index over the given configuration.
func New(config *Config) (*ThreadIndex, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	info, err := os.Stat(config.ThreadsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory", ErrInvalidPath)
	}

	dbDir := filepath.Dir(config.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON", // Required for thread -> message cascade
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &ThreadIndex{
		db:      db,
		config:  config,
		changes: make(chan struct{}, 1),
	}

	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// An index.db from a previous run may already hold data.
	if err := idx.loadStats(); err != nil {
		// Non-fatal, stays unindexed until Rebuild
	}

	return idx, nil
}

// initSchema creates the database schema
func (idx *ThreadIndex) initSchema() error {
	if _, err := idx.db.Exec(Schema); err != nil {
		return err
	}
	if _, err := idx.db.Exec(InitMetadata); err != nil {
		return err
	}
	_, err := idx.db.Exec("UPDATE metadata SET value = ? WHERE key = 'threads_dir'", idx.config.ThreadsDir)
	return err
}

// Close stops the watcher and releases the database.
func (idx *ThreadIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.watcher != nil {
		idx.watcher.Close()
		idx.watcher = nil
	}
	if idx.db != nil {
		return idx.db.Close()
	}
	return nil
}

// Changes returns a coalesced signal channel: one receive means "the
// thread set changed since you last looked", not one signal per file.
func (idx *ThreadIndex) Changes() <-chan struct{} {
	return idx.changes
}

// notify signals a change without ever blocking the watcher.
func (idx *ThreadIndex) notify() {
	select {
	case idx.changes <- struct{}{}:
	default:
	}
}

// =============================================================================
// REBUILD
// =============================================================================

// Rebuild performs a full scan of the threads directory, replacing the
// entire index. When watching is enabled the file watcher starts after
// the first successful rebuild.
func (idx *ThreadIndex) Rebuild(ctx context.Context) error {
	idx.rebuildingMu.Lock()
	if idx.rebuilding {
		idx.rebuildingMu.Unlock()
		return ErrRebuilding
	}
	idx.rebuilding = true
	idx.rebuildingMu.Unlock()

	defer func() {
		idx.rebuildingMu.Lock()
		idx.rebuilding = false
		idx.rebuildingMu.Unlock()
	}()

	startTime := time.Now()

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	// messages go with their threads via cascade
	if _, err := tx.Exec("DELETE FROM threads"); err != nil {
		return fmt.Errorf("failed to clear threads: %w", err)
	}

	entries, err := os.ReadDir(idx.config.ThreadsDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	var threadCount, messageCount int
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		thread, err := readThreadFile(filepath.Join(idx.config.ThreadsDir, entry.Name()))
		if err != nil {
			log.Printf("INDEX: skipping %s: %v", entry.Name(), err)
			continue
		}

		n, err := indexThreadTx(tx, thread)
		if err != nil {
			return fmt.Errorf("failed to index thread %s: %w", thread.ID, err)
		}
		threadCount++
		messageCount += n
	}

	now := time.Now().Unix()
	if _, err := tx.Exec("UPDATE metadata SET value = ? WHERE key = 'last_full_rebuild'", now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	idx.mu.Lock()
	idx.lastRebuilt = startTime
	idx.threadCount = threadCount
	idx.messageCount = messageCount
	idx.mu.Unlock()

	if idx.config.EnableWatch {
		idx.mu.Lock()
		if idx.watcher == nil {
			if err := idx.startWatcherLocked(); err != nil {
				log.Printf("INDEX: watcher unavailable: %v", err)
			}
		}
		idx.mu.Unlock()
	}

	return nil
}

// =============================================================================
// INCREMENTAL UPDATES
// =============================================================================

// IndexThread inserts or replaces a single thread in the index.
func (idx *ThreadIndex) IndexThread(thread *model.Thread) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	// Replace wholesale; cascade removes the old message rows.
	if _, err := tx.Exec("DELETE FROM threads WHERE id = ?", thread.ID); err != nil {
		return err
	}

	if _, err := indexThreadTx(tx, thread); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	idx.mu.Lock()
	idx.threadCount, idx.messageCount = -1, -1 // stale, Stats recounts
	idx.mu.Unlock()

	return nil
}

// RemoveThread removes a thread from the index.
func (idx *ThreadIndex) RemoveThread(id string) error {
	if _, err := idx.db.Exec("DELETE FROM threads WHERE id = ?", id); err != nil {
		return err
	}
	idx.mu.Lock()
	idx.threadCount, idx.messageCount = -1, -1 // stale, Stats recounts
	idx.mu.Unlock()
	return nil
}

// indexThreadTx writes one thread and its messages inside tx, returning
// the number of messages indexed.
func indexThreadTx(tx *sql.Tx, thread *model.Thread) (int, error) {
	meta := thread.Meta()

	_, err := tx.Exec(`
		INSERT INTO threads (id, title, title_norm, model, message_count, created_at, updated_at, preview, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, meta.ID, meta.Title, foldText(meta.Title), meta.Model, meta.MessageCount,
		meta.CreatedAt.Unix(), meta.UpdatedAt.Unix(), meta.Preview, time.Now().Unix())
	if err != nil {
		return 0, err
	}

	count := 0
	for _, msg := range thread.Messages {
		text := searchableText(msg)
		if text == "" {
			continue
		}
		_, err := tx.Exec(`
			INSERT INTO messages (thread_id, message_id, role, content, content_norm, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, thread.ID, msg.ID, string(msg.Role), text, foldText(text), msg.CreatedAt.Unix())
		if err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

// searchableText returns the text worth indexing for a message: its
// content, or the tool result payload for tool messages.
func searchableText(msg model.Message) string {
	if msg.Content != "" {
		return msg.Content
	}
	if msg.ToolResult != nil {
		return msg.ToolResult.Content
	}
	return ""
}

// readThreadFile decodes one thread JSON file.
func readThreadFile(path string) (*model.Thread, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var thread model.Thread
	if err := json.Unmarshal(data, &thread); err != nil {
		return nil, fmt.Errorf("corrupt thread file: %w", err)
	}
	if thread.ID == "" {
		thread.ID = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	return &thread, nil
}

// =============================================================================
// STATISTICS
// =============================================================================

// Stats reports index state.
type Stats struct {
	ThreadCount  int
	MessageCount int
	LastRebuilt  time.Time
	IsRebuilding bool
	DatabaseSize int64
}

// Stats returns current index statistics.
func (idx *ThreadIndex) Stats() Stats {
	idx.mu.RLock()
	threadCount := idx.threadCount
	messageCount := idx.messageCount
	lastRebuilt := idx.lastRebuilt
	idx.mu.RUnlock()

	// Recount after incremental updates marked the cached values stale.
	if threadCount < 0 || messageCount < 0 {
		idx.db.QueryRow("SELECT COUNT(*) FROM threads").Scan(&threadCount)
		idx.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&messageCount)
		idx.mu.Lock()
		idx.threadCount = threadCount
		idx.messageCount = messageCount
		idx.mu.Unlock()
	}

	idx.rebuildingMu.Lock()
	rebuilding := idx.rebuilding
	idx.rebuildingMu.Unlock()

	var dbSize int64
	if info, err := os.Stat(idx.config.DatabasePath); err == nil {
		dbSize = info.Size()
	}

	return Stats{
		ThreadCount:  threadCount,
		MessageCount: messageCount,
		LastRebuilt:  lastRebuilt,
		IsRebuilding: rebuilding,
		DatabaseSize: dbSize,
	}
}

// IsIndexed reports whether a full rebuild has completed.
func (idx *ThreadIndex) IsIndexed() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return !idx.lastRebuilt.IsZero()
}

// loadStats loads statistics from a pre-existing database.
func (idx *ThreadIndex) loadStats() error {
	var lastRebuilt int64
	err := idx.db.QueryRow("SELECT value FROM metadata WHERE key = 'last_full_rebuild'").Scan(&lastRebuilt)
	if err != nil {
		return err
	}
	if lastRebuilt > 0 {
		idx.lastRebuilt = time.Unix(lastRebuilt, 0)
	}

	if err := idx.db.QueryRow("SELECT COUNT(*) FROM threads").Scan(&idx.threadCount); err != nil {
		return err
	}
	return idx.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&idx.messageCount)
}
