// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides a searchable mirror of the thread store.
package index

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fileWatcher keeps the index current as thread files change.
type fileWatcher interface {
	// Watch starts watching for file changes
	Watch() error

	// Close stops watching and releases resources
	Close() error
}

// threadIDFromPath maps a thread file path back to its thread ID.
func threadIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".json")
}

// isThreadFile reports whether a path looks like a thread file. Atomic
// writes land as ".tmp-*" first and rename into place, so only the final
// ".json" name ever qualifies.
func isThreadFile(path string) bool {
	return strings.HasSuffix(path, ".json")
}

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// fsnotifyWatcher watches the flat threads directory with fsnotify.
type fsnotifyWatcher struct {
	idx      *ThreadIndex
	watcher  *fsnotify.Watcher
	debounce time.Duration
	mu       sync.Mutex
	pending  map[string]time.Time // File path -> last change time
	ctx      context.Context
	cancel   context.CancelFunc
}

func newFsnotifyWatcher(idx *ThreadIndex, debounce time.Duration) (*fsnotifyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &fsnotifyWatcher{
		idx:      idx,
		watcher:  watcher,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts watching for file changes
func (fw *fsnotifyWatcher) Watch() error {
	if err := fw.watcher.Add(fw.idx.config.ThreadsDir); err != nil {
		return err
	}

	go fw.processEvents()
	go fw.processPending()
	return nil
}

// processEvents processes file system events
func (fw *fsnotifyWatcher) processEvents() {
	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !isThreadFile(event.Name) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				fw.mu.Lock()
				fw.pending[event.Name] = time.Now()
				fw.mu.Unlock()
			}

			// A rename away or a removal drops the thread.
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				fw.mu.Lock()
				delete(fw.pending, event.Name)
				fw.mu.Unlock()

				if err := fw.idx.RemoveThread(threadIDFromPath(event.Name)); err != nil {
					log.Printf("INDEX: remove %s: %v", event.Name, err)
				}
				fw.idx.notify()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("INDEX: watch error: %v", err)
		}
	}
}

// processPending reindexes changed files once they settle.
func (fw *fsnotifyWatcher) processPending() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()

			fw.mu.Lock()
			var toProcess []string
			for path, changeTime := range fw.pending {
				if now.Sub(changeTime) >= fw.debounce {
					toProcess = append(toProcess, path)
					delete(fw.pending, path)
				}
			}
			fw.mu.Unlock()

			for _, path := range toProcess {
				updateThreadFile(fw.idx, path)
			}
			if len(toProcess) > 0 {
				fw.idx.notify()
			}
		}
	}
}

// Close stops watching and releases resources
func (fw *fsnotifyWatcher) Close() error {
	fw.cancel()
	if fw.watcher != nil {
		return fw.watcher.Close()
	}
	return nil
}

// updateThreadFile reindexes a single thread file, removing it when the
// file is already gone.
func updateThreadFile(idx *ThreadIndex, path string) {
	thread, err := readThreadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := idx.RemoveThread(threadIDFromPath(path)); err != nil {
				log.Printf("INDEX: remove %s: %v", path, err)
			}
			return
		}
		log.Printf("INDEX: skipping %s: %v", filepath.Base(path), err)
		return
	}

	if err := idx.IndexThread(thread); err != nil {
		log.Printf("INDEX: reindex %s: %v", thread.ID, err)
	}
}

// =============================================================================
// POLLING WATCHER (FALLBACK)
// =============================================================================

// pollingWatcher rescans the threads directory on an interval, for
// filesystems where fsnotify is unavailable.
type pollingWatcher struct {
	idx      *ThreadIndex
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	files    map[string]time.Time // File path -> mod time
	mu       sync.Mutex
}

func newPollingWatcher(idx *ThreadIndex, interval time.Duration) *pollingWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &pollingWatcher{
		idx:      idx,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		files:    make(map[string]time.Time),
	}
}

// Watch starts watching for file changes
func (pw *pollingWatcher) Watch() error {
	snapshot, err := pw.scan()
	if err != nil {
		return err
	}
	pw.mu.Lock()
	pw.files = snapshot
	pw.mu.Unlock()

	go pw.poll()
	return nil
}

// scan records the current thread files and their modification times.
func (pw *pollingWatcher) scan() (map[string]time.Time, error) {
	entries, err := os.ReadDir(pw.idx.config.ThreadsDir)
	if err != nil {
		return nil, err
	}

	files := make(map[string]time.Time)
	for _, entry := range entries {
		if entry.IsDir() || !isThreadFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files[filepath.Join(pw.idx.config.ThreadsDir, entry.Name())] = info.ModTime()
	}
	return files, nil
}

func (pw *pollingWatcher) poll() {
	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-pw.ctx.Done():
			return
		case <-ticker.C:
			pw.checkChanges()
		}
	}
}

// checkChanges diffs the directory against the last snapshot.
func (pw *pollingWatcher) checkChanges() {
	current, err := pw.scan()
	if err != nil {
		return
	}

	pw.mu.Lock()
	previous := pw.files
	pw.files = current
	pw.mu.Unlock()

	changed := false
	for path, modTime := range current {
		if oldTime, exists := previous[path]; !exists || !oldTime.Equal(modTime) {
			updateThreadFile(pw.idx, path)
			changed = true
		}
	}
	for path := range previous {
		if _, exists := current[path]; !exists {
			if err := pw.idx.RemoveThread(threadIDFromPath(path)); err != nil {
				log.Printf("INDEX: remove %s: %v", path, err)
			}
			changed = true
		}
	}

	if changed {
		pw.idx.notify()
	}
}

// Close stops watching
func (pw *pollingWatcher) Close() error {
	pw.cancel()
	return nil
}

// =============================================================================
// WATCHER FACTORY
// =============================================================================

// startWatcherLocked starts the file watcher, preferring fsnotify and
// falling back to polling. Caller holds idx.mu.
func (idx *ThreadIndex) startWatcherLocked() error {
	fw, err := newFsnotifyWatcher(idx, idx.config.WatchDebounce)
	if err == nil {
		if err := fw.Watch(); err == nil {
			idx.watcher = fw
			return nil
		}
		fw.Close()
	}

	interval := idx.config.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	pw := newPollingWatcher(idx, interval)
	if err := pw.Watch(); err != nil {
		return err
	}
	idx.watcher = pw
	return nil
}
