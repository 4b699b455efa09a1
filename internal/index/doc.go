// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides a searchable mirror of the thread store.
//
// The index keeps thread metadata and message text in SQLite with an FTS5
// table for ranked full-text search. It is derived state: the thread JSON
// files remain the source of truth, and the whole database can be rebuilt
// from them at any time.
//
// A file watcher (fsnotify, with a polling fallback) keeps the index
// current when another process writes the threads directory, so two
// terminal tabs sharing one data directory see each other's threads.
//
// # Key Types
//
//   - ThreadIndex: SQLite-backed search over threads and messages
//   - SearchResult: matching thread with snippet and relevance rank
//   - Config: paths, watch debounce, polling interval
//
// # Usage
//
// Build the index and search it:
//
//	idx, err := index.New(index.DefaultConfig(dataDir))
//	if err != nil { ... }
//	defer idx.Close()
//
//	if err := idx.Rebuild(ctx); err != nil { ... }
//	results, err := idx.Search(ctx, "kubernetes", nil)
//
// React to external writes:
//
//	go func() {
//	    for range idx.Changes() {
//	        // reload the thread list
//	    }
//	}()
//
// # Matching
//
// Queries and indexed text are folded the same way before matching:
// Unicode NFKD decomposition, combining marks stripped, lowercased.
// Title matches rank ahead of message matches; message matches rank by
// bm25 relevance.
package index
