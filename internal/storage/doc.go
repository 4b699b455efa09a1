// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides thread persistence for agentchat.
//
// This package handles saving and loading chat threads to/from disk,
// with support for search, listing, and export.
//
// # Key Types
//
//   - Store: Main storage interface for threads
//   - StoreError: Operation-scoped error wrapper
//
// # Usage
//
// Create a store and start a thread:
//
//	store, err := storage.NewStore()
//	thread, err := store.Create("nova-lite")
//
// Append messages durably:
//
//	updated, err := store.Append(thread.ID, model.NewUserMessage("hi"))
//
// List and load threads:
//
//	metas, err := store.List()
//	thread, err := store.Load(metas[0].ID)
//
// Search threads:
//
//	results, err := store.Search("query text")
//
// # Storage Location
//
// Threads are stored in ~/.agentchat/threads/ as one JSON file each.
// Every write is atomic (temp file, fsync, rename), so concurrent
// readers in other tabs always observe a complete file.
package storage
