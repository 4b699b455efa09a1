// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Debug file logging. A TUI owns the terminal, so diagnostics go to a file
// instead of stdout, and only when AGENTCHAT_DEBUG is set.
package util

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

var (
	debugMu     sync.Mutex
	debugLogger *log.Logger
	debugFile   *os.File
)

// DebugEnabled reports whether debug logging was requested via the
// AGENTCHAT_DEBUG environment variable.
func DebugEnabled() bool {
	return os.Getenv("AGENTCHAT_DEBUG") != ""
}

// InitDebugLog opens (or creates) the debug log file at path.
// It is a no-op unless AGENTCHAT_DEBUG is set. Safe to call once at startup.
func InitDebugLog(path string) error {
	if !DebugEnabled() {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create debug log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open debug log: %w", err)
	}
	debugMu.Lock()
	defer debugMu.Unlock()
	if debugFile != nil {
		debugFile.Close()
	}
	debugFile = f
	debugLogger = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
	return nil
}

// Debugf writes a formatted line to the debug log. No-op when logging
// is disabled or InitDebugLog has not been called.
func Debugf(format string, args ...any) {
	debugMu.Lock()
	defer debugMu.Unlock()
	if debugLogger == nil {
		return
	}
	debugLogger.Printf(format, args...)
}

// CloseDebugLog flushes and closes the debug log file.
func CloseDebugLog() {
	debugMu.Lock()
	defer debugMu.Unlock()
	if debugFile != nil {
		debugFile.Close()
		debugFile = nil
		debugLogger = nil
	}
}
