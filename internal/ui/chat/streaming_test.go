// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

func TestStreamingBufferBatchThreshold(t *testing.T) {
	// Huge flush interval so only the batch size can trigger a flush.
	sb := NewStreamingBufferWithConfig(3, 1)

	sb.Write("a")
	sb.Write("b")
	if _, ok := sb.Flush(); ok {
		t.Fatal("flushed below batch threshold")
	}

	sb.Write("c")
	content, ok := sb.Flush()
	if !ok {
		t.Fatal("expected flush at batch threshold")
	}
	if content != "abc" {
		t.Errorf("content = %q, want %q", content, "abc")
	}
	if sb.Pending() {
		t.Error("buffer should be empty after flush")
	}
}

func TestStreamingBufferTimeThreshold(t *testing.T) {
	sb := NewStreamingBufferWithConfig(100, 60)
	sb.Write("hello")

	// Below both thresholds: no flush.
	if _, ok := sb.Flush(); ok {
		t.Fatal("flushed before the interval elapsed")
	}

	time.Sleep(20 * time.Millisecond)
	content, ok := sb.Flush()
	if !ok {
		t.Fatal("expected flush after the interval")
	}
	if content != "hello" {
		t.Errorf("content = %q, want %q", content, "hello")
	}
}

func TestStreamingBufferEmptyNeverFlushes(t *testing.T) {
	sb := NewStreamingBufferWithConfig(1, 60)
	time.Sleep(20 * time.Millisecond)
	if _, ok := sb.Flush(); ok {
		t.Error("empty buffer flushed")
	}
}

func TestStreamingBufferDrain(t *testing.T) {
	sb := NewStreamingBufferWithConfig(100, 1)
	sb.Write("tail ")
	sb.Write("tokens")

	if got := sb.Drain(); got != "tail tokens" {
		t.Errorf("Drain() = %q, want %q", got, "tail tokens")
	}
	if got := sb.Drain(); got != "" {
		t.Errorf("second Drain() = %q, want empty", got)
	}
}

func TestStreamingBufferConcurrentWrites(t *testing.T) {
	sb := NewStreamingBuffer()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sb.Write(fmt.Sprintf("%d", n))
			}
		}(i)
	}
	wg.Wait()

	total := sb.Drain()
	if len(total) != 800 {
		t.Errorf("drained %d bytes, want 800", len(total))
	}
}

func TestStreamingBufferConfigDefaults(t *testing.T) {
	// Out-of-range settings fall back to the defaults.
	sb := NewStreamingBufferWithConfig(0, 0)
	for i := 0; i < defaultBatchSize; i++ {
		sb.Write("x")
	}
	if _, ok := sb.Flush(); !ok {
		t.Error("expected flush at default batch size")
	}
}

// =============================================================================
// CANCEL MANAGER
// =============================================================================

func TestCancelManagerCancels(t *testing.T) {
	cm := newCancelManager()
	ctx, cancel := context.WithCancel(context.Background())
	cm.set(cancel)

	cm.cancel()
	select {
	case <-ctx.Done():
	default:
		t.Error("context not cancelled")
	}

	// Repeated cancel is a no-op.
	cm.cancel()
}

func TestCancelManagerSetCancelsPrevious(t *testing.T) {
	cm := newCancelManager()
	first, cancelFirst := context.WithCancel(context.Background())
	cm.set(cancelFirst)

	second, cancelSecond := context.WithCancel(context.Background())
	cm.set(cancelSecond)

	select {
	case <-first.Done():
	default:
		t.Error("previous context should be cancelled when replaced")
	}
	select {
	case <-second.Done():
		t.Error("current context should still be live")
	default:
	}
	cm.cancel()
}
