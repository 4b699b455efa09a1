// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/agentchat-tui/internal/agent"
	"github.com/jeranaias/agentchat-tui/internal/session"
	"github.com/jeranaias/agentchat-tui/internal/storage"
)

// streamOf builds an invoker whose stream emits the given events and
// closes.
type scriptedInvoker struct {
	events []agent.Event
}

func (s scriptedInvoker) Invoke(ctx context.Context, req agent.Request) (*agent.Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream := agent.NewStream(cancel)
	go func() {
		defer stream.Close()
		for _, ev := range s.events {
			if !stream.Emit(ctx, ev) {
				return
			}
		}
	}()
	return stream, nil
}

func newRunnerSession(t *testing.T, invoker agent.Invoker) *session.Session {
	t.Helper()
	store, err := storage.NewStoreWithDir(t.TempDir())
	require.NoError(t, err)
	return session.New(store, testModels(), testTools(), invoker)
}

// TestTurnRunnerConcurrentSetProgram hammers SetProgram while a turn is
// running. The program reference is shared between the Bubble Tea
// goroutine and the runner goroutine, so this must be race-free.
func TestTurnRunnerConcurrentSetProgram(t *testing.T) {
	invoker := scriptedInvoker{events: []agent.Event{
		{Kind: agent.EventTextDelta, Delta: "hello"},
		{Kind: agent.EventDone},
	}}
	sess := newRunnerSession(t, invoker)

	buffer := NewStreamingBuffer()
	runner := NewTurnRunner(sess, buffer)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// A nil program makes send a no-op; the point is the lock.
			runner.SetProgram(nil)
		}()
	}

	runner.Run(context.Background(), "hi")
	wg.Wait()

	// The turn still completes and the deltas still land in the buffer.
	require.Eventually(t, func() bool {
		return buffer.Pending()
	}, 2*time.Second, 10*time.Millisecond)
}

// TestTurnRunnerDeltasReachBuffer verifies text deltas bypass Program.Send
// and go straight into the shared buffer.
func TestTurnRunnerDeltasReachBuffer(t *testing.T) {
	invoker := scriptedInvoker{events: []agent.Event{
		{Kind: agent.EventTextDelta, Delta: "one "},
		{Kind: agent.EventTextDelta, Delta: "two"},
		{Kind: agent.EventDone},
	}}
	sess := newRunnerSession(t, invoker)

	buffer := NewStreamingBuffer()
	runner := NewTurnRunner(sess, buffer)
	runner.Run(context.Background(), "count")

	require.Eventually(t, func() bool {
		return buffer.Pending()
	}, 2*time.Second, 10*time.Millisecond)

	// Give the stream a moment to finish both deltas before draining.
	time.Sleep(50 * time.Millisecond)
	require.Contains(t, buffer.Drain(), "one")
}
