// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/agentchat-tui/internal/model"
	"github.com/jeranaias/agentchat-tui/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// newTestIndex builds a real store plus an index over its directory. The
// database lives outside the threads dir so the watcher never sees it.
func newTestIndex(t *testing.T, watch bool) (*ThreadIndex, *storage.Store) {
	t.Helper()

	dataDir := t.TempDir()
	store, err := storage.NewStoreWithDir(filepath.Join(dataDir, "threads"))
	if err != nil {
		t.Fatalf("NewStoreWithDir() error = %v", err)
	}

	cfg := DefaultConfig(dataDir)
	cfg.EnableWatch = watch
	cfg.WatchDebounce = 20 * time.Millisecond

	idx, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	return idx, store
}

// seedThread creates a thread with the given user messages.
func seedThread(t *testing.T, store *storage.Store, title string, contents ...string) *model.Thread {
	t.Helper()

	thread, err := store.Create("fast")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	msgs := make([]model.Message, 0, len(contents))
	for _, c := range contents {
		msgs = append(msgs, model.NewUserMessage(c))
	}
	thread, err = store.Append(thread.ID, msgs...)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if title != "" {
		thread.SetTitle(title)
		if err := store.Save(thread); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	return thread
}

// searchIDs runs a search and returns thread IDs in rank order.
func searchIDs(t *testing.T, idx *ThreadIndex, query string) []string {
	t.Helper()
	results, err := idx.Search(context.Background(), query, nil)
	if err != nil {
		t.Fatalf("Search(%q) error = %v", query, err)
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

// waitForThread polls the index until a query matches the wanted thread.
func waitForThread(t *testing.T, idx *ThreadIndex, query, wantID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, id := range searchIDs(t, idx, query) {
			if id == wantID {
				return
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("thread %q never appeared for query %q", wantID, query)
}

// =============================================================================
// REBUILD TESTS
// =============================================================================

func TestRebuild(t *testing.T) {
	idx, store := newTestIndex(t, false)

	seedThread(t, store, "", "how do I tune postgres", "try the shared buffers")
	seedThread(t, store, "", "weekend hiking plans")

	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	stats := idx.Stats()
	if stats.ThreadCount != 2 {
		t.Errorf("Stats().ThreadCount = %d, want 2", stats.ThreadCount)
	}
	if stats.MessageCount != 3 {
		t.Errorf("Stats().MessageCount = %d, want 3", stats.MessageCount)
	}
	if !idx.IsIndexed() {
		t.Error("IsIndexed() = false after Rebuild")
	}
}

func TestRebuild_SkipsCorruptFiles(t *testing.T) {
	idx, store := newTestIndex(t, false)

	good := seedThread(t, store, "", "searchable text here")
	if err := os.WriteFile(filepath.Join(store.BaseDir, "broken.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if got := idx.Stats().ThreadCount; got != 1 {
		t.Errorf("Stats().ThreadCount = %d, want 1", got)
	}

	ids := searchIDs(t, idx, "searchable")
	if len(ids) != 1 || ids[0] != good.ID {
		t.Errorf("Search() = %v, want [%s]", ids, good.ID)
	}
}

func TestRebuild_Reentrant(t *testing.T) {
	idx, store := newTestIndex(t, false)
	seedThread(t, store, "", "first pass")

	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	seedThread(t, store, "", "second pass")
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("second Rebuild() error = %v", err)
	}

	if got := idx.Stats().ThreadCount; got != 2 {
		t.Errorf("Stats().ThreadCount = %d, want 2", got)
	}
	// No duplicate rows from the first pass.
	if ids := searchIDs(t, idx, "first"); len(ids) != 1 {
		t.Errorf("Search(first) = %v, want exactly one thread", ids)
	}
}

// =============================================================================
// SEARCH TESTS
// =============================================================================

func TestSearch_NotIndexed(t *testing.T) {
	idx, _ := newTestIndex(t, false)

	if _, err := idx.Search(context.Background(), "anything", nil); !errors.Is(err, ErrNotIndexed) {
		t.Fatalf("Search() error = %v, want ErrNotIndexed", err)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	idx, store := newTestIndex(t, false)
	seedThread(t, store, "", "content")
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	for _, q := range []string{"", "   ", "***"} {
		results, err := idx.Search(context.Background(), q, nil)
		if err != nil {
			t.Fatalf("Search(%q) error = %v", q, err)
		}
		if len(results) != 0 {
			t.Errorf("Search(%q) returned %d results, want 0", q, len(results))
		}
	}
}

func TestSearch_RanksRepeatedMentionsHigher(t *testing.T) {
	idx, store := newTestIndex(t, false)

	heavy := seedThread(t, store, "",
		"kubernetes rollout is stuck",
		"the kubernetes scheduler logs show kubernetes taints")
	light := seedThread(t, store, "",
		"mentioned kubernetes once among many other unrelated words here")

	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	ids := searchIDs(t, idx, "kubernetes")
	if len(ids) != 2 {
		t.Fatalf("Search() found %d threads, want 2", len(ids))
	}
	if ids[0] != heavy.ID || ids[1] != light.ID {
		t.Errorf("Search() order = %v, want [%s %s]", ids, heavy.ID, light.ID)
	}
}

func TestSearch_SnippetSurroundsMatch(t *testing.T) {
	idx, store := newTestIndex(t, false)
	seedThread(t, store, "", "the quick brown fox discussed terraform modules at length today")
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	results, err := idx.Search(context.Background(), "terraform", nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() found %d results, want 1", len(results))
	}
	if snippet := results[0].Snippet; !strings.Contains(foldText(snippet), "terraform") {
		t.Errorf("Snippet = %q, want it to contain the match", snippet)
	}
}

func TestSearch_TitleMatchRanksFirst(t *testing.T) {
	idx, store := newTestIndex(t, false)

	titled := seedThread(t, store, "Terraform state surgery", "we talked about backups")
	body := seedThread(t, store, "", "a passing terraform mention in a message")

	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	ids := searchIDs(t, idx, "terraform")
	if len(ids) != 2 {
		t.Fatalf("Search() found %d threads, want 2", len(ids))
	}
	if ids[0] != titled.ID || ids[1] != body.ID {
		t.Errorf("Search() order = %v, want title match %s first", ids, titled.ID)
	}
}

func TestSearch_FoldsCaseAndDiacritics(t *testing.T) {
	idx, store := newTestIndex(t, false)
	thread := seedThread(t, store, "", "Meet at the Café Réunion at noon")
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	for _, q := range []string{"cafe", "CAFE", "café", "reunion"} {
		ids := searchIDs(t, idx, q)
		if len(ids) != 1 || ids[0] != thread.ID {
			t.Errorf("Search(%q) = %v, want [%s]", q, ids, thread.ID)
		}
	}
}

func TestSearch_AllTokensMustMatch(t *testing.T) {
	idx, store := newTestIndex(t, false)
	both := seedThread(t, store, "", "deploying redis on fly io")
	seedThread(t, store, "", "redis eviction policies")
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	ids := searchIDs(t, idx, "redis deploy")
	if len(ids) != 1 || ids[0] != both.ID {
		t.Errorf("Search(redis deploy) = %v, want only [%s]", ids, both.ID)
	}
}

func TestSearch_MaxResults(t *testing.T) {
	idx, store := newTestIndex(t, false)
	for i := 0; i < 5; i++ {
		seedThread(t, store, "", "a common phrase shared by everyone")
	}
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	results, err := idx.Search(context.Background(), "common", &SearchOptions{MaxResults: 3})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Search() returned %d results, want 3", len(results))
	}
}

func TestSearch_ToolResultContent(t *testing.T) {
	idx, store := newTestIndex(t, false)

	thread, err := store.Create("fast")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	result := model.NewToolResultMessage(model.ToolResult{
		CallID:  "call-1",
		Name:    "search__web",
		Content: "the capital of iceland is reykjavik",
	})
	if _, err := store.Append(thread.ID, model.NewUserMessage("look it up"), result); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	ids := searchIDs(t, idx, "reykjavik")
	if len(ids) != 1 || ids[0] != thread.ID {
		t.Errorf("Search(reykjavik) = %v, want [%s]", ids, thread.ID)
	}
}

// =============================================================================
// INCREMENTAL UPDATE TESTS
// =============================================================================

func TestIndexThread_ReplacesExisting(t *testing.T) {
	idx, store := newTestIndex(t, false)
	thread := seedThread(t, store, "", "original wording")
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	updated, err := store.Append(thread.ID, model.NewUserMessage("revised phrasing"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := idx.IndexThread(updated); err != nil {
		t.Fatalf("IndexThread() error = %v", err)
	}

	if ids := searchIDs(t, idx, "revised"); len(ids) != 1 || ids[0] != thread.ID {
		t.Errorf("Search(revised) = %v, want [%s]", ids, thread.ID)
	}
	// Old rows were replaced, not duplicated.
	if ids := searchIDs(t, idx, "original"); len(ids) != 1 {
		t.Errorf("Search(original) = %v, want one thread", ids)
	}
	if got := idx.Stats().MessageCount; got != 2 {
		t.Errorf("Stats().MessageCount = %d, want 2", got)
	}
}

func TestRemoveThread(t *testing.T) {
	idx, store := newTestIndex(t, false)
	thread := seedThread(t, store, "", "ephemeral content")
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	if err := idx.RemoveThread(thread.ID); err != nil {
		t.Fatalf("RemoveThread() error = %v", err)
	}
	if ids := searchIDs(t, idx, "ephemeral"); len(ids) != 0 {
		t.Errorf("Search() after remove = %v, want none", ids)
	}
	if got := idx.Stats().ThreadCount; got != 0 {
		t.Errorf("Stats().ThreadCount = %d, want 0", got)
	}
}

// =============================================================================
// WATCHER TESTS
// =============================================================================

func TestWatcher_PicksUpExternalWrite(t *testing.T) {
	idx, store := newTestIndex(t, true)

	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	// Another tab writes a thread after our rebuild.
	thread := seedThread(t, store, "", "freshly minted elsewhere")

	select {
	case <-idx.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification for external write")
	}
	waitForThread(t, idx, "minted", thread.ID)
}

func TestWatcher_PicksUpExternalDelete(t *testing.T) {
	idx, store := newTestIndex(t, true)

	thread := seedThread(t, store, "", "doomed thread content")
	if err := idx.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if ids := searchIDs(t, idx, "doomed"); len(ids) != 1 {
		t.Fatalf("Search() before delete = %v, want one", ids)
	}

	if err := store.Delete(thread.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	select {
	case <-idx.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification for external delete")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(searchIDs(t, idx, "doomed")) == 0 {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("deleted thread still searchable")
}

// =============================================================================
// FOLDING TESTS
// =============================================================================

func TestFoldText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases", in: "Hello World", want: "hello world"},
		{name: "strips accents", in: "Café Réunion", want: "cafe reunion"},
		{name: "compatibility forms", in: "ﬁle", want: "file"},
		{name: "passes ascii through", in: "plain text 42", want: "plain text 42"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := foldText(tt.in); got != tt.want {
				t.Errorf("foldText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
