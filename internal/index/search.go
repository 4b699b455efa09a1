// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides a searchable mirror of the thread store.
package index

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/agentchat-tui/internal/model"
)

// titleRankBoost places title matches ahead of any bm25 message rank,
// which in practice stays well above -100.
const titleRankBoost = -1000.0

// =============================================================================
// SEARCH RESULT
// =============================================================================

// SearchResult is one matching thread with the best-matching snippet.
type SearchResult struct {
	model.ThreadMeta

	// Snippet is an excerpt around the match, empty for title-only matches.
	Snippet string

	// Rank is the relevance score; lower is better (bm25 convention).
	Rank float64
}

// SearchOptions configures search behavior
type SearchOptions struct {
	// MaxResults limits the number of results (0 = unlimited)
	MaxResults int
}

// DefaultSearchOptions returns default search options
func DefaultSearchOptions() *SearchOptions {
	return &SearchOptions{MaxResults: 50}
}

// =============================================================================
// SEARCH
// =============================================================================

// Search finds threads whose title or message text matches the query.
// Title matches rank first, then message matches by bm25 relevance.
func (idx *ThreadIndex) Search(ctx context.Context, query string, options *SearchOptions) ([]SearchResult, error) {
	if !idx.IsIndexed() {
		return nil, ErrNotIndexed
	}
	if options == nil {
		options = DefaultSearchOptions()
	}

	folded := foldText(strings.TrimSpace(query))
	if folded == "" {
		return []SearchResult{}, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	byID := make(map[string]SearchResult)

	if err := idx.searchTitles(ctx, folded, byID); err != nil {
		return nil, err
	}
	if err := idx.searchMessages(ctx, folded, byID); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(byID))
	for _, r := range byID {
		results = append(results, r)
	}
	// Rank ascending (bm25 is more negative for better matches), newest
	// thread first among equals.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Rank != results[j].Rank {
			return results[i].Rank < results[j].Rank
		}
		return results[i].UpdatedAt.After(results[j].UpdatedAt)
	})

	if options.MaxResults > 0 && len(results) > options.MaxResults {
		results = results[:options.MaxResults]
	}
	return results, nil
}

// searchTitles adds threads whose folded title contains the folded query.
func (idx *ThreadIndex) searchTitles(ctx context.Context, folded string, byID map[string]SearchResult) error {
	pattern := "%" + escapeLike(folded) + "%"
	rows, err := idx.db.QueryContext(ctx, `
		SELECT id, title, model, message_count, created_at, updated_at, preview
		FROM threads
		WHERE title_norm LIKE ? ESCAPE '\'
	`, pattern)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var meta model.ThreadMeta
		var createdAt, updatedAt int64
		err := rows.Scan(&meta.ID, &meta.Title, &meta.Model, &meta.MessageCount,
			&createdAt, &updatedAt, &meta.Preview)
		if err != nil {
			continue
		}
		meta.CreatedAt = time.Unix(createdAt, 0)
		meta.UpdatedAt = time.Unix(updatedAt, 0)
		byID[meta.ID] = SearchResult{ThreadMeta: meta, Rank: titleRankBoost}
	}
	return rows.Err()
}

// searchMessages adds threads with FTS matches in message text, keeping
// each thread's best-ranked match and its snippet.
func (idx *ThreadIndex) searchMessages(ctx context.Context, folded string, byID map[string]SearchResult) error {
	ftsQuery := buildFTSQuery(folded)
	if ftsQuery == "" {
		return nil
	}

	rows, err := idx.db.QueryContext(ctx, `
		SELECT
			t.id, t.title, t.model, t.message_count, t.created_at, t.updated_at, t.preview,
			snippet(messages_fts, 0, '', '', '...', 12) AS snip,
			MIN(messages_fts.rank) AS best_rank
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.rowid
		JOIN threads t ON t.id = m.thread_id
		WHERE messages_fts MATCH ?
		GROUP BY t.id
	`, ftsQuery)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var meta model.ThreadMeta
		var createdAt, updatedAt int64
		var snippet string
		var rank float64
		err := rows.Scan(&meta.ID, &meta.Title, &meta.Model, &meta.MessageCount,
			&createdAt, &updatedAt, &meta.Preview, &snippet, &rank)
		if err != nil {
			continue
		}
		meta.CreatedAt = time.Unix(createdAt, 0)
		meta.UpdatedAt = time.Unix(updatedAt, 0)

		// Title matches already own this thread with a better rank.
		if existing, ok := byID[meta.ID]; ok && existing.Rank <= rank {
			if existing.Snippet == "" {
				existing.Snippet = snippet
				byID[meta.ID] = existing
			}
			continue
		}
		byID[meta.ID] = SearchResult{ThreadMeta: meta, Snippet: snippet, Rank: rank}
	}
	return rows.Err()
}

// =============================================================================
// QUERY BUILDING
// =============================================================================

// buildFTSQuery turns a folded query into a prefix-matching FTS5 query:
// every whitespace token must match. Terms are left unrestricted so they
// hit both the original and the folded column; snippet extraction then
// finds the match in the original text.
func buildFTSQuery(folded string) string {
	var parts []string
	for _, token := range strings.Fields(folded) {
		token = sanitizeFTSToken(token)
		if token == "" {
			continue
		}
		parts = append(parts, token+"*")
	}
	return strings.Join(parts, " ")
}

// sanitizeFTSToken strips FTS5 syntax characters from a token. Stripping
// is safer than escaping: FTS5 has no general escape mechanism.
func sanitizeFTSToken(token string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '"', '*', '(', ')', '{', '}', '[', ']', ':', '^', '-', '~', '+', '\'':
			return -1
		}
		return r
	}, token)
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// =============================================================================
// TEXT FOLDING
// =============================================================================

// foldText normalizes text for matching: Unicode NFKD decomposition,
// combining marks stripped, lowercased. "Café" and "cafe" fold the same.
func foldText(s string) string {
	normalized, _, err := transform.String(transform.Chain(norm.NFKD), s)
	if err != nil {
		normalized = s // Fallback to original on error
	}

	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
