// Package store implements the section store: the authoritative table of
// indexed sections, kept in strict positional correspondence with the
// embedding index — row i's vector lives at position i. That invariant is
// what makes a search result position resolvable to a section, so rows are
// only ever appended, and only after their embeddings are in.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bull/wikiquery/internal/index"
	"github.com/bull/wikiquery/internal/sectionizer"
)

// Store is the ordinally-aligned section table. A single writer lock
// serializes the embed-then-append pair; reads are safe against a store that
// only grows.
type Store struct {
	mu          sync.RWMutex
	sectionizer *sectionizer.Sectionizer
	index       *index.Index
	rows        []sectionizer.Section
	titles      map[string]struct{}
	logger      *slog.Logger
}

// New creates an empty store over the given sectionizer and embedding index.
func New(sz *sectionizer.Sectionizer, ix *index.Index, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sectionizer: sz,
		index:       ix,
		titles:      make(map[string]struct{}),
		logger:      logger,
	}
}

// Index exposes the underlying embedding index, primarily so callers can
// persist it alongside the section table.
func (s *Store) Index() *index.Index {
	return s.index
}

// RowCount returns the number of stored sections.
func (s *Store) RowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// HasPage reports whether title already has at least one row. Membership is
// by title only; content changes to an indexed page are never re-ingested.
func (s *Store) HasPage(title string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.titles[title]
	return ok
}

// AddPage sectionizes raw, embeds all section contents as one batch, and
// appends the rows. Returns the number of sections added; zero with a nil
// error when the title is already indexed (idempotent). If embedding fails
// the whole page is skipped — no partial sections are ever stored.
func (s *Store) AddPage(ctx context.Context, title, raw string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.titles[title]; ok {
		return 0, nil
	}

	sections := s.sectionizer.Split(title, raw)
	if len(sections) == 0 {
		return 0, nil
	}

	texts := make([]string, len(sections))
	for i, sec := range sections {
		texts[i] = sec.Content
	}

	// Embeddings go in first; rows follow only on success so both sides grow
	// by the same count in the same operation.
	if err := s.index.Add(ctx, texts); err != nil {
		return 0, fmt.Errorf("embed page %q: %w", title, err)
	}

	s.rows = append(s.rows, sections...)
	s.titles[title] = struct{}{}

	s.logger.Info("Indexed page", "title", title, "sections", len(sections))
	return len(sections), nil
}

// Section returns the row at rowID.
func (s *Store) Section(rowID int) (sectionizer.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rowID < 0 || rowID >= len(s.rows) {
		return sectionizer.Section{}, fmt.Errorf("%w: %d (size %d)", ErrRowOutOfRange, rowID, len(s.rows))
	}
	return s.rows[rowID], nil
}

// NearestSections embeds query through the same provider as the stored rows
// and returns up to k sections in similarity-ranked order.
func (s *Store) NearestSections(ctx context.Context, query string, k int) ([]sectionizer.Section, error) {
	positions, err := s.index.SearchText(ctx, query, k)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]sectionizer.Section, 0, len(positions))
	for _, pos := range positions {
		if pos < 0 || pos >= len(s.rows) {
			return nil, fmt.Errorf("%w: index returned position %d for %d rows",
				ErrStoreCorrupted, pos, len(s.rows))
		}
		out = append(out, s.rows[pos])
	}
	return out, nil
}
