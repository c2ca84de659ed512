// Package wikidb is the corpus database façade: title to raw page through
// the local archive, query to candidate titles through the external title
// search, page to indexed sections through the section store.
package wikidb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bull/wikiquery/internal/archive"
	"github.com/bull/wikiquery/internal/sectionizer"
	"github.com/bull/wikiquery/internal/store"
)

// PageFetcher resolves a title to its raw wikitext source.
type PageFetcher interface {
	PageSource(title string) (string, error)
}

// TitleSearcher is the external full-text title lookup (not the vector index).
type TitleSearcher interface {
	SearchTitles(ctx context.Context, query string) ([]string, error)
}

// DB unifies the document store, the section store, and title search.
type DB struct {
	fetcher  PageFetcher
	store    *store.Store
	searcher TitleSearcher
	logger   *slog.Logger
}

// New wires the façade together.
func New(fetcher PageFetcher, st *store.Store, searcher TitleSearcher, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{fetcher: fetcher, store: st, searcher: searcher, logger: logger}
}

// Store exposes the underlying section store.
func (db *DB) Store() *store.Store {
	return db.store
}

// PageSource returns the raw wikitext for a title from the local dump.
func (db *DB) PageSource(title string) (string, error) {
	return db.fetcher.PageSource(title)
}

// SearchTitles returns candidate page titles for a free-text query. A DB
// built without a searcher (offline indexing) returns no candidates.
func (db *DB) SearchTitles(ctx context.Context, query string) ([]string, error) {
	if db.searcher == nil {
		return nil, nil
	}
	return db.searcher.SearchTitles(ctx, query)
}

// Save persists the section table and the embedding index as a pair. The two
// files must be restored together; loading a diverged pair fails fast.
func (db *DB) Save(storePath, indexPath string) error {
	if err := db.store.Save(storePath); err != nil {
		return fmt.Errorf("save store: %w", err)
	}
	if err := db.store.Index().Save(indexPath); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	db.logger.Info("Saved corpus", "store", storePath, "index", indexPath)
	return nil
}

// HasPage reports whether title is already indexed.
func (db *DB) HasPage(title string) bool {
	return db.store.HasPage(title)
}

// NearestSections returns the k sections most similar to query.
func (db *DB) NearestSections(ctx context.Context, query string, k int) ([]sectionizer.Section, error) {
	return db.store.NearestSections(ctx, query, k)
}

// AddPage fetches a page from the dump and indexes it. Returns true when new
// sections were stored. Pages absent from the dump are reported as
// unavailable (false, nil) rather than as errors; already-indexed titles are
// a no-op.
func (db *DB) AddPage(ctx context.Context, title string) (bool, error) {
	if db.store.HasPage(title) {
		return false, nil
	}

	raw, err := db.fetcher.PageSource(title)
	if err != nil {
		if archive.IsUnavailable(err) {
			db.logger.Warn("Page unavailable in local dump", "title", title, "error", err)
			return false, nil
		}
		return false, fmt.Errorf("fetch page %q: %w", title, err)
	}

	added, err := db.store.AddPage(ctx, title, raw)
	if err != nil {
		return false, err
	}
	return added > 0, nil
}
