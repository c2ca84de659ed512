package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"

	"github.com/bull/wikiquery/internal/index"
	"github.com/bull/wikiquery/internal/sectionizer"
)

const schema = `
CREATE TABLE sections (
	id            INTEGER PRIMARY KEY,
	page_title    TEXT    NOT NULL,
	heading       TEXT    NOT NULL,
	section_index INTEGER NOT NULL,
	content       TEXT    NOT NULL,
	token_count   INTEGER NOT NULL
);`

// Save writes the section table to a fresh SQLite file at path. Row ids are
// the ordinal positions, so the file alone preserves the alignment with the
// embedding index.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// One file per save.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove previous save: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create sections table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	stmt, err := tx.Prepare(
		"INSERT INTO sections (id, page_title, heading, section_index, content, token_count) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range s.rows {
		if _, err := stmt.Exec(i, row.PageTitle, row.Heading, row.SectionIndex, row.Content, row.TokenCount); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load reads a table written by Save and binds it to ix, which must be the
// restored embedding index saved alongside it. Diverged sizes are an
// unrecoverable invariant violation and fail fast.
func Load(path string, sz *sectionizer.Sectionizer, ix *index.Index, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store file: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(
		"SELECT page_title, heading, section_index, content, token_count FROM sections ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("read sections: %w", err)
	}
	defer rows.Close()

	s := New(sz, ix, logger)
	for rows.Next() {
		var sec sectionizer.Section
		if err := rows.Scan(&sec.PageTitle, &sec.Heading, &sec.SectionIndex, &sec.Content, &sec.TokenCount); err != nil {
			return nil, fmt.Errorf("scan section row: %w", err)
		}
		s.rows = append(s.rows, sec)
		s.titles[sec.PageTitle] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sections: %w", err)
	}

	if ix.Size() != len(s.rows) {
		return nil, fmt.Errorf("%w: %d vectors, %d rows", ErrStoreCorrupted, ix.Size(), len(s.rows))
	}

	s.logger.Info("Loaded section store", "path", path, "rows", len(s.rows))
	return s, nil
}
