//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			date UNINDEXED,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, date, body string) error {
	ftsDelete(tx, date)
	if _, err := tx.Exec(`INSERT INTO notes_fts (date, body) VALUES (?, ?)`, date, body); err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, date string) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE date = ?`, date)
}

// Search ranks days by FTS5 relevance. Every term must match, as a prefix.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	rows, err := db.conn.Query(`
		SELECT date,
		       snippet(notes_fts, 1, '', '', '...', 16)
		FROM notes_fts
		WHERE notes_fts MATCH ?
		ORDER BY rank, date DESC
		LIMIT ?
	`, matchExpr(terms), limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	results, err := scanResults(rows)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return results, nil
}
