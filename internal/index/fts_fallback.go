//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// Without FTS5 the notes.body column is scanned with LIKE.
func initFTS(_ *sql.DB) error { return nil }

func ftsUpsert(_ *sql.Tx, _, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// Search returns days whose note contains every term of query, newest first.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	where := make([]string, len(terms))
	args := make([]any, 0, len(terms)+1)
	for i, t := range terms {
		where[i] = `body LIKE ? ESCAPE '\'`
		args = append(args, likePattern(t))
	}
	args = append(args, limit)

	rows, err := db.conn.Query(`
		SELECT date, body
		FROM notes
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY date DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	results, err := scanResults(rows)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	for i := range results {
		results[i].Snippet = snippet(results[i].Snippet, terms)
	}
	return results, nil
}
