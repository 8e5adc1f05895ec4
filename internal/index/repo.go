package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/focusguard/internal/apperr"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Date       string
	Path       string
	Checksum   string
	Meaningful bool
	UpdatedAt  time.Time
}

// TaskRow is one task line of a note. Position is the task's ordinal
// among the note's tasks.
type TaskRow struct {
	Date     string `json:"date"`
	Position int    `json:"position"`
	Text     string `json:"text"`
	Checked  bool   `json:"checked"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
}

// UpsertNote inserts or replaces a note, its FTS entry, and its tasks within a transaction.
func (db *DB) UpsertNote(n NoteRow, body string, tasks []TaskRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO notes (date, path, checksum, meaningful, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			path       = excluded.path,
			checksum   = excluded.checksum,
			meaningful = excluded.meaningful,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, n.Date, n.Path, n.Checksum, n.Meaningful, body, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, n.Date, body); err != nil {
		return err
	}

	_, _ = tx.Exec(`DELETE FROM tasks WHERE date = ?`, n.Date)
	if len(tasks) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO tasks (date, position, text, checked) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare task insert: %w", err)
		}
		defer stmt.Close()
		for _, t := range tasks {
			if _, err := stmt.Exec(n.Date, t.Position, t.Text, t.Checked); err != nil {
				return fmt.Errorf("index: insert task: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note, its FTS entry, and its tasks.
func (db *DB) DeleteNote(date string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, date)
	_, _ = tx.Exec(`DELETE FROM tasks WHERE date = ?`, date)
	_, _ = tx.Exec(`DELETE FROM notes WHERE date = ?`, date)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(date string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE date = ?`, date).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetNote returns one indexed note.
func (db *DB) GetNote(date string) (*NoteRow, error) {
	var n NoteRow
	err := db.conn.QueryRow(`
		SELECT date, path, checksum, meaningful, updated_at
		FROM notes WHERE date = ?
	`, date).Scan(&n.Date, &n.Path, &n.Checksum, &n.Meaningful, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %s: %w", date, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return &n, nil
}

// AllChecksums maps every indexed date to its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT date, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var d, cs string
		if err := rows.Scan(&d, &cs); err != nil {
			return nil, err
		}
		out[d] = cs
	}
	return out, rows.Err()
}

// MeaningfulDates returns the meaningful flag of every indexed date in
// [from, to]. Dates without a note are absent.
func (db *DB) MeaningfulDates(from, to string) (map[string]bool, error) {
	rows, err := db.conn.Query(`
		SELECT date, meaningful FROM notes
		WHERE date BETWEEN ? AND ?
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("index: meaningful dates: %w", err)
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var d string
		var m bool
		if err := rows.Scan(&d, &m); err != nil {
			return nil, err
		}
		out[d] = m
	}
	return out, rows.Err()
}

// MeaningfulUpTo returns meaningful dates on or before date, newest first.
func (db *DB) MeaningfulUpTo(date string) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT date FROM notes
		WHERE meaningful = 1 AND date <= ?
		ORDER BY date DESC
	`, date)
	if err != nil {
		return nil, fmt.Errorf("index: meaningful up to: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// OpenTasks returns unchecked, non-empty tasks of notes dated in
// [from, to], newest note first and in note order within a note.
func (db *DB) OpenTasks(from, to string) ([]TaskRow, error) {
	rows, err := db.conn.Query(`
		SELECT date, position, text FROM tasks
		WHERE checked = 0 AND trim(text) <> '' AND date BETWEEN ? AND ?
		ORDER BY date DESC, position ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("index: open tasks: %w", err)
	}
	defer rows.Close()
	var out []TaskRow
	for rows.Next() {
		var t TaskRow
		if err := rows.Scan(&t.Date, &t.Position, &t.Text); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
