// Package index provides a SQLite-backed index of daily notes: checksums,
// the "meaningful" flag used by the streak, task lines for carry-over and
// optional FTS5 full-text search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	date       TEXT PRIMARY KEY,
	path       TEXT NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	meaningful INTEGER NOT NULL DEFAULT 0,
	body       TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
	date     TEXT NOT NULL,
	position INTEGER NOT NULL,
	text     TEXT NOT NULL,
	checked  INTEGER NOT NULL DEFAULT 0,
	UNIQUE(date, position)
);

CREATE INDEX IF NOT EXISTS idx_tasks_date ON tasks(date);
CREATE INDEX IF NOT EXISTS idx_notes_meaningful ON notes(meaningful, date);
`

// schemaVersion is stored in PRAGMA user_version. The index only caches
// the vault, so a mismatch drops everything and the next Sync refills it.
const schemaVersion = 2

const dropSchemaSQL = `
DROP TABLE IF EXISTS notes_fts;
DROP TABLE IF EXISTS tasks;
DROP TABLE IF EXISTS notes;
`

// DB is the note index.
type DB struct {
	conn *sql.DB
}

// Open opens or creates the index at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("index: read schema version: %w", err)
	}
	if version != schemaVersion {
		if _, err := conn.Exec(dropSchemaSQL); err != nil {
			return fmt.Errorf("index: drop stale schema: %w", err)
		}
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		return fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		return fmt.Errorf("index: apply fts schema: %w", err)
	}
	if _, err := conn.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("index: write schema version: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
