package index

import (
	"log/slog"
	"time"

	"github.com/starford/focusguard/internal/daily"
	"github.com/starford/focusguard/internal/storage"
)

// Notes tells the index where daily notes live and what an untouched
// note looks like.
type Notes struct {
	Store    storage.Provider
	Dir      string // relative to the vault root
	Template string
}

// Analyze derives the index rows for one note file.
func Analyze(date, path string, data []byte, template string) (NoteRow, []TaskRow) {
	content := string(data)
	row := NoteRow{
		Date:       date,
		Path:       path,
		Checksum:   storage.Checksum(data),
		Meaningful: daily.Meaningful(content, template),
		UpdatedAt:  time.Now(),
	}
	var tasks []TaskRow
	for i, t := range daily.Tasks(content) {
		tasks = append(tasks, TaskRow{Date: date, Position: i, Text: t.Text, Checked: t.Checked})
	}
	return row, tasks
}

// IndexFile analyzes data and upserts it into the DB. Files that are not
// daily notes are ignored and reported with ok == false.
func IndexFile(db NoteIndex, notes Notes, path string, data []byte) (date string, ok bool, err error) {
	date, ok = daily.DateFromPath(path)
	if !ok {
		return "", false, nil
	}
	row, tasks := Analyze(date, path, data, notes.Template)
	return date, true, db.UpsertNote(row, string(data), tasks)
}

// Sync walks the notes directory and brings the index up to date:
//   - new/changed notes are analyzed and upserted
//   - notes removed from disk are deleted from the index
func Sync(db *DB, notes Notes, logger *slog.Logger) error {
	metas, err := notes.Store.List(notes.Dir)
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		date, ok := daily.DateFromPath(m.Path)
		if !ok {
			continue
		}
		disk[date] = struct{}{}

		if checksums[date] == m.Checksum {
			continue
		}

		data, err := notes.Store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, _, err := IndexFile(db, notes, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("date", date))
		}
	}

	// Remove stale entries.
	for d := range checksums {
		if _, ok := disk[d]; !ok {
			if err := db.DeleteNote(d); err != nil {
				logger.Warn("sync: delete failed", slog.String("date", d), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("date", d))
			}
		}
	}

	return nil
}
