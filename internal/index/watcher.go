package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/focusguard/internal/daily"
	"github.com/starford/focusguard/internal/storage"
)

// settleDelay is how long a day must be quiet before its file is re-read.
// Editors save with bursts of write/rename/create events.
const settleDelay = 150 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, date string)

type watcher struct {
	db     *DB
	notes  Notes
	root   string
	logger *slog.Logger
	cb     EventCallback
	fsw    *fsnotify.Watcher

	dirty  map[string]string // date -> vault-relative path
	rescan bool
	timer  *time.Timer
	timerC <-chan time.Time
}

// Watch follows the notes directory until ctx is cancelled, keeping the
// index in step with edits made outside the service (another editor,
// a sync client). Changes are reported through cb, which may be nil.
// Saves whose content is already indexed, such as those made through the
// service itself, are not reported again.
func Watch(ctx context.Context, db *DB, notes Notes, logger *slog.Logger, cb EventCallback) error {
	root := notes.Store.Root()
	dir := filepath.Join(root, notes.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	w := &watcher{
		db:     db,
		notes:  notes,
		root:   root,
		logger: logger,
		cb:     cb,
		fsw:    fsw,
		dirty:  make(map[string]string),
	}
	if err := w.addDirs(dir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("dir", dir))
	return w.loop(ctx)
}

func (w *watcher) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if w.timer != nil {
				w.timer.Stop()
			}
			w.flush()
			w.logger.Info("watcher: stopped")
			return nil

		case <-w.timerC:
			w.flush()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// schedule (re)starts the settle timer. Reset never delivers a stale tick
// on go1.23+ timers.
func (w *watcher) schedule() {
	if w.timer == nil {
		w.timer = time.NewTimer(settleDelay)
		w.timerC = w.timer.C
		return
	}
	w.timer.Reset(settleDelay)
}

func (w *watcher) handle(ev fsnotify.Event) {
	name := ev.Name
	if hiddenPath(w.root, name) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			if err := w.addDirs(name); err != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", name),
					slog.String("error", err.Error()))
			}
			// A directory moved in may carry notes of its own.
			w.rescan = true
			w.schedule()
			return
		}
	}

	if !strings.HasSuffix(name, ".md") {
		// A directory renamed or removed out from under us.
		if ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
			w.rescan = true
			w.schedule()
		}
		return
	}
	rel, err := filepath.Rel(w.root, name)
	if err != nil {
		return
	}
	date, ok := daily.DateFromPath(rel)
	if !ok {
		return
	}
	w.dirty[date] = rel
	w.schedule()
}

// flush settles every dirty day, then rescans if a directory changed.
func (w *watcher) flush() {
	for date, rel := range w.dirty {
		w.settle(date, rel)
	}
	clear(w.dirty)
	if w.rescan {
		w.rescan = false
		reconcile(w.db, w.notes, w.logger, w.cb)
	}
}

// settle brings one day's index row in line with the file at rel.
func (w *watcher) settle(date, rel string) {
	prev, err := w.db.GetChecksum(date)
	if err != nil {
		w.logger.Warn("watcher: checksum lookup failed", slog.String("date", date), slog.String("error", err.Error()))
		return
	}

	data, err := w.notes.Store.Read(rel)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if prev == "" {
			return
		}
		if err := w.db.DeleteNote(date); err != nil {
			w.logger.Warn("watcher: delete failed", slog.String("date", date), slog.String("error", err.Error()))
			return
		}
		w.logger.Debug("watcher: deleted", slog.String("date", date))
		w.emit("deleted", date)
		return
	case err != nil:
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}

	if prev == storage.Checksum(data) {
		return
	}
	if _, _, err := IndexFile(w.db, w.notes, rel, data); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	kind := "updated"
	if prev == "" {
		kind = "created"
	}
	w.logger.Debug("watcher: indexed", slog.String("date", date), slog.String("op", kind))
	w.emit(kind, date)
}

func (w *watcher) emit(kind, date string) {
	if w.cb != nil {
		w.cb(kind, date)
	}
}

// addDirs watches dir and every non-hidden directory below it.
func (w *watcher) addDirs(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

// hiddenPath reports paths under a dot-directory or dot-files such as the
// storage layer's temp files.
func hiddenPath(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

// reconcile removes index entries without a file on disk and indexes
// files the index has not seen.
func reconcile(db *DB, notes Notes, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := notes.Store.List(notes.Dir)
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]storage.FileInfo, len(metas))
	for _, m := range metas {
		if date, ok := daily.DateFromPath(m.Path); ok {
			disk[date] = m
		}
	}

	for d := range checksums {
		if _, ok := disk[d]; ok {
			continue
		}
		if err := db.DeleteNote(d); err == nil {
			logger.Debug("reconcile: removed stale", slog.String("date", d))
			if cb != nil {
				cb("deleted", d)
			}
		}
	}

	for d, m := range disk {
		if checksums[d] == m.Checksum {
			continue
		}
		data, err := notes.Store.Read(m.Path)
		if err != nil {
			continue
		}
		if _, _, err := IndexFile(db, notes, m.Path, data); err != nil {
			continue
		}
		kind := "updated"
		if _, known := checksums[d]; !known {
			kind = "created"
		}
		logger.Debug("reconcile: indexed", slog.String("date", d))
		if cb != nil {
			cb(kind, d)
		}
	}
}
