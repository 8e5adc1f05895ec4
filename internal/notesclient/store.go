package notesclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/focusguard/internal/notesvc"
	"github.com/starford/focusguard/internal/saver"
)

// NoteStore saves one day's note. Every save sends the checksum of the
// version it last wrote or loaded as If-Match, so a note changed by
// another writer fails with apperr.ErrConflict instead of being replaced.
type NoteStore struct {
	c    *Client
	date string

	mu       sync.Mutex
	checksum string
}

var _ saver.Store = (*NoteStore)(nil)

// NoteStore binds a store to the note as loaded.
func (c *Client) NoteStore(n *notesvc.Note) *NoteStore {
	return &NoteStore{c: c, date: n.Date, checksum: n.Checksum}
}

// Date returns the day this store writes.
func (s *NoteStore) Date() string { return s.date }

// Checksum returns the version the next save expects on the service.
func (s *NoteStore) Checksum() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checksum
}

// Rebase makes checksum the expected version, after the caller has taken
// over the content it belongs to.
func (s *NoteStore) Rebase(checksum string) {
	s.mu.Lock()
	s.checksum = checksum
	s.mu.Unlock()
}

// Save implements saver.Store.
func (s *NoteStore) Save(ctx context.Context, markdown string) error {
	n, err := s.c.SaveNote(ctx, s.date, markdown, s.Checksum())
	if err != nil {
		return fmt.Errorf("notesclient: save %s: %w", s.date, err)
	}
	s.Rebase(n.Checksum)
	s.c.logger.Debug("saved", slog.String("date", n.Date), slog.String("checksum", n.Checksum))
	return nil
}
