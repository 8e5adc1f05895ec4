// Package saver coalesces bursts of editor changes into a single write.
//
// Every Schedule restarts the quiet-window timer; when it fires, the most
// recent Markdown is handed to the Store. Writes are serialized, and a
// write that was overtaken by a newer one is dropped.
package saver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/focusguard/internal/apperr"
)

// DefaultDelay is the quiet window after the last change.
const DefaultDelay = 600 * time.Millisecond

// Store persists a whole document.
type Store interface {
	Save(ctx context.Context, markdown string) error
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context, markdown string) error

// Save calls f.
func (f StoreFunc) Save(ctx context.Context, markdown string) error { return f(ctx, markdown) }

// Status is reported around each write.
type Status int

const (
	Idle Status = iota
	Saving
	Saved
	SaveFailed
)

func (s Status) String() string {
	switch s {
	case Saving:
		return "saving"
	case Saved:
		return "saved"
	case SaveFailed:
		return "save-failed"
	default:
		return "idle"
	}
}

// Option configures a Saver.
type Option func(*Saver)

// WithDelay overrides DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(s *Saver) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithTimeout bounds a single write.
func WithTimeout(d time.Duration) Option {
	return func(s *Saver) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Saver) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStatus registers a callback for status transitions. err is non-nil
// only for SaveFailed and wraps apperr.ErrSaveFailed.
func WithStatus(fn func(st Status, err error)) Option {
	return func(s *Saver) { s.onStatus = fn }
}

// Saver is safe for concurrent use.
type Saver struct {
	store    Store
	delay    time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	onStatus func(Status, error)

	mu      sync.Mutex
	timer   *time.Timer
	pending string
	has     bool
	version uint64
	closed  bool
	writing int

	writeMu sync.Mutex
	written uint64
	wg      sync.WaitGroup
}

// New creates a Saver writing to store.
func New(store Store, opts ...Option) *Saver {
	s := &Saver{
		store:   store,
		delay:   DefaultDelay,
		timeout: 10 * time.Second,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule records markdown as the latest content and restarts the timer.
// It is a no-op after Close.
func (s *Saver) Schedule(markdown string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = markdown
	s.has = true
	s.version++
	if s.timer == nil {
		s.timer = time.AfterFunc(s.delay, s.fire)
		return
	}
	s.timer.Reset(s.delay)
}

// Pending reports whether content is waiting for the timer.
func (s *Saver) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.has
}

// Busy reports whether content is waiting for the timer or being written.
func (s *Saver) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.has || s.writing > 0
}

// Discard drops content waiting for the timer. A write already under way
// is not affected.
func (s *Saver) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.has = false
}

func (s *Saver) take() (string, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has {
		return "", 0, false
	}
	s.has = false
	s.writing++
	return s.pending, s.version, true
}

func (s *Saver) done() {
	s.mu.Lock()
	s.writing--
	s.mu.Unlock()
}

func (s *Saver) fire() {
	s.mu.Lock()
	if s.closed || !s.has {
		s.mu.Unlock()
		return
	}
	md, v := s.pending, s.version
	s.has = false
	s.writing++
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()
	defer s.done()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_ = s.write(ctx, md, v)
}

// Flush writes pending content now instead of waiting for the timer.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	md, v, ok := s.take()
	if !ok {
		return nil
	}
	defer s.done()
	return s.write(ctx, md, v)
}

// Close flushes pending content, waits for in-flight writes and rejects
// later schedules.
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	err := s.Flush(ctx)
	s.wg.Wait()
	return err
}

func (s *Saver) write(ctx context.Context, md string, v uint64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if v <= s.written {
		s.logger.Debug("saver: dropped stale write", slog.Uint64("version", v))
		return nil
	}

	s.notify(Saving, nil)
	start := time.Now()
	if err := s.store.Save(ctx, md); err != nil {
		err = fmt.Errorf("saver: %w: %w", apperr.ErrSaveFailed, err)
		s.logger.Warn("saver: save failed", slog.String("error", err.Error()))
		s.notify(SaveFailed, err)
		return err
	}
	s.written = v
	s.logger.Debug("saver: saved",
		slog.Int("bytes", len(md)),
		slog.Duration("took", time.Since(start)))
	s.notify(Saved, nil)
	return nil
}

func (s *Saver) notify(st Status, err error) {
	if s.onStatus != nil {
		s.onStatus(st, err)
	}
}
