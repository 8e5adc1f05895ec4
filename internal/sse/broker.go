// Package sse pushes daily-note changes to open editors and the browser
// extension as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event types sent on the stream.
const (
	TypeNoteCreated   = "note.created"
	TypeNoteUpdated   = "note.updated"
	TypeNoteDeleted   = "note.deleted"
	TypeStreakUpdated = "streak.updated"
)

// Event is one message on the stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NoteData is the payload of note.* events.
type NoteData struct {
	Date string `json:"date"`
}

// StreakData is the payload of streak.updated. Current is omitted when the
// broker has no streak source or the source failed.
type StreakData struct {
	Current *int `json:"currentStreak,omitempty"`
}

// StreakFunc reports the current streak.
type StreakFunc func() (int, error)

// Option configures a Broker.
type Option func(*Broker)

// WithStreakThrottle sets the minimum gap between streak.updated events.
func WithStreakThrottle(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.streakMin = d
		}
	}
}

// WithStreakSource makes streak.updated carry the current streak.
func WithStreakSource(fn StreakFunc) Option {
	return func(b *Broker) { b.streak = fn }
}

// WithHeartbeat sets how often idle streams get a keepalive comment.
// Zero disables heartbeats.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) {
		if l != nil {
			b.logger = l
		}
	}
}

type subscriber struct {
	ch   chan []byte
	date string
}

// Broker fans events out to subscribers.
//
// A single loop goroutine owns the subscriber set and the streak throttle;
// public methods talk to it over channels.
type Broker struct {
	streakMin time.Duration
	streak    StreakFunc
	heartbeat time.Duration
	logger    *slog.Logger

	subscribeCh   chan subscriber
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	noteCh        chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		streakMin:     2 * time.Second,
		heartbeat:     25 * time.Second,
		logger:        slog.Default(),
		subscribeCh:   make(chan subscriber),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		noteCh:        make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

// frame renders one SSE message with a fresh id.
func frame(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "id: %s\nevent: %s\ndata: %s\n\n", uuid.NewString(), event.Type, payload), nil
}

func noteType(kind string) (string, bool) {
	switch kind {
	case "created":
		return TypeNoteCreated, true
	case "updated":
		return TypeNoteUpdated, true
	case "deleted":
		return TypeNoteDeleted, true
	}
	return "", false
}

func (b *Broker) streakEvent() Event {
	var data StreakData
	if b.streak != nil {
		if n, err := b.streak(); err != nil {
			b.logger.Warn("streak for event failed", slog.String("error", err.Error()))
		} else {
			data.Current = &n
		}
	}
	return Event{Type: TypeStreakUpdated, Data: data}
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	var (
		lastStreak time.Time
		trailing   <-chan time.Time
	)

	broadcast := func(event Event) {
		raw, err := frame(event)
		if err != nil {
			b.logger.Error("encode event", slog.String("type", event.Type), slog.String("error", err.Error()))
			return
		}
		var date string
		if nd, ok := event.Data.(NoteData); ok {
			date = nd.Date
		}
		for ch, want := range clients {
			if want != "" && date != "" && want != date {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall everyone else.
			}
		}
	}
	emitStreak := func(now time.Time) {
		lastStreak = now
		trailing = nil
		broadcast(b.streakEvent())
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.date

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case event := <-b.noteCh:
			broadcast(event)
			now := time.Now()
			if since := now.Sub(lastStreak); since >= b.streakMin {
				emitStreak(now)
			} else if trailing == nil {
				// Coalesce a burst into one update at the end of the window.
				trailing = time.After(b.streakMin - since)
			}

		case now := <-trailing:
			emitStreak(now)

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client. A non-empty date limits note events to that
// day; streak events always arrive.
func (b *Broker) Subscribe(date string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscriber{ch: ch, date: date}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an arbitrary event to all clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishNoteEvent announces a note change. kind is created, updated or
// deleted; anything else is ignored. A streak.updated follows, throttled.
func (b *Broker) PublishNoteEvent(kind, date string) {
	typ, ok := noteType(kind)
	if !ok || b.closed.Load() {
		return
	}
	select {
	case b.noteCh <- Event{Type: typ, Data: NoteData{Date: date}}:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client (GET /events[?date=YYYY-MM-DD]).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("date"))
	defer b.Unsubscribe(ch)

	var beat <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		beat = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-beat:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
