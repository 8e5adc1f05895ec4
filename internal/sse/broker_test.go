package sse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// drain collects whatever is buffered on ch after a short settle.
func drain(ch chan []byte, settle time.Duration) []string {
	time.Sleep(settle)
	var out []string
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func count(msgs []string, typ string) int {
	n := 0
	for _, m := range msgs {
		if strings.Contains(m, "event: "+typ+"\n") {
			n++
		}
	}
	return n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d", n)
	}
	ch := b.Subscribe("")
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d", n)
	}
	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients after unsubscribe = %d", n)
	}
}

func TestNoteEventPayload(t *testing.T) {
	b := NewBroker(WithStreakThrottle(time.Hour))
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("created", "2026-10-17")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: note.created\n") || !strings.Contains(s, `data: {"date":"2026-10-17"}`) {
			t.Errorf("frame = %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestUnknownKindIgnored(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("renamed", "2026-10-17")
	if msgs := drain(ch, 50*time.Millisecond); len(msgs) != 0 {
		t.Errorf("got %q", msgs)
	}
}

func TestStreakCarriesCurrent(t *testing.T) {
	b := NewBroker(WithStreakSource(func() (int, error) { return 6, nil }))
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("updated", "2026-10-17")
	msgs := drain(ch, 50*time.Millisecond)
	var streak string
	for _, m := range msgs {
		if strings.Contains(m, "event: streak.updated") {
			streak = m
		}
	}
	if !strings.Contains(streak, `data: {"currentStreak":6}`) {
		t.Errorf("streak frame = %q", streak)
	}
}

func TestStreakSourceErrorOmitsCurrent(t *testing.T) {
	b := NewBroker(WithStreakSource(func() (int, error) { return 0, errors.New("db closed") }))
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("updated", "2026-10-17")
	msgs := drain(ch, 50*time.Millisecond)
	if count(msgs, TypeStreakUpdated) != 1 {
		t.Fatalf("msgs = %q", msgs)
	}
	for _, m := range msgs {
		if strings.Contains(m, "streak.updated") && !strings.Contains(m, "data: {}") {
			t.Errorf("frame = %q", m)
		}
	}
}

func TestStreakBurstCoalesced(t *testing.T) {
	b := NewBroker(WithStreakThrottle(150 * time.Millisecond))
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("created", "2026-10-16")
	b.PublishNoteEvent("updated", "2026-10-17")
	b.PublishNoteEvent("updated", "2026-10-17")

	first := drain(ch, 50*time.Millisecond)
	if n := count(first, TypeStreakUpdated); n != 1 {
		t.Errorf("leading streak events = %d, want 1", n)
	}
	if n := count(first, TypeNoteCreated) + count(first, TypeNoteUpdated); n != 3 {
		t.Errorf("note events = %d, want 3", n)
	}

	// The rest of the burst lands as a single trailing update.
	rest := drain(ch, 250*time.Millisecond)
	if n := count(rest, TypeStreakUpdated); n != 1 {
		t.Errorf("trailing streak events = %d, want 1", n)
	}
}

func TestDateFilter(t *testing.T) {
	b := NewBroker(WithStreakThrottle(time.Hour))
	defer b.Close()
	today := b.Subscribe("2026-10-17")
	defer b.Unsubscribe(today)
	all := b.Subscribe("")
	defer b.Unsubscribe(all)

	b.PublishNoteEvent("updated", "2026-10-16")
	b.PublishNoteEvent("updated", "2026-10-17")

	got := drain(today, 50*time.Millisecond)
	if count(got, TypeNoteUpdated) != 1 || !strings.Contains(strings.Join(got, ""), "2026-10-17") {
		t.Errorf("filtered = %q", got)
	}
	if count(got, TypeStreakUpdated) != 1 {
		t.Errorf("filtered subscriber missed streak: %q", got)
	}
	if n := count(drain(all, 0), TypeNoteUpdated); n != 2 {
		t.Errorf("unfiltered note events = %d", n)
	}
}

func TestHandlerStreams(t *testing.T) {
	b := NewBroker(WithHeartbeat(20 * time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events?date=2026-10-17", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.PublishNoteEvent("updated", "2026-10-16")
	b.PublishNoteEvent("updated", "2026-10-17")
	time.Sleep(80 * time.Millisecond)

	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, `{"date":"2026-10-17"}`) || strings.Contains(body, "2026-10-16") {
		t.Errorf("body = %q", body)
	}
	if !strings.Contains(body, "id: ") {
		t.Errorf("missing event id: %q", body)
	}
	if !strings.Contains(body, ": keepalive") {
		t.Errorf("missing heartbeat: %q", body)
	}

	deadline = time.Now().Add(time.Second)
	for b.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not cleaned up after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	for range 70 {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	if n := b.ClientCount(); n != 1 {
		t.Errorf("clients = %d", n)
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("")
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d", n)
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel still open")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients after close = %d", n)
	}
	b.PublishNoteEvent("updated", "2026-10-17")
	if late := b.Subscribe(""); late == nil {
		t.Fatal("nil channel")
	} else if _, ok := <-late; ok {
		t.Error("subscribe after close returned an open channel")
	}
}

func TestFrameIDsAreUnique(t *testing.T) {
	a, err := frame(Event{Type: TypeNoteUpdated, Data: NoteData{}})
	if err != nil {
		t.Fatal(err)
	}
	c, _ := frame(Event{Type: TypeNoteUpdated, Data: NoteData{}})
	idOf := func(raw []byte) string {
		first, _, _ := strings.Cut(string(raw), "\n")
		return first
	}
	if !strings.HasPrefix(idOf(a), "id: ") || idOf(a) == idOf(c) {
		t.Errorf("ids %q and %q", idOf(a), idOf(c))
	}
}
