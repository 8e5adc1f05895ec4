package notesclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Event is one message from the service's change stream. Date is set on
// note events; Streak on streak events when the service could compute it.
type Event struct {
	Type   string
	Date   string
	Streak *int
}

// Follow reads the change stream until ctx ends or the service closes it,
// handing every event to fn on the calling goroutine. A non-empty date
// limits note events to that day; streak events always arrive.
func (c *Client) Follow(ctx context.Context, date string, fn func(Event)) error {
	path := "/events"
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("notesclient: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// The stream stays open far longer than any request timeout.
	hc := *c.http
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("notesclient: GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	var typ, data string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if typ != "" {
				c.dispatch(typ, data, fn)
			}
			typ, data = "", ""
		case strings.HasPrefix(line, ":"):
			// keepalive
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				typ = value
			case "data":
				data += value
			}
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("notesclient: read stream: %w", err)
	}
	return nil
}

func (c *Client) dispatch(typ, data string, fn func(Event)) {
	var payload struct {
		Date    string `json:"date"`
		Current *int   `json:"currentStreak"`
	}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			c.logger.Warn("notesclient: bad event payload", slog.String("type", typ), slog.String("error", err.Error()))
			return
		}
	}
	fn(Event{Type: typ, Date: payload.Date, Streak: payload.Current})
}
