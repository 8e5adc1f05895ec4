// Package notesclient is an HTTP client for the daily-note service.
package notesclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starford/focusguard/internal/apperr"
	"github.com/starford/focusguard/internal/notesvc"
)

// DefaultURL is where the service listens by default.
const DefaultURL = "http://127.0.0.1:19549"

// StatusError is a non-2xx response from the service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("notesclient: status %d: %s", e.Code, e.Message)
}

// Unwrap maps status codes back to the shared sentinels.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusConflict:
		return apperr.ErrConflict
	case http.StatusBadRequest:
		if e.Message == "invalid date" {
			return apperr.ErrInvalidDate
		}
	}
	return nil
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the Bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client talks to the daily-note HTTP API.
type Client struct {
	base   string
	token  string
	http   *http.Client
	logger *slog.Logger
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		base:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping checks the service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ping", nil, "", nil)
}

// Today fetches today's note, which the service creates on first access.
func (c *Client) Today(ctx context.Context) (*notesvc.Note, error) {
	var n notesvc.Note
	if err := c.do(ctx, http.MethodGet, "/note", nil, "", &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Note fetches the note for date.
func (c *Client) Note(ctx context.Context, date string) (*notesvc.Note, error) {
	var n notesvc.Note
	if err := c.do(ctx, http.MethodGet, "/note/"+date, nil, "", &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// SaveToday stores today's note. A non-empty ifMatch enables the
// service's checksum check.
func (c *Client) SaveToday(ctx context.Context, content, ifMatch string) (*notesvc.Note, error) {
	var n notesvc.Note
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, "/note", body, ifMatch, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// SaveNote stores the note for date.
func (c *Client) SaveNote(ctx context.Context, date, content, ifMatch string) (*notesvc.Note, error) {
	var n notesvc.Note
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, "/note/"+date, body, ifMatch, &n); err != nil {
		return nil, err
	}
	return &n, nil
}


// Streak fetches the current streak and the last seven days.
func (c *Client) Streak(ctx context.Context) (*notesvc.Streak, error) {
	var s notesvc.Streak
	if err := c.do(ctx, http.MethodGet, "/streak", nil, "", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Config fetches the client-visible settings.
func (c *Client) Config(ctx context.Context) (*notesvc.Settings, error) {
	var s notesvc.Settings
	if err := c.do(ctx, http.MethodGet, "/config", nil, "", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, ifMatch string, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("notesclient: encode: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("notesclient: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if ifMatch != "" {
		req.Header.Set("If-Match", `"`+ifMatch+`"`)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notesclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("notesclient: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		if e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("notesclient: decode %s: %w", path, err)
	}
	return nil
}

// IsUnavailable reports whether err means the service could not be reached.
func IsUnavailable(err error) bool {
	var se *StatusError
	return err != nil && !errors.As(err, &se) && !errors.Is(err, context.Canceled)
}
