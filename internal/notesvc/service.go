// Package notesvc coordinates vault storage and the index for daily notes.
package notesvc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/focusguard/internal/apperr"
	"github.com/starford/focusguard/internal/block"
	"github.com/starford/focusguard/internal/daily"
	"github.com/starford/focusguard/internal/index"
	"github.com/starford/focusguard/internal/markdown"
	"github.com/starford/focusguard/internal/storage"
)

// Note is a daily note as returned to clients.
type Note struct {
	Date         string `json:"date"`
	Content      string `json:"content"`
	Checksum     string `json:"checksum"`
	Meaningful   bool   `json:"meaningful"`
	Created      bool   `json:"created"`
	CarriedTasks int    `json:"carriedTasks,omitempty"`
	IsToday      bool   `json:"isToday"`
}

// Day is one cell of the streak strip.
type Day struct {
	Date    string `json:"date"`
	Label   string `json:"label"`
	Done    bool   `json:"done"`
	IsToday bool   `json:"isToday"`
}

// Streak is the current run of meaningful days plus the last week.
type Streak struct {
	Current int   `json:"currentStreak"`
	Days    []Day `json:"days"`
}

// Settings is the client-visible configuration.
type Settings struct {
	NotesDir       string `json:"notesDir"`
	Template       string `json:"template"`
	SaveDebounceMs int64  `json:"saveDebounceMs"`
}

// ChangeFunc is told about notes written through the service.
// kind is "created" or "updated".
type ChangeFunc func(kind, date string)

// Option configures a Service.
type Option func(*Service)

// WithNotesDir sets the vault sub-directory holding daily notes.
func WithNotesDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.dir = dir
		}
	}
}

// WithTemplate overrides the blank note template.
func WithTemplate(tmpl string) Option {
	return func(s *Service) {
		if tmpl != "" {
			s.template = tmpl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSaveDebounce is reported to clients through Settings.
func WithSaveDebounce(d time.Duration) Option {
	return func(s *Service) { s.debounce = d }
}

// WithOnChange registers a callback for writes.
func WithOnChange(fn ChangeFunc) Option {
	return func(s *Service) { s.onChange = fn }
}

// Service coordinates storage and index operations.
type Service struct {
	store    storage.Provider
	db       index.NoteIndex
	dir      string
	template string
	debounce time.Duration
	now      func() time.Time
	logger   *slog.Logger
	onChange ChangeFunc
	locks    dateLocks
}

// NewService creates a new daily-note service.
func NewService(store storage.Provider, db index.NoteIndex, opts ...Option) *Service {
	s := &Service{
		store:    store,
		db:       db,
		dir:      daily.DefaultDir,
		template: daily.Template,
		debounce: 600 * time.Millisecond,
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notes describes the note layout for the index sync and watcher.
func (s *Service) Notes() index.Notes {
	return index.Notes{Store: s.store, Dir: s.dir, Template: s.template}
}

// Settings returns the client-visible configuration.
func (s *Service) Settings() Settings {
	return Settings{
		NotesDir:       s.dir,
		Template:       s.template,
		SaveDebounceMs: s.debounce.Milliseconds(),
	}
}

func (s *Service) today() time.Time { return daily.Day(s.now()) }

// Today returns today's note, creating it from the template (with open
// tasks carried over from the previous days) when it does not exist.
func (s *Service) Today(ctx context.Context) (*Note, error) {
	date := daily.Format(s.today())
	note, err := s.Note(ctx, date)
	if err == nil {
		return note, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	unlock := s.locks.lock(date)
	defer unlock()
	// A save may have landed since the read above.
	if note, err := s.Note(ctx, date); err == nil {
		return note, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	carried, err := s.carryover(ctx)
	if err != nil {
		return nil, err
	}
	content := daily.WithCarryover(s.template, carried)
	if err := s.write(date, []byte(content)); err != nil {
		return nil, err
	}
	s.logger.Info("note created",
		slog.String("date", date),
		slog.Int("carried_tasks", len(carried)))
	s.notify("created", date)

	n := s.build(date, []byte(content))
	n.Created = true
	n.CarriedTasks = len(carried)
	return n, nil
}

// Note reads the note for date. A missing note is ErrNotFound.
func (s *Service) Note(_ context.Context, date string) (*Note, error) {
	if _, err := daily.ParseDate(date); err != nil {
		return nil, err
	}
	data, err := s.store.Read(daily.Path(s.dir, date))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("notesvc: note %s: %w", date, apperr.ErrNotFound)
		}
		return nil, err
	}
	return s.build(date, data), nil
}

// Blocks returns the parsed block view of a note.
func (s *Service) Blocks(ctx context.Context, date string) ([]block.Block, error) {
	n, err := s.Note(ctx, date)
	if err != nil {
		return nil, err
	}
	return markdown.Parse(n.Content).Blocks(), nil
}

// Save writes content for date with optimistic concurrency: a non-empty
// ifMatch must equal the checksum of the stored note. Future dates are
// rejected.
func (s *Service) Save(_ context.Context, date, content, ifMatch string) (*Note, error) {
	t, err := daily.ParseDate(date)
	if err != nil {
		return nil, err
	}
	if t.After(s.today()) {
		return nil, fmt.Errorf("notesvc: %s is in the future: %w", date, apperr.ErrInvalidDate)
	}

	unlock := s.locks.lock(date)
	defer unlock()

	path := daily.Path(s.dir, date)
	kind := "updated"
	existing, err := s.store.Read(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = "created"
		if ifMatch != "" {
			return nil, fmt.Errorf("notesvc: note %s: %w", date, apperr.ErrNotFound)
		}
	case err != nil:
		return nil, err
	case ifMatch != "" && ifMatch != storage.Checksum(existing):
		return nil, apperr.ErrConflict
	}

	data := []byte(content)
	if err := s.write(date, data); err != nil {
		return nil, err
	}
	s.logger.Debug("note saved", slog.String("date", date), slog.Int("bytes", len(data)))
	s.notify(kind, date)
	return s.build(date, data), nil
}

// SaveToday writes today's note.
func (s *Service) SaveToday(ctx context.Context, content, ifMatch string) (*Note, error) {
	return s.Save(ctx, daily.Format(s.today()), content, ifMatch)
}

// Streak counts consecutive meaningful days ending yesterday, plus today
// when today is meaningful, and lists the last seven days oldest first.
func (s *Service) Streak(_ context.Context) (*Streak, error) {
	today := s.today()
	yesterday := daily.Format(today.AddDate(0, 0, -1))

	dates, err := s.db.MeaningfulUpTo(yesterday)
	if err != nil {
		return nil, err
	}
	streak := 0
	want := today.AddDate(0, 0, -1)
	for _, d := range dates {
		if d != daily.Format(want) {
			break
		}
		streak++
		want = want.AddDate(0, 0, -1)
	}

	from := today.AddDate(0, 0, -6)
	week, err := s.db.MeaningfulDates(daily.Format(from), daily.Format(today))
	if err != nil {
		return nil, err
	}
	if week[daily.Format(today)] {
		streak++
	}

	days := make([]Day, 0, 7)
	for i := 6; i >= 0; i-- {
		d := today.AddDate(0, 0, -i)
		date := daily.Format(d)
		days = append(days, Day{
			Date:    date,
			Label:   daily.Label(d),
			Done:    week[date],
			IsToday: i == 0,
		})
	}
	return &Streak{Current: streak, Days: days}, nil
}

// OpenTasks lists unchecked tasks of the last days days, today included,
// newest first.
func (s *Service) OpenTasks(_ context.Context, days int) ([]index.TaskRow, error) {
	if days <= 0 {
		days = daily.CarryoverDays
	}
	today := s.today()
	from := daily.Format(today.AddDate(0, 0, -(days - 1)))
	return s.db.OpenTasks(from, daily.Format(today))
}

// AddTask adds an unchecked task to today's note: before the first empty
// task line (where carried tasks go), else after the last task, else at
// the end.
func (s *Service) AddTask(ctx context.Context, text string) (*Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("notesvc: empty task: %w", apperr.ErrInvalidTask)
	}
	n, err := s.Today(ctx)
	if err != nil {
		return nil, err
	}

	doc := markdown.Parse(n.Content)
	var empty, last block.ID
	for _, b := range doc.Blocks() {
		if b.Type() != block.TypeTask {
			continue
		}
		if empty == 0 && !b.Checked() && strings.TrimSpace(b.Content) == "" {
			empty = b.ID
		}
		last = b.ID
	}

	task := block.New(block.Task{}, text)
	switch {
	case empty != 0:
		id, err := doc.InsertAfter(empty, task)
		if err != nil {
			return nil, err
		}
		if err := doc.Move(id, empty, block.Before); err != nil {
			return nil, err
		}
	case last != 0:
		if _, err := doc.InsertAfter(last, task); err != nil {
			return nil, err
		}
	default:
		doc.Append(task)
	}
	return s.SaveToday(ctx, markdown.Serialize(doc), n.Checksum)
}

// Search runs a full-text query over the indexed notes.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.db.Search(query, limit)
}

func (s *Service) carryover(_ context.Context) ([]string, error) {
	today := s.today()
	from := daily.Format(today.AddDate(0, 0, -daily.CarryoverDays))
	to := daily.Format(today.AddDate(0, 0, -1))
	rows, err := s.db.OpenTasks(from, to)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(rows))
	for i, r := range rows {
		texts[i] = r.Text
	}
	return daily.Dedupe(texts), nil
}

// write stores data and indexes it right away so reads that follow see it.
func (s *Service) write(date string, data []byte) error {
	path := daily.Path(s.dir, date)
	if err := s.store.Write(path, data); err != nil {
		return err
	}
	if _, _, err := index.IndexFile(s.db, s.Notes(), path, data); err != nil {
		s.logger.Warn("index after write failed", slog.String("date", date), slog.String("error", err.Error()))
	}
	return nil
}

func (s *Service) build(date string, data []byte) *Note {
	content := string(data)
	return &Note{
		Date:       date,
		Content:    content,
		Checksum:   storage.Checksum(data),
		Meaningful: daily.Meaningful(content, s.template),
		IsToday:    date == daily.Format(s.today()),
	}
}

func (s *Service) notify(kind, date string) {
	if s.onChange != nil {
		s.onChange(kind, date)
	}
}
