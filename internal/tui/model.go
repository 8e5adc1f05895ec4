// Package tui is a terminal front end for the block editor built on
// bubbletea. The model is the editor's view: it keeps the rendered blocks,
// the focused block and the caret, and turns key and mouse input into
// editor events.
package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/focusguard/internal/apperr"
	"github.com/starford/focusguard/internal/block"
	"github.com/starford/focusguard/internal/editor"
	"github.com/starford/focusguard/internal/menu"
	"github.com/starford/focusguard/internal/saver"
)

// StatusMsg reports a saver state change to the program.
type StatusMsg struct {
	Status saver.Status
	Err    error
}

// StreakMsg replaces the streak shown in the header.
type StreakMsg struct {
	Current int
}

// ReloadMsg replaces the document with the stored note after it changed
// elsewhere. Apply runs once the model has taken the content over. Unless
// Force is set, the model keeps its own content while it has edits the
// service has not accepted yet.
type ReloadMsg struct {
	Content string
	Apply   func()
	Force   bool
}

// ReloadFunc fetches the stored note for ctrl+r.
type ReloadFunc func(ctx context.Context) (ReloadMsg, error)

type reloadFailedMsg struct{ err error }

// Option configures a Model.
type Option func(*Model)

// WithTitle sets the header text, usually the note date.
func WithTitle(title string) Option {
	return func(m *Model) { m.title = title }
}

// WithReadOnly opens the note without editing.
func WithReadOnly(ro bool) Option {
	return func(m *Model) { m.readOnly = ro }
}

// WithSaver schedules a save on every change and flushes on ctrl+s.
func WithSaver(s *saver.Saver) Option {
	return func(m *Model) { m.saver = s }
}

// WithReload enables ctrl+r after a save was rejected because the note
// changed elsewhere.
func WithReload(fn ReloadFunc) Option {
	return func(m *Model) { m.reload = fn }
}

// WithClipboard replaces the system clipboard reader.
func WithClipboard(read func() (string, error)) Option {
	return func(m *Model) {
		if read != nil {
			m.paste = read
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithStyles overrides the default theme.
func WithStyles(s Styles) Option {
	return func(m *Model) { m.styles = s }
}

type menuView struct {
	open   bool
	anchor block.ID
	items  []menu.Item
	active int
}

// Model is the bubbletea model and the editor's View.
type Model struct {
	ed     *editor.Editor
	saver  *saver.Saver
	reload ReloadFunc
	paste  func() (string, error)
	logger *slog.Logger
	styles Styles
	keys   keyMap
	help   help.Model

	title    string
	readOnly bool
	streak   int

	blocks []block.Block
	cursor block.ID
	caret  int
	menu   menuView

	status    saver.Status
	statusErr error
	conflict  bool
	flash     string

	width, height int
	top           int
	rows          []rowRef
	dragging      bool
}

var (
	_ editor.View     = (*Model)(nil)
	_ editor.MenuView = (*Model)(nil)
	_ tea.Model       = (*Model)(nil)
)

// New creates a model editing the given Markdown.
func New(markdown string, opts ...Option) *Model {
	m := &Model{
		paste:  clipboard.ReadAll,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		styles: DefaultStyles(),
		keys:   defaultKeyMap(),
		streak: -1,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.help = newHelp(m.styles)
	m.keys.setReadOnly(m.readOnly)
	m.ed = editor.New(editor.WithView(m), editor.WithLogger(m.logger))
	m.ed.Load(markdown)
	m.ed.SetReadOnly(m.readOnly)
	if m.saver != nil {
		m.ed.OnChange(m.saver.Schedule)
	}
	if len(m.blocks) > 0 {
		m.cursor = m.blocks[0].ID
	}
	return m
}

// Editor exposes the underlying editor.
func (m *Model) Editor() *editor.Editor { return m.ed }

// Cursor returns the focused block and caret.
func (m *Model) Cursor() (block.ID, int) { return m.cursor, m.caret }

// Render implements editor.View.
func (m *Model) Render(blocks []block.Block) {
	m.blocks = blocks
	if m.index(m.cursor) < 0 && len(blocks) > 0 {
		m.cursor = blocks[0].ID
	}
	m.clampCaret()
}

// Focus implements editor.View.
func (m *Model) Focus(req editor.FocusRequest) {
	m.cursor = req.Block
	if i := m.index(req.Block); i >= 0 {
		m.caret = req.Offset(m.blocks[i].Content)
	} else if b, ok := m.ed.Block(req.Block); ok {
		m.caret = req.Offset(b.Content)
	}
}

// ShowMenu implements editor.MenuView.
func (m *Model) ShowMenu(anchor block.ID, items []menu.Item, active int) {
	m.menu = menuView{open: true, anchor: anchor, items: items, active: active}
}

// HideMenu implements editor.MenuView.
func (m *Model) HideMenu() {
	m.menu = menuView{}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
	case StatusMsg:
		m.status, m.statusErr = msg.Status, msg.Err
		m.setConflict(msg.Status == saver.SaveFailed && errors.Is(msg.Err, apperr.ErrConflict))
	case ReloadMsg:
		m.applyReload(msg)
	case reloadFailedMsg:
		m.flash = "reload: " + msg.err.Error()
	case StreakMsg:
		m.streak = msg.Current
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case tea.MouseMsg:
		m.handleMouse(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	m.flash = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Save):
		return m.flush()
	case key.Matches(msg, m.keys.Reload):
		return m.fetchReload()
	}

	if m.ed.ReadOnly() {
		m.navigate(msg)
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Paste):
		text, err := m.paste()
		if err != nil {
			m.flash = "clipboard: " + err.Error()
			return nil
		}
		m.report(m.ed.Paste(m.cursor, m.caret, text))
		return nil
	case key.Matches(msg, m.keys.Toggle):
		err := m.ed.ToggleTask(m.cursor)
		if errors.Is(err, block.ErrWrongType) {
			m.flash = "not a task"
			return nil
		}
		m.report(err)
		return nil
	case key.Matches(msg, m.keys.Append):
		_, err := m.ed.AppendBlock()
		m.report(err)
		return nil
	case key.Matches(msg, m.keys.MoveUp):
		m.report(m.ed.MoveBy(m.cursor, -1))
		return nil
	case key.Matches(msg, m.keys.MoveDown):
		m.report(m.ed.MoveBy(m.cursor, 1))
		return nil
	}

	switch msg.String() {
	case "enter":
		m.key(editor.KeyEnter, 0)
	case "alt+enter":
		m.key(editor.KeyEnter, editor.ModAlt)
	case "esc":
		m.key(editor.KeyEscape, 0)
	case "backspace":
		if !m.key(editor.KeyBackspace, 0) && m.caret > 0 {
			b := m.current()
			head, tail := block.SplitText(b.Content, m.caret)
			r := []rune(head)
			m.edit(string(r[:len(r)-1])+tail, m.caret-1)
		}
	case "delete":
		if !m.key(editor.KeyDelete, 0) {
			b := m.current()
			if m.caret < block.TextLen(b.Content) {
				head, tail := block.SplitText(b.Content, m.caret)
				r := []rune(tail)
				m.edit(head+string(r[1:]), m.caret)
			}
		}
	default:
		switch msg.Type {
		case tea.KeyRunes:
			if msg.Paste {
				m.report(m.ed.Paste(m.cursor, m.caret, string(msg.Runes)))
				return nil
			}
			m.insert(string(msg.Runes))
		case tea.KeySpace:
			m.insert(" ")
		default:
			m.navigate(msg)
		}
	}
	return nil
}

// navigate moves the caret for keys the editor leaves to the view.
func (m *Model) navigate(msg tea.KeyMsg) {
	n := block.TextLen(m.current().Content)
	switch msg.String() {
	case "left":
		m.caret = max(m.caret-1, 0)
	case "right":
		m.caret = min(m.caret+1, n)
	case "home":
		m.caret = 0
	case "end":
		m.caret = n
	case "up":
		if m.ed.ReadOnly() || !m.key(editor.KeyArrowUp, 0) {
			m.step(-1)
		}
	case "down":
		if m.ed.ReadOnly() || !m.key(editor.KeyArrowDown, 0) {
			m.step(1)
		}
	case "pgup":
		m.top = max(m.top-m.bodyHeight(), 0)
	case "pgdown":
		m.top += m.bodyHeight()
	}
}

// step is the fallback for arrows inside a line: go to the line edge,
// or to the neighbour block when read-only.
func (m *Model) step(delta int) {
	i := m.index(m.cursor)
	if m.ed.ReadOnly() {
		if j := i + delta; j >= 0 && j < len(m.blocks) {
			m.cursor = m.blocks[j].ID
			m.clampCaret()
		}
		return
	}
	if delta < 0 {
		m.caret = 0
	} else {
		m.caret = block.TextLen(m.current().Content)
	}
}

// key sends a structural key to the editor and reports whether it was used.
func (m *Model) key(k editor.Key, mods editor.Mods) bool {
	handled, err := m.ed.Key(editor.KeyEvent{Block: m.cursor, Key: k, Mods: mods, Caret: m.caret})
	m.report(err)
	return handled
}

func (m *Model) insert(s string) {
	b := m.current()
	head, tail := block.SplitText(b.Content, m.caret)
	m.edit(head+s+tail, m.caret+block.TextLen(s))
}

// edit applies typed text locally, as a browser would, then tells the editor.
func (m *Model) edit(text string, caret int) {
	if i := m.index(m.cursor); i >= 0 {
		m.blocks[i].Content = text
	}
	m.caret = caret
	m.report(m.ed.ContentChanged(m.cursor, text))
}

func (m *Model) report(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, apperr.ErrReadOnly) {
		m.flash = "read-only"
		return
	}
	m.logger.Warn("editor event failed", slog.String("error", err.Error()))
	m.flash = err.Error()
}

func (m *Model) flush() tea.Cmd {
	if m.saver == nil || m.ed.ReadOnly() {
		return nil
	}
	s := m.saver
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Flush(ctx); err != nil {
			return StatusMsg{Status: saver.SaveFailed, Err: err}
		}
		return nil
	}
}

func (m *Model) setConflict(c bool) {
	m.conflict = c
	m.keys.Reload.SetEnabled(c && m.reload != nil)
}

// unsaved reports edits the service has not accepted yet.
func (m *Model) unsaved() bool {
	if m.status == saver.SaveFailed {
		return true
	}
	return m.saver != nil && m.saver.Busy()
}

func (m *Model) applyReload(msg ReloadMsg) {
	if !msg.Force && m.unsaved() {
		m.logger.Debug("reload skipped: unsaved edits")
		return
	}
	if msg.Force && m.saver != nil {
		m.saver.Discard()
	}
	if msg.Content != m.ed.Markdown() {
		m.ed.Load(msg.Content)
		m.flash = "reloaded"
	}
	if msg.Apply != nil {
		msg.Apply()
	}
	if msg.Force {
		m.status, m.statusErr = saver.Idle, nil
		m.setConflict(false)
	}
}

func (m *Model) fetchReload() tea.Cmd {
	if m.reload == nil {
		return nil
	}
	fn := m.reload
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		msg, err := fn(ctx)
		if err != nil {
			return reloadFailedMsg{err: err}
		}
		msg.Force = true
		return msg
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	row, ok := m.rowAt(msg.Y)
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || !ok {
			return
		}
		switch {
		case row.menuItem >= 0:
			m.report(m.ed.MenuSelect(row.menuItem))
		case row.add:
			_, err := m.ed.AppendBlock()
			m.report(err)
		case row.id != 0 && msg.X < gutterWidth && !m.ed.ReadOnly():
			if err := m.ed.DragStart(row.id); err == nil {
				m.dragging = true
			}
		case row.id != 0:
			m.cursor = row.id
			m.caret = block.TextLen(m.current().Content)
			if b := m.current(); b.Type() == block.TypeTask && msg.X < gutterWidth+checkboxWidth {
				m.report(m.ed.ToggleTask(row.id))
			}
		}
	case tea.MouseActionMotion:
		if !m.dragging || !ok || row.id == 0 {
			return
		}
		src, _ := m.ed.Dragging()
		// A terminal row has no halves: moving up drops before, down after.
		y := float64(row.screen) + 0.75
		if m.index(row.id) < m.index(src) {
			y = float64(row.screen)
		}
		_, err := m.ed.DragOver(row.id, y, editor.Box{Top: float64(row.screen), Height: 1})
		m.report(err)
	case tea.MouseActionRelease:
		if !m.dragging {
			return
		}
		m.dragging = false
		if target, _, over := m.ed.DropTarget(); over {
			src, _ := m.ed.Dragging()
			m.report(m.ed.Drop(target))
			m.cursor = src
			m.clampCaret()
		} else {
			m.ed.DragEnd()
		}
	}
}

func (m *Model) current() block.Block {
	if i := m.index(m.cursor); i >= 0 {
		return m.blocks[i]
	}
	return block.Block{}
}

func (m *Model) index(id block.ID) int {
	for i, b := range m.blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (m *Model) clampCaret() {
	m.caret = min(max(m.caret, 0), block.TextLen(m.current().Content))
}
