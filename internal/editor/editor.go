// Package editor dispatches raw input events from a view against the block
// document, the inline pattern engine and the command menu.
//
// The editor is single-threaded: every public method runs one "turn" that
// mutates synchronously, then renders (if the structure changed), then
// delivers queued focus requests in order, then emits at most one change
// notification with the serialized Markdown.
package editor

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/focusguard/internal/apperr"
	"github.com/starford/focusguard/internal/block"
	"github.com/starford/focusguard/internal/markdown"
	"github.com/starford/focusguard/internal/menu"
)

// FocusRequest asks the view to focus a block and place the caret.
// When AtEnd is set the caret goes after the last character and Caret is ignored.
type FocusRequest struct {
	Block block.ID
	Caret int
	AtEnd bool
}

// Offset resolves the caret position against the block's content.
func (f FocusRequest) Offset(content string) int {
	n := block.TextLen(content)
	if f.AtEnd || f.Caret > n {
		return n
	}
	if f.Caret < 0 {
		return 0
	}
	return f.Caret
}

// View is the projection the editor drives. Render always receives the
// full block sequence; Focus is only called after the Render of the same
// turn, so the target exists.
type View interface {
	Render(blocks []block.Block)
	Focus(req FocusRequest)
}

// MenuView is implemented by views that draw the command menu.
type MenuView interface {
	ShowMenu(anchor block.ID, items []menu.Item, active int)
	HideMenu()
}

type nopView struct{}

func (nopView) Render([]block.Block) {}
func (nopView) Focus(FocusRequest)   {}

// Option configures an Editor.
type Option func(*Editor)

// WithView attaches the projection.
func WithView(v View) Option {
	return func(e *Editor) {
		if v != nil {
			e.view = v
		}
	}
}

// WithLogger sets the logger used for structural operations.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Editor owns one document and its transient UI state.
type Editor struct {
	doc      *block.Document
	view     View
	logger   *slog.Logger
	session  string
	readOnly bool

	menu     menu.State
	shown    menu.State
	drag     dragState
	focusQ   []FocusRequest
	dirty    bool
	changed  bool
	handlers []func(markdown string)
}

// New creates an editor holding an empty document.
func New(opts ...Option) *Editor {
	e := &Editor{
		doc:     block.NewDocument(),
		view:    nopView{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		session: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("session", e.session))
	return e
}

// Session identifies this editor instance in logs and change events.
func (e *Editor) Session() string { return e.session }

// OnChange registers fn to receive the full Markdown after every
// mutating user action.
func (e *Editor) OnChange(fn func(markdown string)) {
	if fn != nil {
		e.handlers = append(e.handlers, fn)
	}
}

// Load replaces the document with the parsed text and re-renders.
// Loading is not a user edit, so no change notification is emitted.
func (e *Editor) Load(text string) {
	defer e.finish()
	e.doc.Replace(markdown.ParseBlocks(text))
	e.menu.Close()
	e.drag = dragState{}
	e.dirty = true
	e.logger.Debug("editor: loaded", slog.Int("blocks", e.doc.Len()))
}

// SetReadOnly toggles suppression of all mutating input.
func (e *Editor) SetReadOnly(ro bool) {
	defer e.finish()
	e.readOnly = ro
	if ro {
		e.menu.Close()
		e.drag = dragState{}
	}
}

// ReadOnly reports whether mutating input is suppressed.
func (e *Editor) ReadOnly() bool { return e.readOnly }

// Markdown serializes the current document.
func (e *Editor) Markdown() string { return markdown.Serialize(e.doc) }

// Blocks returns a snapshot of the document in display order.
func (e *Editor) Blocks() []block.Block { return e.doc.Blocks() }

// Block returns a snapshot of one block.
func (e *Editor) Block(id block.ID) (block.Block, bool) { return e.doc.Block(id) }

// MenuSnapshot describes the command menu for views.
type MenuSnapshot struct {
	Open   bool
	Target block.ID
	Active int
}

// Menu returns the current command menu state.
func (e *Editor) Menu() MenuSnapshot {
	id, open := e.menu.Target()
	return MenuSnapshot{Open: open, Target: id, Active: e.menu.Active()}
}

// ToggleTask flips the checkbox of a task block.
func (e *Editor) ToggleTask(id block.ID) error {
	defer e.finish()
	if e.readOnly {
		return nil
	}
	b, ok := e.doc.Block(id)
	if !ok {
		return notFound(id)
	}
	if err := e.doc.SetChecked(id, !b.Checked()); err != nil {
		return err
	}
	e.dirty = true
	e.changed = true
	return nil
}

// AppendBlock adds an empty paragraph at the end and focuses it.
func (e *Editor) AppendBlock() (block.ID, error) {
	defer e.finish()
	if e.readOnly {
		return 0, apperr.ErrReadOnly
	}
	id := e.doc.Append(block.New(block.Paragraph{}, ""))
	e.dirty = true
	e.changed = true
	e.focus(id, 0)
	return id, nil
}

func notFound(id block.ID) error {
	return fmt.Errorf("editor: block %s: %w", id, apperr.ErrNotFound)
}

func (e *Editor) focus(id block.ID, caret int) {
	e.focusQ = append(e.focusQ, FocusRequest{Block: id, Caret: caret})
}

func (e *Editor) focusEnd(id block.ID) {
	e.focusQ = append(e.focusQ, FocusRequest{Block: id, AtEnd: true})
}

// finish ends a turn: render, menu, focus queue, change notification.
func (e *Editor) finish() {
	if e.dirty {
		e.dirty = false
		e.view.Render(e.doc.Blocks())
	}
	e.syncMenu()

	queue := e.focusQ
	e.focusQ = nil
	for _, req := range queue {
		if _, ok := e.doc.Block(req.Block); ok {
			e.view.Focus(req)
		}
	}

	if e.changed {
		e.changed = false
		md := markdown.Serialize(e.doc)
		for _, fn := range e.handlers {
			fn(md)
		}
	}
}

func (e *Editor) syncMenu() {
	if e.menu == e.shown {
		return
	}
	e.shown = e.menu
	mv, ok := e.view.(MenuView)
	if !ok {
		return
	}
	if id, open := e.menu.Target(); open {
		mv.ShowMenu(id, menu.Items, e.menu.Active())
	} else {
		mv.HideMenu()
	}
}
