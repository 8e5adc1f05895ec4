package editor

import (
	"log/slog"
	"strings"

	"github.com/starford/focusguard/internal/block"
)

// Key identifies the keys the dispatcher gives structural meaning to.
type Key int

const (
	KeyOther Key = iota
	KeyEnter
	KeyBackspace
	KeyDelete
	KeyArrowUp
	KeyArrowDown
	KeyEscape
)

var keyNames = map[Key]string{
	KeyOther:     "Other",
	KeyEnter:     "Enter",
	KeyBackspace: "Backspace",
	KeyDelete:    "Delete",
	KeyArrowUp:   "ArrowUp",
	KeyArrowDown: "ArrowDown",
	KeyEscape:    "Escape",
}

func (k Key) String() string {
	if s, ok := keyNames[k]; ok {
		return s
	}
	return "Other"
}

// ParseKey maps a key name ("Enter", "arrowup", "esc") to a Key.
// Unknown names map to KeyOther.
func ParseKey(name string) Key {
	switch strings.ToLower(name) {
	case "enter", "return":
		return KeyEnter
	case "backspace":
		return KeyBackspace
	case "delete", "del":
		return KeyDelete
	case "arrowup", "up":
		return KeyArrowUp
	case "arrowdown", "down":
		return KeyArrowDown
	case "escape", "esc":
		return KeyEscape
	}
	return KeyOther
}

// Mods is a bitmask of held modifier keys.
type Mods uint8

const (
	ModShift Mods = 1 << iota
	ModCtrl
	ModAlt
	ModMeta
)

// KeyEvent is a key press inside a block. Caret is a rune offset into the
// block content; Selection reports a non-collapsed selection.
type KeyEvent struct {
	Block     block.ID
	Key       Key
	Mods      Mods
	Caret     int
	Selection bool
}

// Key dispatches a key press. It reports whether the event was consumed;
// an unhandled event should get the view's default behavior.
func (e *Editor) Key(ev KeyEvent) (bool, error) {
	defer e.finish()
	if e.readOnly {
		return false, nil
	}
	if e.menu.IsOpen() {
		return e.menuKey(ev)
	}

	b, ok := e.doc.Block(ev.Block)
	if !ok {
		return false, notFound(ev.Block)
	}
	n := block.TextLen(b.Content)
	caret := min(max(ev.Caret, 0), n)

	switch ev.Key {
	case KeyEnter:
		if ev.Mods != 0 {
			return false, nil
		}
		return e.enter(b, caret)
	case KeyBackspace:
		if caret != 0 || ev.Selection {
			return false, nil
		}
		return e.backspace(b)
	case KeyDelete:
		if caret != n || ev.Selection {
			return false, nil
		}
		return e.deleteForward(b)
	case KeyArrowUp:
		if caret != 0 {
			return false, nil
		}
		prev, ok := e.doc.Prev(b.ID)
		if !ok {
			return false, nil
		}
		e.focusEnd(prev.ID)
		return true, nil
	case KeyArrowDown:
		if caret != n {
			return false, nil
		}
		next, ok := e.doc.Next(b.ID)
		if !ok {
			return false, nil
		}
		e.focus(next.ID, 0)
		return true, nil
	}
	return false, nil
}

// menuKey handles keys while the command menu is open. Keys other than
// navigation, Enter and Escape are swallowed without structural effect.
func (e *Editor) menuKey(ev KeyEvent) (bool, error) {
	switch ev.Key {
	case KeyArrowDown:
		e.menu.Move(1)
		return true, nil
	case KeyArrowUp:
		e.menu.Move(-1)
		return true, nil
	case KeyEnter:
		return true, e.applyMenu(e.menu.Active())
	case KeyEscape:
		e.menu.Close()
		return true, nil
	}
	return false, nil
}

func (e *Editor) enter(b block.Block, caret int) (bool, error) {
	// An empty list item ends the list instead of continuing it. Whatever
	// whitespace follows the caret goes with it.
	if b.IsList() && strings.TrimSpace(b.Content) == "" {
		if head, _ := block.SplitText(b.Content, caret); head != b.Content {
			if err := e.doc.SetContent(b.ID, head); err != nil {
				return false, err
			}
		}
		if err := e.doc.Convert(b.ID, block.TypeParagraph); err != nil {
			return false, err
		}
		e.dirty = true
		e.changed = true
		e.focusEnd(b.ID)
		return true, nil
	}

	id, err := e.doc.Split(b.ID, caret)
	if err != nil {
		return false, err
	}
	e.logger.Debug("editor: split", slog.String("block", b.ID.String()), slog.Int("caret", caret))
	e.dirty = true
	e.changed = true
	e.focus(id, 0)
	return true, nil
}

func (e *Editor) backspace(b block.Block) (bool, error) {
	if b.Type() != block.TypeParagraph {
		if err := e.doc.Convert(b.ID, block.TypeParagraph); err != nil {
			return false, err
		}
		e.dirty = true
		e.changed = true
		e.focus(b.ID, 0)
		return true, nil
	}

	prev, ok := e.doc.Prev(b.ID)
	if !ok {
		return false, nil
	}
	boundary := block.TextLen(prev.Content)
	if err := e.doc.Merge(prev.ID, b.ID); err != nil {
		return false, err
	}
	e.forget(b.ID)
	e.logger.Debug("editor: merge", slog.String("into", prev.ID.String()), slog.String("from", b.ID.String()))
	e.dirty = true
	e.changed = true
	e.focus(prev.ID, boundary)
	return true, nil
}

func (e *Editor) deleteForward(b block.Block) (bool, error) {
	next, ok := e.doc.Next(b.ID)
	if !ok {
		return false, nil
	}
	end := block.TextLen(b.Content)
	if err := e.doc.Merge(b.ID, next.ID); err != nil {
		return false, err
	}
	e.forget(next.ID)
	e.dirty = true
	e.changed = true
	e.focus(b.ID, end)
	return true, nil
}

// forget drops transient references to a removed block.
func (e *Editor) forget(id block.ID) {
	if e.menu.BoundTo(id) {
		e.menu.Close()
	}
	if e.drag.active && (e.drag.source == id || e.drag.over == id) {
		e.drag = dragState{}
	}
}
