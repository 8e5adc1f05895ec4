package editor

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/focusguard/internal/block"
	"github.com/starford/focusguard/internal/inline"
	"github.com/starford/focusguard/internal/markdown"
	"github.com/starford/focusguard/internal/menu"
)

// ContentChanged records text typed into a block. Paragraphs are checked
// for inline triggers; typed blocks keep their text as entered.
func (e *Editor) ContentChanged(id block.ID, text string) error {
	defer e.finish()
	if e.readOnly {
		return nil
	}
	b, ok := e.doc.Block(id)
	if !ok {
		return notFound(id)
	}
	if err := e.doc.SetContent(id, text); err != nil {
		return err
	}
	e.changed = true

	if b.Type() == block.TypeParagraph {
		switch r := inline.Detect(text); r.Action {
		case inline.Convert:
			if err := e.doc.SetKind(id, r.Kind); err != nil {
				return err
			}
			if err := e.doc.SetContent(id, r.Content); err != nil {
				return err
			}
			e.logger.Debug("editor: inline convert", slog.String("block", id.String()), slog.String("type", r.Kind.Type().String()))
			e.dirty = true
			e.focusEnd(id)
			text = r.Content
		case inline.OpenMenu:
			e.menu.Open(id)
			return nil
		}
	}

	if e.menu.BoundTo(id) && inline.Diverged(text) {
		e.menu.Close()
	}
	return nil
}

// Paste inserts text at a caret. A single line is inserted verbatim; with
// several lines the first joins the current block, the text after the
// caret travels with the last line, and every later line is classified
// like a line of a loaded file.
func (e *Editor) Paste(id block.ID, caret int, text string) error {
	defer e.finish()
	if e.readOnly {
		return nil
	}
	b, ok := e.doc.Block(id)
	if !ok {
		return notFound(id)
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	head, tail := block.SplitText(b.Content, caret)
	lines := strings.Split(text, "\n")

	if len(lines) == 1 {
		if err := e.doc.SetContent(id, head+text+tail); err != nil {
			return err
		}
		e.dirty = true
		e.changed = true
		e.focus(id, block.TextLen(head)+block.TextLen(text))
		if e.menu.BoundTo(id) {
			e.menu.Close()
		}
		return nil
	}

	if err := e.doc.SetContent(id, head+lines[0]); err != nil {
		return err
	}
	last := id
	for i, line := range lines[1:] {
		if i == len(lines)-2 {
			line += tail
		}
		nb, ok := markdown.ClassifyLine(line)
		if !ok {
			nb = block.New(block.Paragraph{}, "")
		}
		next, err := e.doc.InsertAfter(last, nb)
		if err != nil {
			return err
		}
		last = next
	}
	e.logger.Debug("editor: paste", slog.String("block", id.String()), slog.Int("lines", len(lines)))
	if e.menu.BoundTo(id) {
		e.menu.Close()
	}
	e.dirty = true
	e.changed = true
	e.focusEnd(last)
	return nil
}

// MenuHover highlights a menu item without committing.
func (e *Editor) MenuHover(i int) {
	defer e.finish()
	e.menu.Hover(i)
}

// MenuSelect commits menu item i against the bound block.
func (e *Editor) MenuSelect(i int) error {
	defer e.finish()
	if e.readOnly || !e.menu.IsOpen() {
		return nil
	}
	return e.applyMenu(i)
}

// MenuClose dismisses the menu, as on Escape or a click outside it.
func (e *Editor) MenuClose() {
	defer e.finish()
	e.menu.Close()
}

// applyMenu clears the target's content (the trigger) and gives it the
// default kind of the chosen item.
func (e *Editor) applyMenu(i int) error {
	if i < 0 || i >= len(menu.Items) {
		return fmt.Errorf("editor: menu item %d out of range", i)
	}
	target, _ := e.menu.Target()
	e.menu.Close()
	if _, ok := e.doc.Block(target); !ok {
		return notFound(target)
	}
	item := menu.Items[i]
	if err := e.doc.SetContent(target, ""); err != nil {
		return err
	}
	if err := e.doc.SetKind(target, menu.KindFor(item)); err != nil {
		return err
	}
	e.dirty = true
	e.changed = true
	e.focus(target, 0)
	return nil
}
