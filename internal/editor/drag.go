package editor

import (
	"log/slog"

	"github.com/starford/focusguard/internal/block"
)

// Box is the vertical extent of a rendered block, in view coordinates.
type Box struct {
	Top    float64
	Height float64
}

// SideOf classifies a pointer position: the upper half drops before the
// block, the lower half after it.
func (b Box) SideOf(y float64) block.Side {
	if y < b.Top+b.Height/2 {
		return block.Before
	}
	return block.After
}

type dragState struct {
	active bool
	source block.ID
	over   block.ID
	side   block.Side
}

// Dragging returns the block being dragged, if any.
func (e *Editor) Dragging() (block.ID, bool) {
	return e.drag.source, e.drag.active
}

// DropTarget returns the hovered block and side for the drop indicator.
func (e *Editor) DropTarget() (block.ID, block.Side, bool) {
	ok := e.drag.active && e.drag.over != 0
	return e.drag.over, e.drag.side, ok
}

// DragStart records the dragged block.
func (e *Editor) DragStart(id block.ID) error {
	defer e.finish()
	if e.readOnly {
		return nil
	}
	if _, ok := e.doc.Block(id); !ok {
		return notFound(id)
	}
	e.drag = dragState{active: true, source: id}
	return nil
}

// DragOver updates the drop indicator for a pointer over block id.
func (e *Editor) DragOver(id block.ID, pointerY float64, box Box) (block.Side, error) {
	defer e.finish()
	side := box.SideOf(pointerY)
	if e.readOnly || !e.drag.active {
		return side, nil
	}
	if _, ok := e.doc.Block(id); !ok {
		return side, notFound(id)
	}
	if id == e.drag.source {
		e.drag.over = 0
		return side, nil
	}
	e.drag.over = id
	e.drag.side = side
	return side, nil
}

// Drop moves the dragged block next to target, on the side last reported
// by DragOver for that target (after it when none was). The drag ends
// either way.
func (e *Editor) Drop(target block.ID) error {
	defer e.finish()
	d := e.drag
	e.drag = dragState{}
	if e.readOnly || !d.active || d.source == target {
		return nil
	}
	side := block.After
	if d.over == target {
		side = d.side
	}
	if err := e.doc.Move(d.source, target, side); err != nil {
		return err
	}
	e.logger.Debug("editor: move",
		slog.String("block", d.source.String()),
		slog.String("anchor", target.String()),
		slog.String("side", side.String()))
	e.dirty = true
	e.changed = true
	return nil
}

// DragEnd clears drag state without moving anything.
func (e *Editor) DragEnd() {
	defer e.finish()
	e.drag = dragState{}
}

// MoveBy shifts a block up (delta < 0) or down by one position, the
// keyboard equivalent of dragging it past its neighbour.
func (e *Editor) MoveBy(id block.ID, delta int) error {
	if delta == 0 {
		return nil
	}
	var anchor block.Block
	var ok bool
	if delta < 0 {
		anchor, ok = e.doc.Prev(id)
	} else {
		anchor, ok = e.doc.Next(id)
	}
	if _, exists := e.doc.Block(id); !exists {
		return notFound(id)
	}
	if !ok {
		return nil
	}
	if err := e.DragStart(id); err != nil {
		return err
	}
	box := Box{Top: 0, Height: 2}
	y := 0.0
	if delta > 0 {
		y = 2
	}
	if _, err := e.DragOver(anchor.ID, y, box); err != nil {
		return err
	}
	if err := e.Drop(anchor.ID); err != nil {
		return err
	}
	e.focusAfterMove(id)
	return nil
}

func (e *Editor) focusAfterMove(id block.ID) {
	defer e.finish()
	if !e.readOnly {
		e.focusEnd(id)
	}
}
