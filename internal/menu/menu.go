// Package menu holds the state of the "turn into" command menu: which
// block it is bound to and which item is active.
package menu

import "github.com/starford/focusguard/internal/block"

// Item is one entry of the menu.
type Item struct {
	Type  block.Type
	Icon  string
	Label string
	Desc  string
}

// Items is the fixed menu content, in display order.
var Items = []Item{
	{Type: block.TypeHeading, Icon: "H", Label: "Heading", Desc: "Section header"},
	{Type: block.TypeTask, Icon: "☐", Label: "Task", Desc: "Checkbox item"},
	{Type: block.TypeBullet, Icon: "•", Label: "Bullet", Desc: "List item"},
	{Type: block.TypeParagraph, Icon: "¶", Label: "Text", Desc: "Plain paragraph"},
}

// Label is the heading shown above the items.
const Label = "Turn into"

// State is the ephemeral menu. The zero value is a closed menu.
type State struct {
	open   bool
	target block.ID
	active int
}

// Open binds the menu to id and resets the selection to the first item.
// An already open menu is replaced.
func (s *State) Open(id block.ID) {
	s.open = true
	s.target = id
	s.active = 0
}

// Close dismisses the menu.
func (s *State) Close() {
	*s = State{}
}

// IsOpen reports whether a menu is showing.
func (s *State) IsOpen() bool { return s.open }

// Target returns the bound block id.
func (s *State) Target() (block.ID, bool) {
	return s.target, s.open
}

// BoundTo reports whether the menu is open for id.
func (s *State) BoundTo(id block.ID) bool {
	return s.open && s.target == id
}

// Active returns the highlighted index.
func (s *State) Active() int { return s.active }

// Move shifts the selection cyclically by delta.
func (s *State) Move(delta int) {
	if !s.open {
		return
	}
	n := len(Items)
	s.active = ((s.active+delta)%n + n) % n
}

// Hover highlights index i without committing. Out-of-range indices are ignored.
func (s *State) Hover(i int) bool {
	if !s.open || i < 0 || i >= len(Items) {
		return false
	}
	s.active = i
	return true
}

// Selected returns the highlighted item.
func (s *State) Selected() (Item, bool) {
	if !s.open {
		return Item{}, false
	}
	return Items[s.active], true
}

// KindFor returns the kind a block gets when item is chosen: menu choices
// always reset to the defaults (level 2 heading, unchecked task).
func KindFor(item Item) block.Kind {
	return block.DefaultKind(item.Type)
}
