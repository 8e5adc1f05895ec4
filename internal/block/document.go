package block

import (
	"errors"
	"fmt"
	"slices"

	"github.com/starford/focusguard/internal/apperr"
)

// ErrWrongType is returned when an operation needs a specific variant.
var ErrWrongType = errors.New("block: wrong type")

// Side selects where Move places a block relative to its anchor.
type Side int

const (
	Before Side = iota
	After
)

func (s Side) String() string {
	if s == Before {
		return "before"
	}
	return "after"
}

// Document is an ordered, never-empty sequence of blocks.
//
// Blocks live in an arena keyed by id; order holds the display order.
// Lookups by id are O(1), structural edits are O(n) over order, which is
// fine for the tens of blocks a daily note holds. A Document is not safe
// for concurrent use.
type Document struct {
	blocks map[ID]*Block
	order  []ID
	lastID ID
}

// NewDocument returns a document holding one empty paragraph.
func NewDocument() *Document {
	d := &Document{blocks: make(map[ID]*Block)}
	d.ensureNonEmpty()
	return d
}

func notFound(id ID) error {
	return fmt.Errorf("block: %s: %w", id, apperr.ErrNotFound)
}

func (d *Document) nextID() ID {
	d.lastID++
	return d.lastID
}

func (d *Document) add(b Block) *Block {
	b.ID = d.nextID()
	b.Kind = normalize(b.Kind)
	p := &b
	d.blocks[b.ID] = p
	return p
}

func (d *Document) ensureNonEmpty() {
	if len(d.order) > 0 {
		return
	}
	p := d.add(New(Paragraph{}, ""))
	d.order = append(d.order, p.ID)
}

// Replace swaps the whole sequence for blocks, assigning fresh ids.
// Ids already handed out are never reused.
func (d *Document) Replace(blocks []Block) {
	clear(d.blocks)
	d.order = d.order[:0]
	for _, b := range blocks {
		p := d.add(b)
		d.order = append(d.order, p.ID)
	}
	d.ensureNonEmpty()
}

// Len returns the number of blocks.
func (d *Document) Len() int { return len(d.order) }

// IDs returns the ids in display order.
func (d *Document) IDs() []ID { return slices.Clone(d.order) }

// Blocks returns copies of all blocks in display order.
func (d *Document) Blocks() []Block {
	out := make([]Block, len(d.order))
	for i, id := range d.order {
		out[i] = *d.blocks[id]
	}
	return out
}

// Block returns a copy of the block with the given id.
func (d *Document) Block(id ID) (Block, bool) {
	p, ok := d.blocks[id]
	if !ok {
		return Block{}, false
	}
	return *p, true
}

// Index returns the display position of id, or -1.
func (d *Document) Index(id ID) int {
	if _, ok := d.blocks[id]; !ok {
		return -1
	}
	return slices.Index(d.order, id)
}

// At returns the block at display position i.
func (d *Document) At(i int) (Block, bool) {
	if i < 0 || i >= len(d.order) {
		return Block{}, false
	}
	return *d.blocks[d.order[i]], true
}

// Prev returns the block displayed before id.
func (d *Document) Prev(id ID) (Block, bool) {
	i := d.Index(id)
	if i <= 0 {
		return Block{}, false
	}
	return d.At(i - 1)
}

// Next returns the block displayed after id.
func (d *Document) Next(id ID) (Block, bool) {
	i := d.Index(id)
	if i < 0 {
		return Block{}, false
	}
	return d.At(i + 1)
}

// Last returns the final block.
func (d *Document) Last() Block {
	return *d.blocks[d.order[len(d.order)-1]]
}

// SetContent replaces the text of a block.
func (d *Document) SetContent(id ID, content string) error {
	p, ok := d.blocks[id]
	if !ok {
		return notFound(id)
	}
	p.Content = content
	return nil
}

// SetChecked updates the checkbox of a task block.
func (d *Document) SetChecked(id ID, checked bool) error {
	p, ok := d.blocks[id]
	if !ok {
		return notFound(id)
	}
	if _, isTask := p.Kind.(Task); !isTask {
		return fmt.Errorf("block: %s is a %s: %w", id, p.Type(), ErrWrongType)
	}
	p.Kind = Task{Checked: checked}
	return nil
}

// Append adds b at the end and returns its id.
func (d *Document) Append(b Block) ID {
	p := d.add(b)
	d.order = append(d.order, p.ID)
	return p.ID
}

// InsertAfter places b directly after afterID and returns the new id.
func (d *Document) InsertAfter(afterID ID, b Block) (ID, error) {
	i := d.Index(afterID)
	if i < 0 {
		return 0, notFound(afterID)
	}
	p := d.add(b)
	d.order = slices.Insert(d.order, i+1, p.ID)
	return p.ID, nil
}

// Remove deletes a block. Removing the last block leaves one empty paragraph.
func (d *Document) Remove(id ID) error {
	i := d.Index(id)
	if i < 0 {
		return notFound(id)
	}
	d.order = slices.Delete(d.order, i, i+1)
	delete(d.blocks, id)
	d.ensureNonEmpty()
	return nil
}

// Convert changes the variant of a block in place. A block that already
// has type t keeps its fields; otherwise it gets DefaultKind(t). Content
// is preserved.
func (d *Document) Convert(id ID, t Type) error {
	p, ok := d.blocks[id]
	if !ok {
		return notFound(id)
	}
	if p.Type() != t {
		p.Kind = DefaultKind(t)
	}
	return nil
}

// SetKind replaces the variant and its fields explicitly.
func (d *Document) SetKind(id ID, k Kind) error {
	p, ok := d.blocks[id]
	if !ok {
		return notFound(id)
	}
	p.Kind = normalize(k)
	return nil
}

// Merge appends the content of sourceID to targetID and removes the source.
func (d *Document) Merge(targetID, sourceID ID) error {
	target, ok := d.blocks[targetID]
	if !ok {
		return notFound(targetID)
	}
	source, ok := d.blocks[sourceID]
	if !ok {
		return notFound(sourceID)
	}
	if targetID == sourceID {
		return fmt.Errorf("block: merge %s into itself", targetID)
	}
	target.Content += source.Content
	return d.Remove(sourceID)
}

// Split truncates the block at a rune offset and inserts the remainder as a
// new block right after it. Tasks and bullets continue the list (a new task
// starts unchecked); everything else continues as a paragraph.
func (d *Document) Split(id ID, offset int) (ID, error) {
	p, ok := d.blocks[id]
	if !ok {
		return 0, notFound(id)
	}
	head, tail := SplitText(p.Content, offset)

	var kind Kind = Paragraph{}
	switch p.Type() {
	case TypeTask:
		kind = Task{}
	case TypeBullet:
		kind = Bullet{}
	}

	p.Content = head
	return d.InsertAfter(id, New(kind, tail))
}

// Move relocates id to sit directly before or after anchorID.
// Moving a block relative to itself is a no-op.
func (d *Document) Move(id, anchorID ID, side Side) error {
	from := d.Index(id)
	if from < 0 {
		return notFound(id)
	}
	if d.Index(anchorID) < 0 {
		return notFound(anchorID)
	}
	if id == anchorID {
		return nil
	}
	d.order = slices.Delete(d.order, from, from+1)
	to := slices.Index(d.order, anchorID)
	if side == After {
		to++
	}
	d.order = slices.Insert(d.order, to, id)
	return nil
}
