// Package block implements the editor's document model: typed content
// blocks stored in an arena keyed by id, plus a separate display order.
package block

import (
	"strconv"
	"unicode/utf8"
)

// ID identifies a block for the lifetime of a Document. IDs are assigned
// monotonically and never reused or serialized.
type ID uint64

func (id ID) String() string {
	return "b" + strconv.FormatUint(uint64(id), 10)
}

// Type is the closed set of block variants.
type Type int

const (
	TypeParagraph Type = iota
	TypeHeading
	TypeTask
	TypeBullet
)

var typeNames = [...]string{
	TypeParagraph: "paragraph",
	TypeHeading:   "heading",
	TypeTask:      "task",
	TypeBullet:    "bullet",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[t]
}

// MarshalText encodes the type by name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseType resolves a type name.
func ParseType(s string) (Type, bool) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), true
		}
	}
	return TypeParagraph, false
}

// Kind is the per-variant payload of a block. Fields that only make sense
// for one variant live on that variant, so a conversion can never carry a
// stale level or checkbox state along.
type Kind interface {
	Type() Type
	isKind()
}

// Heading is a section title of level 1 to 3.
type Heading struct {
	Level int
}

// Task is a checkbox item.
type Task struct {
	Checked bool
}

// Bullet is a plain list item.
type Bullet struct{}

// Paragraph is free text.
type Paragraph struct{}

func (Heading) Type() Type   { return TypeHeading }
func (Task) Type() Type      { return TypeTask }
func (Bullet) Type() Type    { return TypeBullet }
func (Paragraph) Type() Type { return TypeParagraph }

func (Heading) isKind()   {}
func (Task) isKind()      {}
func (Bullet) isKind()    {}
func (Paragraph) isKind() {}

// Heading level bounds.
const (
	MinLevel     = 1
	MaxLevel     = 3
	DefaultLevel = 2
)

// ClampLevel forces a heading level into [MinLevel, MaxLevel].
func ClampLevel(level int) int {
	switch {
	case level < MinLevel:
		return MinLevel
	case level > MaxLevel:
		return MaxLevel
	}
	return level
}

// DefaultKind returns the kind a block gets when it is converted to t
// without any prior state: level 2 headings and unchecked tasks.
func DefaultKind(t Type) Kind {
	switch t {
	case TypeHeading:
		return Heading{Level: DefaultLevel}
	case TypeTask:
		return Task{}
	case TypeBullet:
		return Bullet{}
	default:
		return Paragraph{}
	}
}

func normalize(k Kind) Kind {
	switch v := k.(type) {
	case nil:
		return Paragraph{}
	case Heading:
		return Heading{Level: ClampLevel(v.Level)}
	}
	return k
}

// Block is one unit of document structure.
type Block struct {
	ID      ID
	Kind    Kind
	Content string
}

// New builds an unassigned block (ID zero). Documents assign the id on insert.
func New(kind Kind, content string) Block {
	return Block{Kind: normalize(kind), Content: content}
}

// Type reports the block's variant.
func (b Block) Type() Type {
	if b.Kind == nil {
		return TypeParagraph
	}
	return b.Kind.Type()
}

// Level returns the heading level, or 0 for non-headings.
func (b Block) Level() int {
	if h, ok := b.Kind.(Heading); ok {
		return h.Level
	}
	return 0
}

// Checked reports the checkbox state of a task; false for other kinds.
func (b Block) Checked() bool {
	if t, ok := b.Kind.(Task); ok {
		return t.Checked
	}
	return false
}

// IsList reports whether Enter on this block continues a list.
func (b Block) IsList() bool {
	t := b.Type()
	return t == TypeTask || t == TypeBullet
}

// Placeholder is the hint a view shows inside an empty block.
func Placeholder(t Type) string {
	switch t {
	case TypeHeading:
		return "Heading"
	case TypeTask:
		return "Task"
	case TypeBullet:
		return "List item"
	default:
		return "Type '/' for commands"
	}
}

// TextLen counts caret positions (runes) in s.
func TextLen(s string) int {
	return utf8.RuneCountInString(s)
}

// SplitText cuts s at a rune offset, clamped to [0, TextLen(s)].
func SplitText(s string, offset int) (string, string) {
	if offset <= 0 {
		return "", s
	}
	i := 0
	for pos := range s {
		if i == offset {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}
