// Package markdown converts between Markdown text and block sequences.
//
// Parsing is total: every input yields a non-empty document, and any line
// that matches no block pattern becomes a paragraph. Blank lines carry no
// block and are regenerated on serialization (one blank line before every
// heading that is not the first line).
package markdown

import (
	"regexp"
	"strings"

	"github.com/starford/focusguard/internal/block"
)

var (
	headingRe = regexp.MustCompile(`^(#{1,3})\s+(.*)`)
	taskRe    = regexp.MustCompile(`^-\s+\[([ xX])\]\s*(.*)`)
	bulletRe  = regexp.MustCompile(`^-\s+(.*)`)
)

// ClassifyLine turns one line of Markdown into an unassigned block.
// It reports false for blank lines.
func ClassifyLine(line string) (block.Block, bool) {
	trimmed := strings.TrimRight(line, " \t\r\n\v\f")

	if m := headingRe.FindStringSubmatch(trimmed); m != nil {
		return block.New(block.Heading{Level: len(m[1])}, m[2]), true
	}
	if m := taskRe.FindStringSubmatch(trimmed); m != nil {
		return block.New(block.Task{Checked: m[1] != " "}, m[2]), true
	}
	if m := bulletRe.FindStringSubmatch(trimmed); m != nil {
		return block.New(block.Bullet{}, m[1]), true
	}
	if trimmed == "" {
		return block.Block{}, false
	}
	return block.New(block.Paragraph{}, trimmed), true
}

// ParseBlocks classifies every line of text. The result is never empty.
func ParseBlocks(text string) []block.Block {
	var out []block.Block
	for _, line := range strings.Split(text, "\n") {
		if b, ok := ClassifyLine(line); ok {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		out = append(out, block.New(block.Paragraph{}, ""))
	}
	return out
}

// Parse builds a fresh document from text.
func Parse(text string) *block.Document {
	d := block.NewDocument()
	d.Replace(ParseBlocks(text))
	return d
}

// FormatLine renders a single block without surrounding blank lines.
func FormatLine(b block.Block) string {
	switch k := b.Kind.(type) {
	case block.Heading:
		return strings.Repeat("#", block.ClampLevel(k.Level)) + " " + b.Content
	case block.Task:
		if k.Checked {
			return "- [x] " + b.Content
		}
		return "- [ ] " + b.Content
	case block.Bullet:
		return "- " + b.Content
	default:
		return b.Content
	}
}

// SerializeBlocks renders blocks as Markdown with exactly one trailing newline.
func SerializeBlocks(blocks []block.Block) string {
	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 && b.Type() == block.TypeHeading {
			sb.WriteByte('\n')
		}
		sb.WriteString(FormatLine(b))
		sb.WriteByte('\n')
	}
	if sb.Len() == 0 {
		return "\n"
	}
	return sb.String()
}

// Serialize renders a document as Markdown.
func Serialize(d *block.Document) string {
	return SerializeBlocks(d.Blocks())
}
