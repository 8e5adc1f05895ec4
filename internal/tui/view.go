package tui

import (
	"fmt"
	"strings"

	"github.com/starford/focusguard/internal/block"
	"github.com/starford/focusguard/internal/menu"
	"github.com/starford/focusguard/internal/saver"
)

const (
	gutterWidth   = 2
	checkboxWidth = 4
	headerLines   = 2
	footerLines   = 2
)

// rowRef says what a body line shows, for mouse hit-testing.
type rowRef struct {
	id       block.ID
	menuItem int
	add      bool
	screen   int
}

func blankRow() rowRef { return rowRef{menuItem: -1} }

// View implements tea.Model.
func (m *Model) View() string {
	var body []string
	var refs []rowRef
	push := func(line string, ref rowRef) {
		body = append(body, line)
		refs = append(refs, ref)
	}

	target, side, dropping := m.ed.DropTarget()
	cursorLine := 0
	for _, b := range m.blocks {
		if dropping && target == b.ID && side == block.Before {
			push(m.dropLine(), blankRow())
		}
		if b.ID == m.cursor {
			cursorLine = len(body)
		}
		push(m.renderBlock(b), rowRef{id: b.ID, menuItem: -1})
		if dropping && target == b.ID && side == block.After {
			push(m.dropLine(), blankRow())
		}
		if m.menu.open && m.menu.anchor == b.ID {
			for i, line := range strings.Split(m.renderMenu(), "\n") {
				ref := blankRow()
				// Border and label take the first two lines.
				if item := i - 2; item >= 0 && item < len(m.menu.items) {
					ref.menuItem = item
				}
				push(strings.Repeat(" ", gutterWidth)+line, ref)
			}
		}
	}
	if !m.ed.ReadOnly() {
		push(m.styles.Hint.Render("  + Add a block"), rowRef{add: true, menuItem: -1})
	}

	// Keep the cursor line on screen.
	if h := m.bodyHeight(); h > 0 {
		if cursorLine < m.top {
			m.top = cursorLine
		}
		if cursorLine >= m.top+h {
			m.top = cursorLine - h + 1
		}
		m.top = min(m.top, max(len(body)-h, 0))
		end := min(m.top+h, len(body))
		body, refs = body[m.top:end], refs[m.top:end]
	} else {
		m.top = 0
	}
	for i := range refs {
		refs[i].screen = headerLines + i
	}
	m.rows = refs

	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n\n")
	sb.WriteString(strings.Join(body, "\n"))
	sb.WriteString("\n\n")
	sb.WriteString(m.renderFooter())
	return sb.String()
}

func (m *Model) bodyHeight() int {
	if m.height <= 0 {
		return 0
	}
	return max(m.height-headerLines-footerLines, 1)
}

func (m *Model) rowAt(y int) (rowRef, bool) {
	for _, r := range m.rows {
		if r.screen == y {
			return r, true
		}
	}
	return rowRef{}, false
}

func (m *Model) renderHeader() string {
	parts := []string{m.styles.Title.Render("FocusGuard")}
	if m.title != "" {
		parts = append(parts, m.styles.Date.Render(m.title))
	}
	if m.ed.ReadOnly() {
		parts = append(parts, m.styles.Badge.Render("read-only"))
	}
	if m.streak >= 0 {
		parts = append(parts, m.styles.Streak.Render(fmt.Sprintf("streak %d", m.streak)))
	}
	return strings.Join(parts, "  ")
}

func (m *Model) renderFooter() string {
	var status string
	switch m.status {
	case saver.Saving:
		status = m.styles.Help.Render("Saving…")
	case saver.Saved:
		status = m.styles.Saved.Render("Saved")
	case saver.SaveFailed:
		msg := "Save failed"
		if m.conflict {
			msg = "Changed elsewhere, not saved"
		} else if m.statusErr != nil {
			msg += ": " + m.statusErr.Error()
		}
		status = m.styles.Failed.Render(msg)
	}
	if m.flash != "" {
		if status != "" {
			status += "  "
		}
		status += m.styles.Badge.Render(m.flash)
	}

	help := m.help.View(m.keys)
	if status == "" {
		return help
	}
	return status + "  " + help
}

func (m *Model) renderBlock(b block.Block) string {
	focused := b.ID == m.cursor
	src, dragging := m.ed.Dragging()

	gutter := "  "
	switch {
	case dragging && src == b.ID:
		gutter = m.styles.Drop.Render("↕ ")
	case focused:
		gutter = m.styles.Gutter.Render("⋮ ")
	}

	var prefix string
	text := m.renderText(b, focused)
	switch b.Type() {
	case block.TypeHeading:
		prefix = m.styles.Heading.Render(strings.Repeat("#", b.Level())) + " "
		if b.Content != "" {
			text = m.styles.Heading.Render(text)
		}
	case block.TypeTask:
		box := "[ ]"
		if b.Checked() {
			box = "[x]"
			if b.Content != "" {
				text = m.styles.Done.Render(text)
			}
		}
		prefix = m.styles.Checkbox.Render(box) + " "
	case block.TypeBullet:
		prefix = m.styles.Bullet.Render("•") + " "
	}
	return gutter + prefix + text
}

// renderText draws the content with the caret and the empty-block hint.
func (m *Model) renderText(b block.Block, focused bool) string {
	showCaret := focused && !m.ed.ReadOnly()
	if b.Content == "" {
		hint := ""
		if focused || b.Type() != block.TypeParagraph {
			hint = m.styles.Hint.Render(block.Placeholder(b.Type()))
		}
		if showCaret {
			return m.styles.Caret.Render(" ") + hint
		}
		return hint
	}
	if !showCaret {
		return b.Content
	}
	head, tail := block.SplitText(b.Content, m.caret)
	r := []rune(tail)
	if len(r) == 0 {
		return head + m.styles.Caret.Render(" ")
	}
	return head + m.styles.Caret.Render(string(r[0])) + string(r[1:])
}

func (m *Model) renderMenu() string {
	lines := []string{m.styles.Help.Render(menu.Label)}
	for i, it := range m.menu.items {
		line := fmt.Sprintf("%s  %-8s %s", it.Icon, it.Label, it.Desc)
		if i == m.menu.active {
			lines = append(lines, m.styles.MenuSel.Render(line))
		} else {
			lines = append(lines, m.styles.MenuItem.Render(line))
		}
	}
	return m.styles.Menu.Render(strings.Join(lines, "\n"))
}

func (m *Model) dropLine() string {
	return m.styles.Drop.Render(strings.Repeat(" ", gutterWidth) + strings.Repeat("─", 24))
}
