package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/focusguard/internal/apperr"
	"github.com/starford/focusguard/internal/block"
	"github.com/starford/focusguard/internal/saver"
)

func newModel(t *testing.T, md string, opts ...Option) *Model {
	t.Helper()
	opts = append([]Option{WithClipboard(func() (string, error) { return "", errors.New("no clipboard") })}, opts...)
	return New(md, opts...)
}

func press(m *Model, keys ...tea.KeyType) {
	for _, k := range keys {
		m.Update(tea.KeyMsg{Type: k})
	}
}

func typeText(m *Model, s string) {
	for _, r := range s {
		if r == ' ' {
			m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			continue
		}
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestTypingUpdatesDocument(t *testing.T) {
	m := newModel(t, "")
	typeText(m, "hello world")
	if got := m.Editor().Markdown(); got != "hello world\n" {
		t.Errorf("markdown = %q", got)
	}
	if _, caret := m.Cursor(); caret != 11 {
		t.Errorf("caret = %d", caret)
	}
	if !strings.Contains(m.View(), "hello world") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestInlineHeading(t *testing.T) {
	m := newModel(t, "")
	typeText(m, "## Plan")
	blocks := m.Editor().Blocks()
	if blocks[0].Type() != block.TypeHeading || blocks[0].Level() != 2 || blocks[0].Content != "Plan" {
		t.Errorf("block = %+v", blocks[0])
	}
	if !strings.Contains(m.View(), "## Plan") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestEnterSplitsAndMovesCursor(t *testing.T) {
	m := newModel(t, "abcd\n")
	press(m, tea.KeyRight, tea.KeyRight, tea.KeyEnter)
	if got := m.Editor().Markdown(); got != "ab\ncd\n" {
		t.Errorf("markdown = %q", got)
	}
	id, caret := m.Cursor()
	if id != m.Editor().Blocks()[1].ID || caret != 0 {
		t.Errorf("cursor = %v:%d", id, caret)
	}
}

func TestBackspaceEditsThenMerges(t *testing.T) {
	m := newModel(t, "ab\ncd\n")
	press(m, tea.KeyDown) // end of "ab" after the fallback
	press(m, tea.KeyDown) // into "cd" at 0
	press(m, tea.KeyBackspace)
	if got := m.Editor().Markdown(); got != "abcd\n" {
		t.Fatalf("merge: markdown = %q", got)
	}
	press(m, tea.KeyBackspace)
	if got := m.Editor().Markdown(); got != "acd\n" {
		t.Errorf("char delete: markdown = %q", got)
	}
}

func TestDeleteForward(t *testing.T) {
	m := newModel(t, "ab\ncd\n")
	press(m, tea.KeyEnd, tea.KeyDelete)
	if got := m.Editor().Markdown(); got != "abcd\n" {
		t.Errorf("markdown = %q", got)
	}
	press(m, tea.KeyHome, tea.KeyDelete)
	if got := m.Editor().Markdown(); got != "bcd\n" {
		t.Errorf("markdown = %q", got)
	}
}

func TestMenuFlow(t *testing.T) {
	m := newModel(t, "")
	typeText(m, "/")
	view := m.View()
	if !strings.Contains(view, "Turn into") || !strings.Contains(view, "Heading") {
		t.Fatalf("menu not shown:\n%s", view)
	}
	press(m, tea.KeyDown, tea.KeyEnter)
	b := m.Editor().Blocks()[0]
	if b.Type() != block.TypeTask || b.Content != "" {
		t.Errorf("block = %+v", b)
	}
	if strings.Contains(m.View(), "Turn into") {
		t.Error("menu still shown")
	}
}

func TestMenuClickSelects(t *testing.T) {
	m := newModel(t, "")
	typeText(m, "/")
	m.View()
	var y = -1
	for _, r := range m.rows {
		if r.menuItem == 2 {
			y = r.screen
		}
	}
	if y < 0 {
		t.Fatal("menu rows not recorded")
	}
	m.Update(tea.MouseMsg{X: 4, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if got := m.Editor().Blocks()[0].Type(); got != block.TypeBullet {
		t.Errorf("type = %v", got)
	}
}

func TestPasteFromClipboard(t *testing.T) {
	m := newModel(t, "intro\n", WithClipboard(func() (string, error) { return " one\n- [ ] two", nil }))
	press(m, tea.KeyEnd, tea.KeyCtrlV)
	if got := m.Editor().Markdown(); got != "intro one\n- [ ] two\n" {
		t.Errorf("markdown = %q", got)
	}
}

func TestPasteClipboardError(t *testing.T) {
	m := newModel(t, "x\n")
	press(m, tea.KeyCtrlV)
	if !strings.Contains(m.View(), "clipboard") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestToggleTask(t *testing.T) {
	m := newModel(t, "- [ ] ship\ntext\n")
	press(m, tea.KeyCtrlT)
	if got := m.Editor().Markdown(); got != "- [x] ship\ntext\n" {
		t.Errorf("markdown = %q", got)
	}
	press(m, tea.KeyDown, tea.KeyDown, tea.KeyCtrlT)
	if !strings.Contains(m.View(), "not a task") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestMoveBlockWithKeys(t *testing.T) {
	m := newModel(t, "a\nb\nc\n")
	press(m, tea.KeyCtrlDown)
	if got := m.Editor().Markdown(); got != "b\na\nc\n" {
		t.Errorf("markdown = %q", got)
	}
	id, _ := m.Cursor()
	if b, _ := m.Editor().Block(id); b.Content != "a" {
		t.Errorf("cursor on %q", b.Content)
	}
	press(m, tea.KeyCtrlUp)
	if got := m.Editor().Markdown(); got != "a\nb\nc\n" {
		t.Errorf("markdown = %q", got)
	}
}

func TestMouseDragReorders(t *testing.T) {
	m := newModel(t, "a\nb\nc\n")
	m.View()
	rowOf := func(content string) int {
		for _, r := range m.rows {
			if b, ok := m.Editor().Block(r.id); ok && r.id != 0 && b.Content == content {
				return r.screen
			}
		}
		t.Fatalf("no row for %q", content)
		return 0
	}
	m.Update(tea.MouseMsg{X: 0, Y: rowOf("a"), Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	m.Update(tea.MouseMsg{X: 3, Y: rowOf("c"), Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
	if !strings.Contains(m.View(), "─") {
		t.Error("no drop indicator")
	}
	m.Update(tea.MouseMsg{X: 3, Y: rowOf("c"), Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
	if got := m.Editor().Markdown(); got != "b\nc\na\n" {
		t.Errorf("markdown = %q", got)
	}
}

func TestMouseClickFocuses(t *testing.T) {
	m := newModel(t, "a\n- [ ] b\n")
	m.View()
	task := m.Editor().Blocks()[1].ID
	for _, r := range m.rows {
		if r.id == task {
			m.Update(tea.MouseMsg{X: 3, Y: r.screen, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
		}
	}
	if id, _ := m.Cursor(); id != task {
		t.Errorf("cursor = %v, want %v", id, task)
	}
	if got := m.Editor().Markdown(); got != "a\n- [x] b\n" {
		t.Errorf("checkbox click: markdown = %q", got)
	}
}

func TestAppendBlock(t *testing.T) {
	m := newModel(t, "a\n")
	press(m, tea.KeyCtrlN)
	typeText(m, "b")
	if got := m.Editor().Markdown(); got != "a\nb\n" {
		t.Errorf("markdown = %q", got)
	}
}

func TestReadOnly(t *testing.T) {
	m := newModel(t, "a\nb\n", WithReadOnly(true), WithTitle("2026-10-10"))
	typeText(m, "zz")
	press(m, tea.KeyEnter, tea.KeyCtrlT)
	if got := m.Editor().Markdown(); got != "a\nb\n" {
		t.Errorf("markdown = %q", got)
	}
	view := m.View()
	if !strings.Contains(view, "read-only") || !strings.Contains(view, "2026-10-10") {
		t.Errorf("view:\n%s", view)
	}
	if strings.Contains(view, "Add a block") {
		t.Error("add row shown read-only")
	}
	press(m, tea.KeyDown)
	if id, _ := m.Cursor(); id != m.Editor().Blocks()[1].ID {
		t.Error("arrow did not move between blocks")
	}
}

func TestChangesScheduleSave(t *testing.T) {
	var saved []string
	s := saver.New(saver.StoreFunc(func(_ context.Context, md string) error {
		saved = append(saved, md)
		return nil
	}))
	m := newModel(t, "", WithSaver(s))
	typeText(m, "x")
	if !s.Pending() {
		t.Fatal("no save scheduled")
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(saved) != 1 || saved[0] != "x\n" {
		t.Errorf("saved = %q", saved)
	}
}

func TestStatusAndStreakMessages(t *testing.T) {
	m := newModel(t, "")
	m.Update(StatusMsg{Status: saver.Saved})
	m.Update(StreakMsg{Current: 4})
	view := m.View()
	if !strings.Contains(view, "Saved") || !strings.Contains(view, "streak 4") {
		t.Errorf("view:\n%s", view)
	}
	m.Update(StatusMsg{Status: saver.SaveFailed, Err: errors.New("offline")})
	if !strings.Contains(m.View(), "Save failed: offline") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestQuit(t *testing.T) {
	m := newModel(t, "")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c did not quit")
	}
}

func TestScrollKeepsCursorVisible(t *testing.T) {
	var lines []string
	for range 30 {
		lines = append(lines, "line")
	}
	m := newModel(t, strings.Join(lines, "\n"))
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	for range 20 {
		press(m, tea.KeyDown, tea.KeyDown)
	}
	m.View()
	id, _ := m.Cursor()
	found := false
	for _, r := range m.rows {
		found = found || r.id == id
	}
	if !found {
		t.Error("cursor row scrolled out of view")
	}
}

func TestHelpFollowsMode(t *testing.T) {
	m := newModel(t, "a\n")
	if view := m.View(); !strings.Contains(view, "ctrl+s") || !strings.Contains(view, "quit") {
		t.Errorf("editable help:\n%s", view)
	}
	ro := newModel(t, "a\n", WithReadOnly(true))
	view := ro.View()
	if strings.Contains(view, "ctrl+s") || strings.Contains(view, "toggle") {
		t.Errorf("read-only help lists editing keys:\n%s", view)
	}
	if !strings.Contains(view, "scroll") {
		t.Errorf("read-only help:\n%s", view)
	}
}

// idleSaver never fires on its own within a test.
func idleSaver(t *testing.T) *saver.Saver {
	t.Helper()
	sv := saver.New(saver.StoreFunc(func(context.Context, string) error { return nil }), saver.WithDelay(time.Hour))
	t.Cleanup(func() { sv.Discard() })
	return sv
}

func TestReloadReplacesCleanDocument(t *testing.T) {
	m := newModel(t, "old\n", WithSaver(idleSaver(t)))
	applied := false
	m.Update(ReloadMsg{Content: "## Today's focus\n- [ ] buy milk\n", Apply: func() { applied = true }})
	if got := m.Editor().Markdown(); got != "## Today's focus\n- [ ] buy milk\n" {
		t.Errorf("markdown = %q", got)
	}
	if !applied {
		t.Error("Apply not called")
	}
	if !strings.Contains(m.View(), "buy milk") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestReloadWaitsForUnsavedEdits(t *testing.T) {
	sv := idleSaver(t)
	m := newModel(t, "a\n", WithSaver(sv))
	typeText(m, "b")
	if !sv.Pending() {
		t.Fatal("edit not scheduled")
	}
	applied := false
	m.Update(ReloadMsg{Content: "remote\n", Apply: func() { applied = true }})
	if got := m.Editor().Markdown(); got == "remote\n" || applied {
		t.Errorf("reload replaced unsaved edits: %q applied=%v", got, applied)
	}

	m.Update(StatusMsg{Status: saver.SaveFailed, Err: errors.New("offline")})
	sv.Discard()
	m.Update(ReloadMsg{Content: "remote\n"})
	if got := m.Editor().Markdown(); got == "remote\n" {
		t.Error("reload replaced content whose save failed")
	}
}

func TestConflictOffersReload(t *testing.T) {
	sv := idleSaver(t)
	applied := false
	m := newModel(t, "mine\n",
		WithSaver(sv),
		WithReload(func(context.Context) (ReloadMsg, error) {
			return ReloadMsg{Content: "theirs\n", Apply: func() { applied = true }}, nil
		}),
	)
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR}); cmd != nil {
		t.Fatal("reload offered without a conflict")
	}

	typeText(m, "x")
	conflict := fmt.Errorf("saver: %w: %w", apperr.ErrSaveFailed, apperr.ErrConflict)
	m.Update(StatusMsg{Status: saver.SaveFailed, Err: conflict})
	view := m.View()
	if !strings.Contains(view, "Changed elsewhere") || !strings.Contains(view, "ctrl+r") {
		t.Fatalf("view:\n%s", view)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	if cmd == nil {
		t.Fatal("ctrl+r did nothing after a conflict")
	}
	m.Update(cmd())
	if got := m.Editor().Markdown(); got != "theirs\n" {
		t.Errorf("markdown = %q", got)
	}
	if !applied || sv.Pending() {
		t.Errorf("applied=%v pending=%v", applied, sv.Pending())
	}
	if strings.Contains(m.View(), "Changed elsewhere") {
		t.Error("conflict still shown after reload")
	}
}
