package editor

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/starford/focusguard/internal/apperr"
	"github.com/starford/focusguard/internal/block"
	"github.com/starford/focusguard/internal/menu"
)

// recorder is a View that logs calls in order.
type recorder struct {
	calls   []string
	renders int
	focus   []FocusRequest
	menu    bool
	active  int
}

func (r *recorder) Render(blocks []block.Block) {
	r.renders++
	r.calls = append(r.calls, fmt.Sprintf("render(%d)", len(blocks)))
}

func (r *recorder) Focus(req FocusRequest) {
	r.focus = append(r.focus, req)
	r.calls = append(r.calls, "focus")
}

func (r *recorder) ShowMenu(_ block.ID, _ []menu.Item, active int) {
	r.menu = true
	r.active = active
}

func (r *recorder) HideMenu() { r.menu = false }

func (r *recorder) reset() {
	r.calls = nil
	r.renders = 0
	r.focus = nil
}

type harness struct {
	*Editor
	view    *recorder
	changes []string
}

func newHarness(t *testing.T, md string) *harness {
	t.Helper()
	h := &harness{view: &recorder{}}
	h.Editor = New(WithView(h.view))
	h.OnChange(func(s string) {
		h.changes = append(h.changes, s)
		h.view.calls = append(h.view.calls, "change")
	})
	h.Load(md)
	h.view.reset()
	return h
}

func (h *harness) id(t *testing.T, i int) block.ID {
	t.Helper()
	blocks := h.Blocks()
	if i >= len(blocks) {
		t.Fatalf("no block %d in %d blocks", i, len(blocks))
	}
	return blocks[i].ID
}

func (h *harness) lastFocus(t *testing.T) FocusRequest {
	t.Helper()
	if len(h.view.focus) == 0 {
		t.Fatal("no focus request")
	}
	return h.view.focus[len(h.view.focus)-1]
}

func TestLoadDoesNotEmitChange(t *testing.T) {
	h := newHarness(t, "# Day\n- [ ] one\n")
	if len(h.changes) != 0 {
		t.Errorf("changes after load = %d", len(h.changes))
	}
	if got := h.Markdown(); got != "# Day\n- [ ] one\n" {
		t.Errorf("markdown = %q", got)
	}
}

func TestTypingEmitsOncePerEdit(t *testing.T) {
	h := newHarness(t, "")
	id := h.id(t, 0)
	for _, s := range []string{"h", "he", "hey"} {
		if err := h.ContentChanged(id, s); err != nil {
			t.Fatal(err)
		}
	}
	if len(h.changes) != 3 {
		t.Fatalf("changes = %d, want 3", len(h.changes))
	}
	if h.changes[2] != "hey\n" {
		t.Errorf("last change = %q", h.changes[2])
	}
	if h.view.renders != 0 {
		t.Errorf("plain typing re-rendered %d times", h.view.renders)
	}
}

func TestInlineConversion(t *testing.T) {
	h := newHarness(t, "")
	id := h.id(t, 0)
	if err := h.ContentChanged(id, "- [ ] buy milk"); err != nil {
		t.Fatal(err)
	}
	b, _ := h.Block(id)
	if b.Type() != block.TypeTask || b.Content != "buy milk" || b.Checked() {
		t.Errorf("block = %+v", b)
	}
	if len(h.changes) != 1 || h.changes[0] != "- [ ] buy milk\n" {
		t.Errorf("changes = %q", h.changes)
	}
	want := []string{"render(1)", "focus", "change"}
	if strings.Join(h.view.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", h.view.calls, want)
	}
	if f := h.lastFocus(t); f.Block != id || !f.AtEnd {
		t.Errorf("focus = %+v", f)
	}
}

func TestTypedBlockIsNotReconverted(t *testing.T) {
	h := newHarness(t, "- item\n")
	id := h.id(t, 0)
	if err := h.ContentChanged(id, "# not a heading"); err != nil {
		t.Fatal(err)
	}
	b, _ := h.Block(id)
	if b.Type() != block.TypeBullet || b.Content != "# not a heading" {
		t.Errorf("block = %+v", b)
	}
}

func TestEnterSplitsAndContinuesTask(t *testing.T) {
	h := newHarness(t, "- [x] buy milk\n")
	id := h.id(t, 0)
	handled, err := h.Key(KeyEvent{Block: id, Key: KeyEnter, Caret: 3})
	if err != nil || !handled {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	blocks := h.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d", len(blocks))
	}
	if blocks[0].Content != "buy" || !blocks[0].Checked() {
		t.Errorf("first = %+v", blocks[0])
	}
	if blocks[1].Type() != block.TypeTask || blocks[1].Checked() || blocks[1].Content != " milk" {
		t.Errorf("second = %+v", blocks[1])
	}
	if f := h.lastFocus(t); f.Block != blocks[1].ID || f.Caret != 0 || f.AtEnd {
		t.Errorf("focus = %+v", f)
	}
	if len(h.changes) != 1 {
		t.Errorf("changes = %d", len(h.changes))
	}
}

func TestEnterOnBlankListItemEndsList(t *testing.T) {
	h := newHarness(t, "- a\n")
	a := h.id(t, 0)
	if _, err := h.Key(KeyEvent{Block: a, Key: KeyEnter, Caret: 1}); err != nil {
		t.Fatal(err)
	}
	blank := h.id(t, 1)
	if b, _ := h.Block(blank); b.Type() != block.TypeBullet {
		t.Fatalf("continued type = %s", b.Type())
	}
	if _, err := h.Key(KeyEvent{Block: blank, Key: KeyEnter}); err != nil {
		t.Fatal(err)
	}
	if len(h.Blocks()) != 2 {
		t.Errorf("blank enter created a block: %d", len(h.Blocks()))
	}
	if b, _ := h.Block(blank); b.Type() != block.TypeParagraph {
		t.Errorf("blank list item type = %s, want paragraph", b.Type())
	}
}

func TestEnterOnWhitespaceListItemCutsAtCaret(t *testing.T) {
	h := newHarness(t, "- [ ] a\n")
	task := h.id(t, 0)
	if err := h.ContentChanged(task, " "); err != nil {
		t.Fatal(err)
	}
	if b, _ := h.Block(task); b.Type() != block.TypeTask || b.Content != " " {
		t.Fatalf("before enter = %+v", b)
	}
	handled, err := h.Key(KeyEvent{Block: task, Key: KeyEnter, Caret: 0})
	if err != nil || !handled {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	b, _ := h.Block(task)
	if b.Type() != block.TypeParagraph || b.Content != "" {
		t.Errorf("demoted = %+v, want empty paragraph", b)
	}
	if len(h.Blocks()) != 1 {
		t.Errorf("blocks = %d", len(h.Blocks()))
	}
}

func TestEnterWithModifierIsUnhandled(t *testing.T) {
	h := newHarness(t, "text\n")
	handled, err := h.Key(KeyEvent{Block: h.id(t, 0), Key: KeyEnter, Mods: ModShift, Caret: 2})
	if err != nil || handled {
		t.Errorf("handled=%v err=%v", handled, err)
	}
	if len(h.changes) != 0 || len(h.Blocks()) != 1 {
		t.Error("shift+enter mutated the document")
	}
}

func TestBackspaceDemotesThenMerges(t *testing.T) {
	h := newHarness(t, "first\n## second\n")
	first, second := h.id(t, 0), h.id(t, 1)

	handled, err := h.Key(KeyEvent{Block: second, Key: KeyBackspace})
	if err != nil || !handled {
		t.Fatalf("demote: handled=%v err=%v", handled, err)
	}
	if b, _ := h.Block(second); b.Type() != block.TypeParagraph || b.Content != "second" {
		t.Fatalf("demoted = %+v", b)
	}
	if len(h.Blocks()) != 2 {
		t.Fatal("demotion must not merge")
	}

	if _, err := h.Key(KeyEvent{Block: second, Key: KeyBackspace}); err != nil {
		t.Fatal(err)
	}
	blocks := h.Blocks()
	if len(blocks) != 1 || blocks[0].Content != "firstsecond" {
		t.Fatalf("merged = %+v", blocks)
	}
	if f := h.lastFocus(t); f.Block != first || f.Caret != 5 {
		t.Errorf("focus = %+v, want caret 5 on first", f)
	}
	if len(h.changes) != 2 {
		t.Errorf("changes = %d, want 2", len(h.changes))
	}
}

func TestBackspaceBoundaryCountsRunes(t *testing.T) {
	h := newHarness(t, "héllo\nwörld\n")
	if _, err := h.Key(KeyEvent{Block: h.id(t, 1), Key: KeyBackspace}); err != nil {
		t.Fatal(err)
	}
	if f := h.lastFocus(t); f.Caret != 5 {
		t.Errorf("caret = %d, want 5", f.Caret)
	}
}

func TestBackspaceOnFirstParagraphUnhandled(t *testing.T) {
	h := newHarness(t, "only\n")
	handled, err := h.Key(KeyEvent{Block: h.id(t, 0), Key: KeyBackspace})
	if err != nil || handled {
		t.Errorf("handled=%v err=%v", handled, err)
	}
}

func TestBackspaceWithSelectionUnhandled(t *testing.T) {
	h := newHarness(t, "a\nb\n")
	handled, _ := h.Key(KeyEvent{Block: h.id(t, 1), Key: KeyBackspace, Selection: true})
	if handled || len(h.Blocks()) != 2 {
		t.Error("backspace over a selection must be left to the view")
	}
}

func TestDeleteAtEndMergesNext(t *testing.T) {
	h := newHarness(t, "ab\n- cd\n")
	a := h.id(t, 0)
	handled, err := h.Key(KeyEvent{Block: a, Key: KeyDelete, Caret: 2})
	if err != nil || !handled {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	blocks := h.Blocks()
	if len(blocks) != 1 || blocks[0].Content != "abcd" || blocks[0].Type() != block.TypeParagraph {
		t.Fatalf("blocks = %+v", blocks)
	}
	if f := h.lastFocus(t); f.Block != a || f.Caret != 2 {
		t.Errorf("focus = %+v", f)
	}
}

func TestDeleteMidTextUnhandled(t *testing.T) {
	h := newHarness(t, "ab\ncd\n")
	handled, _ := h.Key(KeyEvent{Block: h.id(t, 0), Key: KeyDelete, Caret: 1})
	if handled {
		t.Error("delete mid-text should be unhandled")
	}
}

func TestArrowNavigation(t *testing.T) {
	h := newHarness(t, "one\ntwo\n")
	one, two := h.id(t, 0), h.id(t, 1)

	handled, _ := h.Key(KeyEvent{Block: two, Key: KeyArrowUp, Caret: 0})
	if !handled {
		t.Fatal("arrow up at start unhandled")
	}
	if f := h.lastFocus(t); f.Block != one || !f.AtEnd {
		t.Errorf("up focus = %+v", f)
	}

	handled, _ = h.Key(KeyEvent{Block: one, Key: KeyArrowDown, Caret: 3})
	if !handled {
		t.Fatal("arrow down at end unhandled")
	}
	if f := h.lastFocus(t); f.Block != two || f.Caret != 0 || f.AtEnd {
		t.Errorf("down focus = %+v", f)
	}

	if handled, _ := h.Key(KeyEvent{Block: one, Key: KeyArrowUp}); handled {
		t.Error("arrow up on first block should be unhandled")
	}
	if handled, _ := h.Key(KeyEvent{Block: two, Key: KeyArrowDown, Caret: 1}); handled {
		t.Error("arrow down mid-text should be unhandled")
	}
	if len(h.changes) != 0 {
		t.Error("navigation emitted a change")
	}
}

func TestUnknownBlock(t *testing.T) {
	h := newHarness(t, "x\n")
	before := h.Markdown()
	if _, err := h.Key(KeyEvent{Block: 999, Key: KeyEnter}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("key err = %v", err)
	}
	if err := h.ContentChanged(999, "y"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("content err = %v", err)
	}
	if err := h.Paste(999, 0, "a\nb"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("paste err = %v", err)
	}
	if err := h.ToggleTask(999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("toggle err = %v", err)
	}
	if h.Markdown() != before || len(h.changes) != 0 {
		t.Error("unknown id mutated the document")
	}
}

func TestMenuFlow(t *testing.T) {
	h := newHarness(t, "")
	id := h.id(t, 0)
	if err := h.ContentChanged(id, "/"); err != nil {
		t.Fatal(err)
	}
	if m := h.Menu(); !m.Open || m.Target != id || m.Active != 0 {
		t.Fatalf("menu = %+v", m)
	}
	if !h.view.menu {
		t.Error("view not told to show the menu")
	}

	h.Key(KeyEvent{Block: id, Key: KeyArrowDown})
	h.Key(KeyEvent{Block: id, Key: KeyArrowDown})
	h.Key(KeyEvent{Block: id, Key: KeyArrowUp})
	if h.Menu().Active != 1 || h.view.active != 1 {
		t.Fatalf("active = %d (view %d), want 1", h.Menu().Active, h.view.active)
	}

	if handled, _ := h.Key(KeyEvent{Block: id, Key: KeyBackspace}); handled {
		t.Error("other keys are not handled while the menu is open")
	}

	changes := len(h.changes)
	handled, err := h.Key(KeyEvent{Block: id, Key: KeyEnter})
	if err != nil || !handled {
		t.Fatalf("select: handled=%v err=%v", handled, err)
	}
	b, _ := h.Block(id)
	if b.Type() != block.TypeTask || b.Content != "" || b.Checked() {
		t.Errorf("block = %+v", b)
	}
	if h.Menu().Open || h.view.menu {
		t.Error("menu still open after select")
	}
	if len(h.changes) != changes+1 {
		t.Errorf("select emitted %d changes", len(h.changes)-changes)
	}
	if f := h.lastFocus(t); f.Block != id || f.Caret != 0 {
		t.Errorf("focus = %+v", f)
	}
}

func TestMenuUpWrapsToLast(t *testing.T) {
	h := newHarness(t, "")
	id := h.id(t, 0)
	h.ContentChanged(id, "/")
	h.Key(KeyEvent{Block: id, Key: KeyArrowUp})
	if h.Menu().Active != len(menu.Items)-1 {
		t.Errorf("active = %d", h.Menu().Active)
	}
}

func TestMenuClosesOnDivergenceAndEscape(t *testing.T) {
	h := newHarness(t, "")
	id := h.id(t, 0)
	h.ContentChanged(id, "/")
	h.ContentChanged(id, "/x")
	if h.Menu().Open {
		t.Error("menu open after content diverged")
	}
	h.ContentChanged(id, "/")
	h.Key(KeyEvent{Block: id, Key: KeyEscape})
	if h.Menu().Open {
		t.Error("menu open after escape")
	}
	b, _ := h.Block(id)
	if b.Content != "/" {
		t.Errorf("escape changed content to %q", b.Content)
	}
}

func TestMenuHoverAndClickSelect(t *testing.T) {
	h := newHarness(t, "")
	id := h.id(t, 0)
	h.ContentChanged(id, "/")
	h.MenuHover(2)
	if h.Menu().Active != 2 {
		t.Fatalf("active = %d", h.Menu().Active)
	}
	if err := h.MenuSelect(0); err != nil {
		t.Fatal(err)
	}
	b, _ := h.Block(id)
	if b.Type() != block.TypeHeading || b.Level() != 2 {
		t.Errorf("block = %+v", b)
	}
}

func TestMenuReopenRebinds(t *testing.T) {
	h := newHarness(t, "a\nb\n")
	a, b := h.id(t, 0), h.id(t, 1)
	h.ContentChanged(a, "/")
	h.MenuHover(3)
	h.ContentChanged(b, "/")
	if m := h.Menu(); m.Target != b || m.Active != 0 {
		t.Errorf("menu = %+v", m)
	}
}

func TestPasteSingleLine(t *testing.T) {
	h := newHarness(t, "hello world\n")
	id := h.id(t, 0)
	if err := h.Paste(id, 6, "big "); err != nil {
		t.Fatal(err)
	}
	b, _ := h.Block(id)
	if b.Content != "hello big world" {
		t.Errorf("content = %q", b.Content)
	}
	if f := h.lastFocus(t); f.Caret != 10 {
		t.Errorf("caret = %d", f.Caret)
	}
	if len(h.changes) != 1 {
		t.Errorf("changes = %d", len(h.changes))
	}
}

func TestPasteSingleLineSkipsPatterns(t *testing.T) {
	h := newHarness(t, "")
	id := h.id(t, 0)
	h.Paste(id, 0, "# not converted")
	b, _ := h.Block(id)
	if b.Type() != block.TypeParagraph || b.Content != "# not converted" {
		t.Errorf("block = %+v", b)
	}
}

func TestPasteMultiLine(t *testing.T) {
	h := newHarness(t, "startEND\nafter\n")
	id := h.id(t, 0)
	err := h.Paste(id, 5, " one\r\n# Title\r\n\r\n- [x] done\r\nlast ")
	if err != nil {
		t.Fatal(err)
	}
	blocks := h.Blocks()
	want := []struct {
		typ     block.Type
		content string
	}{
		{block.TypeParagraph, "start one"},
		{block.TypeHeading, "Title"},
		{block.TypeParagraph, ""},
		{block.TypeTask, "done"},
		{block.TypeParagraph, "last END"},
		{block.TypeParagraph, "after"},
	}
	if len(blocks) != len(want) {
		t.Fatalf("blocks = %d, want %d", len(blocks), len(want))
	}
	for i, w := range want {
		if blocks[i].Type() != w.typ || blocks[i].Content != w.content {
			t.Errorf("block %d = %s %q, want %s %q", i, blocks[i].Type(), blocks[i].Content, w.typ, w.content)
		}
	}
	if !blocks[3].Checked() {
		t.Error("pasted task lost its checkbox")
	}
	if f := h.lastFocus(t); f.Block != blocks[4].ID || !f.AtEnd {
		t.Errorf("focus = %+v", f)
	}
	if len(h.changes) != 1 || h.view.renders != 1 {
		t.Errorf("changes=%d renders=%d", len(h.changes), h.view.renders)
	}
}

func TestDragReorder(t *testing.T) {
	h := newHarness(t, "A\nB\nC\n")
	a, c := h.id(t, 0), h.id(t, 2)
	box := Box{Top: 100, Height: 20}

	if err := h.DragStart(c); err != nil {
		t.Fatal(err)
	}
	side, err := h.DragOver(a, 105, box)
	if err != nil || side != block.Before {
		t.Fatalf("side=%s err=%v", side, err)
	}
	if over, s, ok := h.DropTarget(); !ok || over != a || s != block.Before {
		t.Errorf("drop target = %v %s %v", over, s, ok)
	}
	if err := h.Drop(a); err != nil {
		t.Fatal(err)
	}
	if got := h.Markdown(); got != "C\nA\nB\n" {
		t.Errorf("markdown = %q", got)
	}
	if _, dragging := h.Dragging(); dragging {
		t.Error("drag state survived the drop")
	}
	if len(h.changes) != 1 {
		t.Errorf("changes = %d", len(h.changes))
	}
}

func TestDragLowerHalfDropsAfter(t *testing.T) {
	h := newHarness(t, "A\nB\nC\n")
	a, b := h.id(t, 0), h.id(t, 1)
	h.DragStart(a)
	if side, _ := h.DragOver(b, 15, Box{Top: 0, Height: 20}); side != block.After {
		t.Fatalf("side = %s", side)
	}
	h.Drop(b)
	if got := h.Markdown(); got != "B\nA\nC\n" {
		t.Errorf("markdown = %q", got)
	}
}

func TestDropOntoItselfIsNoop(t *testing.T) {
	h := newHarness(t, "A\nB\n")
	a := h.id(t, 0)
	h.DragStart(a)
	h.DragOver(a, 0, Box{Height: 10})
	h.Drop(a)
	if h.Markdown() != "A\nB\n" || len(h.changes) != 0 {
		t.Error("self drop changed the document")
	}
}

func TestDragEndClearsState(t *testing.T) {
	h := newHarness(t, "A\nB\n")
	h.DragStart(h.id(t, 0))
	h.DragEnd()
	h.Drop(h.id(t, 1))
	if h.Markdown() != "A\nB\n" {
		t.Error("drop after drag end moved a block")
	}
}

func TestMoveBy(t *testing.T) {
	h := newHarness(t, "A\nB\nC\n")
	b := h.id(t, 1)
	if err := h.MoveBy(b, -1); err != nil {
		t.Fatal(err)
	}
	if got := h.Markdown(); got != "B\nA\nC\n" {
		t.Errorf("up: %q", got)
	}
	h.MoveBy(b, 1)
	h.MoveBy(b, 1)
	if got := h.Markdown(); got != "A\nC\nB\n" {
		t.Errorf("down twice: %q", got)
	}
	h.MoveBy(b, 1)
	if got := h.Markdown(); got != "A\nC\nB\n" {
		t.Errorf("past end: %q", got)
	}
}

func TestReadOnlySuppressesMutations(t *testing.T) {
	h := newHarness(t, "- [ ] a\nb\n")
	h.SetReadOnly(true)
	task, b := h.id(t, 0), h.id(t, 1)

	h.ContentChanged(b, "/")
	h.Paste(b, 0, "x\ny")
	h.ToggleTask(task)
	if handled, _ := h.Key(KeyEvent{Block: b, Key: KeyBackspace}); handled {
		t.Error("key handled in read-only mode")
	}
	h.DragStart(b)
	h.Drop(task)
	if _, err := h.AppendBlock(); !errors.Is(err, apperr.ErrReadOnly) {
		t.Errorf("append err = %v", err)
	}
	if h.Markdown() != "- [ ] a\nb\n" || len(h.changes) != 0 || h.Menu().Open {
		t.Errorf("read-only editor changed: %q", h.Markdown())
	}

	h.SetReadOnly(false)
	if err := h.ToggleTask(task); err != nil {
		t.Fatal(err)
	}
	if h.Markdown() != "- [x] a\nb\n" {
		t.Errorf("after toggle: %q", h.Markdown())
	}
}

func TestToggleTaskOnParagraph(t *testing.T) {
	h := newHarness(t, "text\n")
	if err := h.ToggleTask(h.id(t, 0)); !errors.Is(err, block.ErrWrongType) {
		t.Errorf("err = %v", err)
	}
}

func TestAppendBlockFocusesNewParagraph(t *testing.T) {
	h := newHarness(t, "# Day\n")
	id, err := h.AppendBlock()
	if err != nil {
		t.Fatal(err)
	}
	if last := h.Blocks()[1]; last.ID != id || last.Type() != block.TypeParagraph {
		t.Errorf("last = %+v", last)
	}
	if f := h.lastFocus(t); f.Block != id {
		t.Errorf("focus = %+v", f)
	}
}

func TestSessionIsUnique(t *testing.T) {
	if New().Session() == New().Session() {
		t.Error("two editors share a session id")
	}
}

func TestFocusRequestOffset(t *testing.T) {
	if got := (FocusRequest{AtEnd: true}).Offset("héllo"); got != 5 {
		t.Errorf("end = %d", got)
	}
	if got := (FocusRequest{Caret: 99}).Offset("ab"); got != 2 {
		t.Errorf("clamped = %d", got)
	}
}

func TestParseKey(t *testing.T) {
	for name, want := range map[string]Key{
		"Enter": KeyEnter, "backspace": KeyBackspace, "esc": KeyEscape,
		"ArrowUp": KeyArrowUp, "down": KeyArrowDown, "Tab": KeyOther,
	} {
		if got := ParseKey(name); got != want {
			t.Errorf("ParseKey(%q) = %s, want %s", name, got, want)
		}
	}
}
