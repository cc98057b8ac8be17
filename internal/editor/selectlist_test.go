package editor

import "testing"

func TestSelectListMoveWraps(t *testing.T) {
	l := newSelectList([]Item{{Label: "a"}, {Label: "b"}, {Label: "c"}})
	l.moveUp()
	if sel, ok := l.selected(); !ok || sel.Label != "c" {
		t.Fatalf("moveUp from 0 should wrap to last item, got %+v ok=%v", sel, ok)
	}
	l.moveDown()
	if sel, ok := l.selected(); !ok || sel.Label != "a" {
		t.Fatalf("moveDown from last should wrap to first item, got %+v ok=%v", sel, ok)
	}
}

func TestSelectListEmptyIsNoop(t *testing.T) {
	l := newSelectList(nil)
	l.moveUp()
	l.moveDown()
	if _, ok := l.selected(); ok {
		t.Fatalf("empty list should never report a selected item")
	}
}

func TestSelectListRenderPadsAndHighlights(t *testing.T) {
	l := newSelectList([]Item{{Label: "foo"}, {Label: "bar"}})
	rows := l.render(10, func(s string) string { return "[" + s + "]" })
	if len(rows) != 2 {
		t.Fatalf("expected 2 rendered rows, got %d", len(rows))
	}
	if rows[0][0] != '[' {
		t.Fatalf("selected row (cursor=0) should be wrapped by the highlight style, got %q", rows[0])
	}
	if rows[1][0] == '[' {
		t.Fatalf("non-selected row should not be highlighted, got %q", rows[1])
	}
}

func TestPadOrTruncateWidenAndShrink(t *testing.T) {
	if got := padOrTruncate("ab", 5); got != "ab   " {
		t.Fatalf("padOrTruncate widen = %q", got)
	}
	if got := padOrTruncate("abcdef", 3); visibleWidth(got) != 3 {
		t.Fatalf("padOrTruncate shrink should fit within width, got %q (width %d)", got, visibleWidth(got))
	}
}
