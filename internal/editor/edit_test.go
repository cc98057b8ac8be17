package editor

import "testing"

func TestInsertTextAdvancesCursor(t *testing.T) {
	b := newBuffer()
	b.insertText("hi")
	if b.getText() != "hi" || b.cursor.Col != 2 {
		t.Fatalf("insertText: text=%q cursor=%+v", b.getText(), b.cursor)
	}
}

func TestInsertNewlineSplitsLine(t *testing.T) {
	b := newBuffer()
	b.insertText("abcd")
	b.cursor.Col = 2
	b.insertNewline()
	if got := b.getLines(); len(got) != 2 || got[0] != "ab" || got[1] != "cd" {
		t.Fatalf("insertNewline: lines=%+v", got)
	}
	if b.cursor != (Cursor{Line: 1, Col: 0}) {
		t.Fatalf("cursor after insertNewline = %+v", b.cursor)
	}
}

func TestBackspaceJoinsLines(t *testing.T) {
	b := newBuffer()
	b.setText("ab\ncd")
	b.cursor = Cursor{Line: 1, Col: 0}
	b.backspace()
	if got := b.getText(); got != "abcd" {
		t.Fatalf("backspace join = %q", got)
	}
	if b.cursor != (Cursor{Line: 0, Col: 2}) {
		t.Fatalf("cursor after join backspace = %+v", b.cursor)
	}
}

func TestBackspaceIsGraphemeAware(t *testing.T) {
	b := newBuffer()
	b.setText("a你")
	b.backspace()
	if b.getText() != "a" {
		t.Fatalf("backspace should remove one whole grapheme, got %q", b.getText())
	}
}

func TestForwardDeleteAtEndJoinsNextLine(t *testing.T) {
	b := newBuffer()
	b.setText("ab\ncd")
	b.cursor = Cursor{Line: 0, Col: 2}
	b.forwardDelete()
	if got := b.getText(); got != "abcd" {
		t.Fatalf("forwardDelete join = %q", got)
	}
}

func TestDeleteWordBackward(t *testing.T) {
	b := newBuffer()
	b.setText("foo bar")
	b.cursor.Col = len("foo bar")
	b.deleteWordBackward()
	if got := b.getText(); got != "foo " {
		t.Fatalf("deleteWordBackward = %q", got)
	}
}

func TestDeleteToLineStartAndEnd(t *testing.T) {
	b := newBuffer()
	b.setText("hello")
	b.cursor.Col = 3
	b.deleteToLineStart()
	if b.getText() != "lo" {
		t.Fatalf("deleteToLineStart = %q", b.getText())
	}

	b.setText("hello")
	b.cursor.Col = 2
	b.deleteToLineEnd()
	if b.getText() != "he" {
		t.Fatalf("deleteToLineEnd = %q", b.getText())
	}
}

func TestMoveWordLeftRight(t *testing.T) {
	b := newBuffer()
	b.setText("foo bar")
	b.cursor.Col = len("foo bar")
	b.moveWordLeft()
	if b.cursor.Col != len("foo ") {
		t.Fatalf("moveWordLeft landed at %d, want %d", b.cursor.Col, len("foo "))
	}
	b.moveWordLeft()
	if b.cursor.Col != 0 {
		t.Fatalf("second moveWordLeft should reach line start, got %d", b.cursor.Col)
	}
	b.moveWordRight()
	if b.cursor.Col != len("foo") {
		t.Fatalf("moveWordRight landed at %d, want %d", b.cursor.Col, len("foo"))
	}
}

func TestVerticalMovePreservesCellColumn(t *testing.T) {
	b := newBuffer()
	b.setText("hello\nhi\nworld")
	b.cursor = Cursor{Line: 0, Col: 4}
	b.verticalMove(1, 80)
	if b.cursor.Line != 1 {
		t.Fatalf("expected to move to line 1, got %+v", b.cursor)
	}
	if b.cursor.Col != len("hi") {
		t.Fatalf("short line should clamp column, got %d", b.cursor.Col)
	}
	b.verticalMove(1, 80)
	if b.cursor.Line != 2 || b.cursor.Col != 4 {
		t.Fatalf("should restore remembered column on a long-enough line, got %+v", b.cursor)
	}
}

func TestHistoryUpDown(t *testing.T) {
	b := newBuffer()
	b.hist.add("second")
	b.hist.add("first")
	// h.add prepends, so entries are ["first", "second"].
	if !b.historyUp() || b.getText() != "first" {
		t.Fatalf("first historyUp should recall most recent entry, got %q", b.getText())
	}
	if !b.historyUp() || b.getText() != "second" {
		t.Fatalf("second historyUp should recall older entry, got %q", b.getText())
	}
	if !b.historyDown() || b.getText() != "first" {
		t.Fatalf("historyDown should step back, got %q", b.getText())
	}
	if !b.historyDown() || b.getText() != "" {
		t.Fatalf("historyDown past newest should clear to empty, got %q", b.getText())
	}
	if b.historyDown() {
		t.Fatalf("historyDown with nothing to recall should return false")
	}
}

func TestIngestPasteSmallSplicesDirectly(t *testing.T) {
	b := newBuffer()
	r := b.ingestPaste("one\ntwo")
	if r.usedMarker {
		t.Fatalf("small paste should not use a marker")
	}
	if got := b.getLines(); len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("spliced lines = %+v", got)
	}
}

func TestIngestPasteLargeUsesMarker(t *testing.T) {
	b := newBuffer()
	big := ""
	for i := 0; i < 20; i++ {
		big += "line\n"
	}
	r := b.ingestPaste(big)
	if !r.usedMarker {
		t.Fatalf("paste over the line threshold should use a marker")
	}
	if !pasteMarkerPattern.MatchString(b.getText()) {
		t.Fatalf("buffer should contain a marker, got %q", b.getText())
	}
	expanded := b.getExpandedText()
	for i := 0; i < 20; i++ {
		if !contains(expanded, "line") {
			t.Fatalf("expanded text should contain original paste content")
		}
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}

func TestSubmitExpandsAndResets(t *testing.T) {
	b := newBuffer()
	b.setText("  hi  ")
	got := b.submit()
	if got != "hi" {
		t.Fatalf("submit() = %q, want trimmed %q", got, "hi")
	}
	if !b.isEmpty() {
		t.Fatalf("buffer should be empty after submit")
	}
}
