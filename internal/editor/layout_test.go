package editor

import "testing"

func TestWrapLineBasic(t *testing.T) {
	chunks := wrapLine(0, "hello world", 5)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "hello" {
		t.Fatalf("first chunk = %q, want %q", chunks[0].Text, "hello")
	}
	if chunks[1].Text != "world" {
		t.Fatalf("second chunk = %q, want %q (leading space must be discarded on continuation)", chunks[1].Text, "world")
	}
}

func TestWrapLineTrimsTrailingWhitespaceButKeepsRawEnd(t *testing.T) {
	chunks := wrapLine(0, "ab   cd", 5)
	if len(chunks) < 1 {
		t.Fatalf("expected at least one chunk")
	}
	first := chunks[0]
	if first.Text != "ab" {
		t.Fatalf("first chunk text = %q, want %q (trailing spaces trimmed)", first.Text, "ab")
	}
	if first.End <= len(first.Text) {
		t.Fatalf("first chunk End (%d) should extend past the trimmed text length (%d)", first.End, len(first.Text))
	}
}

func TestWrapLineEmptyLine(t *testing.T) {
	chunks := wrapLine(0, "", 10)
	if len(chunks) != 1 || chunks[0].Text != "" {
		t.Fatalf("empty line should produce one empty chunk, got %+v", chunks)
	}
}

func TestWrapLineBreaksOverWidthToken(t *testing.T) {
	chunks := wrapLine(0, "abcdefghij", 4)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 grapheme-sized pieces, got %d: %+v", len(chunks), chunks)
	}
	for _, c := range chunks {
		if visibleWidth(c.Text) > 4 {
			t.Fatalf("chunk %q exceeds contentWidth", c.Text)
		}
	}
}

func TestBuildVisualMapAndLocateCursor(t *testing.T) {
	lines := []string{"hello world", "second line"}
	vmap := buildVisualMap(lines, 5)

	idx, col := locateCursor(vmap, Cursor{Line: 1, Col: 0})
	if vmap[idx].LogicalLine != 1 || col != 0 {
		t.Fatalf("locateCursor at start of second line: idx=%d col=%d", idx, col)
	}

	last := len(vmap) - 1
	endCur := Cursor{Line: vmap[last].LogicalLine, Col: vmap[last].Chunk.End}
	idx2, _ := locateCursor(vmap, endCur)
	if idx2 != last {
		t.Fatalf("locateCursor at inclusive end of last chunk: got idx=%d, want %d", idx2, last)
	}
}

func TestCellColumnRoundTrip(t *testing.T) {
	text := "hello"
	for byteCol := 0; byteCol <= len(text); byteCol++ {
		cell := cellColumn(text, byteCol)
		back := byteColForCell(text, cell)
		if back > byteCol {
			t.Fatalf("byteColForCell(%d) = %d overshoots original %d", cell, back, byteCol)
		}
	}
}

func TestPageSize(t *testing.T) {
	if pageSize(10) != 5 {
		t.Fatalf("pageSize(10) = %d, want 5 (floor below minimum)", pageSize(10))
	}
	if pageSize(100) != 30 {
		t.Fatalf("pageSize(100) = %d, want 30", pageSize(100))
	}
}
