package editor

import (
	"strings"
	"testing"
)

func TestBorderLineRounded(t *testing.T) {
	top := topBorder(10, BorderRounded, 0)
	if !strings.HasPrefix(top, "╭") || !strings.HasSuffix(top, "╮") {
		t.Fatalf("rounded top border = %q", top)
	}
	bottom := bottomBorder(10, BorderRounded, 0)
	if !strings.HasPrefix(bottom, "╰") || !strings.HasSuffix(bottom, "╯") {
		t.Fatalf("rounded bottom border = %q", bottom)
	}
}

func TestBorderLineNoneIsBlank(t *testing.T) {
	line := topBorder(6, BorderNone, 0)
	if line != "      " {
		t.Fatalf("BorderNone top border = %q, want 6 spaces", line)
	}
}

func TestBorderLineScrollIndicator(t *testing.T) {
	line := topBorder(30, BorderRounded, 5)
	if !strings.Contains(line, "↑") || !strings.Contains(line, "5 more") {
		t.Fatalf("scroll indicator missing from %q", line)
	}
}

func TestClampScrollKeepsCursorVisible(t *testing.T) {
	if got := clampScroll(0, 9, 20, 5); got != 5 {
		t.Fatalf("clampScroll should scroll down to keep cursor 9 visible with 5 rows, got %d", got)
	}
	if got := clampScroll(5, 2, 20, 5); got != 2 {
		t.Fatalf("clampScroll should scroll up when cursor moves above the window, got %d", got)
	}
}

func TestClampScrollNeverExceedsMax(t *testing.T) {
	got := clampScroll(0, 3, 4, 10)
	if got != 0 {
		t.Fatalf("window larger than content should stay pinned at 0, got %d", got)
	}
}

func TestWithCursorGlyphMidLine(t *testing.T) {
	out := withCursorGlyph("abc", 1, 10)
	if out == "abc" {
		t.Fatalf("withCursorGlyph should wrap a grapheme in a style, got unchanged text")
	}
	if !strings.Contains(out, "a") || !strings.Contains(out, "c") {
		t.Fatalf("surrounding characters should survive, got %q", out)
	}
	if !strings.Contains(out, CursorMarker) {
		t.Fatalf("withCursorGlyph must emit the zero-width CursorMarker sentinel, got %q", out)
	}
}

func TestWithCursorGlyphPastEndAppendsSpace(t *testing.T) {
	out := withCursorGlyph("ab", 2, 10)
	if !strings.HasPrefix(out, "ab") {
		t.Fatalf("text before the cursor should be untouched, got %q", out)
	}
	if !strings.Contains(out, CursorMarker) {
		t.Fatalf("withCursorGlyph must emit the zero-width CursorMarker sentinel, got %q", out)
	}
}

func TestRenderFrameEmitsCursorMarkerWhenFocused(t *testing.T) {
	b := newBuffer()
	b.setText("hello")
	scroll := 0
	rows := renderFrame(b, nil, 20, 1, BorderRounded, true, 24, &scroll)
	joined := strings.Join(rows, "\n")
	if !strings.Contains(joined, CursorMarker) {
		t.Fatalf("a focused frame should emit exactly one CursorMarker sentinel")
	}
}

func TestRenderFrameOmitsCursorMarkerWhenUnfocused(t *testing.T) {
	b := newBuffer()
	b.setText("hello")
	scroll := 0
	rows := renderFrame(b, nil, 20, 1, BorderRounded, false, 24, &scroll)
	joined := strings.Join(rows, "\n")
	if strings.Contains(joined, CursorMarker) {
		t.Fatalf("an unfocused frame should not emit the cursor sentinel")
	}
}

func TestRenderFrameRowsFitWidthAtSmallSizes(t *testing.T) {
	b := newBuffer()
	b.setText("hello world this is a longer line")
	for width := 1; width <= 5; width++ {
		scroll := 0
		rows := renderFrame(b, nil, width, 1, BorderRounded, false, 24, &scroll)
		for i, row := range rows {
			if w := visibleWidth(row); w != width {
				t.Fatalf("width=%d row[%d] = %q has visible width %d, want %d", width, i, row, w, width)
			}
		}
	}
}

func TestRenderFrameRowsFitWidthWithBorderNone(t *testing.T) {
	b := newBuffer()
	b.setText("hi")
	for width := 1; width <= 3; width++ {
		scroll := 0
		rows := renderFrame(b, nil, width, 1, BorderNone, false, 24, &scroll)
		for i, row := range rows {
			if w := visibleWidth(row); w != width {
				t.Fatalf("BorderNone width=%d row[%d] = %q has visible width %d, want %d", width, i, row, w, width)
			}
		}
	}
}

func TestRenderFrameProducesBorderedRows(t *testing.T) {
	b := newBuffer()
	b.setText("hello")
	scroll := 0
	rows := renderFrame(b, nil, 20, 1, BorderRounded, true, 24, &scroll)
	if len(rows) < 3 {
		t.Fatalf("expected at least a top border, one content row, and a bottom border, got %d rows", len(rows))
	}
	if !strings.HasPrefix(rows[0], "╭") {
		t.Fatalf("first row should be the top border, got %q", rows[0])
	}
	if !strings.HasSuffix(rows[len(rows)-1], "╯") && !strings.HasPrefix(rows[len(rows)-1], "╰") {
		t.Fatalf("last row should be the bottom border, got %q", rows[len(rows)-1])
	}
}

func TestItoa(t *testing.T) {
	cases := map[int]string{0: "0", 7: "7", 42: "42", -3: "-3"}
	for in, want := range cases {
		if got := itoa(in); got != want {
			t.Fatalf("itoa(%d) = %q, want %q", in, got, want)
		}
	}
}
