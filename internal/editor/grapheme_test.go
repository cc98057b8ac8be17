package editor

import "testing"

func TestSegmentGraphemes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"ascii", "abc", 3},
		{"wide", "你好", 2},
		{"emoji_zwj_family", "\U0001F469‍\U0001F469‍\U0001F467", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := len(segmentGraphemes(tc.in))
			if got != tc.want {
				t.Fatalf("segmentGraphemes(%q): got %d spans, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestGraphemeBoundaries(t *testing.T) {
	s := "a你b"
	spans := segmentGraphemes(s)
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	if prevGraphemeBoundary(s, spans[2].Start) != spans[1].Start {
		t.Fatalf("prevGraphemeBoundary mismatch")
	}
	if nextGraphemeBoundary(s, spans[0].Start) != spans[1].Start {
		t.Fatalf("nextGraphemeBoundary mismatch")
	}
}

func TestClampToGraphemeBoundary(t *testing.T) {
	s := "你好"
	spans := segmentGraphemes(s)
	mid := spans[0].Start + 1 // lands inside the first multi-byte cluster
	got := clampToGraphemeBoundary(s, mid)
	if got != spans[0].Start {
		t.Fatalf("clampToGraphemeBoundary(%d) = %d, want %d", mid, got, spans[0].Start)
	}
}

func TestVisibleWidth(t *testing.T) {
	if w := visibleWidth("abc"); w != 3 {
		t.Fatalf("ascii width = %d, want 3", w)
	}
	if w := visibleWidth("你好"); w != 4 {
		t.Fatalf("wide width = %d, want 4", w)
	}
}

func TestTokenizeLine(t *testing.T) {
	tokens := tokenizeLine("foo  bar")
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d: %+v", len(tokens), tokens)
	}
	if tokens[0].IsSpace || tokens[0].Text != "foo" {
		t.Fatalf("unexpected first token: %+v", tokens[0])
	}
	if !tokens[1].IsSpace || tokens[1].Text != "  " {
		t.Fatalf("unexpected whitespace token: %+v", tokens[1])
	}
	if tokens[2].IsSpace || tokens[2].Text != "bar" {
		t.Fatalf("unexpected last token: %+v", tokens[2])
	}
}

func TestIsWordAndPunctRune(t *testing.T) {
	if !isWordRune('a') || !isWordRune('9') {
		t.Fatalf("expected letters/digits to be word runes")
	}
	if isWordRune('.') {
		t.Fatalf("'.' should not be a word rune")
	}
	if !isPunctRune('.') || !isPunctRune('+') {
		t.Fatalf("expected punctuation/symbol runes to match isPunctRune")
	}
}
