package editor

import (
	"unicode"

	"github.com/clipperhouse/displaywidth"
	"github.com/clipperhouse/uax29/v2/graphemes"
	"github.com/clipperhouse/uax29/v2/words"
)

// graphemeSpan is one grapheme cluster located within its parent string by
// byte offset. Combining marks and zero-width joiners fold into the base
// grapheme, so a span may cover several runes.
type graphemeSpan struct {
	Start, End int
	Text       string
}

// segmentGraphemes splits s into grapheme clusters. Cursor columns must
// always land on one of the returned Start offsets.
func segmentGraphemes(s string) []graphemeSpan {
	if s == "" {
		return nil
	}
	spans := make([]graphemeSpan, 0, len(s)/2+1)
	seg := graphemes.NewSegmenter([]byte(s))
	offset := 0
	for seg.Next() {
		b := seg.Bytes()
		spans = append(spans, graphemeSpan{Start: offset, End: offset + len(b), Text: string(b)})
		offset += len(b)
	}
	return spans
}

// clampToGraphemeBoundary returns the nearest grapheme boundary at or before
// col. Used whenever a byte offset is computed arithmetically (e.g. from a
// chunk width calculation) and must be re-validated against invariant 2.
func clampToGraphemeBoundary(s string, col int) int {
	if col <= 0 {
		return 0
	}
	if col >= len(s) {
		return len(s)
	}
	last := 0
	for _, sp := range segmentGraphemes(s) {
		if sp.Start > col {
			break
		}
		last = sp.Start
	}
	return last
}

// prevGraphemeBoundary returns the start offset of the grapheme cluster
// immediately before col (col must already be a boundary).
func prevGraphemeBoundary(s string, col int) int {
	if col <= 0 {
		return 0
	}
	prev := 0
	for _, sp := range segmentGraphemes(s) {
		if sp.Start >= col {
			break
		}
		prev = sp.Start
	}
	return prev
}

// nextGraphemeBoundary returns the end offset of the grapheme cluster that
// starts at col (col must already be a boundary).
func nextGraphemeBoundary(s string, col int) int {
	for _, sp := range segmentGraphemes(s) {
		if sp.Start == col {
			return sp.End
		}
	}
	return len(s)
}

// graphemeWidth returns the terminal column width of a single grapheme
// cluster: East-Asian-width aware, zero for zero-width clusters.
func graphemeWidth(g string) int {
	w := displaywidth.String(g)
	if w < 0 {
		return 0
	}
	return w
}

// visibleWidth returns the total terminal column width of s.
func visibleWidth(s string) int {
	if s == "" {
		return 0
	}
	return displaywidth.String(s)
}

// wordToken is a maximal run of either whitespace or non-whitespace runes
// within a single logical line, used by the wrap algorithm (spec 4.3 step 1).
type wordToken struct {
	Start, End int
	Text       string
	IsSpace    bool
}

func isAllSpace(s string) bool {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
		n++
	}
	return n > 0
}

// tokenizeLine splits line into alternating whitespace/non-whitespace runs
// using Unicode word boundaries, so it behaves sensibly for any script.
func tokenizeLine(line string) []wordToken {
	if line == "" {
		return nil
	}
	var tokens []wordToken
	seg := words.NewSegmenter([]byte(line))
	offset := 0
	for seg.Next() {
		b := seg.Bytes()
		text := string(b)
		tok := wordToken{Start: offset, End: offset + len(b), Text: text, IsSpace: isAllSpace(text)}
		offset += len(b)
		if n := len(tokens); n > 0 && tokens[n-1].IsSpace == tok.IsSpace && tokens[n-1].End == tok.Start {
			tokens[n-1].End = tok.End
			tokens[n-1].Text += tok.Text
		} else {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// isWordRune reports whether r belongs to the "alphanumeric-plus-combining"
// run class used by word-motion and delete-word-backward (spec 4.4).
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)
}

// isPunctRune reports whether r belongs to the punctuation-run class.
func isPunctRune(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}
