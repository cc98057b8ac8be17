package editor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// CursorMarker is the zero-width sentinel the renderer emits at most once
// per frame, at the cursor's byte offset within its rendered line, so the
// host can translate it into a real terminal cursor position (spec 5
// "Output wire format"). It never appears in user text because paste
// ingestion strips non-printable bytes (spec 4.1).
const CursorMarker = "\x00"

var cursorStyle = lipgloss.NewStyle().Reverse(true)

// renderFrame implements spec 5 in full: it lays out the buffer into visual
// lines, picks a scroll window around the cursor, and returns exactly
// `width`-wide styled rows including borders and scroll indicators.
func renderFrame(b *buffer, ov *overlay, width, paddingX int, style BorderStyle, focused bool, terminalRows int, scrollOffset *int) []string {
	if width < 1 {
		width = 1
	}
	if paddingX < 0 {
		paddingX = 0
	}

	borderWidth := 0
	if style != BorderNone {
		borderWidth = 2
	}

	// Shrink padding, then drop the vertical border sides, before ever
	// forcing contentWidth below 1 cell — otherwise side+pad+row+pad+side
	// would overshoot width at small sizes (the way borderLine already
	// degrades its corners at width==1).
	for width-borderWidth-2*paddingX < 1 && paddingX > 0 {
		paddingX--
	}
	if width-borderWidth-2*paddingX < 1 {
		borderWidth = 0
	}
	contentWidth := width - borderWidth - 2*paddingX
	if contentWidth < 1 {
		contentWidth = 1
	}

	visual := buildVisualMap(b.lines, contentWidth)
	cursorVL, cursorByteCol := locateCursor(visual, b.cursor)

	visibleRows := maxVisible(terminalRows)
	*scrollOffset = clampScroll(*scrollOffset, cursorVL, len(visual), visibleRows)

	end := *scrollOffset + visibleRows
	if end > len(visual) {
		end = len(visual)
	}
	visible := visual[*scrollOffset:end]

	pad := strings.Repeat(" ", paddingX)
	g := glyphsFor(style)

	var out []string
	out = append(out, topBorder(width, style, *scrollOffset))

	showCursor := focused && (ov == nil || !ov.active)
	side := ""
	if borderWidth > 0 {
		side = g.vertical()
	}
	for i, vl := range visible {
		idx := *scrollOffset + i
		text := vl.Chunk.Text
		if showCursor && idx == cursorVL {
			text = withCursorGlyph(vl.Chunk.Text, cursorByteCol, contentWidth)
		}
		row := padOrTruncate(text, contentWidth)
		out = append(out, side+pad+row+pad+side)
	}

	below := len(visual) - end
	out = append(out, bottomBorder(width, style, below))

	if ov != nil && ov.active {
		out = append(out, ov.list.render(contentWidth, func(s string) string {
			return cursorStyle.Render(s)
		})...)
	}

	return out
}

func (g borderGlyphs) vertical() string {
	if g.topLeft == "" {
		return ""
	}
	return "│"
}

// withCursorGlyph inserts the reverse-video cursor glyph into text at
// byteCol. Past end-of-line it appends a reverse-video space, unless the
// line already fills contentWidth, in which case the last grapheme is
// reversed instead (spec 5 step 6).
func withCursorGlyph(text string, byteCol, contentWidth int) string {
	spans := segmentGraphemes(text)
	for _, sp := range spans {
		if sp.Start <= byteCol && byteCol < sp.End {
			return text[:sp.Start] + CursorMarker + cursorStyle.Render(sp.Text) + text[sp.End:]
		}
	}
	if len(spans) > 0 && byteCol >= len(text) && visibleWidth(text) >= contentWidth {
		last := spans[len(spans)-1]
		return text[:last.Start] + CursorMarker + cursorStyle.Render(last.Text)
	}
	return text + CursorMarker + cursorStyle.Render(" ")
}

// clampScroll keeps cursorVL within [scroll, scroll+visibleRows) and the
// window itself within [0, max(0, total-visibleRows)] (spec 3 invariant 6).
func clampScroll(scroll, cursorVL, total, visibleRows int) int {
	if cursorVL < scroll {
		scroll = cursorVL
	}
	if cursorVL >= scroll+visibleRows {
		scroll = cursorVL - visibleRows + 1
	}
	maxScroll := total - visibleRows
	if maxScroll < 0 {
		maxScroll = 0
	}
	if scroll > maxScroll {
		scroll = maxScroll
	}
	if scroll < 0 {
		scroll = 0
	}
	return scroll
}
