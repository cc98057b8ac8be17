package editor

import "strings"

// Cursor is a (line, column) pair. Col is a byte offset into lines[Line]
// that always lies on a grapheme-cluster boundary (spec 3 invariants 1-2).
type Cursor struct {
	Line int
	Col  int
}

// buffer holds the logical lines, cursor, history and paste table that make
// up the editor's data model (spec 3). It never calls out to the host
// directly; Model wraps it and wires onChange/onSubmit.
type buffer struct {
	lines  []string
	cursor Cursor

	hist         history
	historyIndex int // -1 when not browsing

	pastes *pasteTable

	// lastVisualCol remembers the cell column used by the most recent
	// vertical/page motion so consecutive up/down presses keep a stable
	// visual column even across chunks of different width.
	lastVisualCol    int
	hasLastVisualCol bool
}

func newBuffer() *buffer {
	return &buffer{
		lines:        []string{""},
		historyIndex: -1,
		pastes:       newPasteTable(),
	}
}

// normalizeNewlines converts CRLF/CR to LF (spec 4.1).
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

// getText joins the logical lines with '\n', markers intact.
func (b *buffer) getText() string {
	return strings.Join(b.lines, "\n")
}

// getExpandedText joins the logical lines and replaces every paste marker
// with its stored original text.
func (b *buffer) getExpandedText() string {
	return expandMarkers(b.getText(), b.pastes)
}

func (b *buffer) getLines() []string {
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

func (b *buffer) getCursor() Cursor {
	return b.cursor
}

// setText replaces the whole buffer, placing the cursor at the end, and
// exits history browsing. It does not itself notify the change sink;
// Model does that after every mutation.
func (b *buffer) setText(s string) {
	s = normalizeNewlines(s)
	lines := strings.Split(s, "\n")
	if len(lines) == 0 {
		lines = []string{""}
	}
	b.lines = lines
	b.historyIndex = -1
	last := len(b.lines) - 1
	b.cursor = Cursor{Line: last, Col: len(b.lines[last])}
	b.hasLastVisualCol = false
}

// resetForSubmit clears per-session transient state without touching
// history (which persists across submissions per spec 3 "Lifecycles").
func (b *buffer) resetForSubmit() {
	b.lines = []string{""}
	b.cursor = Cursor{}
	b.pastes.reset()
	b.historyIndex = -1
	b.hasLastVisualCol = false
}

func (b *buffer) currentLine() string {
	return b.lines[b.cursor.Line]
}

func (b *buffer) clampCursor() {
	if b.cursor.Line < 0 {
		b.cursor.Line = 0
	}
	if b.cursor.Line >= len(b.lines) {
		b.cursor.Line = len(b.lines) - 1
	}
	line := b.lines[b.cursor.Line]
	if b.cursor.Col < 0 {
		b.cursor.Col = 0
	}
	if b.cursor.Col > len(line) {
		b.cursor.Col = len(line)
	}
	b.cursor.Col = clampToGraphemeBoundary(line, b.cursor.Col)
}
