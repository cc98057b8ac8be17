package editor

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// insertText splices s at the cursor and advances the cursor by its byte
// length (spec 4.4 "Insert character").
func (b *buffer) insertText(s string) {
	if s == "" {
		return
	}
	line := b.currentLine()
	col := b.cursor.Col
	b.lines[b.cursor.Line] = line[:col] + s + line[col:]
	b.cursor.Col = col + len(s)
	b.hasLastVisualCol = false
}

// insertNewline splits the current line at the cursor (spec 4.4 "Newline
// insertion").
func (b *buffer) insertNewline() {
	line := b.currentLine()
	col := b.cursor.Col
	head, tail := line[:col], line[col:]
	idx := b.cursor.Line
	newLines := make([]string, 0, len(b.lines)+1)
	newLines = append(newLines, b.lines[:idx]...)
	newLines = append(newLines, head, tail)
	newLines = append(newLines, b.lines[idx+1:]...)
	b.lines = newLines
	b.cursor = Cursor{Line: idx + 1, Col: 0}
	b.hasLastVisualCol = false
}

// backspace deletes the preceding grapheme cluster, or joins with the
// previous line at column 0 (spec 4.4). No trailing whitespace is trimmed
// from the previous line on join — preserved verbatim per spec 9 open
// question.
func (b *buffer) backspace() {
	b.hasLastVisualCol = false
	if b.cursor.Col > 0 {
		line := b.currentLine()
		start := prevGraphemeBoundary(line, b.cursor.Col)
		b.lines[b.cursor.Line] = line[:start] + line[b.cursor.Col:]
		b.cursor.Col = start
		return
	}
	if b.cursor.Line == 0 {
		return
	}
	prevLen := len(b.lines[b.cursor.Line-1])
	b.lines[b.cursor.Line-1] += b.lines[b.cursor.Line]
	b.lines = append(b.lines[:b.cursor.Line], b.lines[b.cursor.Line+1:]...)
	b.cursor = Cursor{Line: b.cursor.Line - 1, Col: prevLen}
}

// forwardDelete is the mirror of backspace, grapheme-aware.
func (b *buffer) forwardDelete() {
	b.hasLastVisualCol = false
	line := b.currentLine()
	if b.cursor.Col < len(line) {
		end := nextGraphemeBoundary(line, b.cursor.Col)
		b.lines[b.cursor.Line] = line[:b.cursor.Col] + line[end:]
		return
	}
	if b.cursor.Line >= len(b.lines)-1 {
		return
	}
	b.lines[b.cursor.Line] += b.lines[b.cursor.Line+1]
	b.lines = append(b.lines[:b.cursor.Line+1], b.lines[b.cursor.Line+2:]...)
}

// wordDeleteStart returns the byte offset to which deleteWordBackward
// should erase: skip trailing whitespace, then one punctuation run or one
// alphanumeric-plus-combining run (spec 4.4).
func wordDeleteStart(line string, col int) int {
	i := col
	for i > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:i])
		if !unicode.IsSpace(r) {
			break
		}
		i -= size
	}
	if i == 0 {
		return 0
	}
	r, size := utf8.DecodeLastRuneInString(line[:i])
	if isPunctRune(r) {
		for i > 0 {
			r, size := utf8.DecodeLastRuneInString(line[:i])
			if !isPunctRune(r) {
				break
			}
			i -= size
		}
		return i
	}
	_ = size
	for i > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:i])
		if !isWordRune(r) {
			break
		}
		i -= size
	}
	return i
}

// deleteWordBackward deletes from the cursor back to wordDeleteStart, or
// behaves as backspace at column 0 (spec 4.4).
func (b *buffer) deleteWordBackward() {
	b.hasLastVisualCol = false
	if b.cursor.Col == 0 {
		b.backspace()
		return
	}
	line := b.currentLine()
	start := wordDeleteStart(line, b.cursor.Col)
	b.lines[b.cursor.Line] = line[:start] + line[b.cursor.Col:]
	b.cursor.Col = start
}

// deleteToLineStart deletes from column 0 to the cursor, joining with the
// previous line when already at column 0 (spec 4.4).
func (b *buffer) deleteToLineStart() {
	b.hasLastVisualCol = false
	if b.cursor.Col == 0 {
		b.backspace()
		return
	}
	line := b.currentLine()
	b.lines[b.cursor.Line] = line[b.cursor.Col:]
	b.cursor.Col = 0
}

// deleteToLineEnd deletes from the cursor to end-of-line, joining with the
// next line when already at end-of-line (spec 4.4).
func (b *buffer) deleteToLineEnd() {
	b.hasLastVisualCol = false
	line := b.currentLine()
	if b.cursor.Col >= len(line) {
		b.forwardDelete()
		return
	}
	b.lines[b.cursor.Line] = line[:b.cursor.Col]
}

// moveWordLeft skips leading whitespace then one punctuation or word run,
// wrapping to the previous logical line at the boundary (spec 4.4).
func (b *buffer) moveWordLeft() {
	b.hasLastVisualCol = false
	if b.cursor.Col == 0 {
		if b.cursor.Line == 0 {
			return
		}
		b.cursor.Line--
		b.cursor.Col = len(b.lines[b.cursor.Line])
		return
	}
	b.cursor.Col = wordDeleteStart(b.currentLine(), b.cursor.Col)
}

// moveWordRight is the mirror of moveWordLeft.
func (b *buffer) moveWordRight() {
	b.hasLastVisualCol = false
	line := b.currentLine()
	if b.cursor.Col >= len(line) {
		if b.cursor.Line >= len(b.lines)-1 {
			return
		}
		b.cursor.Line++
		b.cursor.Col = 0
		return
	}
	i := b.cursor.Col
	for i < len(line) {
		r, size := utf8.DecodeRuneInString(line[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	if i >= len(line) {
		b.cursor.Col = i
		return
	}
	r, _ := utf8.DecodeRuneInString(line[i:])
	if isPunctRune(r) {
		for i < len(line) {
			r, size := utf8.DecodeRuneInString(line[i:])
			if !isPunctRune(r) {
				break
			}
			i += size
		}
	} else {
		for i < len(line) {
			r, size := utf8.DecodeRuneInString(line[i:])
			if !isWordRune(r) {
				break
			}
			i += size
		}
	}
	b.cursor.Col = i
}

func (b *buffer) lineStart() {
	b.cursor.Col = 0
	b.hasLastVisualCol = false
}

func (b *buffer) lineEnd() {
	b.cursor.Col = len(b.currentLine())
	b.hasLastVisualCol = false
}

// verticalMove moves the cursor by delta visual lines (±1 for up/down),
// preserving the visual column across chunks (spec 4.4 "Vertical motion").
func (b *buffer) verticalMove(delta, contentWidth int) {
	vmap := buildVisualMap(b.lines, contentWidth)
	idx, byteCol := locateCursor(vmap, b.cursor)
	cell := cellColumn(vmap[idx].Chunk.Text, byteCol)
	if b.hasLastVisualCol {
		cell = b.lastVisualCol
	}

	newIdx := idx + delta
	if newIdx < 0 {
		newIdx = 0
	}
	if newIdx >= len(vmap) {
		newIdx = len(vmap) - 1
	}
	target := vmap[newIdx]
	newByteCol := byteColForCell(target.Chunk.Text, cell)

	b.lastVisualCol = cell
	b.hasLastVisualCol = true
	b.cursor = Cursor{Line: target.LogicalLine, Col: target.Chunk.Start + newByteCol}
	b.clampCursor()
}

// pageMove moves the cursor by ±pageSize(terminalRows) visual lines.
func (b *buffer) pageMove(dir, contentWidth, terminalRows int) {
	n := pageSize(terminalRows)
	if dir < 0 {
		n = -n
	}
	b.verticalMove(n, contentWidth)
}

// atFirstVisualLine reports whether the cursor is on the first entry of the
// visual line map, used by history-recall's "cursor on first visual line"
// condition (spec 4.4).
func (b *buffer) atFirstVisualLine(contentWidth int) bool {
	vmap := buildVisualMap(b.lines, contentWidth)
	idx, _ := locateCursor(vmap, b.cursor)
	return idx == 0
}

func (b *buffer) isEmpty() bool {
	return len(b.lines) == 1 && b.lines[0] == ""
}

// historyUp steps to an older entry (spec 4.4 "History navigation").
// Returns false when there is nothing to recall.
func (b *buffer) historyUp() bool {
	if b.hist.len() == 0 {
		return false
	}
	if b.historyIndex+1 >= b.hist.len() {
		if b.historyIndex == -1 {
			b.historyIndex = 0
		}
	} else {
		b.historyIndex++
	}
	idx := b.historyIndex
	b.setText(b.hist.at(idx))
	b.historyIndex = clampHistoryIndex(idx, b.hist.len())
	return true
}

// historyDown steps to a newer entry, or back to the empty "current" slot.
func (b *buffer) historyDown() bool {
	if b.historyIndex == -1 {
		return false
	}
	b.historyIndex--
	if b.historyIndex < 0 {
		b.setText("")
		b.historyIndex = -1
		return true
	}
	idx := b.historyIndex
	b.setText(b.hist.at(idx))
	b.historyIndex = idx
	return true
}

func clampHistoryIndex(idx, n int) int {
	if idx >= n {
		return n - 1
	}
	if idx < 0 {
		return -1
	}
	return idx
}

// ingestedPaste is what pasteIngest returns so Model can decide whether to
// notify the autocomplete layer (markers never trigger autocomplete).
type ingestedPaste struct {
	usedMarker bool
}

// ingestPaste normalizes and splices pasted text per spec 4.4 "Paste
// ingestion": newline normalization, tab expansion, control-byte removal,
// a defensive leading space before certain first characters, and marker
// substitution for large pastes.
func (b *buffer) ingestPaste(raw string) ingestedPaste {
	text := normalizeNewlines(raw)
	text = strings.ReplaceAll(text, "\t", "    ")
	text = stripNonPrintable(text)

	if text == "" {
		return ingestedPaste{}
	}

	if len(text) > 0 {
		first := rune(text[0])
		if utf8.RuneStart(text[0]) {
			first, _ = utf8.DecodeRuneInString(text)
		}
		if first == '/' || first == '~' || first == '.' {
			line := b.currentLine()
			if b.cursor.Col > 0 {
				r, _ := utf8.DecodeLastRuneInString(line[:b.cursor.Col])
				if isWordRune(r) {
					text = " " + text
				}
			}
		}
	}

	lineCount := strings.Count(text, "\n") + 1
	byteCount := len(text)

	b.hasLastVisualCol = false
	if lineCount > pasteLineThreshold || byteCount > pasteByteThreshold {
		_, marker := b.pastes.store(text, lineCount, byteCount)
		b.insertText(marker)
		return ingestedPaste{usedMarker: true}
	}

	b.spliceLines(text)
	return ingestedPaste{}
}

// spliceLines inserts possibly-multiline text at the cursor, splitting the
// current line around it the same way insertNewline does for each '\n'.
func (b *buffer) spliceLines(text string) {
	parts := strings.Split(text, "\n")
	line := b.currentLine()
	col := b.cursor.Col
	head, tail := line[:col], line[col:]

	if len(parts) == 1 {
		b.lines[b.cursor.Line] = head + parts[0] + tail
		b.cursor.Col = col + len(parts[0])
		return
	}

	newLines := make([]string, 0, len(b.lines)+len(parts)-1)
	newLines = append(newLines, b.lines[:b.cursor.Line]...)
	newLines = append(newLines, head+parts[0])
	newLines = append(newLines, parts[1:len(parts)-1]...)
	lastIdx := b.cursor.Line + len(parts) - 1
	newLines = append(newLines, parts[len(parts)-1]+tail)
	newLines = append(newLines, b.lines[b.cursor.Line+1:]...)
	b.lines = newLines
	b.cursor = Cursor{Line: lastIdx, Col: len(parts[len(parts)-1])}
}

// stripNonPrintable drops control bytes from pasted text, keeping '\n'.
func stripNonPrintable(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == '\n' {
			sb.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// submit joins the lines, expands paste markers, trims, and resets the
// buffer for the next message (spec 4.4 "Submit"). History is not touched
// here; Model.submit adds the result via AddToHistory once it knows the
// text is non-empty.
func (b *buffer) submit() string {
	joined := strings.Join(b.lines, "\n")
	expanded := expandMarkers(joined, b.pastes)
	trimmed := strings.TrimSpace(expanded)
	b.resetForSubmit()
	return trimmed
}
