// Package editor implements the multi-line prompt-input widget: grapheme-
// aware buffer and cursor, word-wrapping layout, a bracketed-paste/Kitty
// keyboard-protocol input decoder, a pluggable autocomplete overlay, and a
// bordered renderer. It knows nothing about the agent session, models, or
// tools that sit above it in the host TUI.
package editor

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Model is the editor widget. Construct with New; it is safe to embed in a
// host bubbletea model as a plain value-or-pointer field.
type Model struct {
	buf     *buffer
	decoder *decoder
	overlay overlay

	paddingX     int
	borderStyle  BorderStyle
	focused      bool
	terminalRows int
	scrollOffset int
	lastWidth    int

	disableSubmit bool

	onSubmit func(string)
	onChange func(string)
}

// New constructs an empty, unfocused editor with sensible defaults.
func New() Model {
	return Model{
		buf:          newBuffer(),
		decoder:      newDecoder(),
		borderStyle:  BorderRounded,
		terminalRows: 24,
		lastWidth:    80,
	}
}

// notifyChange invokes the change sink with the current buffer text, after
// every mutation (spec 5 "on_change").
func (m *Model) notifyChange() {
	if m.onChange != nil {
		m.onChange(m.buf.getText())
	}
}

// HandleInput decodes one raw host byte chunk into zero or more intents and
// applies them to the buffer/overlay in order (spec 4.2, 4.5). It never
// panics or propagates an error; malformed input is treated as data.
func (m *Model) HandleInput(raw []byte) tea.Cmd {
	for _, ev := range m.decoder.decode(raw, m.overlay.active) {
		m.applyIntent(ev)
	}
	return nil
}

func (m *Model) applyIntent(ev decoded) {
	if m.overlay.active {
		if m.applyOverlayIntent(ev) {
			return
		}
	}

	switch ev.Intent {
	case IntentInsertText:
		m.insertAndRefreshOverlay(ev.Text)
	case IntentCSIu:
		m.insertAndRefreshOverlay(ev.Text)
	case IntentPaste:
		m.ingestPaste(ev.Text)
	case IntentSubmit:
		m.submit()
	case IntentNewLine:
		m.buf.insertNewline()
		m.notifyChange()
		m.refreshOverlay()
	case IntentCursorUp:
		if !m.overlay.active && m.buf.atFirstVisualLine(m.contentWidth()) && (m.buf.isEmpty() || m.buf.historyIndex != -1) {
			m.buf.historyUp()
			m.refreshOverlay()
			return
		}
		m.buf.verticalMove(-1, m.contentWidth())
	case IntentCursorDown:
		if m.buf.historyIndex != -1 {
			m.buf.historyDown()
			m.refreshOverlay()
			return
		}
		m.buf.verticalMove(1, m.contentWidth())
	case IntentCursorLeft:
		m.moveLeft()
	case IntentCursorRight:
		m.moveRight()
	case IntentCursorLineStart:
		m.buf.lineStart()
	case IntentCursorLineEnd:
		m.buf.lineEnd()
	case IntentCursorWordLeft:
		m.buf.moveWordLeft()
	case IntentCursorWordRight:
		m.buf.moveWordRight()
	case IntentDeleteCharBackward:
		m.buf.backspace()
		m.notifyChange()
		m.refreshOverlay()
	case IntentDeleteCharForward:
		m.buf.forwardDelete()
		m.notifyChange()
		m.refreshOverlay()
	case IntentDeleteWordBackward:
		m.buf.deleteWordBackward()
		m.notifyChange()
		m.refreshOverlay()
	case IntentDeleteToLineStart:
		m.buf.deleteToLineStart()
		m.notifyChange()
		m.refreshOverlay()
	case IntentDeleteToLineEnd:
		m.buf.deleteToLineEnd()
		m.notifyChange()
		m.refreshOverlay()
	case IntentPageUp:
		m.buf.pageMove(-1, m.contentWidth(), m.terminalRows)
	case IntentPageDown:
		m.buf.pageMove(1, m.contentWidth(), m.terminalRows)
	case IntentTab:
		m.handleTab()
	case IntentCopy:
		// Passed through; the host decides what "copy" means.
	}
}

func (m *Model) moveLeft() {
	if m.buf.cursor.Col == 0 {
		if m.buf.cursor.Line > 0 {
			m.buf.cursor.Line--
			m.buf.cursor.Col = len(m.buf.currentLine())
			m.buf.hasLastVisualCol = false
		}
		return
	}
	line := m.buf.currentLine()
	m.buf.cursor.Col = prevGraphemeBoundary(line, m.buf.cursor.Col)
	m.buf.hasLastVisualCol = false
}

func (m *Model) moveRight() {
	line := m.buf.currentLine()
	if m.buf.cursor.Col >= len(line) {
		if m.buf.cursor.Line < len(m.buf.lines)-1 {
			m.buf.cursor.Line++
			m.buf.cursor.Col = 0
			m.buf.hasLastVisualCol = false
		}
		return
	}
	m.buf.cursor.Col = nextGraphemeBoundary(line, m.buf.cursor.Col)
	m.buf.hasLastVisualCol = false
}

// applyOverlayIntent handles the subset of intents the active overlay
// intercepts (spec 4.5); it reports whether it consumed the event.
func (m *Model) applyOverlayIntent(ev decoded) bool {
	switch ev.Intent {
	case IntentSelectUp:
		m.overlay.list.moveUp()
		return true
	case IntentSelectDown:
		m.overlay.list.moveDown()
		return true
	case IntentSelectCancel:
		m.overlay.deactivate()
		return true
	case IntentSelectConfirm, IntentTab:
		m.applyOverlaySelection()
		return true
	}
	return false
}

func (m *Model) applyOverlaySelection() {
	item, ok := m.overlay.list.selected()
	if !ok || m.overlay.provider == nil {
		m.overlay.deactivate()
		return
	}
	newLines, newLine, newCol := m.overlay.provider.Apply(m.buf.getLines(), m.buf.cursor, item, m.overlay.prefix, m.overlay.source)
	m.buf.lines = newLines
	m.buf.cursor = Cursor{Line: newLine, Col: newCol}
	m.buf.clampCursor()
	source := m.overlay.source
	m.notifyChange()
	m.overlay.deactivate()
	// A confirmed slash command submits immediately instead of waiting for a
	// separate Enter (spec 4.5 "apply-then-submit" for SourceSlash).
	if source == SourceSlash {
		m.submit()
	}
}

func (m *Model) insertAndRefreshOverlay(s string) {
	m.buf.insertText(s)
	m.notifyChange()
	m.refreshOverlay()
}

// ingestPaste routes a completed bracketed paste through buffer.ingestPaste
// (tab expansion, control-byte stripping, the leading-space heuristic, and
// the line/byte marker thresholds) instead of a plain text insert. A
// marker-backed paste never triggers autocomplete (spec 4.5): only a
// small, directly-spliced paste re-evaluates the overlay.
func (m *Model) ingestPaste(raw string) {
	result := m.buf.ingestPaste(raw)
	m.notifyChange()
	if result.usedMarker {
		m.overlay.deactivate()
		return
	}
	m.refreshOverlay()
}

// handleTab triggers forced-file completion when nothing else is already
// showing (spec 4.5 bullet 3); otherwise it behaves like a normal tab,
// which for a prompt editor means doing nothing (no indentation).
func (m *Model) handleTab() {
	if m.overlay.active {
		m.applyOverlaySelection()
		return
	}
	if m.overlay.provider == nil {
		return
	}
	trigger := false
	if hinter, ok := m.overlay.provider.(FileCompletionHinter); ok {
		trigger = hinter.ShouldTriggerFileCompletion(m.buf.getLines(), m.buf.cursor)
	}
	if !trigger {
		return
	}
	if s, ok := m.safeSuggestions(SourceForcedFile, ""); ok && len(s.Items) > 0 {
		m.overlay.activate(SourceForcedFile, "", s)
	}
}

// refreshOverlay re-evaluates the autocomplete trigger after a buffer
// mutation, activating, updating, or deactivating the overlay as needed
// (spec 4.5). Provider panics are not expected but a nil provider, an
// empty suggestion set, or a vanished trigger context all simply
// deactivate (spec 9 "malformed input is data, not errors").
func (m *Model) refreshOverlay() {
	if m.overlay.provider == nil {
		m.overlay.deactivate()
		return
	}
	source, prefix, ok := detectTrigger(m.buf.getLines(), m.buf.cursor)
	if !ok {
		m.overlay.deactivate()
		return
	}
	s, ok := m.safeSuggestions(source, prefix)
	if !ok || len(s.Items) == 0 {
		m.overlay.deactivate()
		return
	}
	m.overlay.activate(source, prefix, s)
}

func (m *Model) safeSuggestions(source SourceKind, prefix string) (s Suggestions, ok bool) {
	defer func() {
		if recover() != nil {
			s, ok = Suggestions{}, false
		}
	}()
	return m.overlay.provider.Suggestions(m.buf.getLines(), m.buf.cursor, source, prefix)
}

func (m *Model) submit() {
	if m.disableSubmit {
		return
	}
	text := m.buf.submit()
	m.overlay.deactivate()
	m.scrollOffset = 0
	if m.onChange != nil {
		m.onChange("")
	}
	if text != "" {
		m.AddToHistory(text)
		if m.onSubmit != nil {
			m.onSubmit(text)
		}
	}
}

func (m *Model) contentWidth() int {
	borderWidth := 0
	if m.borderStyle != BorderNone {
		borderWidth = 2
	}
	w := m.lastWidth - borderWidth - 2*m.paddingX
	if w < 1 {
		w = 1
	}
	return w
}

// Render lays the buffer out and draws it (spec 5). It is the only method
// that depends on terminal width, so Model remembers it for motions that
// happen between renders (e.g. arrow keys processed before the next View).
func (m *Model) Render(width int) []string {
	m.lastWidth = width
	return renderFrame(m.buf, &m.overlay, width, m.paddingX, m.borderStyle, m.focused, m.terminalRows, &m.scrollOffset)
}

// FocusSet toggles whether the cursor glyph is drawn (spec 5 step 6).
func (m *Model) FocusSet(focused bool) { m.focused = focused }

func (m *Model) GetText() string         { return m.buf.getText() }
func (m *Model) GetExpandedText() string { return m.buf.getExpandedText() }
func (m *Model) GetLines() []string      { return m.buf.getLines() }
func (m *Model) GetCursor() Cursor       { return m.buf.getCursor() }

// SetText replaces the whole buffer and notifies the change sink.
func (m *Model) SetText(s string) {
	m.buf.setText(s)
	m.notifyChange()
	m.refreshOverlay()
}

// InsertTextAtCursor splices s at the cursor, as if typed.
func (m *Model) InsertTextAtCursor(s string) {
	m.buf.insertText(s)
	m.notifyChange()
	m.refreshOverlay()
}

// AddToHistory records text as the newest recall entry (spec 3 "History").
func (m *Model) AddToHistory(text string) { m.buf.hist.add(text) }

// SetAutocompleteProvider installs the pluggable suggestion source (spec 2
// "External collaborators").
func (m *Model) SetAutocompleteProvider(p AutocompleteProvider) {
	m.overlay.provider = p
}

// SetPaddingX sets the left/right interior padding, clamped at render time.
func (m *Model) SetPaddingX(n int) {
	if n < 0 {
		n = 0
	}
	m.paddingX = n
}

func (m *Model) SetBorderStyle(s BorderStyle) { m.borderStyle = s }

func (m *Model) IsShowingAutocomplete() bool { return m.overlay.active }

func (m *Model) SetTerminalRows(rows int) {
	if rows < 1 {
		rows = 1
	}
	m.terminalRows = rows
}

// OnSubmit registers the sink invoked with the joined, trimmed text when
// the user submits (spec 5 "Submit").
func (m *Model) OnSubmit(f func(string)) { m.onSubmit = f }

// OnChange registers the sink invoked with the raw buffer text after every
// mutation, and with "" on submit.
func (m *Model) OnChange(f func(string)) { m.onChange = f }

// SetDisableSubmit suppresses the submit sink, e.g. while a previous
// message is still being processed by the host (spec 4.4 "Submit").
func (m *Model) SetDisableSubmit(v bool) { m.disableSubmit = v }
