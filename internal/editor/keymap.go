package editor

// Intent is the single decoded action produced by the input decoder for one
// host event (spec 4.2).
type Intent int

const (
	IntentNone Intent = iota
	IntentInsertText
	IntentSubmit
	IntentNewLine
	IntentCursorUp
	IntentCursorDown
	IntentCursorLeft
	IntentCursorRight
	IntentCursorLineStart
	IntentCursorLineEnd
	IntentCursorWordLeft
	IntentCursorWordRight
	IntentDeleteCharBackward
	IntentDeleteCharForward
	IntentDeleteWordBackward
	IntentDeleteToLineStart
	IntentDeleteToLineEnd
	IntentPageUp
	IntentPageDown
	IntentTab
	IntentSelectUp
	IntentSelectDown
	IntentSelectConfirm
	IntentSelectCancel
	IntentCopy
	IntentCSIu
	IntentPaste
)

// decoded is one fully-resolved input event: an Intent plus any text payload
// (for IntentInsertText/IntentCSIu/IntentPaste).
type decoded struct {
	Intent Intent
	Text   string
}

// keyBinding is one entry of the named-key table (spec 4.2 "Named key
// bindings"): the exact byte sequence the terminal sends, mapped to an
// editor-level intent.
type keyBinding struct {
	Seq    string
	Intent Intent
}

// DefaultKeyBindings is the shared keybinding table referenced by spec
// 4.2. Sequences follow the common xterm/VT100 conventions also assumed by
// the rest of this module's terminal-facing code.
func DefaultKeyBindings() []keyBinding {
	return []keyBinding{
		{"\r", IntentSubmit},
		{"\n", IntentSubmit},
		{"\x1bOM", IntentNewLine},  // shift+enter (some terminals)
		{"\x1b\r", IntentNewLine},  // alt+enter
		{"\x1b[A", IntentCursorUp},
		{"\x1b[B", IntentCursorDown},
		{"\x1b[C", IntentCursorRight},
		{"\x1b[D", IntentCursorLeft},
		{"\x1bOA", IntentCursorUp},
		{"\x1bOB", IntentCursorDown},
		{"\x1bOC", IntentCursorRight},
		{"\x1bOD", IntentCursorLeft},
		{"\x1b[H", IntentCursorLineStart},
		{"\x1b[F", IntentCursorLineEnd},
		{"\x01", IntentCursorLineStart}, // ctrl+a
		{"\x05", IntentCursorLineEnd},   // ctrl+e
		{"\x1b[1;5D", IntentCursorWordLeft},  // ctrl+left
		{"\x1b[1;5C", IntentCursorWordRight}, // ctrl+right
		{"\x1bb", IntentCursorWordLeft},  // alt+b
		{"\x1bf", IntentCursorWordRight}, // alt+f
		{"\x7f", IntentDeleteCharBackward},
		{"\x08", IntentDeleteCharBackward},
		{"\x1b[3~", IntentDeleteCharForward},
		{"\x04", IntentDeleteCharForward}, // ctrl+d
		{"\x17", IntentDeleteWordBackward}, // ctrl+w
		{"\x1b\x7f", IntentDeleteWordBackward}, // alt+backspace
		{"\x15", IntentDeleteToLineStart}, // ctrl+u
		{"\x0b", IntentDeleteToLineEnd},   // ctrl+k
		{"\x1b[5~", IntentPageUp},
		{"\x1b[6~", IntentPageDown},
		{"\t", IntentTab},
		{"\x03", IntentCopy}, // ctrl+c is passed through to the host
		{"\x1b[Z", IntentSelectUp}, // shift+tab, reused while overlay active
	}
}

// overlayKeyBindings are consulted only while the autocomplete overlay is
// active, taking precedence over the shared table for the keys they name
// (spec 4.5).
func overlayKeyBindings() []keyBinding {
	return []keyBinding{
		{"\x1b[A", IntentSelectUp},
		{"\x1bOA", IntentSelectUp},
		{"\x1b[B", IntentSelectDown},
		{"\x1bOB", IntentSelectDown},
		{"\r", IntentSelectConfirm},
		{"\n", IntentSelectConfirm},
		{"\x1b", IntentSelectCancel},
		{"\t", IntentTab},
	}
}
