package editor

import "testing"

func decodeAll(raw string, overlayActive bool) []decoded {
	d := newDecoder()
	return d.decode([]byte(raw), overlayActive)
}

func TestDecodePlainText(t *testing.T) {
	evs := decodeAll("hi", false)
	if len(evs) != 2 || evs[0].Intent != IntentInsertText || evs[0].Text != "h" {
		t.Fatalf("decode(\"hi\") = %+v", evs)
	}
}

func TestDecodeEnterIsSubmit(t *testing.T) {
	evs := decodeAll("\r", false)
	if len(evs) != 1 || evs[0].Intent != IntentSubmit {
		t.Fatalf("decode(CR) = %+v", evs)
	}
}

func TestDecodeAltEnterIsNewline(t *testing.T) {
	evs := decodeAll("\x1b\r", false)
	if len(evs) != 1 || evs[0].Intent != IntentNewLine {
		t.Fatalf("decode(alt+enter) = %+v", evs)
	}
}

func TestDecodeArrowKeys(t *testing.T) {
	evs := decodeAll("\x1b[A\x1b[B\x1b[C\x1b[D", false)
	want := []Intent{IntentCursorUp, IntentCursorDown, IntentCursorRight, IntentCursorLeft}
	if len(evs) != len(want) {
		t.Fatalf("decode(arrows) = %+v", evs)
	}
	for i, w := range want {
		if evs[i].Intent != w {
			t.Fatalf("arrow %d: got %v want %v", i, evs[i].Intent, w)
		}
	}
}

func TestDecodeOverlayArrowsBecomeSelectMotion(t *testing.T) {
	evs := decodeAll("\x1b[A", true)
	if len(evs) != 1 || evs[0].Intent != IntentSelectUp {
		t.Fatalf("overlay-active up arrow should select, got %+v", evs)
	}
}

func TestDecodeCtrlCAlwaysCopiesEvenInOverlay(t *testing.T) {
	evs := decodeAll("\x03", true)
	if len(evs) != 1 || evs[0].Intent != IntentCopy {
		t.Fatalf("ctrl+c should always decode as copy passthrough, got %+v", evs)
	}
}

func TestDecodeBracketedPaste(t *testing.T) {
	raw := "\x1b[200~pasted text\x1b[201~"
	evs := decodeAll(raw, false)
	if len(evs) != 1 || evs[0].Intent != IntentPaste || evs[0].Text != "pasted text" {
		t.Fatalf("decode(bracketed paste) = %+v", evs)
	}
}

func TestDecodeBracketedPasteSplitAcrossChunks(t *testing.T) {
	d := newDecoder()
	first := d.decode([]byte("\x1b[200~hello "), false)
	if len(first) != 0 {
		t.Fatalf("no event should fire before the paste-end marker arrives, got %+v", first)
	}
	second := d.decode([]byte("world\x1b[201~"), false)
	if len(second) != 1 || second[0].Text != "hello world" {
		t.Fatalf("paste split across chunks = %+v", second)
	}
}

func TestDecodePendingBackslashNewline(t *testing.T) {
	evs := decodeAll("\\\r", false)
	if len(evs) != 1 || evs[0].Intent != IntentNewLine {
		t.Fatalf("backslash followed by CR should become a newline insert, got %+v", evs)
	}
}

func TestDecodePendingBackslashLiteral(t *testing.T) {
	evs := decodeAll("\\x", false)
	if len(evs) != 2 || evs[0].Intent != IntentInsertText || evs[0].Text != "\\" {
		t.Fatalf("lone backslash not before a newline should insert a literal backslash, got %+v", evs)
	}
	if evs[1].Text != "x" {
		t.Fatalf("expected the following rune to decode normally, got %+v", evs[1])
	}
}

func TestDecodeCSIu(t *testing.T) {
	evs := decodeAll("\x1b[97u", false) // codepoint 97 = 'a'
	if len(evs) != 1 || evs[0].Intent != IntentCSIu || evs[0].Text != "a" {
		t.Fatalf("decode(CSI-u 'a') = %+v", evs)
	}
}

func TestDecodeBackspaceAndTab(t *testing.T) {
	evs := decodeAll("\x7f\t", false)
	if len(evs) != 2 || evs[0].Intent != IntentDeleteCharBackward || evs[1].Intent != IntentTab {
		t.Fatalf("decode(backspace+tab) = %+v", evs)
	}
}

func TestMatchBindingPrefersLongestMatch(t *testing.T) {
	table := []keyBinding{
		{Seq: "\x1b[1;5D", Intent: IntentCursorWordLeft},
		{Seq: "\x1b[", Intent: IntentNone},
	}
	seq, intent, ok := matchBinding("\x1b[1;5D", table)
	if !ok || seq != "\x1b[1;5D" || intent != IntentCursorWordLeft {
		t.Fatalf("matchBinding should prefer the longest matching sequence, got %q %v %v", seq, intent, ok)
	}
}
