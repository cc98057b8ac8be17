package editor

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	pasteStartSeq = "\x1b[200~"
	pasteEndSeq   = "\x1b[201~"
)

// csiURe matches a Kitty keyboard-protocol CSI-u sequence: ESC [ <cp>
// (: <shifted>)? (: <base>)? (; <mod>)? (: <sub>)? u  (spec 4.2 "CSI-u").
var csiURe = regexp.MustCompile(`^\x1b\[(\d+)(?::(\d+))?(?::(\d+))?(?:;(\d+))?(?::(\d+))?u`)

// decoder turns a raw byte chunk into a sequence of editor intents,
// carrying the state a single chunk cannot resolve alone: an in-progress
// bracketed paste, and a pending backslash waiting to see whether it is
// followed by a newline (spec 4.2).
type decoder struct {
	pasteActive bool
	pasteBuf    []byte

	pendingBackslash bool
}

func newDecoder() *decoder {
	return &decoder{}
}

// decode consumes raw and returns the intents it resolves to, in order.
// overlayActive selects the overlay keybinding table ahead of the default
// one (spec 4.5); ordering within a chunk follows spec 4.2's precedence:
// bracketed-paste state, then pending-backslash, then copy passthrough,
// then overlay keys, then the keybinding table, then CSI-u, then printable
// text.
func (d *decoder) decode(raw []byte, overlayActive bool) []decoded {
	var out []decoded
	i := 0
	for i < len(raw) {
		if d.pasteActive {
			consumed, ev, done := d.continuePaste(raw[i:])
			i += consumed
			if ev != nil {
				out = append(out, *ev)
			}
			if !done {
				break
			}
			continue
		}

		rest := raw[i:]

		if d.pendingBackslash {
			d.pendingBackslash = false
			if strings.HasPrefix(string(rest), "\r") || strings.HasPrefix(string(rest), "\n") {
				out = append(out, decoded{Intent: IntentNewLine})
				i++
				continue
			}
			out = append(out, decoded{Intent: IntentInsertText, Text: "\\"})
			// fall through: reprocess rest below without advancing i further
		}

		if strings.HasPrefix(string(rest), pasteStartSeq) {
			d.pasteActive = true
			d.pasteBuf = d.pasteBuf[:0]
			i += len(pasteStartSeq)
			continue
		}

		if rest[0] == '\\' {
			d.pendingBackslash = true
			i++
			continue
		}

		if rest[0] == 0x03 {
			out = append(out, decoded{Intent: IntentCopy})
			i++
			continue
		}

		if overlayActive {
			if seq, intent, ok := matchBinding(string(rest), overlayKeyBindings()); ok {
				out = append(out, decoded{Intent: intent})
				i += len(seq)
				continue
			}
		}

		if seq, intent, ok := matchBinding(string(rest), DefaultKeyBindings()); ok {
			out = append(out, decoded{Intent: intent})
			i += len(seq)
			continue
		}

		if loc := csiURe.FindStringSubmatchIndex(string(rest)); loc != nil {
			m := csiURe.FindStringSubmatch(string(rest))
			if text, ok := decodeCSIu(m); ok {
				out = append(out, decoded{Intent: IntentCSIu, Text: text})
			}
			i += loc[1]
			continue
		}

		r, size := utf8.DecodeRune(rest)
		if r == utf8.RuneError && size <= 1 {
			i++
			continue
		}
		if unicode.IsControl(r) {
			i += size
			continue
		}
		out = append(out, decoded{Intent: IntentInsertText, Text: string(r)})
		i += size
	}
	return out
}

// continuePaste feeds bytes into the in-progress paste buffer until the end
// marker is found, returning how many bytes of chunk were consumed, the
// resulting IntentPaste event (nil if the marker has not arrived yet, so
// the pasted text can be routed through buffer.ingestPaste instead of a
// plain insert), and whether the paste is now complete.
func (d *decoder) continuePaste(chunk []byte) (int, *decoded, bool) {
	idx := strings.Index(string(chunk), pasteEndSeq)
	if idx < 0 {
		d.pasteBuf = append(d.pasteBuf, chunk...)
		return len(chunk), nil, false
	}
	d.pasteBuf = append(d.pasteBuf, chunk[:idx]...)
	d.pasteActive = false
	text := string(d.pasteBuf)
	d.pasteBuf = nil
	ev := decoded{Intent: IntentPaste, Text: text}
	return idx + len(pasteEndSeq), &ev, true
}

// matchBinding finds the longest sequence in table that prefixes s.
func matchBinding(s string, table []keyBinding) (string, Intent, bool) {
	bestLen := -1
	bestIntent := IntentNone
	for _, kb := range table {
		if len(kb.Seq) > 0 && strings.HasPrefix(s, kb.Seq) && len(kb.Seq) > bestLen {
			bestLen = len(kb.Seq)
			bestIntent = kb.Intent
		}
	}
	if bestLen < 0 {
		return "", IntentNone, false
	}
	return s[:bestLen], bestIntent, true
}

// decodeCSIu turns the regexp submatches into the literal rune the sequence
// represents, honoring the shifted-codepoint field when present.
func decodeCSIu(m []string) (string, bool) {
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	cp, err := strconv.Atoi(m[1])
	if err != nil || cp <= 0 {
		return "", false
	}
	if m[2] != "" {
		if shifted, err := strconv.Atoi(m[2]); err == nil && shifted > 0 {
			cp = shifted
		}
	}
	if !utf8.ValidRune(rune(cp)) {
		return "", false
	}
	r := rune(cp)
	if unicode.IsControl(r) {
		return "", false
	}
	return string(r), true
}
