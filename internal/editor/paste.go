package editor

import (
	"fmt"
	"regexp"
	"strconv"
)

// Paste deduplication thresholds (spec 3, spec 9 "deliberately asymmetric").
const (
	pasteLineThreshold = 10
	pasteByteThreshold = 1000
)

// pasteMarkerPattern matches both marker shapes: "[paste #<id> +<N> lines]"
// and "[paste #<id> <N> chars]". Matching is case-sensitive (spec 6).
var pasteMarkerPattern = regexp.MustCompile(`\[paste #(\d+) (?:\+(\d+) lines|(\d+) chars)\]`)

// pasteTable maps a monotonically increasing paste id to the original
// pasted text (spec 3 "Paste table").
type pasteTable struct {
	entries map[int]string
	nextID  int
}

func newPasteTable() *pasteTable {
	return &pasteTable{entries: make(map[int]string)}
}

// store assigns a fresh id to text and returns it together with the literal
// marker that should be spliced into the buffer in its place.
func (t *pasteTable) store(text string, lineCount, byteCount int) (id int, marker string) {
	t.nextID++
	id = t.nextID
	t.entries[id] = text
	return id, markerFor(id, lineCount, byteCount)
}

func (t *pasteTable) reset() {
	t.entries = make(map[int]string)
	t.nextID = 0
}

// markerFor renders the placeholder marker shape. The ">10 lines" trigger
// wins the "+N lines" rendering even when the byte threshold also fired,
// since the line count is checked first here.
func markerFor(id, lineCount, byteCount int) string {
	if lineCount > pasteLineThreshold {
		return fmt.Sprintf("[paste #%d +%d lines]", id, lineCount)
	}
	return fmt.Sprintf("[paste #%d %d chars]", id, byteCount)
}

// expandMarkers replaces every paste marker occurrence in s with its stored
// original text. A marker whose id is missing from the table (invariant 4
// violated by a host bug) is left as literal text; expansion never fails.
func expandMarkers(s string, t *pasteTable) string {
	if t == nil || len(t.entries) == 0 {
		return s
	}
	return pasteMarkerPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := pasteMarkerPattern.FindStringSubmatch(m)
		if sub == nil {
			return m
		}
		id, err := strconv.Atoi(sub[1])
		if err != nil {
			return m
		}
		if orig, ok := t.entries[id]; ok {
			return orig
		}
		return m
	})
}
