package editor

// maxHistory caps the number of remembered submissions (spec 3 "History").
const maxHistory = 100

// history is an ordered, most-recent-first log of trimmed, non-empty
// submissions. No two adjacent entries are equal (invariant 5).
type history struct {
	entries []string
}

// add records a new submission as the newest entry (index 0), enforcing
// the dedup and cap invariants.
func (h *history) add(text string) {
	if text == "" {
		return
	}
	if len(h.entries) > 0 && h.entries[0] == text {
		return
	}
	h.entries = append([]string{text}, h.entries...)
	if len(h.entries) > maxHistory {
		h.entries = h.entries[:maxHistory]
	}
}

func (h *history) len() int {
	return len(h.entries)
}

// at returns the i-th most-recent entry (0 == newest).
func (h *history) at(i int) string {
	if i < 0 || i >= len(h.entries) {
		return ""
	}
	return h.entries[i]
}
