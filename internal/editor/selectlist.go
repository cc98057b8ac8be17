package editor

import (
	"fmt"
	"strings"
)

// selectList is the overlay's sub-widget: a minimal, swappable contract of
// handle_input / get_selected / render (spec 9 "Overlay as sub-widget").
type selectList struct {
	items  []Item
	cursor int
}

func newSelectList(items []Item) selectList {
	return selectList{items: items}
}

func (l *selectList) moveUp() {
	if len(l.items) == 0 {
		return
	}
	l.cursor--
	if l.cursor < 0 {
		l.cursor = len(l.items) - 1
	}
}

func (l *selectList) moveDown() {
	if len(l.items) == 0 {
		return
	}
	l.cursor++
	if l.cursor >= len(l.items) {
		l.cursor = 0
	}
}

func (l *selectList) selected() (Item, bool) {
	if len(l.items) == 0 || l.cursor < 0 || l.cursor >= len(l.items) {
		return Item{}, false
	}
	return l.items[l.cursor], true
}

// render draws each item padded to width, highlighting the selected row.
func (l *selectList) render(width int, selectedStyle func(string) string) []string {
	if width < 1 {
		width = 1
	}
	rows := make([]string, 0, len(l.items))
	for i, item := range l.items {
		label := item.Label
		if item.Description != "" {
			label = fmt.Sprintf("%s  %s", item.Label, item.Description)
		}
		row := padOrTruncate(label, width)
		if i == l.cursor && selectedStyle != nil {
			row = selectedStyle(row)
		}
		rows = append(rows, row)
	}
	return rows
}

func padOrTruncate(s string, width int) string {
	w := visibleWidth(s)
	if w == width {
		return s
	}
	if w < width {
		return s + strings.Repeat(" ", width-w)
	}
	// Truncate by grapheme so we never split a cluster.
	out := strings.Builder{}
	acc := 0
	for _, sp := range segmentGraphemes(s) {
		gw := graphemeWidth(sp.Text)
		if acc+gw > width {
			break
		}
		out.WriteString(sp.Text)
		acc += gw
	}
	for acc < width {
		out.WriteByte(' ')
		acc++
	}
	return out.String()
}
