package editor

import "strings"

// BorderStyle selects the corner/line glyphs the renderer draws around the
// editor (spec 5 "Construction options").
type BorderStyle int

const (
	BorderRounded BorderStyle = iota
	BorderSharp
	BorderNone
)

type borderGlyphs struct {
	topLeft, topRight       string
	bottomLeft, bottomRight string
	horizontal              string
}

func glyphsFor(s BorderStyle) borderGlyphs {
	switch s {
	case BorderSharp:
		return borderGlyphs{"┌", "┐", "└", "┘", "─"}
	case BorderNone:
		return borderGlyphs{"", "", "", "", ""}
	default:
		return borderGlyphs{"╭", "╮", "╰", "╯", "─"}
	}
}

// topBorder builds the top ruled line, width cells wide. When scrollOffset
// is positive the indicator "─── ↑ <N> more " replaces its leading cells
// (spec 5 step 5).
func topBorder(width int, style BorderStyle, scrollAbove int) string {
	return borderLine(width, style, true, scrollAbove)
}

// bottomBorder is the symmetric counterpart (spec 5 step 7).
func bottomBorder(width int, style BorderStyle, scrollBelow int) string {
	return borderLine(width, style, false, scrollBelow)
}

func borderLine(width int, style BorderStyle, top bool, more int) string {
	if width < 1 {
		width = 1
	}
	g := glyphsFor(style)
	if style == BorderNone {
		return strings.Repeat(" ", width)
	}
	if width == 1 {
		return g.horizontal
	}

	left, right := g.topLeft, g.topRight
	if !top {
		left, right = g.bottomLeft, g.bottomRight
	}

	inner := width - 2
	fill := strings.Repeat(g.horizontal, inner)
	if more > 0 {
		arrow := "↑"
		if !top {
			arrow = "↓"
		}
		indicator := g.horizontal + g.horizontal + g.horizontal + " " + arrow + " " + itoa(more) + " more "
		if iw := visibleWidth(indicator); iw < inner {
			fill = indicator + strings.Repeat(g.horizontal, inner-iw)
		} else {
			fill = padOrTruncate(indicator, inner)
		}
	}
	return left + fill + right
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
