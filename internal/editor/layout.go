package editor

// Chunk is one visual (word-wrapped) line produced from a logical line.
// Start/End are byte offsets into the owning logical line; End is the raw
// (pre-trim) endpoint so cursor positions round-trip even through trimmed
// trailing whitespace (spec 4.3 rule 4).
type Chunk struct {
	LogicalLine int
	Start, End  int
	Text        string
}

// atom is an indivisible piece for the wrap algorithm: either a whitespace
// run, a non-whitespace token, or one grapheme-sized slice of an
// over-width token (spec 4.3 rule 3).
type atom struct {
	Start, End int
	Text       string
	IsSpace    bool
}

func buildAtoms(line string, contentWidth int) []atom {
	tokens := tokenizeLine(line)
	atoms := make([]atom, 0, len(tokens))
	for _, t := range tokens {
		if t.IsSpace || visibleWidth(t.Text) <= contentWidth {
			atoms = append(atoms, atom{t.Start, t.End, t.Text, t.IsSpace})
			continue
		}
		spans := segmentGraphemes(t.Text)
		pieceStart := 0
		pieceWidth := 0
		lastEnd := 0
		for _, g := range spans {
			gw := graphemeWidth(g.Text)
			if pieceWidth > 0 && pieceWidth+gw > contentWidth {
				atoms = append(atoms, atom{
					Start: t.Start + pieceStart,
					End:   t.Start + lastEnd,
					Text:  t.Text[pieceStart:lastEnd],
				})
				pieceStart = g.Start
				pieceWidth = 0
			}
			pieceWidth += gw
			lastEnd = g.End
		}
		if pieceStart < len(t.Text) {
			atoms = append(atoms, atom{
				Start: t.Start + pieceStart,
				End:   t.End,
				Text:  t.Text[pieceStart:],
			})
		}
	}
	return atoms
}

// wrapLine word-wraps a single logical line to contentWidth columns,
// following spec 4.3 verbatim. An empty line maps to one empty chunk.
func wrapLine(lineIdx int, line string, contentWidth int) []Chunk {
	if contentWidth < 1 {
		contentWidth = 1
	}
	if line == "" {
		return []Chunk{{LogicalLine: lineIdx, Start: 0, End: 0, Text: ""}}
	}

	atoms := buildAtoms(line, contentWidth)
	if len(atoms) == 0 {
		return []Chunk{{LogicalLine: lineIdx, Start: 0, End: len(line), Text: line}}
	}

	var chunks []Chunk
	i := 0
	chunkStart := 0
	first := true

	for i < len(atoms) {
		if !first && atoms[i].IsSpace {
			chunkStart = atoms[i].End
			i++
			continue
		}
		width := 0
		rawEnd := chunkStart
		trimmedEnd := chunkStart
		j := i
		for j < len(atoms) {
			a := atoms[j]
			aw := visibleWidth(a.Text)
			if width+aw > contentWidth && j > i {
				break
			}
			width += aw
			rawEnd = a.End
			if !a.IsSpace {
				trimmedEnd = a.End
			}
			j++
			if width >= contentWidth {
				break
			}
		}
		if j == i {
			j++
			rawEnd = atoms[i].End
			trimmedEnd = atoms[i].End
		}
		chunks = append(chunks, Chunk{
			LogicalLine: lineIdx,
			Start:       chunkStart,
			End:         rawEnd,
			Text:        line[chunkStart:trimmedEnd],
		})
		chunkStart = rawEnd
		i = j
		first = false
	}

	if len(chunks) == 0 {
		chunks = append(chunks, Chunk{LogicalLine: lineIdx, Start: 0, End: len(line), Text: line})
	}
	return chunks
}

// VisualLine indexes one entry of the full, cross-logical-line visual map.
type VisualLine struct {
	LogicalLine int
	Chunk       Chunk
}

// buildVisualMap concatenates wrapLine's output for every logical line.
func buildVisualMap(lines []string, contentWidth int) []VisualLine {
	var vmap []VisualLine
	for i, line := range lines {
		for _, c := range wrapLine(i, line, contentWidth) {
			vmap = append(vmap, VisualLine{LogicalLine: i, Chunk: c})
		}
	}
	return vmap
}

// locateCursor finds which visual line the cursor sits on and its byte
// column within that chunk's displayed text (spec 4.3 "Cursor mapping").
func locateCursor(vmap []VisualLine, cur Cursor) (visualIdx int, byteCol int) {
	for i, vl := range vmap {
		if vl.LogicalLine != cur.Line {
			continue
		}
		lastOfLine := i == len(vmap)-1 || vmap[i+1].LogicalLine != cur.Line
		rawEnd := vl.Chunk.End
		within := cur.Col >= vl.Chunk.Start && cur.Col < rawEnd
		atInclusiveEnd := lastOfLine && cur.Col == rawEnd
		if within || atInclusiveEnd {
			col := cur.Col - vl.Chunk.Start
			if col > len(vl.Chunk.Text) {
				col = len(vl.Chunk.Text)
			}
			return i, col
		}
	}
	if len(vmap) == 0 {
		return 0, 0
	}
	last := vmap[len(vmap)-1]
	return len(vmap) - 1, len(last.Chunk.Text)
}

// cellColumn returns the terminal-cell width from chunk start to byteCol.
func cellColumn(chunkText string, byteCol int) int {
	w := 0
	for _, sp := range segmentGraphemes(chunkText) {
		if sp.Start >= byteCol {
			break
		}
		w += graphemeWidth(sp.Text)
	}
	return w
}

// byteColForCell inverts cellColumn: the byte offset whose cell column is
// closest to (without exceeding) cellCol.
func byteColForCell(chunkText string, cellCol int) int {
	w := 0
	for _, sp := range segmentGraphemes(chunkText) {
		gw := graphemeWidth(sp.Text)
		if w+gw > cellCol {
			return sp.Start
		}
		w += gw
	}
	return len(chunkText)
}

// pageSize implements spec 4.4's page-motion page size.
func pageSize(terminalRows int) int {
	n := int(0.3 * float64(terminalRows))
	if n < 5 {
		n = 5
	}
	return n
}

// maxVisible implements spec 4.6's viewport height.
func maxVisible(terminalRows int) int {
	return pageSize(terminalRows)
}
