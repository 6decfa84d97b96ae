package terminal

import "strings"

// Snapshot is an immutable plain-text export of a screen used for
// restart persistence. Attributes are discarded.
type Snapshot struct {
	Cols            int      `json:"cols"`
	Rows            int      `json:"rows"`
	CursorRow       int      `json:"cursorRow"`
	CursorCol       int      `json:"cursorCol"`
	ScrollbackLines []string `json:"scrollbackLines"`
	ScreenLines     []string `json:"screenLines"`
}

// CreateSnapshot captures the visible text and up to maxScrollback
// scrollback lines (negative = all).
func (s *Screen) CreateSnapshot(maxScrollback int) Snapshot {
	snap := Snapshot{
		Cols:      s.cols,
		Rows:      s.rows,
		CursorRow: s.cursorRow,
		CursorCol: s.cursorCol,
	}
	count := s.scrollback.Len()
	start := 0
	if maxScrollback >= 0 && count > maxScrollback {
		start = count - maxScrollback
	}
	for i := start; i < count; i++ {
		snap.ScrollbackLines = append(snap.ScrollbackLines, s.scrollback.Line(i).String())
	}
	for row := 0; row < s.rows; row++ {
		snap.ScreenLines = append(snap.ScreenLines, s.grid[row].String())
	}
	return snap
}

// RestoreSnapshot clears the grid and rehydrates scrollback and visible
// text from the snapshot. Attributes default, the cursor is clamped, the
// scroll region resets, and every cell is marked dirty.
func (s *Screen) RestoreSnapshot(snap Snapshot) {
	if s.altActive {
		s.SwitchToMainScreen()
	}
	s.grid = makeGrid(s.cols, s.rows)
	s.scrollback.Clear()
	for _, text := range snap.ScrollbackLines {
		s.scrollback.Push(textToLine(text, s.cols))
	}
	for row := 0; row < s.rows && row < len(snap.ScreenLines); row++ {
		s.grid[row] = textToLine(snap.ScreenLines[row], s.cols)
	}
	s.cursorRow = clamp(snap.CursorRow, 0, s.rows-1)
	s.cursorCol = clamp(snap.CursorCol, 0, s.cols-1)
	s.wrapPending = false
	s.attr = DefaultAttribute
	s.ResetScrollRegion()
	s.markAllDirty()
}

// ExportPlainText renders up to maxScrollback history lines (negative =
// all) followed by the visible screen, newline-joined, with trailing
// blank visible rows trimmed.
func (s *Screen) ExportPlainText(maxScrollback int) string {
	snap := s.CreateSnapshot(maxScrollback)
	lines := append([]string{}, snap.ScrollbackLines...)
	screen := snap.ScreenLines
	lastNonEmpty := -1
	for i, line := range screen {
		if line != "" {
			lastNonEmpty = i
		}
	}
	lines = append(lines, screen[:lastNonEmpty+1]...)
	return strings.Join(lines, "\n")
}

// textToLine builds a grid line from plain text, truncating to cols and
// padding with blanks.
func textToLine(text string, cols int) Line {
	line := blankLine(cols)
	for i, r := range []rune(text) {
		if i >= cols {
			break
		}
		line[i] = Cell{Rune: r, Attr: DefaultAttribute, Width: runeWidth(r), Dirty: true}
	}
	return line
}
