package terminal

// Modes holds the screen's toggleable terminal modes. AutoWrap and
// CursorVisible start enabled; everything else starts off.
type Modes struct {
	AutoWrap       bool
	OriginMode     bool
	InsertMode     bool
	CursorVisible  bool
	AppCursorKeys  bool
	BracketedPaste bool
	MouseX10       bool
	MouseNormal    bool
	MouseButton    bool
	MouseAny       bool
	MouseSGR       bool
}

// savedMain holds the main-screen state stashed while the alternate
// screen is active.
type savedMain struct {
	grid       []Line
	scrollback *ScrollbackBuffer
	cursorRow  int
	cursorCol  int
	attr       Attribute
}

// Screen is the mutable cell grid driven by the VT parser: cursor,
// scroll region, writing attribute, mode flags, alternate-screen swap,
// and the scrollback ring that natural scrolling spills into.
//
// Screen is not safe for concurrent use; the owning Session's lock
// serializes all access.
type Screen struct {
	rows int
	cols int
	grid []Line

	cursorRow   int
	cursorCol   int
	wrapPending bool

	scrollTop    int
	scrollBottom int

	attr      Attribute
	savedRow  int
	savedCol  int
	savedAttr Attribute

	Modes Modes

	scrollback *ScrollbackBuffer
	altActive  bool
	saved      *savedMain

	hasDirty bool

	// OnContentChanged is invoked (best effort) after a batch of
	// mutations; consumers coalesce.
	OnContentChanged func()
}

// NewScreen creates a screen of the given size with a scrollback ring of
// the given capacity.
func NewScreen(cols, rows, scrollbackCapacity int) *Screen {
	s := &Screen{
		rows:       rows,
		cols:       cols,
		scrollback: NewScrollbackBuffer(scrollbackCapacity),
	}
	s.grid = makeGrid(cols, rows)
	s.scrollBottom = rows - 1
	if s.scrollBottom < 0 {
		s.scrollBottom = 0
	}
	s.attr = DefaultAttribute
	s.savedAttr = DefaultAttribute
	s.Modes.AutoWrap = true
	s.Modes.CursorVisible = true
	return s
}

func makeGrid(cols, rows int) []Line {
	grid := make([]Line, rows)
	for i := range grid {
		grid[i] = blankLine(cols)
	}
	return grid
}

// Size returns the grid dimensions.
func (s *Screen) Size() (cols, rows int) {
	return s.cols, s.rows
}

// Cursor returns the cursor position.
func (s *Screen) Cursor() (row, col int) {
	return s.cursorRow, s.cursorCol
}

// WrapPending reports whether the next printable defers to CR+LF first.
func (s *Screen) WrapPending() bool {
	return s.wrapPending
}

// ScrollRegion returns the inclusive scroll margins.
func (s *Screen) ScrollRegion() (top, bottom int) {
	return s.scrollTop, s.scrollBottom
}

// Attr returns the current writing attribute.
func (s *Screen) Attr() Attribute {
	return s.attr
}

// SetAttr replaces the current writing attribute.
func (s *Screen) SetAttr(attr Attribute) {
	s.attr = attr
}

// AltScreenActive reports whether the alternate screen is in use.
func (s *Screen) AltScreenActive() bool {
	return s.altActive
}

// Scrollback returns the active scrollback ring.
func (s *Screen) Scrollback() *ScrollbackBuffer {
	return s.scrollback
}

// Cell returns a copy of the cell at (row, col), or a blank cell when out
// of bounds.
func (s *Screen) Cell(row, col int) Cell {
	if row < 0 || row >= s.rows || col < 0 || col >= s.cols {
		return NewCell()
	}
	return s.grid[row][col]
}

// Row returns the grid line at the given row. The returned slice aliases
// the grid; callers must not retain it across mutations.
func (s *Screen) Row(row int) Line {
	if row < 0 || row >= s.rows {
		return nil
	}
	return s.grid[row]
}

// WriteChar prints one rune at the cursor, honoring deferred wrap and
// insert mode, and advances the cursor.
func (s *Screen) WriteChar(r rune) {
	if s.rows == 0 || s.cols == 0 {
		return
	}
	if s.wrapPending && s.Modes.AutoWrap {
		s.CarriageReturn()
		s.LineFeed()
	}
	s.clampCursor()

	if s.Modes.InsertMode {
		row := s.grid[s.cursorRow]
		for c := s.cols - 1; c > s.cursorCol; c-- {
			row[c] = row[c-1]
			row[c].Dirty = true
		}
	}

	s.grid[s.cursorRow][s.cursorCol] = Cell{
		Rune:  r,
		Attr:  s.attr,
		Width: runeWidth(r),
		Dirty: true,
	}
	s.hasDirty = true

	if s.cursorCol < s.cols-1 {
		s.cursorCol++
	} else if s.Modes.AutoWrap {
		s.wrapPending = true
	}
}

// CarriageReturn moves the cursor to column 0.
func (s *Screen) CarriageReturn() {
	s.cursorCol = 0
	s.wrapPending = false
}

// LineFeed moves the cursor down one row, scrolling the region when the
// cursor sits on the bottom margin.
func (s *Screen) LineFeed() {
	s.wrapPending = false
	if s.cursorRow == s.scrollBottom {
		s.ScrollUp(1)
	} else if s.cursorRow < s.rows-1 {
		s.cursorRow++
	}
}

// ReverseLineFeed moves the cursor up one row, scrolling the region down
// when the cursor sits on the top margin.
func (s *Screen) ReverseLineFeed() {
	s.wrapPending = false
	if s.cursorRow == s.scrollTop {
		s.ScrollDown(1)
	} else if s.cursorRow > 0 {
		s.cursorRow--
	}
}

// NewLine performs CR then LF.
func (s *Screen) NewLine() {
	s.CarriageReturn()
	s.LineFeed()
}

// Tab advances the cursor to the next multiple of 8, clamped to the last
// column.
func (s *Screen) Tab() {
	s.wrapPending = false
	if s.cols == 0 {
		return
	}
	next := (s.cursorCol/8 + 1) * 8
	if next > s.cols-1 {
		next = s.cols - 1
	}
	s.cursorCol = next
}

// Backspace moves the cursor one column left, stopping at column 0.
func (s *Screen) Backspace() {
	s.wrapPending = false
	if s.cursorCol > 0 {
		s.cursorCol--
	}
}

// ScrollUp shifts the scroll region up by n lines. Lines evicted off the
// top spill into scrollback only when the top margin is row 0 (natural
// scroll) and the main screen is active.
func (s *Screen) ScrollUp(n int) {
	s.scrollUpIn(s.scrollTop, s.scrollBottom, n, s.scrollTop == 0 && !s.altActive)
}

// ScrollDown shifts the scroll region down by n lines. Nothing spills
// into scrollback.
func (s *Screen) ScrollDown(n int) {
	s.scrollDownIn(s.scrollTop, s.scrollBottom, n)
}

func (s *Screen) scrollUpIn(top, bottom, n int, spill bool) {
	if n <= 0 || top > bottom || s.rows == 0 {
		return
	}
	size := bottom - top + 1
	if n > size {
		n = size
	}
	if spill {
		for i := 0; i < n; i++ {
			s.scrollback.Push(s.grid[top+i])
		}
	}
	for row := top; row <= bottom-n; row++ {
		s.grid[row] = s.grid[row+n]
		s.markRowDirty(row)
	}
	for row := bottom - n + 1; row <= bottom; row++ {
		s.grid[row] = blankLine(s.cols)
		s.markRowDirty(row)
	}
	s.hasDirty = true
}

func (s *Screen) scrollDownIn(top, bottom, n int) {
	if n <= 0 || top > bottom || s.rows == 0 {
		return
	}
	size := bottom - top + 1
	if n > size {
		n = size
	}
	for row := bottom; row >= top+n; row-- {
		s.grid[row] = s.grid[row-n]
		s.markRowDirty(row)
	}
	for row := top; row < top+n; row++ {
		s.grid[row] = blankLine(s.cols)
		s.markRowDirty(row)
	}
	s.hasDirty = true
}

// EraseInDisplay clears part of the screen: 0 = cursor to end, 1 = start
// to cursor, 2 = all, 3 = all plus scrollback.
func (s *Screen) EraseInDisplay(mode int) {
	if s.rows == 0 || s.cols == 0 {
		return
	}
	s.clampCursor()
	switch mode {
	case 0:
		s.clearRowRange(s.cursorRow, s.cursorCol, s.cols)
		for row := s.cursorRow + 1; row < s.rows; row++ {
			s.clearRowRange(row, 0, s.cols)
		}
	case 1:
		for row := 0; row < s.cursorRow; row++ {
			s.clearRowRange(row, 0, s.cols)
		}
		s.clearRowRange(s.cursorRow, 0, s.cursorCol+1)
	case 2:
		for row := 0; row < s.rows; row++ {
			s.clearRowRange(row, 0, s.cols)
		}
	case 3:
		for row := 0; row < s.rows; row++ {
			s.clearRowRange(row, 0, s.cols)
		}
		s.scrollback.Clear()
	}
}

// EraseInLine clears part of the cursor's row: 0 = cursor to end, 1 =
// start to cursor, 2 = whole row.
func (s *Screen) EraseInLine(mode int) {
	if s.rows == 0 || s.cols == 0 {
		return
	}
	s.clampCursor()
	switch mode {
	case 0:
		s.clearRowRange(s.cursorRow, s.cursorCol, s.cols)
	case 1:
		s.clearRowRange(s.cursorRow, 0, s.cursorCol+1)
	case 2:
		s.clearRowRange(s.cursorRow, 0, s.cols)
	}
}

// EraseChars blanks n cells starting at the cursor without shifting.
func (s *Screen) EraseChars(n int) {
	if s.rows == 0 || s.cols == 0 || n <= 0 {
		return
	}
	s.clampCursor()
	s.clearRowRange(s.cursorRow, s.cursorCol, s.cursorCol+n)
}

// InsertChars shifts the cursor row right by n from the cursor, filling
// with blanks. Cells pushed past the last column are lost.
func (s *Screen) InsertChars(n int) {
	if s.rows == 0 || s.cols == 0 || n <= 0 {
		return
	}
	s.clampCursor()
	if n > s.cols-s.cursorCol {
		n = s.cols - s.cursorCol
	}
	row := s.grid[s.cursorRow]
	for c := s.cols - 1; c >= s.cursorCol+n; c-- {
		row[c] = row[c-n]
		row[c].Dirty = true
	}
	for c := s.cursorCol; c < s.cursorCol+n; c++ {
		row[c] = blankCell(s.attr)
	}
	s.hasDirty = true
}

// DeleteChars shifts the cursor row left by n from the cursor, filling
// the tail with blanks.
func (s *Screen) DeleteChars(n int) {
	if s.rows == 0 || s.cols == 0 || n <= 0 {
		return
	}
	s.clampCursor()
	if n > s.cols-s.cursorCol {
		n = s.cols - s.cursorCol
	}
	row := s.grid[s.cursorRow]
	for c := s.cursorCol; c < s.cols-n; c++ {
		row[c] = row[c+n]
		row[c].Dirty = true
	}
	for c := s.cols - n; c < s.cols; c++ {
		row[c] = blankCell(s.attr)
	}
	s.hasDirty = true
}

// InsertLines inserts n blank lines at the cursor row, shifting lines
// down within [cursorRow, scrollBottom]. No effect outside the region.
func (s *Screen) InsertLines(n int) {
	s.clampCursor()
	if s.cursorRow < s.scrollTop || s.cursorRow > s.scrollBottom {
		return
	}
	s.scrollDownIn(s.cursorRow, s.scrollBottom, n)
}

// DeleteLines removes n lines at the cursor row, shifting lines up
// within [cursorRow, scrollBottom]. Nothing spills into scrollback.
func (s *Screen) DeleteLines(n int) {
	s.clampCursor()
	if s.cursorRow < s.scrollTop || s.cursorRow > s.scrollBottom {
		return
	}
	s.scrollUpIn(s.cursorRow, s.scrollBottom, n, false)
}

// SetScrollRegion sets the inclusive scroll margins, clamping to the
// grid and swapping if inverted.
func (s *Screen) SetScrollRegion(top, bottom int) {
	if s.rows == 0 {
		return
	}
	top = clamp(top, 0, s.rows-1)
	bottom = clamp(bottom, 0, s.rows-1)
	if top > bottom {
		top, bottom = bottom, top
	}
	s.scrollTop = top
	s.scrollBottom = bottom
}

// ResetScrollRegion restores full-screen margins.
func (s *Screen) ResetScrollRegion() {
	s.scrollTop = 0
	s.scrollBottom = s.rows - 1
	if s.scrollBottom < 0 {
		s.scrollBottom = 0
	}
}

// SaveCursor stores the cursor position and writing attribute (DECSC).
func (s *Screen) SaveCursor() {
	s.savedRow = s.cursorRow
	s.savedCol = s.cursorCol
	s.savedAttr = s.attr
}

// RestoreCursor restores the state stored by SaveCursor (DECRC).
func (s *Screen) RestoreCursor() {
	s.cursorRow = s.savedRow
	s.cursorCol = s.savedCol
	s.attr = s.savedAttr
	s.wrapPending = false
	s.clampCursor()
}

// SwitchToAlternateScreen stashes the main grid, scrollback, cursor and
// attribute, then presents a blank alternate screen with full margins
// and default attribute. Idempotent when already on the alternate
// screen: a second entry does not reset the alt content.
func (s *Screen) SwitchToAlternateScreen() {
	if s.altActive {
		return
	}
	s.saved = &savedMain{
		grid:       s.grid,
		scrollback: s.scrollback,
		cursorRow:  s.cursorRow,
		cursorCol:  s.cursorCol,
		attr:       s.attr,
	}
	s.grid = makeGrid(s.cols, s.rows)
	s.scrollback = NewScrollbackBuffer(s.saved.scrollback.Capacity())
	s.cursorRow, s.cursorCol = 0, 0
	s.wrapPending = false
	s.attr = DefaultAttribute
	s.ResetScrollRegion()
	s.altActive = true
	s.markAllDirty()
}

// SwitchToMainScreen restores the state stashed by the last alternate-
// screen entry. Idempotent when already on the main screen.
func (s *Screen) SwitchToMainScreen() {
	if !s.altActive || s.saved == nil {
		return
	}
	s.grid = s.saved.grid
	s.scrollback = s.saved.scrollback
	s.cursorRow = s.saved.cursorRow
	s.cursorCol = s.saved.cursorCol
	s.attr = s.saved.attr
	s.saved = nil
	s.wrapPending = false
	s.ResetScrollRegion()
	s.altActive = false
	s.clampCursor()
	s.markAllDirty()
}

// MoveCursorTo places the cursor, clamping to the grid.
func (s *Screen) MoveCursorTo(row, col int) {
	s.cursorRow = clamp(row, 0, s.rows-1)
	s.cursorCol = clamp(col, 0, s.cols-1)
	s.wrapPending = false
}

// MoveCursorUp moves up by n, clamping to the top margin unless the
// cursor starts above the scroll region.
func (s *Screen) MoveCursorUp(n int) {
	limit := s.scrollTop
	if s.cursorRow < s.scrollTop {
		limit = 0
	}
	s.cursorRow = clamp(s.cursorRow-n, limit, s.rows-1)
	s.wrapPending = false
}

// MoveCursorDown moves down by n, clamping to the bottom margin unless
// the cursor starts below the scroll region.
func (s *Screen) MoveCursorDown(n int) {
	limit := s.scrollBottom
	if s.cursorRow > s.scrollBottom {
		limit = s.rows - 1
	}
	s.cursorRow = clamp(s.cursorRow+n, 0, limit)
	s.wrapPending = false
}

// MoveCursorForward moves right by n, clamping to the last column.
func (s *Screen) MoveCursorForward(n int) {
	s.cursorCol = clamp(s.cursorCol+n, 0, s.cols-1)
	s.wrapPending = false
}

// MoveCursorBackward moves left by n, clamping to column 0.
func (s *Screen) MoveCursorBackward(n int) {
	s.cursorCol = clamp(s.cursorCol-n, 0, s.cols-1)
	s.wrapPending = false
}

// Resize changes the grid dimensions, preserving the top-left rectangle.
// New cells are blanks. The scroll region resets to full screen, the
// cursor is clamped, and nothing moves into scrollback.
func (s *Screen) Resize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	if cols == s.cols && rows == s.rows {
		return
	}
	s.grid = resizeGrid(s.grid, s.cols, s.rows, cols, rows)
	if s.saved != nil {
		s.saved.grid = resizeGrid(s.saved.grid, s.cols, s.rows, cols, rows)
		s.saved.cursorRow = clamp(s.saved.cursorRow, 0, rows-1)
		s.saved.cursorCol = clamp(s.saved.cursorCol, 0, cols-1)
	}
	s.cols = cols
	s.rows = rows
	s.ResetScrollRegion()
	s.clampCursor()
	s.wrapPending = false
	s.markAllDirty()
}

func resizeGrid(grid []Line, oldCols, oldRows, cols, rows int) []Line {
	next := make([]Line, rows)
	for r := range next {
		next[r] = blankLine(cols)
		if r < oldRows {
			n := oldCols
			if n > cols {
				n = cols
			}
			copy(next[r], grid[r][:n])
		}
	}
	return next
}

// Reset restores the power-on state: blank grid, cleared scrollback,
// default attribute, full margins, default modes (RIS).
func (s *Screen) Reset() {
	if s.altActive {
		s.SwitchToMainScreen()
	}
	s.grid = makeGrid(s.cols, s.rows)
	s.scrollback.Clear()
	s.cursorRow, s.cursorCol = 0, 0
	s.wrapPending = false
	s.attr = DefaultAttribute
	s.savedRow, s.savedCol = 0, 0
	s.savedAttr = DefaultAttribute
	s.ResetScrollRegion()
	s.Modes = Modes{AutoWrap: true, CursorVisible: true}
	s.markAllDirty()
}

// ConsumeDirty reports whether any cell changed since the last call and
// resets the flag.
func (s *Screen) ConsumeDirty() bool {
	dirty := s.hasDirty
	s.hasDirty = false
	return dirty
}

// ClearDirty resets every cell's dirty bit.
func (s *Screen) ClearDirty() {
	for _, row := range s.grid {
		for c := range row {
			row[c].Dirty = false
		}
	}
	s.hasDirty = false
}

func (s *Screen) notifyContentChanged() {
	if s.OnContentChanged != nil {
		s.OnContentChanged()
	}
}

// FlushChanges fires OnContentChanged if anything mutated since the last
// flush. Called by the Session after each parsed chunk.
func (s *Screen) FlushChanges() {
	if s.ConsumeDirty() {
		s.notifyContentChanged()
	}
}

func (s *Screen) clearRowRange(row, startCol, endCol int) {
	if row < 0 || row >= s.rows {
		return
	}
	if startCol < 0 {
		startCol = 0
	}
	if endCol > s.cols {
		endCol = s.cols
	}
	for c := startCol; c < endCol; c++ {
		s.grid[row][c] = blankCell(s.attr)
	}
	s.hasDirty = true
}

func (s *Screen) markRowDirty(row int) {
	for c := range s.grid[row] {
		s.grid[row][c].Dirty = true
	}
}

func (s *Screen) markAllDirty() {
	for row := range s.grid {
		s.markRowDirty(row)
	}
	s.hasDirty = true
}

func (s *Screen) clampCursor() {
	s.cursorRow = clamp(s.cursorRow, 0, s.rows-1)
	s.cursorCol = clamp(s.cursorCol, 0, s.cols-1)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
