package session

import (
	"fmt"

	"cmux/internal/osc"
	"cmux/internal/terminal"
)

// handler receives the parser's semantic events and drives the screen.
// All methods run under the session lock (the parser is fed inside it).
type handler struct {
	session    *Session
	dispatcher *osc.Dispatcher
}

// paramOr returns the i-th CSI parameter, substituting def when the
// parameter is missing or zero. Motion commands treat 0 as 1.
func paramOr(params []int, i, def int) int {
	if i >= len(params) || params[i] == 0 {
		return def
	}
	return params[i]
}

func (h *handler) Print(r rune) {
	h.session.screen.WriteChar(r)
}

func (h *handler) Execute(b byte) {
	screen := h.session.screen
	switch b {
	case 0x07: // BEL
		s := h.session
		if s.hooks.Bell != nil {
			s.queueEvent(s.hooks.Bell)
		}
	case 0x08: // BS
		screen.Backspace()
	case 0x09: // HT
		screen.Tab()
	case 0x0a, 0x0b, 0x0c: // LF, VT, FF
		screen.LineFeed()
	case 0x0d: // CR
		screen.CarriageReturn()
	}
}

func (h *handler) EscDispatch(intermediates []byte, final byte) {
	if len(intermediates) > 0 {
		// Charset designations and DEC private sequences are accepted
		// but not interpreted.
		return
	}
	screen := h.session.screen
	switch final {
	case '7':
		screen.SaveCursor()
	case '8':
		screen.RestoreCursor()
	case 'M':
		screen.ReverseLineFeed()
	case 'D':
		screen.LineFeed()
	case 'E':
		screen.NewLine()
	case 'c':
		screen.Reset()
	}
}

func (h *handler) OscDispatch(payload string) {
	h.dispatcher.Handle(payload)
}

func (h *handler) CsiDispatch(params []int, intermediates []byte, qualifier string, final byte) {
	if len(intermediates) > 0 {
		return
	}
	screen := h.session.screen
	private := qualifier == "?"

	switch final {
	case 'A': // CUU
		screen.MoveCursorUp(paramOr(params, 0, 1))
	case 'B': // CUD
		screen.MoveCursorDown(paramOr(params, 0, 1))
	case 'C': // CUF
		screen.MoveCursorForward(paramOr(params, 0, 1))
	case 'D': // CUB
		screen.MoveCursorBackward(paramOr(params, 0, 1))
	case 'E': // CNL
		screen.CarriageReturn()
		screen.MoveCursorDown(paramOr(params, 0, 1))
	case 'F': // CPL
		screen.CarriageReturn()
		screen.MoveCursorUp(paramOr(params, 0, 1))
	case 'G': // CHA
		row, _ := screen.Cursor()
		screen.MoveCursorTo(row, paramOr(params, 0, 1)-1)
	case 'H', 'f': // CUP, HVP
		h.moveCursorAbsolute(paramOr(params, 0, 1)-1, paramOr(params, 1, 1)-1)
	case 'd': // VPA
		_, col := screen.Cursor()
		h.moveCursorAbsolute(paramOr(params, 0, 1)-1, col)
	case 'J': // ED
		screen.EraseInDisplay(paramOr(params, 0, 0))
	case 'K': // EL
		screen.EraseInLine(paramOr(params, 0, 0))
	case 'X': // ECH
		screen.EraseChars(paramOr(params, 0, 1))
	case 'L': // IL
		screen.InsertLines(paramOr(params, 0, 1))
	case 'M': // DL
		screen.DeleteLines(paramOr(params, 0, 1))
	case '@': // ICH
		screen.InsertChars(paramOr(params, 0, 1))
	case 'P': // DCH
		screen.DeleteChars(paramOr(params, 0, 1))
	case 'S': // SU
		screen.ScrollUp(paramOr(params, 0, 1))
	case 'T': // SD
		screen.ScrollDown(paramOr(params, 0, 1))
	case 'r': // DECSTBM
		if len(params) == 0 {
			screen.ResetScrollRegion()
		} else {
			_, rows := screen.Size()
			screen.SetScrollRegion(paramOr(params, 0, 1)-1, paramOr(params, 1, rows)-1)
		}
		screen.MoveCursorTo(0, 0)
	case 'm': // SGR
		h.applySGR(params)
	case 'h':
		h.setMode(params, private, true)
	case 'l':
		h.setMode(params, private, false)
	case 's': // SCOSC
		if !private {
			screen.SaveCursor()
		}
	case 'u': // SCORC
		if !private {
			screen.RestoreCursor()
		}
	case 'n': // DSR
		if !private && paramOr(params, 0, 0) == 6 {
			row, col := screen.Cursor()
			h.session.respond([]byte(fmt.Sprintf("\x1b[%d;%dR", row+1, col+1)))
		}
	case 'c': // DA
		if qualifier == "" {
			h.session.respond([]byte("\x1b[?1;0c"))
		}
	}
}

// moveCursorAbsolute applies origin mode: row addresses are relative to
// the top margin and confined to the scroll region when DECOM is set.
func (h *handler) moveCursorAbsolute(row, col int) {
	screen := h.session.screen
	if screen.Modes.OriginMode {
		top, bottom := screen.ScrollRegion()
		row += top
		if row > bottom {
			row = bottom
		}
	}
	screen.MoveCursorTo(row, col)
}

// sgrFlagTable maps SGR codes 1-9 to attribute flags; codes 21-29 clear
// the same positions.
var sgrFlagTable = [10]terminal.AttrFlags{
	1: terminal.AttrBold,
	2: terminal.AttrDim,
	3: terminal.AttrItalic,
	4: terminal.AttrUnderline,
	5: terminal.AttrBlink,
	6: terminal.AttrBlink,
	7: terminal.AttrInverse,
	8: terminal.AttrHidden,
	9: terminal.AttrStrikethrough,
}

func (h *handler) applySGR(params []int) {
	screen := h.session.screen
	attr := screen.Attr()
	if len(params) == 0 {
		params = []int{0}
	}

	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			attr = terminal.DefaultAttribute
		case p >= 1 && p <= 9:
			attr.Flags |= sgrFlagTable[p]
		case p == 22:
			attr.Flags &^= terminal.AttrBold | terminal.AttrDim
		case p >= 21 && p <= 29:
			attr.Flags &^= sgrFlagTable[p-20]
		case p >= 30 && p <= 37:
			attr.Fg = terminal.PaletteColor(p - 30)
		case p == 38:
			color, consumed := extendedColor(params[i+1:])
			if consumed == 0 {
				i = len(params)
				break
			}
			attr.Fg = color
			i += consumed
		case p == 39:
			attr.Fg = terminal.ColorDefault
		case p >= 40 && p <= 47:
			attr.Bg = terminal.PaletteColor(p - 40)
		case p == 48:
			color, consumed := extendedColor(params[i+1:])
			if consumed == 0 {
				i = len(params)
				break
			}
			attr.Bg = color
			i += consumed
		case p == 49:
			attr.Bg = terminal.ColorDefault
		case p >= 90 && p <= 97:
			attr.Fg = terminal.PaletteColor(p - 90 + 8)
		case p >= 100 && p <= 107:
			attr.Bg = terminal.PaletteColor(p - 100 + 8)
		}
	}
	screen.SetAttr(attr)
}

// extendedColor parses the tail of a 38/48 sequence: ";5;index" or
// ";2;r;g;b". Returns the resolved color and the number of parameters
// consumed, or 0 when the sequence is truncated.
func extendedColor(rest []int) (terminal.Color, int) {
	if len(rest) == 0 {
		return terminal.ColorDefault, 0
	}
	switch rest[0] {
	case 5:
		if len(rest) < 2 {
			return terminal.ColorDefault, 0
		}
		return terminal.PaletteColor(rest[1]), 2
	case 2:
		if len(rest) < 4 {
			return terminal.ColorDefault, 0
		}
		return terminal.RGB(clampChannel(rest[1]), clampChannel(rest[2]), clampChannel(rest[3])), 4
	}
	return terminal.ColorDefault, 0
}

func clampChannel(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func (h *handler) setMode(params []int, private, set bool) {
	screen := h.session.screen
	for _, p := range params {
		if !private {
			if p == 4 {
				screen.Modes.InsertMode = set
			}
			continue
		}
		switch p {
		case 1:
			screen.Modes.AppCursorKeys = set
		case 6:
			screen.Modes.OriginMode = set
			h.moveCursorAbsolute(0, 0)
		case 7:
			screen.Modes.AutoWrap = set
		case 9:
			screen.Modes.MouseX10 = set
		case 25:
			screen.Modes.CursorVisible = set
		case 47, 1047:
			if set {
				screen.SwitchToAlternateScreen()
			} else {
				screen.SwitchToMainScreen()
			}
		case 1049:
			if set {
				screen.SaveCursor()
				screen.SwitchToAlternateScreen()
			} else {
				screen.SwitchToMainScreen()
				screen.RestoreCursor()
			}
		case 1000:
			screen.Modes.MouseNormal = set
		case 1002:
			screen.Modes.MouseButton = set
		case 1003:
			screen.Modes.MouseAny = set
		case 1006:
			screen.Modes.MouseSGR = set
		case 2004:
			screen.Modes.BracketedPaste = set
		}
	}
}

// --- osc.Events ---

func (h *handler) Title(title string) {
	s := h.session
	s.title = title
	if s.hooks.Title != nil {
		s.queueEvent(func() { s.hooks.Title(title) })
	}
}

func (h *handler) WorkingDirectory(path string) {
	s := h.session
	s.cwd = path
	if s.hooks.WorkingDirectory != nil {
		s.queueEvent(func() { s.hooks.WorkingDirectory(path) })
	}
}

func (h *handler) Notification(n osc.Notification) {
	s := h.session
	if s.hooks.Notification != nil {
		s.queueEvent(func() { s.hooks.Notification(n) })
	}
}

func (h *handler) PromptMark(marker byte, payload string) {
	s := h.session
	if s.hooks.PromptMark != nil {
		s.queueEvent(func() { s.hooks.PromptMark(marker, payload) })
	}
}
