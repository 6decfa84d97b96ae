package vt

import (
	"reflect"
	"testing"
)

type csiCall struct {
	params        []int
	intermediates string
	qualifier     string
	final         byte
}

type recorder struct {
	printed  []rune
	executed []byte
	csi      []csiCall
	esc      []byte
	osc      []string
}

func (r *recorder) Print(ch rune)        { r.printed = append(r.printed, ch) }
func (r *recorder) Execute(b byte)       { r.executed = append(r.executed, b) }
func (r *recorder) OscDispatch(s string) { r.osc = append(r.osc, s) }

func (r *recorder) CsiDispatch(params []int, intermediates []byte, qualifier string, final byte) {
	r.csi = append(r.csi, csiCall{
		params:        append([]int(nil), params...),
		intermediates: string(intermediates),
		qualifier:     qualifier,
		final:         final,
	})
}

func (r *recorder) EscDispatch(intermediates []byte, final byte) {
	r.esc = append(r.esc, final)
}

func parse(t *testing.T, input string) *recorder {
	t.Helper()
	rec := &recorder{}
	NewParser(rec).Parse([]byte(input))
	return rec
}

func TestParser_PlainText(t *testing.T) {
	rec := parse(t, "hello")
	if string(rec.printed) != "hello" {
		t.Errorf("expected 'hello', got %q", string(rec.printed))
	}
}

func TestParser_Execute(t *testing.T) {
	rec := parse(t, "a\r\nb")
	if string(rec.printed) != "ab" {
		t.Errorf("expected 'ab', got %q", string(rec.printed))
	}
	if !reflect.DeepEqual(rec.executed, []byte{0x0d, 0x0a}) {
		t.Errorf("expected CR LF executes, got %v", rec.executed)
	}
}

func TestParser_CsiParams(t *testing.T) {
	tests := []struct {
		input string
		want  csiCall
	}{
		{"\x1b[5;10H", csiCall{params: []int{5, 10}, final: 'H'}},
		{"\x1b[H", csiCall{params: nil, final: 'H'}},
		{"\x1b[;5m", csiCall{params: []int{0, 5}, final: 'm'}},
		{"\x1b[0K", csiCall{params: []int{0}, final: 'K'}},
		{"\x1b[?25l", csiCall{params: []int{25}, qualifier: "?", final: 'l'}},
		{"\x1b[>0c", csiCall{params: []int{0}, qualifier: ">", final: 'c'}},
		{"\x1b[38;2;18;52;86m", csiCall{params: []int{38, 2, 18, 52, 86}, final: 'm'}},
	}
	for _, tt := range tests {
		rec := parse(t, tt.input)
		if len(rec.csi) != 1 {
			t.Errorf("%q: expected 1 CSI dispatch, got %d", tt.input, len(rec.csi))
			continue
		}
		got := rec.csi[0]
		if !reflect.DeepEqual(got.params, tt.want.params) || got.qualifier != tt.want.qualifier || got.final != tt.want.final {
			t.Errorf("%q: expected %+v, got %+v", tt.input, tt.want, got)
		}
	}
}

func TestParser_CsiIntermediates(t *testing.T) {
	rec := parse(t, "\x1b[4 q")
	if len(rec.csi) != 1 {
		t.Fatalf("expected 1 CSI dispatch, got %d", len(rec.csi))
	}
	got := rec.csi[0]
	if got.intermediates != " " || got.final != 'q' {
		t.Errorf("expected intermediates ' ' final 'q', got %+v", got)
	}
}

func TestParser_EscDispatch(t *testing.T) {
	rec := parse(t, "\x1b7\x1b8\x1bM")
	if !reflect.DeepEqual(rec.esc, []byte{'7', '8', 'M'}) {
		t.Errorf("expected esc dispatches 7 8 M, got %v", rec.esc)
	}
}

func TestParser_OscTermination(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"BEL", "\x1b]0;title\x07"},
		{"ST", "\x1b]0;title\x1b\\"},
		{"C1 ST", "\x1b]0;title\x9c"},
	}
	for _, tt := range tests {
		rec := parse(t, tt.input+"after")
		if len(rec.osc) != 1 || rec.osc[0] != "0;title" {
			t.Errorf("%s: expected one OSC '0;title', got %v", tt.name, rec.osc)
			continue
		}
		if string(rec.printed) != "after" {
			t.Errorf("%s: parser did not return to ground: printed %q", tt.name, string(rec.printed))
		}
	}
}

func TestParser_CancelAbortsSequence(t *testing.T) {
	// CAN aborts a CSI in progress; the following text prints normally.
	rec := parse(t, "\x1b[12\x18ok")
	if len(rec.csi) != 0 {
		t.Errorf("cancelled CSI should not dispatch, got %v", rec.csi)
	}
	if string(rec.printed) != "ok" {
		t.Errorf("expected 'ok' after cancel, got %q", string(rec.printed))
	}
}

func TestParser_EscRestartsSequence(t *testing.T) {
	// ESC mid-CSI starts a fresh sequence with cleared state.
	rec := parse(t, "\x1b[12\x1b[3A")
	if len(rec.csi) != 1 {
		t.Fatalf("expected 1 CSI dispatch, got %d", len(rec.csi))
	}
	if !reflect.DeepEqual(rec.csi[0].params, []int{3}) || rec.csi[0].final != 'A' {
		t.Errorf("expected params [3] final A, got %+v", rec.csi[0])
	}
}

func TestParser_UTF8(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"caf\xc3\xa9", "café"},
		{"\xe4\xb8\xad\xe6\x96\x87", "中文"},
		{"\xf0\x9f\x98\x80", "😀"},
	}
	for _, tt := range tests {
		rec := parse(t, tt.input)
		if string(rec.printed) != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.input, tt.want, string(rec.printed))
		}
	}
}

func TestParser_PartialUTF8AtEndOfInput(t *testing.T) {
	// A trailing partial sequence yields no print until completed.
	rec := &recorder{}
	p := NewParser(rec)
	p.Parse([]byte{0xe4, 0xb8})
	if len(rec.printed) != 0 {
		t.Fatalf("partial sequence should not print, got %v", rec.printed)
	}
	p.Parse([]byte{0xad})
	if string(rec.printed) != "中" {
		t.Errorf("expected completed rune, got %q", string(rec.printed))
	}
}

func TestParser_InvalidContinuationReprocessed(t *testing.T) {
	// An aborted codepoint drops, and the aborting byte is reprocessed.
	rec := parse(t, "\xc3Ax")
	if string(rec.printed) != "Ax" {
		t.Errorf("expected 'Ax', got %q", string(rec.printed))
	}
}

func TestParser_DcsIgnoredButTerminated(t *testing.T) {
	rec := parse(t, "\x1bPq#0;1;2\x1b\\done")
	if string(rec.printed) != "done" {
		t.Errorf("DCS should be consumed up to ST, got %q", string(rec.printed))
	}
	if len(rec.osc) != 0 {
		t.Errorf("DCS must not dispatch as OSC, got %v", rec.osc)
	}
}

func TestParser_Reset(t *testing.T) {
	rec := &recorder{}
	p := NewParser(rec)
	p.Parse([]byte("\x1b[12;3"))
	p.Reset()
	p.Parse([]byte("x"))
	if string(rec.printed) != "x" {
		t.Errorf("reset should return to ground, got %q", string(rec.printed))
	}
	if len(rec.csi) != 0 {
		t.Errorf("reset should drop collected state, got %v", rec.csi)
	}
}

func TestParser_OscUTF8Payload(t *testing.T) {
	rec := parse(t, "\x1b]2;caf\xc3\xa9\x07")
	if len(rec.osc) != 1 || rec.osc[0] != "2;caf\xc3\xa9" {
		t.Errorf("OSC payload should keep raw UTF-8 bytes, got %v", rec.osc)
	}
}
