package terminal

import (
	"strings"
	"testing"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	s := NewScreen(10, 3, 100)
	writeString(s, "L1\r\nL2\r\nL3\r\nL4")
	s.MoveCursorTo(1, 2)

	snap := s.CreateSnapshot(-1)

	restored := NewScreen(10, 3, 100)
	restored.RestoreSnapshot(snap)

	for row := 0; row < 3; row++ {
		if got, want := rowText(restored, row), rowText(s, row); got != want {
			t.Errorf("row %d expected %q, got %q", row, want, got)
		}
	}
	if got := restored.Scrollback().Len(); got != s.Scrollback().Len() {
		t.Errorf("scrollback expected %d lines, got %d", s.Scrollback().Len(), got)
	}
	if row, col := restored.Cursor(); row != 1 || col != 2 {
		t.Errorf("cursor expected (1,2), got (%d,%d)", row, col)
	}
}

func TestSnapshot_MaxScrollback(t *testing.T) {
	s := NewScreen(10, 2, 100)
	writeString(s, "a\r\nb\r\nc\r\nd\r\ne")
	if s.Scrollback().Len() != 3 {
		t.Fatalf("precondition: expected 3 spilled lines, got %d", s.Scrollback().Len())
	}

	snap := s.CreateSnapshot(2)
	if len(snap.ScrollbackLines) != 2 {
		t.Fatalf("expected 2 scrollback lines, got %d", len(snap.ScrollbackLines))
	}
	if snap.ScrollbackLines[0] != "b" || snap.ScrollbackLines[1] != "c" {
		t.Errorf("expected newest two lines [b c], got %v", snap.ScrollbackLines)
	}
}

func TestSnapshot_RestoreClampsAndDefaults(t *testing.T) {
	s := NewScreen(4, 2, 10)
	snap := Snapshot{
		Cols:        80,
		Rows:        24,
		CursorRow:   23,
		CursorCol:   79,
		ScreenLines: []string{"longer than four", "x"},
	}
	s.RestoreSnapshot(snap)

	if got := rowText(s, 0); got != "long" {
		t.Errorf("restore should truncate to cols, got %q", got)
	}
	if row, col := s.Cursor(); row != 1 || col != 3 {
		t.Errorf("restore should clamp cursor, got (%d,%d)", row, col)
	}
	if s.Cell(0, 0).Attr != DefaultAttribute {
		t.Error("restored cells should carry default attributes")
	}
}

func TestExportPlainText(t *testing.T) {
	s := NewScreen(10, 4, 100)
	writeString(s, "one\r\ntwo")

	got := s.ExportPlainText(-1)
	if got != "one\ntwo" {
		t.Errorf("export expected 'one\\ntwo', got %q", got)
	}
}

func TestExportPlainText_IncludesScrollback(t *testing.T) {
	s := NewScreen(10, 2, 100)
	writeString(s, "a\r\nb\r\nc")

	got := s.ExportPlainText(-1)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 || lines[0] != "a" {
		t.Errorf("export expected scrollback first, got %v", lines)
	}
}
