package daemon

import (
	"strings"
	"testing"
)

func TestIsResponse(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{`{"Success":true,"Data":"pong"}`, true},
		{`{"Success":false,"Error":"nope"}`, true},
		{`{"Type":"OUTPUT","PaneId":"p1","Data":"aGk="}`, false},
		{`{"Type":"BELL","PaneId":"p1"}`, false},
		{`not json`, false},
	}
	for _, tt := range tests {
		if got := isResponse([]byte(tt.line)); got != tt.want {
			t.Errorf("isResponse(%s) expected %v, got %v", tt.line, tt.want, got)
		}
	}
}

func TestEncodeLine(t *testing.T) {
	frame, err := encodeLine(Response{Success: true, Data: "pong"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	text := string(frame)
	if !strings.HasSuffix(text, "\n") {
		t.Error("frame must end with LF")
	}
	if strings.Count(text, "\n") != 1 {
		t.Errorf("frame must be a single line, got %q", text)
	}
	if !strings.Contains(text, `"Success":true`) {
		t.Errorf("expected PascalCase Success key, got %q", text)
	}
}

func TestWriteQueue_FIFO(t *testing.T) {
	q := newWriteQueue()
	q.enqueue([]byte("a"))
	q.enqueue([]byte("b"))

	if frame, ok := q.dequeue(); !ok || string(frame) != "a" {
		t.Errorf("expected 'a', got %q ok=%v", frame, ok)
	}
	if frame, ok := q.dequeue(); !ok || string(frame) != "b" {
		t.Errorf("expected 'b', got %q ok=%v", frame, ok)
	}
}

func TestWriteQueue_CloseUnblocks(t *testing.T) {
	q := newWriteQueue()
	done := make(chan bool)
	go func() {
		_, ok := q.dequeue()
		done <- ok
	}()
	q.close()
	if ok := <-done; ok {
		t.Error("dequeue on a closed empty queue should report !ok")
	}
}
