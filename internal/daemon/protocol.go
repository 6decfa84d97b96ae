// Package daemon implements the cmux IPC endpoint: a local duplex
// byte stream carrying newline-delimited UTF-8 JSON. Three shapes share
// the stream: requests (client to daemon), responses (daemon to client,
// discriminated by the "Success" key), and unsolicited events. Binary
// payloads (session output, write data) are base64-encoded so no JSON
// value ever contains a literal LF.
package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Request types.
const (
	TypeSessionCreate   = "SESSION_CREATE"
	TypeSessionWrite    = "SESSION_WRITE"
	TypeSessionResize   = "SESSION_RESIZE"
	TypeSessionClose    = "SESSION_CLOSE"
	TypeSessionList     = "SESSION_LIST"
	TypeSessionSnapshot = "SESSION_SNAPSHOT"
	TypePing            = "PING"
	TypeHistoryList     = "HISTORY_LIST"
	TypeTranscriptSave  = "TRANSCRIPT_SAVE"
)

// Event types.
const (
	EventOutput       = "OUTPUT"
	EventExited       = "EXITED"
	EventTitleChanged = "TITLE_CHANGED"
	EventCwdChanged   = "CWD_CHANGED"
	EventBell         = "BELL"
)

// Request is a client-to-daemon message. Data is base64 for
// SESSION_WRITE; the remaining fields apply per request type.
type Request struct {
	Type             string `json:"Type"`
	PaneID           string `json:"PaneId,omitempty"`
	Cols             int    `json:"Cols,omitempty"`
	Rows             int    `json:"Rows,omitempty"`
	WorkingDirectory string `json:"WorkingDirectory,omitempty"`
	Command          string `json:"Command,omitempty"`
	Data             string `json:"Data,omitempty"`
	Reason           string `json:"Reason,omitempty"`
	WorkspaceID      string `json:"WorkspaceId,omitempty"`
	SurfaceID        string `json:"SurfaceId,omitempty"`
	Count            int    `json:"Count,omitempty"`
}

// Response answers exactly one request. Success is always present and
// is the wire discriminator between responses and events.
type Response struct {
	Success bool   `json:"Success"`
	Error   string `json:"Error,omitempty"`
	Data    string `json:"Data,omitempty"`
}

// Event is an unsolicited daemon-to-client message. For OUTPUT, Data is
// base64-encoded VT bytes; for EXITED it is the decimal exit code; for
// TITLE_CHANGED and CWD_CHANGED the literal string; BELL omits it.
type Event struct {
	Type   string `json:"Type"`
	PaneID string `json:"PaneId,omitempty"`
	Data   string `json:"Data,omitempty"`
}

// encodeLine marshals v and appends the LF frame terminator.
func encodeLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return append(data, '\n'), nil
}

// isResponse reports whether a received line carries the "Success"
// discriminator key.
func isResponse(line []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(line, &probe); err != nil {
		return false
	}
	_, ok := probe["Success"]
	return ok
}

// errorResponse builds a failure response.
func errorResponse(format string, args ...any) Response {
	return Response{Success: false, Error: fmt.Sprintf(format, args...)}
}

// okResponse builds a success response with optional data.
func okResponse(data string) Response {
	return Response{Success: true, Data: data}
}

// trimFrame strips the trailing newline and carriage return from a
// received frame.
func trimFrame(line []byte) []byte {
	return bytes.TrimRight(line, "\r\n")
}
