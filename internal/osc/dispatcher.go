// Package osc turns OSC payload strings into typed side-channel events:
// window titles, working-directory hints, desktop notifications, and
// shell-integration prompt markers.
package osc

import (
	"net/url"
	"strconv"
	"strings"
)

// Notification is a desktop-notification request carried over OSC
// 9/99/777. Empty fields were absent from the payload.
type Notification struct {
	Title    string
	Subtitle string
	Body     string
}

// Events is the sink for dispatched side-channel events.
type Events interface {
	// Title is raised by OSC 0 and 2.
	Title(title string)
	// WorkingDirectory is raised by OSC 7 with a best-effort local path.
	WorkingDirectory(path string)
	// Notification is raised by OSC 9, 99 and 777.
	Notification(n Notification)
	// PromptMark is raised by OSC 133 shell-integration markers
	// (marker is one of 'A', 'B', 'C', 'D').
	PromptMark(marker byte, payload string)
}

// Dispatcher parses OSC payloads of the form "<code>;<payload>" or
// "<code>" and emits typed events. Unknown codes are ignored; malformed
// payloads degrade without error.
type Dispatcher struct {
	events Events
}

// NewDispatcher creates a dispatcher emitting to the given sink.
func NewDispatcher(events Events) *Dispatcher {
	return &Dispatcher{events: events}
}

// Handle processes one complete OSC payload string.
func (d *Dispatcher) Handle(payload string) {
	codeText, rest, hasRest := strings.Cut(payload, ";")
	code, err := strconv.Atoi(codeText)
	if err != nil {
		return
	}

	switch code {
	case 0, 2:
		d.events.Title(rest)
	case 7:
		if path := extractPath(rest); path != "" {
			d.events.WorkingDirectory(path)
		}
	case 9:
		d.events.Notification(Notification{Title: "Terminal", Body: rest})
	case 99:
		d.events.Notification(parseKeyedNotification(rest))
	case 777:
		d.events.Notification(parseNotify777(rest))
	case 133:
		if !hasRest || rest == "" {
			return
		}
		marker := rest[0]
		if marker < 'A' || marker > 'D' {
			return
		}
		var markerPayload string
		if len(rest) > 1 && rest[1] == ';' {
			markerPayload = rest[2:]
		}
		d.events.PromptMark(marker, markerPayload)
	}
}

// extractPath resolves an OSC 7 payload ("file://host/path" or a bare
// path) to a local path. Malformed URIs degrade to best-effort scheme
// stripping.
func extractPath(raw string) string {
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme == "file" {
		if u.Path != "" {
			return u.Path
		}
		if u.Opaque != "" {
			return u.Opaque
		}
	}
	if i := strings.Index(raw, "://"); i >= 0 {
		tail := raw[i+3:]
		if j := strings.IndexByte(tail, '/'); j >= 0 {
			return tail[j:]
		}
		return tail
	}
	return raw
}

// parseKeyedNotification handles OSC 99: either "key=value;key=value"
// with keys in {t, b, s}, or a bare body.
func parseKeyedNotification(raw string) Notification {
	if !strings.Contains(raw, "=") {
		return Notification{Body: raw}
	}
	var n Notification
	for _, part := range strings.Split(raw, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			n.Title = value
		case "b":
			n.Body = value
		case "s":
			n.Subtitle = value
		}
	}
	return n
}

// parseNotify777 handles OSC 777: "notify;title;body" or a bare body.
func parseNotify777(raw string) Notification {
	if kind, rest, ok := strings.Cut(raw, ";"); ok && kind == "notify" {
		title, body, _ := strings.Cut(rest, ";")
		return Notification{Title: title, Body: body}
	}
	return Notification{Body: raw}
}
