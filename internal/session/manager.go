package session

import (
	"fmt"
	"sort"
	"sync"

	"cmux/internal/osc"
)

// Info describes a session over the wire. SESSION_CREATE and
// SESSION_LIST responses carry it JSON-encoded (PascalCase, the IPC
// casing).
type Info struct {
	PaneID           string `json:"PaneId"`
	Cols             int    `json:"Cols"`
	Rows             int    `json:"Rows"`
	WorkingDirectory string `json:"WorkingDirectory"`
	Title            string `json:"Title,omitempty"`
	IsRunning        bool   `json:"IsRunning"`
	IsExisting       bool   `json:"IsExisting"`
}

// Events receives manager-level events tagged with the originating pane
// id, raised from session read goroutines. Consumers must not block.
type Events struct {
	Output           func(paneID string, data []byte)
	Exited           func(paneID string, exitCode int)
	Title            func(paneID, title string)
	WorkingDirectory func(paneID, path string)
	Bell             func(paneID string)
	Notification     func(paneID string, n osc.Notification)
	PromptMark       func(paneID string, marker byte, payload, workingDirectory string)
}

// Manager owns the pane-id to session map. The manager lock guards only
// map mutation; session operations run outside it.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	events     Events
	scrollback int
}

// NewManager creates a manager whose sessions use the given scrollback
// capacity.
func NewManager(scrollback int) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		scrollback: scrollback,
	}
}

// SetEvents installs the event sink the daemon broadcasts from. Must be
// called before sessions are created.
func (m *Manager) SetEvents(events Events) {
	m.events = events
}

// CreateSession spawns a session for paneID, or re-attaches when the
// pane is already live: an existing session is returned with
// IsExisting=true and the child is not respawned.
func (m *Manager) CreateSession(paneID string, cols, rows int, workingDirectory, command string) (Info, error) {
	if paneID == "" {
		return Info{}, fmt.Errorf("empty pane id")
	}
	if cols <= 0 || rows <= 0 {
		return Info{}, fmt.Errorf("invalid size %dx%d", cols, rows)
	}

	m.mu.Lock()
	if existing, ok := m.sessions[paneID]; ok {
		m.mu.Unlock()
		info := m.info(existing)
		info.IsExisting = true
		return info, nil
	}
	m.mu.Unlock()

	s := New(paneID, cols, rows, m.scrollback)
	s.SetHooks(m.hooksFor(s))
	if err := s.Start(command, workingDirectory); err != nil {
		return Info{}, fmt.Errorf("create session %s: %w", paneID, err)
	}

	m.mu.Lock()
	if existing, ok := m.sessions[paneID]; ok {
		// Lost a create race; keep the first session.
		m.mu.Unlock()
		s.Close()
		info := m.info(existing)
		info.IsExisting = true
		return info, nil
	}
	m.sessions[paneID] = s
	m.mu.Unlock()

	return m.info(s), nil
}

// hooksFor republishes a session's events tagged with its pane id.
func (m *Manager) hooksFor(s *Session) Hooks {
	paneID := s.PaneID
	return Hooks{
		Output: func(data []byte) {
			if m.events.Output != nil {
				m.events.Output(paneID, data)
			}
		},
		Exited: func(exitCode int) {
			m.remove(paneID, s)
			if m.events.Exited != nil {
				m.events.Exited(paneID, exitCode)
			}
		},
		Title: func(title string) {
			if m.events.Title != nil {
				m.events.Title(paneID, title)
			}
		},
		WorkingDirectory: func(path string) {
			if m.events.WorkingDirectory != nil {
				m.events.WorkingDirectory(paneID, path)
			}
		},
		Bell: func() {
			if m.events.Bell != nil {
				m.events.Bell(paneID)
			}
		},
		Notification: func(n osc.Notification) {
			if m.events.Notification != nil {
				m.events.Notification(paneID, n)
			}
		},
		PromptMark: func(marker byte, payload string) {
			if m.events.PromptMark != nil {
				m.events.PromptMark(paneID, marker, payload, s.WorkingDirectory())
			}
		},
	}
}

// remove drops a session from the map if it is still the registered one.
func (m *Manager) remove(paneID string, s *Session) {
	m.mu.Lock()
	if m.sessions[paneID] == s {
		delete(m.sessions, paneID)
	}
	m.mu.Unlock()
}

// Get returns the live session for paneID.
func (m *Manager) Get(paneID string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[paneID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session not found: %s", paneID)
	}
	return s, nil
}

// WriteToSession pushes input bytes to a pane's child.
func (m *Manager) WriteToSession(paneID string, data []byte) error {
	s, err := m.Get(paneID)
	if err != nil {
		return err
	}
	return s.Write(data)
}

// ResizeSession resizes a pane's screen and pseudo-console.
func (m *Manager) ResizeSession(paneID string, cols, rows int) error {
	s, err := m.Get(paneID)
	if err != nil {
		return err
	}
	return s.Resize(cols, rows)
}

// CloseSession kills a pane's child and forgets the session.
func (m *Manager) CloseSession(paneID string) error {
	s, err := m.Get(paneID)
	if err != nil {
		return err
	}
	err = s.Close()
	m.remove(paneID, s)
	return err
}

// ListSessions returns every live session, ordered by pane id.
func (m *Manager) ListSessions() []Info {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, m.info(s))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].PaneID < infos[j].PaneID })
	return infos
}

// GetSnapshot renders a pane's scrollback and screen as plain text.
func (m *Manager) GetSnapshot(paneID string) (string, error) {
	s, err := m.Get(paneID)
	if err != nil {
		return "", err
	}
	return s.ExportPlainText(-1), nil
}

// CloseAll tears down every session (daemon shutdown).
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (m *Manager) info(s *Session) Info {
	cols, rows := s.Size()
	return Info{
		PaneID:           s.PaneID,
		Cols:             cols,
		Rows:             rows,
		WorkingDirectory: s.WorkingDirectory(),
		Title:            s.Title(),
		IsRunning:        s.Running(),
	}
}
