// Package session owns the pseudo-console sessions behind panes: each
// Session spawns a child shell, feeds its output through the VT parser
// into a screen, and raises pane events; the Manager maps pane ids to
// sessions for the daemon.
package session

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"

	"cmux/internal/osc"
	"cmux/internal/terminal"
	"cmux/internal/vt"
)

const readBufferSize = 4096

// ErrNotRunning is returned by writes and resizes on a dead session.
var ErrNotRunning = fmt.Errorf("session is not running")

// Hooks receives a session's events. All callbacks may be invoked from
// the session's read goroutine; they must not block on the session.
type Hooks struct {
	Output           func(data []byte)
	Exited           func(exitCode int)
	Title            func(title string)
	WorkingDirectory func(path string)
	Bell             func()
	Notification     func(n osc.Notification)
	PromptMark       func(marker byte, payload string)
}

// Session is one pane: a pseudo-console plus child process, the screen
// it renders to, and the parser wiring between them. The session mutex
// serializes parser and screen access; it is their sole synchronizer.
type Session struct {
	PaneID string

	mu        sync.Mutex
	screen    *terminal.Screen
	parser    *vt.Parser
	ptmx      *os.File
	cmd       *exec.Cmd
	responder io.Writer
	running   bool
	title     string
	cwd       string

	hooks   Hooks
	pending []func()
}

// New creates a session with a screen of the given size. Start must be
// called before the session produces output.
func New(paneID string, cols, rows, scrollback int) *Session {
	s := &Session{PaneID: paneID}
	s.screen = terminal.NewScreen(cols, rows, scrollback)
	h := &handler{session: s}
	h.dispatcher = osc.NewDispatcher(h)
	s.parser = vt.NewParser(h)
	return s
}

// SetHooks installs the event sink. Must be called before Start.
func (s *Session) SetHooks(hooks Hooks) {
	s.hooks = hooks
}

// Start spawns the child process on a pseudo-console sized to the
// screen and begins the read and wait goroutines. command may be empty
// (default shell); workingDirectory may be empty (inherited).
func (s *Session) Start(command, workingDirectory string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("session %s already running", s.PaneID)
	}

	argv := splitCommand(command)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = sessionEnv()
	if workingDirectory != "" {
		cmd.Dir = workingDirectory
	}

	cols, rows := s.screen.Size()
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return fmt.Errorf("start pseudo-console: %w", err)
	}

	s.cmd = cmd
	s.ptmx = ptmx
	s.responder = ptmx
	s.running = true

	cwd := workingDirectory
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	s.cwd = cwd

	go s.readLoop(ptmx)
	go s.waitLoop(cmd)

	if s.hooks.WorkingDirectory != nil && cwd != "" {
		go s.hooks.WorkingDirectory(cwd)
	}
	return nil
}

// readLoop pulls pseudo-console output and feeds the parser until EOF.
func (s *Session) readLoop(ptmx *os.File) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			s.feed(buf[:n])
			if s.hooks.Output != nil {
				data := make([]byte, n)
				copy(data, buf[:n])
				s.hooks.Output(data)
			}
		}
		if err != nil {
			return
		}
	}
}

// feed drives the parser under the session lock and emits any events the
// handler queued once the lock is released.
func (s *Session) feed(data []byte) {
	s.mu.Lock()
	s.parser.Parse(data)
	s.screen.FlushChanges()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, emit := range pending {
		emit()
	}
}

// waitLoop observes child exit and moves the session to its terminal
// state.
func (s *Session) waitLoop(cmd *exec.Cmd) {
	err := cmd.Wait()
	exitCode := 0
	if err != nil {
		exitCode = cmd.ProcessState.ExitCode()
		if exitCode < 0 {
			exitCode = 1
		}
	}

	s.mu.Lock()
	s.running = false
	if s.ptmx != nil {
		s.ptmx.Close()
	}
	s.mu.Unlock()

	if s.hooks.Exited != nil {
		s.hooks.Exited(exitCode)
	}
}

// Write pushes raw bytes to the child's input.
func (s *Session) Write(data []byte) error {
	s.mu.Lock()
	ptmx, running := s.ptmx, s.running
	s.mu.Unlock()

	if !running || ptmx == nil {
		return ErrNotRunning
	}
	_, err := ptmx.Write(data)
	return err
}

// WriteString UTF-8 encodes and writes text input.
func (s *Session) WriteString(text string) error {
	return s.Write([]byte(text))
}

// Resize grows or shrinks the screen and the pseudo-console together.
func (s *Session) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("invalid size %dx%d", cols, rows)
	}

	s.mu.Lock()
	s.screen.Resize(cols, rows)
	ptmx, running := s.ptmx, s.running
	s.mu.Unlock()

	if !running || ptmx == nil {
		return ErrNotRunning
	}
	return pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Running reports whether the child process is alive.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Title returns the last OSC title, if any.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// WorkingDirectory returns the most recent OSC 7 hint (or the spawn
// directory).
func (s *Session) WorkingDirectory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

// Size returns the screen dimensions.
func (s *Session) Size() (cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen.Size()
}

// Pid returns the child process id, or 0 when not started.
func (s *Session) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// ExportPlainText renders scrollback plus the visible screen as text.
func (s *Session) ExportPlainText(maxScrollback int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen.ExportPlainText(maxScrollback)
}

// CreateBufferSnapshot captures a restart-safe snapshot of the screen.
func (s *Session) CreateBufferSnapshot(maxScrollback int) terminal.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen.CreateSnapshot(maxScrollback)
}

// RestoreBufferSnapshot rehydrates the screen from a snapshot.
func (s *Session) RestoreBufferSnapshot(snap terminal.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screen.RestoreSnapshot(snap)
}

// Screen exposes the underlying screen for tests and local callers that
// hold no concurrent sessions.
func (s *Session) Screen() *terminal.Screen {
	return s.screen
}

// Feed parses raw VT bytes as if they were read from the child. Used by
// tests.
func (s *Session) Feed(data []byte) {
	s.feed(data)
}

// Close kills the child, releases the pseudo-console and marks the
// session as not running. The wait goroutine still observes the exit
// and raises Exited.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	if s.ptmx != nil {
		s.ptmx.Close()
	}
	s.running = false
	return nil
}

// SetResponder overrides where DSR/DA replies are written. Start wires
// it to the pseudo-console; tests substitute a buffer.
func (s *Session) SetResponder(w io.Writer) {
	s.responder = w
}

// respond writes a reply (DSR, DA) back to the child.
func (s *Session) respond(data []byte) {
	if s.responder != nil {
		s.responder.Write(data)
	}
}

// queueEvent buffers an event emission until the session lock is
// released. Must be called with the lock held (handler context).
func (s *Session) queueEvent(emit func()) {
	s.pending = append(s.pending, emit)
}
