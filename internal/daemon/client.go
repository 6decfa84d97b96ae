package daemon

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"cmux/internal/cmdlog"
	"cmux/internal/session"
)

const (
	requestTimeout   = 3 * time.Second
	startAttempts    = 20
	startRetryDelay  = 500 * time.Millisecond
	startDialTimeout = 1 * time.Second
)

// Client speaks the daemon protocol over one connection. At most one
// request is in flight at a time; a semaphore serializes senders.
// Unsolicited events are delivered to OnEvent from the read goroutine.
type Client struct {
	socketPath string

	// OnEvent receives unsolicited events. Set before Connect.
	OnEvent func(Event)

	reqSem chan struct{}

	mu        sync.Mutex
	conn      net.Conn
	connected bool
	pending   chan Response
	// stale counts responses still owed to timed-out requests. The
	// server answers strictly in request order, so the read loop drops
	// that many responses before resolving the in-flight request;
	// without this a late answer would resolve the wrong request.
	stale int
}

// NewClient creates a client for the given endpoint path.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		reqSem:     make(chan struct{}, 1),
	}
}

// Connect dials the endpoint and starts the read loop.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}
	conn, err := net.DialTimeout("unix", c.socketPath, startDialTimeout)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	c.conn = conn
	c.connected = true
	go c.readLoop(conn)
	return nil
}

// ConnectOrStart connects, spawning the daemon process when the first
// attempt fails: up to 20 retries at 500 ms with a 1 s dial timeout,
// aborting early if the spawned process exits.
func (c *Client) ConnectOrStart() error {
	if err := c.Connect(); err == nil {
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}

	cmd := exec.Command(exe, "daemon", "run")
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	exited := make(chan struct{})
	go func() {
		cmd.Wait()
		close(exited)
	}()

	for i := 0; i < startAttempts; i++ {
		select {
		case <-exited:
			return fmt.Errorf("daemon process exited before accepting connections")
		default:
		}
		if err := c.Connect(); err == nil {
			return nil
		}
		time.Sleep(startRetryDelay)
	}
	return fmt.Errorf("daemon did not start after %d attempts", startAttempts)
}

// readLoop splits incoming frames into responses (resolving the pending
// request) and events (dispatched to OnEvent).
func (c *Client) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)
	for scanner.Scan() {
		line := trimFrame(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if isResponse(line) {
			var resp Response
			if err := json.Unmarshal(line, &resp); err != nil {
				continue
			}
			c.mu.Lock()
			if c.stale > 0 {
				// Answer to a request that already timed out; drop it.
				c.stale--
				c.mu.Unlock()
				continue
			}
			pending := c.pending
			c.pending = nil
			c.mu.Unlock()
			if pending != nil {
				pending <- resp
			}
			continue
		}

		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			continue
		}
		if c.OnEvent != nil {
			c.OnEvent(evt)
		}
	}
	c.disconnect()
}

// request sends one request and waits for its response. A timeout
// resolves to nil so the next request may proceed; the listen loop
// keeps running.
func (c *Client) request(req Request) (*Response, error) {
	c.reqSem <- struct{}{}
	defer func() { <-c.reqSem }()

	frame, err := encodeLine(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if !c.connected || c.conn == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("not connected")
	}
	pending := make(chan Response, 1)
	c.pending = pending
	conn := c.conn
	c.mu.Unlock()

	if _, err := conn.Write(frame); err != nil {
		c.disconnect()
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case resp := <-pending:
		return &resp, nil
	case <-time.After(requestTimeout):
		c.mu.Lock()
		if c.pending == pending {
			// Our response never arrived: the next one on the wire
			// belongs to us and must not resolve a later request.
			c.pending = nil
			c.stale++
		}
		c.mu.Unlock()
		return nil, nil
	}
}

// requireOK unwraps a response, converting nil (timeout) and failure
// responses to errors.
func requireOK(resp *Response, err error) (*Response, error) {
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("request timed out")
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s", resp.Error)
	}
	return resp, nil
}

// CreateSession creates or re-attaches the pane.
func (c *Client) CreateSession(paneID string, cols, rows int, workingDirectory, command string) (*session.Info, error) {
	resp, err := requireOK(c.request(Request{
		Type:             TypeSessionCreate,
		PaneID:           paneID,
		Cols:             cols,
		Rows:             rows,
		WorkingDirectory: workingDirectory,
		Command:          command,
	}))
	if err != nil {
		return nil, err
	}
	var info session.Info
	if err := json.Unmarshal([]byte(resp.Data), &info); err != nil {
		return nil, fmt.Errorf("decode session info: %w", err)
	}
	return &info, nil
}

// Write sends input bytes to the pane.
func (c *Client) Write(paneID string, data []byte) error {
	_, err := requireOK(c.request(Request{
		Type:   TypeSessionWrite,
		PaneID: paneID,
		Data:   base64.StdEncoding.EncodeToString(data),
	}))
	return err
}

// Resize resizes the pane.
func (c *Client) Resize(paneID string, cols, rows int) error {
	_, err := requireOK(c.request(Request{
		Type:   TypeSessionResize,
		PaneID: paneID,
		Cols:   cols,
		Rows:   rows,
	}))
	return err
}

// CloseSession destroys the pane.
func (c *Client) CloseSession(paneID string) error {
	_, err := requireOK(c.request(Request{Type: TypeSessionClose, PaneID: paneID}))
	return err
}

// ListSessions fetches every live pane.
func (c *Client) ListSessions() ([]session.Info, error) {
	resp, err := requireOK(c.request(Request{Type: TypeSessionList}))
	if err != nil {
		return nil, err
	}
	var infos []session.Info
	if err := json.Unmarshal([]byte(resp.Data), &infos); err != nil {
		return nil, fmt.Errorf("decode session list: %w", err)
	}
	return infos, nil
}

// Snapshot fetches the pane's plain-text screen export.
func (c *Client) Snapshot(paneID string) (string, error) {
	resp, err := requireOK(c.request(Request{Type: TypeSessionSnapshot, PaneID: paneID}))
	if err != nil {
		return "", err
	}
	return resp.Data, nil
}

// Ping round-trips the daemon.
func (c *Client) Ping() error {
	resp, err := requireOK(c.request(Request{Type: TypePing}))
	if err != nil {
		return err
	}
	if resp.Data != "pong" {
		return fmt.Errorf("unexpected ping reply: %q", resp.Data)
	}
	return nil
}

// History fetches up to count recent command-log entries.
func (c *Client) History(count int) ([]cmdlog.Entry, error) {
	resp, err := requireOK(c.request(Request{Type: TypeHistoryList, Count: count}))
	if err != nil {
		return nil, err
	}
	var entries []cmdlog.Entry
	if err := json.Unmarshal([]byte(resp.Data), &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return entries, nil
}

// SaveTranscript captures the pane's screen into the transcript store
// and returns the file path.
func (c *Client) SaveTranscript(paneID, reason, workspaceID, surfaceID string) (string, error) {
	resp, err := requireOK(c.request(Request{
		Type:        TypeTranscriptSave,
		PaneID:      paneID,
		Reason:      reason,
		WorkspaceID: workspaceID,
		SurfaceID:   surfaceID,
	}))
	if err != nil {
		return "", err
	}
	return resp.Data, nil
}

// Connected reports whether the client holds a live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close disconnects from the daemon. Sessions survive; reconnecting
// clients re-attach with SESSION_CREATE.
func (c *Client) Close() error {
	c.disconnect()
	return nil
}

func (c *Client) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.pending = nil
	c.stale = 0
}
