package daemon

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cmux/internal/cmdlog"
	"cmux/internal/session"
	"cmux/internal/transcript"
)

// testServer starts a daemon on a short-lived socket and tears it down
// with the test. Unix socket paths have a tight length limit, so the
// socket lives in its own short temp dir rather than t.TempDir.
func testServer(t *testing.T) *Server {
	t.Helper()

	dir, err := os.MkdirTemp("", "cmux")
	if err != nil {
		t.Fatalf("temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	manager := session.NewManager(100)
	commandLog := cmdlog.NewLog(filepath.Join(dir, "logs"), 90)
	transcripts := transcript.NewStore(filepath.Join(dir, "logs", "terminal"), 90)

	srv := NewServer(filepath.Join(dir, "d.sock"), manager, commandLog, transcripts, "")
	if err := srv.Start(); err != nil {
		t.Fatalf("server start: %v", err)
	}
	go srv.Accept()
	t.Cleanup(func() { srv.Close() })

	return srv
}

func testClient(t *testing.T, srv *Server) *Client {
	t.Helper()
	c := NewClient(srv.SocketPath())
	if err := c.Connect(); err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestServer_Ping(t *testing.T) {
	srv := testServer(t)
	c := testClient(t, srv)

	if err := c.Ping(); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestServer_UnknownRequestKeepsConnection(t *testing.T) {
	srv := testServer(t)
	c := testClient(t, srv)

	resp, err := c.request(Request{Type: "BOGUS"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp == nil || resp.Success {
		t.Fatalf("expected failure response, got %+v", resp)
	}

	// The connection survives a protocol error.
	if err := c.Ping(); err != nil {
		t.Errorf("connection should stay open after protocol error: %v", err)
	}
}

func TestServer_BadBase64(t *testing.T) {
	srv := testServer(t)
	c := testClient(t, srv)

	resp, err := c.request(Request{Type: TypeSessionWrite, PaneID: "p1", Data: "!!!"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp == nil || resp.Success {
		t.Fatalf("bad base64 should fail, got %+v", resp)
	}
}

func TestServer_SessionRoundTrip(t *testing.T) {
	srv := testServer(t)
	c := testClient(t, srv)

	info, err := c.CreateSession("p1", 80, 24, "", "sleep 30")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if info.PaneID != "p1" || info.Cols != 80 || info.Rows != 24 || info.IsExisting {
		t.Errorf("unexpected info: %+v", info)
	}

	infos, err := c.ListSessions()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(infos) != 1 || infos[0].PaneID != "p1" {
		t.Errorf("unexpected list: %+v", infos)
	}

	if err := c.Resize("p1", 132, 40); err != nil {
		t.Errorf("resize failed: %v", err)
	}
	if err := c.CloseSession("p1"); err != nil {
		t.Errorf("close failed: %v", err)
	}
	if err := c.Ping(); err != nil {
		t.Errorf("daemon should keep running: %v", err)
	}
}

func TestServer_ConcurrentPingsAndBroadcast(t *testing.T) {
	// Two clients ping concurrently while an event is injected; each
	// response is whole, and both clients see the event exactly once.
	srv := testServer(t)

	events := make([]chan Event, 2)
	clients := make([]*Client, 2)
	for i := range clients {
		ch := make(chan Event, 16)
		events[i] = ch
		c := NewClient(srv.SocketPath())
		c.OnEvent = func(evt Event) { ch <- evt }
		if err := c.Connect(); err != nil {
			t.Fatalf("connect %d: %v", i, err)
		}
		defer c.Close()
		clients[i] = c
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if err := c.Ping(); err != nil {
					t.Errorf("ping failed: %v", err)
					return
				}
			}
		}(c)
	}
	srv.Broadcast(Event{Type: EventOutput, PaneID: "p1", Data: base64.StdEncoding.EncodeToString([]byte("hi"))})
	wg.Wait()

	for i, ch := range events {
		select {
		case evt := <-ch:
			if evt.Type != EventOutput || evt.PaneID != "p1" {
				t.Errorf("client %d: unexpected event %+v", i, evt)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("client %d never saw the broadcast", i)
		}
		select {
		case evt := <-ch:
			t.Errorf("client %d saw a duplicate event %+v", i, evt)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func TestServer_Reattach(t *testing.T) {
	// Client A creates p1 and disconnects; client B re-creates p1 and
	// gets the existing session without a respawn.
	srv := testServer(t)

	a := NewClient(srv.SocketPath())
	if err := a.Connect(); err != nil {
		t.Fatalf("connect a: %v", err)
	}
	if _, err := a.CreateSession("p1", 80, 24, "", "sleep 30"); err != nil {
		t.Fatalf("create: %v", err)
	}
	sess, err := srv.manager.Get("p1")
	if err != nil {
		t.Fatalf("manager lost the session: %v", err)
	}
	pid := sess.Pid()
	a.Close()

	b := testClient(t, srv)
	info, err := b.CreateSession("p1", 80, 24, "", "sleep 30")
	if err != nil {
		t.Fatalf("re-create: %v", err)
	}
	if !info.IsExisting {
		t.Error("expected IsExisting on reattach")
	}

	sess, err = srv.manager.Get("p1")
	if err != nil {
		t.Fatalf("session vanished: %v", err)
	}
	if sess.Pid() != pid {
		t.Errorf("child respawned across reconnect: pid %d != %d", sess.Pid(), pid)
	}
}

func TestServer_OutputEventsReachClient(t *testing.T) {
	srv := testServer(t)

	output := make(chan []byte, 64)
	c := NewClient(srv.SocketPath())
	c.OnEvent = func(evt Event) {
		if evt.Type == EventOutput && evt.PaneID == "p1" {
			if data, err := base64.StdEncoding.DecodeString(evt.Data); err == nil {
				output <- data
			}
		}
	}
	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	if _, err := c.CreateSession("p1", 80, 24, "", "sh -c 'printf overwire; sleep 30'"); err != nil {
		t.Fatalf("create: %v", err)
	}

	var collected strings.Builder
	deadline := time.After(5 * time.Second)
	for !strings.Contains(collected.String(), "overwire") {
		select {
		case data := <-output:
			collected.Write(data)
		case <-deadline:
			t.Fatalf("timed out; collected %q", collected.String())
		}
	}
}

func TestServer_SnapshotRequest(t *testing.T) {
	srv := testServer(t)
	c := testClient(t, srv)

	if _, err := c.CreateSession("p1", 80, 24, "", "sh -c 'printf snapbody; sleep 30'"); err != nil {
		t.Fatalf("create: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		text, err := c.Snapshot("p1")
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if strings.Contains(text, "snapbody") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("snapshot never contained output: %q", text)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestServer_TranscriptSave(t *testing.T) {
	srv := testServer(t)
	c := testClient(t, srv)

	if _, err := c.CreateSession("p1", 80, 24, "", "sleep 30"); err != nil {
		t.Fatalf("create: %v", err)
	}

	path, err := c.SaveTranscript("p1", "manual", "ws1", "sf1")
	if err != nil {
		t.Fatalf("save transcript: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("transcript file missing: %v", err)
	}
}

func TestServer_HistoryList(t *testing.T) {
	srv := testServer(t)
	c := testClient(t, srv)

	srv.commandLog.HandleMarker("p1", 'B', "echo one", "/tmp")
	srv.commandLog.HandleMarker("p1", 'D', "0", "/tmp")

	entries, err := c.History(10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 || entries[0].Command != "echo one" {
		t.Errorf("unexpected history: %+v", entries)
	}
}
