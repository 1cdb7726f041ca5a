package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/driftkv/driftkv/pkg/config"
	"github.com/driftkv/driftkv/pkg/protocol"
)

func startTestServer(t *testing.T, cfg *config.ServerConfig) string {
	t.Helper()

	if cfg == nil {
		cfg = &config.ServerConfig{
			Host:       "127.0.0.1",
			Port:       0,
			MaxConns:   16,
			MaxMsgSize: 4096,
			LogLevel:   "info",
		}
	}

	s := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := s.Listen(); err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()
	t.Cleanup(func() {
		s.Stop()
		if err := <-done; err != nil {
			t.Errorf("serve returned error: %v", err)
		}
	})

	return fmt.Sprintf("127.0.0.1:%d", s.Port())
}

func dialTestServer(t *testing.T, addr string) net.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	c.SetDeadline(time.Now().Add(5 * time.Second))
	t.Cleanup(func() { c.Close() })
	return c
}

func roundTrip(t *testing.T, c net.Conn, tokens ...string) string {
	t.Helper()
	if err := protocol.WriteRequest(c, tokens); err != nil {
		t.Fatalf("write %v failed: %v", tokens, err)
	}
	reply, err := protocol.ReadResponse(c, 0)
	if err != nil {
		t.Fatalf("read reply to %v failed: %v", tokens, err)
	}
	return reply
}

func TestServerSetGetDel(t *testing.T) {
	addr := startTestServer(t, nil)
	c := dialTestServer(t, addr)

	steps := []struct {
		tokens []string
		reply  string
	}{
		{[]string{"get", "name"}, "key name not found"},
		{[]string{"set", "name", "bob"}, "set name to bob"},
		{[]string{"get", "name"}, "bob"},
		{[]string{"del", "name"}, "key name deleted"},
		{[]string{"get", "name"}, "key name not found"},
	}
	for _, step := range steps {
		if got := roundTrip(t, c, step.tokens...); got != step.reply {
			t.Fatalf("%v: got %q, expected %q", step.tokens, got, step.reply)
		}
	}
}

func TestServerStatePersistsAcrossConnections(t *testing.T) {
	addr := startTestServer(t, nil)

	c1 := dialTestServer(t, addr)
	if got := roundTrip(t, c1, "set", "shared", "value"); got != "set shared to value" {
		t.Fatalf("set got %q", got)
	}
	c1.Close()

	c2 := dialTestServer(t, addr)
	if got := roundTrip(t, c2, "get", "shared"); got != "value" {
		t.Fatalf("get on new connection got %q", got)
	}
}

func TestServerPartialWrite(t *testing.T) {
	addr := startTestServer(t, nil)
	c := dialTestServer(t, addr)

	frame := protocol.AppendRequest(nil, []string{"set", "k", "v"})

	// Deliver the request in two chunks with a pause in between. The server
	// must hold the prefix and respond only once the frame completes.
	if _, err := c.Write(frame[:6]); err != nil {
		t.Fatalf("first chunk failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := c.Write(frame[6:]); err != nil {
		t.Fatalf("second chunk failed: %v", err)
	}

	reply, err := protocol.ReadResponse(c, 0)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if reply != "set k to v" {
		t.Errorf("got %q", reply)
	}
}

func TestServerPipelinedRequests(t *testing.T) {
	addr := startTestServer(t, nil)
	c := dialTestServer(t, addr)

	frames := protocol.AppendRequest(nil, []string{"set", "a", "1"})
	frames = protocol.AppendRequest(frames, []string{"set", "b", "2"})
	frames = protocol.AppendRequest(frames, []string{"get", "a"})
	if _, err := c.Write(frames); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// Responses arrive in request order.
	for _, want := range []string{"set a to 1", "set b to 2", "1"} {
		reply, err := protocol.ReadResponse(c, 0)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if reply != want {
			t.Fatalf("got %q, expected %q", reply, want)
		}
	}
}

func TestServerUnknownCommandKeepsConnection(t *testing.T) {
	addr := startTestServer(t, nil)
	c := dialTestServer(t, addr)

	if got := roundTrip(t, c, "flush", "all"); got != "unknown command" {
		t.Fatalf("got %q", got)
	}
	// The connection survives a bad command.
	if got := roundTrip(t, c, "set", "k", "v"); got != "set k to v" {
		t.Fatalf("follow-up got %q", got)
	}
}

func TestServerInvalidTokenCountClosesConnection(t *testing.T) {
	addr := startTestServer(t, nil)
	c := dialTestServer(t, addr)

	var frame []byte
	frame = binary.BigEndian.AppendUint32(frame, 7)
	frame = binary.BigEndian.AppendUint32(frame, 1)
	frame = append(frame, 'x')
	if _, err := c.Write(frame); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	reply, err := protocol.ReadResponse(c, 0)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if reply != "invalid command" {
		t.Errorf("got %q", reply)
	}

	// The server closes the connection after the error response.
	if _, err := protocol.ReadResponse(c, 0); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF after violation, got %v", err)
	}
}

func TestServerOversizedRequestClosesConnection(t *testing.T) {
	addr := startTestServer(t, nil)
	c := dialTestServer(t, addr)

	// The advertised token length blows past the limit; the payload itself
	// is never sent.
	var frame []byte
	frame = binary.BigEndian.AppendUint32(frame, 2)
	frame = binary.BigEndian.AppendUint32(frame, 1<<20)
	if _, err := c.Write(frame); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	reply, err := protocol.ReadResponse(c, 0)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if reply != "oversized request" {
		t.Errorf("got %q", reply)
	}
	if _, err := protocol.ReadResponse(c, 0); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF after violation, got %v", err)
	}
}

func TestServerIncompleteFrameThenClose(t *testing.T) {
	addr := startTestServer(t, nil)

	c := dialTestServer(t, addr)
	frame := protocol.AppendRequest(nil, []string{"get", "never-finished"})
	if _, err := c.Write(frame[:5]); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	c.Close()

	// The half-request must not have been executed or crashed the loop; a
	// fresh connection still gets served.
	c2 := dialTestServer(t, addr)
	if got := roundTrip(t, c2, "get", "never-finished"); got != "key never-finished not found" {
		t.Errorf("got %q", got)
	}
}

func TestServerConnectionLimit(t *testing.T) {
	cfg := &config.ServerConfig{
		Host:       "127.0.0.1",
		Port:       0,
		MaxConns:   1,
		MaxMsgSize: 4096,
		LogLevel:   "info",
	}
	addr := startTestServer(t, cfg)

	c1 := dialTestServer(t, addr)
	if got := roundTrip(t, c1, "set", "k", "v"); got != "set k to v" {
		t.Fatalf("first connection got %q", got)
	}

	// The second connection is accepted by the kernel and immediately
	// closed by the server.
	c2 := dialTestServer(t, addr)
	if _, err := protocol.ReadResponse(c2, 0); err == nil {
		t.Error("expected the over-limit connection to be closed")
	}

	// The first connection is unaffected.
	if got := roundTrip(t, c1, "get", "k"); got != "v" {
		t.Errorf("first connection after limit got %q", got)
	}
}
