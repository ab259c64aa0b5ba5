package reverse

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/urcontrol/urcl-go/pkg/wire"
)

// stateRecorder collects program-state notifications.
type stateRecorder struct {
	mu     sync.Mutex
	states []bool
	ch     chan bool
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{ch: make(chan bool, 8)}
}

func (r *stateRecorder) notify(running bool) {
	r.mu.Lock()
	r.states = append(r.states, running)
	r.mu.Unlock()
	r.ch <- running
}

func (r *stateRecorder) wait(t *testing.T, want bool) {
	t.Helper()
	select {
	case got := <-r.ch:
		if got != want {
			t.Fatalf("state notification = %v, want %v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for state %v", want)
	}
}

func startServer(t *testing.T, rec *stateRecorder) *Server {
	t.Helper()
	server := NewServer(ServerConfig{
		Address:               "127.0.0.1:0",
		OnProgramStateChanged: rec.notify,
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server
}

func dialScript(t *testing.T, server *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", server.Port()))
	if err != nil {
		t.Fatalf("dial reverse channel: %v", err)
	}
	return conn
}

func TestWriteRequiresAttachedScript(t *testing.T) {
	rec := newStateRecorder()
	server := startServer(t, rec)

	err := server.Write(wire.Keepalive{Timeout: 100 * time.Millisecond})
	if !errors.Is(err, ErrScriptNotAttached) {
		t.Fatalf("Write before attach = %v, want ErrScriptNotAttached", err)
	}
}

func TestAttachNotifiesAndDelivers(t *testing.T) {
	rec := newStateRecorder()
	server := startServer(t, rec)

	script := dialScript(t, server)
	defer script.Close()
	rec.wait(t, true)

	if !server.ScriptAttached() {
		t.Fatal("ScriptAttached = false after accept")
	}

	ka := wire.Keepalive{Timeout: 100 * time.Millisecond}
	if err := server.Write(ka); err != nil {
		t.Fatalf("Write: %v", err)
	}

	words, err := wire.DecodeFrame(script)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	decoded, err := wire.DecodeKeepalive(words)
	if err != nil {
		t.Fatalf("DecodeKeepalive: %v", err)
	}
	if decoded.Timeout != ka.Timeout {
		t.Errorf("timeout = %v, want %v", decoded.Timeout, ka.Timeout)
	}
}

func TestDetachNotifies(t *testing.T) {
	rec := newStateRecorder()
	server := startServer(t, rec)

	script := dialScript(t, server)
	rec.wait(t, true)

	script.Close()
	rec.wait(t, false)

	if server.ScriptAttached() {
		t.Error("ScriptAttached = true after close")
	}
	if err := server.Write(wire.ForceModeEnd{}); !errors.Is(err, ErrScriptNotAttached) {
		t.Errorf("Write after detach = %v, want ErrScriptNotAttached", err)
	}
}

func TestReattachReplacesConnection(t *testing.T) {
	rec := newStateRecorder()
	server := startServer(t, rec)

	first := dialScript(t, server)
	rec.wait(t, true)

	second := dialScript(t, server)
	defer second.Close()
	rec.wait(t, true)

	// The replaced connection is closed by the server; only the second
	// receives frames.
	if err := server.Write(wire.Keepalive{Timeout: 50 * time.Millisecond}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := wire.DecodeFrame(second); err != nil {
		t.Fatalf("second connection did not receive frame: %v", err)
	}

	first.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if _, err := first.Read(buf); err == nil {
		t.Error("first connection still open after replacement")
	}
	first.Close()
}

func TestStopWhileAttached(t *testing.T) {
	rec := newStateRecorder()
	server := NewServer(ServerConfig{
		Address:               "127.0.0.1:0",
		OnProgramStateChanged: rec.notify,
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	script := dialScript(t, server)
	defer script.Close()
	rec.wait(t, true)

	if err := server.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := server.Write(wire.ForceModeEnd{}); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Write after stop = %v, want ErrNotRunning", err)
	}
}
