package dashboard

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

// fakeServer is a minimal scripted dashboard server for tests.
type fakeServer struct {
	listener  net.Listener
	greeting  string
	responses map[string]string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &fakeServer{
		listener: listener,
		greeting: "Connected: Universal Robots Dashboard Server",
		responses: map[string]string{
			"stop":          "Stopped",
			"power on":      "Powering on",
			"power off":     "Powering off",
			"brake release": "Brake releasing",
			"robotmode":     "Robotmode: RUNNING",
		},
	}
	t.Cleanup(func() { listener.Close() })

	go s.serve()
	return s
}

func (s *fakeServer) addr() string { return s.listener.Addr().String() }

func (s *fakeServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	defer conn.Close()
	conn.Write([]byte(s.greeting + "\n"))

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "quit" {
			conn.Write([]byte("Disconnected\n"))
			return
		}
		resp, ok := s.responses[cmd]
		if !ok {
			resp = "could not understand"
		}
		conn.Write([]byte(resp + "\n"))
	}
}

func TestClientConnectAndCommands(t *testing.T) {
	server := newFakeServer(t)
	client := NewClient(server.addr(), ClientConfig{})

	if client.State() != StateDisconnected {
		t.Fatalf("initial state = %v", client.State())
	}

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if client.State() != StateConnected {
		t.Fatalf("state after connect = %v", client.State())
	}

	if err := client.Connect(context.Background()); err != ErrAlreadyConnected {
		t.Errorf("second Connect = %v, want ErrAlreadyConnected", err)
	}

	if err := client.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := client.PowerOn(); err != nil {
		t.Errorf("PowerOn: %v", err)
	}
	if err := client.BrakeRelease(); err != nil {
		t.Errorf("BrakeRelease: %v", err)
	}

	resp, err := client.Raw("robotmode")
	if err != nil {
		t.Errorf("Raw: %v", err)
	}
	if resp != "Robotmode: RUNNING" {
		t.Errorf("Raw response = %q", resp)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if client.State() != StateDisconnected {
		t.Errorf("state after close = %v", client.State())
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestClientRejectedCommand(t *testing.T) {
	server := newFakeServer(t)
	server.responses["stop"] = "Failed to execute: stop"

	client := NewClient(server.addr(), ClientConfig{})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	err := client.Stop()
	if err == nil {
		t.Fatal("Stop succeeded against rejecting server")
	}
	if !strings.Contains(err.Error(), "rejected") {
		t.Errorf("error = %v, want rejection", err)
	}
}

func TestClientBadGreeting(t *testing.T) {
	server := newFakeServer(t)
	server.greeting = "HTTP/1.1 400 Bad Request"

	client := NewClient(server.addr(), ClientConfig{})
	err := client.Connect(context.Background())
	if err == nil {
		t.Fatal("Connect accepted malformed greeting")
	}
	if client.State() != StateDisconnected {
		t.Errorf("state after failed connect = %v", client.State())
	}
}

func TestClientUnreachable(t *testing.T) {
	// Reserve and release a port so nothing is listening on it.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	client := NewClient(addr, ClientConfig{ConnectTimeout: time.Second})
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("Connect succeeded against closed port")
	}
}

func TestClientCommandWhenDisconnected(t *testing.T) {
	client := NewClient("127.0.0.1", ClientConfig{})
	if err := client.Stop(); err != ErrNotConnected {
		t.Errorf("Stop = %v, want ErrNotConnected", err)
	}
}
