// Package testutil provides an in-process fake robot controller for
// integration-style tests. The fake serves the supervisory line
// protocol, the negotiation channel and the program port on loopback
// listeners, and a script client that plays the robot side of the
// reverse channel.
package testutil

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/urcontrol/urcl-go/pkg/rtde"
	"github.com/urcontrol/urcl-go/pkg/version"
	"github.com/urcontrol/urcl-go/pkg/wire"
)

// FakeRobot simulates the controller side of all three client-dialed
// channels. Every listener binds a loopback ephemeral port.
type FakeRobot struct {
	// Firmware is the version reported during negotiation.
	Firmware version.Version

	// Checksum is the kinematic calibration checksum reported during
	// negotiation.
	Checksum string

	// UnknownFields lists recipe fields answered with NOT_FOUND.
	UnknownFields map[string]bool

	// RejectProtocol makes the version handshake fail.
	RejectProtocol bool

	dashboardLn net.Listener
	rtdeLn      net.Listener
	programLn   net.Listener

	mu                sync.Mutex
	dashboardCommands []string
	programs          []string
	onProgram         func(program string)
}

// StartFakeRobot starts a fake robot with firmware 5.9.4 and registers
// cleanup with t. Callers adjust the exported fields before the client
// under test connects.
func StartFakeRobot(t testing.TB) *FakeRobot {
	t.Helper()

	r := &FakeRobot{
		Firmware: version.Version{Major: 5, Minor: 9, Bugfix: 4},
		Checksum: "calib_12788084448423163542",
	}

	for _, setup := range []struct {
		ln    *net.Listener
		serve func(net.Conn)
	}{
		{&r.dashboardLn, r.serveDashboard},
		{&r.rtdeLn, r.serveRTDE},
		{&r.programLn, r.serveProgram},
	} {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		*setup.ln = ln
		go acceptLoop(ln, setup.serve)
	}

	t.Cleanup(func() {
		r.dashboardLn.Close()
		r.rtdeLn.Close()
		r.programLn.Close()
	})
	return r
}

// DashboardAddr returns the fake supervisory endpoint.
func (r *FakeRobot) DashboardAddr() string { return r.dashboardLn.Addr().String() }

// RTDEAddr returns the fake negotiation endpoint.
func (r *FakeRobot) RTDEAddr() string { return r.rtdeLn.Addr().String() }

// ProgramAddr returns the fake program deployment endpoint.
func (r *FakeRobot) ProgramAddr() string { return r.programLn.Addr().String() }

// OnProgram registers a callback invoked with every deployed program.
// The callback runs on the serving goroutine.
func (r *FakeRobot) OnProgram(fn func(program string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onProgram = fn
}

// DashboardCommands returns the supervisory commands received so far.
func (r *FakeRobot) DashboardCommands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dashboardCommands...)
}

// Programs returns the programs deployed so far.
func (r *FakeRobot) Programs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.programs...)
}

func acceptLoop(ln net.Listener, serve func(net.Conn)) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go serve(conn)
	}
}

func (r *FakeRobot) serveDashboard(conn net.Conn) {
	defer conn.Close()

	fmt.Fprintf(conn, "Connected: Fake dashboard server\n")

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		r.mu.Lock()
		r.dashboardCommands = append(r.dashboardCommands, cmd)
		r.mu.Unlock()

		switch cmd {
		case "stop":
			fmt.Fprintf(conn, "Stopped\n")
		case "power on":
			fmt.Fprintf(conn, "Powering on\n")
		case "power off":
			fmt.Fprintf(conn, "Powering off\n")
		case "brake release":
			fmt.Fprintf(conn, "Brake releasing\n")
		case "quit":
			fmt.Fprintf(conn, "Disconnected\n")
			return
		default:
			fmt.Fprintf(conn, "could not understand: %q\n", cmd)
		}
	}
}

func (r *FakeRobot) serveRTDE(conn net.Conn) {
	defer conn.Close()

	for {
		t, payload, err := readNegotiationPacket(conn)
		if err != nil {
			return
		}

		switch t {
		case rtde.PacketRequestProtocolVersion:
			if r.RejectProtocol {
				writeNegotiationPacket(conn, t, []byte{0})
			} else {
				writeNegotiationPacket(conn, t, []byte{1})
			}
		case rtde.PacketGetControllerVersion:
			resp := make([]byte, 16)
			binary.BigEndian.PutUint32(resp[0:], r.Firmware.Major)
			binary.BigEndian.PutUint32(resp[4:], r.Firmware.Minor)
			binary.BigEndian.PutUint32(resp[8:], r.Firmware.Bugfix)
			binary.BigEndian.PutUint32(resp[12:], r.Firmware.Build)
			writeNegotiationPacket(conn, t, resp)
		case rtde.PacketGetKinematicsInfo:
			writeNegotiationPacket(conn, t, []byte(r.Checksum))
		case rtde.PacketSetupOutputs, rtde.PacketSetupInputs:
			fields := strings.Split(string(payload), ",")
			types := make([]string, len(fields))
			for i, field := range fields {
				if r.UnknownFields[field] {
					types[i] = "NOT_FOUND"
				} else {
					types[i] = "DOUBLE"
				}
			}
			resp := append([]byte{1}, []byte(strings.Join(types, ","))...)
			writeNegotiationPacket(conn, t, resp)
		case rtde.PacketStart, rtde.PacketPause:
			writeNegotiationPacket(conn, t, []byte{1})
		default:
			return
		}
	}
}

func (r *FakeRobot) serveProgram(conn net.Conn) {
	defer conn.Close()

	var program strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		program.Write(buf[:n])
		if err != nil {
			break
		}
	}

	r.mu.Lock()
	r.programs = append(r.programs, program.String())
	fn := r.onProgram
	r.mu.Unlock()

	if fn != nil {
		fn(program.String())
	}
}

// readNegotiationPacket reads one size-prefixed negotiation packet.
func readNegotiationPacket(conn net.Conn) (rtde.PacketType, []byte, error) {
	header := make([]byte, 3)
	if _, err := io.ReadFull(conn, header); err != nil {
		return 0, nil, err
	}
	total := binary.BigEndian.Uint16(header)
	if total < 3 {
		return 0, nil, fmt.Errorf("short packet: %d", total)
	}
	payload := make([]byte, total-3)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return 0, nil, err
	}
	return rtde.PacketType(header[2]), payload, nil
}

func writeNegotiationPacket(conn net.Conn, t rtde.PacketType, payload []byte) {
	buf := make([]byte, 3+len(payload))
	binary.BigEndian.PutUint16(buf, uint16(len(buf)))
	buf[2] = byte(t)
	copy(buf[3:], payload)
	conn.Write(buf)
}

// ScriptClient plays the robot-side script on the reverse channel.
// Dialing in signals program execution; closing signals program stop.
type ScriptClient struct {
	conn net.Conn
}

// DialScript connects to the reverse channel address. It is safe to
// call from the fake's serving goroutines.
func DialScript(addr string) (*ScriptClient, error) {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial reverse channel: %w", err)
	}
	return &ScriptClient{conn: conn}, nil
}

// ReadFrame reads and decodes one command frame.
func (c *ScriptClient) ReadFrame(timeout time.Duration) ([]int32, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	return wire.DecodeFrame(c.conn)
}

// Close closes the script connection. Safe to call twice.
func (c *ScriptClient) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
