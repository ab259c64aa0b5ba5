package dashboard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/urcontrol/urcl-go/pkg/log"
)

// Default protocol constants.
const (
	// DefaultPort is the dashboard server port.
	DefaultPort = 29999

	// DefaultConnectTimeout is the default connection timeout.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultCommandTimeout is the default per-command response timeout.
	DefaultCommandTimeout = 5 * time.Second

	// greetingPrefix is the banner the server sends on connect.
	greetingPrefix = "Connected"

	// maxLineLength bounds a single response line.
	maxLineLength = 4096
)

// ConnectionState represents the dashboard connection state.
type ConnectionState int

const (
	// StateDisconnected indicates no connection.
	StateDisconnected ConnectionState = iota

	// StateConnecting indicates connection in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected
)

// String returns the connection state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Dashboard errors.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrBadGreeting      = errors.New("malformed dashboard greeting")
	ErrCommandRejected  = errors.New("dashboard command rejected")
)

// ClientConfig configures a dashboard client.
type ClientConfig struct {
	// ConnectTimeout is the connection timeout (default: 10s).
	ConnectTimeout time.Duration

	// CommandTimeout is the per-command response timeout (default: 5s).
	CommandTimeout time.Duration

	// Logger receives session events. Nil disables logging.
	Logger log.Logger

	// SessionID tags emitted log events.
	SessionID string
}

// Client is a dashboard client. Methods are synchronous and safe for
// use from a single goroutine; the client performs no automatic
// retries and no reconnection.
type Client struct {
	addr   string
	config ClientConfig

	mu     sync.Mutex
	state  ConnectionState
	conn   net.Conn
	reader *bufio.Reader
}

// NewClient creates a dashboard client for the given robot address.
// If addr has no port, the default dashboard port is appended.
func NewClient(addr string, config ClientConfig) *Client {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.CommandTimeout == 0 {
		config.CommandTimeout = DefaultCommandTimeout
	}
	if config.Logger == nil {
		config.Logger = log.NoopLogger{}
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, fmt.Sprintf("%d", DefaultPort))
	}
	return &Client{
		addr:   addr,
		config: config,
		state:  StateDisconnected,
	}
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the dashboard connection and validates the greeting
// banner. It fails if the endpoint is unreachable or the greeting is
// malformed.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDisconnected {
		return ErrAlreadyConnected
	}
	c.setStateLocked(StateConnecting)

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		c.setStateLocked(StateDisconnected)
		return fmt.Errorf("dial dashboard: %w", err)
	}

	reader := bufio.NewReaderSize(conn, maxLineLength)
	greeting, err := readLine(conn, reader, c.config.CommandTimeout)
	if err != nil {
		conn.Close()
		c.setStateLocked(StateDisconnected)
		return fmt.Errorf("read greeting: %w", err)
	}
	if !strings.HasPrefix(greeting, greetingPrefix) {
		conn.Close()
		c.setStateLocked(StateDisconnected)
		return fmt.Errorf("%w: %q", ErrBadGreeting, greeting)
	}

	c.conn = conn
	c.reader = reader
	c.setStateLocked(StateConnected)
	return nil
}

// Stop requests that any currently running program be halted.
func (c *Client) Stop() error {
	return c.command("stop", "stop", "Stopped")
}

// PowerOn powers on the robot arm.
func (c *Client) PowerOn() error {
	return c.command("power_on", "power on", "Powering on")
}

// PowerOff powers off the robot arm.
func (c *Client) PowerOff() error {
	return c.command("power_off", "power off", "Powering off")
}

// BrakeRelease releases the brakes.
func (c *Client) BrakeRelease() error {
	return c.command("brake_release", "brake release", "Brake releasing")
}

// Raw sends an arbitrary dashboard command and returns the raw
// response line. Intended for diagnostics and the interactive shell.
func (c *Client) Raw(cmd string) (string, error) {
	return c.exchange(cmd)
}

// Close sends quit and closes the connection. Closing a disconnected
// client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected {
		return nil
	}

	// Best effort; the server closes the socket after quit.
	fmt.Fprintf(c.conn, "quit\n")
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	c.setStateLocked(StateDisconnected)
	return err
}

// command sends cmd and requires the response to start with wantPrefix.
func (c *Client) command(name, cmd, wantPrefix string) error {
	resp, err := c.exchange(cmd)
	if err != nil {
		c.logCommand(name, false, err.Error())
		return err
	}
	if !strings.HasPrefix(resp, wantPrefix) {
		c.logCommand(name, false, resp)
		return fmt.Errorf("%w: %s: %q", ErrCommandRejected, name, resp)
	}
	c.logCommand(name, true, resp)
	return nil
}

// exchange sends one line and reads one response line under deadline.
func (c *Client) exchange(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected {
		return "", ErrNotConnected
	}

	deadline := time.Now().Add(c.config.CommandTimeout)
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(c.conn, "%s\n", cmd); err != nil {
		return "", fmt.Errorf("send %q: %w", cmd, err)
	}

	resp, err := readLine(c.conn, c.reader, c.config.CommandTimeout)
	if err != nil {
		return "", fmt.Errorf("response to %q: %w", cmd, err)
	}
	return resp, nil
}

// readLine reads a single newline-terminated line under a deadline.
func readLine(conn net.Conn, reader *bufio.Reader, timeout time.Duration) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *Client) setStateLocked(newState ConnectionState) {
	oldState := c.state
	c.state = newState
	if oldState == newState {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: c.config.SessionID,
		Direction: log.DirectionOut,
		Layer:     log.LayerDashboard,
		Category:  log.CategoryStateChange,
		RobotAddr: c.addr,
		StateChange: &log.StateChangeEvent{
			From: oldState.String(),
			To:   newState.String(),
		},
	})
}

func (c *Client) logCommand(name string, success bool, detail string) {
	c.config.Logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: c.config.SessionID,
		Direction: log.DirectionOut,
		Layer:     log.LayerDashboard,
		Category:  log.CategoryCommand,
		RobotAddr: c.addr,
		Command: &log.CommandEvent{
			Name:    name,
			Success: success,
			Detail:  detail,
		},
	})
}
