package rtde

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/urcontrol/urcl-go/pkg/log"
	"github.com/urcontrol/urcl-go/pkg/version"
)

// Default protocol constants.
const (
	// DefaultPort is the negotiation channel port.
	DefaultPort = 30004

	// ProtocolVersion is the protocol version this client speaks.
	ProtocolVersion = 2

	// DefaultConnectTimeout is the default connection timeout.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultResponseTimeout is the default per-request response timeout.
	DefaultResponseTimeout = 5 * time.Second
)

// Negotiation errors.
var (
	ErrNotConnected       = errors.New("not connected")
	ErrAlreadyConnected   = errors.New("already connected")
	ErrVersionRejected    = errors.New("protocol version rejected")
	ErrRecipeRejected     = errors.New("recipe rejected")
	ErrUnexpectedResponse = errors.New("unexpected response packet")
)

// ControllerInfo is the controller metadata collected during negotiation.
type ControllerInfo struct {
	// Version is the firmware version.
	Version version.Version

	// CalibrationChecksum is the kinematic calibration identifier.
	CalibrationChecksum string
}

// ClientConfig configures a negotiation client.
type ClientConfig struct {
	// ConnectTimeout is the connection timeout (default: 10s).
	ConnectTimeout time.Duration

	// ResponseTimeout is the per-request response timeout (default: 5s).
	ResponseTimeout time.Duration

	// Logger receives session events. Nil disables logging.
	Logger log.Logger

	// SessionID tags emitted log events.
	SessionID string
}

// Client negotiates the real-time exchange recipe with the controller.
// Methods are synchronous request/response pairs; the client performs
// no automatic retries.
type Client struct {
	addr   string
	config ClientConfig

	mu        sync.Mutex
	conn      net.Conn
	connected bool
}

// NewClient creates a negotiation client for the given robot address.
// If addr has no port, the default negotiation port is appended.
func NewClient(addr string, config ClientConfig) *Client {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.ResponseTimeout == 0 {
		config.ResponseTimeout = DefaultResponseTimeout
	}
	if config.Logger == nil {
		config.Logger = log.NoopLogger{}
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, fmt.Sprintf("%d", DefaultPort))
	}
	return &Client{addr: addr, config: config}
}

// Connect opens the channel and negotiates the protocol version.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return ErrAlreadyConnected
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial rtde: %w", err)
	}
	c.conn = conn
	c.connected = true

	var req [2]byte
	binary.BigEndian.PutUint16(req[:], ProtocolVersion)
	payload, err := c.requestLocked(PacketRequestProtocolVersion, req[:])
	if err != nil {
		c.closeLocked()
		return err
	}
	if len(payload) != 1 || payload[0] != 1 {
		c.closeLocked()
		return fmt.Errorf("%w: version %d", ErrVersionRejected, ProtocolVersion)
	}
	return nil
}

// ControllerInfo queries the firmware version and calibration checksum.
func (c *Client) ControllerInfo() (ControllerInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := c.requestLocked(PacketGetControllerVersion, nil)
	if err != nil {
		return ControllerInfo{}, err
	}
	if len(payload) != 16 {
		return ControllerInfo{}, fmt.Errorf("%w: controller version payload %d bytes", ErrUnexpectedResponse, len(payload))
	}
	v := version.Version{
		Major:  binary.BigEndian.Uint32(payload[0:]),
		Minor:  binary.BigEndian.Uint32(payload[4:]),
		Bugfix: binary.BigEndian.Uint32(payload[8:]),
		Build:  binary.BigEndian.Uint32(payload[12:]),
	}

	payload, err = c.requestLocked(PacketGetKinematicsInfo, nil)
	if err != nil {
		return ControllerInfo{}, err
	}

	return ControllerInfo{
		Version:             v,
		CalibrationChecksum: string(payload),
	}, nil
}

// SetupOutputs registers the robot-to-client recipe. The response
// carries one type name per field; a NOT_FOUND type means the
// controller does not provide that field, which is a deployment error.
func (c *Client) SetupOutputs(recipe Recipe) error {
	return c.setupRecipe(PacketSetupOutputs, recipe)
}

// SetupInputs registers the client-to-robot recipe.
func (c *Client) SetupInputs(recipe Recipe) error {
	return c.setupRecipe(PacketSetupInputs, recipe)
}

// Start starts the data exchange.
func (c *Client) Start() error {
	return c.simpleCommand(PacketStart)
}

// Pause pauses the data exchange.
func (c *Client) Pause() error {
	return c.simpleCommand(PacketPause)
}

// Close closes the channel. Closing a disconnected client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) setupRecipe(t PacketType, recipe Recipe) error {
	if err := recipe.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := c.requestLocked(t, []byte(recipe.String()))
	if err != nil {
		return err
	}
	// Response: uint8 recipe ID (0 = rejected) + comma-separated types.
	if len(payload) < 1 || payload[0] == 0 {
		return fmt.Errorf("%w: %s", ErrRecipeRejected, t)
	}
	types := strings.Split(string(payload[1:]), ",")
	if len(types) != len(recipe.Fields) {
		return fmt.Errorf("%w: %d fields, %d types", ErrUnexpectedResponse, len(recipe.Fields), len(types))
	}
	for i, typeName := range types {
		if typeName == "NOT_FOUND" {
			return fmt.Errorf("%w: unknown field %q", ErrRecipeRejected, recipe.Fields[i])
		}
	}
	return nil
}

func (c *Client) simpleCommand(t PacketType) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := c.requestLocked(t, nil)
	if err != nil {
		return err
	}
	if len(payload) != 1 || payload[0] != 1 {
		return fmt.Errorf("%w: %s not accepted", ErrUnexpectedResponse, t)
	}
	return nil
}

// requestLocked sends one packet and reads the matching response.
// Callers hold c.mu.
func (c *Client) requestLocked(t PacketType, payload []byte) ([]byte, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}

	deadline := time.Now().Add(c.config.ResponseTimeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if err := writePacket(c.conn, t, payload); err != nil {
		c.logError(fmt.Sprintf("send %s: %v", t, err))
		return nil, fmt.Errorf("send %s: %w", t, err)
	}

	respType, respPayload, err := readPacket(c.conn)
	if err != nil {
		c.logError(fmt.Sprintf("response to %s: %v", t, err))
		return nil, fmt.Errorf("response to %s: %w", t, err)
	}
	if respType != t {
		return nil, fmt.Errorf("%w: sent %s, got %s", ErrUnexpectedResponse, t, respType)
	}

	c.config.Logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: c.config.SessionID,
		Direction: log.DirectionOut,
		Layer:     log.LayerRTDE,
		Category:  log.CategoryCommand,
		RobotAddr: c.addr,
		Command:   &log.CommandEvent{Name: t.String(), Success: true},
	})
	return respPayload, nil
}

func (c *Client) closeLocked() error {
	if !c.connected {
		return nil
	}
	c.connected = false
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) logError(msg string) {
	c.config.Logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: c.config.SessionID,
		Direction: log.DirectionOut,
		Layer:     log.LayerRTDE,
		Category:  log.CategoryError,
		RobotAddr: c.addr,
		Error:     &log.ErrorEventData{Message: msg},
	})
}
