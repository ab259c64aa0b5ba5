package reverse

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urcontrol/urcl-go/pkg/log"
	"github.com/urcontrol/urcl-go/pkg/wire"
)

// Default constants.
const (
	// DefaultPort is the port the control script dials back to.
	DefaultPort = 50001

	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 2 * time.Second
)

// Server errors.
var (
	ErrNotRunning        = errors.New("server not running")
	ErrAlreadyRunning    = errors.New("server already running")
	ErrScriptNotAttached = errors.New("control script not attached")
)

// ServerConfig configures a reverse channel server.
type ServerConfig struct {
	// Address to listen on (default: ":50001"). The rendered control
	// script is pointed at this address.
	Address string

	// WriteTimeout bounds a single frame write (default: 2s).
	WriteTimeout time.Duration

	// OnProgramStateChanged is invoked with true when the script
	// attaches and false when it detaches. Called from the server's
	// accept goroutine; implementations must be thread-safe.
	OnProgramStateChanged func(running bool)

	// Logger receives session events. Nil disables logging.
	Logger log.Logger

	// SessionID tags emitted log events.
	SessionID string
}

// Server accepts the control script's callback connection and writes
// command frames to it. At most one script connection is active; a
// newer connection replaces a stale one.
type Server struct {
	config   ServerConfig
	listener net.Listener

	mu     sync.Mutex
	script net.Conn

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewServer creates a reverse channel server.
func NewServer(config ServerConfig) *Server {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.Logger == nil {
		config.Logger = log.NoopLogger{}
	}
	return &Server{config: config}
}

// Start begins listening for the script connection.
func (s *Server) Start() error {
	if s.running.Load() {
		return ErrAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen reverse channel: %w", err)
	}
	s.listener = listener
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Port returns the bound listener port. Useful when Address was ":0".
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// ScriptAttached reports whether a script connection is active.
func (s *Server) ScriptAttached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.script != nil
}

// Write encodes cmd as a frame and writes it to the attached script.
func (s *Server) Write(cmd wire.Command) error {
	if !s.running.Load() {
		return ErrNotRunning
	}

	frame, err := wire.EncodeFrame(cmd.Words())
	if err != nil {
		return err
	}

	s.mu.Lock()
	conn := s.script
	s.mu.Unlock()
	if conn == nil {
		return ErrScriptNotAttached
	}

	if err := conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
		return err
	}
	if _, err := conn.Write(frame); err != nil {
		// Treat any write failure as a detached script; the read loop
		// will also observe the close and notify.
		s.detach(conn)
		return fmt.Errorf("write %s: %w", cmd.Type(), err)
	}

	s.config.Logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.config.SessionID,
		Direction: log.DirectionOut,
		Layer:     log.LayerReverse,
		Category:  log.CategoryFrame,
		Frame: &log.FrameEvent{
			MessageType: cmd.Type().String(),
			Words:       len(cmd.Words()),
		},
	})
	return nil
}

// Stop closes the listener and any attached script connection.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)

	err := s.listener.Close()

	s.mu.Lock()
	if s.script != nil {
		s.script.Close()
		s.script = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// acceptLoop accepts script connections. Each accepted connection is
// the program-running signal; its loss is the program-stopped signal.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Listener closed during Stop.
			return
		}

		s.mu.Lock()
		if s.script != nil {
			// Replace a stale connection; the robot restarts the
			// script on redeployment without closing the old socket
			// first in all firmware versions.
			s.script.Close()
		}
		s.script = conn
		s.mu.Unlock()

		s.notify(true)

		s.wg.Add(1)
		go s.watch(conn)
	}
}

// watch blocks until conn is closed by the remote side, then reports
// the script as stopped. The script never sends payload data on this
// channel; any read result other than an open connection means detach.
func (s *Server) watch(conn net.Conn) {
	defer s.wg.Done()

	buf := make([]byte, 1)
	for {
		conn.SetReadDeadline(time.Time{})
		if _, err := conn.Read(buf); err != nil {
			break
		}
	}
	s.detach(conn)
}

// detach clears conn if it is still the active script connection and
// fires the state callback.
func (s *Server) detach(conn net.Conn) {
	s.mu.Lock()
	if s.script != conn {
		s.mu.Unlock()
		return
	}
	s.script = nil
	s.mu.Unlock()

	conn.Close()
	if s.running.Load() {
		s.notify(false)
	}
}

func (s *Server) notify(running bool) {
	from, to := "RUNNING", "NOT_RUNNING"
	if running {
		from, to = to, from
	}
	s.config.Logger.Log(log.Event{
		Timestamp:   time.Now(),
		SessionID:   s.config.SessionID,
		Direction:   log.DirectionIn,
		Layer:       log.LayerReverse,
		Category:    log.CategoryStateChange,
		StateChange: &log.StateChangeEvent{From: from, To: to},
	})
	if s.config.OnProgramStateChanged != nil {
		s.config.OnProgramStateChanged(running)
	}
}
