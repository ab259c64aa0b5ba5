package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/urcontrol/urcl-go/pkg/calibration"
	"github.com/urcontrol/urcl-go/pkg/dashboard"
	"github.com/urcontrol/urcl-go/pkg/log"
	"github.com/urcontrol/urcl-go/pkg/reverse"
	"github.com/urcontrol/urcl-go/pkg/rtde"
	"github.com/urcontrol/urcl-go/pkg/script"
	"github.com/urcontrol/urcl-go/pkg/version"
	"github.com/urcontrol/urcl-go/pkg/wire"
)

// Default timing constants.
const (
	// DefaultReadyTimeout is how long Start waits for the deployed
	// script to confirm execution.
	DefaultReadyTimeout = 10 * time.Second

	// DefaultRobotReadTimeout is the default read-timeout budget
	// granted to the robot side in every keepalive frame. The actual
	// threshold is controller configuration; override it in Config
	// rather than relying on this value.
	DefaultRobotReadTimeout = 500 * time.Millisecond
)

// Session errors.
var (
	ErrNotReady          = errors.New("session not ready")
	ErrSessionClosed     = errors.New("session closed")
	ErrModeAlreadyActive = errors.New("a mode session is already active")
	ErrScriptNotRunning  = errors.New("control script not confirmed running")
)

// State represents the session lifecycle state.
type State int

const (
	// StateIdle indicates the session has not been started.
	StateIdle State = iota

	// StateStarting indicates the startup sequence is in progress.
	StateStarting

	// StateReady indicates the script is confirmed running and
	// commands may be sent.
	StateReady

	// StateClosed indicates the session has been torn down.
	StateClosed
)

// String returns the session state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateReady:
		return "READY"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// PowerPolicy is the extension point for robot power-up during startup,
// applied after the stop command and before script deployment.
type PowerPolicy interface {
	// Prepare runs supervisory power commands. An error aborts Start.
	Prepare(ctx context.Context, dash *dashboard.Client) error
}

// NoopPowerPolicy leaves the power state untouched. This is the default.
type NoopPowerPolicy struct{}

// Prepare does nothing.
func (NoopPowerPolicy) Prepare(context.Context, *dashboard.Client) error { return nil }

// FullPowerPolicy powers the arm on and releases the brakes.
type FullPowerPolicy struct{}

// Prepare powers on and releases the brakes.
func (FullPowerPolicy) Prepare(_ context.Context, dash *dashboard.Client) error {
	if err := dash.PowerOn(); err != nil {
		return err
	}
	return dash.BrakeRelease()
}

// Config configures a ControlSession.
type Config struct {
	// RobotAddr is the robot controller host or host:port. The
	// dashboard, negotiation and program ports are derived from the
	// host when not overridden.
	RobotAddr string

	// DashboardAddr, RTDEAddr and ProgramAddr override the derived
	// per-channel addresses. Optional.
	DashboardAddr string
	RTDEAddr      string
	ProgramAddr   string

	// ReverseAddr is the listen address for the reverse channel
	// (default ":50001", tests use "127.0.0.1:0").
	ReverseAddr string

	// CallbackHost is the host written into the deployed script, i.e.
	// the address under which this client is reachable from the robot.
	// Empty means it is derived from the local route to the robot.
	CallbackHost string

	// Script is the control script template.
	Script script.Template

	// InputRecipe and OutputRecipe are the negotiated exchange recipes.
	InputRecipe  rtde.Recipe
	OutputRecipe rtde.Recipe

	// CalibrationChecksum is the expected kinematic calibration.
	// Empty disables the check.
	CalibrationChecksum string

	// ReadyTimeout bounds the wait for script confirmation.
	ReadyTimeout time.Duration

	// RobotReadTimeout is the liveness budget granted to the robot
	// side. Keepalives must be sent at most every half of this.
	RobotReadTimeout time.Duration

	// PowerPolicy is applied during startup. Nil means NoopPowerPolicy.
	PowerPolicy PowerPolicy

	// SessionLogger receives machine-readable session events.
	SessionLogger log.Logger

	// Logger is the operational logger. Nil uses slog.Default.
	Logger *slog.Logger
}

// ControlSession orchestrates one control session with a robot. It
// exclusively owns its dashboard client, negotiation client, reverse
// server and program state monitor; none are shared across sessions.
// Methods are not reentrant from multiple goroutines; only the monitor
// notify/wait pair may be called concurrently.
type ControlSession struct {
	config Config
	id     string
	logger *slog.Logger
	events log.Logger

	dash    *dashboard.Client
	rtde    *rtde.Client
	rev     *reverse.Server
	monitor *ProgramStateMonitor
	calib   calibration.Verifier

	mu            sync.Mutex
	state         State
	fw            version.Version
	modeActive    bool
	lastKeepalive time.Time
}

// New creates a ControlSession. The reverse server's program-state
// callback is registered here, once, before anything can run.
func New(config Config) *ControlSession {
	if config.ReadyTimeout == 0 {
		config.ReadyTimeout = DefaultReadyTimeout
	}
	if config.RobotReadTimeout == 0 {
		config.RobotReadTimeout = DefaultRobotReadTimeout
	}
	if config.PowerPolicy == nil {
		config.PowerPolicy = NoopPowerPolicy{}
	}
	if config.SessionLogger == nil {
		config.SessionLogger = log.NoopLogger{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.ReverseAddr == "" {
		config.ReverseAddr = fmt.Sprintf(":%d", reverse.DefaultPort)
	}

	id := uuid.NewString()
	monitor := NewProgramStateMonitor()

	s := &ControlSession{
		config:  config,
		id:      id,
		logger:  config.Logger,
		events:  config.SessionLogger,
		monitor: monitor,
		state:   StateIdle,
		calib: calibration.Verifier{
			Expected: config.CalibrationChecksum,
			Logger:   config.Logger,
		},
	}

	host := robotHost(config.RobotAddr)
	s.dash = dashboard.NewClient(addrOr(config.DashboardAddr, host), dashboard.ClientConfig{
		Logger:    config.SessionLogger,
		SessionID: id,
	})
	s.rtde = rtde.NewClient(addrOr(config.RTDEAddr, host), rtde.ClientConfig{
		Logger:    config.SessionLogger,
		SessionID: id,
	})
	s.rev = reverse.NewServer(reverse.ServerConfig{
		Address:               config.ReverseAddr,
		OnProgramStateChanged: monitor.Notify,
		Logger:                config.SessionLogger,
		SessionID:             id,
	})

	return s
}

// ID returns the session's unique identifier.
func (s *ControlSession) ID() string { return s.id }

// State returns the current session state.
func (s *ControlSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Monitor returns the program state monitor.
func (s *ControlSession) Monitor() *ProgramStateMonitor { return s.monitor }

// FirmwareVersion returns the controller firmware version. Zero before
// Start has negotiated with the controller.
func (s *ControlSession) FirmwareVersion() version.Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fw
}

// MaxKeepaliveInterval is the longest safe pause between keepalives:
// half the robot's read-timeout budget, leaving one full retry before
// the robot drops the connection.
func (s *ControlSession) MaxKeepaliveInterval() time.Duration {
	return s.config.RobotReadTimeout / 2
}

// Start runs the startup sequence. Any error is fatal to the session:
// no step is retried, and partial progress (a deployed but unconfirmed
// script) is left in place for the caller to inspect.
func (s *ControlSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("start from state %s", state)
	}
	s.setStateLocked(StateStarting)
	s.mu.Unlock()

	if err := s.startSequence(ctx); err != nil {
		s.logError(err)
		return err
	}

	s.mu.Lock()
	s.setStateLocked(StateReady)
	s.mu.Unlock()
	return nil
}

func (s *ControlSession) startSequence(ctx context.Context) error {
	// 1. Supervisory connection.
	if err := s.dash.Connect(ctx); err != nil {
		return fmt.Errorf("dashboard connect: %w", err)
	}

	// 2. Clear any pre-existing program.
	if err := s.dash.Stop(); err != nil {
		return fmt.Errorf("stop running program: %w", err)
	}

	// 3. Power-up policy (no-op by default).
	if err := s.config.PowerPolicy.Prepare(ctx, s.dash); err != nil {
		return fmt.Errorf("power policy: %w", err)
	}

	// 4a. Reverse channel first, so the rendered script knows where to
	// dial back.
	if err := s.rev.Start(); err != nil {
		return err
	}

	callbackHost := s.config.CallbackHost
	if callbackHost == "" {
		host, err := localHostTowards(robotHost(s.config.RobotAddr))
		if err != nil {
			return fmt.Errorf("derive callback host: %w", err)
		}
		callbackHost = host
	}

	program, err := s.config.Script.Render(callbackHost, s.rev.Port())
	if err != nil {
		return err
	}
	if err := s.config.Script.ValidateRecipes(s.config.InputRecipe, s.config.OutputRecipe); err != nil {
		return fmt.Errorf("deploy: %w", err)
	}

	// 4b. Negotiate the exchange before the script starts using it.
	if err := s.rtde.Connect(ctx); err != nil {
		return fmt.Errorf("rtde connect: %w", err)
	}
	info, err := s.rtde.ControllerInfo()
	if err != nil {
		return fmt.Errorf("controller info: %w", err)
	}
	s.mu.Lock()
	s.fw = info.Version
	s.mu.Unlock()
	s.logger.Info("connected to robot controller",
		"robot", s.config.RobotAddr,
		"firmware", info.Version.String())

	if err := s.rtde.SetupOutputs(s.config.OutputRecipe); err != nil {
		return fmt.Errorf("setup output recipe: %w", err)
	}
	if err := s.rtde.SetupInputs(s.config.InputRecipe); err != nil {
		return fmt.Errorf("setup input recipe: %w", err)
	}
	if err := s.rtde.Start(); err != nil {
		return fmt.Errorf("start data exchange: %w", err)
	}

	// 4c. Deploy; the controller starts executing immediately.
	programAddr := addrOrPort(s.config.ProgramAddr, robotHost(s.config.RobotAddr), script.DefaultProgramPort)
	if err := script.Deploy(ctx, programAddr, program); err != nil {
		return err
	}

	// 5. Calibration is advisory: warn and continue.
	s.calib.Check(info.CalibrationChecksum)

	// 6. No command may be sent before the script is confirmed running;
	// the controller would reject or silently drop it.
	if !s.monitor.WaitForRunning(s.config.ReadyTimeout) {
		return fmt.Errorf("%w within %s", ErrScriptNotRunning, s.config.ReadyTimeout)
	}
	return nil
}

// StartForceMode starts force mode. The wire shape is selected from
// the firmware version exactly once per call: gainScaling is encoded
// only for firmware that accepts it and ignored otherwise. Fails if a
// mode session is already active, leaving the active mode untouched.
func (s *ControlSession) StartForceMode(params wire.ForceModeParams, gainScaling float64) error {
	s.mu.Lock()
	if s.state != StateReady {
		err := s.notReadyErrorLocked()
		s.mu.Unlock()
		return err
	}
	if s.modeActive {
		s.mu.Unlock()
		return ErrModeAlreadyActive
	}
	fw := s.fw
	s.mu.Unlock()

	var cmd wire.ForceModeCommand
	if fw.SupportsGainScaling() {
		c := wire.ForceModeCommandV5{Params: params, GainScaling: gainScaling}
		if err := c.Validate(); err != nil {
			return err
		}
		cmd = c
	} else {
		c := wire.ForceModeCommandV3{Params: params}
		if err := c.Validate(); err != nil {
			return err
		}
		cmd = c
	}

	if err := s.rev.Write(cmd); err != nil {
		s.logCommand("force_mode_start", false, err.Error())
		return err
	}
	s.logCommand("force_mode_start", true, fmt.Sprintf("%d groups", len(cmd.Groups())))

	s.mu.Lock()
	s.modeActive = true
	s.mu.Unlock()
	return nil
}

// EndForceMode ends the active force mode. With no mode active it is a
// successful no-op and sends no wire command.
func (s *ControlSession) EndForceMode() error {
	s.mu.Lock()
	if !s.modeActive {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.rev.Write(wire.ForceModeEnd{}); err != nil {
		s.logCommand("force_mode_end", false, err.Error())
		return err
	}
	s.logCommand("force_mode_end", true, "")

	s.mu.Lock()
	s.modeActive = false
	s.mu.Unlock()
	return nil
}

// ModeActive reports whether a mode session is active.
func (s *ControlSession) ModeActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modeActive
}

// WriteKeepalive sends one liveness frame. Callers must invoke it at
// least every MaxKeepaliveInterval while the session is ready, or the
// robot drops the connection.
func (s *ControlSession) WriteKeepalive() error {
	s.mu.Lock()
	if s.state != StateReady {
		err := s.notReadyErrorLocked()
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if err := s.rev.Write(wire.Keepalive{Timeout: s.config.RobotReadTimeout}); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastKeepalive = time.Now()
	s.mu.Unlock()
	return nil
}

// LastKeepalive returns when the last keepalive was successfully sent.
func (s *ControlSession) LastKeepalive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastKeepalive
}

// SendControlMessage submits a direct control message outside a named
// mode. Failure means the robot is not in a state that accepts such
// messages; callers should treat it as fatal to the intended operation.
func (s *ControlSession) SendControlMessage(msg wire.ControlMessage) error {
	s.mu.Lock()
	if s.state != StateReady {
		err := s.notReadyErrorLocked()
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if err := s.rev.Write(msg); err != nil {
		s.logCommand("control_message", false, err.Error())
		return err
	}
	s.logCommand("control_message", true, msg.Kind.String())
	return nil
}

// Close tears the session down: reverse server, data exchange,
// dashboard. It does not stop or power off the robot; teardown policy
// beyond releasing this client's resources belongs to the caller.
func (s *ControlSession) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.setStateLocked(StateClosed)
	s.mu.Unlock()

	var firstErr error
	if err := s.rev.Stop(); err != nil {
		firstErr = err
	}
	// Pause is best effort; the controller also stops the exchange
	// when the script ends.
	_ = s.rtde.Pause()
	if err := s.rtde.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.dash.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// notReadyErrorLocked picks the error for a command issued outside the
// ready state. Callers must hold s.mu.
func (s *ControlSession) notReadyErrorLocked() error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	return ErrNotReady
}

func (s *ControlSession) setStateLocked(newState State) {
	oldState := s.state
	s.state = newState
	s.events.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionOut,
		Layer:     log.LayerSession,
		Category:  log.CategoryStateChange,
		RobotAddr: s.config.RobotAddr,
		StateChange: &log.StateChangeEvent{
			From: oldState.String(),
			To:   newState.String(),
		},
	})
}

func (s *ControlSession) logCommand(name string, success bool, detail string) {
	s.events.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionOut,
		Layer:     log.LayerSession,
		Category:  log.CategoryCommand,
		RobotAddr: s.config.RobotAddr,
		Command:   &log.CommandEvent{Name: name, Success: success, Detail: detail},
	})
}

func (s *ControlSession) logError(err error) {
	s.logger.Error("session startup failed", "error", err)
	s.events.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionOut,
		Layer:     log.LayerSession,
		Category:  log.CategoryError,
		RobotAddr: s.config.RobotAddr,
		Error:     &log.ErrorEventData{Message: err.Error()},
	})
}

// robotHost strips an optional port from the configured robot address.
func robotHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// addrOr returns override when set, otherwise the bare host (the
// channel clients append their default ports).
func addrOr(override, host string) string {
	if override != "" {
		return override
	}
	return host
}

// addrOrPort returns override when set, otherwise host:port.
func addrOrPort(override, host string, port int) string {
	if override != "" {
		return override
	}
	return net.JoinHostPort(host, fmt.Sprintf("%d", port))
}

// localHostTowards returns the local address used to reach the robot,
// which is the address the robot can dial back to.
func localHostTowards(robotHost string) (string, error) {
	conn, err := net.Dial("udp", net.JoinHostPort(robotHost, "9"))
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
