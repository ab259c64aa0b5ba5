package urcl_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/urcontrol/urcl-go/internal/testutil"
	"github.com/urcontrol/urcl-go/pkg/rtde"
	"github.com/urcontrol/urcl-go/pkg/script"
	"github.com/urcontrol/urcl-go/pkg/session"
	"github.com/urcontrol/urcl-go/pkg/version"
	"github.com/urcontrol/urcl-go/pkg/wire"
)

const controlProgram = `# output_recipe: actual_q
# input_recipe: input_int_register_0
def external_control():
  socket_open("{{SERVER_IP}}", {{SERVER_PORT}})
end
`

var dialLine = regexp.MustCompile(`socket_open\("([^"]+)", (\d+)\)`)

func sessionConfig(robot *testutil.FakeRobot) session.Config {
	return session.Config{
		RobotAddr:           "127.0.0.1",
		DashboardAddr:       robot.DashboardAddr(),
		RTDEAddr:            robot.RTDEAddr(),
		ProgramAddr:         robot.ProgramAddr(),
		ReverseAddr:         "127.0.0.1:0",
		CallbackHost:        "127.0.0.1",
		Script:              script.NewTemplate("external_control", controlProgram),
		InputRecipe:         rtde.Recipe{Fields: []string{"input_int_register_0"}},
		OutputRecipe:        rtde.Recipe{Fields: []string{"actual_q"}},
		CalibrationChecksum: "calib_12788084448423163542",
		ReadyTimeout:        2 * time.Second,
		RobotReadTimeout:    100 * time.Millisecond,
		Logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// TestForceModeEndToEnd walks the whole control flow the way the
// force-mode command does: connect, clear the controller, deploy,
// wait for confirmation, hold force mode under keepalives, end it and
// tear down.
func TestForceModeEndToEnd(t *testing.T) {
	robot := testutil.StartFakeRobot(t)

	scriptConns := make(chan *testutil.ScriptClient, 1)
	robot.OnProgram(func(program string) {
		m := dialLine.FindStringSubmatch(program)
		if m == nil {
			return
		}
		sc, err := testutil.DialScript(net.JoinHostPort(m[1], m[2]))
		if err != nil {
			return
		}
		scriptConns <- sc
	})

	s := session.New(sessionConfig(robot))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	var sc *testutil.ScriptClient
	select {
	case sc = <-scriptConns:
	case <-time.After(2 * time.Second):
		t.Fatal("deployed program never dialed back")
	}
	defer sc.Close()

	// The controller was cleared before deployment.
	commands := robot.DashboardCommands()
	if len(commands) == 0 || commands[0] != "stop" {
		t.Fatalf("dashboard commands = %v, want stop first", commands)
	}

	// The deployed program carries no leftover placeholders.
	programs := robot.Programs()
	if len(programs) != 1 {
		t.Fatalf("deployed %d programs, want 1", len(programs))
	}
	if strings.Contains(programs[0], "{{") {
		t.Errorf("program still contains placeholders:\n%s", programs[0])
	}

	params := wire.ForceModeParams{
		Compliance: wire.Selection{false, false, true, false, false, true},
		Wrench:     wire.Vector6D{0, 0, -2, 0, 0, 0},
		Type:       wire.TransformFixed,
		Limits:     wire.Vector6D{0.1, 0.1, 1.5, 3.14, 3.14, 0.5},
		Damping:    0.005,
	}
	if err := s.StartForceMode(params, 1.0); err != nil {
		t.Fatalf("StartForceMode: %v", err)
	}

	words := readFrame(t, sc)
	cmd, err := wire.DecodeForceModeStart(words)
	if err != nil {
		t.Fatalf("decode force-mode start: %v", err)
	}
	if _, ok := cmd.(wire.ForceModeCommandV5); !ok {
		t.Fatalf("firmware 5.x start decoded as %T", cmd)
	}

	// Caller-driven heartbeat, as the command line tool runs it.
	for i := 0; i < 5; i++ {
		if err := s.WriteKeepalive(); err != nil {
			t.Fatalf("keepalive %d: %v", i, err)
		}
		ka, err := wire.DecodeKeepalive(readFrame(t, sc))
		if err != nil {
			t.Fatalf("keepalive frame %d: %v", i, err)
		}
		if ka.Timeout != 100*time.Millisecond {
			t.Fatalf("keepalive timeout = %v, want 100ms", ka.Timeout)
		}
	}

	if err := s.EndForceMode(); err != nil {
		t.Fatalf("EndForceMode: %v", err)
	}
	endType, err := wire.PeekMessageType(readFrame(t, sc))
	if err != nil {
		t.Fatalf("end frame: %v", err)
	}
	if endType != wire.MessageForceModeEnd {
		t.Fatalf("end frame type = %s", endType)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestForceModeLegacyFirmwareShape checks the version gate on the
// start frame: firmware below major 5 gets the shorter shape and the
// gain argument is silently dropped.
func TestForceModeLegacyFirmwareShape(t *testing.T) {
	robot := testutil.StartFakeRobot(t)
	robot.Firmware = version.Version{Major: 3, Minor: 14, Bugfix: 3}

	scriptConns := make(chan *testutil.ScriptClient, 1)
	robot.OnProgram(func(program string) {
		m := dialLine.FindStringSubmatch(program)
		if m == nil {
			return
		}
		if sc, err := testutil.DialScript(net.JoinHostPort(m[1], m[2])); err == nil {
			scriptConns <- sc
		}
	})

	s := session.New(sessionConfig(robot))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	sc := <-scriptConns
	defer sc.Close()

	if err := s.StartForceMode(wire.ForceModeParams{
		Type:    wire.TransformFixed,
		Damping: 0.005,
	}, 1.5); err != nil {
		t.Fatalf("StartForceMode: %v", err)
	}

	cmd, err := wire.DecodeForceModeStart(readFrame(t, sc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	v3, ok := cmd.(wire.ForceModeCommandV3)
	if !ok {
		t.Fatalf("decoded %T, want the pre-5 shape", cmd)
	}
	if got := len(v3.Words()); got != len(wire.ForceModeCommandV5{}.Words())-1 {
		t.Errorf("legacy frame has %d words", got)
	}
}

// TestReadinessFailureSendsNothing checks the failure path: when the
// deployed program never confirms execution, startup fails and not a
// single command frame leaves the client.
func TestReadinessFailureSendsNothing(t *testing.T) {
	robot := testutil.StartFakeRobot(t)
	// The program port accepts the deployment but nothing dials back.

	cfg := sessionConfig(robot)
	cfg.ReadyTimeout = 200 * time.Millisecond

	s := session.New(cfg)
	defer s.Close()

	err := s.Start(context.Background())
	if !errors.Is(err, session.ErrScriptNotRunning) {
		t.Fatalf("Start = %v, want ErrScriptNotRunning", err)
	}

	if err := s.StartForceMode(wire.ForceModeParams{Type: wire.TransformFixed}, 1.0); !errors.Is(err, session.ErrNotReady) {
		t.Fatalf("StartForceMode after failed start = %v, want ErrNotReady", err)
	}

	// The program reached the robot; that is as far as startup got.
	if got := len(robot.Programs()); got != 1 {
		t.Errorf("deployed %d programs, want 1", got)
	}
}

func readFrame(t *testing.T, sc *testutil.ScriptClient) []int32 {
	t.Helper()

	words, err := sc.ReadFrame(2 * time.Second)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return words
}
