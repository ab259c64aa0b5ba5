package session

import (
	"context"
	"testing"
	"time"

	"github.com/urcontrol/urcl-go/internal/testutil"
	"github.com/urcontrol/urcl-go/pkg/wire"
)

func startReadySession(t *testing.T) (*ControlSession, *testutil.ScriptClient) {
	t.Helper()

	robot := testutil.StartFakeRobot(t)
	conns := runDeployedScript(t, robot)

	s := New(testConfig(robot))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s, waitForScript(t, conns)
}

func TestHeartbeatSendsKeepalives(t *testing.T) {
	s, sc := startReadySession(t)

	hb := NewHeartbeat(HeartbeatConfig{Interval: 20 * time.Millisecond}, s, nil)
	hb.Start(context.Background())
	defer hb.Stop()

	// Every received frame must be a decodable keepalive.
	for i := 0; i < 3; i++ {
		words := readFrame(t, sc)
		if _, err := wire.DecodeKeepalive(words); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}

	stats := hb.Stats()
	if stats.Sent < 3 {
		t.Errorf("sent = %d, want >= 3", stats.Sent)
	}
	if stats.Failures != 0 {
		t.Errorf("failures = %d, want 0", stats.Failures)
	}
	if stats.LastSent.IsZero() {
		t.Error("LastSent not recorded")
	}
}

func TestHeartbeatDefaultIntervalFromSession(t *testing.T) {
	s, _ := startReadySession(t)

	hb := NewHeartbeat(HeartbeatConfig{}, s, nil)
	if hb.config.Interval != s.MaxKeepaliveInterval() {
		t.Errorf("interval = %v, want %v", hb.config.Interval, s.MaxKeepaliveInterval())
	}
}

func TestHeartbeatReportsFailure(t *testing.T) {
	s, sc := startReadySession(t)

	failed := make(chan error, 1)
	hb := NewHeartbeat(HeartbeatConfig{
		Interval:        10 * time.Millisecond,
		MaxSendFailures: 2,
	}, s, func(err error) { failed <- err })
	hb.Start(context.Background())
	defer hb.Stop()

	// Drop the script connection; writes start failing once the server
	// notices the detach.
	sc.Close()

	select {
	case err := <-failed:
		if err == nil {
			t.Error("failure callback fired with nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("failure callback never fired")
	}

	// The loop stops itself after the failure budget is exhausted.
	time.Sleep(20 * time.Millisecond)
	if hb.IsRunning() {
		t.Error("heartbeat still running after failure")
	}
}

func TestHeartbeatStartTwice(t *testing.T) {
	s, _ := startReadySession(t)

	hb := NewHeartbeat(HeartbeatConfig{Interval: 50 * time.Millisecond}, s, nil)
	hb.Start(context.Background())
	hb.Start(context.Background())
	if !hb.IsRunning() {
		t.Fatal("heartbeat not running")
	}
	hb.Stop()
	hb.Stop()
	if hb.IsRunning() {
		t.Error("heartbeat running after Stop")
	}
}
