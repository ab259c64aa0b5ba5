package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Heartbeat constants.
const (
	// DefaultMaxSendFailures is the default number of consecutive send
	// failures before the heartbeat gives up.
	DefaultMaxSendFailures = 3
)

// HeartbeatConfig configures a heartbeat runner.
type HeartbeatConfig struct {
	// Interval is the interval between keepalive frames. Zero derives
	// it from the session's MaxKeepaliveInterval.
	Interval time.Duration

	// MaxSendFailures is the number of consecutive send failures
	// before OnFailure fires and the loop stops.
	MaxSendFailures int
}

// Heartbeat drives the session's keepalive contract on behalf of a
// caller that has no natural per-cycle loop of its own. Callers that
// do loop (a control cycle feeding targets) should call
// WriteKeepalive themselves instead of running a Heartbeat.
type Heartbeat struct {
	config  HeartbeatConfig
	session *ControlSession

	// onFailure fires once, after MaxSendFailures consecutive
	// failures, from the heartbeat goroutine.
	onFailure func(err error)

	sent     atomic.Uint64
	failures int
	lastSent time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewHeartbeat creates a heartbeat runner for the session.
func NewHeartbeat(config HeartbeatConfig, session *ControlSession, onFailure func(err error)) *Heartbeat {
	if config.Interval == 0 {
		config.Interval = session.MaxKeepaliveInterval()
	}
	if config.MaxSendFailures == 0 {
		config.MaxSendFailures = DefaultMaxSendFailures
	}

	return &Heartbeat{
		config:    config,
		session:   session,
		onFailure: onFailure,
		stopCh:    make(chan struct{}),
	}
}

// Start begins sending keepalives. No-op if already running.
func (h *Heartbeat) Start(ctx context.Context) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.stopCh = make(chan struct{})
	h.mu.Unlock()

	go h.loop(ctx)
}

// Stop stops the heartbeat.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return
	}

	h.running = false
	close(h.stopCh)
}

// IsRunning returns true if the heartbeat loop is active.
func (h *Heartbeat) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Stats returns current heartbeat statistics.
func (h *Heartbeat) Stats() HeartbeatStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HeartbeatStats{
		Sent:     h.sent.Load(),
		Failures: h.failures,
		LastSent: h.lastSent,
	}
}

// HeartbeatStats contains heartbeat statistics.
type HeartbeatStats struct {
	Sent     uint64
	Failures int
	LastSent time.Time
}

func (h *Heartbeat) loop(ctx context.Context) {
	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	// Send immediately so the robot's read timer starts satisfied.
	if !h.tick() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-ticker.C:
			if !h.tick() {
				return
			}
		}
	}
}

// tick sends one keepalive and returns false when the loop should end.
func (h *Heartbeat) tick() bool {
	err := h.session.WriteKeepalive()

	h.mu.Lock()
	if err == nil {
		h.sent.Add(1)
		h.failures = 0
		h.lastSent = time.Now()
		h.mu.Unlock()
		return true
	}

	h.failures++
	exhausted := h.failures >= h.config.MaxSendFailures
	if exhausted {
		h.running = false
	}
	h.mu.Unlock()

	if exhausted {
		if h.onFailure != nil {
			h.onFailure(err)
		}
		return false
	}
	return true
}
