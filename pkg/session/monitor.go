package session

import (
	"sync"
	"time"
)

// ProgramStateMonitor tracks whether the deployed control script is
// executing on the controller. The reverse channel's accept goroutine
// feeds it through Notify; the session's caller blocks on
// WaitForRunning. Notify and WaitForRunning share one mutex, and the
// wait predicate is re-checked under that mutex, so a notification
// arriving between a state check and the wait cannot be lost.
type ProgramStateMonitor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	running bool
}

// NewProgramStateMonitor creates a monitor in the not-running state.
func NewProgramStateMonitor() *ProgramStateMonitor {
	m := &ProgramStateMonitor{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Notify records a program state change and wakes any waiter.
// Safe to call from any goroutine.
func (m *ProgramStateMonitor) Notify(running bool) {
	m.mu.Lock()
	m.running = running
	m.mu.Unlock()
	m.cond.Broadcast()
}

// Running returns the current program state.
func (m *ProgramStateMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// WaitForRunning blocks until the state is observed as running or the
// timeout elapses, and returns the corresponding boolean. The wait is
// deadline-bounded and never suspends indefinitely. Sequential waits
// are legal; each call re-evaluates the current state fresh.
func (m *ProgramStateMonitor) WaitForRunning(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	// The timer wakes the waiter at the deadline; sync.Cond has no
	// timed wait of its own. Broadcasting under the lock guarantees a
	// waiter that passed the predicate check has finished registering
	// inside Wait, so the deadline wakeup cannot be missed.
	timer := time.AfterFunc(timeout, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cond.Broadcast()
	})
	defer timer.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for !m.running && time.Now().Before(deadline) {
		m.cond.Wait()
	}
	return m.running
}
