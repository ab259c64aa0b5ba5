package session

import (
	"sync"
	"testing"
	"time"
)

func TestMonitorInitialState(t *testing.T) {
	m := NewProgramStateMonitor()
	if m.Running() {
		t.Error("new monitor reports running")
	}
}

func TestMonitorNotifyWakesWaiter(t *testing.T) {
	m := NewProgramStateMonitor()

	done := make(chan bool, 1)
	go func() {
		done <- m.WaitForRunning(2 * time.Second)
	}()

	// Give the waiter time to block.
	time.Sleep(20 * time.Millisecond)
	m.Notify(true)

	select {
	case ok := <-done:
		if !ok {
			t.Error("WaitForRunning returned false after Notify(true)")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not woken")
	}
}

func TestMonitorWaitTimesOut(t *testing.T) {
	m := NewProgramStateMonitor()

	start := time.Now()
	if m.WaitForRunning(50 * time.Millisecond) {
		t.Fatal("WaitForRunning returned true without Notify")
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("returned after %v, before the timeout", elapsed)
	}
}

func TestMonitorAlreadyRunning(t *testing.T) {
	m := NewProgramStateMonitor()
	m.Notify(true)

	// Must return immediately without blocking.
	if !m.WaitForRunning(0) {
		t.Error("WaitForRunning false while already running")
	}
}

func TestMonitorRunningStops(t *testing.T) {
	m := NewProgramStateMonitor()
	m.Notify(true)
	m.Notify(false)

	if m.Running() {
		t.Error("monitor still running after Notify(false)")
	}
	if m.WaitForRunning(20 * time.Millisecond) {
		t.Error("WaitForRunning true after program stopped")
	}
}

func TestMonitorManyWaiters(t *testing.T) {
	m := NewProgramStateMonitor()

	const waiters = 8
	var wg sync.WaitGroup
	results := make(chan bool, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- m.WaitForRunning(2 * time.Second)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	m.Notify(true)
	wg.Wait()
	close(results)

	for ok := range results {
		if !ok {
			t.Error("waiter timed out despite Notify(true)")
		}
	}
}
