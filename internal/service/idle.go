package service

import (
	"sync"
	"time"
)

// idleTimer fires onIdle once no progress has been recorded for a full window.
// Touch is cheap: it only stores a timestamp, and the pending timer re-arms itself
// for the remaining time when it wakes up early.
type idleTimer struct {
	clock  Clock
	window time.Duration
	onIdle func()

	mu      sync.Mutex
	last    time.Time
	timer   Timer
	stopped bool
	fired   bool
}

func startIdleTimer(clk Clock, window time.Duration, onIdle func()) *idleTimer {
	t := &idleTimer{clock: clk, window: window, onIdle: onIdle, last: clk.Now()}
	t.mu.Lock()
	t.timer = clk.AfterFunc(window, t.check)
	t.mu.Unlock()
	return t
}

// Touch records forward progress.
func (t *idleTimer) Touch() {
	t.mu.Lock()
	if !t.stopped && !t.fired {
		t.last = t.clock.Now()
	}
	t.mu.Unlock()
}

func (t *idleTimer) check() {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return
	}
	if elapsed := t.clock.Now().Sub(t.last); elapsed < t.window {
		t.timer = t.clock.AfterFunc(t.window-elapsed, t.check)
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.timer = nil
	t.mu.Unlock()

	t.onIdle()
}

// Stop cancels the pending timer. It is safe to call more than once.
func (t *idleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Active reports whether a timer is still pending.
func (t *idleTimer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// Fired reports whether the idle window elapsed.
func (t *idleTimer) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}
