// Package clock provides a time abstraction for testable time handling.
// Instead of calling time.Now() or time.NewTimer() directly, inject a Clock
// so time-dependent code (the follow-up scheduler in particular) can be
// driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Clock provides time operations that can be mocked for testing.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NowUTC returns the current time in UTC.
	// Preferred over Now() for storage operations.
	NowUTC() time.Time

	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration

	// Until returns the duration until t.
	Until(t time.Time) time.Duration

	// NewTimer returns a new Timer that fires once after d.
	NewTimer(d time.Duration) Timer

	// NewTicker returns a new Ticker.
	NewTicker(d time.Duration) Ticker
}

// Timer wraps time.Timer for mockability.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Ticker wraps time.Ticker for mockability.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// realClock implements Clock using the standard time package.
type realClock struct{}

// New returns a Clock that uses the real system time.
func New() Clock {
	return &realClock{}
}

func (c *realClock) Now() time.Time                  { return time.Now() }
func (c *realClock) NowUTC() time.Time               { return time.Now().UTC() }
func (c *realClock) Since(t time.Time) time.Duration { return time.Since(t) }
func (c *realClock) Until(t time.Time) time.Duration { return time.Until(t) }

func (c *realClock) NewTimer(d time.Duration) Timer {
	return &realTimer{timer: time.NewTimer(d)}
}

func (c *realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) C() <-chan time.Time { return t.timer.C }
func (t *realTimer) Stop() bool          { return t.timer.Stop() }

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) C() <-chan time.Time { return t.ticker.C }
func (t *realTicker) Stop()               { t.ticker.Stop() }

// Mock implements Clock with controllable time for testing. Timers created
// through it do not fire on their own; call FireTimers (or Timer.Fire) to
// trigger them.
type Mock struct {
	mu      sync.Mutex
	current time.Time
	timers  []*MockTimer
}

// NewMock creates a new Mock clock set to the given time.
func NewMock(t time.Time) *Mock {
	return &Mock{current: t}
}

// Now returns the mock's current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// NowUTC returns the mock's current time in UTC.
func (m *Mock) NowUTC() time.Time {
	return m.Now().UTC()
}

// Since returns the duration since t.
func (m *Mock) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

// Until returns the duration until t.
func (m *Mock) Until(t time.Time) time.Duration {
	return t.Sub(m.Now())
}

// Set sets the mock clock to a specific time.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
}

// Advance moves the mock clock forward by the given duration.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

// NewTimer returns a mock timer. It never fires by itself.
func (m *Mock) NewTimer(d time.Duration) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &MockTimer{
		ch:       make(chan time.Time, 1),
		Duration: d,
	}
	m.timers = append(m.timers, t)
	return t
}

// NewTicker returns a non-ticking ticker for interface compatibility.
func (m *Mock) NewTicker(d time.Duration) Ticker {
	return &mockTicker{ch: make(chan time.Time)}
}

// FireTimers fires every active timer created so far.
func (m *Mock) FireTimers() {
	m.mu.Lock()
	timers := make([]*MockTimer, len(m.timers))
	copy(timers, m.timers)
	now := m.current
	m.mu.Unlock()

	for _, t := range timers {
		t.Fire(now)
	}
}

// Timers returns all timers created through the mock, stopped ones included.
func (m *Mock) Timers() []*MockTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockTimer, len(m.timers))
	copy(out, m.timers)
	return out
}

// MockTimer is a manually fired timer.
type MockTimer struct {
	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
	fired   bool

	// Duration the timer was created with.
	Duration time.Duration
}

func (t *MockTimer) C() <-chan time.Time { return t.ch }

// Stop marks the timer stopped. Returns true if it had not yet fired.
func (t *MockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Fire delivers tm on the timer channel unless the timer was stopped or has
// already fired.
func (t *MockTimer) Fire(tm time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return
	}
	t.fired = true
	t.ch <- tm
}

// Stopped reports whether Stop was called.
func (t *MockTimer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type mockTicker struct {
	ch chan time.Time
}

func (t *mockTicker) C() <-chan time.Time { return t.ch }
func (t *mockTicker) Stop()               {}
