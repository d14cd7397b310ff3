package timectrl

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Clock is the time source used by the bridge. Components depend on it
// rather than calling time.Now directly so tests can drive time by hand.
type Clock interface {
	Now() time.Time
}

// System is the wall clock.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time { return time.Now() }

// Manual is a Clock that only moves when told to.
type Manual struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManual constructs a manual clock set to start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now implements Clock.
func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

// Poller invokes its listeners every Tick until the context passed to Start
// is cancelled. Listeners run sequentially on the poller goroutine in
// registration order and receive the clock's time for that tick.
type Poller struct {
	Tick  time.Duration
	Clock Clock

	mu        sync.Mutex
	listeners []func(context.Context, time.Time)
}

// DefaultPollTick is used when a poller is built with a non-positive tick.
const DefaultPollTick = time.Second

// NewPoller constructs a poller. A nil clock falls back to System and a
// non-positive tick to DefaultPollTick.
func NewPoller(tick time.Duration, clock Clock) *Poller {
	if clock == nil {
		clock = System{}
	}
	if tick <= 0 {
		tick = DefaultPollTick
	}
	return &Poller{Tick: tick, Clock: clock}
}

// AddListener registers a callback invoked on every tick.
func (p *Poller) AddListener(fn func(context.Context, time.Time)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Start runs the poller in a separate goroutine. It returns a channel that is
// closed once ctx is done and the last tick has finished.
func (p *Poller) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tick := p.Tick
		if tick <= 0 {
			tick = DefaultPollTick
		}
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			p.mu.Lock()
			listeners := slices.Clone(p.listeners)
			p.mu.Unlock()

			now := p.Clock.Now()
			for _, fn := range listeners {
				fn(ctx, now)
			}
		}
	}()
	return done
}
