// Package clock provides the duel-relative time source the engine samples
// attack progress against.
package clock

import (
	"sync"
	"time"
)

// Clock reports time elapsed since the clock was created.
type Clock interface {
	Elapsed() time.Duration
}

// Monotonic reads the runtime's monotonic clock.
type Monotonic struct {
	start time.Time
}

func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

func (m *Monotonic) Elapsed() time.Duration {
	return time.Since(m.start)
}

// Manual is a controllable clock for tests
type Manual struct {
	mu      sync.RWMutex
	elapsed time.Duration
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Elapsed() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.elapsed
}

func (m *Manual) Set(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elapsed = d
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elapsed += d
}
