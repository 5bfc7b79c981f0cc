// Package clock supplies request timestamps and nonces.
package clock

import (
	"sync"
	"time"
)

// Monotonic returns wall-clock milliseconds that never repeat or go
// backwards, so two requests signed in the same millisecond still carry
// distinct nonces.
type Monotonic struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewMonotonic uses the system clock.
func NewMonotonic() *Monotonic {
	return &Monotonic{now: time.Now}
}

// Fixed returns a clock starting at ms; every call advances by one.
func Fixed(ms int64) *Monotonic {
	return &Monotonic{now: func() time.Time { return time.UnixMilli(ms) }}
}

// Milliseconds implements exchanges.Clock.
func (m *Monotonic) Milliseconds() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UnixMilli()
	if now <= m.last {
		now = m.last + 1
	}
	m.last = now
	return now
}

// Reset forgets the last issued value.
func (m *Monotonic) Reset() {
	m.mu.Lock()
	m.last = 0
	m.mu.Unlock()
}
