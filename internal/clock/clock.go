// Package clock supplies current time and fresh identifiers to the services,
// injected so tests can pin both.
package clock

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock provides the current time and new unique identifiers.
type Clock interface {
	// Now returns the current time in UTC.
	Now() time.Time
	// NewID returns a fresh unique identifier.
	NewID() string
}

// System is the production Clock backed by time.Now and uuid.
type System struct{}

// NewSystem returns the production clock.
func NewSystem() System { return System{} }

// Now returns the current UTC time.
func (System) Now() time.Time { return time.Now().UTC() }

// NewID returns a random UUID string.
func (System) NewID() string { return uuid.NewString() }

// Manual is a Clock for tests: time only moves when told to, and IDs are sequential.
type Manual struct {
	mu  sync.Mutex
	now time.Time
	seq int
}

// NewManual returns a Manual clock pinned at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

// Now returns the pinned time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the pinned time forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// NewID returns deterministic sequential IDs ("id-1", "id-2", ...).
func (m *Manual) NewID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return "id-" + strconv.Itoa(m.seq)
}
