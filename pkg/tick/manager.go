// Package tick implements the 16-bit wrapping simulation tick counter and
// the fixed-rate advancement loop that drives it.
package tick

import (
	"time"

	"github.com/appnet-org/netsync/pkg/wire"
)

// Event is emitted each time the tick manager advances, carrying the new
// tick and how many ticks were stepped. Delta is always 1: a caller that
// fell behind gets one Event per tick crossed.
type Event struct {
	Tick  wire.Tick
	Delta uint32
}

// Manager advances a wrapping Tick at a fixed duration, accumulating
// elapsed wall-clock time and emitting one Event per tick boundary
// crossed.
type Manager struct {
	duration     time.Duration
	current      wire.Tick
	accumulated  time.Duration
	lastAdvance  time.Time
	started      bool
}

// NewManager returns a Manager that advances one tick every duration.
func NewManager(duration time.Duration) *Manager {
	return &Manager{duration: duration}
}

// Current returns the manager's current tick.
func (m *Manager) Current() wire.Tick { return m.current }

// Set forces the current tick, used when a client reconciles against a
// server-provided tick estimate.
func (m *Manager) Set(t wire.Tick) { m.current = t }

// Advance folds the elapsed time since the last call into the
// accumulator and returns every tick boundary crossed, in order.
func (m *Manager) Advance(now time.Time) []Event {
	if !m.started {
		m.started = true
		m.lastAdvance = now
		return nil
	}
	m.accumulated += now.Sub(m.lastAdvance)
	m.lastAdvance = now

	var events []Event
	for m.accumulated >= m.duration {
		m.accumulated -= m.duration
		m.current++
		events = append(events, Event{Tick: m.current, Delta: 1})
	}
	return events
}

// Duration returns the configured tick duration.
func (m *Manager) Duration() time.Duration { return m.duration }
