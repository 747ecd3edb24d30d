// Package ping implements the round-trip-time and clock-offset estimator
// each connection runs: an EWMA-smoothed RTT/jitter estimate derived from
// periodic ping/pong exchanges. It keeps no estimate of the peer's tick:
// the tick a pong reports is not stored here, and the connection hands it
// to the sync manager instead.
package ping

import (
	"time"

	"github.com/appnet-org/netsync/pkg/wire"
)

// Default smoothing constants, matching the spec's RTT/jitter EWMA gains.
const (
	DefaultRTTGain    = 1.0 / 8.0
	DefaultJitterGain = 1.0 / 4.0
)

// DefaultInterval is how often a ping is sent absent configuration.
const DefaultInterval = 1 * time.Second

// DefaultTimeout is how long a ping may go unanswered before the
// connection is considered unresponsive.
const DefaultTimeout = 10 * time.Second

// Manager tracks outstanding pings and maintains a smoothed RTT/jitter
// estimate, the way the teacher's congestion/flow-control handlers track
// per-RPC send timestamps to compute round-trip latency, generalized here
// into a standing EWMA rather than a one-shot measurement.
type Manager struct {
	rttGain    float64
	jitterGain float64
	interval   time.Duration
	timeout    time.Duration

	haveEstimate bool
	rtt          time.Duration
	jitter       time.Duration

	lastPingSent time.Time
	lastPongRecv time.Time
	outstanding  map[uint32]time.Time
	nextPingId   uint32
}

// Config tunes a Manager. Zero value resolves to the package defaults.
type Config struct {
	RTTGain    float64
	JitterGain float64
	Interval   time.Duration
	Timeout    time.Duration
}

// NewManager returns a Manager seeded from cfg, filling in defaults for
// any zero field.
func NewManager(cfg Config) *Manager {
	if cfg.RTTGain == 0 {
		cfg.RTTGain = DefaultRTTGain
	}
	if cfg.JitterGain == 0 {
		cfg.JitterGain = DefaultJitterGain
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Manager{
		rttGain:     cfg.RTTGain,
		jitterGain:  cfg.JitterGain,
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		outstanding: make(map[uint32]time.Time),
	}
}

// ShouldPing reports whether it is time to send another ping.
func (m *Manager) ShouldPing(now time.Time) bool {
	return m.lastPingSent.IsZero() || now.Sub(m.lastPingSent) >= m.interval
}

// SendPing records a newly sent ping and returns the id to stamp on it.
func (m *Manager) SendPing(now time.Time) uint32 {
	id := m.nextPingId
	m.nextPingId++
	m.outstanding[id] = now
	m.lastPingSent = now
	return id
}

// OnPong folds a matching pong's observed RTT into the smoothed estimate.
// serverTick is the tick the peer reports it was at when it replied, used
// by the caller to reconcile its own tick estimate against the peer's.
func (m *Manager) OnPong(now time.Time, pingId uint32, serverTick wire.Tick) (rtt time.Duration, ok bool) {
	sentAt, found := m.outstanding[pingId]
	if !found {
		return 0, false
	}
	delete(m.outstanding, pingId)
	m.lastPongRecv = now

	sample := now.Sub(sentAt)
	if !m.haveEstimate {
		m.rtt = sample
		m.jitter = 0
		m.haveEstimate = true
	} else {
		delta := sample - m.rtt
		if delta < 0 {
			delta = -delta
		}
		m.jitter += time.Duration(m.jitterGain * float64(delta-m.jitter))
		m.rtt += time.Duration(m.rttGain * float64(sample-m.rtt))
	}
	return sample, true
}

// RTT returns the current smoothed round-trip-time estimate.
func (m *Manager) RTT() time.Duration {
	if !m.haveEstimate {
		return m.interval
	}
	return m.rtt
}

// Jitter returns the current smoothed jitter estimate.
func (m *Manager) Jitter() time.Duration {
	return m.jitter
}

// TimedOut reports whether the peer has gone unresponsive: a ping has been
// outstanding longer than the configured timeout.
func (m *Manager) TimedOut(now time.Time) bool {
	for _, sentAt := range m.outstanding {
		if now.Sub(sentAt) > m.timeout {
			return true
		}
	}
	return false
}
