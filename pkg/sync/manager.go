// Package sync implements the clock-alignment manager: it takes the server
// tick reported by the latest pong as its server-tick estimate (not
// advanced by the time elapsed since that pong), computes the client's
// prediction tick and interpolation tick, and decides whether the local
// clock should snap or smoothly adjust to converge on them.
package sync

import (
	"time"

	"github.com/appnet-org/netsync/pkg/wire"
)

// TickEventKind distinguishes a discontinuous clock correction from a
// smooth speed adjustment.
type TickEventKind uint8

const (
	TickEventSnap TickEventKind = iota
	TickEventAdjust
)

// TickEvent is emitted whenever the manager corrects the local clock.
type TickEvent struct {
	Kind        TickEventKind
	NewTick     wire.Tick // valid for Snap
	SpeedDelta  float64   // relative speed adjustment applied, e.g. 0.05 for Adjust
}

// Default tuning, per SPEC_FULL.md.
const (
	DefaultSnapThresholdTicks  = 10
	DefaultMaxRelativeSpeedDelta = 0.05
	DefaultSafetyMarginTicks   = 1
	DefaultMinPongsForSync     = 3
)

// Config tunes a Manager. Zero values resolve to the package defaults.
type Config struct {
	TickDuration            time.Duration
	SnapThresholdTicks      int32
	MaxRelativeSpeedDelta   float64
	SafetyMarginTicks       int32
	InputDelayTicks         int32
	InterpDelayMin          time.Duration
	InterpJitterMultiplier  float64
	// InterpLossRateGain scales an optional loss-rate-adaptive term added
	// to the interpolation delay. Zero (the default) disables it — see
	// SPEC_FULL.md's resolution of the corresponding Open Question.
	InterpLossRateGain float64
	MinPongsForSync    int
}

func (c *Config) applyDefaults() {
	if c.SnapThresholdTicks == 0 {
		c.SnapThresholdTicks = DefaultSnapThresholdTicks
	}
	if c.MaxRelativeSpeedDelta == 0 {
		c.MaxRelativeSpeedDelta = DefaultMaxRelativeSpeedDelta
	}
	if c.SafetyMarginTicks == 0 {
		c.SafetyMarginTicks = DefaultSafetyMarginTicks
	}
	if c.MinPongsForSync == 0 {
		c.MinPongsForSync = DefaultMinPongsForSync
	}
}

// Manager computes T_pred and T_interp and decides snap-vs-smooth clock
// corrections as pongs accumulate.
type Manager struct {
	cfg Config

	serverTickEst wire.Tick
	haveEstimate  bool
	pongCount     int
	isSynced      bool
}

// NewManager returns a Manager tuned by cfg.
func NewManager(cfg Config) *Manager {
	cfg.applyDefaults()
	return &Manager{cfg: cfg}
}

// OnPong replaces the estimate with a pong's reported server tick.
func (m *Manager) OnPong(serverTick wire.Tick) {
	m.serverTickEst = serverTick
	m.haveEstimate = true
	m.pongCount++
	if m.pongCount >= m.cfg.MinPongsForSync {
		m.isSynced = true
	}
}

// IsSynced reports whether enough pongs have accumulated for a stable
// estimate; user-visible systems may gate on this.
func (m *Manager) IsSynced() bool { return m.isSynced }

// PredictionTick computes T_pred from the current server tick estimate,
// RTT, and jitter margin.
func (m *Manager) PredictionTick(rtt, jitterMargin time.Duration) wire.Tick {
	if !m.haveEstimate || m.cfg.TickDuration <= 0 {
		return m.serverTickEst
	}
	halfRTT := rtt / 2
	lead := halfRTT + jitterMargin + time.Duration(m.cfg.InputDelayTicks)*m.cfg.TickDuration
	leadTicks := int32((lead+m.cfg.TickDuration-1)/m.cfg.TickDuration) + m.cfg.SafetyMarginTicks
	return wire.Tick(uint16(m.serverTickEst) + uint16(leadTicks))
}

// Reconcile compares the local tick against T_pred and returns the
// TickEvent the caller should apply, or nil if no correction is needed.
func (m *Manager) Reconcile(localTick wire.Tick, rtt, jitterMargin time.Duration) *TickEvent {
	if !m.haveEstimate {
		return nil
	}
	target := m.PredictionTick(rtt, jitterMargin)
	delta := localTick.Diff(target) // target - local

	if delta > m.cfg.SnapThresholdTicks || delta < -m.cfg.SnapThresholdTicks {
		return &TickEvent{Kind: TickEventSnap, NewTick: target}
	}
	if delta == 0 {
		return nil
	}

	speed := m.cfg.MaxRelativeSpeedDelta
	if delta < 0 {
		speed = -speed
	}
	return &TickEvent{Kind: TickEventAdjust, SpeedDelta: speed}
}

// InterpolationTick computes T_interp = T_server_est - delay, where delay
// combines the configured minimum, a jitter term, and (if enabled) a
// loss-rate term.
func (m *Manager) InterpolationTick(jitter time.Duration, lossRate float64) wire.Tick {
	delay := m.InterpolationDelay(jitter, lossRate)
	if m.cfg.TickDuration <= 0 {
		return m.serverTickEst
	}
	delayTicks := int32(delay / m.cfg.TickDuration)
	return wire.Tick(uint16(m.serverTickEst) - uint16(delayTicks))
}

// InterpolationDelay computes min + k*jitter (+ optional loss-rate term,
// disabled by default).
func (m *Manager) InterpolationDelay(jitter time.Duration, lossRate float64) time.Duration {
	delay := m.cfg.InterpDelayMin + time.Duration(m.cfg.InterpJitterMultiplier*float64(jitter))
	if m.cfg.InterpLossRateGain != 0 {
		delay += time.Duration(m.cfg.InterpLossRateGain * lossRate * float64(m.cfg.TickDuration))
	}
	return delay
}
