// Package prediction implements the client-side consumer contracts that
// turn a replicated Confirmed stream into smooth, latency-hidden state:
// rollback-and-replay prediction for entities the client controls, and
// bracketed-sample interpolation for everything else.
package prediction

import (
	"github.com/appnet-org/netsync/pkg/replication"
	"github.com/appnet-org/netsync/pkg/wire"
)

// DefaultMaxReplayTicks bounds how many ticks replay will step in one
// call, matching the input ring buffer's default size.
const DefaultMaxReplayTicks = 64

// DefaultInterpolationHistory bounds how many historical samples an
// interpolated component keeps.
const DefaultInterpolationHistory = 8

// Role distinguishes an entity the client controls (and therefore
// predicts) from one owned by someone else (and therefore interpolated).
type Role uint8

const (
	RolePredicted Role = iota
	RoleInterpolated
)

// SimulateFunc advances a component's predicted value by one tick given
// the input recorded for that tick. Supplied by the host application; the
// core never schedules simulation itself.
type SimulateFunc func(prev any, input []byte) any

// InputSource supplies the recorded input for a tick, the same contract
// channel.TickBufferedReceiver already satisfies.
type InputSource interface {
	InputAt(tick wire.Tick) ([]byte, bool)
}

// Sample is one historical (tick, value) pair kept for interpolation.
type Sample struct {
	Tick  wire.Tick
	Value any
}

type componentState struct {
	confirmed     any
	confirmedTick wire.Tick
	haveConfirmed bool

	predicted     any
	havePredicted bool

	history []Sample
}

type entityState struct {
	role       Role
	components map[replication.ComponentKind]*componentState
}

// Tracker holds every tracked entity's Confirmed/Predicted/Interpolated
// copies and runs the prediction and interpolation hooks as new Confirmed
// values arrive.
type Tracker struct {
	registry   *replication.Registry
	simulate   map[replication.ComponentKind]SimulateFunc
	maxReplay  int32
	historyLen int

	entities map[replication.EntityId]*entityState
}

// NewTracker returns a Tracker for registry's component kinds. simulate
// supplies the re-simulation step for each predicted kind; kinds with no
// entry are copied straight from Confirmed to Predicted with no replay.
func NewTracker(registry *replication.Registry, simulate map[replication.ComponentKind]SimulateFunc, maxReplayTicks int32) *Tracker {
	if maxReplayTicks <= 0 {
		maxReplayTicks = DefaultMaxReplayTicks
	}
	return &Tracker{
		registry:   registry,
		simulate:   simulate,
		maxReplay:  maxReplayTicks,
		historyLen: DefaultInterpolationHistory,
		entities:   make(map[replication.EntityId]*entityState),
	}
}

// Track registers local under role. Re-tracking an already-tracked entity
// is a no-op.
func (t *Tracker) Track(local replication.EntityId, role Role) {
	if _, ok := t.entities[local]; ok {
		return
	}
	t.entities[local] = &entityState{role: role, components: make(map[replication.ComponentKind]*componentState)}
}

// Untrack discards all state for local, e.g. on despawn.
func (t *Tracker) Untrack(local replication.EntityId) {
	delete(t.entities, local)
}

func (t *Tracker) component(local replication.EntityId, kind replication.ComponentKind) *componentState {
	e, ok := t.entities[local]
	if !ok {
		return nil
	}
	cs, ok := e.components[kind]
	if !ok {
		cs = &componentState{}
		e.components[kind] = cs
	}
	return cs
}

// OnConfirmedUpdate folds a newly-arrived Confirmed value into the
// tracker, per spec.md §4.9: the replication receiver writes only to
// Confirmed, and this is the hook that reacts to it. predTick is the
// client's current prediction tick (ignored for interpolated entities).
func (t *Tracker) OnConfirmedUpdate(local replication.EntityId, kind replication.ComponentKind, value any, tick wire.Tick, predTick wire.Tick, inputs InputSource) {
	e, ok := t.entities[local]
	if !ok {
		return
	}
	cs := t.component(local, kind)
	cs.confirmed = value
	cs.confirmedTick = tick
	cs.haveConfirmed = true

	entry, ok := t.registry.Lookup(kind)
	if !ok || entry.SyncMode != replication.Full {
		return
	}

	switch e.role {
	case RolePredicted:
		t.replay(cs, kind, tick, predTick, inputs)
	case RoleInterpolated:
		t.pushHistory(cs, tick, value)
	}
}

// replay discards the predicted copy's state at tick, copies Confirmed in,
// and re-simulates tick+1..predTick by replaying recorded inputs, bounded
// to maxReplay ticks so a stalled connection can't trigger an unbounded
// replay loop.
func (t *Tracker) replay(cs *componentState, kind replication.ComponentKind, tick, predTick wire.Tick, inputs InputSource) {
	cs.predicted = cs.confirmed
	cs.havePredicted = true

	simulate := t.simulate[kind]
	if simulate == nil || inputs == nil {
		return
	}

	span := tick.Diff(predTick)
	if span <= 0 {
		return
	}
	if span > t.maxReplay {
		span = t.maxReplay
	}

	cursor := tick
	for i := int32(0); i < span; i++ {
		cursor++
		input, ok := inputs.InputAt(cursor)
		if !ok {
			continue
		}
		cs.predicted = simulate(cs.predicted, input)
	}
}

func (t *Tracker) pushHistory(cs *componentState, tick wire.Tick, value any) {
	cs.history = append(cs.history, Sample{Tick: tick, Value: value})
	if len(cs.history) > t.historyLen {
		cs.history = cs.history[len(cs.history)-t.historyLen:]
	}
}

// Predicted returns an entity's current predicted value for kind, if any.
func (t *Tracker) Predicted(local replication.EntityId, kind replication.ComponentKind) (any, bool) {
	cs := t.component(local, kind)
	if cs == nil || !cs.havePredicted {
		return nil, false
	}
	return cs.predicted, true
}

// Confirmed returns an entity's last Confirmed value for kind, if any.
func (t *Tracker) Confirmed(local replication.EntityId, kind replication.ComponentKind) (any, wire.Tick, bool) {
	cs := t.component(local, kind)
	if cs == nil || !cs.haveConfirmed {
		return nil, 0, false
	}
	return cs.confirmed, cs.confirmedTick, true
}

// Interpolated computes an entity's value at interpTick by bracketing it
// with the two nearest historical samples and calling the component's
// registered Interpolate function. Returns ok=false if fewer than two
// samples straddle interpTick yet (e.g. just spawned).
func (t *Tracker) Interpolated(local replication.EntityId, kind replication.ComponentKind, interpTick wire.Tick) (any, bool) {
	cs := t.component(local, kind)
	if cs == nil || len(cs.history) < 2 {
		return nil, false
	}
	entry, ok := t.registry.Lookup(kind)
	if !ok || entry.Interpolate == nil {
		return nil, false
	}

	for i := 0; i < len(cs.history)-1; i++ {
		a, b := cs.history[i], cs.history[i+1]
		if a.Tick.After(interpTick) {
			continue
		}
		if interpTick.After(b.Tick) {
			continue
		}
		span := a.Tick.Diff(b.Tick)
		if span == 0 {
			return a.Value, true
		}
		progress := a.Tick.Diff(interpTick)
		frac := float64(progress) / float64(span)
		return entry.Interpolate(a.Value, b.Value, frac), true
	}
	return nil, false
}
