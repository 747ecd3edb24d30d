package sync

import (
	"testing"
	"time"

	"github.com/appnet-org/netsync/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestSyncSnapScenario(t *testing.T) {
	// S6: client starts at T_local=0; pongs establish T_server_est=500,
	// rtt=4 ticks at a 20ms tick duration. T_pred should land well past
	// the snap threshold, forcing a Snap event.
	tickDuration := 20 * time.Millisecond
	m := NewManager(Config{TickDuration: tickDuration})

	for i := 0; i < DefaultMinPongsForSync; i++ {
		m.OnPong(wire.Tick(500))
	}
	require.True(t, m.IsSynced())

	rtt := 4 * tickDuration
	ev := m.Reconcile(wire.Tick(0), rtt, 0)
	require.NotNil(t, ev)
	require.Equal(t, TickEventSnap, ev.Kind)
	require.True(t, wire.Tick(0).Diff(ev.NewTick) > DefaultSnapThresholdTicks)
}

func TestSyncSmoothAdjustWithinThreshold(t *testing.T) {
	tickDuration := 20 * time.Millisecond
	m := NewManager(Config{TickDuration: tickDuration})
	m.OnPong(wire.Tick(100))

	target := m.PredictionTick(2*tickDuration, 0)
	// place local tick just a couple ticks behind target, within threshold
	local := wire.Tick(uint16(target) - 2)

	ev := m.Reconcile(local, 2*tickDuration, 0)
	require.NotNil(t, ev)
	require.Equal(t, TickEventAdjust, ev.Kind)
	require.InDelta(t, DefaultMaxRelativeSpeedDelta, ev.SpeedDelta, 1e-9)
}

func TestPredictionTickRoundsLeadUpNotDown(t *testing.T) {
	// halfRTT+jitterMargin = 25ms against a 20ms tick duration is 1.25
	// ticks; spec.md §4.7 step 2 requires ceil, so the lead must come out
	// to 2 ticks (plus the default 1-tick safety margin), not 1 (which a
	// truncating division would produce).
	tickDuration := 20 * time.Millisecond
	m := NewManager(Config{TickDuration: tickDuration})
	m.OnPong(wire.Tick(100))

	got := m.PredictionTick(50*time.Millisecond, 0) // halfRTT = 25ms
	require.Equal(t, wire.Tick(103), got)
}

func TestSyncNotSyncedBeforeMinPongs(t *testing.T) {
	m := NewManager(Config{TickDuration: 20 * time.Millisecond})
	require.False(t, m.IsSynced())
	m.OnPong(wire.Tick(10))
	require.False(t, m.IsSynced())
}

func TestInterpolationDelayDefaultHasNoLossTerm(t *testing.T) {
	m := NewManager(Config{
		TickDuration:           20 * time.Millisecond,
		InterpDelayMin:         40 * time.Millisecond,
		InterpJitterMultiplier: 2,
	})
	withLoss := m.InterpolationDelay(5*time.Millisecond, 0.9)
	withoutLoss := m.InterpolationDelay(5*time.Millisecond, 0.0)
	require.Equal(t, withoutLoss, withLoss, "loss-rate term must be opt-in and default off")
	require.Equal(t, 40*time.Millisecond+10*time.Millisecond, withLoss)
}
