package prediction

import (
	"testing"

	"github.com/appnet-org/netsync/pkg/replication"
	"github.com/appnet-org/netsync/pkg/wire"
	"github.com/stretchr/testify/require"
)

const posKind replication.ComponentKind = 1

type fakeCodec struct{}

func (fakeCodec) Encode(v any) ([]byte, error)   { return nil, nil }
func (fakeCodec) Decode(data []byte) (any, error) { return nil, nil }

func fullRegistry() *replication.Registry {
	r := replication.NewRegistry()
	interp := func(a, b float64, t float64) float64 { return a + (b-a)*t }
	diff := func(a, b float64) bool { return a != b }
	replication.Register[float64](r, posKind, fakeCodec{}, replication.Full, replication.AuthorityServer, interp, diff)
	return r
}

type fakeInputs struct {
	recorded map[wire.Tick][]byte
}

func (f *fakeInputs) InputAt(tick wire.Tick) ([]byte, bool) {
	v, ok := f.recorded[tick]
	return v, ok
}

func TestPredictedEntityReplaysInputsAfterConfirmedUpdate(t *testing.T) {
	registry := fullRegistry()
	var steps []string
	simulate := map[replication.ComponentKind]SimulateFunc{
		posKind: func(prev any, input []byte) any {
			steps = append(steps, string(input))
			return prev.(float64) + 1
		},
	}
	tracker := NewTracker(registry, simulate, 10)
	tracker.Track(1, RolePredicted)

	inputs := &fakeInputs{recorded: map[wire.Tick][]byte{
		11: []byte("a"),
		12: []byte("b"),
		13: []byte("c"),
	}}

	tracker.OnConfirmedUpdate(1, posKind, float64(10), wire.Tick(10), wire.Tick(13), inputs)

	predicted, ok := tracker.Predicted(1, posKind)
	require.True(t, ok)
	require.Equal(t, float64(13), predicted)
	require.Equal(t, []string{"a", "b", "c"}, steps)
}

func TestInterpolatedEntityBracketsHistory(t *testing.T) {
	registry := fullRegistry()
	tracker := NewTracker(registry, nil, 0)
	tracker.Track(2, RoleInterpolated)

	tracker.OnConfirmedUpdate(2, posKind, float64(0), wire.Tick(100), 0, nil)
	tracker.OnConfirmedUpdate(2, posKind, float64(10), wire.Tick(110), 0, nil)

	value, ok := tracker.Interpolated(2, posKind, wire.Tick(105))
	require.True(t, ok)
	require.InDelta(t, 5.0, value.(float64), 0.001)
}

func TestInterpolatedEntityNeedsTwoSamples(t *testing.T) {
	registry := fullRegistry()
	tracker := NewTracker(registry, nil, 0)
	tracker.Track(3, RoleInterpolated)
	tracker.OnConfirmedUpdate(3, posKind, float64(0), wire.Tick(100), 0, nil)

	_, ok := tracker.Interpolated(3, posKind, wire.Tick(100))
	require.False(t, ok)
}

func TestUntrackDropsState(t *testing.T) {
	registry := fullRegistry()
	tracker := NewTracker(registry, nil, 0)
	tracker.Track(4, RolePredicted)
	tracker.OnConfirmedUpdate(4, posKind, float64(1), wire.Tick(1), wire.Tick(1), nil)

	tracker.Untrack(4)
	_, _, ok := tracker.Confirmed(4, posKind)
	require.False(t, ok)
}
