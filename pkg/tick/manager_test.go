package tick

import (
	"testing"
	"time"

	"github.com/appnet-org/netsync/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestTickAdvancesAtFixedRate(t *testing.T) {
	m := NewManager(10 * time.Millisecond)
	t0 := time.Now()

	require.Empty(t, m.Advance(t0)) // first call just primes lastAdvance

	events := m.Advance(t0.Add(25 * time.Millisecond))
	require.Len(t, events, 2)
	require.Equal(t, wire.Tick(1), events[0].Tick)
	require.Equal(t, wire.Tick(2), events[1].Tick)
	require.Equal(t, wire.Tick(2), m.Current())
}

func TestTickSetOverridesCurrent(t *testing.T) {
	m := NewManager(10 * time.Millisecond)
	m.Set(wire.Tick(65534))
	require.Equal(t, wire.Tick(65534), m.Current())
}

func TestTickWrapsAt16Bits(t *testing.T) {
	m := NewManager(10 * time.Millisecond)
	m.Set(wire.Tick(65535))
	t0 := time.Now()
	m.Advance(t0)
	events := m.Advance(t0.Add(10 * time.Millisecond))
	require.Len(t, events, 1)
	require.Equal(t, wire.Tick(0), events[0].Tick)
}
