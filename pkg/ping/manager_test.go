package ping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPingRTTSmoothing(t *testing.T) {
	m := NewManager(Config{})
	t0 := time.Now()

	id := m.SendPing(t0)
	rtt, ok := m.OnPong(t0.Add(100*time.Millisecond), id, 0)
	require.True(t, ok)
	require.Equal(t, 100*time.Millisecond, rtt)
	require.Equal(t, 100*time.Millisecond, m.RTT())

	id2 := m.SendPing(t0.Add(time.Second))
	m.OnPong(t0.Add(time.Second+200*time.Millisecond), id2, 0)
	// EWMA should move toward 200ms but not jump all the way there.
	require.Greater(t, m.RTT(), 100*time.Millisecond)
	require.Less(t, m.RTT(), 200*time.Millisecond)
}

func TestPingUnknownPongIgnored(t *testing.T) {
	m := NewManager(Config{})
	_, ok := m.OnPong(time.Now(), 999, 0)
	require.False(t, ok)
}

func TestPingTimeout(t *testing.T) {
	m := NewManager(Config{Timeout: 50 * time.Millisecond})
	t0 := time.Now()
	m.SendPing(t0)
	require.False(t, m.TimedOut(t0.Add(10*time.Millisecond)))
	require.True(t, m.TimedOut(t0.Add(100*time.Millisecond)))
}

func TestShouldPingRespectsInterval(t *testing.T) {
	m := NewManager(Config{Interval: 100 * time.Millisecond})
	t0 := time.Now()
	require.True(t, m.ShouldPing(t0))
	m.SendPing(t0)
	require.False(t, m.ShouldPing(t0.Add(50*time.Millisecond)))
	require.True(t, m.ShouldPing(t0.Add(200*time.Millisecond)))
}
