package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalTransportPairDeliversBothWays(t *testing.T) {
	client, server := NewLocalTransportPair(0)

	require.NoError(t, client.Send(LocalAddr("server"), []byte("hello")))
	pkt, ok := server.Recv()
	require.True(t, ok)
	require.Equal(t, []byte("hello"), pkt.Data)

	require.NoError(t, server.Send(LocalAddr("client"), []byte("world")))
	pkt, ok = client.Recv()
	require.True(t, ok)
	require.Equal(t, []byte("world"), pkt.Data)

	_, ok = client.Recv()
	require.False(t, ok)
}

func TestLocalTransportConnectEmitsEvent(t *testing.T) {
	client, _ := NewLocalTransportPair(0)
	require.NoError(t, client.Connect(LocalAddr("server"), nil))
	ev, ok := client.Events()
	require.True(t, ok)
	require.Equal(t, EventConnected, ev.Kind)
}
