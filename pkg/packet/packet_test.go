package packet

import (
	"testing"

	"github.com/appnet-org/netsync/pkg/channel"
	"github.com/appnet-org/netsync/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestAssembleDisassembleRoundTrip(t *testing.T) {
	sources := []Source{
		{
			ChannelId: 0,
			Priority:  0,
			Messages: []channel.OutgoingMessage{
				{Header: wire.MessageHeader{Flags: wire.FlagHasId, Id: 1}, Payload: []byte("a"), MessageId: 1},
				{Header: wire.MessageHeader{Flags: wire.FlagHasId, Id: 2}, Payload: []byte("bb"), MessageId: 2},
			},
		},
		{
			ChannelId: 1,
			Priority:  1,
			Messages: []channel.OutgoingMessage{
				{Header: wire.MessageHeader{}, Payload: []byte("unreliable")},
			},
		},
	}

	var nextId wire.PacketId
	allocId := func() wire.PacketId { id := nextId; nextId++; return id }

	packets := Assemble(sources, wire.Tick(5), wire.PacketId(0), 0, 1200, allocId, false)
	require.Len(t, packets, 1)

	h, consumed, err := wire.DecodePacketHeader(packets[0].Bytes)
	require.NoError(t, err)
	require.Equal(t, wire.Tick(5), h.Tick)

	msgs, err := Disassemble(packets[0].Bytes[consumed:])
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, ChannelId(0), msgs[0].ChannelId)
	require.Equal(t, []byte("a"), msgs[0].Payload)
	require.Equal(t, ChannelId(1), msgs[2].ChannelId)
	require.Equal(t, []byte("unreliable"), msgs[2].Payload)

	require.ElementsMatch(t, []SentEntry{{ChannelId: 0, MessageId: 1}, {ChannelId: 0, MessageId: 2}}, packets[0].Entries)
}

func TestAssembleCarriesMessagesOver255BytesUnfragmented(t *testing.T) {
	payload := make([]byte, 600)
	for i := range payload {
		payload[i] = byte(i)
	}
	sources := []Source{
		{
			ChannelId: 0,
			Priority:  0,
			Messages: []channel.OutgoingMessage{
				{Header: wire.MessageHeader{Flags: wire.FlagHasId, Id: 1}, Payload: payload, MessageId: 1},
			},
		},
	}

	var nextId wire.PacketId
	allocId := func() wire.PacketId { id := nextId; nextId++; return id }

	packets := Assemble(sources, wire.Tick(0), wire.PacketId(0), 0, 1200, allocId, false)
	require.Len(t, packets, 1)

	_, consumed, err := wire.DecodePacketHeader(packets[0].Bytes)
	require.NoError(t, err)
	msgs, err := Disassemble(packets[0].Bytes[consumed:])
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, payload, msgs[0].Payload)
}

func TestAssembleSplitsAcrossPacketsWhenOverMTU(t *testing.T) {
	var messages []channel.OutgoingMessage
	for i := 0; i < 5; i++ {
		messages = append(messages, channel.OutgoingMessage{
			Header:    wire.MessageHeader{Flags: wire.FlagHasId, Id: wire.MessageId(i)},
			Payload:   make([]byte, 40),
			MessageId: wire.MessageId(i),
		})
	}
	sources := []Source{{ChannelId: 0, Priority: 0, Messages: messages}}

	var nextId wire.PacketId
	allocId := func() wire.PacketId { id := nextId; nextId++; return id }

	packets := Assemble(sources, 0, 0, 0, wire.PacketHeaderSize+60, allocId, false)
	require.Greater(t, len(packets), 1)

	total := 0
	for _, p := range packets {
		_, consumed, err := wire.DecodePacketHeader(p.Bytes)
		require.NoError(t, err)
		msgs, err := Disassemble(p.Bytes[consumed:])
		require.NoError(t, err)
		total += len(msgs)
	}
	require.Equal(t, 5, total)
}

func TestAssembleWithNoMessagesEmitsNothingUnlessForced(t *testing.T) {
	var nextId wire.PacketId
	allocId := func() wire.PacketId { id := nextId; nextId++; return id }

	none := Assemble(nil, 0, wire.PacketId(3), 0b101, 1200, allocId, false)
	require.Empty(t, none)

	forced := Assemble(nil, 0, wire.PacketId(3), 0b101, 1200, allocId, true)
	require.Len(t, forced, 1)
	require.Empty(t, forced[0].Entries)

	h, consumed, err := wire.DecodePacketHeader(forced[0].Bytes)
	require.NoError(t, err)
	require.Equal(t, wire.PacketId(3), h.LatestAck)
	require.Equal(t, uint32(0b101), h.AckBits)
	require.Equal(t, len(forced[0].Bytes), consumed)
}

func TestAckTrackerRetiresOnAck(t *testing.T) {
	tr := NewAckTracker()
	tr.RecordSent(wire.PacketId(10), []SentEntry{{ChannelId: 0, MessageId: 1}})
	tr.RecordSent(wire.PacketId(11), []SentEntry{{ChannelId: 0, MessageId: 2}})

	h := wire.PacketHeader{LatestAck: 11, AckBits: 0b1} // acks 11 and 10
	retired := tr.OnAckedHeader(h)
	require.Len(t, retired, 2)

	// Second delivery of the same header must not re-retire anything.
	retired2 := tr.OnAckedHeader(h)
	require.Empty(t, retired2)
}

func TestAckTrackerReceiveBitfieldAdvances(t *testing.T) {
	tr := NewAckTracker()
	tr.OnPacketReceived(wire.PacketId(0))
	tr.OnPacketReceived(wire.PacketId(2)) // gap at 1
	tr.OnPacketReceived(wire.PacketId(1)) // fills the gap out of order

	latest, bits := tr.Header()
	require.Equal(t, wire.PacketId(2), latest)
	require.Equal(t, uint32(0b11), bits) // 1 and 0 both received
}
