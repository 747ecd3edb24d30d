package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUvarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40, ^uint64(0)}
	for _, v := range values {
		buf := AppendUvarint(nil, v)
		got, n, err := ReadUvarint(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
}

func TestVarintZigzagRoundTrip(t *testing.T) {
	values := []int64{0, -1, 1, -64, 64, 1 << 30, -(1 << 30)}
	for _, v := range values {
		buf := AppendVarint(nil, v)
		got, n, err := ReadVarint(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
}

func TestReadUvarintTruncated(t *testing.T) {
	_, _, err := ReadUvarint([]byte{0x80, 0x80})
	require.ErrorIs(t, err, ErrTruncated)
}

func TestWrap16Comparison(t *testing.T) {
	require.True(t, MessageId(0).Less(MessageId(1)))
	require.True(t, MessageId(65535).Less(MessageId(0)))
	require.False(t, MessageId(0).Less(MessageId(0)))
	require.True(t, MessageId(0).After(MessageId(65535)))
	require.True(t, MessageId(32768).After(MessageId(0)))
}

func TestTickDiff(t *testing.T) {
	require.Equal(t, int32(1), Tick(0).Diff(Tick(1)))
	require.Equal(t, int32(-1), Tick(1).Diff(Tick(0)))
	require.Equal(t, int32(1), Tick(65535).Diff(Tick(0)))
}

func TestPacketHeaderRoundTrip(t *testing.T) {
	h := PacketHeader{
		Type:      PacketTypeData,
		PacketId:  42,
		Tick:      1000,
		LatestAck: 41,
		AckBits:   0b101,
	}
	buf := h.Encode(nil)
	require.Len(t, buf, PacketHeaderSize)

	got, n, err := DecodePacketHeader(buf)
	require.NoError(t, err)
	require.Equal(t, PacketHeaderSize, n)
	require.Equal(t, h, got)
}

func TestPacketHeaderAcked(t *testing.T) {
	h := PacketHeader{LatestAck: 10, AckBits: 0b101} // acks 10, 9, not 8, acks 7
	require.True(t, h.Acked(10))
	require.True(t, h.Acked(9))
	require.False(t, h.Acked(8))
	require.True(t, h.Acked(7))
	require.False(t, h.Acked(11))
}

func TestMessageHeaderRoundTrip(t *testing.T) {
	h := MessageHeader{
		Flags:        FlagHasId | FlagHasTick | FlagIsFragment,
		Id:           7,
		Tick:         99,
		FragmentOf:   7,
		FragmentIdx:  2,
		FragmentLast: 5,
	}
	buf := h.Encode(nil)
	got, n, err := DecodeMessageHeader(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, h, got)
}

func TestMessageHeaderMinimal(t *testing.T) {
	h := MessageHeader{}
	buf := h.Encode(nil)
	require.Len(t, buf, 1)
	got, n, err := DecodeMessageHeader(buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, h, got)
}
