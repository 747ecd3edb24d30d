package channel

import (
	"testing"
	"time"

	"github.com/appnet-org/netsync/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestReliableOrderedReceiverReordersAndDropsStale(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig(ReliableOrdered)
	recv := NewReliableOrderedReceiver(cfg)

	// id 1 arrives before id 0.
	recv.Receive(now, wire.MessageHeader{Flags: wire.FlagHasId, Id: 1}, []byte("one"))
	require.Empty(t, recv.Poll())

	// id 0 is the next expected id, so it is accepted and releases the
	// buffered id 1 behind it.
	recv.Receive(now, wire.MessageHeader{Flags: wire.FlagHasId, Id: 0}, []byte("zero"))

	out := recv.Poll()
	require.Equal(t, [][]byte{[]byte("zero"), []byte("one")}, out)

	// Now id 0 arrives again (stale retransmit after cursor advanced) and
	// must be dropped.
	recv.Receive(now, wire.MessageHeader{Flags: wire.FlagHasId, Id: 0}, []byte("zero-again"))
	require.Empty(t, recv.Poll())
}

func TestUnreliableSenderStampsEachMessageWithItsOwnId(t *testing.T) {
	s := NewUnreliableSender(UnreliableSequenced)
	s.Enqueue([]byte("a"))
	s.Enqueue([]byte("b"))
	s.Enqueue([]byte("c"))

	out := s.Collect(time.Now(), 0)
	require.Len(t, out, 3)
	require.Equal(t, wire.MessageId(0), out[0].Header.Id)
	require.Equal(t, wire.MessageId(1), out[1].Header.Id)
	require.Equal(t, wire.MessageId(2), out[2].Header.Id)

	recv := NewSequencedReceiver()
	for _, m := range out {
		recv.Receive(time.Now(), m.Header, m.Payload)
	}
	require.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, recv.Poll())
}

func TestReliableOrderedReceiverPollTaggedReportsDeliveryIds(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig(ReliableOrdered)
	recv := NewReliableOrderedReceiver(cfg)

	recv.Receive(now, wire.MessageHeader{Flags: wire.FlagHasId, Id: 0}, []byte("zero"))
	recv.Receive(now, wire.MessageHeader{Flags: wire.FlagHasId, Id: 1}, []byte("one"))

	tagged := recv.PollTagged()
	require.Equal(t, []TaggedMessage{
		{Id: 0, Payload: []byte("zero")},
		{Id: 1, Payload: []byte("one")},
	}, tagged)
}

func TestSequencedReceiverDropsOld(t *testing.T) {
	now := time.Now()
	recv := NewSequencedReceiver()

	recv.Receive(now, wire.MessageHeader{Id: 5}, []byte("five"))
	recv.Receive(now, wire.MessageHeader{Id: 3}, []byte("three-late"))
	recv.Receive(now, wire.MessageHeader{Id: 6}, []byte("six"))

	out := recv.Poll()
	require.Equal(t, [][]byte{[]byte("five"), []byte("six")}, out)
}

func TestSequencedReceiverFreshDropsModularlyOldFirstMessage(t *testing.T) {
	now := time.Now()
	recv := NewSequencedReceiver()

	// A fresh receiver behaves as if most_recent_id == 0: id 60000 is
	// modularly older than 0 and must be dropped even though it's the
	// very first message ever seen (spec.md §8 scenario S2).
	recv.Receive(now, wire.MessageHeader{Id: 60000}, []byte("stale"))
	require.Empty(t, recv.Poll())

	recv.Receive(now, wire.MessageHeader{Id: 1}, []byte("one"))
	recv.Receive(now, wire.MessageHeader{Id: 0}, []byte("zero-late"))
	recv.Receive(now, wire.MessageHeader{Id: 2}, []byte("two"))

	out := recv.Poll()
	require.Equal(t, [][]byte{[]byte("one"), []byte("two")}, out)
}

func TestReliableSenderRetransmitsAfterThreshold(t *testing.T) {
	cfg := DefaultConfig(ReliableUnordered)
	s := NewReliableSender(cfg)
	id := s.Enqueue([]byte("payload"))
	require.Equal(t, 1, s.Outstanding())

	rtt := 100 * time.Millisecond
	t0 := time.Now()
	first := s.Collect(t0, rtt)
	require.Len(t, first, 1)
	require.Equal(t, id, first[0].MessageId)

	// Too soon: nothing to resend.
	again := s.Collect(t0.Add(50*time.Millisecond), rtt)
	require.Empty(t, again)

	// Past threshold (rtt*1.5 = 150ms): resend.
	resent := s.Collect(t0.Add(200*time.Millisecond), rtt)
	require.Len(t, resent, 1)

	s.OnAck(id)
	require.Equal(t, 0, s.Outstanding())
	require.Empty(t, s.Collect(t0.Add(1*time.Second), rtt))
}

func TestFragmentReassembly(t *testing.T) {
	cfg := DefaultConfig(ReliableUnordered)
	cfg.FragmentSize = 4
	recv := NewReliableUnorderedReceiver(cfg)

	payload := []byte("hello world!")
	msgs := Split(wire.MessageId(1), payload, cfg.FragmentSize, false, 0)
	require.Greater(t, len(msgs), 1)

	now := time.Now()
	for i, m := range msgs {
		if i == len(msgs)-1 {
			continue // hold back the last fragment
		}
		recv.Receive(now, m.Header, m.Payload)
	}
	require.Empty(t, recv.Poll())

	last := msgs[len(msgs)-1]
	recv.Receive(now, last.Header, last.Payload)

	out := recv.Poll()
	require.Len(t, out, 1)
	require.Equal(t, payload, out[0])
}

func TestReassemblerGCEvictsStale(t *testing.T) {
	cfg := DefaultConfig(ReliableUnordered)
	cfg.FragmentSize = 4
	recv := NewReliableUnorderedReceiver(cfg)

	payload := []byte("hello world!")
	msgs := Split(wire.MessageId(1), payload, cfg.FragmentSize, false, 0)

	now := time.Now()
	recv.Receive(now, msgs[0].Header, msgs[0].Payload)

	rtt := 50 * time.Millisecond
	recv.GC(now.Add(time.Second), rtt) // well past 3*rtt

	// Completing the rest should no longer reassemble anything because the
	// partial state was evicted; the message never completes.
	for _, m := range msgs[1:] {
		recv.Receive(now.Add(time.Second), m.Header, m.Payload)
	}
	require.Empty(t, recv.Poll())
}

func TestTickBufferedReplayRing(t *testing.T) {
	cfg := DefaultConfig(TickBuffered)
	recv := NewTickBufferedReceiver(cfg, 2)

	recv.Record(wire.Tick(1), []byte("t1"))
	recv.Record(wire.Tick(2), []byte("t2"))
	recv.Record(wire.Tick(3), []byte("t3"))

	_, ok := recv.InputAt(wire.Tick(1))
	require.False(t, ok, "tick 1 should have been evicted")

	p, ok := recv.InputAt(wire.Tick(3))
	require.True(t, ok)
	require.Equal(t, []byte("t3"), p)
}

func TestTickBufferedPollRecordsIntoRingFromRealMessages(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig(TickBuffered)
	send := NewTickBufferedSender(cfg, func() wire.Tick { return 7 })
	recv := NewTickBufferedReceiver(cfg, DefaultInputBufferTicks)

	send.Enqueue([]byte("input"))
	msgs := send.Collect(now, 0)
	require.Len(t, msgs, 1)
	require.True(t, msgs[0].Header.Flags.Has(wire.FlagHasTick))

	recv.Receive(now, msgs[0].Header, msgs[0].Payload)
	delivered := recv.Poll()
	require.Equal(t, [][]byte{[]byte("input")}, delivered)

	p, ok := recv.InputAt(wire.Tick(7))
	require.True(t, ok)
	require.Equal(t, []byte("input"), p)
}
