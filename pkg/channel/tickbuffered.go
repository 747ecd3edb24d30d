package channel

import (
	"github.com/appnet-org/netsync/pkg/wire"
)

// DefaultInputBufferTicks is the default size of the replay ring buffer
// kept by TickBufferedReceiver, the same value as the prediction module's
// DefaultMaxReplayTicks.
const DefaultInputBufferTicks = 64

// TickBufferedSender is a ReliableSender that stamps every message with the
// sending tick, for per-tick input streams.
type TickBufferedSender struct {
	*ReliableSender
}

// NewTickBufferedSender returns a sender whose messages are tagged with
// whatever tick nowTick reports at send time.
func NewTickBufferedSender(cfg Config, nowTick func() wire.Tick) *TickBufferedSender {
	rs := NewReliableSender(cfg)
	rs.tick = nowTick
	return &TickBufferedSender{ReliableSender: rs}
}

// TickBufferedReceiver is a ReliableOrderedReceiver that additionally keeps
// the last N delivered payloads addressable by tick, so the prediction
// module can replay inputs during a rollback.
type TickBufferedReceiver struct {
	*ReliableOrderedReceiver
	ring       map[wire.Tick][]byte
	ringTicks  []wire.Tick // insertion order, oldest first
	ringSize   int
}

// NewTickBufferedReceiver returns a receiver with a ring buffer of
// ringSize ticks (DefaultInputBufferTicks if ringSize <= 0).
func NewTickBufferedReceiver(cfg Config, ringSize int) *TickBufferedReceiver {
	if ringSize <= 0 {
		ringSize = DefaultInputBufferTicks
	}
	return &TickBufferedReceiver{
		ReliableOrderedReceiver: NewReliableOrderedReceiver(cfg),
		ring:                    make(map[wire.Tick][]byte),
		ringSize:                ringSize,
	}
}

// Poll drains in-order messages like ReliableOrderedReceiver, and also
// records each one into the replay ring keyed by the tick its header
// carried, so InputAt can serve real network data rather than only
// hand-fed test values.
func (r *TickBufferedReceiver) Poll() [][]byte {
	tagged := r.ReliableOrderedReceiver.PollTagged()
	if len(tagged) == 0 {
		return nil
	}
	out := make([][]byte, len(tagged))
	for i, t := range tagged {
		if t.HasTick {
			r.Record(t.Tick, t.Payload)
		}
		out[i] = t.Payload
	}
	return out
}

// Record stores payload for tick in the replay ring, evicting the oldest
// entry once the ring is full. Poll calls it for every delivered message
// whose header carries a tick; callers may also call it directly.
func (r *TickBufferedReceiver) Record(tick wire.Tick, payload []byte) {
	if _, exists := r.ring[tick]; !exists {
		r.ringTicks = append(r.ringTicks, tick)
	}
	r.ring[tick] = payload
	for len(r.ringTicks) > r.ringSize {
		oldest := r.ringTicks[0]
		r.ringTicks = r.ringTicks[1:]
		delete(r.ring, oldest)
	}
}

// InputAt returns the buffered input for tick, if still within the ring.
func (r *TickBufferedReceiver) InputAt(tick wire.Tick) ([]byte, bool) {
	p, ok := r.ring[tick]
	return p, ok
}
