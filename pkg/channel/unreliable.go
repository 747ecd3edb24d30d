package channel

import (
	"time"

	"github.com/appnet-org/netsync/pkg/wire"
)

// UnreliableSender implements Sender for both UnreliableUnordered and
// UnreliableSequenced: messages are sent once, never retransmitted, and
// never tracked for acknowledgment.
type UnreliableSender struct {
	sequenced bool
	nextId    wire.MessageId
	pending   []unreliablePending
}

type unreliablePending struct {
	id      wire.MessageId
	payload []byte
}

// NewUnreliableSender returns a sender for mode, which must be
// UnreliableUnordered or UnreliableSequenced.
func NewUnreliableSender(mode Mode) *UnreliableSender {
	return &UnreliableSender{sequenced: mode == UnreliableSequenced}
}

func (s *UnreliableSender) Enqueue(payload []byte) wire.MessageId {
	if !s.sequenced {
		s.pending = append(s.pending, unreliablePending{payload: payload})
		return 0
	}
	id := s.nextId
	s.nextId++
	s.pending = append(s.pending, unreliablePending{id: id, payload: payload})
	return id
}

func (s *UnreliableSender) Collect(now time.Time, rtt time.Duration) []OutgoingMessage {
	if len(s.pending) == 0 {
		return nil
	}
	out := make([]OutgoingMessage, 0, len(s.pending))
	for _, p := range s.pending {
		var h wire.MessageHeader
		if s.sequenced {
			h.Flags |= wire.FlagHasId
			h.Id = p.id
		}
		out = append(out, OutgoingMessage{Header: h, Payload: p.payload, MessageId: p.id})
	}
	s.pending = s.pending[:0]
	return out
}

func (s *UnreliableSender) OnAck(wire.MessageId) {}
func (s *UnreliableSender) Outstanding() int     { return 0 }

// UnreliableUnorderedReceiver delivers every message that arrives, in
// arrival order, performing no dedup or reorder buffering.
type UnreliableUnorderedReceiver struct {
	ready [][]byte
}

func NewUnreliableUnorderedReceiver() *UnreliableUnorderedReceiver {
	return &UnreliableUnorderedReceiver{}
}

func (r *UnreliableUnorderedReceiver) Receive(now time.Time, h wire.MessageHeader, payload []byte) {
	r.ready = append(r.ready, payload)
}

func (r *UnreliableUnorderedReceiver) Poll() [][]byte {
	if len(r.ready) == 0 {
		return nil
	}
	out := r.ready
	r.ready = nil
	return out
}

func (r *UnreliableUnorderedReceiver) GC(now time.Time, rtt time.Duration) {}

// SequencedReceiver delivers, in arrival order, every message that is not
// older than the newest id seen so far, dropping anything that arrives
// after a newer message has already been seen. A
// fresh receiver starts as if it had already seen id 0 (spec.md §4.2/§8
// scenario S2), so the very first message is subject to the same
// modular drop-old check as every subsequent one.
type SequencedReceiver struct {
	latestId wire.MessageId
	ready    [][]byte
}

func NewSequencedReceiver() *SequencedReceiver {
	return &SequencedReceiver{}
}

func (r *SequencedReceiver) Receive(now time.Time, h wire.MessageHeader, payload []byte) {
	if h.Id.Less(r.latestId) {
		return
	}
	r.latestId = h.Id
	r.ready = append(r.ready, payload)
}

func (r *SequencedReceiver) Poll() [][]byte {
	if len(r.ready) == 0 {
		return nil
	}
	out := r.ready
	r.ready = nil
	return out
}

func (r *SequencedReceiver) GC(now time.Time, rtt time.Duration) {}
