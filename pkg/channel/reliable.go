package channel

import (
	"time"

	"github.com/appnet-org/netsync/pkg/wire"
)

type txMessage struct {
	payload  []byte
	lastSent time.Time
	acked    bool
}

// ReliableSender retransmits every enqueued message until it is
// acknowledged. Retransmission is gated by
// now-lastSent >= rtt*RTTMultiplier+JitterMargin, the policy observed in
// the teacher's checkRetransmission (pkg/custom/reliable/utils.go), here
// driven by the connection's RTT estimate instead of a fixed timer.
type ReliableSender struct {
	cfg    Config
	nextId wire.MessageId
	outbox map[wire.MessageId]*txMessage
	order  []wire.MessageId // insertion order, for stable Collect iteration
	tick   func() wire.Tick // optional tick stamping, used by TickBuffered
}

// NewReliableSender returns a sender for ReliableUnordered or
// ReliableOrdered traffic.
func NewReliableSender(cfg Config) *ReliableSender {
	return &ReliableSender{cfg: cfg, outbox: make(map[wire.MessageId]*txMessage)}
}

func (s *ReliableSender) Enqueue(payload []byte) wire.MessageId {
	id := s.nextId
	s.nextId++
	s.outbox[id] = &txMessage{payload: payload}
	s.order = append(s.order, id)
	return id
}

func (s *ReliableSender) Collect(now time.Time, rtt time.Duration) []OutgoingMessage {
	var out []OutgoingMessage
	threshold := time.Duration(float64(rtt)*s.cfg.RTTMultiplier) + s.cfg.JitterMargin

	live := s.order[:0]
	for _, id := range s.order {
		tx, ok := s.outbox[id]
		if !ok {
			continue
		}
		if tx.acked {
			delete(s.outbox, id)
			continue
		}
		live = append(live, id)

		if !tx.lastSent.IsZero() && now.Sub(tx.lastSent) < threshold {
			continue
		}
		tx.lastSent = now

		var msgTick wire.Tick
		withTick := s.tick != nil
		if withTick {
			msgTick = s.tick()
		}
		out = append(out, Split(id, tx.payload, s.cfg.FragmentSize, withTick, msgTick)...)
	}
	s.order = live
	return out
}

func (s *ReliableSender) OnAck(id wire.MessageId) {
	if tx, ok := s.outbox[id]; ok {
		tx.acked = true
	}
}

func (s *ReliableSender) Outstanding() int {
	n := 0
	for _, tx := range s.outbox {
		if !tx.acked {
			n++
		}
	}
	return n
}

// completedMessage is one fully reassembled reliable message, with the
// wire Tick it carried if its header had one (spec.md §4.2 TickBuffered:
// "Messages carry a Tick").
type completedMessage struct {
	payload []byte
	tick    wire.Tick
	hasTick bool
}

// reliableReceiverCore deduplicates and reassembles incoming reliable
// messages. ReliableUnordered and ReliableOrdered differ only in how they
// drain the completed set.
type reliableReceiverCore struct {
	reassembler *Reassembler
	complete    map[wire.MessageId]completedMessage
	// fragmentArrival tracks when a message id last received a fragment,
	// for GC regardless of whether it completed via a single-piece message.
	fragmentArrival map[wire.MessageId]time.Time
}

func newReliableReceiverCore() reliableReceiverCore {
	return reliableReceiverCore{
		reassembler:     NewReassembler(),
		complete:        make(map[wire.MessageId]completedMessage),
		fragmentArrival: make(map[wire.MessageId]time.Time),
	}
}

func (c *reliableReceiverCore) receive(now time.Time, h wire.MessageHeader, payload []byte) {
	if _, done := c.complete[h.Id]; done {
		return
	}
	if h.Flags.Has(wire.FlagIsFragment) {
		c.fragmentArrival[h.FragmentOf] = now
		whole, ok := c.reassembler.Add(now, h, payload)
		if !ok {
			return
		}
		delete(c.fragmentArrival, h.FragmentOf)
		c.complete[h.Id] = completedMessage{payload: whole, tick: h.Tick, hasTick: h.Flags.Has(wire.FlagHasTick)}
		return
	}
	c.complete[h.Id] = completedMessage{payload: payload, tick: h.Tick, hasTick: h.Flags.Has(wire.FlagHasTick)}
}

func (c *reliableReceiverCore) gc(now time.Time, timeout time.Duration) {
	c.reassembler.GC(now, timeout)
	for id, t := range c.fragmentArrival {
		if now.Sub(t) > timeout {
			delete(c.fragmentArrival, id)
		}
	}
}

// ReliableUnorderedReceiver delivers completed messages as soon as they are
// reassembled, in no particular order.
type ReliableUnorderedReceiver struct {
	cfg  Config
	core reliableReceiverCore
}

func NewReliableUnorderedReceiver(cfg Config) *ReliableUnorderedReceiver {
	return &ReliableUnorderedReceiver{cfg: cfg, core: newReliableReceiverCore()}
}

func (r *ReliableUnorderedReceiver) Receive(now time.Time, h wire.MessageHeader, payload []byte) {
	r.core.receive(now, h, payload)
}

func (r *ReliableUnorderedReceiver) Poll() [][]byte {
	if len(r.core.complete) == 0 {
		return nil
	}
	out := make([][]byte, 0, len(r.core.complete))
	for id, msg := range r.core.complete {
		out = append(out, msg.payload)
		delete(r.core.complete, id)
	}
	return out
}

func (r *ReliableUnorderedReceiver) GC(now time.Time, rtt time.Duration) {
	r.core.gc(now, time.Duration(float64(rtt)*r.cfg.ReassemblyTimeoutRTTs))
}

// ReliableOrderedReceiver only releases messages in strict id order,
// buffering everything that arrives ahead of the next expected id and
// dropping anything that arrives behind it. Grounded directly on
// original_source's OrderedReliableReceiver: a pending_recv_message_id
// cursor plus a buffer keyed by message id.
type ReliableOrderedReceiver struct {
	cfg     Config
	core    reliableReceiverCore
	pending wire.MessageId
}

func NewReliableOrderedReceiver(cfg Config) *ReliableOrderedReceiver {
	return &ReliableOrderedReceiver{cfg: cfg, core: newReliableReceiverCore()}
}

func (r *ReliableOrderedReceiver) Receive(now time.Time, h wire.MessageHeader, payload []byte) {
	if h.Id.Less(r.pending) {
		return // stale, behind the read cursor
	}
	r.core.receive(now, h, payload)
}

func (r *ReliableOrderedReceiver) Poll() [][]byte {
	tagged := r.PollTagged()
	if len(tagged) == 0 {
		return nil
	}
	out := make([][]byte, len(tagged))
	for i, t := range tagged {
		out[i] = t.Payload
	}
	return out
}

func (r *ReliableOrderedReceiver) GC(now time.Time, rtt time.Duration) {
	r.core.gc(now, time.Duration(float64(rtt)*r.cfg.ReassemblyTimeoutRTTs))
}

// PollTagged is Poll, but also reports the MessageId each payload arrived
// with. Callers that need to correlate delivery back to the reliable
// stream (e.g. replication, tagging an action's id) use this instead of
// Poll.
func (r *ReliableOrderedReceiver) PollTagged() []TaggedMessage {
	var out []TaggedMessage
	for {
		msg, ok := r.core.complete[r.pending]
		if !ok {
			break
		}
		out = append(out, TaggedMessage{Id: r.pending, Payload: msg.payload, Tick: msg.tick, HasTick: msg.hasTick})
		delete(r.core.complete, r.pending)
		r.pending++
	}
	return out
}
