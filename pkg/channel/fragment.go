package channel

import (
	"time"

	"github.com/appnet-org/netsync/pkg/wire"
)

// Split breaks payload into fragments of at most fragmentSize bytes, one
// OutgoingMessage per fragment, all tagged with id. If payload already fits
// in a single fragment, Split returns a single non-fragment message.
func Split(id wire.MessageId, payload []byte, fragmentSize int, withTick bool, tick wire.Tick) []OutgoingMessage {
	if len(payload) <= fragmentSize {
		h := wire.MessageHeader{Flags: wire.FlagHasId, Id: id}
		if withTick {
			h.Flags |= wire.FlagHasTick
			h.Tick = tick
		}
		return []OutgoingMessage{{Header: h, Payload: payload, MessageId: id}}
	}

	total := (len(payload) + fragmentSize - 1) / fragmentSize
	msgs := make([]OutgoingMessage, 0, total)
	for i := 0; i < total; i++ {
		start := i * fragmentSize
		end := start + fragmentSize
		if end > len(payload) {
			end = len(payload)
		}
		h := wire.MessageHeader{
			Flags:        wire.FlagHasId | wire.FlagIsFragment,
			Id:           id,
			FragmentOf:   id,
			FragmentIdx:  uint8(i),
			FragmentLast: uint8(total - 1),
		}
		if withTick {
			h.Flags |= wire.FlagHasTick
			h.Tick = tick
		}
		msgs = append(msgs, OutgoingMessage{Header: h, Payload: payload[start:end], MessageId: id})
	}
	return msgs
}

// partialMessage accumulates fragments for one in-flight reassembly.
type partialMessage struct {
	pieces     [][]byte
	seen       int
	lastTouch  time.Time
}

// Reassembler rebuilds fragmented messages back into whole payloads. It
// keeps the original fragment buffers alive until every piece has arrived,
// mirroring the teacher's DataReassembler in pkg/transport/fragmentation.go.
type Reassembler struct {
	partial map[wire.MessageId]*partialMessage
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{partial: make(map[wire.MessageId]*partialMessage)}
}

// Add buffers one fragment. It returns the reassembled payload and true once
// every fragment of the message has arrived.
func (r *Reassembler) Add(now time.Time, h wire.MessageHeader, payload []byte) ([]byte, bool) {
	total := int(h.FragmentLast) + 1
	pm, ok := r.partial[h.FragmentOf]
	if !ok {
		pm = &partialMessage{pieces: make([][]byte, total)}
		r.partial[h.FragmentOf] = pm
	}
	idx := int(h.FragmentIdx)
	if idx >= len(pm.pieces) {
		return nil, false
	}
	if pm.pieces[idx] == nil {
		pm.pieces[idx] = payload
		pm.seen++
	}
	pm.lastTouch = now

	if pm.seen < total {
		return nil, false
	}

	size := 0
	for _, p := range pm.pieces {
		size += len(p)
	}
	whole := make([]byte, 0, size)
	for _, p := range pm.pieces {
		whole = append(whole, p...)
	}
	delete(r.partial, h.FragmentOf)
	return whole, true
}

// GC discards partial reassemblies that have been idle longer than
// timeout. Receivers pass ReassemblyTimeoutRTTs times the current RTT.
func (r *Reassembler) GC(now time.Time, timeout time.Duration) {
	for id, pm := range r.partial {
		if now.Sub(pm.lastTouch) > timeout {
			delete(r.partial, id)
		}
	}
}
