// Package packet implements the packet assembler: bin-packing channel
// messages into MTU-bound packets ordered by channel priority, and the ack
// bitfield bookkeeping that retires reliable messages once their packet is
// acknowledged.
package packet

import "github.com/appnet-org/netsync/pkg/wire"

// AckTracker maintains the receive side's ack bitfield (which packet ids
// have arrived) and the send side's per-packet bookkeeping of which
// (channel, message) pairs rode in each sent packet id, so that an incoming
// ack can retire the right messages from each channel's sender.
type AckTracker struct {
	// receive side
	latestRecv wire.PacketId
	haveRecv   bool
	recvBits   uint32 // bit i set means latestRecv-(i+1) was received

	// send side
	sent map[wire.PacketId][]SentEntry
}

// SentEntry records one message carried by a sent packet, for retirement
// once that packet is acknowledged.
type SentEntry struct {
	ChannelId uint8
	MessageId wire.MessageId
}

// NewAckTracker returns an empty AckTracker.
func NewAckTracker() *AckTracker {
	return &AckTracker{sent: make(map[wire.PacketId][]SentEntry)}
}

// OnPacketReceived updates the receive-side ack bitfield for an incoming
// packet id.
func (t *AckTracker) OnPacketReceived(id wire.PacketId) {
	if !t.haveRecv {
		t.haveRecv = true
		t.latestRecv = id
		t.recvBits = 0
		return
	}
	if id == t.latestRecv {
		return
	}
	if id.After(t.latestRecv) {
		shift := uint16(id) - uint16(t.latestRecv)
		if shift > 32 {
			t.recvBits = 0
		} else {
			t.recvBits = (t.recvBits << shift) | (1 << (shift - 1))
		}
		t.latestRecv = id
		return
	}
	// id precedes latestRecv: set its bit if it falls within the window.
	diff := uint16(t.latestRecv) - uint16(id)
	if diff >= 1 && diff <= 32 {
		t.recvBits |= 1 << (diff - 1)
	}
}

// Header returns the ack fields to stamp on the next outgoing packet
// header.
func (t *AckTracker) Header() (latestAck wire.PacketId, ackBits uint32) {
	return t.latestRecv, t.recvBits
}

// RecordSent associates entries with a packet id this peer just sent, for
// later retirement.
func (t *AckTracker) RecordSent(id wire.PacketId, entries []SentEntry) {
	if len(entries) == 0 {
		return
	}
	t.sent[id] = entries
}

// OnAckedHeader consumes an incoming packet header's ack fields and
// returns every (channel, message) entry that is now confirmed delivered,
// removing them from the outstanding-sent set.
func (t *AckTracker) OnAckedHeader(h wire.PacketHeader) []SentEntry {
	var retired []SentEntry
	for id, entries := range t.sent {
		if h.Acked(id) {
			retired = append(retired, entries...)
			delete(t.sent, id)
		}
	}
	return retired
}
