package packet

import (
	"sort"

	"github.com/appnet-org/netsync/pkg/channel"
	"github.com/appnet-org/netsync/pkg/wire"
)

// ChannelId identifies one of a connection's channels on the wire.
type ChannelId uint8

// Source groups one channel's pending outgoing messages with the priority
// the assembler should give it when packets are MTU-constrained: lower
// numeric priority is packed first.
type Source struct {
	ChannelId ChannelId
	Priority  int
	Messages  []channel.OutgoingMessage
}

// Assembled is one packet ready for transmission, along with the
// bookkeeping the AckTracker needs to retire its messages once acked.
type Assembled struct {
	PacketId wire.PacketId
	Bytes    []byte
	Entries  []SentEntry
}

// blockCountReserve is how many bytes are reserved for a channel block's
// num_messages varint while its message count is still growing; covers
// counts up to 2^14-1, far more than an MTU-bound packet can ever hold.
// spliceVarint replaces the reservation with the real, minimal-length
// varint once the block's final count is known.
const blockCountReserve = 2

// spliceVarint replaces buf[start:end] with v's uvarint encoding, which
// may be shorter or longer than end-start.
func spliceVarint(buf []byte, start, end int, v uint64) []byte {
	enc := wire.AppendUvarint(nil, v)
	tail := append([]byte(nil), buf[end:]...)
	buf = append(buf[:start], enc...)
	return append(buf, tail...)
}

// Assemble bin-packs pending messages from sources, highest priority
// first, into MTU-bound packets. A single message too large to ever fit
// in an otherwise-empty packet (after fragmentation it should never
// happen, but defensively) is dropped with no packet produced for it,
// since channel fragmentation is expected to have already bounded
// message size to the channel's FragmentSize.
//
// forceAck, per spec.md §4.3 ("emit at least one packet per flush if
// acks are outstanding"), makes Assemble emit a single header-only
// packet when sources carry no messages at all, instead of producing
// nothing; callers pass true whenever a packet has arrived since the
// last flush and its ack info hasn't been relayed back yet.
//
// allocId is called once per packet produced, in order, to obtain its
// PacketId.
func Assemble(sources []Source, tick wire.Tick, latestAck wire.PacketId, ackBits uint32, mtu int, allocId func() wire.PacketId, forceAck bool) []Assembled {
	ordered := make([]Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	var packets []Assembled
	var curBuf []byte
	var curEntries []SentEntry
	curChannel := ChannelId(255)
	haveOpenBlock := false
	var blockCountOffset int
	var blockCount int

	flushChannelBlock := func() {
		if !haveOpenBlock {
			return
		}
		curBuf = spliceVarint(curBuf, blockCountOffset, blockCountOffset+blockCountReserve, uint64(blockCount))
		haveOpenBlock = false
	}

	startPacket := func() {
		curBuf = make([]byte, wire.PacketHeaderSize)
		curEntries = nil
		curChannel = ChannelId(255)
		haveOpenBlock = false
		blockCount = 0
	}

	finishPacket := func() {
		flushChannelBlock()
		if len(curBuf) <= wire.PacketHeaderSize {
			return // nothing but the header: don't emit an empty packet
		}
		id := allocId()
		h := wire.PacketHeader{
			Type:      wire.PacketTypeData,
			PacketId:  id,
			Tick:      tick,
			LatestAck: latestAck,
			AckBits:   ackBits,
		}
		var hdrBuf [wire.PacketHeaderSize]byte
		h.Encode(hdrBuf[:0])
		copy(curBuf[:wire.PacketHeaderSize], hdrBuf[:])
		packets = append(packets, Assembled{PacketId: id, Bytes: curBuf, Entries: curEntries})
	}

	startPacket()

	for _, src := range ordered {
		channelHeaderSize := len(wire.AppendUvarint(nil, uint64(src.ChannelId))) + blockCountReserve

		for _, msg := range src.Messages {
			encoded := msg.Header.Encode(nil)
			encoded = append(encoded, msg.Payload...)
			lengthPrefix := wire.AppendUvarint(nil, uint64(len(encoded)))
			msgSize := len(lengthPrefix) + len(encoded)

			if wire.PacketHeaderSize+channelHeaderSize+msgSize > mtu {
				continue // can't fit even alone in a fresh packet
			}

			needsNewChannelBlock := !haveOpenBlock || src.ChannelId != curChannel
			extra := msgSize
			if needsNewChannelBlock {
				extra += channelHeaderSize
			}

			isFragment := msg.Header.Flags.Has(wire.FlagIsFragment)
			if (len(curBuf)+extra > mtu || isFragment) && len(curBuf) > wire.PacketHeaderSize {
				finishPacket()
				startPacket()
				needsNewChannelBlock = true
			}

			if needsNewChannelBlock {
				flushChannelBlock()
				curBuf = wire.AppendUvarint(curBuf, uint64(src.ChannelId))
				blockCountOffset = len(curBuf)
				curBuf = append(curBuf, make([]byte, blockCountReserve)...)
				blockCount = 0
				haveOpenBlock = true
				curChannel = src.ChannelId
			}

			curBuf = append(curBuf, lengthPrefix...)
			curBuf = append(curBuf, encoded...)
			blockCount++
			if msg.Header.Flags.Has(wire.FlagHasId) {
				curEntries = append(curEntries, SentEntry{ChannelId: uint8(src.ChannelId), MessageId: msg.MessageId})
			}
			if isFragment {
				// A fragment travels alone: close its packet here.
				finishPacket()
				startPacket()
			}
		}
	}
	finishPacket()

	if len(packets) == 0 && forceAck {
		id := allocId()
		h := wire.PacketHeader{
			Type:      wire.PacketTypeData,
			PacketId:  id,
			Tick:      tick,
			LatestAck: latestAck,
			AckBits:   ackBits,
		}
		buf := make([]byte, wire.PacketHeaderSize)
		h.Encode(buf[:0])
		packets = append(packets, Assembled{PacketId: id, Bytes: buf})
	}

	return packets
}

// ChannelMessage pairs a decoded message header/payload with the channel
// it arrived on, the unit Disassemble yields to the caller.
type ChannelMessage struct {
	ChannelId ChannelId
	Header    wire.MessageHeader
	Payload   []byte
}

// Disassemble parses a packet's channel blocks back into individual
// messages, after the caller has already stripped and decoded the
// PacketHeader.
func Disassemble(body []byte) ([]ChannelMessage, error) {
	var out []ChannelMessage
	for len(body) > 0 {
		chIDVal, n, err := wire.ReadUvarint(body)
		if err != nil {
			return out, err
		}
		chID := ChannelId(chIDVal)
		body = body[n:]

		count, n, err := wire.ReadUvarint(body)
		if err != nil {
			return out, err
		}
		body = body[n:]

		for i := uint64(0); i < count; i++ {
			size, n, err := wire.ReadUvarint(body)
			if err != nil {
				return out, err
			}
			body = body[n:]
			if uint64(len(body)) < size {
				return out, wire.ErrTruncated
			}
			msgBuf := body[:size]
			body = body[size:]

			h, consumed, err := wire.DecodeMessageHeader(msgBuf)
			if err != nil {
				return out, err
			}
			out = append(out, ChannelMessage{ChannelId: chID, Header: h, Payload: msgBuf[consumed:]})
		}
	}
	return out, nil
}
