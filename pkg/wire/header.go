package wire

import "encoding/binary"

// PacketType distinguishes control traffic from ordinary channel-bearing
// packets on the wire.
type PacketType uint8

const (
	PacketTypeData PacketType = iota
	PacketTypeKeepAlive
	PacketTypeDisconnect
)

// PacketHeaderSize is the fixed on-wire size of PacketHeader.
const PacketHeaderSize = 1 + 2 + 2 + 2 + 4

// PacketHeader precedes every packet's channel blocks. AckBits, combined
// with LatestAck, is a bitfield over the 32 packet ids preceding LatestAck:
// bit i set means LatestAck-(i+1) was received.
type PacketHeader struct {
	Type      PacketType
	PacketId  PacketId
	Tick      Tick
	LatestAck PacketId
	AckBits   uint32
}

// Encode appends the header's wire representation to buf.
func (h PacketHeader) Encode(buf []byte) []byte {
	var tmp [PacketHeaderSize]byte
	tmp[0] = byte(h.Type)
	binary.LittleEndian.PutUint16(tmp[1:3], uint16(h.PacketId))
	binary.LittleEndian.PutUint16(tmp[3:5], uint16(h.Tick))
	binary.LittleEndian.PutUint16(tmp[5:7], uint16(h.LatestAck))
	binary.LittleEndian.PutUint32(tmp[7:11], h.AckBits)
	return append(buf, tmp[:]...)
}

// DecodePacketHeader reads a PacketHeader from the front of buf, returning
// it along with the number of bytes consumed.
func DecodePacketHeader(buf []byte) (PacketHeader, int, error) {
	if len(buf) < PacketHeaderSize {
		return PacketHeader{}, 0, ErrTruncated
	}
	h := PacketHeader{
		Type:      PacketType(buf[0]),
		PacketId:  PacketId(binary.LittleEndian.Uint16(buf[1:3])),
		Tick:      Tick(binary.LittleEndian.Uint16(buf[3:5])),
		LatestAck: PacketId(binary.LittleEndian.Uint16(buf[5:7])),
		AckBits:   binary.LittleEndian.Uint32(buf[7:11]),
	}
	return h, PacketHeaderSize, nil
}

// Acked reports whether id is represented as received in the header's ack
// bitfield (either the latest-acked id itself or one of the 32 preceding).
func (h PacketHeader) Acked(id PacketId) bool {
	if id == h.LatestAck {
		return true
	}
	if h.LatestAck.Less(id) {
		return false
	}
	diff := uint16(h.LatestAck) - uint16(id)
	if diff == 0 || diff > 32 {
		return false
	}
	return h.AckBits&(1<<(diff-1)) != 0
}
