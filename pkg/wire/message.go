package wire

import "encoding/binary"

// MessageFlags is a single byte preceding every message on the wire; the
// three low bits select which optional fields follow the flags byte.
type MessageFlags byte

const (
	FlagIsFragment MessageFlags = 1 << iota
	FlagHasId
	FlagHasTick
)

func (f MessageFlags) Has(bit MessageFlags) bool { return f&bit != 0 }

// MessageHeader is the decoded form of a message's flags byte and whatever
// optional fields it selects. ChannelId is carried out-of-band by the
// channel block that contains the message, not by MessageHeader itself.
type MessageHeader struct {
	Flags MessageFlags
	Id    MessageId // valid iff Flags.Has(FlagHasId)
	Tick  Tick       // valid iff Flags.Has(FlagHasTick)

	// Fragment fields, valid iff Flags.Has(FlagIsFragment).
	FragmentOf   MessageId
	FragmentIdx  uint8
	FragmentLast uint8
}

// Encode appends the message header to buf.
func (h MessageHeader) Encode(buf []byte) []byte {
	buf = append(buf, byte(h.Flags))
	if h.Flags.Has(FlagHasId) {
		buf = appendUint16(buf, uint16(h.Id))
	}
	if h.Flags.Has(FlagHasTick) {
		buf = appendUint16(buf, uint16(h.Tick))
	}
	if h.Flags.Has(FlagIsFragment) {
		buf = appendUint16(buf, uint16(h.FragmentOf))
		buf = append(buf, h.FragmentIdx, h.FragmentLast)
	}
	return buf
}

// DecodeMessageHeader reads a MessageHeader from the front of buf.
func DecodeMessageHeader(buf []byte) (MessageHeader, int, error) {
	if len(buf) < 1 {
		return MessageHeader{}, 0, ErrTruncated
	}
	h := MessageHeader{Flags: MessageFlags(buf[0])}
	off := 1

	if h.Flags.Has(FlagHasId) {
		v, n, err := readUint16(buf[off:])
		if err != nil {
			return MessageHeader{}, 0, err
		}
		h.Id = MessageId(v)
		off += n
	}
	if h.Flags.Has(FlagHasTick) {
		v, n, err := readUint16(buf[off:])
		if err != nil {
			return MessageHeader{}, 0, err
		}
		h.Tick = Tick(v)
		off += n
	}
	if h.Flags.Has(FlagIsFragment) {
		v, n, err := readUint16(buf[off:])
		if err != nil {
			return MessageHeader{}, 0, err
		}
		h.FragmentOf = MessageId(v)
		off += n
		if len(buf) < off+2 {
			return MessageHeader{}, 0, ErrTruncated
		}
		h.FragmentIdx = buf[off]
		h.FragmentLast = buf[off+1]
		off += 2
	}
	return h, off, nil
}

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func readUint16(buf []byte) (uint16, int, error) {
	if len(buf) < 2 {
		return 0, 0, ErrTruncated
	}
	return binary.LittleEndian.Uint16(buf[:2]), 2, nil
}
