// Package wire implements netsync's binary protocol: varint and zig-zag
// integer encoding, the 16-bit wrapping id types shared by every channel and
// the connection, and the packet/message header layouts that ride on top of
// them.
package wire

// MessageId identifies a message within a single channel's send/recv stream.
// It wraps at 2^16 and must always be compared with Less/After, never with
// plain < or >.
type MessageId uint16

// PacketId identifies a transmitted packet. Wraps at 2^16 like MessageId.
type PacketId uint16

// Tick identifies a simulation step. Wraps at 2^16 like MessageId.
type Tick uint16

// wrap16Less reports whether a precedes b on the 16-bit wrapping number
// line: a < b iff (b-a) mod 2^16 is in (0, 2^15].
func wrap16Less(a, b uint16) bool {
	d := uint16(b - a)
	return d > 0 && d <= 0x8000
}

// Less reports whether id precedes other, honoring 16-bit wraparound.
func (id MessageId) Less(other MessageId) bool { return wrap16Less(uint16(id), uint16(other)) }

// After reports whether id follows other, honoring 16-bit wraparound.
func (id MessageId) After(other MessageId) bool { return wrap16Less(uint16(other), uint16(id)) }

func (id PacketId) Less(other PacketId) bool  { return wrap16Less(uint16(id), uint16(other)) }
func (id PacketId) After(other PacketId) bool { return wrap16Less(uint16(other), uint16(id)) }

func (t Tick) Less(other Tick) bool  { return wrap16Less(uint16(t), uint16(other)) }
func (t Tick) After(other Tick) bool { return wrap16Less(uint16(other), uint16(t)) }

// Diff returns the signed wrapping distance other-t, in [-2^15, 2^15).
func (t Tick) Diff(other Tick) int32 {
	return int32(int16(uint16(other) - uint16(t)))
}
