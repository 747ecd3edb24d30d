package channel

import (
	"time"

	"github.com/appnet-org/netsync/pkg/wire"
)

// DefaultFragmentSize is the maximum payload bytes carried by a single
// fragment before a message must be split across several.
const DefaultFragmentSize = 1024

// DefaultMaxOutstandingReliable bounds how many unacknowledged reliable
// messages a sender may hold before the connection is failed.
const DefaultMaxOutstandingReliable = 1024

// DefaultReassemblyTimeoutRTTs is how many RTT units a partially reassembled
// fragmented message is kept before being discarded.
const DefaultReassemblyTimeoutRTTs = 3

// Config tunes a single channel instance. Zero value is invalid; use
// DefaultConfig.
type Config struct {
	Mode Mode

	FragmentSize int

	// MaxOutstanding bounds in-flight reliable messages for this channel.
	MaxOutstanding int

	// RTTMultiplier and JitterMargin compute the retransmit delay:
	// now-last_sent >= rtt*RTTMultiplier + JitterMargin.
	RTTMultiplier float64
	JitterMargin  time.Duration

	// ReassemblyTimeoutRTTs * current RTT bounds how long a partial
	// fragment reassembly is kept before being dropped.
	ReassemblyTimeoutRTTs float64
}

// DefaultConfig returns the spec's default tuning for mode.
func DefaultConfig(mode Mode) Config {
	return Config{
		Mode:                  mode,
		FragmentSize:          DefaultFragmentSize,
		MaxOutstanding:        DefaultMaxOutstandingReliable,
		RTTMultiplier:         1.5,
		JitterMargin:          0,
		ReassemblyTimeoutRTTs: DefaultReassemblyTimeoutRTTs,
	}
}

// OutgoingMessage is a message ready to be packed into a packet by the
// packet assembler.
type OutgoingMessage struct {
	Header  wire.MessageHeader
	Payload []byte

	// MessageId is the logical message this fragment (or whole message)
	// belongs to, used by the assembler to record retire-on-ack
	// bookkeeping. Equal to Header.Id when Header.Flags has FlagHasId.
	MessageId wire.MessageId
}

// Sender accepts outbound application payloads and, once per send
// opportunity, yields the wire messages that should go into the next
// packet.
type Sender interface {
	// Enqueue schedules payload for delivery and returns the message id it
	// will carry (reliable and sequenced modes) or the zero value
	// (UnreliableUnordered, which carries no identity).
	Enqueue(payload []byte) wire.MessageId

	// Collect returns messages ready to be sent at time now, including any
	// reliable messages due for retransmission, given the channel's
	// current RTT estimate.
	Collect(now time.Time, rtt time.Duration) []OutgoingMessage

	// OnAck notifies the sender that a previously sent message was
	// acknowledged, so it stops being retransmitted.
	OnAck(id wire.MessageId)

	// Outstanding returns the number of unacknowledged reliable messages.
	Outstanding() int
}

// Receiver consumes wire messages arriving on a channel and buffers them
// until they may be delivered to the application per the channel's
// ordering guarantee.
type Receiver interface {
	// Receive buffers an incoming message (fragment or whole).
	Receive(now time.Time, header wire.MessageHeader, payload []byte)

	// Poll returns messages ready for application delivery, in the order
	// the channel guarantees, removing them from internal buffers.
	Poll() [][]byte

	// GC evicts stale partial fragment reassemblies older than the
	// channel's reassembly timeout.
	GC(now time.Time, rtt time.Duration)
}

// TaggedMessage pairs a polled payload with the MessageId it was
// delivered under, and the wire Tick it carried if the channel stamps
// one (TickBuffered; HasTick is false for channels that don't).
type TaggedMessage struct {
	Id      wire.MessageId
	Payload []byte
	Tick    wire.Tick
	HasTick bool
}

// IdentifiedReceiver is satisfied by receivers that can report each
// polled payload's MessageId, for callers that need to correlate
// delivery back to the reliable stream (replication actions, tagged by
// the id the receiver assigns on delivery).
type IdentifiedReceiver interface {
	Receiver
	PollTagged() []TaggedMessage
}
