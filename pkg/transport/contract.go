// Package transport defines the non-blocking packet transport contract the
// core depends on, and ships one concrete reference implementation
// (UDPTransport) plus an in-process loopback (LocalTransport) for
// HostServer mode.
package transport

import "time"

// DefaultMTU is used when a transport cannot report its own MTU.
const DefaultMTU = 1200

// RemoteAddr identifies a peer at the transport layer. Concrete
// transports supply their own representation (e.g. a UDP address
// string); the core only ever compares it for equality and uses it as a
// map key.
type RemoteAddr interface {
	String() string
}

// EventKind distinguishes the two connection-event types a transport may
// report.
type EventKind uint8

const (
	EventConnected EventKind = iota
	EventDisconnected
)

// Event is one entry in a transport's connection-event stream.
type Event struct {
	Kind   EventKind
	Addr   RemoteAddr
	Reason string // populated for EventDisconnected
}

// Packet is one datagram read from the transport.
type Packet struct {
	Addr RemoteAddr
	Data []byte
}

// PacketSender is the best-effort, non-blocking send half of a transport.
type PacketSender interface {
	// Send enqueues data for delivery to addr. It never blocks and never
	// guarantees delivery; failures surface as transport errors or
	// silently as loss, exactly like a real UDP socket.
	Send(addr RemoteAddr, data []byte) error
}

// PacketReceiver is the non-blocking receive half of a transport.
type PacketReceiver interface {
	// Recv returns the next packet currently available, or ok=false if
	// none is queued. It never blocks.
	Recv() (Packet, bool)

	// Events returns connection events currently available, or ok=false
	// if none is queued. It never blocks.
	Events() (Event, bool)
}

// Transport is the full contract the core depends on: non-blocking
// send/recv plus an MTU query and a teardown hook.
type Transport interface {
	PacketSender
	PacketReceiver

	// MTU returns the path MTU this transport can carry, or DefaultMTU if
	// unknown.
	MTU() int

	// Connect asks the transport to begin connecting to addr, presenting
	// token (an opaque connect-token blob; the core never inspects it).
	Connect(addr RemoteAddr, token []byte) error

	// Close tears down the transport and releases its resources.
	Close() error
}

// Clock abstracts time.Now so transports and the core can be driven
// deterministically in tests.
type Clock func() time.Time

// RealClock is the default Clock.
func RealClock() time.Time { return time.Now() }
