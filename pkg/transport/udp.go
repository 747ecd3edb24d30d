package transport

import (
	"net"
	"sync"

	"github.com/appnet-org/netsync/internal/logging"
	"go.uber.org/zap"
)

// UDPAddr wraps net.UDPAddr to satisfy RemoteAddr.
type UDPAddr struct{ *net.UDPAddr }

func (a UDPAddr) String() string { return a.UDPAddr.String() }

// UDPTransport is the reference transport: a UDP socket fed by a
// background reader goroutine into a lock-free queue, so the core's
// Recv never blocks. Grounded on the teacher's UDPTransport
// (pkg/transport/transport.go), which pairs a *net.UDPConn with handler
// chains; here the handler-chain/codec-registry machinery is dropped
// since the core already owns packet decoding (pkg/packet), and the
// blocking ReadFromUDP loop is pushed into the same kind of background
// goroutine the teacher's rpc.Client.receiveLoop runs, writing into a
// channel instead of dispatching to pending-call maps.
type UDPTransport struct {
	conn *net.UDPConn
	mtu  int

	packets chan Packet
	events  chan Event

	closeOnce sync.Once
	closed    chan struct{}
}

// NewUDPTransport binds a UDP socket at address and starts its background
// reader. mtu is the path MTU to report (DefaultMTU if 0).
func NewUDPTransport(address string, mtu int) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	if mtu == 0 {
		mtu = DefaultMTU
	}

	t := &UDPTransport{
		conn:    conn,
		mtu:     mtu,
		packets: make(chan Packet, 1024),
		events:  make(chan Event, 16),
		closed:  make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *UDPTransport) readLoop() {
	buf := make([]byte, 65535)
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.closed:
				return
			default:
			}
			logging.Warn("udp transport read error", zap.Error(err))
			t.emitEvent(Event{Kind: EventDisconnected, Reason: err.Error()})
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case t.packets <- Packet{Addr: UDPAddr{addr}, Data: data}:
		default:
			logging.Warn("udp transport packet queue full, dropping datagram")
		}
	}
}

func (t *UDPTransport) emitEvent(ev Event) {
	select {
	case t.events <- ev:
	default:
		logging.Warn("udp transport event queue full, dropping event")
	}
}

func (t *UDPTransport) Send(addr RemoteAddr, data []byte) error {
	ua, ok := addr.(UDPAddr)
	if !ok {
		resolved, err := net.ResolveUDPAddr("udp", addr.String())
		if err != nil {
			return err
		}
		ua = UDPAddr{resolved}
	}
	_, err := t.conn.WriteToUDP(data, ua.UDPAddr)
	return err
}

func (t *UDPTransport) Recv() (Packet, bool) {
	select {
	case p := <-t.packets:
		return p, true
	default:
		return Packet{}, false
	}
}

func (t *UDPTransport) Events() (Event, bool) {
	select {
	case ev := <-t.events:
		return ev, true
	default:
		return Event{}, false
	}
}

func (t *UDPTransport) MTU() int { return t.mtu }

// Connect emits EventConnected for addr immediately, without resolving or
// contacting it; real
// bearer-token validation lives outside the core, per SPEC_FULL.md's
// handshake section — the core only ever observes the resulting event.
func (t *UDPTransport) Connect(addr RemoteAddr, token []byte) error {
	t.emitEvent(Event{Kind: EventConnected, Addr: addr})
	return nil
}

func (t *UDPTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return t.conn.Close()
}
