package transport

// LocalAddr is the RemoteAddr used by LocalTransport's single loopback
// peer.
type LocalAddr string

func (a LocalAddr) String() string { return string(a) }

// LocalTransport is an in-process loopback transport: no socket, no
// serialization, just two Go channels wired back to back. It grounds
// HostServer mode, where the server's own loopback client is driven by
// the same Connection machinery as a real network client but never
// touches a socket. Modeled on original_source's local client/server
// transport (connection/local), re-expressed as a Go channel pair instead
// of a shared-memory queue.
type LocalTransport struct {
	mtu    int
	addr   LocalAddr
	toPeer chan<- Packet
	inbox  <-chan Packet
	events chan Event
}

// NewLocalTransportPair returns two LocalTransports wired to each other:
// sending on one delivers to the other's Recv.
func NewLocalTransportPair(mtu int) (client, server *LocalTransport) {
	if mtu == 0 {
		mtu = DefaultMTU
	}
	c2s := make(chan Packet, 256)
	s2c := make(chan Packet, 256)

	client = &LocalTransport{mtu: mtu, addr: LocalAddr("server"), toPeer: c2s, inbox: s2c, events: make(chan Event, 4)}
	server = &LocalTransport{mtu: mtu, addr: LocalAddr("client"), toPeer: s2c, inbox: c2s, events: make(chan Event, 4)}
	return client, server
}

func (t *LocalTransport) Send(addr RemoteAddr, data []byte) error {
	select {
	case t.toPeer <- Packet{Addr: t.addr, Data: data}:
	default:
	}
	return nil
}

func (t *LocalTransport) Recv() (Packet, bool) {
	select {
	case p := <-t.inbox:
		return p, true
	default:
		return Packet{}, false
	}
}

func (t *LocalTransport) Events() (Event, bool) {
	select {
	case ev := <-t.events:
		return ev, true
	default:
		return Event{}, false
	}
}

func (t *LocalTransport) MTU() int { return t.mtu }

func (t *LocalTransport) Connect(addr RemoteAddr, token []byte) error {
	select {
	case t.events <- Event{Kind: EventConnected, Addr: t.addr}:
	default:
	}
	return nil
}

func (t *LocalTransport) Close() error { return nil }
