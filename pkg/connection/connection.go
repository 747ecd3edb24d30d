package connection

import (
	"time"

	"github.com/appnet-org/netsync/internal/logging"
	"github.com/appnet-org/netsync/pkg/channel"
	"github.com/appnet-org/netsync/pkg/config"
	"github.com/appnet-org/netsync/pkg/netmetrics"
	"github.com/appnet-org/netsync/pkg/packet"
	"github.com/appnet-org/netsync/pkg/ping"
	"github.com/appnet-org/netsync/pkg/sync"
	"github.com/appnet-org/netsync/pkg/tick"
	"github.com/appnet-org/netsync/pkg/transport"
	"github.com/appnet-org/netsync/pkg/wire"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// controlChannelId is reserved for the connection's own ping/pong
// traffic; application channels are numbered starting at 1 (see
// chanEntry.id = index+1 in New).
const controlChannelId = 0

type chanEntry struct {
	id       uint8
	priority int
	mode     channel.Mode
	sender   channel.Sender
	receiver channel.Receiver
	cfg      channel.Config
}

// Connection drives one peer's channel multiplexer, packet assembler,
// ping/RTT estimate, and (client-side) sync manager through the fixed
// phase order receive -> apply -> user -> produce -> send. It owns no
// goroutines and no locks: Step is the only entry point that mutates
// state, mirroring the single-threaded cooperative model in SPEC_FULL.md
// §5. Background I/O (the transport's own reader goroutine, if any)
// communicates with Step only through transport.Transport's non-blocking
// Recv/Events.
type Connection struct {
	cfg      config.Config
	trans    transport.Transport
	peer     transport.RemoteAddr
	state    State
	channels []chanEntry

	ackTracker *packet.AckTracker
	pingMgr    *ping.Manager
	tickMgr    *tick.Manager
	syncMgr    *sync.Manager // nil on server-side connections

	nextPacketId wire.PacketId
	events       []Event

	lastPacketRecv time.Time
	haveRecvAny    bool

	// ackPending is set whenever a packet arrives whose ack info hasn't
	// yet been relayed back in an outgoing packet, and cleared once
	// flush emits one. Forces a header-only packet through when nothing
	// else needs sending, per spec.md §4.3.
	ackPending bool

	repl      ReplicationBinding
	replBound bool

	lastInterpTick  wire.Tick
	lastPredTick    wire.Tick
	haveSyncTargets bool

	metrics       *netmetrics.Metrics
	clientIdLabel string
	lastAckBits   uint32

	failed error
}

// New constructs a Connection in the Disconnected state, wired to trans
// and cfg. Channels are numbered 1..len(cfg.Channels) in configuration
// order; channel 0 is reserved for ping/pong control traffic.
func New(cfg config.Config, trans transport.Transport) *Connection {
	c := &Connection{
		cfg:        cfg,
		trans:      trans,
		ackTracker: packet.NewAckTracker(),
		pingMgr:    ping.NewManager(ping.Config{Interval: cfg.PingInterval, Timeout: cfg.PingTimeout}),
		tickMgr:    tick.NewManager(cfg.TickDuration),
	}
	if cfg.Mode == config.Client || cfg.Mode == config.HostServer {
		c.syncMgr = sync.NewManager(sync.Config{
			TickDuration:           cfg.TickDuration,
			SnapThresholdTicks:     cfg.SyncSnapThresholdTicks,
			MaxRelativeSpeedDelta:  cfg.SyncMaxRelativeSpeedDelta,
			InputDelayTicks:        cfg.PredictionInputDelayTicks,
			InterpDelayMin:         time.Duration(cfg.InterpolationDelayTicksMin) * cfg.TickDuration,
			InterpJitterMultiplier: cfg.InterpolationJitterMultiplier,
		})
	}

	c.channels = append(c.channels, chanEntry{
		id:       controlChannelId,
		priority: -1,
		mode:     channel.UnreliableUnordered,
		sender:   channel.NewUnreliableSender(channel.UnreliableUnordered),
		receiver: channel.NewUnreliableUnorderedReceiver(),
	})

	for i, spec := range cfg.Channels {
		id := uint8(i + 1)
		chCfg := spec.Reliable
		if chCfg.FragmentSize == 0 {
			chCfg = channel.DefaultConfig(spec.Mode)
		} else {
			chCfg.Mode = spec.Mode
		}
		e := chanEntry{id: id, priority: i, mode: spec.Mode, cfg: chCfg}
		switch spec.Mode {
		case channel.UnreliableUnordered:
			e.sender = channel.NewUnreliableSender(spec.Mode)
			e.receiver = channel.NewUnreliableUnorderedReceiver()
		case channel.UnreliableSequenced:
			e.sender = channel.NewUnreliableSender(spec.Mode)
			e.receiver = channel.NewSequencedReceiver()
		case channel.ReliableUnordered:
			e.sender = channel.NewReliableSender(chCfg)
			e.receiver = channel.NewReliableUnorderedReceiver(chCfg)
		case channel.ReliableOrdered:
			e.sender = channel.NewReliableSender(chCfg)
			e.receiver = channel.NewReliableOrderedReceiver(chCfg)
		case channel.TickBuffered:
			e.sender = channel.NewTickBufferedSender(chCfg, c.tickMgr.Current)
			e.receiver = channel.NewTickBufferedReceiver(chCfg, int(cfg.PredictionMaxReplayTicks))
		}
		c.channels = append(c.channels, e)
	}

	return c
}

// State returns the connection's current state.
func (c *Connection) State() State { return c.state }

// Failed returns the error that caused the connection to fail, if any.
func (c *Connection) Failed() error { return c.failed }

// Connect transitions Disconnected -> Connecting and asks the transport
// to begin connecting to addr with the given (opaque) connect token.
func (c *Connection) Connect(addr transport.RemoteAddr, token []byte) error {
	c.peer = addr
	c.state = Connecting
	return c.trans.Connect(addr, token)
}

// Channel returns the sender/receiver pair for application channel id
// (1-based, matching cfg.Channels order), or ok=false if out of range.
// id 0 returns the reserved control channel.
func (c *Connection) Channel(id uint8) (channel.Sender, channel.Receiver, bool) {
	for _, e := range c.channels {
		if e.id == id {
			return e.sender, e.receiver, true
		}
	}
	return nil, nil, false
}

// PushEvent lets other subsystems (replication, prediction) enqueue
// events onto this connection's outbound stream, so callers only ever
// poll one place.
func (c *Connection) PushEvent(ev Event) { c.events = append(c.events, ev) }

// PollEvents drains and returns events accumulated since the last call.
func (c *Connection) PollEvents() []Event {
	if len(c.events) == 0 {
		return nil
	}
	out := c.events
	c.events = nil
	return out
}

// RTT returns the current smoothed round-trip-time estimate.
func (c *Connection) RTT() time.Duration { return c.pingMgr.RTT() }

// Sync returns the client-side sync manager, or nil on a pure server
// connection.
func (c *Connection) Sync() *sync.Manager { return c.syncMgr }

// PredictionTick returns T_pred (SPEC_FULL.md §4.7), the tick a predicted
// entity should currently be simulated/replayed to, last recomputed on
// the most recent pong. ok is false on a pure server connection or
// before the first pong has arrived.
func (c *Connection) PredictionTick() (tick wire.Tick, ok bool) {
	if c.syncMgr == nil || !c.haveSyncTargets {
		return 0, false
	}
	return c.lastPredTick, true
}

// InterpolationTick returns T_interp (SPEC_FULL.md §4.7), the tick
// interpolated entities should currently be rendered at, last recomputed
// on the most recent pong. ok is false on a pure server connection or
// before the first pong has arrived.
func (c *Connection) InterpolationTick() (tick wire.Tick, ok bool) {
	if c.syncMgr == nil || !c.haveSyncTargets {
		return 0, false
	}
	return c.lastInterpTick, true
}

// Tick returns the connection's tick manager.
func (c *Connection) Tick() *tick.Manager { return c.tickMgr }

// Step advances the connection through receive -> apply -> produce ->
// send for one frame. User systems run between apply and produce, driven
// by the caller reading Channel(...).Poll() and enqueueing via
// Channel(...).Enqueue between two Step calls.
// Replication, if bound via BindReplication, is dispatched and produced
// automatically as part of apply and produce respectively, since its
// actions/updates channels are core-owned, not user channels.
func (c *Connection) Step(now time.Time) {
	if c.state == Disconnected {
		return
	}
	c.receive(now)
	if c.state == Disconnected {
		return
	}
	c.applyReplication(now)
	c.gc(now)
	c.maybePing(now)
	c.checkTimeouts(now)
	if c.state == Disconnected {
		return
	}
	c.produceReplication(now)
	c.flush(now)
	c.observeMetrics(now)
}

func (c *Connection) receive(now time.Time) {
	for {
		ev, ok := c.trans.Events()
		if !ok {
			break
		}
		switch ev.Kind {
		case transport.EventConnected:
			c.state = Connected
			c.PushEvent(ConnectEvent{})
		case transport.EventDisconnected:
			c.Disconnect(ErrTransportClosed)
			return
		}
	}

	for {
		pkt, ok := c.trans.Recv()
		if !ok {
			break
		}
		if err := c.handlePacket(now, pkt.Data); err != nil {
			logging.Debug("dropping malformed packet", zap.Error(err))
			continue
		}
	}
}

func (c *Connection) handlePacket(now time.Time, data []byte) error {
	h, consumed, err := wire.DecodePacketHeader(data)
	if err != nil {
		return err // decode error: absorbed, packet dropped
	}
	c.haveRecvAny = true
	c.lastPacketRecv = now
	c.ackPending = true
	c.recordAckBits(h)

	c.ackTracker.OnPacketReceived(h.PacketId)
	for _, retired := range c.ackTracker.OnAckedHeader(h) {
		if sender, _, ok := c.Channel(retired.ChannelId); ok {
			sender.OnAck(retired.MessageId)
		}
	}

	msgs, err := packet.Disassemble(data[consumed:])
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if uint8(m.ChannelId) == controlChannelId {
			c.handleControlMessage(now, m.Payload)
			continue
		}
		if _, recv, ok := c.Channel(uint8(m.ChannelId)); ok {
			recv.Receive(now, m.Header, m.Payload)
		}
	}
	return nil
}

func (c *Connection) gc(now time.Time) {
	rtt := c.pingMgr.RTT()
	for _, e := range c.channels {
		e.receiver.GC(now, rtt)
	}
}

func (c *Connection) checkTimeouts(now time.Time) {
	if c.haveRecvAny && now.Sub(c.lastPacketRecv) > c.cfg.ConnectionTimeout {
		c.Disconnect(ErrTransportClosed)
		return
	}
	for _, e := range c.channels {
		if !e.mode.Reliable() {
			continue
		}
		max := e.cfg.MaxOutstanding
		if max == 0 {
			max = channel.DefaultMaxOutstandingReliable
		}
		if e.sender.Outstanding() > max {
			c.Disconnect(&ErrReliableOutstandingExceeded{ChannelId: e.id, Outstanding: e.sender.Outstanding(), Max: max})
			return
		}
	}
}

func (c *Connection) flush(now time.Time) {
	rtt := c.pingMgr.RTT()
	sources := make([]packet.Source, 0, len(c.channels))
	for _, e := range c.channels {
		msgs := e.sender.Collect(now, rtt)
		if len(msgs) == 0 {
			continue
		}
		sources = append(sources, packet.Source{ChannelId: packet.ChannelId(e.id), Priority: e.priority, Messages: msgs})
	}
	if len(sources) == 0 && !c.ackPending {
		return
	}

	latestAck, ackBits := c.ackTracker.Header()
	mtu := c.trans.MTU()
	if mtu == 0 {
		mtu = c.cfg.PacketMTU
	}
	allocId := func() wire.PacketId { id := c.nextPacketId; c.nextPacketId++; return id }

	assembled := packet.Assemble(sources, c.tickMgr.Current(), latestAck, ackBits, mtu, allocId, c.ackPending)
	c.ackPending = false
	for _, p := range assembled {
		c.ackTracker.RecordSent(p.PacketId, p.Entries)
		if err := c.trans.Send(c.peer, p.Bytes); err != nil {
			c.Disconnect(ErrTransportClosed)
			return
		}
	}
}

// Disconnect tears the connection down: drops pending outbound state,
// frees per-peer resources, and emits a DisconnectEvent. Terminal
// Disconnected is re-entrant, matching SPEC_FULL.md's peer state
// machine.
func (c *Connection) Disconnect(reason error) {
	if c.state == Disconnected {
		return
	}
	c.state = Disconnected
	c.failed = reason

	var teardownErr error
	if err := c.trans.Close(); err != nil {
		teardownErr = multierr.Append(teardownErr, err)
	}
	if teardownErr != nil {
		logging.Warn("connection teardown encountered errors", zap.Error(teardownErr))
	}

	c.channels = nil
	if c.metrics != nil {
		c.metrics.Forget(c.clientIdLabel)
	}
	c.PushEvent(DisconnectEvent{Reason: reason})
}
