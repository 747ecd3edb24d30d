package connection

import (
	"encoding/binary"
	"time"

	"github.com/appnet-org/netsync/pkg/sync"
	"github.com/appnet-org/netsync/pkg/wire"
)

// Control message kinds carried on controlChannelId. The wire format is
// deliberately tiny and fixed-size: a kind byte, a 4-byte ping id, and the
// sender's current tick, all little-endian.
const (
	controlKindPing byte = iota
	controlKindPong
)

const controlPayloadSize = 1 + 4 + 2

func encodeControlMessage(kind byte, pingId uint32, tick wire.Tick) []byte {
	buf := make([]byte, controlPayloadSize)
	buf[0] = kind
	binary.LittleEndian.PutUint32(buf[1:5], pingId)
	binary.LittleEndian.PutUint16(buf[5:7], uint16(tick))
	return buf
}

func decodeControlMessage(buf []byte) (kind byte, pingId uint32, tick wire.Tick, ok bool) {
	if len(buf) < controlPayloadSize {
		return 0, 0, 0, false
	}
	return buf[0], binary.LittleEndian.Uint32(buf[1:5]), wire.Tick(binary.LittleEndian.Uint16(buf[5:7])), true
}

// maybePing sends a ping on the control channel if the ping manager's
// interval has elapsed, and fails the connection if the peer has gone
// unresponsive past the configured timeout.
func (c *Connection) maybePing(now time.Time) {
	if c.pingMgr.TimedOut(now) {
		c.Disconnect(ErrTransportClosed)
		return
	}
	if !c.pingMgr.ShouldPing(now) {
		return
	}
	id := c.pingMgr.SendPing(now)
	sender, _, ok := c.Channel(controlChannelId)
	if !ok {
		return
	}
	sender.Enqueue(encodeControlMessage(controlKindPing, id, c.tickMgr.Current()))
}

func (c *Connection) handleControlMessage(now time.Time, payload []byte) {
	kind, pingId, tick, ok := decodeControlMessage(payload)
	if !ok {
		return
	}
	switch kind {
	case controlKindPing:
		sender, _, ok := c.Channel(controlChannelId)
		if !ok {
			return
		}
		sender.Enqueue(encodeControlMessage(controlKindPong, pingId, c.tickMgr.Current()))
	case controlKindPong:
		rtt, ok := c.pingMgr.OnPong(now, pingId, tick)
		if !ok {
			return
		}
		if c.syncMgr == nil {
			return
		}
		c.syncMgr.OnPong(tick)
		if ev := c.syncMgr.Reconcile(c.tickMgr.Current(), rtt, 0); ev != nil {
			if ev.Kind == sync.TickEventSnap {
				c.tickMgr.Set(ev.NewTick)
			}
			c.PushEvent(TickEvent{Kind: ev.Kind, NewTick: ev.NewTick, SpeedDelta: ev.SpeedDelta})
		}

		jitter := c.pingMgr.Jitter()
		c.lastPredTick = c.syncMgr.PredictionTick(rtt, 0)
		c.lastInterpTick = c.syncMgr.InterpolationTick(jitter, 0)
		c.haveSyncTargets = true
	}
}
