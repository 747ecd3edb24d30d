package connection

import (
	"math/bits"
	"time"

	"github.com/appnet-org/netsync/pkg/netmetrics"
	"github.com/appnet-org/netsync/pkg/wire"
)

// BindMetrics attaches a shared netmetrics.Metrics registry and this
// connection's client id label to it, turning its RTT/jitter/loss/tick
// drift into a pushed Prometheus sample every Step instead of values
// nobody reads. Call it once after New, before the first Step; a
// Connection with no bound Metrics simply skips observation.
func (c *Connection) BindMetrics(m *netmetrics.Metrics, clientId string) {
	c.metrics = m
	c.clientIdLabel = clientId
}

// observeMetrics pushes one sample of this connection's network health,
// if a Metrics registry is bound. lossRate approximates recent loss from
// the inbound ack bitfield's unset fraction (spec.md §4.1's 32-bit ack
// window), not a true loss-over-time average.
func (c *Connection) observeMetrics(now time.Time) {
	if c.metrics == nil {
		return
	}
	var tickDrift int32
	if c.syncMgr != nil && c.haveSyncTargets {
		tickDrift = c.tickMgr.Current().Diff(c.lastPredTick)
	}
	lossRate := 1 - float64(bits.OnesCount32(c.lastAckBits))/32.0
	c.metrics.Observe(c.clientIdLabel, c.pingMgr.RTT(), c.pingMgr.Jitter(), lossRate, tickDrift)
}

// recordAckBits is called whenever this connection decodes an inbound
// packet header, so observeMetrics always samples the most recent ack
// bitfield rather than a stale one.
func (c *Connection) recordAckBits(h wire.PacketHeader) {
	c.lastAckBits = h.AckBits
}
