package connection

import (
	"time"

	"github.com/appnet-org/netsync/internal/logging"
	"github.com/appnet-org/netsync/pkg/channel"
	"github.com/appnet-org/netsync/pkg/replication"
	"github.com/appnet-org/netsync/pkg/wire"
	"go.uber.org/zap"
)

// ReplicationBinding wires this connection's reserved actions/updates
// channels to a replication Sender/Receiver pair, turning
// buffer_replication_messages(tick) and incoming action/update dispatch
// (spec.md §4.4) from no-ops into real calls. Either side may be nil: a
// pure client only binds a Receiver, a pure server with no loopback
// client only binds a Sender.
type ReplicationBinding struct {
	ActionsChannelId uint8
	UpdatesChannelId uint8

	World    replication.WorldView // required when Sender != nil
	Mapper   *replication.EntityMapper
	Sender   *replication.Sender
	Receiver *replication.Receiver
}

// BindReplication attaches b to the connection. Call it once after New,
// before the first Step.
func (c *Connection) BindReplication(b ReplicationBinding) {
	c.repl = b
	c.replBound = true
}

// applyReplication drains this connection's actions and updates channels
// into the bound replication Receiver, part of the receive->apply phase.
// Actions carry the MessageId the reliable ordered channel delivered them
// under, since the receiver gates updates on that id (spec.md §4.8).
func (c *Connection) applyReplication(now time.Time) {
	if !c.replBound || c.repl.Receiver == nil {
		return
	}

	if _, recv, ok := c.Channel(c.repl.ActionsChannelId); ok {
		idRecv, ok := recv.(channel.IdentifiedReceiver)
		if ok {
			for _, tm := range idRecv.PollTagged() {
				c.dispatchReplicationAction(tm.Id, tm.Payload)
			}
		}
	}

	if _, recv, ok := c.Channel(c.repl.UpdatesChannelId); ok {
		for _, raw := range recv.Poll() {
			if err := c.repl.Receiver.HandleUpdate(raw); err != nil {
				logging.Debug("dropping malformed replication update", zap.Error(err))
			}
		}
	}
}

// dispatchReplicationAction decodes one action just far enough to emit
// the matching EntitySpawnEvent/EntityDespawnEvent (spec.md §7) around
// the receiver's own handling, which does the actual entity-mapping and
// world-sink dispatch.
func (c *Connection) dispatchReplicationAction(id wire.MessageId, raw []byte) {
	a, err := replication.DecodeAction(raw)
	if err != nil {
		logging.Debug("dropping malformed replication action", zap.Error(err))
		return
	}

	var despawnLocal replication.EntityId
	wasMapped := false
	if a.Kind == replication.ActionDespawn && c.repl.Mapper != nil {
		despawnLocal, wasMapped = c.repl.Mapper.Local(a.Entity)
	}

	if err := c.repl.Receiver.HandleAction(id, raw); err != nil {
		logging.Debug("dropping malformed replication action", zap.Error(err))
		return
	}

	switch a.Kind {
	case replication.ActionSpawn:
		if c.repl.Mapper == nil {
			return
		}
		local, ok := c.repl.Mapper.Local(a.Entity)
		if ok {
			c.PushEvent(EntitySpawnEvent{Entity: local, Group: a.Group})
		}
	case replication.ActionDespawn:
		if wasMapped {
			c.PushEvent(EntityDespawnEvent{Entity: despawnLocal})
		}
	}
}

// produceReplication implements spec.md §4.4's
// buffer_replication_messages(tick): it asks the bound Sender to produce
// this tick's action/update batches and enqueues them on the reserved
// replication channels, part of the produce phase (just before send).
func (c *Connection) produceReplication(now time.Time) {
	if !c.replBound || c.repl.Sender == nil || c.repl.World == nil {
		return
	}

	actionsSender, _, ok := c.Channel(c.repl.ActionsChannelId)
	if !ok {
		return
	}
	updatesSender, _, ok := c.Channel(c.repl.UpdatesChannelId)
	if !ok {
		return
	}

	commitAction := func(a replication.Action) wire.MessageId {
		return actionsSender.Enqueue(replication.EncodeAction(a, nil))
	}

	for _, u := range c.repl.Sender.Produce(c.repl.World, c.tickMgr.Current(), commitAction) {
		updatesSender.Enqueue(replication.EncodeUpdate(u, nil))
	}
}
