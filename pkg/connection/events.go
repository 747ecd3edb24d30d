package connection

import (
	"github.com/appnet-org/netsync/pkg/replication"
	"github.com/appnet-org/netsync/pkg/sync"
	"github.com/appnet-org/netsync/pkg/wire"
)

// Event is the sum type of everything a Connection emits on its outbound
// event stream.
type Event interface{ isEvent() }

// ConnectEvent fires once the transport confirms the connection.
type ConnectEvent struct{}

func (ConnectEvent) isEvent() {}

// DisconnectEvent fires when the connection is torn down, for any
// reason.
type DisconnectEvent struct{ Reason error }

func (DisconnectEvent) isEvent() {}

// EntitySpawnEvent fires when the replication receiver maps a newly
// spawned remote entity to a local one.
type EntitySpawnEvent struct {
	Entity replication.EntityId
	Group  replication.GroupId
}

func (EntitySpawnEvent) isEvent() {}

// EntityDespawnEvent fires when the replication receiver tears down a
// previously spawned entity's mapping.
type EntityDespawnEvent struct {
	Entity replication.EntityId
}

func (EntityDespawnEvent) isEvent() {}

// TickEvent reports a sync-manager clock correction.
type TickEvent struct {
	Kind       sync.TickEventKind
	NewTick    wire.Tick
	SpeedDelta float64
}

func (TickEvent) isEvent() {}
