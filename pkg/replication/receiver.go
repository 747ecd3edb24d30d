package replication

import "github.com/appnet-org/netsync/pkg/wire"

// DefaultMaxPendingUpdates bounds how many update batches a group may have
// buffered awaiting its spawn action before the oldest is dropped.
const DefaultMaxPendingUpdates = 8

// WorldSink is the simulation-side write interface the receiver drives as
// actions and updates arrive. It never sees remote entity ids, only the
// local ones the Receiver's EntityMapper has already resolved.
type WorldSink interface {
	OnSpawn(local EntityId, group GroupId)
	OnDespawn(local EntityId)
	OnComponentAdd(local EntityId, kind ComponentKind, value any)
	OnComponentRemove(local EntityId, kind ComponentKind)
	OnComponentUpdate(local EntityId, kind ComponentKind, value any, tick wire.Tick)
}

// Receiver applies incoming actions and updates to a WorldSink through an
// EntityMapper, holding updates that arrive before their group's action has
// landed — spec.md §3's invariant that a component is never delivered
// before its entity's spawn.
type Receiver struct {
	registry *Registry
	mapper   *EntityMapper
	sink     WorldSink

	groupActionApplied map[GroupId]wire.MessageId
	pending            map[GroupId][]Update
	maxPending         int
}

// NewReceiver returns a Receiver wired to registry, mapper, and sink.
func NewReceiver(registry *Registry, mapper *EntityMapper, sink WorldSink) *Receiver {
	return &Receiver{
		registry:           registry,
		mapper:             mapper,
		sink:               sink,
		groupActionApplied: make(map[GroupId]wire.MessageId),
		pending:            make(map[GroupId][]Update),
		maxPending:         DefaultMaxPendingUpdates,
	}
}

// HandleAction decodes and applies one action from the reliable actions
// channel, in the order that channel guarantees.
func (r *Receiver) HandleAction(id wire.MessageId, raw []byte) error {
	a, err := DecodeAction(raw)
	if err != nil {
		return err
	}

	switch a.Kind {
	case ActionSpawn:
		local := r.mapper.Spawn(a.Entity)
		r.groupActionApplied[a.Group] = id
		r.sink.OnSpawn(local, a.Group)
	case ActionDespawn:
		local, ok := r.mapper.Despawn(a.Entity)
		r.groupActionApplied[a.Group] = id
		if ok {
			r.sink.OnDespawn(local)
		}
		delete(r.pending, a.Group)
		return nil
	case ActionAddComponent:
		local, ok := r.mapper.Local(a.Entity)
		r.groupActionApplied[a.Group] = id
		if !ok {
			break
		}
		entry, ok := r.registry.Lookup(a.ComponentKind)
		if !ok {
			break
		}
		value, err := entry.Codec.Decode(a.ComponentData)
		if err != nil {
			return err
		}
		r.sink.OnComponentAdd(local, a.ComponentKind, value)
	case ActionRemoveComponent:
		local, ok := r.mapper.Local(a.Entity)
		r.groupActionApplied[a.Group] = id
		if ok {
			r.sink.OnComponentRemove(local, a.ComponentKind)
		}
	}

	r.releasePending(a.Group)
	return nil
}

// HandleUpdate decodes an update from the updates channel and either
// applies it immediately (if its group's action has already landed) or
// buffers it to await that action.
func (r *Receiver) HandleUpdate(raw []byte) error {
	u, err := DecodeUpdate(raw)
	if err != nil {
		return err
	}

	applied, ok := r.groupActionApplied[u.Group]
	if ok && !applied.Less(u.ActionId) {
		r.apply(u)
		return nil
	}

	queue := r.pending[u.Group]
	if len(queue) >= r.maxPending {
		queue = queue[1:] // drop oldest; next update or a full resync recovers
	}
	r.pending[u.Group] = append(queue, u)
	return nil
}

func (r *Receiver) releasePending(group GroupId) {
	applied, ok := r.groupActionApplied[group]
	if !ok {
		return
	}
	queue := r.pending[group]
	if len(queue) == 0 {
		return
	}

	var held []Update
	for _, u := range queue {
		if applied.Less(u.ActionId) {
			held = append(held, u)
			continue
		}
		r.apply(u)
	}
	if len(held) == 0 {
		delete(r.pending, group)
	} else {
		r.pending[group] = held
	}
}

func (r *Receiver) apply(u Update) {
	for _, entry := range u.Entries {
		local, ok := r.mapper.Local(entry.Entity)
		if !ok {
			continue
		}
		reg, ok := r.registry.Lookup(entry.Kind)
		if !ok {
			continue
		}
		value, err := reg.Codec.Decode(entry.Data)
		if err != nil {
			continue
		}
		r.sink.OnComponentUpdate(local, entry.Kind, value, u.Tick)
	}
}
