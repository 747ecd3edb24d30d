// Package replication implements the entity/component diff stream: actions
// (spawn/despawn/add-component/remove-component) carried reliably and in
// order per replication group, and updates carried unreliably and tagged
// with the group's latest action so the receiver can hold them until their
// spawn has landed.
package replication

// EntityId is an opaque handle assigned by the authoritative side. It means
// nothing outside a replication stream; the receiving peer never compares
// it directly against its own local ids, only through an EntityMapper.
type EntityId uint64

// GroupId identifies a ReplicationGroup: a set of entities whose actions
// and updates are serialized together in one per-tick batch. By default an
// entity's group is its own EntityId.
type GroupId uint64

// EntityMapper maintains the bidirectional remote<->local entity mapping
// for one peer, per spec.md §3's "EntityId...core maintains a bidirectional
// mapping remote_entity <-> local_entity per peer." allocLocal lets the
// host application control how local ids are minted (e.g. from its own ECS
// world) without replication needing to know anything about it.
type EntityMapper struct {
	allocLocal    func() EntityId
	remoteToLocal map[EntityId]EntityId
	localToRemote map[EntityId]EntityId
}

// NewEntityMapper returns an empty mapper that mints local ids via
// allocLocal.
func NewEntityMapper(allocLocal func() EntityId) *EntityMapper {
	return &EntityMapper{
		allocLocal:    allocLocal,
		remoteToLocal: make(map[EntityId]EntityId),
		localToRemote: make(map[EntityId]EntityId),
	}
}

// Spawn allocates a fresh local id for remote, or returns the existing one
// if remote was already mapped (a duplicate Spawn is tolerated, not an
// error: at-least-once delivery on the reliable actions channel can
// re-deliver before the ack round-trips back).
func (m *EntityMapper) Spawn(remote EntityId) EntityId {
	if local, ok := m.remoteToLocal[remote]; ok {
		return local
	}
	local := m.allocLocal()
	m.remoteToLocal[remote] = local
	m.localToRemote[local] = remote
	return local
}

// Local resolves a remote entity id to its local counterpart.
func (m *EntityMapper) Local(remote EntityId) (EntityId, bool) {
	local, ok := m.remoteToLocal[remote]
	return local, ok
}

// Remote resolves a local entity id back to the remote id it was spawned
// from.
func (m *EntityMapper) Remote(local EntityId) (EntityId, bool) {
	remote, ok := m.localToRemote[local]
	return remote, ok
}

// Despawn forgets remote's mapping, returning the local id it resolved to
// if any.
func (m *EntityMapper) Despawn(remote EntityId) (EntityId, bool) {
	local, ok := m.remoteToLocal[remote]
	if !ok {
		return 0, false
	}
	delete(m.remoteToLocal, remote)
	delete(m.localToRemote, local)
	return local, true
}

// Len reports how many entities are currently mapped.
func (m *EntityMapper) Len() int { return len(m.remoteToLocal) }
