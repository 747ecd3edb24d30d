package replication

import (
	"bytes"

	"github.com/appnet-org/netsync/pkg/wire"
)

// WorldView is the simulation-side read interface the sender consumes to
// discover what exists and what it looks like; replication never schedules
// game logic itself, per spec.md §1's non-goal.
type WorldView interface {
	// Entities lists every entity this peer's sender might replicate.
	Entities() []EntityId
	// Group returns the replication group an entity belongs to.
	Group(entity EntityId) GroupId
	// Component returns an entity's current value for kind, if present.
	Component(entity EntityId, kind ComponentKind) (value any, present bool)
}

// VisibilityFilter decides whether entity should currently be replicated to
// the peer this Sender serves.
type VisibilityFilter func(entity EntityId) bool

type entityState struct {
	visible  bool
	present  map[ComponentKind]bool
	lastSent map[ComponentKind][]byte
	onceSent map[ComponentKind]bool
}

func newEntityState() *entityState {
	return &entityState{
		present:  make(map[ComponentKind]bool),
		lastSent: make(map[ComponentKind][]byte),
		onceSent: make(map[ComponentKind]bool),
	}
}

// Sender tracks one peer's replication state: which entities are currently
// visible to it and what was last sent, so each tick it can emit only the
// actions and component updates that changed.
type Sender struct {
	registry  *Registry
	visible   VisibilityFilter
	isServer  bool
	entities  map[EntityId]*entityState
	groupLast map[GroupId]wire.MessageId
}

// NewSender returns a Sender for one peer. isServer selects which
// component kinds this side is allowed to originate updates for, per each
// kind's AuthorityPolicy.
func NewSender(registry *Registry, visible VisibilityFilter, isServer bool) *Sender {
	return &Sender{
		registry:  registry,
		visible:   visible,
		isServer:  isServer,
		entities:  make(map[EntityId]*entityState),
		groupLast: make(map[GroupId]wire.MessageId),
	}
}

// Produce walks world, computing this tick's visibility changes and
// component diffs, and returns the per-group update batches to enqueue on
// the updates channel. Actions (spawn/despawn/add/remove) are committed
// immediately through commitAction, which must enqueue the action onto the
// group's Reliable Ordered actions channel and return the MessageId it was
// assigned — that id is what tags the update batch emitted for the same
// group this tick.
func (s *Sender) Produce(world WorldView, tick wire.Tick, commitAction func(Action) wire.MessageId) []Update {
	batches := make(map[GroupId]*Update)

	batchFor := func(group GroupId) *Update {
		b, ok := batches[group]
		if !ok {
			b = &Update{Group: group, Tick: tick}
			batches[group] = b
		}
		return b
	}

	for _, entity := range world.Entities() {
		group := world.Group(entity)
		visibleNow := s.visible(entity)
		st, tracked := s.entities[entity]

		if !tracked {
			if !visibleNow {
				continue
			}
			st = newEntityState()
			s.entities[entity] = st
		}

		if visibleNow && !st.visible {
			id := commitAction(Action{Kind: ActionSpawn, Group: group, Entity: entity})
			s.groupLast[group] = id
			st.visible = true
		} else if !visibleNow && st.visible {
			id := commitAction(Action{Kind: ActionDespawn, Group: group, Entity: entity})
			s.groupLast[group] = id
			st.visible = false
			delete(s.entities, entity)
			continue
		}

		if !st.visible {
			continue
		}

		for _, kind := range s.registry.Kinds() {
			entry, _ := s.registry.Lookup(kind)
			if !entry.Authority.SendAllowed(s.isServer) {
				continue
			}

			value, present := world.Component(entity, kind)
			switch {
			case present && !st.present[kind]:
				data, err := entry.Codec.Encode(value)
				if err != nil {
					continue
				}
				id := commitAction(Action{Kind: ActionAddComponent, Group: group, Entity: entity, ComponentKind: kind, ComponentData: data})
				s.groupLast[group] = id
				st.present[kind] = true
				st.lastSent[kind] = data
				if entry.SyncMode == Once {
					st.onceSent[kind] = true
				}
				// The add-component action already carries the initial
				// value; no redundant update this same tick.
			case !present && st.present[kind]:
				id := commitAction(Action{Kind: ActionRemoveComponent, Group: group, Entity: entity, ComponentKind: kind})
				s.groupLast[group] = id
				delete(st.present, kind)
				delete(st.lastSent, kind)
				delete(st.onceSent, kind)
			case present && st.present[kind]:
				if entry.SyncMode == Once && st.onceSent[kind] {
					continue
				}
				data, err := entry.Codec.Encode(value)
				if err != nil {
					continue
				}
				if bytes.Equal(data, st.lastSent[kind]) {
					continue
				}
				st.lastSent[kind] = data
				if entry.SyncMode == Once {
					st.onceSent[kind] = true
				}
				batchFor(group).Entries = append(batchFor(group).Entries, ComponentUpdate{Entity: entity, Kind: kind, Data: data})
			}
		}
	}

	out := make([]Update, 0, len(batches))
	for group, b := range batches {
		if len(b.Entries) == 0 {
			continue
		}
		b.ActionId = s.groupLast[group]
		out = append(out, *b)
	}
	return out
}
