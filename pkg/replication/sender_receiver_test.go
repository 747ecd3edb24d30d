package replication

import (
	"testing"

	"github.com/appnet-org/netsync/pkg/wire"
	"github.com/stretchr/testify/require"
)

// rawCodec stores component values as plain strings, for tests that don't
// care about serialization format.
type rawCodec struct{}

func (rawCodec) Encode(v any) ([]byte, error) { return []byte(v.(string)), nil }
func (rawCodec) Decode(data []byte) (any, error) { return string(data), nil }

const positionKind ComponentKind = 1

func newTestRegistry() *Registry {
	r := NewRegistry()
	Register[string](r, positionKind, rawCodec{}, Simple, AuthorityServer, nil, nil)
	return r
}

type fakeWorld struct {
	entities   []EntityId
	groups     map[EntityId]GroupId
	components map[EntityId]map[ComponentKind]any
}

func (w *fakeWorld) Entities() []EntityId         { return w.entities }
func (w *fakeWorld) Group(e EntityId) GroupId      { return w.groups[e] }
func (w *fakeWorld) Component(e EntityId, kind ComponentKind) (any, bool) {
	v, ok := w.components[e][kind]
	return v, ok
}

type recordingSink struct {
	spawned []EntityId
	updates []string
}

func (s *recordingSink) OnSpawn(local EntityId, group GroupId) { s.spawned = append(s.spawned, local) }
func (s *recordingSink) OnDespawn(local EntityId)              {}
func (s *recordingSink) OnComponentAdd(local EntityId, kind ComponentKind, value any) {
	s.updates = append(s.updates, value.(string))
}
func (s *recordingSink) OnComponentRemove(local EntityId, kind ComponentKind) {}
func (s *recordingSink) OnComponentUpdate(local EntityId, kind ComponentKind, value any, tick wire.Tick) {
	s.updates = append(s.updates, value.(string))
}

// fakeActionChannel stands in for the reliable ordered actions channel:
// committing an action assigns it the next MessageId, exactly like
// channel.ReliableSender.Enqueue would.
type fakeActionChannel struct {
	nextId  wire.MessageId
	actions []Action
}

func (c *fakeActionChannel) commit(a Action) wire.MessageId {
	id := c.nextId
	c.nextId++
	c.actions = append(c.actions, a)
	return id
}

func TestSenderSpawnsEntityAndSendsInitialComponent(t *testing.T) {
	registry := newTestRegistry()
	world := &fakeWorld{
		entities: []EntityId{10},
		groups:   map[EntityId]GroupId{10: 10},
		components: map[EntityId]map[ComponentKind]any{
			10: {positionKind: "pos:0,0"},
		},
	}
	sender := NewSender(registry, func(EntityId) bool { return true }, true)
	actions := &fakeActionChannel{}

	updates := sender.Produce(world, wire.Tick(1), actions.commit)

	require.Len(t, actions.actions, 2) // spawn + add-component
	require.Equal(t, ActionSpawn, actions.actions[0].Kind)
	require.Equal(t, ActionAddComponent, actions.actions[1].Kind)
	require.Empty(t, updates) // initial value rides on the add-component action, not a separate update
}

func TestReplicationEndToEndOrdersUpdateAfterSpawn(t *testing.T) {
	registry := newTestRegistry()
	world := &fakeWorld{
		entities: []EntityId{10},
		groups:   map[EntityId]GroupId{10: 10},
		components: map[EntityId]map[ComponentKind]any{
			10: {positionKind: "pos:0,0"},
		},
	}
	sender := NewSender(registry, func(EntityId) bool { return true }, true)
	actions := &fakeActionChannel{}
	sender.Produce(world, wire.Tick(1), actions.commit)

	world.components[10][positionKind] = "pos:1,1"
	updates := sender.Produce(world, wire.Tick(2), actions.commit)
	require.Len(t, updates, 1)
	require.Equal(t, "pos:1,1", string(updates[0].Entries[0].Data))

	sink := &recordingSink{}
	mapper := NewEntityMapper(func() EntityId {
		return EntityId(len(sink.spawned) + 1000)
	})
	receiver := NewReceiver(registry, mapper, sink)

	// Deliver the update before its spawn action, as S5 describes.
	require.NoError(t, receiver.HandleUpdate(EncodeUpdate(updates[0], nil)))
	require.Empty(t, sink.updates)

	for i, a := range actions.actions {
		require.NoError(t, receiver.HandleAction(wire.MessageId(i), EncodeAction(a, nil)))
	}

	require.Len(t, sink.spawned, 1)
	require.Equal(t, []string{"pos:0,0", "pos:1,1"}, sink.updates)
}
