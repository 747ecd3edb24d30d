package replication

import (
	"encoding/binary"

	"github.com/appnet-org/netsync/pkg/wire"
)

// ActionKind distinguishes the four replication action types, all carried
// on a Reliable Ordered channel per replication group.
type ActionKind uint8

const (
	ActionSpawn ActionKind = iota
	ActionDespawn
	ActionAddComponent
	ActionRemoveComponent
)

// Action is one entity lifecycle or component-membership event.
type Action struct {
	Kind   ActionKind
	Group  GroupId
	Entity EntityId

	// ComponentKind is valid for ActionAddComponent and
	// ActionRemoveComponent; ComponentData only for ActionAddComponent.
	ComponentKind ComponentKind
	ComponentData []byte
}

// EncodeAction appends an Action's wire representation to buf.
func EncodeAction(a Action, buf []byte) []byte {
	buf = append(buf, byte(a.Kind))
	buf = wire.AppendUvarint(buf, uint64(a.Group))
	buf = wire.AppendUvarint(buf, uint64(a.Entity))
	if a.Kind == ActionAddComponent {
		var kindBuf [2]byte
		binary.LittleEndian.PutUint16(kindBuf[:], uint16(a.ComponentKind))
		buf = append(buf, kindBuf[:]...)
		buf = wire.AppendUvarint(buf, uint64(len(a.ComponentData)))
		buf = append(buf, a.ComponentData...)
	} else if a.Kind == ActionRemoveComponent {
		var kindBuf [2]byte
		binary.LittleEndian.PutUint16(kindBuf[:], uint16(a.ComponentKind))
		buf = append(buf, kindBuf[:]...)
	}
	return buf
}

// DecodeAction parses an Action from the front of buf.
func DecodeAction(buf []byte) (Action, error) {
	if len(buf) < 1 {
		return Action{}, wire.ErrTruncated
	}
	a := Action{Kind: ActionKind(buf[0])}
	buf = buf[1:]

	group, n, err := wire.ReadUvarint(buf)
	if err != nil {
		return Action{}, err
	}
	a.Group = GroupId(group)
	buf = buf[n:]

	entity, n, err := wire.ReadUvarint(buf)
	if err != nil {
		return Action{}, err
	}
	a.Entity = EntityId(entity)
	buf = buf[n:]

	switch a.Kind {
	case ActionAddComponent:
		if len(buf) < 2 {
			return Action{}, wire.ErrTruncated
		}
		a.ComponentKind = ComponentKind(binary.LittleEndian.Uint16(buf[:2]))
		buf = buf[2:]
		size, n, err := wire.ReadUvarint(buf)
		if err != nil {
			return Action{}, err
		}
		buf = buf[n:]
		if uint64(len(buf)) < size {
			return Action{}, wire.ErrTruncated
		}
		a.ComponentData = buf[:size]
	case ActionRemoveComponent:
		if len(buf) < 2 {
			return Action{}, wire.ErrTruncated
		}
		a.ComponentKind = ComponentKind(binary.LittleEndian.Uint16(buf[:2]))
	}
	return a, nil
}

// ComponentUpdate carries one component's new encoded value for one entity.
type ComponentUpdate struct {
	Entity EntityId
	Kind   ComponentKind
	Data   []byte
}

// Update is one replication group's per-tick batch of component changes,
// tagged with the highest action MessageId applied to the group so the
// receiver can hold it until that action has landed.
type Update struct {
	Group    GroupId
	Tick     wire.Tick
	ActionId wire.MessageId
	Entries  []ComponentUpdate
}

// EncodeUpdate appends an Update's wire representation to buf.
func EncodeUpdate(u Update, buf []byte) []byte {
	buf = wire.AppendUvarint(buf, uint64(u.Group))
	var hdr [4]byte
	binary.LittleEndian.PutUint16(hdr[0:2], uint16(u.Tick))
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(u.ActionId))
	buf = append(buf, hdr[:]...)
	buf = wire.AppendUvarint(buf, uint64(len(u.Entries)))
	for _, e := range u.Entries {
		buf = wire.AppendUvarint(buf, uint64(e.Entity))
		var kindBuf [2]byte
		binary.LittleEndian.PutUint16(kindBuf[:], uint16(e.Kind))
		buf = append(buf, kindBuf[:]...)
		buf = wire.AppendUvarint(buf, uint64(len(e.Data)))
		buf = append(buf, e.Data...)
	}
	return buf
}

// DecodeUpdate parses an Update from buf.
func DecodeUpdate(buf []byte) (Update, error) {
	group, n, err := wire.ReadUvarint(buf)
	if err != nil {
		return Update{}, err
	}
	u := Update{Group: GroupId(group)}
	buf = buf[n:]

	if len(buf) < 4 {
		return Update{}, wire.ErrTruncated
	}
	u.Tick = wire.Tick(binary.LittleEndian.Uint16(buf[0:2]))
	u.ActionId = wire.MessageId(binary.LittleEndian.Uint16(buf[2:4]))
	buf = buf[4:]

	count, n, err := wire.ReadUvarint(buf)
	if err != nil {
		return Update{}, err
	}
	buf = buf[n:]

	u.Entries = make([]ComponentUpdate, 0, count)
	for i := uint64(0); i < count; i++ {
		entity, n, err := wire.ReadUvarint(buf)
		if err != nil {
			return Update{}, err
		}
		buf = buf[n:]

		if len(buf) < 2 {
			return Update{}, wire.ErrTruncated
		}
		kind := ComponentKind(binary.LittleEndian.Uint16(buf[:2]))
		buf = buf[2:]

		size, n, err := wire.ReadUvarint(buf)
		if err != nil {
			return Update{}, err
		}
		buf = buf[n:]
		if uint64(len(buf)) < size {
			return Update{}, wire.ErrTruncated
		}
		u.Entries = append(u.Entries, ComponentUpdate{Entity: EntityId(entity), Kind: kind, Data: buf[:size]})
		buf = buf[size:]
	}
	return u, nil
}
