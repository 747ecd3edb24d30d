package replication

import (
	"capnproto.org/go/capnp/v3"
	"google.golang.org/protobuf/proto"
)

// ComponentCodec encodes and decodes one component kind's values to and
// from wire bytes. Registered per-kind in a Registry so the replication
// sender/receiver never needs to know a component's concrete Go type.
type ComponentCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// ProtoCodec adapts a protobuf-generated message type into a
// ComponentCodec. New must return a fresh zero-valued instance of the
// message type Decode should unmarshal into.
type ProtoCodec struct {
	New func() proto.Message
}

func (c ProtoCodec) Encode(v any) ([]byte, error) {
	return proto.Marshal(v.(proto.Message))
}

func (c ProtoCodec) Decode(data []byte) (any, error) {
	m := c.New()
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

// CapnpCodec adapts a Cap'n Proto generated struct type into a
// ComponentCodec. Marshal builds a capnp.Message from v (typically
// `seg.NewRoot<Type>` plus field setters); Unmarshal reads one back
// (typically `ReadRoot<Type>`). Both are supplied by the caller because
// capnp's generated accessors are per-schema, not expressible generically.
type CapnpCodec struct {
	Marshal   func(v any, seg *capnp.Segment) error
	Unmarshal func(msg *capnp.Message) (any, error)
}

func (c CapnpCodec) Encode(v any) ([]byte, error) {
	msg, seg, err := capnp.NewMessage(capnp.SingleSegment(nil))
	if err != nil {
		return nil, err
	}
	if err := c.Marshal(v, seg); err != nil {
		return nil, err
	}
	return msg.Marshal()
}

func (c CapnpCodec) Decode(data []byte) (any, error) {
	msg, err := capnp.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return c.Unmarshal(msg)
}
