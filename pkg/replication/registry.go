package replication

// ComponentKind stably identifies a replicated component type across the
// wire. Assigned and registered once at startup, never inferred from a Go
// type at runtime.
type ComponentKind uint16

// SyncMode controls how the receiver folds an incoming update into its
// Confirmed/Predicted copies.
type SyncMode uint8

const (
	// Once is applied only at spawn time, then frozen: the sender stops
	// diffing it after the first send and the receiver never overwrites
	// its predicted copy again.
	Once SyncMode = iota
	// Simple overwrites the receiver's confirmed copy on every update; no
	// rollback/replay.
	Simple
	// Full overwrites the confirmed copy and triggers prediction rollback
	// and replay on the receiver (see pkg/prediction).
	Full
)

// AuthorityPolicy decides which side of a connection is allowed to
// originate updates for a component kind.
type AuthorityPolicy uint8

const (
	// AuthorityServer: only the server sends updates for this kind.
	AuthorityServer AuthorityPolicy = iota
	// AuthorityClient: only the owning client sends updates (e.g. locally
	// predicted input-driven state).
	AuthorityClient
	// AuthorityShared: either side may send; last write wins on arrival.
	AuthorityShared
)

// SendAllowed reports whether a peer in the given role may originate
// updates for a component under this policy.
func (p AuthorityPolicy) SendAllowed(isServer bool) bool {
	switch p {
	case AuthorityServer:
		return isServer
	case AuthorityClient:
		return !isServer
	default:
		return true
	}
}

// ComponentEntry is one component kind's full registration record.
type ComponentEntry struct {
	Kind      ComponentKind
	Codec     ComponentCodec
	SyncMode  SyncMode
	Authority AuthorityPolicy

	// Interpolate blends two historical samples at parameter t in [0,1];
	// nil if the component has no interpolation support.
	Interpolate func(a, b any, t float64) any

	// Diff reports whether b differs from a meaningfully enough to send an
	// update. Sender does not call it: it sends an update whenever a
	// component's encoded bytes differ from the last ones sent.
	Diff func(a, b any) bool
}

// Registry maps ComponentKind to its registration record. Built once at
// startup before any Connection exists; never mutated concurrently with
// replication traffic, so it carries no locking.
type Registry struct {
	entries map[ComponentKind]ComponentEntry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[ComponentKind]ComponentEntry)}
}

// Register records kind's codec, sync mode, authority policy, and optional
// interpolate/diff functions. T is the component's concrete Go type;
// Register wraps the typed callbacks so the rest of the package can deal
// in `any` without a type switch per component kind.
func Register[T any](r *Registry, kind ComponentKind, codec ComponentCodec, syncMode SyncMode, authority AuthorityPolicy, interpolate func(a, b T, t float64) T, diff func(a, b T) bool) {
	entry := ComponentEntry{Kind: kind, Codec: codec, SyncMode: syncMode, Authority: authority}
	if interpolate != nil {
		entry.Interpolate = func(a, b any, t float64) any { return interpolate(a.(T), b.(T), t) }
	}
	if diff != nil {
		entry.Diff = func(a, b any) bool { return diff(a.(T), b.(T)) }
	}
	r.entries[kind] = entry
}

// Lookup returns kind's registration record.
func (r *Registry) Lookup(kind ComponentKind) (ComponentEntry, bool) {
	e, ok := r.entries[kind]
	return e, ok
}

// Kinds returns every registered component kind, in no particular order.
func (r *Registry) Kinds() []ComponentKind {
	out := make([]ComponentKind, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	return out
}
