package snapmap

import "go.uber.org/zap"

// sharedState is the state a Map and every Writer spawned from it hold
// in common: the shard registry and the coordinator that arbitrates
// access to it. It is reference-counted implicitly by the Go garbage
// collector - it outlives whichever of its holders (the Map handle or
// any Writer) is dropped last, with no manual bookkeeping required.
type sharedState[K comparable, V any] struct {
	coord    *coordinator
	registry *slab[*shard[K, V]]
	logger   *zap.Logger
}

// Option configures a Map at construction time.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger attaches a zap logger that traces coordinator contention,
// queue drains, and writer/shard lifecycle at Debug level. The default
// is zap.NewNop(), matching the zero-overhead default most callers want
// from a hot-path concurrency primitive.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Map is a handle to a sharded, snapshot-consistent concurrent map. The
// zero value is not usable; construct one with New. A Map may be freely
// cloned with Clone, and all clones (and every Writer spawned from any
// of them) refer to the same underlying state.
type Map[K comparable, V any] struct {
	state *sharedState[K, V]
}

// New constructs an empty Map.
func New[K comparable, V any](opts ...Option) *Map[K, V] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Map[K, V]{
		state: &sharedState[K, V]{
			coord:    newCoordinator(),
			registry: newSlab[*shard[K, V]](),
			logger:   o.logger.With(zap.String("component", "snapmap")),
		},
	}
}

// Clone returns another handle to the same underlying map. It is cheap -
// no shards or entries are copied - and is the idiomatic way to hand a
// Map to a goroutine that will spawn its own Writer.
func (m *Map[K, V]) Clone() *Map[K, V] {
	return &Map[K, V]{state: m.state}
}

// Writer allocates a new shard and returns a Writer that owns it. Each
// call briefly takes the coordinator exclusively to register the new
// shard in the registry; after that, the returned Writer contends with
// other writers only indirectly, through Snapshot.
func (m *Map[K, V]) Writer() *Writer[K, V] {
	g := m.state.coord.exclusive()
	idx := m.state.registry.insert(newShard[K, V]())
	g.release()
	m.state.logger.Debug("writer spawned", zap.Int("shard", idx))
	return newWriter(m.state, idx)
}

// Snapshot blocks until it can take the coordinator exclusively, then
// returns a Snapshot exposing a consistent, read-only view over the
// logical union of every writer's shard. The returned Snapshot holds
// exclusivity until Close is called; callers should keep it short-lived.
func (m *Map[K, V]) Snapshot() *Snapshot[K, V] {
	g := m.state.coord.exclusive()
	m.state.logger.Debug("snapshot acquired")
	return &Snapshot[K, V]{state: m.state, guard: g}
}

// Len reports the number of live shards (i.e. Writers that have not been
// Closed). It is a diagnostic, not a key count: it counts shards only,
// while a key bound in two different shards appears twice in a
// Snapshot's Iter.
func (m *Map[K, V]) Len() uint64 {
	return m.state.registry.len()
}
