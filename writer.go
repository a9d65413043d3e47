package snapmap

import "go.uber.org/zap"

// opKind tags a pending operation in a Writer's deferred queue.
type opKind int

const (
	opInsert opKind = iota
	opRemove
)

// op is a single buffered mutation: an Insert carrying its value, or a
// Remove. A Writer's queue holds at most one op per key; a later op on
// the same key replaces the earlier one outright (see Writer.Insert /
// Writer.Remove), so no history beyond "the most recent op" is ever
// retained.
type op[V any] struct {
	kind opKind
	val  V
}

// Writer owns one shard of a Map's key space and a private deferred
// queue of operations that could not be applied immediately because a
// Snapshot held the coordinator exclusively. A Writer must not be used
// from more than one goroutine at a time; spawn one Writer per
// goroutine that needs to mutate the map (Map.Writer is cheap and safe
// to call repeatedly).
type Writer[K comparable, V any] struct {
	state  *sharedState[K, V]
	idx    int
	queue  map[K]op[V]
	closed bool
}

func newWriter[K comparable, V any](state *sharedState[K, V], idx int) *Writer[K, V] {
	return &Writer[K, V]{state: state, idx: idx, queue: make(map[K]op[V])}
}

// Insert binds key to val in this Writer's logical view of the map and
// reports the value previously bound to key in that view, if any.
//
// If the coordinator is free, Insert merges any queued ops into the
// shard and applies the insert directly. If a Snapshot currently holds
// the coordinator exclusively, Insert instead buffers the operation and
// returns immediately, reporting the pre-image from the queue rather
// than the shard (the shard is not consulted on the contended path).
func (w *Writer[K, V]) Insert(key K, val V) (V, bool) {
	w.mustOpen()
	if g, ok := w.state.coord.tryShared(); ok {
		defer g.release()
		sh := w.mustShard()
		w.drain(sh)
		prev, had := sh.data[key]
		sh.data[key] = val
		return prev, had
	}
	w.state.logger.Debug("insert contended, queueing", zap.Int("shard", w.idx))
	prev, had := w.queue[key]
	w.queue[key] = op[V]{kind: opInsert, val: val}
	if had && prev.kind == opInsert {
		return prev.val, true
	}
	var zero V
	return zero, false
}

// Remove unbinds key from this Writer's logical view of the map and
// reports the value it was previously bound to, if any. Contention
// behaves symmetrically to Insert: on a busy coordinator, Remove queues
// and returns the queue's pre-image.
func (w *Writer[K, V]) Remove(key K) (V, bool) {
	w.mustOpen()
	if g, ok := w.state.coord.tryShared(); ok {
		defer g.release()
		sh := w.mustShard()
		w.drain(sh)
		prev, had := sh.data[key]
		delete(sh.data, key)
		return prev, had
	}
	w.state.logger.Debug("remove contended, queueing", zap.Int("shard", w.idx))
	prev, had := w.queue[key]
	w.queue[key] = op[V]{kind: opRemove}
	if had && prev.kind == opInsert {
		return prev.val, true
	}
	var zero V
	return zero, false
}

// WithMut applies f to the live value bound to key in w's logical view
// and returns f's result. If key has a pending Insert in the deferred
// queue, f is applied to the pending value in place. If key has a
// pending Remove, WithMut reports false without calling f. If key has no
// pending op at all, WithMut upgrades to a blocking shared acquisition
// (it does not simply report false) before consulting the shard.
//
// WithMut is a package-level function, not a method, because Go methods
// cannot introduce their own type parameters and R varies per call site.
func WithMut[K comparable, V any, R any](w *Writer[K, V], key K, f func(v *V) R) (R, bool) {
	var zero R
	w.mustOpen()
	if g, ok := w.state.coord.tryShared(); ok {
		defer g.release()
		return withMutShard(w, key, f)
	}
	if pending, has := w.queue[key]; has {
		if pending.kind == opRemove {
			return zero, false
		}
		r := f(&pending.val)
		w.queue[key] = op[V]{kind: opInsert, val: pending.val}
		return r, true
	}
	g := w.state.coord.shared()
	defer g.release()
	return withMutShard(w, key, f)
}

func withMutShard[K comparable, V any, R any](w *Writer[K, V], key K, f func(v *V) R) (R, bool) {
	var zero R
	sh := w.mustShard()
	w.drain(sh)
	v, has := sh.data[key]
	if !has {
		return zero, false
	}
	r := f(&v)
	sh.data[key] = v
	return r, true
}

// Sync blocks until the coordinator grants shared access, then
// unconditionally drains the deferred queue into the shard. Calling Sync
// repeatedly is idempotent: the second call finds an empty queue and
// does nothing.
func (w *Writer[K, V]) Sync() {
	w.mustOpen()
	g := w.state.coord.shared()
	defer g.release()
	w.drain(w.mustShard())
}

// drain merges every buffered op into sh and empties the queue. Drain
// order is unspecified, which is sound because the queue holds at most
// one op per key.
func (w *Writer[K, V]) drain(sh *shard[K, V]) {
	if len(w.queue) == 0 {
		return
	}
	w.state.logger.Debug("draining queue", zap.Int("shard", w.idx), zap.Int("ops", len(w.queue)))
	for k, o := range w.queue {
		switch o.kind {
		case opInsert:
			sh.data[k] = o.val
		case opRemove:
			delete(sh.data, k)
		}
	}
	w.queue = make(map[K]op[V])
}

func (w *Writer[K, V]) mustShard() *shard[K, V] {
	sh, ok := w.state.registry.get(w.idx)
	if !ok {
		panic("snapmap: writer's shard is missing from the registry")
	}
	return sh
}

func (w *Writer[K, V]) mustOpen() {
	if w.closed {
		panic("snapmap: use of Writer after Close")
	}
}

// Close withdraws this Writer's contribution to the map: it takes the
// coordinator exclusively and removes the Writer's shard from the
// registry. Any ops still sitting in the deferred queue are discarded
// without being merged. Close is idempotent; it is safe (and a no-op)
// to call more than once.
func (w *Writer[K, V]) Close() error {
	if w.closed {
		return nil
	}
	g := w.state.coord.exclusive()
	w.state.registry.remove(w.idx)
	g.release()
	w.queue = nil
	w.closed = true
	w.state.logger.Debug("writer closed", zap.Int("shard", w.idx))
	return nil
}
