package snapmap

// Snapshot is a scoped exclusive view over the union of every shard in a
// Map, taken at the moment Map.Snapshot returned. It reflects each
// writer's shard as merged as of that writer's last successful
// acquisition before the snapshot; any op still sitting in a writer's
// deferred queue at that moment is not visible here. A Snapshot must be
// closed to release the coordinator back to waiting writers.
type Snapshot[K comparable, V any] struct {
	state  *sharedState[K, V]
	guard  *exclusiveGuard
	closed bool
}

// entry is one (key, value) pair as materialized out of a shard.
type entry[K comparable, V any] struct {
	key K
	val V
}

// Close releases the coordinator's exclusive hold. It is idempotent.
func (s *Snapshot[K, V]) Close() {
	if s.closed {
		return
	}
	s.guard.release()
	s.closed = true
}

// Get returns every value bound to key across all shards, one per shard
// that binds it. Because a key may be inserted independently by more
// than one Writer, this may return zero, one, or several values.
func (s *Snapshot[K, V]) Get(key K) []V {
	var out []V
	s.state.registry.each(func(_ int, sh *shard[K, V]) bool {
		if v, ok := sh.data[key]; ok {
			out = append(out, v)
		}
		return true
	})
	return out
}

// ContainsKey reports whether any shard binds key.
func (s *Snapshot[K, V]) ContainsKey(key K) bool {
	found := false
	s.state.registry.each(func(_ int, sh *shard[K, V]) bool {
		if _, ok := sh.data[key]; ok {
			found = true
			return false
		}
		return true
	})
	return found
}

// collect flattens every shard's entries. Order across shards, and
// within a shard, is unspecified.
func (s *Snapshot[K, V]) collect() []entry[K, V] {
	var out []entry[K, V]
	s.state.registry.each(func(_ int, sh *shard[K, V]) bool {
		for k, v := range sh.data {
			out = append(out, entry[K, V]{key: k, val: v})
		}
		return true
	})
	return out
}

// Iter returns an iterator over every (key, value) pair in the
// snapshot, across all shards. Duplicate keys contributed by different
// shards are each yielded separately. The iterator is valid only for the
// lifetime of this Snapshot.
func (s *Snapshot[K, V]) Iter() *Iter[K, V] {
	return &Iter[K, V]{entries: s.collect()}
}

// Keys returns an iterator over every key in the snapshot, with the same
// duplicate-across-shards semantics as Iter.
func (s *Snapshot[K, V]) Keys() *Keys[K, V] {
	return &Keys[K, V]{inner: s.Iter()}
}

// Values returns an iterator over every value in the snapshot, with the
// same duplicate-across-shards semantics as Iter.
func (s *Snapshot[K, V]) Values() *Values[K, V] {
	return &Values[K, V]{inner: s.Iter()}
}

// Iter is a one-shot iterator over a Snapshot's (key, value) pairs.
type Iter[K comparable, V any] struct {
	entries []entry[K, V]
	pos     int
}

// Next advances the iterator and returns the next pair, or ok=false once
// exhausted.
func (it *Iter[K, V]) Next() (key K, val V, ok bool) {
	if it.pos >= len(it.entries) {
		return key, val, false
	}
	e := it.entries[it.pos]
	it.pos++
	return e.key, e.val, true
}

// Len reports the total number of pairs this iterator will yield.
func (it *Iter[K, V]) Len() int {
	return len(it.entries) - it.pos
}

// Keys is a one-shot iterator over a Snapshot's keys.
type Keys[K comparable, V any] struct {
	inner *Iter[K, V]
}

// Next advances the iterator and returns the next key, or ok=false once
// exhausted.
func (k *Keys[K, V]) Next() (key K, ok bool) {
	key, _, ok = k.inner.Next()
	return key, ok
}

// Values is a one-shot iterator over a Snapshot's values.
type Values[K comparable, V any] struct {
	inner *Iter[K, V]
}

// Next advances the iterator and returns the next value, or ok=false
// once exhausted.
func (vs *Values[K, V]) Next() (val V, ok bool) {
	_, val, ok = vs.inner.Next()
	return val, ok
}
