package snapmap

import "go.uber.org/atomic"

// slotEntry is one cell of a slab: either occupied, holding a value, or
// free, in which case next links to the next free cell (or -1).
type slotEntry[T any] struct {
	occupied bool
	value    T
	next     int
}

// slab is a slot-allocated container that hands out stable integer
// handles. Freed slots are pushed onto an internal free list and reused
// by the next insert, so handles never grow unboundedly under steady
// churn.
//
// A slab is the shard registry's backing store. It is mutated only while
// the owning Map's coordinator is held exclusively (see Map.Writer and
// Writer.Close); concurrent shared holders only ever read through a
// handle they already own.
type slab[T any] struct {
	entries  []slotEntry[T]
	freeHead int
	live     atomic.Uint64
}

func newSlab[T any]() *slab[T] {
	return &slab[T]{freeHead: -1}
}

// insert places v in a free slot, or grows the slab, and returns its
// stable handle.
func (s *slab[T]) insert(v T) int {
	if s.freeHead >= 0 {
		idx := s.freeHead
		s.freeHead = s.entries[idx].next
		s.entries[idx] = slotEntry[T]{occupied: true, value: v}
		s.live.Inc()
		return idx
	}
	s.entries = append(s.entries, slotEntry[T]{occupied: true, value: v})
	s.live.Inc()
	return len(s.entries) - 1
}

// remove returns idx's slot to the free list. idx must currently be
// occupied.
func (s *slab[T]) remove(idx int) {
	s.entries[idx] = slotEntry[T]{next: s.freeHead}
	s.freeHead = idx
	s.live.Dec()
}

// get returns the value at idx, or the zero value and false if idx is
// free (or out of range).
func (s *slab[T]) get(idx int) (T, bool) {
	if idx < 0 || idx >= len(s.entries) || !s.entries[idx].occupied {
		var zero T
		return zero, false
	}
	return s.entries[idx].value, true
}

// each visits every occupied slot in unspecified order, stopping early
// if f returns false.
func (s *slab[T]) each(f func(idx int, v T) bool) {
	for i := range s.entries {
		e := &s.entries[i]
		if e.occupied {
			if !f(i, e.value) {
				return
			}
		}
	}
}

// len reports the number of occupied slots.
func (s *slab[T]) len() uint64 {
	return s.live.Load()
}
