package snapmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_InsertAndSyncThenSnapshot(t *testing.T) {
	// S1: insert, sync, snapshot.
	m := New[int, string]()
	w := m.Writer()
	defer w.Close()

	w.Insert(1, "a")
	w.Sync()

	snap := m.Snapshot()
	defer snap.Close()

	vals := snap.Get(1)
	require.Len(t, vals, 1)
	assert.Equal(t, "a", vals[0])
}

func TestWriter_TwoWritersDisjointKeys(t *testing.T) {
	// S2: two writers, disjoint keys, snapshot after both sync.
	m := New[int, string]()
	w1 := m.Writer()
	defer w1.Close()
	w2 := m.Writer()
	defer w2.Close()

	w1.Insert(1, "world")
	w1.Insert(2, "earth")
	w2.Insert(3, "sf")
	w2.Insert(4, "oak")
	w1.Sync()
	w2.Sync()

	snap := m.Snapshot()
	defer snap.Close()

	got := map[int]string{}
	it := snap.Iter()
	for {
		k, v, ok := it.Next()
		if !ok {
			break
		}
		got[k] = v
	}
	assert.Equal(t, map[int]string{1: "world", 2: "earth", 3: "sf", 4: "oak"}, got)
}

func TestWriter_QueueCollapsing(t *testing.T) {
	// S4: repeated inserts of the same key under continuous contention
	// drain to a single binding, the last one written.
	m := New[int, int]()
	w := m.Writer()
	defer w.Close()

	hold := m.Snapshot() // forces every Insert below onto the contended path

	w.Insert(42, 1)
	w.Insert(42, 2)
	w.Insert(42, 3)

	hold.Close()
	w.Sync()

	snap := m.Snapshot()
	defer snap.Close()
	vals := snap.Get(42)
	require.Len(t, vals, 1)
	assert.Equal(t, 3, vals[0])
}

func TestWriter_InsertThenRemoveAnnihilates(t *testing.T) {
	// S5: insert then remove of the same key under continuous
	// contention drains to "absent".
	m := New[int, int]()
	w := m.Writer()
	defer w.Close()

	hold := m.Snapshot()
	w.Insert(7, 7)
	w.Remove(7)
	hold.Close()

	w.Sync()

	snap := m.Snapshot()
	defer snap.Close()
	assert.False(t, snap.ContainsKey(7))
}

func TestWriter_RemoveThenInsert(t *testing.T) {
	m := New[int, int]()
	w := m.Writer()
	defer w.Close()

	hold := m.Snapshot()
	w.Remove(7)
	w.Insert(7, 99)
	hold.Close()

	w.Sync()

	snap := m.Snapshot()
	defer snap.Close()
	vals := snap.Get(7)
	require.Len(t, vals, 1)
	assert.Equal(t, 99, vals[0])
}

func TestWriter_WithMutOnQueuedKey(t *testing.T) {
	// S6: with_mut on a key with a pending Insert mutates the queued
	// value in place without blocking.
	m := New[int, int]()
	w := m.Writer()
	defer w.Close()

	hold := m.Snapshot()
	w.Insert(5, 10)

	r, ok := WithMut(w, 5, func(v *int) int {
		*v++
		return *v
	})
	assert.True(t, ok)
	assert.Equal(t, 11, r)
	hold.Close()

	w.Sync()

	snap := m.Snapshot()
	defer snap.Close()
	vals := snap.Get(5)
	require.Len(t, vals, 1)
	assert.Equal(t, 11, vals[0])
}

func TestWriter_WithMutOnPendingRemoveReturnsFalse(t *testing.T) {
	m := New[int, int]()
	w := m.Writer()
	defer w.Close()

	w.Insert(1, 1)
	w.Sync()

	hold := m.Snapshot()
	w.Remove(1)

	_, ok := WithMut(w, 1, func(v *int) int { return *v })
	assert.False(t, ok)
	hold.Close()
}

func TestWriter_WithMutUpgradesToBlockingAcquire(t *testing.T) {
	m := New[int, int]()
	w := m.Writer()
	defer w.Close()

	w.Insert(9, 100)
	w.Sync()

	hold := m.Snapshot()
	done := make(chan struct{})
	go func() {
		r, ok := WithMut(w, 9, func(v *int) int {
			*v *= 2
			return *v
		})
		assert.True(t, ok)
		assert.Equal(t, 200, r)
		close(done)
	}()

	hold.Close()
	<-done
}

func TestWriter_InsertReturnsPreviousValueInOwnShard(t *testing.T) {
	m := New[string, int]()
	w := m.Writer()
	defer w.Close()

	_, had := w.Insert("k", 1)
	assert.False(t, had)

	prev, had := w.Insert("k", 2)
	assert.True(t, had)
	assert.Equal(t, 1, prev)
}

func TestWriter_SyncIsIdempotent(t *testing.T) {
	m := New[int, int]()
	w := m.Writer()
	defer w.Close()

	w.Insert(1, 1)
	w.Sync()
	w.Sync() // should be a no-op, not a panic or a double-apply

	snap := m.Snapshot()
	defer snap.Close()
	vals := snap.Get(1)
	require.Len(t, vals, 1)
	assert.Equal(t, 1, vals[0])
}

func TestWriter_CreatedAndImmediatelyClosedLeavesNoTrace(t *testing.T) {
	m := New[int, int]()
	w := m.Writer()
	w.Insert(1, 1)
	require.NoError(t, w.Close())

	snap := m.Snapshot()
	defer snap.Close()
	assert.False(t, snap.ContainsKey(1))
}

func TestWriter_CloseDiscardsUnmergedQueue(t *testing.T) {
	m := New[int, int]()
	w := m.Writer()

	hold := m.Snapshot()
	w.Insert(1, 1) // queued, never merged
	hold.Close()

	require.NoError(t, w.Close())

	snap := m.Snapshot()
	defer snap.Close()
	assert.False(t, snap.ContainsKey(1))
}

func TestWriter_PanicsAfterClose(t *testing.T) {
	m := New[int, int]()
	w := m.Writer()
	require.NoError(t, w.Close())
	assert.Panics(t, func() {
		w.Insert(1, 1)
	})
}

func TestWriter_CloseIsIdempotent(t *testing.T) {
	m := New[int, int]()
	w := m.Writer()
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestTwoWritersSameKeyBothAppearInSnapshot(t *testing.T) {
	m := New[string, int]()
	w1 := m.Writer()
	defer w1.Close()
	w2 := m.Writer()
	defer w2.Close()

	w1.Insert("dup", 1)
	w2.Insert("dup", 2)
	w1.Sync()
	w2.Sync()

	snap := m.Snapshot()
	defer snap.Close()
	vals := snap.Get("dup")
	assert.ElementsMatch(t, []int{1, 2}, vals)
}
