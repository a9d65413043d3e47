package snapmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_CloneSharesState(t *testing.T) {
	m := New[string, int]()
	clone := m.Clone()

	w := clone.Writer()
	w.Insert("k", 1)
	w.Sync()
	defer w.Close()

	snap := m.Snapshot()
	defer snap.Close()
	assert.True(t, snap.ContainsKey("k"), "a clone must share the same underlying state as its parent")
}

func TestMap_LenTracksLiveWriters(t *testing.T) {
	m := New[int, int]()
	assert.Equal(t, uint64(0), m.Len())

	w1 := m.Writer()
	assert.Equal(t, uint64(1), m.Len())

	w2 := m.Writer()
	assert.Equal(t, uint64(2), m.Len())

	require.NoError(t, w1.Close())
	assert.Equal(t, uint64(1), m.Len())

	require.NoError(t, w2.Close())
	assert.Equal(t, uint64(0), m.Len())
}

func TestMap_WriterHandleIsReusedAfterClose(t *testing.T) {
	m := New[int, int]()
	w1 := m.Writer()
	idx := w1.idx
	require.NoError(t, w1.Close())

	w2 := m.Writer()
	defer w2.Close()
	assert.Equal(t, idx, w2.idx, "the freed shard handle should be reused by the next Writer")
	w2.Insert(1, 1)
	w2.Sync()

	snap := m.Snapshot()
	defer snap.Close()
	assert.True(t, snap.ContainsKey(1))
}
