package vector

import (
	"testing"

	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	fs, err := mem.NewFS()
	require.NoError(t, err)
	x, err := NewIndex(fs, "index.snapshot")
	require.NoError(t, err)
	return x
}

func TestIndexAddAndSearch(t *testing.T) {
	x := newTestIndex(t)

	require.NoError(t, x.Add("a", []float32{1, 0, 0}))
	require.NoError(t, x.Add("b", []float32{0, 1, 0}))
	require.NoError(t, x.Add("c", []float32{0.9, 0.1, 0}))

	ids, err := x.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "a", ids[0])
	assert.Equal(t, "c", ids[1])
}

func TestIndexSearchEmpty(t *testing.T) {
	x := newTestIndex(t)

	ids, err := x.Search([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestIndexDimensionMismatch(t *testing.T) {
	x := newTestIndex(t)
	require.NoError(t, x.Add("a", []float32{1, 0, 0}))

	assert.Error(t, x.Add("b", []float32{1, 0}))

	_, err := x.Search([]float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestIndexRemoveHidesNote(t *testing.T) {
	x := newTestIndex(t)
	require.NoError(t, x.Add("a", []float32{1, 0, 0}))
	require.NoError(t, x.Add("b", []float32{0.8, 0.2, 0}))
	require.Equal(t, 2, x.Size())

	x.Remove("a")
	assert.Equal(t, 1, x.Size())

	ids, err := x.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.NotContains(t, ids, "a")
	assert.Contains(t, ids, "b")
}

func TestIndexReembedOrphansOldVector(t *testing.T) {
	x := newTestIndex(t)
	require.NoError(t, x.Add("a", []float32{1, 0, 0}))
	require.NoError(t, x.Add("a", []float32{0, 1, 0}))
	assert.Equal(t, 1, x.Size())

	// The old vector is still in the graph but unmapped, so a query near
	// it must not surface "a" twice or at a stale position.
	ids, err := x.Search([]float32{0, 1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}

func TestIndexSaveLoadRoundTrip(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)

	x, err := NewIndex(fs, "index.snapshot")
	require.NoError(t, err)
	require.NoError(t, x.Add("a", []float32{1, 0, 0}))
	require.NoError(t, x.Add("b", []float32{0, 1, 0}))
	require.NoError(t, x.Save())

	reopened, err := NewIndex(fs, "index.snapshot")
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Size())

	ids, err := reopened.Search([]float32{0, 1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	// Key allocation continues past the snapshot instead of reusing keys.
	require.NoError(t, reopened.Add("c", []float32{0, 0, 1}))
	ids, err = reopened.Search([]float32{0, 0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids)
}
