package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVectorStore(t *testing.T) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(VectorStoreConfig{Dimensions: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHNSWStore_AddAndSearch(t *testing.T) {
	s := newTestVectorStore(t)

	ids := []string{"a", "b", "c"}
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.9, 0.1, 0, 0},
	}
	require.NoError(t, s.Add(context.Background(), "acme", ids, vectors))

	results, err := s.Search(context.Background(), "acme", []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
}

func TestHNSWStore_TenantIsolation(t *testing.T) {
	s := newTestVectorStore(t)

	require.NoError(t, s.Add(context.Background(), "acme", []string{"a"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, s.Add(context.Background(), "globex", []string{"g"}, [][]float32{{1, 0, 0, 0}}))

	results, err := s.Search(context.Background(), "acme", []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)

	assert.Equal(t, 1, s.Count("acme"))
	assert.Equal(t, 1, s.Count("globex"))
	assert.Equal(t, 0, s.Count("unknown"))
}

func TestHNSWStore_UnknownTenantEmpty(t *testing.T) {
	s := newTestVectorStore(t)

	results, err := s.Search(context.Background(), "nobody", []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	s := newTestVectorStore(t)

	err := s.Add(context.Background(), "acme", []string{"a"}, [][]float32{{1, 0}})
	require.Error(t, err)
	assert.IsType(t, ErrDimensionMismatch{}, err)

	_, err = s.Search(context.Background(), "acme", []float32{1, 0}, 5)
	require.Error(t, err)
}

func TestHNSWStore_DeleteIsLazy(t *testing.T) {
	s := newTestVectorStore(t)

	require.NoError(t, s.Add(context.Background(), "acme",
		[]string{"a", "b"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))

	require.NoError(t, s.Delete(context.Background(), "acme", []string{"a"}))
	assert.Equal(t, 1, s.Count("acme"))

	// Deleted vectors never surface in results even though the graph
	// node still exists.
	results, err := s.Search(context.Background(), "acme", []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestHNSWStore_UpdateReplacesVector(t *testing.T) {
	s := newTestVectorStore(t)

	require.NoError(t, s.Add(context.Background(), "acme", []string{"a"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, s.Add(context.Background(), "acme", []string{"a"}, [][]float32{{0, 0, 0, 1}}))

	assert.Equal(t, 1, s.Count("acme"))

	results, err := s.Search(context.Background(), "acme", []float32{0, 0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
}

func TestHNSWStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	s, err := NewHNSWStore(VectorStoreConfig{Dimensions: 4})
	require.NoError(t, err)
	require.NoError(t, s.Add(context.Background(), "acme",
		[]string{"a", "b"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))
	require.NoError(t, s.Add(context.Background(), "globex",
		[]string{"g"}, [][]float32{{0, 0, 1, 0}}))
	require.NoError(t, s.Save(dir))
	require.NoError(t, s.Close())

	loaded, err := NewHNSWStore(VectorStoreConfig{Dimensions: 4})
	require.NoError(t, err)
	defer loaded.Close()
	require.NoError(t, loaded.Load(dir))

	assert.Equal(t, 2, loaded.Count("acme"))
	assert.Equal(t, 1, loaded.Count("globex"))

	results, err := loaded.Search(context.Background(), "acme", []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestHNSWStore_LoadMissingDirIsNoop(t *testing.T) {
	s := newTestVectorStore(t)
	require.NoError(t, s.Load(t.TempDir()+"/does-not-exist"))
}

func TestNormalizeVectorInPlace(t *testing.T) {
	v := []float32{3, 4, 0, 0}
	normalizeVectorInPlace(v)
	assert.InDelta(t, 0.6, v[0], 0.001)
	assert.InDelta(t, 0.8, v[1], 0.001)

	zero := []float32{0, 0}
	normalizeVectorInPlace(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}
