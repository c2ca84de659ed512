package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns scripted vectors, fails wholesale when broken, or
// returns an empty response with a nil error when empty.
type fakeEmbedder struct {
	vectors map[string][]float32
	broken  bool
	empty   bool
}

func (f *fakeEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	if f.broken {
		return nil, errors.New("provider exhausted retries")
	}
	if f.empty {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			return nil, errors.New("no scripted vector for " + t)
		}
		out[i] = v
	}
	return out, nil
}

func TestSearch_InnerProductOrder(t *testing.T) {
	ix := New(nil, 3)
	require.NoError(t, ix.AddVectors([][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.5, 0.5, 0},
		{0.9, 0.1, 0},
	}))

	got, err := ix.Search([]float32{1, 0, 0}, 3)
	require.NoError(t, err)
	// Dot products: 1.0, 0.0, 0.5, 0.9 -> positions 0, 3, 2.
	assert.Equal(t, []int{0, 3, 2}, got)
}

func TestSearch_TiesPreferLowerPosition(t *testing.T) {
	ix := New(nil, 2)
	require.NoError(t, ix.AddVectors([][]float32{
		{0, 1},
		{1, 0},
		{1, 0},
	}))

	got, err := ix.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0}, got, "equal scores break toward first inserted")
}

func TestSearch_KLargerThanIndex(t *testing.T) {
	ix := New(nil, 2)
	require.NoError(t, ix.AddVectors([][]float32{{1, 0}}))

	got, err := ix.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got)
}

func TestAdd_FailureLeavesIndexUnchanged(t *testing.T) {
	emb := &fakeEmbedder{broken: true}
	ix := New(emb, 2)

	err := ix.Add(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, 0, ix.Size())
}

func TestAddVectors_DimensionMismatchRejectsWholeBatch(t *testing.T) {
	ix := New(nil, 3)
	err := ix.AddVectors([][]float32{
		{1, 0, 0},
		{1, 0}, // wrong dimension
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, ix.Size(), "bad batch must not be partially applied")
}

func TestAdd_AppendsInOrder(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"first":  {1, 0},
		"second": {0, 1},
	}}
	ix := New(emb, 2)

	require.NoError(t, ix.Add(context.Background(), []string{"first", "second"}))
	require.Equal(t, 2, ix.Size())

	got, err := ix.Search([]float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got)
}

// TestSaveLoad_RoundTripIdenticalSearch verifies persist/restore symmetry:
// the restored index returns identical search output for any fixed query.
func TestSaveLoad_RoundTripIdenticalSearch(t *testing.T) {
	ix := New(nil, 4)
	require.NoError(t, ix.AddVectors([][]float32{
		{0.1, 0.2, 0.3, 0.4},
		{0.4, 0.3, 0.2, 0.1},
		{0.9, 0.0, 0.1, 0.0},
		{0.2, 0.2, 0.2, 0.2},
	}))

	path := filepath.Join(t.TempDir(), "index.gob")
	require.NoError(t, ix.Save(path))

	restored, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, ix.Size(), restored.Size())
	require.Equal(t, ix.Dimension(), restored.Dimension())

	queries := [][]float32{
		{1, 0, 0, 0},
		{0.3, 0.1, 0.8, 0.2},
		{0, 0, 0, 1},
	}
	for _, q := range queries {
		for k := 1; k <= 4; k++ {
			want, err := ix.Search(q, k)
			require.NoError(t, err)
			got, err := restored.Search(q, k)
			require.NoError(t, err)
			assert.Equal(t, want, got, "query %v k=%d", q, k)
		}
	}
}

func TestSearchText_EmptyEmbedderResponseIsAnError(t *testing.T) {
	ix := New(&fakeEmbedder{empty: true}, 2)
	require.NoError(t, ix.AddVectors([][]float32{{1, 0}}))

	_, err := ix.SearchText(context.Background(), "anything", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0 vectors")
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	ix := New(nil, 3)
	_, err := ix.Search([]float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
