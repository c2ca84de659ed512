// Package index implements the append-only flat embedding index: an ordered
// sequence of fixed-dimension vectors searched by exact inner product. The
// position of a vector is its identity; rows of the section store point at
// vectors by position, so the index never deletes or reorders.
package index

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/viant/vec/search"
)

// DefaultDimension matches text-embedding-ada-002.
const DefaultDimension = 1536

var (
	// ErrDimensionMismatch means a vector's length differs from the index's
	// fixed dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder is the embedding-provider capability the index depends on.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the append-only vector index. Safe for concurrent use: reads take
// a shared lock, Add serializes writers.
type Index struct {
	mu       sync.RWMutex
	embedder Embedder
	dim      int
	vectors  [][]float32
	// Cached magnitudes let search recover the inner product from the SIMD
	// cosine kernel without renormalizing per query.
	mags []float32
}

// New creates an empty index. If dim <= 0, DefaultDimension is used.
func New(embedder Embedder, dim int) *Index {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Index{embedder: embedder, dim: dim}
}

// Size returns the number of stored vectors.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Dimension returns the fixed vector dimension.
func (ix *Index) Dimension() int {
	return ix.dim
}

// Add embeds texts as one provider batch and appends the vectors in order.
// On any failure the index is left unchanged; callers must not assume
// partial progress.
func (ix *Index) Add(ctx context.Context, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	vectors, err := ix.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return ix.AddVectors(vectors)
}

// AddVectors appends pre-computed vectors. All dimensions are validated
// before anything is appended, so a bad batch leaves the index unchanged.
func (ix *Index) AddVectors(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(v), ix.dim)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, v := range vectors {
		ix.vectors = append(ix.vectors, v)
		ix.mags = append(ix.mags, search.Float32s(v).Magnitude())
	}
	return nil
}

// SearchText embeds query through the same provider and searches.
func (ix *Index) SearchText(ctx context.Context, query string, k int) ([]int, error) {
	vectors, err := ix.embedder.GenerateEmbeddings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vectors))
	}
	return ix.Search(vectors[0], k)
}

// Search returns the positions of the k most similar vectors by inner
// product, most similar first. Ties go to the lower position (first
// inserted wins).
func (ix *Index) Search(query []float32, k int) ([]int, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(query), ix.dim)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	q := search.Float32s(query)
	qmag := q.Magnitude()

	type scored struct {
		pos   int
		score float32
	}
	scores := make([]scored, len(ix.vectors))
	for i, v := range ix.vectors {
		scores[i] = scored{pos: i, score: innerProduct(q, qmag, v, ix.mags[i])}
	}

	sort.SliceStable(scores, func(a, b int) bool {
		if scores[a].score != scores[b].score {
			return scores[a].score > scores[b].score
		}
		return scores[a].pos < scores[b].pos
	})

	if k > len(scores) {
		k = len(scores)
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = scores[i].pos
	}
	return out, nil
}

// innerProduct recovers the dot product from the SIMD cosine kernel:
// dot = (1 - cosineDistance) * |a| * |b|.
func innerProduct(q search.Float32s, qmag float32, v []float32, vmag float32) float32 {
	if qmag == 0 || vmag == 0 {
		return 0
	}
	return (1 - q.CosineDistanceWithMagnitudesNeon(v, qmag, vmag)) * qmag * vmag
}

// persisted is the on-disk form. Magnitudes are recomputed on load.
type persisted struct {
	Dim     int
	Vectors [][]float32
}

// Save writes the index as an opaque gob blob. A Save/Load round trip
// reproduces identical search results.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(persisted{Dim: ix.dim, Vectors: ix.vectors}); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	return nil
}

// Load reads an index written by Save, binding it to the given embedder.
func Load(path string, embedder Embedder) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var p persisted
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}

	ix := New(embedder, p.Dim)
	if err := ix.AddVectors(p.Vectors); err != nil {
		return nil, err
	}
	return ix, nil
}
