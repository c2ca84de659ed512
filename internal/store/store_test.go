package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/wikiquery/internal/index"
	"github.com/bull/wikiquery/internal/sectionizer"
)

// keywordEmbedder embeds text as keyword occurrence counts: deterministic,
// and a section always scores highest against its own text.
type keywordEmbedder struct {
	broken bool
	calls  int
}

var keywords = []string{"alpha", "beta", "greek", "letter", "history", "phoenician", "alphabet", "follows"}

func (k *keywordEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	k.calls++
	if k.broken {
		return nil, errors.New("provider exhausted retries")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		v := make([]float32, len(keywords))
		for j, kw := range keywords {
			v[j] = float32(strings.Count(lower, kw))
		}
		out[i] = v
	}
	return out, nil
}

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func newTestStore(t *testing.T) (*Store, *index.Index, *keywordEmbedder) {
	t.Helper()
	emb := &keywordEmbedder{}
	ix := index.New(emb, len(keywords))
	sz, err := sectionizer.New(wordCounter{}, 100)
	require.NoError(t, err)
	return New(sz, ix, nil), ix, emb
}

const alphaPage = `Alpha is the first letter.

== History ==
The Greeks adapted it from Phoenician.

== References ==
Citations live here.`

func TestAddPage_OrdinalCorrespondence(t *testing.T) {
	s, ix, _ := newTestStore(t)

	added, err := s.AddPage(context.Background(), "Alpha", alphaPage)
	require.NoError(t, err)
	assert.Equal(t, 2, added, "lead and History; References discarded")
	assert.Equal(t, s.RowCount(), ix.Size(), "rows and vectors must stay aligned")

	sec, err := s.Section(0)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", sec.PageTitle)
	assert.Equal(t, "", sec.Heading)
}

func TestAddPage_Idempotent(t *testing.T) {
	s, ix, emb := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddPage(ctx, "Alpha", alphaPage)
	require.NoError(t, err)
	rows, vectors, calls := s.RowCount(), ix.Size(), emb.calls

	added, err := s.AddPage(ctx, "Alpha", alphaPage)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Equal(t, rows, s.RowCount())
	assert.Equal(t, vectors, ix.Size())
	assert.Equal(t, calls, emb.calls, "second add must not re-embed")
	assert.True(t, s.HasPage("Alpha"))
}

func TestAddPage_EmbedFailureSkipsWholePage(t *testing.T) {
	s, ix, emb := newTestStore(t)
	emb.broken = true

	_, err := s.AddPage(context.Background(), "Alpha", alphaPage)
	require.Error(t, err)
	assert.Equal(t, 0, s.RowCount(), "no partial sections for a failed page")
	assert.Equal(t, 0, ix.Size())
	assert.False(t, s.HasPage("Alpha"), "failed page stays re-addable")
}

func TestAddPage_DiscardCategoriesNeverStored(t *testing.T) {
	s, _, _ := newTestStore(t)

	_, err := s.AddPage(context.Background(), "Alpha", alphaPage)
	require.NoError(t, err)

	for i := 0; i < s.RowCount(); i++ {
		sec, err := s.Section(i)
		require.NoError(t, err)
		assert.NotEqual(t, "references", strings.ToLower(sec.Heading))
	}
}

func TestSection_OutOfRange(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, err := s.Section(0)
	assert.ErrorIs(t, err, ErrRowOutOfRange)
	_, err = s.Section(-1)
	assert.ErrorIs(t, err, ErrRowOutOfRange)
}

func TestNearestSections_RankedOrder(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddPage(ctx, "Alpha", "Alpha is a Greek letter.")
	require.NoError(t, err)
	_, err = s.AddPage(ctx, "Beta", "Beta is another Greek letter.")
	require.NoError(t, err)

	// Querying with the exact stored text must rank that section first: the
	// hash embedder gives identical vectors for identical text.
	got, err := s.NearestSections(ctx, "Beta is another Greek letter.", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Beta", got[0].PageTitle)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s, ix, emb := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddPage(ctx, "Alpha", alphaPage)
	require.NoError(t, err)
	_, err = s.AddPage(ctx, "Beta", "Beta follows Alpha in the alphabet.")
	require.NoError(t, err)

	dir := t.TempDir()
	storePath := filepath.Join(dir, "sections.db")
	indexPath := filepath.Join(dir, "index.gob")
	require.NoError(t, s.Save(storePath))
	require.NoError(t, ix.Save(indexPath))

	restoredIx, err := index.Load(indexPath, emb)
	require.NoError(t, err)
	sz, err := sectionizer.New(wordCounter{}, 100)
	require.NoError(t, err)
	restored, err := Load(storePath, sz, restoredIx, nil)
	require.NoError(t, err)

	require.Equal(t, s.RowCount(), restored.RowCount())
	assert.True(t, restored.HasPage("Alpha"))
	assert.True(t, restored.HasPage("Beta"))

	for i := 0; i < s.RowCount(); i++ {
		want, err := s.Section(i)
		require.NoError(t, err)
		got, err := restored.Section(i)
		require.NoError(t, err)
		assert.Equal(t, want, got, "row %d", i)
	}

	// Same query, same ranked sections after the round trip.
	want, err := s.NearestSections(ctx, "Greek alphabet history", 2)
	require.NoError(t, err)
	got, err := restored.NearestSections(ctx, "Greek alphabet history", 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_DivergedSizesFailFast(t *testing.T) {
	s, ix, emb := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddPage(ctx, "Alpha", alphaPage)
	require.NoError(t, err)

	storePath := filepath.Join(t.TempDir(), "sections.db")
	require.NoError(t, s.Save(storePath))

	// An empty index against a populated table is an invariant violation.
	emptyIx := index.New(emb, ix.Dimension())
	sz, err := sectionizer.New(wordCounter{}, 100)
	require.NoError(t, err)
	_, err = Load(storePath, sz, emptyIx, nil)
	assert.ErrorIs(t, err, ErrStoreCorrupted)
}
