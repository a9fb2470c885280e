package search

import (
	"context"
	"errors"
	"testing"

	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagenotes/sage/internal/store"
	"github.com/sagenotes/sage/pkg/vector"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return s.vec, s.err
}

func corpus() []*store.Note {
	return []*store.Note{
		{ID: "a", Title: "Meeting notes", Content: "budget discussion"},
		{ID: "b", Title: "Recipes", Content: "tomato soup"},
		{ID: "c", Title: "Ideas", Content: "a better meeting format"},
	}
}

func newTestIndex(t *testing.T) *vector.Index {
	t.Helper()
	fs, err := mem.NewFS()
	require.NoError(t, err)
	ix, err := vector.NewIndex(fs, "index.snapshot")
	require.NoError(t, err)
	return ix
}

func TestBasicSubstring(t *testing.T) {
	hits := Basic("meeting", corpus())
	require.Len(t, hits, 2)
	// Corpus order, matching title or content, case-insensitive.
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "c", hits[1].ID)

	assert.Empty(t, Basic("nothing here", corpus()))
}

func TestSearchWithoutSemanticUsesBasic(t *testing.T) {
	s := New()
	hits := s.Search(context.Background(), "soup", corpus())
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)
}

func TestSearchSemantic(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.Add("b", []float32{0, 1, 0}))
	require.NoError(t, ix.Add("a", []float32{1, 0, 0}))

	s := New(WithSemantic(&stubEmbedder{vec: []float32{0, 1, 0}}, ix))

	hits := s.Search(context.Background(), "anything", corpus())
	require.NotEmpty(t, hits)
	// Ranked by the index, not by corpus order.
	assert.Equal(t, "b", hits[0].ID)
}

func TestSearchFallsBackOnEmbedError(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.Add("a", []float32{1, 0, 0}))

	s := New(WithSemantic(&stubEmbedder{err: errors.New("provider down")}, ix))

	hits := s.Search(context.Background(), "soup", corpus())
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)
}

func TestSearchFallsBackOnEmptyIndex(t *testing.T) {
	ix := newTestIndex(t)
	s := New(WithSemantic(&stubEmbedder{vec: []float32{1, 0, 0}}, ix))

	hits := s.Search(context.Background(), "recipes", corpus())
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)
}

func TestSearchHonorsLimit(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.Add("a", []float32{1, 0, 0}))
	require.NoError(t, ix.Add("b", []float32{0.9, 0.1, 0}))
	require.NoError(t, ix.Add("c", []float32{0.8, 0.2, 0}))

	s := New(WithSemantic(&stubEmbedder{vec: []float32{1, 0, 0}}, ix), WithLimit(2))

	hits := s.Search(context.Background(), "anything", corpus())
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "b", hits[1].ID)
}

func TestSearchSkipsUnknownIDs(t *testing.T) {
	ix := newTestIndex(t)
	// "ghost" is indexed but no longer in the corpus.
	require.NoError(t, ix.Add("ghost", []float32{1, 0, 0}))
	require.NoError(t, ix.Add("a", []float32{0.9, 0.1, 0}))

	s := New(WithSemantic(&stubEmbedder{vec: []float32{1, 0, 0}}, ix))

	hits := s.Search(context.Background(), "anything", corpus())
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
}
