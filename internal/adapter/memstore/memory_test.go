package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ragalert/internal/domain"
	"ragalert/internal/port"
)

func seg(source string, ordinal int, text string) domain.Segment {
	return domain.Segment{ID: source + text, Source: source, Page: 1, Ordinal: ordinal, Text: text}
}

func buildSnapshot(t *testing.T) port.Snapshot {
	t.Helper()
	docs := []domain.IndexedDocument{
		{
			Name:     "A",
			Segments: []domain.Segment{seg("A", 0, "a0"), seg("A", 1, "a1"), seg("A", 2, "a2")},
			Vectors:  [][]float32{{1, 0}, {0, 1}, {1, 1}},
		},
		{
			Name:     "B",
			Segments: []domain.Segment{seg("B", 0, "b0")},
			Vectors:  [][]float32{{1, 0}},
		},
	}
	snap, err := NewBackend().Build(context.Background(), docs)
	require.NoError(t, err)
	return snap
}

func TestBuild_Documents(t *testing.T) {
	snap := buildSnapshot(t)

	assert.Equal(t, []string{"A", "B"}, snap.Documents())
	assert.Equal(t, 4, snap.Len())
}

func TestSearch_CombinedOrderAndTies(t *testing.T) {
	snap := buildSnapshot(t)

	res, err := snap.Search(context.Background(), port.CombinedScope, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)

	// a0 and b0 tie at 1.0; a0 was inserted first
	assert.Equal(t, "a0", res[0].Segment.Text)
	assert.Equal(t, "b0", res[1].Segment.Text)
	assert.Equal(t, "a2", res[2].Segment.Text)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}
}

func TestSearch_ScopedNeverLeaks(t *testing.T) {
	snap := buildSnapshot(t)

	res, err := snap.Search(context.Background(), "A", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, res, 3, "fewer than k in scope returns all of them")
	for _, r := range res {
		assert.Equal(t, "A", r.Segment.Source)
	}
}

func TestSearch_NotFound(t *testing.T) {
	snap := buildSnapshot(t)

	_, err := snap.Search(context.Background(), "C", []float32{1, 0}, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSearch_Bounds(t *testing.T) {
	snap := buildSnapshot(t)

	res, err := snap.Search(context.Background(), port.CombinedScope, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, res)

	_, err = snap.Search(context.Background(), port.CombinedScope, []float32{1, 0, 0}, 2)
	assert.Error(t, err)
}

func TestSearch_ZeroQuery(t *testing.T) {
	snap := buildSnapshot(t)

	res, err := snap.Search(context.Background(), "A", []float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a0", res[0].Segment.Text, "all-zero scores keep insertion order")
	assert.Equal(t, "a1", res[1].Segment.Text)
}

func TestBuild_Errors(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	_, err := b.Build(ctx, []domain.IndexedDocument{
		{Name: "A", Segments: []domain.Segment{seg("A", 0, "x")}},
	})
	assert.Error(t, err, "segment/vector count mismatch")

	_, err = b.Build(ctx, []domain.IndexedDocument{
		{Name: "A", Segments: []domain.Segment{seg("A", 0, "x")}, Vectors: [][]float32{{1}}},
		{Name: "A", Segments: []domain.Segment{seg("A", 0, "y")}, Vectors: [][]float32{{1}}},
	})
	assert.Error(t, err, "duplicate names")

	_, err = b.Build(ctx, []domain.IndexedDocument{
		{Name: "A", Segments: []domain.Segment{seg("A", 0, "x"), seg("A", 1, "y")}, Vectors: [][]float32{{1}, {1, 2}}},
	})
	assert.Error(t, err, "mixed dimensions")
}

func TestBuild_EmptyDocument(t *testing.T) {
	snap, err := NewBackend().Build(context.Background(), []domain.IndexedDocument{{Name: "blank"}})
	require.NoError(t, err)

	res, err := snap.Search(context.Background(), "blank", []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Equal(t, []string{"blank"}, snap.Documents())
}
