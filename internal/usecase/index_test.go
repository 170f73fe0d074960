package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragalert/internal/adapter/memstore"
	"ragalert/internal/domain"
	"ragalert/internal/port"
)

func seedTwoDocuments(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeDoc(t, dir, "A.txt",
		"El metacrilato de metilo (MMA) es un líquido inflamable. Debe almacenarse lejos de fuentes de ignición.",
		"Durante el trasvase desde cisterna se requiere casco, guantes y gafas de protección.",
		"En caso de fuga, active el protocolo de emergencia y evacúe el área.")
	writeDoc(t, dir, "B.txt",
		"Informe de sostenibilidad: reducción de emisiones de CO2 en las plantas europeas.")
	return dir
}

func TestIndex_DiscoveryOrderAndScope(t *testing.T) {
	p := newPipeline(t)
	dir := seedTwoDocuments(t)

	res, err := p.index.Index(context.Background(), dir, "local")
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, res.Documents)
	assert.Equal(t, []string{"A", "B"}, p.store.DocumentNames())
	assert.Equal(t, 4, res.Pages)
	assert.Positive(t, res.Segments)
	assert.Equal(t, "local", p.store.Backend())

	require.Len(t, p.manifest.docs, 2)
	assert.Equal(t, 3, p.manifest.docs[0].Pages)
	assert.Equal(t, 1, p.manifest.docs[1].Pages)

	hits, err := p.retrieve.Retrieve(context.Background(), "emisiones de CO2 sostenibilidad", "A", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	for _, h := range hits {
		assert.Equal(t, "A", h.Segment.Source)
	}

	hits, err = p.retrieve.Retrieve(context.Background(), "emisiones de CO2 sostenibilidad", port.CombinedScope, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "B", hits[0].Segment.Source)

	_, err = p.retrieve.Retrieve(context.Background(), "x", "C", 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndex_EmptyDirectoryLeavesStateUnchanged(t *testing.T) {
	p := newPipeline(t)
	_, err := p.index.Index(context.Background(), seedTwoDocuments(t), "local")
	require.NoError(t, err)
	before := p.store.Snapshot()

	_, err = p.index.Index(context.Background(), t.TempDir(), "local")
	assert.ErrorIs(t, err, domain.ErrNoDocuments)
	assert.Equal(t, []string{"A", "B"}, p.store.DocumentNames())
	assert.Same(t, before, p.store.Snapshot())
}

func TestIndex_EmptyDirectoryBeforeFirstBuild(t *testing.T) {
	p := newPipeline(t)
	_, err := p.index.Index(context.Background(), t.TempDir(), "local")
	assert.ErrorIs(t, err, domain.ErrNoDocuments)
	assert.Empty(t, p.store.DocumentNames())
	assert.Nil(t, p.store.Snapshot())
}

func TestIndex_UnknownBackend(t *testing.T) {
	p := newPipeline(t)
	_, err := p.index.Index(context.Background(), seedTwoDocuments(t), "faiss")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestIndex_Progress(t *testing.T) {
	p := newPipeline(t)
	var calls []int
	p.index.OnProgress = func(done, total int) {
		assert.Equal(t, 2, total)
		calls = append(calls, done)
	}
	_, err := p.index.Index(context.Background(), seedTwoDocuments(t), "local")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, calls)
}

func TestToggle(t *testing.T) {
	p := newPipeline(t, memstore.NewBackend(), namedBackend{memstore.NewBackend(), "qdrant"})
	dir := seedTwoDocuments(t)
	_, err := p.index.Index(context.Background(), dir, "local")
	require.NoError(t, err)

	res, err := p.index.Toggle(context.Background(), dir, p.store.Backend())
	require.NoError(t, err)
	assert.Equal(t, &ToggleResult{Previous: "local", Current: "qdrant", ReloadSuccess: true, Message: "Switched to Qdrant"}, res)
	assert.Equal(t, "qdrant", p.store.Backend())

	res, err = p.index.Toggle(context.Background(), dir, p.store.Backend())
	require.NoError(t, err)
	assert.Equal(t, "local", res.Current)
	assert.Equal(t, "Switched to local index", res.Message)
}

func TestToggle_FailureKeepsPreviousBackend(t *testing.T) {
	p := newPipeline(t, memstore.NewBackend(), failingBackend{"qdrant"})
	dir := seedTwoDocuments(t)
	_, err := p.index.Index(context.Background(), dir, "local")
	require.NoError(t, err)
	before := p.store.Snapshot()

	res, err := p.index.Toggle(context.Background(), dir, "local")
	require.NoError(t, err)
	assert.False(t, res.ReloadSuccess)
	assert.Equal(t, "local", res.Previous)
	assert.Equal(t, "local", res.Current)
	assert.Contains(t, res.Message, "backend unreachable")
	assert.Same(t, before, p.store.Snapshot())
	assert.Equal(t, "local", p.store.Backend())
}

func TestToggle_NotConfigured(t *testing.T) {
	p := newPipeline(t)
	_, err := p.index.Toggle(context.Background(), t.TempDir(), "local")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNameDocuments(t *testing.T) {
	docs := nameDocuments([]port.FileInfo{
		{Path: "/d/manual.pdf"},
		{Path: "/d/sub/manual.pdf"},
		{Path: "/d/x/manual.PDF"},
		{Path: "/d/ficha.pdf"},
	})
	var names []string
	for _, d := range docs {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"manual", "manual_2", "manual_3", "ficha"}, names)
}
