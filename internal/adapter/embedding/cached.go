package embedding

import (
	"context"
	"log/slog"

	"ragalert/internal/port"
)

// VectorCache persists embeddings keyed by model and text.
type VectorCache interface {
	GetVectors(model string, texts []string) ([][]float32, error)
	PutVectors(model string, texts []string, vectors [][]float32) error
}

// CachedEmbedder serves repeated texts from a VectorCache and only sends
// misses to the wrapped embedder. Cache failures are logged and bypassed.
type CachedEmbedder struct {
	inner  port.Embedder
	cache  VectorCache
	logger *slog.Logger
}

func NewCachedEmbedder(inner port.Embedder, cache VectorCache, logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{inner: inner, cache: cache, logger: logger}
}

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model := e.inner.ModelName()

	out, err := e.cache.GetVectors(model, texts)
	if err != nil {
		e.logger.Warn("embedding cache read failed", "error", err)
		return e.inner.Embed(ctx, texts)
	}

	var missIdx []int
	var missTexts []string
	for i, vec := range out {
		if len(vec) != e.inner.Dimension() {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = fresh[j]
	}
	if err := e.cache.PutVectors(model, missTexts, fresh); err != nil {
		e.logger.Warn("embedding cache write failed", "error", err)
	}

	e.logger.Debug("embedded texts", "model", model, "total", len(texts), "cached", len(texts)-len(missTexts))
	return out, nil
}

func (e *CachedEmbedder) Dimension() int {
	return e.inner.Dimension()
}

func (e *CachedEmbedder) ModelName() string {
	return e.inner.ModelName()
}
