package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ragalert/internal/domain"
	"ragalert/internal/port"
)

// RetrieveUseCase embeds a query and searches the current index.
type RetrieveUseCase struct {
	embedder          port.Embedder
	store             *IndexStore
	minScoreThreshold float64 // Filter results below this score (0 = disabled)
	logger            *slog.Logger
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(
	embedder port.Embedder,
	store *IndexStore,
	minScoreThreshold float64,
	logger *slog.Logger,
) *RetrieveUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrieveUseCase{
		embedder:          embedder,
		store:             store,
		minScoreThreshold: minScoreThreshold,
		logger:            logger,
	}
}

// Retrieve returns the k segments of scope most similar to query. An
// empty index yields no segments rather than an error; an unknown
// document scope is domain.ErrNotFound.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query, scope string, k int) ([]domain.ScoredSegment, error) {
	if k <= 0 {
		return nil, nil
	}

	if scope == port.CombinedScope && u.store.Snapshot() == nil {
		u.logger.Warn("retrieval without an index", "query_len", len(query))
		return nil, nil
	}

	vectors, err := u.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for one query", domain.ErrUpstream, len(vectors))
	}

	results, err := u.store.Search(ctx, scope, vectors[0], k)
	if errors.Is(err, domain.ErrNoIndex) {
		u.logger.Warn("retrieval without an index", "query_len", len(query))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if u.minScoreThreshold > 0 {
		results = u.filterByThreshold(results)
	}
	return results, nil
}

// filterByThreshold removes results below the minimum score threshold.
func (u *RetrieveUseCase) filterByThreshold(results []domain.ScoredSegment) []domain.ScoredSegment {
	filtered := make([]domain.ScoredSegment, 0, len(results))
	for _, r := range results {
		if r.Score >= u.minScoreThreshold {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
