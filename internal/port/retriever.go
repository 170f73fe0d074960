package port

import (
	"context"

	"ragalert/internal/domain"
)

// Retriever defines the interface for searching indexed content.
type Retriever interface {
	// Retrieve embeds the query and returns the top-k segments of scope.
	Retrieve(ctx context.Context, query, scope string, k int) ([]domain.ScoredSegment, error)
}
