package port

import (
	"context"

	"ragalert/internal/domain"
)

// CombinedScope selects the index over all documents.
const CombinedScope = ""

// IndexBackend builds immutable index snapshots.
type IndexBackend interface {
	// Name identifies the backend ("local", "qdrant").
	Name() string

	// Build indexes every document, in order, into a new snapshot.
	// The returned snapshot holds one index per document plus the combined index.
	Build(ctx context.Context, docs []domain.IndexedDocument) (Snapshot, error)
}

// Snapshot is a fully built, read-only set of indexes.
type Snapshot interface {
	// Documents returns document names in ingestion order.
	Documents() []string

	// Search returns at most k segments of scope ordered by descending
	// similarity, ties in insertion order. scope is a document name or
	// CombinedScope.
	Search(ctx context.Context, scope string, vector []float32, k int) ([]domain.ScoredSegment, error)

	// Len returns the number of segments in the combined index.
	Len() int

	// Release frees backend resources once the snapshot has been replaced.
	Release(ctx context.Context) error
}
