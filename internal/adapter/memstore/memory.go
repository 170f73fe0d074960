package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"ragalert/config"
	"ragalert/internal/domain"
	"ragalert/internal/port"
)

// Backend builds exact in-process indexes.
type Backend struct{}

func NewBackend() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string {
	return config.BackendLocal
}

type entry struct {
	segment domain.Segment
	vector  []float32
	norm    float64
}

// Snapshot is an immutable set of per-document indexes plus the combined
// index. All document indexes share the combined entry slice.
type Snapshot struct {
	names     []string
	entries   []entry
	byDoc     map[string][]int
	dimension int
}

func (b *Backend) Build(ctx context.Context, docs []domain.IndexedDocument) (port.Snapshot, error) {
	snap := &Snapshot{
		byDoc: make(map[string][]int, len(docs)),
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, dup := snap.byDoc[doc.Name]; dup {
			return nil, fmt.Errorf("duplicate document name %q", doc.Name)
		}
		if len(doc.Segments) != len(doc.Vectors) {
			return nil, fmt.Errorf("document %q: %d segments but %d vectors", doc.Name, len(doc.Segments), len(doc.Vectors))
		}

		idx := make([]int, 0, len(doc.Segments))
		for i, seg := range doc.Segments {
			vec := doc.Vectors[i]
			if snap.dimension == 0 {
				snap.dimension = len(vec)
			}
			if len(vec) != snap.dimension {
				return nil, fmt.Errorf("document %q segment %d: dimension %d, expected %d", doc.Name, i, len(vec), snap.dimension)
			}
			idx = append(idx, len(snap.entries))
			snap.entries = append(snap.entries, entry{
				segment: seg,
				vector:  vec,
				norm:    vectorNorm(vec),
			})
		}
		snap.byDoc[doc.Name] = idx
		snap.names = append(snap.names, doc.Name)
	}

	return snap, nil
}

func (s *Snapshot) Documents() []string {
	return append([]string(nil), s.names...)
}

func (s *Snapshot) Len() int {
	return len(s.entries)
}

func (s *Snapshot) Search(ctx context.Context, scope string, vector []float32, k int) ([]domain.ScoredSegment, error) {
	var candidates []int
	if scope == port.CombinedScope {
		candidates = make([]int, len(s.entries))
		for i := range candidates {
			candidates[i] = i
		}
	} else {
		idx, ok := s.byDoc[scope]
		if !ok {
			return nil, domain.DocumentNotFound(scope)
		}
		candidates = idx
	}
	if k <= 0 || len(candidates) == 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(vector), s.dimension)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qnorm := vectorNorm(vector)
	scored := make([]domain.ScoredSegment, len(candidates))
	for i, c := range candidates {
		e := s.entries[c]
		scored[i] = domain.ScoredSegment{
			Segment: e.segment,
			Score:   cosine(vector, qnorm, e.vector, e.norm),
		}
	}

	// candidates are in insertion order, so a stable sort breaks ties by it
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *Snapshot) Release(context.Context) error {
	return nil
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, normA float64, b []float32, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
