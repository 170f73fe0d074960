package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"ragalert/config"
	"ragalert/internal/domain"
	"ragalert/internal/port"
)

// Backend builds snapshots as fresh Qdrant collections named
// <collection>_<generation>. A snapshot owns its collection and drops it
// on Release.
type Backend struct {
	client     *Client
	collection string
	batchSize  int
	logger     *slog.Logger
}

func NewBackend(cfg Config, logger *slog.Logger) *Backend {
	if cfg.Collection == "" {
		cfg.Collection = "ragalert"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		client:     NewClient(cfg),
		collection: cfg.Collection,
		batchSize:  cfg.BatchSize,
		logger:     logger,
	}
}

func (b *Backend) Name() string {
	return config.BackendQdrant
}

// Endpoint returns the configured Qdrant URL.
func (b *Backend) Endpoint() string {
	return b.client.url
}

func (b *Backend) Build(ctx context.Context, docs []domain.IndexedDocument) (port.Snapshot, error) {
	snap := &Snapshot{
		client: b.client,
		known:  make(map[string]bool, len(docs)),
	}

	dimension := 0
	for _, doc := range docs {
		if snap.known[doc.Name] {
			return nil, fmt.Errorf("duplicate document name %q", doc.Name)
		}
		if len(doc.Segments) != len(doc.Vectors) {
			return nil, fmt.Errorf("document %q: %d segments but %d vectors", doc.Name, len(doc.Segments), len(doc.Vectors))
		}
		snap.known[doc.Name] = true
		snap.names = append(snap.names, doc.Name)
		for _, v := range doc.Vectors {
			if dimension == 0 {
				dimension = len(v)
			}
			if len(v) != dimension {
				return nil, fmt.Errorf("document %q: mixed vector dimensions %d and %d", doc.Name, len(v), dimension)
			}
		}
	}
	if dimension == 0 {
		// nothing to upload; searches return empty results
		return snap, nil
	}

	name := fmt.Sprintf("%s_%s_%s", b.collection, time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
	if err := b.client.CreateCollection(ctx, name, dimension); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	snap.collection = name

	batch := make([]point, 0, b.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := b.client.Upsert(ctx, name, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	seq := 0
	for _, doc := range docs {
		for i, seg := range doc.Segments {
			batch = append(batch, point{
				ID:     seg.ID,
				Vector: doc.Vectors[i],
				Payload: map[string]any{
					"document": doc.Name,
					"page":     seg.Page,
					"ordinal":  seg.Ordinal,
					"offset":   seg.Offset,
					"text":     seg.Text,
					"seq":      seq,
				},
			})
			seq++
			if len(batch) == b.batchSize {
				if err := flush(); err != nil {
					b.discard(name)
					return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
				}
			}
		}
	}
	if err := flush(); err != nil {
		b.discard(name)
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	snap.count = seq

	b.logger.Info("qdrant collection built", "collection", name, "points", seq, "documents", len(docs))
	return snap, nil
}

// discard drops a half-built collection; it runs detached from the build
// context, which may already be cancelled.
func (b *Backend) discard(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.client.DeleteCollection(ctx, name); err != nil {
		b.logger.Warn("failed to drop partial collection", "collection", name, "error", err)
	}
}

// Snapshot is a read-only view over one Qdrant collection.
type Snapshot struct {
	client     *Client
	collection string
	names      []string
	known      map[string]bool
	count      int
}

func (s *Snapshot) Documents() []string {
	return append([]string(nil), s.names...)
}

func (s *Snapshot) Len() int {
	return s.count
}

// Collection returns the backing collection name, empty when nothing was uploaded.
func (s *Snapshot) Collection() string {
	return s.collection
}

type ranked struct {
	scored domain.ScoredSegment
	seq    int
}

func (s *Snapshot) Search(ctx context.Context, scope string, vector []float32, k int) ([]domain.ScoredSegment, error) {
	if scope != port.CombinedScope && !s.known[scope] {
		return nil, domain.DocumentNotFound(scope)
	}
	if k <= 0 || s.collection == "" {
		return nil, nil
	}

	req := searchRequest{Vector: vector, Limit: k, WithPayload: true}
	if scope != port.CombinedScope {
		req.Filter = &filter{Must: []condition{{Key: "document", Match: match{Value: scope}}}}
	}

	points, err := s.client.Search(ctx, s.collection, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}

	results := make([]ranked, 0, len(points))
	for _, p := range points {
		seg, seq := segmentFromPayload(p.Payload)
		if id, ok := p.ID.(string); ok {
			seg.ID = id
		}
		results = append(results, ranked{
			scored: domain.ScoredSegment{Segment: seg, Score: p.Score},
			seq:    seq,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].scored.Score != results[j].scored.Score {
			return results[i].scored.Score > results[j].scored.Score
		}
		return results[i].seq < results[j].seq
	})

	out := make([]domain.ScoredSegment, len(results))
	for i, r := range results {
		out[i] = r.scored
	}
	return out, nil
}

func (s *Snapshot) Release(ctx context.Context) error {
	if s.collection == "" {
		return nil
	}
	return s.client.DeleteCollection(ctx, s.collection)
}

func segmentFromPayload(payload map[string]any) (domain.Segment, int) {
	var seg domain.Segment
	if v, ok := payload["document"].(string); ok {
		seg.Source = v
	}
	if v, ok := payload["text"].(string); ok {
		seg.Text = v
	}
	seg.Page = intField(payload, "page")
	seg.Ordinal = intField(payload, "ordinal")
	seg.Offset = intField(payload, "offset")
	return seg, intField(payload, "seq")
}

func intField(payload map[string]any, key string) int {
	if v, ok := payload[key].(float64); ok {
		return int(v)
	}
	return 0
}
