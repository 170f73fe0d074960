package usecase

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ragalert/internal/domain"
	"ragalert/internal/port"
)

// IndexStore holds the current index snapshot. Readers load it without
// locking; writers are serialized and replace it wholesale, so a search
// never observes a partially built index.
type IndexStore struct {
	current atomic.Pointer[indexState]
	writeMu sync.Mutex
	onSwap  []func()
	logger  *slog.Logger
}

type indexState struct {
	snapshot port.Snapshot
	backend  string
	builtAt  time.Time
}

func NewIndexStore(logger *slog.Logger) *IndexStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexStore{logger: logger}
}

// OnSwap registers fn to run after every successful swap. Not safe to call
// concurrently with Rebuild.
func (s *IndexStore) OnSwap(fn func()) {
	s.onSwap = append(s.onSwap, fn)
}

// Rebuild runs build while holding the writer lock and swaps its snapshot
// in on success. On failure the previous snapshot stays current.
func (s *IndexStore) Rebuild(ctx context.Context, build func(ctx context.Context) (port.Snapshot, string, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap, backend, err := build(ctx)
	if err != nil {
		return err
	}
	s.swap(ctx, snap, backend)
	return nil
}

func (s *IndexStore) swap(ctx context.Context, snap port.Snapshot, backend string) {
	old := s.current.Swap(&indexState{snapshot: snap, backend: backend, builtAt: time.Now()})
	for _, fn := range s.onSwap {
		fn()
	}
	s.logger.Info("index swapped", "backend", backend, "documents", len(snap.Documents()), "segments", snap.Len())

	if old != nil && old.snapshot != nil {
		if err := old.snapshot.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release previous index", "backend", old.backend, "error", err)
		}
	}
}

// Snapshot returns the current snapshot or nil before the first build.
func (s *IndexStore) Snapshot() port.Snapshot {
	if st := s.current.Load(); st != nil {
		return st.snapshot
	}
	return nil
}

// Backend returns the name of the backend that built the current
// snapshot, or "" before the first build.
func (s *IndexStore) Backend() string {
	if st := s.current.Load(); st != nil {
		return st.backend
	}
	return ""
}

// BuiltAt returns when the current snapshot was swapped in.
func (s *IndexStore) BuiltAt() time.Time {
	if st := s.current.Load(); st != nil {
		return st.builtAt
	}
	return time.Time{}
}

// DocumentNames returns loaded document names in ingestion order.
func (s *IndexStore) DocumentNames() []string {
	snap := s.Snapshot()
	if snap == nil {
		return []string{}
	}
	return snap.Documents()
}

// Search queries the current snapshot. Without a snapshot the combined
// scope reports domain.ErrNoIndex and any named scope is not found.
func (s *IndexStore) Search(ctx context.Context, scope string, vector []float32, k int) ([]domain.ScoredSegment, error) {
	snap := s.Snapshot()
	if snap == nil {
		if scope == port.CombinedScope {
			return nil, domain.ErrNoIndex
		}
		return nil, domain.DocumentNotFound(scope)
	}
	return snap.Search(ctx, scope, vector, k)
}

// Close releases the current snapshot.
func (s *IndexStore) Close(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	old := s.current.Swap(nil)
	if old == nil || old.snapshot == nil {
		return nil
	}
	return old.snapshot.Release(ctx)
}
