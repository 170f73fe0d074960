package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ragalert/internal/domain"
)

func results(texts ...string) []domain.ScoredSegment {
	out := make([]domain.ScoredSegment, len(texts))
	for i, t := range texts {
		out[i] = domain.ScoredSegment{Segment: domain.Segment{Text: t}, Score: 1}
	}
	return out
}

func TestQueryCache_GetPut(t *testing.T) {
	c := NewQueryCache(10, time.Minute)

	c.Put("", "fuga", 3, results("a"))
	got, ok := c.Get("", "fuga", 3)
	require.True(t, ok)
	assert.Equal(t, "a", got[0].Segment.Text)

	_, ok = c.Get("manual", "fuga", 3)
	assert.False(t, ok, "scope is part of the key")
	_, ok = c.Get("", "fuga", 2)
	assert.False(t, ok, "k is part of the key")
}

func TestQueryCache_TTL(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Put("", "q", 3, results("a"))
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("", "q", 3)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestQueryCache_Eviction(t *testing.T) {
	c := NewQueryCache(2, time.Minute)

	c.Put("", "q1", 3, results("1"))
	c.Put("", "q2", 3, results("2"))
	_, _ = c.Get("", "q1", 3) // q1 becomes most recent
	c.Put("", "q3", 3, results("3"))

	_, ok := c.Get("", "q2", 3)
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok = c.Get("", "q1", 3)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestQueryCache_Invalidate(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	c.Put("", "q", 3, results("a"))

	c.Invalidate()

	_, ok := c.Get("", "q", 3)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

type stubRetriever struct {
	calls int
	err   error
}

func (s *stubRetriever) Retrieve(ctx context.Context, query, scope string, k int) ([]domain.ScoredSegment, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return results(scope + ":" + query), nil
}

func TestCachedRetriever(t *testing.T) {
	inner := &stubRetriever{}
	r := NewCachedRetriever(inner, NewQueryCache(10, time.Minute))
	ctx := context.Background()

	first, err := r.Retrieve(ctx, "fuga", "A", 3)
	require.NoError(t, err)
	second, err := r.Retrieve(ctx, "fuga", "A", 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	_, err = r.Retrieve(ctx, "fuga", "B", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedRetriever_ErrorsNotCached(t *testing.T) {
	inner := &stubRetriever{err: errors.New("down")}
	r := NewCachedRetriever(inner, NewQueryCache(10, time.Minute))

	_, err := r.Retrieve(context.Background(), "q", "", 3)
	require.Error(t, err)
	_, err = r.Retrieve(context.Background(), "q", "", 3)
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

type blockingRetriever struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingRetriever) Retrieve(ctx context.Context, query, scope string, k int) ([]domain.ScoredSegment, error) {
	close(b.started)
	<-b.release
	return results("old-index"), nil
}

func TestCachedRetriever_InvalidateDuringRetrieve(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	inner := &blockingRetriever{started: make(chan struct{}), release: make(chan struct{})}
	r := NewCachedRetriever(inner, c)

	done := make(chan []domain.ScoredSegment, 1)
	go func() {
		got, err := r.Retrieve(context.Background(), "q", "", 3)
		assert.NoError(t, err)
		done <- got
	}()

	<-inner.started
	c.Invalidate()
	close(inner.release)

	got := <-done
	assert.Equal(t, "old-index", got[0].Segment.Text)

	_, ok := c.Get("", "q", 3)
	assert.False(t, ok, "results from before the swap must not be cached")
	assert.Equal(t, 0, c.Size())
}

func TestQueryCache_PutAtStaleGeneration(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	gen := c.Generation()
	c.Invalidate()

	assert.False(t, c.PutAt(gen, "", "q", 3, results("a")))
	assert.True(t, c.PutAt(c.Generation(), "", "q", 3, results("b")))

	got, ok := c.Get("", "q", 3)
	require.True(t, ok)
	assert.Equal(t, "b", got[0].Segment.Text)
}
