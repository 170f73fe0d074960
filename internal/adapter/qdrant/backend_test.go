package qdrant

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ragalert/internal/domain"
	"ragalert/internal/port"
)

// fakeQdrant implements the handful of REST calls the backend uses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string][]point
	failUpsert  bool
	apiKeys     []string
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{collections: map[string][]point{}}
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "collections" {
		http.NotFound(w, r)
		return
	}
	name := parts[1]

	switch {
	case len(parts) == 2 && r.Method == http.MethodPut:
		f.collections[name] = nil
		w.Write([]byte(`{"result":true}`))
	case len(parts) == 2 && r.Method == http.MethodDelete:
		delete(f.collections, name)
		w.Write([]byte(`{"result":true}`))
	case len(parts) == 3 && parts[2] == "index":
		w.Write([]byte(`{"result":{}}`))
	case len(parts) == 3 && parts[2] == "points" && r.Method == http.MethodPut:
		if f.failUpsert {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		var body struct {
			Points []point `json:"points"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.collections[name] = append(f.collections[name], body.Points...)
		w.Write([]byte(`{"result":{}}`))
	case len(parts) == 4 && parts[3] == "search":
		var req searchRequest
		json.NewDecoder(r.Body).Decode(&req)
		type hit struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		}
		var hits []hit
		for _, p := range f.collections[name] {
			if req.Filter != nil && p.Payload["document"] != req.Filter.Must[0].Match.Value {
				continue
			}
			hits = append(hits, hit{ID: p.ID, Score: cos(req.Vector, p.Vector), Payload: p.Payload})
		}
		// reverse insertion order on ties so the client has to re-sort
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
		for i := 0; i+1 < len(hits); i++ {
			if hits[i].Score == hits[i+1].Score {
				hits[i], hits[i+1] = hits[i+1], hits[i]
				i++
			}
		}
		if len(hits) > req.Limit {
			hits = hits[:req.Limit]
		}
		json.NewEncoder(w).Encode(map[string]any{"result": hits})
	default:
		http.NotFound(w, r)
	}
}

func cos(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func docs() []domain.IndexedDocument {
	mk := func(src string, ord int, text string) domain.Segment {
		return domain.Segment{ID: "00000000-0000-0000-0000-00000000000" + string(rune('0'+ord)) + src, Source: src, Page: ord + 1, Ordinal: ord, Text: text}
	}
	return []domain.IndexedDocument{
		{Name: "A", Segments: []domain.Segment{mk("A", 0, "a0"), mk("A", 1, "a1")}, Vectors: [][]float32{{1, 0}, {0, 1}}},
		{Name: "B", Segments: []domain.Segment{mk("B", 2, "b0")}, Vectors: [][]float32{{1, 0}}},
	}
}

func TestBackend_BuildSearchRelease(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	b := NewBackend(Config{URL: srv.URL, APIKey: "key", Collection: "test", BatchSize: 2}, nil)
	assert.Equal(t, "qdrant", b.Name())

	snap, err := b.Build(context.Background(), docs())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, snap.Documents())
	assert.Equal(t, 3, snap.Len())

	coll := snap.(*Snapshot).Collection()
	assert.True(t, strings.HasPrefix(coll, "test_"))
	assert.Len(t, fake.collections[coll], 3)

	res, err := snap.Search(context.Background(), port.CombinedScope, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a0", res[0].Segment.Text, "ties resolved by insertion order")
	assert.Equal(t, "b0", res[1].Segment.Text)
	assert.Equal(t, "A", res[0].Segment.Source)
	assert.Equal(t, 1, res[0].Segment.Page)
	assert.NotEmpty(t, res[0].Segment.ID)

	res, err = snap.Search(context.Background(), "B", []float32{0, 1}, 3)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "B", res[0].Segment.Source)

	_, err = snap.Search(context.Background(), "C", []float32{1, 0}, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, snap.Release(context.Background()))
	assert.NotContains(t, fake.collections, coll)
	assert.Equal(t, "key", fake.apiKeys[0])
}

func TestBackend_UpsertFailureDropsCollection(t *testing.T) {
	fake := newFakeQdrant()
	fake.failUpsert = true
	srv := httptest.NewServer(fake)
	defer srv.Close()

	b := NewBackend(Config{URL: srv.URL, Collection: "test"}, nil)
	_, err := b.Build(context.Background(), docs())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Empty(t, fake.collections, "partial collection is dropped")
}

func TestBackend_EmptyBuild(t *testing.T) {
	b := NewBackend(Config{URL: "http://127.0.0.1:1"}, nil)

	snap, err := b.Build(context.Background(), []domain.IndexedDocument{{Name: "blank"}})
	require.NoError(t, err)

	res, err := snap.Search(context.Background(), "blank", []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.NoError(t, snap.Release(context.Background()))
}

func TestBackend_Unreachable(t *testing.T) {
	b := NewBackend(Config{URL: "http://127.0.0.1:1"}, nil)
	_, err := b.Build(context.Background(), docs())
	assert.ErrorIs(t, err, domain.ErrUpstream)
}
