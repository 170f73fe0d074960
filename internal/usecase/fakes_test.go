package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ragalert/internal/adapter/analyzer"
	"ragalert/internal/adapter/chunker"
	"ragalert/internal/adapter/embedding"
	"ragalert/internal/adapter/fs"
	"ragalert/internal/adapter/loader"
	"ragalert/internal/adapter/memstore"
	"ragalert/internal/domain"
	"ragalert/internal/port"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []port.ChatRequest
}

func (f *fakeLLM) Chat(ctx context.Context, req port.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) ModelName() string { return "fake-chat" }

func (f *fakeLLM) last() port.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeNotifier struct {
	mu     sync.Mutex
	err    error
	alerts []domain.Alert
}

func (f *fakeNotifier) Send(ctx context.Context, alert domain.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return f.err
}

func (f *fakeNotifier) sent() []domain.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Alert(nil), f.alerts...)
}

type fakeLedger struct {
	mu        sync.Mutex
	incidents []domain.Incident
}

func (f *fakeLedger) Record(ctx context.Context, inc domain.Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incidents = append(f.incidents, inc)
	return nil
}

func (f *fakeLedger) List(ctx context.Context, limit int) ([]domain.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Incident(nil), f.incidents...), nil
}

// namedBackend serves a memstore backend under another name so toggling
// can be tested without a Qdrant server.
type namedBackend struct {
	port.IndexBackend
	name string
}

func (b namedBackend) Name() string { return b.name }

type failingBackend struct{ name string }

func (b failingBackend) Name() string { return b.name }

func (b failingBackend) Build(context.Context, []domain.IndexedDocument) (port.Snapshot, error) {
	return nil, errors.New("backend unreachable")
}

type manifestRecorder struct {
	docs []domain.Document
}

func (m *manifestRecorder) PutManifest(docs []domain.Document) error {
	m.docs = append([]domain.Document(nil), docs...)
	return nil
}

type pipeline struct {
	store    *IndexStore
	index    *IndexUseCase
	retrieve *RetrieveUseCase
	manifest *manifestRecorder
}

func newPipeline(t *testing.T, backends ...port.IndexBackend) *pipeline {
	t.Helper()
	if len(backends) == 0 {
		backends = []port.IndexBackend{memstore.NewBackend()}
	}
	logger := discardLogger()
	embedder := embedding.NewHashingEmbedder(256, analyzer.NewTokenizer(true))
	store := NewIndexStore(logger)
	manifest := &manifestRecorder{}
	return &pipeline{
		store: store,
		index: NewIndexUseCase(
			fs.NewWalker([]string{"**/*.txt"}, nil),
			loader.NewMultiLoader(),
			chunker.NewRecursiveChunker(120, 20),
			embedder,
			backends,
			store,
			manifest,
			2,
			logger,
		),
		retrieve: NewRetrieveUseCase(embedder, store, 0, logger),
		manifest: manifest,
	}
}

func writeDoc(t *testing.T, dir, name string, pages ...string) {
	t.Helper()
	content := ""
	for i, p := range pages {
		if i > 0 {
			content += "\f"
		}
		content += p
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
