package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ragalert/config"
	"ragalert/internal/adapter/fs"
	"ragalert/internal/domain"
	"ragalert/internal/port"
)

// ManifestStore persists the document list of the last successful ingest.
type ManifestStore interface {
	PutManifest(docs []domain.Document) error
}

// IndexUseCase handles document ingestion and index rebuilds.
type IndexUseCase struct {
	walker   port.FileWalker
	loader   port.DocumentLoader
	chunker  port.Chunker
	embedder port.Embedder
	backends map[string]port.IndexBackend
	store    *IndexStore
	manifest ManifestStore
	workers  int
	logger   *slog.Logger

	// OnProgress, when set, is called after each document is processed.
	OnProgress func(done, total int)
}

// NewIndexUseCase creates a new index use case. manifest may be nil.
func NewIndexUseCase(
	walker port.FileWalker,
	loader port.DocumentLoader,
	chunker port.Chunker,
	embedder port.Embedder,
	backends []port.IndexBackend,
	store *IndexStore,
	manifest ManifestStore,
	workers int,
	logger *slog.Logger,
) *IndexUseCase {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[string]port.IndexBackend, len(backends))
	for _, b := range backends {
		byName[b.Name()] = b
	}
	return &IndexUseCase{
		walker:   walker,
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		backends: byName,
		store:    store,
		manifest: manifest,
		workers:  workers,
		logger:   logger,
	}
}

// HasBackend reports whether a backend with the given name is configured.
func (u *IndexUseCase) HasBackend(name string) bool {
	_, ok := u.backends[name]
	return ok
}

// Index discovers every document under root, then rebuilds all indexes
// with the named backend. If nothing is found it returns
// domain.ErrNoDocuments and the current index is left untouched; any other
// failure also leaves the previous index in place.
func (u *IndexUseCase) Index(ctx context.Context, root, backendName string) (*domain.IngestResult, error) {
	backend, ok := u.backends[backendName]
	if !ok {
		return nil, domain.NewValidationError("backend", "unknown index backend %q", backendName)
	}

	start := time.Now()
	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	if len(files) == 0 {
		u.logger.Warn("no documents found", "dir", root)
		return nil, fmt.Errorf("%w in %s", domain.ErrNoDocuments, root)
	}

	docs := nameDocuments(files)
	u.logger.Info("ingestion started", "dir", root, "documents", len(docs), "backend", backendName)

	indexed, err := u.prepare(ctx, docs)
	if err != nil {
		return nil, err
	}

	result := &domain.IngestResult{Backend: backendName}
	err = u.store.Rebuild(ctx, func(ctx context.Context) (port.Snapshot, string, error) {
		snap, err := backend.Build(ctx, indexed)
		if err != nil {
			return nil, "", fmt.Errorf("failed to build %s index: %w", backendName, err)
		}
		return snap, backendName, nil
	})
	if err != nil {
		return nil, err
	}

	for i, d := range docs {
		result.Documents = append(result.Documents, d.Name)
		result.Pages += d.Pages
		result.Segments += len(indexed[i].Segments)
	}
	result.Duration = time.Since(start)

	if u.manifest != nil {
		if err := u.manifest.PutManifest(docs); err != nil {
			u.logger.Warn("failed to write manifest", "error", err)
		}
	}

	u.logger.Info("ingestion finished",
		"documents", len(result.Documents),
		"pages", result.Pages,
		"segments", result.Segments,
		"backend", backendName,
		"duration", result.Duration)
	return result, nil
}

// prepare loads, chunks and embeds documents in parallel. Results keep
// discovery order. docs[i].Pages is filled in.
func (u *IndexUseCase) prepare(ctx context.Context, docs []domain.Document) ([]domain.IndexedDocument, error) {
	out := make([]domain.IndexedDocument, len(docs))
	pages := make([]int, len(docs))
	done := make(chan struct{}, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)
	for i := range docs {
		doc := docs[i]
		g.Go(func() error {
			indexed, n, err := u.prepareOne(gctx, doc)
			if err != nil {
				u.logger.Error("failed to process document", "document", doc.Name, "path", doc.Path, "error", err)
				return fmt.Errorf("document %s: %w", doc.Name, err)
			}
			out[i] = indexed
			pages[i] = n
			done <- struct{}{}
			return nil
		})
	}

	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		count := 0
		for range done {
			count++
			if u.OnProgress != nil {
				u.OnProgress(count, len(docs))
			}
		}
	}()

	err := g.Wait()
	close(done)
	<-progressDone
	if err != nil {
		return nil, err
	}

	for i := range docs {
		docs[i].Pages = pages[i]
	}
	return out, nil
}

func (u *IndexUseCase) prepareOne(ctx context.Context, doc domain.Document) (domain.IndexedDocument, int, error) {
	pages, err := u.loader.Load(ctx, doc.Path)
	if err != nil {
		return domain.IndexedDocument{}, 0, fmt.Errorf("failed to load: %w", err)
	}

	segments := u.chunker.Chunk(doc.Name, pages)
	if len(segments) == 0 {
		u.logger.Warn("document has no extractable text", "document", doc.Name)
		return domain.IndexedDocument{Name: doc.Name}, len(pages), nil
	}

	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}
	vectors, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.IndexedDocument{}, 0, fmt.Errorf("failed to embed: %w", err)
	}
	if len(vectors) != len(segments) {
		return domain.IndexedDocument{}, 0, fmt.Errorf("embedder returned %d vectors for %d segments", len(vectors), len(segments))
	}

	return domain.IndexedDocument{Name: doc.Name, Segments: segments, Vectors: vectors}, len(pages), nil
}

// nameDocuments derives unique document names in discovery order. A name
// seen before gets a numeric suffix: "manual", "manual_2", "manual_3".
func nameDocuments(files []port.FileInfo) []domain.Document {
	used := make(map[string]bool, len(files))
	docs := make([]domain.Document, 0, len(files))
	for _, f := range files {
		base := fs.DocumentName(f.Path)
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[name] = true
		docs = append(docs, domain.Document{
			Name:    name,
			Path:    f.Path,
			ModTime: time.Unix(f.ModTime, 0),
		})
	}
	return docs
}

// ToggleResult reports the outcome of a backend switch.
type ToggleResult struct {
	Previous      string `json:"previous"`
	Current       string `json:"current"`
	ReloadSuccess bool   `json:"reload_success"`
	Message       string `json:"message"`
}

// Toggle switches between the local and hosted backends and rebuilds.
// When the rebuild fails the previous backend and snapshot stay active.
func (u *IndexUseCase) Toggle(ctx context.Context, root, current string) (*ToggleResult, error) {
	next := otherBackend(current)
	if !u.HasBackend(next) {
		return nil, domain.NewValidationError("backend", "backend %q is not configured", next)
	}

	res := &ToggleResult{Previous: current}
	if _, err := u.Index(ctx, root, next); err != nil {
		u.logger.Warn("backend toggle failed", "from", current, "to", next, "error", err)
		res.Current = current
		res.Message = fmt.Sprintf("Could not switch to %s: %v", backendLabel(next), err)
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return res, nil
	}

	u.logger.Info("backend toggled", "from", current, "to", next)
	res.Current = next
	res.ReloadSuccess = true
	res.Message = "Switched to " + backendLabel(next)
	return res, nil
}

func otherBackend(name string) string {
	if name == config.BackendQdrant {
		return config.BackendLocal
	}
	return config.BackendQdrant
}

func backendLabel(name string) string {
	if name == config.BackendQdrant {
		return "Qdrant"
	}
	return "local index"
}
