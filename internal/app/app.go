// Package app builds the service object shared by the HTTP server and the
// CLI: one index store, one set of adapters, constructed at start up.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"ragalert/config"
	"ragalert/internal/adapter/analyzer"
	"ragalert/internal/adapter/cache"
	"ragalert/internal/adapter/chunker"
	"ragalert/internal/adapter/classifier"
	"ragalert/internal/adapter/embedding"
	"ragalert/internal/adapter/fs"
	"ragalert/internal/adapter/ledger"
	"ragalert/internal/adapter/llm"
	"ragalert/internal/adapter/loader"
	"ragalert/internal/adapter/memstore"
	"ragalert/internal/adapter/notify"
	"ragalert/internal/adapter/qdrant"
	"ragalert/internal/adapter/report"
	"ragalert/internal/adapter/store"
	"ragalert/internal/adapter/watcher"
	"ragalert/internal/domain"
	"ragalert/internal/port"
	"ragalert/internal/usecase"
)

// Service owns every long-lived component of the process.
type Service struct {
	Config  *config.Config
	RootDir string
	Logger  *slog.Logger

	Store   *usecase.IndexStore
	Ingest  *usecase.IndexUseCase
	Query   *usecase.QueryUseCase
	Alerts  *usecase.AlertUseCase
	Reports *usecase.ReportUseCase

	embedder   port.Embedder
	walker     *fs.Walker
	qdrant     *qdrant.Backend
	queryCache *cache.QueryCache
	vectors    *store.BoltStore
	ledger     *ledger.Ledger

	backendMu sync.Mutex
	backend   string
}

// Option overrides a component, mostly for tests.
type Option func(*options)

type options struct {
	llm      port.LLM
	notifier port.Notifier
	embedder port.Embedder
}

// WithLLM replaces the chat completion client.
func WithLLM(l port.LLM) Option {
	return func(o *options) { o.llm = l }
}

// WithNotifier replaces the SMTP notifier.
func WithNotifier(n port.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithEmbedder replaces the configured embedder.
func WithEmbedder(e port.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// New wires the service from cfg. Relative paths in cfg are resolved
// against rootDir. Nothing is ingested until Ingest is called.
func New(cfg *config.Config, rootDir string, logger *slog.Logger, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		Config:  cfg,
		RootDir: rootDir,
		Logger:  logger,
		backend: cfg.Index.Backend,
	}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	if err := s.openStorage(); err != nil {
		return nil, err
	}

	embedder := o.embedder
	if embedder == nil {
		var err error
		if embedder, err = newEmbedder(cfg.Embedding, cfg.EmbeddingAPIKey()); err != nil {
			return nil, err
		}
	}
	if s.vectors != nil {
		res, err := s.vectors.Prepare(embedder.ModelName(), embedder.Dimension())
		if err != nil {
			return nil, fmt.Errorf("failed to prepare embedding cache: %w", err)
		}
		if res.NeedsRebuild {
			logger.Info("embedding cache cleared", "reason", res.Reason)
		}
		embedder = embedding.NewCachedEmbedder(embedder, s.vectors, logger)
	}
	s.embedder = embedder

	chat := o.llm
	if chat == nil {
		client, err := llm.NewClient(llm.Config{
			BaseURL:    cfg.LLM.BaseURL,
			APIKey:     cfg.LLM.APIKey,
			AuthHeader: cfg.LLM.AuthHeader,
			Model:      cfg.LLM.Model,
			Timeout:    cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create llm client: %w", err)
		}
		chat = client
	}

	notifier := o.notifier
	if notifier == nil {
		var err error
		if notifier, err = newNotifier(cfg.Notify, logger); err != nil {
			return nil, err
		}
	}

	backends := []port.IndexBackend{memstore.NewBackend()}
	if cfg.Index.Qdrant.URL != "" {
		s.qdrant = qdrant.NewBackend(qdrant.Config{
			URL:        cfg.Index.Qdrant.URL,
			APIKey:     cfg.Index.Qdrant.APIKey,
			Collection: cfg.Index.Qdrant.Collection,
			Timeout:    cfg.Index.Qdrant.Timeout,
			BatchSize:  cfg.Index.Qdrant.BatchSize,
		}, logger)
		backends = append(backends, s.qdrant)
	}

	s.Store = usecase.NewIndexStore(logger)
	s.walker = fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)

	var manifest usecase.ManifestStore
	if s.vectors != nil {
		manifest = s.vectors
	}
	s.Ingest = usecase.NewIndexUseCase(
		s.walker,
		loader.NewMultiLoader(),
		chunker.NewRecursiveChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		embedder,
		backends,
		s.Store,
		manifest,
		cfg.Ingest.Workers,
		logger,
	)
	if !s.Ingest.HasBackend(s.backend) {
		return nil, fmt.Errorf("index backend %q is not configured", s.backend)
	}

	var retriever port.Retriever = usecase.NewRetrieveUseCase(embedder, s.Store, 0, logger)
	if cfg.Retrieve.CacheSize > 0 {
		s.queryCache = cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL)
		s.Store.OnSwap(s.queryCache.Invalidate)
		retriever = cache.NewCachedRetriever(retriever, s.queryCache)
	}

	generator := usecase.NewAnswerGenerator(chat, usecase.GeneratorConfig{
		Persona:     cfg.LLM.Persona,
		Language:    cfg.LLM.Language,
		MaxWords:    cfg.LLM.MaxWords,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		Fallback:    cfg.LLM.Fallback,
	}, logger)

	var incidents port.IncidentLedger
	if s.ledger != nil {
		incidents = s.ledger
	}
	s.Alerts = usecase.NewAlertUseCase(
		classifier.NewKeywordClassifier(cfg.Alert.Keywords),
		notifier,
		incidents,
		usecase.AlertConfig{
			PublicURL:  cfg.Server.PublicURL,
			Subject:    cfg.Notify.Subject,
			Recipients: cfg.Notify.To,
		},
		logger,
	)
	s.Query = usecase.NewQueryUseCase(retriever, generator, s.Alerts, cfg.Retrieve.TopK, logger)
	s.Reports = usecase.NewReportUseCase(report.NewGenerator(), logger)

	ok = true
	return s, nil
}

func (s *Service) openStorage() error {
	if path := config.ResolvePath(s.RootDir, s.Config.Embedding.CachePath); path != "" {
		if err := config.EnsureParentDir(path); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
		st, err := store.NewBoltStore(path)
		if err != nil {
			return fmt.Errorf("failed to open embedding cache: %w", err)
		}
		s.vectors = st
	}
	if path := config.ResolvePath(s.RootDir, s.Config.Ledger.Path); path != "" {
		if err := config.EnsureParentDir(path); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
		l, err := ledger.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open incident ledger: %w", err)
		}
		s.ledger = l
	}
	return nil
}

func newEmbedder(cfg config.EmbeddingConfig, apiKey string) (port.Embedder, error) {
	switch cfg.Provider {
	case "", "hash":
		return embedding.NewHashingEmbedder(cfg.Dimension, analyzer.NewTokenizer(true)), nil
	case "openai":
		e, err := embedding.NewOpenAIEmbedder(embedding.Config{
			BaseURL:   cfg.BaseURL,
			APIKey:    apiKey,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			BatchSize: cfg.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		return e, nil
	case "ollama":
		e, err := embedding.NewOllamaEmbedder(cfg.Model, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

func newNotifier(cfg config.NotifyConfig, logger *slog.Logger) (port.Notifier, error) {
	if !cfg.Enabled {
		return notify.Disabled{}, nil
	}
	n, err := notify.NewSMTPNotifier(notify.Config{
		Host:          cfg.SMTPHost,
		Port:          cfg.SMTPPort,
		Username:      cfg.Username,
		Password:      cfg.Password,
		From:          cfg.From,
		Timeout:       cfg.Timeout,
		RatePerMinute: cfg.RatePerMinute,
		Burst:         cfg.Burst,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}
	return n, nil
}

// DocsDir is the directory scanned on ingest.
func (s *Service) DocsDir() string {
	return config.ResolvePath(s.RootDir, s.Config.Ingest.Dir)
}

// Backend returns the backend selected for the next rebuild.
func (s *Service) Backend() string {
	s.backendMu.Lock()
	defer s.backendMu.Unlock()
	return s.backend
}

// Rebuild re-ingests the documents directory with the selected backend.
func (s *Service) Rebuild(ctx context.Context) (*domain.IngestResult, error) {
	s.backendMu.Lock()
	defer s.backendMu.Unlock()
	return s.Ingest.Index(ctx, s.DocsDir(), s.backend)
}

// ToggleBackend switches between the local and hosted backends. The new
// backend only sticks if its rebuild succeeded.
func (s *Service) ToggleBackend(ctx context.Context) (*usecase.ToggleResult, error) {
	s.backendMu.Lock()
	defer s.backendMu.Unlock()
	res, err := s.Ingest.Toggle(ctx, s.DocsDir(), s.backend)
	if err != nil {
		return nil, err
	}
	s.backend = res.Current
	return res, nil
}

// Info describes the active configuration.
type Info struct {
	RemoteIndex     bool   `json:"remote_index"`
	IndexEndpoint   string `json:"index_endpoint"`
	IndexName       string `json:"index_name"`
	EmbeddingModel  string `json:"embedding_model"`
	DocumentsLoaded int    `json:"documents_loaded"`
	Backend         string `json:"backend"`
}

// Info reports the backend, index endpoint and loaded document count.
func (s *Service) Info() Info {
	backend := s.Backend()
	info := Info{
		RemoteIndex:     backend == config.BackendQdrant,
		EmbeddingModel:  s.embedder.ModelName(),
		DocumentsLoaded: len(s.Store.DocumentNames()),
		Backend:         backend,
		IndexName:       "memory",
	}
	if info.RemoteIndex && s.qdrant != nil {
		info.IndexEndpoint = s.qdrant.Endpoint()
		info.IndexName = s.Config.Index.Qdrant.Collection
		if snap, ok := s.Store.Snapshot().(*qdrant.Snapshot); ok {
			info.IndexName = snap.Collection()
		}
	}
	return info
}

// Watch rebuilds the index whenever a matching file under the documents
// directory changes. Failed rebuilds keep the current snapshot.
func (s *Service) Watch(ctx context.Context, debounce time.Duration) (<-chan struct{}, error) {
	dir := s.DocsDir()
	w := watcher.New(func(path string) bool {
		rel, err := filepath.Rel(dir, path)
		return err == nil && s.walker.Matches(rel)
	}, debounce, s.Logger)
	return w.Watch(ctx, dir, func(ctx context.Context) error {
		_, err := s.Rebuild(ctx)
		return err
	})
}

// Close releases the index and closes storage.
func (s *Service) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if s.Store != nil {
		errs = append(errs, s.Store.Close(ctx))
	}
	if s.vectors != nil {
		errs = append(errs, s.vectors.Close())
	}
	if s.ledger != nil {
		errs = append(errs, s.ledger.Close())
	}
	return errors.Join(errs...)
}

// Manifest lists the documents of the last successful ingest as recorded
// in the embedding cache. It is empty when the cache is disabled.
func (s *Service) Manifest() ([]domain.Document, error) {
	if s.vectors == nil {
		return []domain.Document{}, nil
	}
	return s.vectors.ListManifest()
}
