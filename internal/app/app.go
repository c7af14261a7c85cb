// Package app wires configuration into the running components shared by the
// CLI and the MCP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tutorlab/tutor-rag/internal/config"
	"github.com/tutorlab/tutor-rag/internal/embedder"
	"github.com/tutorlab/tutor-rag/internal/indexer"
	"github.com/tutorlab/tutor-rag/internal/llm"
	"github.com/tutorlab/tutor-rag/internal/metrics"
	"github.com/tutorlab/tutor-rag/internal/orchestrator"
	"github.com/tutorlab/tutor-rag/internal/outline"
	"github.com/tutorlab/tutor-rag/internal/registry"
	"github.com/tutorlab/tutor-rag/internal/searcher"
	"github.com/tutorlab/tutor-rag/internal/storage"
	"github.com/tutorlab/tutor-rag/internal/vectorstore"
)

// App holds every long-lived component
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Embedder     embedder.Embedder
	Completer    llm.Completer
	Store        *vectorstore.Store
	Registry     *registry.Registry
	Searcher     *searcher.Searcher
	Indexer      *indexer.Indexer
	Orchestrator *orchestrator.Orchestrator

	backend vectorstore.Backend
}

// Option replaces a component built from config
type Option func(*options)

type options struct {
	embedder  embedder.Embedder
	completer llm.Completer
}

// WithEmbedder uses emb instead of the configured provider
func WithEmbedder(emb embedder.Embedder) Option {
	return func(o *options) { o.embedder = emb }
}

// WithCompleter uses c instead of the configured completion endpoint
func WithCompleter(c llm.Completer) Option {
	return func(o *options) { o.completer = c }
}

// New builds and opens all components. The caller must Close the App.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	a.Embedder = o.embedder
	if a.Embedder == nil {
		embOpts := []embedder.Option{embedder.WithLogger(logger.Named("embedder")), embedder.WithMetrics(a.Metrics)}
		if cfg.Embedder.MaxRetries > 0 {
			rc := embedder.DefaultRetryConfig()
			rc.MaxRetries = cfg.Embedder.MaxRetries
			embOpts = append(embOpts, embedder.WithRetry(rc))
		}
		emb, err := embedder.New(embedder.Config{
			Provider:  cfg.Embedder.Provider,
			BaseURL:   cfg.Embedder.BaseURL,
			Model:     cfg.Embedder.Model,
			APIKey:    cfg.EmbedderAPIKey(),
			Timeout:   time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
			CacheSize: cfg.Embedder.CacheSize,
			Dimension: cfg.Embedder.Dimension,
		}, embOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		a.Embedder = emb
	}

	a.Completer = o.completer
	if a.Completer == nil {
		a.Completer = llm.NewOpenAIProvider(llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLMAPIKey(),
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
			Logger:      logger.Named("llm"),
		})
	}

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.backend = backend
	a.Store = vectorstore.New(backend,
		vectorstore.WithLogger(logger.Named("vectorstore")),
		vectorstore.WithMetrics(a.Metrics))
	if err := a.Store.Open(ctx); err != nil {
		_ = a.Store.Close()
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	if dim := a.Store.Dimension(); dim != 0 && dim != a.Embedder.Dimension() {
		logger.Warn("stored embeddings do not match the embedder; searches will fail until re-ingested",
			zap.Int("stored_dimension", dim),
			zap.Int("embedder_dimension", a.Embedder.Dimension()))
	}

	a.Registry, err = registry.Open(cfg.Resolve(cfg.Registry.File), logger.Named("registry"))
	if err != nil {
		_ = a.Store.Close()
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}

	a.Searcher = searcher.NewSearcher(a.Store, a.Embedder,
		searcher.WithLogger(logger.Named("searcher")),
		searcher.WithMetrics(a.Metrics))

	outlines := outline.NewExtractor(a.Completer, logger.Named("outline"), a.Metrics)
	a.Indexer, err = indexer.New(indexer.Config{
		ChunkSize: cfg.Chunker.Size,
		Overlap:   cfg.Chunker.Overlap,
		BatchSize: cfg.Embedder.BatchSize,
		Workers:   cfg.Ingest.Workers,
	}, a.Embedder, outlines, a.Registry, a.Store,
		indexer.WithLogger(logger.Named("indexer")),
		indexer.WithMetrics(a.Metrics))
	if err != nil {
		_ = a.Store.Close()
		return nil, err
	}

	a.Orchestrator = orchestrator.New(orchestrator.Config{
		LessonK:        cfg.Retrieval.LessonK,
		ChapterQuizK:   cfg.Retrieval.ChapterQuizK,
		GeneralQuizK:   cfg.Retrieval.GeneralQuizK,
		ChatK:          cfg.Retrieval.ChatK,
		ExpectedChars:  cfg.Generation.ExpectedLessonChars,
		PersistQuizzes: cfg.Quiz.Persist,
		QuizTTL:        time.Duration(cfg.Quiz.TTLMinutes) * time.Minute,
		WarmWorkers:    cfg.Generation.WarmWorkers,
	}, a.Searcher, a.Completer, a.Registry,
		orchestrator.WithLogger(logger.Named("orchestrator")),
		orchestrator.WithMetrics(a.Metrics))

	logger.Info("components ready",
		zap.String("embedder", a.Embedder.Provider()),
		zap.String("embedding_model", a.Embedder.Model()),
		zap.String("llm_model", a.Completer.Model()),
		zap.String("store", a.Store.BackendName()),
		zap.Int("chunks", a.Store.Len()))
	return a, nil
}

func newBackend(ctx context.Context, cfg *config.Config) (vectorstore.Backend, error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case config.BackendSQLite:
		b, err := storage.NewSQLiteBackend(ctx, cfg.Resolve(cfg.Store.SQLiteFile))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return b, nil
	case config.BackendJSON, "":
		return vectorstore.NewFileBackend(cfg.Resolve(cfg.Store.SnapshotFile)), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Status summarises the running system
type Status struct {
	Chunks            int             `json:"chunks"`
	Dimension         int             `json:"dimension"`
	StoreBackend      string          `json:"storeBackend"`
	StoreLoaded       bool            `json:"storeLoaded"`
	StorePath         string          `json:"storePath"`
	SchemaVersion     string          `json:"schemaVersion,omitempty"`
	RegistryPath      string          `json:"registryPath"`
	Registry          registry.Counts `json:"registry"`
	EmbeddingProvider string          `json:"embeddingProvider"`
	EmbeddingModel    string          `json:"embeddingModel"`
	LLMModel          string          `json:"llmModel"`
	SQLiteDriver      string          `json:"sqliteDriver"`
	BuildMode         string          `json:"buildMode"`
}

// Status reports store, registry and provider information
func (a *App) Status() Status {
	st := Status{
		Chunks:            a.Store.Len(),
		Dimension:         a.Store.Dimension(),
		StoreBackend:      a.Store.BackendName(),
		StoreLoaded:       a.Store.Loaded(),
		RegistryPath:      a.Registry.Path(),
		Registry:          a.Registry.Counts(),
		EmbeddingProvider: a.Embedder.Provider(),
		EmbeddingModel:    a.Embedder.Model(),
		LLMModel:          a.Completer.Model(),
		SQLiteDriver:      storage.DriverName,
		BuildMode:         storage.BuildMode,
	}

	switch b := a.backend.(type) {
	case *vectorstore.FileBackend:
		st.StorePath = b.Path()
	case *storage.SQLiteBackend:
		st.StorePath = b.Path()
		if v, err := storage.SchemaVersion(context.Background(), b.DB()); err == nil {
			st.SchemaVersion = v
		} else {
			a.Logger.Warn("failed to read schema version", zap.Error(err))
		}
	}
	return st
}

// ServeMetrics runs the Prometheus listener when metrics.addr is configured
func (a *App) ServeMetrics(ctx context.Context) error {
	if a.Config.Metrics.Addr == "" {
		return nil
	}
	return a.Metrics.Serve(ctx, a.Config.Metrics.Addr, a.Logger)
}

// Close releases the store and the embedder
func (a *App) Close() error {
	return errors.Join(a.Store.Close(), a.Embedder.Close())
}
