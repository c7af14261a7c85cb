package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tutorlab/tutor-rag/internal/chunker"
	"github.com/tutorlab/tutor-rag/internal/embedder"
	"github.com/tutorlab/tutor-rag/internal/extract"
	"github.com/tutorlab/tutor-rag/internal/metrics"
	"github.com/tutorlab/tutor-rag/internal/outline"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

// DefaultBatchSize is the number of chunks sent per embedding call
const DefaultBatchSize = 20

// ErrNoText is returned when a document yields no extractable text
var ErrNoText = fmt.Errorf("document contains no text: %w", types.ErrEmptyContent)

// ChunkStore receives embedded chunks. Implemented by *vectorstore.Store.
type ChunkStore interface {
	AddDocuments(ctx context.Context, chunks []types.DocumentChunk) error
}

// CourseStore receives course metadata. Implemented by *registry.Registry.
type CourseStore interface {
	AddCourse(course types.Course) error
	DeleteCourse(id string) error
}

// OutlineExtractor derives course structure from a preview. Implemented by *outline.Extractor.
type OutlineExtractor interface {
	Extract(ctx context.Context, preview string) outline.Result
}

// Document is one upload: raw bytes plus the media type they claim to be
type Document struct {
	Name string
	Data []byte
	MIME string
}

// Config contains configuration for the indexer
type Config struct {
	ChunkSize int // Words per chunk (default: 1000)
	Overlap   int // Words shared by adjacent chunks (default: 100 when ChunkSize is unset)
	BatchSize int // Chunks per embedding call (default: 20)
	Workers   int // Files ingested concurrently by IngestFiles (default: runtime.NumCPU())
}

// Statistics describes one ingestion
type Statistics struct {
	Course          types.Course
	OutlineFallback bool
	ChunksCreated   int
	ChunksEmbedded  int
	BatchesTotal    int
	BatchesFailed   int
	Duration        time.Duration
	ErrorMessages   []string
}

// FileResult is the outcome of ingesting one file with IngestFiles
type FileResult struct {
	Path  string
	Stats *Statistics
	Err   error
}

// Indexer coordinates the ingestion pipeline: extract -> outline -> course -> chunk -> embed -> store
type Indexer struct {
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	outlines OutlineExtractor
	courses  CourseStore
	chunks   ChunkStore
	logger   *zap.Logger
	metrics  *metrics.Metrics

	batchSize int
	workers   int
	lock      IndexLock
}

// Option configures an Indexer
type Option func(*Indexer)

func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(idx *Indexer) { idx.metrics = m }
}

// New creates an Indexer. A zero Config uses the defaults.
func New(cfg Config, emb embedder.Embedder, outlines OutlineExtractor, courses CourseStore, chunks ChunkStore, opts ...Option) (*Indexer, error) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = chunker.DefaultChunkSize
		if cfg.Overlap == 0 {
			cfg.Overlap = chunker.DefaultOverlap
		}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	c, err := chunker.New(cfg.ChunkSize, cfg.Overlap)
	if err != nil {
		return nil, fmt.Errorf("invalid chunker config: %w", err)
	}

	idx := &Indexer{
		chunker:   c,
		embedder:  emb,
		outlines:  outlines,
		courses:   courses,
		chunks:    chunks,
		logger:    zap.NewNop(),
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// TryLock reserves the indexer for an exclusive caller such as the MCP ingest tool.
// Ingest itself does not require it.
func (idx *Indexer) TryLock() bool {
	return idx.lock.TryAcquire()
}

// Unlock releases a reservation taken with TryLock
func (idx *Indexer) Unlock() {
	idx.lock.Release()
}

// Ingest runs the full pipeline for one document. Unsupported media and empty
// documents are rejected before any side effect. Embedding failures are
// per-batch: the failed batch is dropped and recorded, the rest is stored and
// the course is kept. Cancellation or a failed chunk write removes the course
// again, so no course outlives an aborted ingestion.
func (idx *Indexer) Ingest(ctx context.Context, doc Document) (*Statistics, error) {
	start := time.Now()
	logger := idx.logger.With(zap.String("source", doc.Name))

	text, err := extract.Extract(doc.Data, doc.MIME)
	if err != nil {
		return nil, err
	}
	text = chunker.Normalize(text)
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}

	res := idx.outlines.Extract(ctx, outline.Preview(text))
	course := newCourse(doc.Name, res)
	if err := idx.courses.AddCourse(course); err != nil {
		return nil, fmt.Errorf("failed to save course: %w", err)
	}
	logger.Info("course created",
		zap.String("course_id", course.ID),
		zap.String("title", course.Title),
		zap.Int("chapters", len(course.Chapters)),
		zap.Bool("outline_fallback", res.Fallback))

	pieces := idx.chunker.Split(text)
	stats := &Statistics{
		Course:          course,
		OutlineFallback: res.Fallback,
		ChunksCreated:   len(pieces),
		ErrorMessages:   make([]string, 0),
	}

	records, err := idx.embedChunks(ctx, doc.Name, pieces, stats, logger)
	if err != nil {
		return nil, idx.abandonCourse(course.ID, err, logger)
	}

	if len(records) > 0 {
		if err := idx.chunks.AddDocuments(ctx, records); err != nil {
			return nil, idx.abandonCourse(course.ID, fmt.Errorf("failed to store chunks: %w", err), logger)
		}
	}
	idx.metrics.ChunksAdded(len(records))

	stats.ChunksEmbedded = len(records)
	stats.Duration = time.Since(start)
	logger.Info("document ingested",
		zap.Int("chunks", stats.ChunksCreated),
		zap.Int("embedded", stats.ChunksEmbedded),
		zap.Int("failed_batches", stats.BatchesFailed),
		zap.Int("tokens_estimated", chunker.EstimateTokens(text)),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// abandonCourse removes a course whose chunks were never stored and returns cause
func (idx *Indexer) abandonCourse(courseID string, cause error, logger *zap.Logger) error {
	if err := idx.courses.DeleteCourse(courseID); err != nil {
		logger.Error("failed to remove course after aborted ingestion",
			zap.String("course_id", courseID),
			zap.Error(err))
		return errors.Join(cause, err)
	}
	logger.Warn("ingestion aborted, course removed",
		zap.String("course_id", courseID),
		zap.Error(cause))
	return cause
}

func newCourse(source string, res outline.Result) types.Course {
	title := res.Outline.Title
	if res.Fallback || title == "" {
		title = source
	}
	chapters := make([]types.Chapter, len(res.Outline.Chapters))
	copy(chapters, res.Outline.Chapters)
	return types.Course{
		ID:          uuid.NewString(),
		Title:       title,
		Description: "Generated from " + source,
		SourceFile:  source,
		Chapters:    chapters,
		CreatedAt:   time.Now().UTC(),
	}
}

// embedChunks embeds pieces sequentially in fixed-size batches. Only context
// cancellation aborts; any other batch failure drops that batch.
func (idx *Indexer) embedChunks(ctx context.Context, source string, pieces []string, stats *Statistics, logger *zap.Logger) ([]types.DocumentChunk, error) {
	records := make([]types.DocumentChunk, 0, len(pieces))

	for i := 0; i < len(pieces); i += idx.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := i + idx.batchSize
		if end > len(pieces) {
			end = len(pieces)
		}
		batch := pieces[i:end]
		batchNum := i/idx.batchSize + 1
		stats.BatchesTotal++

		vectors, err := idx.embedder.EmbedBatch(ctx, batch)
		if err == nil && len(vectors) != len(batch) {
			err = fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(batch))
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, err
			}
			stats.BatchesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("batch %d: %v", batchNum, err))
			idx.metrics.FailedBatch()
			logger.Warn("embedding batch dropped",
				zap.Int("batch", batchNum),
				zap.Int("chunks", len(batch)),
				zap.Error(err))
			continue
		}

		for j, text := range batch {
			records = append(records, types.DocumentChunk{
				ID:        uuid.NewString(),
				Text:      text,
				Source:    source,
				Embedding: vectors[j],
			})
		}
	}

	return records, nil
}

// IngestFiles reads and ingests several files concurrently, bounded by the
// configured worker count. A failing file does not stop the others; results
// are returned in input order.
func (idx *Indexer) IngestFiles(ctx context.Context, paths []string) ([]FileResult, error) {
	results := make([]FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for i, path := range paths {
		g.Go(func() error {
			stats, err := idx.IngestFile(gctx, path)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = FileResult{Path: path, Stats: stats, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// IngestFile reads one file from disk and ingests it. Unknown extensions fail
// with types.ErrUnsupportedMediaType before the file is read.
func (idx *Indexer) IngestFile(ctx context.Context, path string) (*Statistics, error) {
	mimeType := extract.DetectMIME(path)
	if mimeType == "" {
		return nil, fmt.Errorf("%s: %w", path, types.ErrUnsupportedMediaType)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return idx.Ingest(ctx, Document{Name: filepath.Base(path), Data: data, MIME: mimeType})
}
