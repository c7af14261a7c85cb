package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tutorlab/tutor-rag/internal/metrics"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

// ErrClosed is returned by every operation after Close
var ErrClosed = errors.New("vector store is closed")

// Backend persists the full chunk collection as one snapshot
type Backend interface {
	// Load returns the persisted snapshot. A missing snapshot is an empty collection.
	Load(ctx context.Context) ([]types.DocumentChunk, error)

	// Save atomically replaces the snapshot with chunks
	Save(ctx context.Context, chunks []types.DocumentChunk) error

	// Close releases backend resources
	Close() error

	// Name identifies the backend in status output
	Name() string
}

// Store holds chunk records in memory and answers brute-force top-K cosine queries.
//
// One mutex guards the collection and the snapshot write, so every
// add is a single read-modify-write critical section.
type Store struct {
	mu         sync.Mutex
	backend    Backend
	chunks     []types.DocumentChunk
	dimension  int
	loaded     bool
	closed     bool
	generation uint64

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Store
type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates an unopened store over backend
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the snapshot. Calling it on an already loaded store is a no-op.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.loaded {
		return nil
	}
	return s.loadLocked(ctx)
}

// LoadStore replaces the in-memory collection with the persisted snapshot.
// Repeated calls with an unchanged snapshot leave the store unchanged.
func (s *Store) LoadStore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) error {
	chunks, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot from %s: %w", s.backend.Name(), err)
	}

	dim, err := snapshotDimension(chunks)
	if err != nil {
		return err
	}

	s.chunks = chunks
	s.dimension = dim
	s.loaded = true
	s.generation++

	s.logger.Debug("vector store loaded",
		zap.String("backend", s.backend.Name()),
		zap.Int("chunks", len(chunks)),
		zap.Int("dimension", dim))
	return nil
}

// snapshotDimension checks that every persisted vector has the same width
func snapshotDimension(chunks []types.DocumentChunk) (int, error) {
	dim := 0
	for i := range chunks {
		d := chunks[i].Dimension()
		if dim == 0 {
			dim = d
			continue
		}
		if d != dim {
			return 0, fmt.Errorf("%w: snapshot chunk %s has %d, expected %d",
				types.ErrDimensionMismatch, chunks[i].ID, d, dim)
		}
	}
	return dim, nil
}

// AddDocuments appends chunks and rewrites the snapshot.
// The batch is rejected as a whole if any chunk is invalid or its embedding
// width differs from the store's; on a failed write memory is left unchanged.
func (s *Store) AddDocuments(ctx context.Context, chunks []types.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.loaded {
		if err := s.loadLocked(ctx); err != nil {
			return err
		}
	}

	dim := s.dimension
	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		d := chunks[i].Dimension()
		if dim == 0 {
			dim = d
		}
		if d != dim {
			return fmt.Errorf("%w: chunk %s has %d, store holds %d",
				types.ErrDimensionMismatch, chunks[i].ID, d, dim)
		}
	}

	next := make([]types.DocumentChunk, 0, len(s.chunks)+len(chunks))
	next = append(next, s.chunks...)
	for i := range chunks {
		next = append(next, chunks[i].Clone())
	}

	if err := s.backend.Save(ctx, next); err != nil {
		return fmt.Errorf("save snapshot to %s: %w", s.backend.Name(), err)
	}

	s.chunks = next
	s.dimension = dim
	s.generation++

	s.logger.Debug("chunks added",
		zap.Int("chunks", len(chunks)),
		zap.Int("total", len(next)))
	return nil
}

type candidate struct {
	index int
	score float64
}

// Search returns at most k chunks ranked by descending cosine similarity to query.
// Equal scores keep insertion order. An empty store or k <= 0 yields no results.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]types.SearchResult, error) {
	start := time.Now()
	defer s.metrics.ObserveSearch(start)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if !s.loaded {
		if err := s.loadLocked(ctx); err != nil {
			return nil, err
		}
	}

	if k <= 0 || len(s.chunks) == 0 {
		return []types.SearchResult{}, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, store holds %d",
			types.ErrDimensionMismatch, len(query), s.dimension)
	}

	candidates := make([]candidate, len(s.chunks))
	for i := range s.chunks {
		candidates[i] = candidate{index: i, score: CosineSimilarity(query, s.chunks[i].Embedding)}
	}
	sortCandidates(candidates)

	if k > len(candidates) {
		k = len(candidates)
	}

	results := make([]types.SearchResult, k)
	for i := 0; i < k; i++ {
		results[i] = types.SearchResult{
			Chunk: s.chunks[candidates[i].index].Clone(),
			Rank:  i + 1,
			Score: candidates[i].score,
		}
	}
	return results, nil
}

// sortCandidates orders by score descending; ties keep insertion order
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
}

// Len returns the number of stored chunks
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// Dimension returns the embedding width, or 0 while the store is empty
func (s *Store) Dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dimension
}

// Loaded reports whether the snapshot has been read
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Generation changes every time the collection changes.
// Caches keyed on search results use it for invalidation.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// BackendName returns the name of the persistence backend
func (s *Store) BackendName() string {
	return s.backend.Name()
}

// Close releases the backend. The store cannot be reopened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.chunks = nil
	return s.backend.Close()
}
