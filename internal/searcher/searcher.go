package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/tutorlab/tutor-rag/internal/embedder"
	"github.com/tutorlab/tutor-rag/internal/metrics"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

const (
	DefaultLimit     = 5
	MaxLimit         = 100
	DefaultCacheSize = 1000
	DefaultCacheTTL  = time.Hour
)

// ErrEmptyQuery is returned for blank queries
var ErrEmptyQuery = errors.New("query cannot be empty")

// Index is the ranked lookup the searcher runs against
type Index interface {
	Search(ctx context.Context, query []float32, k int) ([]types.SearchResult, error)
	// Generation changes whenever the indexed collection changes
	Generation() uint64
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	Limit    int
	UseCache bool
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	Duration     time.Duration
	CacheHit     bool
}

// cacheEntry is a cached response valid for one index generation
type cacheEntry struct {
	response   *SearchResponse
	generation uint64
	expiresAt  time.Time
}

// Searcher embeds a query and ranks stored chunks against it
type Searcher struct {
	index    Index
	embedder embedder.Embedder
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.Mutex
	ttl      time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a Searcher
type Option func(*Searcher)

func WithLogger(l *zap.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Searcher) { s.metrics = m }
}

// WithCacheTTL bounds how long a cached response is served
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Searcher) { s.ttl = ttl }
}

// NewSearcher creates a new Searcher instance
func NewSearcher(index Index, emb embedder.Embedder, opts ...Option) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](DefaultCacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	s := &Searcher{
		index:    index,
		embedder: emb,
		cache:    cache,
		ttl:      DefaultCacheTTL,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search embeds req.Query and returns the top req.Limit chunks
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	if s.embedder == nil {
		return nil, errors.New("embedder not initialized")
	}
	if err := validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	generation := s.index.Generation()
	key := computeQueryHash(req)

	if req.UseCache {
		if cached := s.checkCache(key, generation); cached != nil {
			s.metrics.CacheHit(metrics.CacheSearch)
			cached.CacheHit = true
			cached.Duration = time.Since(start)
			return cached, nil
		}
		s.metrics.CacheMiss(metrics.CacheSearch)
	}

	vec, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	results, err := s.index.Search(ctx, vec, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	response := &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Duration:     time.Since(start),
	}

	s.logger.Debug("search completed",
		zap.Int("k", req.Limit),
		zap.Int("results", len(results)),
		zap.Duration("duration", response.Duration))

	if req.UseCache {
		s.storeInCache(key, generation, response)
	}

	return response, nil
}

func validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return ErrEmptyQuery
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		return fmt.Errorf("limit %d exceeds maximum %d", req.Limit, MaxLimit)
	}
	return nil
}

// checkCache returns a copy of a live entry for key, or nil
func (s *Searcher) checkCache(key [32]byte, generation uint64) *SearchResponse {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	entry, ok := s.cache.Get(key)
	if !ok {
		return nil
	}
	if entry.generation != generation || time.Now().After(entry.expiresAt) {
		s.cache.Remove(key)
		return nil
	}
	return copySearchResponse(entry.response)
}

func (s *Searcher) storeInCache(key [32]byte, generation uint64, response *SearchResponse) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache.Add(key, &cacheEntry{
		response:   copySearchResponse(response),
		generation: generation,
		expiresAt:  time.Now().Add(s.ttl),
	})
}

// InvalidateCache drops every cached response
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen returns the number of cached responses
func (s *Searcher) CacheLen() int {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cache.Len()
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := &SearchResponse{
		TotalResults: src.TotalResults,
		Duration:     src.Duration,
		CacheHit:     src.CacheHit,
		Results:      make([]types.SearchResult, len(src.Results)),
	}
	for i, result := range src.Results {
		dst.Results[i] = types.SearchResult{
			Chunk: result.Chunk.Clone(),
			Rank:  result.Rank,
			Score: result.Score,
		}
	}
	return dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%s|%d", req.Query, req.Limit)))
}

// ContextText joins result texts with sep in rank order
func ContextText(results []types.SearchResult, sep string) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Chunk.Text
	}
	return strings.Join(parts, sep)
}

// Sources returns the distinct chunk sources in first-seen order
func Sources(results []types.SearchResult) []string {
	seen := make(map[string]struct{}, len(results))
	out := make([]string, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.Chunk.Source]; ok {
			continue
		}
		seen[r.Chunk.Source] = struct{}{}
		out = append(out, r.Chunk.Source)
	}
	return out
}
