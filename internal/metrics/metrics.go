// Package metrics exposes prometheus counters for the ingestion, retrieval
// and generation paths on a private registry.
//
// A nil *Metrics is valid and records nothing, so components accept one
// optionally.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "tutorrag"

// Cache names used as the "cache" label
const (
	CacheEmbedding = "embedding"
	CacheSearch    = "search"
	CacheLesson    = "lesson"
	CacheQuiz      = "quiz"
)

// Metrics holds every collector registered by the service
type Metrics struct {
	registry *prometheus.Registry

	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	embedCalls       prometheus.Counter
	embedFailures    prometheus.Counter
	failedBatches    prometheus.Counter
	chunksAdded      prometheus.Counter
	generationCalls  *prometheus.CounterVec
	generationErrors *prometheus.CounterVec
	fallbacks        prometheus.Counter
	searchLatency    prometheus.Histogram
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache hits by cache name.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache misses by cache name.",
		}, []string{"cache"}),
		embedCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_calls_total",
			Help:      "Upstream embedding requests.",
		}),
		embedFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_failures_total",
			Help:      "Upstream embedding requests that failed after retries.",
		}),
		failedBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_failed_batches_total",
			Help:      "Ingestion batches dropped because embedding failed.",
		}),
		chunksAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_chunks_added_total",
			Help:      "Chunks written to the vector store.",
		}),
		generationCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_calls_total",
			Help:      "Upstream completion calls by operation.",
		}, []string{"operation"}),
		generationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_errors_total",
			Help:      "Failed completion calls by operation.",
		}, []string{"operation"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lesson_fallbacks_total",
			Help:      "Lessons answered with the fallback body.",
		}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vector_search_seconds",
			Help:      "Brute-force vector search latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}

	m.registry.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.embedCalls,
		m.embedFailures,
		m.failedBatches,
		m.chunksAdded,
		m.generationCalls,
		m.generationErrors,
		m.fallbacks,
		m.searchLatency,
	)

	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(cache).Inc()
}

func (m *Metrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// EmbedCall records one upstream embedding request and whether it failed
func (m *Metrics) EmbedCall(err error) {
	if m == nil {
		return
	}
	m.embedCalls.Inc()
	if err != nil {
		m.embedFailures.Inc()
	}
}

func (m *Metrics) FailedBatch() {
	if m == nil {
		return
	}
	m.failedBatches.Inc()
}

func (m *Metrics) ChunksAdded(n int) {
	if m == nil {
		return
	}
	m.chunksAdded.Add(float64(n))
}

// GenerationCall records a completion call for operation (lesson, quiz, outline, ask)
func (m *Metrics) GenerationCall(operation string, err error) {
	if m == nil {
		return
	}
	m.generationCalls.WithLabelValues(operation).Inc()
	if err != nil {
		m.generationErrors.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) Fallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

// ObserveSearch records the duration since start
func (m *Metrics) ObserveSearch(start time.Time) {
	if m == nil {
		return
	}
	m.searchLatency.Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
