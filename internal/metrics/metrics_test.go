package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheHit(CacheLesson)
		m.CacheMiss(CacheLesson)
		m.EmbedCall(errors.New("boom"))
		m.FailedBatch()
		m.ChunksAdded(3)
		m.GenerationCall("lesson", nil)
		m.Fallback()
		m.ObserveSearch(time.Now())
	})
	assert.Nil(t, m.Registry())
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCounters(t *testing.T) {
	m := New()

	m.CacheHit(CacheLesson)
	m.CacheHit(CacheLesson)
	m.CacheMiss(CacheEmbedding)
	m.EmbedCall(nil)
	m.EmbedCall(errors.New("timeout"))
	m.ChunksAdded(40)
	m.GenerationCall("quiz", errors.New("bad json"))

	body := scrape(t, m)
	assert.Contains(t, body, `tutorrag_cache_hits_total{cache="lesson"} 2`)
	assert.Contains(t, body, `tutorrag_cache_misses_total{cache="embedding"} 1`)
	assert.Contains(t, body, "tutorrag_embedding_calls_total 2")
	assert.Contains(t, body, "tutorrag_embedding_failures_total 1")
	assert.Contains(t, body, "tutorrag_ingest_chunks_added_total 40")
	assert.Contains(t, body, `tutorrag_generation_errors_total{operation="quiz"} 1`)
}

func TestHandler(t *testing.T) {
	m := New()
	m.FailedBatch()

	assert.Contains(t, scrape(t, m), "tutorrag_ingest_failed_batches_total 1")
}
