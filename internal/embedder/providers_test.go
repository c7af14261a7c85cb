package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedItem struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// vectorFor encodes the length of text so tests can check placement
func vectorFor(text string) []float32 {
	return []float32{float32(len(text)), 1}
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func newTestProvider(t *testing.T, url string, cache *Cache) *HTTPProvider {
	t.Helper()
	rc := fastRetry()
	p, err := NewHTTPProvider(HTTPConfig{
		Name:      ProviderOpenAI,
		BaseURL:   url,
		APIKey:    "test-key",
		Model:     "test-model",
		Dimension: 2,
		Cache:     cache,
		Retry:     &rc,
	})
	require.NoError(t, err)
	return p
}

// reversedServer answers with data items in reverse order
func reversedServer(t *testing.T, calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		items := make([]embedItem, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			items = append(items, embedItem{Embedding: vectorFor(req.Input[i]), Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": items, "model": req.Model})
	}))
}

func TestHTTPProvider_AssociatesByIndex(t *testing.T) {
	var calls int32
	srv := reversedServer(t, &calls)
	defer srv.Close()

	p := newTestProvider(t, srv.URL, nil)
	texts := []string{"a", "bbb", "cc"}

	vecs, err := p.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, text := range texts {
		assert.Equal(t, vectorFor(text), vecs[i])
	}
}

func TestHTTPProvider_CacheSkipsUpstream(t *testing.T) {
	var calls int32
	srv := reversedServer(t, &calls)
	defer srv.Close()

	p := newTestProvider(t, srv.URL, NewCache(10))
	ctx := context.Background()

	_, err := p.EmbedBatch(ctx, []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	vecs, err := p.EmbedBatch(ctx, []string{"two", "three", "one"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, vectorFor("two"), vecs[0])
	assert.Equal(t, vectorFor("three"), vecs[1])
	assert.Equal(t, vectorFor("one"), vecs[2])

	vec, err := p.Embed(ctx, "three")
	require.NoError(t, err)
	assert.Equal(t, vectorFor("three"), vec)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPProvider_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []embedItem{{Embedding: []float32{1, 0}, Index: 0}},
		})
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, nil)
	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPProvider_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, nil)
	_, err := p.EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAssociate(t *testing.T) {
	item := func(idx int) struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} {
		return struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}{Embedding: []float32{float32(idx)}, Index: idx}
	}

	tests := []struct {
		name    string
		indices []int
		n       int
		wantErr string
	}{
		{name: "shuffled", indices: []int{2, 0, 1}, n: 3},
		{name: "short", indices: []int{0}, n: 2, wantErr: "expected 2"},
		{name: "duplicate", indices: []int{0, 0}, n: 2, wantErr: "duplicate"},
		{name: "out of range", indices: []int{0, 5}, n: 2, wantErr: "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp embeddingResponse
			for _, idx := range tt.indices {
				resp.Data = append(resp.Data, item(idx))
			}
			out, err := associate(resp, tt.n)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			for i, v := range out {
				assert.Equal(t, []float32{float32(i)}, v)
			}
		})
	}
}

func TestHTTPProvider_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	rc := RetryConfig{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: time.Second, Multiplier: 1}
	p, err := NewHTTPProvider(HTTPConfig{Name: "openai", BaseURL: srv.URL, APIKey: "k", Model: "m", Retry: &rc})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = p.EmbedBatch(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
