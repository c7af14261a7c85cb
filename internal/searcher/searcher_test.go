package searcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlab/tutor-rag/internal/vectorstore"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

// mockEmbedder maps known texts to fixed vectors
type mockEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 1}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Dimension() int   { return 2 }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-model" }
func (m *mockEmbedder) Close() error     { return nil }

func newStore(t *testing.T, chunks ...types.DocumentChunk) *vectorstore.Store {
	t.Helper()
	s := vectorstore.New(vectorstore.NewMemoryBackend())
	require.NoError(t, s.Open(context.Background()))
	if len(chunks) > 0 {
		require.NoError(t, s.AddDocuments(context.Background(), chunks))
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func doc(id, source string, vec ...float32) types.DocumentChunk {
	return types.DocumentChunk{ID: id, Text: "about " + id, Source: source, Embedding: vec}
}

func TestSearch(t *testing.T) {
	store := newStore(t,
		doc("loops", "go.pdf", 1, 0),
		doc("maps", "go.pdf", 0, 1),
		doc("slices", "intro.pdf", 0.9, 0.1),
	)
	emb := &mockEmbedder{vectors: map[string][]float32{"iteration": {1, 0}}}
	s := NewSearcher(store, emb)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "  iteration ", Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 2, resp.TotalResults)
	assert.Equal(t, "loops", resp.Results[0].Chunk.ID)
	assert.Equal(t, "slices", resp.Results[1].Chunk.ID)
	assert.False(t, resp.CacheHit)
}

func TestSearch_Validation(t *testing.T) {
	s := NewSearcher(newStore(t), &mockEmbedder{})

	_, err := s.Search(context.Background(), SearchRequest{Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = s.Search(context.Background(), SearchRequest{Query: "x", Limit: MaxLimit + 1})
	assert.Error(t, err)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "x"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearch_EmbedderError(t *testing.T) {
	boom := errors.New("upstream down")
	s := NewSearcher(newStore(t), &mockEmbedder{err: boom})

	_, err := s.Search(context.Background(), SearchRequest{Query: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestSearch_DimensionMismatch(t *testing.T) {
	store := newStore(t, doc("a", "s", 1, 0, 0))
	s := NewSearcher(store, &mockEmbedder{})

	_, err := s.Search(context.Background(), SearchRequest{Query: "x"})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestSearch_CacheInvalidatedByStoreChange(t *testing.T) {
	store := newStore(t, doc("a", "s", 1, 0))
	emb := &mockEmbedder{}
	s := NewSearcher(store, emb)
	ctx := context.Background()
	req := SearchRequest{Query: "q", Limit: 5, UseCache: true}

	first, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, emb.calls)
	assert.Equal(t, first.Results, second.Results)

	require.NoError(t, store.AddDocuments(ctx, []types.DocumentChunk{doc("b", "s", 0, 1)}))

	third, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.Len(t, third.Results, 2)
	assert.Equal(t, 2, emb.calls)
}

func TestSearch_CacheTTL(t *testing.T) {
	store := newStore(t, doc("a", "s", 1, 0))
	emb := &mockEmbedder{}
	s := NewSearcher(store, emb, WithCacheTTL(time.Nanosecond))
	ctx := context.Background()
	req := SearchRequest{Query: "q", UseCache: true}

	_, err := s.Search(ctx, req)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	resp, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 2, emb.calls)
}

func TestInvalidateCache(t *testing.T) {
	s := NewSearcher(newStore(t, doc("a", "s", 1, 0)), &mockEmbedder{})
	_, err := s.Search(context.Background(), SearchRequest{Query: "q", UseCache: true})
	require.NoError(t, err)
	assert.Equal(t, 1, s.CacheLen())

	s.InvalidateCache()
	assert.Equal(t, 0, s.CacheLen())
}

func TestContextTextAndSources(t *testing.T) {
	results := []types.SearchResult{
		{Chunk: types.DocumentChunk{Text: "one", Source: "a.pdf"}},
		{Chunk: types.DocumentChunk{Text: "two", Source: "b.pdf"}},
		{Chunk: types.DocumentChunk{Text: "three", Source: "a.pdf"}},
	}
	assert.Equal(t, "one\n---\ntwo\n---\nthree", ContextText(results, "\n---\n"))
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, Sources(results))
	assert.Equal(t, "", ContextText(nil, "\n"))
	assert.Empty(t, Sources(nil))
}
