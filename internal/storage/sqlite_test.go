package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlab/tutor-rag/internal/vectorstore"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

func newBackend(t *testing.T) (*SQLiteBackend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	b, err := NewSQLiteBackend(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, path
}

func makeChunks(n int) []types.DocumentChunk {
	out := make([]types.DocumentChunk, n)
	for i := range out {
		out[i] = types.DocumentChunk{
			ID:        fmt.Sprintf("chunk-%d", i),
			Text:      fmt.Sprintf("text %d", i),
			Source:    "course.pdf",
			Embedding: []float32{float32(i), 0.5, -1.25},
		}
	}
	return out
}

func TestSQLiteBackend_EmptyLoad(t *testing.T) {
	b, _ := newBackend(t)
	chunks, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Equal(t, "sqlite", b.Name())
}

func TestSQLiteBackend_SaveReplacesSnapshot(t *testing.T) {
	b, _ := newBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, makeChunks(5)))
	second := makeChunks(3)
	require.NoError(t, b.Save(ctx, second))

	loaded, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, loaded)
}

func TestSQLiteBackend_SaveIsAtomic(t *testing.T) {
	b, _ := newBackend(t)
	ctx := context.Background()

	original := makeChunks(2)
	require.NoError(t, b.Save(ctx, original))

	dup := makeChunks(2)
	dup[1].ID = dup[0].ID
	assert.Error(t, b.Save(ctx, dup))

	loaded, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, original, loaded, "failed save must roll back")
}

func TestSQLiteBackend_ReopenKeepsOrder(t *testing.T) {
	b, path := newBackend(t)
	ctx := context.Background()

	in := makeChunks(10)
	require.NoError(t, b.Save(ctx, in))
	require.NoError(t, b.Close())

	reopened, err := NewSQLiteBackend(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, loaded)
}

func TestSQLiteBackend_WithVectorStore(t *testing.T) {
	b, _ := newBackend(t)
	ctx := context.Background()

	store := vectorstore.New(b)
	require.NoError(t, store.Open(ctx))

	require.NoError(t, store.AddDocuments(ctx, []types.DocumentChunk{
		{ID: "a", Text: "alpha", Source: "s", Embedding: []float32{1, 0}},
		{ID: "b", Text: "beta", Source: "s", Embedding: []float32{0, 1}},
	}))

	results, err := store.Search(ctx, []float32{0.1, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Chunk.ID)

	require.NoError(t, store.LoadStore(ctx))
	assert.Equal(t, 2, store.Len())
}

func TestVectorSerialization(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4028235e38}
	assert.Equal(t, in, deserializeVector(serializeVector(in)))
	assert.Len(t, serializeVector(in), 16)
}
