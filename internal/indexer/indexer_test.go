package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlab/tutor-rag/internal/outline"
	"github.com/tutorlab/tutor-rag/internal/registry"
	"github.com/tutorlab/tutor-rag/internal/vectorstore"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

// mockEmbedder returns one constant vector per text and fails the batch calls listed in failOn (1-based)
type mockEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn map[int]error
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.failOn[call]; ok {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(call), float32(i + 1), 1}
	}
	return out, nil
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedder) Dimension() int   { return 3 }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-model" }
func (m *mockEmbedder) Close() error     { return nil }

type stubOutline struct {
	result  outline.Result
	calls   int
	preview string
	mu      sync.Mutex
}

func (s *stubOutline) Extract(ctx context.Context, preview string) outline.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.preview = preview
	return s.result
}

type fixture struct {
	idx      *Indexer
	emb      *mockEmbedder
	outlines *stubOutline
	registry *registry.Registry
	store    *vectorstore.Store
	backend  *vectorstore.MemoryBackend
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	reg, err := registry.Open(filepath.Join(t.TempDir(), "db.json"), nil)
	require.NoError(t, err)

	backend := vectorstore.NewMemoryBackend()
	store := vectorstore.New(backend)
	require.NoError(t, store.Open(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		emb: &mockEmbedder{failOn: map[int]error{}},
		outlines: &stubOutline{result: outline.Result{Outline: types.Outline{
			Title:    "Intro to Go",
			Chapters: []types.Chapter{{Title: "Basics"}, {Title: "Concurrency"}},
		}}},
		registry: reg,
		store:    store,
		backend:  backend,
	}
	f.idx, err = New(cfg, f.emb, f.outlines, reg, store)
	require.NoError(t, err)
	return f
}

// words returns n distinct words of eight characters each
func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%04d", i)
	}
	return strings.Join(parts, " ")
}

func textDoc(name, body string) Document {
	return Document{Name: name, Data: []byte(body), MIME: "text/plain"}
}

func TestNew_RejectsBadChunking(t *testing.T) {
	_, err := New(Config{ChunkSize: 100, Overlap: 100}, &mockEmbedder{}, &stubOutline{}, nil, nil)
	assert.Error(t, err)
}

func TestIngest(t *testing.T) {
	f := newFixture(t, Config{})

	stats, err := f.idx.Ingest(context.Background(), textDoc("go.txt", words(2500)))
	require.NoError(t, err)

	assert.Equal(t, 3, stats.ChunksCreated)
	assert.Equal(t, 3, stats.ChunksEmbedded)
	assert.Equal(t, 1, stats.BatchesTotal)
	assert.Zero(t, stats.BatchesFailed)
	assert.False(t, stats.OutlineFallback)

	assert.Equal(t, "Intro to Go", stats.Course.Title)
	assert.Equal(t, "Generated from go.txt", stats.Course.Description)
	assert.Equal(t, "go.txt", stats.Course.SourceFile)
	assert.Len(t, stats.Course.Chapters, 2)
	assert.NotEmpty(t, stats.Course.ID)

	stored, err := f.registry.GetCourse(stats.Course.ID)
	require.NoError(t, err)
	assert.Equal(t, stats.Course.Title, stored.Title)

	assert.Equal(t, 3, f.store.Len())
	assert.Equal(t, 1, f.backend.Saves(), "chunks are stored in one call")
	assert.Equal(t, 1, f.outlines.calls)
}

func TestIngest_OutlinePreviewIsTruncated(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.idx.Ingest(context.Background(), textDoc("big.txt", words(4000)))
	require.NoError(t, err)
	assert.Len(t, f.outlines.preview, outline.PreviewChars)
}

func TestIngest_FallbackOutlineUsesFileName(t *testing.T) {
	f := newFixture(t, Config{})
	f.outlines.result = outline.Result{Outline: outline.Fallback(), Fallback: true, Reason: errors.New("boom")}

	stats, err := f.idx.Ingest(context.Background(), textDoc("lecture-3.txt", words(200)))
	require.NoError(t, err)

	assert.True(t, stats.OutlineFallback)
	assert.Equal(t, "lecture-3.txt", stats.Course.Title)
	assert.Empty(t, stats.Course.Chapters)
}

func TestIngest_PartialBatchFailure(t *testing.T) {
	f := newFixture(t, Config{ChunkSize: 20, Overlap: 0, BatchSize: 2})
	f.emb.failOn[2] = errors.New("upstream timeout")

	stats, err := f.idx.Ingest(context.Background(), textDoc("notes.txt", words(120)))
	require.NoError(t, err)

	assert.Equal(t, 6, stats.ChunksCreated)
	assert.Equal(t, 3, stats.BatchesTotal)
	assert.Equal(t, 1, stats.BatchesFailed)
	assert.Equal(t, 4, stats.ChunksEmbedded)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "batch 2")

	require.Equal(t, 4, f.store.Len())
	chunks, err := f.backend.Load(context.Background())
	require.NoError(t, err)

	var firstWords []string
	for _, c := range chunks {
		firstWords = append(firstWords, strings.Fields(c.Text)[0])
		assert.Equal(t, "notes.txt", c.Source)
		assert.NotEmpty(t, c.ID)
	}
	assert.Equal(t, []string{"word0000", "word0020", "word0080", "word0100"}, firstWords)
}

func TestIngest_AllBatchesFail(t *testing.T) {
	f := newFixture(t, Config{ChunkSize: 20, Overlap: 0, BatchSize: 10})
	f.emb.failOn[1] = errors.New("down")

	stats, err := f.idx.Ingest(context.Background(), textDoc("notes.txt", words(60)))
	require.NoError(t, err)

	assert.Zero(t, stats.ChunksEmbedded)
	assert.Zero(t, f.store.Len())
	assert.Zero(t, f.backend.Saves())
	assert.Len(t, f.registry.ListCourses(), 1, "the course survives failed embedding")
}

func TestIngest_UnsupportedMediaType(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.idx.Ingest(context.Background(), Document{Name: "x.docx", Data: []byte("hi"), MIME: "application/msword"})
	assert.ErrorIs(t, err, types.ErrUnsupportedMediaType)

	assert.Zero(t, f.outlines.calls)
	assert.Empty(t, f.registry.ListCourses())
}

func TestIngest_EmptyDocument(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.idx.Ingest(context.Background(), textDoc("empty.txt", "  \n\t "))
	assert.ErrorIs(t, err, ErrNoText)
	assert.Empty(t, f.registry.ListCourses())
}

func TestIngest_Cancelled(t *testing.T) {
	f := newFixture(t, Config{ChunkSize: 20, Overlap: 0, BatchSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.idx.Ingest(ctx, textDoc("notes.txt", words(100)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.store.Len())
	assert.Empty(t, f.registry.ListCourses())
}

func TestIngest_StoreFailureRemovesCourse(t *testing.T) {
	f := newFixture(t, Config{ChunkSize: 20, Overlap: 0, BatchSize: 10})
	diskFull := errors.New("disk full")
	f.backend.SaveErr = diskFull

	_, err := f.idx.Ingest(context.Background(), textDoc("notes.txt", words(60)))
	require.Error(t, err)
	assert.ErrorIs(t, err, diskFull)
	assert.Contains(t, err.Error(), "failed to store chunks")

	assert.Zero(t, f.store.Len())
	assert.Empty(t, f.registry.ListCourses())
}

func TestIngestFiles(t *testing.T) {
	f := newFixture(t, Config{Workers: 2})
	dir := t.TempDir()

	paths := []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.md"),
		filepath.Join(dir, "c.docx"),
		filepath.Join(dir, "missing.txt"),
	}
	require.NoError(t, os.WriteFile(paths[0], []byte(words(300)), 0o644))
	require.NoError(t, os.WriteFile(paths[1], []byte(words(150)), 0o644))
	require.NoError(t, os.WriteFile(paths[2], []byte("binary"), 0o644))

	results, err := f.idx.IngestFiles(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
	}
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)
	assert.ErrorIs(t, results[2].Err, types.ErrUnsupportedMediaType)
	assert.Error(t, results[3].Err)

	assert.Equal(t, "a.txt", results[0].Stats.Course.SourceFile)
	assert.Len(t, f.registry.ListCourses(), 2)
	assert.Equal(t, 2, f.store.Len())
}

func TestIndexLock(t *testing.T) {
	f := newFixture(t, Config{})

	require.True(t, f.idx.TryLock())
	assert.False(t, f.idx.TryLock())
	f.idx.Unlock()
	assert.True(t, f.idx.TryLock())
}

func TestIndexLock_ConcurrentAcquisition(t *testing.T) {
	var lock IndexLock
	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lock.TryAcquire() {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, acquired)
}
