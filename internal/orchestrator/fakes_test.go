package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tutorlab/tutor-rag/internal/llm"
	"github.com/tutorlab/tutor-rag/internal/registry"
	"github.com/tutorlab/tutor-rag/internal/searcher"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

type fakeRetriever struct {
	mu      sync.Mutex
	results []types.SearchResult
	err     error
	queries []string
	limits  []int
}

func (f *fakeRetriever) Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, req.Query)
	f.limits = append(f.limits, req.Limit)
	if f.err != nil {
		return nil, f.err
	}
	results := f.results
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return &searcher.SearchResponse{Results: results, TotalResults: len(results)}, nil
}

func (f *fakeRetriever) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// fakeCompleter answers Complete with reply and Stream with deltas followed by streamErr
type fakeCompleter struct {
	mu            sync.Mutex
	reply         string
	err           error
	deltas        []string
	streamErr     error
	openErr       error
	hold          chan struct{} // when set, the stream pauses after the first delta
	completeCalls int
	streamCalls   int
	messages      [][]llm.Message
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	f.messages = append(f.messages, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeCompleter) Stream(ctx context.Context, messages []llm.Message, opts ...llm.Option) (*llm.Stream, error) {
	f.mu.Lock()
	f.streamCalls++
	f.messages = append(f.messages, messages)
	deltas, streamErr, hold := f.deltas, f.streamErr, f.hold
	f.mu.Unlock()

	if f.openErr != nil {
		return nil, f.openErr
	}
	return llm.NewStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		for i, d := range deltas {
			if !emit(d) {
				return ctx.Err()
			}
			if hold != nil && i == 0 {
				select {
				case <-hold:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		return streamErr
	}), nil
}

func (f *fakeCompleter) Model() string { return "fake" }

func (f *fakeCompleter) lastMessages() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[len(f.messages)-1]
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completeCalls
}

type fixture struct {
	orch      *Orchestrator
	retriever *fakeRetriever
	completer *fakeCompleter
	registry  *registry.Registry
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	reg, err := registry.Open(filepath.Join(t.TempDir(), "db.json"), nil)
	require.NoError(t, err)

	f := &fixture{
		retriever: &fakeRetriever{results: []types.SearchResult{
			result("c1", "Loops repeat a block of statements.", "go.pdf"),
			result("c2", "A for loop has init, condition and post.", "go.pdf"),
			result("c3", "Range iterates over slices and maps.", "book.pdf"),
		}},
		completer: &fakeCompleter{reply: "# Loops\n\nA lesson about loops."},
		registry:  reg,
	}
	f.orch = New(cfg, f.retriever, f.completer, reg, opts...)
	return f
}

func result(id, text, source string) types.SearchResult {
	return types.SearchResult{Chunk: types.DocumentChunk{ID: id, Text: text, Source: source, Embedding: []float32{1}}, Rank: 1, Score: 0.9}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// quizJSON renders n well-formed questions
func quizJSON(n int) string {
	qs := make([]string, n)
	for i := range qs {
		qs[i] = fmt.Sprintf(`{"id": %d, "text": "Question %d?", "options": ["a", "b", "c", "d"], "correctAnswer": %d}`, i+1, i+1, i%4)
	}
	return fmt.Sprintf(`{"title": "Test on Loops", "questions": [%s]}`, strings.Join(qs, ","))
}

// drain collects every delta of a lesson stream
func drain(ls *LessonStream) string {
	var b strings.Builder
	for d := range ls.Deltas() {
		b.WriteString(d)
	}
	return b.String()
}
