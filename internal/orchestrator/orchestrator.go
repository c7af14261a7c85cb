package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/tutorlab/tutor-rag/internal/llm"
	"github.com/tutorlab/tutor-rag/internal/metrics"
	"github.com/tutorlab/tutor-rag/internal/registry"
	"github.com/tutorlab/tutor-rag/internal/searcher"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

// Retrieval depths per operation
const (
	DefaultLessonK       = 5
	DefaultChapterQuizK  = 10
	DefaultGeneralQuizK  = 15
	DefaultChatK         = 3
	DefaultQuizTTL       = 60 * time.Minute
	DefaultWarmWorkers   = 2
	DefaultExpectedChars = 7500
)

var (
	// ErrInvalidRequest is returned for missing or malformed request fields
	ErrInvalidRequest = errors.New("invalid request")

	// ErrGenerationFailed is returned when an operation without a fallback
	// (quiz, chat) cannot get a usable answer from the completion capability
	ErrGenerationFailed = errors.New("generation failed")

	// ErrGenerationInterrupted is reported by a lesson stream that broke after
	// output had been delivered. Nothing is persisted.
	ErrGenerationInterrupted = errors.New("generation failed mid-stream")
)

// Retriever finds chunks relevant to a query. Implemented by *searcher.Searcher.
type Retriever interface {
	Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error)
}

// Store holds courses, lessons and persisted quizzes. Implemented by *registry.Registry.
type Store interface {
	GetCourse(id string) (*types.Course, error)
	GetLesson(courseID, chapterTitle string) (*types.Lesson, error)
	AddLesson(lesson types.Lesson) error
	UpdateLesson(courseID, chapterTitle string, upd registry.LessonUpdate) (*types.Lesson, error)
	AddTest(test types.Test) error
}

// credentialChecker is implemented by completers that can detect a missing
// credential without a network call
type credentialChecker interface {
	CheckCredential() error
}

// Config tunes retrieval depth and quiz handling. Zero values use the defaults.
type Config struct {
	LessonK        int
	ChapterQuizK   int
	GeneralQuizK   int
	ChatK          int
	ExpectedChars  int           // Expected lesson length used for stream progress
	PersistQuizzes bool          // Append generated quizzes to the registry
	QuizTTL        time.Duration // How long generated quizzes stay retrievable in memory
	WarmWorkers    int           // Concurrent generations in WarmCourse
}

func (c *Config) applyDefaults() {
	if c.LessonK <= 0 {
		c.LessonK = DefaultLessonK
	}
	if c.ChapterQuizK <= 0 {
		c.ChapterQuizK = DefaultChapterQuizK
	}
	if c.GeneralQuizK <= 0 {
		c.GeneralQuizK = DefaultGeneralQuizK
	}
	if c.ChatK <= 0 {
		c.ChatK = DefaultChatK
	}
	if c.ExpectedChars <= 0 {
		c.ExpectedChars = DefaultExpectedChars
	}
	if c.QuizTTL <= 0 {
		c.QuizTTL = DefaultQuizTTL
	}
	if c.WarmWorkers <= 0 {
		c.WarmWorkers = DefaultWarmWorkers
	}
}

// Orchestrator owns the lesson lifecycle: cache lookup, retrieval, prompt
// construction, generation and persistence. It never mutates chunk data.
type Orchestrator struct {
	cfg       Config
	retriever Retriever
	completer llm.Completer
	store     Store
	quizzes   *gocache.Cache
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock replaces time.Now for lesson timestamps
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator
func New(cfg Config, retriever Retriever, completer llm.Completer, store Store, opts ...Option) *Orchestrator {
	cfg.applyDefaults()
	o := &Orchestrator{
		cfg:       cfg,
		retriever: retriever,
		completer: completer,
		store:     store,
		quizzes:   gocache.New(cfg.QuizTTL, 2*cfg.QuizTTL),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config returns the effective configuration
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// checkCredential fails fast when the completer knows it cannot authenticate
func (o *Orchestrator) checkCredential() error {
	if cc, ok := o.completer.(credentialChecker); ok {
		return cc.CheckCredential()
	}
	return nil
}

// retrieval is the context gathered for one prompt
type retrieval struct {
	Text    string
	Sources []string
	Chunks  int
}

// retrieve runs the query in safe mode: any error is logged and replaced by empty context
func (o *Orchestrator) retrieve(ctx context.Context, query string, k int, sep string) retrieval {
	resp, err := o.retriever.Search(ctx, searcher.SearchRequest{Query: query, Limit: k, UseCache: true})
	if err != nil {
		o.logger.Warn("context retrieval failed, continuing without context",
			zap.String("query", query),
			zap.Int("k", k),
			zap.Error(err))
		return retrieval{}
	}
	return retrieval{
		Text:    searcher.ContextText(resp.Results, sep),
		Sources: searcher.Sources(resp.Results),
		Chunks:  len(resp.Results),
	}
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidRequest, name)
	}
	return nil
}

// isFatal reports errors that must reach the caller instead of degrading
func isFatal(ctx context.Context, err error) bool {
	return errors.Is(err, types.ErrConfiguration) || ctx.Err() != nil
}
