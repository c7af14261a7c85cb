package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tutorlab/tutor-rag/internal/llm"
)

// LessonStream delivers a lesson incrementally.
//
// Range over Deltas, then call Wait for the outcome. The lesson is persisted
// only when the upstream stream completes; Close or cancelling the request
// context discards the partial text.
type LessonStream struct {
	stream   *llm.Stream
	progress *ProgressEstimator
	result   *LessonResult
}

// Deltas returns the channel of text fragments. It is closed when the stream ends.
func (s *LessonStream) Deltas() <-chan string {
	return s.stream.Deltas()
}

// Progress returns the estimated completion in [0, 1]
func (s *LessonStream) Progress() float64 {
	return s.progress.Value()
}

// Close cancels generation. Nothing is persisted.
func (s *LessonStream) Close() {
	s.stream.Close()
}

// Wait discards any unread deltas, waits for the stream to end and returns
// the outcome. A stream that broke after delivering output returns
// ErrGenerationInterrupted; cancellation returns the context error.
func (s *LessonStream) Wait() (*LessonResult, error) {
	for range s.stream.Deltas() {
	}
	if err := s.stream.Err(); err != nil {
		return nil, err
	}
	return s.result, nil
}

// staticStream emits content as a single delta
func staticStream(ctx context.Context, content string, result *LessonResult) *LessonStream {
	ls := &LessonStream{progress: NewProgressEstimator(len(content)), result: result}
	ls.stream = llm.NewStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		if !emit(content) {
			return ctx.Err()
		}
		ls.progress.Complete()
		return nil
	})
	return ls
}

// StreamLesson is the streaming form of GenerateLesson. A cached lesson is
// emitted whole. A missing credential is returned before any output. If the
// upstream stream cannot be opened, the fallback lesson is emitted instead.
func (o *Orchestrator) StreamLesson(ctx context.Context, req LessonRequest) (*LessonStream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	logger := o.logger.With(zap.String("course_id", req.CourseID), zap.String("chapter", req.ChapterTitle))

	cached, err := o.cachedLesson(req)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return staticStream(ctx, cached.Content, &LessonResult{Lesson: *cached, Cached: true}), nil
	}

	if err := o.checkCredential(); err != nil {
		return nil, err
	}

	r := o.retrieve(ctx, req.ChapterTitle, o.cfg.LessonK, lessonSep)
	upstream, err := o.completer.Stream(ctx, lessonMessages(req.ChapterTitle, r))
	if err != nil {
		o.metrics.GenerationCall("lesson_stream", err)
		if isFatal(ctx, err) {
			return nil, err
		}
		o.metrics.Fallback()
		logger.Error("lesson stream could not start, returning fallback", zap.Error(err))
		lesson := o.newLesson(req, fallbackLesson(req.ChapterTitle, err), nil)
		return staticStream(ctx, lesson.Content, &LessonResult{
			Lesson:        lesson,
			Fallback:      true,
			ContextChunks: r.Chunks,
		}), nil
	}

	ls := &LessonStream{progress: NewProgressEstimator(o.cfg.ExpectedChars)}
	ls.stream = llm.NewStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		defer upstream.Close()
		stop := context.AfterFunc(ctx, upstream.Close)
		defer stop()

		var buf strings.Builder
		for delta := range upstream.Deltas() {
			if ctx.Err() != nil {
				break
			}
			buf.WriteString(delta)
			ls.progress.Observe(buf.Len())
			if !emit(delta) {
				logger.Info("lesson stream cancelled, partial lesson discarded", zap.Int("chars", buf.Len()))
				return ctx.Err()
			}
		}

		upErr := upstream.Err()
		if ctx.Err() != nil {
			logger.Info("lesson stream cancelled, partial lesson discarded", zap.Int("chars", buf.Len()))
			return ctx.Err()
		}
		o.metrics.GenerationCall("lesson_stream", upErr)

		if upErr != nil {
			o.metrics.Fallback()
			if buf.Len() == 0 {
				logger.Error("lesson stream failed before output, returning fallback", zap.Error(upErr))
				lesson := o.newLesson(req, fallbackLesson(req.ChapterTitle, upErr), nil)
				if !emit(lesson.Content) {
					return ctx.Err()
				}
				ls.result = &LessonResult{Lesson: lesson, Fallback: true, ContextChunks: r.Chunks}
				ls.progress.Complete()
				return nil
			}
			logger.Error("lesson stream failed mid-stream", zap.Int("chars", buf.Len()), zap.Error(upErr))
			emit(MidStreamMarker)
			return fmt.Errorf("%w: %v", ErrGenerationInterrupted, upErr)
		}

		lesson, err := o.persistLesson(req, buf.String())
		if err != nil {
			return err
		}
		ls.result = &LessonResult{Lesson: lesson, ContextChunks: r.Chunks}
		ls.progress.Complete()
		logger.Info("lesson streamed", zap.Int("chunks", r.Chunks), zap.Int("chars", buf.Len()))
		return nil
	})
	return ls, nil
}
