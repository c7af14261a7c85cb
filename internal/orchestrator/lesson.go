package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tutorlab/tutor-rag/internal/metrics"
	"github.com/tutorlab/tutor-rag/internal/registry"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

// LessonRequest identifies the lesson to produce
type LessonRequest struct {
	CourseID        string `json:"courseId"`
	ChapterTitle    string `json:"chapterTitle"`
	ForceRegenerate bool   `json:"forceRegenerate,omitempty"`
}

func (r LessonRequest) validate() error {
	if err := requireField("courseId", r.CourseID); err != nil {
		return err
	}
	return requireField("chapterTitle", r.ChapterTitle)
}

// LessonResult is a lesson plus how it was obtained.
// A Fallback lesson was not persisted; the next request generates again.
type LessonResult struct {
	Lesson        types.Lesson `json:"lesson"`
	Cached        bool         `json:"cached"`
	Fallback      bool         `json:"fallback,omitempty"`
	ContextChunks int          `json:"contextChunks"`
}

// cachedLesson returns the stored lesson for req unless regeneration is forced
func (o *Orchestrator) cachedLesson(req LessonRequest) (*types.Lesson, error) {
	if req.ForceRegenerate {
		return nil, nil
	}
	lesson, err := o.store.GetLesson(req.CourseID, req.ChapterTitle)
	if errors.Is(err, types.ErrNotFound) {
		o.metrics.CacheMiss(metrics.CacheLesson)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.metrics.CacheHit(metrics.CacheLesson)
	return lesson, nil
}

// GenerateLesson returns the cached lesson for the key or generates, persists
// and returns a new one. Retrieval errors degrade to empty context. Upstream
// generation errors degrade to a fallback lesson that is not persisted.
// A missing credential and context cancellation are returned as errors.
func (o *Orchestrator) GenerateLesson(ctx context.Context, req LessonRequest) (*LessonResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	logger := o.logger.With(zap.String("course_id", req.CourseID), zap.String("chapter", req.ChapterTitle))

	cached, err := o.cachedLesson(req)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		logger.Debug("lesson served from cache")
		return &LessonResult{Lesson: *cached, Cached: true}, nil
	}

	if err := o.checkCredential(); err != nil {
		return nil, err
	}

	r := o.retrieve(ctx, req.ChapterTitle, o.cfg.LessonK, lessonSep)
	content, err := o.completer.Complete(ctx, lessonMessages(req.ChapterTitle, r))
	o.metrics.GenerationCall("lesson", err)
	if err != nil {
		if isFatal(ctx, err) {
			return nil, err
		}
		o.metrics.Fallback()
		logger.Error("lesson generation failed, returning fallback", zap.Error(err))
		return &LessonResult{
			Lesson:        o.newLesson(req, fallbackLesson(req.ChapterTitle, err), nil),
			Fallback:      true,
			ContextChunks: r.Chunks,
		}, nil
	}

	lesson, err := o.persistLesson(req, content)
	if err != nil {
		return nil, err
	}
	logger.Info("lesson generated",
		zap.Int("chunks", r.Chunks),
		zap.Int("chars", len(content)))
	return &LessonResult{Lesson: lesson, ContextChunks: r.Chunks}, nil
}

// newLesson builds a lesson whose timestamp is strictly after prev's
func (o *Orchestrator) newLesson(req LessonRequest, content string, prev *types.Lesson) types.Lesson {
	at := o.now().UTC()
	if prev != nil && !at.After(prev.GeneratedAt) {
		at = prev.GeneratedAt.Add(time.Microsecond)
	}
	return types.Lesson{
		ID:           uuid.NewString(),
		CourseID:     req.CourseID,
		ChapterTitle: req.ChapterTitle,
		Title:        req.ChapterTitle,
		Content:      content,
		GeneratedAt:  at,
	}
}

// persistLesson stores a completed lesson, replacing any previous one for the key.
// Notes and cloud notes survive regeneration.
func (o *Orchestrator) persistLesson(req LessonRequest, content string) (types.Lesson, error) {
	prev, err := o.store.GetLesson(req.CourseID, req.ChapterTitle)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return types.Lesson{}, err
	}

	lesson := o.newLesson(req, content, prev)
	if prev != nil {
		lesson.Notes = prev.Notes
		lesson.CloudNotes = prev.CloudNotes
	}
	if err := o.store.AddLesson(lesson); err != nil {
		return types.Lesson{}, fmt.Errorf("failed to save lesson: %w", err)
	}
	return lesson, nil
}

// UpdateLesson applies a partial edit to an existing lesson. Omitted fields
// are unchanged; a missing lesson returns types.ErrNotFound and nothing is created.
func (o *Orchestrator) UpdateLesson(courseID, chapterTitle string, upd registry.LessonUpdate) (*types.Lesson, error) {
	if err := requireField("courseId", courseID); err != nil {
		return nil, err
	}
	if err := requireField("chapterTitle", chapterTitle); err != nil {
		return nil, err
	}
	lesson, err := o.store.UpdateLesson(courseID, chapterTitle, upd)
	if err != nil {
		return nil, err
	}
	o.logger.Info("lesson updated",
		zap.String("course_id", courseID),
		zap.String("chapter", chapterTitle),
		zap.Bool("content", upd.Content != nil),
		zap.Bool("notes", upd.Notes != nil),
		zap.Bool("cloud_notes", upd.CloudNotes != nil))
	return lesson, nil
}

// WarmSummary counts the outcomes of WarmCourse
type WarmSummary struct {
	Chapters  int `json:"chapters"`
	Generated int `json:"generated"`
	Cached    int `json:"cached"`
	Fallbacks int `json:"fallbacks"`
}

// WarmCourse makes sure every chapter of a course has a cached lesson,
// generating missing ones with bounded concurrency
func (o *Orchestrator) WarmCourse(ctx context.Context, courseID string) (*WarmSummary, error) {
	course, err := o.store.GetCourse(courseID)
	if err != nil {
		return nil, err
	}

	summary := &WarmSummary{Chapters: len(course.Chapters)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.WarmWorkers)
	for _, ch := range course.Chapters {
		g.Go(func() error {
			res, err := o.GenerateLesson(gctx, LessonRequest{CourseID: courseID, ChapterTitle: ch.Title})
			if err != nil {
				return fmt.Errorf("chapter %q: %w", ch.Title, err)
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case res.Cached:
				summary.Cached++
			case res.Fallback:
				summary.Fallbacks++
			default:
				summary.Generated++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}
	return summary, nil
}
