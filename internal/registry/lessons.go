package registry

import (
	"errors"
	"fmt"

	"github.com/tutorlab/tutor-rag/pkg/types"
)

// LessonUpdate carries the fields of a partial update. Nil fields are left unchanged.
// A non-nil CloudNotes replaces the whole set, so an empty slice clears it.
type LessonUpdate struct {
	Content    *string
	Notes      *string
	CloudNotes *[]types.CloudNote
}

// Empty reports whether the update changes nothing
func (u LessonUpdate) Empty() bool {
	return u.Content == nil && u.Notes == nil && u.CloudNotes == nil
}

func copyLesson(l types.Lesson) types.Lesson {
	if l.Notes != nil {
		n := *l.Notes
		l.Notes = &n
	}
	if l.CloudNotes != nil {
		l.CloudNotes = append([]types.CloudNote(nil), l.CloudNotes...)
	}
	return l
}

func filterLessons(lessons []types.Lesson, keep func(types.Lesson) bool) []types.Lesson {
	out := make([]types.Lesson, 0, len(lessons))
	for _, l := range lessons {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

func filterTests(tests []types.Test, keep func(types.Test) bool) []types.Test {
	out := make([]types.Test, 0, len(tests))
	for _, t := range tests {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// GetLesson returns the live lesson for the key or types.ErrNotFound
func (r *Registry) GetLesson(courseID, chapterTitle string) (*types.Lesson, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.doc.Lessons {
		if l.CourseID == courseID && l.ChapterTitle == chapterTitle {
			out := copyLesson(l)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("lesson %q/%q: %w", courseID, chapterTitle, types.ErrNotFound)
}

// ListLessons returns the lessons of one course
func (r *Registry) ListLessons(courseID string) []types.Lesson {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Lesson, 0)
	for _, l := range r.doc.Lessons {
		if l.CourseID == courseID {
			out = append(out, copyLesson(l))
		}
	}
	return out
}

// AddLesson stores lesson, replacing any existing lesson with the same key
func (r *Registry) AddLesson(lesson types.Lesson) error {
	if lesson.CourseID == "" || lesson.ChapterTitle == "" {
		return errors.New("lesson course ID and chapter title are required")
	}
	key := lesson.Key()
	return r.mutate(func(d *document) error {
		d.Lessons = filterLessons(d.Lessons, func(l types.Lesson) bool { return l.Key() != key })
		d.Lessons = append(d.Lessons, copyLesson(lesson))
		return nil
	})
}

// UpdateLesson applies a partial update. It never creates a lesson:
// a missing key returns types.ErrNotFound.
func (r *Registry) UpdateLesson(courseID, chapterTitle string, upd LessonUpdate) (*types.Lesson, error) {
	var updated types.Lesson
	err := r.mutate(func(d *document) error {
		for i := range d.Lessons {
			l := &d.Lessons[i]
			if l.CourseID != courseID || l.ChapterTitle != chapterTitle {
				continue
			}
			if upd.Content != nil {
				l.Content = *upd.Content
			}
			if upd.Notes != nil {
				n := *upd.Notes
				l.Notes = &n
			}
			if upd.CloudNotes != nil {
				l.CloudNotes = append(make([]types.CloudNote, 0, len(*upd.CloudNotes)), *upd.CloudNotes...)
			}
			updated = copyLesson(*l)
			return nil
		}
		return fmt.Errorf("lesson %q/%q: %w", courseID, chapterTitle, types.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteLessonsForCourse removes every lesson of a course and returns how many were removed
func (r *Registry) DeleteLessonsForCourse(courseID string) (int, error) {
	removed := 0
	err := r.mutate(func(d *document) error {
		before := len(d.Lessons)
		d.Lessons = filterLessons(d.Lessons, func(l types.Lesson) bool { return l.CourseID != courseID })
		removed = before - len(d.Lessons)
		return nil
	})
	return removed, err
}

// AddTest appends a generated quiz
func (r *Registry) AddTest(test types.Test) error {
	if test.ID == "" {
		return errors.New("test ID is required")
	}
	return r.mutate(func(d *document) error {
		d.Tests = append(d.Tests, test)
		return nil
	})
}

// ListTests returns stored quizzes, optionally restricted to one course
func (r *Registry) ListTests(courseID string) []types.Test {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Test, 0)
	for _, t := range r.doc.Tests {
		if courseID == "" || t.CourseID == courseID {
			out = append(out, t)
		}
	}
	return out
}
