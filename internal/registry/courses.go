package registry

import (
	"errors"
	"fmt"

	"github.com/tutorlab/tutor-rag/pkg/types"
)

func copyCourse(c types.Course) types.Course {
	chapters := make([]types.Chapter, len(c.Chapters))
	copy(chapters, c.Chapters)
	c.Chapters = chapters
	return c
}

// ListCourses returns every course in creation order
func (r *Registry) ListCourses() []types.Course {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Course, len(r.doc.Courses))
	for i, c := range r.doc.Courses {
		out[i] = copyCourse(c)
	}
	return out
}

// GetCourse returns the course with id or types.ErrNotFound
func (r *Registry) GetCourse(id string) (*types.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.doc.Courses {
		if c.ID == id {
			out := copyCourse(c)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("course %q: %w", id, types.ErrNotFound)
}

// AddCourse appends a course. IDs must be unique.
func (r *Registry) AddCourse(course types.Course) error {
	if course.ID == "" {
		return errors.New("course ID is required")
	}
	return r.mutate(func(d *document) error {
		for _, c := range d.Courses {
			if c.ID == course.ID {
				return fmt.Errorf("course %q already exists", course.ID)
			}
		}
		d.Courses = append(d.Courses, copyCourse(course))
		return nil
	})
}

// DeleteCourse removes a course together with its lessons and tests.
// Deleting an unknown course returns types.ErrNotFound.
func (r *Registry) DeleteCourse(id string) error {
	return r.mutate(func(d *document) error {
		kept := d.Courses[:0]
		found := false
		for _, c := range d.Courses {
			if c.ID == id {
				found = true
				continue
			}
			kept = append(kept, c)
		}
		if !found {
			return fmt.Errorf("course %q: %w", id, types.ErrNotFound)
		}
		d.Courses = kept
		d.Lessons = filterLessons(d.Lessons, func(l types.Lesson) bool { return l.CourseID != id })
		d.Tests = filterTests(d.Tests, func(t types.Test) bool { return t.CourseID != id })
		return nil
	})
}
