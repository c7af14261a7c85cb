package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/tutorlab/tutor-rag/internal/atomicfile"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

// document is the on-disk shape: {courses, tests, lessons}
type document struct {
	Courses []types.Course `json:"courses"`
	Tests   []types.Test   `json:"tests"`
	Lessons []types.Lesson `json:"lessons"`
}

func (d *document) normalize() {
	if d.Courses == nil {
		d.Courses = []types.Course{}
	}
	if d.Tests == nil {
		d.Tests = []types.Test{}
	}
	if d.Lessons == nil {
		d.Lessons = []types.Lesson{}
	}
}

// clone copies the slices so a failed write can be discarded
func (d *document) clone() document {
	out := document{
		Courses: make([]types.Course, len(d.Courses)),
		Tests:   make([]types.Test, len(d.Tests)),
		Lessons: make([]types.Lesson, len(d.Lessons)),
	}
	copy(out.Courses, d.Courses)
	copy(out.Tests, d.Tests)
	copy(out.Lessons, d.Lessons)
	return out
}

// Registry stores courses, lessons and tests in one JSON file.
// Every mutation rewrites the whole file atomically while holding the lock.
type Registry struct {
	mu     sync.RWMutex
	path   string
	doc    document
	logger *zap.Logger
}

// Open loads the registry at path, creating an empty one if the file does not exist.
// A corrupt file is an error rather than silently replaced.
func Open(path string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{path: path, logger: logger}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.doc.normalize()
		if err := r.write(r.doc); err != nil {
			return nil, err
		}
		logger.Info("created registry", zap.String("path", path))
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("read registry: %w", err)
	}

	if err := json.Unmarshal(data, &r.doc); err != nil {
		return nil, fmt.Errorf("decode registry %s: %w", path, err)
	}
	r.doc.normalize()
	return r, nil
}

// Path returns the registry file location
func (r *Registry) Path() string {
	return r.path
}

func (r *Registry) write(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := atomicfile.Write(r.path, data, 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// mutate applies fn to a copy of the document and commits it only if the write succeeds
func (r *Registry) mutate(fn func(*document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.doc.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := r.write(next); err != nil {
		return err
	}
	r.doc = next
	return nil
}

// Counts reports the number of stored records
type Counts struct {
	Courses int `json:"courses"`
	Lessons int `json:"lessons"`
	Tests   int `json:"tests"`
}

func (r *Registry) Counts() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Counts{Courses: len(r.doc.Courses), Lessons: len(r.doc.Lessons), Tests: len(r.doc.Tests)}
}
