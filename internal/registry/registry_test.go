package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlab/tutor-rag/pkg/types"
)

func openRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.json")
	r, err := Open(path, nil)
	require.NoError(t, err)
	return r, path
}

func course(id string) types.Course {
	return types.Course{
		ID:          id,
		Title:       "Course " + id,
		Description: "Generated from " + id + ".pdf",
		SourceFile:  id + ".pdf",
		Chapters:    []types.Chapter{{Title: "Intro"}, {Title: "Loops"}},
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func lesson(courseID, chapter, content string) types.Lesson {
	return types.Lesson{
		ID:           courseID + "-" + chapter + "-" + content,
		CourseID:     courseID,
		ChapterTitle: chapter,
		Title:        chapter,
		Content:      content,
		GeneratedAt:  time.Now().UTC(),
	}
}

func strPtr(s string) *string { return &s }

func TestOpen_CreatesEmptyDocument(t *testing.T) {
	_, path := openRegistry(t)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string][]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "courses")
	assert.Contains(t, doc, "tests")
	assert.Contains(t, doc, "lessons")
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o644))

	_, err := Open(path, nil)
	assert.Error(t, err)
}

func TestOpen_MissingLessonsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"courses":[],"tests":[]}`), 0o644))

	r, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, r.AddLesson(lesson("c1", "Intro", "x")))
}

func TestCourses(t *testing.T) {
	r, path := openRegistry(t)

	require.NoError(t, r.AddCourse(course("c1")))
	require.NoError(t, r.AddCourse(course("c2")))
	assert.Error(t, r.AddCourse(course("c1")), "duplicate IDs rejected")

	got, err := r.GetCourse("c1")
	require.NoError(t, err)
	assert.Equal(t, course("c1"), *got)

	_, err = r.GetCourse("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)

	list := r.ListCourses()
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].ID)

	// Mutating a returned course does not leak into the registry
	list[0].Chapters[0].Title = "changed"
	again, err := r.GetCourse("c1")
	require.NoError(t, err)
	assert.Equal(t, "Intro", again.Chapters[0].Title)

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	assert.Len(t, reopened.ListCourses(), 2)
}

func TestDeleteCourse(t *testing.T) {
	r, _ := openRegistry(t)
	require.NoError(t, r.AddCourse(course("c1")))
	require.NoError(t, r.AddCourse(course("c2")))
	require.NoError(t, r.AddLesson(lesson("c1", "Intro", "a")))
	require.NoError(t, r.AddLesson(lesson("c2", "Intro", "b")))
	require.NoError(t, r.AddTest(types.Test{ID: "t1", CourseID: "c1"}))

	require.NoError(t, r.DeleteCourse("c1"))

	_, err := r.GetCourse("c1")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = r.GetLesson("c1", "Intro")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Empty(t, r.ListTests("c1"))

	_, err = r.GetLesson("c2", "Intro")
	assert.NoError(t, err)

	assert.ErrorIs(t, r.DeleteCourse("c1"), types.ErrNotFound)
}

func TestAddLesson_Overwrites(t *testing.T) {
	r, _ := openRegistry(t)

	require.NoError(t, r.AddLesson(lesson("c1", "Intro", "first")))
	require.NoError(t, r.AddLesson(lesson("c1", "Loops", "other")))
	require.NoError(t, r.AddLesson(lesson("c1", "Intro", "second")))

	got, err := r.GetLesson("c1", "Intro")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content)

	assert.Len(t, r.ListLessons("c1"), 2)
	assert.Equal(t, 2, r.Counts().Lessons)
}

func TestUpdateLesson(t *testing.T) {
	r, path := openRegistry(t)
	require.NoError(t, r.AddLesson(lesson("c1", "Intro", "body")))

	updated, err := r.UpdateLesson("c1", "Intro", LessonUpdate{Notes: strPtr("remember this")})
	require.NoError(t, err)
	assert.Equal(t, "body", updated.Content, "omitted content is unchanged")
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "remember this", *updated.Notes)

	updated, err = r.UpdateLesson("c1", "Intro", LessonUpdate{Content: strPtr("edited")})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)
	assert.Equal(t, "remember this", *updated.Notes, "omitted notes are unchanged")

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	got, err := reopened.GetLesson("c1", "Intro")
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Content)
	assert.Equal(t, "remember this", *got.Notes)
}

const originalDocument = `{
  "courses": [{
    "id": "c1", "title": "Storia", "description": "", "sourceFile": "storia.pdf",
    "chapters": [{"title": "Il Medioevo", "start_context": "Nel 476", "startIndex": 0, "endIndex": 1200, "contentFile": "chapters/c1_0.txt"}],
    "createdAt": "2025-03-01T10:00:00.000Z"
  }],
  "tests": [{"id": "t1", "courseId": "c1", "chapterIndex": 0, "questions": [], "createdAt": "2025-03-01T10:05:00.000Z"}],
  "lessons": [{
    "id": "l1", "courseId": "c1", "chapterTitle": "Il Medioevo", "title": "Il Medioevo", "content": "# Il Medioevo",
    "notes": "old", "cloudNotes": [{"id": "n1", "text": "ripassare", "x": 12.5, "y": 40, "color": "#ffeb3b"}],
    "generatedAt": "2025-03-01T10:02:00.000Z"
  }]
}`

func TestUpdateLesson_KeepsOriginalFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(originalDocument), 0o644))

	r, err := Open(path, nil)
	require.NoError(t, err)

	_, err = r.UpdateLesson("c1", "Il Medioevo", LessonUpdate{Notes: strPtr("new")})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Courses []map[string]interface{} `json:"courses"`
		Tests   []map[string]interface{} `json:"tests"`
		Lessons []map[string]interface{} `json:"lessons"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))

	chapter := doc.Courses[0]["chapters"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(0), chapter["startIndex"])
	assert.Equal(t, float64(1200), chapter["endIndex"])
	assert.Equal(t, "chapters/c1_0.txt", chapter["contentFile"])
	assert.Equal(t, float64(0), doc.Tests[0]["chapterIndex"])

	assert.Equal(t, "new", doc.Lessons[0]["notes"])
	cloud := doc.Lessons[0]["cloudNotes"].([]interface{})
	require.Len(t, cloud, 1)
	note := cloud[0].(map[string]interface{})
	assert.Equal(t, "ripassare", note["text"])
	assert.Equal(t, 12.5, note["x"])
	assert.Equal(t, "#ffeb3b", note["color"])
}

func TestUpdateLesson_CloudNotes(t *testing.T) {
	r, _ := openRegistry(t)
	require.NoError(t, r.AddCourse(course("c1")))
	require.NoError(t, r.AddLesson(lesson("c1", "Intro", "body")))

	notes := []types.CloudNote{{ID: "n1", Text: "check", X: 1, Y: 2}}
	got, err := r.UpdateLesson("c1", "Intro", LessonUpdate{CloudNotes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, got.CloudNotes)
	assert.Equal(t, "body", got.Content)

	notes[0].Text = "mutated by caller"
	stored, err := r.GetLesson("c1", "Intro")
	require.NoError(t, err)
	assert.Equal(t, "check", stored.CloudNotes[0].Text)

	empty := []types.CloudNote{}
	got, err = r.UpdateLesson("c1", "Intro", LessonUpdate{CloudNotes: &empty})
	require.NoError(t, err)
	assert.Empty(t, got.CloudNotes)

	assert.True(t, LessonUpdate{}.Empty())
}

func TestUpdateLesson_NeverCreates(t *testing.T) {
	r, _ := openRegistry(t)

	_, err := r.UpdateLesson("c1", "Intro", LessonUpdate{Content: strPtr("x")})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = r.GetLesson("c1", "Intro")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeleteLessonsForCourse(t *testing.T) {
	r, _ := openRegistry(t)
	require.NoError(t, r.AddLesson(lesson("c1", "A", "x")))
	require.NoError(t, r.AddLesson(lesson("c1", "B", "x")))
	require.NoError(t, r.AddLesson(lesson("c2", "A", "x")))

	n, err := r.DeleteLessonsForCourse("c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, r.Counts().Lessons)
}

func TestTests(t *testing.T) {
	r, _ := openRegistry(t)
	require.NoError(t, r.AddTest(types.Test{ID: "t1", CourseID: "c1"}))
	require.NoError(t, r.AddTest(types.Test{ID: "t2", CourseID: "c2"}))
	assert.Error(t, r.AddTest(types.Test{}))

	assert.Len(t, r.ListTests(""), 2)
	assert.Len(t, r.ListTests("c2"), 1)
}

func TestFailedWriteLeavesStateUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "db.json")
	r, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, r.AddCourse(course("c1")))

	// Replace the directory with a file so the next write fails
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "sub")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub"), nil, 0o644))

	assert.Error(t, r.AddCourse(course("c2")))
	assert.Len(t, r.ListCourses(), 1)
}

func TestConcurrentMutations(t *testing.T) {
	r, path := openRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, r.AddLesson(lesson("c1", fmt.Sprintf("ch%d", i), "x")))
		}(i)
	}
	wg.Wait()

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	assert.Len(t, reopened.ListLessons("c1"), 10)
}
