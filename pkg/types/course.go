package types

import (
	"errors"
	"time"
)

// GeneralChapter selects a course-wide quiz instead of a chapter quiz
const GeneralChapter = "GENERAL"

// Chapter is a section label derived from a document outline.
// The title seeds retrieval queries and is the second half of a lesson key.
type Chapter struct {
	Title        string `json:"title"`
	StartContext string `json:"start_context,omitempty"`
	StartIndex   *int   `json:"startIndex,omitempty"`
	EndIndex     *int   `json:"endIndex,omitempty"`
	ContentFile  string `json:"contentFile,omitempty"`
}

// Outline is the structure extracted from a document preview
type Outline struct {
	Title    string    `json:"title"`
	Chapters []Chapter `json:"chapters"`
}

// Course is created once per ingested document
type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SourceFile  string    `json:"sourceFile"`
	Chapters    []Chapter `json:"chapters"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HasChapter reports whether the course outline contains the given chapter title
func (c *Course) HasChapter(title string) bool {
	for _, ch := range c.Chapters {
		if ch.Title == title {
			return true
		}
	}
	return false
}

// Lesson is the cached generation result for one (course, chapter) key
type Lesson struct {
	ID           string      `json:"id"`
	CourseID     string      `json:"courseId"`
	ChapterTitle string      `json:"chapterTitle"`
	Title        string      `json:"title"`
	Content      string      `json:"content"`
	Notes        *string     `json:"notes,omitempty"`
	CloudNotes   []CloudNote `json:"cloudNotes,omitempty"`
	GeneratedAt  time.Time   `json:"generatedAt"`
}

// CloudNote is a sticky note pinned at a position on a lesson page
type CloudNote struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color,omitempty"`
}

// LessonKey identifies at most one live lesson
type LessonKey struct {
	CourseID     string
	ChapterTitle string
}

// Key returns the lesson's logical key
func (l *Lesson) Key() LessonKey {
	return LessonKey{CourseID: l.CourseID, ChapterTitle: l.ChapterTitle}
}

// Question is one multiple-choice quiz item
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// Validate enforces four options and an in-range answer index
func (q *Question) Validate() error {
	if q.Text == "" {
		return errors.New("question text is empty")
	}
	if len(q.Options) != 4 {
		return errors.New("question must have exactly 4 options")
	}
	for _, opt := range q.Options {
		if opt == "" {
			return errors.New("question option is empty")
		}
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer > 3 {
		return errors.New("correct answer must be between 0 and 3")
	}
	return nil
}

// Test is a generated quiz. Tests are ephemeral unless persistence is enabled.
type Test struct {
	ID           string     `json:"id"`
	CourseID     string     `json:"courseId"`
	ChapterTitle string     `json:"chapterTitle"`
	ChapterIndex *int       `json:"chapterIndex,omitempty"`
	Difficulty   string     `json:"difficulty,omitempty"`
	Questions    []Question `json:"questions"`
	CreatedAt    time.Time  `json:"createdAt"`
}
