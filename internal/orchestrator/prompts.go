package orchestrator

import (
	"fmt"
	"strings"

	"github.com/tutorlab/tutor-rag/internal/llm"
)

const (
	// MidStreamMarker is appended to a lesson stream that broke after output was delivered
	MidStreamMarker = "\n\n[ERROR: Generation failed mid-stream]"

	// GeneralQuizQuery seeds retrieval for a course-wide quiz
	GeneralQuizQuery = "Important concepts overview summary"

	// GeneralQuizTitle names a course-wide quiz
	GeneralQuizTitle = "General Knowledge"

	// QuizQuestions is the number of questions every quiz must contain
	QuizQuestions = 10

	DefaultDifficulty = "medium"

	lessonSep = "\n\n"
	chatSep   = "\n---\n"
)

func lessonMessages(chapterTitle string, r retrieval) []llm.Message {
	system := fmt.Sprintf(`You are a distinguished University Professor.
Write an ENGAGING, deeply explanatory master-class lesson about "%s".

Guidance:
- Use clear paragraphs.
- Use # and ## for headers.
- Connect concepts logically.
- Explain "Why" and "How".
- Be authoritative but inspiring.

Total length should be comprehensive (approx 1000-1500 words).`, chapterTitle)

	var user string
	if r.Text != "" {
		user = fmt.Sprintf("Context:\n%s\n\nGenerate the full lesson for: %s", r.Text, chapterTitle)
	} else {
		system += "\n\nNo course material was found for this topic. Teach it from general knowledge and say so in one sentence at the start."
		user = "Generate the full lesson for: " + chapterTitle
	}

	return []llm.Message{llm.System(system), llm.User(user)}
}

// fallbackLesson is the clearly labelled body returned when generation fails
func fallbackLesson(chapterTitle string, cause error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", chapterTitle)
	b.WriteString("> **Lesson unavailable.** The lesson could not be generated and was not saved.\n\n")
	fmt.Fprintf(&b, "Error: %v\n\n", cause)
	b.WriteString("Request the lesson again to retry generation.")
	return b.String()
}

func quizMessages(targetTitle, difficulty string, r retrieval) []llm.Message {
	system := fmt.Sprintf(`You are a strict teacher. Create a multiple-choice test based ONLY on the provided context.

Generate exactly %d questions.
For each question provide:
- "id": unique id
- "text": the question text
- "options": array of 4 strings
- "correctAnswer": the index (0-3) of the correct option

Return this JSON format: { "title": "Test on %s", "questions": [...] }`, QuizQuestions, targetTitle)

	user := fmt.Sprintf("Context:\n%s\n\nDifficulty: %s\n\nGenerate JSON:", r.Text, difficulty)
	return []llm.Message{llm.System(system), llm.User(user)}
}

func chatMessages(question string, r retrieval) []llm.Message {
	system := fmt.Sprintf(`You are an intelligent study assistant. Use the following CONTEXT to answer the user's question.
If the answer is not in the context, answer from general knowledge but warn that it is not in the uploaded material.

CONTEXT:
%s`, r.Text)
	return []llm.Message{llm.System(system), llm.User(question)}
}
