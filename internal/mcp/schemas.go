package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

var (
	courseIDProp     = stringProp("Course ID returned by ingest_document or list_courses")
	chapterTitleProp = stringProp("Chapter title exactly as listed in the course outline")
)

// ingestDocumentTool returns the tool definition for ingest_document
func ingestDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_document",
		Description: "Ingest a PDF, text or markdown file: extract its outline as a course and index its chunks for retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": stringProp("Absolute path to a .pdf, .txt or .md file"),
			},
			Required: []string{"path"},
		},
	}
}

// searchChunksTool returns the tool definition for search_chunks
func searchChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_chunks",
		Description: "Find the stored chunks most similar to a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": stringProp("Search query"),
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// listCoursesTool returns the tool definition for list_courses
func listCoursesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_courses",
		Description: "List every ingested course with its chapters",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getCourseTool returns the tool definition for get_course
func getCourseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_course",
		Description: "Show one course and the chapters that already have a lesson",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"course_id": courseIDProp,
			},
			Required: []string{"course_id"},
		},
	}
}

// deleteCourseTool returns the tool definition for delete_course
func deleteCourseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_course",
		Description: "Delete a course and its lessons",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"course_id": courseIDProp,
			},
			Required: []string{"course_id"},
		},
	}
}

// generateLessonTool returns the tool definition for generate_lesson
func generateLessonTool() mcp.Tool {
	return mcp.Tool{
		Name:        "generate_lesson",
		Description: "Return the lesson for a chapter, generating it from retrieved context when it is not cached",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"course_id":     courseIDProp,
				"chapter_title": chapterTitleProp,
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, regenerate even when a lesson is cached",
					"default":     false,
				},
			},
			Required: []string{"course_id", "chapter_title"},
		},
	}
}

// updateLessonTool returns the tool definition for update_lesson
func updateLessonTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update_lesson",
		Description: "Edit the content, notes or sticky notes of an existing lesson",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"course_id":     courseIDProp,
				"chapter_title": chapterTitleProp,
				"content":       stringProp("Replacement lesson body (markdown)"),
				"notes":         stringProp("Replacement learner notes"),
				"cloud_notes": map[string]interface{}{
					"type":        "array",
					"description": "Replacement set of sticky notes; an empty array removes them all",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"id":    map[string]interface{}{"type": "string"},
							"text":  map[string]interface{}{"type": "string"},
							"x":     map[string]interface{}{"type": "number"},
							"y":     map[string]interface{}{"type": "number"},
							"color": map[string]interface{}{"type": "string"},
						},
						"required": []string{"id", "text", "x", "y"},
					},
				},
			},
			Required: []string{"course_id", "chapter_title"},
		},
	}
}

// warmCourseTool returns the tool definition for warm_course
func warmCourseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "warm_course",
		Description: "Generate lessons for every chapter of a course that has none yet",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"course_id": courseIDProp,
			},
			Required: []string{"course_id"},
		},
	}
}

// generateQuizTool returns the tool definition for generate_quiz
func generateQuizTool() mcp.Tool {
	return mcp.Tool{
		Name:        "generate_quiz",
		Description: "Generate a 10-question multiple-choice quiz for a chapter, or for the whole course when chapter_title is GENERAL",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"course_id":     courseIDProp,
				"chapter_title": stringProp("Chapter title, or GENERAL for a course-wide quiz"),
				"difficulty": map[string]interface{}{
					"type":        "string",
					"description": "Question difficulty",
					"enum":        []string{"easy", "medium", "hard"},
					"default":     "medium",
				},
			},
			Required: []string{"course_id", "chapter_title"},
		},
	}
}

// scoreQuizTool returns the tool definition for score_quiz
func scoreQuizTool() mcp.Tool {
	return mcp.Tool{
		Name:        "score_quiz",
		Description: "Grade answers to a quiz returned by generate_quiz",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"quiz_id": stringProp("Quiz ID returned by generate_quiz"),
				"answers": map[string]interface{}{
					"type":        "array",
					"description": "Chosen option index (0-3) per question in order, -1 when unanswered",
					"items": map[string]interface{}{
						"type":    "integer",
						"minimum": -1,
						"maximum": 3,
					},
				},
			},
			Required: []string{"quiz_id", "answers"},
		},
	}
}

// askTool returns the tool definition for ask
func askTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask",
		Description: "Answer a question grounded in the ingested material",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": stringProp("Question to answer"),
			},
			Required: []string{"question"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report stored chunk count, embedding dimension, registry counts and configured providers",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
