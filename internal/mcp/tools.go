package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/tutorlab/tutor-rag/internal/orchestrator"
	"github.com/tutorlab/tutor-rag/internal/registry"
	"github.com/tutorlab/tutor-rag/internal/searcher"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams     = -32602 // Invalid method parameters
	ErrorCodeInternalError     = -32603 // Internal JSON-RPC error
	ErrorCodeIngestInProgress  = -32002 // Another ingestion is already running
	ErrorCodeNotFound          = -32004 // Course, lesson or quiz does not exist
	ErrorCodeUnsupportedMedia  = -32005 // File type cannot be ingested
	ErrorCodeConfiguration     = -32006 // Missing credential or bad configuration
	ErrorCodeGenerationFailure = -32007 // Completion output unusable
)

// handleIngestDocument handles the ingest_document tool invocation
func (s *Server) handleIngestDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	if !s.app.Indexer.TryLock() {
		return nil, newMCPError(ErrorCodeIngestInProgress, "another ingestion is already running", nil)
	}
	defer s.app.Indexer.Unlock()

	stats, err := s.app.Indexer.IngestFile(ctx, path)
	if err != nil {
		return nil, toMCPError("ingestion failed", err)
	}

	response := map[string]interface{}{
		"course":           stats.Course,
		"outline_fallback": stats.OutlineFallback,
		"chunks_created":   stats.ChunksCreated,
		"chunks_embedded":  stats.ChunksEmbedded,
		"batches_failed":   stats.BatchesFailed,
		"duration_ms":      stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchChunks handles the search_chunks tool invocation
func (s *Server) handleSearchChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	query, err := requireString(args, "query")
	if err != nil {
		return nil, err
	}

	limit := getIntDefault(args, "limit", 5)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	resp, err := s.app.Searcher.Search(ctx, searcher.SearchRequest{Query: query, Limit: limit, UseCache: true})
	if err != nil {
		return nil, toMCPError("search failed", err)
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":   r.Rank,
			"score":  r.Score,
			"source": r.Chunk.Source,
			"text":   r.Chunk.Text,
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":       query,
		"results":     results,
		"total":       resp.TotalResults,
		"cache_hit":   resp.CacheHit,
		"duration_ms": resp.Duration.Milliseconds(),
	})), nil
}

// handleListCourses handles the list_courses tool invocation
func (s *Server) handleListCourses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	courses := s.app.Registry.ListCourses()
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"courses": courses,
		"count":   len(courses),
	})), nil
}

// handleGetCourse handles the get_course tool invocation
func (s *Server) handleGetCourse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	courseID, err := requireString(args, "course_id")
	if err != nil {
		return nil, err
	}

	course, err := s.app.Registry.GetCourse(courseID)
	if err != nil {
		return nil, toMCPError("failed to get course", err)
	}

	generated := make([]string, 0)
	for _, l := range s.app.Registry.ListLessons(courseID) {
		generated = append(generated, l.ChapterTitle)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"course":          course,
		"lessons_cached":  generated,
		"tests_persisted": len(s.app.Registry.ListTests(courseID)),
	})), nil
}

// handleDeleteCourse handles the delete_course tool invocation
func (s *Server) handleDeleteCourse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	courseID, err := requireString(args, "course_id")
	if err != nil {
		return nil, err
	}

	if err := s.app.Registry.DeleteCourse(courseID); err != nil {
		return nil, toMCPError("failed to delete course", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"deleted":   true,
		"course_id": courseID,
	})), nil
}

// handleGenerateLesson handles the generate_lesson tool invocation
func (s *Server) handleGenerateLesson(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	courseID, err := requireString(args, "course_id")
	if err != nil {
		return nil, err
	}
	chapter, err := requireString(args, "chapter_title")
	if err != nil {
		return nil, err
	}

	res, err := s.app.Orchestrator.GenerateLesson(ctx, orchestrator.LessonRequest{
		CourseID:        courseID,
		ChapterTitle:    chapter,
		ForceRegenerate: getBoolDefault(args, "force", false),
	})
	if err != nil {
		return nil, toMCPError("lesson generation failed", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"lesson":         res.Lesson,
		"cached":         res.Cached,
		"fallback":       res.Fallback,
		"context_chunks": res.ContextChunks,
	})), nil
}

// handleUpdateLesson handles the update_lesson tool invocation
func (s *Server) handleUpdateLesson(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	courseID, err := requireString(args, "course_id")
	if err != nil {
		return nil, err
	}
	chapter, err := requireString(args, "chapter_title")
	if err != nil {
		return nil, err
	}

	var upd registry.LessonUpdate
	if v, ok := args["content"].(string); ok {
		upd.Content = &v
	}
	if v, ok := args["notes"].(string); ok {
		upd.Notes = &v
	}
	if _, ok := args["cloud_notes"]; ok {
		cloud, err := getCloudNotes(args, "cloud_notes")
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid cloud_notes", map[string]interface{}{
				"param":  "cloud_notes",
				"reason": err.Error(),
			})
		}
		upd.CloudNotes = &cloud
	}
	if upd.Empty() {
		return nil, newMCPError(ErrorCodeInvalidParams, "content, notes or cloud_notes is required", map[string]interface{}{
			"param":  "content",
			"reason": "nothing to update",
		})
	}

	lesson, err := s.app.Orchestrator.UpdateLesson(courseID, chapter, upd)
	if err != nil {
		return nil, toMCPError("failed to update lesson", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"lesson": lesson,
	})), nil
}

// handleWarmCourse handles the warm_course tool invocation
func (s *Server) handleWarmCourse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	courseID, err := requireString(args, "course_id")
	if err != nil {
		return nil, err
	}

	summary, err := s.app.Orchestrator.WarmCourse(ctx, courseID)
	if err != nil {
		return nil, toMCPError("failed to warm course", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"course_id": courseID,
		"chapters":  summary.Chapters,
		"generated": summary.Generated,
		"cached":    summary.Cached,
		"fallbacks": summary.Fallbacks,
	})), nil
}

// handleGenerateQuiz handles the generate_quiz tool invocation.
// Correct answers are withheld; score_quiz grades a submission.
func (s *Server) handleGenerateQuiz(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	courseID, err := requireString(args, "course_id")
	if err != nil {
		return nil, err
	}
	chapter, err := requireString(args, "chapter_title")
	if err != nil {
		return nil, err
	}

	test, err := s.app.Orchestrator.GenerateQuiz(ctx, orchestrator.QuizRequest{
		CourseID:     courseID,
		ChapterTitle: chapter,
		Difficulty:   getStringDefault(args, "difficulty", orchestrator.DefaultDifficulty),
	})
	if err != nil {
		return nil, toMCPError("quiz generation failed", err)
	}

	questions := make([]map[string]interface{}, 0, len(test.Questions))
	for _, q := range test.Questions {
		questions = append(questions, map[string]interface{}{
			"id":      q.ID,
			"text":    q.Text,
			"options": q.Options,
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"quiz_id":       test.ID,
		"course_id":     test.CourseID,
		"chapter_title": test.ChapterTitle,
		"difficulty":    test.Difficulty,
		"questions":     questions,
	})), nil
}

// handleScoreQuiz handles the score_quiz tool invocation
func (s *Server) handleScoreQuiz(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	quizID, err := requireString(args, "quiz_id")
	if err != nil {
		return nil, err
	}
	answers, err := getIntSlice(args, "answers")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "answers must be an array of integers", map[string]interface{}{
			"param":  "answers",
			"reason": err.Error(),
		})
	}

	score, err := s.app.Orchestrator.ScoreQuiz(quizID, answers)
	if err != nil {
		return nil, toMCPError("failed to score quiz", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"quiz_id": score.TestID,
		"correct": score.Correct,
		"total":   score.Total,
		"wrong":   score.Wrong,
	})), nil
}

// handleAsk handles the ask tool invocation
func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	question, err := requireString(args, "question")
	if err != nil {
		return nil, err
	}

	answer, err := s.app.Orchestrator.Ask(ctx, question)
	if err != nil {
		return nil, toMCPError("failed to answer", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"answer":         answer.Answer,
		"sources":        answer.Sources,
		"context_chunks": answer.ContextChunks,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.app.Status()
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"store": map[string]interface{}{
			"backend":   st.StoreBackend,
			"loaded":    st.StoreLoaded,
			"chunks":    st.Chunks,
			"dimension": st.Dimension,
		},
		"registry": map[string]interface{}{
			"courses": st.Registry.Courses,
			"lessons": st.Registry.Lessons,
			"tests":   st.Registry.Tests,
		},
		"providers": map[string]interface{}{
			"embedding":       st.EmbeddingProvider,
			"embedding_model": st.EmbeddingModel,
			"llm_model":       st.LLMModel,
		},
		"build": map[string]interface{}{
			"sqlite_driver": st.SQLiteDriver,
			"mode":          st.BuildMode,
		},
	})), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// toMCPError classifies err by its sentinel and wraps it as an MCPError
func toMCPError(message string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, types.ErrNotFound):
		code = ErrorCodeNotFound
	case errors.Is(err, types.ErrUnsupportedMediaType):
		code = ErrorCodeUnsupportedMedia
	case errors.Is(err, types.ErrConfiguration):
		code = ErrorCodeConfiguration
	case errors.Is(err, orchestrator.ErrGenerationFailed):
		code = ErrorCodeGenerationFailure
	case errors.Is(err, orchestrator.ErrInvalidRequest),
		errors.Is(err, searcher.ErrEmptyQuery),
		errors.Is(err, types.ErrEmptyContent):
		code = ErrorCodeInvalidParams
	}
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    map[string]interface{}{"error": err.Error()},
		err:     err,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
	err     error
}

func (e *MCPError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("MCP error %d: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func (e *MCPError) Unwrap() error {
	return e.err
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

func requireString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return v, nil
}

// validatePath checks that path names a readable regular file
func validatePath(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if info.IsDir() {
		return ErrIsDirectory
	}
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		zap.L().Warn("failed to encode tool response", zap.Error(err))
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// getIntSlice extracts an array of integers. JSON numbers arrive as float64.
func getIntSlice(args map[string]interface{}, key string) ([]int, error) {
	switch raw := args[key].(type) {
	case []int:
		return raw, nil
	case []interface{}:
		out := make([]int, len(raw))
		for i, v := range raw {
			switch n := v.(type) {
			case float64:
				out[i] = int(n)
			case int:
				out[i] = n
			default:
				return nil, fmt.Errorf("element %d is %T", i, v)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s is missing", key)
	}
}

// getCloudNotes decodes an array of sticky note objects
func getCloudNotes(args map[string]interface{}, key string) ([]types.CloudNote, error) {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s must be an array", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	notes := make([]types.CloudNote, 0, len(raw))
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, err
	}
	for i, n := range notes {
		if n.ID == "" {
			return nil, fmt.Errorf("element %d has no id", i)
		}
	}
	return notes, nil
}

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrIsDirectory     = errors.New("path is a directory")
)
