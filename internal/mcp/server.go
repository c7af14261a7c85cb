package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/tutorlab/tutor-rag/internal/app"
)

const (
	// ServerName is the MCP server name
	ServerName = "tutor-rag"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp    *server.MCPServer
	app    *app.App
	logger *zap.Logger
}

// NewServer creates an MCP server over the components of a.
func NewServer(a *app.App) *Server {
	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			ServerVersion,
			server.WithToolCapabilities(false),
		),
		app:    a,
		logger: a.Logger.Named("mcp"),
	}
	s.mcp.AddTools(s.tools()...)
	return s
}

// Serve runs the MCP protocol on stdio until ctx is cancelled or stdin closes.
// Nothing else may write to stdout while it runs.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	s.logger.Info("serving MCP on stdio", zap.Int("tools", len(s.tools())))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// tools pairs every tool definition with its handler
func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: ingestDocumentTool(), Handler: s.handleIngestDocument},
		{Tool: searchChunksTool(), Handler: s.handleSearchChunks},
		{Tool: listCoursesTool(), Handler: s.handleListCourses},
		{Tool: getCourseTool(), Handler: s.handleGetCourse},
		{Tool: deleteCourseTool(), Handler: s.handleDeleteCourse},
		{Tool: generateLessonTool(), Handler: s.handleGenerateLesson},
		{Tool: updateLessonTool(), Handler: s.handleUpdateLesson},
		{Tool: warmCourseTool(), Handler: s.handleWarmCourse},
		{Tool: generateQuizTool(), Handler: s.handleGenerateQuiz},
		{Tool: scoreQuizTool(), Handler: s.handleScoreQuiz},
		{Tool: askTool(), Handler: s.handleAsk},
		{Tool: getStatusTool(), Handler: s.handleGetStatus},
	}
}
