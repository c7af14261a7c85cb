// Package mcp implements the Model Context Protocol (MCP) server for tutor-rag.
//
// The server exposes the tutoring pipeline to MCP clients as tools:
//   - ingest_document: turn a PDF or text file into a course and indexed chunks
//   - search_chunks: rank stored chunks against a query
//   - list_courses, get_course, delete_course: browse the course registry
//   - generate_lesson, update_lesson, warm_course: produce and edit lessons
//   - generate_quiz, score_quiz: multiple-choice tests
//   - ask: grounded question answering
//   - get_status: store, registry and provider information
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// stdout carries protocol frames only. Logs go to stderr or the configured
// log file.
//
// # Basic Usage
//
//	tutorrag serve
//
// # Tool: generate_lesson
//
//	Request:
//	{
//	  "name": "generate_lesson",
//	  "arguments": {
//	    "course_id": "4b0f...",
//	    "chapter_title": "Loops",
//	    "force": false
//	  }
//	}
//
//	Response:
//	{
//	  "lesson": {"id": "...", "title": "Loops", "content": "# Loops ..."},
//	  "cached": false,
//	  "fallback": false,
//	  "context_chunks": 5
//	}
//
// A fallback lesson explains that generation failed and is not stored, so
// the next call tries again.
//
// # Tool: generate_quiz
//
// Quizzes are returned without their correct answers. Submit the chosen
// option indexes to score_quiz with the returned quiz_id while the quiz is
// still cached.
//
// # Error Handling
//
// Failures are returned as MCPError values:
//
//	-32602  invalid or missing parameters
//	-32603  internal error
//	-32002  another ingestion is already running
//	-32004  course, lesson or quiz not found
//	-32005  unsupported file type
//	-32006  missing credential or invalid configuration
//	-32007  the model returned an unusable quiz
package mcp
