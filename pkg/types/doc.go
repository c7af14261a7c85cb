// Package types provides the shared domain model for tutor-rag.
//
// # Core Types
//
// DocumentChunk is the unit of retrieval. It is produced by the ingestion
// pipeline and owned by the vector store:
//
//	chunk := types.DocumentChunk{
//	    ID:        uuid.NewString(),
//	    Text:      "...",
//	    Source:    "physics.pdf",
//	    Embedding: vector,
//	}
//
// Course, Chapter, Lesson and Test live in the registry. A Lesson is keyed
// logically by (CourseID, ChapterTitle); at most one lesson exists per key.
//
// # Errors
//
// Sentinel errors (ErrNotFound, ErrUnsupportedMediaType, ErrConfiguration,
// ErrMalformedResponse, ErrDimensionMismatch) are wrapped with %w by the
// packages that return them and matched with errors.Is by callers.
package types
