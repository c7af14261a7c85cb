// Package registry persists course metadata, cached lessons and stored
// quizzes in a single JSON document:
//
//	{"courses": [...], "tests": [...], "lessons": [...]}
//
// The document is held in memory and rewritten wholesale, through a temp
// file and rename, on every mutation. Mutations are serialised by a mutex
// and applied to a copy that only replaces the in-memory state once the
// write has succeeded.
//
// Lessons are keyed by (course ID, chapter title). AddLesson replaces an
// existing lesson for the key; UpdateLesson changes only the provided fields
// and never creates one.
package registry
