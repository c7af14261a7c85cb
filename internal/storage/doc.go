// Package storage provides a SQLite persistence backend for the vector store.
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations (semantic versions)
//   - chunks: chunk id, text and source; seq keeps insertion order
//   - embeddings: little-endian float32 vector blob per chunk
//
// # Basic Usage
//
//	backend, err := storage.NewSQLiteBackend(ctx, "data/vector_store.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := vectorstore.New(backend)
//	defer store.Close()
//
// Save replaces the full collection inside one transaction, matching the
// snapshot semantics of the JSON file backend.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with the
// sqlite_vec tag switches to github.com/mattn/go-sqlite3 and requires CGO.
package storage
