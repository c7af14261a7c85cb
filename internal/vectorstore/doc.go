// Package vectorstore holds document chunks with their embeddings and answers
// top-K nearest-neighbour queries by cosine similarity.
//
// # Lifecycle
//
// A Store is created over a Backend and has an explicit lifecycle:
//
//	store := vectorstore.New(vectorstore.NewFileBackend("data/vector_store.json"))
//	if err := store.Open(ctx); err != nil {
//	    return err
//	}
//	defer store.Close()
//
// The store tracks whether the snapshot has been read with a loaded flag.
// An empty collection that has been loaded is never reloaded implicitly;
// AddDocuments and Search on a store that was never opened load it once.
//
// # Persistence
//
// Every AddDocuments call writes the full collection through the backend
// while holding the store mutex. FileBackend writes a JSON array to a
// temporary file and renames it into place. The storage package provides a
// SQLite backend with the same contract.
//
// # Search
//
// Search is a brute-force scan: O(n) similarity computations per query
// followed by a stable sort, so equal scores keep insertion order. Query
// vectors whose width differs from the stored vectors fail with
// types.ErrDimensionMismatch, as do adds that would mix widths.
package vectorstore
