// Package indexer turns uploaded documents into courses and searchable chunks.
//
// # Pipeline
//
// Ingest runs these stages for one document:
//
//  1. Extract: decode PDF or plain text; other media types fail before any side effect
//  2. Outline: send the first 15000 characters to the outline extractor
//  3. Course: create the course record (outline title, or the file name when the outline fell back)
//  4. Chunk: split into 1000-word windows advancing by 900 words
//  5. Embed: sequential batches of 20 chunks
//  6. Store: append every embedded chunk to the vector store in one call
//
// # Partial Failure
//
// Embedding is best-effort. When a batch call fails, its chunks are dropped,
// the failure is counted in Statistics.BatchesFailed and the remaining
// batches are still embedded:
//
//	stats, err := idx.Ingest(ctx, indexer.Document{Name: "notes.pdf", Data: data, MIME: "application/pdf"})
//	if err != nil {
//	    return err // extraction, registry or store failure
//	}
//	if stats.BatchesFailed > 0 {
//	    log.Printf("%d of %d chunks embedded", stats.ChunksEmbedded, stats.ChunksCreated)
//	}
//
// Only context cancellation aborts embedding early.
//
// # Concurrent Ingestion
//
// IngestFiles processes several files with an errgroup bounded by
// Config.Workers. Writes to the vector store are serialised by the store
// itself, so concurrent ingestion never loses chunks.
package indexer
