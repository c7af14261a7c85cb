// Package embedder turns document chunks and queries into vectors.
//
// Two providers ship with the package: an HTTP provider for
// OpenAI-compatible /embeddings endpoints (OpenAI, Jina) and a local
// provider that hashes words into a fixed-width vector for offline use.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  "openai",
//	    APIKey:    os.Getenv("OPENAI_API_KEY"),
//	    CacheSize: 10000,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	vecs, err := emb.EmbedBatch(ctx, chunks)
//
// # Ordering
//
// Upstream services are not guaranteed to answer in request order. The HTTP
// provider places each vector at the "index" the response declares for it
// and rejects responses with missing, duplicate or out-of-range indices.
//
// # Caching
//
// Vectors are cached in an LRU keyed by SHA-256 of model and text. Cached
// vectors are copied on the way in and out.
//
// # Retries
//
// Network errors, 5xx and 429 responses are retried with exponential
// backoff (100ms doubling to 5s, 3 attempts). Other 4xx responses and
// malformed payloads fail immediately. A failure after retries is reported
// as ErrProviderFailed; the ingestion pipeline decides what to drop.
//
// # Errors
//
// ErrNoProviderEnabled wraps types.ErrConfiguration and is returned when a
// remote provider is selected without an API key.
package embedder
