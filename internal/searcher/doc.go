// Package searcher answers natural-language queries against the vector store.
//
// A search embeds the query, asks the index for the top K chunks and returns
// them ranked by cosine similarity:
//
//	s := searcher.NewSearcher(store, emb)
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query:    "closures and scope",
//	    Limit:    5,
//	    UseCache: true,
//	})
//
// Cached responses live in an LRU keyed by query and limit. Each entry
// remembers the index generation it was computed against and is discarded
// as soon as the collection changes, so ingestion never leaves stale
// results behind.
//
// ContextText and Sources assemble retrieved chunks into prompt context
// and citation lists.
package searcher
