package types

// SearchResult is a stored chunk ranked against a query
type SearchResult struct {
	Chunk DocumentChunk
	Rank  int // Position in result set (1-based)

	// Cosine similarity between the query and the chunk embedding
	Score float64
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Chunk.ID == "" {
		return ErrEmptyContent
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.Score < -1 || sr.Score > 1 {
		return ErrInvalidRelevanceScore
	}

	return nil
}
