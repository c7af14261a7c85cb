package types

import "errors"

// DocumentChunk is one retrievable slice of an ingested document together with its embedding.
// Chunks are immutable once created.
type DocumentChunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Embedding []float32 `json:"embedding"`
}

// Dimension returns the width of the chunk's embedding
func (c *DocumentChunk) Dimension() int {
	return len(c.Embedding)
}

// Validate checks that the chunk can be stored
func (c *DocumentChunk) Validate() error {
	if c.ID == "" {
		return errors.New("chunk ID is required")
	}
	if c.Text == "" {
		return ErrEmptyContent
	}
	if len(c.Embedding) == 0 {
		return errors.New("chunk embedding cannot be empty")
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate stored vectors
func (c *DocumentChunk) Clone() DocumentChunk {
	vec := make([]float32, len(c.Embedding))
	copy(vec, c.Embedding)
	return DocumentChunk{
		ID:        c.ID,
		Text:      c.Text,
		Source:    c.Source,
		Embedding: vec,
	}
}
