package types

import "errors"

// Domain errors shared across packages
var (
	ErrNotFound              = errors.New("not found")
	ErrUnsupportedMediaType  = errors.New("unsupported media type")
	ErrConfiguration         = errors.New("configuration error")
	ErrMalformedResponse     = errors.New("malformed model response")
	ErrDimensionMismatch     = errors.New("embedding dimension mismatch")
	ErrEmptyContent          = errors.New("content cannot be empty")
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between -1 and 1")
)
