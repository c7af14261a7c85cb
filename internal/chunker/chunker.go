package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the window size in words used by the ingestion pipeline
	DefaultChunkSize = 1000

	// DefaultOverlap is the number of words shared by adjacent windows
	DefaultOverlap = 100

	// MinChunkChars drops windows too small to be useful for retrieval.
	// Measured in characters, not bytes.
	MinChunkChars = 50

	// TokensPerChar is the heuristic for estimating tokens (chars/4)
	TokensPerChar = 4
)

var (
	// ErrInvalidSize is returned for a non-positive window size
	ErrInvalidSize = errors.New("chunk size must be positive")

	// ErrInvalidOverlap is returned when overlap would stall or reverse the window stride
	ErrInvalidOverlap = errors.New("overlap must be >= 0 and smaller than chunk size")
)

// Chunker splits normalized document text into overlapping word windows
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. The stride (size - overlap) must be positive.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidOverlap, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the window size in words
func (c *Chunker) Size() int {
	return c.size
}

// Overlap returns the number of shared words between adjacent windows
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Stride returns how many words each window advances
func (c *Chunker) Stride() int {
	return c.size - c.overlap
}

// Split returns the ordered windows for text. Windows shorter than
// MinChunkChars are dropped. Empty input yields an empty slice.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	chunks := make([]string, 0, len(words)/c.Stride()+1)

	for _, w := range c.windows(len(words)) {
		chunk := strings.Join(words[w.Start:w.End], " ")
		if utf8.RuneCountInString(chunk) < MinChunkChars {
			continue
		}
		chunks = append(chunks, chunk)
	}

	return chunks
}

// Window is a half-open range of word indices
type Window struct {
	Start int
	End   int
}

// Windows returns the word ranges Split would join for text, before the
// minimum length filter is applied
func (c *Chunker) Windows(text string) []Window {
	return c.windows(len(strings.Fields(text)))
}

func (c *Chunker) windows(wordCount int) []Window {
	var out []Window
	for start := 0; start < wordCount; start += c.Stride() {
		end := start + c.size
		if end > wordCount {
			end = wordCount
		}
		out = append(out, Window{Start: start, End: end})
	}
	return out
}

// Chunk splits text into windows of size words advancing by size-overlap words
func Chunk(text string, size, overlap int) ([]string, error) {
	c, err := New(size, overlap)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}

// Normalize unifies line endings and strips NUL bytes left behind by PDF extraction
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.ReplaceAll(text, "\x00", "")
}

// EstimateTokens approximates the token count of text (chars/4)
func EstimateTokens(text string) int {
	return len(text) / TokensPerChar
}
