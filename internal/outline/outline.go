// Package outline derives a course title and chapter list from the opening
// of a document.
package outline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tutorlab/tutor-rag/internal/llm"
	"github.com/tutorlab/tutor-rag/internal/metrics"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

const (
	// FallbackTitle is used when no outline could be extracted
	FallbackTitle = "Uploaded Document"

	// PreviewChars is how much of a document the extractor sees
	PreviewChars = 15000

	// MaxChapters bounds the accepted outline size
	MaxChapters = 200

	temperature = 0.3
)

const systemPrompt = `You are an expert educational content organizer.
Analyze the provided text (the beginning of a document or book) and extract its table of contents.

Rules:
1. Include every logical section, including "Introduction" or "Preface", when it carries real content.
2. Skip purely non-structural items such as "Title Page", "Copyright" or "Dedication".
3. Organize the result into a clean, flat list.

Return a JSON object with:
- "title": the likely title of the document.
- "chapters": an array of objects, each with
  - "title": the chapter name,
  - "start_context": a unique 5-10 word phrase that marks the start of the chapter in the excerpt, or a short description of what it covers.

If explicit chapters are not clear, organize the content into logical lessons by topic.`

// Fallback returns the degraded outline used on any extraction failure
func Fallback() types.Outline {
	return types.Outline{Title: FallbackTitle, Chapters: []types.Chapter{}}
}

// Result is an extracted outline. Reason is set when Outline is the fallback.
type Result struct {
	Outline  types.Outline
	Fallback bool
	Reason   error
}

// Extractor asks the completion capability for a document outline
type Extractor struct {
	completer llm.Completer
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewExtractor creates an Extractor. logger and m may be nil.
func NewExtractor(completer llm.Completer, logger *zap.Logger, m *metrics.Metrics) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{completer: completer, logger: logger, metrics: m}
}

// Extract never fails: network errors, missing credentials and malformed
// answers all degrade to Fallback so course creation can proceed.
func (e *Extractor) Extract(ctx context.Context, preview string) Result {
	preview = Preview(preview)
	if strings.TrimSpace(preview) == "" {
		return e.fallback(errors.New("empty preview"))
	}

	raw, err := e.completer.Complete(ctx, []llm.Message{
		llm.System(systemPrompt),
		llm.User(fmt.Sprintf("Here is the beginning of the document (approx 15k chars):\n\n%s", preview)),
	}, llm.WithJSONResponse(), llm.WithTemperature(temperature))
	e.metrics.GenerationCall("outline", err)
	if err != nil {
		return e.fallback(err)
	}

	outline, err := Parse(raw)
	if err != nil {
		return e.fallback(err)
	}

	e.logger.Debug("outline extracted",
		zap.String("title", outline.Title),
		zap.Int("chapters", len(outline.Chapters)))
	return Result{Outline: outline}
}

func (e *Extractor) fallback(reason error) Result {
	level := e.logger.Warn
	if errors.Is(reason, types.ErrConfiguration) {
		level = e.logger.Error
	}
	level("outline extraction failed, using fallback", zap.Error(reason))
	return Result{Outline: Fallback(), Fallback: true, Reason: reason}
}

// Preview returns at most PreviewChars characters of text
func Preview(text string) string {
	if len(text) <= PreviewChars {
		return text
	}
	n := 0
	for i := range text {
		if n == PreviewChars {
			return text[:i]
		}
		n++
	}
	return text
}

// rawOutline mirrors the expected answer with pointers so missing keys are detectable
type rawOutline struct {
	Title    *string `json:"title"`
	Chapters *[]struct {
		Title        *string `json:"title"`
		StartContext string  `json:"start_context"`
	} `json:"chapters"`
}

// Parse validates a model answer against the outline schema.
// Title and chapters are required and every chapter needs a non-empty title;
// repeated chapter titles keep their first occurrence.
func Parse(raw string) (types.Outline, error) {
	var ro rawOutline
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &ro); err != nil {
		return types.Outline{}, fmt.Errorf("%w: %v", types.ErrMalformedResponse, err)
	}

	if ro.Title == nil || strings.TrimSpace(*ro.Title) == "" {
		return types.Outline{}, fmt.Errorf("%w: missing title", types.ErrMalformedResponse)
	}
	if ro.Chapters == nil {
		return types.Outline{}, fmt.Errorf("%w: missing chapters", types.ErrMalformedResponse)
	}
	if len(*ro.Chapters) > MaxChapters {
		return types.Outline{}, fmt.Errorf("%w: %d chapters exceeds %d", types.ErrMalformedResponse, len(*ro.Chapters), MaxChapters)
	}

	out := types.Outline{
		Title:    strings.TrimSpace(*ro.Title),
		Chapters: make([]types.Chapter, 0, len(*ro.Chapters)),
	}
	seen := make(map[string]struct{}, len(*ro.Chapters))
	for i, ch := range *ro.Chapters {
		if ch.Title == nil || strings.TrimSpace(*ch.Title) == "" {
			return types.Outline{}, fmt.Errorf("%w: chapter %d has no title", types.ErrMalformedResponse, i)
		}
		title := strings.TrimSpace(*ch.Title)
		if title == types.GeneralChapter {
			return types.Outline{}, fmt.Errorf("%w: chapter title %q is reserved", types.ErrMalformedResponse, title)
		}
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}
		out.Chapters = append(out.Chapters, types.Chapter{
			Title:        title,
			StartContext: strings.TrimSpace(ch.StartContext),
		})
	}

	return out, nil
}
