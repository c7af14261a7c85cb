package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tutorlab/tutor-rag/pkg/types"
)

// Roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ResponseFormatJSON asks the provider for a single JSON object
const ResponseFormatJSON = "json_object"

var (
	// ErrMissingCredential is returned before any request when no API key is configured
	ErrMissingCredential = fmt.Errorf("completion API key missing: %w", types.ErrConfiguration)

	// ErrUpstream wraps failures reported by the completion service
	ErrUpstream = errors.New("completion provider failed")
)

// Message is a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System builds a system message
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user message
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Option sets optional request parameters
type Option func(*Options)

type Options struct {
	Temperature    *float64
	MaxTokens      int
	Model          string
	ResponseFormat string
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = &temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// WithJSONResponse requests strict JSON output
func WithJSONResponse() Option {
	return func(o *Options) {
		o.ResponseFormat = ResponseFormatJSON
	}
}

// Apply folds opts into an Options value
func Apply(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Completer is the text generation capability
type Completer interface {
	// Complete blocks until the whole response is available
	Complete(ctx context.Context, messages []Message, opts ...Option) (string, error)

	// Stream opens a streamed completion. An error here means nothing was
	// produced; failures after the stream opens are reported by Stream.Err.
	Stream(ctx context.Context, messages []Message, opts ...Option) (*Stream, error)

	// Model returns the default model name
	Model() string
}
