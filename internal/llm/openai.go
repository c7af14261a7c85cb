package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second

	sseDataPrefix = "data:"
	sseDone       = "[DONE]"
)

// OpenAIProvider implements Completer against an OpenAI-compatible
// /chat/completions endpoint
type OpenAIProvider struct {
	baseURL     string
	apiKey      string
	model       string
	temperature *float64
	timeout     time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
}

// Config configures an OpenAIProvider
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64
	Timeout     time.Duration
	Logger      *zap.Logger
}

// NewOpenAIProvider builds a provider. A missing API key is not an error
// here; every call reports ErrMissingCredential instead so the process can
// still serve cached content.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &OpenAIProvider{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		// No client timeout: it would cut long streams. Complete applies its own.
		httpClient: &http.Client{},
		logger:     cfg.Logger,
	}
}

func (p *OpenAIProvider) Model() string {
	return p.model
}

// CheckCredential reports ErrMissingCredential without contacting the service
func (p *OpenAIProvider) CheckCredential() error {
	if p.apiKey == "" {
		return ErrMissingCredential
	}
	return nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *OpenAIProvider) buildRequest(messages []Message, stream bool, opts []Option) chatRequest {
	o := Apply(opts...)

	req := chatRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: p.temperature,
		MaxTokens:   o.MaxTokens,
		Stream:      stream,
	}
	if o.Model != "" {
		req.Model = o.Model
	}
	if o.Temperature != nil {
		req.Temperature = o.Temperature
	}
	if o.ResponseFormat != "" {
		req.ResponseFormat = &responseFormat{Type: o.ResponseFormat}
	}
	return req
}

func (p *OpenAIProvider) post(ctx context.Context, payload chatRequest) (*http.Response, error) {
	if p.apiKey == "" {
		return nil, ErrMissingCredential
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if payload.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() {
			_ = resp.Body.Close()
		}()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	return resp, nil
}

// Complete sends messages and returns the first choice's content
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.post(ctx, p.buildRequest(messages, false, opts))
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrUpstream)
	}

	return out.Choices[0].Message.Content, nil
}

// Stream opens a server-sent-events completion and relays each content delta
func (p *OpenAIProvider) Stream(ctx context.Context, messages []Message, opts ...Option) (*Stream, error) {
	resp, err := p.post(ctx, p.buildRequest(messages, true, opts))
	if err != nil {
		return nil, err
	}

	return NewStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		defer func() {
			_ = resp.Body.Close()
		}()

		// Closing the body unblocks the scanner when the caller cancels
		stop := context.AfterFunc(ctx, func() {
			_ = resp.Body.Close()
		})
		defer stop()

		err := readSSE(resp.Body, emit)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			p.logger.Warn("completion stream interrupted", zap.Error(err))
			return fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		return nil
	}), nil
}

var errStreamTruncated = errors.New("stream ended without [DONE]")

// readSSE parses "data:" lines until the [DONE] sentinel
func readSSE(r io.Reader, emit func(string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, sseDataPrefix) {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, sseDataPrefix))
		if data == sseDone {
			return nil
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("decode chunk: %w", err)
		}
		if chunk.Error != nil {
			return errors.New(chunk.Error.Message)
		}
		for _, choice := range chunk.Choices {
			if !emit(choice.Delta.Content) {
				return nil
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return errStreamTruncated
}
