package embedder

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tutorlab/tutor-rag/internal/metrics"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	BaseURL   string
	Model     string
	APIKey    string
	Timeout   time.Duration
	CacheSize int
	Dimension int
}

// Option customises an embedder built by New
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	retry   *RetryConfig
}

// WithLogger sets the logger used for upstream failures
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records cache and upstream counters
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRetry overrides the backoff policy
func WithRetry(rc RetryConfig) Option {
	return func(o *options) { o.retry = &rc }
}

// New creates an embedder for cfg.Provider. An empty provider selects
// openai when an API key is present and local otherwise.
func New(cfg Config, opts ...Option) (Embedder, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch DetectProvider(cfg) {
	case ProviderOpenAI:
		return NewHTTPProvider(HTTPConfig{
			Name:      ProviderOpenAI,
			BaseURL:   orDefault(cfg.BaseURL, DefaultOpenAIBaseURL),
			APIKey:    cfg.APIKey,
			Model:     orDefault(cfg.Model, DefaultOpenAIModel),
			Dimension: orDefaultInt(cfg.Dimension, OpenAIDimension),
			Timeout:   cfg.Timeout,
			Cache:     cache,
			Retry:     o.retry,
			Logger:    o.logger,
			Metrics:   o.metrics,
		})
	case ProviderJina:
		return NewHTTPProvider(HTTPConfig{
			Name:      ProviderJina,
			BaseURL:   orDefault(cfg.BaseURL, DefaultJinaBaseURL),
			APIKey:    cfg.APIKey,
			Model:     orDefault(cfg.Model, DefaultJinaModel),
			Dimension: orDefaultInt(cfg.Dimension, JinaDimension),
			Timeout:   cfg.Timeout,
			Cache:     cache,
			Retry:     o.retry,
			Logger:    o.logger,
			Metrics:   o.metrics,
		})
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimension, cache), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider New would build for cfg
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	if cfg.APIKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
