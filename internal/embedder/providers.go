package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tutorlab/tutor-rag/internal/metrics"
)

// Provider configuration
const (
	ProviderOpenAI = "openai"
	ProviderJina   = "jina"
	ProviderLocal  = "local"

	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultJinaBaseURL   = "https://api.jina.ai/v1"

	// Default models
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultLocalModel  = "local-hashing"

	// Dimensions
	OpenAIDimension = 1536
	JinaDimension   = 1024
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 20
	MaxBatchSize     = 100

	DefaultCacheSize = 10000
	DefaultTimeout   = 30 * time.Second

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// HTTPProvider implements Embedder against an OpenAI-compatible /embeddings endpoint.
// Jina speaks the same wire format and is served by this type too.
type HTTPProvider struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// HTTPConfig holds the settings for an HTTPProvider
type HTTPConfig struct {
	Name      string
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
	Cache     *Cache
	Retry     *RetryConfig
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// NewHTTPProvider creates an embedder for an OpenAI-compatible API
func NewHTTPProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key for %s not set", ErrNoProviderEnabled, cfg.Name)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL for %s not set", ErrInvalidInput, cfg.Name)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPProvider{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cfg.Cache,
		retry:      retry,
		logger:     logger,
		metrics:    cfg.Metrics,
	}, nil
}

func (h *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedSingle(ctx, h, text)
}

// EmbedBatch serves cached texts locally and sends the rest upstream in
// sub-batches of at most MaxBatchSize, preserving input order.
func (h *HTTPProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if h.cache != nil {
			if vec, ok := h.cache.Get(ComputeHash(h.model, text)); ok {
				out[i] = vec
				h.metrics.CacheHit(metrics.CacheEmbedding)
				continue
			}
			h.metrics.CacheMiss(metrics.CacheEmbedding)
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		idx := missing[start:end]

		batch := make([]string, len(idx))
		for j, i := range idx {
			batch[j] = texts[i]
		}

		vecs, err := retryWithBackoff(ctx, h.retry, func() ([][]float32, error) {
			return h.callAPI(ctx, batch)
		})
		h.metrics.EmbedCall(err)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			h.logger.Warn("embedding request failed",
				zap.String("provider", h.name),
				zap.Int("texts", len(batch)),
				zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}

		for j, i := range idx {
			out[i] = vecs[j]
			if h.cache != nil {
				h.cache.Set(ComputeHash(h.model, texts[i]), vecs[j])
			}
		}
	}

	return out, nil
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func (h *HTTPProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": h.model,
	})
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, permanent(apiErr)
		}
		return nil, apiErr
	}

	var apiResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return associate(apiResp, len(texts))
}

// associate places each returned vector at its declared index.
// Missing, duplicate or out-of-range indices reject the whole response.
func associate(resp embeddingResponse, n int) ([][]float32, error) {
	if len(resp.Data) != n {
		return nil, permanent(fmt.Errorf("expected %d embeddings, got %d", n, len(resp.Data)))
	}

	out := make([][]float32, n)
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= n {
			return nil, permanent(fmt.Errorf("embedding index %d out of range", d.Index))
		}
		if out[d.Index] != nil {
			return nil, permanent(fmt.Errorf("duplicate embedding index %d", d.Index))
		}
		if len(d.Embedding) == 0 {
			return nil, permanent(fmt.Errorf("empty embedding at index %d", d.Index))
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (h *HTTPProvider) Dimension() int {
	return h.dimension
}

func (h *HTTPProvider) Provider() string {
	return h.name
}

func (h *HTTPProvider) Model() string {
	return h.model
}

func (h *HTTPProvider) Close() error {
	h.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider produces deterministic feature-hashed bag-of-words vectors.
// It needs no network and texts sharing vocabulary land close together,
// which keeps offline ingestion and search meaningful.
type LocalProvider struct {
	model     string
	dimension int
	cache     *Cache
}

// NewLocalProvider creates an offline embedder
func NewLocalProvider(dimension int, cache *Cache) *LocalProvider {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{
		model:     DefaultLocalModel,
		dimension: dimension,
		cache:     cache,
	}
}

func (l *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedSingle(ctx, l, text)
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hash := ComputeHash(l.model, text)
		if l.cache != nil {
			if vec, ok := l.cache.Get(hash); ok {
				out[i] = vec
				continue
			}
		}
		out[i] = l.vectorize(text)
		if l.cache != nil {
			l.cache.Set(hash, out[i])
		}
	}
	return out, nil
}

func (l *LocalProvider) vectorize(text string) []float32 {
	vec := make([]float32, l.dimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()[]{}")
		if word == "" {
			continue
		}
		sum := sha256.Sum256([]byte(word))
		bucket := binary.LittleEndian.Uint32(sum[0:4]) % uint32(l.dimension)
		sign := float32(1)
		if sum[4]&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}
	return NormalizeVector(vec)
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// NormalizeVector scales v to unit length. Zero vectors are returned unchanged.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}
