package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// File names searched by LoadDefault
const (
	FileName       = "tutorrag.yaml"
	userConfigDir  = "tutorrag"
	userConfigFile = "config.yaml"
)

// Storage backends
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// EmbedderConfig selects and configures the embedding provider.
// An empty provider picks openai when a key is available, else local.
type EmbedderConfig struct {
	Provider    string `yaml:"provider"`
	BaseURL     string `yaml:"base_url,omitempty"`
	Model       string `yaml:"model,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
	CacheSize   int    `yaml:"cache_size"`
	Dimension   int    `yaml:"dimension,omitempty"`
	// MaxRetries overrides the attempts per batch call; 0 keeps the default
	MaxRetries int `yaml:"max_retries,omitempty"`
}

// LLMConfig configures the OpenAI-compatible completion endpoint
type LLMConfig struct {
	BaseURL     string   `yaml:"base_url,omitempty"`
	Model       string   `yaml:"model"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	TimeoutSecs int      `yaml:"timeout_secs"`
	Temperature *float64 `yaml:"temperature,omitempty"`
}

// StoreConfig selects where chunk embeddings are persisted
type StoreConfig struct {
	Backend      string `yaml:"backend"`
	SnapshotFile string `yaml:"snapshot_file"`
	SQLiteFile   string `yaml:"sqlite_file"`
}

// RegistryConfig locates the course/lesson registry document
type RegistryConfig struct {
	File string `yaml:"file"`
}

// ChunkerConfig sets the word window size and overlap
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig sets top-K per operation
type RetrievalConfig struct {
	LessonK      int `yaml:"lesson_k"`
	ChapterQuizK int `yaml:"chapter_quiz_k"`
	GeneralQuizK int `yaml:"general_quiz_k"`
	ChatK        int `yaml:"chat_k"`
}

type GenerationConfig struct {
	ExpectedLessonChars int `yaml:"expected_lesson_chars"`
	WarmWorkers         int `yaml:"warm_workers"`
}

type QuizConfig struct {
	Persist    bool `yaml:"persist"`
	TTLMinutes int  `yaml:"ttl_minutes"`
}

type IngestConfig struct {
	Workers int `yaml:"workers"`
}

// LogConfig controls the stderr logger and the optional rotated log file
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MetricsConfig enables the Prometheus listener when Addr is set
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Config is the root application configuration
type Config struct {
	DataDir    string           `yaml:"data_dir"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	LLM        LLMConfig        `yaml:"llm"`
	Store      StoreConfig      `yaml:"store"`
	Registry   RegistryConfig   `yaml:"registry"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	Quiz       QuizConfig       `yaml:"quiz"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir: "data",
		Embedder: EmbedderConfig{
			APIKeyEnv:   "OPENAI_API_KEY",
			TimeoutSecs: 30,
			BatchSize:   20,
			CacheSize:   10000,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			TimeoutSecs: 120,
		},
		Store: StoreConfig{
			Backend:      BackendJSON,
			SnapshotFile: "vector_store.json",
			SQLiteFile:   "vectors.db",
		},
		Registry:   RegistryConfig{File: "db.json"},
		Chunker:    ChunkerConfig{Size: 1000, Overlap: 100},
		Retrieval:  RetrievalConfig{LessonK: 5, ChapterQuizK: 10, GeneralQuizK: 15, ChatK: 3},
		Generation: GenerationConfig{ExpectedLessonChars: 7500, WarmWorkers: 2},
		Quiz:       QuizConfig{TTLMinutes: 60},
		Ingest:     IngestConfig{Workers: 2},
		Log:        LogConfig{Level: "info", MaxSizeMB: 10, MaxBackups: 5, MaxAgeDays: 30},
	}
}

// Load reads the config at path over the defaults, then applies .env and
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	loadDotEnv()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./tutorrag.yaml, then ~/.config/tutorrag/config.yaml.
// It returns the path used, or "" when only defaults were applied.
func LoadDefault() (*Config, string, error) {
	if _, err := os.Stat(FileName); err == nil {
		cfg, err := Load(FileName)
		return cfg, FileName, err
	}
	if userPath, err := UserConfigPath(); err == nil {
		if _, err := os.Stat(userPath); err == nil {
			cfg, err := Load(userPath)
			return cfg, userPath, err
		}
	}
	cfg, err := Load("")
	return cfg, "", err
}

// UserConfigPath returns ~/.config/tutorrag/config.yaml
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", userConfigDir, userConfigFile), nil
}

// Save writes cfg as YAML, creating parent directories
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// loadDotEnv loads ./.env without overriding variables already set
func loadDotEnv() {
	_ = godotenv.Load()
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TUTORRAG_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("TUTORRAG_EMBEDDING_PROVIDER"); v != "" {
		c.Embedder.Provider = v
	}
	if v := os.Getenv("TUTORRAG_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("TUTORRAG_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TUTORRAG_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
}

// Validate rejects configurations that cannot work
func (c *Config) Validate() error {
	var errs []error
	if c.Chunker.Size <= 0 {
		errs = append(errs, errors.New("chunker.size must be positive"))
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		errs = append(errs, fmt.Errorf("chunker.overlap must be in [0, %d)", c.Chunker.Size))
	}
	for name, k := range map[string]int{
		"retrieval.lesson_k":       c.Retrieval.LessonK,
		"retrieval.chapter_quiz_k": c.Retrieval.ChapterQuizK,
		"retrieval.general_quiz_k": c.Retrieval.GeneralQuizK,
		"retrieval.chat_k":         c.Retrieval.ChatK,
	} {
		if k <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	switch strings.ToLower(c.Store.Backend) {
	case BackendJSON, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of json, sqlite", c.Store.Backend))
	}
	if c.Embedder.BatchSize <= 0 {
		errs = append(errs, errors.New("embedder.batch_size must be positive"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	return errors.Join(errs...)
}

// Resolve returns name inside DataDir unless it is already absolute
func (c *Config) Resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// EmbedderAPIKey reads the key named by embedder.api_key_env
func (c *Config) EmbedderAPIKey() string {
	return os.Getenv(c.Embedder.APIKeyEnv)
}

// LLMAPIKey reads the key named by llm.api_key_env
func (c *Config) LLMAPIKey() string {
	return os.Getenv(c.LLM.APIKeyEnv)
}
