// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.jonathan/config.yaml or ./config.yaml)
//  3. Default values
//
// Categories:
//   - AI: generation model, temperature, max tokens, embedder model
//   - Storage: PostgreSQL connection (see storage.go)
//   - Ingest: raw/processed course-material directories, chunking window
//   - Retrieval: top-k context chunks per question
//
// Sensitive values (API key, database password) come from the
// environment only and are never logged.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the Gemini API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidChunking indicates the chunk window is unusable
	// (zero size, or overlap >= size which would stall the chunker).
	ErrInvalidChunking = errors.New("invalid chunking window")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the SSL mode is not recognized.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultModelName is the default Gemini generation model.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default but
	// supports truncation via OutputDimensionality; the chunks table
	// schema uses 768 dimensions (see index.VectorDimension).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultChunkSize is the chunk window size in words.
	DefaultChunkSize = 500

	// DefaultChunkOverlap is the overlap between adjacent chunks in words.
	DefaultChunkOverlap = 50

	// DefaultRetrievalTopK is the number of context chunks retrieved
	// per question.
	DefaultRetrievalTopK = 3

	// MaxRetrievalTopK caps top-k to keep prompts inside the model's
	// context window.
	MaxRetrievalTopK = 20
)

// Config stores application configuration.
type Config struct {
	// AI model configuration
	ModelName   string  `mapstructure:"model_name"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`

	// Embedding configuration
	EmbedderModel string `mapstructure:"embedder_model"`

	// GeminiAPIKey is read from the environment only. Never logged.
	GeminiAPIKey string `mapstructure:"gemini_api_key"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Ingestion configuration
	RawDir       string `mapstructure:"raw_dir"`
	ProcessedDir string `mapstructure:"processed_dir"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`

	// Retrieval configuration
	RetrievalTopK int `mapstructure:"retrieval_top_k"`

	// HTTP server configuration
	ServeAddr string `mapstructure:"serve_addr"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".jonathan")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_tokens", 2048)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "jonathan")
	v.SetDefault("postgres_password", "jonathan_dev_password")
	v.SetDefault("postgres_db_name", "jonathan")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("raw_dir", "data/raw")
	v.SetDefault("processed_dir", "data/processed")
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)

	v.SetDefault("retrieval_top_k", DefaultRetrievalTopK)

	v.SetDefault("serve_addr", "127.0.0.1:8000")
}

// bindEnvVariables binds environment variables. Secrets are bound
// explicitly so they never need to appear in the config file.
func bindEnvVariables(v *viper.Viper) {
	v.SetEnvPrefix("JONATHAN")
	v.AutomaticEnv()

	// Secrets
	_ = v.BindEnv("gemini_api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("postgres_password", "JONATHAN_POSTGRES_PASSWORD")
}
