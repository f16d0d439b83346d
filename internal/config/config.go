package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "STUDYBUDDY"

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL      string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`

	// Any OpenAI-compatible endpoint; Ollama serves one at /v1.
	LLMBaseURL          string        `envconfig:"LLM_BASE_URL" default:"http://localhost:11434/v1"`
	LLMAPIKey           string        `envconfig:"LLM_API_KEY" default:"ollama"`
	ChatModel           string        `envconfig:"CHAT_MODEL" default:"mistral"`
	EmbeddingModel      string        `envconfig:"EMBEDDING_MODEL" default:"all-minilm"`
	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS" default:"384"`
	UpstreamTimeout     time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"60s"`

	ChunkSize      int   `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap   int   `envconfig:"CHUNK_OVERLAP" default:"100"`
	DocumentTopK   int   `envconfig:"DOCUMENT_TOP_K" default:"3"`
	WebTopK        int   `envconfig:"WEB_TOP_K" default:"5"`
	StoreMaxRows   int   `envconfig:"STORE_MAX_ROWS" default:"0"`
	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"33554432"`

	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"24h"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"studybuddy-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects settings the pipelines cannot run with.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid chunking: size %d, overlap %d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.EmbeddingDimensions)
	}
	if c.DocumentTopK <= 0 || c.WebTopK <= 0 {
		return fmt.Errorf("top k must be positive")
	}
	if c.StoreMaxRows < 0 {
		return fmt.Errorf("store max rows must not be negative")
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasLLM() bool {
	return c.LLMBaseURL != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
