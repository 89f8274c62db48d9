package config

import (
	"context"
	"encoding/json"
	"time"
)

// Config represents the complete configuration for DocBuddy.
type Config struct {
	Server     ServerConfig     `koanf:"server"     validate:"required"`
	Session    SessionConfig    `koanf:"session"    validate:"required"`
	Embedder   EmbedderConfig   `koanf:"embedder"   validate:"required"`
	VectorDB   VectorDBConfig   `koanf:"vectordb"   validate:"required"`
	LLM        LLMConfig        `koanf:"llm"        validate:"required"`
	Chunking   ChunkingConfig   `koanf:"chunking"   validate:"required"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"  validate:"required"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	Log        LogConfig        `koanf:"log"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"             validate:"required"        env:"SERVER_HOST"`
	Port            int           `koanf:"port"             validate:"min=1,max=65535" env:"SERVER_PORT"`
	CORSEnabled     bool          `koanf:"cors_enabled"                                env:"SERVER_CORS_ENABLED"`
	Timeout         time.Duration `koanf:"timeout"                                     env:"SERVER_TIMEOUT"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"                            env:"SERVER_SHUTDOWN_TIMEOUT"`
}

// SessionConfig controls where uploads are staged.
type SessionConfig struct {
	StagingDir     string `koanf:"staging_dir"      env:"SESSION_STAGING_DIR"`
	MaxUploadBytes int64  `koanf:"max_upload_bytes" env:"SESSION_MAX_UPLOAD_BYTES" validate:"min=1"`
}

// EmbedderConfig selects the embedding model.
type EmbedderConfig struct {
	Provider  string          `koanf:"provider"   env:"EMBEDDER_PROVIDER"   validate:"required,oneof=local ollama openai mock"`
	Model     string          `koanf:"model"      env:"EMBEDDER_MODEL"      validate:"required"`
	Device    string          `koanf:"device"     env:"EMBEDDER_DEVICE"     validate:"required"`
	Normalize bool            `koanf:"normalize"  env:"EMBEDDER_NORMALIZE"`
	Dimension int             `koanf:"dimension"  env:"EMBEDDER_DIMENSION"  validate:"min=1"`
	BatchSize int             `koanf:"batch_size" env:"EMBEDDER_BATCH_SIZE" validate:"min=1"`
	BaseURL   string          `koanf:"base_url"   env:"EMBEDDER_BASE_URL"`
	APIKey    SensitiveString `koanf:"api_key"    env:"EMBEDDER_API_KEY"    sensitive:"true"`
	ModelsDir string          `koanf:"models_dir" env:"EMBEDDER_MODELS_DIR"`
	CacheSize int             `koanf:"cache_size" env:"EMBEDDER_CACHE_SIZE" validate:"min=0"`
}

// VectorDBConfig selects the vector store backend and collection.
type VectorDBConfig struct {
	Provider   string          `koanf:"provider"   env:"VECTORDB_PROVIDER"   validate:"required,oneof=qdrant pgvector redis filesystem memory"`
	URL        string          `koanf:"url"        env:"VECTORDB_URL"`
	APIKey     SensitiveString `koanf:"api_key"    env:"VECTORDB_API_KEY"    sensitive:"true"`
	Collection string          `koanf:"collection" env:"VECTORDB_COLLECTION" validate:"required,collection_name"`
	Metric     string          `koanf:"metric"     env:"VECTORDB_METRIC"     validate:"omitempty,oneof=cosine euclid dot"`
	Path       string          `koanf:"path"       env:"VECTORDB_PATH"`
	Timeout    time.Duration   `koanf:"timeout"    env:"VECTORDB_TIMEOUT"`
}

// LLMConfig selects the chat model.
type LLMConfig struct {
	Provider     string          `koanf:"provider"      env:"LLM_PROVIDER"    validate:"required,oneof=ollama openai mock"`
	Model        string          `koanf:"model"         env:"LLM_MODEL"       validate:"required"`
	BaseURL      string          `koanf:"base_url"      env:"LLM_BASE_URL"`
	APIKey       SensitiveString `koanf:"api_key"       env:"LLM_API_KEY"     sensitive:"true"`
	Temperature  float64         `koanf:"temperature"   env:"LLM_TEMPERATURE" validate:"min=0,max=2"`
	MaxTokens    int             `koanf:"max_tokens"    env:"LLM_MAX_TOKENS"  validate:"min=0"`
	SystemPrompt string          `koanf:"system_prompt" env:"LLM_SYSTEM_PROMPT"`
	Timeout      time.Duration   `koanf:"timeout"       env:"LLM_TIMEOUT"`
}

// ChunkingConfig controls the text splitter.
type ChunkingConfig struct {
	Size    int `koanf:"size"    env:"CHUNK_SIZE"    validate:"min=1"`
	Overlap int `koanf:"overlap" env:"CHUNK_OVERLAP" validate:"min=0,ltfield=Size"`
}

// RetrievalConfig controls similarity search for chat turns.
type RetrievalConfig struct {
	TopK     int     `koanf:"top_k"     env:"RETRIEVAL_TOP_K"     validate:"min=1"`
	MinScore float64 `koanf:"min_score" env:"RETRIEVAL_MIN_SCORE" validate:"min=0,max=1"`
}

// MonitoringConfig toggles the Prometheus endpoint.
type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED"`
	Path    string `koanf:"path"    env:"MONITORING_PATH" validate:"omitempty,startswith=/"`
}

type LogConfig struct {
	Level  string `koanf:"level"  env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error disabled"`
	JSON   bool   `koanf:"json"   env:"LOG_JSON"`
	Source bool   `koanf:"source" env:"LOG_SOURCE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5001,
			Timeout:         5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			MaxUploadBytes: 50 << 20,
		},
		Embedder: EmbedderConfig{
			Provider:  "local",
			Model:     "BAAI/bge-small-en",
			Device:    "cpu",
			Normalize: true,
			Dimension: 384,
			BatchSize: 32,
			CacheSize: 512,
		},
		VectorDB: VectorDBConfig{
			Provider:   "qdrant",
			URL:        "http://localhost:6333",
			Collection: "Vector_Database",
			Metric:     "cosine",
			Timeout:    30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "ollama",
			Model:       "llama3.2:3b",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.6,
			Timeout:     2 * time.Minute,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 250,
		},
		Retrieval: RetrievalConfig{
			TopK: 4,
		},
		Monitoring: MonitoringConfig{
			Path: "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Service loads and validates configuration.
type Service interface {
	// Load applies sources in order over the defaults; later sources win.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	Validate(config *Config) error
	// GetSource reports which source provided the value of a key.
	GetSource(key string) SourceType
}

// Source is a single layer of configuration values.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}

type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// SensitiveString hides its value when printed or serialized.
type SensitiveString string

const redacted = "[REDACTED]"

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
