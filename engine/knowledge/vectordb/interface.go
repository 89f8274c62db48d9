package vectordb

import (
	"context"
	"strings"
	"time"

	appconfig "github.com/compozy/docbuddy/pkg/config"
)

// Provider enumerates supported vector database backends.
type Provider string

const (
	ProviderQdrant   Provider = "qdrant"
	ProviderPGVector Provider = "pgvector"
	ProviderRedis    Provider = "redis"
	// ProviderFilesystem persists embeddings to a local JSON snapshot.
	ProviderFilesystem Provider = "filesystem"
	// ProviderMemory keeps embeddings in process memory only.
	ProviderMemory Provider = "memory"
)

// Metric names accepted in Config.Metric.
const (
	MetricCosine = "cosine"
	MetricEuclid = "euclid"
	MetricDot    = "dot"
)

// Record represents a chunk persisted to the vector store.
type Record struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SearchOptions controls similarity search execution.
type SearchOptions struct {
	TopK     int
	MinScore float64
	Filters  map[string]string
}

// Match captures a similarity search result.
type Match struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]any
}

// Filter specifies delete criteria.
type Filter struct {
	IDs      []string
	Metadata map[string]string
}

// Store is the contract shared by the indexing and chat pipelines.
//
// Reset drops every record in the collection and recreates it empty with the
// configured dimension and metric. Constructing a Store never touches the
// network; the first Reset or Upsert provisions the collection.
type Store interface {
	Reset(ctx context.Context) error
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error)
	Delete(ctx context.Context, filter Filter) error
	Count(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

// Config captures normalized connection details for a vector database.
type Config struct {
	ID         string
	Provider   Provider
	DSN        string
	Path       string
	Collection string
	Metric     string
	Dimension  int
	APIKey     string
	Timeout    time.Duration
	MaxTopK    int
	PGIndex    PGVectorIndexType
}

// PGVectorIndexType represents supported index types for pgvector.
type PGVectorIndexType string

const (
	PGVectorIndexNone    PGVectorIndexType = ""
	PGVectorIndexHNSW    PGVectorIndexType = "hnsw"
	PGVectorIndexIVFFlat PGVectorIndexType = "ivfflat"
)

// ConfigFromApp maps the application vector_db section. The dimension comes
// from the embedder so both sides always agree.
func ConfigFromApp(cfg *appconfig.Config) *Config {
	if cfg == nil {
		cfg = appconfig.Default()
	}
	vc := cfg.VectorDB
	provider := Provider(strings.ToLower(strings.TrimSpace(vc.Provider)))
	return &Config{
		ID:         string(provider) + ":" + vc.Collection,
		Provider:   provider,
		DSN:        vc.URL,
		Path:       vc.Path,
		Collection: vc.Collection,
		Metric:     vc.Metric,
		Dimension:  cfg.Embedder.Dimension,
		APIKey:     vc.APIKey.Value(),
		Timeout:    vc.Timeout,
	}
}

// DisplayName is the human-facing backend name used in status messages.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderQdrant:
		return "Qdrant"
	case ProviderPGVector:
		return "PGVector"
	case ProviderRedis:
		return "Redis"
	case ProviderFilesystem:
		return "Filesystem"
	case ProviderMemory:
		return "Memory"
	default:
		return string(p)
	}
}

func normalizeMetric(metric string) string {
	switch strings.ToLower(strings.TrimSpace(metric)) {
	case "euclid", "euclidean", "l2":
		return MetricEuclid
	case "dot", "dotproduct":
		return MetricDot
	default:
		return MetricCosine
	}
}
