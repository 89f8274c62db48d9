package vectordb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/compozy/docbuddy/engine/core"
)

var (
	errMissingID        = errors.New("vector_db id is required")
	errMissingProvider  = errors.New("vector_db provider is required")
	errMissingDSN       = errors.New("vector_db dsn is required")
	errMissingPath      = errors.New("vector_db path is required")
	errMissingName      = errors.New("vector_db collection is required")
	errInvalidDimension = errors.New("vector_db dimension must be greater than zero")
)

// defaultTopK applies when callers pass a non-positive TopK.
const defaultTopK = 4

type backend struct {
	open           func(ctx context.Context, cfg *Config) (Store, error)
	needsDSN       bool
	needsPath      bool
	needsNamespace bool
}

var backends = map[Provider]backend{
	ProviderQdrant:     {open: newQdrantStore, needsDSN: true, needsNamespace: true},
	ProviderPGVector:   {open: newPGStore, needsDSN: true, needsNamespace: true},
	ProviderRedis:      {open: newRedisStore, needsDSN: true, needsNamespace: true},
	ProviderFilesystem: {open: func(_ context.Context, cfg *Config) (Store, error) { return newFileStore(cfg) }, needsPath: true},
	ProviderMemory:     {open: func(_ context.Context, cfg *Config) (Store, error) { return newMemoryStore(cfg), nil }},
}

// New validates cfg and opens a store for its provider. Remote backends
// connect lazily.
func New(ctx context.Context, cfg *Config) (Store, error) {
	b, err := checkConfig(cfg)
	if err != nil {
		return nil, err
	}
	return b.open(ctx, cfg)
}

// checkConfig trims cfg in place and returns the backend it selects.
func checkConfig(cfg *Config) (backend, error) {
	if cfg == nil {
		return backend{}, errors.New("vector_db config is required")
	}
	if strings.TrimSpace(cfg.ID) == "" {
		return backend{}, errMissingID
	}
	if strings.TrimSpace(string(cfg.Provider)) == "" {
		return backend{}, fmt.Errorf("vector_db %q: %w", cfg.ID, errMissingProvider)
	}
	b, ok := backends[cfg.Provider]
	if !ok {
		return backend{}, fmt.Errorf("vector_db %q: provider %q is not supported", cfg.ID, cfg.Provider)
	}
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	cfg.Path = strings.TrimSpace(cfg.Path)
	cfg.Collection = strings.TrimSpace(cfg.Collection)
	var missing error
	switch {
	case b.needsDSN && cfg.DSN == "":
		missing = errMissingDSN
	case b.needsPath && cfg.Path == "":
		missing = errMissingPath
	case b.needsNamespace && cfg.Collection == "":
		missing = errMissingName
	case cfg.Dimension <= 0:
		missing = errInvalidDimension
	case cfg.MaxTopK < 0:
		missing = errors.New("max_top_k must be non-negative")
	}
	if missing != nil {
		return backend{}, fmt.Errorf("vector_db %q: %w", cfg.ID, missing)
	}
	return b, nil
}

func connectionError(provider Provider, err error) error {
	return core.Errorf(core.CodeConnection, "%s: connection failed: %w", provider, err)
}

func dimensionError(provider Provider, id string, got, want int) error {
	return fmt.Errorf("%s: record %q dimension mismatch (got %d want %d)", provider, id, got, want)
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
