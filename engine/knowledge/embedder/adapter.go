package embedder

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/compozy/docbuddy/engine/core"
	"github.com/compozy/docbuddy/engine/knowledge"
	"github.com/compozy/docbuddy/pkg/logger"
)

var (
	errMissingID        = errors.New("embedder id is required")
	errMissingProvider  = errors.New("embedder provider is required")
	errMissingModel     = errors.New("embedder model is required")
	errInvalidDimension = errors.New("embedder dimension must be greater than zero")
	errInvalidBatchSize = errors.New("embedder batch size must be greater than zero")
	errUnsupportedDev   = errors.New("embedder device is not supported")
)

type cacheKey [sha256.Size]byte

// Adapter sits in front of a langchaingo embedder. It checks every vector
// against the configured dimension, L2-normalizes when asked and can keep an
// LRU of recent vectors.
type Adapter struct {
	cfg   Config
	impl  embeddings.Embedder
	cache atomic.Pointer[lru.Cache[cacheKey, []float32]]
}

// New builds the provider embedder described by cfg.
func New(ctx context.Context, cfg *Config) (*Adapter, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}
	impl, err := buildProviderEmbedder(ctx, cfg,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(cfg.StripNewLines),
	)
	if err != nil {
		return nil, err
	}
	a := &Adapter{cfg: *cfg, impl: impl}
	if cfg.CacheSize > 0 {
		if err := a.EnableCache(cfg.CacheSize); err != nil {
			return nil, err
		}
	}
	logger.FromContext(ctx).Debug("Embedder ready",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"dimension", cfg.Dimension,
		"normalize", cfg.Normalize,
	)
	return a, nil
}

// Wrap puts an Adapter around an existing embedder.
func Wrap(cfg *Config, impl embeddings.Embedder) (*Adapter, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}
	if impl == nil {
		return nil, fmt.Errorf("embedder %q: implementation is required", cfg.ID)
	}
	return &Adapter{cfg: *cfg, impl: impl}, nil
}

func (a *Adapter) ID() string {
	return a.cfg.ID
}

func (a *Adapter) Dimension() int {
	return a.cfg.Dimension
}

// EnableCache installs an LRU holding up to size vectors.
func (a *Adapter) EnableCache(size int) error {
	if size <= 0 {
		return fmt.Errorf("embedder %q: cache size must be greater than zero", a.cfg.ID)
	}
	cache, err := lru.New[cacheKey, []float32](size)
	if err != nil {
		return fmt.Errorf("embedder %q: init cache: %w", a.cfg.ID, err)
	}
	a.cache.Store(cache)
	return nil
}

// EmbedDocuments returns one vector per text, in input order. Repeated texts
// are sent to the model once.
func (a *Adapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	var pending []string
	seen := make(map[string]struct{}, len(texts))
	for i, text := range texts {
		if v, ok := a.cached("doc", text); ok {
			out[i] = v
			continue
		}
		if _, dup := seen[text]; !dup {
			seen[text] = struct{}{}
			pending = append(pending, text)
		}
	}
	if len(pending) == 0 {
		return out, nil
	}
	start := time.Now()
	raw, err := a.impl.EmbedDocuments(ctx, pending)
	if err != nil {
		return nil, a.wrap(err)
	}
	a.observe(ctx, start)
	if len(raw) != len(pending) {
		return nil, a.wrap(fmt.Errorf("received %d embeddings for %d texts", len(raw), len(pending)))
	}
	fresh := make(map[string][]float32, len(pending))
	for i, text := range pending {
		v, err := a.finish(raw[i])
		if err != nil {
			return nil, err
		}
		fresh[text] = v
		a.remember("doc", text, v)
	}
	for i, text := range texts {
		if out[i] == nil {
			out[i] = slices.Clone(fresh[text])
		}
	}
	return out, nil
}

// EmbedQuery embeds text prefixed with the configured query instruction.
func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if v, ok := a.cached("query", text); ok {
		return v, nil
	}
	start := time.Now()
	raw, err := a.impl.EmbedQuery(ctx, a.cfg.QueryInstruction+text)
	if err != nil {
		return nil, a.wrap(err)
	}
	a.observe(ctx, start)
	v, err := a.finish(raw)
	if err != nil {
		return nil, err
	}
	a.remember("query", text, v)
	return slices.Clone(v), nil
}

func (a *Adapter) finish(raw []float32) ([]float32, error) {
	if len(raw) != a.cfg.Dimension {
		return nil, a.wrap(fmt.Errorf("expected %d dimensions, model returned %d", a.cfg.Dimension, len(raw)))
	}
	v := slices.Clone(raw)
	if a.cfg.Normalize {
		normalizeL2(v)
	}
	return v, nil
}

func (a *Adapter) observe(ctx context.Context, start time.Time) {
	knowledge.RecordEmbedLatency(ctx, string(a.cfg.Provider), a.cfg.Model, time.Since(start))
}

// cached returns a copy so callers cannot modify cached vectors.
func (a *Adapter) cached(kind, text string) ([]float32, bool) {
	cache := a.cache.Load()
	if cache == nil {
		return nil, false
	}
	v, ok := cache.Get(keyFor(kind, text))
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

func (a *Adapter) remember(kind, text string, v []float32) {
	if cache := a.cache.Load(); cache != nil && len(v) > 0 {
		cache.Add(keyFor(kind, text), slices.Clone(v))
	}
}

// wrap prefixes err with the embedder id. Dial and DNS failures become
// connection errors so callers can tell an unreachable server apart.
func (a *Adapter) wrap(err error) error {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return core.Errorf(core.CodeConnection, "embedder %q: connection failed: %w", a.cfg.ID, err)
	}
	return fmt.Errorf("embedder %q: %w", a.cfg.ID, err)
}

func keyFor(kind, text string) cacheKey {
	return sha256.Sum256([]byte(kind + "\x00" + text))
}

func checkConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("embedder config is required")
	}
	if strings.TrimSpace(cfg.ID) == "" {
		return errMissingID
	}
	var problem error
	switch {
	case strings.TrimSpace(string(cfg.Provider)) == "":
		problem = errMissingProvider
	case strings.TrimSpace(cfg.Model) == "":
		problem = errMissingModel
	case cfg.Dimension <= 0:
		problem = errInvalidDimension
	case cfg.BatchSize <= 0:
		problem = errInvalidBatchSize
	}
	if problem != nil {
		return fmt.Errorf("embedder %q: %w", cfg.ID, problem)
	}
	device := strings.ToLower(strings.TrimSpace(cfg.Device))
	if cfg.Provider == ProviderLocal && device != "" && device != DeviceCPU {
		return fmt.Errorf("embedder %q: %w: %q (local models run on cpu)", cfg.ID, errUnsupportedDev, cfg.Device)
	}
	return nil
}
