package retriever

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/compozy/docbuddy/engine/core"
	"github.com/compozy/docbuddy/engine/knowledge"
	"github.com/compozy/docbuddy/engine/knowledge/vectordb"
	"github.com/compozy/docbuddy/pkg/logger"
)

const DefaultTopK = 4

const tracerName = "docbuddy.knowledge.retriever"

type QueryEmbedder interface {
	ID() string
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TokenEstimator sizes a chunk for MaxTokens trimming.
type TokenEstimator interface {
	EstimateTokens(ctx context.Context, text string) int
}

// quarterRunes estimates one token per four runes, with a floor of one for
// non-empty text.
type quarterRunes struct{}

func (quarterRunes) EstimateTokens(_ context.Context, text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return max(1, n/4)
}

// Config tunes similarity search. MaxTokens of zero disables trimming.
type Config struct {
	Collection string
	TopK       int
	MinScore   float64
	MaxTokens  int
	Filters    map[string]string
}

// Service answers "which chunks are closest to this question".
type Service struct {
	cfg       Config
	embedder  QueryEmbedder
	store     vectordb.Store
	estimator TokenEstimator
	tracer    trace.Tracer
}

func NewService(cfg Config, emb QueryEmbedder, store vectordb.Store, estimator TokenEstimator) (*Service, error) {
	switch {
	case emb == nil:
		return nil, errors.New("retriever: embedder is required")
	case store == nil:
		return nil, errors.New("retriever: vector store is required")
	}
	if estimator == nil {
		estimator = quarterRunes{}
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &Service{cfg: cfg, embedder: emb, store: store, estimator: estimator, tracer: otel.Tracer(tracerName)}, nil
}

// Retrieve embeds query and returns up to TopK chunks, most similar first.
// Ties are broken by chunk ID.
func (s *Service) Retrieve(ctx context.Context, query string) ([]knowledge.RetrievedContext, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("retriever: query is required")
	}
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracerName+".retrieve",
		trace.WithAttributes(attribute.String("collection", s.cfg.Collection)))
	defer span.End()
	log := logger.FromContext(ctx).With("collection", s.cfg.Collection)

	contexts, err := s.retrieve(ctx, query)
	elapsed := time.Since(start)
	knowledge.RecordQueryLatency(ctx, s.cfg.Collection, elapsed)
	if err != nil {
		fail(span, err)
		log.Error("Retrieval failed", "error", err, "duration", elapsed)
		return nil, err
	}
	span.SetAttributes(attribute.Int("results", len(contexts)))
	log.Debug("Retrieval finished", "results", len(contexts), "duration", elapsed)
	return contexts, nil
}

func (s *Service) retrieve(ctx context.Context, query string) ([]knowledge.RetrievedContext, error) {
	var vector []float32
	err := s.step(ctx, "embed_query", []attribute.KeyValue{attribute.String("embedder_id", s.embedder.ID())},
		func(ctx context.Context) (err error) {
			vector, err = s.embedder.EmbedQuery(ctx, query)
			return err
		})
	if err != nil {
		return nil, err
	}
	opts := vectordb.SearchOptions{
		TopK:     s.cfg.TopK,
		MinScore: s.cfg.MinScore,
		Filters:  maps.Clone(s.cfg.Filters),
	}
	var matches []vectordb.Match
	err = s.step(ctx, "vector_search", []attribute.KeyValue{attribute.Int("top_k", opts.TopK)},
		func(ctx context.Context) (err error) {
			matches, err = s.store.Search(ctx, vector, opts)
			return err
		})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		knowledge.RecordRetrievalEmpty(ctx, s.cfg.Collection)
		return nil, nil
	}
	slices.SortStableFunc(matches, func(a, b vectordb.Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return s.toContexts(ctx, matches[:min(len(matches), s.cfg.TopK)]), nil
}

// step runs fn inside a child span named after op.
func (s *Service) step(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, tracerName+"."+op, trace.WithAttributes(attrs...))
	defer span.End()
	if err := fn(ctx); err != nil {
		fail(span, err)
		return err
	}
	return nil
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// toContexts converts matches and, when MaxTokens is set, drops the least
// similar ones until the estimate fits. The best match is always kept.
func (s *Service) toContexts(ctx context.Context, matches []vectordb.Match) []knowledge.RetrievedContext {
	out := make([]knowledge.RetrievedContext, 0, len(matches))
	budget := 0
	for i := range matches {
		m := &matches[i]
		tokens := s.estimator.EstimateTokens(ctx, m.Text)
		budget += tokens
		out = append(out, knowledge.RetrievedContext{
			ID:            m.ID,
			Content:       m.Text,
			Score:         m.Score,
			TokenEstimate: tokens,
			Metadata:      core.CloneMap(m.Metadata),
		})
	}
	if s.cfg.MaxTokens <= 0 {
		return out
	}
	for budget > s.cfg.MaxTokens && len(out) > 1 {
		budget -= out[len(out)-1].TokenEstimate
		out = out[:len(out)-1]
	}
	return out
}
