// Package ingest turns one uploaded document into a freshly rebuilt vector
// collection.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/compozy/docbuddy/engine/core"
	"github.com/compozy/docbuddy/engine/knowledge"
	"github.com/compozy/docbuddy/engine/knowledge/chunk"
	"github.com/compozy/docbuddy/engine/knowledge/loader"
	"github.com/compozy/docbuddy/engine/knowledge/vectordb"
	"github.com/compozy/docbuddy/pkg/logger"
)

// Embedder is the subset of embedder.Adapter the pipeline needs.
type Embedder interface {
	ID() string
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// LoadFunc reads a document from disk.
type LoadFunc func(ctx context.Context, path string) ([]chunk.Document, error)

// Config names the target collection and chunking behavior.
type Config struct {
	Provider   vectordb.Provider
	Collection string
	Chunking   chunk.Settings
	BatchSize  int
}

type Result struct {
	Source     string
	Collection string
	Documents  int
	Chunks     int
	Persisted  int
	Duration   time.Duration
	Message    string
}

type Pipeline struct {
	cfg       Config
	embedder  Embedder
	store     vectordb.Store
	chunker   *chunk.Processor
	load      LoadFunc
	observers []Observer

	mu      sync.Mutex
	state   State
	lastErr error
}

type Option func(*Pipeline)

// WithObserver registers fn to receive every state transition.
func WithObserver(fn Observer) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.observers = append(p.observers, fn)
		}
	}
}

// WithLoader replaces the document loader.
func WithLoader(fn LoadFunc) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.load = fn
		}
	}
}

func NewPipeline(cfg Config, emb Embedder, store vectordb.Store, opts ...Option) (*Pipeline, error) {
	if emb == nil {
		return nil, errors.New("ingest: embedder implementation is required")
	}
	if store == nil {
		return nil, errors.New("ingest: vector store is required")
	}
	if cfg.Chunking.Size == 0 && cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Size = chunk.DefaultSize
		cfg.Chunking.Overlap = chunk.DefaultOverlap
	}
	chunker, err := chunk.NewProcessor(cfg.Chunking)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	p := &Pipeline{
		cfg:      cfg,
		embedder: emb,
		store:    store,
		chunker:  chunker,
		load:     loader.Load,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// State returns the state reached by the most recent run.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastError returns the error that moved the most recent run to StateFailed.
func (p *Pipeline) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Run rebuilds the collection from the document at path. The collection is
// cleared before the document is read, so a file that fails to load still
// leaves the collection empty. Failures halt the run without rollback.
func (p *Pipeline) Run(ctx context.Context, path string) (*Result, error) {
	started := time.Now()
	log := logger.FromContext(ctx).With("collection", p.cfg.Collection, "source", filepath.Base(path))
	p.mu.Lock()
	p.state = StateIdle
	p.lastErr = nil
	p.mu.Unlock()
	result, err := p.run(ctx, path)
	elapsed := time.Since(started)
	if err != nil {
		p.fail(ctx, err)
		knowledge.RecordIngestDuration(ctx, p.cfg.Collection, "failure", elapsed)
		log.Error("Indexing failed", "error", err, "duration", elapsed)
		return nil, err
	}
	result.Duration = elapsed
	knowledge.RecordIngestDuration(ctx, p.cfg.Collection, "success", elapsed)
	knowledge.RecordIngestChunks(ctx, p.cfg.Collection, result.Persisted)
	p.transition(ctx, StateDone, result.Message)
	log.Info("Indexing completed",
		"documents", result.Documents,
		"chunks", result.Chunks,
		"duration", elapsed,
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, path string) (*Result, error) {
	p.transition(ctx, StateResetting, MessageResetting)
	if err := p.store.Reset(ctx); err != nil {
		return nil, p.storeError(err)
	}
	p.transition(ctx, StateLoading, "")
	docs, err := p.load(ctx, path)
	if err != nil {
		return nil, err
	}
	p.transition(ctx, StateChunking, "")
	source := filepath.Base(path)
	chunks, err := p.chunker.Process(source, docs)
	if err != nil {
		return nil, err
	}
	p.transition(ctx, StateEmbedding, MessageEmbedding)
	vectors, err := p.embedAll(ctx, chunks)
	if err != nil {
		return nil, err
	}
	records := buildRecords(chunks, vectors)
	if err := p.store.Upsert(ctx, records); err != nil {
		return nil, p.storeError(err)
	}
	return &Result{
		Source:     source,
		Collection: p.cfg.Collection,
		Documents:  len(docs),
		Chunks:     len(chunks),
		Persisted:  len(records),
		Message:    SuccessMessage(p.cfg.Provider),
	}, nil
}

// embedAll computes every vector before anything is written.
func (p *Pipeline) embedAll(ctx context.Context, chunks []chunk.Chunk) ([][]float32, error) {
	out := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+p.cfg.BatchSize, len(chunks))
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Text
		}
		vectors, err := p.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("ingest: embed documents: %w", err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("ingest: embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func buildRecords(chunks []chunk.Chunk, vectors [][]float32) []vectordb.Record {
	records := make([]vectordb.Record, len(chunks))
	for i := range chunks {
		meta := core.CloneMap(chunks[i].Metadata)
		if meta == nil {
			meta = make(map[string]any, 1)
		}
		meta["chunk_hash"] = chunks[i].Hash
		records[i] = vectordb.Record{
			ID:        chunks[i].ID,
			Text:      chunks[i].Text,
			Embedding: vectors[i],
			Metadata:  meta,
		}
	}
	return records
}

func (p *Pipeline) storeError(err error) error {
	return core.Errorf(core.CodeConnection, "failed to connect to %s: %w", p.cfg.Provider.DisplayName(), err)
}

// SuccessMessage is the status line shown after a completed run.
func SuccessMessage(provider vectordb.Provider) string {
	return fmt.Sprintf("Vector DB Successfully Created and Stored in %s!", provider.DisplayName())
}
