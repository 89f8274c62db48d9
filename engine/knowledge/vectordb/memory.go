package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/compozy/docbuddy/engine/core"
)

// memoryStore keeps records in a map guarded by a RWMutex.
type memoryStore struct {
	mu        sync.RWMutex
	provider  Provider
	dimension int
	metric    string
	maxTopK   int
	records   map[string]Record
}

func newMemoryStore(cfg *Config) *memoryStore {
	return &memoryStore{
		provider:  ProviderMemory,
		dimension: cfg.Dimension,
		metric:    normalizeMetric(cfg.Metric),
		maxTopK:   cfg.MaxTopK,
		records:   make(map[string]Record),
	}
}

func (s *memoryStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]Record)
	return nil
}

func (s *memoryStore) Upsert(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(records)
}

func (s *memoryStore) putLocked(records []Record) error {
	for i := range records {
		if len(records[i].Embedding) != s.dimension {
			return dimensionError(s.provider, records[i].ID, len(records[i].Embedding), s.dimension)
		}
	}
	for i := range records {
		rec := records[i]
		s.records[rec.ID] = Record{
			ID:        rec.ID,
			Text:      rec.Text,
			Embedding: append([]float32(nil), rec.Embedding...),
			Metadata:  core.CloneMap(rec.Metadata),
		}
	}
	return nil
}

func (s *memoryStore) Search(_ context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf(
			"%s: query dimension mismatch (got %d want %d)",
			s.provider,
			len(query),
			s.dimension,
		)
	}
	topK := clampTopK(opts.TopK, s.maxTopK)
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidates := make([]Match, 0, len(s.records))
	for _, rec := range s.records {
		if !metadataMatches(rec.Metadata, opts.Filters) {
			continue
		}
		score := similarity(s.metric, rec.Embedding, query)
		if score < opts.MinScore {
			continue
		}
		candidates = append(candidates, Match{
			ID:       rec.ID,
			Score:    score,
			Text:     rec.Text,
			Metadata: core.CloneMap(rec.Metadata),
		})
	}
	sortMatches(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func (s *memoryStore) Delete(_ context.Context, filter Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(filter)
	return nil
}

// deleteLocked reports whether anything was removed.
func (s *memoryStore) deleteLocked(filter Filter) bool {
	if len(filter.IDs) > 0 {
		changed := false
		for _, id := range filter.IDs {
			if _, ok := s.records[id]; ok {
				delete(s.records, id)
				changed = true
			}
		}
		return changed
	}
	if len(filter.Metadata) == 0 {
		return false
	}
	changed := false
	for id, rec := range s.records {
		if metadataMatches(rec.Metadata, filter.Metadata) {
			delete(s.records, id)
			changed = true
		}
	}
	return changed
}

func (s *memoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}

func clampTopK(topK int, maxTopK int) int {
	if topK <= 0 {
		topK = defaultTopK
	}
	if maxTopK > 0 && topK > maxTopK {
		topK = maxTopK
	}
	return topK
}

func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
}

// similarity returns a higher-is-closer score for the metric. Euclidean
// distance d maps to 1/(1+d).
func similarity(metric string, a, b []float32) float64 {
	switch metric {
	case MetricDot:
		return dotProduct(a, b)
	case MetricEuclid:
		var sum float64
		for i := range a {
			diff := float64(a[i]) - float64(b[i])
			sum += diff * diff
		}
		return 1 / (1 + math.Sqrt(sum))
	default:
		return cosineSimilarity(a, b)
	}
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func metadataMatches(metadata map[string]any, filters map[string]string) bool {
	for key, want := range filters {
		value, ok := metadata[key]
		if !ok || fmt.Sprint(value) != want {
			return false
		}
	}
	return true
}
