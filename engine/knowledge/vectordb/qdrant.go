package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/compozy/docbuddy/engine/core"
	"github.com/go-resty/resty/v2"
)

const (
	qdrantDefaultTimeout = 30 * time.Second
	qdrantTextKey        = "text"
)

// qdrantStore talks to the Qdrant REST API. Point payloads carry the chunk
// metadata plus the chunk text under qdrantTextKey.
type qdrantStore struct {
	http       *resty.Client
	collection string
	dimension  int
	distance   string
	maxTopK    int
}

type (
	qdrantVectors struct {
		Size     int    `json:"size"`
		Distance string `json:"distance"`
	}
	qdrantCreate struct {
		Vectors qdrantVectors `json:"vectors"`
	}
	qdrantPoint struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}
	qdrantUpsert struct {
		Points []qdrantPoint `json:"points"`
	}
	qdrantCondition struct {
		Key   string            `json:"key"`
		Match map[string]string `json:"match"`
	}
	qdrantFilter struct {
		Must []qdrantCondition `json:"must"`
	}
	qdrantQuery struct {
		Vector      []float32     `json:"vector"`
		Limit       int           `json:"limit"`
		WithPayload bool          `json:"with_payload"`
		Filter      *qdrantFilter `json:"filter,omitempty"`
	}
	qdrantRemove struct {
		Points []string      `json:"points,omitempty"`
		Filter *qdrantFilter `json:"filter,omitempty"`
	}
	qdrantHit struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	}
	qdrantCountResult struct {
		Count int `json:"count"`
	}
)

// qdrantReply is the envelope every Qdrant response shares.
type qdrantReply[T any] struct {
	Result T               `json:"result"`
	Status json.RawMessage `json:"status"`
}

// qdrantStatusError is a non-2xx answer from the server.
type qdrantStatusError struct {
	Status int
	Detail string
}

func (e *qdrantStatusError) Error() string {
	return fmt.Sprintf("qdrant: request failed with status %d: %s", e.Status, e.Detail)
}

func newQdrantStore(_ context.Context, cfg *Config) (Store, error) {
	if cfg == nil {
		return nil, errors.New("vector_db config is required")
	}
	base := strings.TrimRight(cfg.DSN, "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("vector_db %q: invalid qdrant url: %w", cfg.ID, err)
	}
	timeout := qdrantDefaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeaders(map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		})
	if cfg.APIKey != "" {
		client.SetHeader("api-key", cfg.APIKey)
	}
	return &qdrantStore{
		http:       client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		distance:   qdrantDistance(cfg.Metric),
		maxTopK:    cfg.MaxTopK,
	}, nil
}

func qdrantDistance(metric string) string {
	switch normalizeMetric(metric) {
	case MetricEuclid:
		return "Euclid"
	case MetricDot:
		return "Dot"
	default:
		return "Cosine"
	}
}

func (q *qdrantStore) endpoint(parts ...string) string {
	return "/collections/" + url.PathEscape(q.collection) + strings.Join(parts, "")
}

// Reset drops the collection, ignoring a 404, and creates it again.
func (q *qdrantStore) Reset(ctx context.Context) error {
	if err := q.call(ctx, http.MethodDelete, q.endpoint(), nil, nil); err != nil && !isQdrantNotFound(err) {
		return err
	}
	create := qdrantCreate{Vectors: qdrantVectors{Size: q.dimension, Distance: q.distance}}
	return q.call(ctx, http.MethodPut, q.endpoint(), create, nil)
}

func (q *qdrantStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	req := qdrantUpsert{Points: make([]qdrantPoint, len(records))}
	for i := range records {
		if got := len(records[i].Embedding); got != q.dimension {
			return dimensionError(ProviderQdrant, records[i].ID, got, q.dimension)
		}
		payload := make(map[string]any, len(records[i].Metadata)+1)
		for k, v := range records[i].Metadata {
			payload[k] = v
		}
		payload[qdrantTextKey] = records[i].Text
		req.Points[i] = qdrantPoint{ID: records[i].ID, Vector: records[i].Embedding, Payload: payload}
	}
	return q.call(ctx, http.MethodPut, q.endpoint("/points?wait=true"), req, nil)
}

func (q *qdrantStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != q.dimension {
		return nil, fmt.Errorf("qdrant: query dimension mismatch (got %d want %d)", len(query), q.dimension)
	}
	req := qdrantQuery{
		Vector:      query,
		Limit:       clampTopK(opts.TopK, q.maxTopK),
		WithPayload: true,
		Filter:      qdrantMust(opts.Filters),
	}
	var reply qdrantReply[[]qdrantHit]
	if err := q.call(ctx, http.MethodPost, q.endpoint("/points/search"), req, &reply); err != nil {
		return nil, err
	}
	return toMatches(reply.Result, opts.MinScore), nil
}

func (q *qdrantStore) Delete(ctx context.Context, filter Filter) error {
	req := qdrantRemove{Points: filter.IDs, Filter: qdrantMust(filter.Metadata)}
	if len(req.Points) == 0 && req.Filter == nil {
		return nil
	}
	return q.call(ctx, http.MethodPost, q.endpoint("/points/delete?wait=true"), req, nil)
}

// Count returns zero when the collection does not exist yet.
func (q *qdrantStore) Count(ctx context.Context) (int, error) {
	var reply qdrantReply[qdrantCountResult]
	err := q.call(ctx, http.MethodPost, q.endpoint("/points/count"), map[string]bool{"exact": true}, &reply)
	switch {
	case isQdrantNotFound(err):
		return 0, nil
	case err != nil:
		return 0, err
	}
	return reply.Result.Count, nil
}

func (q *qdrantStore) Close(context.Context) error {
	return nil
}

// qdrantMust turns equality filters into a "must" clause with keys sorted.
func qdrantMust(filters map[string]string) *qdrantFilter {
	if len(filters) == 0 {
		return nil
	}
	f := &qdrantFilter{Must: make([]qdrantCondition, 0, len(filters))}
	for _, key := range sortedKeys(filters) {
		f.Must = append(f.Must, qdrantCondition{Key: key, Match: map[string]string{"value": filters[key]}})
	}
	return f
}

func toMatches(hits []qdrantHit, minScore float64) []Match {
	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < minScore {
			continue
		}
		meta := core.CloneMap(hit.Payload)
		if meta == nil {
			meta = map[string]any{}
		}
		text, _ := meta[qdrantTextKey].(string)
		delete(meta, qdrantTextKey)
		matches = append(matches, Match{ID: fmt.Sprint(hit.ID), Score: hit.Score, Text: text, Metadata: meta})
	}
	sortMatches(matches)
	return matches
}

// call sends body as JSON and decodes a successful response into out.
func (q *qdrantStore) call(ctx context.Context, method, path string, body, out any) error {
	req := q.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	switch {
	case err != nil && ctx.Err() != nil:
		return fmt.Errorf("qdrant: %w", ctx.Err())
	case err != nil:
		return connectionError(ProviderQdrant, err)
	case resp.IsError():
		return &qdrantStatusError{Status: resp.StatusCode(), Detail: qdrantDetail(resp.Body())}
	case out == nil:
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("qdrant: decode response: %w", err)
	}
	return nil
}

// qdrantDetail pulls the message out of `{"status":{"error":"..."}}` or a
// string status, falling back to the raw body.
func qdrantDetail(body []byte) string {
	var reply qdrantReply[json.RawMessage]
	if json.Unmarshal(body, &reply) == nil && len(reply.Status) > 0 {
		var nested struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(reply.Status, &nested) == nil && nested.Error != "" {
			return nested.Error
		}
		var plain string
		if json.Unmarshal(reply.Status, &plain) == nil && plain != "" {
			return plain
		}
	}
	return strings.TrimSpace(string(body))
}

func isQdrantNotFound(err error) bool {
	var statusErr *qdrantStatusError
	return errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound
}
