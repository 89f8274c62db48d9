package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode"

	"github.com/redis/go-redis/v9"
)

// redisStore keeps a collection in one Redis vector set. Chunk text and
// metadata are stored as element attributes; every metadata value is also
// copied to a top-level "f_<key>" string so VSIM FILTER can match it.
type redisStore struct {
	client *redis.Client
	key    string
	dim    int
	limit  int
}

const (
	redisMaxTopK     = 1000
	redisFallbackKey = "docbuddy_vectors"
	redisFieldPrefix = "f_"
)

type redisAttrs struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// newRedisStore parses the DSN only; go-redis dials on the first command.
func newRedisStore(_ context.Context, cfg *Config) (Store, error) {
	if cfg == nil {
		return nil, errors.New("vector_db config is required")
	}
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	limit := cfg.MaxTopK
	if limit <= 0 {
		limit = redisMaxTopK
	}
	return &redisStore{
		client: redis.NewClient(opts),
		key:    redisKey(cfg),
		dim:    cfg.Dimension,
		limit:  limit,
	}, nil
}

// Vector sets need RESP3.
func redisOptions(cfg *Config) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("redis vector_db %q: invalid dsn: %w", cfg.ID, err)
	}
	opts.Protocol = 3
	opts.UnstableResp3 = true
	if opts.Password == "" {
		opts.Password = cfg.APIKey
	}
	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
	}
	return opts, nil
}

func redisKey(cfg *Config) string {
	if key := redisIdent(cfg.Collection, ":-_"); key != "" {
		return key
	}
	if key := redisIdent(cfg.ID, ":-_"); key != "" {
		return key
	}
	return redisFallbackKey
}

// redisIdent lowercases raw and replaces every rune that is not a letter,
// digit or one of extra with an underscore.
func redisIdent(raw, extra string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
		case strings.ContainsRune(extra, r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_:-")
}

func redisField(metaKey string) string {
	name := redisIdent(metaKey, "")
	if name == "" {
		name = "unknown"
	}
	return redisFieldPrefix + name
}

// Reset deletes the vector set; the next VADD recreates it.
func (r *redisStore) Reset(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return redisError("reset", err)
	}
	return nil
}

func (r *redisStore) Count(ctx context.Context) (int, error) {
	n, err := r.client.VCard(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, redisError("count", err)
	}
	return int(n), nil
}

func (r *redisStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if len(records[i].Embedding) != r.dim {
			return dimensionError(ProviderRedis, records[i].ID, len(records[i].Embedding), r.dim)
		}
	}
	pipe := r.client.Pipeline()
	for i := range records {
		rec := &records[i]
		pipe.VAdd(ctx, r.key, rec.ID, &redis.VectorValues{Val: toFloat64(rec.Embedding)})
		pipe.VSetAttr(ctx, r.key, rec.ID, encodeRedisAttrs(rec))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return redisError("upsert", err)
	}
	return nil
}

func encodeRedisAttrs(rec *Record) map[string]any {
	attrs := map[string]any{"text": rec.Text}
	if len(rec.Metadata) > 0 {
		attrs["metadata"] = rec.Metadata
	}
	for key, value := range rec.Metadata {
		attrs[redisField(key)] = fmt.Sprint(value)
	}
	return attrs
}

func (r *redisStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != r.dim {
		return nil, fmt.Errorf("redis: query dimension mismatch (got %d want %d)", len(query), r.dim)
	}
	args := &redis.VSimArgs{
		Count:  int64(clampTopK(opts.TopK, r.limit)),
		Filter: redisFilter(opts.Filters),
	}
	scored, err := r.client.VSimWithArgsWithScores(ctx, r.key, &redis.VectorValues{Val: toFloat64(query)}, args).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(scored) == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, redisError("search", err)
	}
	ids := make([]string, len(scored))
	for i := range scored {
		ids[i] = scored[i].Name
	}
	attrs, err := r.attributes(ctx, ids)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(scored))
	for i, hit := range scored {
		if opts.MinScore > 0 && hit.Score < opts.MinScore {
			continue
		}
		if attrs[i] == nil {
			continue
		}
		matches = append(matches, Match{
			ID:       hit.Name,
			Score:    hit.Score,
			Text:     attrs[i].Text,
			Metadata: attrs[i].Metadata,
		})
	}
	sortMatches(matches)
	return matches, nil
}

// attributes loads the decoded attributes of ids in order. Elements without
// attributes come back as nil.
func (r *redisStore) attributes(ctx context.Context, ids []string) ([]*redisAttrs, error) {
	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.VGetAttr(ctx, r.key, id)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, redisError("read attributes", err)
	}
	out := make([]*redisAttrs, len(ids))
	for i, cmd := range cmds {
		raw, err := cmd.Result()
		if errors.Is(err, redis.Nil) || strings.TrimSpace(raw) == "" {
			continue
		}
		if err != nil {
			return nil, redisError("read attributes", err)
		}
		decoded, err := decodeRedisAttrs(raw)
		if err != nil {
			return nil, fmt.Errorf("redis: attributes of %q: %w", ids[i], err)
		}
		out[i] = decoded
	}
	return out, nil
}

func decodeRedisAttrs(raw string) (*redisAttrs, error) {
	var attrs redisAttrs
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return nil, err
	}
	if attrs.Metadata == nil {
		attrs.Metadata = map[string]any{}
	}
	return &attrs, nil
}

// Delete removes the listed IDs and every element whose metadata matches all
// of filter.Metadata.
func (r *redisStore) Delete(ctx context.Context, filter Filter) error {
	targets := make(map[string]struct{})
	for _, id := range filter.IDs {
		if id = strings.TrimSpace(id); id != "" {
			targets[id] = struct{}{}
		}
	}
	if len(filter.Metadata) > 0 {
		matched, err := r.idsWithMetadata(ctx, filter.Metadata)
		if err != nil {
			return err
		}
		for _, id := range matched {
			targets[id] = struct{}{}
		}
	}
	if len(targets) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for id := range targets {
		pipe.VRem(ctx, r.key, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return redisError("delete", err)
	}
	return nil
}

// idsWithMetadata lists every element and matches metadata client side.
// VSIM needs a query vector, so it cannot enumerate a filter on its own.
func (r *redisStore) idsWithMetadata(ctx context.Context, want map[string]string) ([]string, error) {
	total, err := r.Count(ctx)
	if err != nil || total == 0 {
		return nil, err
	}
	ids, err := r.client.VRandMemberCount(ctx, r.key, total).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, redisError("list elements", err)
	}
	attrs, err := r.attributes(ctx, ids)
	if err != nil {
		return nil, err
	}
	var out []string
	for i, a := range attrs {
		if a != nil && metadataMatches(a.Metadata, want) {
			out = append(out, ids[i])
		}
	}
	return out, nil
}

func (r *redisStore) Close(context.Context) error {
	return r.client.Close()
}

// redisFilter renders equality filters as a VSIM FILTER expression with
// keys in sorted order.
func redisFilter(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}
	quote := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	parts := make([]string, 0, len(filters))
	for _, key := range sortedKeys(filters) {
		parts = append(parts, fmt.Sprintf(`.%s == "%s"`, redisField(key), quote.Replace(filters[key])))
	}
	return strings.Join(parts, " && ")
}

func toFloat64(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

// redisError reports dial and network failures as connection errors.
func redisError(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return connectionError(ProviderRedis, err)
	}
	return fmt.Errorf("redis: %s: %w", op, err)
}
