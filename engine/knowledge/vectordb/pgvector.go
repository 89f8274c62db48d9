package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// pgPool is the subset of *pgxpool.Pool the store needs.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

type pgStore struct {
	pool       pgPool
	tableIdent string
	indexIdent string
	indexType  PGVectorIndexType
	dimension  int
	metric     string
	maxTopK    int

	schemaMu    sync.Mutex
	schemaReady bool
}

// pgvector operators and their opclass per metric.
var pgMetricOps = map[string]struct {
	operator string
	opclass  string
	score    string
}{
	MetricCosine: {"<=>", "vector_cosine_ops", "1 - (embedding <=> $1)"},
	MetricDot:    {"<#>", "vector_ip_ops", "(embedding <#> $1) * -1"},
	MetricEuclid: {"<->", "vector_l2_ops", "1 / (1 + (embedding <-> $1))"},
}

// newPGStore builds the pool lazily; pgxpool does not dial until first use.
func newPGStore(_ context.Context, cfg *Config) (Store, error) {
	if cfg == nil {
		return nil, errors.New("vector_db config is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("vector_db %q: invalid postgres dsn: %w", cfg.ID, err)
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("vector_db %q: create postgres pool: %w", cfg.ID, err)
	}
	return newPGStoreWithPool(pool, cfg), nil
}

func newPGStoreWithPool(pool pgPool, cfg *Config) *pgStore {
	table := strings.ToLower(cfg.Collection)
	return &pgStore{
		pool:       pool,
		tableIdent: pgx.Identifier{table}.Sanitize(),
		indexIdent: pgx.Identifier{table + "_embedding_idx"}.Sanitize(),
		indexType:  cfg.PGIndex,
		dimension:  cfg.Dimension,
		metric:     normalizeMetric(cfg.Metric),
		maxTopK:    cfg.MaxTopK,
	}
}

func (p *pgStore) ensureSchema(ctx context.Context) error {
	p.schemaMu.Lock()
	defer p.schemaMu.Unlock()
	if p.schemaReady {
		return nil
	}
	if err := p.createSchema(ctx); err != nil {
		return err
	}
	p.schemaReady = true
	return nil
}

func (p *pgStore) createSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return pgError("enable extension", err)
	}
	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		embedding vector(%d),
		document TEXT,
		metadata JSONB,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`, p.tableIdent, p.dimension)
	if _, err := p.pool.Exec(ctx, createTable); err != nil {
		return pgError("create table", err)
	}
	if p.indexType == PGVectorIndexNone {
		return nil
	}
	createIndex := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s USING %s (embedding %s)",
		p.indexIdent,
		p.tableIdent,
		p.indexType,
		pgMetricOps[p.metric].opclass,
	)
	if _, err := p.pool.Exec(ctx, createIndex); err != nil {
		return pgError("create index", err)
	}
	return nil
}

// Reset drops the table and recreates the schema.
func (p *pgStore) Reset(ctx context.Context) error {
	p.schemaMu.Lock()
	p.schemaReady = false
	p.schemaMu.Unlock()
	if _, err := p.pool.Exec(ctx, "DROP TABLE IF EXISTS "+p.tableIdent); err != nil {
		return pgError("drop table", err)
	}
	return p.ensureSchema(ctx)
}

func (p *pgStore) Upsert(ctx context.Context, records []Record) (err error) {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if len(records[i].Embedding) != p.dimension {
			return dimensionError(ProviderPGVector, records[i].ID, len(records[i].Embedding), p.dimension)
		}
	}
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	tx, txErr := p.pool.Begin(ctx)
	if txErr != nil {
		return pgError("begin tx", txErr)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("pgvector: rollback failed: %w; original error: %v", rbErr, err)
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = pgError("commit", commitErr)
		}
	}()
	stmt := fmt.Sprintf(`INSERT INTO %s (id, embedding, document, metadata, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    embedding = excluded.embedding,
    document = excluded.document,
    metadata = excluded.metadata,
    updated_at = excluded.updated_at`, p.tableIdent)
	now := time.Now().UTC()
	for i := range records {
		rec := records[i]
		metadata, marshalErr := json.Marshal(rec.Metadata)
		if marshalErr != nil {
			return fmt.Errorf("pgvector: marshal metadata for %q: %w", rec.ID, marshalErr)
		}
		vector := pgvector.NewVector(rec.Embedding)
		if _, execErr := tx.Exec(ctx, stmt, rec.ID, vector, rec.Text, metadata, now); execErr != nil {
			return fmt.Errorf("pgvector: upsert %q: %w", rec.ID, execErr)
		}
	}
	return nil
}

func (p *pgStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != p.dimension {
		return nil, fmt.Errorf("pgvector: query dimension mismatch (got %d want %d)", len(query), p.dimension)
	}
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	sql, args := p.buildSearchQuery(query, opts)
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, pgError("search", err)
	}
	defer rows.Close()
	results := make([]Match, 0)
	for rows.Next() {
		var (
			id          string
			document    string
			metadataRaw []byte
			score       float64
		)
		if err := rows.Scan(&id, &document, &metadataRaw, &score); err != nil {
			return nil, fmt.Errorf("pgvector: scan: %w", err)
		}
		if score < opts.MinScore {
			continue
		}
		meta := make(map[string]any)
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &meta); err != nil {
				return nil, fmt.Errorf("pgvector: decode metadata: %w", err)
			}
		}
		results = append(results, Match{ID: id, Score: score, Text: document, Metadata: meta})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: search rows: %w", err)
	}
	sortMatches(results)
	return results, nil
}

func (p *pgStore) buildSearchQuery(query []float32, opts SearchOptions) (string, []any) {
	ops := pgMetricOps[p.metric]
	builder := strings.Builder{}
	builder.WriteString("SELECT id, document, metadata, ")
	builder.WriteString(ops.score)
	builder.WriteString(" AS score FROM ")
	builder.WriteString(p.tableIdent)
	builder.WriteString(" WHERE 1=1")
	args := []any{pgvector.NewVector(query)}
	argPos := 2
	for _, key := range sortedKeys(opts.Filters) {
		builder.WriteString(fmt.Sprintf(" AND metadata ->> $%d = $%d", argPos, argPos+1))
		args = append(args, key, opts.Filters[key])
		argPos += 2
	}
	builder.WriteString(fmt.Sprintf(" ORDER BY embedding %s $1 ASC, id ASC LIMIT $%d", ops.operator, argPos))
	args = append(args, clampTopK(opts.TopK, p.maxTopK))
	return builder.String(), args
}

func (p *pgStore) Delete(ctx context.Context, filter Filter) error {
	if len(filter.IDs) == 0 && len(filter.Metadata) == 0 {
		return nil
	}
	builder := strings.Builder{}
	builder.WriteString("DELETE FROM ")
	builder.WriteString(p.tableIdent)
	builder.WriteString(" WHERE 1=1")
	args := make([]any, 0)
	argPos := 1
	if len(filter.IDs) > 0 {
		builder.WriteString(fmt.Sprintf(" AND id = ANY($%d)", argPos))
		args = append(args, filter.IDs)
		argPos++
	}
	for _, key := range sortedKeys(filter.Metadata) {
		builder.WriteString(fmt.Sprintf(" AND metadata ->> $%d = $%d", argPos, argPos+1))
		args = append(args, key, filter.Metadata[key])
		argPos += 2
	}
	if _, err := p.pool.Exec(ctx, builder.String(), args...); err != nil {
		return pgError("delete", err)
	}
	return nil
}

func (p *pgStore) Count(ctx context.Context) (int, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := p.pool.QueryRow(ctx, "SELECT count(*) FROM "+p.tableIdent).Scan(&count); err != nil {
		return 0, pgError("count", err)
	}
	return count, nil
}

func (p *pgStore) Close(context.Context) error {
	p.pool.Close()
	return nil
}

// pgError classifies dial failures as connection errors; everything else is
// reported as a query failure.
func pgError(op string, err error) error {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return connectionError(ProviderPGVector, err)
	}
	return fmt.Errorf("pgvector: %s: %w", op, err)
}
