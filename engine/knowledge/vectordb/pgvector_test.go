package vectordb

import (
	"errors"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGStoreQueries(t *testing.T) {
	t.Run("Should build a cosine search with ordered filters", func(t *testing.T) {
		store := newPGStoreWithPool(nil, &Config{Collection: "Vector_Database", Dimension: 2})
		sql, args := store.buildSearchQuery(
			[]float32{1, 0},
			SearchOptions{TopK: 3, Filters: map[string]string{"source": "a.pdf", "page": "1"}},
		)
		assert.Contains(t, sql, `FROM "vector_database"`)
		assert.Contains(t, sql, "1 - (embedding <=> $1) AS score")
		assert.Contains(t, sql, "metadata ->> $2 = $3 AND metadata ->> $4 = $5")
		assert.True(t, strings.HasSuffix(sql, "ORDER BY embedding <=> $1 ASC, id ASC LIMIT $6"))
		require.Len(t, args, 6)
		assert.Equal(t, "page", args[1])
		assert.Equal(t, "source", args[3])
		assert.Equal(t, 3, args[5])
	})

	t.Run("Should use the inner product operator for dot", func(t *testing.T) {
		store := newPGStoreWithPool(nil, &Config{Collection: "docs", Dimension: 2, Metric: "dot"})
		sql, _ := store.buildSearchQuery([]float32{1, 0}, SearchOptions{})
		assert.Contains(t, sql, "ORDER BY embedding <#> $1")
	})

	t.Run("Should sanitize the table identifier", func(t *testing.T) {
		store := newPGStoreWithPool(nil, &Config{Collection: `Weird"Name`, Dimension: 2})
		assert.Equal(t, `"weird""name"`, store.tableIdent)
	})
}

func TestPGStoreSchema(t *testing.T) {
	t.Run("Should drop and recreate the table on reset", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		store := newPGStoreWithPool(mock, &Config{
			Collection: "Vector_Database",
			Dimension:  384,
			PGIndex:    PGVectorIndexHNSW,
		})
		mock.ExpectExec(`DROP TABLE IF EXISTS "vector_database"`).
			WillReturnResult(pgxmock.NewResult("DROP", 0))
		mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS vector`).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "vector_database"`).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "vector_database_embedding_idx" ON "vector_database" USING hnsw \(embedding vector_cosine_ops\)`).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "vector_database"`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

		require.NoError(t, store.Reset(t.Context()))
		count, err := store.Count(t.Context())
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should wrap query failures with the operation", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		store := newPGStoreWithPool(mock, &Config{Collection: "docs", Dimension: 2})
		mock.ExpectExec(`DROP TABLE IF EXISTS "docs"`).WillReturnError(errors.New("permission denied"))

		err = store.Reset(t.Context())
		assert.EqualError(t, err, "pgvector: drop table: permission denied")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
