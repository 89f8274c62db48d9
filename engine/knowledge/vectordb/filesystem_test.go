package vectordb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should persist records across instances", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "vectors.json")
		cfg := &Config{ID: "fs", Provider: ProviderFilesystem, Path: path, Dimension: 2}
		store, err := New(ctx, cfg)
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, []Record{
			{ID: "x", Text: "hello", Embedding: []float32{1, 0}, Metadata: map[string]any{"page": 0}},
		}))
		require.NoError(t, store.Close(ctx))

		reopened, err := New(ctx, cfg)
		require.NoError(t, err)
		count, err := reopened.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		matches, err := reopened.Search(ctx, []float32{1, 0}, SearchOptions{Filters: map[string]string{"page": "0"}})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "hello", matches[0].Text)
	})

	t.Run("Should truncate the snapshot on reset", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vectors.json")
		cfg := &Config{ID: "fs", Provider: ProviderFilesystem, Path: path, Dimension: 2}
		store, err := New(ctx, cfg)
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, []Record{{ID: "x", Embedding: []float32{1, 0}}}))
		require.NoError(t, store.Reset(ctx))

		reopened, err := New(ctx, cfg)
		require.NoError(t, err)
		count, err := reopened.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("Should reject a snapshot written with another dimension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vectors.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"dimension":3,"records":[]}`), 0o600))
		_, err := New(ctx, &Config{ID: "fs", Provider: ProviderFilesystem, Path: path, Dimension: 2})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match")
	})

	t.Run("Should delete by metadata and persist", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vectors.json")
		cfg := &Config{ID: "fs", Provider: ProviderFilesystem, Path: path, Dimension: 2}
		store, err := New(ctx, cfg)
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, []Record{
			{ID: "a", Embedding: []float32{1, 0}, Metadata: map[string]any{"source": "a.txt"}},
			{ID: "b", Embedding: []float32{0, 1}, Metadata: map[string]any{"source": "b.txt"}},
		}))
		require.NoError(t, store.Delete(ctx, Filter{Metadata: map[string]string{"source": "a.txt"}}))

		reopened, err := New(ctx, cfg)
		require.NoError(t, err)
		count, err := reopened.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}
