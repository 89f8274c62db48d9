package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(id string, dimension int) *Config {
	return &Config{ID: id, Provider: ProviderMemory, Collection: "Vector_Database", Dimension: dimension}
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	t.Run("Should share one store per config ID", func(t *testing.T) {
		m := NewManager()
		first, releaseFirst, err := m.AcquireShared(ctx, memoryConfig("shared", 2))
		require.NoError(t, err)
		second, releaseSecond, err := m.AcquireShared(ctx, memoryConfig("shared", 2))
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, 1, m.Len())

		require.NoError(t, releaseFirst(ctx))
		assert.Equal(t, 1, m.Len())
		require.NoError(t, releaseSecond(ctx))
		assert.Zero(t, m.Len())
	})

	t.Run("Should reject a mismatched configuration for the same ID", func(t *testing.T) {
		m := NewManager()
		_, release, err := m.AcquireShared(ctx, memoryConfig("shared", 2))
		require.NoError(t, err)
		defer func() { _ = release(ctx) }()
		_, _, err = m.AcquireShared(ctx, memoryConfig("shared", 3))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration mismatch")
	})

	t.Run("Should validate the configuration", func(t *testing.T) {
		m := NewManager()
		_, _, err := m.AcquireShared(ctx, &Config{Provider: ProviderMemory, Dimension: 2})
		require.ErrorIs(t, err, errMissingID)
		_, _, err = m.AcquireShared(ctx, &Config{ID: "x", Provider: ProviderQdrant, Collection: "c", Dimension: 2})
		require.ErrorIs(t, err, errMissingDSN)
		_, _, err = m.AcquireShared(ctx, &Config{ID: "x", Provider: ProviderMemory, Dimension: 0})
		require.ErrorIs(t, err, errInvalidDimension)
	})

	t.Run("Should ignore duplicate releases", func(t *testing.T) {
		m := NewManager()
		_, release, err := m.AcquireShared(ctx, memoryConfig("shared", 2))
		require.NoError(t, err)
		require.NoError(t, release(ctx))
		require.NoError(t, release(ctx))
		assert.Zero(t, m.Len())
	})

	t.Run("Should close every store on CloseAll", func(t *testing.T) {
		m := NewManager()
		_, _, err := m.AcquireShared(ctx, memoryConfig("one", 2))
		require.NoError(t, err)
		_, _, err = m.AcquireShared(ctx, memoryConfig("two", 2))
		require.NoError(t, err)
		require.NoError(t, m.CloseAll(ctx))
		assert.Zero(t, m.Len())
	})
}

func TestSignatureKey(t *testing.T) {
	t.Run("Should not embed the raw API key", func(t *testing.T) {
		cfg := memoryConfig("x", 2)
		cfg.APIKey = "super-secret"
		assert.NotContains(t, signatureKey(cfg), "super-secret")
		other := memoryConfig("x", 2)
		other.APIKey = "another"
		assert.NotEqual(t, signatureKey(cfg), signatureKey(other))
	})
}

func TestNew(t *testing.T) {
	t.Run("Should reject unknown providers", func(t *testing.T) {
		_, err := New(context.Background(), &Config{ID: "x", Provider: "chroma", Collection: "c", Dimension: 2})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not supported")
	})

	t.Run("Should require a collection for remote backends", func(t *testing.T) {
		_, err := New(context.Background(), &Config{ID: "x", Provider: ProviderRedis, DSN: "redis://localhost:6379/0", Dimension: 2})
		require.ErrorIs(t, err, errMissingName)
	})

	t.Run("Should build a redis store without dialing", func(t *testing.T) {
		store, err := New(context.Background(), &Config{
			ID:         "redis:docs",
			Provider:   ProviderRedis,
			DSN:        "redis://localhost:1/0",
			Collection: "Vector_Database",
			Dimension:  2,
		})
		require.NoError(t, err)
		rs := store.(*redisStore)
		assert.Equal(t, "vector_database", rs.key)
		require.NoError(t, store.Close(context.Background()))
	})
}
