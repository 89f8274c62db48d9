package core_test

import (
	"testing"

	"github.com/compozy/docbuddy/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID(t *testing.T) {
	t.Run("Should report zero values", func(t *testing.T) {
		var id core.ID
		assert.True(t, id.IsZero())
		assert.False(t, core.ID("session").IsZero())
	})

	t.Run("Should generate unique parseable ids", func(t *testing.T) {
		first := core.MustNewID()
		second, err := core.NewID()
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
		parsed, err := core.ParseID(first.String())
		require.NoError(t, err)
		assert.Equal(t, first, parsed)
	})

	t.Run("Should reject malformed ids", func(t *testing.T) {
		_, err := core.ParseID("")
		assert.ErrorContains(t, err, "empty ID")
		id, err := core.ParseID("not-a-valid-ksuid")
		assert.ErrorContains(t, err, "invalid ID format")
		assert.True(t, id.IsZero())
	})
}
