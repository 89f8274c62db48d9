package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoutes(t *testing.T) {
	t.Run("Should return versioned API base path", func(t *testing.T) {
		assert.Equal(t, "v0", Version())
		assert.Equal(t, "/api/v0", Base())
	})

	t.Run("Should nest resource paths under the base", func(t *testing.T) {
		assert.Equal(t, "/api/v0/sessions", Sessions())
		assert.Equal(t, "/api/v0/health", HealthVersioned())
	})

	t.Run("Should build session paths", func(t *testing.T) {
		assert.Equal(t, "/api/v0/sessions/abc", Session("abc"))
		assert.Equal(t, "/api/v0/sessions/abc/messages", Session("abc", "messages"))
	})
}
