package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/compozy/docbuddy/engine/core"
	"github.com/compozy/docbuddy/engine/session"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"Should map unknown sessions to 404", session.ErrNotFound, http.StatusNotFound},
		{"Should map missing documents to 409", session.ErrNoDocument, http.StatusConflict},
		{"Should map oversized uploads to 413", core.NewError(errors.New("big"), session.CodeTooLarge, nil), http.StatusRequestEntityTooLarge},
		{"Should map unsupported formats to 415", fmt.Errorf("loader: %w", core.ErrUnsupportedFormat), http.StatusUnsupportedMediaType},
		{"Should map empty documents to 422", core.ErrEmptyDocument, http.StatusUnprocessableEntity},
		{"Should map connection failures to 502", core.Errorf(core.CodeConnection, "failed to connect to Qdrant: %w", errors.New("dial")), http.StatusBadGateway},
		{"Should default to 500", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, StatusForError(tc.err))
		})
	}
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Should write a problem document with the domain code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v0/sessions/x/embeddings", http.NoBody)
		RespondWithError(c, core.Errorf(core.CodeConnection, "failed to connect to Qdrant: %w", errors.New("dial tcp")))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, core.CodeConnection, body["code"])
		assert.Equal(t, "failed to connect to Qdrant: dial tcp", body["details"])
		assert.Equal(t, "Bad Gateway", body["error"])
		assert.Equal(t, "/api/v0/sessions/x/embeddings", body["instance"])
		assert.True(t, c.IsAborted())
	})

	t.Run("Should fall back to the internal code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		RespondWithError(c, errors.New("boom"))
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, ErrInternalCode, body["code"])
	})

	t.Run("Should report missing app state", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		assert.Nil(t, GetAppState(c))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
