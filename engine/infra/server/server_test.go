package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/docbuddy/engine/core"
	"github.com/compozy/docbuddy/engine/infra/monitoring"
	"github.com/compozy/docbuddy/engine/knowledge/embedder"
	"github.com/compozy/docbuddy/engine/session"
	appconfig "github.com/compozy/docbuddy/pkg/config"
)

type apiResponse struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type problemBody struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Details string `json:"details"`
}

func testConfig(t *testing.T) *appconfig.Config {
	t.Helper()
	cfg := appconfig.Default()
	cfg.Session.StagingDir = t.TempDir()
	cfg.Embedder.Provider = "mock"
	cfg.Embedder.Model = "hashing"
	cfg.Embedder.Dimension = 16
	cfg.Embedder.BatchSize = 4
	cfg.VectorDB.Provider = "memory"
	cfg.LLM.Provider = "mock"
	cfg.LLM.Model = "echo"
	cfg.Chunking.Size = 300
	cfg.Chunking.Overlap = 30
	return cfg
}

func setupServer(t *testing.T, cfg *appconfig.Config, mon *monitoring.Service) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	emb, err := embedder.New(t.Context(), &embedder.Config{
		ID:        "mock:hashing",
		Provider:  embedder.ProviderMock,
		Model:     "hashing",
		Dimension: cfg.Embedder.Dimension,
		BatchSize: cfg.Embedder.BatchSize,
		Normalize: true,
	})
	require.NoError(t, err)
	sessions, err := session.NewManager(cfg, emb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.CloseAll(context.Background()) })
	srv, err := NewServer(t.Context(), cfg, sessions, mon)
	require.NoError(t, err)
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	var out T
	require.NoError(t, json.Unmarshal(envelope.Data, &out))
	return out
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) problemBody {
	t.Helper()
	var p problemBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v0/sessions", http.NoBody, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	out := decodeData[struct {
		Session struct {
			ID    string `json:"id"`
			Ready bool   `json:"ready"`
		} `json:"session"`
	}](t, rec)
	require.NotEmpty(t, out.Session.ID)
	assert.False(t, out.Session.Ready)
	return out.Session.ID
}

func upload(t *testing.T, h http.Handler, id, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return do(t, h, http.MethodPost, "/api/v0/sessions/"+id+"/document", &buf, w.FormDataContentType())
}

func sendMessage(t *testing.T, h http.Handler, id, content string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"content": content})
	require.NoError(t, err)
	return do(t, h, http.MethodPost, "/api/v0/sessions/"+id+"/messages", bytes.NewReader(payload), "application/json")
}

const zebraDoc = "Facilities handbook.\n\nThe inventory code for the east wing is ZEBRA-42.\n\n" +
	"Visitors sign in at the front desk."

func TestHealth(t *testing.T) {
	h := setupServer(t, testConfig(t), nil)

	t.Run("Should report health on both paths", func(t *testing.T) {
		for _, path := range []string{"/health", "/api/v0/health"} {
			rec := do(t, h, http.MethodGet, path, http.NoBody, "")
			require.Equal(t, http.StatusOK, rec.Code, path)
			out := decodeData[map[string]any](t, rec)
			assert.Equal(t, "healthy", out["status"])
			assert.Equal(t, "Memory", out["vector_db"].(map[string]any)["provider"])
			assert.NotEmpty(t, out["uptime"])
		}
	})

	t.Run("Should echo or assign a request ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
		req.Header.Set("X-Request-ID", "req-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
		rec = do(t, h, http.MethodGet, "/health", http.NoBody, "")
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})
}

func TestCORS(t *testing.T) {
	t.Run("Should answer preflight requests when enabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Server.CORSEnabled = true
		h := setupServer(t, cfg, nil)
		rec := do(t, h, http.MethodOptions, "/api/v0/sessions", http.NoBody, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestSessionsAPI(t *testing.T) {
	t.Run("Should run the upload, index and chat flow", func(t *testing.T) {
		h := setupServer(t, testConfig(t), nil)
		id := createSession(t, h)

		rec := sendMessage(t, h, id, "hello?")
		require.Equal(t, http.StatusOK, rec.Code)
		early := decodeData[struct {
			Reply session.Message `json:"reply"`
			Ready bool            `json:"ready"`
		}](t, rec)
		assert.Equal(t, session.MessageNotReady, early.Reply.Content)
		assert.False(t, early.Ready)

		rec = do(t, h, http.MethodPost, "/api/v0/sessions/"+id+"/embeddings", http.NoBody, "")
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, session.CodeNoDocument, decodeProblem(t, rec).Code)
		assert.Equal(t, "Please upload a document first.", decodeProblem(t, rec).Details)

		rec = upload(t, h, id, "handbook.txt", zebraDoc)
		require.Equal(t, http.StatusCreated, rec.Code)
		doc := decodeData[struct {
			Document session.Document `json:"document"`
		}](t, rec)
		assert.Equal(t, "handbook.txt", doc.Document.Name)
		assert.Equal(t, int64(len(zebraDoc)), doc.Document.Size)

		rec = do(t, h, http.MethodPost, "/api/v0/sessions/"+id+"/embeddings", http.NoBody, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var envelope apiResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
		assert.Equal(t, "Vector DB Successfully Created and Stored in Memory!", envelope.Message)

		rec = sendMessage(t, h, id, "What is the inventory code ZEBRA-42?")
		require.Equal(t, http.StatusOK, rec.Code)
		turn := decodeData[struct {
			Reply session.Message `json:"reply"`
			Ready bool            `json:"ready"`
		}](t, rec)
		assert.True(t, turn.Ready)
		assert.True(t, strings.HasPrefix(turn.Reply.Content, "Mock response for: What is the inventory code ZEBRA-42?"))

		rec = do(t, h, http.MethodGet, "/api/v0/sessions/"+id+"/messages", http.NoBody, "")
		require.Equal(t, http.StatusOK, rec.Code)
		history := decodeData[struct {
			Messages []session.Message `json:"messages"`
		}](t, rec)
		require.Len(t, history.Messages, 2)
		assert.Equal(t, session.RoleUser, history.Messages[0].Role)

		rec = do(t, h, http.MethodDelete, "/api/v0/sessions/"+id, http.NoBody, "")
		require.Equal(t, http.StatusNoContent, rec.Code)
		rec = do(t, h, http.MethodGet, "/api/v0/sessions/"+id, http.NoBody, "")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Should reject unsupported formats with 415", func(t *testing.T) {
		h := setupServer(t, testConfig(t), nil)
		id := createSession(t, h)
		require.Equal(t, http.StatusCreated, upload(t, h, id, "data.xyz", "???").Code)
		rec := do(t, h, http.MethodPost, "/api/v0/sessions/"+id+"/embeddings", http.NoBody, "")
		require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Equal(t, core.CodeUnsupportedFormat, decodeProblem(t, rec).Code)
	})

	t.Run("Should reject empty documents with 422", func(t *testing.T) {
		h := setupServer(t, testConfig(t), nil)
		id := createSession(t, h)
		require.Equal(t, http.StatusCreated, upload(t, h, id, "blank.txt", "  \n\n  ").Code)
		rec := do(t, h, http.MethodPost, "/api/v0/sessions/"+id+"/embeddings", http.NoBody, "")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, core.CodeEmptyDocument, decodeProblem(t, rec).Code)
	})

	t.Run("Should reject uploads over the limit", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Session.MaxUploadBytes = 4
		h := setupServer(t, cfg, nil)
		id := createSession(t, h)
		rec := upload(t, h, id, "big.txt", "way too long")
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("Should require the file field", func(t *testing.T) {
		h := setupServer(t, testConfig(t), nil)
		id := createSession(t, h)
		rec := do(t, h, http.MethodPost, "/api/v0/sessions/"+id+"/document", strings.NewReader("x"), "text/plain")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Should require message content", func(t *testing.T) {
		h := setupServer(t, testConfig(t), nil)
		id := createSession(t, h)
		rec := do(t, h, http.MethodPost, "/api/v0/sessions/"+id+"/messages", strings.NewReader(`{}`), "application/json")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Should answer 404 for unknown or malformed session ids", func(t *testing.T) {
		h := setupServer(t, testConfig(t), nil)
		for _, id := range []string{core.MustNewID().String(), "not-a-ksuid"} {
			rec := do(t, h, http.MethodGet, "/api/v0/sessions/"+id+"/messages", http.NoBody, "")
			require.Equal(t, http.StatusNotFound, rec.Code, id)
			assert.Equal(t, session.CodeNotFound, decodeProblem(t, rec).Code)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("Should expose Prometheus metrics when monitoring is enabled", func(t *testing.T) {
		cfg := testConfig(t)
		mon, err := monitoring.NewMonitoringService(t.Context(), &monitoring.Config{Enabled: true, Path: "/metrics"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = mon.Shutdown(context.Background()) })
		h := setupServer(t, cfg, mon)
		require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", http.NoBody, "").Code)
		rec := do(t, h, http.MethodGet, "/metrics", http.NoBody, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "docbuddy_http_requests_total")
	})

	t.Run("Should not mount metrics when monitoring is disabled", func(t *testing.T) {
		h := setupServer(t, testConfig(t), nil)
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/metrics", http.NoBody, "").Code)
	})
}
