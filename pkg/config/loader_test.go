package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	data       map[string]any
	sourceType SourceType
}

func (m *mockSource) Load() (map[string]any, error) { return m.data, nil }
func (m *mockSource) Type() SourceType              { return m.sourceType }

func noEnv() []string { return nil }

func TestLoader_Load(t *testing.T) {
	t.Run("Should load the documented defaults", func(t *testing.T) {
		cfg, err := NewService(WithEnviron(noEnv)).Load(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "local", cfg.Embedder.Provider)
		assert.Equal(t, "BAAI/bge-small-en", cfg.Embedder.Model)
		assert.Equal(t, "cpu", cfg.Embedder.Device)
		assert.True(t, cfg.Embedder.Normalize)
		assert.Equal(t, 384, cfg.Embedder.Dimension)
		assert.Equal(t, "http://localhost:6333", cfg.VectorDB.URL)
		assert.Equal(t, "Vector_Database", cfg.VectorDB.Collection)
		assert.Equal(t, "llama3.2:3b", cfg.LLM.Model)
		assert.InDelta(t, 0.6, cfg.LLM.Temperature, 1e-9)
		assert.Equal(t, 1000, cfg.Chunking.Size)
		assert.Equal(t, 250, cfg.Chunking.Overlap)
		assert.Equal(t, 4, cfg.Retrieval.TopK)
		assert.Equal(t, 30*time.Second, cfg.VectorDB.Timeout)
	})

	t.Run("Should let later sources override earlier ones", func(t *testing.T) {
		yamlSource := &mockSource{
			sourceType: SourceYAML,
			data: map[string]any{
				"chunking": map[string]any{"size": 800, "overlap": 100},
			},
		}
		cliSource := &mockSource{
			sourceType: SourceCLI,
			data: map[string]any{
				"chunking": map[string]any{"overlap": 50},
			},
		}
		svc := NewService(WithEnviron(noEnv))
		cfg, err := svc.Load(t.Context(), cliSource, yamlSource)
		require.NoError(t, err)
		assert.Equal(t, 800, cfg.Chunking.Size)
		assert.Equal(t, 50, cfg.Chunking.Overlap)
		assert.Equal(t, SourceCLI, svc.GetSource("chunking.overlap"))
		assert.Equal(t, SourceYAML, svc.GetSource("chunking.size"))
		assert.Equal(t, SourceDefault, svc.GetSource("llm.model"))
	})

	t.Run("Should read prefixed environment variables", func(t *testing.T) {
		environ := func() []string {
			return []string{
				"DOCBUDDY_VECTORDB_COLLECTION=manuals",
				"DOCBUDDY_LLM_TEMPERATURE=0.2",
				"DOCBUDDY_VECTORDB_TIMEOUT=5s",
				"VECTORDB_COLLECTION=ignored",
			}
		}
		svc := NewService(WithEnviron(environ))
		cfg, err := svc.Load(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "manuals", cfg.VectorDB.Collection)
		assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
		assert.Equal(t, 5*time.Second, cfg.VectorDB.Timeout)
		assert.Equal(t, SourceEnv, svc.GetSource("vectordb.collection"))
	})

	t.Run("Should prefer CLI values over environment", func(t *testing.T) {
		environ := func() []string { return []string{"DOCBUDDY_RETRIEVAL_TOP_K=8"} }
		cli := NewCLIProvider(map[string]any{"retrieval.top_k": 2})
		cfg, err := NewService(WithEnviron(environ)).Load(t.Context(), cli)
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.Retrieval.TopK)
	})

	t.Run("Should reject overlap not smaller than size", func(t *testing.T) {
		cli := NewCLIProvider(map[string]any{"chunking.size": 100, "chunking.overlap": 100})
		_, err := NewService(WithoutEnv()).Load(t.Context(), cli)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chunking.overlap must be less than chunking.size")
	})

	t.Run("Should reject unknown providers", func(t *testing.T) {
		cli := NewCLIProvider(map[string]any{"vectordb.provider": "chroma"})
		_, err := NewService(WithoutEnv()).Load(t.Context(), cli)
		require.Error(t, err)
	})

	t.Run("Should reject collection names with spaces", func(t *testing.T) {
		cli := NewCLIProvider(map[string]any{"vectordb.collection": "my docs"})
		_, err := NewService(WithoutEnv()).Load(t.Context(), cli)
		require.Error(t, err)
	})

	t.Run("Should require a path for the filesystem store", func(t *testing.T) {
		cli := NewCLIProvider(map[string]any{"vectordb.provider": "filesystem"})
		_, err := NewService(WithoutEnv()).Load(t.Context(), cli)
		require.ErrorContains(t, err, "vectordb.path")
	})
}

func TestYAMLProvider(t *testing.T) {
	t.Run("Should load nested values from disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "docbuddy.yaml")
		content := "vectordb:\n  provider: memory\n  collection: faq\nllm:\n  model: llama3.1\n  api_key:\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		cfg, err := NewService(WithoutEnv()).Load(t.Context(), NewYAMLProvider(path))
		require.NoError(t, err)
		assert.Equal(t, "memory", cfg.VectorDB.Provider)
		assert.Equal(t, "faq", cfg.VectorDB.Collection)
		assert.Equal(t, "llama3.1", cfg.LLM.Model)
	})

	t.Run("Should flatten keys and skip null leaves", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "docbuddy.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7000\nllm:\n  api_key:\n"), 0o600))
		data, err := NewYAMLProvider(path).Load()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"server.port": 7000}, data)
	})

	t.Run("Should report malformed files", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o600))
		_, err := NewYAMLProvider(path).Load()
		assert.ErrorContains(t, err, "failed to parse")
	})

	t.Run("Should treat a missing file as empty", func(t *testing.T) {
		data, err := NewYAMLProvider(filepath.Join(t.TempDir(), "absent.yaml")).Load()
		require.NoError(t, err)
		assert.Empty(t, data)
	})
}

func TestEnvPaths(t *testing.T) {
	t.Run("Should derive config paths from the env tags", func(t *testing.T) {
		paths := EnvPaths()
		assert.Equal(t, "server.port", paths["SERVER_PORT"])
		assert.Equal(t, "vectordb.collection", paths["VECTORDB_COLLECTION"])
		assert.Equal(t, "chunking.overlap", paths["CHUNK_OVERLAP"])
		assert.Equal(t, "llm.temperature", paths["LLM_TEMPERATURE"])
	})
}

func TestSensitiveString(t *testing.T) {
	t.Run("Should redact when printed", func(t *testing.T) {
		s := SensitiveString("sk-secret")
		assert.Equal(t, "[REDACTED]", s.String())
		assert.Equal(t, "sk-secret", s.Value())
		raw, err := s.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, `"[REDACTED]"`, string(raw))
	})
}

func TestContext(t *testing.T) {
	t.Run("Should return the attached configuration", func(t *testing.T) {
		cfg := Default()
		cfg.VectorDB.Collection = "attached"
		ctx := ContextWithConfig(t.Context(), cfg)
		assert.Same(t, cfg, FromContext(ctx))
	})

	t.Run("Should return the attached service", func(t *testing.T) {
		svc := NewService(WithoutEnv())
		ctx := ContextWithService(t.Context(), svc)
		assert.Same(t, svc, ServiceFromContext(ctx))
		assert.Nil(t, ServiceFromContext(t.Context()))
	})
}
