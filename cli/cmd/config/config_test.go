package config

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	appconfig "github.com/compozy/docbuddy/pkg/config"
)

func TestFlattenConfig(t *testing.T) {
	t.Run("Should key values by their dotted config path", func(t *testing.T) {
		flat := flattenConfig(appconfig.Default())
		assert.Equal(t, "5001", flat["server.port"])
		assert.Equal(t, "Vector_Database", flat["vectordb.collection"])
		assert.Equal(t, "BAAI/bge-small-en", flat["embedder.model"])
		assert.Equal(t, "0.6", flat["llm.temperature"])
		assert.Equal(t, "1000", flat["chunking.size"])
		assert.Equal(t, "250", flat["chunking.overlap"])
	})

	t.Run("Should redact secrets and URL passwords", func(t *testing.T) {
		cfg := appconfig.Default()
		cfg.LLM.APIKey = "sk-live"
		cfg.VectorDB.URL = "postgres://docbuddy:hunter2@db:5432/vectors"
		flat := flattenConfig(cfg)
		assert.Equal(t, "[REDACTED]", flat["llm.api_key"])
		assert.Empty(t, flat["embedder.api_key"])
		assert.NotContains(t, flat["vectordb.url"], "hunter2")
		assert.Contains(t, flat["vectordb.url"], "docbuddy:REDACTED@db:5432")
	})
}

func TestFormatConfigOutput(t *testing.T) {
	cfg := appconfig.Default()

	t.Run("Should render a sorted table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, formatConfigOutput(&buf, cfg, nil, "table"))
		out := buf.String()
		assert.Contains(t, out, "KEY")
		assert.NotContains(t, out, "SOURCE")
		assert.Less(t, bytes.Index(buf.Bytes(), []byte("chunking.size")), bytes.Index(buf.Bytes(), []byte("vectordb.provider")))
	})

	t.Run("Should include sources when requested", func(t *testing.T) {
		var buf bytes.Buffer
		sources := map[string]appconfig.SourceType{"server.port": appconfig.SourceCLI}
		require.NoError(t, formatConfigOutput(&buf, cfg, sources, "table"))
		assert.Contains(t, buf.String(), "SOURCE")
		assert.Regexp(t, `server\.port\s+5001\s+cli`, buf.String())
		assert.Regexp(t, `server\.host\s+0\.0\.0\.0\s+default`, buf.String())
	})

	t.Run("Should render JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, formatConfigOutput(&buf, cfg, nil, "json"))
		var decoded map[string]map[string]string
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "qdrant", decoded["config"]["vectordb.provider"])
	})

	t.Run("Should render YAML", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, formatConfigOutput(&buf, cfg, nil, "yaml"))
		var decoded map[string]map[string]string
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "ollama", decoded["config"]["llm.provider"])
	})

	t.Run("Should reject unknown formats", func(t *testing.T) {
		require.ErrorContains(t, formatConfigOutput(&bytes.Buffer{}, cfg, nil, "xml"), "unsupported format")
	})
}

func TestCollectSources(t *testing.T) {
	t.Run("Should report the layer that set each key", func(t *testing.T) {
		svc := appconfig.NewService(appconfig.WithoutEnv())
		_, err := svc.Load(t.Context(), appconfig.NewCLIProvider(map[string]any{"server.port": 6001}))
		require.NoError(t, err)
		sources := collectSources(svc, map[string]string{"server.port": "6001", "server.host": "0.0.0.0"})
		assert.Equal(t, appconfig.SourceCLI, sources["server.port"])
		assert.Equal(t, appconfig.SourceDefault, sources["server.host"])
	})
}
