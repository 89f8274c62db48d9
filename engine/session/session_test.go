package session

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/docbuddy/engine/core"
	"github.com/compozy/docbuddy/engine/knowledge/embedder"
	"github.com/compozy/docbuddy/engine/knowledge/ingest"
	"github.com/compozy/docbuddy/engine/knowledge/vectordb"
	appconfig "github.com/compozy/docbuddy/pkg/config"
)

const testDimension = 16

func testAppConfig(t *testing.T) *appconfig.Config {
	t.Helper()
	cfg := appconfig.Default()
	cfg.Session.StagingDir = t.TempDir()
	cfg.Session.MaxUploadBytes = 1 << 20
	cfg.Embedder.Provider = "mock"
	cfg.Embedder.Model = "hashing"
	cfg.Embedder.Dimension = testDimension
	cfg.Embedder.BatchSize = 4
	cfg.VectorDB.Provider = "memory"
	cfg.LLM.Provider = "mock"
	cfg.LLM.Model = "echo"
	cfg.Chunking.Size = 200
	cfg.Chunking.Overlap = 20
	return cfg
}

func newTestManager(t *testing.T, cfg *appconfig.Config) *Manager {
	t.Helper()
	emb, err := embedder.New(context.Background(), &embedder.Config{
		ID:        "mock:hashing",
		Provider:  embedder.ProviderMock,
		Model:     "hashing",
		Dimension: testDimension,
		BatchSize: 4,
		Normalize: true,
	})
	require.NoError(t, err)
	m, err := NewManager(cfg, emb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.CloseAll(context.Background()) })
	return m
}

func newTestSession(t *testing.T) (*Manager, *Session) {
	t.Helper()
	m := newTestManager(t, testAppConfig(t))
	sess, err := m.Create(context.Background())
	require.NoError(t, err)
	return m, sess
}

type countingStore struct {
	vectordb.Store
	searches int
}

func (c *countingStore) Search(ctx context.Context, query []float32, opts vectordb.SearchOptions) ([]vectordb.Match, error) {
	c.searches++
	return c.Store.Search(ctx, query, opts)
}

const zebraText = "Warehouse notes.\n\nThe inventory code for the east wing is ZEBRA-42.\n\n" +
	"Deliveries arrive on Tuesdays and Thursdays before noon."

func TestSession_Stage(t *testing.T) {
	t.Run("Should write a byte-identical copy named after the extension", func(t *testing.T) {
		_, sess := newTestSession(t)
		doc, err := sess.Stage("Report.TXT", strings.NewReader(zebraText))
		require.NoError(t, err)
		assert.Equal(t, "Report.TXT", doc.Name)
		assert.Equal(t, ".txt", doc.Ext)
		assert.Equal(t, int64(len(zebraText)), doc.Size)
		assert.Equal(t, "temp.txt", filepath.Base(doc.Path))
		assert.True(t, strings.HasPrefix(doc.ContentType, "text/plain"))
		data, err := os.ReadFile(doc.Path)
		require.NoError(t, err)
		assert.Equal(t, zebraText, string(data))
	})

	t.Run("Should replace the previous upload", func(t *testing.T) {
		_, sess := newTestSession(t)
		first, err := sess.Stage("a.txt", strings.NewReader("one"))
		require.NoError(t, err)
		second, err := sess.Stage("b.csv", strings.NewReader("h\nv\n"))
		require.NoError(t, err)
		assert.NoFileExists(t, first.Path)
		assert.FileExists(t, second.Path)
		assert.Equal(t, "b.csv", sess.Document().Name)
	})

	t.Run("Should reject uploads over the limit", func(t *testing.T) {
		cfg := testAppConfig(t)
		cfg.Session.MaxUploadBytes = 8
		m := newTestManager(t, cfg)
		sess, err := m.Create(context.Background())
		require.NoError(t, err)
		_, err = sess.Stage("big.txt", bytes.NewReader(make([]byte, 9)))
		require.ErrorIs(t, err, ErrTooLarge)
		assert.Nil(t, sess.Document())
		entries, err := os.ReadDir(sess.dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("Should require a file name", func(t *testing.T) {
		_, sess := newTestSession(t)
		_, err := sess.Stage("  ", strings.NewReader("x"))
		require.Error(t, err)
	})
}

func TestSession_CreateEmbeddings(t *testing.T) {
	ctx := context.Background()

	t.Run("Should require an uploaded document", func(t *testing.T) {
		_, sess := newTestSession(t)
		_, err := sess.CreateEmbeddings(ctx)
		require.ErrorIs(t, err, ErrNoDocument)
		assert.Equal(t, "Please upload a document first.", err.Error())
		assert.False(t, sess.Ready())
	})

	t.Run("Should index the document and enable chat", func(t *testing.T) {
		_, sess := newTestSession(t)
		_, err := sess.Stage("notes.txt", strings.NewReader(zebraText))
		require.NoError(t, err)
		var states []ingest.State
		result, err := sess.CreateEmbeddings(ctx, ingest.WithObserver(func(_ context.Context, tr ingest.Transition) {
			states = append(states, tr.To)
		}))
		require.NoError(t, err)
		assert.Equal(t, "Vector DB Successfully Created and Stored in Memory!", result.Message)
		assert.Positive(t, result.Persisted)
		assert.Equal(t, ingest.StateDone, states[len(states)-1])
		assert.True(t, sess.Ready())
		count, err := sess.store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, result.Persisted, count)
	})

	t.Run("Should leave an empty collection when the format is unsupported", func(t *testing.T) {
		_, sess := newTestSession(t)
		_, err := sess.Stage("notes.txt", strings.NewReader(zebraText))
		require.NoError(t, err)
		_, err = sess.CreateEmbeddings(ctx)
		require.NoError(t, err)

		_, err = sess.Stage("data.xyz", strings.NewReader("???"))
		require.NoError(t, err)
		_, err = sess.CreateEmbeddings(ctx)
		require.ErrorIs(t, err, core.ErrUnsupportedFormat)
		count, err := sess.store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestSession_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return guidance before embeddings exist", func(t *testing.T) {
		_, sess := newTestSession(t)
		msg := sess.Send(ctx, "hello?")
		assert.Equal(t, RoleAssistant, msg.Role)
		assert.Equal(t, "Please upload a document and create embeddings to start chatting.", msg.Content)
		assert.Empty(t, sess.Messages())
	})

	t.Run("Should not search the store before embeddings exist", func(t *testing.T) {
		_, sess := newTestSession(t)
		counting := &countingStore{Store: sess.store}
		sess.store = counting
		_, err := sess.Stage("notes.txt", strings.NewReader(zebraText))
		require.NoError(t, err)
		msg := sess.Send(ctx, "What is the inventory code?")
		assert.Equal(t, MessageNotReady, msg.Content)
		assert.Zero(t, counting.searches)

		_, err = sess.CreateEmbeddings(ctx)
		require.NoError(t, err)
		sess.Send(ctx, "What is the inventory code?")
		assert.Equal(t, 1, counting.searches)
	})

	t.Run("Should answer from the indexed document", func(t *testing.T) {
		_, sess := newTestSession(t)
		_, err := sess.Stage("notes.txt", strings.NewReader(zebraText))
		require.NoError(t, err)
		_, err = sess.CreateEmbeddings(ctx)
		require.NoError(t, err)

		reply := sess.Send(ctx, "What is the inventory code ZEBRA-42?")
		assert.Equal(t, RoleAssistant, reply.Role)
		assert.True(t, strings.HasPrefix(reply.Content, "Mock response for: What is the inventory code ZEBRA-42?"))
		msgs := sess.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, RoleUser, msgs[0].Role)
		assert.Equal(t, reply, msgs[1])
	})

	t.Run("Should report failures as answer text", func(t *testing.T) {
		_, sess := newTestSession(t)
		_, err := sess.Stage("notes.txt", strings.NewReader(zebraText))
		require.NoError(t, err)
		_, err = sess.CreateEmbeddings(ctx)
		require.NoError(t, err)

		reply := sess.Send(ctx, "   ")
		assert.True(t, strings.HasPrefix(reply.Content, "An error occurred: "))
		assert.Len(t, sess.Messages(), 2)
	})
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	t.Run("Should share one store across sessions", func(t *testing.T) {
		m := newTestManager(t, testAppConfig(t))
		a, err := m.Create(ctx)
		require.NoError(t, err)
		b, err := m.Create(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID(), b.ID())
		assert.Same(t, a.store, b.store)
		assert.Equal(t, 1, m.deps.stores.Len())
		assert.Equal(t, 2, m.Len())
		assert.ElementsMatch(t, []core.ID{a.ID(), b.ID()}, m.IDs())
	})

	t.Run("Should tear down a session", func(t *testing.T) {
		m := newTestManager(t, testAppConfig(t))
		sess, err := m.Create(ctx)
		require.NoError(t, err)
		_, err = sess.Stage("a.txt", strings.NewReader("content"))
		require.NoError(t, err)

		require.NoError(t, m.Close(ctx, sess.ID()))
		assert.NoDirExists(t, sess.dir)
		assert.Zero(t, m.deps.stores.Len())
		_, err = m.Get(sess.ID())
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, m.Close(ctx, sess.ID()), ErrNotFound)
		_, err = sess.Stage("b.txt", strings.NewReader("x"))
		require.Error(t, err)
	})

	t.Run("Should look up live sessions", func(t *testing.T) {
		m := newTestManager(t, testAppConfig(t))
		sess, err := m.Create(ctx)
		require.NoError(t, err)
		got, err := m.Get(sess.ID())
		require.NoError(t, err)
		assert.Same(t, sess, got)
	})

	t.Run("Should validate dependencies", func(t *testing.T) {
		_, err := NewManager(nil, nil)
		require.Error(t, err)
		_, err = NewManager(testAppConfig(t), nil)
		require.Error(t, err)
	})

	t.Run("Should reject store configs that cannot be built", func(t *testing.T) {
		cfg := testAppConfig(t)
		cfg.VectorDB.Provider = "filesystem"
		cfg.VectorDB.Path = ""
		m := newTestManager(t, cfg)
		_, err := m.Create(ctx)
		require.Error(t, err)
		assert.Zero(t, m.Len())
	})

	t.Run("Should accept a shared store manager", func(t *testing.T) {
		cfg := testAppConfig(t)
		stores := vectordb.NewManager()
		emb, err := embedder.New(ctx, &embedder.Config{
			ID: "mock:hashing", Provider: embedder.ProviderMock, Model: "hashing", Dimension: testDimension, BatchSize: 4,
		})
		require.NoError(t, err)
		m, err := NewManager(cfg, emb, WithStoreManager(stores))
		require.NoError(t, err)
		_, err = m.Create(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stores.Len())
		require.NoError(t, m.CloseAll(ctx))
		assert.Zero(t, stores.Len())
	})
}
