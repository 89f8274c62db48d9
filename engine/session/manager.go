package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/compozy/docbuddy/engine/core"
	"github.com/compozy/docbuddy/engine/knowledge/vectordb"
	llmadapter "github.com/compozy/docbuddy/engine/llm/adapter"
	appconfig "github.com/compozy/docbuddy/pkg/config"
	"github.com/compozy/docbuddy/pkg/logger"
)

// Embedder covers both indexing and query embedding.
type Embedder interface {
	ID() string
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type dependencies struct {
	config         *appconfig.Config
	embedder       Embedder
	stores         *vectordb.Manager
	llm            llmadapter.Factory
	maxUploadBytes int64
}

// Manager creates, looks up and tears down sessions.
type Manager struct {
	mu       sync.RWMutex
	root     string
	deps     *dependencies
	sessions map[core.ID]*Session
}

type Option func(*Manager)

// WithLLMFactory replaces the default langchaingo-backed model factory.
func WithLLMFactory(f llmadapter.Factory) Option {
	return func(m *Manager) {
		if f != nil {
			m.deps.llm = f
		}
	}
}

// WithStoreManager shares vector stores with other components.
func WithStoreManager(stores *vectordb.Manager) Option {
	return func(m *Manager) {
		if stores != nil {
			m.deps.stores = stores
		}
	}
}

func NewManager(cfg *appconfig.Config, emb Embedder, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("session: config is required")
	}
	if emb == nil {
		return nil, errors.New("session: embedder is required")
	}
	root := cfg.Session.StagingDir
	if root == "" {
		root = filepath.Join(os.TempDir(), "docbuddy")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("session: create staging root: %w", err)
	}
	maxUpload := cfg.Session.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = appconfig.Default().Session.MaxUploadBytes
	}
	m := &Manager{
		root: root,
		deps: &dependencies{
			config:         cfg,
			embedder:       emb,
			stores:         vectordb.NewManager(),
			llm:            llmadapter.NewDefaultFactory(),
			maxUploadBytes: maxUpload,
		},
		sessions: make(map[core.ID]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Create starts a session with its own staging directory and a handle on the
// shared collection store.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(m.root, id.String())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: create staging dir: %w", err)
	}
	storeCfg := vectordb.ConfigFromApp(m.deps.config)
	store, release, err := m.deps.stores.AcquireShared(ctx, storeCfg)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	sess := &Session{
		id:        id,
		dir:       dir,
		deps:      m.deps,
		store:     store,
		release:   release,
		createdAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()
	logger.FromContext(ctx).Debug("Session created", "session_id", id.String(), "store", storeCfg.ID)
	return sess, nil
}

func (m *Manager) Get(id core.ID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs lists live sessions, oldest first.
func (m *Manager) IDs() []core.ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]core.ID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close tears a session down: staging files are removed and the shared store
// reference is released.
func (m *Manager) Close(ctx context.Context, id core.ID) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	logger.FromContext(ctx).Debug("Session closed", "session_id", id.String())
	return sess.close(ctx)
}

func (m *Manager) CloseAll(ctx context.Context) error {
	var errs []error
	for _, id := range m.IDs() {
		if err := m.Close(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if err := m.deps.stores.CloseAll(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
