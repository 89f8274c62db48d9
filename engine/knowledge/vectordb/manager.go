package vectordb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/compozy/docbuddy/pkg/logger"
)

// Manager hands out reference counted stores so sessions that point at the
// same vector_db ID share one client.
type Manager struct {
	mu   sync.Mutex
	pool map[string]*pooled
}

type pooled struct {
	store   Store
	holders int
	sig     string
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{pool: make(map[string]*pooled)}
}

// Len reports how many stores are open.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pool)
}

// AcquireShared returns the store registered for cfg.ID, opening it on first
// use. The returned release func drops one reference; the store is closed
// when the last one goes. Calling release twice is a no-op.
func (m *Manager) AcquireShared(ctx context.Context, cfg *Config) (Store, func(context.Context) error, error) {
	b, err := checkConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	sig := signatureKey(cfg)
	if store, ok, err := m.join(cfg.ID, sig); err != nil || ok {
		if err != nil {
			return nil, nil, err
		}
		return store, m.lease(cfg.ID), nil
	}
	opened, err := b.open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	if _, raced := m.pool[cfg.ID]; !raced {
		m.pool[cfg.ID] = &pooled{store: opened, holders: 1, sig: sig}
		m.mu.Unlock()
		return opened, m.lease(cfg.ID), nil
	}
	m.mu.Unlock()
	// Another caller opened the same ID while we were dialing.
	if err := opened.Close(ctx); err != nil {
		logger.FromContext(ctx).Warn("Failed to close duplicate vector store", "vector_id", cfg.ID, "error", err)
	}
	store, _, err := m.join(cfg.ID, sig)
	if err != nil {
		return nil, nil, err
	}
	return store, m.lease(cfg.ID), nil
}

// join adds a holder to an existing entry. ok is false when none exists.
func (m *Manager) join(id, sig string) (Store, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, found := m.pool[id]
	if !found {
		return nil, false, nil
	}
	if p.sig != sig {
		return nil, false, fmt.Errorf("vector_db %q: configuration mismatch for shared store", id)
	}
	p.holders++
	return p.store, true, nil
}

func (m *Manager) lease(id string) func(context.Context) error {
	var done atomic.Bool
	return func(ctx context.Context) error {
		if !done.CompareAndSwap(false, true) {
			return nil
		}
		m.mu.Lock()
		p, found := m.pool[id]
		if !found {
			m.mu.Unlock()
			return nil
		}
		p.holders--
		if p.holders > 0 {
			m.mu.Unlock()
			return nil
		}
		delete(m.pool, id)
		m.mu.Unlock()
		return p.store.Close(ctx)
	}
}

// CloseAll closes every open store, ignoring outstanding leases.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	open := m.pool
	m.pool = make(map[string]*pooled)
	m.mu.Unlock()
	var errs []error
	for id, p := range open {
		if err := p.store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("vector_db %q: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// signatureKey identifies everything that changes how a store behaves. The
// API key is hashed.
func signatureKey(cfg *Config) string {
	var b strings.Builder
	for _, part := range []string{
		string(cfg.Provider),
		cfg.DSN,
		cfg.Path,
		cfg.Collection,
		normalizeMetric(cfg.Metric),
		strconv.Itoa(cfg.Dimension),
		strconv.Itoa(cfg.MaxTopK),
		string(cfg.PGIndex),
		cfg.Timeout.String(),
	} {
		b.WriteString(strings.TrimSpace(part))
		b.WriteByte('|')
	}
	if cfg.APIKey != "" {
		sum := sha256.Sum256([]byte(cfg.APIKey))
		b.WriteString(hex.EncodeToString(sum[:8]))
	}
	return b.String()
}
