package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/compozy/docbuddy/engine/assistant"
	"github.com/compozy/docbuddy/engine/knowledge/embedder"
	"github.com/compozy/docbuddy/engine/knowledge/vectordb"
	"github.com/compozy/docbuddy/engine/session"
	appconfig "github.com/compozy/docbuddy/pkg/config"
)

// Runtime bundles the long-lived components behind every command.
type Runtime struct {
	Config   *appconfig.Config
	Embedder *embedder.Adapter
	Sessions *session.Manager
}

// NewRuntime builds the embedder and session manager from the configuration
// attached to ctx.
func NewRuntime(ctx context.Context) (*Runtime, error) {
	cfg := appconfig.FromContext(ctx)
	emb, err := embedder.New(ctx, embedder.ConfigFromApp(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	sessions, err := session.NewManager(cfg, emb)
	if err != nil {
		return nil, err
	}
	return &Runtime{Config: cfg, Embedder: emb, Sessions: sessions}, nil
}

// Close tears down every open session and the stores they share.
func (r *Runtime) Close(ctx context.Context) error {
	return r.Sessions.CloseAll(ctx)
}

// OpenAssistant answers over an existing collection without indexing first.
// The returned close func releases the chat client and the store.
func (r *Runtime) OpenAssistant(ctx context.Context) (*assistant.Service, func() error, error) {
	store, err := vectordb.New(ctx, vectordb.ConfigFromApp(r.Config))
	if err != nil {
		return nil, nil, err
	}
	svc, err := assistant.Build(ctx, r.Config, r.Embedder, store, nil)
	if err != nil {
		_ = store.Close(ctx)
		return nil, nil, err
	}
	closeFn := func() error {
		return errors.Join(svc.Close(), store.Close(context.WithoutCancel(ctx)))
	}
	return svc, closeFn, nil
}
