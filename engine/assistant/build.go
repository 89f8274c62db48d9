package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/compozy/docbuddy/engine/knowledge/retriever"
	"github.com/compozy/docbuddy/engine/knowledge/vectordb"
	llmadapter "github.com/compozy/docbuddy/engine/llm/adapter"
	appconfig "github.com/compozy/docbuddy/pkg/config"
)

// Build assembles the chat pipeline over an already indexed store: retrieval
// from cfg.Retrieval and a chat client from cfg.LLM.
func Build(
	ctx context.Context,
	cfg *appconfig.Config,
	emb retriever.QueryEmbedder,
	store vectordb.Store,
	factory llmadapter.Factory,
) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("assistant: config is required")
	}
	if factory == nil {
		factory = llmadapter.NewDefaultFactory()
	}
	ret, err := retriever.NewService(retriever.Config{
		Collection: cfg.VectorDB.Collection,
		TopK:       cfg.Retrieval.TopK,
		MinScore:   cfg.Retrieval.MinScore,
	}, emb, store, nil)
	if err != nil {
		return nil, err
	}
	client, err := factory.CreateClient(ctx, llmadapter.ConfigFromApp(cfg))
	if err != nil {
		return nil, fmt.Errorf("assistant: create llm client: %w", err)
	}
	svc, err := NewService(Config{
		SystemPrompt: cfg.LLM.SystemPrompt,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
	}, ret, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	return svc, nil
}
