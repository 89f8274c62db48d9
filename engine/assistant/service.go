package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/compozy/docbuddy/engine/core"
	"github.com/compozy/docbuddy/engine/knowledge"
	llmadapter "github.com/compozy/docbuddy/engine/llm/adapter"
	"github.com/compozy/docbuddy/pkg/logger"
)

// Retriever returns the chunks most relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]knowledge.RetrievedContext, error)
}

// Config tunes a chat turn. Temperature is sent as is, including zero.
type Config struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Source identifies a chunk that was placed in the prompt.
type Source struct {
	ID    string  `json:"id"`
	Name  string  `json:"name,omitempty"`
	Score float64 `json:"score"`
}

type Answer struct {
	Text    string            `json:"text"`
	Sources []Source          `json:"sources,omitempty"`
	Usage   *llmadapter.Usage `json:"usage,omitempty"`
}

// Service answers questions from retrieved document chunks. Every turn is
// independent: no conversation history reaches the model.
type Service struct {
	cfg       Config
	retriever Retriever
	client    llmadapter.LLMClient
	prompt    *promptBuilder
}

func NewService(cfg Config, retriever Retriever, client llmadapter.LLMClient) (*Service, error) {
	if retriever == nil {
		return nil, errors.New("assistant: retriever is required")
	}
	if client == nil {
		return nil, errors.New("assistant: llm client is required")
	}
	prompt, err := newPromptBuilder(cfg.SystemPrompt)
	if err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, retriever: retriever, client: client, prompt: prompt}, nil
}

// Ask runs one retrieval-augmented turn. Failures match core.ErrAssistant and
// keep their cause in the chain, so an unreachable model or store also
// matches core.ErrConnection.
func (s *Service) Ask(ctx context.Context, question string) (answer *Answer, err error) {
	start := time.Now()
	log := logger.FromContext(ctx)
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			log.Warn("Chat turn failed", "error", err, "duration", time.Since(start))
		}
		knowledge.RecordChatTurn(ctx, outcome, time.Since(start))
	}()
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, assistantError(errors.New("question is required"), "validate")
	}
	contexts, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, assistantError(err, "retrieve")
	}
	system, err := s.prompt.Build(question, contexts)
	if err != nil {
		return nil, assistantError(err, "prompt")
	}
	resp, err := s.client.GenerateContent(ctx, &llmadapter.LLMRequest{
		SystemPrompt: system,
		Messages:     []llmadapter.Message{{Role: llmadapter.RoleUser, Content: question}},
		Options: llmadapter.CallOptions{
			Temperature: &s.cfg.Temperature,
			MaxTokens:   int32(s.cfg.MaxTokens),
		},
	})
	if err != nil {
		return nil, assistantError(err, "generate")
	}
	log.Debug("Chat turn completed", "contexts", len(contexts), "duration", time.Since(start))
	return &Answer{
		Text:    strings.TrimSpace(resp.Content),
		Sources: sourcesOf(contexts),
		Usage:   resp.Usage,
	}, nil
}

// Respond never fails; errors become the answer text.
func (s *Service) Respond(ctx context.Context, question string) string {
	answer, err := s.Ask(ctx, question)
	if err != nil {
		return ErrorText(err)
	}
	return answer.Text
}

func (s *Service) Close() error {
	return s.client.Close()
}

// ErrorText renders a failure the way it is shown in a conversation.
func ErrorText(err error) string {
	return fmt.Sprintf("An error occurred: %s", err)
}

func assistantError(err error, step string) error {
	return core.NewError(fmt.Errorf("assistant: %s: %w", step, err), core.CodeAssistant, map[string]any{
		"step": step,
	})
}

func sourcesOf(contexts []knowledge.RetrievedContext) []Source {
	if len(contexts) == 0 {
		return nil
	}
	out := make([]Source, 0, len(contexts))
	for i := range contexts {
		out = append(out, Source{
			ID:    contexts[i].ID,
			Name:  contexts[i].Source(),
			Score: contexts[i].Score,
		})
	}
	return out
}
