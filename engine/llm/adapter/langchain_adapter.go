package llmadapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/compozy/docbuddy/engine/core"
	"github.com/tmc/langchaingo/llms"
)

// LangChainAdapter adapts langchaingo to our LLMClient interface
type LangChainAdapter struct {
	model  llms.Model
	config Config
	errors *ErrorParser
}

// NewLangChainAdapter creates a new LangChain adapter
func NewLangChainAdapter(ctx context.Context, config *Config) (*LangChainAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	model, err := createModel(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM model: %w", err)
	}
	return NewLangChainAdapterWithModel(model, config), nil
}

// NewLangChainAdapterWithModel wraps an already constructed model.
func NewLangChainAdapterWithModel(model llms.Model, config *Config) *LangChainAdapter {
	return &LangChainAdapter{
		model:  model,
		config: *config,
		errors: NewErrorParser(string(config.Provider)),
	}
}

// GenerateContent implements LLMClient interface. Failures reaching the
// model server match core.ErrConnection.
func (a *LangChainAdapter) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	if req == nil {
		return nil, errors.New("llm request must not be nil")
	}
	if err := ValidateConversation(req.Messages); err != nil {
		return nil, err
	}
	messages := a.convertMessages(req)
	options := a.buildCallOptions(req)
	response, err := a.model.GenerateContent(ctx, messages, options...)
	if err != nil {
		return nil, a.classify(err)
	}
	return a.convertResponse(response)
}

func (a *LangChainAdapter) Close() error {
	return nil
}

func (a *LangChainAdapter) classify(err error) error {
	parsed := a.errors.ParseError(err)
	if parsed == nil {
		return fmt.Errorf("%s generate content failed: %w", a.config.Provider, err)
	}
	if parsed.IsConnection() {
		return core.NewError(parsed, core.CodeConnection, map[string]any{
			"provider": string(a.config.Provider),
			"model":    a.config.Model,
		})
	}
	return parsed
}

// convertMessages converts our Message format to langchain MessageContent
func (a *LangChainAdapter) convertMessages(req *LLMRequest) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, msg := range req.Messages {
		messages = append(messages, llms.TextParts(mapMessageRole(msg.Role), msg.Content))
	}
	return messages
}

// mapMessageRole maps our role to langchain ChatMessageType
func mapMessageRole(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// buildCallOptions merges request options over the configured defaults.
func (a *LangChainAdapter) buildCallOptions(req *LLMRequest) []llms.CallOption {
	temperature := a.config.Temperature
	if req.Options.Temperature != nil {
		temperature = *req.Options.Temperature
	}
	options := []llms.CallOption{llms.WithTemperature(temperature)}
	maxTokens := int(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = a.config.MaxTokens
	}
	if maxTokens > 0 {
		options = append(options, llms.WithMaxTokens(maxTokens))
	}
	if len(req.Options.StopWords) > 0 {
		options = append(options, llms.WithStopWords(req.Options.StopWords))
	}
	return options
}

// convertResponse converts langchain response to our format
func (a *LangChainAdapter) convertResponse(resp *llms.ContentResponse) (*LLMResponse, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, fmt.Errorf("empty response from LLM")
	}
	choice := resp.Choices[0]
	return &LLMResponse{
		Content: choice.Content,
		Usage:   extractUsage(choice.GenerationInfo),
	}, nil
}

// extractUsage reads token counts from GenerationInfo. Providers disagree on
// key names, so both the openai and ollama spellings are accepted.
func extractUsage(info map[string]any) *Usage {
	if len(info) == 0 {
		return nil
	}
	prompt := firstInt(info, "PromptTokens", "prompt_eval_count")
	completion := firstInt(info, "CompletionTokens", "eval_count")
	total := firstInt(info, "TotalTokens")
	if total == 0 {
		total = prompt + completion
	}
	if total == 0 {
		return nil
	}
	return &Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}

func firstInt(info map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
