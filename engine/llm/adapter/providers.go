package llmadapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/compozy/docbuddy/pkg/logger"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultFactory is a default implementation of the Factory interface
type DefaultFactory struct{}

// NewDefaultFactory creates a new DefaultFactory
func NewDefaultFactory() Factory {
	return &DefaultFactory{}
}

// CreateClient creates a new LLMClient for the given provider
func (f *DefaultFactory) CreateClient(ctx context.Context, config *Config) (LLMClient, error) {
	if config == nil {
		return nil, fmt.Errorf("provider config must not be nil")
	}
	return NewLangChainAdapter(ctx, config)
}

func createModel(ctx context.Context, config *Config) (llms.Model, error) {
	logger.FromContext(ctx).Debug("Creating chat model", "provider", config.Provider, "model", config.Model)
	switch config.Provider {
	case ProviderOllama:
		return createOllamaLLM(config)
	case ProviderOpenAI:
		return createOpenAILLM(config)
	case ProviderMock:
		return NewMockLLM(config.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}

func httpClient(config *Config) *http.Client {
	return &http.Client{Timeout: config.Timeout}
}

// createOllamaLLM talks to a local ollama server
func createOllamaLLM(config *Config) (llms.Model, error) {
	baseURL := DefaultOllamaURL
	if config.BaseURL != "" {
		baseURL = config.BaseURL
	}
	return ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(baseURL),
		ollama.WithHTTPClient(httpClient(config)),
	)
}

// createOpenAILLM creates an OpenAI (or compatible) LLM instance
func createOpenAILLM(config *Config) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(config.Model),
		openai.WithHTTPClient(httpClient(config)),
	}
	if config.APIKey != "" {
		opts = append(opts, openai.WithToken(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}
	return openai.New(opts...)
}

// MockLLM answers deterministically from the last user message. It quotes
// the first context line of the system prompt so grounding is observable.
type MockLLM struct {
	model string
}

// NewMockLLM creates a new mock LLM
func NewMockLLM(model string) *MockLLM {
	return &MockLLM{
		model: model,
	}
}

// GenerateContent implements the LLM interface with predictable responses
func (m *MockLLM) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	_ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var question, system string
	for _, message := range messages {
		text := messageText(message)
		switch message.Role {
		case llms.ChatMessageTypeSystem:
			system = text
		case llms.ChatMessageTypeHuman:
			question = text
		}
	}
	responseText := fmt.Sprintf("Mock response for: %s", question)
	if quote := firstContextLine(system); quote != "" {
		responseText += "\nContext: " + quote
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: responseText}},
	}, nil
}

// Call implements the legacy Call interface
func (m *MockLLM) Call(_ context.Context, prompt string, _ ...llms.CallOption) (string, error) {
	return fmt.Sprintf("Mock response for: %s", prompt), nil
}

func messageText(message llms.MessageContent) string {
	var b strings.Builder
	for _, part := range message.Parts {
		if textPart, ok := part.(llms.TextContent); ok {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(textPart.Text)
		}
	}
	return b.String()
}

// firstContextLine returns the first non-empty line after a "Context:" header.
func firstContextLine(system string) string {
	_, after, found := strings.Cut(system, "Context:")
	if !found {
		return ""
	}
	for line := range strings.SplitSeq(after, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
