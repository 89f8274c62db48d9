package llmadapter

import (
	"context"
	"errors"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LLMRequest is one chat completion call. SystemPrompt is sent ahead of
// Messages when set.
type LLMRequest struct {
	SystemPrompt string
	Messages     []Message
	Options      CallOptions
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CallOptions left at their zero value are not sent to the provider. A nil
// Temperature keeps the configured one; zero is a valid temperature.
type CallOptions struct {
	Temperature *float64
	MaxTokens   int32
	StopWords   []string
}

type LLMResponse struct {
	Content string
	Usage   *Usage
}

// Usage carries token counts when the provider reports them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LLMClient talks to one configured chat model.
type LLMClient interface {
	GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
	Close() error
}

// Factory builds clients from a provider config.
type Factory interface {
	CreateClient(ctx context.Context, config *Config) (LLMClient, error)
}

var errEmptyConversation = errors.New("conversation has no messages")

// ValidateConversation checks that messages is non-empty and uses known roles.
func ValidateConversation(messages []Message) error {
	if len(messages) == 0 {
		return errEmptyConversation
	}
	for i := range messages {
		if role := messages[i].Role; role != RoleSystem && role != RoleUser && role != RoleAssistant {
			return fmt.Errorf("message[%d] has unsupported role %q", i, role)
		}
	}
	return nil
}
