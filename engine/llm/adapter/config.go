package llmadapter

import (
	"fmt"
	"strings"
	"time"

	appconfig "github.com/compozy/docbuddy/pkg/config"
)

type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
	// ProviderMock echoes the prompt back; used by tests and offline demos.
	ProviderMock Provider = "mock"
)

const DefaultOllamaURL = "http://localhost:11434"

// Config selects and tunes one chat model.
type Config struct {
	Provider    Provider
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// ConfigFromApp maps the application llm section.
func ConfigFromApp(cfg *appconfig.Config) *Config {
	if cfg == nil {
		cfg = appconfig.Default()
	}
	lc := cfg.LLM
	return &Config{
		Provider:    Provider(strings.ToLower(strings.TrimSpace(lc.Provider))),
		Model:       lc.Model,
		BaseURL:     lc.BaseURL,
		APIKey:      lc.APIKey.Value(),
		Temperature: lc.Temperature,
		MaxTokens:   lc.MaxTokens,
		Timeout:     lc.Timeout,
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("llm config must not be nil")
	}
	switch c.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderMock:
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.Provider)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("llm model is required for provider %q", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm temperature %v out of range [0, 2]", c.Temperature)
	}
	return nil
}
