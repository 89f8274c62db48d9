package embedder

import (
	"strings"

	appconfig "github.com/compozy/docbuddy/pkg/config"
)

type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
	// ProviderMock is a deterministic feature-hashing embedder for tests and
	// offline runs. It needs no model download.
	ProviderMock Provider = "mock"
)

const DeviceCPU = "cpu"

// BGEQueryInstruction is prepended to queries for English BGE models so the
// query lands in the same space as the passages.
const BGEQueryInstruction = "Represent this question for searching relevant passages: "

// Config describes one embedding model.
type Config struct {
	ID               string
	Provider         Provider
	Model            string
	Device           string
	Normalize        bool
	Dimension        int
	BatchSize        int
	BaseURL          string
	APIKey           string
	ModelsDir        string
	QueryInstruction string
	StripNewLines    bool
	CacheSize        int
}

// ConfigFromApp maps the application embedder section.
func ConfigFromApp(cfg *appconfig.Config) *Config {
	if cfg == nil {
		cfg = appconfig.Default()
	}
	ec := cfg.Embedder
	out := &Config{
		ID:        ec.Provider + ":" + ec.Model,
		Provider:  Provider(ec.Provider),
		Model:     ec.Model,
		Device:    ec.Device,
		Normalize: ec.Normalize,
		Dimension: ec.Dimension,
		BatchSize: ec.BatchSize,
		BaseURL:   ec.BaseURL,
		APIKey:    ec.APIKey.Value(),
		ModelsDir: ec.ModelsDir,
		CacheSize: ec.CacheSize,
	}
	if out.Provider == ProviderLocal && isEnglishBGE(out.Model) {
		out.QueryInstruction = BGEQueryInstruction
	}
	return out
}

func isEnglishBGE(model string) bool {
	lower := strings.ToLower(model)
	return strings.Contains(lower, "bge-") && strings.HasSuffix(lower, "-en")
}
