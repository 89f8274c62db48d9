package assistant

import (
	"fmt"
	"strings"

	"github.com/compozy/docbuddy/engine/knowledge"
	"github.com/compozy/docbuddy/pkg/tplengine"
)

const (
	systemTemplateName = "system"

	defaultInstructions = "Use the following pieces of information to answer the user's question.\n" +
		"If you don't know the answer, just say that you don't know, don't try to make up an answer."

	contextBlock = `

Context:
{{- range .contexts }}
{{ .Content | trim }}
{{- end }}
`
)

// promptBuilder renders the system prompt that carries retrieved chunks.
type promptBuilder struct {
	engine *tplengine.TemplateEngine
}

// newPromptBuilder accepts either plain instructions, which get the default
// context block appended, or a full template that places {{ .contexts }}
// itself.
func newPromptBuilder(override string) (*promptBuilder, error) {
	body := defaultInstructions + contextBlock
	if trimmed := strings.TrimSpace(override); trimmed != "" {
		if tplengine.HasTemplate(trimmed) {
			body = trimmed
		} else {
			body = trimmed + contextBlock
		}
	}
	engine := tplengine.NewEngine()
	if err := engine.AddTemplate(systemTemplateName, body); err != nil {
		return nil, fmt.Errorf("assistant: invalid system prompt: %w", err)
	}
	return &promptBuilder{engine: engine}, nil
}

func (b *promptBuilder) Build(question string, contexts []knowledge.RetrievedContext) (string, error) {
	if contexts == nil {
		contexts = []knowledge.RetrievedContext{}
	}
	out, err := b.engine.Render(systemTemplateName, map[string]any{
		"question": question,
		"contexts": contexts,
	})
	if err != nil {
		return "", fmt.Errorf("assistant: render prompt: %w", err)
	}
	return out, nil
}
