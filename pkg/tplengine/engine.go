package tplengine

import (
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TemplateEngine holds named text/template templates that share the sprig
// function map. Missing keys are errors.
type TemplateEngine struct {
	mu    sync.RWMutex
	named map[string]*template.Template
}

func NewEngine() *TemplateEngine {
	return &TemplateEngine{named: make(map[string]*template.Template)}
}

func newRoot(name string) *template.Template {
	return template.New(name).Option("missingkey=error").Funcs(sprig.TxtFuncMap())
}

// HasTemplate reports whether s contains an action delimiter.
func HasTemplate(s string) bool {
	return strings.Contains(s, "{{")
}

// AddTemplate parses text under name, replacing any previous definition.
func (e *TemplateEngine) AddTemplate(name, text string) error {
	tmpl, err := newRoot(name).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	e.mu.Lock()
	e.named[name] = tmpl
	e.mu.Unlock()
	return nil
}

func (e *TemplateEngine) Render(name string, data map[string]any) (string, error) {
	e.mu.RLock()
	tmpl, ok := e.named[name]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}
	return execute(tmpl, data)
}

// RenderString renders text once without registering it. Text without
// delimiters is returned as is.
func (e *TemplateEngine) RenderString(text string, data map[string]any) (string, error) {
	if !HasTemplate(text) {
		return text, nil
	}
	tmpl, err := newRoot("inline").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	return execute(tmpl, data)
}

func execute(tmpl *template.Template, data map[string]any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return sb.String(), nil
}
