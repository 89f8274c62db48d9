package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/compozy/docbuddy/engine/knowledge/loader"
)

func TestNewIndexCommand(t *testing.T) {
	t.Run("Should describe only the formats the loader reads", func(t *testing.T) {
		c := NewIndexCommand()
		assert.Equal(t, "index <file>", c.Use)
		assert.NotContains(t, c.Long, "HTML")
		names := map[string]string{".pdf": "PDF", ".txt": "text", ".docx": "Word", ".pptx": "PowerPoint", ".csv": "CSV"}
		for _, ext := range loader.SupportedExtensions() {
			assert.Contains(t, strings.ReplaceAll(c.Long, "\n", " "), names[ext], ext)
		}
	})
}
