package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/compozy/docbuddy/engine/core"
)

// Format is the closed set of document kinds the loader understands.
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatText
	FormatDOCX
	FormatPPTX
	FormatCSV
)

var formatByExt = map[string]Format{
	".pdf":  FormatPDF,
	".txt":  FormatText,
	".docx": FormatDOCX,
	".pptx": FormatPPTX,
	".csv":  FormatCSV,
}

// SupportedExtensions lists accepted extensions in a stable order.
func SupportedExtensions() []string {
	return []string{".pdf", ".txt", ".docx", ".pptx", ".csv"}
}

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatText:
		return "txt"
	case FormatDOCX:
		return "docx"
	case FormatPPTX:
		return "pptx"
	case FormatCSV:
		return "csv"
	default:
		return "unknown"
	}
}

// FormatFromExt resolves an extension (with or without the dot, any case).
func FormatFromExt(ext string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(ext))
	if normalized != "" && !strings.HasPrefix(normalized, ".") {
		normalized = "." + normalized
	}
	if f, ok := formatByExt[normalized]; ok {
		return f, nil
	}
	return FormatUnknown, core.NewError(
		fmt.Errorf(
			"unsupported file type: %q. Supported formats: %s",
			normalized,
			strings.Join(SupportedExtensions(), ", "),
		),
		core.CodeUnsupportedFormat,
		map[string]any{"extension": normalized},
	)
}

// FormatFromPath resolves the format of a file from its extension.
func FormatFromPath(path string) (Format, error) {
	return FormatFromExt(filepath.Ext(path))
}
