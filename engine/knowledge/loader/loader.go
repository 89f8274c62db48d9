// Package loader turns an uploaded file into raw text segments.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/compozy/docbuddy/engine/core"
	"github.com/compozy/docbuddy/engine/knowledge/chunk"
	"github.com/compozy/docbuddy/pkg/logger"
	"github.com/gabriel-vasile/mimetype"
)

// Metadata keys attached to every segment.
const (
	MetaSource      = "source"
	MetaContentType = "content_type"
	MetaPage        = "page"
	MetaSlide       = "slide"
	MetaRow         = "row"
)

// MaxFileSizeBytes bounds how much of a single upload is parsed.
const MaxFileSizeBytes = 64 << 20

type segment struct {
	text string
	meta map[string]any
}

type extractFunc func(ctx context.Context, path string) ([]segment, error)

var extractors = map[Format]extractFunc{
	FormatPDF:  extractPDF,
	FormatText: extractText,
	FormatDOCX: extractDOCX,
	FormatPPTX: extractPPTX,
	FormatCSV:  extractCSV,
}

// Load reads path and returns its text segments in document order.
// Unknown extensions fail with core.ErrUnsupportedFormat; files without any
// extractable text fail with core.ErrEmptyDocument.
func Load(ctx context.Context, path string) ([]chunk.Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	return LoadFormat(ctx, path, format)
}

// LoadFormat skips extension detection, for callers that resolved it already.
func LoadFormat(ctx context.Context, path string, format Format) ([]chunk.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loader: the file %s does not exist: %w", path, err)
		}
		return nil, fmt.Errorf("loader: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("loader: %s is a directory", path)
	}
	if info.Size() > MaxFileSizeBytes {
		return nil, fmt.Errorf("loader: %s exceeds maximum size of %d bytes", path, MaxFileSizeBytes)
	}
	extract, ok := extractors[format]
	if !ok {
		return nil, core.NewError(
			fmt.Errorf("loader: no extractor for format %s", format),
			core.CodeUnsupportedFormat,
			nil,
		)
	}
	segments, err := extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loader: extract %s: %w", format, err)
	}
	source := filepath.Base(path)
	contentType := detectContentType(path)
	docs := make([]chunk.Document, 0, len(segments))
	for i := range segments {
		text := strings.TrimSpace(segments[i].text)
		if text == "" {
			continue
		}
		meta := core.CopyMaps(segments[i].meta, map[string]any{
			MetaSource:      source,
			MetaContentType: contentType,
		})
		docs = append(docs, chunk.Document{
			ID:       fmt.Sprintf("%s#%d", source, i),
			Text:     text,
			Metadata: meta,
		})
	}
	if len(docs) == 0 {
		return nil, core.NewError(
			fmt.Errorf("loader: no documents were loaded from %s", source),
			core.CodeEmptyDocument,
			map[string]any{"source": source},
		)
	}
	logger.FromContext(ctx).Debug("Document loaded",
		"source", source,
		"format", format.String(),
		"segments", len(docs),
		"content_type", contentType,
	)
	return docs, nil
}

func detectContentType(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil || mt == nil {
		return "application/octet-stream"
	}
	return mt.String()
}
