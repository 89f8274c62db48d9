package loader

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// extractPDF yields one segment per page. Page numbers are zero based.
func extractPDF(ctx context.Context, path string) ([]segment, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()
	total := reader.NumPage()
	segments := make([]segment, 0, total)
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		segments = append(segments, segment{
			text: text,
			meta: map[string]any{MetaPage: i - 1},
		})
	}
	return segments, nil
}
