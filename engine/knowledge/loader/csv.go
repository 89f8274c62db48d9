package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// extractCSV renders each data row as "column: value" lines, one segment per row.
func extractCSV(ctx context.Context, path string) ([]segment, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	var segments []segment
	for row := 0; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}
		segments = append(segments, segment{
			text: renderRow(header, record),
			meta: map[string]any{MetaRow: row},
		})
	}
	return segments, nil
}

func renderRow(header, record []string) string {
	lines := make([]string, 0, len(record))
	for i, value := range record {
		name := fmt.Sprintf("column_%d", i)
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			name = strings.TrimSpace(header[i])
		}
		lines = append(lines, name+": "+strings.TrimSpace(value))
	}
	return strings.Join(lines, "\n")
}
