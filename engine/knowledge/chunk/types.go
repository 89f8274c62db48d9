package chunk

import (
	"errors"
	"fmt"
)

// StrategyRecursive splits on paragraphs, then lines, then words.
const StrategyRecursive = "recursive_text_splitter"

const (
	DefaultSize    = 1000
	DefaultOverlap = 250
)

// Metadata keys set on every chunk.
const (
	MetaChunkIndex = "chunk_index"
	MetaSourceID   = "source_id"
)

// Document is a loader segment: a page, a slide or a whole file.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Settings are measured in runes.
type Settings struct {
	Strategy          string
	Size              int
	Overlap           int
	Deduplicate       bool
	NormalizeNewlines bool
}

func (s *Settings) normalize() error {
	if s.Strategy == "" {
		s.Strategy = StrategyRecursive
	}
	switch {
	case s.Strategy != StrategyRecursive:
		return fmt.Errorf("chunk: unsupported strategy %q", s.Strategy)
	case s.Size <= 0:
		return errors.New("chunk: size must be greater than zero")
	case s.Overlap < 0:
		return errors.New("chunk: overlap cannot be negative")
	case s.Overlap >= s.Size:
		return fmt.Errorf("chunk: overlap %d must be smaller than size %d", s.Overlap, s.Size)
	}
	return nil
}

type Chunk struct {
	ID       string
	Text     string
	Hash     string
	Metadata map[string]any
}

// Index is the chunk's position within its segment, or -1 when unknown.
func (c Chunk) Index() int {
	if v, ok := c.Metadata[MetaChunkIndex].(int); ok {
		return v
	}
	return -1
}
