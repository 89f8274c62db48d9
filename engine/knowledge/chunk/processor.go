package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/compozy/docbuddy/engine/core"
)

var crlf = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// chunkNamespace seeds the name-based UUIDs used as chunk IDs.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("docbuddy/chunk"))

type Processor struct {
	settings Settings
	splitter textsplitter.RecursiveCharacter
}

func NewProcessor(settings Settings) (*Processor, error) {
	if err := settings.normalize(); err != nil {
		return nil, err
	}
	return &Processor{
		settings: settings,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(settings.Size),
			textsplitter.WithChunkOverlap(settings.Overlap),
		),
	}, nil
}

func (p *Processor) Settings() Settings {
	return p.settings
}

// Process splits docs into overlapping chunks, in segment order then
// position order. The same input always yields the same chunk IDs. When no
// text survives the error matches core.ErrEmptyDocument.
func (p *Processor) Process(sourceID string, docs []Document) ([]Chunk, error) {
	if strings.TrimSpace(sourceID) == "" {
		return nil, errors.New("chunk: source id is required")
	}
	var seen map[string]bool
	if p.settings.Deduplicate {
		seen = make(map[string]bool)
	}
	var out []Chunk
	for i := range docs {
		chunks, err := p.split(sourceID, &docs[i], seen)
		if err != nil {
			return nil, err
		}
		out = append(out, chunks...)
	}
	if len(out) == 0 {
		return nil, core.NewError(
			fmt.Errorf("chunk: %s produced no text chunks", sourceID),
			core.CodeEmptyDocument,
			map[string]any{"source": sourceID},
		)
	}
	return out, nil
}

// split chunks one segment. seen is nil unless deduplication is on.
func (p *Processor) split(sourceID string, doc *Document, seen map[string]bool) ([]Chunk, error) {
	text := doc.Text
	if p.settings.NormalizeNewlines {
		text = crlf.Replace(text)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	pieces, err := p.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("chunk: split document %s: %w", doc.ID, err)
	}
	chunks := make([]Chunk, 0, len(pieces))
	for idx, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		hash := hashText(piece)
		if seen != nil {
			if seen[hash] {
				continue
			}
			seen[hash] = true
		}
		meta := core.CloneMap(doc.Metadata)
		if meta == nil {
			meta = make(map[string]any, 2)
		}
		meta[MetaChunkIndex] = idx
		meta[MetaSourceID] = doc.ID
		chunks = append(chunks, Chunk{
			ID:       chunkID(sourceID, doc.ID, idx, hash),
			Text:     piece,
			Hash:     hash,
			Metadata: meta,
		})
	}
	return chunks, nil
}

func chunkID(sourceID, docID string, idx int, hash string) string {
	name := strings.Join([]string{sourceID, docID, strconv.Itoa(idx), hash}, "::")
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// hashText is the first 16 bytes of the SHA-256 of input, hex encoded.
func hashText(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}
