package embedder

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// hashingClient maps tokens onto a fixed number of buckets. Texts sharing
// words get similar vectors, which is enough for retrieval tests.
type hashingClient struct {
	dimension int
}

func newHashingClient(dimension int) *hashingClient {
	return &hashingClient{dimension: dimension}
}

func (h *hashingClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(text)
	}
	return out, nil
}

func (h *hashingClient) embed(text string) []float32 {
	vec := make([]float32, h.dimension)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(tok))
		sum := hasher.Sum64()
		idx := int(sum % uint64(h.dimension))
		if sum&(1<<63) != 0 {
			vec[idx]--
			continue
		}
		vec[idx]++
	}
	return vec
}
