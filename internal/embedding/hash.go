package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder maps text into a bag-of-words vector via token hashing. It is a
// degraded stand-in used when no Ollama server is configured: lexically
// similar texts land near each other, and the output is fully deterministic.
type HashEmbedder struct {
	dimension int
}

var _ Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder returns a hash embedder of the given dimension (defaults to
// the Ollama dimension so persisted chunks stay comparable).
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultOllamaDimension
	}
	return &HashEmbedder{dimension: dimension}
}

// Model returns the pseudo-model identifier.
func (e *HashEmbedder) Model() string { return "hash-bow" }

// Dimension returns the configured vector dimension.
func (e *HashEmbedder) Dimension() int { return e.dimension }

// Embed hashes each token into a bucket and L2-normalizes the counts.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimension)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[h.Sum32()%uint32(e.dimension)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
