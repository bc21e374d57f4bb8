// Package embedding provides text embedding generation for chunk indexing and
// query vectorization.
package embedding

import "context"

// Embedder turns text into fixed-dimension vectors. Implementations must be
// deterministic per model so that persisted chunk embeddings stay comparable
// with query embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts; more efficient
	// than repeated Embed calls during ingestion.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the embedding model name.
	Model() string

	// Dimension returns the embedding vector dimension. Must match the
	// dimension of the persisted chunks being queried.
	Dimension() int
}
