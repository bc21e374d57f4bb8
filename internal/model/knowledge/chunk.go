package knowledge

import (
	"errors"

	"github.com/flowdial/roundtable/internal/model/persona"
)

// ErrTopicNotFound reports a query against a topic no collection exists for.
// Distinct from an empty collection, which yields an empty result set.
var ErrTopicNotFound = errors.New("topic not found")

// Chunk is a unit of retrievable text produced by the ingestion tool. The
// topic is set at ingestion time and never changes; it is the sole basis for
// retrieval isolation.
type Chunk struct {
	ID               string        `json:"id"`
	Topic            persona.Topic `json:"topic"`
	Text             string        `json:"text"`
	Embedding        []float32     `json:"embedding"`
	SourceDocumentID string        `json:"sourceDocumentId"`
	Offset           int           `json:"offset"`
}

// ScoredChunk pairs a chunk with its distance to a query. Lower is closer.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}
