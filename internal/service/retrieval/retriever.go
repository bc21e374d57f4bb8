// Package retrieval scopes knowledge lookups to a persona's topic.
package retrieval

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/flowdial/roundtable/internal/model/knowledge"
	"github.com/flowdial/roundtable/internal/model/persona"
)

// DefaultTopK is the number of chunks retrieved per turn.
const DefaultTopK = 3

// DefaultTimeout bounds a single retrieval; on expiry the turn degrades to an
// empty context instead of failing.
const DefaultTimeout = 2 * time.Second

// CollectionQuerier is the store-side contract the retriever depends on.
type CollectionQuerier interface {
	Query(ctx context.Context, topic persona.Topic, queryText string, k int) ([]knowledge.ScoredChunk, error)
}

// Retriever executes top-k lookups for a persona. It always queries with the
// persona's topic, never with a topic derived from the raw query text; this
// is the enforcement point for retrieval isolation.
type Retriever struct {
	store   CollectionQuerier
	topK    int
	timeout time.Duration
}

// New creates a Retriever. Non-positive topK or timeout select the defaults.
func New(store CollectionQuerier, topK int, timeout time.Duration) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Retriever{store: store, topK: topK, timeout: timeout}
}

// RetrieveFor returns up to top-k chunk texts grounding the persona's answer.
// Missing collections, timeouts and store failures all degrade to an empty
// context: the persona still responds, just without retrieved grounding.
func (r *Retriever) RetrieveFor(ctx context.Context, p persona.Persona, queryText string) []string {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results, err := r.store.Query(queryCtx, p.Topic, queryText, r.topK)
	if err != nil {
		if errors.Is(err, knowledge.ErrTopicNotFound) {
			log.Printf("[retrieval] no collection for topic=%s, continuing without context", p.Topic)
		} else {
			log.Printf("[retrieval] query failed topic=%s: %v", p.Topic, err)
		}
		return nil
	}

	texts := make([]string, 0, len(results))
	for _, result := range results {
		texts = append(texts, result.Chunk.Text)
	}
	return texts
}
