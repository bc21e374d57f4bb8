package store

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/flowdial/roundtable/internal/embedding"
	"github.com/flowdial/roundtable/internal/model/knowledge"
	"github.com/flowdial/roundtable/internal/model/persona"
)

// TopicLoader supplies the persisted chunks for one topic.
type TopicLoader interface {
	LoadTopic(ctx context.Context, topic persona.Topic) ([]knowledge.Chunk, error)
}

// CollectionStore holds one retrievable collection per topic. Collections are
// built lazily from the chunk database on first query and are read-only from
// the serving path's perspective. A query scoped to topic T can only return
// chunks stored under T because each collection is loaded with a topic filter,
// never filtered after a global search.
type CollectionStore struct {
	db       TopicLoader
	embedder embedding.Embedder

	mu          sync.Mutex
	collections map[persona.Topic]*collection
	known       map[persona.Topic]bool
}

// collection is the in-memory index for a single topic.
type collection struct {
	mu     sync.Mutex
	built  bool
	chunks []knowledge.Chunk
}

// NewCollectionStore creates a store serving the given closed topic set.
func NewCollectionStore(db TopicLoader, embedder embedding.Embedder, topics []persona.Topic) *CollectionStore {
	known := make(map[persona.Topic]bool, len(topics))
	for _, t := range topics {
		known[t] = true
	}
	return &CollectionStore{
		db:          db,
		embedder:    embedder,
		collections: make(map[persona.Topic]*collection, len(topics)),
		known:       known,
	}
}

// Query returns up to k chunks from the topic's collection ordered by
// ascending distance to the query text, ties broken by chunk ID. An unknown
// topic yields knowledge.ErrTopicNotFound; an empty collection yields an
// empty result set.
func (s *CollectionStore) Query(ctx context.Context, topic persona.Topic, queryText string, k int) ([]knowledge.ScoredChunk, error) {
	if !s.known[topic] {
		return nil, fmt.Errorf("collection for %q: %w", topic, knowledge.ErrTopicNotFound)
	}
	if k <= 0 {
		return nil, nil
	}

	chunks, err := s.topicChunks(ctx, topic)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	queryVec, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scored := make([]knowledge.ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		scored = append(scored, knowledge.ScoredChunk{
			Chunk: chunk,
			Score: squaredL2(queryVec, chunk.Embedding),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score < scored[j].Score
		}
		return scored[i].Chunk.ID < scored[j].Chunk.ID
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// topicChunks returns the topic's chunks, building the collection on first
// use. The per-collection lock keeps concurrent first-queries from racing to
// build duplicate indexes. A failed load is not cached: the next query
// retries the build, so a transient database error does not blind the topic
// until restart.
func (s *CollectionStore) topicChunks(ctx context.Context, topic persona.Topic) ([]knowledge.Chunk, error) {
	s.mu.Lock()
	coll, ok := s.collections[topic]
	if !ok {
		coll = &collection{}
		s.collections[topic] = coll
	}
	s.mu.Unlock()

	coll.mu.Lock()
	defer coll.mu.Unlock()

	if coll.built {
		return coll.chunks, nil
	}

	chunks, err := s.db.LoadTopic(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("build collection %s: %w", topic, err)
	}
	coll.chunks = chunks
	coll.built = true
	log.Printf("[store] built collection topic=%s chunks=%d", topic, len(chunks))
	return chunks, nil
}

// squaredL2 computes squared Euclidean distance. Mismatched dimensions score
// the missing components as-is rather than failing the query.
func squaredL2(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	for i := n; i < len(a); i++ {
		sum += float64(a[i]) * float64(a[i])
	}
	for i := n; i < len(b); i++ {
		sum += float64(b[i]) * float64(b[i])
	}
	return sum
}
