package retrieval_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/flowdial/roundtable/internal/model/knowledge"
	"github.com/flowdial/roundtable/internal/model/persona"
	"github.com/flowdial/roundtable/internal/service/retrieval"
)

type stubStore struct {
	results []knowledge.ScoredChunk
	err     error

	lastTopic persona.Topic
	lastK     int
}

func (s *stubStore) Query(_ context.Context, topic persona.Topic, _ string, k int) ([]knowledge.ScoredChunk, error) {
	s.lastTopic = topic
	s.lastK = k
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func TestRetrieveForReturnsChunkTexts(t *testing.T) {
	store := &stubStore{results: []knowledge.ScoredChunk{
		{Chunk: knowledge.Chunk{ID: "lat-0001", Text: "first"}, Score: 0.1},
		{Chunk: knowledge.Chunk{ID: "lat-0002", Text: "second"}, Score: 0.4},
	}}
	r := retrieval.New(store, 3, time.Second)

	p := persona.Persona{ID: "noah-reed", Topic: persona.TopicLatency}
	texts := r.RetrieveFor(context.Background(), p, "why is my call lagging")

	if len(texts) != 2 {
		t.Fatalf("expected 2 texts, got %d", len(texts))
	}
	if texts[0] != "first" || texts[1] != "second" {
		t.Fatalf("unexpected texts: %v", texts)
	}
	if store.lastTopic != persona.TopicLatency {
		t.Fatalf("query used topic %s, want %s", store.lastTopic, persona.TopicLatency)
	}
	if store.lastK != 3 {
		t.Fatalf("query used k=%d, want 3", store.lastK)
	}
}

func TestRetrieveForQueriesPersonaTopic(t *testing.T) {
	// The utterance mentions another topic; retrieval still goes to the
	// persona's own collection.
	store := &stubStore{}
	r := retrieval.New(store, 3, time.Second)

	p := persona.Persona{ID: "skye-morales", Topic: persona.TopicInterruption}
	r.RetrieveFor(context.Background(), p, "is streaming latency causing these interruptions?")

	if store.lastTopic != persona.TopicInterruption {
		t.Fatalf("query used topic %s, want %s", store.lastTopic, persona.TopicInterruption)
	}
}

func TestRetrieveForDegradesOnMissingCollection(t *testing.T) {
	store := &stubStore{err: fmt.Errorf("collection for %q: %w", "latency", knowledge.ErrTopicNotFound)}
	r := retrieval.New(store, 3, time.Second)

	texts := r.RetrieveFor(context.Background(), persona.Persona{Topic: persona.TopicLatency}, "query")
	if texts != nil {
		t.Fatalf("expected nil context, got %v", texts)
	}
}

func TestRetrieveForDegradesOnStoreFailure(t *testing.T) {
	store := &stubStore{err: errors.New("db locked")}
	r := retrieval.New(store, 3, time.Second)

	texts := r.RetrieveFor(context.Background(), persona.Persona{Topic: persona.TopicLatency}, "query")
	if texts != nil {
		t.Fatalf("expected nil context, got %v", texts)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	store := &stubStore{}
	r := retrieval.New(store, 0, 0)

	r.RetrieveFor(context.Background(), persona.Persona{Topic: persona.TopicLatency}, "query")
	if store.lastK != retrieval.DefaultTopK {
		t.Fatalf("expected default top-k %d, got %d", retrieval.DefaultTopK, store.lastK)
	}
}
