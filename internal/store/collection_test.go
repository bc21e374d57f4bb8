package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/flowdial/roundtable/internal/embedding"
	"github.com/flowdial/roundtable/internal/model/knowledge"
	"github.com/flowdial/roundtable/internal/model/persona"
)

func openTestDB(t *testing.T) *ChunkDB {
	t.Helper()
	db, err := OpenChunkDB(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("OpenChunkDB err: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func embed(t *testing.T, e embedding.Embedder, text string) []float32 {
	t.Helper()
	vec, err := e.Embed(context.Background(), text)
	if err != nil {
		t.Fatalf("Embed err: %v", err)
	}
	return vec
}

func TestQueryTopicIsolation(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	embedder := embedding.NewHashEmbedder(32)

	// Identical text under two topics; a latency query must never surface
	// the interruption copy.
	text := "reduce the delay between user speech and agent response"
	chunks := []knowledge.Chunk{
		{ID: "int-0001", Topic: persona.TopicInterruption, Text: text, Embedding: embed(t, embedder, text), SourceDocumentID: "doc-a"},
		{ID: "lat-0001", Topic: persona.TopicLatency, Text: text, Embedding: embed(t, embedder, text), SourceDocumentID: "doc-b"},
	}
	if err := db.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("InsertChunks err: %v", err)
	}

	store := NewCollectionStore(db, embedder, []persona.Topic{persona.TopicInterruption, persona.TopicLatency})

	results, err := store.Query(ctx, persona.TopicLatency, text, 5)
	if err != nil {
		t.Fatalf("Query err: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Chunk.Topic != persona.TopicLatency {
		t.Fatalf("expected latency chunk, got topic %s", results[0].Chunk.Topic)
	}
	if results[0].Chunk.ID != "lat-0001" {
		t.Fatalf("unexpected chunk id %s", results[0].Chunk.ID)
	}
}

func TestQueryOrdersByDistanceThenID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	embedder := embedding.NewHashEmbedder(32)

	near := "streaming audio pipeline bitrate tuning"
	far := "greyhounds enjoy long naps in the afternoon"
	chunks := []knowledge.Chunk{
		{ID: "str-0003", Topic: persona.TopicStreaming, Text: far, Embedding: embed(t, embedder, far)},
		// Two chunks with identical embeddings tie on distance and must
		// come back in ID order.
		{ID: "str-0002", Topic: persona.TopicStreaming, Text: near, Embedding: embed(t, embedder, near)},
		{ID: "str-0001", Topic: persona.TopicStreaming, Text: near, Embedding: embed(t, embedder, near)},
	}
	if err := db.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("InsertChunks err: %v", err)
	}

	store := NewCollectionStore(db, embedder, []persona.Topic{persona.TopicStreaming})

	results, err := store.Query(ctx, persona.TopicStreaming, near, 3)
	if err != nil {
		t.Fatalf("Query err: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "str-0001" || results[1].Chunk.ID != "str-0002" {
		t.Fatalf("tie not broken by ID: got %s, %s", results[0].Chunk.ID, results[1].Chunk.ID)
	}
	if results[2].Chunk.ID != "str-0003" {
		t.Fatalf("expected far chunk last, got %s", results[2].Chunk.ID)
	}
	if results[0].Score > results[2].Score {
		t.Fatalf("scores not ascending: %f > %f", results[0].Score, results[2].Score)
	}
}

func TestQueryTruncatesToK(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	embedder := embedding.NewHashEmbedder(32)

	var chunks []knowledge.Chunk
	texts := []string{
		"buffering strategy for live audio",
		"adaptive bitrate ladders",
		"chunked transfer for realtime streams",
		"jitter buffers in playout",
	}
	for i, text := range texts {
		chunks = append(chunks, knowledge.Chunk{
			ID:        fmt.Sprintf("str-%04d", i),
			Topic:     persona.TopicStreaming,
			Text:      text,
			Embedding: embed(t, embedder, text),
		})
	}
	if err := db.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("InsertChunks err: %v", err)
	}

	store := NewCollectionStore(db, embedder, []persona.Topic{persona.TopicStreaming})

	results, err := store.Query(ctx, persona.TopicStreaming, "buffering", 2)
	if err != nil {
		t.Fatalf("Query err: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestQueryUnknownTopic(t *testing.T) {
	db := openTestDB(t)
	store := NewCollectionStore(db, embedding.NewHashEmbedder(32), []persona.Topic{persona.TopicLatency})

	_, err := store.Query(context.Background(), "astrology", "query", 3)
	if !errors.Is(err, knowledge.ErrTopicNotFound) {
		t.Fatalf("expected ErrTopicNotFound, got %v", err)
	}
}

func TestQueryEmptyCollection(t *testing.T) {
	db := openTestDB(t)
	store := NewCollectionStore(db, embedding.NewHashEmbedder(32), []persona.Topic{persona.TopicLatency})

	results, err := store.Query(context.Background(), persona.TopicLatency, "anything", 3)
	if err != nil {
		t.Fatalf("Query err: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result set, got %d", len(results))
	}
}

// countingLoader counts LoadTopic calls on the way to the real database.
type countingLoader struct {
	db    *ChunkDB
	loads atomic.Int32
}

func (l *countingLoader) LoadTopic(ctx context.Context, topic persona.Topic) ([]knowledge.Chunk, error) {
	l.loads.Add(1)
	return l.db.LoadTopic(ctx, topic)
}

func TestQueryConcurrentFirstQueriesBuildOnce(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	embedder := embedding.NewHashEmbedder(32)

	text := "adaptive bitrate keeps the stream smooth"
	chunks := []knowledge.Chunk{
		{ID: "str-0001", Topic: persona.TopicStreaming, Text: text, Embedding: embed(t, embedder, text)},
	}
	if err := db.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("InsertChunks err: %v", err)
	}

	loader := &countingLoader{db: db}
	store := NewCollectionStore(loader, embedder, []persona.Topic{persona.TopicStreaming})

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := store.Query(ctx, persona.TopicStreaming, text, 3)
			if err != nil {
				errs <- err
				return
			}
			if len(results) != 1 {
				errs <- fmt.Errorf("expected 1 result, got %d", len(results))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent query failed: %v", err)
	}

	if got := loader.loads.Load(); got != 1 {
		t.Fatalf("expected exactly 1 collection build, got %d", got)
	}
}

// flakyLoader fails the first load attempt and delegates afterwards.
type flakyLoader struct {
	db    *ChunkDB
	calls atomic.Int32
}

func (l *flakyLoader) LoadTopic(ctx context.Context, topic persona.Topic) ([]knowledge.Chunk, error) {
	if l.calls.Add(1) == 1 {
		return nil, errors.New("database is locked")
	}
	return l.db.LoadTopic(ctx, topic)
}

func TestQueryRetriesBuildAfterTransientFailure(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	embedder := embedding.NewHashEmbedder(32)

	text := "jitter buffer sizing for playout"
	chunks := []knowledge.Chunk{
		{ID: "lat-0001", Topic: persona.TopicLatency, Text: text, Embedding: embed(t, embedder, text)},
	}
	if err := db.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("InsertChunks err: %v", err)
	}

	loader := &flakyLoader{db: db}
	store := NewCollectionStore(loader, embedder, []persona.Topic{persona.TopicLatency})

	if _, err := store.Query(ctx, persona.TopicLatency, text, 3); err == nil {
		t.Fatal("expected first query to surface the load failure")
	}

	results, err := store.Query(ctx, persona.TopicLatency, text, 3)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "lat-0001" {
		t.Fatalf("unexpected results after retry: %+v", results)
	}
}

func TestQueryDeterministicAcrossReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chunks.db")
	embedder := embedding.NewHashEmbedder(32)

	db, err := OpenChunkDB(path)
	if err != nil {
		t.Fatalf("OpenChunkDB err: %v", err)
	}

	texts := []string{
		"latency budget for speech to text",
		"round trip measurement for voice calls",
		"jitter buffer tuning",
	}
	var chunks []knowledge.Chunk
	for i, text := range texts {
		chunks = append(chunks, knowledge.Chunk{
			ID:        fmt.Sprintf("lat-%04d", i),
			Topic:     persona.TopicLatency,
			Text:      text,
			Embedding: embed(t, embedder, text),
		})
	}
	if err := db.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("InsertChunks err: %v", err)
	}

	query := func(d *ChunkDB) []string {
		store := NewCollectionStore(d, embedder, []persona.Topic{persona.TopicLatency})
		results, err := store.Query(ctx, persona.TopicLatency, texts[1], 3)
		if err != nil {
			t.Fatalf("Query err: %v", err)
		}
		ids := make([]string, len(results))
		for i, res := range results {
			ids[i] = res.Chunk.ID
		}
		return ids
	}

	first := query(db)
	db.Close()

	reopened, err := OpenChunkDB(path)
	if err != nil {
		t.Fatalf("reopen err: %v", err)
	}
	defer reopened.Close()

	second := query(reopened)
	if len(first) != len(second) {
		t.Fatalf("result sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("ordering changed after reload: %v vs %v", first, second)
		}
	}
}

func TestChunkDBRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chunks.db")
	embedder := embedding.NewHashEmbedder(16)

	db, err := OpenChunkDB(path)
	if err != nil {
		t.Fatalf("OpenChunkDB err: %v", err)
	}

	text := "keep the latency budget under three hundred milliseconds"
	chunk := knowledge.Chunk{
		ID:               "lat-0001",
		Topic:            persona.TopicLatency,
		Text:             text,
		Embedding:        embed(t, embedder, text),
		SourceDocumentID: "latency-guide.md",
		Offset:           42,
	}
	if err := db.InsertChunks(ctx, []knowledge.Chunk{chunk}); err != nil {
		t.Fatalf("InsertChunks err: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close err: %v", err)
	}

	reopened, err := OpenChunkDB(path)
	if err != nil {
		t.Fatalf("reopen err: %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.LoadTopic(ctx, persona.TopicLatency)
	if err != nil {
		t.Fatalf("LoadTopic err: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(loaded))
	}
	got := loaded[0]
	if got.ID != chunk.ID || got.Text != chunk.Text || got.SourceDocumentID != chunk.SourceDocumentID || got.Offset != chunk.Offset {
		t.Fatalf("chunk fields did not survive round trip: %+v", got)
	}
	if len(got.Embedding) != len(chunk.Embedding) {
		t.Fatalf("embedding length changed: got %d want %d", len(got.Embedding), len(chunk.Embedding))
	}

	count, err := reopened.CountTopic(ctx, persona.TopicLatency)
	if err != nil {
		t.Fatalf("CountTopic err: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
}
