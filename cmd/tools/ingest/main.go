package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/flowdial/roundtable/internal/config"
	"github.com/flowdial/roundtable/internal/embedding"
	"github.com/flowdial/roundtable/internal/ingest"
	"github.com/flowdial/roundtable/internal/model/knowledge"
	"github.com/flowdial/roundtable/internal/model/persona"
	"github.com/flowdial/roundtable/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] unable to load .env, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	topicFlag := flag.String("topic", "", "topic the document covers (e.g. interruption)")
	fileFlag := flag.String("file", "", "path to the text or markdown file to ingest")
	docFlag := flag.String("doc", "", "document identifier, defaults to the file name")
	sizeFlag := flag.Int("chunk-size", 0, "target chunk size in characters, 0 for default")
	timeoutFlag := flag.Duration("timeout", 2*time.Minute, "embedding timeout")

	flag.Parse()

	if *topicFlag == "" || *fileFlag == "" {
		flag.Usage()
		log.Fatal("both -topic and -file are required")
	}

	docID := *docFlag
	if docID == "" {
		docID = filepath.Base(*fileFlag)
	}

	raw, err := os.ReadFile(*fileFlag)
	if err != nil {
		log.Fatalf("failed to read %s: %v", *fileFlag, err)
	}

	chunkCfg := ingest.DefaultChunkConfig()
	if *sizeFlag > 0 {
		chunkCfg.TargetSize = *sizeFlag
	}
	pieces := ingest.Split(string(raw), chunkCfg)
	if len(pieces) == 0 {
		log.Fatalf("no ingestable text in %s", *fileFlag)
	}

	embedder := buildEmbedder(cfg.Embedding)

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		log.Fatalf("embedding failed: %v", err)
	}

	topic := persona.Topic(*topicFlag)
	chunks := make([]knowledge.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = knowledge.Chunk{
			ID:               fmt.Sprintf("%s-%04d", docID, i),
			Topic:            topic,
			Text:             piece.Text,
			Embedding:        vectors[i],
			SourceDocumentID: docID,
			Offset:           piece.Offset,
		}
	}

	if dir := filepath.Dir(cfg.Retrieval.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("failed to create db directory %s: %v", dir, err)
		}
	}

	db, err := store.OpenChunkDB(cfg.Retrieval.DBPath)
	if err != nil {
		log.Fatalf("failed to open chunk db %s: %v", cfg.Retrieval.DBPath, err)
	}
	defer db.Close()

	if err := db.InsertChunks(ctx, chunks); err != nil {
		log.Fatalf("failed to store chunks: %v", err)
	}

	total, err := db.CountTopic(ctx, topic)
	if err != nil {
		log.Fatalf("failed to count topic chunks: %v", err)
	}

	log.Printf("ingested %d chunks from %s into topic %q (%d total)", len(chunks), docID, topic, total)
}

func buildEmbedder(cfg config.EmbeddingConfig) embedding.Embedder {
	if cfg.Provider == "ollama" {
		client, err := embedding.NewOllamaClient(cfg.Model, cfg.Dimension)
		if err != nil {
			log.Fatalf("failed to initialize ollama embedder: %v", err)
		}
		log.Printf("using ollama embedder model=%s dimension=%d", client.Model(), client.Dimension())
		return client
	}
	hash := embedding.NewHashEmbedder(cfg.Dimension)
	log.Printf("using hash embedder dimension=%d", hash.Dimension())
	return hash
}
