package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/flowdial/roundtable/internal/analysis/topic"
	"github.com/flowdial/roundtable/internal/config"
	"github.com/flowdial/roundtable/internal/embedding"
	"github.com/flowdial/roundtable/internal/handler"
	"github.com/flowdial/roundtable/internal/handler/events"
	"github.com/flowdial/roundtable/internal/model/persona"
	"github.com/flowdial/roundtable/internal/service/ai"
	"github.com/flowdial/roundtable/internal/service/chat"
	"github.com/flowdial/roundtable/internal/service/orchestrator"
	"github.com/flowdial/roundtable/internal/service/retrieval"
	"github.com/flowdial/roundtable/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Persona registry: file-backed when configured, built-in roster otherwise.
	roster := persona.Seed()
	if cfg.Retrieval.PersonaConfigPath != "" {
		roster, err = persona.LoadFile(cfg.Retrieval.PersonaConfigPath)
		if err != nil {
			log.Fatalf("failed to load persona config %s: %v", cfg.Retrieval.PersonaConfigPath, err)
		}
		log.Printf("loaded %d personas from %s", len(roster), cfg.Retrieval.PersonaConfigPath)
	}
	personaStore := persona.NewMemoryStore(roster)

	embedder := buildEmbedder(cfg.Embedding)

	chunkDB, err := store.OpenChunkDB(cfg.Retrieval.DBPath)
	if err != nil {
		log.Fatalf("failed to open chunk database %s: %v", cfg.Retrieval.DBPath, err)
	}
	defer chunkDB.Close()

	collections := store.NewCollectionStore(chunkDB, embedder, personaStore.Topics())
	retriever := retrieval.New(collections, cfg.Retrieval.TopK, cfg.Retrieval.Timeout)

	chatService := chat.NewService()
	detector := topic.NewKeywordDetector(roster)
	eventsHandler := events.New()

	orch, err := orchestrator.New(personaStore, detector, retriever, chatService, persona.Topic(cfg.Retrieval.DefaultTopic), eventsHandler)
	if err != nil {
		log.Fatalf("failed to initialize orchestrator: %v", err)
	}

	// AI service is optional; without it the API still serves turn routing
	// and retrieval context.
	var aiService *ai.Service
	if cfg.AI.Enabled() {
		aiService, err = ai.NewService(ctx, personaStore, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI response generation")
		} else {
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("chat model credentials not configured, skipping AI response generation")
	}

	router := handler.NewRouter(personaStore, orch, chatService, aiService, eventsHandler)

	startServer(ctx, cfg.Server, router)
}

func buildEmbedder(cfg config.EmbeddingConfig) embedding.Embedder {
	if cfg.Provider == "ollama" {
		client, err := embedding.NewOllamaClient(cfg.Model, cfg.Dimension)
		if err != nil {
			log.Printf("warning: failed to initialize ollama embedder: %v", err)
			log.Println("falling back to hash embedder")
			return embedding.NewHashEmbedder(cfg.Dimension)
		}
		log.Printf("using ollama embedder model=%s dimension=%d", client.Model(), client.Dimension())
		return client
	}
	hash := embedding.NewHashEmbedder(cfg.Dimension)
	log.Printf("using hash embedder dimension=%d", hash.Dimension())
	return hash
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Roundtable backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
