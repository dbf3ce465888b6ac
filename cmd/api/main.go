package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"normativa-ai/internal/config"
	"normativa-ai/internal/corpus"
	"normativa-ai/internal/http"
	"normativa-ai/internal/ingest"
	"normativa-ai/internal/language"
	"normativa-ai/internal/llm"
	"normativa-ai/internal/ocr"
	"normativa-ai/internal/rag"
	"normativa-ai/internal/retry"
	"normativa-ai/internal/session"
	"normativa-ai/internal/storage"
	"normativa-ai/internal/translate"
	"normativa-ai/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	docRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)

	ctx := context.Background()

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	// Ensure collection exists with correct vector size
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize).
		WithTimeout(cfg.CollaboratorTimeout)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.QdrantVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.QdrantVectorSize, len(testEmbeddings[0]))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

	// Collaborator clients. OCR gets a longer timeout since extracting a
	// large PDF can take minutes.
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName).
		WithTimeout(cfg.CollaboratorTimeout)
	ocrClient := ocr.NewClient(cfg.OCRBaseURL, cfg.OCRAPIKey, cfg.OCRModel).
		WithTimeout(10 * cfg.CollaboratorTimeout)
	translateClient := translate.NewClient(cfg.TranslateBaseURL).
		WithTimeout(cfg.CollaboratorTimeout)

	// Shared collaborator protection: one retry policy and one rate
	// limiter budget across ingestion and query paths.
	policy := retry.NewPolicy(cfg.RetryMaxAttempts)
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), 1)

	// Corpus scanner over the regulatory PDF directory
	scanner, err := corpus.NewScanner(cfg.DocumentsDir)
	if err != nil {
		log.Fatalf("Failed to open documents directory: %v", err)
	}
	slog.Info("Corpus scanner initialized", "documents_dir", cfg.DocumentsDir)

	// Create ingestion pipeline
	segmenter := ingest.NewSegmenter(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MinSectionSize, cfg.MinDocumentLen)
	enhancer := ingest.NewEnhancer(llmClient, policy, limiter, cfg.SummaryMaxLen, cfg.PreambleMaxLen)
	pipeline := ingest.NewPipeline(
		scanner,
		ocrClient,
		llmClient,
		docRepo,
		chunkRepo,
		embedder,
		vectorStore,
		cfg.QdrantCollection,
		segmenter,
		enhancer,
		policy,
		limiter,
		cfg.IngestConcurrency,
		cfg.IndexLanguage,
	)

	// Create RAG engine
	retriever := rag.NewRetriever(embedder, vectorStore, cfg.QdrantCollection, policy, cfg.RetrievalK, cfg.RetrievalMaxK)
	ragEngine := rag.NewEngine(retriever, chunkRepo, llmClient, policy, cfg.SessionMaxTurns)
	slog.Info("RAG engine initialized", "index_language", cfg.IndexLanguage)

	// Language router and conversation sessions
	langRouter := language.NewRouter(translateClient, cfg.IndexLanguage)
	sessions := session.NewStore(cfg.SessionMaxTurns, cfg.SessionTTL)

	// Create router with dependencies
	deps := &http.Deps{
		LanguageRouter: langRouter,
		Engine:         ragEngine,
		Pipeline:       pipeline,
		Sessions:       sessions,
		VectorStore:    vectorStore,
		Collection:     cfg.QdrantCollection,
	}
	router := http.NewRouter(deps)

	// Start ingestion in background after router is ready
	go func() {
		ingestCtx := context.Background()
		slog.Info("Starting background ingestion of corpus")
		if err := pipeline.IngestAll(ingestCtx); err != nil {
			slog.Error("Ingestion completed with errors", "error", err)
		} else {
			slog.Info("Ingestion completed successfully")
		}
		// Retry chunks whose contextual preamble failed during the run
		if err := pipeline.ReenhancePending(ingestCtx, 500); err != nil {
			slog.Error("Re-enhancement pass failed", "error", err)
		}
	}()

	// Drop idle sessions periodically
	go func() {
		ticker := time.NewTicker(cfg.SessionTTL / 2)
		defer ticker.Stop()
		for range ticker.C {
			if removed := sessions.Sweep(); removed > 0 {
				slog.Debug("Swept idle sessions", "removed", removed)
			}
		}
	}()

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
