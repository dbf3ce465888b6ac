package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	// LLM collaborator (chat completions, used for context generation and answer synthesis)
	LLMBaseURL   string
	LLMModelName string
	LLMAPIKey    string

	// Embedding collaborator
	EmbeddingBaseURL   string
	EmbeddingModelName string

	// OCR collaborator (PDF text extraction, markdown output)
	OCRBaseURL string
	OCRAPIKey  string
	OCRModel   string

	// Translation collaborator
	TranslateBaseURL string

	// Vector index
	QdrantURL        string
	QdrantCollection string
	QdrantVectorSize int

	// Storage and corpus
	DBPath       string
	DocumentsDir string

	// Segmentation policy
	ChunkSize      int // max chunk length in runes
	ChunkOverlap   int // trailing context repeated between window chunks, in runes
	MinSectionSize int // structural units below this are merged with a neighbor
	MinDocumentLen int // documents shorter than this fail segmentation

	// Contextual enhancement
	PreambleMaxLen int // max preamble length in runes
	SummaryMaxLen  int // document text sent to the summary prompt is truncated to this

	// Language routing
	IndexLanguage string // language the corpus is embedded and searched in

	// Retrieval
	RetrievalK    int
	RetrievalMaxK int

	// Sessions
	SessionMaxTurns int
	SessionTTL      time.Duration

	// Concurrency and collaborator protection
	IngestConcurrency   int
	CollaboratorTimeout time.Duration
	RetryMaxAttempts    int
	RateLimitPerSec     float64

	// Server and logging
	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it is loaded
// automatically; environment variables already set take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Walk up to find a .env at the project root (next to go.mod).
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "mistral-small-latest"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "multilingual-e5-large-instruct"),
		OCRBaseURL:         getEnv("OCR_BASE_URL", "http://localhost:8082"),
		OCRAPIKey:          getEnv("OCR_API_KEY", ""),
		OCRModel:           getEnv("OCR_MODEL", "mistral-ocr-latest"),
		TranslateBaseURL:   getEnv("TRANSLATE_BASE_URL", "http://localhost:8083"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "normativa"),
		DBPath:             getEnv("DB_PATH", "./data/normativa-ai.db"),
		DocumentsDir:       getEnv("DOCUMENTS_DIR", ""),
		IndexLanguage:      getEnv("INDEX_LANGUAGE", "en"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
	}

	// QDRANT_VECTOR_SIZE must match the embedding model's output dimension.
	// If the dimension changes, the Qdrant collection must be recreated.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	if cfg.ChunkSize, err = getEnvInt("CHUNK_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = getEnvInt("CHUNK_OVERLAP", 200); err != nil {
		return nil, err
	}
	if cfg.MinSectionSize, err = getEnvInt("MIN_SECTION_SIZE", 120); err != nil {
		return nil, err
	}
	if cfg.MinDocumentLen, err = getEnvInt("MIN_DOCUMENT_LEN", 80); err != nil {
		return nil, err
	}
	if cfg.PreambleMaxLen, err = getEnvInt("PREAMBLE_MAX_LEN", 300); err != nil {
		return nil, err
	}
	if cfg.SummaryMaxLen, err = getEnvInt("SUMMARY_MAX_LEN", 12000); err != nil {
		return nil, err
	}
	if cfg.RetrievalK, err = getEnvInt("RETRIEVAL_K", 5); err != nil {
		return nil, err
	}
	if cfg.RetrievalMaxK, err = getEnvInt("RETRIEVAL_MAX_K", 20); err != nil {
		return nil, err
	}
	if cfg.SessionMaxTurns, err = getEnvInt("SESSION_MAX_TURNS", 10); err != nil {
		return nil, err
	}
	if cfg.IngestConcurrency, err = getEnvInt("INGEST_CONCURRENCY", 2); err != nil {
		return nil, err
	}
	if cfg.RetryMaxAttempts, err = getEnvInt("RETRY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}

	sessionTTLSecs, err := getEnvInt("SESSION_TTL_SECS", 1800)
	if err != nil {
		return nil, err
	}
	cfg.SessionTTL = time.Duration(sessionTTLSecs) * time.Second

	timeoutSecs, err := getEnvInt("COLLABORATOR_TIMEOUT_SECS", 30)
	if err != nil {
		return nil, err
	}
	cfg.CollaboratorTimeout = time.Duration(timeoutSecs) * time.Second

	rateStr := getEnv("RATE_LIMIT_PER_SEC", "4")
	cfg.RateLimitPerSec, err = strconv.ParseFloat(rateStr, 64)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_PER_SEC must be a valid number: %w", err)
	}

	switch getEnv("LOG_LEVEL", "info") {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Create the data directory if it doesn't exist (for the DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// validate checks cross-field constraints.
func (c *Config) validate() error {
	if c.DocumentsDir == "" {
		return fmt.Errorf("DOCUMENTS_DIR is required")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be greater than 0")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be non-negative and smaller than CHUNK_SIZE")
	}
	if c.RetrievalK <= 0 || c.RetrievalK > c.RetrievalMaxK {
		return fmt.Errorf("RETRIEVAL_K must be between 1 and RETRIEVAL_MAX_K (%d)", c.RetrievalMaxK)
	}
	if !isSupportedLanguage(c.IndexLanguage) {
		return fmt.Errorf("INDEX_LANGUAGE must be one of en, es")
	}
	if c.SessionMaxTurns <= 0 {
		return fmt.Errorf("SESSION_MAX_TURNS must be greater than 0")
	}
	if c.IngestConcurrency <= 0 {
		return fmt.Errorf("INGEST_CONCURRENCY must be greater than 0")
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be greater than 0")
	}
	if c.RateLimitPerSec <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_SEC must be greater than 0")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}
	return nil
}

func isSupportedLanguage(lang string) bool {
	return lang == "en" || lang == "es"
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return parsed, nil
}
