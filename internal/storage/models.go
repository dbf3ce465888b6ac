package storage

import "time"

// DocumentRecord represents an ingested source document.
// Immutable once ingested; re-ingestion replaces it wholesale.
type DocumentRecord struct {
	ID        string // Stable UUID derived from the document rel_path
	RelPath   string // Relative path within the documents directory
	Title     string // Title extracted from the first page (filename fallback)
	Summary   string // One-paragraph main idea, computed once per document
	Language  string // Language of the stored text (the index language)
	Hash      string // SHA256 hex string of the source file content
	PageCount int
	UpdatedAt time.Time
}

// ChunkRecord represents a retrieval unit of a document.
// Text holds the raw chunk text kept for exact-quote display in answers;
// the enhanced form (preamble + raw text) only lives in the vector index.
type ChunkRecord struct {
	ID          string // UUID (same as the vector point ID), derived from document_id + chunk_index
	DocumentID  string
	ChunkIndex  int // Index within document (starts at 0)
	Page        int // 1-based page number of the chunk's start
	HeadingPath string // Ordered section titles from root to leaf, "A > B" format
	Text        string
	Enhanced    bool // False when the contextual preamble fell back to empty
	StartOffset int  // Rune offset of the chunk start in the cleaned document text
	EndOffset   int  // Rune offset one past the chunk end
}
