package vectorstore

import "context"

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// Filters restricts a similarity search.
type Filters struct {
	// DocumentIDs restricts results to a subset of documents. Empty means no restriction.
	DocumentIDs []string
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search with optional filters.
	Search(ctx context.Context, collection string, query []float32, k int, filters *Filters) ([]SearchResult, error)

	// DeleteByDocument removes every point belonging to the given document.
	// Re-ingestion relies on this to leave no orphaned or duplicate vectors.
	DeleteByDocument(ctx context.Context, collection string, documentID string) error

	// CollectionExists reports whether the collection is present.
	CollectionExists(ctx context.Context, collection string) (bool, error)
}
