package rag

import (
	"context"
	"fmt"
	"sort"

	"normativa-ai/internal/contextutil"
	"normativa-ai/internal/retry"
	"normativa-ai/internal/vectorstore"
)

// Embedder turns texts into vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Retrieved is one chunk returned by retrieval, with the metadata needed
// for prompting and source attribution.
type Retrieved struct {
	ChunkID     string
	Score       float32
	DocumentID  string
	Document    string
	Page        int
	HeadingPath string
}

// Retriever embeds a search query and finds the best-matching chunks in
// the vector index.
type Retriever struct {
	embedder    Embedder
	vectorStore vectorstore.VectorStore
	collection  string
	policy      retry.Policy
	defaultK    int
	maxK        int
}

// NewRetriever creates a retriever with the given depth defaults.
func NewRetriever(embedder Embedder, vectorStore vectorstore.VectorStore, collection string, policy retry.Policy, defaultK, maxK int) *Retriever {
	return &Retriever{
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		policy:      policy,
		defaultK:    defaultK,
		maxK:        maxK,
	}
}

// Retrieve returns at most k chunks for the query, deduplicated by
// document and page, highest score first. documents, when non-empty,
// restricts the search to those document IDs. Failures after retries
// come back as a RetrievalError.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, documents []string) ([]Retrieved, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		k = r.defaultK
	}
	if k > r.maxK {
		k = r.maxK
	}

	var embeddings [][]float32
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		var embedErr error
		embeddings, embedErr = r.embedder.EmbedTexts(ctx, []string{query})
		return embedErr
	})
	if err != nil {
		return nil, &RetrievalError{Err: fmt.Errorf("failed to embed query: %w", err)}
	}
	if len(embeddings) == 0 {
		return nil, &RetrievalError{Err: fmt.Errorf("no embedding returned for query")}
	}

	var filters *vectorstore.Filters
	if len(documents) > 0 {
		filters = &vectorstore.Filters{DocumentIDs: documents}
	}

	// Over-fetch so that page-level deduplication can still fill k.
	var results []vectorstore.SearchResult
	err = r.policy.Do(ctx, func(ctx context.Context) error {
		var searchErr error
		results, searchErr = r.vectorStore.Search(ctx, r.collection, embeddings[0], k*2, filters)
		return searchErr
	})
	if err != nil {
		return nil, &RetrievalError{Err: fmt.Errorf("failed to search index: %w", err)}
	}

	retrieved := dedupeByDocumentPage(results)
	sort.SliceStable(retrieved, func(i, j int) bool {
		return retrieved[i].Score > retrieved[j].Score
	})
	if len(retrieved) > k {
		retrieved = retrieved[:k]
	}

	logger.DebugContext(ctx, "retrieval completed", "k", k, "raw_results", len(results), "returned", len(retrieved))

	return retrieved, nil
}

// dedupeByDocumentPage keeps the best-scoring chunk per document page,
// so an answer does not cite the same page several times.
func dedupeByDocumentPage(results []vectorstore.SearchResult) []Retrieved {
	seen := make(map[string]bool)
	retrieved := make([]Retrieved, 0, len(results))

	for _, result := range results {
		documentID, _ := result.Meta["document_id"].(string)
		document, _ := result.Meta["document"].(string)
		headingPath, _ := result.Meta["heading_path"].(string)
		page := metaInt(result.Meta["page"])

		key := fmt.Sprintf("%s#%d", documentID, page)
		if seen[key] {
			continue
		}
		seen[key] = true

		retrieved = append(retrieved, Retrieved{
			ChunkID:     result.PointID,
			Score:       result.Score,
			DocumentID:  documentID,
			Document:    document,
			Page:        page,
			HeadingPath: headingPath,
		})
	}

	return retrieved
}

// metaInt reads an integer payload value regardless of whether the
// store returned it as an int or a float.
func metaInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
