package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"normativa-ai/internal/retry"
	"normativa-ai/internal/vectorstore"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeVectorStore struct {
	results []vectorstore.SearchResult
	err     error
	lastK   int
	filters *vectorstore.Filters
}

func (f *fakeVectorStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, collection string, query []float32, k int, filters *vectorstore.Filters) ([]vectorstore.SearchResult, error) {
	f.lastK = k
	f.filters = filters
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeVectorStore) DeleteByDocument(ctx context.Context, collection, documentID string) error {
	return nil
}

func (f *fakeVectorStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	return true, nil
}

func result(id string, score float32, docID, doc string, page int) vectorstore.SearchResult {
	return vectorstore.SearchResult{
		PointID: id,
		Score:   score,
		Meta: map[string]any{
			"document_id":  docID,
			"document":     doc,
			"page":         page,
			"heading_path": "Artículo 1.",
		},
	}
}

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond}
}

func TestRetrieve(t *testing.T) {
	store := &fakeVectorStore{results: []vectorstore.SearchResult{
		result("c1", 0.9, "d1", "Circular 3/2022", 4),
		result("c2", 0.8, "d2", "Ley 10/2014", 12),
		result("c3", 0.7, "d1", "Circular 3/2022", 7),
	}}
	r := NewRetriever(&fakeEmbedder{}, store, "normativa", testPolicy(), 5, 20)

	got, err := r.Retrieve(context.Background(), "capital requirements", 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if got[0].ChunkID != "c1" || got[0].Document != "Circular 3/2022" || got[0].Page != 4 {
		t.Errorf("unexpected first result: %+v", got[0])
	}
	// Default k doubled for the over-fetch.
	if store.lastK != 10 {
		t.Errorf("expected search k 10, got %d", store.lastK)
	}
}

func TestRetrieveDedupesByDocumentPage(t *testing.T) {
	store := &fakeVectorStore{results: []vectorstore.SearchResult{
		result("c1", 0.9, "d1", "Circular 3/2022", 4),
		result("c2", 0.8, "d1", "Circular 3/2022", 4), // same page, dropped
		result("c3", 0.7, "d1", "Circular 3/2022", 5),
	}}
	r := NewRetriever(&fakeEmbedder{}, store, "normativa", testPolicy(), 5, 20)

	got, err := r.Retrieve(context.Background(), "sanciones", 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 deduplicated results, got %d", len(got))
	}
	if got[0].ChunkID != "c1" || got[1].ChunkID != "c3" {
		t.Errorf("unexpected results after dedup: %+v", got)
	}
}

func TestRetrieveCapsK(t *testing.T) {
	store := &fakeVectorStore{}
	r := NewRetriever(&fakeEmbedder{}, store, "normativa", testPolicy(), 5, 20)

	if _, err := r.Retrieve(context.Background(), "pregunta", 50, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lastK != 40 {
		t.Errorf("expected k capped at 20 then doubled, got %d", store.lastK)
	}
}

func TestRetrieveTruncatesToK(t *testing.T) {
	var results []vectorstore.SearchResult
	for i := 0; i < 8; i++ {
		results = append(results, result(
			string(rune('a'+i)), float32(10-i)/10, "d"+string(rune('a'+i)), "Doc", i+1,
		))
	}
	store := &fakeVectorStore{results: results}
	r := NewRetriever(&fakeEmbedder{}, store, "normativa", testPolicy(), 5, 20)

	got, err := r.Retrieve(context.Background(), "pregunta", 3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 results, got %d", len(got))
	}
}

func TestRetrieveDocumentFilter(t *testing.T) {
	store := &fakeVectorStore{}
	r := NewRetriever(&fakeEmbedder{}, store, "normativa", testPolicy(), 5, 20)

	if _, err := r.Retrieve(context.Background(), "pregunta", 5, []string{"d1", "d2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.filters == nil || len(store.filters.DocumentIDs) != 2 {
		t.Errorf("expected document filter passed through, got %+v", store.filters)
	}
}

func TestRetrieveSearchFailure(t *testing.T) {
	store := &fakeVectorStore{err: errors.New("connection refused")}
	r := NewRetriever(&fakeEmbedder{}, store, "normativa", testPolicy(), 5, 20)

	_, err := r.Retrieve(context.Background(), "pregunta", 5, nil)

	var retErr *RetrievalError
	if !errors.As(err, &retErr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
}

func TestRetrieveEmbedFailureRetries(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("timeout")}
	r := NewRetriever(embedder, &fakeVectorStore{}, "normativa", testPolicy(), 5, 20)

	_, err := r.Retrieve(context.Background(), "pregunta", 5, nil)

	var retErr *RetrievalError
	if !errors.As(err, &retErr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
	if embedder.calls != 2 {
		t.Errorf("expected 2 embed attempts, got %d", embedder.calls)
	}
}
