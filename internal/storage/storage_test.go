package storage

import (
	"context"
	"errors"
	"testing"
)

func testDB(t *testing.T) *ChunkRepo {
	t.Helper()
	db, err := New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	doc := &DocumentRecord{
		ID:        "doc-1",
		RelPath:   "nfpa-20.pdf",
		Title:     "Standard for the Installation of Stationary Pumps",
		Summary:   "Pump installation requirements.",
		Language:  "en",
		Hash:      "abc123",
		PageCount: 3,
	}
	if err := NewDocumentRepo(db).Upsert(context.Background(), doc); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	return NewChunkRepo(db)
}

func TestDocumentRepo_UpsertReplaces(t *testing.T) {
	db, err := New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	repo := NewDocumentRepo(db)
	ctx := context.Background()

	doc := &DocumentRecord{ID: "doc-1", RelPath: "a.pdf", Language: "en", Hash: "h1", PageCount: 1}
	if err := repo.Upsert(ctx, doc); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	doc.Hash = "h2"
	doc.Title = "Updated"
	if err := repo.Upsert(ctx, doc); err != nil {
		t.Fatalf("Upsert() second call error = %v", err)
	}

	got, err := repo.GetByRelPath(ctx, "a.pdf")
	if err != nil {
		t.Fatalf("GetByRelPath() error = %v", err)
	}
	if got.Hash != "h2" || got.Title != "Updated" {
		t.Errorf("GetByRelPath() = %+v, want hash h2 and title Updated", got)
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("ListAll() returned %d documents, want 1", len(all))
	}
}

func TestDocumentRepo_GetByRelPathNotFound(t *testing.T) {
	db, err := New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	_, err = NewDocumentRepo(db).GetByRelPath(context.Background(), "missing.pdf")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByRelPath() error = %v, want ErrNotFound", err)
	}
}

func TestChunkRepo_InsertAndGet(t *testing.T) {
	repo := testDB(t)
	ctx := context.Background()

	chunk := &ChunkRecord{
		ID:          "chunk-1",
		DocumentID:  "doc-1",
		ChunkIndex:  0,
		Page:        1,
		HeadingPath: "CHAPTER I > Article 1.",
		Text:        "Safety requirements shall apply.",
		Enhanced:    true,
		StartOffset: 0,
		EndOffset:   32,
	}
	if err := repo.Insert(ctx, chunk); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "chunk-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Text != chunk.Text || got.Page != 1 || !got.Enhanced {
		t.Errorf("GetByID() = %+v, want %+v", got, chunk)
	}
}

func TestChunkRepo_GetByIDNotFound(t *testing.T) {
	repo := testDB(t)
	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestChunkRepo_DeleteByDocument(t *testing.T) {
	repo := testDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		chunk := &ChunkRecord{
			ID:         "chunk-" + string(rune('a'+i)),
			DocumentID: "doc-1",
			ChunkIndex: i,
			Page:       1,
			Text:       "text",
			Enhanced:   true,
		}
		if err := repo.Insert(ctx, chunk); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	ids, err := repo.ListIDsByDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ListIDsByDocument() error = %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("ListIDsByDocument() returned %d IDs, want 3", len(ids))
	}

	if err := repo.DeleteByDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("DeleteByDocument() error = %v", err)
	}

	count, err := repo.CountByDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("CountByDocument() error = %v", err)
	}
	if count != 0 {
		t.Errorf("CountByDocument() = %d after delete, want 0", count)
	}
}

func TestChunkRepo_PendingEnhancement(t *testing.T) {
	repo := testDB(t)
	ctx := context.Background()

	chunks := []*ChunkRecord{
		{ID: "c-0", DocumentID: "doc-1", ChunkIndex: 0, Page: 1, Text: "a", Enhanced: true},
		{ID: "c-1", DocumentID: "doc-1", ChunkIndex: 1, Page: 1, Text: "b", Enhanced: false},
		{ID: "c-2", DocumentID: "doc-1", ChunkIndex: 2, Page: 2, Text: "c", Enhanced: false},
	}
	for _, chunk := range chunks {
		if err := repo.Insert(ctx, chunk); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	pending, err := repo.ListPendingEnhancement(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingEnhancement() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("ListPendingEnhancement() returned %d chunks, want 2", len(pending))
	}
	if pending[0].ID != "c-1" || pending[1].ID != "c-2" {
		t.Errorf("ListPendingEnhancement() order = [%s, %s], want [c-1, c-2]", pending[0].ID, pending[1].ID)
	}

	if err := repo.MarkEnhanced(ctx, "c-1"); err != nil {
		t.Fatalf("MarkEnhanced() error = %v", err)
	}

	pending, err = repo.ListPendingEnhancement(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingEnhancement() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "c-2" {
		t.Errorf("ListPendingEnhancement() after mark = %d chunks, want only c-2", len(pending))
	}

	if err := repo.MarkEnhanced(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkEnhanced(missing) error = %v, want ErrNotFound", err)
	}
}
