package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks normativa-ai/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"fmt"
)

// DocumentStore defines the interface for document storage operations.
type DocumentStore interface {
	// Upsert inserts or replaces a document record keyed by rel_path.
	Upsert(ctx context.Context, doc *DocumentRecord) error
	// GetByRelPath gets a document by its relative path. Returns ErrNotFound if not found.
	GetByRelPath(ctx context.Context, relPath string) (*DocumentRecord, error)
	// GetByID gets a document by ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*DocumentRecord, error)
	// ListAll returns all document records.
	ListAll(ctx context.Context) ([]*DocumentRecord, error)
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Upsert inserts or replaces a document record keyed by rel_path.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *DocumentRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, rel_path, title, summary, language, hash, page_count, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(rel_path) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			language = excluded.language,
			hash = excluded.hash,
			page_count = excluded.page_count,
			updated_at = CURRENT_TIMESTAMP`,
		doc.ID, doc.RelPath, doc.Title, doc.Summary, doc.Language, doc.Hash, doc.PageCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// GetByRelPath gets a document by its relative path. Returns ErrNotFound if not found.
func (r *DocumentRepo) GetByRelPath(ctx context.Context, relPath string) (*DocumentRecord, error) {
	return r.get(ctx, "rel_path = ?", relPath)
}

// GetByID gets a document by ID. Returns ErrNotFound if not found.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*DocumentRecord, error) {
	return r.get(ctx, "id = ?", id)
}

func (r *DocumentRepo) get(ctx context.Context, where string, arg any) (*DocumentRecord, error) {
	var doc DocumentRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, rel_path, title, summary, language, hash, page_count, updated_at FROM documents WHERE "+where,
		arg,
	).Scan(&doc.ID, &doc.RelPath, &doc.Title, &doc.Summary, &doc.Language, &doc.Hash, &doc.PageCount, &doc.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	return &doc, nil
}

// ListAll returns all document records ordered by rel_path.
func (r *DocumentRepo) ListAll(ctx context.Context) ([]*DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, rel_path, title, summary, language, hash, page_count, updated_at FROM documents ORDER BY rel_path",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []*DocumentRecord
	for rows.Next() {
		var doc DocumentRecord
		if err := rows.Scan(&doc.ID, &doc.RelPath, &doc.Title, &doc.Summary, &doc.Language, &doc.Hash, &doc.PageCount, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return docs, nil
}
