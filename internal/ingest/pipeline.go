package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"normativa-ai/internal/contextutil"
	"normativa-ai/internal/corpus"
	"normativa-ai/internal/language"
	"normativa-ai/internal/ocr"
	"normativa-ai/internal/retry"
	"normativa-ai/internal/storage"
	"normativa-ai/internal/vectorstore"
)

// Extractor converts a PDF into per-page markdown.
type Extractor interface {
	Extract(ctx context.Context, document []byte) ([]ocr.Page, error)
}

// TitleIdentifier extracts a document title from its first page.
type TitleIdentifier interface {
	IdentifyTitle(ctx context.Context, firstPage string) (string, error)
}

// Embedder turns texts into vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline orchestrates the ingestion of regulatory PDFs into SQLite and
// the vector index.
type Pipeline struct {
	scanner     *corpus.Scanner
	extractor   Extractor
	titler      TitleIdentifier
	docRepo     storage.DocumentStore
	chunkRepo   storage.ChunkStore
	embedder    Embedder
	vectorStore vectorstore.VectorStore
	collection  string
	segmenter   *Segmenter
	enhancer    *Enhancer
	policy      retry.Policy
	limiter     *rate.Limiter
	concurrency int
	indexLang   string
}

// NewPipeline creates an ingestion pipeline. The rate limiter is shared
// with the enhancer so all collaborator calls count against one budget.
func NewPipeline(
	scanner *corpus.Scanner,
	extractor Extractor,
	titler TitleIdentifier,
	docRepo storage.DocumentStore,
	chunkRepo storage.ChunkStore,
	embedder Embedder,
	vectorStore vectorstore.VectorStore,
	collection string,
	segmenter *Segmenter,
	enhancer *Enhancer,
	policy retry.Policy,
	limiter *rate.Limiter,
	concurrency int,
	indexLang string,
) *Pipeline {
	return &Pipeline{
		scanner:     scanner,
		extractor:   extractor,
		titler:      titler,
		docRepo:     docRepo,
		chunkRepo:   chunkRepo,
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		segmenter:   segmenter,
		enhancer:    enhancer,
		policy:      policy,
		limiter:     limiter,
		concurrency: concurrency,
		indexLang:   indexLang,
	}
}

// IngestAll scans the corpus and ingests every changed document. Errors
// for individual documents are logged but do not stop the run.
func (p *Pipeline) IngestAll(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	documents, err := p.scanner.ScanAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan corpus: %w", err)
	}

	logger.InfoContext(ctx, "starting ingestion", "total_documents", len(documents))

	var successCount, errorCount int
	results := make([]error, len(documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, doc := range documents {
		g.Go(func() error {
			results[i] = p.IngestDocument(gctx, doc)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range results {
		if err != nil {
			errorCount++
			logger.ErrorContext(ctx, "failed to ingest document", "rel_path", documents[i].RelPath, "error", err)
			continue
		}
		successCount++
	}

	logger.InfoContext(ctx, "ingestion completed", "total_documents", len(documents), "success", successCount, "errors", errorCount)

	if errorCount > 0 {
		return fmt.Errorf("ingestion completed with %d errors", errorCount)
	}
	return nil
}

// IngestDocument ingests a single scanned document. Unchanged documents
// (same content hash) are skipped. Re-ingestion replaces all previous
// chunks and vectors for the document before writing new ones.
func (p *Pipeline) IngestDocument(ctx context.Context, doc corpus.ScannedDocument) error {
	logger := contextutil.LoggerFromContext(ctx)

	existing, err := p.docRepo.GetByRelPath(ctx, doc.RelPath)
	if err != nil && err != storage.ErrNotFound {
		return fmt.Errorf("failed to check existing document: %w", err)
	}
	if existing != nil && existing.Hash == doc.Hash {
		logger.DebugContext(ctx, "skipping unchanged document", "rel_path", doc.RelPath, "hash", doc.Hash)
		return nil
	}

	data, err := p.scanner.ReadDocument(doc.RelPath)
	if err != nil {
		return err
	}

	var pages []ocr.Page
	err = p.policy.Do(ctx, func(ctx context.Context) error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		var extractErr error
		pages, extractErr = p.extractor.Extract(ctx, data)
		return extractErr
	})
	if err != nil {
		return fmt.Errorf("failed to extract text: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("no pages extracted from %s", doc.RelPath)
	}

	cleaned, fullText := p.cleanPages(pages)

	documentID := uuid.NewSHA1(uuid.NameSpaceURL, []byte("normativa://doc/"+doc.RelPath)).String()

	title := p.identifyTitle(ctx, pages[0].Markdown, doc.RelPath)

	docLang, ok := language.Detect(fullText)
	if !ok {
		docLang = p.indexLang
	}

	chunks, err := p.segmenter.Segment(documentID, cleaned)
	if err != nil {
		return err
	}

	summary, err := p.enhancer.SummarizeDocument(ctx, fullText)
	if err != nil {
		return err
	}

	enhanced := make([]Enhanced, len(chunks))
	embedTexts := make([]string, len(chunks))
	for i, chunk := range chunks {
		enhanced[i] = p.enhancer.EnhanceChunk(ctx, summary, chunk.Text, docLang)
		embedTexts[i] = enhanced[i].Text
	}

	var embeddings [][]float32
	err = p.policy.Do(ctx, func(ctx context.Context) error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		var embedErr error
		embeddings, embedErr = p.embedder.EmbedTexts(ctx, embedTexts)
		return embedErr
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(embeddings))
	}

	docRecord := &storage.DocumentRecord{
		ID:        documentID,
		RelPath:   doc.RelPath,
		Title:     title,
		Summary:   summary,
		Language:  docLang,
		Hash:      doc.Hash,
		PageCount: len(pages),
		UpdatedAt: time.Now().UTC(),
	}
	if err := p.docRepo.Upsert(ctx, docRecord); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	// Replace everything the index holds for this document. Chunk IDs
	// are derived from document and position, so a re-ingestion that
	// produces fewer chunks must not leave stale points behind. A delete
	// that cannot be completed fails the document: proceeding would
	// strand orphaned points in the index.
	err = p.policy.Do(ctx, func(ctx context.Context) error {
		return p.vectorStore.DeleteByDocument(ctx, p.collection, documentID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete old vectors: %w", err)
	}
	if err := p.chunkRepo.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		chunkID := ChunkID(documentID, chunk.Index)

		record := &storage.ChunkRecord{
			ID:          chunkID,
			DocumentID:  documentID,
			ChunkIndex:  chunk.Index,
			Page:        chunk.Page,
			HeadingPath: chunk.HeadingPath,
			Text:        chunk.Text,
			Enhanced:    enhanced[i].Complete,
			StartOffset: chunk.StartOffset,
			EndOffset:   chunk.EndOffset,
		}
		if err := p.chunkRepo.Insert(ctx, record); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}

		points[i] = vectorstore.Point{
			ID:  chunkID,
			Vec: embeddings[i],
			Meta: map[string]any{
				"document_id":  documentID,
				"document":     title,
				"rel_path":     doc.RelPath,
				"page":         chunk.Page,
				"heading_path": chunk.HeadingPath,
				"chunk_index":  chunk.Index,
				"language":     docLang,
			},
		}
	}

	if err := p.vectorStore.Upsert(ctx, p.collection, points); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}

	logger.InfoContext(ctx, "ingested document", "rel_path", doc.RelPath, "chunks", len(chunks), "title", title, "language", docLang)
	return nil
}

// ReenhancePending retries contextual enhancement for chunks that were
// stored with an empty preamble, re-embedding and re-upserting the ones
// that now succeed.
func (p *Pipeline) ReenhancePending(ctx context.Context, limit int) error {
	logger := contextutil.LoggerFromContext(ctx)

	pending, err := p.chunkRepo.ListPendingEnhancement(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list pending chunks: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	logger.InfoContext(ctx, "re-enhancing pending chunks", "count", len(pending))

	docs := make(map[string]*storage.DocumentRecord)
	var fixed int

	for _, chunk := range pending {
		doc, ok := docs[chunk.DocumentID]
		if !ok {
			doc, err = p.docRepo.GetByID(ctx, chunk.DocumentID)
			if err != nil {
				logger.WarnContext(ctx, "pending chunk without document", "chunk_id", chunk.ID, "error", err)
				continue
			}
			docs[chunk.DocumentID] = doc
		}

		enhanced := p.enhancer.EnhanceChunk(ctx, doc.Summary, chunk.Text, doc.Language)
		if !enhanced.Complete {
			continue
		}

		var embeddings [][]float32
		err = p.policy.Do(ctx, func(ctx context.Context) error {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
			var embedErr error
			embeddings, embedErr = p.embedder.EmbedTexts(ctx, []string{enhanced.Text})
			return embedErr
		})
		if err != nil {
			logger.WarnContext(ctx, "failed to re-embed chunk", "chunk_id", chunk.ID, "error", err)
			continue
		}

		point := vectorstore.Point{
			ID:  chunk.ID,
			Vec: embeddings[0],
			Meta: map[string]any{
				"document_id":  chunk.DocumentID,
				"document":     doc.Title,
				"rel_path":     doc.RelPath,
				"page":         chunk.Page,
				"heading_path": chunk.HeadingPath,
				"chunk_index":  chunk.ChunkIndex,
				"language":     doc.Language,
			},
		}
		if err := p.vectorStore.Upsert(ctx, p.collection, []vectorstore.Point{point}); err != nil {
			logger.WarnContext(ctx, "failed to upsert re-enhanced chunk", "chunk_id", chunk.ID, "error", err)
			continue
		}

		if err := p.chunkRepo.MarkEnhanced(ctx, chunk.ID); err != nil {
			return fmt.Errorf("failed to mark chunk enhanced: %w", err)
		}
		fixed++
	}

	logger.InfoContext(ctx, "re-enhancement completed", "fixed", fixed, "remaining", len(pending)-fixed)
	return nil
}

// ChunkID derives a stable chunk identifier from its document and
// position, so re-ingesting a document overwrites its previous points.
func ChunkID(documentID string, index int) string {
	name := fmt.Sprintf("normativa://chunk/%s#%d", documentID, index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// cleanPages strips OCR noise from each page and returns the cleaned
// pages plus the full document text.
func (p *Pipeline) cleanPages(pages []ocr.Page) ([]PageText, string) {
	raw := make([]string, len(pages))
	for i, page := range pages {
		raw[i] = page.Markdown
	}
	headers := FindRepeatedHeaders(raw)

	cleaned := make([]PageText, len(pages))
	var full strings.Builder
	for i, page := range pages {
		text := CleanPage(page.Markdown, headers)
		cleaned[i] = PageText{Number: page.Number, Text: text}
		if i > 0 {
			full.WriteString("\n\n")
		}
		full.WriteString(text)
	}
	return cleaned, full.String()
}

// identifyTitle asks the model for the document title, falling back to a
// title derived from the filename.
func (p *Pipeline) identifyTitle(ctx context.Context, firstPage, relPath string) string {
	logger := contextutil.LoggerFromContext(ctx)

	var title string
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		var genErr error
		title, genErr = p.titler.IdentifyTitle(ctx, firstPage)
		return genErr
	})
	title = strings.TrimSpace(title)
	if err != nil || title == "" {
		if err != nil {
			logger.WarnContext(ctx, "title identification failed, using filename", "rel_path", relPath, "error", err)
		}
		return titleFromFilename(relPath)
	}
	return title
}

func titleFromFilename(relPath string) string {
	name := filepath.Base(relPath)
	if ext := filepath.Ext(name); ext != "" {
		name = name[:len(name)-len(ext)]
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)

	words := strings.Fields(name)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
