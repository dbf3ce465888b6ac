package ingest

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"normativa-ai/internal/contextutil"
	"normativa-ai/internal/retry"
)

// ContextGenerator produces document summaries and per-chunk context
// preambles.
type ContextGenerator interface {
	GenerateDocumentSummary(ctx context.Context, text string) (string, error)
	GenerateChunkContext(ctx context.Context, summary, chunkText, language string) (string, error)
}

// Enhanced is the result of contextual enhancement for one chunk.
type Enhanced struct {
	Preamble string // situating context, empty when generation failed
	Text     string // what gets embedded: preamble + blank line + raw text
	Complete bool   // false means the chunk needs re-enhancement
}

// Enhancer prefixes each chunk with a short preamble situating it within
// its document, so that the embedded text carries document-level context
// the raw chunk lacks.
type Enhancer struct {
	generator      ContextGenerator
	policy         retry.Policy
	limiter        *rate.Limiter
	summaryMaxLen  int
	preambleMaxLen int
}

// NewEnhancer creates an enhancer. The limiter is shared with the rest
// of the pipeline so total collaborator traffic stays bounded.
func NewEnhancer(generator ContextGenerator, policy retry.Policy, limiter *rate.Limiter, summaryMaxLen, preambleMaxLen int) *Enhancer {
	return &Enhancer{
		generator:      generator,
		policy:         policy,
		limiter:        limiter,
		summaryMaxLen:  summaryMaxLen,
		preambleMaxLen: preambleMaxLen,
	}
}

// SummarizeDocument generates the document summary used as shared input
// for every chunk preamble. Long documents are truncated before being
// sent to the model.
func (e *Enhancer) SummarizeDocument(ctx context.Context, text string) (string, error) {
	input := truncateRunes(text, e.summaryMaxLen)

	var summary string
	err := e.policy.Do(ctx, func(ctx context.Context) error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		var genErr error
		summary, genErr = e.generator.GenerateDocumentSummary(ctx, input)
		return genErr
	})
	if err != nil {
		return "", fmt.Errorf("failed to summarize document: %w", err)
	}

	return strings.TrimSpace(summary), nil
}

// EnhanceChunk generates the contextual preamble for one chunk and
// returns the text to embed. Enhancement failure is not fatal: the chunk
// goes through with its raw text alone and is flagged incomplete so a
// later pass can retry it.
func (e *Enhancer) EnhanceChunk(ctx context.Context, summary, chunkText, language string) Enhanced {
	logger := contextutil.LoggerFromContext(ctx)

	var preamble string
	err := e.policy.Do(ctx, func(ctx context.Context) error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		var genErr error
		preamble, genErr = e.generator.GenerateChunkContext(ctx, summary, chunkText, language)
		return genErr
	})

	preamble = strings.TrimSpace(preamble)
	if err != nil || preamble == "" {
		if err != nil {
			logger.Warn("chunk enhancement failed, keeping raw text", "error", err)
		}
		return Enhanced{Text: chunkText}
	}

	preamble = truncateRunes(preamble, e.preambleMaxLen)

	return Enhanced{
		Preamble: preamble,
		Text:     preamble + "\n\n" + chunkText,
		Complete: true,
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
