package language

import (
	"context"
	"fmt"

	"normativa-ai/internal/contextutil"
)

// Translator translates text between two language codes.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Decision is the outcome of routing a question: which language the user
// asked in, what query to run against the index, and whether the query
// was translated to get there.
type Decision struct {
	UserLanguage string
	SearchQuery  string
	Translated   bool
}

// Router decides how an incoming question crosses the language boundary
// between the user and the index.
type Router struct {
	translator    Translator
	indexLanguage string
}

// NewRouter creates a router for an index whose contents are stored in
// indexLanguage.
func NewRouter(translator Translator, indexLanguage string) *Router {
	return &Router{
		translator:    translator,
		indexLanguage: indexLanguage,
	}
}

// Route detects the question's language and translates it into the index
// language when they differ. When detection is ambiguous the question is
// treated as already being in the index language. A translation failure
// is not fatal: the untranslated question is searched as-is, relying on
// the embedding model's cross-lingual overlap.
func (r *Router) Route(ctx context.Context, question string) (Decision, error) {
	if question == "" {
		return Decision{}, fmt.Errorf("empty question")
	}

	logger := contextutil.LoggerFromContext(ctx)

	detected, ok := Detect(question)
	if !ok {
		detected = r.indexLanguage
	}

	decision := Decision{
		UserLanguage: detected,
		SearchQuery:  question,
	}

	if detected == r.indexLanguage {
		return decision, nil
	}

	translated, err := r.translator.Translate(ctx, question, detected, r.indexLanguage)
	if err != nil {
		logger.Warn("query translation failed, searching untranslated",
			"from", detected,
			"to", r.indexLanguage,
			"error", err,
		)
		return decision, nil
	}

	decision.SearchQuery = translated
	decision.Translated = true

	return decision, nil
}

// AnswerLanguage returns the language the answer must be written in,
// which is always the language the user asked in.
func (r *Router) AnswerLanguage(d Decision) string {
	if d.UserLanguage == "" {
		return r.indexLanguage
	}
	return d.UserLanguage
}
