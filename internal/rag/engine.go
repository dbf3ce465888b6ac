package rag

import (
	"context"
	"fmt"
	"strings"

	"normativa-ai/internal/contextutil"
	"normativa-ai/internal/language"
	"normativa-ai/internal/llm"
	"normativa-ai/internal/retry"
	"normativa-ai/internal/storage"
)

const answerTemperature = 0.2

// Chatter sends a conversation to the answer model.
type Chatter interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

// Engine answers questions over the regulatory corpus: it retrieves
// matching chunks, assembles a grounded prompt, and has the model write
// the answer in the user's language.
type Engine struct {
	retriever  *Retriever
	chunkRepo  storage.ChunkStore
	chat       Chatter
	policy     retry.Policy
	maxHistory int
}

// NewEngine creates an answer engine. maxHistory bounds how many prior
// exchanges from the session go into the prompt.
func NewEngine(retriever *Retriever, chunkRepo storage.ChunkStore, chat Chatter, policy retry.Policy, maxHistory int) *Engine {
	return &Engine{
		retriever:  retriever,
		chunkRepo:  chunkRepo,
		chat:       chat,
		policy:     policy,
		maxHistory: maxHistory,
	}
}

// Answer runs one question through retrieval and synthesis. When no
// context is found it returns the explicit no-information answer in the
// user's language with zero sources, without calling the model. A
// retrieval failure surfaces as RetrievalError, a model failure as
// SynthesisError.
func (e *Engine) Answer(ctx context.Context, req QueryRequest) (Answer, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(req.Question) == "" {
		return Answer{}, fmt.Errorf("empty question")
	}
	if req.SearchQuery == "" {
		req.SearchQuery = req.Question
	}

	retrieved, err := e.retriever.Retrieve(ctx, req.SearchQuery, req.K, req.Documents)
	if err != nil {
		return Answer{}, err
	}

	if len(retrieved) == 0 {
		logger.InfoContext(ctx, "no context found", "question", req.Question)
		return Answer{
			Text:    NoInformationMessage(req.AnswerLanguage),
			Sources: []Source{},
		}, nil
	}

	contexts, sources, chunkIDs := e.loadContexts(ctx, retrieved)
	if len(contexts) == 0 {
		return Answer{
			Text:    NoInformationMessage(req.AnswerLanguage),
			Sources: []Source{},
		}, nil
	}

	messages := e.buildMessages(req, contexts)

	var text string
	err = e.policy.Do(ctx, func(ctx context.Context) error {
		var chatErr error
		text, chatErr = e.chat.ChatWithMessages(ctx, messages, llm.ChatParams{Temperature: answerTemperature})
		return chatErr
	})
	if err != nil {
		return Answer{}, &SynthesisError{Err: err}
	}

	logger.InfoContext(ctx, "answer synthesized",
		"question", req.Question,
		"chunks_used", len(contexts),
		"answer_language", req.AnswerLanguage,
	)

	return Answer{
		Text:     strings.TrimSpace(text),
		Sources:  sources,
		ChunkIDs: chunkIDs,
	}, nil
}

// promptContext is one chunk formatted for the prompt, always the raw
// stored text rather than the enhanced embedding text.
type promptContext struct {
	document    string
	page        int
	headingPath string
	text        string
}

// loadContexts fetches the raw text for each retrieved chunk. Chunks
// missing from storage are skipped; sources follow retrieval order.
func (e *Engine) loadContexts(ctx context.Context, retrieved []Retrieved) ([]promptContext, []Source, []string) {
	logger := contextutil.LoggerFromContext(ctx)

	contexts := make([]promptContext, 0, len(retrieved))
	sources := make([]Source, 0, len(retrieved))
	chunkIDs := make([]string, 0, len(retrieved))

	for _, item := range retrieved {
		chunk, err := e.chunkRepo.GetByID(ctx, item.ChunkID)
		if err != nil {
			logger.WarnContext(ctx, "retrieved chunk missing from storage", "chunk_id", item.ChunkID, "error", err)
			continue
		}
		contexts = append(contexts, promptContext{
			document:    item.Document,
			page:        item.Page,
			headingPath: item.HeadingPath,
			text:        chunk.Text,
		})
		sources = append(sources, Source{Document: item.Document, Page: item.Page})
		chunkIDs = append(chunkIDs, item.ChunkID)
	}

	return contexts, sources, chunkIDs
}

// buildMessages assembles the full conversation: system instructions,
// the bounded session history, and the question with its context block.
func (e *Engine) buildMessages(req QueryRequest, contexts []promptContext) []llm.Message {
	answerLang := language.Name(req.AnswerLanguage)

	systemPrompt := fmt.Sprintf(
		"You are an expert regulatory advisor. You help users understand, interpret, "+
			"and apply regulations, laws, and compliance requirements.\n\n"+
			"You must:\n"+
			"1. Base your answer strictly on the provided context, never on speculation\n"+
			"2. Include references to specific articles or clauses when applicable\n"+
			"3. Use structured explanations, with numbered lists or bullet points when useful\n"+
			"4. When a regulation is ambiguous, say so explicitly and offer possible interpretations\n"+
			"5. Keep a professional, precise tone, like a legal advisor or compliance officer\n"+
			"6. If the context does not contain enough information to answer, say so\n\n"+
			"IMPORTANT: ALWAYS WRITE YOUR ANSWER IN %s, regardless of the language of the "+
			"context or the question.",
		strings.ToUpper(answerLang),
	)

	messages := []llm.Message{{Role: "system", Content: systemPrompt}}

	history := req.History
	if len(history) > e.maxHistory {
		history = history[len(history)-e.maxHistory:]
	}
	for _, exchange := range history {
		messages = append(messages,
			llm.Message{Role: "user", Content: exchange.Question},
			llm.Message{Role: "assistant", Content: exchange.Answer},
		)
	}

	var b strings.Builder
	b.WriteString("<context>\n")
	for _, c := range contexts {
		fmt.Fprintf(&b, "[Document: %s | Page: %d", c.document, c.page)
		if c.headingPath != "" {
			fmt.Fprintf(&b, " | Section: %s", c.headingPath)
		}
		b.WriteString("]\n")
		b.WriteString(c.text)
		b.WriteString("\n\n")
	}
	b.WriteString("</context>\n\n<question>\n")
	b.WriteString(req.SearchQuery)
	b.WriteString("\n</question>")

	messages = append(messages, llm.Message{Role: "user", Content: b.String()})

	return messages
}

// NoInformationMessage is the answer used when the corpus holds nothing
// relevant, written in the user's language.
func NoInformationMessage(lang string) string {
	if lang == language.Spanish {
		return "No he encontrado información suficiente en la normativa disponible para responder a esta pregunta."
	}
	return "I could not find enough information in the available regulations to answer this question."
}

// UnavailableMessage is the answer used when the document index cannot
// be reached, written in the user's language.
func UnavailableMessage(lang string) string {
	if lang == language.Spanish {
		return "En este momento no es posible consultar los documentos normativos. Por favor, inténtelo de nuevo más tarde."
	}
	return "The regulatory documents cannot be consulted right now. Please try again later."
}
