package rag

// QueryRequest carries everything the engine needs to answer one
// question: the question as the user asked it, the routed search query,
// and the language the answer must be written in.
type QueryRequest struct {
	// Question is the user's question, verbatim.
	Question string
	// SearchQuery is the question in the index language (translated when
	// the user asked in another language).
	SearchQuery string
	// AnswerLanguage is the language code the answer must use.
	AnswerLanguage string
	// K optionally overrides the configured retrieval depth.
	K int
	// Documents optionally restricts retrieval to these document IDs.
	Documents []string
	// History is the bounded window of prior exchanges in this session,
	// oldest first.
	History []Exchange
}

// Exchange is one prior question/answer pair from the session.
type Exchange struct {
	Question string
	Answer   string
}

// Source identifies where part of an answer came from.
type Source struct {
	// Document is the document title.
	Document string `json:"document"`
	// Page is the 1-based page number within the document.
	Page int `json:"page"`
}

// Answer is the engine's response to one question.
type Answer struct {
	// Text is the generated answer, in the requested language.
	Text string `json:"answer"`
	// Sources lists the documents and pages the context came from, in
	// retrieval order. Empty when no context was found.
	Sources []Source `json:"sources"`
	// ChunkIDs are the chunks whose text was included in the prompt.
	ChunkIDs []string `json:"-"`
}
