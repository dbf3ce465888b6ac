package llm

import (
	"context"
	"fmt"
	"strings"

	"normativa-ai/internal/language"
)

const (
	titlePrompt = `You will receive the first page of a document. Extract the title of the document.
The title should be concise and descriptive, for example: "Standard for the Installation of Stationary Pumps for Fire Protection".
Return ONLY the title, with no prefix and no explanation.

<document>
%s
</document>`

	documentSummaryPrompt = `Analyze the text and extract the main idea of the document: its topic, key concepts, and structure. The summary will be used to situate individual fragments of the document.

<document>
%s
</document>`

	chunkContextPrompt = `Given the main idea of the document:
<main_idea>
%s
</main_idea>

Here is the chunk we want to situate within the whole document:
<chunk>
%s
</chunk>

Give a short succinct context situating this chunk within the overall document for the purposes of improving search retrieval of the chunk.
Answer only in %s with the succinct context and nothing else.`
)

// contextTemperature keeps context generation close to the source text.
const contextTemperature = 0.1

// IdentifyTitle extracts a document title from its first page.
func (c *Client) IdentifyTitle(ctx context.Context, firstPage string) (string, error) {
	messages := []Message{
		{Role: "user", Content: fmt.Sprintf(titlePrompt, firstPage)},
	}
	title, err := c.ChatWithMessages(ctx, messages, ChatParams{Temperature: contextTemperature})
	if err != nil {
		return "", fmt.Errorf("failed to identify title: %w", err)
	}
	return strings.TrimSpace(title), nil
}

// GenerateDocumentSummary produces the one-paragraph main idea of a document,
// computed once per document and reused for every chunk's contextual preamble.
// text should already be truncated by the caller to the configured limit.
func (c *Client) GenerateDocumentSummary(ctx context.Context, text string) (string, error) {
	messages := []Message{
		{Role: "user", Content: fmt.Sprintf(documentSummaryPrompt, text)},
	}
	summary, err := c.ChatWithMessages(ctx, messages, ChatParams{Temperature: contextTemperature})
	if err != nil {
		return "", fmt.Errorf("failed to generate document summary: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// GenerateChunkContext produces the contextual preamble situating a chunk
// within its document. lang is the language code the preamble must be
// written in; the prompt carries its display name.
func (c *Client) GenerateChunkContext(ctx context.Context, summary, chunkText, lang string) (string, error) {
	messages := []Message{
		{Role: "user", Content: fmt.Sprintf(chunkContextPrompt, summary, chunkText, strings.ToUpper(language.Name(lang)))},
	}
	preamble, err := c.ChatWithMessages(ctx, messages, ChatParams{Temperature: contextTemperature})
	if err != nil {
		return "", fmt.Errorf("failed to generate chunk context: %w", err)
	}
	return strings.TrimSpace(preamble), nil
}
