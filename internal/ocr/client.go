package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Page is one extracted page of a document, in reading order.
type Page struct {
	Number   int    // 1-based page number
	Markdown string // Extracted text with markdown structure preserved
}

// Client is a client for a Mistral-OCR-compatible document extraction API.
// The collaborator receives the PDF bytes and returns per-page markdown.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

// NewClient creates a new OCR client.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		client:  http.DefaultClient,
	}
}

// WithTimeout sets the HTTP timeout for requests to the OCR API. OCR of
// large PDFs is slow, so this is usually set higher than the other
// collaborator timeouts.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.client = &http.Client{Timeout: d}
	return c
}

// extractRequest represents the request payload for the OCR API.
type extractRequest struct {
	Model    string         `json:"model"`
	Document documentSource `json:"document"`
}

type documentSource struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

// extractResponse represents the response from the OCR API.
type extractResponse struct {
	Pages []pageResult `json:"pages"`
}

type pageResult struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// Extract sends a PDF to the OCR collaborator and returns its pages in order.
// Pages with no extractable text are returned with empty markdown rather than dropped,
// so page numbering stays aligned with the source document.
func (c *Client) Extract(ctx context.Context, pdf []byte) ([]Page, error) {
	if len(pdf) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	url := fmt.Sprintf("%s/v1/ocr", c.BaseURL)

	payload := extractRequest{
		Model: c.Model,
		Document: documentSource{
			Type:        "document_url",
			DocumentURL: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdf),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var extractResp extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&extractResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(extractResp.Pages) == 0 {
		return nil, fmt.Errorf("no pages returned")
	}

	pages := make([]Page, 0, len(extractResp.Pages))
	for i, p := range extractResp.Pages {
		pages = append(pages, Page{
			Number:   i + 1,
			Markdown: p.Markdown,
		})
	}

	return pages, nil
}
