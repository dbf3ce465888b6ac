package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTranslate(t *testing.T) {
	var got translateRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("expected path /translate, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(translateResponse{
			TranslatedText: "what is the sanction regime",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	out, err := client.Translate(context.Background(), "cuál es el régimen sancionador", "es", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "what is the sanction regime" {
		t.Errorf("unexpected translation: %q", out)
	}
	if got.Q != "cuál es el régimen sancionador" {
		t.Errorf("unexpected query in request: %q", got.Q)
	}
	if got.Source != "es" || got.Target != "en" {
		t.Errorf("unexpected language pair: %s -> %s", got.Source, got.Target)
	}
	if got.Format != "text" {
		t.Errorf("expected format text, got %q", got.Format)
	}
}

func TestTranslateSameLanguage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("expected no request when source equals target")
	}))
	defer server.Close()

	client := NewClient(server.URL)

	out, err := client.Translate(context.Background(), "hello", "en", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Errorf("expected passthrough, got %q", out)
	}
}

func TestTranslateEmptyText(t *testing.T) {
	client := NewClient("http://localhost:0")

	_, err := client.Translate(context.Background(), "", "es", "en")
	if err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestTranslateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	_, err := client.Translate(context.Background(), "hola", "es", "en")
	if err == nil {
		t.Fatal("expected error for bad status")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status in error, got: %v", err)
	}
}

func TestTranslateEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(translateResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	_, err := client.Translate(context.Background(), "hola", "es", "en")
	if err == nil {
		t.Fatal("expected error for empty translation")
	}
}
