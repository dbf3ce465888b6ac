package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

func TestScanAll(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "circular-3-2022.pdf"), []byte("%PDF-1.7 circular"))
	writeFile(t, filepath.Join(root, "banking", "ley-10-2014.PDF"), []byte("%PDF-1.7 ley"))
	writeFile(t, filepath.Join(root, "notes.txt"), []byte("not a pdf"))
	writeFile(t, filepath.Join(root, ".cache", "stale.pdf"), []byte("%PDF hidden"))

	scanner, err := NewScanner(root)
	if err != nil {
		t.Fatalf("failed to create scanner: %v", err)
	}

	docs, err := scanner.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}

	byRel := make(map[string]ScannedDocument)
	for _, d := range docs {
		byRel[d.RelPath] = d
	}

	if _, ok := byRel["circular-3-2022.pdf"]; !ok {
		t.Error("expected root-level pdf in scan results")
	}
	nested, ok := byRel["banking/ley-10-2014.PDF"]
	if !ok {
		t.Fatal("expected nested pdf in scan results")
	}
	if nested.Hash == "" {
		t.Error("expected non-empty hash")
	}
	if nested.Size != int64(len("%PDF-1.7 ley")) {
		t.Errorf("unexpected size: %d", nested.Size)
	}
}

func TestScanAllHashChangesWithContent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.pdf")
	writeFile(t, path, []byte("version one"))

	scanner, err := NewScanner(root)
	if err != nil {
		t.Fatalf("failed to create scanner: %v", err)
	}

	first, err := scanner.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	writeFile(t, path, []byte("version two"))

	second, err := scanner.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first[0].Hash == second[0].Hash {
		t.Error("expected hash to change when content changes")
	}
}

func TestReadDocument(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sub", "doc.pdf"), []byte("payload"))

	scanner, err := NewScanner(root)
	if err != nil {
		t.Fatalf("failed to create scanner: %v", err)
	}

	data, err := scanner.ReadDocument("sub/doc.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("unexpected content: %q", data)
	}

	if _, err := scanner.ReadDocument("missing.pdf"); err == nil {
		t.Error("expected error for missing document")
	}
}

func TestNewScannerMissingRoot(t *testing.T) {
	if _, err := NewScanner(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing root")
	}
}
