package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ScannedDocument represents a PDF found during a corpus scan.
type ScannedDocument struct {
	RelPath string // Relative path from corpus root (e.g., "banking/circular-3-2022.pdf")
	AbsPath string // Absolute file path
	Hash    string // SHA-256 of file contents, hex encoded
	Size    int64  // File size in bytes
}

// Scanner finds regulatory PDFs under a corpus root directory.
type Scanner struct {
	root string
}

// NewScanner creates a scanner rooted at the given directory.
func NewScanner(root string) (*Scanner, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access corpus root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus root is not a directory: %s", root)
	}
	return &Scanner{root: root}, nil
}

// Root returns the absolute corpus root directory.
func (s *Scanner) Root() string {
	return s.root
}

// ScanAll walks the corpus root and returns every PDF found, with its
// content hash so callers can skip documents that have not changed.
func (s *Scanner) ScanAll(ctx context.Context) ([]ScannedDocument, error) {
	var documents []ScannedDocument

	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}

		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			// Skip hidden directories
			if strings.HasPrefix(info.Name(), ".") && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		relPath = filepath.ToSlash(relPath)

		hash, err := hashFile(path)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", path, err)
		}

		documents = append(documents, ScannedDocument{
			RelPath: relPath,
			AbsPath: path,
			Hash:    hash,
			Size:    info.Size(),
		})
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan corpus %s: %w", s.root, err)
	}

	return documents, nil
}

// ReadDocument returns the raw bytes of a scanned document.
func (s *Scanner) ReadDocument(relPath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", relPath, err)
	}
	return data, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
