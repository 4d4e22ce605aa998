package course

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFile indicates no extractor accepts the file type.
var ErrUnsupportedFile = errors.New("unsupported file type")

// Extractor converts one source file into plain text. Extraction is a
// stateless byte-stream to string conversion; PDF and DOCX extractors
// live behind this boundary and are injected by the caller.
type Extractor interface {
	// Supports reports whether the extractor handles the extension
	// (lowercase, including the dot).
	Supports(ext string) bool

	// Extract reads the file and returns its text content.
	Extract(path string) (string, error)
}

// PlainTextExtractor reads UTF-8 text files as-is.
type PlainTextExtractor struct{}

// Supports accepts plain-text extensions.
func (PlainTextExtractor) Supports(ext string) bool {
	switch ext {
	case ".txt", ".md":
		return true
	}
	return false
}

// Extract returns the file contents.
func (PlainTextExtractor) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// DocumentID builds the deterministic document identifier from the
// path-derived metadata: course code, document type and file stem.
func DocumentID(meta DocumentMeta) string {
	stem := strings.TrimSuffix(meta.Filename, filepath.Ext(meta.Filename))
	return fmt.Sprintf("%s_%s_%s", meta.CourseCode, meta.DocumentType, stem)
}

// WriteProcessed persists a raw document as {id, text, metadata} JSON,
// one file per source document, named after the document ID.
func WriteProcessed(dir string, doc RawDocument) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating processed directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling document %q: %w", doc.ID, err)
	}

	path := filepath.Join(dir, doc.ID+".json")
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// ReadProcessed loads one processed-JSON document.
func ReadProcessed(path string) (RawDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RawDocument{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc RawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return RawDocument{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc.ID == "" {
		return RawDocument{}, fmt.Errorf("parsing %s: missing document id", path)
	}
	return doc, nil
}

// LoadProcessedDir loads every *.json document under dir. Unreadable or
// malformed files are logged and skipped; a bad file never aborts the
// batch.
func LoadProcessedDir(dir string, logger *slog.Logger) ([]RawDocument, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading processed directory: %w", err)
	}

	var docs []RawDocument
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		doc, err := ReadProcessed(path)
		if err != nil {
			logger.Warn("skipping processed document", "path", path, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
