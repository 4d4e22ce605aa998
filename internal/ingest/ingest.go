// Package ingest implements the offline document pipeline: walk a raw
// directory, extract text, persist processed JSON, chunk, and upsert
// the chunks into the vector index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/cssci-tools/jonathan/internal/chunker"
	"github.com/cssci-tools/jonathan/internal/course"
)

// Indexer is the slice of the vector index the pipeline needs.
type Indexer interface {
	Upsert(ctx context.Context, chunks []chunker.Chunk) error
}

// Result summarizes one pipeline run.
type Result struct {
	FilesAdded   int
	FilesSkipped int
	FilesFailed  int
	ChunksAdded  int
	Duration     time.Duration
}

// Config carries the pipeline's dependencies.
type Config struct {
	Chunker *chunker.Chunker
	Index   Indexer
	Logger  *slog.Logger

	// Extractors tried in order per file; the first that supports the
	// extension wins. Defaults to the plain-text extractor.
	Extractors []course.Extractor

	// AccessibleBase, when set, is prefixed to each file's relative
	// path to form the student-facing document link.
	AccessibleBase string
}

// Pipeline turns raw course files into indexed chunks. One file
// failing never aborts the batch; failures are logged and counted.
type Pipeline struct {
	chunker        *chunker.Chunker
	index          Indexer
	logger         *slog.Logger
	extractors     []course.Extractor
	accessibleBase string
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Chunker == nil {
		return nil, errors.New("chunker is required")
	}
	if cfg.Index == nil {
		return nil, errors.New("index is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	extractors := cfg.Extractors
	if len(extractors) == 0 {
		extractors = []course.Extractor{course.PlainTextExtractor{}}
	}
	return &Pipeline{
		chunker:        cfg.Chunker,
		index:          cfg.Index,
		logger:         logger,
		extractors:     extractors,
		accessibleBase: cfg.AccessibleBase,
	}, nil
}

// Run walks rawDir, extracts every supported file, writes the
// processed JSON snapshot under processedDir, chunks the document, and
// upserts the chunks.
//
// The raw layout is raw/<course_code>/<document_type>/.../<file>; the
// first two path segments become the course code and document type,
// with "unknown" filling whatever the layout does not provide.
func (p *Pipeline) Run(ctx context.Context, rawDir, processedDir string) (*Result, error) {
	start := time.Now()
	result := &Result{}

	absRaw, err := filepath.Abs(rawDir)
	if err != nil {
		return nil, fmt.Errorf("resolving raw directory: %w", err)
	}

	err = filepath.WalkDir(absRaw, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			p.logger.Warn("walking raw directory", "path", path, "error", err)
			result.FilesFailed++
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != absRaw {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		relPath, err := filepath.Rel(absRaw, path)
		if err != nil {
			result.FilesFailed++
			return nil
		}

		added, err := p.ingestFile(ctx, path, relPath, processedDir)
		switch {
		case errors.Is(err, course.ErrUnsupportedFile):
			result.FilesSkipped++
		case err != nil:
			p.logger.Warn("ingesting file", "path", relPath, "error", err)
			result.FilesFailed++
		default:
			result.FilesAdded++
			result.ChunksAdded += added
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	p.logger.Info("ingest complete",
		"added", result.FilesAdded,
		"skipped", result.FilesSkipped,
		"failed", result.FilesFailed,
		"chunks", result.ChunksAdded,
		"duration", result.Duration)
	return result, nil
}

// Reindex loads every processed JSON document under processedDir and
// upserts its chunks, without touching the raw files. Used after an
// administrative index reset.
func (p *Pipeline) Reindex(ctx context.Context, processedDir string) (*Result, error) {
	start := time.Now()
	result := &Result{}

	docs, err := course.LoadProcessedDir(processedDir, p.logger)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		chunks := p.chunker.Chunk(doc)
		if err := p.index.Upsert(ctx, chunks); err != nil {
			p.logger.Warn("indexing document", "id", doc.ID, "error", err)
			result.FilesFailed++
			continue
		}
		result.FilesAdded++
		result.ChunksAdded += len(chunks)
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (p *Pipeline) ingestFile(ctx context.Context, path, relPath, processedDir string) (int, error) {
	ext := strings.ToLower(filepath.Ext(path))
	extractor := p.extractorFor(ext)
	if extractor == nil {
		return 0, course.ErrUnsupportedFile
	}

	text, err := extractor.Extract(path)
	if err != nil {
		return 0, fmt.Errorf("extracting text: %w", err)
	}

	meta := p.deriveMeta(relPath)
	doc := course.RawDocument{
		ID:       course.DocumentID(meta),
		Text:     text,
		Metadata: meta,
	}

	if processedDir != "" {
		if _, err := course.WriteProcessed(processedDir, doc); err != nil {
			return 0, err
		}
	}

	chunks := p.chunker.Chunk(doc)
	if err := p.index.Upsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("indexing %s: %w", doc.ID, err)
	}
	return len(chunks), nil
}

func (p *Pipeline) extractorFor(ext string) course.Extractor {
	for _, e := range p.extractors {
		if e.Supports(ext) {
			return e
		}
	}
	return nil
}

// deriveMeta maps raw/<course_code>/<document_type>/.../<file> onto
// document metadata. Missing segments fall back to "unknown".
func (p *Pipeline) deriveMeta(relPath string) course.DocumentMeta {
	segments := strings.Split(filepath.ToSlash(relPath), "/")

	courseCode := course.Unknown
	documentType := course.Unknown
	if len(segments) > 1 {
		courseCode = segments[0]
	}
	if len(segments) > 2 {
		documentType = segments[1]
	}

	accessible := filepath.ToSlash(relPath)
	if p.accessibleBase != "" {
		accessible = strings.TrimSuffix(p.accessibleBase, "/") + "/" + accessible
	}

	return course.NewDocumentMeta(
		courseCode,
		documentType,
		filepath.Base(relPath),
		filepath.ToSlash(relPath),
		accessible,
	)
}
