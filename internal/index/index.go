// Package index implements the persistent vector index over
// PostgreSQL + pgvector: idempotent chunk upsert and filtered top-k
// similarity search.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/cssci-tools/jonathan/internal/chunker"
	"github.com/cssci-tools/jonathan/internal/queryfilter"
)

// VectorDimension is the embedding dimension of the chunks table.
// Gemini embeddings are truncated to this via OutputDimensionality.
const VectorDimension int32 = 768

// searchTimeout bounds a single similarity query, embedding included.
const searchTimeout = 10 * time.Second

// ErrInvalidTopK indicates a non-positive k.
var ErrInvalidTopK = errors.New("top-k must be >= 1")

// ErrEmbeddingMismatch indicates the embedder returned a vector count
// different from the number of input texts.
var ErrEmbeddingMismatch = errors.New("embedder returned wrong number of vectors")

// Embedder turns texts into one vector per input, order-preserving.
// Implementations may batch locally or call a remote API per text; the
// index is agnostic to which.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// querier is the common interface satisfied by both *pgxpool.Pool and
// pgx.Tx. Defined on the consumer side for testability.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Result is one similarity hit, ordered most similar first.
type Result struct {
	ID       string
	Text     string
	Metadata map[string]string
	Distance float64 // cosine distance, lower is more similar
}

// Store is the vector index over the chunks table.
//
// Store is safe for concurrent use. Upserts are last-writer-wins per
// chunk ID; Truncate must not run concurrently with queries or upserts
// and is therefore reachable only from the administrative reindex path.
type Store struct {
	db       querier
	embedder Embedder
	logger   *slog.Logger
}

// New creates a Store.
func New(db querier, embedder Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, embedder: embedder, logger: logger}
}

const upsertSQL = `INSERT INTO chunks (id, content, embedding, metadata)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE
	SET content = EXCLUDED.content,
	    embedding = EXCLUDED.embedding,
	    metadata = EXCLUDED.metadata,
	    updated_at = now()`

// Upsert embeds and stores the chunks, keyed by chunk ID. An existing
// entry with the same ID is replaced, so re-ingesting a document is
// idempotent. Empty input is a no-op, not an error.
func (s *Store) Upsert(ctx context.Context, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: got %d, want %d", ErrEmbeddingMismatch, len(vectors), len(chunks))
	}

	for i, ch := range chunks {
		metadataJSON, err := json.Marshal(ch.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for chunk %q: %w", ch.ID, err)
		}

		vec := pgvector.NewVector(vectors[i])
		if _, err := s.db.Exec(ctx, upsertSQL, ch.ID, ch.Text, vec, metadataJSON); err != nil {
			return fmt.Errorf("upserting chunk %q: %w", ch.ID, err)
		}
	}

	s.logger.Debug("upserted chunks", "count", len(chunks))
	return nil
}

// Query embeds the text and returns up to k chunks ordered by ascending
// cosine distance. When a filter is given, the similarity search
// over-fetches at 2k (metadata filtering can thin the candidate set)
// and the result is trimmed back to k; fewer than k matches come back
// as-is, never padded.
func (s *Store) Query(ctx context.Context, text string, k int, filter *queryfilter.Filter) ([]Result, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopK, k)
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	vectors, err := s.embedder.Embed(queryCtx, []string{text})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding query timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: got %d vectors for one text", ErrEmbeddingMismatch, len(vectors))
	}

	sql, args := buildSearchSQL(pgvector.NewVector(vectors[0]), k, filter)

	rows, err := s.db.Query(queryCtx, sql, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r            Result
			metadataJSON []byte
		)
		if err := rows.Scan(&r.ID, &r.Text, &metadataJSON, &r.Distance); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
			s.logger.Warn("unparseable chunk metadata", "chunk_id", r.ID, "error", err)
			r.Metadata = map[string]string{}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading result rows: %w", err)
	}

	// Trim the over-fetch back to k.
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// buildSearchSQL assembles the similarity query. The filter becomes an
// OR of JSONB containment checks in the WHERE clause so the
// jsonb_path_ops GIN index on metadata serves it; both field names and
// values travel as bind parameters.
func buildSearchSQL(vec pgvector.Vector, k int, filter *queryfilter.Filter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, content, metadata, embedding <=> $1 AS distance FROM chunks`)
	args := []any{vec}

	limit := k
	if filter != nil && len(filter.Any) > 0 {
		conds := make([]string, 0, len(filter.Any))
		for _, eq := range filter.Any {
			args = append(args, eq.Field, eq.Value)
			conds = append(conds, fmt.Sprintf("metadata @> jsonb_build_object($%d::text, $%d::text)", len(args)-1, len(args)))
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " OR "))
		limit = 2 * k
	}

	b.WriteString(fmt.Sprintf(" ORDER BY distance LIMIT %d", limit))
	return b.String(), args
}

// Count returns the number of indexed chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// Truncate empties the index. This is an administrative operation for
// explicit re-indexing only; conversation turns never trigger it, and
// it must be serialized against concurrent queries and upserts by the
// caller. Safe when the table is already empty or absent.
func (s *Store) Truncate(ctx context.Context) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT to_regclass('chunks') IS NOT NULL`).Scan(&exists); err != nil {
		return fmt.Errorf("checking chunks table: %w", err)
	}
	if !exists {
		return nil
	}

	if _, err := s.db.Exec(ctx, `TRUNCATE TABLE chunks`); err != nil {
		return fmt.Errorf("truncating chunks: %w", err)
	}
	s.logger.Info("vector index truncated")
	return nil
}
