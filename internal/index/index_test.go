package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/cssci-tools/jonathan/internal/chunker"
	"github.com/cssci-tools/jonathan/internal/log"
	"github.com/cssci-tools/jonathan/internal/queryfilter"
)

// fakeEmbedder returns a constant small vector per text.
type fakeEmbedder struct {
	err   error
	calls [][]string
	// short makes the embedder return fewer vectors than inputs.
	short bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

// execCall records one Exec invocation.
type execCall struct {
	sql  string
	args []any
}

// fakeDB implements the querier interface in memory.
type fakeDB struct {
	execs     []execCall
	execErr   error
	queryRows *fakeRows
	queryErr  error
	rowScan   func(dest ...any) error
	lastQuery string
	lastArgs  []any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.lastQuery = sql
	f.lastArgs = args
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.queryRows == nil {
		f.queryRows = &fakeRows{}
	}
	return f.queryRows, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastQuery = sql
	f.lastArgs = args
	return fakeRow{scan: f.rowScan}
}

type fakeRow struct{ scan func(dest ...any) error }

func (r fakeRow) Scan(dest ...any) error {
	if r.scan == nil {
		return nil
	}
	return r.scan(dest...)
}

// fakeRows is a minimal pgx.Rows over in-memory tuples of
// (id, content, metadataJSON, distance).
type fakeRows struct {
	rows [][4]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	*dest[0].(*string) = row[0].(string)
	*dest[1].(*string) = row[1].(string)
	*dest[2].(*[]byte) = row[2].([]byte)
	*dest[3].(*float64) = row[3].(float64)
	return nil
}

func (r *fakeRows) Values() ([]any, error) { return nil, nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

func resultRow(id string, distance float64, metadata map[string]string) [4]any {
	data, _ := json.Marshal(metadata)
	return [4]any{id, "text of " + id, data, distance}
}

func testChunks(n int) []chunker.Chunk {
	out := make([]chunker.Chunk, n)
	for i := range out {
		out[i] = chunker.Chunk{
			ID:       fmt.Sprintf("doc_s0_c%d", i),
			Text:     fmt.Sprintf("chunk %d", i),
			Metadata: map[string]string{"semester": "4"},
		}
	}
	return out
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	db := &fakeDB{}
	emb := &fakeEmbedder{}
	store := New(db, emb, log.NewNop())

	if err := store.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("Upsert(nil): %v", err)
	}
	if len(emb.calls) != 0 || len(db.execs) != 0 {
		t.Error("empty upsert must not touch embedder or database")
	}
}

func TestUpsertWritesEachChunk(t *testing.T) {
	db := &fakeDB{}
	emb := &fakeEmbedder{}
	store := New(db, emb, log.NewNop())

	chunks := testChunks(3)
	if err := store.Upsert(context.Background(), chunks); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// One batched embedding call for all texts.
	if len(emb.calls) != 1 || len(emb.calls[0]) != 3 {
		t.Errorf("embedder calls = %+v, want one batch of 3", emb.calls)
	}

	if len(db.execs) != 3 {
		t.Fatalf("got %d execs, want 3", len(db.execs))
	}
	for i, call := range db.execs {
		if !strings.Contains(call.sql, "ON CONFLICT (id) DO UPDATE") {
			t.Errorf("exec %d is not an upsert: %s", i, call.sql)
		}
		if call.args[0] != chunks[i].ID {
			t.Errorf("exec %d id = %v, want %s", i, call.args[0], chunks[i].ID)
		}
	}
}

func TestUpsertEmbedderError(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	store := New(&fakeDB{}, &fakeEmbedder{err: wantErr}, log.NewNop())

	err := store.Upsert(context.Background(), testChunks(1))
	if !errors.Is(err, wantErr) {
		t.Errorf("got %v, want wrapped %v", err, wantErr)
	}
}

func TestUpsertVectorCountMismatch(t *testing.T) {
	store := New(&fakeDB{}, &fakeEmbedder{short: true}, log.NewNop())

	err := store.Upsert(context.Background(), testChunks(2))
	if !errors.Is(err, ErrEmbeddingMismatch) {
		t.Errorf("got %v, want ErrEmbeddingMismatch", err)
	}
}

func TestQueryInvalidK(t *testing.T) {
	store := New(&fakeDB{}, &fakeEmbedder{}, log.NewNop())
	if _, err := store.Query(context.Background(), "q", 0, nil); !errors.Is(err, ErrInvalidTopK) {
		t.Errorf("got %v, want ErrInvalidTopK", err)
	}
}

func TestQueryUnfiltered(t *testing.T) {
	db := &fakeDB{queryRows: &fakeRows{rows: [][4]any{
		resultRow("a", 0.1, map[string]string{"semester": "4"}),
		resultRow("b", 0.3, map[string]string{"semester": "2"}),
	}}}
	store := New(db, &fakeEmbedder{}, log.NewNop())

	results, err := store.Query(context.Background(), "grading", 3, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if strings.Contains(db.lastQuery, "WHERE") {
		t.Errorf("unfiltered query must not filter: %s", db.lastQuery)
	}
	if !strings.Contains(db.lastQuery, "LIMIT 3") {
		t.Errorf("unfiltered query must limit at k: %s", db.lastQuery)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].ID != "a" || results[0].Metadata["semester"] != "4" {
		t.Errorf("result[0] = %+v", results[0])
	}
}

func TestQueryFilteredOverfetchAndTrim(t *testing.T) {
	rows := &fakeRows{}
	for i := range 5 {
		rows.rows = append(rows.rows, resultRow(fmt.Sprintf("c%d", i), float64(i)/10, map[string]string{"semester": "4"}))
	}
	db := &fakeDB{queryRows: rows}
	store := New(db, &fakeEmbedder{}, log.NewNop())

	filter := queryfilter.Eq("semester", "4").Or("assignment", "CME")
	results, err := store.Query(context.Background(), "CME requirements", 2, filter)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	// Filter present: over-fetch at 2k, trim to k.
	if !strings.Contains(db.lastQuery, "LIMIT 4") {
		t.Errorf("filtered query must over-fetch at 2k: %s", db.lastQuery)
	}
	if !strings.Contains(db.lastQuery, "WHERE") || !strings.Contains(db.lastQuery, " OR ") {
		t.Errorf("filter must become an OR of equalities: %s", db.lastQuery)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want k=2", len(results))
	}

	// Field names and values travel as bind parameters, after the vector.
	wantArgs := []any{"semester", "4", "assignment", "CME"}
	for i, want := range wantArgs {
		if db.lastArgs[i+1] != want {
			t.Errorf("arg %d = %v, want %v", i+1, db.lastArgs[i+1], want)
		}
	}
}

func TestQueryFewerThanK(t *testing.T) {
	db := &fakeDB{queryRows: &fakeRows{rows: [][4]any{
		resultRow("only", 0.2, map[string]string{}),
	}}}
	store := New(db, &fakeEmbedder{}, log.NewNop())

	results, err := store.Query(context.Background(), "anything", 5, queryfilter.Eq("semester", "1"))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want the 1 available (never padded)", len(results))
	}
}

func TestQueryBadMetadataDegrades(t *testing.T) {
	db := &fakeDB{queryRows: &fakeRows{rows: [][4]any{
		{"x", "text of x", []byte("{broken"), 0.5},
	}}}
	store := New(db, &fakeEmbedder{}, log.NewNop())

	results, err := store.Query(context.Background(), "q", 1, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].Metadata == nil || len(results[0].Metadata) != 0 {
		t.Errorf("bad metadata must degrade to empty map, got %+v", results)
	}
}

func TestBuildSearchSQLPlaceholders(t *testing.T) {
	filter := queryfilter.Eq("filter_key", "4_individual_CME").
		Or("semester", "4").
		Or("assignment", "CME")

	sql, args := buildSearchSQL(pgvector.NewVector([]float32{1}), 3, filter)

	want := "metadata @> jsonb_build_object($2::text, $3::text)" +
		" OR metadata @> jsonb_build_object($4::text, $5::text)" +
		" OR metadata @> jsonb_build_object($6::text, $7::text)"
	if !strings.Contains(sql, want) {
		t.Errorf("sql = %s, want conditions %q", sql, want)
	}
	if len(args) != 7 {
		t.Errorf("got %d args, want vector + 3 pairs", len(args))
	}
}

func TestTruncateMissingTable(t *testing.T) {
	db := &fakeDB{rowScan: func(dest ...any) error {
		*dest[0].(*bool) = false
		return nil
	}}
	store := New(db, &fakeEmbedder{}, log.NewNop())

	if err := store.Truncate(context.Background()); err != nil {
		t.Fatalf("Truncate with missing table: %v", err)
	}
	if len(db.execs) != 0 {
		t.Error("must not TRUNCATE a missing table")
	}
}

func TestTruncate(t *testing.T) {
	db := &fakeDB{rowScan: func(dest ...any) error {
		*dest[0].(*bool) = true
		return nil
	}}
	store := New(db, &fakeEmbedder{}, log.NewNop())

	if err := store.Truncate(context.Background()); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0].sql, "TRUNCATE TABLE chunks") {
		t.Errorf("execs = %+v", db.execs)
	}
}

func TestCount(t *testing.T) {
	db := &fakeDB{rowScan: func(dest ...any) error {
		*dest[0].(*int64) = 42
		return nil
	}}
	store := New(db, &fakeEmbedder{}, log.NewNop())

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 42 {
		t.Errorf("Count = %d", n)
	}
}
