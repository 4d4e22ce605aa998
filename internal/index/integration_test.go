//go:build integration
// +build integration

package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cssci-tools/jonathan/internal/chunker"
	"github.com/cssci-tools/jonathan/internal/log"
	"github.com/cssci-tools/jonathan/internal/queryfilter"
	"github.com/cssci-tools/jonathan/internal/testutil"
)

// setupIntegrationStore starts a pgvector container, migrates the real
// schema, and returns a Store backed by it plus a cleanup function.
func setupIntegrationStore(t *testing.T) (*Store, func()) {
	t.Helper()

	testDB, cleanup := testutil.SetupTestDB(t)
	store := New(testDB.Pool, &testutil.HashEmbedder{}, log.NewNop())
	return store, cleanup
}

func briefChunk(id, text, filterKey, semester string) chunker.Chunk {
	return chunker.Chunk{
		ID:   id,
		Text: text,
		Metadata: map[string]string{
			chunker.MetaFilterKey: filterKey,
			chunker.MetaSemester:  semester,
		},
	}
}

func TestStore_UpsertAndQuery_Integration(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupIntegrationStore(t)
	defer cleanup()

	chunks := []chunker.Chunk{
		briefChunk("doc_s0_c0", "The CME brief covers cost model estimation.", "4_individual_CME", "4"),
		briefChunk("doc_s0_c1", "Group project deliverables are due in week ten.", "4_group", "4"),
		briefChunk("doc_s1_c0", "Lecture notes on requirements engineering.", "3_lecture", "3"),
	}
	require.NoError(t, store.Upsert(ctx, chunks))

	// Identical text embeds to the identical vector, so the exact
	// chunk must come back first at distance zero.
	results, err := store.Query(ctx, "The CME brief covers cost model estimation.", 3, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "doc_s0_c0", results[0].ID)
	assert.InDelta(t, 0, results[0].Distance, 1e-6)
	assert.Equal(t, "4_individual_CME", results[0].Metadata[chunker.MetaFilterKey])
}

func TestStore_UpsertIdempotent_Integration(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupIntegrationStore(t)
	defer cleanup()

	first := briefChunk("doc_s0_c0", "original text", "4_individual_CME", "4")
	require.NoError(t, store.Upsert(ctx, []chunker.Chunk{first}))

	updated := briefChunk("doc_s0_c0", "revised text", "4_individual_CME", "4")
	require.NoError(t, store.Upsert(ctx, []chunker.Chunk{updated}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "same ID must replace, not duplicate")

	results, err := store.Query(ctx, "revised text", 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "revised text", results[0].Text)
}

func TestStore_FilteredQuery_Integration(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupIntegrationStore(t)
	defer cleanup()

	chunks := []chunker.Chunk{
		briefChunk("a_s0_c0", "individual assignment brief", "4_individual_CME", "4"),
		briefChunk("b_s0_c0", "group assignment brief", "4_group", "4"),
		briefChunk("c_s0_c0", "old semester lecture notes", "3_lecture", "3"),
	}
	require.NoError(t, store.Upsert(ctx, chunks))

	filter := queryfilter.Eq(queryfilter.FieldFilterKey, "4_individual_CME")
	results, err := store.Query(ctx, "assignment brief", 5, filter)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a_s0_c0", results[0].ID)

	// OR across equalities widens the candidate set.
	wide := queryfilter.Eq(queryfilter.FieldFilterKey, "4_individual_CME").
		Or(queryfilter.FieldSemester, "3")
	results, err = store.Query(ctx, "assignment brief", 5, wide)
	require.NoError(t, err)
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"a_s0_c0", "c_s0_c0"}, ids)
}

func TestStore_Truncate_Integration(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupIntegrationStore(t)
	defer cleanup()

	require.NoError(t, store.Upsert(ctx, []chunker.Chunk{
		briefChunk("doc_s0_c0", "some indexed text", "4_individual_CME", "4"),
	}))

	require.NoError(t, store.Truncate(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
