package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfitter-ai/outfitter/internal/log"
	"github.com/outfitter-ai/outfitter/internal/search"
	"github.com/outfitter-ai/outfitter/internal/testutil"
)

const testDims = 3

func setupStore(t *testing.T) *search.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := testutil.SetupPostgres(t)
	t.Cleanup(cleanup)

	store, err := search.New(db.Pool, search.DefaultIndexConfiguration("products", testDims), log.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Provision(context.Background()))
	return store
}

func testDocuments() []search.Document {
	return []search.Document{
		{ID: "1", Title: "4-Person Tent", Content: "Waterproof dome tent that sleeps four", Vector: []float32{1, 0, 0}},
		{ID: "2", Title: "Trail Stove", Content: "Compact camping stove for backpacking", Vector: []float32{0, 1, 0}},
		{ID: "3", Title: "Headlamp", Content: "Rechargeable headlamp with red light mode", Vector: []float32{0, 0, 1}},
	}
}

func TestStore_ProvisionIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := testutil.SetupPostgres(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	store, err := search.New(db.Pool, search.DefaultIndexConfiguration("products", testDims), log.NewNop())
	require.NoError(t, err)

	require.NoError(t, store.Provision(ctx))
	require.NoError(t, store.Upsert(ctx, testDocuments()))

	// A second provisioning pass must not disturb stored documents.
	require.NoError(t, store.Provision(ctx))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestStore_ProvisionRejectsDimensionChange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := testutil.SetupPostgres(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	store, err := search.New(db.Pool, search.DefaultIndexConfiguration("products", testDims), log.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Provision(ctx))
	require.NoError(t, store.Upsert(ctx, testDocuments()))

	wider, err := search.New(db.Pool, search.DefaultIndexConfiguration("products", testDims+1), log.NewNop())
	require.NoError(t, err)

	err = wider.Provision(ctx)
	var provErr *search.ProvisioningError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "products", provErr.Index)

	// The rejected pass must leave the existing index untouched.
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestStore_UpsertOverwrites(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testDocuments()))
	require.NoError(t, store.Upsert(ctx, []search.Document{
		{ID: "1", Title: "6-Person Tent", Content: "Roomier dome tent that sleeps six", Vector: []float32{1, 1, 0}},
	}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count, "overwrite must not add a row")

	hits, err := store.HybridSearch(ctx, search.Query{
		Text:   "tent",
		Vector: []float32{1, 1, 0},
		TopK:   5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "1", hits[0].ID)
	assert.Equal(t, "6-Person Tent", hits[0].Title)
}

func TestStore_UpsertValidation(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, []search.Document{{ID: "", Vector: []float32{1, 0, 0}}})
	assert.ErrorContains(t, err, "without id")

	err = store.Upsert(ctx, []search.Document{{ID: "1", Vector: []float32{1, 0}}})
	assert.ErrorContains(t, err, "dimensions")

	assert.NoError(t, store.Upsert(ctx, nil))
}

func TestStore_HybridSearch(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, testDocuments()))

	t.Run("lexical and vector agree", func(t *testing.T) {
		hits, err := store.HybridSearch(ctx, search.Query{
			Text:   "waterproof tent",
			Vector: []float32{1, 0, 0},
			TopK:   5,
		})
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, "4-Person Tent", hits[0].Title)
	})

	t.Run("vector only still matches", func(t *testing.T) {
		// Query text matching nothing lexically; the nearest neighbor
		// side carries the result.
		hits, err := store.HybridSearch(ctx, search.Query{
			Text:   "zzzz qqqq",
			Vector: []float32{0, 0, 1},
			TopK:   5,
		})
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, "Headlamp", hits[0].Title)
	})

	t.Run("top_k bounds the result", func(t *testing.T) {
		hits, err := store.HybridSearch(ctx, search.Query{
			Text:   "camping",
			Vector: []float32{1, 1, 1},
			TopK:   1,
		})
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("invalid queries rejected", func(t *testing.T) {
		_, err := store.HybridSearch(ctx, search.Query{Text: "tent", Vector: []float32{1, 0, 0}, TopK: 0})
		assert.Error(t, err)

		_, err = store.HybridSearch(ctx, search.Query{Text: "tent", Vector: []float32{1, 0}, TopK: 5})
		assert.Error(t, err)
	})
}

func TestStore_ExhaustiveProfile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := testutil.SetupPostgres(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	cfg := search.DefaultIndexConfiguration("products", testDims)
	cfg.DefaultProfile = "eknnProfile"

	store, err := search.New(db.Pool, cfg, log.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Provision(ctx))
	require.NoError(t, store.Upsert(ctx, testDocuments()))

	hits, err := store.HybridSearch(ctx, search.Query{
		Text:   "stove",
		Vector: []float32{0, 1, 0},
		TopK:   5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Trail Stove", hits[0].Title)
}
