//go:build integration

package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studybuddy/biochem/internal/testutil"
)

// setupIntegrationTest provides a store backed by a pgvector container and a
// real Google AI embedder. Skips when GEMINI_API_KEY is not set.
func setupIntegrationTest(t *testing.T) (*Store, func()) {
	t.Helper()

	db, dbCleanup := testutil.SetupTestDB(t)
	setup := testutil.SetupGoogleAI(t)
	store := New(db.Pool, setup.Embedder, setup.Logger)

	return store, dbCleanup
}

func TestStore_AddAndSearch_Integration(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupIntegrationTest(t)
	defer cleanup()

	doc := Document{
		ID:      "test-glycolysis-0",
		Content: "Glycolysis is the metabolic pathway that converts glucose into pyruvate, yielding ATP and NADH.",
		Metadata: map[string]string{
			"source": "test_notes.md",
			"chunk":  "0",
		},
	}
	require.NoError(t, store.Add(ctx, doc))

	results, err := store.Search(ctx, "how is glucose broken down", WithTopK(1))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(results), 1)
	assert.Equal(t, doc.ID, results[0].Document.ID)
	assert.Equal(t, doc.Content, results[0].Document.Content)
	assert.Greater(t, results[0].Similarity, float32(0))
}

func TestStore_SearchWithFilter_Integration(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupIntegrationTest(t)
	defer cleanup()

	docs := []Document{
		{ID: "a-0", Content: "Hemoglobin binds oxygen cooperatively.", Metadata: map[string]string{"source": "proteins.md"}},
		{ID: "b-0", Content: "Hemoglobin variants cause sickle cell disease.", Metadata: map[string]string{"source": "clinical.md"}},
	}
	for _, doc := range docs {
		require.NoError(t, store.Add(ctx, doc))
	}

	results, err := store.Search(ctx, "hemoglobin",
		WithTopK(5), WithFilter("source", "clinical.md"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b-0", results[0].Document.ID)
}

func TestStore_SourcesAndDeletion_Integration(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupIntegrationTest(t)
	defer cleanup()

	for _, doc := range []Document{
		{ID: "notes-0", Content: "Enzymes lower activation energy.", Metadata: map[string]string{"source": "enzymes.md"}},
		{ID: "notes-1", Content: "Competitive inhibitors raise apparent Km.", Metadata: map[string]string{"source": "enzymes.md"}},
	} {
		require.NoError(t, store.Add(ctx, doc))
	}

	sources, err := store.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "enzymes.md", sources[0].Source)
	assert.Equal(t, 2, sources[0].Chunks)

	deleted, err := store.DeleteBySource(ctx, "enzymes.md")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
