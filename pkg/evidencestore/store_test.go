package evidencestore_test

import (
	"context"
	"testing"

	"github.com/codeready-toolchain/truthgraph/pkg/evidencestore"
	"github.com/codeready-toolchain/truthgraph/test/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SearchTitle_FindsSimilarTitles(t *testing.T) {
	db := dbtest.NewDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO wiki_pages (id, title, url) VALUES ($1, $2, $3)`,
		"page-1", "Eiffel Tower", "https://example.org/wiki/Eiffel_Tower")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO wiki_chunks (page_id, chunk_idx, chunk_id, content) VALUES ($1, 0, $2, $3)`,
		"page-1", "page-1:0", "The Eiffel Tower is a landmark in Paris.")
	require.NoError(t, err)

	store := evidencestore.New(db, false)
	results := store.SearchTitle(ctx, "Eiffel Towr", 5)

	require.Len(t, results, 1)
	assert.Equal(t, "wiki:page-1", results[0].ID)
	assert.Equal(t, "Eiffel Tower", results[0].Title)
	assert.Equal(t, 1.0, results[0].TrustPrior)
}

func TestStore_SearchFulltext_MatchesContent(t *testing.T) {
	db := dbtest.NewDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO wiki_pages (id, title, url) VALUES ($1, $2, $3)`,
		"page-2", "Some Article", "")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO wiki_chunks (page_id, chunk_idx, chunk_id, content) VALUES ($1, 0, $2, $3)`,
		"page-2", "page-2:0", "Rockets launched from the coastal facility in 1969.")
	require.NoError(t, err)

	store := evidencestore.New(db, false)
	results := store.SearchFulltext(ctx, "rockets launched", 5)

	require.Len(t, results, 1)
	assert.Equal(t, "wiki:page-2", results[0].ID)
}

func TestStore_SearchFulltext_NoMatchReturnsEmpty(t *testing.T) {
	db := dbtest.NewDB(t)
	store := evidencestore.New(db, false)

	results := store.SearchFulltext(context.Background(), "nonexistent query terms", 5)

	assert.Empty(t, results)
}

func TestStore_SearchVector_NoopWhenEmbeddingsUnavailable(t *testing.T) {
	db := dbtest.NewDB(t)
	store := evidencestore.New(db, false)

	results := store.SearchVector(context.Background(), []float32{0.1, 0.2}, 5)

	assert.Empty(t, results)
}

func TestNormalizeQuery_StripsControlCharsAndCapsLength(t *testing.T) {
	q := evidencestore.NormalizeQuery("hello\x00world & stuff   ")
	assert.Equal(t, "hello world stuff", q)
}
