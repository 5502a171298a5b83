package verdictstore_test

import (
	"context"
	stdsql "database/sql"
	"testing"
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/verdictstore"
	"github.com/codeready-toolchain/truthgraph/test/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *stdsql.DB {
	return dbtest.NewDB(t)
}

func TestStore_SaveAndGet(t *testing.T) {
	db := newTestDB(t)
	store := verdictstore.New(db)
	ctx := context.Background()

	st := pipeline.New("trace-abc")
	st.CreatedAt = time.Now()
	st.FinalVerdict = pipeline.FinalVerdict{
		Label:               pipeline.LabelTrue,
		Confidence:          0.82,
		Summary:             "The claim is supported by the retained evidence.",
		SelectedEvidenceIDs: []string{"e1", "e2"},
	}
	st.Citations = []pipeline.Citation{
		{EvidenceID: "e1", Quote: "some supporting quote", Relevance: 0.9},
	}
	st.ModelInfo = pipeline.ModelInfo{Provider: "openai", Model: "gpt-4o-mini"}

	err := store.Save(ctx, st, []string{"LOW_EVIDENCE"})
	require.NoError(t, err)

	rec, err := store.Get(ctx, "trace-abc")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, pipeline.LabelTrue, rec.Label)
	assert.InDelta(t, 0.82, rec.Confidence, 0.0001)
	assert.Len(t, rec.Citations, 1)
	assert.Equal(t, []string{"LOW_EVIDENCE"}, rec.RiskFlags)
	assert.Equal(t, "openai", rec.ModelInfo.Provider)
}

func TestStore_GetMissing(t *testing.T) {
	db := newTestDB(t)
	store := verdictstore.New(db)

	rec, err := store.Get(context.Background(), "no-such-trace")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
