package stages

import (
	"context"
	"testing"

	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuerygen_NilClientFallsBackToSingleClaim(t *testing.T) {
	st := pipeline.New("trace-1")
	st.ClaimText = "The bridge opened in 1990."

	Querygen(context.Background(), nil, st)

	require.Len(t, st.QuerygenClaims, 1)
	assert.Equal(t, "C1", st.QuerygenClaims[0].ClaimID)
	assert.Len(t, st.QuerygenClaims[0].QueryPack.WikiDB, 3)
	assert.Len(t, st.QuerygenClaims[0].QueryPack.NewsSearch, 4)
	assert.True(t, st.RiskFlags.Has(pipelineerr.FlagQuerygenDegraded))
}

func TestQuerygen_InvalidJSONDegradesAfterRepairRetry(t *testing.T) {
	st := pipeline.New("trace-2")
	st.ClaimText = "Some claim"
	client := &stubLLMClient{responses: []string{"not json", "still not json"}}

	Querygen(context.Background(), client, st)

	assert.True(t, st.RiskFlags.Has(pipelineerr.FlagQuerygenDegraded))
	assert.Equal(t, 2, client.calls)
}

func TestQuerygen_ValidLLMResponseParsesClaims(t *testing.T) {
	st := pipeline.New("trace-3")
	st.ClaimText = "Some claim"
	raw := `{"claims":[{"claim_id":"C1","claim_type":"사건","time_sensitivity":"mid",` +
		`"query_pack":{"wiki_db":[{"mode":"title","q":"a"},{"mode":"fulltext","q":"b"},{"mode":"fulltext","q":"c"}],` +
		`"news_search":["n1","n2","n3","n4"]}}]}`
	client := &stubLLMClient{responses: []string{raw}}

	Querygen(context.Background(), client, st)

	require.Len(t, st.QuerygenClaims, 1)
	assert.False(t, st.RiskFlags.Has(pipelineerr.FlagQuerygenDegraded))
	assert.Len(t, st.QueryVariants, 7)
}
