package stages

import (
	"context"
	"testing"

	"github.com/codeready-toolchain/truthgraph/pkg/evidencestore"
	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
	"github.com/codeready-toolchain/truthgraph/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
)

func TestCollectWiki_NoWikiQueriesNeverTouchesStore(t *testing.T) {
	st := pipeline.New("trace-1")
	st.SearchQueries = []pipeline.QueryVariant{{Text: "n1", Type: pipeline.QueryNews}}

	CollectWiki(context.Background(), evidencestore.New(nil, false), ratelimit.NewProviderLimiter(2), st)

	assert.Empty(t, st.WikiCandidates)
}

func TestCollectWeb_NilClientsProduceEmptyCandidates(t *testing.T) {
	st := pipeline.New("trace-2")
	st.SearchQueries = []pipeline.QueryVariant{{Text: "q1", Type: pipeline.QueryNews}, {Text: "q2", Type: pipeline.QueryWeb}}

	CollectWeb(context.Background(), nil, nil, st)

	assert.Empty(t, st.WebCandidates)
}

func TestMerge_DedupsByNormalizedURLAndTitle(t *testing.T) {
	st := pipeline.New("trace-3")
	st.WikiCandidates = []pipeline.EvidenceCandidate{
		{ID: "e1", Title: "Eiffel Tower", URL: "https://en.wikipedia.org/wiki/Eiffel_Tower", Snippet: "s1", SourceType: pipeline.SourceWikipedia},
		{ID: "e2", Title: "Eiffel Tower", URL: "https://en.wikipedia.org/wiki/Eiffel_Tower/", Snippet: "s2 different url form", SourceType: pipeline.SourceWikipedia},
	}
	st.WebCandidates = []pipeline.EvidenceCandidate{
		{ID: "e3", Title: "", URL: "https://news.example.com/a", Snippet: "", SourceType: pipeline.SourceNews},
		{ID: "e4", Title: "Other", URL: "https://news.example.com/b", Snippet: "real content", SourceType: pipeline.SourceNews},
	}

	Merge(st)

	assert.Len(t, st.EvidenceCandidates, 2)
	assert.Equal(t, 2, st.Stage03MergeStats.FilteredCount)
}

func TestMerge_EmptyResultFlagsStageFailure(t *testing.T) {
	st := pipeline.New("trace-4")

	Merge(st)

	assert.True(t, st.RiskFlags.Has(pipelineerr.StageFailure(StageNameMerge)))
}
