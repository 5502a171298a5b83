package stages

import (
	"testing"

	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoredEv(id string, relevance, trust float64, retained bool) pipeline.ScoredEvidence {
	return pipeline.ScoredEvidence{
		EvidenceCandidate: pipeline.EvidenceCandidate{ID: id, Snippet: "snippet " + id, TrustPrior: trust},
		Relevance:         relevance,
		Retained:          retained,
	}
}

func TestTopK_PartitionsAlternatingAndCaps(t *testing.T) {
	st := pipeline.New("trace-1")
	st.ScoredEvidence = []pipeline.ScoredEvidence{
		scoredEv("e1", 0.9, 0.8, true),
		scoredEv("e2", 0.8, 0.8, true),
		scoredEv("e3", 0.7, 0.8, true),
		scoredEv("e4", 0.6, 0.8, true),
		scoredEv("e5", 0.1, 0.1, false),
	}

	TopK(2, 0.5, st)

	assert.Len(t, st.EvidenceTopKSupport, 2)
	assert.Len(t, st.EvidenceTopKSkeptic, 2)
	assert.False(t, st.RiskFlags.Has(pipelineerr.FlagLowEvidence))
}

func TestTopK_NoRetainedEvidenceFlagsFailureAndLowEvidence(t *testing.T) {
	st := pipeline.New("trace-2")
	st.ScoredEvidence = []pipeline.ScoredEvidence{scoredEv("e1", 0.1, 0.1, false)}

	TopK(3, 0.5, st)

	assert.True(t, st.RiskFlags.Has(pipelineerr.FlagLowEvidence))
	assert.True(t, st.RiskFlags.Has(pipelineerr.StageFailure(StageNameTopK)))
	assert.True(t, st.RiskFlags.Has(pipelineerr.FlagNoSkepticEvidence))
	assert.Empty(t, st.Citations)
}

func TestTopK_CitationsGuaranteeSkepticRepresentation(t *testing.T) {
	st := pipeline.New("trace-3")
	st.ScoredEvidence = []pipeline.ScoredEvidence{
		scoredEv("e1", 0.9, 0.8, true),
		scoredEv("e2", 0.8, 0.8, true),
	}

	TopK(5, 0.5, st)

	require.NotEmpty(t, st.EvidenceTopKSkeptic)
	found := false
	for _, c := range st.Citations {
		if c.EvidenceID == st.EvidenceTopKSkeptic[0].ID {
			found = true
		}
	}
	assert.True(t, found, "citations must include at least one skeptic-side evidence id")
}

func TestTopK_LowAverageTrustFlagsLowTrustEvidence(t *testing.T) {
	st := pipeline.New("trace-low-trust")
	st.ScoredEvidence = []pipeline.ScoredEvidence{
		scoredEv("e1", 0.9, 0.2, true),
		scoredEv("e2", 0.8, 0.2, true),
	}

	TopK(3, 0.5, st)

	assert.True(t, st.RiskFlags.Has(pipelineerr.FlagLowTrustEvidence))
}

func TestTopK_HighAverageTrustDoesNotFlagLowTrustEvidence(t *testing.T) {
	st := pipeline.New("trace-high-trust")
	st.ScoredEvidence = []pipeline.ScoredEvidence{
		scoredEv("e1", 0.9, 0.9, true),
		scoredEv("e2", 0.8, 0.9, true),
	}

	TopK(3, 0.5, st)

	assert.False(t, st.RiskFlags.Has(pipelineerr.FlagLowTrustEvidence))
}

func TestTopK_DefaultsKWhenNonPositive(t *testing.T) {
	st := pipeline.New("trace-4")
	for i := 0; i < 8; i++ {
		st.ScoredEvidence = append(st.ScoredEvidence, scoredEv(string(rune('a'+i)), 1.0-float64(i)*0.01, 0.5, true))
	}

	TopK(0, 0.5, st)

	assert.LessOrEqual(t, len(st.EvidenceTopKSupport), 3)
	assert.LessOrEqual(t, len(st.EvidenceTopKSkeptic), 3)
}
