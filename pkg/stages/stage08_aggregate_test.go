package stages

import (
	"testing"

	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
	"github.com/stretchr/testify/assert"
)

func TestAggregate_SupportsAndRefutesYieldsMixed(t *testing.T) {
	st := pipeline.New("trace-1")
	st.VerdictSupport = pipeline.VerdictPack{Stance: pipeline.StanceSupports, Confidence: 0.8,
		Citations: []pipeline.Citation{{EvidenceID: "e1"}}}
	st.VerdictSkeptic = pipeline.VerdictPack{Stance: pipeline.StanceRefutes, Confidence: 0.7,
		Citations: []pipeline.Citation{{EvidenceID: "e2"}}}
	st.EvidenceCandidates = []pipeline.EvidenceCandidate{{ID: "e1"}, {ID: "e2"}, {ID: "e3"}}

	Aggregate(st)

	assert.Equal(t, pipeline.LabelMixed, st.DraftVerdict.Stance)
	assert.False(t, st.RiskFlags.Has(pipelineerr.FlagJudgeFailClosed))
}

func TestAggregate_NoCitationsFailsClosed(t *testing.T) {
	st := pipeline.New("trace-2")
	st.VerdictSupport = pipeline.VerdictPack{Stance: pipeline.StanceUnverified}
	st.VerdictSkeptic = pipeline.VerdictPack{Stance: pipeline.StanceUnverified}

	Aggregate(st)

	assert.Equal(t, pipeline.LabelUnverified, st.DraftVerdict.Stance)
	assert.True(t, st.RiskFlags.Has(pipelineerr.FlagJudgeFailClosed))
	assert.True(t, st.RiskFlags.Has(pipelineerr.FlagNoVerifiedCitations))
}

func TestAggregate_SupportsAndNeutralYieldsTrue(t *testing.T) {
	st := pipeline.New("trace-3")
	st.VerdictSupport = pipeline.VerdictPack{Stance: pipeline.StanceSupports, Confidence: 0.9,
		Citations: []pipeline.Citation{{EvidenceID: "e1"}}}
	st.VerdictSkeptic = pipeline.VerdictPack{Stance: pipeline.StanceNeutral, Confidence: 0.9,
		Citations: []pipeline.Citation{{EvidenceID: "e2"}}}
	st.EvidenceCandidates = []pipeline.EvidenceCandidate{{ID: "e1"}, {ID: "e2"}, {ID: "e3"}}

	Aggregate(st)

	assert.Equal(t, pipeline.LabelTrue, st.DraftVerdict.Stance)
}

func TestAggregate_LowEvidencePenalizesQualityScore(t *testing.T) {
	st := pipeline.New("trace-4")
	st.VerdictSupport = pipeline.VerdictPack{Stance: pipeline.StanceSupports, Confidence: 0.9,
		Citations: []pipeline.Citation{{EvidenceID: "e1"}}}
	st.VerdictSkeptic = pipeline.VerdictPack{Stance: pipeline.StanceNeutral, Confidence: 0.9,
		Citations: []pipeline.Citation{{EvidenceID: "e2"}}}
	st.EvidenceCandidates = []pipeline.EvidenceCandidate{{ID: "e1"}}

	Aggregate(st)

	assert.True(t, st.RiskFlags.Has(pipelineerr.FlagLowEvidence))
	assert.Less(t, st.QualityScore, 100.0)
}
