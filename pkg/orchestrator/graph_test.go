package orchestrator_test

import (
	"context"
	"testing"

	"github.com/codeready-toolchain/truthgraph/pkg/config"
	"github.com/codeready-toolchain/truthgraph/pkg/evidencestore"
	"github.com/codeready-toolchain/truthgraph/pkg/masking"
	"github.com/codeready-toolchain/truthgraph/pkg/orchestrator"
	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testThresholds() config.ThresholdsConfig {
	return config.ThresholdsConfig{
		ScorePassThreshold: 0.5, TopKPerSide: 3,
		CapNoCitations: 0.4, CapLowEvidence: 0.7, LowEvidenceFloor: 2,
		LowTrustThreshold: 0.5,
	}
}

func TestGraph_Run_RefusedShortCircuitsToJudgeOnly(t *testing.T) {
	graph := orchestrator.New(orchestrator.Deps{
		EvidenceStore: evidencestore.New(nil, false),
		WikiLimiter:   ratelimit.NewProviderLimiter(4),
		Thresholds:    testThresholds(),
	})
	st := pipeline.New("trace-1")

	graph.Run(context.Background(), st, true)

	require.Len(t, st.StageLogs, 1)
	assert.Equal(t, pipeline.LabelRefused, st.FinalVerdict.Label)
}

func TestGraph_Run_FullPipelineWithNilLLMClientsUsesFallbacks(t *testing.T) {
	graph := orchestrator.New(orchestrator.Deps{
		EvidenceStore: evidencestore.New(nil, false),
		WikiLimiter:   ratelimit.NewProviderLimiter(4),
		Thresholds:    testThresholds(),
	})
	st := pipeline.New("trace-2")
	st.InputPayload = "The bridge opened in 1990."
	st.NormalizeMode = pipeline.NormalizeBasic

	graph.Run(context.Background(), st, false)

	assert.NotEmpty(t, st.ClaimText)
	assert.NotEmpty(t, st.StageLogs)
	assert.Equal(t, "stage09_judge", st.StageLogs[len(st.StageLogs)-1].Stage)
}

func TestGraph_Run_MasksClaimTextAndEvidenceSnippets(t *testing.T) {
	graph := orchestrator.New(orchestrator.Deps{
		EvidenceStore: evidencestore.New(nil, false),
		WikiLimiter:   ratelimit.NewProviderLimiter(4),
		Thresholds:    testThresholds(),
		Masking:       masking.New(true),
	})
	st := pipeline.New("trace-3")
	st.InputPayload = "Contact me at person@example.com about the claim."
	st.NormalizeMode = pipeline.NormalizeBasic

	graph.Run(context.Background(), st, false)

	assert.NotContains(t, st.ClaimText, "person@example.com")
	assert.Contains(t, st.ClaimText, "[MASKED_EMAIL]")
}

func TestGraph_Run_NilMaskingServiceIsSafe(t *testing.T) {
	graph := orchestrator.New(orchestrator.Deps{
		EvidenceStore: evidencestore.New(nil, false),
		WikiLimiter:   ratelimit.NewProviderLimiter(4),
		Thresholds:    testThresholds(),
	})
	st := pipeline.New("trace-4")
	st.InputPayload = "Contact me at person@example.com about the claim."
	st.NormalizeMode = pipeline.NormalizeBasic

	assert.NotPanics(t, func() {
		graph.Run(context.Background(), st, false)
	})
	assert.Contains(t, st.ClaimText, "person@example.com")
}
