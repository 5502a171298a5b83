package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/config"
	"github.com/codeready-toolchain/truthgraph/pkg/llmclient"
	"github.com/codeready-toolchain/truthgraph/pkg/llmjson"
	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
)

const StageNameJudge = "stage09_judge"

type judgeSchema struct {
	Label                 string   `json:"label"`
	Confidence            float64  `json:"confidence"`
	Summary               string   `json:"summary"`
	Rationale             []string `json:"rationale"`
	SelectedEvidenceIDs   []string `json:"selected_evidence_ids"`
	Limitations           []string `json:"limitations"`
	RecommendedNextSteps  []string `json:"recommended_next_steps"`
}

func (s *judgeSchema) Validate() error {
	switch pipeline.VerdictLabel(s.Label) {
	case pipeline.LabelTrue, pipeline.LabelFalse, pipeline.LabelMixed, pipeline.LabelUnverified, pipeline.LabelRefused:
	default:
		return errEnum("label", s.Label)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence out of range [0,1]: %v", s.Confidence)
	}
	if strings.TrimSpace(s.Summary) == "" {
		return errRequired("summary")
	}
	return nil
}

const judgeSystemPrompt = `You are the final adjudicator for a fact-check claim. Given the claim, both
verdict packs, and curated citations, produce the final verdict.
Respond with ONLY JSON: {"label": "TRUE"|"FALSE"|"MIXED"|"UNVERIFIED"|"REFUSED", "confidence": number 0-1,
"summary": string, "rationale": [string], "selected_evidence_ids": [string], "limitations": [string],
"recommended_next_steps": [string]}.`

// Judge is the LLM-based final adjudicator (spec.md §4.3 Stage 9). On
// schema mismatch it retries once; on a second failure it sets
// LLM_JUDGE_FAILED and uses Stage 8's draft verdict verbatim with
// fail_closed=true. Confidence is always capped by the evidence ceiling
// (invariant 5).
func Judge(ctx context.Context, client llmclient.Client, modelInfo pipeline.ModelInfo, thresholds config.ThresholdsConfig, refused bool, st *pipeline.State) {
	start := time.Now()

	if refused {
		st.FinalVerdict = pipeline.FinalVerdict{Label: pipeline.LabelRefused, Confidence: 0, Summary: "Claim refused by policy."}
		st.ModelInfo = modelInfo
		st.Stage09Diagnostics = pipeline.Stage9Diagnostics{SelectedEvidenceCount: 0}
		st.AppendStageLog(StageNameJudge, pipeline.StageSuccess, time.Since(start), nil)
		st.SetStageOutput(StageNameJudge, map[string]any{"label": pipeline.LabelRefused})
		return
	}

	schema, ok, schemaMismatch := judgeLLM(ctx, client, st)
	failClosed := false
	if !ok {
		schema = judgeSchema{
			Label:      string(st.DraftVerdict.Stance),
			Confidence: 0,
			Summary:    st.DraftVerdict.RationaleSummary,
		}
		failClosed = true
		st.RiskFlags.Add(pipelineerr.FlagLLMJudgeFailed)
	}

	confidence := clamp01(schema.Confidence)
	confidence = applyEvidenceCeiling(confidence, st.RiskFlags, thresholds)

	label := pipeline.VerdictLabel(schema.Label)
	// Invariant 4 (spec.md §3/§8): NO_VERIFIED_CITATIONS forces
	// UNVERIFIED, overriding whatever the judge model returned — a judge
	// cannot affirm TRUE/FALSE/MIXED with zero verified citations behind it.
	if st.RiskFlags.Has(pipelineerr.FlagNoVerifiedCitations) {
		label = pipeline.LabelUnverified
	}

	st.FinalVerdict = pipeline.FinalVerdict{
		Label:                label,
		Confidence:           confidence,
		Summary:              schema.Summary,
		Rationale:            schema.Rationale,
		SelectedEvidenceIDs:  resolveEvidenceIDs(schema.SelectedEvidenceIDs, st.EvidenceByID()),
		Limitations:          schema.Limitations,
		RecommendedNextSteps: schema.RecommendedNextSteps,
	}
	st.ModelInfo = modelInfo
	st.Stage09Diagnostics = pipeline.Stage9Diagnostics{
		SchemaMismatch:        schemaMismatch,
		FailClosed:            failClosed,
		SelectedEvidenceCount: len(st.FinalVerdict.SelectedEvidenceIDs),
	}

	st.AppendStageLog(StageNameJudge, pipeline.StageSuccess, time.Since(start), nil)
	st.SetStageOutput(StageNameJudge, map[string]any{
		"label": st.FinalVerdict.Label, "confidence": st.FinalVerdict.Confidence, "fail_closed": failClosed,
	})
}

func judgeLLM(ctx context.Context, client llmclient.Client, st *pipeline.State) (judgeSchema, bool, bool) {
	var parsed judgeSchema
	if client == nil {
		return parsed, false, false
	}

	prompt := buildJudgePrompt(st)
	raw, err := client.Complete(ctx, llmclient.Request{Prompt: prompt, System: judgeSystemPrompt})
	if err != nil {
		return parsed, false, false
	}

	if parseErr := llmjson.Parse(raw, &parsed); parseErr != nil {
		repair := llmjson.RepairPrompt("final_verdict", raw, parseErr)
		raw, err = client.Complete(ctx, llmclient.Request{Prompt: repair, System: judgeSystemPrompt})
		if err != nil {
			return parsed, false, true
		}
		if parseErr = llmjson.Parse(raw, &parsed); parseErr != nil {
			return parsed, false, true
		}
		return parsed, true, true
	}
	return parsed, true, false
}

func buildJudgePrompt(st *pipeline.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim: %s\n\n", st.ClaimText)
	fmt.Fprintf(&b, "Support pack: stance=%s confidence=%v reasoning=%s\n", st.VerdictSupport.Stance, st.VerdictSupport.Confidence, st.VerdictSupport.Reasoning)
	fmt.Fprintf(&b, "Skeptic pack: stance=%s confidence=%v reasoning=%s\n\n", st.VerdictSkeptic.Stance, st.VerdictSkeptic.Confidence, st.VerdictSkeptic.Reasoning)
	b.WriteString("Curated citations:\n")
	for _, c := range st.Citations {
		fmt.Fprintf(&b, "- id=%s: %s\n", c.EvidenceID, c.Quote)
	}
	return b.String()
}

// applyEvidenceCeiling enforces invariant 5 / spec.md §8 acceptance rules
// 4-5: NO_VERIFIED_CITATIONS caps at cap_no_citations; LOW_EVIDENCE or
// LOW_TRUST_EVIDENCE caps at cap_low_evidence. Both apply the stricter cap
// when both are set.
func applyEvidenceCeiling(confidence float64, flags *pipelineerr.FlagSet, thresholds config.ThresholdsConfig) float64 {
	ceiling := 1.0
	if flags.Has(pipelineerr.FlagNoVerifiedCitations) {
		ceiling = min(ceiling, thresholds.CapNoCitations)
	}
	if flags.Has(pipelineerr.FlagLowEvidence) || flags.Has(pipelineerr.FlagLowTrustEvidence) {
		ceiling = min(ceiling, thresholds.CapLowEvidence)
	}
	if confidence > ceiling {
		return ceiling
	}
	return confidence
}

func resolveEvidenceIDs(ids []string, byID map[string]pipeline.EvidenceCandidate) []string {
	var out []string
	for _, id := range ids {
		if _, ok := byID[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
