package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/llmclient"
	"github.com/codeready-toolchain/truthgraph/pkg/llmjson"
	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
)

const (
	StageNameVerifySupport = "stage06_verify_support"
	StageNameVerifySkeptic = "stage07_verify_skeptic"
)

type verdictPackSchema struct {
	Stance     string             `json:"stance"`
	Confidence float64            `json:"confidence"`
	Reasoning  string             `json:"reasoning"`
	Citations  []citationSchema   `json:"citations"`
}

type citationSchema struct {
	EvidenceID string  `json:"evidence_id"`
	Quote      string  `json:"quote"`
	Relevance  float64 `json:"relevance"`
}

func (s *verdictPackSchema) Validate() error {
	switch pipeline.Stance(s.Stance) {
	case pipeline.StanceSupports, pipeline.StanceRefutes, pipeline.StanceNeutral, pipeline.StanceUnverified:
	default:
		return errEnum("stance", s.Stance)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence out of range [0,1]: %v", s.Confidence)
	}
	return nil
}

const verifySystemPromptTemplate = `You verify a claim against a pool of evidence, taking the %s side.
Respond with ONLY JSON: {"stance": "SUPPORTS"|"REFUTES"|"NEUTRAL"|"UNVERIFIED", "confidence": number 0-1,
"reasoning": string, "citations": [{"evidence_id": string, "quote": string (<=500 chars), "relevance": number 0-1}]}.`

// VerifySupport calls the LLM over the support pool (spec.md §4.3 Stage 6).
func VerifySupport(ctx context.Context, client llmclient.Client, st *pipeline.State) {
	start := time.Now()
	pack, stageErr := verify(ctx, client, StageNameVerifySupport, "support", st.ClaimText, st.EvidenceTopKSupport, st.EvidenceByID(), nil)
	st.VerdictSupport = pack
	finishVerifyStage(st, StageNameVerifySupport, pack, start, stageErr)
}

// VerifySkeptic calls the LLM over the skeptic pool (spec.md §4.3 Stage 7).
// A guard prevents the pack from copying support verbatim: overlapping
// evidence_ids are permitted only if stance differs.
func VerifySkeptic(ctx context.Context, client llmclient.Client, st *pipeline.State) {
	start := time.Now()
	pack, stageErr := verify(ctx, client, StageNameVerifySkeptic, "skeptic", st.ClaimText, st.EvidenceTopKSkeptic, st.EvidenceByID(), &st.VerdictSupport)
	st.VerdictSkeptic = pack
	finishVerifyStage(st, StageNameVerifySkeptic, pack, start, stageErr)
}

func finishVerifyStage(st *pipeline.State, stage string, pack pipeline.VerdictPack, start time.Time, stageErr error) {
	status := pipeline.StageSuccess
	if stageErr != nil {
		status = pipeline.StageError
		st.RiskFlags.Add(pipelineerr.StageFailure(stage))
	}
	if pack.CitationValidCount == 0 {
		st.RiskFlags.Add(pipelineerr.FlagNoVerifiedCitations)
	}
	st.AppendStageLog(stage, status, time.Since(start), stageErr)
	st.SetStageOutput(stage, map[string]any{
		"stance": pack.Stance, "confidence": pack.Confidence, "parse_ok": pack.ParseOK,
	})
}

func verify(ctx context.Context, client llmclient.Client, stage, side, claim string, pool []pipeline.ScoredEvidence, byID map[string]pipeline.EvidenceCandidate, guardAgainst *pipeline.VerdictPack) (pipeline.VerdictPack, error) {
	schema, parseOK, retried := verifyLLM(ctx, client, side, claim, pool)
	if guardAgainst != nil && parseOK {
		schema = applySkepticGuard(schema, *guardAgainst)
	}

	citations, validCount := resolveCitations(schema.Citations, byID)

	pack := pipeline.VerdictPack{
		Stance:             pipeline.Stance(schema.Stance),
		Confidence:         clamp01(schema.Confidence),
		Reasoning:          schema.Reasoning,
		Citations:          citations,
		ParseOK:            parseOK,
		ParseRetryUsed:     retried,
		CitationValidCount: validCount,
	}
	var stageErr error
	if !parseOK {
		pack.Stance = pipeline.StanceUnverified
		pack.Confidence = 0
		stageErr = fmt.Errorf("%s: parse failed after repair", stage)
	}
	return pack, stageErr
}

const guardReassignedConfidence = 0.3

// applySkepticGuard prevents the skeptic pack from blindly copying the
// support pack: if stance matches support's stance on every overlapping
// evidence_id, down-weight confidence and flag the overlap as suspect by
// leaving only non-overlapping citations (or, if none, keeping the pack but
// at reduced confidence) — spec.md §4.3 Stage 7 guard.
func applySkepticGuard(schema verdictPackSchema, support pipeline.VerdictPack) verdictPackSchema {
	if schema.Stance != string(support.Stance) {
		return schema
	}
	supportIDs := make(map[string]bool, len(support.Citations))
	for _, c := range support.Citations {
		supportIDs[c.EvidenceID] = true
	}
	allOverlap := len(schema.Citations) > 0
	for _, c := range schema.Citations {
		if !supportIDs[c.EvidenceID] {
			allOverlap = false
			break
		}
	}
	if allOverlap {
		schema.Confidence = guardReassignedConfidence
	}
	return schema
}

func verifyLLM(ctx context.Context, client llmclient.Client, side, claim string, pool []pipeline.ScoredEvidence) (verdictPackSchema, bool, bool) {
	var parsed verdictPackSchema
	if client == nil {
		return parsed, false, false
	}

	system := fmt.Sprintf(verifySystemPromptTemplate, side)
	prompt := buildVerifyPrompt(claim, pool)

	raw, err := client.Complete(ctx, llmclient.Request{Prompt: prompt, System: system})
	if err != nil {
		return parsed, false, false
	}

	if parseErr := llmjson.Parse(raw, &parsed); parseErr != nil {
		repair := llmjson.RepairPrompt("verdict_pack", raw, parseErr)
		raw, err = client.Complete(ctx, llmclient.Request{Prompt: repair, System: system})
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

func buildVerifyPrompt(claim string, pool []pipeline.ScoredEvidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim: %s\n\nEvidence:\n", claim)
	for _, e := range pool {
		fmt.Fprintf(&b, "- id=%s: %s\n", e.ID, e.Snippet)
	}
	return b.String()
}

// resolveCitations drops any citation referencing an id absent from
// evidence_candidates (invariant 4) and enforces the quote length cap.
func resolveCitations(in []citationSchema, byID map[string]pipeline.EvidenceCandidate) ([]pipeline.Citation, int) {
	var out []pipeline.Citation
	for _, c := range in {
		if _, ok := byID[c.EvidenceID]; !ok {
			continue
		}
		quote := c.Quote
		if len(quote) > pipeline.MaxQuoteLength {
			quote = quote[:pipeline.MaxQuoteLength]
		}
		out = append(out, pipeline.Citation{EvidenceID: c.EvidenceID, Quote: quote, Relevance: clamp01(c.Relevance)})
	}
	return out, len(out)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
