package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/llmclient"
	"github.com/codeready-toolchain/truthgraph/pkg/llmjson"
	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
)

const StageNameScore = "stage04_score"

type scoreSchema struct {
	Scores []float64 `json:"scores"`
}

func (s *scoreSchema) Validate() error {
	for _, v := range s.Scores {
		if v < 0 || v > 1 {
			return fmt.Errorf("score out of range [0,1]: %v", v)
		}
	}
	return nil
}

// Score computes a relevance in [0,1] for each candidate via an LLM scorer
// when available, falling back to a deterministic lexical overlap score.
// No retries; items below scorePassThreshold are marked not-retained
// (spec.md §4.3).
func Score(ctx context.Context, client llmclient.Client, scorePassThreshold float64, st *pipeline.State) {
	start := time.Now()

	scores := scoreLLM(ctx, client, st)
	if scores == nil {
		scores = make([]float64, len(st.EvidenceCandidates))
		for i, c := range st.EvidenceCandidates {
			scores[i] = lexicalOverlap(st.ClaimText, c.Snippet)
		}
	}

	scored := make([]pipeline.ScoredEvidence, len(st.EvidenceCandidates))
	passCount := 0
	for i, c := range st.EvidenceCandidates {
		rel := scores[i]
		retained := rel >= scorePassThreshold
		if retained {
			passCount++
		}
		scored[i] = pipeline.ScoredEvidence{EvidenceCandidate: c, Relevance: rel, Retained: retained}
	}

	st.ScoredEvidence = scored
	total := len(scored)
	rate := 0.0
	if total > 0 {
		rate = float64(passCount) / float64(total)
	}
	st.ScoreDiagnostics = pipeline.ScoreDiagnostics{PassCount: passCount, PassRate: rate, TotalScored: total}

	st.AppendStageLog(StageNameScore, pipeline.StageSuccess, time.Since(start), nil)
	st.SetStageOutput(StageNameScore, st.ScoreDiagnostics)
}

const scoreSystemPrompt = `Score how relevant each evidence snippet is to the claim, 0 (irrelevant) to 1 (directly addresses it).
Respond with ONLY JSON: {"scores": [number, ...]} in the same order as given, one score per snippet.`

// scoreLLM returns nil (not an empty slice) on any failure so the caller
// falls back to the lexical scorer; a per-call budget means no retries.
func scoreLLM(ctx context.Context, client llmclient.Client, st *pipeline.State) []float64 {
	if client == nil || len(st.EvidenceCandidates) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Claim: %s\n\nSnippets:\n", st.ClaimText)
	for i, c := range st.EvidenceCandidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Snippet)
	}

	raw, err := client.Complete(ctx, llmclient.Request{Prompt: b.String(), System: scoreSystemPrompt})
	if err != nil {
		return nil
	}

	var parsed scoreSchema
	if err := llmjson.Parse(raw, &parsed); err != nil {
		return nil
	}
	if len(parsed.Scores) != len(st.EvidenceCandidates) {
		return nil
	}
	return parsed.Scores
}

// lexicalOverlap is the deterministic fallback: fraction of claim tokens
// that also appear in the snippet.
func lexicalOverlap(claim, snippet string) float64 {
	claimTokens := tokenize(claim)
	if len(claimTokens) == 0 {
		return 0
	}
	snippetSet := make(map[string]bool)
	for _, t := range tokenize(snippet) {
		snippetSet[t] = true
	}
	hits := 0
	for _, t := range claimTokens {
		if snippetSet[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(claimTokens))
}

func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]{}")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
