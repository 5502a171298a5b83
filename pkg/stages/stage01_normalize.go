// Package stages implements the nine pipeline stages and the adapter, each
// a (state) -> state transform per spec.md §4.3.
package stages

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/llmclient"
	"github.com/codeready-toolchain/truthgraph/pkg/llmjson"
	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
)

const StageNameNormalize = "stage01_normalize"

type normalizeSchema struct {
	ClaimText     string   `json:"claim_text"`
	ClaimMode     string   `json:"claim_mode"`
	SourceExcerpt string   `json:"source_excerpt"`
	EntityHints   []string `json:"entity_hints"`
}

func (s *normalizeSchema) Validate() error {
	if strings.TrimSpace(s.ClaimText) == "" {
		return errRequired("claim_text")
	}
	switch pipeline.ClaimMode(s.ClaimMode) {
	case pipeline.ClaimFact, pipeline.ClaimRumor, pipeline.ClaimMixed:
	default:
		return errEnum("claim_mode", s.ClaimMode)
	}
	return nil
}

// Normalize extracts claim_text/claim_mode/canonical_evidence from the raw
// input. normalize_mode=llm tries structured extraction first; basic (or an
// LLM failure after two attempts) falls back to a rule-based extraction
// that still always emits a claim (spec.md §4.3).
func Normalize(ctx context.Context, client llmclient.Client, st *pipeline.State) {
	start := time.Now()
	defer func() {
		st.AppendStageLog(StageNameNormalize, pipeline.StageSuccess, time.Since(start), nil)
	}()

	if st.NormalizeMode == pipeline.NormalizeLLM && client != nil {
		if ok := normalizeLLM(ctx, client, st); ok {
			st.SetStageOutput(StageNameNormalize, map[string]any{
				"claim_mode": st.ClaimMode,
				"chars":      len(st.ClaimText),
			})
			return
		}
		st.RiskFlags.Add(pipelineerr.StageFailure(StageNameNormalize))
	}

	normalizeBasic(st)
	st.SetStageOutput(StageNameNormalize, map[string]any{
		"claim_mode": st.ClaimMode,
		"chars":      len(st.ClaimText),
		"fallback":   true,
	})
}

func normalizeLLM(ctx context.Context, client llmclient.Client, st *pipeline.State) bool {
	prompt := buildNormalizePrompt(st)
	raw, err := client.Complete(ctx, llmclient.Request{Prompt: prompt, System: normalizeSystemPrompt})
	if err != nil {
		return false
	}

	var parsed normalizeSchema
	parseErr := llmjson.Parse(raw, &parsed)
	retried := false
	if parseErr != nil {
		retried = true
		repair := llmjson.RepairPrompt("normalize", raw, parseErr)
		raw, err = client.Complete(ctx, llmclient.Request{Prompt: repair, System: normalizeSystemPrompt})
		if err != nil {
			return false
		}
		if parseErr = llmjson.Parse(raw, &parsed); parseErr != nil {
			return false
		}
	}

	st.ClaimText = parsed.ClaimText
	st.ClaimMode = pipeline.ClaimMode(parsed.ClaimMode)
	st.CanonicalEvidence = pipeline.CanonicalEvidence{
		SourceExcerpt: parsed.SourceExcerpt,
		EntityHints:   parsed.EntityHints,
	}
	_ = retried
	return true
}

const normalizeSystemPrompt = `You extract a single canonical factual claim from input text.
Respond with ONLY JSON: {"claim_text": string, "claim_mode": "fact"|"rumor"|"mixed", "source_excerpt": string, "entity_hints": [string]}.`

func buildNormalizePrompt(st *pipeline.State) string {
	return "Input:\n" + st.InputPayload
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// normalizeBasic is the deterministic fallback: collapse whitespace, cap
// length, and treat the cleaned text itself as the claim. It never fails.
func normalizeBasic(st *pipeline.State) {
	text := whitespaceRun.ReplaceAllString(strings.TrimSpace(st.InputPayload), " ")
	if len(text) > 2000 {
		text = text[:2000]
	}
	st.ClaimText = text
	st.ClaimMode = pipeline.ClaimFact
	st.CanonicalEvidence = pipeline.CanonicalEvidence{SourceExcerpt: text}
}

func errRequired(field string) error {
	return &jsonSchemaError{msg: "missing required field: " + field}
}

func errEnum(field, value string) error {
	return &jsonSchemaError{msg: "field " + field + " has invalid value: " + value}
}

type jsonSchemaError struct{ msg string }

func (e *jsonSchemaError) Error() string { return e.msg }
