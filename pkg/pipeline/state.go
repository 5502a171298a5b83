// Package pipeline defines PipelineState, the single explicitly-typed
// record threaded through every stage of the evidence-verification graph.
package pipeline

import (
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
)

type InputType string

const (
	InputText  InputType = "text"
	InputURL   InputType = "url"
	InputImage InputType = "image"
)

type ClaimMode string

const (
	ClaimFact  ClaimMode = "fact"
	ClaimRumor ClaimMode = "rumor"
	ClaimMixed ClaimMode = "mixed"
)

type NormalizeMode string

const (
	NormalizeLLM   NormalizeMode = "llm"
	NormalizeBasic NormalizeMode = "basic"
)

type SourceType string

const (
	SourceWikipedia SourceType = "WIKIPEDIA"
	SourceNews      SourceType = "NEWS"
	SourceWebURL    SourceType = "WEB_URL"
)

type QueryType string

const (
	QueryNews QueryType = "news"
	QueryWeb  QueryType = "web"
	QueryWiki QueryType = "wiki"
)

type Stance string

const (
	StanceSupports   Stance = "SUPPORTS"
	StanceRefutes    Stance = "REFUTES"
	StanceNeutral    Stance = "NEUTRAL"
	StanceUnverified Stance = "UNVERIFIED"
)

type VerdictLabel string

const (
	LabelTrue       VerdictLabel = "TRUE"
	LabelFalse      VerdictLabel = "FALSE"
	LabelMixed      VerdictLabel = "MIXED"
	LabelUnverified VerdictLabel = "UNVERIFIED"
	LabelRefused    VerdictLabel = "REFUSED"
)

// StageStatus is the per-stage-log outcome. Invariant 2: every stage
// appends exactly one entry with one of these statuses.
type StageStatus string

const (
	StageSuccess StageStatus = "success"
	StageError   StageStatus = "error"
	StageSkipped StageStatus = "skipped"
)

// StageLog is one entry appended by a stage on completion.
type StageLog struct {
	Stage     string      `json:"stage"`
	Status    StageStatus `json:"status"`
	ElapsedMs int64       `json:"elapsed_ms"`
	Error     string      `json:"error,omitempty"`
}

// CanonicalEvidence is Stage 1's structured extraction of the input.
type CanonicalEvidence struct {
	SourceExcerpt string `json:"source_excerpt,omitempty"`
	EntityHints   []string `json:"entity_hints,omitempty"`
}

// QueryPack is Stage 2's per-sub-claim set of search instructions.
type QueryPack struct {
	WikiDB     []WikiQuery `json:"wiki_db"`
	NewsSearch []string    `json:"news_search"`
}

type WikiQuery struct {
	Mode string `json:"mode"` // "title" | "fulltext"
	Q    string `json:"q"`
}

type ClaimType string

const (
	ClaimTypeEvent     ClaimType = "사건"
	ClaimTypeLogic     ClaimType = "논리"
	ClaimTypeStatistic ClaimType = "통계"
	ClaimTypeQuotation ClaimType = "인용"
	ClaimTypePolicy    ClaimType = "정책"
)

type TimeSensitivity string

const (
	TimeSensitivityLow  TimeSensitivity = "low"
	TimeSensitivityMid  TimeSensitivity = "mid"
	TimeSensitivityHigh TimeSensitivity = "high"
)

// QuerygenClaim is one of up to three sub-claims Stage 2 derives.
type QuerygenClaim struct {
	ClaimID         string          `json:"claim_id"` // C1 | C2 | C3
	ClaimType       ClaimType       `json:"claim_type"`
	TimeSensitivity TimeSensitivity `json:"time_sensitivity"`
	QueryPack       QueryPack       `json:"query_pack"`
}

// QueryVariant is one flattened search instruction, produced both as the
// Stage 2 `query_variants` view and the adapter's `search_queries` view.
type QueryVariant struct {
	Text string    `json:"text"`
	Type QueryType `json:"type"`
}

// EvidenceCandidate is a retrieved snippet with provenance and a prior trust.
type EvidenceCandidate struct {
	ID          string     `json:"id"`
	SourceType  SourceType `json:"source_type"`
	Title       string     `json:"title"`
	URL         string     `json:"url,omitempty"`
	Snippet     string     `json:"snippet"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	TrustPrior  float64    `json:"trust_prior"`
}

// ScoredEvidence augments a candidate with a relevance score.
type ScoredEvidence struct {
	EvidenceCandidate
	Relevance float64 `json:"relevance"`
	Retained  bool    `json:"retained"`
}

// Citation is an evidence candidate selected by a verifier, with a bounded
// quote (<= 500 chars per spec.md §9 design notes).
type Citation struct {
	EvidenceID string  `json:"evidence_id"`
	Quote      string  `json:"quote"`
	Relevance  float64 `json:"relevance"`
}

// MaxQuoteLength is the hard cap on a citation quote. The UI may ellipsize
// earlier; the core only enforces this bound.
const MaxQuoteLength = 500

// VerdictPack is the Stage 6/7 output shape.
type VerdictPack struct {
	Stance     Stance     `json:"stance"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
	Citations  []Citation `json:"citations"`

	ParseOK           bool `json:"parse_ok"`
	ParseRetryUsed    bool `json:"parse_retry_used"`
	CitationValidCount int `json:"citation_valid_count"`
}

// DraftVerdict is Stage 8's deterministic merge of the two verdict packs.
type DraftVerdict struct {
	Stance          VerdictLabel `json:"stance"`
	RationaleSummary string      `json:"rationale_summary"`
}

// FinalVerdict is Stage 9's adjudicated output.
type FinalVerdict struct {
	Label                  VerdictLabel `json:"label"`
	Confidence             float64      `json:"confidence"`
	Summary                string       `json:"summary"`
	Rationale             []string     `json:"rationale"`
	SelectedEvidenceIDs    []string     `json:"selected_evidence_ids"`
	Limitations           []string     `json:"limitations"`
	RecommendedNextSteps  []string     `json:"recommended_next_steps"`
}

type ModelInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Version  string `json:"version,omitempty"`
}

// Stage9Diagnostics records Stage 9's own health signals.
type Stage9Diagnostics struct {
	SchemaMismatch        bool `json:"schema_mismatch"`
	FailClosed            bool `json:"fail_closed"`
	SelectedEvidenceCount int  `json:"selected_evidence_count"`
}

// ScoreDiagnostics is the Stage 4 summary.
type ScoreDiagnostics struct {
	PassCount   int     `json:"pass_count"`
	PassRate    float64 `json:"pass_rate"`
	TotalScored int     `json:"total_scored"`
}

// TopKDiagnostics is the Stage 5 summary.
type TopKDiagnostics struct {
	KSupport       int     `json:"k_support"`
	KSkeptic       int     `json:"k_skeptic"`
	AvgTrustSupport float64 `json:"avg_trust_support"`
	AvgTrustSkeptic float64 `json:"avg_trust_skeptic"`
}

// Stage03MergeStats is the Stage 3 merge summary.
type Stage03MergeStats struct {
	WikiCount     int `json:"wiki_count"`
	NewsCount     int `json:"news_count"`
	WebCount      int `json:"web_count"`
	FilteredCount int `json:"filtered_count"`
}

// JudgePrepMeta is the Stage 8 input summary.
type JudgePrepMeta struct {
	SupportCitationCount int  `json:"support_citation_count"`
	SkepticCitationCount int  `json:"skeptic_citation_count"`
	StanceBalanced       bool `json:"stance_balanced"`
}

// State is PipelineState: a single structured record threaded through all
// stages. Stages mutate only the fields they own; earlier fields are never
// rewritten by later stages except the service layer's own derived fields
// (latency_ms, created_at).
type State struct {
	// Identity & config.
	TraceID             string        `json:"trace_id"`
	InputType           InputType     `json:"input_type"`
	InputPayload        string        `json:"input_payload"`
	UserRequest         string        `json:"user_request,omitempty"`
	Language            string        `json:"language"`
	IncludeFullOutputs  bool          `json:"include_full_outputs"`
	StartStage          string        `json:"start_stage,omitempty"`
	EndStage            string        `json:"end_stage,omitempty"`
	NormalizeMode       NormalizeMode `json:"normalize_mode"`
	CheckpointThreadID  string        `json:"checkpoint_thread_id,omitempty"`
	CheckpointResume    bool          `json:"checkpoint_resume"`
	StrictPipeline      bool          `json:"strict_pipeline"`

	// Stage 1.
	ClaimText         string             `json:"claim_text,omitempty"`
	ClaimMode         ClaimMode          `json:"claim_mode,omitempty"`
	CanonicalEvidence CanonicalEvidence  `json:"canonical_evidence,omitempty"`

	// Stage 2.
	QueryVariants    []QueryVariant    `json:"query_variants,omitempty"`
	QuerygenClaims   []QuerygenClaim   `json:"querygen_claims,omitempty"`

	// Adapter.
	SearchQueries []QueryVariant `json:"search_queries,omitempty"`

	// Stage 3.
	WikiCandidates     []EvidenceCandidate `json:"wiki_candidates,omitempty"`
	WebCandidates      []EvidenceCandidate `json:"web_candidates,omitempty"`
	EvidenceCandidates []EvidenceCandidate `json:"evidence_candidates,omitempty"`
	Stage03MergeStats  Stage03MergeStats   `json:"stage03_merge_stats"`

	// Stage 4.
	ScoredEvidence   []ScoredEvidence `json:"scored_evidence,omitempty"`
	ScoreDiagnostics ScoreDiagnostics `json:"score_diagnostics"`

	// Stage 5.
	EvidenceTopKSupport []ScoredEvidence `json:"evidence_topk_support,omitempty"`
	EvidenceTopKSkeptic []ScoredEvidence `json:"evidence_topk_skeptic,omitempty"`
	Citations           []Citation       `json:"citations,omitempty"`
	TopKDiagnostics     TopKDiagnostics  `json:"topk_diagnostics"`

	// Stage 6/7.
	VerdictSupport VerdictPack `json:"verdict_support"`
	VerdictSkeptic VerdictPack `json:"verdict_skeptic"`

	// Stage 8.
	JudgePrepMeta JudgePrepMeta `json:"judge_prep_meta"`
	DraftVerdict  DraftVerdict  `json:"draft_verdict"`
	QualityScore  float64       `json:"quality_score"`

	// Stage 9.
	FinalVerdict      FinalVerdict      `json:"final_verdict"`
	ModelInfo         ModelInfo         `json:"model_info"`
	Stage09Diagnostics Stage9Diagnostics `json:"stage09_diagnostics"`

	// Cross-cutting.
	RiskFlags         *pipelineerr.FlagSet   `json:"-"`
	StageLogs         []StageLog             `json:"stage_logs,omitempty"`
	StageOutputs      map[string]any         `json:"stage_outputs,omitempty"`
	StageFullOutputs  map[string]any         `json:"stage_full_outputs,omitempty"`
	LatencyMs         int64                  `json:"latency_ms"`
	CreatedAt         time.Time              `json:"created_at"`
	CheckpointResumed bool                   `json:"checkpoint_resumed"`
	CheckpointExpired bool                   `json:"checkpoint_expired"`
}

// New constructs a State with trace_id set exactly once (invariant 1) and
// every map/set field initialized so stages never nil-check them.
func New(traceID string) *State {
	return &State{
		TraceID:          traceID,
		RiskFlags:        pipelineerr.NewFlagSet(),
		StageOutputs:     make(map[string]any),
		StageFullOutputs: make(map[string]any),
	}
}

// AppendStageLog records a stage's outcome. Called exactly once per stage
// per run (invariant 2).
func (s *State) AppendStageLog(stage string, status StageStatus, elapsed time.Duration, err error) {
	entry := StageLog{Stage: stage, Status: status, ElapsedMs: elapsed.Milliseconds()}
	if err != nil {
		entry.Error = err.Error()
	}
	s.StageLogs = append(s.StageLogs, entry)
}

// SetStageOutput records the compact summary for stage (invariant 3: set
// iff the stage reached success or a partial-failure fallback).
func (s *State) SetStageOutput(stage string, summary any) {
	if s.StageOutputs == nil {
		s.StageOutputs = make(map[string]any)
	}
	s.StageOutputs[stage] = summary
}

// SetStageFullOutput records the full payload, only retained by callers
// when IncludeFullOutputs is set.
func (s *State) SetStageFullOutput(stage string, full any) {
	if !s.IncludeFullOutputs {
		return
	}
	if s.StageFullOutputs == nil {
		s.StageFullOutputs = make(map[string]any)
	}
	s.StageFullOutputs[stage] = full
}

// EvidenceByID indexes EvidenceCandidates by id, used to validate citation
// references (invariant 4).
func (s *State) EvidenceByID() map[string]EvidenceCandidate {
	idx := make(map[string]EvidenceCandidate, len(s.EvidenceCandidates))
	for _, c := range s.EvidenceCandidates {
		idx[c.ID] = c
	}
	return idx
}
