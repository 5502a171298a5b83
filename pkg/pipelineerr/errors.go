// Package pipelineerr defines the pipeline's error kind taxonomy and the
// closed risk-flag vocabulary shared by every stage and the orchestrator.
package pipelineerr

import "fmt"

// Kind is an abstract label for a pipeline error condition. Kinds are never
// derived from the underlying Go error type; a stage classifies its own
// failures into one of these up front.
type Kind string

const (
	KindNormalizeFailed    Kind = "NORMALIZE_FAILED"
	KindQuerygenDegraded   Kind = "QUERYGEN_DEGRADED"
	KindCollectEmpty       Kind = "COLLECT_EMPTY"
	KindScoreDegraded      Kind = "SCORE_DEGRADED"
	KindTopKEmpty          Kind = "TOPK_EMPTY"
	KindExternalRateLimited Kind = "EXTERNAL_API_RATE_LIMITED"
	KindExternalTimeout     Kind = "EXTERNAL_API_TIMEOUT"
	KindExternalUnavailable Kind = "EXTERNAL_API_UNAVAILABLE"
	KindLLMParseFailed      Kind = "LLM_PARSE_FAILED"
	KindLLMSchemaMismatch   Kind = "LLM_SCHEMA_MISMATCH"
	KindLLMJudgeFailed      Kind = "LLM_JUDGE_FAILED"
	KindModelNotFound       Kind = "MODEL_NOT_FOUND"
	KindJudgeKeyMissing     Kind = "JUDGE_KEY_MISSING_FOR_EXTERNAL_PROVIDER"
	KindPipelineExecutionFailed Kind = "PIPELINE_EXECUTION_FAILED"
	KindPipelineStreamInitFailed Kind = "PIPELINE_STREAM_INIT_FAILED"
	KindPersistenceFailed   Kind = "PERSISTENCE_FAILED"
	KindPipelineCrash       Kind = "PIPELINE_CRASH"
)

// Severity classifies whether a Kind is recoverable (the pipeline continues
// and records a risk flag) or fatal (the caller sees a terminal response).
type Severity int

const (
	// Recoverable errors become a risk flag; the pipeline continues.
	Recoverable Severity = iota
	// Fatal errors are re-raised to the caller in strict mode, or become a
	// REFUSED/UNVERIFIED terminal response in lenient mode.
	Fatal
)

func (k Kind) Severity() Severity {
	switch k {
	case KindModelNotFound, KindJudgeKeyMissing, KindPipelineExecutionFailed,
		KindPipelineStreamInitFailed, KindPipelineCrash:
		return Fatal
	default:
		return Recoverable
	}
}

// Error wraps an underlying cause with a Kind and the stage that raised it.
// Stage is empty for service/orchestrator-level errors.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s[%s]: %v", e.Kind, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a stage-scoped pipeline error.
func New(kind Kind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// NewService builds a service/orchestrator-level pipeline error (no stage).
func NewService(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
