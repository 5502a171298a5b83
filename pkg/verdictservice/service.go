// Package verdictservice exposes the pipeline's two public entry points:
// Run (awaitable) and RunStream (sequence of events) — spec.md §4.1.
// Initial-state construction is shared by both so they can never drift.
package verdictservice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/truthgraph/pkg/checkpoint"
	"github.com/codeready-toolchain/truthgraph/pkg/metrics"
	"github.com/codeready-toolchain/truthgraph/pkg/orchestrator"
	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
	"github.com/codeready-toolchain/truthgraph/pkg/verdictstore"
)

// Request is the public request shape shared by both entry points
// (spec.md §6).
type Request struct {
	InputType          pipeline.InputType
	InputPayload       string
	UserRequest        string
	Language           string
	IncludeFullOutputs bool
	StartStage         string
	EndStage           string
	NormalizeMode      pipeline.NormalizeMode
	CheckpointThreadID string
	CheckpointResume   bool
}

// Response is the public synchronous response shape (spec.md §6).
type Response struct {
	AnalysisID           string               `json:"analysis_id"`
	Label                pipeline.VerdictLabel `json:"label"`
	Confidence           float64              `json:"confidence"`
	Summary              string               `json:"summary"`
	Rationale            []string             `json:"rationale"`
	Citations            []pipeline.Citation  `json:"citations"`
	CounterEvidence      []pipeline.Citation  `json:"counter_evidence"`
	Limitations          []string             `json:"limitations"`
	RecommendedNextSteps []string             `json:"recommended_next_steps"`
	RiskFlags            []string             `json:"risk_flags"`
	ModelInfo            pipeline.ModelInfo   `json:"model_info"`
	LatencyMs            int64                `json:"latency_ms"`
	CreatedAt            time.Time            `json:"created_at"`
	CheckpointThreadID   string               `json:"checkpoint_thread_id"`
	CheckpointResumed    bool                 `json:"checkpoint_resumed"`
	CheckpointExpired    bool                 `json:"checkpoint_expired"`
	StageOutputs         map[string]any       `json:"stage_outputs"`
	StageLogs            []pipeline.StageLog  `json:"stage_logs"`
	StageFullOutputs     map[string]any       `json:"stage_full_outputs"`
}

// Service wires the graph, checkpoint manager, and persistence layer into
// the two public operations.
type Service struct {
	graph      *orchestrator.Graph
	checkpoint *checkpoint.Manager
	store      *verdictstore.Store
	strict     bool
	heartbeat  time.Duration
}

func New(graph *orchestrator.Graph, cp *checkpoint.Manager, store *verdictstore.Store, strictPipeline bool, heartbeat time.Duration) *Service {
	return &Service{graph: graph, checkpoint: cp, store: store, strict: strictPipeline, heartbeat: heartbeat}
}

// buildInitialState is the single function used by both Run and RunStream
// (spec.md §4.1: "eliminates drift between sync and streaming").
func (s *Service) buildInitialState(ctx context.Context, req Request) *pipeline.State {
	traceID := uuid.NewString()
	st := pipeline.New(traceID)

	st.InputType = req.InputType
	st.InputPayload = req.InputPayload
	st.UserRequest = req.UserRequest
	st.Language = req.Language
	if st.Language == "" {
		st.Language = "ko"
	}
	st.IncludeFullOutputs = req.IncludeFullOutputs
	st.StartStage = req.StartStage
	st.EndStage = req.EndStage
	st.NormalizeMode = req.NormalizeMode
	if st.NormalizeMode == "" {
		st.NormalizeMode = pipeline.NormalizeLLM
	}
	st.CheckpointResume = req.CheckpointResume
	st.StrictPipeline = s.strict
	st.CreatedAt = time.Now().UTC()

	if s.checkpoint != nil {
		res := s.checkpoint.Resolve(ctx, req.CheckpointThreadID, req.CheckpointResume)
		st.CheckpointThreadID = res.ThreadID
		st.CheckpointResumed = res.Resumed
		st.CheckpointExpired = res.Expired
	} else {
		st.CheckpointThreadID = req.CheckpointThreadID
		if st.CheckpointThreadID == "" {
			st.CheckpointThreadID = traceID
		}
	}

	if req.InputType == pipeline.InputImage {
		st.RiskFlags.Add(pipelineerr.FlagLowEvidence)
	}

	return st
}

// Run constructs initial state, runs the graph to completion, and returns
// a fully populated response (spec.md §4.1). refused carries the caller's
// upstream policy-gate decision (internal/policygate, evaluated against
// the raw input before this call) — the refusal policy itself lives
// outside the graph/service boundary per spec.md §4.3.
func (s *Service) Run(ctx context.Context, req Request, refused bool) (*Response, error) {
	st := s.buildInitialState(ctx, req)
	start := time.Now()

	err := s.runGraph(ctx, st, refused, nil)
	st.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		if s.strict {
			return nil, pipelineerr.NewService(pipelineerr.KindPipelineExecutionFailed, err)
		}
		st.RiskFlags.Add(pipelineerr.FlagPipelineCrash)
		st.FinalVerdict.Label = pipeline.LabelUnverified
	}

	s.persist(ctx, st)
	s.recordOutcome(st, time.Duration(st.LatencyMs)*time.Millisecond, refused)
	return buildResponse(st), nil
}

// RunStream is Run's streaming variant: it yields stream_open, per-stage
// progress, periodic heartbeats, and exactly one terminal complete/error
// event (spec.md §4.1/§6).
func (s *Service) RunStream(ctx context.Context, req Request, refused bool) (<-chan orchestrator.Event, error) {
	st := s.buildInitialState(ctx, req)

	out := make(chan orchestrator.Event, 16)
	internal := make(chan orchestrator.Event, 16)

	go func() {
		defer close(out)
		out <- orchestrator.Event{Event: "stream_open", TraceID: st.TraceID, Ts: time.Now().UTC().Format(time.RFC3339Nano)}

		graphDone := make(chan error, 1)
		start := time.Now()
		go func() {
			graphDone <- s.runGraph(ctx, st, refused, internal)
		}()

		s.pumpWithHeartbeat(ctx, st, internal, out, graphDone, start, refused)
	}()

	return out, nil
}

// pumpWithHeartbeat forwards stage events and emits a heartbeat after N
// seconds of idleness, then the terminal event once the graph finishes.
func (s *Service) pumpWithHeartbeat(ctx context.Context, st *pipeline.State, internal <-chan orchestrator.Event, out chan<- orchestrator.Event, graphDone <-chan error, start time.Time, refused bool) {
	interval := s.heartbeat
	if interval <= 0 {
		interval = 8 * time.Second
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	lastActivity := time.Now()

	currentStage := ""
	for {
		select {
		case ev, ok := <-internal:
			if !ok {
				internal = nil
				continue
			}
			if ev.Stage != "" {
				currentStage = ev.Stage
			}
			lastActivity = time.Now()
			out <- ev
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(interval)

		case <-timer.C:
			out <- orchestrator.Event{
				Event: "heartbeat", Stage: currentStage,
				IdleMs: time.Since(lastActivity).Milliseconds(),
				Ts:     time.Now().UTC().Format(time.RFC3339Nano),
			}
			timer.Reset(interval)

		case err := <-graphDone:
			st.LatencyMs = time.Since(start).Milliseconds()
			s.emitTerminal(ctx, st, err, out, refused)
			return

		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) emitTerminal(ctx context.Context, st *pipeline.State, err error, out chan<- orchestrator.Event, refused bool) {
	if err != nil {
		code := pipelineerr.KindPipelineStreamInitFailed
		if perr, ok := err.(*pipelineerr.Error); ok {
			code = perr.Kind
		}
		out <- orchestrator.Event{
			Event: "error",
			Data: map[string]any{
				"code": code, "stage": currentFailedStage(st),
				"message": err.Error(), "display_message": "The fact-check could not be completed.",
			},
			Ts: time.Now().UTC().Format(time.RFC3339Nano),
		}
		return
	}
	s.persist(ctx, st)
	s.recordOutcome(st, time.Duration(st.LatencyMs)*time.Millisecond, refused)
	out <- orchestrator.Event{Event: "complete", Data: buildResponse(st), Ts: time.Now().UTC().Format(time.RFC3339Nano)}
}

func currentFailedStage(st *pipeline.State) string {
	for i := len(st.StageLogs) - 1; i >= 0; i-- {
		if st.StageLogs[i].Status == pipeline.StageError {
			return st.StageLogs[i].Stage
		}
	}
	return ""
}

// runGraph executes the graph and recovers any panic into a
// PIPELINE_CRASH service error, matching the lenient-mode requirement
// that a crash becomes a risk flag rather than taking down the process.
func (s *Service) runGraph(ctx context.Context, st *pipeline.State, refused bool, events chan<- orchestrator.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pipelineerr.NewService(pipelineerr.KindPipelineCrash, fmt.Errorf("panic: %v", r))
		}
	}()
	s.graph.RunStream(ctx, st, refused, events)
	return nil
}

// recordOutcome reports the run's final label/latency and every risk flag
// raised, to the ambient Prometheus collectors.
func (s *Service) recordOutcome(st *pipeline.State, elapsed time.Duration, refused bool) {
	metrics.RecordPipelineRun(string(st.FinalVerdict.Label), refused, elapsed)
	for _, flag := range st.RiskFlags.Slice() {
		metrics.RecordRiskFlag(string(flag))
	}
}

func (s *Service) persist(ctx context.Context, st *pipeline.State) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, st, flagStrings(st.RiskFlags.Slice())); err != nil {
		st.RiskFlags.Add(pipelineerr.FlagPersistenceFailed)
	}
}

func buildResponse(st *pipeline.State) *Response {
	return &Response{
		AnalysisID:           st.TraceID,
		Label:                st.FinalVerdict.Label,
		Confidence:           st.FinalVerdict.Confidence,
		Summary:              st.FinalVerdict.Summary,
		Rationale:            st.FinalVerdict.Rationale,
		Citations:            st.Citations,
		CounterEvidence:      skepticCitations(st),
		Limitations:          st.FinalVerdict.Limitations,
		RecommendedNextSteps: st.FinalVerdict.RecommendedNextSteps,
		RiskFlags:            flagStrings(st.RiskFlags.Slice()),
		ModelInfo:            st.ModelInfo,
		LatencyMs:            st.LatencyMs,
		CreatedAt:            st.CreatedAt,
		CheckpointThreadID:   st.CheckpointThreadID,
		CheckpointResumed:    st.CheckpointResumed,
		CheckpointExpired:    st.CheckpointExpired,
		StageOutputs:         st.StageOutputs,
		StageLogs:            st.StageLogs,
		StageFullOutputs:     st.StageFullOutputs,
	}
}

// skepticCitations surfaces the skeptic pool's own verdict-pack citations
// as the response's counter_evidence view, distinct from the curated
// (primarily support-drawn) citations list.
func skepticCitations(st *pipeline.State) []pipeline.Citation {
	return st.VerdictSkeptic.Citations
}

func flagStrings(flags []pipelineerr.RiskFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}
