// Package metrics exposes Prometheus counters and histograms for the
// pipeline's stage latencies, external-call outcomes, and checkpoint
// behavior. This is ambient observability, carried even though the
// specification's non-goals exclude a UI/dashboard layer — an operator
// still needs /metrics to see what the pipeline is doing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageDuration records wall-clock time spent in each of the nine
	// pipeline stages, labeled by stage name (e.g. "stage01_normalize").
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "truthgraph_stage_duration_seconds",
		Help:    "Time spent executing a single pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// StageFailuresTotal counts recoverable stage-local failures, labeled
	// by stage name and the risk flag raised.
	StageFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "truthgraph_stage_failures_total",
		Help: "Recoverable stage-local failures, by stage and risk flag.",
	}, []string{"stage", "flag"})

	// PipelineRunsTotal counts completed runs, labeled by final verdict
	// label and whether the run was refused by the policy gate.
	PipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "truthgraph_pipeline_runs_total",
		Help: "Completed pipeline runs, by final verdict label.",
	}, []string{"label", "refused"})

	// PipelineDuration records end-to-end run latency, labeled by final
	// verdict label.
	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "truthgraph_pipeline_duration_seconds",
		Help:    "End-to-end duration of a pipeline run.",
		Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"label"})

	// LLMCallsTotal counts LLM client invocations, labeled by role
	// (stage1and2, stage6and7, judge) and outcome (ok, error, schema_repair).
	LLMCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "truthgraph_llm_calls_total",
		Help: "LLM client calls, by role and outcome.",
	}, []string{"role", "outcome"})

	// LLMCallDuration records LLM round-trip latency, labeled by role.
	LLMCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "truthgraph_llm_call_duration_seconds",
		Help:    "LLM call latency, by role.",
		Buckets: prometheus.DefBuckets,
	}, []string{"role"})

	// SearchCallsTotal counts external search provider calls, labeled by
	// provider (wikipedia, news, web) and outcome.
	SearchCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "truthgraph_search_calls_total",
		Help: "External search provider calls, by provider and outcome.",
	}, []string{"provider", "outcome"})

	// CheckpointHitsTotal counts checkpoint reads that found a usable step,
	// labeled by stage.
	CheckpointHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "truthgraph_checkpoint_hits_total",
		Help: "Checkpoint step reads that found a usable prior result, by stage.",
	}, []string{"stage"})

	// CheckpointExpiredTotal counts checkpoint reads that found an expired
	// or missing thread.
	CheckpointExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "truthgraph_checkpoint_expired_total",
		Help: "Checkpoint thread lookups that found an expired or missing thread.",
	})

	// RiskFlagsTotal counts every risk flag raised across all runs.
	RiskFlagsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "truthgraph_risk_flags_total",
		Help: "Risk flags raised, by flag.",
	}, []string{"flag"})
)

// RecordStage records a stage's elapsed duration.
func RecordStage(stage string, elapsed time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// RecordStageFailure increments the failure counter for a stage/flag pair.
func RecordStageFailure(stage, flag string) {
	StageFailuresTotal.WithLabelValues(stage, flag).Inc()
}

// RecordPipelineRun records a completed run's outcome and latency.
func RecordPipelineRun(label string, refused bool, elapsed time.Duration) {
	PipelineRunsTotal.WithLabelValues(label, boolLabel(refused)).Inc()
	PipelineDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// RecordLLMCall records one LLM client invocation's outcome and latency.
func RecordLLMCall(role, outcome string, elapsed time.Duration) {
	LLMCallsTotal.WithLabelValues(role, outcome).Inc()
	LLMCallDuration.WithLabelValues(role).Observe(elapsed.Seconds())
}

// RecordSearchCall records one external search provider call's outcome.
func RecordSearchCall(provider, outcome string) {
	SearchCallsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordCheckpointHit records a checkpoint read that found a usable step
// for the given stage.
func RecordCheckpointHit(stage string) {
	CheckpointHitsTotal.WithLabelValues(stage).Inc()
}

// RecordCheckpointExpired records a checkpoint lookup against an expired or
// missing thread.
func RecordCheckpointExpired() {
	CheckpointExpiredTotal.Inc()
}

// RecordRiskFlag records a single risk flag raised anywhere in a run.
func RecordRiskFlag(flag string) {
	RiskFlagsTotal.WithLabelValues(flag).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
