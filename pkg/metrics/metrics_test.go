package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordStage(t *testing.T) {
	initial := testutil.CollectAndCount(StageDuration)
	RecordStage("stage01_normalize", 10*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(StageDuration), initial)
}

func TestRecordStageFailure(t *testing.T) {
	initial := testutil.ToFloat64(StageFailuresTotal.WithLabelValues("stage01_normalize", "NORMALIZE_FAILED"))
	RecordStageFailure("stage01_normalize", "NORMALIZE_FAILED")
	final := testutil.ToFloat64(StageFailuresTotal.WithLabelValues("stage01_normalize", "NORMALIZE_FAILED"))
	assert.Equal(t, initial+1.0, final)
}

func TestRecordPipelineRun(t *testing.T) {
	initial := testutil.ToFloat64(PipelineRunsTotal.WithLabelValues("TRUE", "false"))
	RecordPipelineRun("TRUE", false, 2*time.Second)
	final := testutil.ToFloat64(PipelineRunsTotal.WithLabelValues("TRUE", "false"))
	assert.Equal(t, initial+1.0, final)
}

func TestRecordLLMCall(t *testing.T) {
	initial := testutil.ToFloat64(LLMCallsTotal.WithLabelValues("judge", "ok"))
	RecordLLMCall("judge", "ok", 500*time.Millisecond)
	final := testutil.ToFloat64(LLMCallsTotal.WithLabelValues("judge", "ok"))
	assert.Equal(t, initial+1.0, final)
}

func TestRecordSearchCall(t *testing.T) {
	initial := testutil.ToFloat64(SearchCallsTotal.WithLabelValues("news", "ok"))
	RecordSearchCall("news", "ok")
	final := testutil.ToFloat64(SearchCallsTotal.WithLabelValues("news", "ok"))
	assert.Equal(t, initial+1.0, final)
}

func TestRecordCheckpointHitAndExpired(t *testing.T) {
	initialHit := testutil.ToFloat64(CheckpointHitsTotal.WithLabelValues("resolve"))
	RecordCheckpointHit("resolve")
	assert.Equal(t, initialHit+1.0, testutil.ToFloat64(CheckpointHitsTotal.WithLabelValues("resolve")))

	initialExpired := testutil.ToFloat64(CheckpointExpiredTotal)
	RecordCheckpointExpired()
	assert.Equal(t, initialExpired+1.0, testutil.ToFloat64(CheckpointExpiredTotal))
}

func TestRecordRiskFlag(t *testing.T) {
	initial := testutil.ToFloat64(RiskFlagsTotal.WithLabelValues("LOW_EVIDENCE"))
	RecordRiskFlag("LOW_EVIDENCE")
	final := testutil.ToFloat64(RiskFlagsTotal.WithLabelValues("LOW_EVIDENCE"))
	assert.Equal(t, initial+1.0, final)
}

func TestBoolLabel(t *testing.T) {
	assert.Equal(t, "true", boolLabel(true))
	assert.Equal(t, "false", boolLabel(false))
}
