package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildVerdictMessage_IncludesTraceAndFlags(t *testing.T) {
	blocks := BuildVerdictMessage(VerdictInput{
		TraceID:      "trace-123",
		Label:        "UNVERIFIED",
		Summary:      "pipeline crashed mid-run",
		RiskFlags:    []string{"PIPELINE_CRASH"},
		DashboardURL: "https://dash.example.com",
	})

	assert.NotEmpty(t, blocks)
	assert.GreaterOrEqual(t, len(blocks), 3, "header, summary, risk flags, and action block")
}

func TestBuildVerdictMessage_NoDashboardURL_OmitsButton(t *testing.T) {
	blocks := BuildVerdictMessage(VerdictInput{
		TraceID:   "trace-123",
		RiskFlags: []string{"JUDGE_FAIL_CLOSED"},
	})

	assert.NotEmpty(t, blocks)
}

func TestTruncateForSlack(t *testing.T) {
	short := "a short summary"
	assert.Equal(t, short, truncateForSlack(short))

	long := strings.Repeat("x", maxBlockTextLength+500)
	truncated := truncateForSlack(long)
	assert.Less(t, len(truncated), len(long))
	assert.Contains(t, truncated, "truncated")
}
