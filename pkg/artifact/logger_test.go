package artifact_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Write_CreatesStageFileAndIndex(t *testing.T) {
	runDir := t.TempDir()
	logger := artifact.New(runDir)

	logger.Write("trace-1", "stage01_normalize", 12*time.Millisecond,
		map[string]any{"claim_mode": "fact"}, "", "", "", artifact.GuardrailHints{ParseOK: true})

	stageFile := filepath.Join(runDir, "trace-1", "stage01_normalize.json")
	raw, err := os.ReadFile(stageFile)
	require.NoError(t, err)

	var rec artifact.Record
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, "trace-1", rec.TraceID)
	assert.Equal(t, "stage01_normalize", rec.Stage)
	assert.Equal(t, int64(12), rec.DurationMS)
	assert.Equal(t, []string{"claim_mode"}, rec.StageJSONKeys)
	assert.Nil(t, rec.LLM)
}

func TestLogger_Write_NeverStoresRawPromptText(t *testing.T) {
	runDir := t.TempDir()
	logger := artifact.New(runDir)

	logger.Write("trace-2", "stage04_score", time.Millisecond, map[string]any{},
		"the user prompt with secrets", "a system prompt", "raw llm output", artifact.GuardrailHints{})

	raw, err := os.ReadFile(filepath.Join(runDir, "trace-2", "stage04_score.json"))
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "secrets")
	assert.NotContains(t, string(raw), "raw llm output")

	var rec artifact.Record
	require.NoError(t, json.Unmarshal(raw, &rec))
	require.NotNil(t, rec.LLM)
	assert.Len(t, rec.LLM.PromptUserSHA256, 64)
	assert.Len(t, rec.LLM.PromptSystemSHA256, 64)
	assert.Len(t, rec.LLM.RawOutputSHA256, 64)
}

func TestLogger_Write_AppendsToPerRunAndGlobalIndex(t *testing.T) {
	runDir := t.TempDir()
	logger := artifact.New(runDir)

	logger.Write("trace-3", "stage01_normalize", time.Millisecond, map[string]any{}, "", "", "", artifact.GuardrailHints{})
	logger.Write("trace-3", "stage02_querygen", time.Millisecond, map[string]any{}, "", "", "", artifact.GuardrailHints{})

	perRun, err := os.ReadFile(filepath.Join(runDir, "trace-3", "run.jsonl"))
	require.NoError(t, err)
	assert.Len(t, splitLines(perRun), 2)

	index, err := os.ReadFile(filepath.Join(runDir, "..", "index.jsonl"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(splitLines(index)), 2)
}

func TestLogger_Write_OmitsLLMWhenAllPromptFieldsEmpty(t *testing.T) {
	runDir := t.TempDir()
	logger := artifact.New(runDir)

	logger.Write("trace-4", "stage03_collect", time.Millisecond,
		map[string]any{"wiki_hits": 3, "web_hits": 1}, "", "", "", artifact.GuardrailHints{})

	raw, err := os.ReadFile(filepath.Join(runDir, "trace-4", "stage03_collect.json"))
	require.NoError(t, err)

	var rec artifact.Record
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Nil(t, rec.LLM)
	assert.Equal(t, []string{"web_hits", "wiki_hits"}, rec.StageJSONKeys)
}

func splitLines(b []byte) []string {
	var out []string
	start := 0
	for i, c := range b {
		if c == '\n' {
			if i > start {
				out = append(out, string(b[start:i]))
			}
			start = i + 1
		}
	}
	return out
}
