package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(t.Context(), dir)

	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoad_DotEnvPopulatesExpandedOverlayValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JUDGE_API_KEY=from-dotenv\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "truthgraph.yaml"),
		[]byte("slack_webhook_url: \"${JUDGE_API_KEY}\"\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("JUDGE_API_KEY") })

	cfg, err := Load(t.Context(), dir)

	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.SlackWebhookURL)
}
