package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_MetricsAndHealthEndpoints(t *testing.T) {
	server := NewServer("19090", nil)
	server.StartAsync()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Stop(ctx)
	}()

	time.Sleep(200 * time.Millisecond)

	resp, err := http.Get("http://localhost:19090/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "# HELP")

	healthResp, err := http.Get("http://localhost:19090/health")
	require.NoError(t, err)
	defer healthResp.Body.Close()
	assert.Equal(t, http.StatusOK, healthResp.StatusCode)
}

func TestNewServer_AddsColonPrefix(t *testing.T) {
	server := NewServer("8080", nil)
	assert.Equal(t, ":8080", server.server.Addr)
}

func TestNewServer_PassthroughWhenColonPresent(t *testing.T) {
	server := NewServer("0.0.0.0:8080", nil)
	assert.Equal(t, "0.0.0.0:8080", server.server.Addr)
}
