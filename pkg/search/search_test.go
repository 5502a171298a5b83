package search_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/config"
	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetry() config.RetryConfig {
	return config.RetryConfig{
		PerAttemptTimeout: 2 * time.Second,
		MaxAttempts:       2,
		BaseBackoff:       time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
	}
}

func TestNewsClient_Search_MissingCredentialsReturnsNilWithoutHTTPCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := search.NewNewsClient(config.SearchProviderConfig{Concurrency: 2, BaseURL: srv.URL}, testRetry())
	got := c.Search(t.Context(), "some claim")

	assert.Nil(t, got)
	assert.False(t, called)
}

func TestNewsClient_Search_ParsesArticlesOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"articles":[{"title":"Bridge opens","url":"https://reuters.com/a","description":"it opened","publishedAt":"2024-01-02T15:04:05Z"}]}`))
	}))
	defer srv.Close()

	c := search.NewNewsClient(config.SearchProviderConfig{APIKey: "k", BaseURL: srv.URL, Concurrency: 2}, testRetry())
	got := c.Search(t.Context(), "bridge")

	require.Len(t, got, 1)
	assert.Equal(t, pipeline.SourceNews, got[0].SourceType)
	assert.Equal(t, "Bridge opens", got[0].Title)
	assert.Equal(t, 0.9, got[0].TrustPrior)
	require.NotNil(t, got[0].PublishedAt)
}

func TestNewsClient_Search_NonOKStatusExhaustsRetriesAndReturnsNil(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := search.NewNewsClient(config.SearchProviderConfig{APIKey: "k", BaseURL: srv.URL, Concurrency: 2}, testRetry())
	got := c.Search(t.Context(), "bridge")

	assert.Nil(t, got)
	assert.GreaterOrEqual(t, hits, 1)
}

func TestNewsClient_Search_BadRequestDoesNotRetry(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := search.NewNewsClient(config.SearchProviderConfig{APIKey: "k", BaseURL: srv.URL, Concurrency: 2}, testRetry())
	got := c.Search(t.Context(), "bridge")

	assert.Nil(t, got)
	assert.Equal(t, 1, hits)
}

func TestWebClient_Search_EmptyBaseURLReturnsNil(t *testing.T) {
	c := search.NewWebClient(config.SearchProviderConfig{Concurrency: 2}, testRetry())
	got := c.Search(t.Context(), "anything")
	assert.Nil(t, got)
}

func TestWebClient_Search_ParsesResultsOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"title":"Some page","url":"https://example.com/x","snippet":"a snippet"}]}`))
	}))
	defer srv.Close()

	c := search.NewWebClient(config.SearchProviderConfig{BaseURL: srv.URL, Concurrency: 2}, testRetry())
	got := c.Search(t.Context(), "claim text")

	require.Len(t, got, 1)
	assert.Equal(t, pipeline.SourceWeb, got[0].SourceType)
	assert.Equal(t, "Some page", got[0].Title)
	assert.Equal(t, 0.4, got[0].TrustPrior)
}
