package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/codeready-toolchain/truthgraph/pkg/config"
	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/ratelimit"
)

// WebClient is a keyless library-backed general web-search provider. It
// shares the same timeout/retry/concurrency discipline as NewsClient but
// has no circuit breaker: spec.md §4.5 only requires the breaker on the
// keyed provider.
type WebClient struct {
	httpClient *http.Client
	cfg        config.SearchProviderConfig
	retry      config.RetryConfig
	limiter    *ratelimit.ProviderLimiter
}

func NewWebClient(cfg config.SearchProviderConfig, retry config.RetryConfig) *WebClient {
	return &WebClient{
		httpClient: &http.Client{},
		cfg:        cfg,
		retry:      retry,
		limiter:    ratelimit.NewProviderLimiter(cfg.Concurrency),
	}
}

type webSearchResult struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

// Search runs a keyless web search for q, enforcing a time-bounded
// await over the blocking call (spec.md §4.5). Always returns — never an
// error — so a provider outage degrades to "no web evidence" rather than
// failing the stage.
func (c *WebClient) Search(ctx context.Context, q string) []pipeline.EvidenceCandidate {
	if c.cfg.BaseURL == "" {
		return nil
	}
	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return nil
	}
	defer release()

	candidates, err := c.searchWithRetry(ctx, q)
	if err != nil {
		slog.Warn("search: web provider unavailable, returning empty", "error", err)
		return nil
	}
	return candidates
}

func (c *WebClient) searchWithRetry(ctx context.Context, q string) ([]pipeline.EvidenceCandidate, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		candidates, statusCode, err := c.searchOnce(ctx, q)
		if err == nil {
			return candidates, nil
		}
		lastErr = err
		if ratelimit.Classify(err, statusCode) == ratelimit.ActionFail {
			return nil, err
		}
		if attempt < c.retry.MaxAttempts {
			time.Sleep(ratelimit.Delay(attempt, c.retry.BaseBackoff, c.retry.MaxBackoff))
		}
	}
	return nil, lastErr
}

func (c *WebClient) searchOnce(ctx context.Context, q string) ([]pipeline.EvidenceCandidate, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.retry.PerAttemptTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s?q=%s", c.cfg.BaseURL, url.QueryEscape(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("web provider returned %d", resp.StatusCode)
	}

	var parsed webSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, resp.StatusCode, err
	}

	out := make([]pipeline.EvidenceCandidate, 0, len(parsed.Results))
	for i, r := range parsed.Results {
		out = append(out, pipeline.EvidenceCandidate{
			ID:         fmt.Sprintf("web:%d:%s", i, r.URL),
			SourceType: pipeline.SourceWeb,
			Title:      r.Title,
			URL:        r.URL,
			Snippet:    r.Snippet,
			TrustPrior: trustPriorFor(r.URL),
		})
	}
	return out, resp.StatusCode, nil
}
