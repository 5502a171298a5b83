// Package search implements the news and web external evidence providers
// (spec.md §4.5): keyed REST + keyless fallback, each concurrency-capped
// and backoff-disciplined, each fail-closed-to-empty rather than
// propagating failures into the pipeline.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/codeready-toolchain/truthgraph/pkg/config"
	"github.com/codeready-toolchain/truthgraph/pkg/pipeline"
	"github.com/codeready-toolchain/truthgraph/pkg/ratelimit"
)

// trustAllowlist gives a coarse trust_prior by domain class: press domains
// score above blogs, which score above unknown (spec.md §4.3).
var trustAllowlist = map[string]float64{
	"reuters.com":   0.9,
	"apnews.com":    0.9,
	"bbc.com":       0.85,
	"yonhapnews.co.kr": 0.85,
	"chosun.com":    0.7,
	"joongang.co.kr": 0.7,
}

func trustPriorFor(rawURL string) float64 {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0.4
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if v, ok := trustAllowlist[host]; ok {
		return v
	}
	return 0.4
}

// NewsClient is a keyed commercial news-search REST provider.
type NewsClient struct {
	httpClient *http.Client
	cfg        config.SearchProviderConfig
	retry      config.RetryConfig
	limiter    *ratelimit.ProviderLimiter
	breaker    *gobreaker.CircuitBreaker
}

func NewNewsClient(cfg config.SearchProviderConfig, retry config.RetryConfig) *NewsClient {
	return &NewsClient{
		httpClient: &http.Client{},
		cfg:        cfg,
		retry:      retry,
		limiter:    ratelimit.NewProviderLimiter(cfg.Concurrency),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "news-search",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		}),
	}
}

type newsAPIResult struct {
	Articles []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Search queries the provider for q, retrying on 429/5xx with backoff.
// On exhaustion it returns an empty slice — no error ever propagates to the
// pipeline (spec.md §4.3: "On exhaustion, return empty results").
func (c *NewsClient) Search(ctx context.Context, q string) []pipeline.EvidenceCandidate {
	if c.cfg.APIKey == "" || c.cfg.BaseURL == "" {
		return nil
	}
	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return nil
	}
	defer release()

	result, err := c.breaker.Execute(func() (any, error) {
		return c.searchWithRetry(ctx, q)
	})
	if err != nil {
		slog.Warn("search: news provider unavailable, returning empty", "error", err)
		return nil
	}
	return result.([]pipeline.EvidenceCandidate)
}

func (c *NewsClient) searchWithRetry(ctx context.Context, q string) ([]pipeline.EvidenceCandidate, error) {
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

func (c *NewsClient) searchOnce(ctx context.Context, q string) ([]pipeline.EvidenceCandidate, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.retry.PerAttemptTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s?q=%s&apiKey=%s", c.cfg.BaseURL, url.QueryEscape(q), c.cfg.APIKey)
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
		return nil, resp.StatusCode, fmt.Errorf("news provider returned %d", resp.StatusCode)
	}

	var parsed newsAPIResult
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, resp.StatusCode, err
	}

	out := make([]pipeline.EvidenceCandidate, 0, len(parsed.Articles))
	for i, a := range parsed.Articles {
		var published *time.Time
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			published = &t
		}
		out = append(out, pipeline.EvidenceCandidate{
			ID:          fmt.Sprintf("news:%d:%s", i, a.URL),
			SourceType:  pipeline.SourceNews,
			Title:       a.Title,
			URL:         a.URL,
			Snippet:     a.Description,
			PublishedAt: published,
			TrustPrior:  trustPriorFor(a.URL),
		})
	}
	return out, resp.StatusCode, nil
}
