package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// acceptedContentTypes restricts fetched pages to text the normalize stage
// can plausibly extract a claim from; binary responses (images, PDFs,
// archives) are rejected rather than read and handed to an LLM as text.
var acceptedContentTypes = []string{"text/html", "text/plain", "application/xhtml+xml", "application/json"}

// HTTPClient fetches a single URL's body, capped in size and time.
type HTTPClient struct {
	httpClient *http.Client
	maxBody    int64
}

// NewHTTPClient creates a client with the given per-request timeout and
// maximum response body size.
func NewHTTPClient(timeout time.Duration, maxBodyBytes int64) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		maxBody:    maxBodyBytes,
	}
}

// Download performs a GET request and returns the body as a string, capped
// at maxBody bytes. Rejects non-textual content types and non-2xx statuses.
func (c *HTTPClient) Download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "truthgraph-fetch/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain,application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d for %s", resp.StatusCode, rawURL)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !hasAcceptedContentType(ct) {
		return "", fmt.Errorf("unsupported content type %q for %s", ct, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		body = body[:c.maxBody]
	}

	return string(body), nil
}

func hasAcceptedContentType(contentType string) bool {
	base, _, _ := strings.Cut(contentType, ";")
	base = strings.TrimSpace(strings.ToLower(base))
	for _, accepted := range acceptedContentTypes {
		if base == accepted {
			return true
		}
	}
	return false
}
