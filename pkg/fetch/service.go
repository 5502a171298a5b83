// Package fetch pre-fetches the raw text of a url-typed claim before it
// reaches Stage 1 (normalize). The pipeline proper never performs HTTP
// itself, per spec.md §4.3 — this is the HTTP collaborator the stage
// expects to have already run.
package fetch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/truthgraph/pkg/config"
)

// Service resolves a claim URL to its fetched body, with caching and a
// domain allowlist.
type Service struct {
	client         *HTTPClient
	cache          *Cache
	allowedDomains []string
	logger         *slog.Logger
}

// NewService builds a Service from the fetch section of the configuration.
func NewService(cfg config.FetchConfig) *Service {
	return &Service{
		client:         NewHTTPClient(cfg.Timeout, cfg.MaxBodyBytes),
		cache:          NewCache(cfg.CacheTTL),
		allowedDomains: cfg.AllowedDomains,
		logger:         slog.Default().With("component", "fetch-service"),
	}
}

// Fetch validates rawURL, serves from cache when fresh, and otherwise
// downloads and caches the result. The returned text is unparsed — whatever
// bytes the server returned, truncated to the configured body cap.
func (s *Service) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := ValidateURL(rawURL, s.allowedDomains); err != nil {
		return "", fmt.Errorf("validate url: %w", err)
	}

	if content, ok := s.cache.Get(rawURL); ok {
		return content, nil
	}

	content, err := s.client.Download(ctx, rawURL)
	if err != nil {
		s.logger.Warn("content fetch failed", "url", rawURL, "error", err)
		return "", err
	}

	s.cache.Set(rawURL, content)
	return content, nil
}
