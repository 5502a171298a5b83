package fetch

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL checks that rawURL uses an allowed scheme and, when
// allowedDomains is non-empty, that its host is on the list. An empty
// allowedDomains permits any host — fact-check claim sources are arbitrary
// web pages, not a fixed set of trusted repositories.
func ValidateURL(rawURL string, allowedDomains []string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid scheme %q: only http and https allowed", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return fmt.Errorf("URL has no host: %s", rawURL)
	}

	if len(allowedDomains) > 0 {
		host := strings.ToLower(parsed.Hostname())
		allowed := false
		for _, domain := range allowedDomains {
			domain = strings.ToLower(domain)
			if host == domain || host == "www."+domain {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("domain %q not in allowed list", host)
		}
	}

	return nil
}
