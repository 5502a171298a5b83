package masking

import (
	"log/slog"
	"regexp"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// patternSpec is the uncompiled form of a built-in pattern.
type patternSpec struct {
	name        string
	pattern     string
	replacement string
	description string
}

// builtinPatterns is the fixed set of redactions applied to any text that
// reaches the artifact logger: evidence snippets pulled from the open web
// and the LLM prompts built from them.
var builtinPatterns = []patternSpec{
	{
		name:        "email",
		pattern:     `[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`,
		replacement: "[MASKED_EMAIL]",
		description: "email addresses",
	},
	{
		name:        "jwt",
		pattern:     `eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`,
		replacement: "[MASKED_JWT]",
		description: "JSON Web Tokens",
	},
	{
		name:        "aws_access_key",
		pattern:     `\bAKIA[0-9A-Z]{16}\b`,
		replacement: "[MASKED_AWS_KEY]",
		description: "AWS access key IDs",
	},
	{
		name:        "generic_api_key",
		pattern:     `\b(sk|pk|api)-[A-Za-z0-9]{20,}\b`,
		replacement: "[MASKED_API_KEY]",
		description: "generic API key tokens",
	},
	{
		name:        "bearer_token",
		pattern:     `(?i)\bBearer\s+[A-Za-z0-9\-._~+/]+=*`,
		replacement: "Bearer [MASKED_TOKEN]",
		description: "bearer authorization headers",
	},
	{
		name:        "credit_card",
		pattern:     `\b(?:\d[ -]*?){13,16}\b`,
		replacement: "[MASKED_CARD_NUMBER]",
		description: "credit card-like digit sequences",
	},
	{
		name:        "ipv4",
		pattern:     `\b(?:\d{1,3}\.){3}\d{1,3}\b`,
		replacement: "[MASKED_IP]",
		description: "IPv4 addresses",
	},
}

// compileBuiltinPatterns compiles every built-in pattern. Invalid patterns
// are logged and skipped rather than failing service construction.
func (s *Service) compileBuiltinPatterns() {
	for _, spec := range builtinPatterns {
		compiled, err := regexp.Compile(spec.pattern)
		if err != nil {
			slog.Error("Failed to compile built-in masking pattern, skipping",
				"pattern", spec.name, "error", err)
			continue
		}
		s.patterns = append(s.patterns, &CompiledPattern{
			Name:        spec.name,
			Regex:       compiled,
			Replacement: spec.replacement,
			Description: spec.description,
		})
	}
}
