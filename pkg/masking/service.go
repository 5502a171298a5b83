package masking

import (
	"log/slog"
)

// Service applies data masking to evidence snippets and LLM prompts before
// they reach the artifact logger. Created once at application startup
// (singleton). Thread-safe and stateless aside from compiled patterns.
type Service struct {
	enabled     bool
	patterns    []*CompiledPattern // Built-in compiled patterns
	codeMaskers []Masker           // Registered code-based maskers
}

// New creates a masking service with compiled built-in patterns and
// registered code-based maskers. Invalid patterns are logged and skipped.
func New(enabled bool) *Service {
	s := &Service{enabled: enabled}

	s.compileBuiltinPatterns()
	s.registerMasker(&CredentialJSONMasker{})

	slog.Info("Masking service initialized",
		"enabled", enabled,
		"compiled_patterns", len(s.patterns),
		"code_maskers", len(s.codeMaskers))

	return s
}

// Mask applies code-based maskers then regex patterns to text, in that
// order (code maskers have structural awareness and run first; the regex
// sweep catches whatever they missed). Returns text unchanged if masking is
// disabled or text is empty.
func (s *Service) Mask(text string) string {
	if !s.enabled || text == "" {
		return text
	}

	masked := text
	for _, masker := range s.codeMaskers {
		if masker.AppliesTo(masked) {
			masked = masker.Mask(masked)
		}
	}
	for _, pattern := range s.patterns {
		masked = pattern.Regex.ReplaceAllString(masked, pattern.Replacement)
	}
	return masked
}

func (s *Service) registerMasker(m Masker) {
	s.codeMaskers = append(s.codeMaskers, m)
}
