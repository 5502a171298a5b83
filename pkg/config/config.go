// Package config centralizes the pipeline's typed settings: LLM role
// endpoints, search provider credentials, checkpoint/backoff/artifact
// parameters, and the strict/lenient failure-mode switch.
package config

import "time"

// LLMRoleConfig is the per-role (stage1/2, stage6/7, judge) model binding.
type LLMRoleConfig struct {
	Provider  LLMProviderType `yaml:"provider"`
	BaseURL   string          `yaml:"base_url"`
	Model     string          `yaml:"model"`
	APIKey    string          `yaml:"api_key,omitempty"`
	MaxTokens int             `yaml:"max_tokens"`
	Timeout   time.Duration   `yaml:"timeout"`
}

// IsExternal reports whether BaseURL refers to anything other than a local
// model endpoint. External providers require a non-empty API key.
func (c LLMRoleConfig) IsExternal() bool {
	return !isLocalEndpoint(c.BaseURL)
}

// RetryConfig is the shared timeout/retry/backoff discipline used by the
// LLM client and the external search clients alike.
type RetryConfig struct {
	PerAttemptTimeout time.Duration `yaml:"per_attempt_timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseBackoff       time.Duration `yaml:"base_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
}

// DefaultRetryConfig matches the spec defaults: 10s per attempt, 3 attempts,
// 0.5s base doubled each attempt, 4s cap.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		PerAttemptTimeout: 10 * time.Second,
		MaxAttempts:       3,
		BaseBackoff:       500 * time.Millisecond,
		MaxBackoff:        4 * time.Second,
	}
}

// SearchProviderConfig is one external search provider's credentials and
// concurrency cap.
type SearchProviderConfig struct {
	APIKey      string `yaml:"api_key,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	Concurrency int    `yaml:"concurrency"`
}

// SearchConfig groups the news and web providers plus the wiki store flags.
type SearchConfig struct {
	News                SearchProviderConfig `yaml:"news"`
	Web                 SearchProviderConfig `yaml:"web"`
	WikiEmbeddingsReady bool                 `yaml:"wiki_embeddings_ready"`
	Retry               RetryConfig          `yaml:"retry"`
}

// CheckpointConfig selects the checkpoint manager's backend and TTL.
type CheckpointConfig struct {
	Backend   CheckpointBackend `yaml:"backend"`
	TTL       time.Duration     `yaml:"ttl"`
	TableName string            `yaml:"table_name"`
}

// ArtifactConfig is the artifact logger's output location.
type ArtifactConfig struct {
	RunDir string `yaml:"run_dir"`
}

// MaskingConfig toggles redaction of sensitive substrings from evidence
// snippets and LLM prompts before they reach the artifact logger.
type MaskingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// FetchConfig governs the service layer's pre-fetch of url-typed input
// before Stage 1 (the pipeline proper never performs HTTP itself).
type FetchConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	AllowedDomains []string      `yaml:"allowed_domains,omitempty"`
}

// ThresholdsConfig groups the pipeline's numeric cutoffs.
type ThresholdsConfig struct {
	ScorePassThreshold float64 `yaml:"score_pass_threshold"`
	TopKPerSide        int     `yaml:"topk_per_side"`
	CapNoCitations     float64 `yaml:"cap_no_citations"`
	CapLowEvidence     float64 `yaml:"cap_low_evidence"`
	LowEvidenceFloor   int     `yaml:"low_evidence_floor"`
	// LowTrustThreshold is the floor for a top-K pool's average trust_prior
	// (spec.md §8 acceptance rule 5): below it, LOW_TRUST_EVIDENCE is set.
	LowTrustThreshold float64 `yaml:"low_trust_threshold"`
}

// ServerConfig is the thin HTTP surface's listen address and heartbeat.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// PolicyConfig points at the OPA bundle backing the refusal gate.
type PolicyConfig struct {
	BundlePath string `yaml:"bundle_path"`
	Query      string `yaml:"query"`
}

// Config is the umbrella configuration object returned by Load.
type Config struct {
	configDir string

	StrictPipeline bool `yaml:"strict_pipeline"`

	LLMRoles   map[LLMRole]LLMRoleConfig `yaml:"llm_roles"`
	Search     SearchConfig              `yaml:"search"`
	Checkpoint CheckpointConfig          `yaml:"checkpoint"`
	Artifact   ArtifactConfig            `yaml:"artifact"`
	Thresholds ThresholdsConfig          `yaml:"thresholds"`
	Server     ServerConfig              `yaml:"server"`
	Policy     PolicyConfig              `yaml:"policy"`
	Masking    MaskingConfig             `yaml:"masking"`
	Fetch      FetchConfig               `yaml:"fetch"`

	SlackWebhookURL string `yaml:"slack_webhook_url,omitempty"`
	DashboardURL    string `yaml:"dashboard_url,omitempty"`
	DatabaseURL     string `yaml:"database_url,omitempty"`
}

func (c *Config) ConfigDir() string { return c.configDir }

// GetLLMRole retrieves the model binding for role, wrapped in
// ErrLLMRoleNotFound when absent.
func (c *Config) GetLLMRole(role LLMRole) (LLMRoleConfig, error) {
	cfg, ok := c.LLMRoles[role]
	if !ok {
		return LLMRoleConfig{}, NewValidationError("llm_role", string(role), "", ErrLLMRoleNotFound)
	}
	return cfg, nil
}

func isLocalEndpoint(baseURL string) bool {
	for _, marker := range []string{"localhost", "127.0.0.1", "::1", ":11434"} {
		if containsSubstr(baseURL, marker) {
			return true
		}
	}
	return false
}

func containsSubstr(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
