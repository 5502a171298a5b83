package config

import (
	"fmt"
	"os"
)

// Validator validates a loaded Config comprehensively with clear error
// messages, failing fast at the first violation (spec.md §4.9: "missing
// required values cause fast failure at process startup").
type Validator struct {
	cfg *Config
}

func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every section validator in dependency order.
func (v *Validator) ValidateAll() error {
	if err := v.validateLLMRoles(); err != nil {
		return fmt.Errorf("llm role validation failed: %w", err)
	}
	if err := v.validateSearch(); err != nil {
		return fmt.Errorf("search validation failed: %w", err)
	}
	if err := v.validateCheckpoint(); err != nil {
		return fmt.Errorf("checkpoint validation failed: %w", err)
	}
	if err := v.validateThresholds(); err != nil {
		return fmt.Errorf("thresholds validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateLLMRoles() error {
	for _, role := range []LLMRole{LLMRoleStage1And2, LLMRoleStage6And7, LLMRoleJudge} {
		rc, ok := v.cfg.LLMRoles[role]
		if !ok {
			return NewValidationError("llm_role", string(role), "", fmt.Errorf("no binding configured"))
		}
		if !rc.Provider.IsValid() {
			return NewValidationError("llm_role", string(role), "provider", fmt.Errorf("invalid provider: %s", rc.Provider))
		}
		if rc.Model == "" {
			return NewValidationError("llm_role", string(role), "model", ErrMissingRequiredField)
		}
		if rc.BaseURL == "" {
			return NewValidationError("llm_role", string(role), "base_url", ErrMissingRequiredField)
		}
		if rc.IsExternal() && rc.APIKey == "" && role == LLMRoleJudge {
			// Matches spec.md §4.3/§4.9: external judge provider without a key
			// is a fatal configuration error, not a recoverable stage error.
			return NewValidationError("llm_role", string(role), "api_key", ErrJudgeKeyMissing)
		}
		if rc.MaxTokens < 1 {
			return NewValidationError("llm_role", string(role), "max_tokens", fmt.Errorf("must be at least 1"))
		}
	}
	return nil
}

func (v *Validator) validateSearch() error {
	s := v.cfg.Search
	if s.News.Concurrency < 1 {
		return NewValidationError("search", "news", "concurrency", fmt.Errorf("must be at least 1"))
	}
	if s.Web.Concurrency < 1 {
		return NewValidationError("search", "web", "concurrency", fmt.Errorf("must be at least 1"))
	}
	if s.Retry.MaxAttempts < 1 {
		return NewValidationError("search", "retry", "max_attempts", fmt.Errorf("must be at least 1"))
	}
	if s.Retry.BaseBackoff <= 0 || s.Retry.MaxBackoff <= 0 {
		return NewValidationError("search", "retry", "backoff", fmt.Errorf("base_backoff and max_backoff must be positive"))
	}
	return nil
}

func (v *Validator) validateCheckpoint() error {
	c := v.cfg.Checkpoint
	if !c.Backend.IsValid() {
		return NewValidationError("checkpoint", "", "backend", fmt.Errorf("invalid backend: %s", c.Backend))
	}
	if c.Backend != CheckpointBackendNone && c.TTL <= 0 {
		return NewValidationError("checkpoint", "", "ttl", fmt.Errorf("must be positive"))
	}
	if c.Backend == CheckpointBackendPostgres && c.TableName == "" {
		return NewValidationError("checkpoint", "", "table_name", ErrMissingRequiredField)
	}
	return nil
}

func (v *Validator) validateThresholds() error {
	t := v.cfg.Thresholds
	if t.ScorePassThreshold < 0 || t.ScorePassThreshold > 1 {
		return NewValidationError("thresholds", "", "score_pass_threshold", fmt.Errorf("must be in [0,1]"))
	}
	if t.TopKPerSide < 1 {
		return NewValidationError("thresholds", "", "topk_per_side", fmt.Errorf("must be at least 1"))
	}
	if t.CapNoCitations < 0 || t.CapNoCitations > 1 {
		return NewValidationError("thresholds", "", "cap_no_citations", fmt.Errorf("must be in [0,1]"))
	}
	if t.CapLowEvidence < 0 || t.CapLowEvidence > 1 {
		return NewValidationError("thresholds", "", "cap_low_evidence", fmt.Errorf("must be in [0,1]"))
	}
	return nil
}

// requireEnv is a small helper mirroring the teacher's fail-fast convention
// for env-sourced required values that the YAML layer could not itself see.
func requireEnv(name string) error {
	if os.Getenv(name) == "" {
		return fmt.Errorf("environment variable %s is not set", name)
	}
	return nil
}
