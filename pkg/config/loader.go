package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// yamlConfig is the on-disk shape of truthgraph.yaml, unmarshaled before
// being merged over defaults() and converted into the typed Config.
type yamlConfig struct {
	StrictPipeline  *bool                     `yaml:"strict_pipeline"`
	LLMRoles        map[LLMRole]LLMRoleConfig `yaml:"llm_roles"`
	Search          *SearchConfig             `yaml:"search"`
	Checkpoint      *CheckpointConfig         `yaml:"checkpoint"`
	Artifact        *ArtifactConfig           `yaml:"artifact"`
	Thresholds      *ThresholdsConfig         `yaml:"thresholds"`
	Server          *ServerConfig             `yaml:"server"`
	Policy          *PolicyConfig             `yaml:"policy"`
	Masking         *MaskingConfig            `yaml:"masking"`
	Fetch           *FetchConfig              `yaml:"fetch"`
	SlackWebhookURL string                    `yaml:"slack_webhook_url"`
	DashboardURL    string                    `yaml:"dashboard_url"`
	DatabaseURL     string                    `yaml:"database_url"`
}

// defaults returns the built-in configuration that the user's truthgraph.yaml
// is merged over. Mirrors the teacher's "system defaults, overridable per
// file" layering, collapsed to a single layer since this domain has no
// per-agent tree to merge.
func defaults() *Config {
	return &Config{
		StrictPipeline: false,
		LLMRoles: map[LLMRole]LLMRoleConfig{
			LLMRoleStage1And2: {Provider: LLMProviderTypeOpenAICompatible, BaseURL: "http://localhost:11434/v1", Model: "llama3.1", MaxTokens: 1024, Timeout: 20 * time.Second},
			LLMRoleStage6And7: {Provider: LLMProviderTypeOpenAICompatible, BaseURL: "http://localhost:11434/v1", Model: "llama3.1", MaxTokens: 1024, Timeout: 20 * time.Second},
			LLMRoleJudge:      {Provider: LLMProviderTypeOpenAICompatible, BaseURL: "http://localhost:11434/v1", Model: "llama3.1", MaxTokens: 1024, Timeout: 30 * time.Second},
		},
		Search: SearchConfig{
			News:                SearchProviderConfig{Concurrency: 4},
			Web:                 SearchProviderConfig{Concurrency: 4},
			WikiEmbeddingsReady: false,
			Retry:               DefaultRetryConfig(),
		},
		Checkpoint: CheckpointConfig{
			Backend:   CheckpointBackendMemory,
			TTL:       30 * time.Minute,
			TableName: "checkpoint_threads",
		},
		Artifact: ArtifactConfig{RunDir: "./runs"},
		Thresholds: ThresholdsConfig{
			ScorePassThreshold: 0.5,
			TopKPerSide:        3,
			CapNoCitations:     0.4,
			CapLowEvidence:     0.7,
			LowEvidenceFloor:   2,
			LowTrustThreshold:  0.5,
		},
		Server:  ServerConfig{Addr: ":8080", HeartbeatInterval: 8 * time.Second},
		Policy:  PolicyConfig{Query: "data.truthgraph.refuse"},
		Masking: MaskingConfig{Enabled: true},
		Fetch: FetchConfig{
			Timeout:      10 * time.Second,
			MaxBodyBytes: 2 << 20, // 2 MiB
			CacheTTL:     5 * time.Minute,
		},
	}
}

// Load reads truthgraph.yaml from configDir (if present), expands
// environment variables, merges it over the built-in defaults, and
// validates the result. An absent file is not an error — defaults alone
// are valid.
func Load(ctx context.Context, configDir string) (*Config, error) {
	// Local dev convenience: load a .env file into the process environment
	// before ExpandEnv/applyEnvOverrides read it. Silently ignored when
	// absent — production deployments set real environment variables.
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !os.IsNotExist(err) {
		slog.WarnContext(ctx, "failed to load .env file", "error", err)
	}

	cfg := defaults()
	cfg.configDir = configDir

	path := filepath.Join(configDir, "truthgraph.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.WarnContext(ctx, "config file not found, using defaults", "path", path)
		} else {
			return nil, NewLoadError(path, err)
		}
	} else {
		expanded := ExpandEnv(raw)
		var overlay yamlConfig
		if err := yaml.Unmarshal(expanded, &overlay); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
		if err := applyOverlay(cfg, &overlay); err != nil {
			return nil, NewLoadError(path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	slog.InfoContext(ctx, "configuration loaded", "config_dir", configDir, "checkpoint_backend", cfg.Checkpoint.Backend)
	return cfg, nil
}

func applyOverlay(cfg *Config, overlay *yamlConfig) error {
	if overlay.StrictPipeline != nil {
		cfg.StrictPipeline = *overlay.StrictPipeline
	}
	for role, rc := range overlay.LLMRoles {
		existing := cfg.LLMRoles[role]
		if err := mergo.Merge(&existing, rc, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge llm_roles.%s: %w", role, err)
		}
		cfg.LLMRoles[role] = existing
	}
	if overlay.Search != nil {
		if err := mergo.Merge(&cfg.Search, *overlay.Search, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge search: %w", err)
		}
	}
	if overlay.Checkpoint != nil {
		if err := mergo.Merge(&cfg.Checkpoint, *overlay.Checkpoint, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge checkpoint: %w", err)
		}
	}
	if overlay.Artifact != nil {
		if err := mergo.Merge(&cfg.Artifact, *overlay.Artifact, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge artifact: %w", err)
		}
	}
	if overlay.Thresholds != nil {
		if err := mergo.Merge(&cfg.Thresholds, *overlay.Thresholds, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge thresholds: %w", err)
		}
	}
	if overlay.Server != nil {
		if err := mergo.Merge(&cfg.Server, *overlay.Server, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge server: %w", err)
		}
	}
	if overlay.Policy != nil {
		if err := mergo.Merge(&cfg.Policy, *overlay.Policy, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge policy: %w", err)
		}
	}
	if overlay.Masking != nil {
		if err := mergo.Merge(&cfg.Masking, *overlay.Masking, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge masking: %w", err)
		}
	}
	if overlay.Fetch != nil {
		if err := mergo.Merge(&cfg.Fetch, *overlay.Fetch, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge fetch: %w", err)
		}
	}
	if overlay.SlackWebhookURL != "" {
		cfg.SlackWebhookURL = overlay.SlackWebhookURL
	}
	if overlay.DashboardURL != "" {
		cfg.DashboardURL = overlay.DashboardURL
	}
	if overlay.DatabaseURL != "" {
		cfg.DatabaseURL = overlay.DatabaseURL
	}
	return nil
}

// applyEnvOverrides resolves the judge API key's multiple accepted aliases
// (spec.md §4.9) and a couple of top-level operational knobs that are more
// naturally env-driven than file-driven.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STRICT_PIPELINE"); v == "true" {
		cfg.StrictPipeline = true
	}
	if v := os.Getenv("WIKI_EMBEDDINGS_READY"); v == "true" {
		cfg.Search.WikiEmbeddingsReady = true
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	judge := cfg.LLMRoles[LLMRoleJudge]
	if judge.APIKey == "" {
		for _, alias := range []string{"JUDGE_API_KEY", "OPENAI_API_KEY", "PPLX_API_KEY", "PERPLEXITY_API_KEY"} {
			if v := os.Getenv(alias); v != "" {
				judge.APIKey = v
				break
			}
		}
		cfg.LLMRoles[LLMRoleJudge] = judge
	}
}
