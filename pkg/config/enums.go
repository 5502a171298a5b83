package config

// CheckpointBackend selects the checkpoint manager's storage.
type CheckpointBackend string

const (
	CheckpointBackendPostgres CheckpointBackend = "postgres"
	CheckpointBackendMemory  CheckpointBackend = "memory"
	CheckpointBackendNone    CheckpointBackend = "none"
)

// IsValid reports whether the checkpoint backend is one of the closed set.
func (b CheckpointBackend) IsValid() bool {
	switch b {
	case CheckpointBackendPostgres, CheckpointBackendMemory, CheckpointBackendNone:
		return true
	default:
		return false
	}
}

// LLMProviderType selects which client path an LLM role resolves to.
type LLMProviderType string

const (
	LLMProviderTypeOpenAICompatible LLMProviderType = "openai_compatible"
	LLMProviderTypeAnthropic        LLMProviderType = "anthropic"
	LLMProviderTypeGoogle           LLMProviderType = "google"
)

func (t LLMProviderType) IsValid() bool {
	switch t {
	case LLMProviderTypeOpenAICompatible, LLMProviderTypeAnthropic, LLMProviderTypeGoogle:
		return true
	default:
		return false
	}
}

// LLMRole is one of the fixed roles the pipeline calls out to.
type LLMRole string

const (
	LLMRoleStage1And2 LLMRole = "stage1_2" // normalize + querygen SLM
	LLMRoleStage6And7 LLMRole = "stage6_7" // verify support / skeptic SLM
	LLMRoleJudge      LLMRole = "judge"
)

func (r LLMRole) IsValid() bool {
	switch r {
	case LLMRoleStage1And2, LLMRoleStage6And7, LLMRoleJudge:
		return true
	default:
		return false
	}
}
