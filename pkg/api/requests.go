package api

// CheckRequest is the public request body shared by both the synchronous
// and streaming endpoints (spec.md §6).
type CheckRequest struct {
	InputType          string `json:"input_type" binding:"required,oneof=text url image"`
	InputPayload       string `json:"input_payload" binding:"required"`
	UserRequest        string `json:"user_request"`
	Language           string `json:"language"`
	IncludeFullOutputs bool   `json:"include_full_outputs"`
	StartStage         string `json:"start_stage"`
	EndStage           string `json:"end_stage"`
	NormalizeMode      string `json:"normalize_mode" binding:"omitempty,oneof=llm basic"`
	CheckpointThreadID string `json:"checkpoint_thread_id"`
	CheckpointResume   bool   `json:"checkpoint_resume"`
}

const (
	// maxTextPayloadBytes is the text-claim size ceiling (spec.md §6).
	maxTextPayloadBytes = 8 * 1024
	// maxUserRequestBytes is the optional user_request size ceiling.
	maxUserRequestBytes = 2 * 1024
)
