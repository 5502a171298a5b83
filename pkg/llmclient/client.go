// Package llmclient is the narrow one-shot text-in/JSON-in-JSON-out facade
// over an external model endpoint (spec.md §4.4). It never parses JSON
// itself — that is each stage's responsibility via pkg/llmjson.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/codeready-toolchain/truthgraph/pkg/config"
	"github.com/codeready-toolchain/truthgraph/pkg/pipelineerr"
	"github.com/codeready-toolchain/truthgraph/pkg/ratelimit"
)

// Client exposes complete(model, prompt, system, max_tokens, timeout) ->
// raw_text, the one operation every stage needs.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is the narrow facade's input.
type Request struct {
	Prompt    string
	System    string
	MaxTokens int
	Timeout   time.Duration
}

type client struct {
	role  config.LLMRole
	cfg   config.LLMRoleConfig
	model llms.Model
	retry config.RetryConfig
}

// New builds a Client for role, selecting the OpenAI-compatible path first
// and falling back to the native provider path per spec.md §4.4. External
// providers without an API key fail fast at construction (stage entry),
// matching "requires a non-empty API key; otherwise fail fast at stage
// entry."
func New(role config.LLMRole, cfg config.LLMRoleConfig, retry config.RetryConfig) (Client, error) {
	if cfg.IsExternal() && cfg.APIKey == "" {
		return nil, pipelineerr.New(pipelineerr.KindJudgeKeyMissing, string(role),
			fmt.Errorf("external endpoint %s requires an API key", cfg.BaseURL))
	}

	model, err := buildModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("build model for role %s: %w", role, err)
	}

	return &client{role: role, cfg: cfg, model: model, retry: retry}, nil
}

func buildModel(cfg config.LLMRoleConfig) (llms.Model, error) {
	switch cfg.Provider {
	case config.LLMProviderTypeAnthropic:
		return anthropic.New(anthropic.WithModel(cfg.Model), anthropic.WithToken(cfg.APIKey))
	case config.LLMProviderTypeGoogle:
		return googleai.New(context.Background(), googleai.WithAPIKey(cfg.APIKey), googleai.WithDefaultModel(cfg.Model))
	default:
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithBaseURL(cfg.BaseURL)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		return openai.New(opts...)
	}
}

// Complete performs the call with the client's configured retry/backoff
// discipline: rate-limit/timeout/5xx retry, 4xx (non-429) does not,
// repeated 404 against the model name surfaces MODEL_NOT_FOUND.
func (c *client) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		text, statusCode, err := c.callOnce(callCtx, req, maxTokens)
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err

		if isNotFound(statusCode, err) {
			return "", pipelineerr.New(pipelineerr.KindModelNotFound, string(c.role), err)
		}

		if ratelimit.Classify(err, statusCode) == ratelimit.ActionFail {
			return "", err
		}
		if attempt < c.retry.MaxAttempts {
			time.Sleep(ratelimit.Delay(attempt, c.retry.BaseBackoff, c.retry.MaxBackoff))
		}
	}
	return "", fmt.Errorf("llm call exhausted %d attempts: %w", c.retry.MaxAttempts, lastErr)
}

func (c *client) callOnce(ctx context.Context, req Request, maxTokens int) (string, int, error) {
	var msgs []llms.MessageContent
	if req.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	resp, err := c.model.GenerateContent(ctx, msgs, llms.WithMaxTokens(maxTokens))
	if err != nil {
		return "", statusCodeOf(err), err
	}
	if len(resp.Choices) == 0 {
		return "", 0, errors.New("llm response had no choices")
	}
	return resp.Choices[0].Content, 0, nil
}

func isNotFound(statusCode int, err error) bool {
	if statusCode == http.StatusNotFound {
		return true
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "model_not_found")
}

// statusCodeOf best-effort extracts an HTTP status from a langchaingo/
// provider SDK error. Providers vary in how they wrap this; when it cannot
// be determined, 0 signals "classify as connection-level" to Classify.
func statusCodeOf(err error) int {
	msg := err.Error()
	for _, code := range []int{429, 500, 502, 503, 504, 404, 401, 403, 400} {
		if strings.Contains(msg, fmt.Sprintf("%d", code)) {
			return code
		}
	}
	return 0
}
