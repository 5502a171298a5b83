package stages

import (
	"context"
	"testing"

	"github.com/codeready-toolchain/truthgraph/pkg/llmclient"
)

// stubLLMClient is a minimal llmclient.Client test double. responses is
// consumed in order across successive Complete calls (supporting the
// repair-retry path each stage exercises on a parse failure); once
// exhausted, the last entry repeats. A nil err for a given index means
// success with that response's text.
type stubLLMClient struct {
	t         *testing.T
	responses []string
	err       error
	calls     int

	shouldNotBeCalled bool
}

func (s *stubLLMClient) Complete(ctx context.Context, req llmclient.Request) (string, error) {
	if s.shouldNotBeCalled {
		s.t.Fatal("llm client should not have been called in basic normalize mode")
	}
	defer func() { s.calls++ }()
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", nil
	}
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}
