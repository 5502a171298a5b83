package notify

import (
	"context"
	"testing"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_NilReceiver(t *testing.T) {
	var s *Service

	assert.NotPanics(t, func() {
		s.NotifyIfRisky(context.Background(), VerdictInput{
			TraceID:   "trace-1",
			RiskFlags: []string{"PIPELINE_CRASH"},
		})
	})
}

func TestNewService(t *testing.T) {
	t.Run("returns nil when webhook url empty", func(t *testing.T) {
		svc := NewService(ServiceConfig{WebhookURL: ""})
		assert.Nil(t, svc)
	})

	t.Run("returns service when configured", func(t *testing.T) {
		svc := NewService(ServiceConfig{
			WebhookURL:   "https://hooks.slack.test/services/x/y/z",
			DashboardURL: "https://example.com",
		})
		assert.NotNil(t, svc)
	})
}

func TestService_NotifyIfRisky_SkipsNonTriggerFlags(t *testing.T) {
	called := false
	client := newClientWithPoster("https://hooks.slack.test/x", func(url string, msg *goslack.WebhookMessage) error {
		called = true
		return nil
	})
	svc := NewServiceWithClient(client, "https://example.com")

	svc.NotifyIfRisky(context.Background(), VerdictInput{
		TraceID:   "trace-1",
		RiskFlags: []string{"LOW_EVIDENCE"},
	})
	assert.False(t, called, "should not post for a non-trigger flag")
}

func TestService_NotifyIfRisky_PostsForTriggerFlag(t *testing.T) {
	called := false
	client := newClientWithPoster("https://hooks.slack.test/x", func(url string, msg *goslack.WebhookMessage) error {
		called = true
		require.NotNil(t, msg.Blocks)
		return nil
	})
	svc := NewServiceWithClient(client, "https://example.com")

	svc.NotifyIfRisky(context.Background(), VerdictInput{
		TraceID:   "trace-1",
		Label:     "UNVERIFIED",
		Summary:   "pipeline crashed before completion",
		RiskFlags: []string{"PIPELINE_CRASH"},
	})
	assert.True(t, called, "should post for a trigger flag")
}

func TestService_NotifyIfRisky_DeliveryErrorDoesNotPanic(t *testing.T) {
	client := newClientWithPoster("https://hooks.slack.test/x", func(url string, msg *goslack.WebhookMessage) error {
		return assert.AnError
	})
	svc := NewServiceWithClient(client, "https://example.com")

	assert.NotPanics(t, func() {
		svc.NotifyIfRisky(context.Background(), VerdictInput{
			TraceID:   "trace-1",
			RiskFlags: []string{"JUDGE_FAIL_CLOSED"},
		})
	})
}

func TestShouldNotify(t *testing.T) {
	assert.True(t, ShouldNotify([]string{"LOW_EVIDENCE", "PIPELINE_CRASH"}))
	assert.True(t, ShouldNotify([]string{"JUDGE_FAIL_CLOSED"}))
	assert.True(t, ShouldNotify([]string{"LLM_JUDGE_FAILED"}))
	assert.False(t, ShouldNotify([]string{"LOW_EVIDENCE", "NO_SKEPTIC_EVIDENCE"}))
	assert.False(t, ShouldNotify(nil))
}
