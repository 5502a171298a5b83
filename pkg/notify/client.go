// Package notify posts a Slack notification when a verdict run ends in a
// state an operator should look at: a pipeline crash, a fail-closed judge,
// or a judge call that fell back to Stage 8's draft verdict.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"
)

// Client posts Block Kit messages to a Slack incoming webhook.
type Client struct {
	webhookURL string
	poster     func(url string, msg *goslack.WebhookMessage) error
	logger     *slog.Logger
}

// NewClient creates a client posting to the given incoming webhook URL.
func NewClient(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		poster:     goslack.PostWebhook,
		logger:     slog.Default().With("component", "notify-client"),
	}
}

// newClientWithPoster overrides the delivery function, for tests.
func newClientWithPoster(webhookURL string, poster func(url string, msg *goslack.WebhookMessage) error) *Client {
	return &Client{
		webhookURL: webhookURL,
		poster:     poster,
		logger:     slog.Default().With("component", "notify-client"),
	}
}

// PostMessage delivers blocks to the configured webhook. ctx is accepted for
// call-site symmetry with context-aware callers; goslack's webhook poster
// does not itself take one.
func (c *Client) PostMessage(_ context.Context, blocks []goslack.Block) error {
	msg := &goslack.WebhookMessage{
		Blocks: &goslack.Blocks{BlockSet: blocks},
	}
	if err := c.poster(c.webhookURL, msg); err != nil {
		return fmt.Errorf("slack webhook post failed: %w", err)
	}
	return nil
}
