package notify

import (
	"context"
	"log/slog"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	WebhookURL   string
	DashboardURL string
}

// Service delivers Slack notifications for risky verdicts.
// Nil-safe: all methods are no-ops when the service is nil.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates a new notification service. Returns nil if WebhookURL
// is empty, so notification is simply disabled rather than failing.
func NewService(cfg ServiceConfig) *Service {
	if cfg.WebhookURL == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.WebhookURL),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "notify-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock webhook server.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "notify-service"),
	}
}

// NotifyIfRisky posts a notification when flags contains a trigger flag.
// Fail-open: delivery errors are logged, never returned — a Slack outage
// must never affect the verdict response.
func (s *Service) NotifyIfRisky(ctx context.Context, input VerdictInput) {
	if s == nil || !ShouldNotify(input.RiskFlags) {
		return
	}

	blocks := BuildVerdictMessage(VerdictInput{
		TraceID:      input.TraceID,
		Label:        input.Label,
		Summary:      input.Summary,
		RiskFlags:    input.RiskFlags,
		DashboardURL: s.dashboardURL,
	})
	if err := s.client.PostMessage(ctx, blocks); err != nil {
		s.logger.Error("Failed to send verdict notification",
			"trace_id", input.TraceID, "error", err)
	}
}
