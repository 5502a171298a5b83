package notify

import (
	"fmt"
	"strings"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

// triggerFlags are the risk flags that warrant paging an operator. Anything
// else is a normal degraded-quality signal surfaced only in the response body.
var triggerFlags = map[string]bool{
	"PIPELINE_CRASH":    true,
	"JUDGE_FAIL_CLOSED": true,
	"LLM_JUDGE_FAILED":  true,
}

// ShouldNotify reports whether any flag in flags warrants a notification.
func ShouldNotify(flags []string) bool {
	for _, f := range flags {
		if triggerFlags[f] {
			return true
		}
	}
	return false
}

// VerdictInput carries the fields needed to render a notification for a
// completed (or crashed) run.
type VerdictInput struct {
	TraceID      string
	Label        string
	Summary      string
	RiskFlags    []string
	DashboardURL string
}

// BuildVerdictMessage creates Block Kit blocks describing a risky run.
func BuildVerdictMessage(input VerdictInput) []goslack.Block {
	headerText := fmt.Sprintf(":warning: *Verdict needs review* — trace `%s`", input.TraceID)
	if input.Label != "" {
		headerText += fmt.Sprintf("\nLabel: *%s*", input.Label)
	}

	var blocks []goslack.Block
	blocks = append(blocks, goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
		nil, nil,
	))

	if input.Summary != "" {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(input.Summary), false, false),
			nil, nil,
		))
	}

	if len(input.RiskFlags) > 0 {
		flagsText := fmt.Sprintf("*Risk flags:* %s", strings.Join(input.RiskFlags, ", "))
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, flagsText, false, false),
			nil, nil,
		))
	}

	if input.DashboardURL != "" {
		url := fmt.Sprintf("%s/verdicts/%s", input.DashboardURL, input.TraceID)
		btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "View Verdict", false, false))
		btn.URL = url
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}

	return blocks
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "\n\n_... (truncated — view full verdict in dashboard)_"
}
