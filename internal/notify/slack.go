// Package notify posts run summaries to Slack.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/slack-go/slack"

	"github.com/ehsanSh21/clickhouse-metabase/internal/pipeline"
)

// Slack sends one incoming-webhook message per run.
type Slack struct {
	webhookURL string
	channel    string
}

func NewSlack(webhookURL, channel string) *Slack {
	return &Slack{webhookURL: webhookURL, channel: channel}
}

func (s *Slack) Notify(ctx context.Context, r *pipeline.Report) error {
	if err := slack.PostWebhookContext(ctx, s.webhookURL, Message(r, s.channel)); err != nil {
		return errors.Wrap(err, "error sending slack message")
	}
	return nil
}

// Message renders r as a webhook payload.
func Message(r *pipeline.Report, channel string) *slack.WebhookMessage {
	att := slack.Attachment{
		Fields: []slack.AttachmentField{
			{Title: "Run", Value: r.RunID, Short: true},
			{Title: "Duration", Value: r.Duration().Round(time.Millisecond).String(), Short: true},
		},
	}

	if r.Succeeded() {
		att.Color = "good"
		att.Title = "fraud-etl run succeeded"
		if r.DryRun {
			att.Title = "fraud-etl dry run succeeded"
		}
		att.Fields = append(att.Fields,
			slack.AttachmentField{Title: "Extracted", Value: formatCounts(r.Extracted)},
			slack.AttachmentField{Title: "Transformed", Value: strconv.Itoa(r.Transformed), Short: true},
			slack.AttachmentField{Title: "Loaded", Value: strconv.FormatInt(r.Loaded, 10), Short: true},
		)
	} else {
		att.Color = "danger"
		att.Title = fmt.Sprintf("fraud-etl run failed in %s stage", r.FailedStage)
		att.Fields = append(att.Fields,
			slack.AttachmentField{Title: "Kind", Value: r.ErrorKind, Short: true},
			slack.AttachmentField{Title: "Error", Value: r.Error},
		)
	}

	return &slack.WebhookMessage{
		Channel:     channel,
		Text:        att.Title,
		Attachments: []slack.Attachment{att},
	}
}

func formatCounts(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%d", n, counts[n])
	}
	return strings.Join(parts, " ")
}
