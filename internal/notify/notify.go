// Package notify announces published proposals to a chat channel.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

// Notifier delivers best-effort announcements. Implementations never return errors.
type Notifier interface {
	Notify(ctx context.Context, issueNumber int, title, url string)
}

// FormatMessage renders the announcement text.
func FormatMessage(issueNumber int, title, url string) string {
	return fmt.Sprintf("✅ *Issue #%d completed*\n*Title:* %s\n*Pull request:* %s", issueNumber, title, url)
}

// SlackNotifier posts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier returns a notifier bounded by timeout per post.
func NewSlackNotifier(webhookURL string, timeout time.Duration) *SlackNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
	}
}

// Notify posts the announcement. Failures are logged and dropped.
func (s *SlackNotifier) Notify(ctx context.Context, issueNumber int, title, url string) {
	if err := s.Send(ctx, issueNumber, title, url); err != nil {
		log.Printf("[Notify] Warning: Slack notification for #%d failed: %v", issueNumber, err)
		return
	}
	log.Printf("[Notify] Announced #%d", issueNumber)
}

// Send posts the announcement and reports the outcome.
func (s *SlackNotifier) Send(ctx context.Context, issueNumber int, title, url string) error {
	msg := &slack.WebhookMessage{Text: FormatMessage(issueNumber, title, url)}
	return slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.client, msg)
}

// Disabled is used when no webhook is configured.
type Disabled struct{}

// Notify does nothing.
func (Disabled) Notify(context.Context, int, string, string) {}

// New returns a SlackNotifier, or Disabled when webhookURL is empty.
// The disabled case is logged here, once per process setup, whether or not anything is published.
func New(webhookURL string, timeout time.Duration) Notifier {
	if webhookURL == "" {
		log.Printf("[Notify] SLACK_WEBHOOK_URL not set, skipping notifications")
		return &Disabled{}
	}
	return NewSlackNotifier(webhookURL, timeout)
}
