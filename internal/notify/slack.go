package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/slack-go/slack"

	"github.com/ecs-alert/ecs-alert/internal/config"
	"github.com/ecs-alert/ecs-alert/internal/database"
	"github.com/ecs-alert/ecs-alert/internal/utils"
)

const (
	slackFooterIcon = "https://platform.slack-edge.com/img/default_application_icon.png"
	// slackFieldMaxLen keeps long descriptions inside Slack's attachment field limit
	slackFieldMaxLen = 2000
)

// SlackChannel posts each alert as a legacy attachment to an incoming webhook
type SlackChannel struct {
	webhookURL string
	client     *http.Client
}

func NewSlackChannel(cfg config.SlackConfig) *SlackChannel {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &SlackChannel{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: 30 * time.Second, Transport: transport},
	}
}

func (c *SlackChannel) Name() string { return config.DeliverySlack }

// Check validates the webhook URL. Posting a probe would spam the channel.
func (c *SlackChannel) Check(ctx context.Context) error {
	u, err := url.Parse(c.webhookURL)
	if err != nil {
		return fmt.Errorf("invalid slack webhook url: %w", err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("invalid slack webhook url %q: expected an http(s) URL", c.webhookURL)
	}
	return nil
}

// Send posts the alert; any non-200 answer from Slack is an error
func (c *SlackChannel) Send(ctx context.Context, alert *database.Alert) error {
	if err := slack.PostWebhookCustomHTTPContext(ctx, c.webhookURL, c.client, BuildSlackMessage(NewMessage(alert))); err != nil {
		return fmt.Errorf("failed to post slack webhook: %w", err)
	}
	return nil
}

// BuildSlackMessage lays out the alert as a colored attachment with four short fields
func BuildSlackMessage(m Message) *slack.WebhookMessage {
	return &slack.WebhookMessage{
		Attachments: []slack.Attachment{
			{
				Fallback:  m.Headline(),
				Color:     m.Color,
				Pretext:   m.Headline(),
				Title:     "ECS Cluster: " + m.Endpoint,
				TitleLink: m.Link,
				Text:      "Alert Details:",
				Fields: []slack.AttachmentField{
					{Title: "Severity", Value: m.Severity, Short: true},
					{Title: "Symptom Code", Value: m.SymptomCode, Short: true},
					{Title: "Description", Value: utils.TruncateText(m.Description, slackFieldMaxLen), Short: true},
					{Title: "Timestamp", Value: m.Timestamp, Short: true},
				},
				Footer:     "ecs-alert",
				FooterIcon: slackFooterIcon,
			},
		},
	}
}
