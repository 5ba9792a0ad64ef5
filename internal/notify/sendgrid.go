package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/ecs-alert/ecs-alert/internal/config"
	"github.com/ecs-alert/ecs-alert/internal/database"
)

// DefaultSendGridHost is the public SendGrid API
const DefaultSendGridHost = "https://api.sendgrid.com"

// SendGridChannel sends one HTML email per alert through the SendGrid v3 API
type SendGridChannel struct {
	cfg  config.SendGridConfig
	host string
}

func NewSendGridChannel(cfg config.SendGridConfig) *SendGridChannel {
	return &SendGridChannel{cfg: cfg, host: DefaultSendGridHost}
}

// WithHost points the channel at another API root
func (c *SendGridChannel) WithHost(host string) *SendGridChannel {
	c.host = host
	return c
}

func (c *SendGridChannel) Name() string { return config.DeliverySendGrid }

// Check verifies the API key by listing its scopes
func (c *SendGridChannel) Check(ctx context.Context) error {
	req := sendgrid.GetRequest(c.cfg.APIKey, "/v3/scopes", c.host)
	req.Method = rest.Get

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to reach SendGrid: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SendGrid rejected the API key: HTTP %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// BuildEmail assembles the v3 mail payload for one alert
func (c *SendGridChannel) BuildEmail(alert *database.Alert) (*sgmail.SGMailV3, error) {
	m := NewMessage(alert)
	html, err := RenderHTML(m)
	if err != nil {
		return nil, err
	}
	from := sgmail.NewEmail("", c.cfg.From)
	to := sgmail.NewEmail("", c.cfg.To)
	return sgmail.NewSingleEmail(from, Subject, to, m.PlainText(), html), nil
}

func (c *SendGridChannel) Send(ctx context.Context, alert *database.Alert) error {
	email, err := c.BuildEmail(alert)
	if err != nil {
		return err
	}

	req := sendgrid.GetRequest(c.cfg.APIKey, "/v3/mail/send", c.host)
	req.Method = rest.Post
	req.Body = sgmail.GetRequestBody(email)

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send SendGrid email for alert %s: %w", alert.AlertID, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("SendGrid returned HTTP %d for alert %s: %s", resp.StatusCode, alert.AlertID, resp.Body)
	}
	return nil
}
