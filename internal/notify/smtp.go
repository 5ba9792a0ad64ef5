package notify

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/ecs-alert/ecs-alert/internal/config"
	"github.com/ecs-alert/ecs-alert/internal/database"
)

// SMTPChannel sends one HTML email per alert through a relay
type SMTPChannel struct {
	cfg config.SMTPConfig
}

func NewSMTPChannel(cfg config.SMTPConfig) *SMTPChannel {
	return &SMTPChannel{cfg: cfg}
}

func (c *SMTPChannel) Name() string { return config.DeliverySMTP }

func (c *SMTPChannel) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(c.cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if c.cfg.AuthenticationRequired {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(c.cfg.User),
			gomail.WithPassword(c.cfg.Password),
		)
	}

	client, err := gomail.NewClient(c.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client for %s:%d: %w", c.cfg.Host, c.cfg.Port, err)
	}
	return client, nil
}

// Check dials the relay (and authenticates if configured), then hangs up
func (c *SMTPChannel) Check(ctx context.Context) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to SMTP server %s:%d: %w", c.cfg.Host, c.cfg.Port, err)
	}
	return client.Close()
}

// BuildEmail assembles the message for one alert
func (c *SMTPChannel) BuildEmail(alert *database.Alert) (*gomail.Msg, error) {
	body, err := RenderHTML(NewMessage(alert))
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMsg()
	if err := msg.From(c.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", c.cfg.From, err)
	}
	if err := msg.To(c.cfg.To); err != nil {
		return nil, fmt.Errorf("invalid to address %q: %w", c.cfg.To, err)
	}
	msg.Subject(Subject)
	msg.SetBodyString(gomail.TypeTextHTML, body)
	return msg, nil
}

func (c *SMTPChannel) Send(ctx context.Context, alert *database.Alert) error {
	msg, err := c.BuildEmail(alert)
	if err != nil {
		return err
	}
	client, err := c.client()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email for alert %s: %w", alert.AlertID, err)
	}
	return nil
}
