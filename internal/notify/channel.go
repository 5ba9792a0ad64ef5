// Package notify delivers stored alerts through the one configured channel:
// an SMTP relay, the SendGrid API or a Slack incoming webhook.
package notify

import (
	"context"
	"fmt"

	"github.com/ecs-alert/ecs-alert/internal/config"
	"github.com/ecs-alert/ecs-alert/internal/database"
)

// Channel is a delivery backend. Check is run once at startup; a failure
// there keeps the monitor from starting.
type Channel interface {
	Name() string
	Check(ctx context.Context) error
	Send(ctx context.Context, alert *database.Alert) error
}

// New builds the channel selected by cfg.Delivery
func New(cfg *config.Config) (Channel, error) {
	switch cfg.Delivery {
	case config.DeliverySMTP:
		return NewSMTPChannel(cfg.SMTP), nil
	case config.DeliverySendGrid:
		return NewSendGridChannel(cfg.SendGrid), nil
	case config.DeliverySlack:
		return NewSlackChannel(cfg.Slack), nil
	default:
		return nil, fmt.Errorf("unsupported delivery channel %q", cfg.Delivery)
	}
}
