package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ecs-alert/ecs-alert/internal/alerts"
)

// DispatchTask notifies pending alerts every interval
type DispatchTask struct {
	dispatcher *alerts.Dispatcher
	interval   time.Duration
	logger     logrus.FieldLogger
}

func NewDispatchTask(dispatcher *alerts.Dispatcher, interval time.Duration, logger logrus.FieldLogger) *DispatchTask {
	return &DispatchTask{dispatcher: dispatcher, interval: interval, logger: logger}
}

func (t *DispatchTask) Name() string { return "dispatch" }

func (t *DispatchTask) Interval() time.Duration { return t.interval }

func (t *DispatchTask) RunCycle(ctx context.Context) error {
	stats, err := t.dispatcher.DispatchOnce(ctx)
	if err != nil {
		return err
	}
	if stats.Pending == 0 {
		return nil
	}

	t.logger.WithFields(logrus.Fields{
		"cycle":        uuid.NewString(),
		"pending":      stats.Pending,
		"sent":         stats.Sent,
		"failed":       stats.Failed,
		"acknowledged": stats.Acknowledged,
		"ack_failed":   stats.AckFailed,
	}).Info("Dispatch cycle complete")
	return nil
}
