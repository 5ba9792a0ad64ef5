package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ecs-alert/ecs-alert/internal/alerts"
)

// CollectTask pulls one cluster's alert feed into the store every interval
type CollectTask struct {
	collector *alerts.Collector
	interval  time.Duration
	logger    logrus.FieldLogger
}

func NewCollectTask(collector *alerts.Collector, interval time.Duration, logger logrus.FieldLogger) *CollectTask {
	return &CollectTask{collector: collector, interval: interval, logger: logger}
}

func (t *CollectTask) Name() string {
	return "collect:" + t.collector.Cluster().Endpoint
}

func (t *CollectTask) Interval() time.Duration {
	return t.interval
}

func (t *CollectTask) RunCycle(ctx context.Context) error {
	log := t.logger.WithFields(logrus.Fields{
		"cluster": t.collector.Cluster().Endpoint,
		"cycle":   uuid.NewString(),
	})

	stats, err := t.collector.CollectOnce(ctx)
	fields := logrus.Fields{
		"seen":       stats.Seen,
		"admitted":   stats.Admitted,
		"duplicates": stats.Duplicates,
		"filtered":   stats.Filtered,
	}
	if err != nil {
		return fmt.Errorf("alert collection aborted after %d alerts (%d admitted): %w", stats.Seen, stats.Admitted, err)
	}

	if stats.Admitted > 0 {
		log.WithFields(fields).Info("Collected new alerts")
	} else {
		log.WithFields(fields).Debug("No new alerts")
	}
	return nil
}
