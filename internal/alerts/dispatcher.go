package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecs-alert/ecs-alert/internal/database"
)

// SendOutcome is the delivery result for one alert
type SendOutcome int

const (
	Sent SendOutcome = iota
	Failed
)

func (o SendOutcome) String() string {
	if o == Failed {
		return "failed"
	}
	return "sent"
}

// SendResult carries the delivery outcome and, when it failed, the reason
type SendResult struct {
	Outcome SendOutcome
	Reason  error
}

// DispatchStats summarizes one dispatcher cycle
type DispatchStats struct {
	Pending      int
	Sent         int
	Failed       int
	Acknowledged int
	AckFailed    int
}

// DispatcherOptions configures a Dispatcher
type DispatcherOptions struct {
	// AcknowledgeAfterNotify clears each alert upstream once it has been notified
	AcknowledgeAfterNotify bool
	// Now overrides the clock; timestamps are still forced to increase strictly
	Now func() time.Time
}

// Dispatcher moves pending alerts through the notification lifecycle
type Dispatcher struct {
	store    AlertLifecycle
	notifier Notifier
	acker    Acknowledger
	ackAfter bool
	logger   logrus.FieldLogger

	clockMu sync.Mutex
	now     func() time.Time
	last    time.Time
}

func NewDispatcher(store AlertLifecycle, notifier Notifier, acker Acknowledger, opts DispatcherOptions, logger logrus.FieldLogger) *Dispatcher {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		store:    store,
		notifier: notifier,
		acker:    acker,
		ackAfter: opts.AcknowledgeAfterNotify && acker != nil,
		logger:   logger.WithField("channel", notifier.Name()),
		now:      now,
	}
}

// stamp returns a UTC timestamp at microsecond precision that is strictly
// later than floor and than any previous stamp from this dispatcher.
func (d *Dispatcher) stamp(floor time.Time) time.Time {
	d.clockMu.Lock()
	defer d.clockMu.Unlock()

	t := d.now().UTC().Truncate(time.Microsecond)
	if floor.After(d.last) {
		d.last = floor.UTC().Truncate(time.Microsecond)
	}
	if !t.After(d.last) {
		t = d.last.Add(time.Microsecond)
	}
	d.last = t
	return t
}

func (d *Dispatcher) send(ctx context.Context, alert *database.Alert) SendResult {
	if err := d.notifier.Send(ctx, alert); err != nil {
		return SendResult{Outcome: Failed, Reason: err}
	}
	return SendResult{Outcome: Sent}
}

// DispatchOnce processes every pending row once, in insertion order. Only a
// failure to read the pending set aborts the cycle; a failed send still marks
// the row notified so it is not retried.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (DispatchStats, error) {
	var stats DispatchStats

	pending, err := d.store.SelectPending(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to select pending alerts: %w", err)
	}
	stats.Pending = len(pending)

	for i := range pending {
		row := &pending[i]
		log := d.logger.WithFields(logrus.Fields{
			"alert_id": row.AlertID,
			"cluster":  row.ManagementEndpoint,
			"severity": row.Severity,
		})

		result := d.send(ctx, row)
		switch result.Outcome {
		case Sent:
			stats.Sent++
			log.Info("Alert notification sent")
		case Failed:
			stats.Failed++
			log.WithError(result.Reason).Error("Alert notification failed")
		}

		if err := d.store.MarkNotified(ctx, row.ID, d.stamp(row.CreatedAt)); err != nil {
			if errors.Is(err, database.ErrAlreadyNotified) {
				log.Warn("Alert was notified by another dispatcher, skipping acknowledgment")
			} else {
				log.WithError(err).Error("Failed to mark alert notified")
			}
			continue
		}

		if !d.ackAfter {
			continue
		}
		if err := d.acker.AcknowledgeAlert(ctx, row.ManagementEndpoint, row.AlertID); err != nil {
			stats.AckFailed++
			log.WithError(err).Warn("Failed to acknowledge alert upstream")
			continue
		}
		if err := d.store.MarkCleared(ctx, row.ID, d.stamp(row.CreatedAt)); err != nil {
			stats.AckFailed++
			log.WithError(err).Error("Failed to mark alert cleared")
			continue
		}
		stats.Acknowledged++
	}

	return stats, nil
}
