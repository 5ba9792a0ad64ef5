package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is one periodic unit of work. RunCycle is never interrupted: it gets a
// context that is not cancelled by shutdown.
type Task interface {
	Name() string
	Interval() time.Duration
	RunCycle(ctx context.Context) error
}

// Run executes task cycles back to back, sleeping Interval between them, until
// ctx is done. Shutdown is only observed between cycles; a cycle in progress
// always runs to completion.
func Run(ctx context.Context, task Task, logger logrus.FieldLogger) {
	log := logger.WithField("task", task.Name())
	log.Infof("Task started (interval %v)", task.Interval())

	for {
		if ctx.Err() != nil {
			log.Info("Task stopped")
			return
		}

		if err := task.RunCycle(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("Cycle failed, retrying next interval")
		}

		timer := time.NewTimer(task.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}
