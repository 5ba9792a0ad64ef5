package jobs

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Runner drives a fixed set of tasks, one goroutine each
type Runner struct {
	tasks  []Task
	logger logrus.FieldLogger
	wg     sync.WaitGroup
}

func NewRunner(logger logrus.FieldLogger, tasks ...Task) *Runner {
	return &Runner{tasks: tasks, logger: logger}
}

// Start launches every task. They stop after their current cycle once ctx is done.
func (r *Runner) Start(ctx context.Context) {
	for _, task := range r.tasks {
		r.wg.Add(1)
		go func(task Task) {
			defer r.wg.Done()
			Run(ctx, task, r.logger)
		}(task)
	}
}

// Wait blocks until every task has stopped
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Tasks returns the managed tasks
func (r *Runner) Tasks() []Task {
	return r.tasks
}
