package jobs

import (
	"context"
	"errors"
	"sync"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ecs-alert/ecs-alert/internal/alerts"
	"github.com/ecs-alert/ecs-alert/internal/logging"
	"github.com/ecs-alert/ecs-alert/internal/testhelpers"
)

type countingTask struct {
	name     string
	interval time.Duration
	cycles   atomic.Int32
	err      error
}

func (t *countingTask) Name() string            { return t.name }
func (t *countingTask) Interval() time.Duration { return t.interval }
func (t *countingTask) RunCycle(ctx context.Context) error {
	t.cycles.Add(1)
	return t.err
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestRun_RepeatsUntilCancelled(t *testing.T) {
	task := &countingTask{name: "count", interval: 10 * time.Millisecond, err: errors.New("transient")}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Run(ctx, task, logging.Discard())
		close(done)
	}()

	waitFor(t, 2*time.Second, func() bool { return task.cycles.Load() >= 3 })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRun_FirstCycleIsImmediate(t *testing.T) {
	task := &countingTask{name: "slow", interval: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Run(ctx, task, logging.Discard())
	waitFor(t, 2*time.Second, func() bool { return task.cycles.Load() == 1 })
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	task := &countingTask{name: "never", interval: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	Run(ctx, task, logging.Discard())
	if task.cycles.Load() != 0 {
		t.Errorf("expected no cycles, got %d", task.cycles.Load())
	}
}

// blockingTask holds its cycle open until released and records whether the
// cycle context was ever cancelled
type blockingTask struct {
	started   chan struct{}
	release   chan struct{}
	cancelled atomic.Bool
	once      sync.Once
}

func (t *blockingTask) Name() string            { return "blocking" }
func (t *blockingTask) Interval() time.Duration { return time.Millisecond }
func (t *blockingTask) RunCycle(ctx context.Context) error {
	t.once.Do(func() { close(t.started) })
	<-t.release
	if ctx.Err() != nil {
		t.cancelled.Store(true)
	}
	return nil
}

func TestRun_CycleNotPreempted(t *testing.T) {
	task := &blockingTask{started: make(chan struct{}), release: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Run(ctx, task, logging.Discard())
		close(done)
	}()

	<-task.started
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned while a cycle was still in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(task.release)
	<-done

	if task.cancelled.Load() {
		t.Error("cycle context must not observe shutdown")
	}
}

func TestRunner_StartsAndStopsAllTasks(t *testing.T) {
	a := &countingTask{name: "a", interval: 5 * time.Millisecond}
	b := &countingTask{name: "b", interval: 5 * time.Millisecond}
	r := NewRunner(logging.Discard(), a, b)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	waitFor(t, 2*time.Second, func() bool { return a.cycles.Load() > 0 && b.cycles.Load() > 0 })
	cancel()

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}

	if len(r.Tasks()) != 2 {
		t.Errorf("expected 2 tasks, got %d", len(r.Tasks()))
	}
}

func TestCollectAndDispatchTasks_EndToEnd(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	cluster := alerts.Cluster{Endpoint: "10.0.0.1", VDC: "vdc1"}
	source := testhelpers.NewFakeSource(testhelpers.RawAlerts("1", "2"), testhelpers.RawAlerts("3"))
	channel := testhelpers.NewFakeChannel()
	acker := testhelpers.NewFakeAcker()
	logger := logging.Discard()

	collector := alerts.NewCollector(cluster, source, store, alerts.NewFilterPolicy(nil, nil), logger)
	dispatcher := alerts.NewDispatcher(store, channel, acker, alerts.DispatcherOptions{AcknowledgeAfterNotify: true}, logger)

	collect := NewCollectTask(collector, time.Minute, logger)
	dispatch := NewDispatchTask(dispatcher, time.Minute, logger)

	if collect.Name() != "collect:10.0.0.1" || dispatch.Name() != "dispatch" {
		t.Errorf("unexpected task names %s / %s", collect.Name(), dispatch.Name())
	}

	ctx := context.Background()
	if err := collect.RunCycle(ctx); err != nil {
		t.Fatalf("collect cycle failed: %v", err)
	}
	if err := dispatch.RunCycle(ctx); err != nil {
		t.Fatalf("dispatch cycle failed: %v", err)
	}

	if ids := channel.SentIDs(); len(ids) != 3 {
		t.Errorf("expected 3 notifications, got %v", ids)
	}
	counts, _ := store.Counts(ctx)
	if counts.Cleared != 3 || counts.Pending != 0 {
		t.Errorf("unexpected counts %+v", counts)
	}
}

func TestCollectTask_ReturnsFetchError(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	boom := errors.New("connection refused")
	source := testhelpers.NewFakeSource().FailAt("", boom)
	logger := logging.Discard()

	collector := alerts.NewCollector(alerts.Cluster{Endpoint: "h"}, source, store, alerts.NewFilterPolicy(nil, nil), logger)
	task := NewCollectTask(collector, time.Minute, logger)

	if err := task.RunCycle(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected fetch error, got %v", err)
	}
}

func TestRun_AbortedCollectionLoggedOnce(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	source := testhelpers.NewFakeSource().FailAt("", errors.New("connection refused"))
	logger, hook := test.NewNullLogger()

	collector := alerts.NewCollector(alerts.Cluster{Endpoint: "h"}, source, store, alerts.NewFilterPolicy(nil, nil), logger)
	task := NewCollectTask(collector, time.Hour, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, task, logger)
		close(done)
	}()
	waitFor(t, time.Second, func() bool { return source.Requests() >= 1 })
	cancel()
	<-done

	var warnings []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings = append(warnings, e)
		}
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning for the aborted cycle, got %d", len(warnings))
	}
	if err, ok := warnings[0].Data[logrus.ErrorKey].(error); !ok || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected the fetch error on the warning, got %v", warnings[0].Data)
	}
}
