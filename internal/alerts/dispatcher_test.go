package alerts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ecs-alert/ecs-alert/internal/alerts"
	"github.com/ecs-alert/ecs-alert/internal/database"
	"github.com/ecs-alert/ecs-alert/internal/logging"
	"github.com/ecs-alert/ecs-alert/internal/testhelpers"
)

func seedPending(t *testing.T, store *database.AlertStore, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := store.Insert(context.Background(), testhelpers.NewAlertBuilder("10.0.0.1", id).Build()); err != nil {
			t.Fatalf("failed to seed alert %s: %v", id, err)
		}
	}
}

// Scenario 4: three pending rows, channel always succeeds, acknowledgment on
func TestDispatcher_ScenarioNotifyAndAcknowledge(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	seedPending(t, store, "1", "2", "3")

	channel := testhelpers.NewFakeChannel()
	acker := testhelpers.NewFakeAcker()
	d := alerts.NewDispatcher(store, channel, acker, alerts.DispatcherOptions{AcknowledgeAfterNotify: true}, logging.Discard())

	stats, err := d.DispatchOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats != (alerts.DispatchStats{Pending: 3, Sent: 3, Acknowledged: 3}) {
		t.Errorf("unexpected stats %+v", stats)
	}

	ids := channel.SentIDs()
	if len(ids) != 3 || ids[0] != "1" || ids[1] != "2" || ids[2] != "3" {
		t.Errorf("expected delivery in insertion order, got %v", ids)
	}
	if len(acker.Acked) != 3 || acker.Acked[0] != "10.0.0.1/1" {
		t.Errorf("unexpected acknowledgments %v", acker.Acked)
	}

	all, _ := store.SelectAll(context.Background())
	for _, a := range all {
		if a.State() != database.StateCleared {
			t.Errorf("alert %s: expected cleared, got %s", a.AlertID, a.State())
		}
		testhelpers.AssertLifecycle(t, a)
	}
}

func TestDispatcher_CoarseClockStillOrdersTimestamps(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	seedPending(t, store, "1", "2")

	frozen := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	d := alerts.NewDispatcher(store, testhelpers.NewFakeChannel(), testhelpers.NewFakeAcker(),
		alerts.DispatcherOptions{AcknowledgeAfterNotify: true, Now: func() time.Time { return frozen }},
		logging.Discard())

	if _, err := d.DispatchOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all, _ := store.SelectAll(context.Background())
	for _, a := range all {
		testhelpers.AssertLifecycle(t, a)
	}
}

func TestDispatcher_AcknowledgeDisabled(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	seedPending(t, store, "1", "2")

	acker := testhelpers.NewFakeAcker()
	d := alerts.NewDispatcher(store, testhelpers.NewFakeChannel(), acker, alerts.DispatcherOptions{}, logging.Discard())

	stats, err := d.DispatchOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Sent != 2 || stats.Acknowledged != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if len(acker.Acked) != 0 {
		t.Errorf("acknowledger must not be called, got %v", acker.Acked)
	}

	all, _ := store.SelectAll(context.Background())
	for _, a := range all {
		if a.State() != database.StateNotified {
			t.Errorf("alert %s: expected notified, got %s", a.AlertID, a.State())
		}
		testhelpers.AssertLifecycle(t, a)
	}
}

func TestDispatcher_FailedSendStillMarkedNotified(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	seedPending(t, store, "1", "2")

	channel := testhelpers.NewFakeChannel()
	channel.FailFor["1"] = errors.New("smtp: 550 mailbox unavailable")
	d := alerts.NewDispatcher(store, channel, nil, alerts.DispatcherOptions{}, logging.Discard())

	stats, err := d.DispatchOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Sent != 1 || stats.Failed != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	pending, _ := store.SelectPending(context.Background())
	if len(pending) != 0 {
		t.Errorf("failed deliveries are not retried, expected no pending rows, got %d", len(pending))
	}
}

func TestDispatcher_AcknowledgeFailureLeavesNotified(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	seedPending(t, store, "1", "2")

	acker := testhelpers.NewFakeAcker()
	acker.FailFor["2"] = errors.New("503 service unavailable")
	d := alerts.NewDispatcher(store, testhelpers.NewFakeChannel(), acker, alerts.DispatcherOptions{AcknowledgeAfterNotify: true}, logging.Discard())

	stats, err := d.DispatchOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Acknowledged != 1 || stats.AckFailed != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	all, _ := store.SelectAll(context.Background())
	states := map[string]database.State{}
	for _, a := range all {
		states[a.AlertID] = a.State()
		testhelpers.AssertLifecycle(t, a)
	}
	if states["1"] != database.StateCleared || states["2"] != database.StateNotified {
		t.Errorf("unexpected states %v", states)
	}
}

func TestDispatcher_EmptyStoreIsNoop(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	channel := testhelpers.NewFakeChannel()
	d := alerts.NewDispatcher(store, channel, nil, alerts.DispatcherOptions{}, logging.Discard())

	stats, err := d.DispatchOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats != (alerts.DispatchStats{}) || len(channel.Sent) != 0 {
		t.Errorf("expected nothing dispatched, got %+v", stats)
	}
}

// Rows pending when the cycle starts are each handled exactly once; rows
// arriving afterwards wait for the next cycle.
func TestDispatcher_EachPendingRowOncePerCycle(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	seedPending(t, store, "1", "2")

	channel := testhelpers.NewFakeChannel()
	d := alerts.NewDispatcher(store, channel, nil, alerts.DispatcherOptions{}, logging.Discard())
	ctx := context.Background()

	if _, err := d.DispatchOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seedPending(t, store, "3")
	if _, err := d.DispatchOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := channel.SentIDs()
	if len(ids) != 3 || ids[2] != "3" {
		t.Errorf("expected each alert delivered once, got %v", ids)
	}
}

type failingLifecycle struct{}

func (failingLifecycle) SelectPending(context.Context) ([]database.Alert, error) {
	return nil, errors.New("database is locked")
}
func (failingLifecycle) MarkNotified(context.Context, uint, time.Time) error { return nil }
func (failingLifecycle) MarkCleared(context.Context, uint, time.Time) error  { return nil }

func TestDispatcher_SelectErrorAbortsCycle(t *testing.T) {
	d := alerts.NewDispatcher(failingLifecycle{}, testhelpers.NewFakeChannel(), nil, alerts.DispatcherOptions{}, logging.Discard())

	if _, err := d.DispatchOnce(context.Background()); err == nil {
		t.Error("expected select error to abort the cycle")
	}
}

// otherDispatcherStore notifies every row itself just before the dispatcher
// under test does, as a second process sharing the table would.
type otherDispatcherStore struct {
	*database.AlertStore
}

func (s otherDispatcherStore) MarkNotified(ctx context.Context, id uint, at time.Time) error {
	if err := s.AlertStore.MarkNotified(ctx, id, at); err != nil {
		return err
	}
	return s.AlertStore.MarkNotified(ctx, id, at.Add(time.Hour))
}

func TestDispatcher_AlreadyNotifiedSkipsAcknowledgment(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	seedPending(t, store, "1")
	acker := testhelpers.NewFakeAcker()

	d := alerts.NewDispatcher(otherDispatcherStore{store}, testhelpers.NewFakeChannel(), acker,
		alerts.DispatcherOptions{AcknowledgeAfterNotify: true}, logging.Discard())

	stats, err := d.DispatchOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Acknowledged != 0 || len(acker.Acked) != 0 {
		t.Errorf("expected no acknowledgment, got stats %+v acks %v", stats, acker.Acked)
	}

	all, _ := store.SelectAll(context.Background())
	if len(all) != 1 || all[0].UpstreamCleared {
		t.Errorf("expected the row notified but not cleared, got %+v", all)
	}
}

func TestSendOutcome_String(t *testing.T) {
	if alerts.Sent.String() != "sent" || alerts.Failed.String() != "failed" {
		t.Errorf("unexpected outcome names %s/%s", alerts.Sent, alerts.Failed)
	}
}
